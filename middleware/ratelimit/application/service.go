package application

import (
	"lookup-gateway/middleware/ratelimit/domain"
)

// Service concentra a regra de aplicação do rate limit de uma rota.
//
// Ele não sabe nada sobre HTTP (headers/status), apenas retorna um Result.
// Route entra na chave para que cada rota tenha seu próprio bucket.
type Service struct {
	Limiter domain.Limiter
	Config  domain.Config
	Route   string
}

func (s Service) Decide(key domain.Key) domain.Result {
	if s.Limiter == nil {
		return domain.Result{Allowed: true}
	}
	if s.Route != "" {
		key = domain.Key(s.Route + ":" + string(key))
	}
	return s.Limiter.Check(key, s.Config)
}
