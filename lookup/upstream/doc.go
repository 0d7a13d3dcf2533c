// Package upstream contém os clientes HTTP dos serviços externos: o stream de
// plataformas, a busca web e o chat. Todos usam ritmo por x/time/rate, um
// X-Request-Id por chamada e a mesma tradução de erros para lookup/domain.
package upstream
