package ratelimit

import (
	"net"
	"net/http"
	"strings"

	"lookup-gateway/middleware/ratelimit/domain"
)

type KeyFunc func(r *http.Request) domain.Key

// clientIPHeaders segue a ordem de confiança das convenções de CDN/edge.
// Headers com lista usam o primeiro item (cliente original).
var clientIPHeaders = []struct {
	name string
	list bool
}{
	{"CF-Connecting-IP", false},
	{"True-Client-IP", false},
	{"Fastly-Client-IP", false},
	{"X-Real-IP", false},
	{"X-Vercel-Forwarded-For", true},
	{"X-Forwarded-For", true},
}

// fingerprintHeaders compõem a identidade quando não há endereço algum.
var fingerprintHeaders = []string{"User-Agent", "Accept", "Accept-Language", "Accept-Encoding"}

// IdentityFunc deriva a identidade do cliente.
//
// Com trustProxyHeaders, usa o primeiro header de edge presente; depois o host de
// RemoteAddr; por último um fingerprint dos headers. O valor sempre passa por
// domain.SanitizeKey antes de virar chave.
func IdentityFunc(trustProxyHeaders bool) KeyFunc {
	return func(r *http.Request) domain.Key {
		if trustProxyHeaders {
			if ip := headerAddress(r.Header); ip != "" {
				return domain.SanitizeKey(ip)
			}
		}

		host, _, err := net.SplitHostPort(strings.TrimSpace(r.RemoteAddr))
		if err == nil && host != "" {
			return domain.SanitizeKey(host)
		}
		if addr := strings.TrimSpace(r.RemoteAddr); addr != "" {
			return domain.SanitizeKey(addr)
		}

		return Fingerprint(r.Header)
	}
}

func headerAddress(h http.Header) string {
	for _, c := range clientIPHeaders {
		v := strings.TrimSpace(h.Get(c.name))
		if v == "" {
			continue
		}
		if c.list {
			first, _, _ := strings.Cut(v, ",")
			v = strings.TrimSpace(first)
		}
		if v != "" {
			return v
		}
	}
	return ""
}

// Fingerprint gera uma identidade estável a partir de headers do navegador.
// É fraca de propósito: só garante que toda requisição caia em alguma chave limitada.
func Fingerprint(h http.Header) domain.Key {
	parts := make([]string, 0, len(fingerprintHeaders))
	for _, name := range fingerprintHeaders {
		parts = append(parts, h.Get(name))
	}
	return domain.Key("fp:" + domain.HashString(strings.Join(parts, "|")))
}
