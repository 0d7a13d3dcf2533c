package domain

import (
	"regexp"
	"strings"
)

var usernamePattern = regexp.MustCompile(`^[A-Za-z0-9._-]{1,64}$`)

// NormalizeUsername limpa a consulta do usuário. Entrada vazia devolve "" sem erro.
func NormalizeUsername(raw string) (string, error) {
	u := strings.TrimSpace(raw)
	u = strings.TrimPrefix(u, "@")
	if u == "" {
		return "", nil
	}
	if !usernamePattern.MatchString(u) {
		return "", &ValidationError{Field: "username", Message: "use 1-64 letters, digits, dots, underscores or hyphens"}
	}
	return u, nil
}

// NormalizeWebQuery valida a consulta da busca web.
func NormalizeWebQuery(raw string) (string, error) {
	q := strings.TrimSpace(raw)
	if q == "" {
		return "", &ValidationError{Field: "q", Message: "query is required"}
	}
	if len(q) > 256 {
		return "", &ValidationError{Field: "q", Message: "query is too long"}
	}
	return q, nil
}
