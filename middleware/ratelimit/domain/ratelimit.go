package domain

// Camada de domínio do rate limit.
//
// Regras e contratos (interfaces/tipos) sem dependência de net/http.

import (
	"strconv"
	"strings"
	"time"
	"unicode"

	"github.com/cespare/xxhash/v2"
)

// MaxKeyLen limita o tamanho de uma identidade usada como chave de mapa.
const MaxKeyLen = 128

// Key é uma identidade de cliente já sanitizada (ver SanitizeKey).
type Key string

// Config descreve a política: no máximo MaxRequests a cada Interval.
type Config struct {
	Interval    time.Duration
	MaxRequests int
}

// Result é o resultado de uma checagem.
//
// RetryAfter só é preenchido quando Allowed=false, sempre em segundos inteiros >= 1.
type Result struct {
	Allowed    bool
	Limit      int
	Remaining  int
	ResetAt    time.Time
	RetryAfter time.Duration
}

// Limiter decide se a requisição identificada por key pode passar agora.
//
// Observação: o estado é por processo. Com N instâncias atrás de um balanceador
// o limite efetivo é N vezes o configurado.
type Limiter interface {
	Check(key Key, cfg Config) Result
}

// SanitizeKey transforma uma identidade não confiável numa chave limitada.
//
// Remove caracteres de controle, corta em MaxKeyLen e, se ainda sobrar algo
// fora do alfabeto seguro, troca o valor pelo hash xxhash dele mesmo.
func SanitizeKey(raw string) Key {
	cleaned := strings.Map(func(r rune) rune {
		if unicode.IsControl(r) {
			return -1
		}
		return r
	}, raw)
	cleaned = strings.TrimSpace(cleaned)
	if len(cleaned) > MaxKeyLen {
		cleaned = cleaned[:MaxKeyLen]
	}
	if cleaned == "" {
		return "unknown"
	}
	for i := 0; i < len(cleaned); i++ {
		if !safeKeyByte(cleaned[i]) {
			return Key("h:" + HashString(cleaned))
		}
	}
	return Key(cleaned)
}

// HashString retorna o xxhash64 de s em hexadecimal.
func HashString(s string) string {
	return strconv.FormatUint(xxhash.Sum64String(s), 16)
}

func safeKeyByte(c byte) bool {
	switch {
	case c >= 'a' && c <= 'z', c >= 'A' && c <= 'Z', c >= '0' && c <= '9':
		return true
	case c == '.', c == ':', c == '_', c == '-':
		return true
	}
	return false
}
