package domain

import (
	"context"
	"errors"
	"fmt"
	"net/http"
)

// ValidationError indica entrada inválida do usuário.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return e.Message
	}
	return e.Field + ": " + e.Message
}

// ConfigurationError indica credencial ou endereço de upstream ausente.
type ConfigurationError struct {
	Service string
	Missing string
}

func (e *ConfigurationError) Error() string {
	return fmt.Sprintf("%s: %s is not configured", e.Service, e.Missing)
}

// UpstreamError carrega o status não-2xx devolvido por um serviço externo.
type UpstreamError struct {
	Service string
	Status  int
	Body    string
}

func (e *UpstreamError) Error() string {
	if e.Body == "" {
		return fmt.Sprintf("%s: upstream status %d", e.Service, e.Status)
	}
	return fmt.Sprintf("%s: upstream status %d: %s", e.Service, e.Status, e.Body)
}

// TimeoutError indica que a chamada foi abortada por deadline.
type TimeoutError struct {
	Service string
	Err     error
}

func (e *TimeoutError) Error() string { return e.Service + ": upstream timed out" }

func (e *TimeoutError) Unwrap() error { return e.Err }

// DecodeError é uma linha/evento do stream que não pôde ser lido.
// Só é logado; nunca encerra o stream.
type DecodeError struct {
	Line string
	Err  error
}

func (e *DecodeError) Error() string { return fmt.Sprintf("decode %q: %v", e.Line, e.Err) }

func (e *DecodeError) Unwrap() error { return e.Err }

// CacheError é uma falha do armazenamento do cache. Sempre engolida.
type CacheError struct {
	Op  string
	Key string
	Err error
}

func (e *CacheError) Error() string { return fmt.Sprintf("cache %s %q: %v", e.Op, e.Key, e.Err) }

func (e *CacheError) Unwrap() error { return e.Err }

// IsCanceled reporta cancelamento de sessão, que não é erro para o usuário.
func IsCanceled(err error) bool {
	return errors.Is(err, context.Canceled)
}

// HTTPStatus mapeia a taxonomia para o status devolvido pelo gateway.
func HTTPStatus(err error) int {
	var (
		ve *ValidationError
		ce *ConfigurationError
		ue *UpstreamError
		te *TimeoutError
	)
	switch {
	case errors.As(err, &ve):
		return http.StatusBadRequest
	case errors.As(err, &ce):
		return http.StatusServiceUnavailable
	case errors.As(err, &te), errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout
	case errors.As(err, &ue):
		return http.StatusBadGateway
	}
	return http.StatusInternalServerError
}

// Códigos estáveis do corpo JSON de erro.
const (
	CodeInvalidRequest  = "invalid_request"
	CodeNotConfigured   = "not_configured"
	CodeUpstreamTimeout = "upstream_timeout"
	CodeUpstreamError   = "upstream_error"
	CodeInternal        = "internal_error"
)

// Code é o identificador estável do erro no corpo JSON.
func Code(err error) string {
	switch HTTPStatus(err) {
	case http.StatusBadRequest:
		return CodeInvalidRequest
	case http.StatusServiceUnavailable:
		return CodeNotConfigured
	case http.StatusGatewayTimeout:
		return CodeUpstreamTimeout
	case http.StatusBadGateway:
		return CodeUpstreamError
	}
	return CodeInternal
}

// PublicMessage é o texto mostrado ao usuário final.
//
// Em produção só erros de validação mantêm o detalhe; o resto vira mensagem
// genérica e o detalhe fica no log do servidor.
func PublicMessage(err error, production bool) string {
	if err == nil {
		return ""
	}
	var ve *ValidationError
	if errors.As(err, &ve) || !production {
		return err.Error()
	}
	switch HTTPStatus(err) {
	case http.StatusServiceUnavailable:
		return "This service is temporarily unavailable."
	case http.StatusGatewayTimeout:
		return "The upstream service took too long to respond. Please try again."
	case http.StatusBadGateway:
		return "The upstream service returned an error. Please try again later."
	}
	return "Something went wrong. Please try again later."
}
