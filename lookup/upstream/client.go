package upstream

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"net"
	"net/http"
	"net/url"
	"strings"
	"time"

	"lookup-gateway/lookup/domain"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"golang.org/x/time/rate"
)

const (
	HeaderRequestID = "X-Request-Id"

	maxErrorBody = 4 << 10
)

// Endpoint descreve um serviço externo.
//
// Timeout limita a espera pelos headers da resposta; streams longos não são
// cortados depois que começam. RatePerSecond <= 0 desliga o ritmo.
type Endpoint struct {
	BaseURL       string
	APIKey        string
	Timeout       time.Duration
	RatePerSecond float64
	Burst         int
}

type Option func(*base)

// WithHTTPClient troca o cliente HTTP (testes usam o do httptest).
func WithHTTPClient(c *http.Client) Option { return func(b *base) { b.http = c } }

func WithLogger(log zerolog.Logger) Option { return func(b *base) { b.log = log } }

type base struct {
	service  string
	endpoint Endpoint
	http     *http.Client
	limiter  *rate.Limiter
	log      zerolog.Logger
}

func newBase(service string, ep Endpoint, opts []Option) base {
	b := base{
		service:  service,
		endpoint: ep,
		log:      zerolog.Nop(),
	}
	for _, opt := range opts {
		opt(&b)
	}
	if b.http == nil {
		t := http.DefaultTransport.(*http.Transport).Clone()
		t.ResponseHeaderTimeout = ep.Timeout
		b.http = &http.Client{Transport: t}
	}
	if ep.RatePerSecond > 0 {
		burst := ep.Burst
		if burst <= 0 {
			burst = 1
		}
		b.limiter = rate.NewLimiter(rate.Limit(ep.RatePerSecond), burst)
	}
	b.log = b.log.With().Str("upstream", service).Logger()
	return b
}

// do envia a requisição e devolve a resposta 2xx com o body aberto.
// Qualquer outro status vira *domain.UpstreamError.
func (b *base) do(ctx context.Context, method, path string, query url.Values, payload any, accept string) (*http.Response, error) {
	if strings.TrimSpace(b.endpoint.BaseURL) == "" {
		return nil, &domain.ConfigurationError{Service: b.service, Missing: "base URL"}
	}
	if b.limiter != nil {
		if err := b.limiter.Wait(ctx); err != nil {
			// Wait falha antes do prazo quando a espera não caberia nele
			if errors.Is(ctx.Err(), context.Canceled) {
				return nil, ctx.Err()
			}
			return nil, &domain.TimeoutError{Service: b.service, Err: err}
		}
	}

	endpoint := strings.TrimRight(b.endpoint.BaseURL, "/") + path
	if len(query) > 0 {
		endpoint += "?" + query.Encode()
	}

	var body io.Reader
	if payload != nil {
		raw, err := json.Marshal(payload)
		if err != nil {
			return nil, err
		}
		body = bytes.NewReader(raw)
	}

	req, err := http.NewRequestWithContext(ctx, method, endpoint, body)
	if err != nil {
		return nil, err
	}
	reqID := uuid.NewString()
	req.Header.Set(HeaderRequestID, reqID)
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if accept != "" {
		req.Header.Set("Accept", accept)
	}
	if b.endpoint.APIKey != "" {
		req.Header.Set("Authorization", "Bearer "+b.endpoint.APIKey)
	}

	b.log.Debug().Str("request_id", reqID).Str("method", method).Str("path", path).Msg("upstream request")

	resp, err := b.http.Do(req)
	if err != nil {
		return nil, b.transportErr(ctx, err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		data, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		_ = resp.Body.Close()
		b.log.Warn().Str("request_id", reqID).Int("status", resp.StatusCode).Msg("upstream returned error status")
		return nil, &domain.UpstreamError{Service: b.service, Status: resp.StatusCode, Body: strings.TrimSpace(string(data))}
	}
	return resp, nil
}

// transportErr separa cancelamento (devolvido como está) de timeout.
func (b *base) transportErr(ctx context.Context, err error) error {
	if errors.Is(err, context.Canceled) {
		return err
	}
	var ne net.Error
	if errors.Is(err, context.DeadlineExceeded) || (errors.As(err, &ne) && ne.Timeout()) {
		return &domain.TimeoutError{Service: b.service, Err: err}
	}
	if ctx.Err() != nil {
		return ctx.Err()
	}
	return err
}
