package stream

import (
	"bufio"
	"errors"
	"io"
	"net/http"
	"strings"
	"sync"

	"lookup-gateway/lookup/domain"

	"github.com/tidwall/gjson"
)

// DoneSentinel encerra logicamente um stream SSE.
const DoneSentinel = "[DONE]"

// DeltaScanner lê fragmentos de texto de um stream SSE de chat.
//
// Eventos são separados por linha em branco. Linhas ":" são comentários; cada
// linha "data:" é um payload. O payload [DONE] encerra a iteração na hora,
// mesmo que ainda existam bytes. Payload JSON usa choices[0].delta.content ou
// content; payload que não é JSON vira o próprio fragmento.
//
// Um evento "event: error", ou um payload JSON com membro "error" no topo,
// encerra a iteração e fica disponível em Err como *domain.UpstreamError ou
// *domain.TimeoutError.
type DeltaScanner struct {
	body   io.ReadCloser
	reader *bufio.Reader
	opts   options

	pending   []ssePayload
	current   string
	err       error
	eof       bool
	done      bool
	closeOnce sync.Once
	closeErr  error
}

func NewDeltaScanner(body io.ReadCloser, opts ...Option) (*DeltaScanner, error) {
	if body == nil {
		return nil, ErrNoBody
	}
	o := buildOptions(opts)
	return &DeltaScanner{
		body:   body,
		reader: bufio.NewReaderSize(body, o.readSize),
		opts:   o,
	}, nil
}

// Next avança para o próximo fragmento não vazio.
func (s *DeltaScanner) Next() bool {
	for !s.done {
		if len(s.pending) == 0 {
			if s.eof {
				_ = s.Close()
				return false
			}
			s.readEvent()
			continue
		}

		p := s.pending[0]
		s.pending = s.pending[1:]
		payload := p.data
		if payload == DoneSentinel {
			_ = s.Close()
			return false
		}
		if p.event == "error" || (gjson.Valid(payload) && gjson.Get(payload, "error").Exists()) {
			s.err = streamFailure(payload)
			s.pending = nil
			_ = s.Close()
			return false
		}
		if text := ExtractDelta(payload); text != "" {
			s.current = text
			return true
		}
	}
	return false
}

// Text devolve o fragmento corrente.
func (s *DeltaScanner) Text() string { return s.current }

func (s *DeltaScanner) Err() error { return s.err }

func (s *DeltaScanner) Close() error {
	s.done = true
	s.closeOnce.Do(func() { s.closeErr = s.body.Close() })
	return s.closeErr
}

// readEvent lê linhas até a fronteira do evento e enfileira os payloads.
// Um evento parcial no fim do stream também é processado.
func (s *DeltaScanner) readEvent() {
	event := ""
	for {
		line, err := s.reader.ReadString('\n')
		if err != nil {
			s.eof = true
			if !errors.Is(err, io.EOF) {
				s.err = err
				s.pending = nil
				return
			}
		}

		line = strings.TrimRight(line, "\r\n")
		switch {
		case line == "":
			if s.eof || len(s.pending) > 0 {
				return
			}
			event = ""
			continue
		case strings.HasPrefix(line, ":"):
			// comentário / keep-alive
		case strings.HasPrefix(line, "event:"):
			event = strings.TrimSpace(strings.TrimPrefix(line, "event:"))
		case strings.HasPrefix(line, "data:"):
			s.pending = append(s.pending, ssePayload{
				event: event,
				data:  strings.TrimPrefix(strings.TrimPrefix(line, "data:"), " "),
			})
		}
		if s.eof {
			return
		}
	}
}

type ssePayload struct {
	event string
	data  string
}

// streamFailure converte o payload de um evento de erro na taxonomia do domínio.
// Aceita {"error":"...","code":"..."} e {"error":{"message":"...","code":"..."}}.
func streamFailure(payload string) error {
	msg, code := payload, ""
	if gjson.Valid(payload) {
		e := gjson.Get(payload, "error")
		switch {
		case e.IsObject():
			msg = e.Get("message").String()
			code = e.Get("code").String()
		case e.Exists():
			msg = e.String()
			code = gjson.Get(payload, "code").String()
		}
	}
	if msg == "" {
		msg = "stream failed"
	}
	if code == domain.CodeUpstreamTimeout {
		return &domain.TimeoutError{Service: "chat", Err: errors.New(msg)}
	}
	return &domain.UpstreamError{Service: "chat", Status: http.StatusBadGateway, Body: msg}
}

// ExtractDelta tira o texto de um payload SSE.
func ExtractDelta(payload string) string {
	if !gjson.Valid(payload) {
		return payload
	}
	if r := gjson.Get(payload, "choices.0.delta.content"); r.Exists() {
		return r.String()
	}
	return gjson.Get(payload, "content").String()
}
