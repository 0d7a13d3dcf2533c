package server

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"lookup-gateway/lookup/domain"
	"lookup-gateway/lookup/upstream"

	"github.com/rs/zerolog/hlog"
)

const (
	maxChatBody     = 64 << 10
	maxChatMessages = 50
	copyBufferSize  = 32 << 10
)

type errorBody struct {
	Error string `json:"error"`
	Code  string `json:"code"`
}

type chatBody struct {
	Messages []upstream.Message `json:"messages"`
}

type chatDelta struct {
	Content string `json:"content"`
}

func (s *Server) handleLookup(w http.ResponseWriter, r *http.Request) {
	username, err := domain.NormalizeUsername(r.URL.Query().Get("username"))
	if err == nil && username == "" {
		err = &domain.ValidationError{Field: "username", Message: "username is required"}
	}
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	if s.opts.Platforms == nil {
		s.writeError(w, r, &domain.ConfigurationError{Service: "platforms", Missing: "upstream"})
		return
	}

	body, err := s.opts.Platforms.StreamPlatforms(r.Context(), username)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	defer body.Close()

	setStreamHeaders(w, "application/x-ndjson")
	w.WriteHeader(http.StatusOK)
	rc := http.NewResponseController(w)

	buf := make([]byte, copyBufferSize)
	for {
		n, rerr := body.Read(buf)
		if n > 0 {
			if _, werr := w.Write(buf[:n]); werr != nil {
				return
			}
			_ = rc.Flush()
		}
		if rerr != nil {
			if !errors.Is(rerr, io.EOF) && !domain.IsCanceled(rerr) {
				hlog.FromRequest(r).Warn().Err(rerr).Msg("platform stream interrupted")
			}
			return
		}
	}
}

func (s *Server) handleWebSearch(w http.ResponseWriter, r *http.Request) {
	q, err := domain.NormalizeWebQuery(r.URL.Query().Get("q"))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	if s.opts.Web == nil {
		s.writeError(w, r, &domain.ConfigurationError{Service: "web-search", Missing: "upstream"})
		return
	}

	res, err := s.opts.Web.WebSearch(r.Context(), q)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	if res.Items == nil {
		res.Items = []domain.WebResult{}
	}
	writeJSON(w, http.StatusOK, res)
}

func (s *Server) handleChat(w http.ResponseWriter, r *http.Request) {
	var body chatBody
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxChatBody))
	if err := dec.Decode(&body); err != nil {
		s.writeError(w, r, &domain.ValidationError{Field: "body", Message: "invalid JSON body"})
		return
	}
	if err := validateMessages(body.Messages); err != nil {
		s.writeError(w, r, err)
		return
	}
	if s.opts.Chat == nil {
		s.writeError(w, r, &domain.ConfigurationError{Service: "chat", Missing: "upstream"})
		return
	}

	sc, err := s.opts.Chat.Deltas(r.Context(), body.Messages)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	defer sc.Close()

	setStreamHeaders(w, "text/event-stream")
	w.WriteHeader(http.StatusOK)
	rc := http.NewResponseController(w)

	for sc.Next() {
		data, _ := json.Marshal(chatDelta{Content: sc.Text()})
		if _, err := fmt.Fprintf(w, "data: %s\n\n", data); err != nil {
			return
		}
		_ = rc.Flush()
	}
	if err := sc.Err(); err != nil {
		if domain.IsCanceled(err) {
			return
		}
		hlog.FromRequest(r).Warn().Err(err).Msg("chat stream interrupted")
		data, _ := json.Marshal(errorBody{Error: domain.PublicMessage(err, s.opts.Production), Code: domain.Code(err)})
		_, _ = fmt.Fprintf(w, "event: error\ndata: %s\n\n", data)
	}
	_, _ = io.WriteString(w, "data: [DONE]\n\n")
	_ = rc.Flush()
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	streams := 0
	if s.streams != nil {
		streams = s.streams.InUse()
	}
	writeJSON(w, http.StatusOK, map[string]any{"status": "ok", "streams": streams})
}

func validateMessages(msgs []upstream.Message) error {
	if len(msgs) == 0 {
		return &domain.ValidationError{Field: "messages", Message: "at least one message is required"}
	}
	if len(msgs) > maxChatMessages {
		return &domain.ValidationError{Field: "messages", Message: fmt.Sprintf("at most %d messages are allowed", maxChatMessages)}
	}
	for i, m := range msgs {
		switch m.Role {
		case "system", "user", "assistant":
		default:
			return &domain.ValidationError{Field: fmt.Sprintf("messages[%d].role", i), Message: "must be system, user or assistant"}
		}
		if strings.TrimSpace(m.Content) == "" {
			return &domain.ValidationError{Field: fmt.Sprintf("messages[%d].content", i), Message: "must not be empty"}
		}
	}
	return nil
}

// writeError loga o detalhe e devolve ao cliente só o que ele pode ver.
func (s *Server) writeError(w http.ResponseWriter, r *http.Request, err error) {
	status := domain.HTTPStatus(err)
	ev := hlog.FromRequest(r).Warn()
	if status >= http.StatusInternalServerError {
		ev = hlog.FromRequest(r).Error()
	}
	ev.Err(err).Int("status", status).Msg("request failed")

	writeJSON(w, status, errorBody{
		Error: domain.PublicMessage(err, s.opts.Production),
		Code:  domain.Code(err),
	})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func setStreamHeaders(w http.ResponseWriter, contentType string) {
	h := w.Header()
	h.Set("Content-Type", contentType)
	h.Set("Cache-Control", "no-cache")
	h.Set("X-Accel-Buffering", "no")
}
