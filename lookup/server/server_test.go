package server

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"testing/iotest"
	"time"

	"lookup-gateway/clock"
	"lookup-gateway/lookup/domain"
	"lookup-gateway/lookup/stream"
	"lookup-gateway/lookup/upstream"
	"lookup-gateway/middleware/ratelimit"
	rldomain "lookup-gateway/middleware/ratelimit/domain"
	"lookup-gateway/middleware/ratelimit/infra"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type platformFunc func(ctx context.Context, username string) (io.ReadCloser, error)

func (f platformFunc) StreamPlatforms(ctx context.Context, username string) (io.ReadCloser, error) {
	return f(ctx, username)
}

type webFunc func(ctx context.Context, query string) (domain.WebResults, error)

func (f webFunc) WebSearch(ctx context.Context, query string) (domain.WebResults, error) {
	return f(ctx, query)
}

type chatFunc func(ctx context.Context, msgs []upstream.Message) (*stream.DeltaScanner, error)

func (f chatFunc) Deltas(ctx context.Context, msgs []upstream.Message) (*stream.DeltaScanner, error) {
	return f(ctx, msgs)
}

const ndjsonBody = `{"total":1}` + "\n" + `{"name":"github","url":"https://github.com/alice","check":{"exists":true}}` + "\n"

func newTestServer(opts Options) *Server {
	if opts.Limiter == nil {
		opts.Limiter = infra.NewBucketStore(infra.WithClock(clock.NewFake(time.Unix(1_700_000_000, 0))))
	}
	if opts.Limits == (Limits{}) {
		opts.Limits = DefaultLimits()
	}
	if opts.Platforms == nil {
		opts.Platforms = platformFunc(func(context.Context, string) (io.ReadCloser, error) {
			return io.NopCloser(strings.NewReader(ndjsonBody)), nil
		})
	}
	return New(opts)
}

func do(s http.Handler, method, target string, body string) *httptest.ResponseRecorder {
	var r io.Reader
	if body != "" {
		r = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, target, r)
	rec := httptest.NewRecorder()
	s.ServeHTTP(rec, req)
	return rec
}

func decodeError(t *testing.T, rec *httptest.ResponseRecorder) errorBody {
	t.Helper()
	var body errorBody
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&body))
	return body
}

func TestLookup_StreamsUpstreamBody(t *testing.T) {
	var got string
	s := newTestServer(Options{Platforms: platformFunc(func(_ context.Context, u string) (io.ReadCloser, error) {
		got = u
		return io.NopCloser(strings.NewReader(ndjsonBody)), nil
	})})

	rec := do(s, http.MethodGet, "/api/lookup?username=%40alice", "")

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "alice", got)
	assert.Equal(t, "application/x-ndjson", rec.Header().Get("Content-Type"))
	assert.Equal(t, ndjsonBody, rec.Body.String())
	assert.Equal(t, "10", rec.Header().Get(ratelimit.HeaderLimit))
	assert.Equal(t, "9", rec.Header().Get(ratelimit.HeaderRemaining))
	_, err := uuid.Parse(rec.Header().Get(upstream.HeaderRequestID))
	assert.NoError(t, err)
}

func TestLookup_KeepsClientRequestID(t *testing.T) {
	s := newTestServer(Options{})
	id := uuid.NewString()

	req := httptest.NewRequest(http.MethodGet, "/api/lookup?username=alice", nil)
	req.Header.Set(upstream.HeaderRequestID, id)
	rec := httptest.NewRecorder()
	s.ServeHTTP(rec, req)

	assert.Equal(t, id, rec.Header().Get(upstream.HeaderRequestID))
}

func TestLookup_RejectsInvalidUsername(t *testing.T) {
	s := newTestServer(Options{})

	for _, target := range []string{"/api/lookup", "/api/lookup?username=bad%20name"} {
		rec := do(s, http.MethodGet, target, "")
		assert.Equal(t, http.StatusBadRequest, rec.Code, target)
		assert.Equal(t, "invalid_request", decodeError(t, rec).Code)
	}
}

func TestLookup_RateLimited(t *testing.T) {
	s := newTestServer(Options{})

	for i := 0; i < 10; i++ {
		rec := do(s, http.MethodGet, "/api/lookup?username=alice", "")
		require.Equal(t, http.StatusOK, rec.Code, "request %d", i+1)
	}

	rec := do(s, http.MethodGet, "/api/lookup?username=alice", "")
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.NotEmpty(t, rec.Header().Get(ratelimit.HeaderRetryAfter))
	assert.Equal(t, "0", rec.Header().Get(ratelimit.HeaderRemaining))

	// as rotas têm contadores separados
	rec = do(s, http.MethodGet, "/api/web-search?q=alice", "")
	assert.NotEqual(t, http.StatusTooManyRequests, rec.Code)
}

func TestLookup_UpstreamErrorByMode(t *testing.T) {
	failing := platformFunc(func(context.Context, string) (io.ReadCloser, error) {
		return nil, &domain.UpstreamError{Service: "platforms", Status: 500, Body: "db password leaked"}
	})

	dev := do(newTestServer(Options{Platforms: failing}), http.MethodGet, "/api/lookup?username=alice", "")
	assert.Equal(t, http.StatusBadGateway, dev.Code)
	assert.Contains(t, decodeError(t, dev).Error, "db password leaked")

	prod := do(newTestServer(Options{Platforms: failing, Production: true}), http.MethodGet, "/api/lookup?username=alice", "")
	assert.Equal(t, http.StatusBadGateway, prod.Code)
	body := decodeError(t, prod)
	assert.NotContains(t, body.Error, "db password")
	assert.Equal(t, "upstream_error", body.Code)
}

func TestLookup_TimeoutMapsToGatewayTimeout(t *testing.T) {
	s := newTestServer(Options{Platforms: platformFunc(func(context.Context, string) (io.ReadCloser, error) {
		return nil, &domain.TimeoutError{Service: "platforms", Err: context.DeadlineExceeded}
	})})

	rec := do(s, http.MethodGet, "/api/lookup?username=alice", "")
	assert.Equal(t, http.StatusGatewayTimeout, rec.Code)
	assert.Equal(t, "upstream_timeout", decodeError(t, rec).Code)
}

func TestLookup_ConcurrencyLimit(t *testing.T) {
	pr, pw := io.Pipe()
	started := make(chan struct{})
	s := newTestServer(Options{
		MaxStreams:     1,
		AcquireTimeout: 10 * time.Millisecond,
		Platforms: platformFunc(func(context.Context, string) (io.ReadCloser, error) {
			close(started)
			return pr, nil
		}),
	})

	done := make(chan *httptest.ResponseRecorder)
	go func() {
		done <- do(s, http.MethodGet, "/api/lookup?username=alice", "")
	}()
	<-started

	health := do(s, http.MethodGet, "/healthz", "")
	assert.JSONEq(t, `{"status":"ok","streams":1}`, health.Body.String())

	second := do(s, http.MethodGet, "/api/lookup?username=bob", "")
	assert.Equal(t, http.StatusServiceUnavailable, second.Code)

	_, err := io.WriteString(pw, ndjsonBody)
	require.NoError(t, err)
	require.NoError(t, pw.Close())
	first := <-done
	assert.Equal(t, http.StatusOK, first.Code)
	assert.Equal(t, ndjsonBody, first.Body.String())
}

func TestWebSearch(t *testing.T) {
	s := newTestServer(Options{Web: webFunc(func(_ context.Context, q string) (domain.WebResults, error) {
		return domain.WebResults{Query: q, Items: []domain.WebResult{{Title: "A", URL: "https://a.example"}}}, nil
	})})

	rec := do(s, http.MethodGet, "/api/web-search?q=alice+dev", "")
	require.Equal(t, http.StatusOK, rec.Code)
	var res domain.WebResults
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&res))
	assert.Equal(t, "alice dev", res.Query)
	assert.Len(t, res.Items, 1)
	assert.Equal(t, "20", rec.Header().Get(ratelimit.HeaderLimit))

	rec = do(s, http.MethodGet, "/api/web-search?q=", "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = do(s, http.MethodGet, "/api/web-search?q="+strings.Repeat("x", 257), "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestWebSearch_NotConfigured(t *testing.T) {
	rec := do(newTestServer(Options{}), http.MethodGet, "/api/web-search?q=alice", "")
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	assert.Equal(t, "not_configured", decodeError(t, rec).Code)
}

func TestChat_ReemitsDeltas(t *testing.T) {
	upstreamSSE := "data: {\"choices\":[{\"delta\":{\"content\":\"Hel\"}}]}\n\n" +
		": keep-alive\n\n" +
		"data: {\"choices\":[{\"delta\":{\"content\":\"lo\"}}]}\n\n" +
		"data: [DONE]\n\n" +
		"data: {\"content\":\"ignored\"}\n\n"

	var got []upstream.Message
	s := newTestServer(Options{Chat: chatFunc(func(_ context.Context, msgs []upstream.Message) (*stream.DeltaScanner, error) {
		got = msgs
		return stream.NewDeltaScanner(io.NopCloser(strings.NewReader(upstreamSSE)))
	})})

	rec := do(s, http.MethodPost, "/api/chat", `{"messages":[{"role":"user","content":"hi"}]}`)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "text/event-stream", rec.Header().Get("Content-Type"))
	assert.Equal(t, "data: {\"content\":\"Hel\"}\n\ndata: {\"content\":\"lo\"}\n\ndata: [DONE]\n\n", rec.Body.String())
	assert.Equal(t, []upstream.Message{{Role: "user", Content: "hi"}}, got)
}

func TestChat_FailureMidStreamReachesClient(t *testing.T) {
	s := newTestServer(Options{Chat: chatFunc(func(context.Context, []upstream.Message) (*stream.DeltaScanner, error) {
		body := io.MultiReader(
			strings.NewReader("data: {\"content\":\"Hel\"}\n\n"),
			iotest.ErrReader(&domain.TimeoutError{Service: "chat"}),
		)
		return stream.NewDeltaScanner(io.NopCloser(body))
	})})

	rec := do(s, http.MethodPost, "/api/chat", `{"messages":[{"role":"user","content":"hi"}]}`)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "event: error\n")

	// o mesmo decodificador, do lado do cliente, vê a falha tipada
	sc, err := stream.NewDeltaScanner(io.NopCloser(strings.NewReader(rec.Body.String())))
	require.NoError(t, err)
	var got []string
	for sc.Next() {
		got = append(got, sc.Text())
	}
	assert.Equal(t, []string{"Hel"}, got)
	var te *domain.TimeoutError
	assert.ErrorAs(t, sc.Err(), &te)
}

func TestChat_Validation(t *testing.T) {
	s := newTestServer(Options{Chat: chatFunc(func(context.Context, []upstream.Message) (*stream.DeltaScanner, error) {
		t.Error("chat upstream called for invalid body")
		return nil, nil
	})})

	tooMany := make([]upstream.Message, maxChatMessages+1)
	for i := range tooMany {
		tooMany[i] = upstream.Message{Role: "user", Content: "x"}
	}
	raw, err := json.Marshal(chatBody{Messages: tooMany})
	require.NoError(t, err)

	for _, body := range []string{
		`not json`,
		`{"messages":[]}`,
		`{"messages":[{"role":"robot","content":"hi"}]}`,
		`{"messages":[{"role":"user","content":"  "}]}`,
		string(raw),
	} {
		rec := do(s, http.MethodPost, "/api/chat", body)
		assert.Equal(t, http.StatusBadRequest, rec.Code, body)
	}
}

func TestChat_MissingKey(t *testing.T) {
	chat := upstream.NewChatClient(upstream.Endpoint{BaseURL: "http://unused.invalid"}, upstream.ChatConfig{})
	s := newTestServer(Options{Chat: chat, Limits: Limits{Chat: rldomain.Config{Interval: time.Minute, MaxRequests: 5}}})

	rec := do(s, http.MethodPost, "/api/chat", `{"messages":[{"role":"user","content":"hi"}]}`)
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	assert.Equal(t, "not_configured", decodeError(t, rec).Code)
}

func TestStatsRecordedPerRoute(t *testing.T) {
	stats := infra.NewMemoryStatsStore()
	s := newTestServer(Options{Stats: stats, Web: webFunc(func(_ context.Context, q string) (domain.WebResults, error) {
		return domain.WebResults{Query: q}, nil
	})})

	do(s, http.MethodGet, "/api/lookup?username=alice", "")
	do(s, http.MethodGet, "/api/web-search?q=alice", "")
	do(s, http.MethodGet, "/api/web-search?q=bob", "")

	byRoute := stats.ByRoute()
	assert.Equal(t, int64(1), byRoute["lookup"].Allowed)
	assert.Equal(t, int64(2), byRoute["web-search"].Allowed)
}

func TestHealthz(t *testing.T) {
	rec := do(newTestServer(Options{}), http.MethodGet, "/healthz", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"status":"ok","streams":0}`, rec.Body.String())
}
