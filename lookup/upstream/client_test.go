package upstream

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"lookup-gateway/lookup/domain"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPlatformClient_StreamsBody(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/lookup", r.URL.Path)
		assert.Equal(t, "alice", r.URL.Query().Get("username"))
		_, err := uuid.Parse(r.Header.Get(HeaderRequestID))
		assert.NoError(t, err)
		w.Header().Set("Content-Type", "application/x-ndjson")
		_, _ = io.WriteString(w, `{"total":1}`+"\n")
	}))
	defer srv.Close()

	c := NewPlatformClient(Endpoint{BaseURL: srv.URL + "/"}, "")
	body, err := c.StreamPlatforms(context.Background(), "alice")
	require.NoError(t, err)
	defer body.Close()

	data, err := io.ReadAll(body)
	require.NoError(t, err)
	assert.Equal(t, `{"total":1}`+"\n", string(data))
}

func TestClient_MapsErrorStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "upstream exploded", http.StatusBadGateway)
	}))
	defer srv.Close()

	_, err := NewPlatformClient(Endpoint{BaseURL: srv.URL}, "").StreamPlatforms(context.Background(), "alice")
	var ue *domain.UpstreamError
	require.ErrorAs(t, err, &ue)
	assert.Equal(t, http.StatusBadGateway, ue.Status)
	assert.Equal(t, "platforms", ue.Service)
	assert.Equal(t, "upstream exploded", ue.Body)
}

func TestClient_MissingBaseURL(t *testing.T) {
	_, err := NewWebSearchClient(Endpoint{}, "").WebSearch(context.Background(), "alice")
	var ce *domain.ConfigurationError
	require.ErrorAs(t, err, &ce)
	assert.Equal(t, "web-search", ce.Service)
}

func TestClient_HeaderTimeout(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-r.Context().Done():
		case <-time.After(2 * time.Second):
		}
	}))
	defer srv.Close()

	c := NewPlatformClient(Endpoint{BaseURL: srv.URL, Timeout: 20 * time.Millisecond}, "")
	_, err := c.StreamPlatforms(context.Background(), "alice")
	var te *domain.TimeoutError
	require.ErrorAs(t, err, &te)
	assert.Equal(t, http.StatusGatewayTimeout, domain.HTTPStatus(err))
}

func TestClient_CanceledIsNotTimeout(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		<-r.Context().Done()
	}))
	defer srv.Close()

	ctx, cancel := context.WithCancel(context.Background())
	time.AfterFunc(10*time.Millisecond, cancel)

	_, err := NewPlatformClient(Endpoint{BaseURL: srv.URL}, "").StreamPlatforms(ctx, "alice")
	require.Error(t, err)
	assert.True(t, domain.IsCanceled(err))
	var te *domain.TimeoutError
	assert.False(t, errors.As(err, &te))
}

func TestClient_RatePacing(t *testing.T) {
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		_, _ = io.WriteString(w, `{"items":[]}`)
	}))
	defer srv.Close()

	c := NewWebSearchClient(Endpoint{BaseURL: srv.URL, RatePerSecond: 0.01, Burst: 1}, "")
	_, err := c.WebSearch(context.Background(), "alice")
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	_, err = c.WebSearch(ctx, "alice")
	var te *domain.TimeoutError
	require.ErrorAs(t, err, &te)
	assert.Equal(t, int32(1), hits.Load())
}

func TestWebSearchClient_SendsKeyAndParses(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "Bearer secret", r.Header.Get("Authorization"))
		assert.Equal(t, "alice dev", r.URL.Query().Get("q"))
		_, _ = io.WriteString(w, `{"answer":"a developer","results":[{"title":"Alice","url":"https://a.example","content":"bio"},{"title":"no url"}]}`)
	}))
	defer srv.Close()

	c := NewWebSearchClient(Endpoint{BaseURL: srv.URL, APIKey: "secret", Timeout: time.Second}, "/search")
	res, err := c.WebSearch(context.Background(), "alice dev")
	require.NoError(t, err)
	assert.Equal(t, "alice dev", res.Query)
	assert.Equal(t, "a developer", res.Answer)
	require.Len(t, res.Items, 1)
	assert.Equal(t, domain.WebResult{Title: "Alice", URL: "https://a.example", Snippet: "bio"}, res.Items[0])
}

func TestParseWebResults_Shapes(t *testing.T) {
	gateway, err := ParseWebResults("q", []byte(`{"query":"alice","items":[{"title":"A","url":"https://a","snippet":"s","source":"web"}]}`))
	require.NoError(t, err)
	assert.Equal(t, "alice", gateway.Query)
	assert.Equal(t, "web", gateway.Items[0].Source)

	brave, err := ParseWebResults("q", []byte(`{"web":{"results":[{"title":"B","url":"https://b","description":"d","profile":{"name":"Site"}}]}}`))
	require.NoError(t, err)
	assert.Equal(t, domain.WebResult{Title: "B", URL: "https://b", Snippet: "d", Source: "Site"}, brave.Items[0])

	empty, err := ParseWebResults("q", []byte(`{}`))
	require.NoError(t, err)
	assert.True(t, empty.Empty())
	assert.NotNil(t, empty.Items)

	_, err = ParseWebResults("q", []byte(`<html>`))
	var de *domain.DecodeError
	assert.ErrorAs(t, err, &de)
}

func TestChatClient_RequiresKey(t *testing.T) {
	_, err := NewChatClient(Endpoint{BaseURL: "http://unused.invalid"}, ChatConfig{}).Deltas(context.Background(), nil)
	var ce *domain.ConfigurationError
	require.ErrorAs(t, err, &ce)
	assert.Equal(t, http.StatusServiceUnavailable, domain.HTTPStatus(err))
}

func TestChatClient_StreamsDeltas(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, DefaultChatPath, r.URL.Path)
		assert.Equal(t, "text/event-stream", r.Header.Get("Accept"))
		var req chatRequest
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.True(t, req.Stream)
		assert.Equal(t, DefaultChatModel, req.Model)
		assert.Equal(t, []Message{{Role: "user", Content: "hi"}}, req.Messages)

		w.Header().Set("Content-Type", "text/event-stream")
		_, _ = io.WriteString(w, "data: {\"choices\":[{\"delta\":{\"content\":\"Hel\"}}]}\n\n")
		_, _ = io.WriteString(w, "data: {\"choices\":[{\"delta\":{\"content\":\"lo\"}}]}\n\n")
		_, _ = io.WriteString(w, "data: [DONE]\n\n")
	}))
	defer srv.Close()

	c := NewChatClient(Endpoint{BaseURL: srv.URL, APIKey: "k"}, ChatConfig{})
	sc, err := c.Deltas(context.Background(), []Message{{Role: "user", Content: "hi"}})
	require.NoError(t, err)
	defer sc.Close()

	var got string
	for sc.Next() {
		got += sc.Text()
	}
	require.NoError(t, sc.Err())
	assert.Equal(t, "Hello", got)
}

func TestChatClient_KeyOptionalBehindGateway(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/chat", r.URL.Path)
		assert.Empty(t, r.Header.Get("Authorization"))
		_, _ = io.WriteString(w, "data: {\"content\":\"ok\"}\n\ndata: [DONE]\n\n")
	}))
	defer srv.Close()

	c := NewChatClient(Endpoint{BaseURL: srv.URL}, ChatConfig{Path: "/api/chat", KeyOptional: true})
	sc, err := c.Deltas(context.Background(), []Message{{Role: "user", Content: "hi"}})
	require.NoError(t, err)
	defer sc.Close()
	require.True(t, sc.Next())
	assert.Equal(t, "ok", sc.Text())
	assert.False(t, sc.Next())
}
