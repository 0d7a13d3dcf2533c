package ratelimit

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"lookup-gateway/middleware/ratelimit/domain"

	"github.com/stretchr/testify/assert"
)

func TestIdentityFunc_PrefersEdgeHeadersInOrder(t *testing.T) {
	fn := IdentityFunc(true)

	r := httptest.NewRequest(http.MethodGet, "http://example/", nil)
	r.RemoteAddr = "10.0.0.9:5555"
	r.Header.Set("X-Forwarded-For", "1.2.3.4, 5.6.7.8")
	r.Header.Set("X-Real-IP", "9.9.9.9")
	r.Header.Set("CF-Connecting-IP", "8.8.8.8")

	assert.Equal(t, domain.Key("8.8.8.8"), fn(r))

	r.Header.Del("CF-Connecting-IP")
	assert.Equal(t, domain.Key("9.9.9.9"), fn(r))

	r.Header.Del("X-Real-IP")
	assert.Equal(t, domain.Key("1.2.3.4"), fn(r), "expected first XFF ip")
}

func TestIdentityFunc_IgnoresHeadersWhenUntrusted(t *testing.T) {
	fn := IdentityFunc(false)

	r := httptest.NewRequest(http.MethodGet, "http://example/", nil)
	r.RemoteAddr = "10.0.0.9:5555"
	r.Header.Set("CF-Connecting-IP", "8.8.8.8")

	assert.Equal(t, domain.Key("10.0.0.9"), fn(r))
}

func TestIdentityFunc_FallsBackToFingerprint(t *testing.T) {
	fn := IdentityFunc(true)

	r := httptest.NewRequest(http.MethodGet, "http://example/", nil)
	r.RemoteAddr = ""
	r.Header.Set("User-Agent", "Mozilla/5.0")
	r.Header.Set("Accept", "text/html")

	got := fn(r)
	assert.True(t, strings.HasPrefix(string(got), "fp:"), "expected fingerprint, got %q", got)
	assert.Equal(t, got, fn(r))

	r.Header.Set("User-Agent", "curl/8.0")
	assert.NotEqual(t, got, fn(r))
}

func TestIdentityFunc_SanitizesHostileHeader(t *testing.T) {
	fn := IdentityFunc(true)

	r := httptest.NewRequest(http.MethodGet, "http://example/", nil)
	r.Header.Set("X-Real-IP", strings.Repeat("<evil>", 100))

	got := fn(r)
	assert.True(t, strings.HasPrefix(string(got), "h:"), "expected hashed key, got %q", got)
	assert.LessOrEqual(t, len(got), domain.MaxKeyLen)
}
