package upstream

import (
	"context"
	"io"
	"net/http"
	"net/url"
)

const DefaultPlatformsPath = "/api/lookup"

// PlatformClient abre o stream NDJSON de checagem de plataformas.
type PlatformClient struct {
	base
	path string
}

func NewPlatformClient(ep Endpoint, path string, opts ...Option) *PlatformClient {
	if path == "" {
		path = DefaultPlatformsPath
	}
	return &PlatformClient{base: newBase("platforms", ep, opts), path: path}
}

// StreamPlatforms devolve o body ainda aberto; quem chama fecha.
func (c *PlatformClient) StreamPlatforms(ctx context.Context, username string) (io.ReadCloser, error) {
	resp, err := c.do(ctx, http.MethodGet, c.path, url.Values{"username": {username}}, nil, "application/x-ndjson")
	if err != nil {
		return nil, err
	}
	return resp.Body, nil
}
