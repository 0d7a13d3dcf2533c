package upstream

import (
	"context"
	"net/http"

	"lookup-gateway/lookup/domain"
	"lookup-gateway/lookup/stream"
)

const (
	DefaultChatModel = "gpt-4o-mini"
	DefaultChatPath  = "/chat/completions"
)

type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatRequest struct {
	Model    string    `json:"model"`
	Messages []Message `json:"messages"`
	Stream   bool      `json:"stream"`
}

type ChatConfig struct {
	Model string
	Path  string
	// KeyOptional permite chamar sem API key, quando o próprio gateway está na frente.
	KeyOptional bool
	Stream      []stream.Option
}

// ChatClient fala com um endpoint de chat completions compatível com OpenAI.
type ChatClient struct {
	base
	cfg ChatConfig
}

func NewChatClient(ep Endpoint, cfg ChatConfig, opts ...Option) *ChatClient {
	if cfg.Model == "" {
		cfg.Model = DefaultChatModel
	}
	if cfg.Path == "" {
		cfg.Path = DefaultChatPath
	}
	return &ChatClient{base: newBase("chat", ep, opts), cfg: cfg}
}

// Deltas inicia a conversa em modo stream. O scanner fecha o body ao terminar.
func (c *ChatClient) Deltas(ctx context.Context, messages []Message) (*stream.DeltaScanner, error) {
	if c.endpoint.APIKey == "" && !c.cfg.KeyOptional {
		return nil, &domain.ConfigurationError{Service: c.service, Missing: "API key"}
	}
	resp, err := c.do(ctx, http.MethodPost, c.cfg.Path, nil,
		chatRequest{Model: c.cfg.Model, Messages: messages, Stream: true}, "text/event-stream")
	if err != nil {
		return nil, err
	}
	return stream.NewDeltaScanner(resp.Body, c.cfg.Stream...)
}
