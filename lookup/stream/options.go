package stream

import (
	"errors"

	"github.com/rs/zerolog"
)

// DefaultMaxLineBytes limita uma linha NDJSON. Linhas maiores são descartadas.
const DefaultMaxLineBytes = 1 << 20

// ErrNoBody é devolvido quando a resposta não tem corpo legível.
var ErrNoBody = errors.New("stream: response has no readable body")

var errLineTooLong = errors.New("line exceeds maximum size")

type options struct {
	log      zerolog.Logger
	maxLine  int
	readSize int
}

type Option func(*options)

func WithLogger(log zerolog.Logger) Option {
	return func(o *options) { o.log = log }
}

func WithMaxLineBytes(n int) Option {
	return func(o *options) { o.maxLine = n }
}

// WithReadSize define o tamanho do buffer de leitura (e da maior fatia lida de uma vez).
func WithReadSize(n int) Option {
	return func(o *options) { o.readSize = n }
}

func buildOptions(opts []Option) options {
	o := options{
		log:      zerolog.Nop(),
		maxLine:  DefaultMaxLineBytes,
		readSize: 32 * 1024,
	}
	for _, opt := range opts {
		opt(&o)
	}
	if o.readSize < 16 {
		o.readSize = 16
	}
	return o
}
