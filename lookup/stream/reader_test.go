package stream

import (
	"io"
	"sync/atomic"
)

// chunkReader entrega os bytes exatamente nas fatias informadas, como uma
// resposta HTTP que chega aos pedaços.
type chunkReader struct {
	chunks [][]byte
	err    error
	closed atomic.Bool
}

func newChunkReader(chunks ...string) *chunkReader {
	r := &chunkReader{}
	for _, c := range chunks {
		r.chunks = append(r.chunks, []byte(c))
	}
	return r
}

func (r *chunkReader) Read(p []byte) (int, error) {
	if len(r.chunks) == 0 {
		if r.err != nil {
			return 0, r.err
		}
		return 0, io.EOF
	}
	n := copy(p, r.chunks[0])
	r.chunks[0] = r.chunks[0][n:]
	if len(r.chunks[0]) == 0 {
		r.chunks = r.chunks[1:]
	}
	return n, nil
}

func (r *chunkReader) Close() error {
	r.closed.Store(true)
	return nil
}
