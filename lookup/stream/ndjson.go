package stream

import (
	"bufio"
	"bytes"
	"errors"
	"io"
	"sync"

	"lookup-gateway/lookup/domain"
)

// RecordScanner lê o stream NDJSON do serviço de plataformas.
//
// Cada linha completa é classificada em resultado ou progresso. Linhas
// malformadas são logadas e puladas; o stream só termina no EOF, num erro de
// leitura ou em Close. O corpo é fechado assim que a iteração termina.
//
//	scanner, err := stream.NewRecordScanner(resp.Body)
//	for scanner.Next() {
//	    rec := scanner.Record()
//	}
//	if err := scanner.Err(); err != nil { ... }
type RecordScanner struct {
	body   io.ReadCloser
	reader *bufio.Reader
	opts   options

	current   domain.Record
	err       error
	done      bool
	malformed int
	closeOnce sync.Once
	closeErr  error
}

func NewRecordScanner(body io.ReadCloser, opts ...Option) (*RecordScanner, error) {
	if body == nil {
		return nil, ErrNoBody
	}
	o := buildOptions(opts)
	return &RecordScanner{
		body:   body,
		reader: bufio.NewReaderSize(body, o.readSize),
		opts:   o,
	}, nil
}

// Next avança para o próximo registro reconhecido.
func (s *RecordScanner) Next() bool {
	for !s.done {
		line, err := s.readLine()
		if err != nil && !errors.Is(err, io.EOF) {
			// leitura abortada no meio de uma linha: o fragmento não é confiável
			s.finish(err)
			return false
		}
		rec, ok := s.decode(line)
		if err != nil {
			s.finish(err)
		}
		if ok {
			s.current = rec
			return true
		}
	}
	return false
}

// Record devolve o registro corrente. Só vale depois de Next retornar true.
func (s *RecordScanner) Record() domain.Record { return s.current }

// Err devolve o erro de leitura, se houver. EOF não é erro.
func (s *RecordScanner) Err() error { return s.err }

// Malformed conta quantas linhas foram descartadas.
func (s *RecordScanner) Malformed() int { return s.malformed }

// Close libera o corpo. Pode ser chamado mais de uma vez.
func (s *RecordScanner) Close() error {
	s.done = true
	s.closeOnce.Do(func() { s.closeErr = s.body.Close() })
	return s.closeErr
}

func (s *RecordScanner) finish(err error) {
	if err != nil && !errors.Is(err, io.EOF) {
		s.err = err
	}
	_ = s.Close()
}

// readLine junta fatias até o '\n'. O último fragmento sem '\n' vem junto
// com o io.EOF.
func (s *RecordScanner) readLine() ([]byte, error) {
	var line []byte
	tooLong := false
	for {
		frag, err := s.reader.ReadSlice('\n')
		if !tooLong {
			if len(line)+len(frag) > s.opts.maxLine {
				tooLong = true
				line = nil
			} else {
				line = append(line, frag...)
			}
		}
		if errors.Is(err, bufio.ErrBufferFull) {
			continue
		}
		if tooLong {
			s.reportMalformed(&domain.DecodeError{Line: "<oversized line>", Err: errLineTooLong})
			return nil, err
		}
		return line, err
	}
}

func (s *RecordScanner) decode(line []byte) (domain.Record, bool) {
	line = bytes.TrimSpace(line)
	if len(line) == 0 {
		return domain.Record{}, false
	}
	rec, err := domain.Classify(line)
	if err != nil {
		s.reportMalformed(err)
		return domain.Record{}, false
	}
	if rec.Kind == domain.KindUnknown {
		s.opts.log.Debug().Str("line", string(line)).Msg("skipping unrecognized stream record")
		return domain.Record{}, false
	}
	return rec, true
}

func (s *RecordScanner) reportMalformed(err error) {
	s.malformed++
	s.opts.log.Warn().Err(err).Msg("skipping malformed stream line")
}
