package domain

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/tidwall/gjson"
)

// ResultRecord é o resultado da checagem de um username numa plataforma.
type ResultRecord struct {
	Platform       string    `json:"name"`
	URL            string    `json:"url"`
	Category       string    `json:"category,omitempty"`
	NSFW           bool      `json:"nsfw,omitempty"`
	Tags           []string  `json:"tags,omitempty"`
	Check          Existence `json:"check"`
	ResponseTimeMs float64   `json:"response_time_ms,omitempty"`
}

// Existence é a sub-estrutura que identifica um ResultRecord no stream.
type Existence struct {
	Exists bool `json:"exists"`
}

// Found informa se o perfil existe na plataforma.
func (r ResultRecord) Found() bool { return r.Check.Exists }

// ProgressRecord informa o andamento da enumeração.
//
// Completed vem como número (quantas plataformas terminaram) ou como true
// (enumeração encerrada); no segundo caso Done fica true e Completed nil.
type ProgressRecord struct {
	Total     *int
	Completed *int
	Done      bool
}

type Kind int

const (
	KindUnknown Kind = iota
	KindResult
	KindProgress
)

func (k Kind) String() string {
	switch k {
	case KindResult:
		return "result"
	case KindProgress:
		return "progress"
	}
	return "unknown"
}

// Record é a união discriminada das linhas do stream de plataformas.
type Record struct {
	Kind     Kind
	Result   *ResultRecord
	Progress *ProgressRecord
}

var errNotObject = errors.New("line is not a JSON object")

// Classify decodifica uma linha do stream de plataformas.
//
// A discriminação é estrutural: check.exists booleano => resultado; senão,
// total ou completed presentes => progresso; senão KindUnknown. As duas formas
// são disjuntas porque o progresso nunca é testado quando há check.exists.
func Classify(raw []byte) (Record, error) {
	if !gjson.ValidBytes(raw) {
		return Record{}, &DecodeError{Line: truncate(raw), Err: errors.New("invalid JSON")}
	}
	doc := gjson.ParseBytes(raw)
	if !doc.IsObject() {
		return Record{}, &DecodeError{Line: truncate(raw), Err: errNotObject}
	}

	if exists := doc.Get("check.exists"); exists.IsBool() {
		var rec ResultRecord
		if err := json.Unmarshal(raw, &rec); err != nil {
			return Record{}, &DecodeError{Line: truncate(raw), Err: err}
		}
		return Record{Kind: KindResult, Result: &rec}, nil
	}

	total, completed := doc.Get("total"), doc.Get("completed")
	if !total.Exists() && !completed.Exists() {
		return Record{Kind: KindUnknown}, nil
	}

	p := &ProgressRecord{}
	if total.Type == gjson.Number {
		n := int(total.Int())
		p.Total = &n
	}
	switch {
	case completed.Type == gjson.Number:
		n := int(completed.Int())
		p.Completed = &n
	case completed.IsBool():
		p.Done = completed.Bool()
	}
	if p.Total == nil && p.Completed == nil && !p.Done {
		return Record{Kind: KindUnknown}, nil
	}
	return Record{Kind: KindProgress, Progress: p}, nil
}

func truncate(raw []byte) string {
	const max = 120
	if len(raw) > max {
		return string(raw[:max]) + "…"
	}
	return string(raw)
}

// WebResult é um item da busca web auxiliar.
type WebResult struct {
	Title   string `json:"title"`
	URL     string `json:"url"`
	Snippet string `json:"snippet,omitempty"`
	Source  string `json:"source,omitempty"`
}

// WebResults é o payload secundário de uma busca. Pode estar vazio.
type WebResults struct {
	Query  string      `json:"query,omitempty"`
	Items  []WebResult `json:"items"`
	Answer string      `json:"answer,omitempty"`
}

func (w WebResults) Empty() bool { return len(w.Items) == 0 && w.Answer == "" }

func (r Record) String() string {
	switch r.Kind {
	case KindResult:
		return fmt.Sprintf("result(%s exists=%v)", r.Result.Platform, r.Result.Check.Exists)
	case KindProgress:
		return "progress"
	}
	return "unknown"
}
