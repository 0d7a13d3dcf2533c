package search

import (
	"slices"

	"lookup-gateway/lookup/domain"
)

// Progress é o andamento da enumeração de plataformas.
type Progress struct {
	Total      int     `json:"total"`
	Completed  int     `json:"completed"`
	Percentage float64 `json:"percentage"`
}

func (p *Progress) recompute() {
	if p.Total <= 0 {
		p.Percentage = 0
		return
	}
	pct := float64(p.Completed) * 100 / float64(p.Total)
	p.Percentage = min(pct, 100)
}

// State é o que a busca corrente publica. Cada valor entregue é uma cópia;
// quem recebe pode guardar sem sincronização.
type State struct {
	SessionID   uint64                `json:"sessionId"`
	Query       string                `json:"query"`
	IsSearching bool                  `json:"isSearching"`
	Results     []domain.ResultRecord `json:"results"`
	Web         domain.WebResults     `json:"web"`
	Progress    Progress              `json:"progress"`
	PlatformErr string                `json:"platformError,omitempty"`
	WebErr      string                `json:"webError,omitempty"`
	FromCache   bool                  `json:"fromCache"`
}

func (s State) clone() State {
	s.Results = slices.Clone(s.Results)
	s.Web.Items = slices.Clone(s.Web.Items)
	return s
}

// Found conta os perfis encontrados.
func (s State) Found() int {
	n := 0
	for _, r := range s.Results {
		if r.Found() {
			n++
		}
	}
	return n
}
