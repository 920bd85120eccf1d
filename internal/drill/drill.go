// Package drill picks question batches for a practice session.
package drill

import (
	"fmt"
	"strings"

	"github.com/pavelanni/cqdrill/internal/model"
	"github.com/pavelanni/cqdrill/internal/store"
)

// Defaults for batch selection.
const (
	DefaultBatchSize  = 2
	DefaultCandidateN = 200
)

// Domains.
const (
	DomainBusiness = "business"
	DomainDaily    = "daily"
)

var domainTags = map[string][]string{
	DomainBusiness: {"business", "workplace", "meeting", "team", "office", "review", "deadline", "decision"},
	DomainDaily:    {"daily", "日常", "friend", "family", "生活", "home", "communication"},
}

var domainAliases = map[string]string{
	"ビジネス": DomainBusiness,
	"日常":   DomainDaily,
}

// NormalizeDomain maps a domain label to its canonical name. It returns an
// error for labels with no tag set; the empty label means no domain filter.
func NormalizeDomain(domain string) (string, error) {
	d := strings.ToLower(strings.TrimSpace(domain))
	if canonical, ok := domainAliases[d]; ok {
		d = canonical
	}
	if d == "" {
		return "", nil
	}
	if _, ok := domainTags[d]; !ok {
		return "", fmt.Errorf("%w: unknown domain %q", store.ErrInvalidInput, domain)
	}
	return d, nil
}

// Supply is the question source a Picker draws from.
type Supply interface {
	Fetch(f store.Filter, limit int) ([]model.Question, error)
}

// Batch is one set of questions served to a user. Want is the batch size
// that was asked for after capping.
type Batch struct {
	Questions []model.Question
	Want      int
}

// Short reports whether fewer questions were found than asked for.
func (b Batch) Short() bool {
	return len(b.Questions) < b.Want
}

// Picker serves batches without repeating questions until the skill or
// domain changes. It is not safe for concurrent use.
type Picker struct {
	supply     Supply
	candidateN int

	skill  string
	domain string
	seen   map[string]bool
}

// NewPicker returns a Picker over supply. candidateN <= 0 uses
// DefaultCandidateN.
func NewPicker(supply Supply, candidateN int) *Picker {
	if candidateN <= 0 {
		candidateN = DefaultCandidateN
	}
	return &Picker{
		supply:     supply,
		candidateN: candidateN,
		seen:       make(map[string]bool),
	}
}

// Next returns up to want unseen questions for skill whose tags intersect
// the domain tag set. situational-judgment draws only sjt items; every other
// skill draws only non-sjt items. want is capped at the candidate limit,
// since no more than that many questions can be found.
func (p *Picker) Next(skill, domain string, want int) (Batch, error) {
	if want <= 0 {
		want = DefaultBatchSize
	}
	want = min(want, p.candidateN)
	skill = model.NormalizeSkill(skill)
	domain, err := NormalizeDomain(domain)
	if err != nil {
		return Batch{}, err
	}
	if skill != p.skill || domain != p.domain {
		p.skill, p.domain = skill, domain
		clear(p.seen)
	}

	candidates, err := p.supply.Fetch(store.Filter{Skill: skill}, p.candidateN)
	if err != nil {
		return Batch{}, fmt.Errorf("fetch candidates for %s: %w", skill, err)
	}

	wantSJT := skill == model.SkillSituationalJudgment
	batch := Batch{Questions: make([]model.Question, 0, want), Want: want}
	for _, q := range candidates {
		if len(batch.Questions) >= want {
			break
		}
		if (q.Type == model.TypeSJT) != wantSJT || p.seen[q.ID] || !inDomain(q.Tags, domain) {
			continue
		}
		p.seen[q.ID] = true
		batch.Questions = append(batch.Questions, q)
	}
	return batch, nil
}

// Reset forgets served questions.
func (p *Picker) Reset() {
	p.skill, p.domain = "", ""
	clear(p.seen)
}

func inDomain(tags []string, domain string) bool {
	if domain == "" {
		return true
	}
	for _, t := range tags {
		for _, want := range domainTags[domain] {
			if t == want {
				return true
			}
		}
	}
	return false
}
