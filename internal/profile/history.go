package profile

import (
	"time"

	"github.com/google/uuid"

	"github.com/pavelanni/cqdrill/internal/model"
)

// Batch is one graded submission.
type Batch struct {
	ID        string              `json:"id"`
	CreatedAt time.Time           `json:"created_at"`
	Items     []model.SessionItem `json:"items"`
}

// History accumulates a session's batches. It is append-only and not safe
// for concurrent use.
type History struct {
	batches []Batch
}

// Append records items as a new batch and returns it.
func (h *History) Append(items []model.SessionItem) Batch {
	b := Batch{
		ID:        uuid.NewString(),
		CreatedAt: time.Now().UTC(),
		Items:     append([]model.SessionItem(nil), items...),
	}
	h.batches = append(h.batches, b)
	return b
}

// LastBatch returns the items of the most recent batch, or nil.
func (h *History) LastBatch() []model.SessionItem {
	if len(h.batches) == 0 {
		return nil
	}
	return h.batches[len(h.batches)-1].Items
}

// All returns every recorded item in submission order.
func (h *History) All() []model.SessionItem {
	var out []model.SessionItem
	for _, b := range h.batches {
		out = append(out, b.Items...)
	}
	return out
}

// Batches returns the recorded batches.
func (h *History) Batches() []Batch {
	return h.batches
}

// Len returns the number of recorded items.
func (h *History) Len() int {
	n := 0
	for _, b := range h.batches {
		n += len(b.Items)
	}
	return n
}
