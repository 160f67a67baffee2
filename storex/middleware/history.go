package middleware

import (
	"context"
	"sync"
	"time"

	jsoniter "github.com/json-iterator/go"

	"github.com/storexkit/storex-go/statemap"
	"github.com/storexkit/storex-go/storex"
)

// HistoryEntry is one retained transition. Prev and Next are the root
// snapshots around the dispatch; structural sharing keeps retention cheap.
type HistoryEntry struct {
	Action storex.Action
	Prev   statemap.Root
	Next   statemap.Root
	At     time.Time
}

// History records every successful dispatch into a bounded ring of
// (action, prev, next) entries. Prior snapshots survive only through this
// explicit retention; the store itself drops them on replacement.
type History struct {
	limit int

	mu      sync.Mutex
	entries []HistoryEntry
}

// NewHistory builds a history stage keeping the most recent limit entries.
// A non-positive limit keeps everything.
func NewHistory(limit int) *History {
	return &History{limit: limit}
}

func (h *History) WrapDispatch(store *storex.Store, next storex.DispatchFunc) storex.DispatchFunc {
	return func(ctx context.Context, action storex.Action) (storex.Action, error) {
		prev := store.Snapshot()

		out, err := next(ctx, action)
		if err != nil {
			return out, err
		}

		h.record(HistoryEntry{
			Action: out,
			Prev:   prev,
			Next:   store.Snapshot(),
			At:     store.Scheduler().Now(),
		})

		return out, nil
	}
}

func (h *History) record(entry HistoryEntry) {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.entries = append(h.entries, entry)
	if h.limit > 0 && len(h.entries) > h.limit {
		h.entries = h.entries[len(h.entries)-h.limit:]
	}
}

// Entries returns a copy of the retained transitions, oldest first.
func (h *History) Entries() []HistoryEntry {
	h.mu.Lock()
	defer h.mu.Unlock()

	return append([]HistoryEntry(nil), h.entries...)
}

// Len reports how many transitions are retained.
func (h *History) Len() int {
	h.mu.Lock()
	defer h.mu.Unlock()

	return len(h.entries)
}

// Clear drops every retained transition.
func (h *History) Clear() {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.entries = nil
}

type historyExportEntry struct {
	ActionType string    `json:"action_type"`
	Payload    any       `json:"payload"`
	Prev       any       `json:"prev"`
	Next       any       `json:"next"`
	At         time.Time `json:"at"`
}

// ExportJSON renders the retained transitions as JSON, converting canonical
// state back into native containers at this output edge.
func (h *History) ExportJSON() ([]byte, error) {
	entries := h.Entries()

	export := make([]historyExportEntry, 0, len(entries))
	for _, entry := range entries {
		export = append(export, historyExportEntry{
			ActionType: entry.Action.Type,
			Payload:    statemap.ToNative(entry.Action.Payload),
			Prev:       statemap.ToNative(entry.Prev),
			Next:       statemap.ToNative(entry.Next),
			At:         entry.At,
		})
	}

	return jsoniter.ConfigFastest.Marshal(export)
}

var _ storex.Middleware = (*History)(nil)
