package runtime

import (
	"context"
	"strings"
	"sync"
)

// MemoryBackend is the collaborator `remember`/`recall` steps dispatch
// through (§5: "accessed only through remember/recall primitives, each
// treated as an atomic step"). The core ships only an in-process stub;
// persistent/session-scoped backends are external collaborators.
type MemoryBackend interface {
	Remember(ctx context.Context, memory string, value any) error
	Recall(ctx context.Context, memory, query string) ([]any, error)
}

// InMemoryBackend is a deterministic MemoryBackend used by tests and
// `context { memory: none }` runs: a per-memory-name slice of remembered
// values, with Recall doing a naive case-insensitive substring match
// against each string value (a non-empty query never matches a non-string
// value). It is single-threaded per §5's non-goal on concurrent
// access, but takes its own lock since nothing else in the executor
// enforces that externally.
type InMemoryBackend struct {
	mu    sync.Mutex
	store map[string][]any
}

// NewInMemoryBackend builds an empty backend.
func NewInMemoryBackend() *InMemoryBackend {
	return &InMemoryBackend{store: map[string][]any{}}
}

func (b *InMemoryBackend) Remember(ctx context.Context, memory string, value any) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.store[memory] = append(b.store[memory], value)
	return nil
}

func (b *InMemoryBackend) Recall(ctx context.Context, memory, query string) ([]any, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if query == "" {
		return append([]any{}, b.store[memory]...), nil
	}

	var out []any
	q := strings.ToLower(query)
	for _, v := range b.store[memory] {
		if s, ok := v.(string); ok && strings.Contains(strings.ToLower(s), q) {
			out = append(out, v)
		}
	}
	return out, nil
}
