package audit

import (
	"context"
	"sync"
)

// MemorySink guarda registros en memoria. Para desarrollo y tests.
type MemorySink struct {
	mu      sync.Mutex
	entries []Entry
}

func NewMemorySink() *MemorySink {
	return &MemorySink{}
}

func (s *MemorySink) Record(ctx context.Context, e Entry) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries = append(s.entries, e)
	return nil
}

// Entries devuelve una copia de los registros acumulados.
func (s *MemorySink) Entries() []Entry {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Entry, len(s.entries))
	copy(out, s.entries)
	return out
}

// BySeverity filtra los registros acumulados por severidad.
func (s *MemorySink) BySeverity(sev Severity) []Entry {
	var out []Entry
	for _, e := range s.Entries() {
		if e.Severity == sev {
			out = append(out, e)
		}
	}
	return out
}
