// Package compile tracks the host's most recent compilation and turns
// its build output into verification submissions.
package compile

import (
	"sync"

	"github.com/tenderops/remixbridge/internal/hostbridge"
)

// Snapshot is the single-slot view of "which contract names were most
// recently compiled". Each update replaces the previous snapshot
// wholesale; names from earlier compilations never survive.
type Snapshot struct {
	mu    sync.RWMutex
	names []string
}

// NewSnapshot creates an empty snapshot.
func NewSnapshot() *Snapshot {
	return &Snapshot{}
}

// Update replaces the snapshot with the names found in the given
// compilation data, deduplicated and sorted.
func (s *Snapshot) Update(data hostbridge.CompilationData) {
	names := data.ContractNames()

	s.mu.Lock()
	s.names = names
	s.mu.Unlock()
}

// Names returns a copy of the current contract name list.
func (s *Snapshot) Names() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]string, len(s.names))
	copy(out, s.names)
	return out
}
