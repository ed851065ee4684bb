// Package naming issues collision-free output paths for one processing
// run. Collisions are detected case-insensitively so output is safe on
// case-preserving filesystems.
package naming

import (
	"fmt"
	"strings"
	"sync"
	"time"
)

const (
	numericAttempts  = 99
	letteredAttempts = 26
)

// Allocator remembers every path it has issued and never returns the
// same one (case-insensitively) twice within a run. All methods are
// goroutine-safe.
type Allocator struct {
	mu     sync.Mutex
	issued map[string]struct{}
}

func NewAllocator() *Allocator {
	return &Allocator{issued: make(map[string]struct{})}
}

// Generate returns base+suffix if unclaimed, otherwise a discriminated
// variant: numeric "_1".."_99", then lettered "_a".."_z", then a
// timestamp suffix. The bound exists to guarantee termination, not
// because collisions are ever expected to approach it.
func (a *Allocator) Generate(base, suffix string) string {
	a.mu.Lock()
	defer a.mu.Unlock()

	candidate := base + suffix
	if a.claim(candidate) {
		return candidate
	}

	for i := 1; i <= numericAttempts; i++ {
		candidate = fmt.Sprintf("%s%s_%d", base, suffix, i)
		if a.claim(candidate) {
			return candidate
		}
	}
	for i := 0; i < letteredAttempts; i++ {
		candidate = fmt.Sprintf("%s%s_%c", base, suffix, 'a'+i)
		if a.claim(candidate) {
			return candidate
		}
	}

	for {
		candidate = fmt.Sprintf("%s%s_%d", base, suffix, time.Now().UnixNano())
		if a.claim(candidate) {
			return candidate
		}
	}
}

// Reset clears the issued-path memory between runs.
func (a *Allocator) Reset() {
	a.mu.Lock()
	a.issued = make(map[string]struct{})
	a.mu.Unlock()
}

// claim records candidate and reports whether it was free. Callers hold
// the lock.
func (a *Allocator) claim(candidate string) bool {
	key := strings.ToLower(candidate)
	if _, taken := a.issued[key]; taken {
		return false
	}
	a.issued[key] = struct{}{}
	return true
}
