package naming

import (
	"strings"
	"sync"
	"testing"
)

func TestGenerateDiscriminatesCollisions(t *testing.T) {
	a := NewAllocator()

	first := a.Generate("out/page", "-1")
	if first != "out/page-1" {
		t.Fatalf("first path = %s, want out/page-1", first)
	}
	second := a.Generate("out/page", "-1")
	if second != "out/page-1_1" {
		t.Errorf("second path = %s, want out/page-1_1", second)
	}
	third := a.Generate("out/page", "-1")
	if third != "out/page-1_2" {
		t.Errorf("third path = %s, want out/page-1_2", third)
	}
}

func TestGenerateCaseInsensitive(t *testing.T) {
	a := NewAllocator()
	a.Generate("out/Page", "")
	got := a.Generate("out/PAGE", "")
	if strings.EqualFold(got, "out/Page") {
		t.Errorf("case-variant collision not detected: %s", got)
	}
}

func TestGenerateNeverRepeatsUnderConcurrency(t *testing.T) {
	a := NewAllocator()
	const callers = 16
	const perCaller = 50

	var mu sync.Mutex
	seen := make(map[string]bool)
	var wg sync.WaitGroup
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < perCaller; j++ {
				p := a.Generate("out/common", "-0")
				mu.Lock()
				if seen[strings.ToLower(p)] {
					t.Errorf("duplicate path issued: %s", p)
				}
				seen[strings.ToLower(p)] = true
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	if len(seen) != callers*perCaller {
		t.Errorf("issued %d distinct paths, want %d", len(seen), callers*perCaller)
	}
}

func TestResetForgetsIssuedPaths(t *testing.T) {
	a := NewAllocator()
	a.Generate("out/page", "")
	a.Reset()
	if got := a.Generate("out/page", ""); got != "out/page" {
		t.Errorf("after reset got %s, want out/page", got)
	}
}
