package idgen_test

import (
	"sync"
	"testing"

	"github.com/artpar/ritan/adapters/idgen"
	"github.com/google/uuid"
)

func TestUUID(t *testing.T) {
	id := idgen.UUID{}.New()
	parsed, err := uuid.Parse(id)
	if err != nil {
		t.Fatalf("New() = %q, not a UUID: %v", id, err)
	}
	if parsed.Version() != 4 {
		t.Errorf("version = %d, want 4", parsed.Version())
	}
}

func TestOrdered(t *testing.T) {
	gen := idgen.Ordered{}
	prev := gen.New()
	for i := 0; i < 50; i++ {
		next := gen.New()
		if next <= prev {
			t.Fatalf("ids not increasing: %s then %s", prev, next)
		}
		prev = next
	}
	if parsed, _ := uuid.Parse(prev); parsed.Version() != 7 {
		t.Errorf("version = %d, want 7", parsed.Version())
	}
}

func TestSequential(t *testing.T) {
	gen := idgen.NewSequential("key-")
	if got := gen.New(); got != "key-1" {
		t.Errorf("first = %q, want key-1", got)
	}
	if got := gen.New(); got != "key-2" {
		t.Errorf("second = %q, want key-2", got)
	}
}

func TestSequential_Concurrent(t *testing.T) {
	gen := idgen.NewSequential("")
	seen := sync.Map{}
	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 100; j++ {
				if _, dup := seen.LoadOrStore(gen.New(), true); dup {
					t.Error("duplicate id")
				}
			}
		}()
	}
	wg.Wait()
}
