package state

import (
	"sync"
	"testing"
	"time"
)

type buffer struct {
	Answers []string
}

func TestManagerSetGetClear(t *testing.T) {
	m := NewManager[buffer]()
	if m.InProgress(1) {
		t.Fatal("fresh manager reports a session")
	}

	m.Set(1, Session[buffer]{State: "ask", Data: buffer{Answers: []string{"a"}}})
	s, ok := m.Get(1)
	if !ok || s.State != "ask" || len(s.Data.Answers) != 1 {
		t.Fatalf("unexpected session %+v ok=%v", s, ok)
	}
	if s.UpdatedAt.IsZero() {
		t.Fatal("UpdatedAt not stamped")
	}

	m.Set(1, Session[buffer]{State: StateIdle})
	if m.InProgress(1) {
		t.Fatal("idle session should clear the entry")
	}

	m.Set(2, Session[buffer]{State: "ask"})
	m.Clear(2)
	if m.Len() != 0 {
		t.Fatalf("len = %d", m.Len())
	}
}

func TestManagerExpire(t *testing.T) {
	m := NewManager[buffer]()
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	m.now = func() time.Time { return now }

	m.Set(1, Session[buffer]{State: "ask"})
	now = now.Add(time.Hour)
	m.Set(2, Session[buffer]{State: "ask"})

	if n := m.Expire(30 * time.Minute); n != 1 {
		t.Fatalf("expired %d, want 1", n)
	}
	if m.InProgress(1) || !m.InProgress(2) {
		t.Fatal("wrong session expired")
	}
}

func TestManagerLockSerializesPerUser(t *testing.T) {
	m := NewManager[buffer]()
	var (
		wg      sync.WaitGroup
		counter int
	)
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			unlock := m.Lock(7)
			defer unlock()
			v := counter
			time.Sleep(time.Microsecond)
			counter = v + 1
		}()
	}
	wg.Wait()
	if counter != 50 {
		t.Fatalf("counter = %d, want 50", counter)
	}
	if len(m.locks) != 0 {
		t.Fatalf("locks leaked: %d", len(m.locks))
	}
}
