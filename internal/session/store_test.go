package session

import (
	"fmt"
	"sync"
	"testing"
)

func TestWindowEvictsOldest(t *testing.T) {
	w := NewWindow(3)
	for _, l := range []string{"A", "B", "C", "D"} {
		w.Push(l)
	}
	if w.Len() != 3 {
		t.Fatalf("expected window length 3, got %d", w.Len())
	}
	got := w.Values()
	want := []string{"B", "C", "D"}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("expected values %v, got %v", want, got)
		}
	}
}

func TestWindowUniform(t *testing.T) {
	w := NewWindow(3)
	w.Push("H")
	w.Push("H")
	if _, ok := w.Uniform(); ok {
		t.Fatal("window not full yet, should not be uniform")
	}
	w.Push("H")
	label, ok := w.Uniform()
	if !ok || label != "H" {
		t.Fatalf("expected uniform H, got %q %v", label, ok)
	}
	w.Push("E")
	if _, ok := w.Uniform(); ok {
		t.Fatal("mixed window should not be uniform")
	}
}

func TestStoreCreatesOnFirstUse(t *testing.T) {
	st := NewStore(3)
	st.Update("s1", func(s *Session) {
		if s.Text() != "" {
			t.Fatalf("fresh session should be empty, got %q", s.Text())
		}
		s.Append("H")
	})
	st.Update("s1", func(s *Session) {
		if s.Text() != "H" {
			t.Fatalf("expected accumulated H, got %q", s.Text())
		}
	})
	if st.Len() != 1 {
		t.Fatalf("expected 1 session, got %d", st.Len())
	}
}

func TestClearForgetsSession(t *testing.T) {
	st := NewStore(3)
	st.Update("s1", func(s *Session) { s.Append("H") })
	if !st.Clear("s1") {
		t.Fatal("expected clear to report an existing session")
	}
	if st.Clear("s1") {
		t.Fatal("second clear should report no session")
	}
	st.Update("s1", func(s *Session) {
		if s.Text() != "" {
			t.Fatalf("cleared session should start empty, got %q", s.Text())
		}
	})
}

func TestTakeAndClear(t *testing.T) {
	st := NewStore(3)
	if _, ok := st.TakeAndClear("missing"); ok {
		t.Fatal("expected absent result for unknown session")
	}
	st.Update("s1", func(s *Session) {
		s.Append("H")
		s.Append("I")
	})
	text, ok := st.TakeAndClear("s1")
	if !ok || text != "HI" {
		t.Fatalf("expected HI, got %q %v", text, ok)
	}
	if st.Len() != 0 {
		t.Fatalf("expected session removed, %d remain", st.Len())
	}
}

func TestConcurrentSessionsDoNotInterfere(t *testing.T) {
	st := NewStore(3)
	const perSession = 50
	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		id := fmt.Sprintf("session-%d", i)
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < perSession; j++ {
				st.Update(id, func(s *Session) { s.Append("A") })
			}
		}()
	}
	wg.Wait()
	for i := 0; i < 8; i++ {
		id := fmt.Sprintf("session-%d", i)
		st.Update(id, func(s *Session) {
			if len(s.Letters()) != perSession {
				t.Errorf("%s: expected %d letters, got %d", id, perSession, len(s.Letters()))
			}
		})
	}
}
