package audit

import (
	"encoding/json"
	"sync"
	"testing"
	"time"
)

func TestAppend(t *testing.T) {
	fixed := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	l := NewWithClock(func() time.Time { return fixed })

	l.Append(KindDispatch, "security", "stage 1")
	l.Append(KindComplete, "security", "score 60.00")
	l.Append(KindInert, "documentation", "message #3 to frozen worker")

	entries := l.Entries()
	if len(entries) != 3 {
		t.Fatalf("expected 3 entries, got %d", len(entries))
	}

	cases := []struct {
		kind   Kind
		worker string
	}{
		{KindDispatch, "security"},
		{KindComplete, "security"},
		{KindInert, "documentation"},
	}
	for i, c := range cases {
		if entries[i].Seq != i+1 {
			t.Errorf("entry %d: seq = %d, want %d", i, entries[i].Seq, i+1)
		}
		if entries[i].Kind != c.kind || entries[i].Worker != c.worker {
			t.Errorf("entry %d = %+v, want kind %s worker %s", i, entries[i], c.kind, c.worker)
		}
		if !entries[i].Time.Equal(fixed) {
			t.Errorf("entry %d: time = %v, want %v", i, entries[i].Time, fixed)
		}
	}

	if l.Count(KindInert) != 1 {
		t.Errorf("Count(inert) = %d, want 1", l.Count(KindInert))
	}
}

func TestEntriesIsCopy(t *testing.T) {
	l := New()
	l.Append(KindDispatch, "quality", "")

	got := l.Entries()
	got[0].Detail = "tampered"

	if l.Entries()[0].Detail != "" {
		t.Error("Entries() should return a copy")
	}
}

func TestConcurrentAppend(t *testing.T) {
	l := New()
	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			l.Append(KindMessage, "bus", "emit")
		}()
	}
	wg.Wait()

	entries := l.Entries()
	if len(entries) != 50 {
		t.Fatalf("expected 50 entries, got %d", len(entries))
	}
	for i, e := range entries {
		if e.Seq != i+1 {
			t.Fatalf("entry %d has seq %d; sequence must be gapless", i, e.Seq)
		}
	}
}

func TestJSON(t *testing.T) {
	l := New()
	l.Append(KindFinalize, "", "decision WARN")

	data, err := l.JSON()
	if err != nil {
		t.Fatalf("JSON() error: %v", err)
	}
	var decoded []Entry
	if err := json.Unmarshal(data, &decoded); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if len(decoded) != 1 || decoded[0].Kind != KindFinalize {
		t.Errorf("decoded = %+v", decoded)
	}
}
