package positions

import (
	"sync"
	"testing"
	"time"
)

func TestOpenRejectsSecondOpen(t *testing.T) {
	b := NewBook()
	now := time.Now()

	p, err := b.Open("TCS", 100, 1, 120, 3, 7, now)
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	if p.Status != StatusOpen || p.ID == "" {
		t.Errorf("unexpected position %+v", p)
	}
	if _, err := b.Open("TCS", 101, 1, 120, 3, 7, now); err == nil {
		t.Fatal("second open for the same symbol should fail")
	}
	// a different symbol is unaffected
	if _, err := b.Open("INFY", 50, 1, 60, 3, 7, now); err != nil {
		t.Fatalf("Open(INFY) error = %v", err)
	}
}

func TestCloseExactlyOnce(t *testing.T) {
	b := NewBook()
	now := time.Now()
	if _, err := b.Open("TCS", 100, 1, 120, 3, 7, now); err != nil {
		t.Fatal(err)
	}

	closed, err := b.Close("TCS", 95, now)
	if err != nil {
		t.Fatalf("Close() error = %v", err)
	}
	if closed.Status != StatusClosed || closed.ExitPrice != 95 || closed.ExitAt == nil {
		t.Errorf("unexpected closed position %+v", closed)
	}
	if _, err := b.Close("TCS", 94, now); err == nil {
		t.Fatal("second close should fail")
	}

	// closed symbol can be reopened
	if _, err := b.Open("TCS", 96, 1, 110, 3, 7, now); err != nil {
		t.Fatalf("reopen after close error = %v", err)
	}
}

func TestListOpenReturnsCopies(t *testing.T) {
	b := NewBook()
	if _, err := b.Open("TCS", 100, 1, 120, 3, 7, time.Now()); err != nil {
		t.Fatal(err)
	}

	open := b.ListOpen()
	if len(open) != 1 {
		t.Fatalf("len = %d, want 1", len(open))
	}
	open[0].ProfitAlertsSent["tamper"] = true

	got, _ := b.Get("TCS")
	if got.ProfitAlertsSent["tamper"] {
		t.Error("mutating a listed copy leaked into the book")
	}
}

func TestUpdateSerializesPerSymbol(t *testing.T) {
	b := NewBook()
	if _, err := b.Open("TCS", 100, 1, 120, 3, 7, time.Now()); err != nil {
		t.Fatal(err)
	}

	const writers = 50
	var wg sync.WaitGroup
	for i := 0; i < writers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_ = b.Update("TCS", func(p *Position) error {
				key := string(rune('a' + i%26))
				p.ProfitAlertsSent[key] = true
				p.EntryPrice++
				return nil
			})
		}(i)
	}
	wg.Wait()

	got, _ := b.Get("TCS")
	if got.EntryPrice != 100+writers {
		t.Errorf("EntryPrice = %v, want %v after serialized increments", got.EntryPrice, 100+writers)
	}
}

func TestUpdateUnknownSymbol(t *testing.T) {
	b := NewBook()
	if err := b.Update("NONE", func(p *Position) error { return nil }); err == nil {
		t.Fatal("expected error for unknown symbol")
	}
}
