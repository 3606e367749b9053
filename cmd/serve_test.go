package cmd

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"mrzscan/internal/session"
	"mrzscan/internal/sheets"
)

// recordingAppender stands in for the Google Sheets service.
type recordingAppender struct {
	mu      sync.Mutex
	sources []string
	sheets  map[string]int
	calls   int

	inFlight, maxInFlight atomic.Int32

	failFirst bool
}

func (a *recordingAppender) AppendRecords(ctx context.Context, records []sheets.Record, sheetName string) error {
	n := a.inFlight.Add(1)
	defer a.inFlight.Add(-1)
	for {
		m := a.maxInFlight.Load()
		if n <= m || a.maxInFlight.CompareAndSwap(m, n) {
			break
		}
	}
	time.Sleep(time.Millisecond)

	a.mu.Lock()
	defer a.mu.Unlock()
	a.calls++
	if a.failFirst && a.calls == 1 {
		return errors.New("quota exceeded")
	}
	if a.sheets == nil {
		a.sheets = make(map[string]int)
	}
	a.sheets[sheetName] += len(records)
	for _, rec := range records {
		a.sources = append(a.sources, rec.Source)
	}
	return nil
}

func resultEvent() session.Event {
	return session.Event{Type: session.EventResult, MRZ: "P<UTOERIKSSON<<ANNA<MARIA"}
}

func TestSheetSinkWritesEveryResult(t *testing.T) {
	appender := &recordingAppender{}
	sink := newSheetSink(appender, "MRZ_Scans", 4, zerolog.Nop())

	const results = 50
	var wg sync.WaitGroup
	for i := 0; i < results; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			sink.Handle("session", resultEvent())
		}()
	}
	wg.Wait()
	sink.Close()

	if got := appender.sheets["MRZ_Scans"]; got != results {
		t.Errorf("rows written = %d, want %d", got, results)
	}
	if got := appender.maxInFlight.Load(); got != 1 {
		t.Errorf("concurrent writes = %d, want 1", got)
	}
}

func TestSheetSinkCloseWaitsForPendingWrites(t *testing.T) {
	appender := &recordingAppender{}
	sink := newSheetSink(appender, "MRZ_Scans", 8, zerolog.Nop())

	for _, id := range []string{"a", "b", "c"} {
		sink.Handle(id, resultEvent())
	}
	sink.Close()

	if len(appender.sources) != 3 {
		t.Fatalf("sources = %v, want 3 rows", appender.sources)
	}
	for i, want := range []string{"a", "b", "c"} {
		if appender.sources[i] != want {
			t.Errorf("sources[%d] = %q, want %q", i, appender.sources[i], want)
		}
	}

	// Results after Close are not written and do not panic.
	sink.Handle("late", resultEvent())
	sink.Close()
	if len(appender.sources) != 3 {
		t.Errorf("sources after Close = %v", appender.sources)
	}
}

func TestSheetSinkContinuesAfterFailedWrite(t *testing.T) {
	appender := &recordingAppender{failFirst: true}
	sink := newSheetSink(appender, "MRZ_Scans", 1, zerolog.Nop())

	sink.Handle("first", resultEvent())
	// Let the writer pick up the first record on its own.
	time.Sleep(20 * time.Millisecond)
	sink.Handle("second", resultEvent())
	sink.Close()

	if len(appender.sources) != 1 || appender.sources[0] != "second" {
		t.Errorf("sources = %v, want [second]", appender.sources)
	}
}

func TestSweepInterval(t *testing.T) {
	tests := []struct {
		idle, want time.Duration
	}{
		{5 * time.Minute, time.Minute},
		{30 * time.Second, 15 * time.Second},
		{time.Second, time.Second},
	}

	for _, tt := range tests {
		if got := sweepInterval(tt.idle); got != tt.want {
			t.Errorf("sweepInterval(%v) = %v, want %v", tt.idle, got, tt.want)
		}
	}
}
