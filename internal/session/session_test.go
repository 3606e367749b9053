package session

import (
	"errors"
	"sync"
	"testing"
	"time"

	"mrzscan/internal/mrz"
)

const (
	td3First  = "P<UTOERIKSSON<<ANNA<MARIA<<<<<<<<<<<<<<<<<<<"
	td3Second = "L898902C36UTO7408122F1204159ZE184226B<<<<<10"
)

var corners = []mrz.Point{{X: 10, Y: 300}, {X: 620, Y: 300}, {X: 620, Y: 380}, {X: 10, Y: 380}}

func frame(texts ...string) mrz.Frame {
	block := mrz.TextBlock{Corners: corners}
	for _, text := range texts {
		block.Lines = append(block.Lines, mrz.TextLine{Text: text})
	}
	return mrz.Frame{Blocks: []mrz.TextBlock{block}}
}

// partialFrame qualifies as an MRZ block but only its last line has MRZ
// length.
func partialFrame() mrz.Frame {
	return frame("REPUBLIC<<OF<<UTOPIA", "PASSPORT<<", td3First)
}

func TestProcessEmitsResultWithFields(t *testing.T) {
	s := New("test", DefaultOptions())

	ev, err := s.Process(frame("PASSPORT", td3First, td3Second))
	if err != nil {
		t.Fatalf("Process: %v", err)
	}
	if ev.Type != EventResult {
		t.Fatalf("event = %+v, want result", ev)
	}
	if ev.MRZ != td3First+"\n"+td3Second {
		t.Errorf("mrz = %q", ev.MRZ)
	}
	if len(ev.Corners) != 4 {
		t.Errorf("corners = %v", ev.Corners)
	}
	if ev.Fields == nil || ev.Fields.DocumentNumber != "L898902C3" {
		t.Errorf("fields = %+v", ev.Fields)
	}

	stats := s.Stats()
	if stats.Frames != 1 || stats.Results != 1 || stats.BufferedLines != 0 {
		t.Errorf("stats = %+v", stats)
	}
}

func TestProcessWithoutFields(t *testing.T) {
	opts := DefaultOptions()
	opts.ParseFields = false
	s := New("test", opts)

	ev, _ := s.Process(frame("PASSPORT", td3First, td3Second))
	if ev.Type != EventResult || ev.Fields != nil {
		t.Errorf("event = %+v", ev)
	}
}

func TestProcessProgressEvents(t *testing.T) {
	s := New("test", DefaultOptions())

	tests := []struct {
		frame mrz.Frame
		want  Event
	}{
		{mrz.Frame{}, Event{Type: EventNone}},
		{frame("REPUBLIC OF UTOPIA"), Event{Type: EventProgress, Progress: mrz.ProgressEmpty}},
		{partialFrame(), Event{Type: EventProgress, Progress: mrz.ProgressOneLine}},
	}

	for i, tt := range tests {
		ev, err := s.Process(tt.frame)
		if err != nil {
			t.Fatalf("frame %d: %v", i, err)
		}
		if ev.Type != tt.want.Type || ev.Progress != tt.want.Progress {
			t.Errorf("frame %d: event = %+v, want %+v", i, ev, tt.want)
		}
	}

	if got := s.Stats().BufferedLines; got != 1 {
		t.Errorf("buffered lines = %d, want 1", got)
	}
}

func TestProcessImagePending(t *testing.T) {
	s := New("test", DefaultOptions())

	f := frame("PASSPORT", td3First, td3Second)
	f.ImagePending = true

	ev, _ := s.Process(f)
	if ev.Type != EventProgress || ev.Progress != mrz.ProgressImagePending {
		t.Fatalf("event = %+v, want progress(90)", ev)
	}

	ev, _ = s.Process(mrz.Frame{Blocks: []mrz.TextBlock{{Lines: []mrz.TextLine{{Text: "NO MRZ HERE"}}, Corners: corners}}})
	if ev.Type != EventProgress || ev.Progress != mrz.ProgressImagePending {
		t.Fatalf("retained buffer: event = %+v, want progress(90)", ev)
	}

	ev, _ = s.Process(frame("PASSPORT", td3First, td3Second))
	if ev.Type != EventResult {
		t.Errorf("event = %+v, want result", ev)
	}
}

func TestSubmitDropsFrameWhileBusy(t *testing.T) {
	s := New("test", DefaultOptions())

	s.mu.Lock()
	ev, err := s.Submit(frame(td3First))
	s.mu.Unlock()

	if err != nil {
		t.Fatalf("Submit: %v", err)
	}
	if ev.Type != EventDropped {
		t.Errorf("event = %+v, want dropped", ev)
	}

	ev, _ = s.Submit(frame(td3First))
	if ev.Type != EventProgress {
		t.Errorf("event = %+v, want progress", ev)
	}

	stats := s.Stats()
	if stats.Dropped != 1 || stats.Frames != 1 {
		t.Errorf("stats = %+v", stats)
	}
}

func TestSubmitConcurrent(t *testing.T) {
	s := New("test", DefaultOptions())

	const n = 50
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := s.Submit(frame(td3First)); err != nil {
				t.Errorf("Submit: %v", err)
			}
		}()
	}
	wg.Wait()

	stats := s.Stats()
	if stats.Frames+stats.Dropped != n {
		t.Errorf("frames %d + dropped %d != %d", stats.Frames, stats.Dropped, n)
	}
	if stats.Frames == 0 {
		t.Error("no frame was processed")
	}
}

func TestClosedSession(t *testing.T) {
	s := New("test", DefaultOptions())
	s.Close()
	s.Close()

	if _, err := s.Process(frame(td3First)); !errors.Is(err, ErrSessionClosed) {
		t.Errorf("Process err = %v, want ErrSessionClosed", err)
	}
	if _, err := s.Submit(frame(td3First)); !errors.Is(err, ErrSessionClosed) {
		t.Errorf("Submit err = %v, want ErrSessionClosed", err)
	}
	if !s.Stats().Closed {
		t.Error("stats not marked closed")
	}
}

func TestReset(t *testing.T) {
	s := New("test", DefaultOptions())
	s.Process(partialFrame())
	if got := s.Stats().BufferedLines; got != 1 {
		t.Fatalf("buffered lines = %d, want 1", got)
	}
	s.Reset()

	if got := s.Stats().BufferedLines; got != 0 {
		t.Errorf("buffered lines = %d, want 0", got)
	}
}

func TestLastActivity(t *testing.T) {
	now := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
	opts := DefaultOptions()
	opts.Clock = func() time.Time { return now }

	s := New("test", opts)
	if !s.LastActivity().Equal(now) {
		t.Errorf("last activity = %v, want %v", s.LastActivity(), now)
	}

	now = now.Add(time.Minute)
	s.Process(frame(td3First))
	if !s.LastActivity().Equal(now) {
		t.Errorf("last activity = %v, want %v", s.LastActivity(), now)
	}
}
