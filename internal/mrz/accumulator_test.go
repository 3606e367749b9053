package mrz

import (
	"reflect"
	"strings"
	"testing"
)

// Belgian eID shaped TD1 lines.
const (
	beFirst  = "I<BEL0123456789<12345678901<<<"
	beSecond = "8001014F2501017BEL<<<<<<<<<<<6"
	beThird  = "DUPONT<<JEAN<<<<<<<<<<<<<<<<<<"
)

// ICAO Doc 9303 TD2 specimen.
const (
	td2First  = "I<UTOERIKSSON<<ANNA<MARIA<<<<<<<<<<<"
	td2Second = "D231458907UTO7408122F1204159<<<<<<<6"
)

// ICAO Doc 9303 TD3 specimen.
const (
	td3First  = "P<UTOERIKSSON<<ANNA<MARIA<<<<<<<<<<<<<<<<<<<"
	td3Second = "L898902C36UTO7408122F1204159ZE184226B<<<<<10"
)

func stateWith(t *testing.T, lines ...string) State {
	t.Helper()
	s := NewState(DefaultRules())
	for _, line := range lines {
		var tr Transition
		s, tr = s.Step(line)
		if tr != Appended {
			t.Fatalf("setup: Step(%q) = %v, want appended", line, tr)
		}
	}
	return s
}

func TestStepAdmission(t *testing.T) {
	tests := []struct {
		name string
		text string
	}{
		{"lowercase", strings.ToLower(beFirst)},
		{"punctuation", "I<BEL0123456789-12345678901<<<"},
		{"space", "I<BEL0123456789 12345678901<<<"},
		{"too short", beFirst[:29]},
		{"unsupported length", beFirst + "<<"},
		{"empty", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := stateWith(t, beSecond)
			next, tr := s.Step(tt.text)
			if tr != Rejected {
				t.Errorf("Step(%q) transition = %v, want rejected", tt.text, tr)
			}
			if !reflect.DeepEqual(next.Lines(), s.Lines()) {
				t.Errorf("buffer changed: got %q, want %q", next.Lines(), s.Lines())
			}
		})
	}
}

func TestStepFullBufferRejects(t *testing.T) {
	s := stateWith(t, td3First, td3Second)

	other := "P<UTOSMITH<<JOHN" + strings.Repeat("<", 44-16)
	if _, tr := s.Step(other); tr != Rejected {
		t.Errorf("two-line buffer accepted a third 44-char line: %v", tr)
	}

	// A 30-char line is still admitted while fewer than 3 lines are held.
	if _, tr := s.Step(beSecond); tr == Rejected {
		t.Errorf("30-char line rejected with 2 buffered lines")
	}
}

func TestStepDuplicateIsIdempotent(t *testing.T) {
	s := stateWith(t, beFirst, beSecond)

	next, tr := s.Step(beSecond)
	if tr != Unchanged {
		t.Fatalf("transition = %v, want unchanged", tr)
	}
	if !reflect.DeepEqual(next.Lines(), []string{beFirst, beSecond}) {
		t.Errorf("lines = %q", next.Lines())
	}

	// Same prefix, same length, different tail: still a re-read.
	reread := beSecond[:25] + "<<<<<"
	if next, tr = next.Step(reread); tr != Unchanged || next.Len() != 2 {
		t.Errorf("re-read: transition = %v, len = %d", tr, next.Len())
	}
}

func TestStepPrefixCollisionResets(t *testing.T) {
	passport := "P<BELDUPONT<<JEAN" + strings.Repeat("<", 44-17)
	s := stateWith(t, passport)

	next, tr := s.Step(passport[:30])
	if tr != ResetCollision {
		t.Fatalf("transition = %v, want reset_collision", tr)
	}
	if next.Len() != 0 {
		t.Errorf("buffer not cleared: %q", next.Lines())
	}
}

func TestStepLengthMismatchWithoutCollision(t *testing.T) {
	s := stateWith(t, beFirst)

	next, tr := s.Step(td3First)
	if tr != Unchanged {
		t.Fatalf("transition = %v, want unchanged", tr)
	}
	if !reflect.DeepEqual(next.Lines(), []string{beFirst}) {
		t.Errorf("lines = %q", next.Lines())
	}
}

func TestStepImplausibleThreeLines(t *testing.T) {
	noNumeric := "IDBEL000000010123456789<<<<<<<"
	s := stateWith(t, beFirst, beThird)

	next, tr := s.Step(noNumeric)
	if tr != ResetImplausible {
		t.Fatalf("transition = %v, want reset_implausible", tr)
	}
	if next.Len() != 0 {
		t.Errorf("buffer not cleared: %q", next.Lines())
	}

	// The heuristic can be switched off.
	relaxed := NewState(Rules{PrefixLength: DefaultPrefixLength})
	relaxed, _ = relaxed.Fold([]string{beFirst, beThird, noNumeric})
	if relaxed.Len() != 3 {
		t.Errorf("relaxed rules: len = %d, want 3", relaxed.Len())
	}
}

func TestStepDoesNotMutateReceiver(t *testing.T) {
	s := stateWith(t, beFirst)
	before := s.Lines()

	s.Step(beSecond)
	s.Step(strings.Repeat("<", 30))

	if !reflect.DeepEqual(s.Lines(), before) {
		t.Errorf("receiver mutated: %q", s.Lines())
	}
}

func TestPrefixLengthRule(t *testing.T) {
	s := NewState(Rules{PrefixLength: 5})
	s, _ = s.Step(beFirst)

	// Shares the first 5 characters only.
	other := "I<BEL9876543210<12345678901<<<"
	if _, tr := s.Step(other); tr != Unchanged {
		t.Errorf("prefix 5: transition = %v, want unchanged", tr)
	}

	s = NewState(DefaultRules())
	s, _ = s.Step(beFirst)
	if _, tr := s.Step(other); tr != Appended {
		t.Errorf("prefix 20: transition = %v, want appended", tr)
	}
}

func TestBelgianScenarioAcrossFrames(t *testing.T) {
	s := NewState(DefaultRules())

	frames := []struct {
		candidates []string
		want       Output
	}{
		{[]string{beFirst}, Output{Kind: Progress, Percent: ProgressOneLine}},
		{[]string{beSecond}, Output{Kind: Progress, Percent: ProgressTwoLines}},
		{[]string{beThird}, Output{Kind: Result, Text: beFirst + "\n" + beSecond + "\n" + beThird}},
	}

	for i, f := range frames {
		var out Output
		s, out = Advance(s, f.candidates)
		if out != f.want {
			t.Fatalf("frame %d: output = %v, want %v", i+1, out, f.want)
		}
	}

	if s.Len() != 0 {
		t.Errorf("buffer not cleared after result: %q", s.Lines())
	}
}

func TestCanonicalOrderIsRecovered(t *testing.T) {
	s := NewState(DefaultRules())
	s, out := Advance(s, []string{beThird, beSecond, beFirst})

	want := beFirst + "\n" + beSecond + "\n" + beThird
	if out.Kind != Result || out.Text != want {
		t.Fatalf("output = %v, want result %q", out, want)
	}
	if s.Len() != 0 {
		t.Errorf("buffer not cleared")
	}
}

func TestTwoLineScenario(t *testing.T) {
	s := NewState(DefaultRules())

	s, out := Advance(s, []string{td3Second})
	if out.Kind != Progress || out.Percent != ProgressOneLine {
		t.Fatalf("first frame: %v", out)
	}

	s, out = Advance(s, []string{td3First})
	want := td3Second + "\n" + td3First
	if out.Kind != Result || out.Text != want {
		t.Fatalf("output = %v, want arrival order %q", out, want)
	}
	if s.Len() != 0 {
		t.Errorf("buffer not cleared")
	}
}

func TestTD2Scenario(t *testing.T) {
	s := NewState(DefaultRules())

	s, out := Advance(s, []string{td2First})
	if out.Kind != Progress || out.Percent != ProgressOneLine {
		t.Fatalf("first frame: %v", out)
	}
	if s.Format() != FormatTD2 {
		t.Errorf("format = %v, want TD2", s.Format())
	}

	s, out = Advance(s, []string{td2Second})
	want := td2First + "\n" + td2Second
	if out.Kind != Result || out.Text != want {
		t.Fatalf("output = %v, want %q", out, want)
	}
	if s.Len() != 0 {
		t.Errorf("buffer not cleared")
	}
}

func TestTD2AndTD3LinesCollide(t *testing.T) {
	// Same 20 character prefix, different widths: two documents were mixed.
	wide := td2First + strings.Repeat("<", TD3LineLength-TD2LineLength)
	s := stateWith(t, td2First)
	s, tr := s.Step(wide)
	if tr != ResetCollision {
		t.Errorf("transition = %v, want prefix collision reset", tr)
	}
	if s.Len() != 0 {
		t.Errorf("buffer = %q, want empty", s.Lines())
	}
}

func TestFinishPrunesUnclassifiedLines(t *testing.T) {
	noise := "12ABCDEFGHIJKLMNOPQRSTUVWXYZAB"
	s := stateWith(t, beFirst, noise, beThird)

	s, out := s.Finish()
	if out.Kind != Progress || out.Percent != ProgressTwoLines {
		t.Fatalf("output = %v, want progress(75)", out)
	}
	if !reflect.DeepEqual(s.Lines(), []string{beFirst, beThird}) {
		t.Fatalf("lines after prune = %q", s.Lines())
	}

	s, out = Advance(s, []string{beSecond})
	if out.Kind != Result || out.Text != beFirst+"\n"+beSecond+"\n"+beThird {
		t.Errorf("output = %v", out)
	}
}

func TestFinishPrunesDuplicateRole(t *testing.T) {
	otherFirst := "I<BEL9876543210<12345678901<<<"
	s := stateWith(t, beFirst, beSecond, otherFirst)

	s, out := s.Finish()
	if out.Kind != Progress {
		t.Fatalf("output = %v, want progress", out)
	}
	if !reflect.DeepEqual(s.Lines(), []string{beFirst, beSecond}) {
		t.Errorf("lines = %q", s.Lines())
	}
}

func TestProgressValues(t *testing.T) {
	tests := []struct {
		lines []string
		want  int
	}{
		{nil, ProgressEmpty},
		{[]string{beFirst}, ProgressOneLine},
		{[]string{beFirst, beSecond}, ProgressTwoLines},
	}

	for _, tt := range tests {
		s := stateWith(t, tt.lines...)
		if _, out := s.Finish(); out.Percent != tt.want {
			t.Errorf("%d lines: progress = %d, want %d", len(tt.lines), out.Percent, tt.want)
		}
	}
}

func TestFoldReportsTransitions(t *testing.T) {
	s := NewState(DefaultRules())
	_, got := s.Fold([]string{beFirst, beFirst, "bad", beSecond})

	want := []Transition{Appended, Unchanged, Rejected, Appended}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("transitions = %v, want %v", got, want)
	}
}

func TestClassifyTD1(t *testing.T) {
	tests := []struct {
		line string
		want Role
	}{
		{beFirst, RoleFirst},
		{beSecond, RoleSecond},
		{beThird, RoleThird},
		{"I<UTOD231458907<<<<<<<<<<<<<<<", RoleFirst},
		{"7408122F1204159UTO<<<<<<<<<<<6", RoleSecond},
		{"ERIKSSON<<ANNA<MARIA<<<<<<<<<<", RoleThird},
		{"XDBEL000000010123456789<<<<<<<", RoleUnknown},
		{"8001014F2501017BEL<<<<<<<<<<<<", RoleUnknown},
		{"12ABCDEFGHIJKLMNOPQRSTUVWXYZAB", RoleUnknown},
	}

	for _, tt := range tests {
		if got := ClassifyTD1(tt.line); got != tt.want {
			t.Errorf("ClassifyTD1(%q) = %v, want %v", tt.line, got, tt.want)
		}
	}
}
