package stats

import (
	"math"
	"testing"
)

func TestParseNumber(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name  string
		input any
		want  float64
		ok    bool
	}{
		{name: "leading dot", input: ".990", want: 0.99, ok: true},
		{name: "thousands separator", input: "1,234", want: 1234, ok: true},
		{name: "padded", input: "  42 ", want: 42, ok: true},
		{name: "numeric prefix", input: "12 (T)", want: 12, ok: true},
		{name: "json number", input: float64(3.5), want: 3.5, ok: true},
		{name: "int", input: 7, want: 7, ok: true},
		{name: "empty", input: "", ok: false},
		{name: "word", input: "abc", ok: false},
		{name: "nan text", input: "NaN", ok: false},
		{name: "infinite", input: math.Inf(1), ok: false},
		{name: "bool", input: true, ok: false},
		{name: "nil", input: nil, ok: false},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got, ok := parseNumber(tc.input)
			if ok != tc.ok {
				t.Fatalf("expected ok=%v, got %v (value %v)", tc.ok, ok, got)
			}
			if ok && got != tc.want {
				t.Fatalf("expected %v, got %v", tc.want, got)
			}
		})
	}
}

func TestRecordView_ExactKeyWinsOverFoldedMatch(t *testing.T) {
	t.Parallel()

	view := newRecordView(RawRecord{"ba": ".300", "BA": ".400"})
	got, ok := view.number(fieldKeys{"BA"})
	if !ok || got != 0.4 {
		t.Fatalf("expected exact key value 0.4, got %v ok=%v", got, ok)
	}

	view = newRecordView(RawRecord{"SLG  pct": ".612"})
	got, ok = view.number(fieldKeys{"SLG PCT"})
	if !ok || got != 0.612 {
		t.Fatalf("expected folded whitespace match 0.612, got %v ok=%v", got, ok)
	}
}

func TestRecordView_SkipsUnparsableCandidates(t *testing.T) {
	t.Parallel()

	view := newRecordView(RawRecord{"BA": "-", "AVG": ".377"})
	got, ok := view.number(fieldKeys{"BA", "AVG"})
	if !ok || got != 0.377 {
		t.Fatalf("expected second candidate 0.377, got %v ok=%v", got, ok)
	}
}

func TestInningsPitched(t *testing.T) {
	t.Parallel()

	if got := inningsPitched(10.1); math.Abs(got-(10+1.0/3.0)) > 1e-9 {
		t.Fatalf("expected 10 1/3 innings, got %v", got)
	}
	if got := inningsPitched(10.2); math.Abs(got-(10+2.0/3.0)) > 1e-9 {
		t.Fatalf("expected 10 2/3 innings, got %v", got)
	}
	if got := inningsPitched(10); got != 10 {
		t.Fatalf("expected 10 innings, got %v", got)
	}
}
