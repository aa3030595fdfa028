package cycle

import (
	"testing"
	"time"
)

func day(s string) time.Time {
	t, err := time.Parse("2006-01-02", s)
	if err != nil {
		panic(err)
	}
	return t
}

func TestDerivePhases(t *testing.T) {
	start := "2026-08-01"
	cases := []struct {
		name      string
		today     string
		phase     string
		remaining int
	}{
		{"first day of period", "2026-08-01", PhaseMenstrual, 28},
		{"last day of period", "2026-08-05", PhaseMenstrual, 24},
		{"follicular", "2026-08-08", PhaseFollicular, 21},
		{"ovulation window", "2026-08-15", PhaseOvulation, 14},
		{"luteal", "2026-08-20", PhaseLuteal, 9},
		{"wraps into next cycle", "2026-08-30", PhaseMenstrual, 27},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			r := &Record{LastPeriodDate: &start, CycleLength: 28, PeriodLength: 5}
			Derive(r, day(tc.today))
			if r.CurrentPhase != tc.phase {
				t.Errorf("phase = %q, want %q", r.CurrentPhase, tc.phase)
			}
			if r.DaysUntilNextPeriod == nil || *r.DaysUntilNextPeriod != tc.remaining {
				t.Errorf("days until next = %v, want %d", r.DaysUntilNextPeriod, tc.remaining)
			}
		})
	}
}

func TestDeriveNoPeriodDate(t *testing.T) {
	r := &Record{CycleLength: 28, PeriodLength: 5}
	Derive(r, day("2026-08-15"))
	if r.CurrentPhase != "" || r.DaysUntilNextPeriod != nil {
		t.Fatalf("derived fields set without a period date: %+v", r)
	}
}

func TestDeriveFutureStartDate(t *testing.T) {
	start := "2026-09-01"
	r := &Record{LastPeriodDate: &start, CycleLength: 28, PeriodLength: 5}
	Derive(r, day("2026-08-15"))
	if r.CurrentPhase != "" || r.DaysUntilNextPeriod != nil {
		t.Fatalf("derived fields set for a future start date: %+v", r)
	}
}

func TestDeriveBadDate(t *testing.T) {
	bad := "not-a-date"
	r := &Record{LastPeriodDate: &bad, CycleLength: 28, PeriodLength: 5}
	Derive(r, day("2026-08-15"))
	if r.CurrentPhase != "" {
		t.Fatalf("derived phase from unparseable date: %q", r.CurrentPhase)
	}
}
