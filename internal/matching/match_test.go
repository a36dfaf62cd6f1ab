package matching

import "testing"

func newTestMatcher() *Matcher {
	return NewMatcher(DefaultThresholds())
}

func TestMatchSelf(t *testing.T) {
	m := newTestMatcher()
	titles := []Title{
		{Title: "Dune", Year: 2021},
		{Title: "The Dark Knight", Year: 2008},
		{Title: "Le Fabuleux Destin d'Amélie Poulain", Year: 2001},
		{Title: "Ocean's Eleven", Year: 2001},
	}

	for _, title := range titles {
		for _, mode := range []Mode{Relaxed, Strict} {
			d := m.Match(title, title, mode)
			if !d.Matched {
				t.Errorf("%s self-match failed for %q: %+v", mode, title.Title, d)
			}
			if d.Confidence < 95 {
				t.Errorf("%s self-match confidence %d < 95 for %q", mode, d.Confidence, title.Title)
			}
		}
	}
}

func TestMatchYearGating(t *testing.T) {
	m := newTestMatcher()
	requested := Title{Title: "Dune", Year: 2020}

	tests := []struct {
		name      string
		candidate Title
		mode      Mode
		matched   bool
	}{
		{
			name:      "one year off passes relaxed",
			candidate: Title{Title: "Dune", Year: 2021},
			mode:      Relaxed,
			matched:   true,
		},
		{
			name:      "three years off fails relaxed",
			candidate: Title{Title: "Dune", Year: 2023},
			mode:      Relaxed,
			matched:   false,
		},
		{
			name:      "two years off fails relaxed",
			candidate: Title{Title: "Dune", Year: 2022},
			mode:      Relaxed,
			matched:   false,
		},
		{
			name:      "two years off passes strict",
			candidate: Title{Title: "Dune", Year: 2022},
			mode:      Strict,
			matched:   true,
		},
		{
			name:      "three years off fails strict",
			candidate: Title{Title: "Dune", Year: 2023},
			mode:      Strict,
			matched:   false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d := m.Match(requested, tt.candidate, tt.mode)
			if d.Matched != tt.matched {
				t.Errorf("Match = %+v, want matched=%v", d, tt.matched)
			}
		})
	}
}

func TestMatchNoCandidateYear(t *testing.T) {
	m := newTestMatcher()
	d := m.Match(Title{Title: "Dune", Year: 2021}, Title{Title: "Dune"}, Relaxed)
	if d.Matched {
		t.Errorf("candidate without year must not match when a year is requested: %+v", d)
	}
	if d.Reason != ReasonNoYear {
		t.Errorf("Reason = %q, want %q", d.Reason, ReasonNoYear)
	}
}

func TestMatchNoRequestedYear(t *testing.T) {
	m := newTestMatcher()
	d := m.Match(Title{Title: "Dune"}, Title{Title: "Dune", Year: 1984}, Relaxed)
	if !d.Matched {
		t.Errorf("year check must pass when no year is requested: %+v", d)
	}
}

func TestMatchParentheticalYearSuffix(t *testing.T) {
	m := newTestMatcher()
	// The embedded year doubles as the requested year when none is set.
	d := m.Match(Title{Title: "Dune (2021)"}, Title{Title: "Dune", Year: 2021}, Relaxed)
	if !d.Matched || d.Confidence < 95 {
		t.Errorf("parenthetical year suffix not stripped: %+v", d)
	}

	d = m.Match(Title{Title: "Dune (2021)"}, Title{Title: "Dune", Year: 2024}, Relaxed)
	if d.Matched {
		t.Errorf("embedded year must gate the candidate year: %+v", d)
	}
}

func TestMatchReleaseNames(t *testing.T) {
	m := newTestMatcher()

	tests := []struct {
		name      string
		requested Title
		candidate Title
		mode      Mode
		matched   bool
	}{
		{
			name:      "release name with quality tags",
			requested: Title{Title: "Dune", Year: 2021},
			candidate: Title{Title: "Dune (2021) 2160p", Year: 2021},
			mode:      Relaxed,
			matched:   true,
		},
		{
			name:      "dotted release name strict",
			requested: Title{Title: "Dune", Year: 2021},
			candidate: Title{Title: "Dune.2021", Year: 2021},
			mode:      Strict,
			matched:   true,
		},
		{
			name:      "translated alias scores above relaxed threshold",
			requested: Title{Title: "Le Fabuleux Destin d'Amelie Poulain", Year: 2001},
			candidate: Title{Title: "Le.Fabuleux.Destin.d'Amélie.Poulain.2001.1080p", Year: 2001},
			mode:      Relaxed,
			matched:   true,
		},
		{
			name:      "different movie rejected relaxed",
			requested: Title{Title: "Dune", Year: 2021},
			candidate: Title{Title: "Blade Runner 2049", Year: 2021},
			mode:      Relaxed,
			matched:   false,
		},
		{
			name:      "near title rejected strict",
			requested: Title{Title: "Alien", Year: 1979},
			candidate: Title{Title: "Aliens.1986.REMUX", Year: 1980},
			mode:      Strict,
			matched:   true, // prefix relation: "alien" prefixes "aliens"
		},
		{
			name:      "numeral word variant",
			requested: Title{Title: "Ocean's Eleven", Year: 2001},
			candidate: Title{Title: "Oceans.11.2001.1080p.BluRay", Year: 2001},
			mode:      Relaxed,
			matched:   true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d := m.Match(tt.requested, tt.candidate, tt.mode)
			if d.Matched != tt.matched {
				t.Errorf("Match(%q, %q, %s) = %+v, want matched=%v",
					tt.requested.Title, tt.candidate.Title, tt.mode, d, tt.matched)
			}
		})
	}
}

func TestMatchDeterministic(t *testing.T) {
	m := newTestMatcher()
	requested := Title{Title: "The Lord of the Rings", Year: 2001}
	candidate := Title{Title: "The.Lord.of.the.Rings.The.Fellowship.of.the.Ring.2001", Year: 2001}

	first := m.Match(requested, candidate, Relaxed)
	for i := 0; i < 10; i++ {
		if d := m.Match(requested, candidate, Relaxed); d != first {
			t.Fatalf("Match not deterministic: %+v != %+v", d, first)
		}
	}
}
