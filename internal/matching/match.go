package matching

import (
	"strings"

	"github.com/agnivade/levenshtein"
)

// Mode selects the confidence tier for a match decision.
type Mode int

const (
	// Relaxed accepts partial similarity above the relaxed threshold
	// and tolerates a one year difference. Used when evaluating
	// actionable candidates, where a false negative only delays the
	// request until the next scan.
	Relaxed Mode = iota
	// Strict requires prefix/equality or similarity above the strict
	// threshold, with a two year tolerance. Used before declaring a
	// request already satisfied, where a false positive silently drops
	// the request.
	Strict
)

func (m Mode) String() string {
	if m == Strict {
		return "strict"
	}
	return "relaxed"
}

// Reason records which comparison path produced a decision.
type Reason string

const (
	ReasonCleaned        Reason = "cleaned"
	ReasonDigitVariant   Reason = "digit-variant"
	ReasonWordVariant    Reason = "word-variant"
	ReasonPrefix         Reason = "prefix"
	ReasonBelowThreshold Reason = "below-threshold"
	ReasonYearMismatch   Reason = "year-mismatch"
	ReasonNoYear         Reason = "no-candidate-year"
)

// Decision is the pure output of a title/year comparison.
type Decision struct {
	Matched    bool
	Confidence int // 0-100
	Reason     Reason
}

// Thresholds holds the tunable confidence floors per tier. The exact
// values are configuration, not load-bearing constants.
type Thresholds struct {
	Relaxed int
	Strict  int
}

// DefaultThresholds returns the default two-tier thresholds.
func DefaultThresholds() Thresholds {
	return Thresholds{Relaxed: 70, Strict: 90}
}

// Year tolerances per tier. The already-satisfied check runs strict on
// the title but wider on the year, because remote listings frequently
// carry the festival/release year off by one or two.
const (
	relaxedYearTolerance = 1
	strictYearTolerance  = 2
)

// Title is a title/year pair on either side of a comparison.
type Title struct {
	Title string
	Year  int // 0 when unknown
}

// Matcher scores candidate titles against requested titles.
type Matcher struct {
	thresholds Thresholds
}

// NewMatcher creates a Matcher with the given thresholds.
func NewMatcher(t Thresholds) *Matcher {
	if t.Relaxed <= 0 {
		t.Relaxed = DefaultThresholds().Relaxed
	}
	if t.Strict <= 0 {
		t.Strict = DefaultThresholds().Strict
	}
	return &Matcher{thresholds: t}
}

// Match scores candidate against requested under the given mode.
// Deterministic: same inputs always yield the same Decision.
func (m *Matcher) Match(requested, candidate Title, mode Mode) Decision {
	reqTitle, parenYear := StripYearSuffix(requested.Title)
	reqYear := requested.Year
	if reqYear == 0 {
		reqYear = parenYear
	}

	if !yearWithinTolerance(reqYear, candidate.Year, mode) {
		reason := ReasonYearMismatch
		if candidate.Year == 0 {
			reason = ReasonNoYear
		}
		return Decision{Matched: false, Confidence: 0, Reason: reason}
	}

	req := Normalize(reqTitle)
	cand := Normalize(candidate.Title)

	if mode == Strict {
		confidence, reason := bestScore(req, cand, ratio)
		if prefixMatch(req, cand) {
			if confidence < m.thresholds.Strict {
				confidence = m.thresholds.Strict
			}
			return Decision{Matched: true, Confidence: confidence, Reason: ReasonPrefix}
		}
		if confidence >= m.thresholds.Strict {
			return Decision{Matched: true, Confidence: confidence, Reason: reason}
		}
		return Decision{Matched: false, Confidence: confidence, Reason: ReasonBelowThreshold}
	}

	// Relaxed tier scores the requested title against the best-aligned
	// substring of the candidate, since release names bury the title in
	// year/quality/group tags.
	confidence, reason := bestScore(req, cand, partialRatio)
	if confidence >= m.thresholds.Relaxed {
		return Decision{Matched: true, Confidence: confidence, Reason: reason}
	}
	return Decision{Matched: false, Confidence: confidence, Reason: ReasonBelowThreshold}
}

// bestScore computes the similarity for every pairing of the
// normalized forms and returns the maximum with its comparison path.
func bestScore(req, cand NormalizedTitle, score func(a, b string) int) (int, Reason) {
	best := 0
	reason := ReasonCleaned
	for _, r := range req.Forms() {
		for _, c := range cand.Forms() {
			s := score(r, c)
			if s > best {
				best = s
				reason = formReason(r, req)
			}
		}
	}
	return best, reason
}

// ratio is a normalized edit-distance similarity on [0,100].
func ratio(a, b string) int {
	if a == b {
		return 100
	}
	longest := len([]rune(a))
	if l := len([]rune(b)); l > longest {
		longest = l
	}
	if longest == 0 {
		return 100
	}
	dist := levenshtein.ComputeDistance(a, b)
	score := 100 - (100*dist+longest/2)/longest
	if score < 0 {
		score = 0
	}
	return score
}

// partialRatio slides the shorter string across the longer and returns
// the best window ratio, so "dune" scores 100 against
// "dune 2021 2160p".
func partialRatio(a, b string) int {
	ra, rb := []rune(a), []rune(b)
	if len(ra) > len(rb) {
		ra, rb = rb, ra
	}
	if len(ra) == 0 {
		if len(rb) == 0 {
			return 100
		}
		return 0
	}
	if len(ra) == len(rb) {
		return ratio(string(ra), string(rb))
	}
	best := 0
	for start := 0; start+len(ra) <= len(rb); start++ {
		window := string(rb[start : start+len(ra)])
		if s := ratio(string(ra), window); s > best {
			best = s
			if best == 100 {
				break
			}
		}
	}
	return best
}

// prefixMatch reports whether either cleaned form starts with the
// other. Remote release names append quality/group tags after the
// title, so a prefix relation is treated as an exact title hit.
func prefixMatch(req, cand NormalizedTitle) bool {
	for _, r := range req.Forms() {
		for _, c := range cand.Forms() {
			if r == "" || c == "" {
				continue
			}
			if strings.HasPrefix(c, r) || strings.HasPrefix(r, c) {
				return true
			}
		}
	}
	return false
}

func formReason(form string, n NormalizedTitle) Reason {
	switch form {
	case n.Cleaned:
		return ReasonCleaned
	case n.DigitVariant:
		return ReasonDigitVariant
	default:
		return ReasonWordVariant
	}
}

func yearWithinTolerance(requested, candidate int, mode Mode) bool {
	if requested == 0 {
		return true
	}
	if candidate == 0 {
		return false
	}
	tolerance := relaxedYearTolerance
	if mode == Strict {
		tolerance = strictYearTolerance
	}
	diff := requested - candidate
	if diff < 0 {
		diff = -diff
	}
	return diff <= tolerance
}
