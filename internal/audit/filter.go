package audit

import (
	"fmt"
	"strings"
)

// FilterMode selects how start names are compared.
type FilterMode int

const (
	// MatchSubstring keeps a service when its start name contains the
	// pattern, case-insensitively.
	MatchSubstring FilterMode = iota
	// MatchExact keeps a service only when its start name equals the value,
	// case-insensitively, with no partial matches.
	MatchExact
)

func (m FilterMode) String() string {
	switch m {
	case MatchSubstring:
		return "substring"
	case MatchExact:
		return "exact"
	default:
		return "unknown"
	}
}

// AccountFilter is the single active start-name predicate for a run.
// Construct it with NewAccountFilter; the zero value matches nothing useful.
type AccountFilter struct {
	mode  FilterMode
	value string
}

// NewAccountFilter builds the filter from the two mutually exclusive
// configuration values. Exactly one must be non-empty.
func NewAccountFilter(substring, exact string) (AccountFilter, error) {
	switch {
	case substring != "" && exact != "":
		return AccountFilter{}, ErrBothFilters
	case substring != "":
		return AccountFilter{mode: MatchSubstring, value: substring}, nil
	case exact != "":
		return AccountFilter{mode: MatchExact, value: exact}, nil
	default:
		return AccountFilter{}, ErrNoFilter
	}
}

// Mode returns the comparison mode the filter was built with.
func (f AccountFilter) Mode() FilterMode { return f.mode }

// Value returns the pattern or literal the filter compares against.
func (f AccountFilter) Value() string { return f.value }

// Match reports whether a service start name satisfies the filter.
func (f AccountFilter) Match(startName string) bool {
	switch f.mode {
	case MatchSubstring:
		return containsFold(startName, f.value)
	case MatchExact:
		return strings.EqualFold(startName, f.value)
	default:
		return false
	}
}

func (f AccountFilter) String() string {
	return fmt.Sprintf("%s %q", f.mode, f.value)
}

// containsFold is a case-insensitive strings.Contains.
func containsFold(s, substr string) bool {
	return strings.Contains(strings.ToLower(s), strings.ToLower(substr))
}
