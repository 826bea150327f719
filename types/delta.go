package types

import "fmt"

// Delta is a minimal replace-range edit: the half-open range [Start, End) of
// the content it is applied to is replaced by Text.
type Delta struct {
	Start int    `json:"start" mapstructure:"start"`
	End   int    `json:"end" mapstructure:"end"`
	Text  string `json:"text" mapstructure:"text"`
}

// ValidationError rejects a single malformed operation (bad delta bounds,
// out-of-range indices). It never affects other participants.
type ValidationError struct {
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("validation failed: %s", e.Reason)
}

// Validate checks the delta bounds against a content length. Pass a negative
// contentLen to check only the structural invariant 0 <= Start <= End.
func (d Delta) Validate(contentLen int) error {
	if d.Start < 0 {
		return &ValidationError{Reason: fmt.Sprintf("negative start %d", d.Start)}
	}
	if d.End < d.Start {
		return &ValidationError{Reason: fmt.Sprintf("end %d before start %d", d.End, d.Start)}
	}
	if contentLen >= 0 && d.End > contentLen {
		return &ValidationError{Reason: fmt.Sprintf("end %d beyond content length %d", d.End, contentLen)}
	}
	return nil
}

// ComputeDelta returns the replace-range edit that turns prev into next, or nil
// if both are equal. It trims the longest common prefix, then the longest
// common suffix not overlapping the prefix. This is a heuristic, not a general
// diff: it always round-trips but is not guaranteed minimal for transpositions.
func ComputeDelta(prev, next string) *Delta {
	if prev == next {
		return nil
	}
	start := 0
	for start < len(prev) && start < len(next) && prev[start] == next[start] {
		start++
	}
	endPrev := len(prev) - 1
	endNext := len(next) - 1
	for endPrev >= start && endNext >= start && prev[endPrev] == next[endNext] {
		endPrev--
		endNext--
	}
	return &Delta{
		Start: start,
		End:   endPrev + 1,
		Text:  next[start : endNext+1],
	}
}

// ApplyDelta applies d to content. Out-of-range deltas are rejected with a
// ValidationError, never clamped.
func ApplyDelta(content string, d Delta) (string, error) {
	if err := d.Validate(len(content)); err != nil {
		return "", err
	}
	return content[:d.Start] + d.Text + content[d.End:], nil
}
