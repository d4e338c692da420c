package shift

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

type Kind string

const (
	KindRegular  Kind = "regular"
	KindRotation Kind = "rotation"
	KindCustom   Kind = "custom"
)

var (
	ErrInvalidPatternConfig = errors.New("invalid shift pattern config")
	ErrInvalidDateRange     = errors.New("start date after end date")
)

// Pattern describes which calendar days a person works. Rotation and Custom
// cycles are anchored at ReferenceDate; Regular ignores it.
type Pattern struct {
	Kind          Kind       `json:"type"`
	WorkDays      int        `json:"workDays,omitempty"`
	OffDays       int        `json:"offDays,omitempty"`
	Custom        string     `json:"pattern,omitempty"`
	ReferenceDate *time.Time `json:"referenceDate,omitempty"`
}

type InvalidPatternError struct {
	Field  string
	Reason string
}

func (e *InvalidPatternError) Error() string {
	return fmt.Sprintf("%s: %s %s", ErrInvalidPatternConfig, e.Field, e.Reason)
}

func (e *InvalidPatternError) Unwrap() error {
	return ErrInvalidPatternConfig
}

func Regular() Pattern {
	return Pattern{Kind: KindRegular}
}

func Rotation(workDays, offDays int, reference time.Time) Pattern {
	ref := Normalize(reference)
	return Pattern{Kind: KindRotation, WorkDays: workDays, OffDays: offDays, ReferenceDate: &ref}
}

func Custom(pattern string, reference time.Time) Pattern {
	ref := Normalize(reference)
	return Pattern{Kind: KindCustom, Custom: pattern, ReferenceDate: &ref}
}

// Validate is meant to run when a pattern is saved. Evaluation never calls it.
func (p Pattern) Validate() error {
	switch p.Kind {
	case KindRegular:
		return nil
	case KindRotation:
		if p.ReferenceDate == nil || p.ReferenceDate.IsZero() {
			return &InvalidPatternError{Field: "referenceDate", Reason: "is required for rotation patterns"}
		}
		if p.WorkDays < 1 {
			return &InvalidPatternError{Field: "workDays", Reason: "must be at least 1"}
		}
		if p.OffDays < 1 {
			return &InvalidPatternError{Field: "offDays", Reason: "must be at least 1"}
		}
		return nil
	case KindCustom:
		if p.ReferenceDate == nil || p.ReferenceDate.IsZero() {
			return &InvalidPatternError{Field: "referenceDate", Reason: "is required for custom patterns"}
		}
		if p.Custom == "" {
			return &InvalidPatternError{Field: "pattern", Reason: "must not be empty"}
		}
		for i, c := range p.Custom {
			if c != 'W' && c != 'O' {
				return &InvalidPatternError{Field: "pattern", Reason: fmt.Sprintf("has invalid character %q at position %d", c, i)}
			}
		}
		return nil
	default:
		return &InvalidPatternError{Field: "type", Reason: fmt.Sprintf("unknown pattern type %q", p.Kind)}
	}
}

// CycleLength is zero for Regular patterns.
func (p Pattern) CycleLength() int {
	switch p.Kind {
	case KindRotation:
		return p.WorkDays + p.OffDays
	case KindCustom:
		return len(p.Custom)
	default:
		return 0
	}
}

// GroupKey identifies members that share the same rotation phase.
func (p Pattern) GroupKey() string {
	switch p.Kind {
	case KindRotation:
		return fmt.Sprintf("rotation:%d/%d@%s", p.WorkDays, p.OffDays, referenceKey(p.ReferenceDate))
	case KindCustom:
		return fmt.Sprintf("custom:%s@%s", strings.ToUpper(p.Custom), referenceKey(p.ReferenceDate))
	default:
		return string(KindRegular)
	}
}

func referenceKey(ref *time.Time) string {
	if ref == nil {
		return "none"
	}
	return ref.Format("2006-01-02")
}

// DateRange uses an exclusive End: a single day d is [d, d+1).
type DateRange struct {
	Start time.Time `json:"start"`
	End   time.Time `json:"end"`
}

func (r DateRange) Days() int {
	return int(DayNumber(r.End) - DayNumber(r.Start))
}

// FromInclusive converts an inclusive leave span to the exclusive-end form.
func FromInclusive(start, end time.Time) DateRange {
	return DateRange{Start: Normalize(start), End: Normalize(end).AddDate(0, 0, 1)}
}

// Inclusive returns the first and last day covered by the range.
func (r DateRange) Inclusive() (time.Time, time.Time) {
	return Normalize(r.Start), Normalize(r.End).AddDate(0, 0, -1)
}
