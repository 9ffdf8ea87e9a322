package monitor

import (
	"errors"
	"fmt"
	"regexp"
	"strings"
	"time"
)

var ErrInvalidConstraint = errors.New("invalid date")

var datePattern = regexp.MustCompile(`^\d{4}-\d{2}-\d{2}$`)

// Constraint decides which slot identifiers are wanted.
type Constraint interface {
	Matches(id string) bool
	String() string
}

// Before matches identifiers strictly earlier than Date.
type Before struct {
	Date string
}

func (b Before) Matches(id string) bool { return id < b.Date }
func (b Before) String() string         { return "before:" + b.Date }

type Any struct{}

func (Any) Matches(string) bool { return true }
func (Any) String() string      { return "any" }

// ParseDate accepts a calendar date in YYYY-MM-DD form.
func ParseDate(s string) (Before, error) {
	s = strings.TrimSpace(s)
	if !datePattern.MatchString(s) {
		return Before{}, fmt.Errorf("%w: %q", ErrInvalidConstraint, s)
	}
	_, err := time.Parse(time.DateOnly, s)
	if err != nil {
		return Before{}, fmt.Errorf("%w: %q", ErrInvalidConstraint, s)
	}
	return Before{Date: s}, nil
}

// ParseConstraint reads "any", "before:YYYY-MM-DD" or a bare date. an
// empty string means any.
func ParseConstraint(s string) (Constraint, error) {
	s = strings.TrimSpace(s)
	switch {
	case s == "" || s == "any":
		return Any{}, nil
	case strings.HasPrefix(s, "before:"):
		return ParseDate(strings.TrimPrefix(s, "before:"))
	default:
		return ParseDate(s)
	}
}
