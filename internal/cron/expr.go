package cron

import (
	"fmt"
	"strings"
	"time"

	robfig "github.com/robfig/cron/v3"
)

// exprParser accepts the standard 5-field syntax only.
var exprParser = robfig.NewParser(robfig.Minute | robfig.Hour | robfig.Dom | robfig.Month | robfig.Dow)

// Expr is a parsed 5-field cron expression.
type Expr struct {
	raw   string
	sched robfig.Schedule
}

// ParseExpr parses "minute hour day-of-month month day-of-week".
func ParseExpr(s string) (*Expr, error) {
	s = strings.TrimSpace(s)
	if len(strings.Fields(s)) != 5 {
		return nil, fmt.Errorf("cron expression %q: expected 5 fields", s)
	}
	sched, err := exprParser.Parse(s)
	if err != nil {
		return nil, fmt.Errorf("cron expression %q: %w", s, err)
	}
	return &Expr{raw: s, sched: sched}, nil
}

// String returns the expression as written.
func (e *Expr) String() string {
	return e.raw
}

// Next returns the first matching minute strictly after t, in t's location.
func (e *Expr) Next(t time.Time) (time.Time, error) {
	next := e.sched.Next(t)
	if next.IsZero() {
		return time.Time{}, fmt.Errorf("cron expression %q never matches", e.raw)
	}
	return next, nil
}
