// Package router decides, for a given overdue invoice history and a
// reference date, whether a reminder is due and at which escalation
// stage. All operations are pure; the reference date is always an
// explicit parameter.
package router

import (
	"fmt"
	"time"
)

// DefaultStages is the standard escalation sequence in days overdue.
var DefaultStages = []int{7, 14, 21, 28, 35, 42}

// NoStage is the zero value returned when no stage applies. Stage
// thresholds are always positive, so 0 is unambiguous.
const NoStage = 0

// Router maps days overdue onto an ordered stage sequence. The sequence
// is fixed at construction; ordering between stages is by position in
// the sequence, not by raw numeric comparison.
type Router struct {
	stages []int
}

// New creates a Router from an ascending, positive stage sequence.
func New(stages []int) (*Router, error) {
	if len(stages) == 0 {
		return nil, fmt.Errorf("stage sequence cannot be empty")
	}
	for i, s := range stages {
		if s <= 0 {
			return nil, fmt.Errorf("stage threshold must be positive, got %d", s)
		}
		if i > 0 && s <= stages[i-1] {
			return nil, fmt.Errorf("stage sequence must be strictly ascending: %d after %d", s, stages[i-1])
		}
	}
	out := make([]int, len(stages))
	copy(out, stages)
	return &Router{stages: out}, nil
}

// Stages returns a copy of the configured sequence.
func (r *Router) Stages() []int {
	out := make([]int, len(r.stages))
	copy(out, r.stages)
	return out
}

// DaysOverdue returns the whole calendar days between due and today,
// floored at zero. An invoice due today is 0 days overdue; a due date
// in the future never yields a negative count.
func DaysOverdue(due, today time.Time) int {
	days := int(dateOnly(today).Sub(dateOnly(due)) / (24 * time.Hour))
	if days < 0 {
		return 0
	}
	return days
}

// StageFor returns the largest stage threshold <= days, a floor
// selection over the sequence. Thresholds are inclusive: day 7 maps to
// stage 7, day 40 maps to stage 35. Below the first threshold the
// second return is false.
func (r *Router) StageFor(days int) (int, bool) {
	stage := NoStage
	for _, s := range r.stages {
		if days >= s {
			stage = s
		}
	}
	return stage, stage != NoStage
}

// ShouldSend decides whether a reminder must go out today.
//
// Rules, in order:
//  1. no stage determined yet -> false
//  2. a reminder already went out today -> false, regardless of stage
//  3. no reminder ever sent -> true
//  4. otherwise only a strictly advancing stage sends; the same or a
//     lower stage never re-sends
//
// lastStageSent == NoStage and a zero lastSentAt mean "never sent".
func (r *Router) ShouldSend(stage, lastStageSent int, lastSentAt, today time.Time) bool {
	if stage == NoStage {
		return false
	}
	if !lastSentAt.IsZero() && sameDay(lastSentAt, today) {
		return false
	}
	if lastStageSent == NoStage {
		return true
	}
	si := r.indexOf(stage)
	li := r.indexOf(lastStageSent)
	if si >= 0 && li >= 0 {
		return si > li
	}
	// A tracked stage outside the configured sequence (legacy data or a
	// reconfigured sequence) falls back to numeric comparison.
	return stage > lastStageSent
}

// NextStage returns the stage that follows current in the sequence.
// With current == NoStage it returns the first stage; past the last
// stage the second return is false.
func (r *Router) NextStage(current int) (int, bool) {
	if current == NoStage {
		return r.stages[0], true
	}
	idx := r.indexOf(current)
	if idx < 0 || idx == len(r.stages)-1 {
		return NoStage, false
	}
	return r.stages[idx+1], true
}

// DaysUntilNextStage returns how many days until the next threshold is
// reached, or false when already at or past the final stage.
func (r *Router) DaysUntilNextStage(days int) (int, bool) {
	current, _ := r.StageFor(days)
	next, ok := r.NextStage(current)
	if !ok {
		return 0, false
	}
	return next - days, true
}

func (r *Router) indexOf(stage int) int {
	for i, s := range r.stages {
		if s == stage {
			return i
		}
	}
	return -1
}

func dateOnly(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}

func sameDay(a, b time.Time) bool {
	return a.Year() == b.Year() && a.Month() == b.Month() && a.Day() == b.Day()
}
