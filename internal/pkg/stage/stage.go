/*
stage.go Append-only record of a build session's history. Every filter
application is recorded with its resulting row count; correcting a mistake is
done by recording a new stage, prior stages remain for audit.
*/

package stage

import (
	"time"

	"github.com/google/uuid"

	"github.com/owalsh/gridstage/internal/pkg/catalog"
	"github.com/owalsh/gridstage/internal/pkg/filter"
)

// Stage is one recorded build event. Stages are never mutated after creation.
type Stage struct {
	Seq    int           `json:"seq"`
	PID    uuid.UUID     `json:"pid"`
	Name   string        `json:"name"`
	Kind   catalog.Kind  `json:"kind,omitempty"`
	Filter filter.Filter `json:"filter"`
	Count  int           `json:"count"`
	At     time.Time     `json:"at"`
}

// Log is the ordered build history of one session. It only grows; there is no
// deletion or reordering operation.
type Log struct {
	stages  []Stage
	nextSeq int
}

// NewLog returns an empty stage log starting at sequence zero.
func NewLog() *Log {
	return &Log{}
}

// Restore rebuilds a log from previously recorded stages. The next sequence
// index continues strictly after the highest restored index, so indices are
// never reused even when a checkpoint load discards later history.
func Restore(stages []Stage) *Log {
	l := &Log{stages: append([]Stage(nil), stages...)}
	for _, s := range l.stages {
		if s.Seq >= l.nextSeq {
			l.nextSeq = s.Seq + 1
		}
	}
	return l
}

// Record appends a new stage and returns it.
func (l *Log) Record(name string, kind catalog.Kind, f filter.Filter, count int) Stage {
	pid, _ := uuid.NewRandom()
	s := Stage{
		Seq:    l.nextSeq,
		PID:    pid,
		Name:   name,
		Kind:   kind,
		Filter: f,
		Count:  count,
		At:     time.Now().UTC(),
	}
	l.stages = append(l.stages, s)
	l.nextSeq++
	return s
}

// History returns the recorded stages in order.
func (l *Log) History() []Stage {
	return append([]Stage(nil), l.stages...)
}

// Len returns the number of recorded stages.
func (l *Log) Len() int {
	return len(l.stages)
}

// Last returns the most recent stage, if any.
func (l *Log) Last() (Stage, bool) {
	if len(l.stages) == 0 {
		return Stage{}, false
	}
	return l.stages[len(l.stages)-1], true
}
