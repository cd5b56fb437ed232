// Package window decides whether an event falls inside the current poll bucket.
//
// Time is cut into fixed-width buckets, bucket(t) = floor(t / width), with the
// poll interval as width. An event is due when now shares the start bucket, or
// when now lies strictly between the start and end buckets. The end bucket
// itself never matches the running branch, so an event whose start and end
// share a bucket can only be announced as starting.
package window

import (
	"errors"
	"time"
)

// ErrInvalidWidth is returned for a non-positive bucket width.
var ErrInvalidWidth = errors.New("bucket width must be positive")

// Reason says why an event matched.
type Reason int

// Match outcomes.
const (
	NotDue Reason = iota
	Starting
	Running
)

// String returns the reason label used in logs.
func (r Reason) String() string {
	switch r {
	case Starting:
		return "starting"
	case Running:
		return "running"
	default:
		return "not_due"
	}
}

// Bucket returns floor(t / width) on the Unix millisecond axis.
func Bucket(t time.Time, width time.Duration) int64 {
	w := width.Milliseconds()
	ms := t.UnixMilli()
	q := ms / w
	if ms%w != 0 && ms < 0 {
		q--
	}
	return q
}

// Match classifies the event window against now. It panics on a
// non-positive width; use MatchChecked for unvalidated input.
func Match(now, start, end time.Time, width time.Duration) Reason {
	r, err := MatchChecked(now, start, end, width)
	if err != nil {
		panic(err)
	}
	return r
}

// MatchChecked is Match with an error instead of a panic.
func MatchChecked(now, start, end time.Time, width time.Duration) (Reason, error) {
	if width.Milliseconds() <= 0 {
		return NotDue, ErrInvalidWidth
	}
	n := Bucket(now, width)
	s := Bucket(start, width)
	if n == s {
		return Starting, nil
	}
	if s < n && n < Bucket(end, width) {
		return Running, nil
	}
	return NotDue, nil
}

// Due reports whether the event should be announced in this cycle.
func Due(now, start, end time.Time, width time.Duration) bool {
	return Match(now, start, end, width) != NotDue
}
