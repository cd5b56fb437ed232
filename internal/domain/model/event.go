// Package model contains domain models passed between layers.
package model

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// Dataset names one of the tracked feed documents.
type Dataset string

// Tracked datasets.
const (
	DatasetEvents Dataset = "events"
	DatasetRaids  Dataset = "raids"
	DatasetEggs   Dataset = "eggs"
)

// String returns the dataset name.
func (d Dataset) String() string { return string(d) }

// ErrInvalidTime is returned when a feed timestamp cannot be parsed.
var ErrInvalidTime = errors.New("invalid feed timestamp")

// EventID is the stable identity of an event across polls.
type EventID string

// String returns the raw identifier.
func (id EventID) String() string { return string(id) }

// IsZero reports whether the identifier is empty.
func (id EventID) IsZero() bool { return strings.TrimSpace(string(id)) == "" }

// Equal compares two identifiers exactly.
func (id EventID) Equal(other EventID) bool { return id == other }

// Bonus is a single community day bonus line.
type Bonus struct {
	Text  string `json:"text"`
	Image string `json:"image,omitempty"`
}

// CommunityDay carries the structured extras of a community day event.
type CommunityDay struct {
	Bonuses []Bonus `json:"bonuses,omitempty"`
}

// ExtraData is the optional structured payload attached to some events.
type ExtraData struct {
	CommunityDay *CommunityDay `json:"communityday,omitempty"`
}

// EventRecord is one entry of the events feed.
type EventRecord struct {
	EventID   string     `json:"eventID"`
	Name      string     `json:"name"`
	EventType string     `json:"eventType"`
	Heading   string     `json:"heading"`
	Link      string     `json:"link"`
	Image     string     `json:"image"`
	Start     string     `json:"start"`
	End       string     `json:"end"`
	ExtraData *ExtraData `json:"extraData,omitempty"`

	// Description is filled in after the detail page was fetched.
	Description string `json:"-"`
}

// Identity returns the feed identifier, or a name@start key for records
// that arrive without one.
func (e EventRecord) Identity() EventID {
	if id := strings.TrimSpace(e.EventID); id != "" {
		return EventID(id)
	}
	name := strings.TrimSpace(e.Name)
	if name == "" {
		return ""
	}
	return EventID(name + "@" + strings.TrimSpace(e.Start))
}

// Bonuses returns the non-empty community day bonus texts in feed order.
func (e EventRecord) Bonuses() []string {
	if e.ExtraData == nil || e.ExtraData.CommunityDay == nil {
		return nil
	}
	out := make([]string, 0, len(e.ExtraData.CommunityDay.Bonuses))
	for _, b := range e.ExtraData.CommunityDay.Bonuses {
		if t := strings.TrimSpace(b.Text); t != "" {
			out = append(out, t)
		}
	}
	return out
}

// Window parses the start and end timestamps.
func (e EventRecord) Window(loc *time.Location) (start, end time.Time, err error) {
	if start, err = ParseTime(e.Start, loc); err != nil {
		return time.Time{}, time.Time{}, err
	}
	if end, err = ParseTime(e.End, loc); err != nil {
		return time.Time{}, time.Time{}, err
	}
	return start, end, nil
}

// Layouts used by the feed for zone-less local timestamps.
var localLayouts = []string{
	"2006-01-02T15:04:05.000",
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
	"2006-01-02",
}

// ParseTime parses a feed timestamp. Values carrying an offset keep it;
// zone-less values are wall-clock times in loc (time.Local when nil).
func ParseTime(raw string, loc *time.Location) (time.Time, error) {
	s := strings.TrimSpace(raw)
	if s == "" {
		return time.Time{}, ErrInvalidTime
	}
	if t, err := time.Parse(time.RFC3339Nano, s); err == nil {
		return t, nil
	}
	if loc == nil {
		loc = time.Local
	}
	for _, layout := range localLayouts {
		if t, err := time.ParseInLocation(layout, s, loc); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("%w: %q", ErrInvalidTime, s)
}
