package models

import (
	"time"

	"github.com/mkraev/venuetrace/internal/interval"
)

// ProblematicEvent is a backend-published record describing a venue/time
// window later flagged as a transmission risk. VenuePayload is opaque to
// this core; only the matching collaborator can interpret it.
type ProblematicEvent struct {
	EventID      string
	VenuePayload []byte
	Start        time.Time
	End          time.Time
}

// Window returns the event's risk interval.
func (e ProblematicEvent) Window() interval.Interval {
	return interval.Interval{Start: e.Start, End: e.End}
}

// ExposureEvent links a diary check-in to the problematic event that
// matched it. For notification deduplication purposes identity collapses to
// CheckinID alone: several matches against one check-in yield one alert.
type ExposureEvent struct {
	CheckinID      string
	MatchedEventID string
}
