package domain

import (
	"fmt"
	"time"
)

// Notification is one entry of the activity feed.
type Notification struct {
	// ID increases strictly with every entry added to a feed.
	ID int64

	Text string

	// Timestamp is the authoritative creation time.
	Timestamp time.Time

	// DisplayTime is derived from Timestamp whenever the feed is read.
	DisplayTime string

	Read bool
}

// RelativeTime renders the age of t as seen at now.
func RelativeTime(now, t time.Time) string {
	age := now.Sub(t)
	switch {
	case age < time.Minute:
		return "Just now"
	case age < time.Hour:
		return fmt.Sprintf("%dm ago", int(age/time.Minute))
	case age < 24*time.Hour:
		return fmt.Sprintf("%dh ago", int(age/time.Hour))
	default:
		return fmt.Sprintf("%dd ago", int(age/(24*time.Hour)))
	}
}
