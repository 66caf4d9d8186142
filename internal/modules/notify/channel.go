// Package notify delivers recommendation notifications over pluggable
// channels on two tracks: verbose (everything that clears the throttle) and
// smart (only material changes since the last send).
package notify

import (
	"context"
	"time"

	"github.com/mleventi/wheelhouse/internal/domain"
)

// Track identifies the notification track a message belongs to.
type Track string

const (
	TrackVerbose Track = "verbose"
	TrackSmart   Track = "smart"
)

// Notification is one message ready for delivery.
type Notification struct {
	Track          Track                 `json:"track"`
	Recommendation domain.Recommendation `json:"recommendation"`
	SentAt         time.Time             `json:"sent_at"`
}

// Channel delivers notifications to one destination. Implementations must be
// safe for concurrent use.
type Channel interface {
	Name() string
	Send(ctx context.Context, n Notification) error
}
