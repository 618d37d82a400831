// Package meeting provisions and releases video-conference rooms for booked
// interview slots.
package meeting

import (
	"context"
	"errors"
	"time"

	"interviewdesk/pkg/model"
)

var (
	// ErrResourceUnavailable is returned when a room could not be created.
	ErrResourceUnavailable = errors.New("meeting resource unavailable")

	// ErrReleaseFailed is returned when the provider refused to delete a room.
	ErrReleaseFailed = errors.New("meeting release failed")
)

// Client creates and deletes meeting rooms. Both calls are bounded by the
// client's own call timeout on top of ctx.
type Client interface {
	Acquire(ctx context.Context, start time.Time) (model.MeetingRef, error)
	// Release deletes the room. A room the provider no longer knows about
	// counts as released.
	Release(ctx context.Context, ref model.MeetingRef) error
}
