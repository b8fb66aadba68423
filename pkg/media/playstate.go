package media

import (
	"time"

	"github.com/kinoteka/kinoteka/pkg/errcodes"
)

// UserItemData tracks one user's playback state for an item. Mutating it is a
// synchronous user override and never triggers the refresh protocol.
type UserItemData struct {
	Played           bool
	PlayCount        int
	PlaybackPosition time.Duration
	LastPlayedAt     *time.Time
}

// MarkPlayed records a completed play: the play count rises to at least 1 and
// the last-played time is stamped only if it was unset.
func (i *Item) MarkPlayed(data *UserItemData, at time.Time) error {
	if data == nil {
		return errcodes.Invariant("user data is required to mark an item played")
	}

	data.Played = true
	data.PlayCount++
	if data.PlayCount < 1 {
		data.PlayCount = 1
	}
	if data.LastPlayedAt == nil {
		data.LastPlayedAt = &at
	}
	return nil
}

// MarkUnplayed resets the user's state entirely: play count, position and
// last-played time are cleared regardless of their prior values.
func (i *Item) MarkUnplayed(data *UserItemData) error {
	if data == nil {
		return errcodes.Invariant("user data is required to mark an item unplayed")
	}

	data.Played = false
	data.PlayCount = 0
	data.PlaybackPosition = 0
	data.LastPlayedAt = nil
	return nil
}
