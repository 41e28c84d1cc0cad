package links

import (
	"time"

	"github.com/google/uuid"
)

// Link maps a short code to a target URL together with its click accounting.
// Clicks and LastClicked are only ever changed by storage during a resolve.
type Link struct {
	ID          uuid.UUID
	Code        string
	TargetURL   string
	Clicks      int64
	LastClicked *time.Time
	CreatedAt   time.Time
}

// NewID returns a time-ordered identifier for a new link.
// uuid.NewV7 only fails when the random source does, so one retry is enough.
func NewID() (uuid.UUID, error) {
	id, err := uuid.NewV7()
	if err != nil {
		id, err = uuid.NewV7()
	}
	return id, err
}
