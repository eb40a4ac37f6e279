package dispatch

import (
	"time"

	"github.com/google/uuid"
)

// CycleReport summarizes one finished cycle.
type CycleReport struct {
	ID          uuid.UUID            `json:"id"`
	TriggeredAt time.Time            `json:"triggeredAt"`
	FactID      int64                `json:"factID"`
	Attempted   int                  `json:"attempted"`
	Succeeded   int                  `json:"succeeded"`
	Failed      int                  `json:"failed"`
	Failures    []RecipientSendError `json:"failures,omitempty"`
	Duration    time.Duration        `json:"duration"`
}

// Result is the metrics label for the cycle outcome.
func (r *CycleReport) Result() string {
	switch {
	case r.Failed == 0:
		return "success"
	case r.Succeeded == 0:
		return "all_failed"
	default:
		return "partial"
	}
}
