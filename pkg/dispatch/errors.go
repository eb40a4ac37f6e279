package dispatch

import (
	"fmt"
)

// Stages at which a cycle can fail to load its data.
const (
	StageFact        = "fact"
	StageSubscribers = "subscribers"
)

// DataFetchError means the cycle aborted before any mail was sent because the
// fact or the subscriber list could not be read.
type DataFetchError struct {
	Stage string
	Err   error
}

func (e *DataFetchError) Error() string {
	return fmt.Sprintf("dispatch aborted: failed to fetch %s: %v", e.Stage, e.Err)
}

func (e *DataFetchError) Unwrap() error {
	return e.Err
}

// RecipientSendError records a failed delivery to one subscriber. It never
// aborts the cycle.
type RecipientSendError struct {
	SubscriberID int64  `json:"subscriberID"`
	Recipient    string `json:"recipient"`
	Reason       string `json:"reason"`
	Err          error  `json:"-"`
}

func (e *RecipientSendError) Error() string {
	return fmt.Sprintf("send to %s failed: %s", e.Recipient, e.Reason)
}

func (e *RecipientSendError) Unwrap() error {
	return e.Err
}
