// Package garmin implements the destination-account session: SSO login,
// OAuth token exchange, and the activity-file upload with idempotency
// classification.
package garmin

// OutcomeCode classifies one upload attempt.
type OutcomeCode int

const (
	// OutcomeAccepted: the service stored the file as new data.
	OutcomeAccepted OutcomeCode = iota
	// OutcomeDuplicate: the service already holds this data; a benign
	// re-delivery, not an error.
	OutcomeDuplicate
	// OutcomeRejected: the service declined the file for another reason.
	OutcomeRejected
)

// UploadOutcome is the classified result of one upload attempt. Reason is
// set only for rejections and carries the service's status text verbatim.
type UploadOutcome struct {
	Code   OutcomeCode
	Reason string
}

// String renders the wire-level status literal surfaced to the operator.
func (o UploadOutcome) String() string {
	switch o.Code {
	case OutcomeAccepted:
		return "SUCCESS"
	case OutcomeDuplicate:
		return "DUPLICATE"
	default:
		if o.Reason == "" {
			return "REJECTED"
		}
		return o.Reason
	}
}
