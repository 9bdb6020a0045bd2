// Package messaging adapts the detection service to Kafka: a consumer-side
// handler for classification requests and a publisher for results.
package messaging

import (
	"time"

	"github.com/turtacn/FakeProfile-Intelligence/internal/domain/profile"
)

// Classification modes.
const (
	ModeUsername = "username"
	ModeFeatures = "features"
)

// ClassificationRequest is the payload of a classification.requested event.
// Exactly one of Username and Features must be set.
type ClassificationRequest struct {
	RequestID string    `json:"request_id,omitempty"`
	Username  string    `json:"username,omitempty"`
	Features  []float64 `json:"features,omitempty"`
}

// Mode reports which input the request carries, or "" if it carries both or
// neither.
func (r ClassificationRequest) Mode() string {
	hasUser := r.Username != ""
	hasVec := r.Features != nil
	switch {
	case hasUser && !hasVec:
		return ModeUsername
	case hasVec && !hasUser:
		return ModeFeatures
	default:
		return ""
	}
}

// ClassificationResult is the payload of profile.classified and
// profile.classification.failed events.
type ClassificationResult struct {
	RequestID       string        `json:"request_id,omitempty"`
	Username        string        `json:"username,omitempty"`
	Mode            string        `json:"mode,omitempty"`
	FakeProbability float64       `json:"fake_probability"`
	IsFake          bool          `json:"is_fake"`
	ProfileInfo     *profile.Info `json:"profile_info,omitempty"`
	ModelVersion    string        `json:"model_version,omitempty"`
	Error           string        `json:"error,omitempty"`
	ErrorCode       string        `json:"error_code,omitempty"`
	ClassifiedAt    time.Time     `json:"classified_at"`
}

// Failed reports whether the result carries an error instead of a score.
func (r ClassificationResult) Failed() bool {
	return r.ErrorCode != ""
}
