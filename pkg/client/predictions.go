package client

import (
	"context"
	"net/http"
)

const apiPrefix = "/api/v1"

// ProfileInfo is the display information of a looked-up account.
type ProfileInfo struct {
	Username      string `json:"username"`
	FullName      string `json:"full_name"`
	Biography     string `json:"biography"`
	ProfilePicURL string `json:"profile_pic_url"`
	IsPrivate     bool   `json:"is_private"`
	NumPosts      int64  `json:"num_posts"`
	NumFollowers  int64  `json:"num_followers"`
	NumFollows    int64  `json:"num_follows"`
	ExternalURL   string `json:"external_url"`
}

// Prediction is the classifier output. ProfileInfo is set only for username
// predictions.
type Prediction struct {
	FakeProbability float64      `json:"fake_probability"`
	IsFake          bool         `json:"is_fake"`
	ProfileInfo     *ProfileInfo `json:"profile_info,omitempty"`
}

// Liveness is the /healthz body.
type Liveness struct {
	Status  string `json:"status"`
	Version string `json:"version"`
	Uptime  string `json:"uptime"`
}

// ComponentStatus is one dependency in a readiness report.
type ComponentStatus struct {
	Status  string `json:"status"`
	Latency string `json:"latency,omitempty"`
	Error   string `json:"error,omitempty"`
}

// Readiness is the /readyz body.
type Readiness struct {
	Status     string                     `json:"status"`
	Components map[string]ComponentStatus `json:"components,omitempty"`
}

// Ready reports whether every component is healthy.
func (r *Readiness) Ready() bool {
	return r != nil && r.Status == "ready"
}

// PredictUsername fetches the account from the server's profile source and
// classifies it.
func (c *Client) PredictUsername(ctx context.Context, username string) (*Prediction, error) {
	var out Prediction
	if err := c.do(ctx, http.MethodPost, apiPrefix+"/predict", map[string]string{"username": username}, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// PredictFeatures classifies an already extracted feature vector.
func (c *Client) PredictFeatures(ctx context.Context, features []float64) (*Prediction, error) {
	var out Prediction
	body := map[string][]float64{"features": features}
	if err := c.do(ctx, http.MethodPost, apiPrefix+"/predict/features", body, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// Live calls the liveness probe.
func (c *Client) Live(ctx context.Context) (*Liveness, error) {
	var out Liveness
	if err := c.do(ctx, http.MethodGet, "/healthz", nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// Health calls the readiness probe. A 503 is decoded, not returned as an error.
func (c *Client) Health(ctx context.Context) (*Readiness, error) {
	var out Readiness
	if err := c.do(ctx, http.MethodGet, "/readyz", nil, &out, http.StatusServiceUnavailable); err != nil {
		return nil, err
	}
	return &out, nil
}
