package handlers

import (
	stderrors "errors"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/turtacn/FakeProfile-Intelligence/internal/application/detection"
	"github.com/turtacn/FakeProfile-Intelligence/internal/domain/profile"
	"github.com/turtacn/FakeProfile-Intelligence/internal/infrastructure/monitoring/logging"
	"github.com/turtacn/FakeProfile-Intelligence/pkg/errors"
)

// PredictRequest is the body of POST /predict: a username, or a raw feature
// vector as sent by older clients.
type PredictRequest struct {
	Username string     `json:"username"`
	Features []*float64 `json:"features"`
}

// PredictFeaturesRequest is the body of POST /predict/features. Elements are
// pointers so that JSON null is rejected instead of read as 0.
type PredictFeaturesRequest struct {
	Features []*float64 `json:"features"`
}

// PredictionResponse is returned by both predict endpoints. ProfileInfo is
// only set for username predictions.
type PredictionResponse struct {
	FakeProbability float64       `json:"fake_probability"`
	IsFake          bool          `json:"is_fake"`
	ProfileInfo     *profile.Info `json:"profile_info,omitempty"`
}

// PredictionHandler serves the predict endpoints.
type PredictionHandler struct {
	service detection.Service
	logger  logging.Logger
}

func NewPredictionHandler(service detection.Service, logger logging.Logger) *PredictionHandler {
	if logger == nil {
		logger = logging.NewNopLogger()
	}
	return &PredictionHandler{service: service, logger: logger.Named("http")}
}

// RegisterRoutes mounts the predict endpoints on rg.
func (h *PredictionHandler) RegisterRoutes(rg gin.IRoutes) {
	rg.POST("/predict", h.PredictUsername)
	rg.POST("/predict/features", h.PredictFeatures)
}

// PredictUsername handles POST /predict. A body carrying features is scored
// as a vector.
func (h *PredictionHandler) PredictUsername(c *gin.Context) {
	var req PredictRequest
	if err := bindJSON(c, &req); err != nil {
		abortWithError(c, h.logger, err)
		return
	}
	if req.Features != nil {
		if req.Username != "" {
			abortWithError(c, h.logger, errors.InvalidInput("provide either username or features, not both"))
			return
		}
		h.predictVector(c, req.Features)
		return
	}

	res, err := h.service.PredictFromUsername(c.Request.Context(), req.Username)
	if err != nil {
		abortWithError(c, h.logger, err)
		return
	}

	info := res.Profile.Info()
	c.JSON(http.StatusOK, PredictionResponse{
		FakeProbability: res.FakeProbability,
		IsFake:          res.IsFake,
		ProfileInfo:     &info,
	})
}

// PredictFeatures handles POST /predict/features.
func (h *PredictionHandler) PredictFeatures(c *gin.Context) {
	var req PredictFeaturesRequest
	if err := bindJSON(c, &req); err != nil {
		abortWithError(c, h.logger, err)
		return
	}
	h.predictVector(c, req.Features)
}

func (h *PredictionHandler) predictVector(c *gin.Context, raw []*float64) {
	features, err := derefFeatures(raw)
	if err != nil {
		abortWithError(c, h.logger, err)
		return
	}

	res, err := h.service.PredictFromVector(c.Request.Context(), features)
	if err != nil {
		abortWithError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, PredictionResponse{
		FakeProbability: res.FakeProbability,
		IsFake:          res.IsFake,
	})
}

// derefFeatures rejects null elements. A nil slice stays nil so the service
// reports the missing field.
func derefFeatures(raw []*float64) ([]float64, error) {
	if raw == nil {
		return nil, nil
	}
	out := make([]float64, len(raw))
	for i, v := range raw {
		if v == nil {
			return nil, errors.InvalidInput(detection.MsgFeaturesNumeric)
		}
		out[i] = *v
	}
	return out, nil
}

// bindJSON decodes the body into dst. An empty body leaves dst zero so the
// service reports the missing field.
func bindJSON(c *gin.Context, dst interface{}) error {
	if err := c.ShouldBindJSON(dst); err != nil {
		if stderrors.Is(err, io.EOF) {
			return nil
		}
		return errors.InvalidInput("request body must be a JSON object").WithCause(err)
	}
	return nil
}
