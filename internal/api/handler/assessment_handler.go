package handler

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/clientcheck/trust-system/internal/api/metrics"
	"github.com/clientcheck/trust-system/internal/core/domain"
	"github.com/clientcheck/trust-system/internal/core/ports"
)

// AssessmentDispatcher is the interface the handler uses to enqueue
// assessment results for ingestion.
type AssessmentDispatcher interface {
	Enqueue(in ports.AssessmentInput)
	EnqueueBatch(batch []ports.AssessmentInput)
}

// AssessmentHandler ingests external AI scorer results.
type AssessmentHandler struct {
	dispatcher AssessmentDispatcher
	trust      ports.TrustService
}

// NewAssessmentHandler creates an AssessmentHandler backed by the given
// dispatcher and trust service.
func NewAssessmentHandler(dispatcher AssessmentDispatcher, trust ports.TrustService) *AssessmentHandler {
	return &AssessmentHandler{dispatcher: dispatcher, trust: trust}
}

type assessmentRequest struct {
	AnalysisType     string  `json:"analysis_type" validate:"required,oneof=safety sentiment face_detection"`
	OverallScore     float64 `json:"overall_score" validate:"gte=0,lte=10"`
	Confidence       float64 `json:"confidence" validate:"gte=0,lte=1"`
	ModelVersion     string  `json:"model_version" validate:"required,max=100"`
	ProcessingTimeMs int64   `json:"processing_time_ms" validate:"gte=0"`
}

type acceptedResponse struct {
	Message string `json:"message"`
	Count   int    `json:"count,omitempty"`
}

// Receive handles POST /v1/clients/:client_id/assessments: enqueues one
// scorer result, returns 202.
//
// @Summary      Ingest an AI assessment result
// @Tags         assessments
// @Accept       json
// @Produce      json
// @Security     BearerAuth
// @Param        client_id  path      int                true  "Client id"
// @Param        body       body      assessmentRequest  true  "Assessment result"
// @Success      202        {object}  acceptedResponse
// @Failure      400        {object}  map[string]string
// @Failure      422        {object}  map[string]string
// @Router       /v1/clients/{client_id}/assessments [post]
func (h *AssessmentHandler) Receive(c echo.Context) error {
	clientID, err := pathID(c, "client_id")
	if err != nil {
		return err
	}

	var req assessmentRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid payload")
	}
	if err := c.Validate(&req); err != nil {
		return echo.NewHTTPError(http.StatusUnprocessableEntity, err.Error())
	}

	h.dispatcher.Enqueue(toAssessmentInput(clientID, req))
	metrics.AssessmentsIngestedTotal.WithLabelValues(req.AnalysisType).Inc()
	return c.JSON(http.StatusAccepted, acceptedResponse{Message: "assessment accepted"})
}

type correctConfidenceRequest struct {
	Confidence float64 `json:"confidence" validate:"gte=0,lte=1"`
}

// Correct handles PATCH /v1/admin/assessments/:id/confidence, the single
// sanctioned mutation on the append-only assessment history.
//
// @Summary      Correct an assessment's confidence
// @Tags         admin
// @Accept       json
// @Produce      json
// @Security     BearerAuth
// @Param        id    path  int                       true  "Assessment id"
// @Param        body  body  correctConfidenceRequest  true  "Corrected confidence"
// @Success      204
// @Failure      400  {object}  map[string]string
// @Failure      404  {object}  map[string]string
// @Router       /v1/admin/assessments/{id}/confidence [patch]
func (h *AssessmentHandler) Correct(c echo.Context) error {
	id, err := pathID(c, "id")
	if err != nil {
		return err
	}
	userID, _, err := ctxClaims(c)
	if err != nil {
		return err
	}

	var req correctConfidenceRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid payload")
	}
	if err := c.Validate(&req); err != nil {
		return echo.NewHTTPError(http.StatusUnprocessableEntity, err.Error())
	}

	if err := h.trust.CorrectConfidence(c.Request().Context(), id, req.Confidence, userID); err != nil {
		return err
	}
	return c.NoContent(http.StatusNoContent)
}

// toAssessmentInput maps the HTTP request to the service DTO.
func toAssessmentInput(clientID int64, r assessmentRequest) ports.AssessmentInput {
	return ports.AssessmentInput{
		ClientID:         clientID,
		AnalysisType:     domain.AnalysisType(r.AnalysisType),
		OverallScore:     r.OverallScore,
		Confidence:       r.Confidence,
		ModelVersion:     r.ModelVersion,
		ProcessingTimeMs: r.ProcessingTimeMs,
	}
}
