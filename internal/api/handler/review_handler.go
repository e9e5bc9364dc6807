package handler

import (
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"

	"github.com/clientcheck/trust-system/internal/api/metrics"
	"github.com/clientcheck/trust-system/internal/core/domain"
	"github.com/clientcheck/trust-system/internal/core/ports"
)

// ReviewHandler handles HTTP requests for review moderation operations.
type ReviewHandler struct {
	service ports.ModerationService
}

func NewReviewHandler(service ports.ModerationService) *ReviewHandler {
	return &ReviewHandler{service: service}
}

// Submit handles POST /v1/clients/:client_id/reviews.
//
// @Summary      Submit a review for a client
// @Tags         reviews
// @Accept       json
// @Produce      json
// @Security     BearerAuth
// @Param        client_id  path      int                  true  "Client id"
// @Param        body       body      submitReviewRequest  true  "Review details"
// @Success      201        {object}  reviewResponse
// @Failure      400        {object}  map[string]string
// @Failure      404        {object}  map[string]string
// @Failure      409        {object}  map[string]string
// @Failure      429        {object}  map[string]string
// @Router       /v1/clients/{client_id}/reviews [post]
func (h *ReviewHandler) Submit(c echo.Context) error {
	clientID, err := pathID(c, "client_id")
	if err != nil {
		return err
	}
	userID, _, err := ctxClaims(c)
	if err != nil {
		return err
	}

	var req submitReviewRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid payload")
	}
	if err := c.Validate(&req); err != nil {
		return echo.NewHTTPError(http.StatusUnprocessableEntity, err.Error())
	}

	review, err := h.service.SubmitReview(c.Request().Context(), ports.SubmitReviewInput{
		ClientID:   clientID,
		ReviewerID: userID,
		Rating:     req.Rating,
		Comment:    req.Comment,
	})
	if err != nil {
		return err
	}

	metrics.ReviewsSubmittedTotal.WithLabelValues(strconv.Itoa(review.Rating)).Inc()
	return c.JSON(http.StatusCreated, toReviewResponse(review))
}

// Flag handles POST /v1/reviews/:id/flag.
//
// @Summary      Flag a review as abusive or inaccurate
// @Tags         reviews
// @Accept       json
// @Produce      json
// @Security     BearerAuth
// @Param        id    path      int                true  "Review id"
// @Param        body  body      flagReviewRequest  false  "Flag reason"
// @Success      200   {object}  reviewResponse
// @Failure      404   {object}  map[string]string
// @Failure      429   {object}  map[string]string
// @Router       /v1/reviews/{id}/flag [post]
func (h *ReviewHandler) Flag(c echo.Context) error {
	reviewID, err := pathID(c, "id")
	if err != nil {
		return err
	}
	userID, _, err := ctxClaims(c)
	if err != nil {
		return err
	}

	var req flagReviewRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid payload")
	}

	review, err := h.service.FlagReview(c.Request().Context(), ports.FlagReviewInput{
		ReviewID:  reviewID,
		FlaggedBy: userID,
		Reason:    req.Reason,
	})
	if err != nil {
		return err
	}

	metrics.ReviewFlagsTotal.Inc()
	if review.Status == domain.ReviewHidden {
		metrics.ReviewsAutoHiddenTotal.Inc()
	}
	return c.JSON(http.StatusOK, toReviewResponse(review))
}

// Update handles PATCH /v1/reviews/:id.
//
// @Summary      Edit a review
// @Tags         reviews
// @Accept       json
// @Produce      json
// @Security     BearerAuth
// @Param        id    path      int                  true  "Review id"
// @Param        body  body      updateReviewRequest  true  "Fields to change"
// @Success      200   {object}  reviewResponse
// @Failure      403   {object}  map[string]string
// @Failure      404   {object}  map[string]string
// @Router       /v1/reviews/{id} [patch]
func (h *ReviewHandler) Update(c echo.Context) error {
	reviewID, err := pathID(c, "id")
	if err != nil {
		return err
	}
	userID, role, err := ctxClaims(c)
	if err != nil {
		return err
	}

	var req updateReviewRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid payload")
	}
	if err := c.Validate(&req); err != nil {
		return echo.NewHTTPError(http.StatusUnprocessableEntity, err.Error())
	}

	review, err := h.service.UpdateReview(c.Request().Context(), ports.UpdateReviewInput{
		ReviewID:  reviewID,
		UpdatedBy: userID,
		Role:      role,
		Update: ports.ReviewUpdate{
			Rating:  req.Rating,
			Comment: req.Comment,
		},
	})
	if err != nil {
		return err
	}

	return c.JSON(http.StatusOK, toReviewResponse(review))
}

// Delete handles DELETE /v1/reviews/:id.
//
// @Summary      Delete a review (soft delete)
// @Tags         reviews
// @Produce      json
// @Security     BearerAuth
// @Param        id  path  int  true  "Review id"
// @Success      204
// @Failure      403  {object}  map[string]string
// @Failure      404  {object}  map[string]string
// @Router       /v1/reviews/{id} [delete]
func (h *ReviewHandler) Delete(c echo.Context) error {
	reviewID, err := pathID(c, "id")
	if err != nil {
		return err
	}
	userID, role, err := ctxClaims(c)
	if err != nil {
		return err
	}

	if err := h.service.DeleteReview(c.Request().Context(), ports.DeleteReviewInput{
		ReviewID:  reviewID,
		DeletedBy: userID,
		Role:      role,
	}); err != nil {
		return err
	}

	return c.NoContent(http.StatusNoContent)
}

// pathID parses an int64 path parameter.
func pathID(c echo.Context, name string) (int64, error) {
	id, err := strconv.ParseInt(c.Param(name), 10, 64)
	if err != nil || id <= 0 {
		return 0, echo.NewHTTPError(http.StatusBadRequest, "invalid "+name)
	}
	return id, nil
}

func toReviewResponse(r *domain.Review) reviewResponse {
	return reviewResponse{
		ID:           r.ID,
		ClientID:     r.ClientID,
		ReviewerID:   r.ReviewerID,
		Rating:       r.Rating,
		Comment:      r.Comment,
		Status:       string(r.Status),
		FlaggedCount: r.FlaggedCount,
		IsVerified:   r.IsVerified,
		CreatedAt:    r.CreatedAt,
		UpdatedAt:    r.UpdatedAt,
	}
}
