package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/confero-api/internal/service"
	appErrors "github.com/noah-isme/confero-api/pkg/errors"
	"github.com/noah-isme/confero-api/pkg/response"
)

// ReviewHandler exposes reviewer evaluation endpoints.
type ReviewHandler struct {
	reviews *service.ReviewService
}

// NewReviewHandler constructs handler.
func NewReviewHandler(reviews *service.ReviewService) *ReviewHandler {
	return &ReviewHandler{reviews: reviews}
}

// Submit godoc
// @Summary Save or complete the caller's review
// @Tags Reviews
// @Accept json
// @Produce json
// @Param id path string true "Submission id"
// @Param payload body service.SubmitReviewRequest true "Review payload"
// @Success 200 {object} response.Envelope
// @Router /submissions/{id}/review [put]
func (h *ReviewHandler) Submit(c *gin.Context) {
	actor, ok := actorFromContext(c)
	if !ok {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	var req service.SubmitReviewRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}
	review, err := h.reviews.SubmitReview(c.Request.Context(), actor, c.Param("id"), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, review, nil)
}

// Mine godoc
// @Summary The caller's review of a submission
// @Tags Reviews
// @Produce json
// @Param id path string true "Submission id"
// @Success 200 {object} response.Envelope
// @Router /submissions/{id}/review [get]
func (h *ReviewHandler) Mine(c *gin.Context) {
	actor, ok := actorFromContext(c)
	if !ok {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	review, err := h.reviews.GetMyReview(c.Request.Context(), actor, c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, review, nil)
}

// ListBySubmission godoc
// @Summary All reviews of a submission
// @Tags Reviews
// @Produce json
// @Param id path string true "Submission id"
// @Success 200 {object} response.Envelope
// @Router /submissions/{id}/reviews [get]
func (h *ReviewHandler) ListBySubmission(c *gin.Context) {
	actor, ok := actorFromContext(c)
	if !ok {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	reviews, err := h.reviews.ListBySubmission(c.Request.Context(), actor, c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, reviews, nil)
}
