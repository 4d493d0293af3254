package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/confero-api/internal/service"
	appErrors "github.com/noah-isme/confero-api/pkg/errors"
	"github.com/noah-isme/confero-api/pkg/response"
)

// AssignmentHandler exposes reviewer assignment endpoints.
type AssignmentHandler struct {
	assignments *service.AssignmentService
}

// NewAssignmentHandler constructs handler.
func NewAssignmentHandler(assignments *service.AssignmentService) *AssignmentHandler {
	return &AssignmentHandler{assignments: assignments}
}

// Assign godoc
// @Summary Assign a reviewer to a submission
// @Tags Assignments
// @Accept json
// @Produce json
// @Param id path string true "Submission id"
// @Param payload body service.AssignReviewerRequest true "Assignment payload"
// @Success 201 {object} response.Envelope
// @Router /submissions/{id}/assignments [post]
func (h *AssignmentHandler) Assign(c *gin.Context) {
	actor, ok := actorFromContext(c)
	if !ok {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	var req service.AssignReviewerRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}
	assignment, err := h.assignments.Assign(c.Request.Context(), actor, c.Param("id"), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, assignment)
}

// ListBySubmission godoc
// @Summary Assignments on a submission
// @Tags Assignments
// @Produce json
// @Param id path string true "Submission id"
// @Success 200 {object} response.Envelope
// @Router /submissions/{id}/assignments [get]
func (h *AssignmentHandler) ListBySubmission(c *gin.Context) {
	actor, ok := actorFromContext(c)
	if !ok {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	assignments, err := h.assignments.ListBySubmission(c.Request.Context(), actor, c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, assignments, nil)
}

// Mine godoc
// @Summary The caller's reviewer worklist
// @Tags Assignments
// @Produce json
// @Success 200 {object} response.Envelope
// @Router /assignments/mine [get]
func (h *AssignmentHandler) Mine(c *gin.Context) {
	actor, ok := actorFromContext(c)
	if !ok {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	assignments, err := h.assignments.ListMine(c.Request.Context(), actor)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, assignments, nil)
}

// Remove godoc
// @Summary Remove an assignment
// @Tags Assignments
// @Param id path string true "Assignment id"
// @Success 204 {object} response.Envelope
// @Router /assignments/{id} [delete]
func (h *AssignmentHandler) Remove(c *gin.Context) {
	actor, ok := actorFromContext(c)
	if !ok {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	if err := h.assignments.Remove(c.Request.Context(), actor, c.Param("id")); err != nil {
		response.Error(c, err)
		return
	}
	response.NoContent(c)
}

// RemoveReview godoc
// @Summary Delete a reviewer's review and reset the assignment
// @Tags Assignments
// @Param id path string true "Submission id"
// @Param reviewerId path string true "Reviewer id"
// @Success 204 {object} response.Envelope
// @Router /submissions/{id}/reviews/{reviewerId} [delete]
func (h *AssignmentHandler) RemoveReview(c *gin.Context) {
	actor, ok := actorFromContext(c)
	if !ok {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	if err := h.assignments.RemoveReview(c.Request.Context(), actor, c.Param("id"), c.Param("reviewerId")); err != nil {
		response.Error(c, err)
		return
	}
	response.NoContent(c)
}
