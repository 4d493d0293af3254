package handler

import (
	"fmt"
	"net/http"
	"path"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/confero-api/internal/models"
	"github.com/noah-isme/confero-api/internal/service"
	appErrors "github.com/noah-isme/confero-api/pkg/errors"
	"github.com/noah-isme/confero-api/pkg/response"
	"github.com/noah-isme/confero-api/pkg/storage"
)

// SubmissionHandler exposes the submission lifecycle endpoints.
type SubmissionHandler struct {
	lifecycle   *service.LifecycleService
	storage     *storage.LocalStorage
	signer      *storage.SignedURLSigner
	maxPDFBytes int64
}

// NewSubmissionHandler constructs handler.
func NewSubmissionHandler(lifecycle *service.LifecycleService, store *storage.LocalStorage, signer *storage.SignedURLSigner, maxPDFBytes int64) *SubmissionHandler {
	if maxPDFBytes <= 0 {
		maxPDFBytes = 20 << 20
	}
	return &SubmissionHandler{lifecycle: lifecycle, storage: store, signer: signer, maxPDFBytes: maxPDFBytes}
}

// Create godoc
// @Summary Create a submission draft
// @Tags Submissions
// @Accept json
// @Produce json
// @Param payload body service.CreateSubmissionRequest true "Submission payload"
// @Success 201 {object} response.Envelope
// @Router /submissions [post]
func (h *SubmissionHandler) Create(c *gin.Context) {
	actor, ok := actorFromContext(c)
	if !ok {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	var req service.CreateSubmissionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}
	submission, err := h.lifecycle.Create(c.Request.Context(), actor, req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, submission)
}

// List godoc
// @Summary List submissions
// @Tags Submissions
// @Produce json
// @Param eventId query string false "Filter by event"
// @Param status query string false "Filter by status"
// @Success 200 {object} response.Envelope
// @Router /submissions [get]
func (h *SubmissionHandler) List(c *gin.Context) {
	actor, ok := actorFromContext(c)
	if !ok {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	filter := models.SubmissionFilter{
		EventID: c.Query("eventId"),
		Status:  models.SubmissionStatus(c.Query("status")),
	}
	if filter.Status != "" && !filter.Status.Valid() {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "unknown status filter"))
		return
	}
	submissions, err := h.lifecycle.List(c.Request.Context(), actor, filter)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, submissions, nil)
}

// Get godoc
// @Summary Get a submission
// @Tags Submissions
// @Produce json
// @Param id path string true "Submission id"
// @Success 200 {object} response.Envelope
// @Router /submissions/{id} [get]
func (h *SubmissionHandler) Get(c *gin.Context) {
	actor, ok := actorFromContext(c)
	if !ok {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	submission, err := h.lifecycle.Get(c.Request.Context(), actor, c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, submission, nil)
}

// Update godoc
// @Summary Update an editable submission
// @Tags Submissions
// @Accept json
// @Produce json
// @Param id path string true "Submission id"
// @Param payload body service.UpdateSubmissionRequest true "Submission payload"
// @Success 200 {object} response.Envelope
// @Router /submissions/{id} [put]
func (h *SubmissionHandler) Update(c *gin.Context) {
	actor, ok := actorFromContext(c)
	if !ok {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	var req service.UpdateSubmissionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}
	submission, err := h.lifecycle.Update(c.Request.Context(), actor, c.Param("id"), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, submission, nil)
}

// Delete godoc
// @Summary Delete a submission
// @Tags Submissions
// @Param id path string true "Submission id"
// @Success 204 {object} response.Envelope
// @Router /submissions/{id} [delete]
func (h *SubmissionHandler) Delete(c *gin.Context) {
	actor, ok := actorFromContext(c)
	if !ok {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	if err := h.lifecycle.Delete(c.Request.Context(), actor, c.Param("id")); err != nil {
		response.Error(c, err)
		return
	}
	response.NoContent(c)
}

// Submit godoc
// @Summary Submit a draft for review
// @Tags Submissions
// @Produce json
// @Param id path string true "Submission id"
// @Success 200 {object} response.Envelope
// @Router /submissions/{id}/submit [post]
func (h *SubmissionHandler) Submit(c *gin.Context) {
	actor, ok := actorFromContext(c)
	if !ok {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	submission, err := h.lifecycle.Submit(c.Request.Context(), actor, c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, submission, nil)
}

// Resubmit godoc
// @Summary Resubmit after revision
// @Tags Submissions
// @Produce json
// @Param id path string true "Submission id"
// @Success 200 {object} response.Envelope
// @Router /submissions/{id}/resubmit [post]
func (h *SubmissionHandler) Resubmit(c *gin.Context) {
	actor, ok := actorFromContext(c)
	if !ok {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	submission, err := h.lifecycle.Resubmit(c.Request.Context(), actor, c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, submission, nil)
}

// StartReview godoc
// @Summary Move a submission under review
// @Tags Submissions
// @Produce json
// @Param id path string true "Submission id"
// @Success 200 {object} response.Envelope
// @Router /submissions/{id}/start-review [post]
func (h *SubmissionHandler) StartReview(c *gin.Context) {
	actor, ok := actorFromContext(c)
	if !ok {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	submission, err := h.lifecycle.StartReview(c.Request.Context(), actor, c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, submission, nil)
}

// Decide godoc
// @Summary Record the committee decision
// @Tags Submissions
// @Accept json
// @Produce json
// @Param id path string true "Submission id"
// @Param payload body service.DecideRequest true "Decision payload"
// @Success 200 {object} response.Envelope
// @Router /submissions/{id}/decide [post]
func (h *SubmissionHandler) Decide(c *gin.Context) {
	actor, ok := actorFromContext(c)
	if !ok {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	var req service.DecideRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}
	submission, err := h.lifecycle.Decide(c.Request.Context(), actor, c.Param("id"), req)
	if err != nil {
		// The decision may already be committed when notification fails;
		// return the submission alongside the error payload.
		appErr := appErrors.FromError(err)
		if appErr.Code == appErrors.ErrNotificationFailed.Code && submission != nil {
			c.JSON(appErr.Status, response.Envelope{Data: submission, Error: appErr})
			return
		}
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, submission, nil)
}

// Aggregate godoc
// @Summary Review aggregate for a submission
// @Tags Submissions
// @Produce json
// @Param id path string true "Submission id"
// @Success 200 {object} response.Envelope
// @Router /submissions/{id}/aggregate [get]
func (h *SubmissionHandler) Aggregate(c *gin.Context) {
	outcome, err := h.lifecycle.ComputeAggregate(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, outcome, nil)
}

// UploadPDF godoc
// @Summary Upload the paper PDF
// @Tags Submissions
// @Accept multipart/form-data
// @Produce json
// @Param id path string true "Submission id"
// @Param file formData file true "Paper PDF"
// @Success 200 {object} response.Envelope
// @Router /submissions/{id}/pdf [post]
func (h *SubmissionHandler) UploadPDF(c *gin.Context) {
	actor, ok := actorFromContext(c)
	if !ok {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	id := c.Param("id")

	header, err := c.FormFile("file")
	if err != nil {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "file field required"))
		return
	}
	if header.Size > h.maxPDFBytes {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("file exceeds %d bytes", h.maxPDFBytes)))
		return
	}
	if !strings.EqualFold(path.Ext(header.Filename), ".pdf") {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "only pdf files are accepted"))
		return
	}

	src, err := header.Open()
	if err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to read upload"))
		return
	}
	defer src.Close() //nolint:errcheck

	relPath := fmt.Sprintf("papers/%s.pdf", id)
	written, err := h.storage.SaveStream(relPath, src)
	if err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to store upload"))
		return
	}

	submission, err := h.lifecycle.AttachPDF(c.Request.Context(), actor, id, relPath, header.Filename, written)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, submission, nil)
}

// PDFLink godoc
// @Summary Signed download link for the paper PDF
// @Tags Submissions
// @Produce json
// @Param id path string true "Submission id"
// @Success 200 {object} response.Envelope
// @Router /submissions/{id}/pdf-link [get]
func (h *SubmissionHandler) PDFLink(c *gin.Context) {
	actor, ok := actorFromContext(c)
	if !ok {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	submission, err := h.lifecycle.Get(c.Request.Context(), actor, c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	if !submission.HasPDF() {
		response.Error(c, appErrors.Clone(appErrors.ErrNotFound, "no pdf attached"))
		return
	}

	token, expiresAt, err := h.signer.Generate(submission.ID, *submission.PDFURL)
	if err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to sign download link"))
		return
	}
	response.JSON(c, http.StatusOK, gin.H{
		"url":        fmt.Sprintf("/api/v1/downloads/papers?token=%s", token),
		"expires_at": expiresAt,
	}, nil)
}

// DownloadPDF godoc
// @Summary Download a paper via signed token
// @Tags Submissions
// @Produce application/pdf
// @Param token query string true "Signed token"
// @Success 200 {file} binary
// @Router /downloads/papers [get]
func (h *SubmissionHandler) DownloadPDF(c *gin.Context) {
	token := c.Query("token")
	if token == "" {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "token required"))
		return
	}
	_, relPath, _, err := h.signer.Parse(token, false)
	if err != nil {
		response.Error(c, appErrors.Clone(appErrors.ErrUnauthorized, "invalid or expired token"))
		return
	}
	c.FileAttachment(h.storage.Path(relPath), path.Base(relPath))
}
