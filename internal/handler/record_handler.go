package handler

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/edudesk/school-records-api/internal/models"
	appErrors "github.com/edudesk/school-records-api/pkg/errors"
	"github.com/edudesk/school-records-api/pkg/response"
)

// recordService is the surface the handler needs from the record service.
type recordService interface {
	Create(ctx context.Context, ownerID string, kind models.RecordKind, payload json.RawMessage) (*models.Record, error)
	Get(ctx context.Context, id string) (*models.Record, error)
	Query(ctx context.Context, filter models.RecordFilter) ([]models.Record, error)
	Append(ctx context.Context, ownerID string, kind models.RecordKind, payload json.RawMessage) ([]models.Record, error)
	SetLeaveStatus(ctx context.Context, id, status string) (*models.Record, error)
	EnrollStudent(ctx context.Context, id, studentID string) (*models.Record, error)
}

// RecordHandler wires the record store to HTTP routes.
type RecordHandler struct {
	records recordService
}

// NewRecordHandler constructs a RecordHandler.
func NewRecordHandler(records recordService) *RecordHandler {
	return &RecordHandler{records: records}
}

type createRecordRequest struct {
	Kind    models.RecordKind `json:"kind"`
	Payload json.RawMessage   `json:"payload"`
}

type setLeaveStatusRequest struct {
	Status string `json:"status"`
}

type enrollStudentRequest struct {
	StudentID string `json:"student_id"`
}

// Create godoc
// @Summary Create a record
// @Tags Records
// @Accept json
// @Produce json
// @Param payload body createRecordRequest true "Record kind and variant payload"
// @Success 201 {object} response.Envelope
// @Router /records [post]
func (h *RecordHandler) Create(c *gin.Context) {
	var req createRecordRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid record payload"))
		return
	}
	record, err := h.records.Create(c.Request.Context(), ownerScope(claimsFromContext(c)), req.Kind, req.Payload)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, record)
}

// Get godoc
// @Summary Get record detail
// @Tags Records
// @Produce json
// @Param id path string true "Record ID"
// @Success 200 {object} response.Envelope
// @Router /records/{id} [get]
func (h *RecordHandler) Get(c *gin.Context) {
	record, err := h.records.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, record, nil)
}

// Query godoc
// @Summary Query records
// @Tags Records
// @Produce json
// @Param kind query string false "Record kind"
// @Param status query string false "Leave status filter"
// @Success 200 {object} response.Envelope
// @Router /records [get]
func (h *RecordHandler) Query(c *gin.Context) {
	filter := models.RecordFilter{
		OwnerID: ownerScope(claimsFromContext(c)),
		Kind:    models.RecordKind(c.Query("kind")),
		Status:  c.Query("status"),
	}
	records, err := h.records.Query(c.Request.Context(), filter)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, records, nil)
}

// Append godoc
// @Summary Append an item to the caller's sequence of a kind
// @Tags Records
// @Accept json
// @Produce json
// @Param payload body createRecordRequest true "Sequence kind and item payload"
// @Success 201 {object} response.Envelope
// @Router /records/append [post]
func (h *RecordHandler) Append(c *gin.Context) {
	var req createRecordRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid record payload"))
		return
	}
	sequence, err := h.records.Append(c.Request.Context(), ownerScope(claimsFromContext(c)), req.Kind, req.Payload)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusCreated, sequence, nil)
}

// SetLeaveStatus godoc
// @Summary Transition a leave application's status
// @Tags Records
// @Accept json
// @Produce json
// @Param id path string true "Record ID"
// @Param payload body setLeaveStatusRequest true "New status"
// @Success 200 {object} response.Envelope
// @Router /records/{id}/status [patch]
func (h *RecordHandler) SetLeaveStatus(c *gin.Context) {
	var req setLeaveStatusRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid status payload"))
		return
	}
	record, err := h.records.SetLeaveStatus(c.Request.Context(), c.Param("id"), req.Status)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, record, nil)
}

// EnrollStudent godoc
// @Summary Enroll a student into a class record
// @Tags Records
// @Accept json
// @Produce json
// @Param id path string true "Record ID"
// @Param payload body enrollStudentRequest true "Student to enroll"
// @Success 200 {object} response.Envelope
// @Router /records/{id}/students [post]
func (h *RecordHandler) EnrollStudent(c *gin.Context) {
	var req enrollStudentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid enrolment payload"))
		return
	}
	record, err := h.records.EnrollStudent(c.Request.Context(), c.Param("id"), req.StudentID)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, record, nil)
}
