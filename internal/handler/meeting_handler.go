package handler

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/edudesk/school-records-api/internal/models"
	"github.com/edudesk/school-records-api/internal/service"
	appErrors "github.com/edudesk/school-records-api/pkg/errors"
	"github.com/edudesk/school-records-api/pkg/response"
)

// meetingService is the surface the handler needs from the meeting service.
type meetingService interface {
	Schedule(ctx context.Context, schoolID, createdBy string, req service.ScheduleMeetingRequest) (*models.Meeting, error)
	Get(ctx context.Context, id string) (*models.Meeting, error)
	List(ctx context.Context, filter models.MeetingFilter) ([]models.Meeting, error)
	SetStatus(ctx context.Context, id, status string, remarks *string) error
}

// MeetingHandler wires meeting scheduling to HTTP routes.
type MeetingHandler struct {
	meetings meetingService
}

// NewMeetingHandler constructs a MeetingHandler.
func NewMeetingHandler(meetings meetingService) *MeetingHandler {
	return &MeetingHandler{meetings: meetings}
}

type setMeetingStatusRequest struct {
	Status  string  `json:"status"`
	Remarks *string `json:"remarks"`
}

// Schedule godoc
// @Summary Schedule a meeting
// @Tags Meetings
// @Accept json
// @Produce json
// @Param payload body service.ScheduleMeetingRequest true "Meeting payload"
// @Success 201 {object} response.Envelope
// @Router /meetings [post]
func (h *MeetingHandler) Schedule(c *gin.Context) {
	var req service.ScheduleMeetingRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid meeting payload"))
		return
	}
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	meeting, err := h.meetings.Schedule(c.Request.Context(), claims.SchoolID, claims.UserID, req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, meeting)
}

// Get godoc
// @Summary Get meeting detail
// @Tags Meetings
// @Produce json
// @Param id path string true "Meeting ID"
// @Success 200 {object} response.Envelope
// @Router /meetings/{id} [get]
func (h *MeetingHandler) Get(c *gin.Context) {
	meeting, err := h.meetings.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, meeting, nil)
}

// List godoc
// @Summary List meetings for the caller's school
// @Tags Meetings
// @Produce json
// @Param status query string false "Filter by status"
// @Success 200 {object} response.Envelope
// @Router /meetings [get]
func (h *MeetingHandler) List(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	filter := models.MeetingFilter{
		SchoolID: claims.SchoolID,
		Status:   c.Query("status"),
	}
	meetings, err := h.meetings.List(c.Request.Context(), filter)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, meetings, nil)
}

// SetStatus godoc
// @Summary Transition a meeting's status
// @Tags Meetings
// @Accept json
// @Produce json
// @Param id path string true "Meeting ID"
// @Param payload body setMeetingStatusRequest true "New status and optional remarks"
// @Success 204
// @Router /meetings/{id}/status [patch]
func (h *MeetingHandler) SetStatus(c *gin.Context) {
	var req setMeetingStatusRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid status payload"))
		return
	}
	if err := h.meetings.SetStatus(c.Request.Context(), c.Param("id"), req.Status, req.Remarks); err != nil {
		response.Error(c, err)
		return
	}
	response.NoContent(c)
}
