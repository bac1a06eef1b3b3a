package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/hcmut-dev/rollcall-backend/internal/middleware"
	"github.com/hcmut-dev/rollcall-backend/internal/model"
	"github.com/hcmut-dev/rollcall-backend/internal/repository"
	"github.com/hcmut-dev/rollcall-backend/internal/response"
	"github.com/hcmut-dev/rollcall-backend/internal/service"
	"github.com/hcmut-dev/rollcall-backend/internal/validator"
)

// CheckInHandler handles the student-facing side: proof-of-presence
// submission, enrolled classes and notifications.
type CheckInHandler struct {
	attendanceService *service.AttendanceService
	classService      *service.ClassService
	notifications     *repository.NotificationRepository
}

// NewCheckInHandler creates a new CheckInHandler.
func NewCheckInHandler(
	attendanceService *service.AttendanceService,
	classService *service.ClassService,
	notifications *repository.NotificationRepository,
) *CheckInHandler {
	return &CheckInHandler{
		attendanceService: attendanceService,
		classService:      classService,
		notifications:     notifications,
	}
}

// CheckIn godoc
// POST /api/v1/student/check-in
// Submits a scanned session token plus device coordinates. An in-range
// attempt marks the student present; an out-of-range one reports the
// measured distance so the client can show how far off they are.
func (h *CheckInHandler) CheckIn(c *gin.Context) {
	claims := middleware.GetClaims(c)

	var req model.CheckInRequest
	if fields := validator.Bind(c, &req); fields != nil {
		response.FailWithFields(c, http.StatusBadRequest, response.ErrValidation, fields)
		return
	}

	sessionID, err := uuid.Parse(req.SessionID)
	if err != nil {
		response.Fail(c, http.StatusBadRequest, response.ErrInvalidID)
		return
	}

	result, err := h.attendanceService.CheckIn(c.Request.Context(), service.CheckInInput{
		SessionID: sessionID,
		Token:     req.Token,
		StudentID: claims.UserID,
		Lat:       req.Lat,
		Lng:       req.Lng,
		Accuracy:  req.Accuracy,
		Device: model.DeviceInfo{
			UserAgent: c.Request.UserAgent(),
			Platform:  c.GetHeader("Sec-CH-UA-Platform"),
		},
	})
	if err != nil {
		failAttendance(c, err)
		return
	}

	response.Success(c, http.StatusOK, gin.H{"result": result})
}

// ListMyClasses godoc
// GET /api/v1/student/classes
// Lists classes the caller is actively enrolled in.
func (h *CheckInHandler) ListMyClasses(c *gin.Context) {
	claims := middleware.GetClaims(c)

	classes, err := h.classService.ListByStudent(c.Request.Context(), claims.UserID)
	if err != nil {
		response.Fail(c, http.StatusInternalServerError, response.ErrInternal)
		return
	}

	response.Success(c, http.StatusOK, gin.H{"classes": classes})
}

// ListNotifications godoc
// GET /api/v1/student/notifications
// Returns the caller's most recent notifications, newest first.
func (h *CheckInHandler) ListNotifications(c *gin.Context) {
	claims := middleware.GetClaims(c)

	items, err := h.notifications.ListByUser(c.Request.Context(), claims.UserID, 0)
	if err != nil {
		response.Fail(c, http.StatusInternalServerError, response.ErrInternal)
		return
	}

	response.Success(c, http.StatusOK, gin.H{"notifications": items})
}
