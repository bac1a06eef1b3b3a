package handler

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/hcmut-dev/rollcall-backend/internal/middleware"
	"github.com/hcmut-dev/rollcall-backend/internal/model"
	"github.com/hcmut-dev/rollcall-backend/internal/response"
	"github.com/hcmut-dev/rollcall-backend/internal/service"
	"github.com/hcmut-dev/rollcall-backend/internal/validator"
)

// AttendanceHandler handles the lecturer-facing session lifecycle:
// open/refresh, terminate, manual override and history.
type AttendanceHandler struct {
	attendanceService *service.AttendanceService
	classService      *service.ClassService
}

// NewAttendanceHandler creates a new AttendanceHandler.
func NewAttendanceHandler(attendanceService *service.AttendanceService, classService *service.ClassService) *AttendanceHandler {
	return &AttendanceHandler{attendanceService: attendanceService, classService: classService}
}

// CreateSession godoc
// POST /api/v1/lecturer/sessions
// Opens (or refreshes) the attendance window for a class slot.
func (h *AttendanceHandler) CreateSession(c *gin.Context) {
	claims := middleware.GetClaims(c)

	var req model.CreateSessionRequest
	if fields := validator.Bind(c, &req); fields != nil {
		response.FailWithFields(c, http.StatusBadRequest, response.ErrValidation, fields)
		return
	}

	issue, err := h.attendanceService.CreateOrRefresh(c.Request.Context(), req.ClassID, req.Week, req.Lesson, claims.UserID)
	if err != nil {
		failAttendance(c, err)
		return
	}

	response.Success(c, http.StatusCreated, gin.H{"session": issue})
}

// RefreshSession godoc
// POST /api/v1/lecturer/sessions/:id/refresh
// Rotates the session token and extends the expiry window.
func (h *AttendanceHandler) RefreshSession(c *gin.Context) {
	claims := middleware.GetClaims(c)

	sessionID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.Fail(c, http.StatusBadRequest, response.ErrInvalidID)
		return
	}

	issue, err := h.attendanceService.Refresh(c.Request.Context(), sessionID, claims.UserID)
	if err != nil {
		failAttendance(c, err)
		return
	}

	response.Success(c, http.StatusOK, gin.H{"session": issue})
}

// TerminateSession godoc
// POST /api/v1/lecturer/sessions/:id/terminate
// Ends the session immediately. Calling it twice is fine.
func (h *AttendanceHandler) TerminateSession(c *gin.Context) {
	claims := middleware.GetClaims(c)

	sessionID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.Fail(c, http.StatusBadRequest, response.ErrInvalidID)
		return
	}

	if err := h.attendanceService.Terminate(c.Request.Context(), sessionID, claims.UserID); err != nil {
		failAttendance(c, err)
		return
	}

	response.Success(c, http.StatusOK, gin.H{"message": "session terminated"})
}

// ManualOverride godoc
// PUT /api/v1/lecturer/sessions/:id/attendance
// Replaces the present set wholesale, recomputed against the live roster.
func (h *AttendanceHandler) ManualOverride(c *gin.Context) {
	claims := middleware.GetClaims(c)

	sessionID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.Fail(c, http.StatusBadRequest, response.ErrInvalidID)
		return
	}

	var req model.ManualOverrideRequest
	if fields := validator.Bind(c, &req); fields != nil {
		response.FailWithFields(c, http.StatusBadRequest, response.ErrValidation, fields)
		return
	}

	result, err := h.attendanceService.ManualOverride(c.Request.Context(), sessionID, claims.UserID, req.PresentIDs)
	if err != nil {
		failAttendance(c, err)
		return
	}

	response.Success(c, http.StatusOK, gin.H{"result": result})
}

// GetSession godoc
// GET /api/v1/lecturer/sessions/:id
// Returns the full session detail including present and absent lists.
func (h *AttendanceHandler) GetSession(c *gin.Context) {
	claims := middleware.GetClaims(c)

	sessionID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.Fail(c, http.StatusBadRequest, response.ErrInvalidID)
		return
	}

	sess, err := h.attendanceService.GetSession(c.Request.Context(), sessionID, claims.UserID)
	if err != nil {
		failAttendance(c, err)
		return
	}

	response.Success(c, http.StatusOK, gin.H{"session": sess})
}

// ListSessions godoc
// GET /api/v1/lecturer/sessions?class_id=N
// Lists the caller's sessions, optionally narrowed to one class.
func (h *AttendanceHandler) ListSessions(c *gin.Context) {
	claims := middleware.GetClaims(c)

	var classID *int
	if raw := c.Query("class_id"); raw != "" {
		id, err := strconv.Atoi(raw)
		if err != nil {
			response.Fail(c, http.StatusBadRequest, response.ErrInvalidID)
			return
		}
		classID = &id
	}

	sessions, err := h.attendanceService.ListSessions(c.Request.Context(), claims.UserID, classID)
	if err != nil {
		response.Fail(c, http.StatusInternalServerError, response.ErrInternal)
		return
	}

	response.Success(c, http.StatusOK, gin.H{"sessions": sessions})
}

// ListMyClasses godoc
// GET /api/v1/lecturer/classes
// Lists classes taught by the caller.
func (h *AttendanceHandler) ListMyClasses(c *gin.Context) {
	claims := middleware.GetClaims(c)

	classes, err := h.classService.ListByLecturer(c.Request.Context(), claims.UserID)
	if err != nil {
		response.Fail(c, http.StatusInternalServerError, response.ErrInternal)
		return
	}

	response.Success(c, http.StatusOK, gin.H{"classes": classes})
}

// GetRoster godoc
// GET /api/v1/lecturer/classes/:id/roster
// Returns the class's active roster as user records.
func (h *AttendanceHandler) GetRoster(c *gin.Context) {
	claims := middleware.GetClaims(c)

	classID, err := strconv.Atoi(c.Param("id"))
	if err != nil {
		response.Fail(c, http.StatusBadRequest, response.ErrInvalidID)
		return
	}

	class, err := h.classService.GetByID(c.Request.Context(), classID)
	if err != nil {
		failAttendance(c, err)
		return
	}
	if class.LecturerID != claims.UserID {
		response.Fail(c, http.StatusForbidden, response.ErrNotOwner)
		return
	}

	roster, err := h.classService.Roster(c.Request.Context(), classID)
	if err != nil {
		response.Fail(c, http.StatusInternalServerError, response.ErrInternal)
		return
	}

	response.Success(c, http.StatusOK, gin.H{"roster": roster})
}

// SetClassLocation godoc
// PUT /api/v1/lecturer/classes/:id/location
// Configures the geofence anchor the check-in distance is measured from.
func (h *AttendanceHandler) SetClassLocation(c *gin.Context) {
	claims := middleware.GetClaims(c)

	classID, err := strconv.Atoi(c.Param("id"))
	if err != nil {
		response.Fail(c, http.StatusBadRequest, response.ErrInvalidID)
		return
	}

	var req model.SetLocationRequest
	if fields := validator.Bind(c, &req); fields != nil {
		response.FailWithFields(c, http.StatusBadRequest, response.ErrValidation, fields)
		return
	}

	loc := model.Location{Lat: req.Lat, Lng: req.Lng, Radius: req.Radius, Accuracy: req.Accuracy}
	if err := h.classService.SetLocation(c.Request.Context(), classID, claims.UserID, loc); err != nil {
		failAttendance(c, err)
		return
	}

	response.Success(c, http.StatusOK, gin.H{"message": "location updated"})
}

// failAttendance maps business errors from the attendance domain onto
// typed response codes.
func failAttendance(c *gin.Context, err error) {
	switch {
	case errors.Is(err, service.ErrClassNotFound), errors.Is(err, service.ErrSessionNotFound), errors.Is(err, service.ErrUserNotFound):
		response.Fail(c, http.StatusNotFound, response.ErrNotFound)
	case errors.Is(err, service.ErrNotOwner):
		response.Fail(c, http.StatusForbidden, response.ErrNotOwner)
	case errors.Is(err, service.ErrLocationNotConfigured):
		response.Fail(c, http.StatusConflict, response.ErrLocationNotConfigured)
	case errors.Is(err, service.ErrSlotInvalid):
		response.Fail(c, http.StatusBadRequest, response.ErrSlotInvalid)
	case errors.Is(err, service.ErrSessionExpired):
		response.Fail(c, http.StatusGone, response.ErrSessionExpired)
	case errors.Is(err, service.ErrInvalidSessionToken):
		response.Fail(c, http.StatusUnauthorized, response.ErrInvalidSessionToken)
	case errors.Is(err, service.ErrNotEnrolled):
		response.Fail(c, http.StatusForbidden, response.ErrNotEnrolled)
	case errors.Is(err, service.ErrAlreadyCheckedIn):
		response.Fail(c, http.StatusConflict, response.ErrAlreadyCheckedIn)
	case errors.Is(err, service.ErrUpdateConflict):
		response.Fail(c, http.StatusConflict, response.ErrConflict)
	default:
		response.Fail(c, http.StatusInternalServerError, response.ErrInternal)
	}
}
