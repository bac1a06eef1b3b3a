package handler

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/hcmut-dev/rollcall-backend/internal/model"
	"github.com/hcmut-dev/rollcall-backend/internal/response"
	"github.com/hcmut-dev/rollcall-backend/internal/service"
	"github.com/hcmut-dev/rollcall-backend/internal/validator"
	"github.com/jackc/pgx/v5/pgconn"
)

// ClassHandler handles admin-facing class management (CRUD + roster).
type ClassHandler struct {
	classService *service.ClassService
}

// NewClassHandler creates a new ClassHandler.
func NewClassHandler(classService *service.ClassService) *ClassHandler {
	return &ClassHandler{classService: classService}
}

// ListClasses godoc
// GET /api/v1/admin/classes
// Lists all classes.
func (h *ClassHandler) ListClasses(c *gin.Context) {
	classes, err := h.classService.List(c.Request.Context())
	if err != nil {
		response.Fail(c, http.StatusInternalServerError, response.ErrInternal)
		return
	}

	response.Success(c, http.StatusOK, gin.H{"classes": classes})
}

// GetClass godoc
// GET /api/v1/admin/classes/:id
func (h *ClassHandler) GetClass(c *gin.Context) {
	id, err := strconv.Atoi(c.Param("id"))
	if err != nil {
		response.Fail(c, http.StatusBadRequest, response.ErrInvalidID)
		return
	}

	class, err := h.classService.GetByID(c.Request.Context(), id)
	if err != nil {
		failAttendance(c, err)
		return
	}

	response.Success(c, http.StatusOK, gin.H{"class": class})
}

// CreateClass godoc
// POST /api/v1/admin/classes
// Creates a new class assigned to a lecturer.
func (h *ClassHandler) CreateClass(c *gin.Context) {
	var req model.CreateClassRequest
	if fields := validator.Bind(c, &req); fields != nil {
		response.FailWithFields(c, http.StatusBadRequest, response.ErrValidation, fields)
		return
	}

	class := &model.Class{
		Code:       req.Code,
		Name:       req.Name,
		LecturerID: req.LecturerID,
		Semester:   req.Semester,
		IsActive:   true,
	}

	if err := h.classService.Create(c.Request.Context(), class); err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			response.Fail(c, http.StatusConflict, response.ErrConflict)
			return
		}
		failAttendance(c, err)
		return
	}

	response.Success(c, http.StatusCreated, gin.H{"class": class})
}

// UpdateClass godoc
// PUT /api/v1/admin/classes/:id
// Updates an existing class.
func (h *ClassHandler) UpdateClass(c *gin.Context) {
	id, err := strconv.Atoi(c.Param("id"))
	if err != nil {
		response.Fail(c, http.StatusBadRequest, response.ErrInvalidID)
		return
	}

	var req model.CreateClassRequest
	if fields := validator.Bind(c, &req); fields != nil {
		response.FailWithFields(c, http.StatusBadRequest, response.ErrValidation, fields)
		return
	}

	class := &model.Class{
		ID:         id,
		Code:       req.Code,
		Name:       req.Name,
		LecturerID: req.LecturerID,
		Semester:   req.Semester,
		IsActive:   true,
	}

	if err := h.classService.Update(c.Request.Context(), class); err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			response.Fail(c, http.StatusConflict, response.ErrConflict)
			return
		}
		failAttendance(c, err)
		return
	}

	// Fetch updated to get current updated_at timestamp
	updatedClass, _ := h.classService.GetByID(c.Request.Context(), id)

	response.Success(c, http.StatusOK, gin.H{"class": updatedClass})
}

// DeleteClass godoc
// DELETE /api/v1/admin/classes/:id
// Deletes a class. Its sessions are detached and reaped by the next
// reconciliation pass.
func (h *ClassHandler) DeleteClass(c *gin.Context) {
	id, err := strconv.Atoi(c.Param("id"))
	if err != nil {
		response.Fail(c, http.StatusBadRequest, response.ErrInvalidID)
		return
	}

	if err := h.classService.Delete(c.Request.Context(), id); err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23503" {
			response.Fail(c, http.StatusConflict, response.ErrDependencyExists)
			return
		}
		response.Fail(c, http.StatusInternalServerError, response.ErrInternal)
		return
	}

	response.Success(c, http.StatusOK, gin.H{"message": "class deleted successfully"})
}

// AddStudent godoc
// POST /api/v1/admin/classes/:id/students
// Enrolls a student into the class roster. Already-enrolled is a no-op.
func (h *ClassHandler) AddStudent(c *gin.Context) {
	id, err := strconv.Atoi(c.Param("id"))
	if err != nil {
		response.Fail(c, http.StatusBadRequest, response.ErrInvalidID)
		return
	}

	var req model.AddStudentRequest
	if fields := validator.Bind(c, &req); fields != nil {
		response.FailWithFields(c, http.StatusBadRequest, response.ErrValidation, fields)
		return
	}

	if err := h.classService.AddStudent(c.Request.Context(), id, req.StudentID); err != nil {
		failAttendance(c, err)
		return
	}

	response.Success(c, http.StatusOK, gin.H{"message": "student enrolled"})
}

// RemoveStudent godoc
// DELETE /api/v1/admin/classes/:id/students/:student_id
// Removes a student from the roster. Their past check-ins stand until the
// next reconciliation pass rebuilds the session lists.
func (h *ClassHandler) RemoveStudent(c *gin.Context) {
	id, err := strconv.Atoi(c.Param("id"))
	if err != nil {
		response.Fail(c, http.StatusBadRequest, response.ErrInvalidID)
		return
	}
	studentID, err := strconv.Atoi(c.Param("student_id"))
	if err != nil {
		response.Fail(c, http.StatusBadRequest, response.ErrInvalidID)
		return
	}

	if err := h.classService.RemoveStudent(c.Request.Context(), id, studentID); err != nil {
		response.Fail(c, http.StatusInternalServerError, response.ErrInternal)
		return
	}

	response.Success(c, http.StatusOK, gin.H{"message": "student removed"})
}

// GetRoster godoc
// GET /api/v1/admin/classes/:id/roster
func (h *ClassHandler) GetRoster(c *gin.Context) {
	id, err := strconv.Atoi(c.Param("id"))
	if err != nil {
		response.Fail(c, http.StatusBadRequest, response.ErrInvalidID)
		return
	}

	if _, err := h.classService.GetByID(c.Request.Context(), id); err != nil {
		failAttendance(c, err)
		return
	}

	roster, err := h.classService.Roster(c.Request.Context(), id)
	if err != nil {
		response.Fail(c, http.StatusInternalServerError, response.ErrInternal)
		return
	}

	response.Success(c, http.StatusOK, gin.H{"roster": roster})
}
