package handler

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/campus-adm/university-api/internal/service"
	appErrors "github.com/campus-adm/university-api/pkg/errors"
	"github.com/campus-adm/university-api/pkg/response"
)

// RegistrationHandler exposes the registration ledger endpoints.
type RegistrationHandler struct {
	registrations *service.RegistrationService
}

// NewRegistrationHandler constructs RegistrationHandler.
func NewRegistrationHandler(registrations *service.RegistrationService) *RegistrationHandler {
	return &RegistrationHandler{registrations: registrations}
}

// Create godoc
// @Summary Register a student for courses
// @Tags Registrations
// @Accept json
// @Produce json
// @Param payload body service.CreateRegistrationRequest true "Registration payload"
// @Success 201 {object} response.Envelope
// @Router /registrations [post]
func (h *RegistrationHandler) Create(c *gin.Context) {
	var req service.CreateRegistrationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}
	registration, err := h.registrations.Create(c.Request.Context(), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, registration)
}

// Get godoc
// @Summary Get one registration with full detail
// @Tags Registrations
// @Produce json
// @Param id path string true "Registration ID"
// @Success 200 {object} response.Envelope
// @Router /registrations/{id} [get]
func (h *RegistrationHandler) Get(c *gin.Context) {
	detail, err := h.registrations.GetByID(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, detail, nil)
}

// List godoc
// @Summary List registrations filtered by approval state
// @Tags Registrations
// @Produce json
// @Param approved query bool false "Approval filter" default(false)
// @Success 200 {object} response.Envelope
// @Router /registrations [get]
func (h *RegistrationHandler) List(c *gin.Context) {
	approved, err := strconv.ParseBool(c.DefaultQuery("approved", "false"))
	if err != nil {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "approved must be true or false"))
		return
	}
	registrations, err := h.registrations.ListByApproval(c.Request.Context(), approved)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, registrations, nil)
}

// Mine godoc
// @Summary Get the calling student's registration
// @Tags Registrations
// @Produce json
// @Param studentId path string true "Student ID"
// @Success 200 {object} response.Envelope
// @Router /registrations/my/{studentId} [get]
func (h *RegistrationHandler) Mine(c *gin.Context) {
	detail, err := h.registrations.GetByStudent(c.Request.Context(), c.Param("studentId"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, detail, nil)
}

// StudentsByCourse godoc
// @Summary List students registered in a course
// @Tags Registrations
// @Produce json
// @Param courseId path string true "Course ID"
// @Success 200 {object} response.Envelope
// @Router /registrations/course/{courseId} [get]
func (h *RegistrationHandler) StudentsByCourse(c *gin.Context) {
	students, err := h.registrations.StudentsByCourse(c.Request.Context(), c.Param("courseId"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, students, nil)
}

// ExportStudentsByCourse godoc
// @Summary Download the course roster as CSV
// @Tags Registrations
// @Produce text/csv
// @Param courseId path string true "Course ID"
// @Success 200 {string} string "CSV document"
// @Router /registrations/course/{courseId}/export [get]
func (h *RegistrationHandler) ExportStudentsByCourse(c *gin.Context) {
	csv, err := h.registrations.ExportStudentsByCourse(c.Request.Context(), c.Param("courseId"))
	if err != nil {
		response.Error(c, err)
		return
	}
	c.Header("Content-Disposition", `attachment; filename="course-roster.csv"`)
	c.Data(http.StatusOK, "text/csv", csv)
}

// Approve godoc
// @Summary Approve a registration
// @Tags Registrations
// @Produce json
// @Param id path string true "Registration ID"
// @Success 200 {object} response.Envelope
// @Router /registrations/{id}/approve [patch]
func (h *RegistrationHandler) Approve(c *gin.Context) {
	registration, err := h.registrations.Approve(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, registration, nil)
}

// Drop godoc
// @Summary Drop courses from an unapproved registration
// @Tags Registrations
// @Accept json
// @Produce json
// @Param payload body service.DropCoursesRequest true "Drop payload"
// @Success 200 {object} response.Envelope
// @Router /registrations/drop [patch]
func (h *RegistrationHandler) Drop(c *gin.Context) {
	var req service.DropCoursesRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}

	// Self-service callers can only drop from their own registration.
	if claims := claimsFromContext(c); claims != nil && claims.StudentID != "" && claims.StudentID != req.StudentID {
		response.Error(c, appErrors.ErrForbidden)
		return
	}

	registration, err := h.registrations.Drop(c.Request.Context(), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, registration, nil)
}

// DropAdmin godoc
// @Summary Drop courses on a student's behalf
// @Tags Registrations
// @Accept json
// @Produce json
// @Param payload body service.DropCoursesRequest true "Drop payload"
// @Success 200 {object} response.Envelope
// @Router /registrations/drop/admin [patch]
func (h *RegistrationHandler) DropAdmin(c *gin.Context) {
	var req service.DropCoursesRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}
	registration, err := h.registrations.Drop(c.Request.Context(), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, registration, nil)
}
