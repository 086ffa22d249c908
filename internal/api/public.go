package api

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"hospital-management/backend/internal/models"
	"hospital-management/backend/internal/repository"
	"hospital-management/backend/internal/service"
	"hospital-management/backend/pkg/logger"
)

// PublicHandler serves the marketing-site endpoints: hospital profiles,
// doctors, appointment booking and the contact form.
type PublicHandler struct {
	hospitals    *service.HospitalService
	appointments *service.AppointmentService
	contacts     *service.ContactService
	logger       *logger.Logger
}

func NewPublicHandler(hospitals *service.HospitalService, appointments *service.AppointmentService, contacts *service.ContactService, log *logger.Logger) *PublicHandler {
	return &PublicHandler{
		hospitals:    hospitals,
		appointments: appointments,
		contacts:     contacts,
		logger:       log,
	}
}

func (h *PublicHandler) RegisterRoutes(router *gin.Engine) {
	public := router.Group("/api")
	{
		public.GET("/hospitals/:hospitalId", h.Hospital)
		public.GET("/hospitals/:hospitalId/services", h.Services)
		public.GET("/hospitals/:hospitalId/doctors", h.Doctors)
		public.GET("/hospitals/:hospitalId/doctors/:doctorId/slots", h.Slots)
		public.POST("/hospitals/:hospitalId/appointments", h.Book)
		public.POST("/contact", h.Contact)
	}
}

func (h *PublicHandler) Hospital(c *gin.Context) {
	hospitalID, ok := hospitalParam(c)
	if !ok {
		return
	}
	hospital, err := h.hospitals.GetHospital(c.Request.Context(), hospitalID)
	if err != nil {
		if errors.Is(err, repository.ErrHospitalNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "Hospital not found"})
			return
		}
		h.logger.LogError(err, "hospital fetch failed", "hospital_id", hospitalID)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to fetch hospital"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "hospital": hospital})
}

func (h *PublicHandler) Services(c *gin.Context) {
	hospitalID, ok := hospitalParam(c)
	if !ok {
		return
	}
	services, err := h.hospitals.ListServices(c.Request.Context(), hospitalID)
	if err != nil {
		h.logger.LogError(err, "services fetch failed", "hospital_id", hospitalID)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to fetch services"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "services": services})
}

func (h *PublicHandler) Doctors(c *gin.Context) {
	hospitalID, ok := hospitalParam(c)
	if !ok {
		return
	}
	doctors, err := h.hospitals.ListDoctors(c.Request.Context(), hospitalID)
	if err != nil {
		h.logger.LogError(err, "doctors fetch failed", "hospital_id", hospitalID)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to fetch doctors"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "doctors": doctors})
}

func (h *PublicHandler) Slots(c *gin.Context) {
	hospitalID, ok := hospitalParam(c)
	if !ok {
		return
	}
	doctorID, err := strconv.ParseUint(c.Param("doctorId"), 10, 64)
	if err != nil || doctorID == 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid doctor ID"})
		return
	}
	date := c.Query("date")
	if date == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "date is required"})
		return
	}

	slots, err := h.appointments.AvailableSlots(c.Request.Context(), hospitalID, uint(doctorID), date)
	if err != nil {
		switch {
		case errors.Is(err, service.ErrInvalidDate):
			c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid date, expected YYYY-MM-DD"})
		case errors.Is(err, repository.ErrScheduleNotFound):
			c.JSON(http.StatusNotFound, gin.H{"error": "Doctor has no schedule"})
		default:
			h.logger.LogError(err, "slots fetch failed", "doctor_id", doctorID, "date", date)
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to fetch slots"})
		}
		return
	}
	if slots == nil {
		slots = []service.Slot{}
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "slots": slots})
}

func (h *PublicHandler) Book(c *gin.Context) {
	hospitalID, ok := hospitalParam(c)
	if !ok {
		return
	}

	var req struct {
		DoctorID     uint   `json:"doctorId"`
		Date         string `json:"date"`
		Slot         string `json:"slot"`
		PatientName  string `json:"patientName"`
		PatientPhone string `json:"patientPhone"`
		PatientEmail string `json:"patientEmail"`
		Reason       string `json:"reason"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request format"})
		return
	}
	if req.DoctorID == 0 || req.Date == "" || req.Slot == "" || req.PatientName == "" || req.PatientPhone == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "doctorId, date, slot, patientName and patientPhone are required"})
		return
	}

	appt := &models.Appointment{
		HospitalID:   hospitalID,
		DoctorID:     req.DoctorID,
		Date:         req.Date,
		Slot:         req.Slot,
		PatientName:  req.PatientName,
		PatientPhone: req.PatientPhone,
		PatientEmail: req.PatientEmail,
		Reason:       req.Reason,
	}
	if err := h.appointments.Book(c.Request.Context(), appt); err != nil {
		switch {
		case errors.Is(err, service.ErrInvalidDate):
			c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid or past date"})
		case errors.Is(err, service.ErrSlotUnavailable):
			c.JSON(http.StatusBadRequest, gin.H{"error": "Slot is outside the doctor's schedule"})
		case errors.Is(err, service.ErrSlotTaken):
			c.JSON(http.StatusConflict, gin.H{"error": "Slot is already booked"})
		case errors.Is(err, repository.ErrScheduleNotFound):
			c.JSON(http.StatusNotFound, gin.H{"error": "Doctor has no schedule"})
		default:
			h.logger.LogError(err, "booking failed", "hospital_id", hospitalID, "doctor_id", req.DoctorID)
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to book appointment"})
		}
		return
	}
	c.JSON(http.StatusCreated, gin.H{"success": true, "appointment": appt})
}

func (h *PublicHandler) Contact(c *gin.Context) {
	var req struct {
		Name    string `json:"name"`
		Email   string `json:"email"`
		Phone   string `json:"phone"`
		Subject string `json:"subject"`
		Message string `json:"message"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request format"})
		return
	}
	if req.Name == "" || req.Email == "" || req.Message == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "name, email and message are required"})
		return
	}

	msg := &models.ContactMessage{
		Name:    req.Name,
		Email:   req.Email,
		Phone:   req.Phone,
		Subject: req.Subject,
		Message: req.Message,
	}
	if err := h.contacts.Submit(c.Request.Context(), msg); err != nil {
		h.logger.LogError(err, "contact submission failed")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to submit message"})
		return
	}
	c.JSON(http.StatusCreated, gin.H{"success": true})
}
