package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"hospital-management/backend/internal/models"
	"hospital-management/backend/internal/repository"
	"hospital-management/backend/pkg/logger"
)

var (
	// ErrSlotTaken is returned when the requested slot already has an
	// active booking.
	ErrSlotTaken = errors.New("slot is already booked")
	// ErrSlotUnavailable is returned when the slot does not exist in the
	// doctor's schedule for that day.
	ErrSlotUnavailable = errors.New("slot is outside the doctor's schedule")
	// ErrInvalidDate is returned for malformed or past dates.
	ErrInvalidDate = errors.New("invalid appointment date")
)

// AppointmentService generates bookable slots from doctor schedules and
// records bookings, rejecting overlaps.
type AppointmentService struct {
	directory    repository.HospitalDirectory
	appointments repository.AppointmentRepository
	log          *logger.Logger

	nowFn func() time.Time
}

func NewAppointmentService(directory repository.HospitalDirectory, appointments repository.AppointmentRepository, log *logger.Logger) *AppointmentService {
	return &AppointmentService{
		directory:    directory,
		appointments: appointments,
		log:          log,
		nowFn:        time.Now,
	}
}

// Slot is one bookable window on a given date.
type Slot struct {
	Time      string `json:"time"`
	Available bool   `json:"available"`
}

// AvailableSlots lists the doctor's slots for a date with their booking
// state. An empty list means the doctor does not work that day.
func (s *AppointmentService) AvailableSlots(ctx context.Context, hospitalID, doctorID uint, date string) ([]Slot, error) {
	day, err := time.Parse("2006-01-02", date)
	if err != nil {
		return nil, ErrInvalidDate
	}

	schedule, err := s.directory.GetDoctorSchedule(ctx, doctorID)
	if err != nil {
		return nil, err
	}
	if !scheduleCoversDay(schedule, day.Weekday()) {
		return nil, nil
	}

	times, err := generateSlots(schedule)
	if err != nil {
		return nil, err
	}

	booked, err := s.appointments.ListByDoctorDate(ctx, doctorID, date)
	if err != nil {
		return nil, err
	}
	taken := make(map[string]bool, len(booked))
	for _, appt := range booked {
		if appt.Status != models.AppointmentCancelled {
			taken[appt.Slot] = true
		}
	}

	slots := make([]Slot, 0, len(times))
	for _, t := range times {
		slots = append(slots, Slot{Time: t, Available: !taken[t]})
	}
	return slots, nil
}

// Book records an appointment after validating the slot exists and is
// free. The repository read and create run back to back; the unique
// check is best effort and mirrors the booking page's flow.
func (s *AppointmentService) Book(ctx context.Context, appt *models.Appointment) error {
	day, err := time.Parse("2006-01-02", appt.Date)
	if err != nil {
		return ErrInvalidDate
	}
	if day.Before(s.nowFn().Truncate(24 * time.Hour)) {
		return ErrInvalidDate
	}

	schedule, err := s.directory.GetDoctorSchedule(ctx, appt.DoctorID)
	if err != nil {
		return err
	}
	if !scheduleCoversDay(schedule, day.Weekday()) {
		return ErrSlotUnavailable
	}
	times, err := generateSlots(schedule)
	if err != nil {
		return err
	}
	if !containsSlot(times, appt.Slot) {
		return ErrSlotUnavailable
	}

	existing, err := s.appointments.ListByDoctorDate(ctx, appt.DoctorID, appt.Date)
	if err != nil {
		return err
	}
	for i := range existing {
		if appt.Overlaps(&existing[i]) {
			return ErrSlotTaken
		}
	}

	appt.Status = models.AppointmentPending
	if err := s.appointments.Create(ctx, appt); err != nil {
		return err
	}
	s.log.Info("appointment booked",
		"hospital_id", appt.HospitalID, "doctor_id", appt.DoctorID,
		"date", appt.Date, "slot", appt.Slot)
	return nil
}

// ListByHospital returns all of a hospital's appointments for the agent
// console.
func (s *AppointmentService) ListByHospital(ctx context.Context, hospitalID uint) ([]models.Appointment, error) {
	return s.appointments.ListByHospital(ctx, hospitalID, 0)
}

func scheduleCoversDay(schedule *models.Schedule, weekday time.Weekday) bool {
	for _, day := range strings.Split(schedule.Days, ",") {
		if strings.EqualFold(strings.TrimSpace(day), weekday.String()) {
			return true
		}
	}
	return false
}

// generateSlots expands the schedule window into "HH:MM" start times at
// SlotMinutes granularity. The end time is exclusive.
func generateSlots(schedule *models.Schedule) ([]string, error) {
	start, err := time.Parse("15:04", schedule.StartTime)
	if err != nil {
		return nil, fmt.Errorf("bad schedule start time %q: %w", schedule.StartTime, err)
	}
	end, err := time.Parse("15:04", schedule.EndTime)
	if err != nil {
		return nil, fmt.Errorf("bad schedule end time %q: %w", schedule.EndTime, err)
	}

	step := schedule.SlotMinutes
	if step <= 0 {
		step = 30
	}

	var slots []string
	for t := start; t.Before(end); t = t.Add(time.Duration(step) * time.Minute) {
		slots = append(slots, t.Format("15:04"))
	}
	return slots, nil
}

func containsSlot(slots []string, slot string) bool {
	for _, s := range slots {
		if s == slot {
			return true
		}
	}
	return false
}
