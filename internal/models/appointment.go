package models

import (
	"time"
)

// Appointment statuses.
const (
	AppointmentPending   = "pending"
	AppointmentConfirmed = "confirmed"
	AppointmentCancelled = "cancelled"
)

// Appointment is a visitor's booking against a doctor's schedule slot.
type Appointment struct {
	ID           uint      `json:"id" gorm:"primaryKey"`
	HospitalID   uint      `json:"hospitalId" gorm:"index"`
	DoctorID     uint      `json:"doctorId" gorm:"index:idx_appt_doctor_date"`
	Date         string    `json:"date" gorm:"index:idx_appt_doctor_date"` // "2006-01-02"
	Slot         string    `json:"slot"`                                   // "09:30"
	PatientName  string    `json:"patientName"`
	PatientPhone string    `json:"patientPhone"`
	PatientEmail string    `json:"patientEmail,omitempty"`
	Reason       string    `json:"reason,omitempty"`
	Status       string    `json:"status" gorm:"default:pending"`
	CreatedAt    time.Time `json:"createdAt"`
	UpdatedAt    time.Time `json:"updatedAt"`
}

// Overlaps reports whether another appointment occupies the same doctor,
// date and slot. Cancelled bookings release their slot.
func (a *Appointment) Overlaps(other *Appointment) bool {
	if other.Status == AppointmentCancelled {
		return false
	}
	return a.DoctorID == other.DoctorID && a.Date == other.Date && a.Slot == other.Slot
}
