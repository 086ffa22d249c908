package models

import (
	"time"
)

// Doctor is a practitioner listed under a hospital.
type Doctor struct {
	ID             uint      `json:"id" gorm:"primaryKey"`
	HospitalID     uint      `json:"hospitalId" gorm:"index"`
	Name           string    `json:"name"`
	Specialty      string    `json:"specialty"`
	Qualifications string    `json:"qualifications,omitempty"`
	ExperienceYrs  int       `json:"experienceYrs"`
	Fee            float64   `json:"fee"`
	Bio            string    `json:"bio,omitempty" gorm:"type:text"`
	CreatedAt      time.Time `json:"createdAt"`
	UpdatedAt      time.Time `json:"updatedAt"`
}

// Schedule is a doctor's weekly recurring availability. Days is a
// comma-separated list of weekday names; slots are generated from the
// start/end window at SlotMinutes granularity.
type Schedule struct {
	ID          uint      `json:"id" gorm:"primaryKey"`
	HospitalID  uint      `json:"hospitalId" gorm:"index"`
	DoctorID    uint      `json:"doctorId" gorm:"index"`
	Days        string    `json:"days"`
	StartTime   string    `json:"startTime"` // "09:00"
	EndTime     string    `json:"endTime"`   // "17:00"
	SlotMinutes int       `json:"slotMinutes" gorm:"default:30"`
	CreatedAt   time.Time `json:"createdAt"`
	UpdatedAt   time.Time `json:"updatedAt"`
}
