package models

import (
	"time"
)

// Hospital is a tenant: the unit of data isolation. Every chat session,
// doctor, service and appointment belongs to exactly one hospital.
type Hospital struct {
	ID             uint      `json:"id" gorm:"primaryKey"`
	Name           string    `json:"name" gorm:"index"`
	Slug           string    `json:"slug" gorm:"uniqueIndex"`
	Email          string    `json:"email"`
	Phone          string    `json:"phone"`
	Address        string    `json:"address"`
	City           string    `json:"city"`
	Description    string    `json:"description,omitempty" gorm:"type:text"`
	Specialties    string    `json:"specialties,omitempty"`
	Facilities     string    `json:"facilities,omitempty"`
	EmergencyOpen  bool      `json:"emergencyOpen"`
	BedCount       int       `json:"bedCount"`
	OpeningHours   string    `json:"openingHours,omitempty" gorm:"type:text"` // formatted weekly hours
	CreatedAt      time.Time `json:"createdAt"`
	UpdatedAt      time.Time `json:"updatedAt"`
}

// HospitalService is a service offering listed on a hospital's microsite.
type HospitalService struct {
	ID          uint      `json:"id" gorm:"primaryKey"`
	HospitalID  uint      `json:"hospitalId" gorm:"index"`
	Name        string    `json:"name"`
	Description string    `json:"description,omitempty" gorm:"type:text"`
	Price       float64   `json:"price"`
	DurationMin int       `json:"durationMin"`
	CreatedAt   time.Time `json:"createdAt"`
	UpdatedAt   time.Time `json:"updatedAt"`
}

// ContactMessage is a submission from the marketing site's contact form.
// New submissions are pushed to the super-admin console group.
type ContactMessage struct {
	ID        uint      `json:"id" gorm:"primaryKey"`
	Name      string    `json:"name"`
	Email     string    `json:"email"`
	Phone     string    `json:"phone,omitempty"`
	Subject   string    `json:"subject"`
	Message   string    `json:"message" gorm:"type:text"`
	Read      bool      `json:"read" gorm:"default:false"`
	CreatedAt time.Time `json:"createdAt"`
}
