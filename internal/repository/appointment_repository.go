package repository

import (
	"context"
	"sync"

	"hospital-management/backend/internal/models"

	"gorm.io/gorm"
)

// AppointmentRepository persists bookings.
type AppointmentRepository interface {
	Create(ctx context.Context, appointment *models.Appointment) error
	ListByDoctorDate(ctx context.Context, doctorID uint, date string) ([]models.Appointment, error)
	ListByHospital(ctx context.Context, hospitalID uint, limit int) ([]models.Appointment, error)
}

type GormAppointmentRepository struct {
	db *gorm.DB
}

func NewGormAppointmentRepository(db *gorm.DB) *GormAppointmentRepository {
	return &GormAppointmentRepository{db: db}
}

func (r *GormAppointmentRepository) Create(ctx context.Context, appointment *models.Appointment) error {
	return r.db.WithContext(ctx).Create(appointment).Error
}

func (r *GormAppointmentRepository) ListByDoctorDate(ctx context.Context, doctorID uint, date string) ([]models.Appointment, error) {
	var appointments []models.Appointment
	err := r.db.WithContext(ctx).
		Where("doctor_id = ? AND date = ?", doctorID, date).
		Order("slot ASC").
		Find(&appointments).Error
	return appointments, err
}

func (r *GormAppointmentRepository) ListByHospital(ctx context.Context, hospitalID uint, limit int) ([]models.Appointment, error) {
	var appointments []models.Appointment
	query := r.db.WithContext(ctx).Where("hospital_id = ?", hospitalID).Order("created_at DESC")
	if limit > 0 {
		query = query.Limit(limit)
	}
	err := query.Find(&appointments).Error
	return appointments, err
}

// MemoryAppointmentRepository is an in-process implementation used in tests.
type MemoryAppointmentRepository struct {
	mu           sync.RWMutex
	appointments []models.Appointment
	nextID       uint
}

func NewMemoryAppointmentRepository() *MemoryAppointmentRepository {
	return &MemoryAppointmentRepository{}
}

func (r *MemoryAppointmentRepository) Create(_ context.Context, appointment *models.Appointment) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.nextID++
	appointment.ID = r.nextID
	r.appointments = append(r.appointments, *appointment)
	return nil
}

func (r *MemoryAppointmentRepository) ListByDoctorDate(_ context.Context, doctorID uint, date string) ([]models.Appointment, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var result []models.Appointment
	for _, appointment := range r.appointments {
		if appointment.DoctorID == doctorID && appointment.Date == date {
			result = append(result, appointment)
		}
	}
	return result, nil
}

func (r *MemoryAppointmentRepository) ListByHospital(_ context.Context, hospitalID uint, limit int) ([]models.Appointment, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var result []models.Appointment
	for i := len(r.appointments) - 1; i >= 0; i-- {
		if r.appointments[i].HospitalID == hospitalID {
			result = append(result, r.appointments[i])
			if limit > 0 && len(result) >= limit {
				break
			}
		}
	}
	return result, nil
}
