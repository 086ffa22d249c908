package repository

import (
	"context"
	"errors"
	"sync"

	"hospital-management/backend/internal/models"

	"gorm.io/gorm"
)

var (
	ErrHospitalNotFound = errors.New("hospital not found")
	ErrScheduleNotFound = errors.New("schedule not found")
)

// HospitalDirectory serves the tenant profile data the chatbot context
// builder and the microsite endpoints read.
type HospitalDirectory interface {
	GetHospital(ctx context.Context, id uint) (*models.Hospital, error)
	ListServices(ctx context.Context, hospitalID uint) ([]models.HospitalService, error)
	ListDoctors(ctx context.Context, hospitalID uint) ([]models.Doctor, error)
	GetDoctorSchedule(ctx context.Context, doctorID uint) (*models.Schedule, error)
}

type GormHospitalDirectory struct {
	db *gorm.DB
}

func NewGormHospitalDirectory(db *gorm.DB) *GormHospitalDirectory {
	return &GormHospitalDirectory{db: db}
}

func (r *GormHospitalDirectory) GetHospital(ctx context.Context, id uint) (*models.Hospital, error) {
	var hospital models.Hospital
	err := r.db.WithContext(ctx).First(&hospital, id).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrHospitalNotFound
		}
		return nil, err
	}
	return &hospital, nil
}

func (r *GormHospitalDirectory) ListServices(ctx context.Context, hospitalID uint) ([]models.HospitalService, error) {
	var services []models.HospitalService
	err := r.db.WithContext(ctx).Where("hospital_id = ?", hospitalID).Find(&services).Error
	return services, err
}

func (r *GormHospitalDirectory) ListDoctors(ctx context.Context, hospitalID uint) ([]models.Doctor, error) {
	var doctors []models.Doctor
	err := r.db.WithContext(ctx).Where("hospital_id = ?", hospitalID).Find(&doctors).Error
	return doctors, err
}

func (r *GormHospitalDirectory) GetDoctorSchedule(ctx context.Context, doctorID uint) (*models.Schedule, error) {
	var schedule models.Schedule
	err := r.db.WithContext(ctx).Where("doctor_id = ?", doctorID).First(&schedule).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrScheduleNotFound
		}
		return nil, err
	}
	return &schedule, nil
}

// MemoryHospitalDirectory is an in-process implementation used in tests.
type MemoryHospitalDirectory struct {
	mu        sync.RWMutex
	Hospitals map[uint]*models.Hospital
	Services  map[uint][]models.HospitalService
	Doctors   map[uint][]models.Doctor
	Schedules map[uint]*models.Schedule // keyed by doctor ID
}

func NewMemoryHospitalDirectory() *MemoryHospitalDirectory {
	return &MemoryHospitalDirectory{
		Hospitals: make(map[uint]*models.Hospital),
		Services:  make(map[uint][]models.HospitalService),
		Doctors:   make(map[uint][]models.Doctor),
		Schedules: make(map[uint]*models.Schedule),
	}
}

func (r *MemoryHospitalDirectory) GetHospital(_ context.Context, id uint) (*models.Hospital, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	hospital, ok := r.Hospitals[id]
	if !ok {
		return nil, ErrHospitalNotFound
	}
	return hospital, nil
}

func (r *MemoryHospitalDirectory) ListServices(_ context.Context, hospitalID uint) ([]models.HospitalService, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.Services[hospitalID], nil
}

func (r *MemoryHospitalDirectory) ListDoctors(_ context.Context, hospitalID uint) ([]models.Doctor, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.Doctors[hospitalID], nil
}

func (r *MemoryHospitalDirectory) GetDoctorSchedule(_ context.Context, doctorID uint) (*models.Schedule, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	schedule, ok := r.Schedules[doctorID]
	if !ok {
		return nil, ErrScheduleNotFound
	}
	return schedule, nil
}
