package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"hospital-management/backend/internal/models"
	"hospital-management/backend/internal/repository"
	"hospital-management/backend/pkg/cache"
)

const genericAssistantContext = "You are a helpful hospital assistant. Answer general questions about " +
	"appointments, visiting hours and hospital services politely and concisely. If you do not know a " +
	"detail specific to this hospital, say so and suggest contacting the reception desk."

// HospitalService serves hospital directory data and renders the prompt
// context handed to the AI provider. Directory reads are cached because
// the context is rebuilt periodically for every active conversation.
type HospitalService struct {
	directory    repository.HospitalDirectory
	appointments repository.AppointmentRepository
	cache        *cache.Cache
}

func NewHospitalService(directory repository.HospitalDirectory, appointments repository.AppointmentRepository) *HospitalService {
	return &HospitalService{
		directory:    directory,
		appointments: appointments,
		cache:        cache.New(5*time.Minute, 10*time.Minute, 500),
	}
}

// GetHospital returns the hospital profile, from cache when fresh.
func (s *HospitalService) GetHospital(ctx context.Context, hospitalID uint) (*models.Hospital, error) {
	key := fmt.Sprintf("hospital:%d", hospitalID)
	if v, ok := s.cache.Get(key); ok {
		return v.(*models.Hospital), nil
	}
	hospital, err := s.directory.GetHospital(ctx, hospitalID)
	if err != nil {
		return nil, err
	}
	s.cache.Set(key, hospital)
	return hospital, nil
}

// ListServices returns the hospital's service catalogue.
func (s *HospitalService) ListServices(ctx context.Context, hospitalID uint) ([]models.HospitalService, error) {
	key := fmt.Sprintf("services:%d", hospitalID)
	if v, ok := s.cache.Get(key); ok {
		return v.([]models.HospitalService), nil
	}
	services, err := s.directory.ListServices(ctx, hospitalID)
	if err != nil {
		return nil, err
	}
	s.cache.Set(key, services)
	return services, nil
}

// ListDoctors returns the hospital's doctors.
func (s *HospitalService) ListDoctors(ctx context.Context, hospitalID uint) ([]models.Doctor, error) {
	key := fmt.Sprintf("doctors:%d", hospitalID)
	if v, ok := s.cache.Get(key); ok {
		return v.([]models.Doctor), nil
	}
	doctors, err := s.directory.ListDoctors(ctx, hospitalID)
	if err != nil {
		return nil, err
	}
	s.cache.Set(key, doctors)
	return doctors, nil
}

// BuildContext renders the context string injected into the provider
// prompt. When the hospital is unknown it falls back to a generic
// assistant persona instead of failing the conversation.
func (s *HospitalService) BuildContext(ctx context.Context, hospitalID uint) string {
	hospital, err := s.GetHospital(ctx, hospitalID)
	if err != nil {
		return genericAssistantContext
	}

	var b strings.Builder
	fmt.Fprintf(&b, "You are the virtual assistant of %s", hospital.Name)
	if hospital.City != "" {
		fmt.Fprintf(&b, " in %s", hospital.City)
	}
	b.WriteString(". Answer visitor questions using only the information below. Be brief and friendly.\n")

	if hospital.Address != "" {
		fmt.Fprintf(&b, "Address: %s\n", hospital.Address)
	}
	if hospital.Phone != "" {
		fmt.Fprintf(&b, "Phone: %s\n", hospital.Phone)
	}
	if hospital.OpeningHours != "" {
		fmt.Fprintf(&b, "Opening hours: %s\n", hospital.OpeningHours)
	}
	if hospital.EmergencyOpen {
		b.WriteString("Emergency department: open 24/7\n")
	}
	if hospital.BedCount > 0 {
		fmt.Fprintf(&b, "Beds: %d\n", hospital.BedCount)
	}
	if hospital.Specialties != "" {
		fmt.Fprintf(&b, "Specialties: %s\n", hospital.Specialties)
	}
	if hospital.Facilities != "" {
		fmt.Fprintf(&b, "Facilities: %s\n", hospital.Facilities)
	}
	if hospital.Description != "" {
		fmt.Fprintf(&b, "About: %s\n", hospital.Description)
	}

	if services, err := s.ListServices(ctx, hospitalID); err == nil && len(services) > 0 {
		b.WriteString("Services:\n")
		for _, svc := range services {
			fmt.Fprintf(&b, "- %s", svc.Name)
			if svc.Price > 0 {
				fmt.Fprintf(&b, " (%.2f)", svc.Price)
			}
			if svc.DurationMin > 0 {
				fmt.Fprintf(&b, ", %d min", svc.DurationMin)
			}
			if svc.Description != "" {
				fmt.Fprintf(&b, ": %s", svc.Description)
			}
			b.WriteString("\n")
		}
	}

	if doctors, err := s.ListDoctors(ctx, hospitalID); err == nil && len(doctors) > 0 {
		b.WriteString("Doctors:\n")
		for _, doc := range doctors {
			fmt.Fprintf(&b, "- Dr. %s, %s", doc.Name, doc.Specialty)
			if doc.Qualifications != "" {
				fmt.Fprintf(&b, " (%s)", doc.Qualifications)
			}
			if doc.ExperienceYrs > 0 {
				fmt.Fprintf(&b, ", %d years experience", doc.ExperienceYrs)
			}
			if doc.Fee > 0 {
				fmt.Fprintf(&b, ", consultation fee %.2f", doc.Fee)
			}
			if schedule, err := s.directory.GetDoctorSchedule(ctx, doc.ID); err == nil {
				fmt.Fprintf(&b, ", available %s %s-%s", schedule.Days, schedule.StartTime, schedule.EndTime)
				if schedule.SlotMinutes > 0 {
					fmt.Fprintf(&b, " (%d-minute slots)", schedule.SlotMinutes)
				}
			}
			if doc.Bio != "" {
				fmt.Fprintf(&b, ". %s", doc.Bio)
			}
			b.WriteString("\n")
		}
	}

	b.WriteString("If the visitor asks to speak with a person, tell them they can request a human agent at any time.")
	return b.String()
}
