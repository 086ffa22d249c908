package service

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"hospital-management/backend/internal/models"
	"hospital-management/backend/internal/repository"
)

func TestBuildContextFallsBackForUnknownHospital(t *testing.T) {
	svc := NewHospitalService(repository.NewMemoryHospitalDirectory(), repository.NewMemoryAppointmentRepository())

	info := svc.BuildContext(context.Background(), 99)
	assert.Contains(t, info, "helpful hospital assistant")
}

func TestBuildContextIncludesDirectoryData(t *testing.T) {
	directory := repository.NewMemoryHospitalDirectory()
	directory.Hospitals[1] = &models.Hospital{
		ID: 1, Name: "St. Vincent General", City: "Cebu",
		Phone: "555-0100", OpeningHours: "Mon-Sat 08:00-20:00",
		EmergencyOpen: true, BedCount: 220,
		Specialties: "Cardiology, Pediatrics",
	}
	directory.Services[1] = []models.HospitalService{
		{ID: 1, HospitalID: 1, Name: "Executive Checkup", Price: 4500, DurationMin: 90, Description: "Full panel"},
	}
	directory.Doctors[1] = []models.Doctor{
		{ID: 10, HospitalID: 1, Name: "Reyes", Specialty: "Cardiology", Bio: "Fellow of the Philippine Heart Association."},
	}
	directory.Schedules[10] = &models.Schedule{
		DoctorID: 10, Days: "Monday,Friday", StartTime: "09:00", EndTime: "12:00", SlotMinutes: 30,
	}

	svc := NewHospitalService(directory, repository.NewMemoryAppointmentRepository())
	info := svc.BuildContext(context.Background(), 1)

	assert.Contains(t, info, "St. Vincent General")
	assert.Contains(t, info, "Cebu")
	assert.Contains(t, info, "Emergency department: open 24/7")
	assert.Contains(t, info, "Executive Checkup")
	assert.Contains(t, info, "90 min")
	assert.Contains(t, info, "Dr. Reyes, Cardiology")
	assert.Contains(t, info, "Monday,Friday 09:00-12:00 (30-minute slots)")
	assert.Contains(t, info, "Fellow of the Philippine Heart Association.")
}

func TestHospitalLookupsAreCached(t *testing.T) {
	directory := repository.NewMemoryHospitalDirectory()
	directory.Hospitals[1] = &models.Hospital{ID: 1, Name: "First Name"}

	svc := NewHospitalService(directory, repository.NewMemoryAppointmentRepository())

	first, err := svc.GetHospital(context.Background(), 1)
	require.NoError(t, err)
	assert.Equal(t, "First Name", first.Name)

	// The directory changes, but the cached profile is still served.
	directory.Hospitals[1] = &models.Hospital{ID: 1, Name: "Renamed"}
	second, err := svc.GetHospital(context.Background(), 1)
	require.NoError(t, err)
	assert.Equal(t, "First Name", second.Name)
}
