package service

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"hospital-management/backend/internal/models"
	"hospital-management/backend/internal/repository"
)

func newAppointmentFixture(t *testing.T) (*AppointmentService, *repository.MemoryHospitalDirectory, *repository.MemoryAppointmentRepository) {
	t.Helper()
	directory := repository.NewMemoryHospitalDirectory()
	appointments := repository.NewMemoryAppointmentRepository()

	directory.Doctors[1] = []models.Doctor{{ID: 10, HospitalID: 1, Name: "Reyes", Specialty: "Cardiology"}}
	directory.Schedules[10] = &models.Schedule{
		ID: 1, HospitalID: 1, DoctorID: 10,
		Days: "Monday,Wednesday,Friday", StartTime: "09:00", EndTime: "11:00", SlotMinutes: 30,
	}

	svc := NewAppointmentService(directory, appointments, testLogger())
	svc.nowFn = func() time.Time { return time.Date(2026, 3, 1, 8, 0, 0, 0, time.UTC) }
	return svc, directory, appointments
}

func TestAvailableSlotsGeneratedFromSchedule(t *testing.T) {
	svc, _, _ := newAppointmentFixture(t)

	// 2026-03-02 is a Monday.
	slots, err := svc.AvailableSlots(context.Background(), 1, 10, "2026-03-02")
	require.NoError(t, err)
	require.Len(t, slots, 4)
	assert.Equal(t, "09:00", slots[0].Time)
	assert.Equal(t, "10:30", slots[3].Time)
	for _, slot := range slots {
		assert.True(t, slot.Available)
	}
}

func TestAvailableSlotsEmptyOnOffDay(t *testing.T) {
	svc, _, _ := newAppointmentFixture(t)

	// 2026-03-03 is a Tuesday.
	slots, err := svc.AvailableSlots(context.Background(), 1, 10, "2026-03-03")
	require.NoError(t, err)
	assert.Empty(t, slots)
}

func TestBookMarksSlotTaken(t *testing.T) {
	svc, _, _ := newAppointmentFixture(t)
	ctx := context.Background()

	appt := &models.Appointment{
		HospitalID: 1, DoctorID: 10, Date: "2026-03-02", Slot: "09:30",
		PatientName: "Ana", PatientPhone: "555-0101",
	}
	require.NoError(t, svc.Book(ctx, appt))
	assert.Equal(t, models.AppointmentPending, appt.Status)

	slots, err := svc.AvailableSlots(ctx, 1, 10, "2026-03-02")
	require.NoError(t, err)
	for _, slot := range slots {
		if slot.Time == "09:30" {
			assert.False(t, slot.Available)
		} else {
			assert.True(t, slot.Available)
		}
	}
}

func TestBookRejectsOverlap(t *testing.T) {
	svc, _, _ := newAppointmentFixture(t)
	ctx := context.Background()

	first := &models.Appointment{
		HospitalID: 1, DoctorID: 10, Date: "2026-03-02", Slot: "09:00",
		PatientName: "Ana", PatientPhone: "555-0101",
	}
	require.NoError(t, svc.Book(ctx, first))

	second := &models.Appointment{
		HospitalID: 1, DoctorID: 10, Date: "2026-03-02", Slot: "09:00",
		PatientName: "Ben", PatientPhone: "555-0102",
	}
	assert.ErrorIs(t, svc.Book(ctx, second), ErrSlotTaken)
}

func TestCancelledBookingReleasesSlot(t *testing.T) {
	svc, _, appointments := newAppointmentFixture(t)
	ctx := context.Background()

	first := &models.Appointment{
		HospitalID: 1, DoctorID: 10, Date: "2026-03-02", Slot: "09:00",
		PatientName: "Ana", PatientPhone: "555-0101", Status: models.AppointmentCancelled,
	}
	require.NoError(t, appointments.Create(ctx, first))

	second := &models.Appointment{
		HospitalID: 1, DoctorID: 10, Date: "2026-03-02", Slot: "09:00",
		PatientName: "Ben", PatientPhone: "555-0102",
	}
	assert.NoError(t, svc.Book(ctx, second))
}

func TestBookRejectsOffScheduleSlot(t *testing.T) {
	svc, _, _ := newAppointmentFixture(t)

	appt := &models.Appointment{
		HospitalID: 1, DoctorID: 10, Date: "2026-03-02", Slot: "11:00",
		PatientName: "Ana", PatientPhone: "555-0101",
	}
	assert.ErrorIs(t, svc.Book(context.Background(), appt), ErrSlotUnavailable)
}

func TestBookRejectsPastAndMalformedDates(t *testing.T) {
	svc, _, _ := newAppointmentFixture(t)
	ctx := context.Background()

	past := &models.Appointment{
		HospitalID: 1, DoctorID: 10, Date: "2026-02-23", Slot: "09:00",
		PatientName: "Ana", PatientPhone: "555-0101",
	}
	assert.ErrorIs(t, svc.Book(ctx, past), ErrInvalidDate)

	bad := &models.Appointment{
		HospitalID: 1, DoctorID: 10, Date: "03/02/2026", Slot: "09:00",
		PatientName: "Ana", PatientPhone: "555-0101",
	}
	assert.ErrorIs(t, svc.Book(ctx, bad), ErrInvalidDate)
}

func TestListByHospitalReturnsBookings(t *testing.T) {
	svc, _, appointments := newAppointmentFixture(t)
	ctx := context.Background()

	first := &models.Appointment{
		HospitalID: 1, DoctorID: 10, Date: "2026-03-02", Slot: "09:00",
		PatientName: "Ana", PatientPhone: "555-0101",
	}
	second := &models.Appointment{
		HospitalID: 1, DoctorID: 10, Date: "2026-03-02", Slot: "09:30",
		PatientName: "Ben", PatientPhone: "555-0102",
	}
	require.NoError(t, svc.Book(ctx, first))
	require.NoError(t, svc.Book(ctx, second))
	require.NoError(t, appointments.Create(ctx, &models.Appointment{
		HospitalID: 2, DoctorID: 20, Date: "2026-03-02", Slot: "09:00",
		PatientName: "Other", PatientPhone: "555-0200", Status: models.AppointmentPending,
	}))

	listed, err := svc.ListByHospital(ctx, 1)
	require.NoError(t, err)
	require.Len(t, listed, 2)
	for _, appt := range listed {
		assert.Equal(t, uint(1), appt.HospitalID)
	}
}
