package models

import "time"

// TimeSlot is a fixed-duration interval of tutor availability. The
// is_booked flag is true iff an accepted booking references the slot.
type TimeSlot struct {
	ID        string    `db:"id" json:"id"`
	TutorID   string    `db:"tutor_id" json:"tutor_id"`
	StartTime time.Time `db:"start_time" json:"start_time"`
	EndTime   time.Time `db:"end_time" json:"end_time"`
	IsBooked  bool      `db:"is_booked" json:"is_booked"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
}

// AvailableSlot is a bookable slot joined with its tutor's display
// fields, scoped to tutors the student holds an accepted pairing with.
type AvailableSlot struct {
	ID             string    `db:"id" json:"id"`
	TutorID        string    `db:"tutor_id" json:"tutor_id"`
	StartTime      time.Time `db:"start_time" json:"start_time"`
	EndTime        time.Time `db:"end_time" json:"end_time"`
	TutorName      string    `db:"tutor_name" json:"tutor_name"`
	TutorStudentNo string    `db:"tutor_student_no" json:"tutor_student_no"`
}

// AppointmentStatus is the lifecycle of the legacy direct-booking artifact.
type AppointmentStatus string

const (
	AppointmentPending   AppointmentStatus = "PENDING"
	AppointmentConfirmed AppointmentStatus = "CONFIRMED"
	AppointmentCancelled AppointmentStatus = "CANCELLED"
)

// Appointment is produced by the direct-booking path that bypasses the
// booking request workflow.
type Appointment struct {
	ID        string            `db:"id" json:"id"`
	StudentID string            `db:"student_id" json:"student_id"`
	SlotID    string            `db:"slot_id" json:"slot_id"`
	Status    AppointmentStatus `db:"status" json:"status"`
	CreatedAt time.Time         `db:"created_at" json:"created_at"`
}
