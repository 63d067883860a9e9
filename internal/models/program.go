package models

import "time"

// ProgramStatus marks whether a program accepts registrations.
type ProgramStatus string

const (
	ProgramOpen   ProgramStatus = "OPEN"
	ProgramClosed ProgramStatus = "CLOSED"
)

// Program is a tutoring program students can register for.
type Program struct {
	ID        string        `db:"id" json:"id"`
	Name      string        `db:"name" json:"name"`
	Semester  string        `db:"semester" json:"semester"`
	Status    ProgramStatus `db:"status" json:"status"`
	CreatedAt time.Time     `db:"created_at" json:"created_at"`
}

// Registration enrolls a student into a program. At most one per
// (student, program) pair, enforced by a unique constraint.
type Registration struct {
	ID        string    `db:"id" json:"id"`
	StudentID string    `db:"student_id" json:"student_id"`
	ProgramID string    `db:"program_id" json:"program_id"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
}

// RegistrationDetail joins program display fields for listings.
type RegistrationDetail struct {
	Registration
	ProgramName string `db:"program_name" json:"program_name"`
	Semester    string `db:"semester" json:"semester"`
}
