package models

import "time"

// RequestStatus is the shared lifecycle for pairing and booking requests.
// Both state machines move a request out of PENDING exactly once.
type RequestStatus string

const (
	StatusPending   RequestStatus = "PENDING"
	StatusAccepted  RequestStatus = "ACCEPTED"
	StatusRejected  RequestStatus = "REJECTED"
	StatusCancelled RequestStatus = "CANCELLED"
)

var allowedTransitions = map[RequestStatus][]RequestStatus{
	StatusPending: {StatusAccepted, StatusRejected, StatusCancelled},
}

// CanTransition reports whether a request may move from one status to
// another. Terminal states permit no further transitions.
func (s RequestStatus) CanTransition(to RequestStatus) bool {
	for _, next := range allowedTransitions[s] {
		if next == to {
			return true
		}
	}
	return false
}

// Terminal reports whether the status admits no further transitions.
func (s RequestStatus) Terminal() bool {
	return len(allowedTransitions[s]) == 0
}

// PairingRequest is a student's ask to be tutored by a specific tutor.
// It gates the booking flow: slots are only bookable once the pairing
// is accepted.
type PairingRequest struct {
	ID           string        `db:"id" json:"id"`
	StudentID    string        `db:"student_id" json:"student_id"`
	TutorID      string        `db:"tutor_id" json:"tutor_id"`
	Status       RequestStatus `db:"status" json:"status"`
	RequestedAt  time.Time     `db:"requested_at" json:"requested_at"`
	RespondedAt  *time.Time    `db:"responded_at" json:"responded_at,omitempty"`
	RejectReason *string       `db:"reject_reason" json:"reject_reason,omitempty"`
}

// PairingRequestDetail joins the counterparty's display fields.
type PairingRequestDetail struct {
	PairingRequest
	StudentName    string `db:"student_name" json:"student_name"`
	StudentNo      string `db:"student_no" json:"student_no"`
	TutorName      string `db:"tutor_name" json:"tutor_name"`
	TutorStudentNo string `db:"tutor_student_no" json:"tutor_student_no"`
}

// BookingRequest is a student's ask to reserve one of a tutor's slots.
type BookingRequest struct {
	ID          string        `db:"id" json:"id"`
	SlotID      string        `db:"slot_id" json:"slot_id"`
	StudentID   string        `db:"student_id" json:"student_id"`
	TutorID     string        `db:"tutor_id" json:"tutor_id"`
	Note        *string       `db:"note" json:"note,omitempty"`
	Status      RequestStatus `db:"status" json:"status"`
	CreatedAt   time.Time     `db:"created_at" json:"created_at"`
	RespondedAt *time.Time    `db:"responded_at" json:"responded_at,omitempty"`
}

// BookingRequestDetail joins slot times and counterpart display fields.
type BookingRequestDetail struct {
	BookingRequest
	StartTime   time.Time `db:"start_time" json:"start_time"`
	EndTime     time.Time `db:"end_time" json:"end_time"`
	StudentName string    `db:"student_name" json:"student_name"`
	StudentNo   string    `db:"student_no" json:"student_no"`
	TutorName   string    `db:"tutor_name" json:"tutor_name"`
}
