package models

import "time"

// EnrollmentStatus represents the lifecycle of an enrollment.
type EnrollmentStatus string

// Possible enrollment statuses. ACTIVE is the only initial state; CANCELLED
// and SUSPENDED are terminal. SUSPENDED is set administratively, never by the
// enrollment workflow itself.
const (
	EnrollmentStatusActive    EnrollmentStatus = "ACTIVE"
	EnrollmentStatusCancelled EnrollmentStatus = "CANCELLED"
	EnrollmentStatusSuspended EnrollmentStatus = "SUSPENDED"
)

// Enrollment binds one student to one section for one shift.
type Enrollment struct {
	ID           string           `db:"id" json:"id"`
	StudentID    string           `db:"student_id" json:"student_id"`
	SectionID    string           `db:"section_id" json:"section_id"`
	Shift        Shift            `db:"shift" json:"shift"`
	Status       EnrollmentStatus `db:"status" json:"status"`
	EnrolledAt   time.Time        `db:"enrolled_at" json:"enrolled_at"`
	CancelledAt  *time.Time       `db:"cancelled_at" json:"cancelled_at,omitempty"`
	CancelReason *string          `db:"cancel_reason" json:"cancel_reason,omitempty"`
	RegisteredBy *string          `db:"registered_by" json:"registered_by,omitempty"`
	UpdatedAt    time.Time        `db:"updated_at" json:"updated_at"`
}

// EnrollmentDetail enriches Enrollment with student and section info.
type EnrollmentDetail struct {
	Enrollment
	StudentName  string  `db:"student_name" json:"student_name"`
	StudentCPF   *string `db:"student_cpf" json:"student_cpf,omitempty"`
	SectionName  string  `db:"section_name" json:"section_name"`
	SectionGrade string  `db:"section_grade" json:"section_grade"`
}

// EnrollmentFilter provides filters for listing enrollments.
type EnrollmentFilter struct {
	StudentID string
	SectionID string
	Status    EnrollmentStatus
	Page      int
	PageSize  int
	SortBy    string
	SortOrder string
}

// QueueStatus reports notification queue depths.
type QueueStatus struct {
	RegistrationQueueDepth int64 `json:"registration_queue_depth"`
	CancellationQueueDepth int64 `json:"cancellation_queue_depth"`
	Total                  int64 `json:"total"`
}
