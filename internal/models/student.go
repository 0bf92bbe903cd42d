package models

import "time"

// StudentStatus represents the lifecycle of a student record.
type StudentStatus string

// Possible student statuses.
const (
	StudentStatusActive    StudentStatus = "ACTIVE"
	StudentStatusInactive  StudentStatus = "INACTIVE"
	StudentStatusCancelled StudentStatus = "CANCELLED"
)

// Student represents a learner registered in the school. CurrentSectionID and
// Shift are owned by the enrollment workflow; student edits never touch them.
type Student struct {
	ID               string        `db:"id" json:"id"`
	FullName         string        `db:"full_name" json:"full_name"`
	CPF              *string       `db:"cpf" json:"cpf,omitempty"`
	Email            *string       `db:"email" json:"email,omitempty"`
	Phone            string        `db:"phone" json:"phone"`
	Address          string        `db:"address" json:"address"`
	BirthDate        time.Time     `db:"birth_date" json:"birth_date"`
	GuardianName     *string       `db:"guardian_name" json:"guardian_name,omitempty"`
	GuardianPhone    *string       `db:"guardian_phone" json:"guardian_phone,omitempty"`
	CurrentSectionID *string       `db:"current_section_id" json:"current_section_id,omitempty"`
	Shift            *Shift        `db:"shift" json:"shift,omitempty"`
	Status           StudentStatus `db:"status" json:"status"`
	CreatedAt        time.Time     `db:"created_at" json:"created_at"`
	UpdatedAt        time.Time     `db:"updated_at" json:"updated_at"`
}

// StudentDetail contains student information with section context.
type StudentDetail struct {
	Student
	CurrentSectionName *string `db:"current_section_name" json:"current_section_name,omitempty"`
}

// StudentFilter encapsulates allowed search parameters for listing students.
type StudentFilter struct {
	Search    string
	SectionID string
	Status    StudentStatus
	Page      int
	PageSize  int
	SortBy    string
	SortOrder string
}
