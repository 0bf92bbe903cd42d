package models

import "time"

// Shift identifies the time-of-day slot a section runs in.
type Shift string

// Supported shifts.
const (
	ShiftMorning   Shift = "MORNING"
	ShiftAfternoon Shift = "AFTERNOON"
	ShiftEvening   Shift = "EVENING"
)

// Valid reports whether the shift is one of the supported slots.
func (s Shift) Valid() bool {
	switch s {
	case ShiftMorning, ShiftAfternoon, ShiftEvening:
		return true
	}
	return false
}

// Section represents a class with a fixed seat capacity.
type Section struct {
	ID        string    `db:"id" json:"id"`
	Name      string    `db:"name" json:"name"`
	Grade     string    `db:"grade" json:"grade"`
	Shift     Shift     `db:"shift" json:"shift"`
	Capacity  int       `db:"capacity" json:"capacity"`
	TeacherID *string   `db:"teacher_id" json:"teacher_id,omitempty"`
	Active    bool      `db:"active" json:"active"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
	UpdatedAt time.Time `db:"updated_at" json:"updated_at"`
}

// SectionDetail extends Section with teacher info and current occupancy.
type SectionDetail struct {
	Section
	TeacherName   *string `db:"teacher_name" json:"teacher_name,omitempty"`
	EnrolledCount int     `db:"enrolled_count" json:"enrolled_count"`
}

// SectionFilter defines filter criteria for listing sections.
type SectionFilter struct {
	Grade     string
	Shift     Shift
	Active    *bool
	Search    string
	Page      int
	PageSize  int
	SortBy    string
	SortOrder string
}
