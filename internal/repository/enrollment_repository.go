package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/PedroPCAmaral/sistema-gestao-matricula-escolar/internal/models"
)

// Sentinel errors surfaced by the registration and cancellation transactions.
var (
	ErrSectionFull         = errors.New("section has no available seats")
	ErrDuplicateEnrollment = errors.New("active enrollment already exists")
	ErrEnrollmentNotActive = errors.New("enrollment is not active")
)

// EnrollmentRepository handles persistence of enrollments.
type EnrollmentRepository struct {
	db *sqlx.DB
}

// NewEnrollmentRepository constructs the repository.
func NewEnrollmentRepository(db *sqlx.DB) *EnrollmentRepository {
	return &EnrollmentRepository{db: db}
}

// List returns enrollments filtered by the provided criteria.
func (r *EnrollmentRepository) List(ctx context.Context, filter models.EnrollmentFilter) ([]models.EnrollmentDetail, int, error) {
	base := `FROM enrollments e
LEFT JOIN students st ON st.id = e.student_id
LEFT JOIN sections sc ON sc.id = e.section_id`
	var conditions []string
	var args []interface{}

	if filter.StudentID != "" {
		conditions = append(conditions, fmt.Sprintf("e.student_id = $%d", len(args)+1))
		args = append(args, filter.StudentID)
	}
	if filter.SectionID != "" {
		conditions = append(conditions, fmt.Sprintf("e.section_id = $%d", len(args)+1))
		args = append(args, filter.SectionID)
	}
	if filter.Status != "" {
		conditions = append(conditions, fmt.Sprintf("e.status = $%d", len(args)+1))
		args = append(args, filter.Status)
	}

	clause := ""
	if len(conditions) > 0 {
		clause = " WHERE " + strings.Join(conditions, " AND ")
	}

	allowedSorts := map[string]string{
		"enrolled_at":  "e.enrolled_at",
		"student_name": "st.full_name",
		"section_name": "sc.name",
	}
	orderBy := allowedSorts[filter.SortBy]
	if orderBy == "" {
		orderBy = "e.enrolled_at"
	}
	order := strings.ToUpper(filter.SortOrder)
	if order != "ASC" && order != "DESC" {
		order = "DESC"
	}
	page := filter.Page
	if page < 1 {
		page = 1
	}
	size := filter.PageSize
	if size <= 0 || size > 100 {
		size = 20
	}
	offset := (page - 1) * size

	query := fmt.Sprintf(`SELECT e.id, e.student_id, e.section_id, e.shift, e.status, e.enrolled_at, e.cancelled_at, e.cancel_reason, e.registered_by, e.updated_at,
        st.full_name AS student_name, st.cpf AS student_cpf, sc.name AS section_name, sc.grade AS section_grade
        %s ORDER BY %s %s LIMIT %d OFFSET %d`, base+clause, orderBy, order, size, offset)

	var enrollments []models.EnrollmentDetail
	if err := r.db.SelectContext(ctx, &enrollments, query, args...); err != nil {
		return nil, 0, fmt.Errorf("list enrollments: %w", err)
	}

	countQuery := fmt.Sprintf("SELECT COUNT(*) %s", base+clause)
	var total int
	if err := r.db.GetContext(ctx, &total, countQuery, args...); err != nil {
		return nil, 0, fmt.Errorf("count enrollments: %w", err)
	}
	return enrollments, total, nil
}

// FindByID returns an enrollment by its ID.
func (r *EnrollmentRepository) FindByID(ctx context.Context, id string) (*models.Enrollment, error) {
	const query = `SELECT id, student_id, section_id, shift, status, enrolled_at, cancelled_at, cancel_reason, registered_by, updated_at FROM enrollments WHERE id = $1`
	var enrollment models.Enrollment
	if err := r.db.GetContext(ctx, &enrollment, query, id); err != nil {
		return nil, err
	}
	return &enrollment, nil
}

// FindDetailByID returns an enrollment with student and section context.
func (r *EnrollmentRepository) FindDetailByID(ctx context.Context, id string) (*models.EnrollmentDetail, error) {
	const query = `SELECT e.id, e.student_id, e.section_id, e.shift, e.status, e.enrolled_at, e.cancelled_at, e.cancel_reason, e.registered_by, e.updated_at,
        st.full_name AS student_name, st.cpf AS student_cpf, sc.name AS section_name, sc.grade AS section_grade
        FROM enrollments e
        LEFT JOIN students st ON st.id = e.student_id
        LEFT JOIN sections sc ON sc.id = e.section_id
        WHERE e.id = $1`
	var detail models.EnrollmentDetail
	if err := r.db.GetContext(ctx, &detail, query, id); err != nil {
		return nil, err
	}
	return &detail, nil
}

// ExistsActive checks whether the student already holds an active enrollment
// in the section.
func (r *EnrollmentRepository) ExistsActive(ctx context.Context, studentID, sectionID string) (bool, error) {
	const query = `SELECT 1 FROM enrollments WHERE student_id = $1 AND section_id = $2 AND status = $3 LIMIT 1`
	var exists int
	if err := r.db.GetContext(ctx, &exists, query, studentID, sectionID, models.EnrollmentStatusActive); err != nil {
		if err == sql.ErrNoRows {
			return false, nil
		}
		return false, fmt.Errorf("check active enrollment: %w", err)
	}
	return true, nil
}

// CountActiveBySection returns the number of active enrollments in a section.
func (r *EnrollmentRepository) CountActiveBySection(ctx context.Context, sectionID string) (int, error) {
	const query = `SELECT COUNT(*) FROM enrollments WHERE section_id = $1 AND status = $2`
	var count int
	if err := r.db.GetContext(ctx, &count, query, sectionID, models.EnrollmentStatusActive); err != nil {
		return 0, fmt.Errorf("count active enrollments: %w", err)
	}
	return count, nil
}

// ListActiveBySection returns active enrollments for a section with student
// context, ordered by enrollment time.
func (r *EnrollmentRepository) ListActiveBySection(ctx context.Context, sectionID string) ([]models.EnrollmentDetail, error) {
	const query = `SELECT e.id, e.student_id, e.section_id, e.shift, e.status, e.enrolled_at, e.cancelled_at, e.cancel_reason, e.registered_by, e.updated_at,
        st.full_name AS student_name, st.cpf AS student_cpf, sc.name AS section_name, sc.grade AS section_grade
        FROM enrollments e
        LEFT JOIN students st ON st.id = e.student_id
        LEFT JOIN sections sc ON sc.id = e.section_id
        WHERE e.section_id = $1 AND e.status = $2
        ORDER BY e.enrolled_at ASC`
	var enrollments []models.EnrollmentDetail
	if err := r.db.SelectContext(ctx, &enrollments, query, sectionID, models.EnrollmentStatusActive); err != nil {
		return nil, fmt.Errorf("list section enrollments: %w", err)
	}
	return enrollments, nil
}

// Register persists a new active enrollment and updates the student's section
// linkage within a single transaction. The section row is locked before the
// capacity re-check so concurrent registrations for the same section
// serialize at the store and the seat ceiling holds.
func (r *EnrollmentRepository) Register(ctx context.Context, enrollment *models.Enrollment) error {
	if enrollment.ID == "" {
		enrollment.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	if enrollment.EnrolledAt.IsZero() {
		enrollment.EnrolledAt = now
	}
	enrollment.Status = models.EnrollmentStatusActive
	enrollment.UpdatedAt = now

	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin register enrollment: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	var capacity int
	if err = tx.GetContext(ctx, &capacity, `SELECT capacity FROM sections WHERE id = $1 FOR UPDATE`, enrollment.SectionID); err != nil {
		return fmt.Errorf("lock section: %w", err)
	}

	var active int
	if err = tx.GetContext(ctx, &active, `SELECT COUNT(*) FROM enrollments WHERE section_id = $1 AND status = $2`,
		enrollment.SectionID, models.EnrollmentStatusActive); err != nil {
		return fmt.Errorf("count active enrollments: %w", err)
	}
	if active >= capacity {
		err = ErrSectionFull
		return err
	}

	var exists int
	err = tx.GetContext(ctx, &exists, `SELECT 1 FROM enrollments WHERE student_id = $1 AND section_id = $2 AND status = $3 LIMIT 1`,
		enrollment.StudentID, enrollment.SectionID, models.EnrollmentStatusActive)
	if err == nil {
		err = ErrDuplicateEnrollment
		return err
	}
	if err != sql.ErrNoRows {
		return fmt.Errorf("check duplicate enrollment: %w", err)
	}
	err = nil

	if _, err = tx.NamedExecContext(ctx, `INSERT INTO enrollments (id, student_id, section_id, shift, status, enrolled_at, cancelled_at, cancel_reason, registered_by, updated_at)
        VALUES (:id, :student_id, :section_id, :shift, :status, :enrolled_at, :cancelled_at, :cancel_reason, :registered_by, :updated_at)`, enrollment); err != nil {
		return fmt.Errorf("insert enrollment: %w", err)
	}

	if _, err = tx.ExecContext(ctx, `UPDATE students SET current_section_id = $2, shift = $3, updated_at = $4 WHERE id = $1`,
		enrollment.StudentID, enrollment.SectionID, enrollment.Shift, now); err != nil {
		return fmt.Errorf("update student section: %w", err)
	}

	if err = tx.Commit(); err != nil {
		return fmt.Errorf("commit register enrollment: %w", err)
	}
	return nil
}

type cancelTarget struct {
	StudentID string                  `db:"student_id"`
	Status    models.EnrollmentStatus `db:"status"`
}

// Cancel marks an active enrollment cancelled and detaches the student from
// its section within a single transaction. Returns sql.ErrNoRows when the
// enrollment does not exist and ErrEnrollmentNotActive when it is already
// terminal.
func (r *EnrollmentRepository) Cancel(ctx context.Context, id, reason string, at time.Time) error {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin cancel enrollment: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	var target cancelTarget
	if err = tx.GetContext(ctx, &target, `SELECT student_id, status FROM enrollments WHERE id = $1 FOR UPDATE`, id); err != nil {
		if err == sql.ErrNoRows {
			return err
		}
		return fmt.Errorf("lock enrollment: %w", err)
	}
	if target.Status != models.EnrollmentStatusActive {
		err = ErrEnrollmentNotActive
		return err
	}

	if _, err = tx.ExecContext(ctx, `UPDATE enrollments SET status = $2, cancelled_at = $3, cancel_reason = $4, updated_at = $3 WHERE id = $1`,
		id, models.EnrollmentStatusCancelled, at, reason); err != nil {
		return fmt.Errorf("cancel enrollment: %w", err)
	}

	if _, err = tx.ExecContext(ctx, `UPDATE students SET status = $2, current_section_id = NULL, updated_at = $3 WHERE id = $1`,
		target.StudentID, models.StudentStatusInactive, at); err != nil {
		return fmt.Errorf("detach student: %w", err)
	}

	if err = tx.Commit(); err != nil {
		return fmt.Errorf("commit cancel enrollment: %w", err)
	}
	return nil
}
