package repository

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/PedroPCAmaral/sistema-gestao-matricula-escolar/internal/models"
)

// SectionRepository provides database access for sections.
type SectionRepository struct {
	db *sqlx.DB
}

// NewSectionRepository creates a new instance of SectionRepository.
func NewSectionRepository(db *sqlx.DB) *SectionRepository {
	return &SectionRepository{db: db}
}

// FindByID returns a section by identifier.
func (r *SectionRepository) FindByID(ctx context.Context, id string) (*models.Section, error) {
	const query = `SELECT id, name, grade, shift, capacity, teacher_id, active, created_at, updated_at FROM sections WHERE id = $1`
	var section models.Section
	if err := r.db.GetContext(ctx, &section, query, id); err != nil {
		return nil, err
	}
	return &section, nil
}

// FindDetailByID returns a section with teacher name and current occupancy.
func (r *SectionRepository) FindDetailByID(ctx context.Context, id string) (*models.SectionDetail, error) {
	const query = `SELECT sc.id, sc.name, sc.grade, sc.shift, sc.capacity, sc.teacher_id, sc.active, sc.created_at, sc.updated_at,
        u.full_name AS teacher_name,
        (SELECT COUNT(*) FROM enrollments e WHERE e.section_id = sc.id AND e.status = $2) AS enrolled_count
        FROM sections sc
        LEFT JOIN users u ON u.id = sc.teacher_id
        WHERE sc.id = $1`
	var detail models.SectionDetail
	if err := r.db.GetContext(ctx, &detail, query, id, models.EnrollmentStatusActive); err != nil {
		return nil, err
	}
	return &detail, nil
}

// Create persists a new section.
func (r *SectionRepository) Create(ctx context.Context, section *models.Section) error {
	if section.ID == "" {
		section.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	if section.CreatedAt.IsZero() {
		section.CreatedAt = now
	}
	section.UpdatedAt = now
	const query = `INSERT INTO sections (id, name, grade, shift, capacity, teacher_id, active, created_at, updated_at)
        VALUES (:id, :name, :grade, :shift, :capacity, :teacher_id, :active, :created_at, :updated_at)`
	if _, err := r.db.NamedExecContext(ctx, query, section); err != nil {
		return fmt.Errorf("create section: %w", err)
	}
	return nil
}

// Update rewrites a section's mutable attributes. Capacity is business data
// fixed at creation and is not updated here.
func (r *SectionRepository) Update(ctx context.Context, section *models.Section) error {
	section.UpdatedAt = time.Now().UTC()
	const query = `UPDATE sections SET name = :name, grade = :grade, shift = :shift, teacher_id = :teacher_id, updated_at = :updated_at WHERE id = :id`
	if _, err := r.db.NamedExecContext(ctx, query, section); err != nil {
		return fmt.Errorf("update section: %w", err)
	}
	return nil
}

// SetActive flips the section's active flag (soft delete).
func (r *SectionRepository) SetActive(ctx context.Context, id string, active bool) error {
	const query = `UPDATE sections SET active = $2, updated_at = $3 WHERE id = $1`
	if _, err := r.db.ExecContext(ctx, query, id, active, time.Now().UTC()); err != nil {
		return fmt.Errorf("set section active: %w", err)
	}
	return nil
}

// List returns sections based on filters with total count and occupancy.
func (r *SectionRepository) List(ctx context.Context, filter models.SectionFilter) ([]models.SectionDetail, int, error) {
	base := `FROM sections sc LEFT JOIN users u ON u.id = sc.teacher_id`
	var conditions []string
	var args []interface{}

	if filter.Grade != "" {
		conditions = append(conditions, fmt.Sprintf("sc.grade = $%d", len(args)+1))
		args = append(args, filter.Grade)
	}
	if filter.Shift != "" {
		conditions = append(conditions, fmt.Sprintf("sc.shift = $%d", len(args)+1))
		args = append(args, filter.Shift)
	}
	if filter.Active != nil {
		conditions = append(conditions, fmt.Sprintf("sc.active = $%d", len(args)+1))
		args = append(args, *filter.Active)
	}
	if filter.Search != "" {
		conditions = append(conditions, fmt.Sprintf("sc.name ILIKE $%d", len(args)+1))
		args = append(args, "%"+filter.Search+"%")
	}

	clause := ""
	if len(conditions) > 0 {
		clause = " WHERE " + strings.Join(conditions, " AND ")
	}

	allowedSorts := map[string]string{
		"name":  "sc.name",
		"grade": "sc.grade",
	}
	orderBy := allowedSorts[filter.SortBy]
	if orderBy == "" {
		orderBy = "sc.grade"
	}
	order := strings.ToUpper(filter.SortOrder)
	if order != "ASC" && order != "DESC" {
		order = "ASC"
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

	query := fmt.Sprintf(`SELECT sc.id, sc.name, sc.grade, sc.shift, sc.capacity, sc.teacher_id, sc.active, sc.created_at, sc.updated_at,
        u.full_name AS teacher_name,
        (SELECT COUNT(*) FROM enrollments e WHERE e.section_id = sc.id AND e.status = $%d) AS enrolled_count
        %s ORDER BY %s %s, sc.shift ASC LIMIT %d OFFSET %d`, len(args)+1, base+clause, orderBy, order, size, offset)

	listArgs := append(append([]interface{}{}, args...), models.EnrollmentStatusActive)
	var sections []models.SectionDetail
	if err := r.db.SelectContext(ctx, &sections, query, listArgs...); err != nil {
		return nil, 0, fmt.Errorf("list sections: %w", err)
	}

	countQuery := fmt.Sprintf("SELECT COUNT(*) %s", base+clause)
	var total int
	if err := r.db.GetContext(ctx, &total, countQuery, args...); err != nil {
		return nil, 0, fmt.Errorf("count sections: %w", err)
	}
	return sections, total, nil
}
