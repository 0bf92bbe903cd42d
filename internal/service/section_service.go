package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strconv"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/PedroPCAmaral/sistema-gestao-matricula-escolar/internal/models"
	appErrors "github.com/PedroPCAmaral/sistema-gestao-matricula-escolar/pkg/errors"
	"github.com/PedroPCAmaral/sistema-gestao-matricula-escolar/pkg/export"
)

type sectionRepository interface {
	List(ctx context.Context, filter models.SectionFilter) ([]models.SectionDetail, int, error)
	FindByID(ctx context.Context, id string) (*models.Section, error)
	FindDetailByID(ctx context.Context, id string) (*models.SectionDetail, error)
	Create(ctx context.Context, section *models.Section) error
	Update(ctx context.Context, section *models.Section) error
	SetActive(ctx context.Context, id string, active bool) error
}

type teacherReader interface {
	FindByID(ctx context.Context, id string) (*models.User, error)
}

type rosterReader interface {
	ListActiveBySection(ctx context.Context, sectionID string) ([]models.EnrollmentDetail, error)
}

// CreateSectionRequest holds payload for creating sections. Capacity is fixed
// at creation.
type CreateSectionRequest struct {
	Name      string       `json:"name" validate:"required,max=100"`
	Grade     string       `json:"grade" validate:"required,max=50"`
	Shift     models.Shift `json:"shift" validate:"required"`
	Capacity  int          `json:"capacity" validate:"required,min=1,max=100"`
	TeacherID *string      `json:"teacher_id"`
}

// UpdateSectionRequest holds payload for updating sections. Capacity is
// immutable and deliberately absent.
type UpdateSectionRequest struct {
	Name      string       `json:"name" validate:"required,max=100"`
	Grade     string       `json:"grade" validate:"required,max=50"`
	Shift     models.Shift `json:"shift" validate:"required"`
	TeacherID *string      `json:"teacher_id"`
}

// Roster export formats.
const (
	RosterFormatCSV = "csv"
	RosterFormatPDF = "pdf"
)

// SectionService handles section use-cases and roster exports.
type SectionService struct {
	repo      sectionRepository
	teachers  teacherReader
	roster    rosterReader
	csv       *export.CSVExporter
	pdf       *export.PDFExporter
	validator *validator.Validate
	logger    *zap.Logger
}

// NewSectionService constructs the section service.
func NewSectionService(repo sectionRepository, teachers teacherReader, roster rosterReader, validate *validator.Validate, logger *zap.Logger) *SectionService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &SectionService{
		repo:      repo,
		teachers:  teachers,
		roster:    roster,
		csv:       export.NewCSVExporter(),
		pdf:       export.NewPDFExporter(),
		validator: validate,
		logger:    logger,
	}
}

// List returns sections and pagination metadata.
func (s *SectionService) List(ctx context.Context, filter models.SectionFilter) ([]models.SectionDetail, *models.Pagination, error) {
	sections, total, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list sections")
	}
	page := filter.Page
	if page < 1 {
		page = 1
	}
	size := filter.PageSize
	if size <= 0 {
		size = 20
	}
	pagination := &models.Pagination{Page: page, PageSize: size, TotalCount: total}
	return sections, pagination, nil
}

// Get returns detailed section information with current occupancy.
func (s *SectionService) Get(ctx context.Context, id string) (*models.SectionDetail, error) {
	section, err := s.repo.FindDetailByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "section not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load section")
	}
	return section, nil
}

// Create registers a new section.
func (s *SectionService) Create(ctx context.Context, req CreateSectionRequest) (*models.Section, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid section payload")
	}
	if !req.Shift.Valid() {
		return nil, appErrors.Clone(appErrors.ErrValidation, "unknown shift")
	}
	if err := s.validateTeacher(ctx, req.TeacherID); err != nil {
		return nil, err
	}
	section := &models.Section{
		Name:      req.Name,
		Grade:     req.Grade,
		Shift:     req.Shift,
		Capacity:  req.Capacity,
		TeacherID: req.TeacherID,
		Active:    true,
	}
	if err := s.repo.Create(ctx, section); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create section")
	}
	s.logger.Info("section created", zap.String("section_id", section.ID), zap.Int("capacity", section.Capacity))
	return section, nil
}

// Update rewrites a section's mutable attributes.
func (s *SectionService) Update(ctx context.Context, id string, req UpdateSectionRequest) (*models.Section, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid section payload")
	}
	if !req.Shift.Valid() {
		return nil, appErrors.Clone(appErrors.ErrValidation, "unknown shift")
	}
	section, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "section not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load section")
	}
	if err := s.validateTeacher(ctx, req.TeacherID); err != nil {
		return nil, err
	}
	section.Name = req.Name
	section.Grade = req.Grade
	section.Shift = req.Shift
	section.TeacherID = req.TeacherID
	if err := s.repo.Update(ctx, section); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update section")
	}
	return section, nil
}

// Deactivate soft-deletes a section.
func (s *SectionService) Deactivate(ctx context.Context, id string) error {
	if _, err := s.repo.FindByID(ctx, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return appErrors.Clone(appErrors.ErrNotFound, "section not found")
		}
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load section")
	}
	if err := s.repo.SetActive(ctx, id, false); err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to deactivate section")
	}
	s.logger.Info("section deactivated", zap.String("section_id", id))
	return nil
}

// ExportRoster renders the section's active enrollments as CSV or PDF.
func (s *SectionService) ExportRoster(ctx context.Context, id, format string) ([]byte, string, string, error) {
	section, err := s.Get(ctx, id)
	if err != nil {
		return nil, "", "", err
	}
	enrollments, err := s.roster.ListActiveBySection(ctx, id)
	if err != nil {
		return nil, "", "", appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load section roster")
	}

	table := export.Table{Headers: []string{"#", "Student", "CPF", "Shift", "Enrolled At"}}
	for i, e := range enrollments {
		cpf := ""
		if e.StudentCPF != nil {
			cpf = *e.StudentCPF
		}
		table.Rows = append(table.Rows, []string{
			strconv.Itoa(i + 1),
			e.StudentName,
			cpf,
			string(e.Shift),
			e.EnrolledAt.Format("2006-01-02"),
		})
	}

	switch format {
	case RosterFormatPDF:
		payload, err := s.pdf.Render(table, fmt.Sprintf("%s - %s", section.Name, section.Grade))
		if err != nil {
			return nil, "", "", appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to render roster pdf")
		}
		return payload, "application/pdf", fmt.Sprintf("roster-%s.pdf", section.ID), nil
	case RosterFormatCSV, "":
		payload, err := s.csv.Render(table)
		if err != nil {
			return nil, "", "", appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to render roster csv")
		}
		return payload, "text/csv", fmt.Sprintf("roster-%s.csv", section.ID), nil
	default:
		return nil, "", "", appErrors.Clone(appErrors.ErrValidation, "unsupported export format")
	}
}

func (s *SectionService) validateTeacher(ctx context.Context, teacherID *string) error {
	if teacherID == nil {
		return nil
	}
	if _, err := s.teachers.FindByID(ctx, *teacherID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return appErrors.Clone(appErrors.ErrNotFound, "teacher not found")
		}
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load teacher")
	}
	return nil
}
