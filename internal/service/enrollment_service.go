package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/PedroPCAmaral/sistema-gestao-matricula-escolar/internal/models"
	"github.com/PedroPCAmaral/sistema-gestao-matricula-escolar/internal/repository"
	appErrors "github.com/PedroPCAmaral/sistema-gestao-matricula-escolar/pkg/errors"
	"github.com/PedroPCAmaral/sistema-gestao-matricula-escolar/pkg/jobs"
)

type enrollmentRepository interface {
	List(ctx context.Context, filter models.EnrollmentFilter) ([]models.EnrollmentDetail, int, error)
	FindDetailByID(ctx context.Context, id string) (*models.EnrollmentDetail, error)
	ExistsActive(ctx context.Context, studentID, sectionID string) (bool, error)
	CountActiveBySection(ctx context.Context, sectionID string) (int, error)
	Register(ctx context.Context, enrollment *models.Enrollment) error
	Cancel(ctx context.Context, id, reason string, at time.Time) error
}

type studentReader interface {
	FindByID(ctx context.Context, id string) (*models.Student, error)
}

type sectionReader interface {
	FindByID(ctx context.Context, id string) (*models.Section, error)
}

type notificationQueue interface {
	Enqueue(job jobs.Job) error
}

type queueDepthReader interface {
	Depth(ctx context.Context, topic string) (int64, error)
}

// RegisterEnrollmentRequest describes the enrollment creation payload.
type RegisterEnrollmentRequest struct {
	StudentID    string       `json:"student_id" validate:"required"`
	SectionID    string       `json:"section_id" validate:"required"`
	Shift        models.Shift `json:"shift" validate:"required"`
	RegisteredBy string       `json:"-"`
}

// EnrollmentService is the enrollment lifecycle manager. It owns all writes
// to enrollments and to the student's section linkage.
type EnrollmentService struct {
	repo      enrollmentRepository
	students  studentReader
	sections  sectionReader
	queue     notificationQueue
	depths    queueDepthReader
	metrics   *MetricsService
	validator *validator.Validate
	logger    *zap.Logger
}

// NewEnrollmentService constructs EnrollmentService. queue and depths may be
// nil; notifications are then skipped entirely.
func NewEnrollmentService(repo enrollmentRepository, students studentReader, sections sectionReader, queue notificationQueue, depths queueDepthReader, metrics *MetricsService, validate *validator.Validate, logger *zap.Logger) *EnrollmentService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &EnrollmentService{
		repo:      repo,
		students:  students,
		sections:  sections,
		queue:     queue,
		depths:    depths,
		metrics:   metrics,
		validator: validate,
		logger:    logger,
	}
}

// List returns enrollments with pagination metadata.
func (s *EnrollmentService) List(ctx context.Context, filter models.EnrollmentFilter) ([]models.EnrollmentDetail, *models.Pagination, error) {
	enrollments, total, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list enrollments")
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
	return enrollments, pagination, nil
}

// Get returns one enrollment with context.
func (s *EnrollmentService) Get(ctx context.Context, id string) (*models.EnrollmentDetail, error) {
	detail, err := s.repo.FindDetailByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "enrollment not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load enrollment")
	}
	return detail, nil
}

// Register enrolls a student into a section. The enrollment insert and the
// student's section linkage commit as one transaction; the registration
// notification is published after the commit and its failure never reaches
// the caller.
func (s *EnrollmentService) Register(ctx context.Context, req RegisterEnrollmentRequest) (*models.EnrollmentDetail, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid enrollment payload")
	}
	if !req.Shift.Valid() {
		return nil, appErrors.Clone(appErrors.ErrValidation, "unknown shift")
	}

	if _, err := s.students.FindByID(ctx, req.StudentID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "student not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load student")
	}

	section, err := s.sections.FindByID(ctx, req.SectionID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "section not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load section")
	}
	if !section.Active {
		return nil, appErrors.Clone(appErrors.ErrConflict, "section is inactive")
	}

	exists, err := s.repo.ExistsActive(ctx, req.StudentID, req.SectionID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to validate enrollment")
	}
	if exists {
		return nil, appErrors.Clone(appErrors.ErrConflict, "student already has an active enrollment in this section")
	}

	active, err := s.repo.CountActiveBySection(ctx, req.SectionID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to check section occupancy")
	}
	if active >= section.Capacity {
		return nil, appErrors.Clone(appErrors.ErrConflict, "section has no available seats")
	}

	enrollment := &models.Enrollment{
		StudentID: req.StudentID,
		SectionID: req.SectionID,
		Shift:     req.Shift,
	}
	if req.RegisteredBy != "" {
		enrollment.RegisteredBy = &req.RegisteredBy
	}

	if err := s.repo.Register(ctx, enrollment); err != nil {
		switch {
		case errors.Is(err, repository.ErrSectionFull):
			return nil, appErrors.Clone(appErrors.ErrConflict, "section has no available seats")
		case errors.Is(err, repository.ErrDuplicateEnrollment):
			return nil, appErrors.Clone(appErrors.ErrConflict, "student already has an active enrollment in this section")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to register enrollment")
	}
	s.metrics.RecordRegistration()
	s.logger.Info("enrollment registered",
		zap.String("enrollment_id", enrollment.ID),
		zap.String("student_id", enrollment.StudentID),
		zap.String("section_id", enrollment.SectionID))

	detail, err := s.repo.FindDetailByID(ctx, enrollment.ID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load enrollment detail")
	}

	s.publish(repository.TopicRegistrations, detail.ID,
		fmt.Sprintf("Enrollment ID: %s, Student: %s, Section: %s", detail.ID, detail.StudentName, detail.SectionName))

	return detail, nil
}

// Cancel marks an active enrollment cancelled, detaches the student from the
// section and flags the student inactive. The cancellation notification is
// best effort.
func (s *EnrollmentService) Cancel(ctx context.Context, id, reason string) error {
	detail, err := s.repo.FindDetailByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return appErrors.Clone(appErrors.ErrNotFound, "enrollment not found")
		}
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load enrollment")
	}
	if detail.Status != models.EnrollmentStatusActive {
		return appErrors.Clone(appErrors.ErrConflict, "enrollment is not active")
	}

	if err := s.repo.Cancel(ctx, id, reason, time.Now().UTC()); err != nil {
		switch {
		case errors.Is(err, sql.ErrNoRows):
			return appErrors.Clone(appErrors.ErrNotFound, "enrollment not found")
		case errors.Is(err, repository.ErrEnrollmentNotActive):
			return appErrors.Clone(appErrors.ErrConflict, "enrollment is not active")
		}
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to cancel enrollment")
	}
	s.metrics.RecordCancellation()
	s.logger.Info("enrollment cancelled", zap.String("enrollment_id", id), zap.String("reason", reason))

	s.publish(repository.TopicCancellations, id,
		fmt.Sprintf("Cancellation ID: %s, Student: %s, Reason: %s", id, detail.StudentName, reason))

	return nil
}

// QueueStatus reports current notification queue depths.
func (s *EnrollmentService) QueueStatus(ctx context.Context) (*models.QueueStatus, error) {
	if s.depths == nil {
		return nil, appErrors.Clone(appErrors.ErrQueueUnavailable, "notification queue not configured")
	}
	registrations, err := s.depths.Depth(ctx, repository.TopicRegistrations)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrQueueUnavailable.Code, appErrors.ErrQueueUnavailable.Status, "failed to read registration queue depth")
	}
	cancellations, err := s.depths.Depth(ctx, repository.TopicCancellations)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrQueueUnavailable.Code, appErrors.ErrQueueUnavailable.Status, "failed to read cancellation queue depth")
	}
	s.metrics.SetQueueDepth(repository.TopicRegistrations, registrations)
	s.metrics.SetQueueDepth(repository.TopicCancellations, cancellations)
	return &models.QueueStatus{
		RegistrationQueueDepth: registrations,
		CancellationQueueDepth: cancellations,
		Total:                  registrations + cancellations,
	}, nil
}

// publish hands the notification to the dispatcher. Any failure is logged and
// counted, never returned: the committed transition stands regardless.
func (s *EnrollmentService) publish(topic, id, message string) {
	if s.queue == nil {
		return
	}
	if err := s.queue.Enqueue(jobs.Job{ID: id, Topic: topic, Message: message}); err != nil {
		s.metrics.RecordPublishFailure()
		s.logger.Warn("notification dropped", zap.String("topic", topic), zap.String("enrollment_id", id), zap.Error(err))
	}
}
