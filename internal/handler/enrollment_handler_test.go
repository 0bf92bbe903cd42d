package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/PedroPCAmaral/sistema-gestao-matricula-escolar/internal/middleware"
	"github.com/PedroPCAmaral/sistema-gestao-matricula-escolar/internal/models"
	"github.com/PedroPCAmaral/sistema-gestao-matricula-escolar/internal/service"
	"github.com/PedroPCAmaral/sistema-gestao-matricula-escolar/pkg/jobs"
)

type fakeEnrollmentRepo struct {
	detail      *models.EnrollmentDetail
	detailErr   error
	existsErr   error
	exists      bool
	activeCount int
	registerErr error
	cancelErr   error
}

func (f *fakeEnrollmentRepo) List(ctx context.Context, filter models.EnrollmentFilter) ([]models.EnrollmentDetail, int, error) {
	if f.detail == nil {
		return nil, 0, nil
	}
	return []models.EnrollmentDetail{*f.detail}, 1, nil
}

func (f *fakeEnrollmentRepo) FindDetailByID(ctx context.Context, id string) (*models.EnrollmentDetail, error) {
	if f.detailErr != nil {
		return nil, f.detailErr
	}
	return f.detail, nil
}

func (f *fakeEnrollmentRepo) ExistsActive(ctx context.Context, studentID, sectionID string) (bool, error) {
	return f.exists, f.existsErr
}

func (f *fakeEnrollmentRepo) CountActiveBySection(ctx context.Context, sectionID string) (int, error) {
	return f.activeCount, nil
}

func (f *fakeEnrollmentRepo) Register(ctx context.Context, enrollment *models.Enrollment) error {
	if f.registerErr != nil {
		return f.registerErr
	}
	enrollment.ID = "enr-1"
	return nil
}

func (f *fakeEnrollmentRepo) Cancel(ctx context.Context, id, reason string, at time.Time) error {
	return f.cancelErr
}

type fakeStudentReader struct {
	student *models.Student
	err     error
}

func (f *fakeStudentReader) FindByID(ctx context.Context, id string) (*models.Student, error) {
	return f.student, f.err
}

type fakeSectionReader struct {
	section *models.Section
	err     error
}

func (f *fakeSectionReader) FindByID(ctx context.Context, id string) (*models.Section, error) {
	return f.section, f.err
}

type fakeQueue struct {
	jobs []jobs.Job
}

func (f *fakeQueue) Enqueue(job jobs.Job) error {
	f.jobs = append(f.jobs, job)
	return nil
}

type fakeDepths struct {
	registrations int64
	cancellations int64
}

func (f *fakeDepths) Depth(ctx context.Context, topic string) (int64, error) {
	if strings.Contains(topic, "registrations") {
		return f.registrations, nil
	}
	return f.cancellations, nil
}

func activeDetail() *models.EnrollmentDetail {
	return &models.EnrollmentDetail{
		Enrollment: models.Enrollment{
			ID:         "enr-1",
			StudentID:  "stu-1",
			SectionID:  "sec-1",
			Shift:      models.ShiftMorning,
			Status:     models.EnrollmentStatusActive,
			EnrolledAt: time.Now().UTC(),
		},
		StudentName: "Maria Silva",
		SectionName: "5A",
	}
}

func newEnrollmentHandlerFixture(repo *fakeEnrollmentRepo, queue *fakeQueue) *EnrollmentHandler {
	students := &fakeStudentReader{student: &models.Student{ID: "stu-1", FullName: "Maria Silva"}}
	sections := &fakeSectionReader{section: &models.Section{ID: "sec-1", Name: "5A", Capacity: 30, Active: true}}
	svc := service.NewEnrollmentService(repo, students, sections, queue, &fakeDepths{registrations: 3, cancellations: 1}, nil, nil, nil)
	return NewEnrollmentHandler(svc)
}

func TestEnrollmentHandlerCreate(t *testing.T) {
	gin.SetMode(gin.TestMode)
	queue := &fakeQueue{}
	handler := newEnrollmentHandlerFixture(&fakeEnrollmentRepo{detail: activeDetail()}, queue)

	rec := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(rec)
	body := `{"student_id":"stu-1","section_id":"sec-1","shift":"MORNING"}`
	c.Request = httptest.NewRequest(http.MethodPost, "/enrollments", strings.NewReader(body))
	c.Request.Header.Set("Content-Type", "application/json")
	c.Set(middleware.ContextUserKey, &models.JWTClaims{UserID: "usr-1", Role: models.RoleSecretary})

	handler.Create(c)

	require.Equal(t, http.StatusCreated, rec.Code)
	var envelope struct {
		Data models.EnrollmentDetail `json:"data"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &envelope))
	assert.Equal(t, "enr-1", envelope.Data.ID)
	assert.Len(t, queue.jobs, 1)
}

func TestEnrollmentHandlerCreateInvalidBody(t *testing.T) {
	gin.SetMode(gin.TestMode)
	handler := newEnrollmentHandlerFixture(&fakeEnrollmentRepo{}, &fakeQueue{})

	rec := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(rec)
	c.Request = httptest.NewRequest(http.MethodPost, "/enrollments", strings.NewReader("{not json"))
	c.Request.Header.Set("Content-Type", "application/json")

	handler.Create(c)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestEnrollmentHandlerCreateDuplicateConflict(t *testing.T) {
	gin.SetMode(gin.TestMode)
	handler := newEnrollmentHandlerFixture(&fakeEnrollmentRepo{exists: true}, &fakeQueue{})

	rec := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(rec)
	body := `{"student_id":"stu-1","section_id":"sec-1","shift":"MORNING"}`
	c.Request = httptest.NewRequest(http.MethodPost, "/enrollments", strings.NewReader(body))
	c.Request.Header.Set("Content-Type", "application/json")

	handler.Create(c)

	assert.Equal(t, http.StatusConflict, rec.Code)
}

// newCancelRouter serves DELETE through a real engine: the 204 from
// c.Status is only written out by the engine, never by a bare test context.
func newCancelRouter(handler *EnrollmentHandler) *gin.Engine {
	r := gin.New()
	r.DELETE("/enrollments/:id", handler.Cancel)
	return r
}

func TestEnrollmentHandlerCancel(t *testing.T) {
	gin.SetMode(gin.TestMode)
	queue := &fakeQueue{}
	handler := newEnrollmentHandlerFixture(&fakeEnrollmentRepo{detail: activeDetail()}, queue)
	r := newCancelRouter(handler)

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodDelete, "/enrollments/enr-1", strings.NewReader(`{"reason":"moved away"}`))
	req.Header.Set("Content-Type", "application/json")
	r.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.Empty(t, rec.Body.String())
	require.Len(t, queue.jobs, 1)
	assert.Contains(t, queue.jobs[0].Message, "Reason: moved away")
}

func TestEnrollmentHandlerCancelWithoutBody(t *testing.T) {
	gin.SetMode(gin.TestMode)
	handler := newEnrollmentHandlerFixture(&fakeEnrollmentRepo{detail: activeDetail()}, &fakeQueue{})
	r := newCancelRouter(handler)

	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodDelete, "/enrollments/enr-1", nil))

	assert.Equal(t, http.StatusNoContent, rec.Code)
}

func TestEnrollmentHandlerQueueStatus(t *testing.T) {
	gin.SetMode(gin.TestMode)
	handler := newEnrollmentHandlerFixture(&fakeEnrollmentRepo{}, &fakeQueue{})

	rec := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(rec)
	c.Request = httptest.NewRequest(http.MethodGet, "/enrollments/queue/status", nil)

	handler.QueueStatus(c)

	require.Equal(t, http.StatusOK, rec.Code)
	var envelope struct {
		Data models.QueueStatus `json:"data"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &envelope))
	assert.Equal(t, int64(3), envelope.Data.RegistrationQueueDepth)
	assert.Equal(t, int64(1), envelope.Data.CancellationQueueDepth)
	assert.Equal(t, int64(4), envelope.Data.Total)
}
