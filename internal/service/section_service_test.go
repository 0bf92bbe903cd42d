package service

import (
	"context"
	"database/sql"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/PedroPCAmaral/sistema-gestao-matricula-escolar/internal/models"
	appErrors "github.com/PedroPCAmaral/sistema-gestao-matricula-escolar/pkg/errors"
)

type mockSectionRepo struct {
	list      []models.SectionDetail
	listTotal int
	section   *models.Section
	detail    *models.SectionDetail
	findErr   error
	created   *models.Section
	updated   *models.Section
	setActive *bool
}

func (m *mockSectionRepo) List(ctx context.Context, filter models.SectionFilter) ([]models.SectionDetail, int, error) {
	return m.list, m.listTotal, nil
}

func (m *mockSectionRepo) FindByID(ctx context.Context, id string) (*models.Section, error) {
	if m.findErr != nil {
		return nil, m.findErr
	}
	return m.section, nil
}

func (m *mockSectionRepo) FindDetailByID(ctx context.Context, id string) (*models.SectionDetail, error) {
	if m.findErr != nil {
		return nil, m.findErr
	}
	return m.detail, nil
}

func (m *mockSectionRepo) Create(ctx context.Context, section *models.Section) error {
	section.ID = "sec-1"
	m.created = section
	return nil
}

func (m *mockSectionRepo) Update(ctx context.Context, section *models.Section) error {
	m.updated = section
	return nil
}

func (m *mockSectionRepo) SetActive(ctx context.Context, id string, active bool) error {
	m.setActive = &active
	return nil
}

type mockTeacherReader struct {
	user *models.User
	err  error
}

func (m *mockTeacherReader) FindByID(ctx context.Context, id string) (*models.User, error) {
	if m.err != nil {
		return nil, m.err
	}
	return m.user, nil
}

type mockRosterReader struct {
	enrollments []models.EnrollmentDetail
	err         error
}

func (m *mockRosterReader) ListActiveBySection(ctx context.Context, sectionID string) ([]models.EnrollmentDetail, error) {
	return m.enrollments, m.err
}

func sectionDetailFixture() *models.SectionDetail {
	return &models.SectionDetail{
		Section: models.Section{
			ID:       "sec-1",
			Name:     "5A",
			Grade:    "5",
			Shift:    models.ShiftMorning,
			Capacity: 30,
			Active:   true,
		},
		EnrolledCount: 2,
	}
}

func TestCreateSection(t *testing.T) {
	repo := &mockSectionRepo{}
	svc := NewSectionService(repo, &mockTeacherReader{}, &mockRosterReader{}, nil, nil)

	section, err := svc.Create(context.Background(), CreateSectionRequest{
		Name:     "5A",
		Grade:    "5",
		Shift:    models.ShiftMorning,
		Capacity: 30,
	})
	require.NoError(t, err)
	assert.Equal(t, "sec-1", section.ID)
	assert.True(t, section.Active)
	assert.Equal(t, 30, section.Capacity)
}

func TestCreateSectionCapacityBounds(t *testing.T) {
	svc := NewSectionService(&mockSectionRepo{}, &mockTeacherReader{}, &mockRosterReader{}, nil, nil)

	for _, capacity := range []int{0, -5, 101} {
		_, err := svc.Create(context.Background(), CreateSectionRequest{
			Name:     "5A",
			Grade:    "5",
			Shift:    models.ShiftMorning,
			Capacity: capacity,
		})
		require.Error(t, err, "capacity %d must be rejected", capacity)
		assert.Equal(t, appErrors.ErrValidation.Status, appErrors.FromError(err).Status)
	}
}

func TestCreateSectionUnknownTeacher(t *testing.T) {
	teacherID := "usr-9"
	svc := NewSectionService(&mockSectionRepo{}, &mockTeacherReader{err: sql.ErrNoRows}, &mockRosterReader{}, nil, nil)

	_, err := svc.Create(context.Background(), CreateSectionRequest{
		Name:      "5A",
		Grade:     "5",
		Shift:     models.ShiftMorning,
		Capacity:  30,
		TeacherID: &teacherID,
	})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrNotFound.Status, appErrors.FromError(err).Status)
}

func TestUpdateSectionCapacityImmutable(t *testing.T) {
	repo := &mockSectionRepo{section: &models.Section{
		ID:       "sec-1",
		Name:     "5A",
		Grade:    "5",
		Shift:    models.ShiftMorning,
		Capacity: 30,
		Active:   true,
	}}
	svc := NewSectionService(repo, &mockTeacherReader{}, &mockRosterReader{}, nil, nil)

	section, err := svc.Update(context.Background(), "sec-1", UpdateSectionRequest{
		Name:  "5B",
		Grade: "5",
		Shift: models.ShiftAfternoon,
	})
	require.NoError(t, err)
	assert.Equal(t, "5B", section.Name)
	assert.Equal(t, models.ShiftAfternoon, section.Shift)
	assert.Equal(t, 30, section.Capacity)
}

func TestDeactivateSection(t *testing.T) {
	repo := &mockSectionRepo{section: &models.Section{ID: "sec-1", Active: true}}
	svc := NewSectionService(repo, &mockTeacherReader{}, &mockRosterReader{}, nil, nil)

	require.NoError(t, svc.Deactivate(context.Background(), "sec-1"))
	require.NotNil(t, repo.setActive)
	assert.False(t, *repo.setActive)
}

func TestExportRosterCSV(t *testing.T) {
	cpf := "52998224725"
	roster := &mockRosterReader{enrollments: []models.EnrollmentDetail{
		{
			Enrollment: models.Enrollment{
				ID:         "enr-1",
				Shift:      models.ShiftMorning,
				Status:     models.EnrollmentStatusActive,
				EnrolledAt: time.Date(2026, 2, 10, 9, 0, 0, 0, time.UTC),
			},
			StudentName: "Maria Silva",
			StudentCPF:  &cpf,
		},
	}}
	repo := &mockSectionRepo{detail: sectionDetailFixture()}
	svc := NewSectionService(repo, &mockTeacherReader{}, roster, nil, nil)

	payload, contentType, filename, err := svc.ExportRoster(context.Background(), "sec-1", "csv")
	require.NoError(t, err)
	assert.Equal(t, "text/csv", contentType)
	assert.Equal(t, "roster-sec-1.csv", filename)

	body := string(payload)
	assert.True(t, strings.HasPrefix(body, "#,Student,CPF,Shift,Enrolled At"))
	assert.Contains(t, body, "Maria Silva")
	assert.Contains(t, body, "2026-02-10")
}

func TestExportRosterPDF(t *testing.T) {
	repo := &mockSectionRepo{detail: sectionDetailFixture()}
	svc := NewSectionService(repo, &mockTeacherReader{}, &mockRosterReader{}, nil, nil)

	payload, contentType, filename, err := svc.ExportRoster(context.Background(), "sec-1", "pdf")
	require.NoError(t, err)
	assert.Equal(t, "application/pdf", contentType)
	assert.Equal(t, "roster-sec-1.pdf", filename)
	assert.True(t, strings.HasPrefix(string(payload), "%PDF"))
}

func TestExportRosterUnknownFormat(t *testing.T) {
	repo := &mockSectionRepo{detail: sectionDetailFixture()}
	svc := NewSectionService(repo, &mockTeacherReader{}, &mockRosterReader{}, nil, nil)

	_, _, _, err := svc.ExportRoster(context.Background(), "sec-1", "xlsx")
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrValidation.Status, appErrors.FromError(err).Status)
}

func TestExportRosterSectionNotFound(t *testing.T) {
	repo := &mockSectionRepo{findErr: sql.ErrNoRows}
	svc := NewSectionService(repo, &mockTeacherReader{}, &mockRosterReader{}, nil, nil)

	_, _, _, err := svc.ExportRoster(context.Background(), "missing", "csv")
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrNotFound.Status, appErrors.FromError(err).Status)
}
