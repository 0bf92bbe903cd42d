package service

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/PedroPCAmaral/sistema-gestao-matricula-escolar/internal/models"
	appErrors "github.com/PedroPCAmaral/sistema-gestao-matricula-escolar/pkg/errors"
)

type mockStudentRepo struct {
	list          []models.StudentDetail
	listTotal     int
	student       *models.Student
	detail        *models.StudentDetail
	findErr       error
	cpfExists     bool
	cpfErr        error
	created       *models.Student
	updated       *models.Student
	statusID      string
	statusApplied models.StudentStatus
}

func (m *mockStudentRepo) List(ctx context.Context, filter models.StudentFilter) ([]models.StudentDetail, int, error) {
	return m.list, m.listTotal, nil
}

func (m *mockStudentRepo) FindByID(ctx context.Context, id string) (*models.Student, error) {
	if m.findErr != nil {
		return nil, m.findErr
	}
	return m.student, nil
}

func (m *mockStudentRepo) FindDetailByID(ctx context.Context, id string) (*models.StudentDetail, error) {
	if m.findErr != nil {
		return nil, m.findErr
	}
	return m.detail, nil
}

func (m *mockStudentRepo) ExistsByCPF(ctx context.Context, cpf, excludeID string) (bool, error) {
	return m.cpfExists, m.cpfErr
}

func (m *mockStudentRepo) Create(ctx context.Context, student *models.Student) error {
	student.ID = "stu-1"
	m.created = student
	return nil
}

func (m *mockStudentRepo) Update(ctx context.Context, student *models.Student) error {
	m.updated = student
	return nil
}

func (m *mockStudentRepo) UpdateStatus(ctx context.Context, id string, status models.StudentStatus) error {
	m.statusID = id
	m.statusApplied = status
	return nil
}

func validCreateStudent() CreateStudentRequest {
	cpf := "52998224725"
	return CreateStudentRequest{
		FullName:  "Maria Silva",
		CPF:       &cpf,
		Phone:     "11 91234-5678",
		Address:   "Rua das Flores 10",
		BirthDate: time.Date(2015, 3, 12, 0, 0, 0, 0, time.UTC),
	}
}

func TestCreateStudent(t *testing.T) {
	repo := &mockStudentRepo{}
	svc := NewStudentService(repo, nil, nil)

	student, err := svc.Create(context.Background(), validCreateStudent())
	require.NoError(t, err)
	assert.Equal(t, "stu-1", student.ID)
	assert.Equal(t, models.StudentStatusActive, student.Status)
	assert.Nil(t, student.CurrentSectionID)
}

func TestCreateStudentDuplicateCPF(t *testing.T) {
	repo := &mockStudentRepo{cpfExists: true}
	svc := NewStudentService(repo, nil, nil)

	_, err := svc.Create(context.Background(), validCreateStudent())
	require.Error(t, err)
	appErr := appErrors.FromError(err)
	assert.Equal(t, appErrors.ErrConflict.Status, appErr.Status)
	assert.Nil(t, repo.created)
}

func TestCreateStudentInvalidPayload(t *testing.T) {
	svc := NewStudentService(&mockStudentRepo{}, nil, nil)

	req := validCreateStudent()
	req.FullName = "ab"
	_, err := svc.Create(context.Background(), req)
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrValidation.Status, appErrors.FromError(err).Status)
}

func TestUpdateStudentKeepsSectionLinkage(t *testing.T) {
	sectionID := "sec-1"
	shift := models.ShiftMorning
	repo := &mockStudentRepo{student: &models.Student{
		ID:               "stu-1",
		FullName:         "Maria Silva",
		Status:           models.StudentStatusActive,
		CurrentSectionID: &sectionID,
		Shift:            &shift,
	}}
	svc := NewStudentService(repo, nil, nil)

	req := UpdateStudentRequest{
		FullName:  "Maria Souza Silva",
		Phone:     "11 95555-0000",
		Address:   "Rua Nova 22",
		BirthDate: time.Date(2015, 3, 12, 0, 0, 0, 0, time.UTC),
	}
	student, err := svc.Update(context.Background(), "stu-1", req)
	require.NoError(t, err)
	assert.Equal(t, "Maria Souza Silva", student.FullName)
	require.NotNil(t, student.CurrentSectionID)
	assert.Equal(t, "sec-1", *student.CurrentSectionID)
}

func TestUpdateStudentNotFound(t *testing.T) {
	repo := &mockStudentRepo{findErr: sql.ErrNoRows}
	svc := NewStudentService(repo, nil, nil)

	_, err := svc.Update(context.Background(), "missing", UpdateStudentRequest{
		FullName:  "Maria Silva",
		Phone:     "11 91234-5678",
		Address:   "Rua das Flores 10",
		BirthDate: time.Date(2015, 3, 12, 0, 0, 0, 0, time.UTC),
	})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrNotFound.Status, appErrors.FromError(err).Status)
}

func TestCancelStudent(t *testing.T) {
	repo := &mockStudentRepo{student: &models.Student{ID: "stu-1", Status: models.StudentStatusActive}}
	svc := NewStudentService(repo, nil, nil)

	require.NoError(t, svc.Cancel(context.Background(), "stu-1"))
	assert.Equal(t, "stu-1", repo.statusID)
	assert.Equal(t, models.StudentStatusCancelled, repo.statusApplied)
}
