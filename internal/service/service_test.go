package service_test

import (
	"context"
	"testing"
	"time"

	"changeTracker/internal/models/meta"
	"changeTracker/internal/models/task"
	"changeTracker/internal/models/user"
	"changeTracker/internal/repository"
	"changeTracker/internal/service"
	"changeTracker/internal/workflow"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

// MockTaskRepository - мок репозитория задач
type MockTaskRepository struct {
	mock.Mock
}

func (m *MockTaskRepository) HealthCheck(ctx context.Context) error {
	args := m.Called(ctx)
	return args.Error(0)
}

func (m *MockTaskRepository) Create(ctx context.Context, t *task.Task) error {
	args := m.Called(ctx, t)
	return args.Error(0)
}

func (m *MockTaskRepository) Update(ctx context.Context, t *task.Task) error {
	args := m.Called(ctx, t)
	return args.Error(0)
}

func (m *MockTaskRepository) GetByID(ctx context.Context, id uuid.UUID) (*task.Task, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*task.Task), args.Error(1)
}

func (m *MockTaskRepository) GetAll(ctx context.Context) ([]*task.Task, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*task.Task), args.Error(1)
}

func (m *MockTaskRepository) Delete(ctx context.Context, id uuid.UUID) error {
	args := m.Called(ctx, id)
	return args.Error(0)
}

func (m *MockTaskRepository) ReplaceAll(ctx context.Context, tasks []*task.Task) error {
	args := m.Called(ctx, tasks)
	return args.Error(0)
}

var _ repository.TaskRepository = (*MockTaskRepository)(nil)

// MockMetaRepository - мок репозитория мета-записей
type MockMetaRepository struct {
	mock.Mock
}

func (m *MockMetaRepository) GetByTaskID(ctx context.Context, taskID uuid.UUID) (*meta.TaskAccessMeta, error) {
	args := m.Called(ctx, taskID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*meta.TaskAccessMeta), args.Error(1)
}

func (m *MockMetaRepository) GetAll(ctx context.Context) (map[uuid.UUID]*meta.TaskAccessMeta, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(map[uuid.UUID]*meta.TaskAccessMeta), args.Error(1)
}

func (m *MockMetaRepository) Upsert(ctx context.Context, rec *meta.TaskAccessMeta) error {
	args := m.Called(ctx, rec)
	return args.Error(0)
}

func (m *MockMetaRepository) Delete(ctx context.Context, taskID uuid.UUID) error {
	args := m.Called(ctx, taskID)
	return args.Error(0)
}

func (m *MockMetaRepository) ReplaceAll(ctx context.Context, metas map[uuid.UUID]*meta.TaskAccessMeta) error {
	args := m.Called(ctx, metas)
	return args.Error(0)
}

var _ repository.MetaRepository = (*MockMetaRepository)(nil)

var testNow = time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)

func newActor(role user.Role) *user.User {
	return &user.User{
		ID:     uuid.New(),
		Name:   "Актор",
		Email:  "actor@example.com",
		Role:   role,
		Status: user.StatusApproved,
	}
}

func newTaskWithMeta(status task.Status, estimate float64, owner *user.User) (*task.Task, *meta.TaskAccessMeta) {
	t := task.New("Форма отчёта", []string{"колонка"}, "ООО Ромашка", nil, estimate, testNow)
	t.Status = status

	m := &meta.TaskAccessMeta{
		TaskID:         t.ID,
		ApprovalStatus: meta.ApprovalPending,
		UpdatedAt:      testNow,
	}
	if owner != nil {
		id := owner.ID
		m.OwnerUserID = &id
	}
	return t, m
}

func requireBusinessCode(t *testing.T, err error, code string) {
	t.Helper()
	var busErr *service.BusinessError
	require.ErrorAs(t, err, &busErr)
	assert.Equal(t, code, busErr.Code)
}

// TestTaskService_CreateTask тестирует создание задачи и стартовой меты
func TestTaskService_CreateTask(t *testing.T) {
	taskRepo := new(MockTaskRepository)
	metaRepo := new(MockMetaRepository)
	svc := service.NewTaskService(taskRepo, metaRepo)
	client := newActor(user.RoleClient)

	taskRepo.On("Create", mock.Anything, mock.AnythingOfType("*task.Task")).Return(nil)
	metaRepo.On("Upsert", mock.Anything, mock.AnythingOfType("*meta.TaskAccessMeta")).Return(nil)

	created, err := svc.CreateTask(context.Background(), client, "  Форма отчёта  ", []string{"колонка"}, "ООО Ромашка", nil, 0)
	require.NoError(t, err)

	assert.Equal(t, "Форма отчёта", created.Title)
	assert.Equal(t, task.StatusRequested, created.Status)
	assert.Equal(t, 1, created.Version)
	require.Len(t, created.History, 1)
	assert.Equal(t, "Request received, estimate pending", created.History[0].Note)

	// мета создана с владельцем-клиентом и статусом pending
	upserted := metaRepo.Calls[0].Arguments.Get(1).(*meta.TaskAccessMeta)
	assert.Equal(t, created.ID, upserted.TaskID)
	require.NotNil(t, upserted.OwnerUserID)
	assert.Equal(t, client.ID, *upserted.OwnerUserID)
	assert.Equal(t, meta.ApprovalPending, upserted.ApprovalStatus)

	taskRepo.AssertExpectations(t)
	metaRepo.AssertExpectations(t)
}

// TestTaskService_CreateTask_Validation тестирует отбраковку входных данных
func TestTaskService_CreateTask_Validation(t *testing.T) {
	svc := service.NewTaskService(new(MockTaskRepository), new(MockMetaRepository))
	client := newActor(user.RoleClient)

	_, err := svc.CreateTask(context.Background(), client, "   ", nil, "", nil, 0)
	requireBusinessCode(t, err, service.CodeValidation)

	_, err = svc.CreateTask(context.Background(), client, "Задача", nil, "", nil, -1)
	requireBusinessCode(t, err, workflow.CodeInvalidHours)
}

// TestTaskService_GetVisibleTasks тестирует фильтрацию по ролям и сверку мет
func TestTaskService_GetVisibleTasks(t *testing.T) {
	client := newActor(user.RoleClient)
	other := newActor(user.RoleClient)

	t1, m1 := newTaskWithMeta(task.StatusRequested, 4, client)
	t2, m2 := newTaskWithMeta(task.StatusRequested, 4, other)

	taskRepo := new(MockTaskRepository)
	metaRepo := new(MockMetaRepository)
	svc := service.NewTaskService(taskRepo, metaRepo)

	taskRepo.On("GetAll", mock.Anything).Return([]*task.Task{t1, t2}, nil)
	metaRepo.On("GetAll", mock.Anything).Return(map[uuid.UUID]*meta.TaskAccessMeta{
		t1.ID: m1,
		t2.ID: m2,
	}, nil)

	visible, metas, err := svc.GetVisibleTasks(context.Background(), client)
	require.NoError(t, err)
	require.Len(t, visible, 1)
	assert.Equal(t, t1.ID, visible[0].ID)
	assert.Len(t, metas, 2)

	// коллекции сошлись — ReplaceAll не вызывался
	metaRepo.AssertNotCalled(t, "ReplaceAll", mock.Anything, mock.Anything)
}

// TestTaskService_GetVisibleTasks_SyncDrift: задача без меты чинится на лету
func TestTaskService_GetVisibleTasks_SyncDrift(t *testing.T) {
	admin := newActor(user.RoleAdmin)
	t1, _ := newTaskWithMeta(task.StatusRequested, 4, nil)

	taskRepo := new(MockTaskRepository)
	metaRepo := new(MockMetaRepository)
	svc := service.NewTaskService(taskRepo, metaRepo)

	taskRepo.On("GetAll", mock.Anything).Return([]*task.Task{t1}, nil)
	metaRepo.On("GetAll", mock.Anything).Return(map[uuid.UUID]*meta.TaskAccessMeta{}, nil)
	metaRepo.On("ReplaceAll", mock.Anything, mock.Anything).Return(nil)

	_, metas, err := svc.GetVisibleTasks(context.Background(), admin)
	require.NoError(t, err)
	require.Contains(t, metas, t1.ID)

	metaRepo.AssertCalled(t, "ReplaceAll", mock.Anything, mock.Anything)
}

// TestTaskService_Transition тестирует полный цикл перехода менеджером
func TestTaskService_Transition(t *testing.T) {
	admin := newActor(user.RoleAdmin)
	t1, m1 := newTaskWithMeta(task.StatusRequested, 8, admin)

	taskRepo := new(MockTaskRepository)
	metaRepo := new(MockMetaRepository)
	svc := service.NewTaskService(taskRepo, metaRepo)

	taskRepo.On("GetByID", mock.Anything, t1.ID).Return(t1, nil)
	metaRepo.On("GetByTaskID", mock.Anything, t1.ID).Return(m1, nil)
	taskRepo.On("Update", mock.Anything, mock.AnythingOfType("*task.Task")).Return(nil)
	metaRepo.On("Upsert", mock.Anything, mock.AnythingOfType("*meta.TaskAccessMeta")).Return(nil)

	statusDate := time.Date(2026, 3, 11, 0, 0, 0, 0, time.UTC)
	updated, err := svc.Transition(context.Background(), admin, t1.ID, workflow.TransitionRequest{
		NextStatus: task.StatusClientReview,
		StatusDate: &statusDate,
		Now:        testNow,
	}, t1.Version)
	require.NoError(t, err)
	assert.Equal(t, task.StatusClientReview, updated.Status)

	// побочный эффект: правка менеджера авто-утверждает задачу
	var upsertedMeta *meta.TaskAccessMeta
	for _, call := range metaRepo.Calls {
		if call.Method == "Upsert" {
			upsertedMeta = call.Arguments.Get(1).(*meta.TaskAccessMeta)
		}
	}
	require.NotNil(t, upsertedMeta)
	assert.Equal(t, meta.ApprovalApproved, upsertedMeta.ApprovalStatus)
	assert.Equal(t, "Workflow updated by manager/super user", upsertedMeta.DecisionNote)
}

// TestTaskService_Transition_ClientDenied: переходы — только менеджерам
func TestTaskService_Transition_ClientDenied(t *testing.T) {
	client := newActor(user.RoleClient)
	t1, m1 := newTaskWithMeta(task.StatusRequested, 8, client)

	taskRepo := new(MockTaskRepository)
	metaRepo := new(MockMetaRepository)
	svc := service.NewTaskService(taskRepo, metaRepo)

	taskRepo.On("GetByID", mock.Anything, t1.ID).Return(t1, nil)
	metaRepo.On("GetByTaskID", mock.Anything, t1.ID).Return(m1, nil)

	statusDate := time.Date(2026, 3, 11, 0, 0, 0, 0, time.UTC)
	_, err := svc.Transition(context.Background(), client, t1.ID, workflow.TransitionRequest{
		NextStatus: task.StatusClientReview,
		StatusDate: &statusDate,
	}, 0)
	requireBusinessCode(t, err, service.CodeAccessDenied)

	taskRepo.AssertNotCalled(t, "Update", mock.Anything, mock.Anything)
}

// TestTaskService_Transition_VersionConflict тестирует оптимистичную проверку
func TestTaskService_Transition_VersionConflict(t *testing.T) {
	admin := newActor(user.RoleAdmin)
	t1, m1 := newTaskWithMeta(task.StatusRequested, 8, admin)
	t1.Version = 3

	taskRepo := new(MockTaskRepository)
	metaRepo := new(MockMetaRepository)
	svc := service.NewTaskService(taskRepo, metaRepo)

	taskRepo.On("GetByID", mock.Anything, t1.ID).Return(t1, nil)
	metaRepo.On("GetByTaskID", mock.Anything, t1.ID).Return(m1, nil)

	statusDate := time.Date(2026, 3, 11, 0, 0, 0, 0, time.UTC)
	// клиент перехода видел версию 2, а в хранилище уже 3
	_, err := svc.Transition(context.Background(), admin, t1.ID, workflow.TransitionRequest{
		NextStatus: task.StatusClientReview,
		StatusDate: &statusDate,
	}, 2)
	requireBusinessCode(t, err, service.CodeVersionConflict)

	// конфликт может прийти и из самого хранилища
	taskRepo.On("Update", mock.Anything, mock.Anything).Return(repository.ErrVersionConflict)
	_, err = svc.Transition(context.Background(), admin, t1.ID, workflow.TransitionRequest{
		NextStatus: task.StatusClientReview,
		StatusDate: &statusDate,
	}, 3)
	requireBusinessCode(t, err, service.CodeVersionConflict)
}

// TestTaskService_Transition_WorkflowError: код правила доходит до вызывающего
func TestTaskService_Transition_WorkflowError(t *testing.T) {
	admin := newActor(user.RoleAdmin)
	t1, m1 := newTaskWithMeta(task.StatusRequested, 8, admin)

	taskRepo := new(MockTaskRepository)
	metaRepo := new(MockMetaRepository)
	svc := service.NewTaskService(taskRepo, metaRepo)

	taskRepo.On("GetByID", mock.Anything, t1.ID).Return(t1, nil)
	metaRepo.On("GetByTaskID", mock.Anything, t1.ID).Return(m1, nil)

	_, err := svc.Transition(context.Background(), admin, t1.ID, workflow.TransitionRequest{
		NextStatus: task.StatusHandover,
	}, 0)
	requireBusinessCode(t, err, workflow.CodeInvalidTransition)
}

// TestTaskService_EditTask_ClientDescriptiveOnly: клиенту доступны
// только описательные поля
func TestTaskService_EditTask_ClientDescriptiveOnly(t *testing.T) {
	client := newActor(user.RoleClient)
	t1, m1 := newTaskWithMeta(task.StatusRequested, 8, client)
	m1.ApprovalStatus = meta.ApprovalApproved

	taskRepo := new(MockTaskRepository)
	metaRepo := new(MockMetaRepository)
	svc := service.NewTaskService(taskRepo, metaRepo)

	taskRepo.On("GetByID", mock.Anything, t1.ID).Return(t1, nil)
	metaRepo.On("GetByTaskID", mock.Anything, t1.ID).Return(m1, nil)
	taskRepo.On("Update", mock.Anything, mock.AnythingOfType("*task.Task")).Return(nil)
	metaRepo.On("Upsert", mock.Anything, mock.AnythingOfType("*meta.TaskAccessMeta")).Return(nil)

	// попытка сменить оценку отклоняется до обращения к движку
	estimate := 40.0
	_, err := svc.EditTask(context.Background(), client, t1.ID, workflow.EditRequest{
		EstimatedHours: &estimate,
	}, 0)
	requireBusinessCode(t, err, service.CodeAccessDenied)

	// описательная правка проходит и сбрасывает утверждение в pending
	title := "Форма отчёта v2"
	updated, err := svc.EditTask(context.Background(), client, t1.ID, workflow.EditRequest{
		Title: &title,
		Now:   testNow,
	}, 0)
	require.NoError(t, err)
	assert.Equal(t, "Форма отчёта v2", updated.Title)

	var upsertedMeta *meta.TaskAccessMeta
	for _, call := range metaRepo.Calls {
		if call.Method == "Upsert" {
			upsertedMeta = call.Arguments.Get(1).(*meta.TaskAccessMeta)
		}
	}
	require.NotNil(t, upsertedMeta)
	assert.Equal(t, meta.ApprovalPending, upsertedMeta.ApprovalStatus)
	assert.Empty(t, upsertedMeta.DecisionNote)
}

// TestTaskService_UpdateHours тестирует учёт часов менеджером
func TestTaskService_UpdateHours(t *testing.T) {
	admin := newActor(user.RoleAdmin)
	client := newActor(user.RoleClient)
	t1, m1 := newTaskWithMeta(task.StatusWorkingOnIt, 20, client)

	taskRepo := new(MockTaskRepository)
	metaRepo := new(MockMetaRepository)
	svc := service.NewTaskService(taskRepo, metaRepo)

	// клиенту запрещено, репозитории даже не дёргаются
	_, err := svc.UpdateHours(context.Background(), client, t1.ID, 24, 8, nil, "", 0)
	requireBusinessCode(t, err, service.CodeAccessDenied)
	taskRepo.AssertNotCalled(t, "GetByID", mock.Anything, mock.Anything)

	taskRepo.On("GetByID", mock.Anything, t1.ID).Return(t1, nil)
	metaRepo.On("GetByTaskID", mock.Anything, t1.ID).Return(m1, nil)
	taskRepo.On("Update", mock.Anything, mock.AnythingOfType("*task.Task")).Return(nil)

	updated, err := svc.UpdateHours(context.Background(), admin, t1.ID, 24, 8, nil, "новый кейс", 0)
	require.NoError(t, err)
	assert.Equal(t, 24.0, updated.EstimatedHours)
	assert.Equal(t, 8.0, updated.LoggedHours)
	require.Len(t, updated.HourRevisions, 1)

	// учёт часов не трогает статус утверждения
	metaRepo.AssertNotCalled(t, "Upsert", mock.Anything, mock.Anything)
}

// TestTaskService_DecideApproval_Reject: отклонение дописывает историю
func TestTaskService_DecideApproval_Reject(t *testing.T) {
	super := newActor(user.RoleSuperUser)
	client := newActor(user.RoleClient)
	t1, m1 := newTaskWithMeta(task.StatusConfirmed, 16, client)

	taskRepo := new(MockTaskRepository)
	metaRepo := new(MockMetaRepository)
	svc := service.NewTaskService(taskRepo, metaRepo)

	taskRepo.On("GetByID", mock.Anything, t1.ID).Return(t1, nil)
	metaRepo.On("GetByTaskID", mock.Anything, t1.ID).Return(m1, nil)
	taskRepo.On("Update", mock.Anything, mock.AnythingOfType("*task.Task")).Return(nil)
	metaRepo.On("Upsert", mock.Anything, mock.AnythingOfType("*meta.TaskAccessMeta")).Return(nil)

	decided, err := svc.DecideApproval(context.Background(), super, t1.ID, false, "не хватает деталей")
	require.NoError(t, err)
	assert.Equal(t, meta.ApprovalRejected, decided.ApprovalStatus)

	// сама задача не откатилась, но история пополнилась записью
	savedTask := taskRepo.Calls[len(taskRepo.Calls)-1].Arguments.Get(1).(*task.Task)
	assert.Equal(t, task.StatusConfirmed, savedTask.Status)
	last := savedTask.History[len(savedTask.History)-1]
	assert.Equal(t, "rejected: не хватает деталей", last.Note)
}

// TestTaskService_DecideApproval_AdminDenied: решение — только высшей роли
func TestTaskService_DecideApproval_AdminDenied(t *testing.T) {
	admin := newActor(user.RoleAdmin)
	t1, m1 := newTaskWithMeta(task.StatusConfirmed, 16, admin)

	taskRepo := new(MockTaskRepository)
	metaRepo := new(MockMetaRepository)
	svc := service.NewTaskService(taskRepo, metaRepo)

	taskRepo.On("GetByID", mock.Anything, t1.ID).Return(t1, nil)
	metaRepo.On("GetByTaskID", mock.Anything, t1.ID).Return(m1, nil)

	_, err := svc.DecideApproval(context.Background(), admin, t1.ID, true, "")
	requireBusinessCode(t, err, service.CodeAccessDenied)
}

// TestTaskService_DeleteTask тестирует удаление задачи вместе с метой
func TestTaskService_DeleteTask(t *testing.T) {
	admin := newActor(user.RoleAdmin)
	t1, m1 := newTaskWithMeta(task.StatusRequested, 4, admin)

	taskRepo := new(MockTaskRepository)
	metaRepo := new(MockMetaRepository)
	svc := service.NewTaskService(taskRepo, metaRepo)

	taskRepo.On("GetByID", mock.Anything, t1.ID).Return(t1, nil)
	metaRepo.On("GetByTaskID", mock.Anything, t1.ID).Return(m1, nil)
	taskRepo.On("Delete", mock.Anything, t1.ID).Return(nil)
	metaRepo.On("Delete", mock.Anything, t1.ID).Return(nil)

	require.NoError(t, svc.DeleteTask(context.Background(), admin, t1.ID))

	taskRepo.AssertExpectations(t)
	metaRepo.AssertExpectations(t)
}

// TestTaskService_DeleteTask_NotFound тестирует отсутствующую задачу
func TestTaskService_DeleteTask_NotFound(t *testing.T) {
	admin := newActor(user.RoleAdmin)
	id := uuid.New()

	taskRepo := new(MockTaskRepository)
	metaRepo := new(MockMetaRepository)
	svc := service.NewTaskService(taskRepo, metaRepo)

	taskRepo.On("GetByID", mock.Anything, id).Return(nil, repository.ErrNotFound)

	err := svc.DeleteTask(context.Background(), admin, id)
	requireBusinessCode(t, err, service.CodeNotFound)
}

// TestTaskService_ImportTasks тестирует замену коллекции менеджером
func TestTaskService_ImportTasks(t *testing.T) {
	admin := newActor(user.RoleAdmin)
	client := newActor(user.RoleClient)

	taskRepo := new(MockTaskRepository)
	metaRepo := new(MockMetaRepository)
	svc := service.NewTaskService(taskRepo, metaRepo)

	payload := []byte(`[{"title": "Импортированная", "status": "Requested", "estimated_hours": 4}]`)

	// клиенту импорт запрещён
	_, err := svc.ImportTasks(context.Background(), client, payload)
	requireBusinessCode(t, err, service.CodeAccessDenied)

	// битый JSON — ошибка импорта
	_, err = svc.ImportTasks(context.Background(), admin, []byte("{broken"))
	requireBusinessCode(t, err, service.CodeImportError)

	taskRepo.On("ReplaceAll", mock.Anything, mock.AnythingOfType("[]*task.Task")).Return(nil)
	metaRepo.On("GetAll", mock.Anything).Return(map[uuid.UUID]*meta.TaskAccessMeta{}, nil)
	metaRepo.On("ReplaceAll", mock.Anything, mock.Anything).Return(nil)

	imported, err := svc.ImportTasks(context.Background(), admin, payload)
	require.NoError(t, err)
	require.Len(t, imported, 1)
	assert.Equal(t, "Импортированная", imported[0].Title)

	// меты сверены с новой коллекцией
	metaRepo.AssertCalled(t, "ReplaceAll", mock.Anything, mock.Anything)
}

// TestTaskService_Stats тестирует агрегаты по видимым задачам
func TestTaskService_Stats(t *testing.T) {
	admin := newActor(user.RoleAdmin)

	t1, m1 := newTaskWithMeta(task.StatusRequested, 8, admin)
	t2, m2 := newTaskWithMeta(task.StatusConfirmed, 16, admin)
	t2.LoggedHours = 4
	rate := 1000.0
	t2.HourlyRate = &rate

	taskRepo := new(MockTaskRepository)
	metaRepo := new(MockMetaRepository)
	svc := service.NewTaskService(taskRepo, metaRepo)

	taskRepo.On("GetAll", mock.Anything).Return([]*task.Task{t1, t2}, nil)
	metaRepo.On("GetAll", mock.Anything).Return(map[uuid.UUID]*meta.TaskAccessMeta{
		t1.ID: m1,
		t2.ID: m2,
	}, nil)

	stats, err := svc.Stats(context.Background(), admin)
	require.NoError(t, err)

	assert.Equal(t, 2, stats.Total)
	assert.Equal(t, 1, stats.ByStatus[task.StatusRequested])
	assert.Equal(t, 1, stats.ByStatus[task.StatusConfirmed])
	assert.Equal(t, 24.0, stats.EstimatedHours)
	assert.Equal(t, 4.0, stats.LoggedHours)
	assert.Equal(t, 16000.0, stats.EstimatedCost)
}
