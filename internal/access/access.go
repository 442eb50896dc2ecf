package access

import (
	"errors"
	"time"

	"changeTracker/internal/models/meta"
	"changeTracker/internal/models/task"
	"changeTracker/internal/models/user"

	"github.com/google/uuid"
)

// ErrAccessDenied — у актора нет роли или владения для операции
var ErrAccessDenied = errors.New("доступ запрещён")

// системные заметки решений, проставляемые без явного действия актора
const (
	noteCreatedByManager = "Task created by manager"
	noteUpdatedByManager = "Workflow updated by manager/super user"
)

// VisibleTasks — менеджеры видят все задачи, клиент только свои
// (по owner_user_id в мета-записи). Чистая проекция, без побочных эффектов.
func VisibleTasks(tasks []*task.Task, metas map[uuid.UUID]*meta.TaskAccessMeta, u *user.User) []*task.Task {
	if u.IsManager() {
		out := make([]*task.Task, len(tasks))
		copy(out, tasks)
		return out
	}

	out := []*task.Task{}
	for _, t := range tasks {
		m, ok := metas[t.ID]
		if !ok || m.OwnerUserID == nil {
			continue
		}
		if *m.OwnerUserID == u.ID {
			out = append(out, t)
		}
	}
	return out
}

// CanViewTask — видимость одной задачи по тем же правилам
func CanViewTask(u *user.User, m *meta.TaskAccessMeta) bool {
	if u.IsManager() {
		return true
	}
	return m != nil && m.OwnerUserID != nil && *m.OwnerUserID == u.ID
}

// CanEditTask — редактировать может менеджер или владелец
func CanEditTask(u *user.User, m *meta.TaskAccessMeta) bool {
	return CanViewTask(u, m)
}

// CanDeleteTask — удаление только менеджеру или владельцу
func CanDeleteTask(u *user.User, m *meta.TaskAccessMeta) bool {
	if u.IsManager() {
		return true
	}
	return m != nil && m.OwnerUserID != nil && *m.OwnerUserID == u.ID
}

// MetaForNewTask — владелец равен создателю; задача менеджера
// утверждена сразу, задача клиента ждёт решения
func MetaForNewTask(taskID uuid.UUID, creator *user.User, now time.Time) *meta.TaskAccessMeta {
	m := &meta.TaskAccessMeta{
		TaskID:         taskID,
		ApprovalStatus: meta.ApprovalPending,
		UpdatedAt:      now,
	}
	if creator != nil {
		ownerID := creator.ID
		m.OwnerUserID = &ownerID
		if creator.IsManager() {
			m.ApprovalStatus = meta.ApprovalApproved
			m.DecisionNote = noteCreatedByManager
			m.DecidedByUserID = &ownerID
			decidedAt := now
			m.DecidedAt = &decidedAt
		}
	}
	return m
}

// DecideApproval — явное решение по задаче; доступно только высшей роли.
// Отклонение не откатывает саму задачу, вызывающий добавляет запись истории.
func DecideApproval(m *meta.TaskAccessMeta, actor *user.User, approve bool, note string, now time.Time) (*meta.TaskAccessMeta, error) {
	if !actor.IsSuperUser() {
		return nil, ErrAccessDenied
	}

	next := m.Clone()
	if approve {
		next.ApprovalStatus = meta.ApprovalApproved
	} else {
		next.ApprovalStatus = meta.ApprovalRejected
	}
	next.DecisionNote = note
	actorID := actor.ID
	next.DecidedByUserID = &actorID
	decidedAt := now
	next.DecidedAt = &decidedAt
	next.UpdatedAt = now

	return next, nil
}

// ApplyMutationSideEffect — побочный эффект любой правки/перехода задачи:
// непривилегированный актор сбрасывает утверждение в pending,
// менеджер авто-утверждает тем же шагом (политика применяется единообразно)
func ApplyMutationSideEffect(m *meta.TaskAccessMeta, actor *user.User, now time.Time) *meta.TaskAccessMeta {
	next := m.Clone()
	if actor.IsManager() {
		next.ApprovalStatus = meta.ApprovalApproved
		next.DecisionNote = noteUpdatedByManager
		actorID := actor.ID
		next.DecidedByUserID = &actorID
		decidedAt := now
		next.DecidedAt = &decidedAt
	} else {
		next.ApprovalStatus = meta.ApprovalPending
		next.DecisionNote = ""
		next.DecidedByUserID = nil
		next.DecidedAt = nil
	}
	next.UpdatedAt = now
	return next
}

// SyncResult — результат сверки задач и мета-записей
type SyncResult struct {
	Changed bool
	Next    map[uuid.UUID]*meta.TaskAccessMeta
}

// EnsureTaskMetaSync — сверка двух отдельно хранимых коллекций: для задачи
// без меты синтезируется новая (владелец — текущий пользователь), мета без
// задачи удаляется. Идемпотентна: повторный прогон даёт Changed=false.
// Запускается после каждой загрузки, импорта и логина.
func EnsureTaskMetaSync(tasks []*task.Task, current *user.User, metas map[uuid.UUID]*meta.TaskAccessMeta, now time.Time) SyncResult {
	next := make(map[uuid.UUID]*meta.TaskAccessMeta, len(metas))
	for id, m := range metas {
		next[id] = m
	}

	changed := false
	known := make(map[uuid.UUID]bool, len(tasks))

	for _, t := range tasks {
		known[t.ID] = true
		if _, ok := next[t.ID]; !ok {
			next[t.ID] = MetaForNewTask(t.ID, current, now)
			changed = true
		}
	}

	// осиротевшие меты вычищаются
	for id := range metas {
		if !known[id] {
			delete(next, id)
			changed = true
		}
	}

	return SyncResult{Changed: changed, Next: next}
}
