package handlers

import (
	"encoding/json"
	"io"
	"net/http"
	"time"

	"changeTracker/internal/handlers/dto"
	"changeTracker/internal/logger"
	"changeTracker/internal/middleware"
	"changeTracker/internal/models/task"
	"changeTracker/internal/workflow"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

const maxImportBody = 10 << 20

type TaskHandler struct {
	TaskService TaskService
}

func NewTaskHandler(taskService TaskService) TaskHandler {
	return TaskHandler{
		TaskService: taskService,
	}
}

func (s *TaskHandler) HealthCheck(w http.ResponseWriter, r *http.Request) {
	logger.HttpRequestInfo(r, "HTTP_IN:")

	if err := s.TaskService.HealthCheck(r.Context()); err != nil {
		logger.Error("HTTP: Хранилище недоступно", err)
		responseWithError(w, http.StatusServiceUnavailable, "хранилище недоступно")
		return
	}

	healthCheck(w)
}

func (s *TaskHandler) GetTasks(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	logger.HttpRequestInfo(r, "HTTP_IN:")

	actor := middleware.GetCurrentUser(r.Context())

	tasks, metas, err := s.TaskService.GetVisibleTasks(r.Context(), actor)
	if err != nil {
		if handleBusinessError(w, err, "не удалось получить задачи") {
			return
		}
		logger.Error("HTTP: Ошибка Service", err)
		responseWithError(w, http.StatusInternalServerError, err.Error())
		return
	}

	logger.Info("HTTP_OUT: Задачи получены",
		zap.Int("count", len(tasks)),
		zap.Duration("ms", time.Since(start)),
		zap.Int("http_status", http.StatusOK))

	responseWithJSON(w, http.StatusOK, toPayload("tasks", dto.FromTaskList(tasks, metas)))
}

func (s *TaskHandler) PostTask(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	logger.HttpRequestInfo(r, "HTTP_IN:")

	if !checkContentType(r, "application/json") {
		responseWithError(w, http.StatusUnsupportedMediaType, "ожидается Content-Type application/json")
		return
	}

	var req dto.CreateTaskRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		logger.Warn("HTTP: Ошибка декодирования тела запроса",
			zap.Error(err),
			zap.String("client_ip", r.RemoteAddr))
		responseWithError(w, http.StatusBadRequest, "не удалось разобрать тело запроса: "+err.Error())
		return
	}

	actor := middleware.GetCurrentUser(r.Context())

	created, err := s.TaskService.CreateTask(r.Context(), actor,
		req.Title, req.ChangePoints, req.ClientName,
		dto.ParseDate(req.RequestedDate), req.EstimatedHours)
	if err != nil {
		if handleBusinessError(w, err, "не удалось создать задачу") {
			return
		}
		logger.Error("HTTP: Ошибка Service", err)
		responseWithError(w, http.StatusInternalServerError, err.Error())
		return
	}

	logger.Info("HTTP_OUT: Задача создана",
		zap.String("task_id", created.ID.String()),
		zap.Duration("ms", time.Since(start)),
		zap.Int("http_status", http.StatusCreated))

	responseWithJSON(w, http.StatusCreated, toPayload("task", created))
}

func (s *TaskHandler) GetTaskByID(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	logger.HttpRequestInfo(r, "HTTP_IN:")

	id, ok := parseTaskID(w, r)
	if !ok {
		return
	}

	actor := middleware.GetCurrentUser(r.Context())

	t, m, err := s.TaskService.GetTaskByID(r.Context(), actor, id)
	if err != nil {
		if handleBusinessError(w, err, "не удалось получить задачу") {
			return
		}
		logger.Error("HTTP: Ошибка Service", err)
		responseWithError(w, http.StatusInternalServerError, err.Error())
		return
	}

	logger.Info("HTTP_OUT: Задача получена",
		zap.String("task_id", id.String()),
		zap.Duration("ms", time.Since(start)),
		zap.Int("http_status", http.StatusOK))

	responseWithJSON(w, http.StatusOK, toPayload("task", dto.FromTask(t, m)))
}

func (s *TaskHandler) PutTask(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	logger.HttpRequestInfo(r, "HTTP_IN:")

	id, ok := parseTaskID(w, r)
	if !ok {
		return
	}

	if !checkContentType(r, "application/json") {
		responseWithError(w, http.StatusUnsupportedMediaType, "ожидается Content-Type application/json")
		return
	}

	var req dto.EditTaskRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		logger.Warn("HTTP: Ошибка декодирования тела запроса",
			zap.Error(err),
			zap.String("client_ip", r.RemoteAddr))
		responseWithError(w, http.StatusBadRequest, "не удалось разобрать тело запроса: "+err.Error())
		return
	}

	edit := workflow.EditRequest{
		Title:          req.Title,
		ChangePoints:   req.ChangePoints,
		ClientName:     req.ClientName,
		RequestedDate:  dto.ParseDate(req.RequestedDate),
		DeliveryDate:   dto.ParseDate(req.DeliveryDate),
		EstimatedHours: req.EstimatedHours,
		LoggedHours:    req.LoggedHours,
		HourlyRate:     req.HourlyRate,
		Note:           req.Note,
		Now:            time.Now(),
	}
	if req.Status != nil {
		st := task.Status(*req.Status)
		if !task.IsValidStatus(st) {
			responseWithError(w, http.StatusBadRequest, "неизвестный статус: "+*req.Status)
			return
		}
		edit.Status = &st
	}
	if len(req.MilestoneDates) > 0 {
		edit.MilestoneDates = make(map[task.Status]*time.Time, len(req.MilestoneDates))
		for name, raw := range req.MilestoneDates {
			st := task.Status(name)
			if !task.IsValidStatus(st) {
				responseWithError(w, http.StatusBadRequest, "неизвестный статус в milestone_dates: "+name)
				return
			}
			edit.MilestoneDates[st] = dto.ParseDate(&raw)
		}
	}

	actor := middleware.GetCurrentUser(r.Context())

	updated, err := s.TaskService.EditTask(r.Context(), actor, id, edit, req.Version)
	if err != nil {
		if handleBusinessError(w, err, "не удалось обновить задачу") {
			return
		}
		logger.Error("HTTP: Ошибка Service", err)
		responseWithError(w, http.StatusInternalServerError, err.Error())
		return
	}

	logger.Info("HTTP_OUT: Задача обновлена",
		zap.String("task_id", id.String()),
		zap.Duration("ms", time.Since(start)),
		zap.Int("http_status", http.StatusOK))

	responseWithJSON(w, http.StatusOK, toPayload("task", updated))
}

func (s *TaskHandler) PostTransition(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	logger.HttpRequestInfo(r, "HTTP_IN:")

	id, ok := parseTaskID(w, r)
	if !ok {
		return
	}

	var req dto.TransitionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		logger.Warn("HTTP: Ошибка декодирования тела запроса",
			zap.Error(err),
			zap.String("client_ip", r.RemoteAddr))
		responseWithError(w, http.StatusBadRequest, "не удалось разобрать тело запроса: "+err.Error())
		return
	}

	actor := middleware.GetCurrentUser(r.Context())

	updated, err := s.TaskService.Transition(r.Context(), actor, id, workflow.TransitionRequest{
		NextStatus:             task.Status(req.NextStatus),
		Note:                   req.Note,
		StatusDate:             dto.ParseDate(req.StatusDate),
		EstimatedHoursOverride: req.EstimatedHours,
		DeliveryDateOverride:   dto.ParseDate(req.DeliveryDate),
		Now:                    time.Now(),
	}, req.Version)
	if err != nil {
		if handleBusinessError(w, err, "не удалось сменить статус задачи") {
			return
		}
		logger.Error("HTTP: Ошибка Service", err)
		responseWithError(w, http.StatusInternalServerError, err.Error())
		return
	}

	logger.Info("HTTP_OUT: Статус задачи изменён",
		zap.String("task_id", id.String()),
		zap.String("status", string(updated.Status)),
		zap.Duration("ms", time.Since(start)),
		zap.Int("http_status", http.StatusOK))

	responseWithJSON(w, http.StatusOK, toPayload("task", updated))
}

func (s *TaskHandler) PutHours(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	logger.HttpRequestInfo(r, "HTTP_IN:")

	id, ok := parseTaskID(w, r)
	if !ok {
		return
	}

	var req dto.HoursRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		logger.Warn("HTTP: Ошибка декодирования тела запроса",
			zap.Error(err),
			zap.String("client_ip", r.RemoteAddr))
		responseWithError(w, http.StatusBadRequest, "не удалось разобрать тело запроса: "+err.Error())
		return
	}

	actor := middleware.GetCurrentUser(r.Context())

	updated, err := s.TaskService.UpdateHours(r.Context(), actor, id,
		req.EstimatedHours, req.LoggedHours, req.HourlyRate, req.Reason, req.Version)
	if err != nil {
		if handleBusinessError(w, err, "не удалось обновить часы") {
			return
		}
		logger.Error("HTTP: Ошибка Service", err)
		responseWithError(w, http.StatusInternalServerError, err.Error())
		return
	}

	logger.Info("HTTP_OUT: Часы задачи обновлены",
		zap.String("task_id", id.String()),
		zap.Duration("ms", time.Since(start)),
		zap.Int("http_status", http.StatusOK))

	responseWithJSON(w, http.StatusOK, toPayload("task", updated))
}

func (s *TaskHandler) PostApprovalDecision(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	logger.HttpRequestInfo(r, "HTTP_IN:")

	id, ok := parseTaskID(w, r)
	if !ok {
		return
	}

	var req dto.ApprovalDecisionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		logger.Warn("HTTP: Ошибка декодирования тела запроса",
			zap.Error(err),
			zap.String("client_ip", r.RemoteAddr))
		responseWithError(w, http.StatusBadRequest, "не удалось разобрать тело запроса: "+err.Error())
		return
	}

	actor := middleware.GetCurrentUser(r.Context())

	decided, err := s.TaskService.DecideApproval(r.Context(), actor, id, req.Approve, req.Note)
	if err != nil {
		if handleBusinessError(w, err, "не удалось вынести решение") {
			return
		}
		logger.Error("HTTP: Ошибка Service", err)
		responseWithError(w, http.StatusInternalServerError, err.Error())
		return
	}

	logger.Info("HTTP_OUT: Решение по задаче вынесено",
		zap.String("task_id", id.String()),
		zap.String("approval_status", string(decided.ApprovalStatus)),
		zap.Duration("ms", time.Since(start)),
		zap.Int("http_status", http.StatusOK))

	responseWithJSON(w, http.StatusOK, toPayload("meta", decided))
}

func (s *TaskHandler) DeleteTask(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	logger.HttpRequestInfo(r, "HTTP_IN:")

	id, ok := parseTaskID(w, r)
	if !ok {
		return
	}

	actor := middleware.GetCurrentUser(r.Context())

	if err := s.TaskService.DeleteTask(r.Context(), actor, id); err != nil {
		if handleBusinessError(w, err, "не удалось удалить задачу") {
			return
		}
		logger.Error("HTTP: Ошибка Service", err)
		responseWithError(w, http.StatusInternalServerError, err.Error())
		return
	}

	logger.Info("HTTP_OUT: Задача удалена",
		zap.String("task_id", id.String()),
		zap.Duration("ms", time.Since(start)),
		zap.Int("http_status", http.StatusNoContent))

	w.WriteHeader(http.StatusNoContent)
}

func (s *TaskHandler) ExportTasks(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	logger.HttpRequestInfo(r, "HTTP_IN:")

	actor := middleware.GetCurrentUser(r.Context())

	data, err := s.TaskService.ExportTasks(r.Context(), actor)
	if err != nil {
		if handleBusinessError(w, err, "не удалось выгрузить задачи") {
			return
		}
		logger.Error("HTTP: Ошибка Service", err)
		responseWithError(w, http.StatusInternalServerError, err.Error())
		return
	}

	logger.Info("HTTP_OUT: Выгрузка задач выполнена",
		zap.Int("bytes", len(data)),
		zap.Duration("ms", time.Since(start)),
		zap.Int("http_status", http.StatusOK))

	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Content-Disposition", `attachment; filename="tasks.json"`)
	w.WriteHeader(http.StatusOK)
	w.Write([]byte(data))
}

func (s *TaskHandler) ImportTasks(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	logger.HttpRequestInfo(r, "HTTP_IN:")

	body, err := io.ReadAll(io.LimitReader(r.Body, maxImportBody))
	if err != nil {
		logger.Warn("HTTP: Ошибка чтения тела запроса",
			zap.Error(err),
			zap.String("client_ip", r.RemoteAddr))
		responseWithError(w, http.StatusBadRequest, "не удалось прочитать тело запроса")
		return
	}

	actor := middleware.GetCurrentUser(r.Context())

	imported, err := s.TaskService.ImportTasks(r.Context(), actor, body)
	if err != nil {
		if handleBusinessError(w, err, "не удалось импортировать задачи") {
			return
		}
		logger.Error("HTTP: Ошибка Service", err)
		responseWithError(w, http.StatusInternalServerError, err.Error())
		return
	}

	logger.Info("HTTP_OUT: Импорт задач выполнен",
		zap.Int("count", len(imported)),
		zap.Duration("ms", time.Since(start)),
		zap.Int("http_status", http.StatusOK))

	responseWithJSON(w, http.StatusOK,
		toPayload("imported", len(imported)),
		toPayload("tasks", imported))
}

func (s *TaskHandler) GetStats(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	logger.HttpRequestInfo(r, "HTTP_IN:")

	actor := middleware.GetCurrentUser(r.Context())

	stats, err := s.TaskService.Stats(r.Context(), actor)
	if err != nil {
		if handleBusinessError(w, err, "не удалось собрать статистику") {
			return
		}
		logger.Error("HTTP: Ошибка Service", err)
		responseWithError(w, http.StatusInternalServerError, err.Error())
		return
	}

	logger.Info("HTTP_OUT: Статистика собрана",
		zap.Duration("ms", time.Since(start)),
		zap.Int("http_status", http.StatusOK))

	responseWithJSON(w, http.StatusOK, toPayload("stats", stats))
}

func parseTaskID(w http.ResponseWriter, r *http.Request) (uuid.UUID, bool) {
	raw := chi.URLParam(r, "id")

	id, err := uuid.Parse(raw)
	if err != nil {
		logger.Warn("HTTP: Неверный идентификатор задачи",
			zap.String("id", raw),
			zap.String("client_ip", r.RemoteAddr))
		responseWithError(w, http.StatusBadRequest, "неверный идентификатор задачи")
		return uuid.Nil, false
	}
	return id, true
}
