package export

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"changeTracker/internal/models/task"

	"github.com/google/uuid"
)

var (
	ErrMalformedJSON = errors.New("некорректный JSON")
	ErrNotArray      = errors.New("ожидался JSON-массив задач")
	ErrNoValidTasks  = errors.New("ни одна задача не прошла валидацию")
)

// ExportTasks сериализует задачи в отформатированный JSON-массив
func ExportTasks(tasks []*task.Task) (string, error) {
	if tasks == nil {
		tasks = []*task.Task{}
	}
	data, err := json.MarshalIndent(tasks, "", "  ")
	if err != nil {
		return "", fmt.Errorf("сериализация задач: %w", err)
	}
	return string(data), nil
}

// ImportTasks разбирает и нормализует массив задач. Невалидные элементы
// отбрасываются; если массив был непустым, но валидных задач ноль —
// жёсткая ошибка. Ключи принимаются и в camelCase, и в snake_case:
// нормализация происходит один раз здесь, ядро видит только канонический Task.
func ImportTasks(data []byte) ([]*task.Task, error) {
	var top any
	if err := json.Unmarshal(data, &top); err != nil {
		return nil, fmt.Errorf("%w: %s", ErrMalformedJSON, err.Error())
	}

	rawList, ok := top.([]any)
	if !ok {
		return nil, ErrNotArray
	}

	tasks := make([]*task.Task, 0, len(rawList))
	for _, raw := range rawList {
		obj, ok := raw.(map[string]any)
		if !ok {
			continue
		}
		if t := normalizeTask(obj); t != nil {
			tasks = append(tasks, t)
		}
	}

	if len(rawList) > 0 && len(tasks) == 0 {
		return nil, ErrNoValidTasks
	}
	return tasks, nil
}

// normalizeTask приводит сырую запись к каноническому Task;
// nil — элемент невалиден и отбрасывается
func normalizeTask(obj map[string]any) *task.Task {
	title := strings.TrimSpace(pickString(obj, "title"))
	if title == "" {
		return nil
	}

	status := task.Status(pickString(obj, "status"))
	if !task.IsValidStatus(status) {
		return nil
	}

	estimated, ok := pickNumber(obj, "estimated_hours", "estimatedHours")
	if !ok || estimated < 0 {
		return nil
	}
	logged, ok := pickNumber(obj, "logged_hours", "loggedHours")
	if !ok {
		logged = 0
	}
	if logged < 0 {
		return nil
	}

	now := time.Now()
	t := &task.Task{
		ID:             parseID(pickString(obj, "id")),
		Title:          title,
		Status:         status,
		EstimatedHours: estimated,
		LoggedHours:    logged,
		ClientName:     pickString(obj, "client_name", "clientName"),
		CreatedAt:      now,
		UpdatedAt:      now,
		Version:        1,
	}

	if points, ok := pick(obj, "change_points", "changePoints").([]any); ok {
		for _, p := range points {
			if s, ok := p.(string); ok {
				t.ChangePoints = append(t.ChangePoints, s)
			}
		}
	}

	if rate, ok := pickNumber(obj, "hourly_rate", "hourlyRate"); ok && rate >= 0 {
		t.HourlyRate = &rate
	}

	t.RequestedDate = pickDate(obj, "requested_date", "requestedDate")
	t.ClientReviewDate = pickDate(obj, "client_review_date", "clientReviewDate")
	t.DeliveryDate = pickDate(obj, "delivery_date", "deliveryDate")
	t.ConfirmedDate = pickDate(obj, "confirmed_date", "confirmedDate")
	t.ApprovedDate = pickDate(obj, "approved_date", "approvedDate")
	t.StartDate = pickDate(obj, "start_date", "startDate")
	t.CompletedDate = pickDate(obj, "completed_date", "completedDate")
	t.HandoverDate = pickDate(obj, "handover_date", "handoverDate")

	if created := pickDate(obj, "created_at", "createdAt"); created != nil {
		t.CreatedAt = *created
	}
	if updated := pickDate(obj, "updated_at", "updatedAt"); updated != nil {
		t.UpdatedAt = *updated
	}
	if v, ok := pickNumber(obj, "version"); ok && v >= 1 {
		t.Version = int(v)
	}

	t.History = normalizeHistory(pick(obj, "history"))
	t.HourRevisions = normalizeRevisions(pick(obj, "hour_revisions", "hourRevisions"))

	// история никогда не пуста: при отсутствии засевается запись импорта
	if len(t.History) == 0 {
		t.History = []task.HistoryEntry{{
			ID:        uuid.New(),
			Status:    t.Status,
			ChangedAt: t.CreatedAt,
			Note:      "Imported",
		}}
	}

	return t
}

func normalizeHistory(raw any) []task.HistoryEntry {
	list, ok := raw.([]any)
	if !ok {
		return nil
	}
	var out []task.HistoryEntry
	for _, item := range list {
		obj, ok := item.(map[string]any)
		if !ok {
			continue
		}
		status := task.Status(pickString(obj, "status"))
		if !task.IsValidStatus(status) {
			continue
		}
		entry := task.HistoryEntry{
			ID:     parseID(pickString(obj, "id")),
			Status: status,
			Note:   pickString(obj, "note"),
		}
		if at := pickDate(obj, "changed_at", "changedAt"); at != nil {
			entry.ChangedAt = *at
		}
		out = append(out, entry)
	}
	return out
}

func normalizeRevisions(raw any) []task.HourRevision {
	list, ok := raw.([]any)
	if !ok {
		return nil
	}
	var out []task.HourRevision
	for _, item := range list {
		obj, ok := item.(map[string]any)
		if !ok {
			continue
		}
		prev, okPrev := pickNumber(obj, "previous_estimated_hours", "previousEstimatedHours")
		next, okNext := pickNumber(obj, "next_estimated_hours", "nextEstimatedHours")
		if !okPrev || !okNext {
			continue
		}
		rev := task.HourRevision{
			ID:                     parseID(pickString(obj, "id")),
			PreviousEstimatedHours: prev,
			NextEstimatedHours:     next,
			Reason:                 pickString(obj, "reason"),
		}
		if at := pickDate(obj, "changed_at", "changedAt"); at != nil {
			rev.ChangedAt = *at
		}
		out = append(out, rev)
	}
	return out
}

func pick(obj map[string]any, keys ...string) any {
	for _, k := range keys {
		if v, ok := obj[k]; ok {
			return v
		}
	}
	return nil
}

func pickString(obj map[string]any, keys ...string) string {
	if s, ok := pick(obj, keys...).(string); ok {
		return s
	}
	return ""
}

func pickNumber(obj map[string]any, keys ...string) (float64, bool) {
	switch v := pick(obj, keys...).(type) {
	case float64:
		return v, true
	case string:
		var f float64
		if _, err := fmt.Sscanf(v, "%g", &f); err == nil {
			return f, true
		}
	}
	return 0, false
}

func pickDate(obj map[string]any, keys ...string) *time.Time {
	s, ok := pick(obj, keys...).(string)
	if !ok || s == "" {
		return nil
	}
	for _, layout := range []string{time.RFC3339Nano, time.RFC3339, "2006-01-02"} {
		if parsed, err := time.Parse(layout, s); err == nil {
			return &parsed
		}
	}
	return nil
}

func parseID(raw string) uuid.UUID {
	if id, err := uuid.Parse(raw); err == nil {
		return id
	}
	return uuid.New()
}
