package export_test

import (
	"encoding/json"
	"testing"
	"time"

	"changeTracker/internal/export"
	"changeTracker/internal/models/task"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var testNow = time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)

// TestExportTasks тестирует сериализацию в JSON-массив
func TestExportTasks(t *testing.T) {
	t1 := task.New("Форма отчёта", []string{"колонка"}, "ООО Ромашка", nil, 8, testNow)

	out, err := export.ExportTasks([]*task.Task{t1})
	require.NoError(t, err)

	var decoded []map[string]any
	require.NoError(t, json.Unmarshal([]byte(out), &decoded))
	require.Len(t, decoded, 1)
	assert.Equal(t, "Форма отчёта", decoded[0]["title"])
	assert.Equal(t, "Requested", decoded[0]["status"])
}

// TestExportTasks_Empty: пустой и nil-срез дают пустой массив, не null
func TestExportTasks_Empty(t *testing.T) {
	out, err := export.ExportTasks(nil)
	require.NoError(t, err)
	assert.Equal(t, "[]", out)

	out, err = export.ExportTasks([]*task.Task{})
	require.NoError(t, err)
	assert.Equal(t, "[]", out)
}

// TestImportTasks_RoundTrip: выгрузка и обратная загрузка сохраняют данные
func TestImportTasks_RoundTrip(t *testing.T) {
	orig := task.New("Форма отчёта", []string{"колонка", "фильтр"}, "ООО Ромашка", nil, 16, testNow)
	orig.Status = task.StatusConfirmed
	delivery := time.Date(2026, 4, 1, 0, 0, 0, 0, time.UTC)
	orig.DeliveryDate = &delivery
	rate := 3500.0
	orig.HourlyRate = &rate

	out, err := export.ExportTasks([]*task.Task{orig})
	require.NoError(t, err)

	imported, err := export.ImportTasks([]byte(out))
	require.NoError(t, err)
	require.Len(t, imported, 1)

	got := imported[0]
	assert.Equal(t, orig.ID, got.ID)
	assert.Equal(t, orig.Title, got.Title)
	assert.Equal(t, orig.ChangePoints, got.ChangePoints)
	assert.Equal(t, task.StatusConfirmed, got.Status)
	assert.Equal(t, 16.0, got.EstimatedHours)
	require.NotNil(t, got.DeliveryDate)
	assert.True(t, got.DeliveryDate.Equal(delivery))
	require.NotNil(t, got.HourlyRate)
	assert.Equal(t, 3500.0, *got.HourlyRate)
	// история исходной задачи сохранена, не засеяна заново
	require.Len(t, got.History, 1)
	assert.Equal(t, "Request received", got.History[0].Note)
}

// TestImportTasks_MalformedJSON тестирует жёсткую ошибку на битом JSON
func TestImportTasks_MalformedJSON(t *testing.T) {
	_, err := export.ImportTasks([]byte("{not json"))
	assert.ErrorIs(t, err, export.ErrMalformedJSON)
}

// TestImportTasks_NotArray: JSON-объект вместо массива отклоняется
func TestImportTasks_NotArray(t *testing.T) {
	_, err := export.ImportTasks([]byte(`{"title": "одна задача"}`))
	assert.ErrorIs(t, err, export.ErrNotArray)
}

// TestImportTasks_EmptyArray: пустой массив валиден
func TestImportTasks_EmptyArray(t *testing.T) {
	tasks, err := export.ImportTasks([]byte("[]"))
	require.NoError(t, err)
	assert.Empty(t, tasks)
}

// TestImportTasks_AllInvalid: непустой массив без единой валидной задачи —
// жёсткая ошибка
func TestImportTasks_AllInvalid(t *testing.T) {
	payload := `[
		{"title": "", "status": "Requested", "estimated_hours": 1},
		{"title": "Без статуса", "status": "Неизвестный", "estimated_hours": 1},
		{"title": "Отрицательные часы", "status": "Requested", "estimated_hours": -5},
		"не объект"
	]`

	_, err := export.ImportTasks([]byte(payload))
	assert.ErrorIs(t, err, export.ErrNoValidTasks)
}

// TestImportTasks_SkipsInvalid: невалидные элементы отбрасываются,
// валидные проходят
func TestImportTasks_SkipsInvalid(t *testing.T) {
	payload := `[
		{"title": "Валидная", "status": "Requested", "estimated_hours": 4},
		{"title": "", "status": "Requested", "estimated_hours": 1}
	]`

	tasks, err := export.ImportTasks([]byte(payload))
	require.NoError(t, err)
	require.Len(t, tasks, 1)
	assert.Equal(t, "Валидная", tasks[0].Title)
}

// TestImportTasks_CamelCaseKeys: ключи принимаются и в camelCase
func TestImportTasks_CamelCaseKeys(t *testing.T) {
	payload := `[{
		"title": "Смешанные ключи",
		"status": "Confirmed",
		"estimatedHours": 12,
		"loggedHours": 3,
		"clientName": "ООО Лютик",
		"deliveryDate": "2026-04-01",
		"hourlyRate": 2000
	}]`

	tasks, err := export.ImportTasks([]byte(payload))
	require.NoError(t, err)
	require.Len(t, tasks, 1)

	got := tasks[0]
	assert.Equal(t, 12.0, got.EstimatedHours)
	assert.Equal(t, 3.0, got.LoggedHours)
	assert.Equal(t, "ООО Лютик", got.ClientName)
	require.NotNil(t, got.DeliveryDate)
	require.NotNil(t, got.HourlyRate)
	assert.Equal(t, 2000.0, *got.HourlyRate)
}

// TestImportTasks_GeneratesID: битый или пустой id заменяется новым
func TestImportTasks_GeneratesID(t *testing.T) {
	known := uuid.New()
	payload := `[
		{"id": "` + known.String() + `", "title": "Со своим id", "status": "Requested", "estimated_hours": 1},
		{"id": "мусор", "title": "С битым id", "status": "Requested", "estimated_hours": 1},
		{"title": "Без id", "status": "Requested", "estimated_hours": 1}
	]`

	tasks, err := export.ImportTasks([]byte(payload))
	require.NoError(t, err)
	require.Len(t, tasks, 3)

	assert.Equal(t, known, tasks[0].ID)
	assert.NotEqual(t, uuid.Nil, tasks[1].ID)
	assert.NotEqual(t, uuid.Nil, tasks[2].ID)
	assert.NotEqual(t, tasks[1].ID, tasks[2].ID)
}

// TestImportTasks_SeedsHistory: задача без истории получает запись импорта
func TestImportTasks_SeedsHistory(t *testing.T) {
	payload := `[{"title": "Без истории", "status": "Client Review", "estimated_hours": 2}]`

	tasks, err := export.ImportTasks([]byte(payload))
	require.NoError(t, err)
	require.Len(t, tasks, 1)

	require.Len(t, tasks[0].History, 1)
	assert.Equal(t, "Imported", tasks[0].History[0].Note)
	assert.Equal(t, task.StatusClientReview, tasks[0].History[0].Status)
}
