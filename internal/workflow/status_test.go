package workflow_test

import (
	"testing"

	"changeTracker/internal/models/task"
	"changeTracker/internal/workflow"

	"github.com/stretchr/testify/assert"
)

// TestCanTransition тестирует матрицу допустимых переходов
func TestCanTransition(t *testing.T) {
	tests := []struct {
		name    string
		from    task.Status
		to      task.Status
		allowed bool
	}{
		{"same status is allowed", task.StatusRequested, task.StatusRequested, true},
		{"immediate next is allowed", task.StatusRequested, task.StatusClientReview, true},
		{"client review to confirmed", task.StatusClientReview, task.StatusConfirmed, true},
		{"completed to handover", task.StatusCompleted, task.StatusHandover, true},
		{"skipping a step is forbidden", task.StatusRequested, task.StatusConfirmed, false},
		{"jump to the end is forbidden", task.StatusRequested, task.StatusHandover, false},
		{"backward step is forbidden", task.StatusApproved, task.StatusConfirmed, false},
		{"rollback from confirmed", task.StatusConfirmed, task.StatusClientReview, true},
		{"rollback from approved", task.StatusApproved, task.StatusClientReview, true},
		{"rollback from working on it", task.StatusWorkingOnIt, task.StatusClientReview, true},
		{"rollback from completed", task.StatusCompleted, task.StatusClientReview, true},
		{"rollback from handover", task.StatusHandover, task.StatusClientReview, true},
		{"requested cannot roll back", task.StatusRequested, task.StatusClientReview, true}, // это обычный шаг вперёд
		{"handover has no next", task.StatusHandover, task.StatusRequested, false},
		{"unknown target", task.StatusRequested, task.Status("Archived"), false},
		{"unknown source", task.Status("Archived"), task.StatusRequested, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.allowed, workflow.CanTransition(tt.from, tt.to))
		})
	}
}

// TestCanTransition_FullChain проверяет, что вся цепочка проходится по шагам
func TestCanTransition_FullChain(t *testing.T) {
	chain := task.AllStatuses()
	for i := 0; i < len(chain)-1; i++ {
		assert.True(t, workflow.CanTransition(chain[i], chain[i+1]),
			"переход %s -> %s должен быть разрешён", chain[i], chain[i+1])
	}
}

// TestIsRollback тестирует распознавание отката
func TestIsRollback(t *testing.T) {
	assert.True(t, workflow.IsRollback(task.StatusConfirmed, task.StatusClientReview))
	assert.True(t, workflow.IsRollback(task.StatusHandover, task.StatusClientReview))

	// шаг вперёд из Requested — не откат
	assert.False(t, workflow.IsRollback(task.StatusRequested, task.StatusClientReview))
	// остаться в Client Review — не откат
	assert.False(t, workflow.IsRollback(task.StatusClientReview, task.StatusClientReview))
	// откатом считается только приземление в Client Review
	assert.False(t, workflow.IsRollback(task.StatusApproved, task.StatusConfirmed))
}

// TestRequiresEstimate тестирует границу обязательной оценки
func TestRequiresEstimate(t *testing.T) {
	assert.False(t, workflow.RequiresEstimate(task.StatusRequested))
	assert.False(t, workflow.RequiresEstimate(task.StatusClientReview))

	for _, s := range []task.Status{
		task.StatusConfirmed,
		task.StatusApproved,
		task.StatusWorkingOnIt,
		task.StatusCompleted,
		task.StatusHandover,
	} {
		assert.True(t, workflow.RequiresEstimate(s), "статус %s требует оценку", s)
	}
}
