// Package workflow holds the task placement rules and the follow-up jobs each
// task mutation produces. It does no I/O; callers load state inside a
// project-locked transaction and enqueue the returned jobs after commit.
package workflow

import (
	"errors"
	"math"

	"collabsauce/api/internal/store"
)

var (
	// ErrInvalidMove rejects a reorder batch that references an unknown or
	// foreign task or column, or carries an order outside 0..MaxOrder.
	ErrInvalidMove = errors.New("invalid move")

	// ErrColumnMismatch rejects moving a task into another project's column.
	ErrColumnMismatch = errors.New("column belongs to another project")
)

// MaxOrder is the largest order a task column can hold.
const MaxOrder = math.MaxInt32

// NextTaskNumber numbers a new task after the project's existing tasks.
func NextTaskNumber(existing int) int {
	return existing + 1
}

// NextOrder places a task after the last one in its column, or first when the
// column is empty.
func NextOrder(last int, nonEmpty bool) int {
	if !nonEmpty {
		return 1
	}
	return last + 1
}

type ColumnChange struct {
	TaskID       int64
	PrevColumnID int64
	NewColumnID  int64
}

// PlanReorder validates a batch of moves against the project's current tasks
// and columns and returns the column changes it implies, in batch order.
// tasks must hold every task the actor can see that the batch references.
func PlanReorder(projectID int64, moves []store.TaskPlacement, tasks []store.Task, columns []store.TaskColumn) ([]ColumnChange, error) {
	if len(moves) == 0 {
		return nil, ErrInvalidMove
	}

	byID := make(map[int64]store.Task, len(tasks))
	for _, t := range tasks {
		byID[t.ID] = t
	}
	columnIDs := make(map[int64]bool, len(columns))
	for _, c := range columns {
		if c.ProjectID == projectID {
			columnIDs[c.ID] = true
		}
	}

	seen := make(map[int64]bool, len(moves))
	var changes []ColumnChange
	for _, m := range moves {
		task, ok := byID[m.TaskID]
		if !ok || task.ProjectID != projectID || seen[m.TaskID] || !columnIDs[m.TaskColumnID] {
			return nil, ErrInvalidMove
		}
		if m.Order < 0 || m.Order > MaxOrder {
			return nil, ErrInvalidMove
		}
		seen[m.TaskID] = true
		if task.TaskColumnID != m.TaskColumnID {
			changes = append(changes, ColumnChange{
				TaskID:       task.ID,
				PrevColumnID: task.TaskColumnID,
				NewColumnID:  m.TaskColumnID,
			})
		}
	}
	return changes, nil
}

// PlanColumnMove moves one task to the end of target. It returns nil when the
// task is already in that column.
func PlanColumnMove(task store.Task, target store.TaskColumn, lastOrder int, nonEmpty bool) (*store.TaskPlacement, *ColumnChange, error) {
	if target.ProjectID != task.ProjectID {
		return nil, nil, ErrColumnMismatch
	}
	if target.ID == task.TaskColumnID {
		return nil, nil, nil
	}
	placement := &store.TaskPlacement{
		TaskID:       task.ID,
		Order:        NextOrder(lastOrder, nonEmpty),
		TaskColumnID: target.ID,
	}
	change := &ColumnChange{TaskID: task.ID, PrevColumnID: task.TaskColumnID, NewColumnID: target.ID}
	return placement, change, nil
}

// AssigneeChanged reports whether next is a new, non-empty assignee.
// Unassigning is not a notifiable change.
func AssigneeChanged(prev, next *int64) bool {
	if next == nil {
		return false
	}
	return prev == nil || *prev != *next
}
