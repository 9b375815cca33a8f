package tui

import (
	"errors"
	"fmt"

	tea "github.com/charmbracelet/bubbletea"

	"coreupdater/internal/download"
	"coreupdater/internal/plugins"
)

// Column headers shared by the install progress table and the reporter.
const (
	ColumnCore     = "CORE"
	ColumnVersion  = "VERSION"
	ColumnProgress = "PROGRESS"
	ColumnStatus   = "STATUS"
)

// InstallColumns is the column layout for the install transfer table.
func InstallColumns() []Column {
	return []Column{
		{Header: ColumnCore, Width: 24},
		{Header: ColumnVersion, Width: 10},
		{Header: ColumnProgress, Width: 8},
		{Header: ColumnStatus, Width: 12},
	}
}

// TaskReporter translates install lifecycle callbacks into row updates for a
// running progress program. Rows are keyed by core identifier.
type TaskReporter struct {
	send func(tea.Msg)
}

// NewTaskReporter wraps a bubbletea send callback.
func NewTaskReporter(send func(tea.Msg)) *TaskReporter {
	return &TaskReporter{send: send}
}

// InstallStarted marks the row as downloading.
func (r *TaskReporter) InstallStarted(task *download.Task) {
	r.send(RowUpdateMsg{
		Key: task.CoreID,
		Fields: map[string]string{
			ColumnProgress: "0%",
			ColumnStatus:   "downloading",
		},
	})
}

// InstallProgress updates the transfer fraction. Once the payload is fully
// received the task is hashing, so the row flips to verifying.
func (r *TaskReporter) InstallProgress(task *download.Task, fraction float64) {
	status := "downloading"
	if task.State() == download.StateVerifying {
		status = "verifying"
	}
	r.send(RowUpdateMsg{
		Key: task.CoreID,
		Fields: map[string]string{
			ColumnProgress: fmt.Sprintf("%d%%", int(fraction*100)),
			ColumnStatus:   status,
		},
	})
}

// InstallFinished marks the row as installed.
func (r *TaskReporter) InstallFinished(task *download.Task, handle plugins.Handle) {
	r.send(RowUpdateMsg{
		Key: task.CoreID,
		Fields: map[string]string{
			ColumnProgress: "100%",
			ColumnVersion:  handle.Version,
			ColumnStatus:   "installed",
		},
	})
}

// InstallFailed marks the row as failed, or cancelled when the transfer was
// cancelled rather than broken.
func (r *TaskReporter) InstallFailed(task *download.Task, err error) {
	status := "failed"
	if errors.Is(err, download.ErrCancelled) {
		status = "cancelled"
	}
	r.send(RowUpdateMsg{
		Key:    task.CoreID,
		Fields: map[string]string{ColumnStatus: status},
	})
}
