package tasks

import (
	"fmt"
)

// ProgressUpdate represents a progress event during a long-running operation.
//
// Used to send real-time updates to the CLI or UI layer for display.
type ProgressUpdate struct {
	Phase   Phase  // Operation phase
	Step    int    // Current step number within phase
	Total   int    // Total steps in this phase
	Message string // Human-readable message for display
	Data    any    // Optional phase-specific data for advanced UIs
}

// Operation phase enumeration
type Phase int

const (
	FetchQueues Phase = iota
	ExportQueue
)

func (p Phase) String() string {
	switch p {
	case FetchQueues:
		return "fetch_queues"
	case ExportQueue:
		return "export_queue"
	default:
		return ""
	}
}

func fetchingQueuesUpdate(total int) ProgressUpdate {
	return ProgressUpdate{
		Phase:   FetchQueues,
		Step:    0,
		Total:   total,
		Message: fmt.Sprintf("Fetching %d queues...", total),
	}
}

func exportingQueueUpdate(step, total int, owner string) ProgressUpdate {
	return ProgressUpdate{
		Phase:   ExportQueue,
		Step:    step,
		Total:   total,
		Message: fmt.Sprintf("[%d/%d] Exporting: %s...", step, total, owner),
		Data:    owner,
	}
}

func exportCompletedUpdate(step, total int, owner string, filesCount int) ProgressUpdate {
	return ProgressUpdate{
		Phase:   ExportQueue,
		Step:    step,
		Total:   total,
		Message: fmt.Sprintf("[%d/%d] ✓ %s (%d files)", step, total, owner, filesCount),
		Data:    owner,
	}
}

func exportFailedUpdate(step, total int, owner string, err error) ProgressUpdate {
	return ProgressUpdate{
		Phase:   ExportQueue,
		Step:    step,
		Total:   total,
		Message: fmt.Sprintf("[%d/%d] ✗ %s: %v", step, total, owner, err),
		Data:    err,
	}
}
