package backend

// TaskStatus is the lifecycle state of a transcription task.
type TaskStatus string

const (
	TaskQueued    TaskStatus = "queued"
	TaskRunning   TaskStatus = "running"
	TaskPaused    TaskStatus = "paused"
	TaskCompleted TaskStatus = "completed"
	TaskFailed    TaskStatus = "failed"
	TaskCancelled TaskStatus = "cancelled"
)

// Health is the backend's dependency report.
type Health struct {
	FFmpeg bool   `json:"ffmpeg"`
	Models bool   `json:"models"`
	Status string `json:"status"`
}

// Segment is one timed span of transcribed text.
type Segment struct {
	Index   int    `json:"index"`
	StartMS int    `json:"start_ms"`
	EndMS   int    `json:"end_ms"`
	Text    string `json:"text"`
}

// LogEntry is one progress or status line recorded against a task.
type LogEntry struct {
	Timestamp float64 `json:"timestamp"`
	Type      string  `json:"type"`
	Message   string  `json:"message"`
	Progress  float64 `json:"progress,omitempty"`
}

// Task is the backend's snapshot of a transcription task. The same shape is
// sent as events on the task's progress WebSocket.
type Task struct {
	ID         string                 `json:"id"`
	Status     TaskStatus             `json:"status"`
	Progress   float64                `json:"progress"`
	Message    string                 `json:"message"`
	ResultText string                 `json:"result_text"`
	Segments   []Segment              `json:"segments"`
	Source     map[string]interface{} `json:"source"`
	Error      string                 `json:"error"`
	CreatedAt  float64                `json:"created_at"`
	UpdatedAt  float64                `json:"updated_at"`
	Logs       []LogEntry             `json:"logs"`
}

// Done reports whether the task has reached a terminal status.
func (t *Task) Done() bool {
	switch t.Status {
	case TaskCompleted, TaskFailed, TaskCancelled:
		return true
	}
	return false
}
