package model

import "time"

const (
	// DefaultMaxLanes covers lane 0 for single-queue runs plus four multi-level lanes.
	DefaultMaxLanes = 5

	// MultiLevelLanes is the number of lanes a multi-level algorithm reports on.
	MultiLevelLanes = 4
)

// ProcessStatus is the engine-reported state of a process.
type ProcessStatus string

const (
	StatusNew        ProcessStatus = "New"
	StatusReady      ProcessStatus = "Ready"
	StatusRunning    ProcessStatus = "Running"
	StatusWaiting    ProcessStatus = "Waiting"
	StatusFinished   ProcessStatus = "Finished"
	StatusTerminated ProcessStatus = "Terminated"
)

// IsFinished returns true if the process has completed its burst.
func (s ProcessStatus) IsFinished() bool {
	return s == StatusFinished || s == StatusTerminated
}

// ProcessType classifies a process for multi-level queue placement.
type ProcessType string

const (
	ProcessTypeSystem      ProcessType = "SystemProcess"
	ProcessTypeInteractive ProcessType = "InteractiveProcess"
	ProcessTypeBatch       ProcessType = "BatchProcess"
	ProcessTypeStudent     ProcessType = "StudentProcess"
)

// ProcessTypes lists the process types the engine understands.
func ProcessTypes() []ProcessType {
	return []ProcessType{ProcessTypeSystem, ProcessTypeInteractive, ProcessTypeBatch, ProcessTypeStudent}
}

// IsValid reports whether t is a known process type.
func (t ProcessType) IsValid() bool {
	for _, known := range ProcessTypes() {
		if t == known {
			return true
		}
	}
	return false
}

// ProcessMetrics are the per-process figures the engine tracks.
type ProcessMetrics struct {
	ResponseTime     Duration `json:"response_time"`
	TotalWaitingTime Duration `json:"total_waiting_time"`
	TotalTime        Duration `json:"total_time"`
}

// ProcessSnapshot is one immutable engine view of a process.
type ProcessSnapshot struct {
	ID            string         `json:"id"`
	ArrivalTime   time.Time      `json:"arrival_time"`
	CPUBurstTime  Duration       `json:"cpu_burst_time"`
	ProcessedTime Duration       `json:"processed_time"`
	WaitingTime   Duration       `json:"waiting_time"`
	Status        ProcessStatus  `json:"status"`
	ProcessType   ProcessType    `json:"process_type"`
	LastExecution *time.Time     `json:"last_execution"`
	Metrics       ProcessMetrics `json:"metrics"`
}

// DispatchEvent is emitted each time the engine dispatches or stops a process.
type DispatchEvent struct {
	Lane    int             `json:"lane"`
	Process ProcessSnapshot `json:"process"`
}

// FinishedBatch is one completion wave reported by the engine.
type FinishedBatch []ProcessSnapshot

// MetricsSnapshot holds the averaged metrics of one queue.
type MetricsSnapshot struct {
	QueueDiscipline string   `json:"queue_discipline"`
	AvgTurnaround   Duration `json:"avg_turnaround"`
	AvgWaiting      Duration `json:"avg_waiting"`
	AvgResponse     Duration `json:"avg_response"`
	CPUUtilization  float64  `json:"cpu_utilization"`
}

// TimelineSegment is one renderable execution slice on a lane.
type TimelineSegment struct {
	Lane      int     `json:"lane"`
	ProcessID string  `json:"process_id"`
	StartMs   float64 `json:"start_ms"`
	EndMs     float64 `json:"end_ms"`
}

// DurationMs returns the length of the segment in milliseconds.
func (s TimelineSegment) DurationMs() float64 {
	return s.EndMs - s.StartMs
}

// DisplayID truncates id to n characters for presentation only.
func DisplayID(id string, n int) string {
	if n <= 0 || len(id) <= n {
		return id
	}
	return id[:n]
}
