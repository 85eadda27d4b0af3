package model

import "time"

// RunKind names the long-running operation behind a run id
type RunKind string

const (
	RunSimulation RunKind = "simulation"
	RunPoll       RunKind = "poll"
	RunAgents     RunKind = "agents"
)

// RunState is the lifecycle position of a run
type RunState string

const (
	RunRunning   RunState = "running"
	RunCompleted RunState = "completed"
	RunFailed    RunState = "failed"
)

// RunStatus is the latest known progress of a run
type RunStatus struct {
	RunID     string    `json:"runId"`
	Kind      RunKind   `json:"kind"`
	State     RunState  `json:"state"`
	Stage     string    `json:"stage"`
	Current   int       `json:"current"`
	Total     int       `json:"total"`
	ResultID  string    `json:"resultId,omitempty"`
	Error     string    `json:"error,omitempty"`
	UpdatedAt time.Time `json:"updatedAt"`
}
