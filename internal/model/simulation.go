package model

import "time"

// AllocationMode selects how a panel size is split across clusters
type AllocationMode string

const (
	AllocationEqual    AllocationMode = "equal"
	AllocationWeighted AllocationMode = "weighted"
)

// ReactionMode selects one agent per model call or several
type ReactionMode string

const (
	ReactionSingle  ReactionMode = "single"
	ReactionBatched ReactionMode = "batched"
)

// SimulationConfig is the run configuration frozen into a simulation
type SimulationConfig struct {
	AgentCount     int            `json:"agentCount" bson:"agentCount"`
	AllocationMode AllocationMode `json:"allocationMode" bson:"allocationMode"`
	ReactionMode   ReactionMode   `json:"reactionMode" bson:"reactionMode"`
	Channel        string         `json:"channel,omitempty" bson:"channel,omitempty"`
	Temperature    float64        `json:"temperature,omitempty" bson:"temperature,omitempty"`
	Summarize      bool           `json:"summarize" bson:"summarize"`
}

// Simulation is a completed scenario run. Clusters and Panel are copies taken
// at run time; later edits to the live entities never reach them.
type Simulation struct {
	ID        string    `json:"id" bson:"_id"`
	RunID     string    `json:"runId" bson:"runId"`
	Title     string    `json:"title" bson:"title"`
	Scenario  string    `json:"scenario" bson:"scenario"`
	Context   string    `json:"context,omitempty" bson:"context,omitempty"`
	ZoneID    string    `json:"zoneId,omitempty" bson:"zoneId,omitempty"`
	CreatedAt time.Time `json:"createdAt" bson:"createdAt"`

	Clusters []Cluster        `json:"clusters" bson:"clusters"`
	Panel    []Agent          `json:"panel" bson:"panel"`
	Config   SimulationConfig `json:"config" bson:"config"`
	Results  []ReactionResult `json:"results" bson:"results"`

	Stats   *SimulationStats `json:"stats,omitempty" bson:"stats,omitempty"`
	Summary string           `json:"summary,omitempty" bson:"summary,omitempty"`
}

// SimulationRow is the flat per-agent record used for CSV or PDF reports
type SimulationRow struct {
	AgentID     string  `json:"agentId"`
	AgentName   string  `json:"agentName"`
	ClusterID   string  `json:"clusterId"`
	ClusterName string  `json:"clusterName"`
	StanceScore int     `json:"stanceScore"`
	Confidence  int     `json:"confidence"`
	Emotion     Emotion `json:"emotion"`
	Response    string  `json:"response"`
}

// Rows flattens the last turn of every result into report rows
func (s *Simulation) Rows() []SimulationRow {
	rows := make([]SimulationRow, 0, len(s.Results))
	for i := range s.Results {
		res := &s.Results[i]
		turn := res.LastTurn()
		if turn == nil {
			continue
		}
		rows = append(rows, SimulationRow{
			AgentID:     res.AgentID,
			AgentName:   res.AgentName,
			ClusterID:   res.ClusterID,
			ClusterName: res.ClusterName,
			StanceScore: turn.StanceScore,
			Confidence:  turn.Confidence,
			Emotion:     turn.Emotion,
			Response:    turn.Response,
		})
	}
	return rows
}
