package model

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// PollMode is how agents answer a poll question
type PollMode string

const (
	PollChoice  PollMode = "choice"
	PollRanking PollMode = "ranking"
	PollScoring PollMode = "scoring"
)

// ParsePollMode validates a poll mode string
func ParsePollMode(s string) (PollMode, error) {
	switch m := PollMode(strings.ToLower(strings.TrimSpace(s))); m {
	case PollChoice, PollRanking, PollScoring:
		return m, nil
	}
	return "", fmt.Errorf("unknown poll mode %q", s)
}

// HistogramBuckets is the number of score histogram buckets: 0-9 ... 90-99 and 100
const HistogramBuckets = 11

// HistogramBucket returns the histogram index for a 0-100 score
func HistogramBucket(score int) int {
	b := ClampInt(score, 0, 100) / 10
	if b > HistogramBuckets-1 {
		b = HistogramBuckets - 1
	}
	return b
}

// HistogramLabel names a histogram bucket
func HistogramLabel(i int) string {
	if i >= HistogramBuckets-1 {
		return "100"
	}
	return strconv.Itoa(i*10) + "-" + strconv.Itoa(i*10+9)
}

// Poll is a closed question put to a panel
type Poll struct {
	Question string   `json:"question" bson:"question"`
	Options  []string `json:"options" bson:"options"`
	Mode     PollMode `json:"mode" bson:"mode"`
}

// Validate checks a poll before it is put to a panel
func (p *Poll) Validate() error {
	if strings.TrimSpace(p.Question) == "" {
		return &ValidationError{Field: "question", Reason: "is required"}
	}
	if len(p.Options) < 2 {
		return &ValidationError{Field: "options", Reason: "needs at least two entries"}
	}
	seen := make(map[string]bool, len(p.Options))
	for _, o := range p.Options {
		k := strings.ToLower(strings.TrimSpace(o))
		if k == "" {
			return &ValidationError{Field: "options", Reason: "must not contain blank entries"}
		}
		if seen[k] {
			return &ValidationError{Field: "options", Reason: "must be unique"}
		}
		seen[k] = true
	}
	if _, err := ParsePollMode(string(p.Mode)); err != nil {
		return &ValidationError{Field: "mode", Reason: "must be choice, ranking or scoring"}
	}
	return nil
}

// PollResponse is one agent's answer. Exactly one of Choice, Ranking or
// Scores is populated, according to the poll mode.
type PollResponse struct {
	AgentID     string `json:"agentId" bson:"agentId"`
	AgentName   string `json:"agentName" bson:"agentName"`
	ClusterID   string `json:"clusterId" bson:"clusterId"`
	ClusterName string `json:"clusterName" bson:"clusterName"`

	AgeBucketID               string `json:"ageBucketId,omitempty" bson:"ageBucketId,omitempty"`
	RegionBucketID            string `json:"regionBucketId,omitempty" bson:"regionBucketId,omitempty"`
	SocioProfessionalBucketID string `json:"socioProfessionalBucketId,omitempty" bson:"socioProfessionalBucketId,omitempty"`

	Choice    string         `json:"choice,omitempty" bson:"choice,omitempty"`
	Ranking   []string       `json:"ranking,omitempty" bson:"ranking,omitempty"`
	Scores    map[string]int `json:"scores,omitempty" bson:"scores,omitempty"`
	Reasoning string         `json:"reasoning,omitempty" bson:"reasoning,omitempty"`
}

// BucketID returns the response's bucket reference for a demographic kind
func (r *PollResponse) BucketID(kind DemographicKind) string {
	switch kind {
	case DemographicAge:
		return r.AgeBucketID
	case DemographicRegion:
		return r.RegionBucketID
	case DemographicSocioProfessional:
		return r.SocioProfessionalBucketID
	}
	return ""
}

// Answer renders the response as a single cell of text
func (r *PollResponse) Answer(options []string) string {
	switch {
	case r.Choice != "":
		return r.Choice
	case len(r.Ranking) > 0:
		return strings.Join(r.Ranking, " > ")
	case len(r.Scores) > 0:
		parts := make([]string, 0, len(options))
		for _, o := range options {
			if s, ok := r.Scores[o]; ok {
				parts = append(parts, o+"="+strconv.Itoa(s))
			}
		}
		return strings.Join(parts, ", ")
	}
	return ""
}

// OptionStats is the mode-specific aggregate for one option
type OptionStats struct {
	Option string `json:"option" bson:"option"`

	// choice
	Count int `json:"count,omitempty" bson:"count,omitempty"`

	// ranking
	AverageRank      float64 `json:"averageRank,omitempty" bson:"averageRank,omitempty"`
	FirstChoiceCount int     `json:"firstChoiceCount,omitempty" bson:"firstChoiceCount,omitempty"`

	// scoring
	Mean      float64 `json:"mean,omitempty" bson:"mean,omitempty"`
	Min       int     `json:"min,omitempty" bson:"min,omitempty"`
	Max       int     `json:"max,omitempty" bson:"max,omitempty"`
	Histogram []int   `json:"histogram,omitempty" bson:"histogram,omitempty"`
}

// PollBreakdown is the option statistics for a set of responses
type PollBreakdown struct {
	Responses int           `json:"responses" bson:"responses"`
	Options   []OptionStats `json:"options" bson:"options"`
}

// GroupPollStats is a breakdown for one cluster or demographic bucket
type GroupPollStats struct {
	Kind          string `json:"kind" bson:"kind"` // "cluster" or a DemographicKind
	GroupID       string `json:"groupId" bson:"groupId"`
	Label         string `json:"label" bson:"label"`
	PollBreakdown `bson:",inline"`
}

// PollStats holds overall, per-cluster and per-demographic poll statistics
type PollStats struct {
	Overall      PollBreakdown    `json:"overall" bson:"overall"`
	Clusters     []GroupPollStats `json:"clusters" bson:"clusters"`
	Demographics []GroupPollStats `json:"demographics" bson:"demographics"`
}

// PollConfig is the run configuration frozen into a poll result
type PollConfig struct {
	AgentCount     int            `json:"agentCount" bson:"agentCount"`
	AllocationMode AllocationMode `json:"allocationMode" bson:"allocationMode"`
	Temperature    float64        `json:"temperature,omitempty" bson:"temperature,omitempty"`
}

// PollResult is a completed poll run with its panel snapshot
type PollResult struct {
	ID        string    `json:"id" bson:"_id"`
	RunID     string    `json:"runId" bson:"runId"`
	Title     string    `json:"title" bson:"title"`
	Poll      Poll      `json:"poll" bson:"poll"`
	ZoneID    string    `json:"zoneId,omitempty" bson:"zoneId,omitempty"`
	CreatedAt time.Time `json:"createdAt" bson:"createdAt"`

	Clusters  []Cluster      `json:"clusters" bson:"clusters"`
	Panel     []Agent        `json:"panel" bson:"panel"`
	Config    PollConfig     `json:"config" bson:"config"`
	Responses []PollResponse `json:"responses" bson:"responses"`
	Stats     PollStats      `json:"stats" bson:"stats"`
}

// PollRow is the flat per-agent record used for CSV or PDF reports
type PollRow struct {
	AgentID     string `json:"agentId"`
	AgentName   string `json:"agentName"`
	ClusterName string `json:"clusterName"`
	Answer      string `json:"answer"`
	Reasoning   string `json:"reasoning"`
}

// Rows flattens every response into report rows
func (p *PollResult) Rows() []PollRow {
	rows := make([]PollRow, 0, len(p.Responses))
	for i := range p.Responses {
		r := &p.Responses[i]
		rows = append(rows, PollRow{
			AgentID:     r.AgentID,
			AgentName:   r.AgentName,
			ClusterName: r.ClusterName,
			Answer:      r.Answer(p.Poll.Options),
			Reasoning:   r.Reasoning,
		})
	}
	return rows
}
