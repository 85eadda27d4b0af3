package model

import "time"

// Level is a three-step intensity used by expression profiles
type Level string

const (
	LevelHigh   Level = "high"
	LevelMedium Level = "medium"
	LevelLow    Level = "low"
)

// Levels lists the accepted Level values
var Levels = []Level{LevelHigh, LevelMedium, LevelLow}

// ParseLevel maps free text onto a Level, reporting whether it matched
func ParseLevel(s string) (Level, bool) {
	for _, l := range Levels {
		if string(l) == s {
			return l, true
		}
	}
	return "", false
}

// ExpressionProfile describes how freely an agent voices opinions
type ExpressionProfile struct {
	Directness         Level `json:"directness" bson:"directness"`
	SocialFilter       Level `json:"social_filter" bson:"socialFilter"`
	ConformityPressure Level `json:"conformity_pressure" bson:"conformityPressure"`
	ContextSensitivity Level `json:"context_sensitivity" bson:"contextSensitivity"`
}

// PsychologicalProfile holds the values and biases that shape private belief
type PsychologicalProfile struct {
	CoreValues      []string `json:"core_values" bson:"coreValues"`
	CognitiveBiases []string `json:"cognitive_biases" bson:"cognitiveBiases"`
	RiskTolerance   int      `json:"risk_tolerance" bson:"riskTolerance"` // 0-100
	Assertiveness   int      `json:"assertiveness" bson:"assertiveness"`  // 0-100
}

// Agent is a synthesized persona belonging to one cluster
type Agent struct {
	ID          string `json:"id" bson:"_id"`
	ClusterID   string `json:"clusterId" bson:"clusterId"`
	AgentNumber int    `json:"agentNumber" bson:"agentNumber"` // unique within cluster, never recycled
	Name        string `json:"name" bson:"name"`
	Age         int    `json:"age" bson:"age"`

	AgeBucketID               string `json:"ageBucketId,omitempty" bson:"ageBucketId,omitempty"`
	RegionBucketID            string `json:"regionBucketId,omitempty" bson:"regionBucketId,omitempty"`
	SocioProfessionalBucketID string `json:"socioProfessionalBucketId,omitempty" bson:"socioProfessionalBucketId,omitempty"`

	SocioDemographic     string               `json:"socioDemographic" bson:"socioDemographic"`
	Traits               []string             `json:"traits" bson:"traits"`
	Priors               string               `json:"priors" bson:"priors"` // biography
	SpeakingStyle        string               `json:"speakingStyle" bson:"speakingStyle"`
	ExpressionProfile    ExpressionProfile    `json:"expressionProfile" bson:"expressionProfile"`
	PsychologicalProfile PsychologicalProfile `json:"psychologicalProfile" bson:"psychologicalProfile"`

	CreatedAt time.Time `json:"createdAt" bson:"createdAt"`
}

// BucketID returns the agent's bucket reference for a demographic kind
func (a *Agent) BucketID(kind DemographicKind) string {
	switch kind {
	case DemographicAge:
		return a.AgeBucketID
	case DemographicRegion:
		return a.RegionBucketID
	case DemographicSocioProfessional:
		return a.SocioProfessionalBucketID
	}
	return ""
}

// SetBucketID sets the agent's bucket reference for a demographic kind
func (a *Agent) SetBucketID(kind DemographicKind, id string) {
	switch kind {
	case DemographicAge:
		a.AgeBucketID = id
	case DemographicRegion:
		a.RegionBucketID = id
	case DemographicSocioProfessional:
		a.SocioProfessionalBucketID = id
	}
}

// Clamp forces every numeric sub-field into its declared range
func (a *Agent) Clamp() {
	a.Age = ClampInt(a.Age, 18, 100)
	a.PsychologicalProfile.RiskTolerance = ClampInt(a.PsychologicalProfile.RiskTolerance, 0, 100)
	a.PsychologicalProfile.Assertiveness = ClampInt(a.PsychologicalProfile.Assertiveness, 0, 100)
}

// ClampInt bounds v to [lo, hi]
func ClampInt(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
