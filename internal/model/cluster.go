package model

import "time"

// MinClusterDescriptionLen is the shortest description accepted for a cluster
const MinClusterDescriptionLen = 20

// Cluster is a weighted opinion segment within a zone
type Cluster struct {
	ID              string    `json:"id" bson:"_id"`
	ZoneID          string    `json:"zoneId" bson:"zoneId"`
	Name            string    `json:"name" bson:"name"`
	Description     string    `json:"description" bson:"description"` // persona prompt text
	Weight          float64   `json:"weight" bson:"weight"`           // 0-100, population share
	NextAgentNumber int       `json:"nextAgentNumber" bson:"nextAgentNumber"`
	CreatedAt       time.Time `json:"createdAt" bson:"createdAt"`
	UpdatedAt       time.Time `json:"updatedAt" bson:"updatedAt"`
}

// Validate checks the fields a cluster needs before it can be persisted
func (c *Cluster) Validate() error {
	if c.ZoneID == "" {
		return &ValidationError{Field: "zoneId", Reason: "is required"}
	}
	if c.Name == "" {
		return &ValidationError{Field: "name", Reason: "is required"}
	}
	if len([]rune(c.Description)) < MinClusterDescriptionLen {
		return &ValidationError{Field: "description", Reason: "is too short"}
	}
	if c.Weight < 0 || c.Weight > 100 {
		return &ValidationError{Field: "weight", Reason: "must be between 0 and 100"}
	}
	return nil
}

// ValidationError reports an invalid entity field on create or update
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return e.Field + " " + e.Reason
}
