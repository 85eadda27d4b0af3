package model

import "time"

// Zone is a geographic or demographic scope that owns clusters
type Zone struct {
	ID          string    `json:"id" bson:"_id"`
	Name        string    `json:"name" bson:"name"`
	Description string    `json:"description,omitempty" bson:"description,omitempty"`
	CreatedAt   time.Time `json:"createdAt" bson:"createdAt"`
	UpdatedAt   time.Time `json:"updatedAt" bson:"updatedAt"`
}

// DemographicKind names the three bucket families an agent references
type DemographicKind string

const (
	DemographicAge               DemographicKind = "age"
	DemographicRegion            DemographicKind = "region"
	DemographicSocioProfessional DemographicKind = "socio_professional"
)

// DemographicKinds lists every kind in reporting order
var DemographicKinds = []DemographicKind{DemographicAge, DemographicRegion, DemographicSocioProfessional}

// Demographic is one bucket (e.g. "35-44", "North", "Manual workers") within a zone
type Demographic struct {
	ID     string          `json:"id" bson:"_id"`
	ZoneID string          `json:"zoneId" bson:"zoneId"`
	Kind   DemographicKind `json:"kind" bson:"kind"`
	Label  string          `json:"label" bson:"label"`
	Weight float64         `json:"weight" bson:"weight"` // relative share within its kind
}
