package model

// StanceDistribution buckets stance scores: very negative <25, negative
// [25,50), neutral [50,75), positive >=75.
type StanceDistribution struct {
	VeryNegative int `json:"veryNegative" bson:"veryNegative"`
	Negative     int `json:"negative" bson:"negative"`
	Neutral      int `json:"neutral" bson:"neutral"`
	Positive     int `json:"positive" bson:"positive"`
}

// Total is the number of scores counted
func (d StanceDistribution) Total() int {
	return d.VeryNegative + d.Negative + d.Neutral + d.Positive
}

// ReasonCount is how often a verbatim key reason was given
type ReasonCount struct {
	Reason string `json:"reason" bson:"reason"`
	Count  int    `json:"count" bson:"count"`
}

// ReactionStats aggregates a set of reaction results
type ReactionStats struct {
	Count           int                `json:"count" bson:"count"`
	MeanStanceFirst float64            `json:"meanStanceFirst" bson:"meanStanceFirst"`
	MeanStanceLast  float64            `json:"meanStanceLast" bson:"meanStanceLast"`
	MedianStance    float64            `json:"medianStance" bson:"medianStance"`
	StanceStdDev    float64            `json:"stanceStdDev" bson:"stanceStdDev"` // population standard deviation
	MeanConfidence  float64            `json:"meanConfidence" bson:"meanConfidence"`
	MeanCoherence   float64            `json:"meanCoherence" bson:"meanCoherence"`
	Distribution    StanceDistribution `json:"distribution" bson:"distribution"`
	Emotions        map[Emotion]int    `json:"emotions" bson:"emotions"`
	TopReasons      []ReasonCount      `json:"topReasons" bson:"topReasons"`
}

// ClusterReactionStats is the per-cluster slice of a simulation's statistics
type ClusterReactionStats struct {
	ClusterID     string `json:"clusterId" bson:"clusterId"`
	ClusterName   string `json:"clusterName" bson:"clusterName"`
	ReactionStats `bson:",inline"`
}

// SimulationStats holds global and per-cluster reaction statistics
type SimulationStats struct {
	Global   ReactionStats          `json:"global" bson:"global"`
	Clusters []ClusterReactionStats `json:"clusters" bson:"clusters"`
}
