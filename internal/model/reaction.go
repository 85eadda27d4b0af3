package model

import "time"

// Emotion is the closed vocabulary of dominant emotions in a reaction
type Emotion string

const (
	EmotionAnger        Emotion = "anger"
	EmotionFear         Emotion = "fear"
	EmotionHope         Emotion = "hope"
	EmotionCynicism     Emotion = "cynicism"
	EmotionPride        Emotion = "pride"
	EmotionSadness      Emotion = "sadness"
	EmotionIndifference Emotion = "indifference"
	EmotionEnthusiasm   Emotion = "enthusiasm"
	EmotionMistrust     Emotion = "mistrust"
)

// Emotions lists every canonical emotion
var Emotions = []Emotion{
	EmotionAnger, EmotionFear, EmotionHope, EmotionCynicism, EmotionPride,
	EmotionSadness, EmotionIndifference, EmotionEnthusiasm, EmotionMistrust,
}

// ExpressionContext is the setting in which an opinion is voiced
type ExpressionContext string

const (
	ContextPublic       ExpressionContext = "public"
	ContextSemiPublic   ExpressionContext = "semi_public"
	ContextPrivate      ExpressionContext = "private"
	ContextSocialMedia  ExpressionContext = "social_media"
	ContextSecretBallot ExpressionContext = "secret_ballot"
)

// ExpressionContexts lists the accepted contexts
var ExpressionContexts = []ExpressionContext{
	ContextPublic, ContextSemiPublic, ContextPrivate, ContextSocialMedia, ContextSecretBallot,
}

// ActionType is what an agent would concretely do about a scenario
type ActionType string

const (
	ActionVoteFor          ActionType = "vote_for"
	ActionVoteAgainst      ActionType = "vote_against"
	ActionAbstain          ActionType = "abstain"
	ActionProtest          ActionType = "protest"
	ActionPetition         ActionType = "petition"
	ActionBoycott          ActionType = "boycott"
	ActionDonate           ActionType = "donate"
	ActionShareOnline      ActionType = "share_online"
	ActionDiscussPrivately ActionType = "discuss_privately"
	ActionVolunteer        ActionType = "volunteer"
	ActionNone             ActionType = "no_action"
)

// ActionTypes lists the eleven accepted action types
var ActionTypes = []ActionType{
	ActionVoteFor, ActionVoteAgainst, ActionAbstain, ActionProtest, ActionPetition, ActionBoycott,
	ActionDonate, ActionShareOnline, ActionDiscussPrivately, ActionVolunteer, ActionNone,
}

// ActionConsistency grades how far the action drifts from the belief
type ActionConsistency string

const (
	ConsistencyConsistent  ActionConsistency = "consistent"
	ConsistencyModerateGap ActionConsistency = "moderate_gap"
	ConsistencyMajorGap    ActionConsistency = "major_gap"
)

// ActionConsistencies lists the accepted consistency grades
var ActionConsistencies = []ActionConsistency{ConsistencyConsistent, ConsistencyModerateGap, ConsistencyMajorGap}

// Engagement is the predicted level of involvement
type Engagement string

const (
	EngagementPassive  Engagement = "passive"
	EngagementModerate Engagement = "moderate"
	EngagementActive   Engagement = "active"
	EngagementMilitant Engagement = "militant"
)

// Engagements lists the accepted engagement levels
var Engagements = []Engagement{EngagementPassive, EngagementModerate, EngagementActive, EngagementMilitant}

// TrueBelief is what the agent privately thinks
type TrueBelief struct {
	InnerStanceScore int      `json:"inner_stance_score" bson:"innerStanceScore"` // 0-100
	CognitiveBiases  []string `json:"cognitive_biases" bson:"cognitiveBiases"`
	CoreValuesImpact string   `json:"core_values_impact" bson:"coreValuesImpact"`
	SelfAwareness    int      `json:"self_awareness" bson:"selfAwareness"` // 0-100
}

// PublicExpression is what the agent says out loud
type PublicExpression struct {
	ExpressedStanceScore int               `json:"expressed_stance_score" bson:"expressedStanceScore"` // 0-100
	ExpressionModifier   int               `json:"expression_modifier" bson:"expressionModifier"`      // -50..50
	FilterReasons        []string          `json:"filter_reasons" bson:"filterReasons"`
	Context              ExpressionContext `json:"context" bson:"context"`
}

// BehavioralAction is what the agent would do
type BehavioralAction struct {
	ActionType          ActionType        `json:"action_type" bson:"actionType"`
	ActionIntensity     int               `json:"action_intensity" bson:"actionIntensity"` // 0-100
	ActionConsistency   ActionConsistency `json:"action_consistency" bson:"actionConsistency"`
	PredictedEngagement Engagement        `json:"predicted_engagement" bson:"predictedEngagement"`
}

// CoherenceBreakdown holds the three pairwise gaps behind the coherence score
type CoherenceBreakdown struct {
	BeliefExpressionGap int `json:"belief_expression_gap" bson:"beliefExpressionGap"`
	BeliefActionGap     int `json:"belief_action_gap" bson:"beliefActionGap"`
	ExpressionActionGap int `json:"expression_action_gap" bson:"expressionActionGap"`
}

// UnstatedReason pads key_reasons when the model gave fewer than three.
// Statistics skip it.
const UnstatedReason = "(no further reason given)"

// ReactionTurn is one agent's structured response to a scenario
type ReactionTurn struct {
	StanceScore int      `json:"stance_score" bson:"stanceScore"` // 0-100
	Confidence  int      `json:"confidence" bson:"confidence"`    // 0-100
	Emotion     Emotion  `json:"emotion" bson:"emotion"`
	KeyReasons  []string `json:"key_reasons" bson:"keyReasons"` // exactly 3
	Response    string   `json:"response" bson:"response"`

	TrueBelief       TrueBelief       `json:"true_belief" bson:"trueBelief"`
	PublicExpression PublicExpression `json:"public_expression" bson:"publicExpression"`
	BehavioralAction BehavioralAction `json:"behavioral_action" bson:"behavioralAction"`

	CoherenceScore     *int                `json:"coherence_score,omitempty" bson:"coherenceScore,omitempty"`
	CoherenceBreakdown *CoherenceBreakdown `json:"coherence_breakdown,omitempty" bson:"coherenceBreakdown,omitempty"`
}

// Exposure records how the scenario reached the agent
type Exposure struct {
	Scenario  string    `json:"scenario" bson:"scenario"`
	Context   string    `json:"context,omitempty" bson:"context,omitempty"`
	Channel   string    `json:"channel" bson:"channel"`
	ExposedAt time.Time `json:"exposedAt" bson:"exposedAt"`
}

// ReactionResult links an agent and its cluster to the turns it produced
type ReactionResult struct {
	AgentID     string         `json:"agentId" bson:"agentId"`
	AgentName   string         `json:"agentName" bson:"agentName"`
	ClusterID   string         `json:"clusterId" bson:"clusterId"`
	ClusterName string         `json:"clusterName" bson:"clusterName"`
	Turns       []ReactionTurn `json:"turns" bson:"turns"`
	Exposure    Exposure       `json:"exposure" bson:"exposure"`
}

// FirstTurn returns the opening turn, or nil when none exist
func (r *ReactionResult) FirstTurn() *ReactionTurn {
	if len(r.Turns) == 0 {
		return nil
	}
	return &r.Turns[0]
}

// LastTurn returns the most recent turn, or nil when none exist
func (r *ReactionResult) LastTurn() *ReactionTurn {
	if len(r.Turns) == 0 {
		return nil
	}
	return &r.Turns[len(r.Turns)-1]
}
