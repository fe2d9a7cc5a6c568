// Package models defines the core entities of the synthetic research platform:
// projects, personas, focus groups, responses and memory events. These structs
// are the contract between the pipeline stages and the storage layer; derived
// artifacts (insight blobs, graph snapshots) live next to them because the
// dashboards consume their field names as-is.
package models

import "time"

// DemographicDistribution holds the five independent categorical axes a
// project targets. Each axis maps label -> weight; weights are renormalized
// before sampling, so callers may pass percentages or raw counts.
type DemographicDistribution struct {
	AgeGroups       map[string]float64 `json:"age_groups"`
	Genders         map[string]float64 `json:"genders"`
	EducationLevels map[string]float64 `json:"education_levels"`
	IncomeBrackets  map[string]float64 `json:"income_brackets"`
	Locations       map[string]float64 `json:"locations"`
}

// Axes returns the axis name -> distribution mapping in a stable order.
func (d DemographicDistribution) Axes() []AxisTarget {
	return []AxisTarget{
		{Name: AxisAgeGroup, Weights: d.AgeGroups},
		{Name: AxisGender, Weights: d.Genders},
		{Name: AxisEducation, Weights: d.EducationLevels},
		{Name: AxisIncome, Weights: d.IncomeBrackets},
		{Name: AxisLocation, Weights: d.Locations},
	}
}

// AxisTarget pairs an axis name with its target weights.
type AxisTarget struct {
	Name    string
	Weights map[string]float64
}

// Axis names used across sampler, validator and persisted profiles.
const (
	AxisAgeGroup  = "age_group"
	AxisGender    = "gender"
	AxisEducation = "education"
	AxisIncome    = "income"
	AxisLocation  = "location"
)

// Project owns a panel of personas and their focus groups.
type Project struct {
	ID                 string                  `json:"id"`
	OwnerID            string                  `json:"owner_id"`
	Name               string                  `json:"name"`
	TargetDistribution DemographicDistribution `json:"target_distribution"`
	TargetSampleSize   int                     `json:"target_sample_size"`
	StatisticallyValid bool                    `json:"statistically_valid"`
	Deleted            bool                    `json:"deleted"`
	CreatedAt          time.Time               `json:"created_at"`
}

// DemographicProfile is one sampled tuple: one label per axis. It is the
// hard-constraint shell the synthesizer must not let the model rewrite.
type DemographicProfile struct {
	AgeGroup  string `json:"age_group"`
	Gender    string `json:"gender"`
	Education string `json:"education"`
	Income    string `json:"income"`
	Location  string `json:"location"`
}

// BigFive holds OCEAN trait scores, each in [0,1].
type BigFive struct {
	Openness          float64 `json:"openness"`
	Conscientiousness float64 `json:"conscientiousness"`
	Extraversion      float64 `json:"extraversion"`
	Agreeableness     float64 `json:"agreeableness"`
	Neuroticism       float64 `json:"neuroticism"`
}

// Hofstede holds the six cultural dimensions, each in [0,1].
type Hofstede struct {
	PowerDistance        float64 `json:"power_distance"`
	Individualism        float64 `json:"individualism"`
	Masculinity          float64 `json:"masculinity"`
	UncertaintyAvoidance float64 `json:"uncertainty_avoidance"`
	LongTermOrientation  float64 `json:"long_term_orientation"`
	Indulgence           float64 `json:"indulgence"`
}

// Persona is one synthetic respondent: a sampled demographic shell plus
// model-generated narrative identity.
type Persona struct {
	ID        string `json:"id"`
	ProjectID string `json:"project_id"`

	// Demographics (authoritative: the sampler's values, never the model's)
	Age        int    `json:"age"`
	AgeGroup   string `json:"age_group"`
	Gender     string `json:"gender"`
	Location   string `json:"location"`
	Education  string `json:"education"`
	Income     string `json:"income"`
	Occupation string `json:"occupation"`

	Traits     BigFive  `json:"traits"`
	Dimensions Hofstede `json:"dimensions"`

	// Narrative identity from the synthesis model
	FullName        string   `json:"full_name"`
	Headline        string   `json:"headline"`
	BackgroundStory string   `json:"background_story"`
	Values          []string `json:"values"`
	Interests       []string `json:"interests"`

	CreatedAt time.Time `json:"created_at"`
}

// FocusGroup status values. These exact strings are persisted and polled by
// external callers; do not rename.
type FocusGroupStatus string

const (
	StatusPending   FocusGroupStatus = "pending"
	StatusRunning   FocusGroupStatus = "running"
	StatusCompleted FocusGroupStatus = "completed"
	StatusFailed    FocusGroupStatus = "failed"
)

// Terminal reports whether the status is a final state.
func (s FocusGroupStatus) Terminal() bool {
	return s == StatusCompleted || s == StatusFailed
}

// FocusGroupMode selects the moderation style of the session.
type FocusGroupMode string

const (
	ModeNormal      FocusGroupMode = "normal"
	ModeAdversarial FocusGroupMode = "adversarial"
)

// FocusGroup is one multi-question session over a selected subset of a
// project's panel.
type FocusGroup struct {
	ID         string           `json:"id"`
	ProjectID  string           `json:"project_id"`
	Name       string           `json:"name"`
	PersonaIDs []string         `json:"persona_ids"`
	Questions  []string         `json:"questions"`
	Mode       FocusGroupMode   `json:"mode"`
	Status     FocusGroupStatus `json:"status"`

	StartedAt   *time.Time `json:"started_at,omitempty"`
	CompletedAt *time.Time `json:"completed_at,omitempty"`

	TotalExecutionTimeMs float64 `json:"total_execution_time_ms"`
	AvgResponseTimeMs    float64 `json:"avg_response_time_ms"`
	MeetsRequirements    bool    `json:"meets_requirements"`
	ErrorMessage         string  `json:"error_message,omitempty"`

	// Derived fields written back by the insight aggregator
	PolarizationScore       float64 `json:"polarization_score"`
	OverallConsistencyScore float64 `json:"overall_consistency_score"`
	Summary                 string  `json:"summary,omitempty"`

	CreatedAt time.Time `json:"created_at"`
}

// PersonaResponse is one cell of the (persona x question) response matrix.
// Error cells keep Response empty, Error true and latency zero so the matrix
// stays complete even when the provider drops a call.
type PersonaResponse struct {
	ID               string    `json:"id"`
	FocusGroupID     string    `json:"focus_group_id"`
	PersonaID        string    `json:"persona_id"`
	QuestionIndex    int       `json:"question_index"`
	Question         string    `json:"question"`
	Response         string    `json:"response"`
	ResponseTimeMs   float64   `json:"response_time_ms"`
	ConsistencyScore *float64  `json:"consistency_score,omitempty"`
	Error            bool      `json:"error"`
	CreatedAt        time.Time `json:"created_at"`
}

// Persona event types recorded in the append-only memory log.
type EventType string

const (
	EventQuestionAsked  EventType = "question_asked"
	EventResponseGiven  EventType = "response_given"
	EventPersonaCreated EventType = "persona_created"
)

// PersonaEvent is one immutable entry in a persona's memory log. Sequence
// numbers are unique and contiguous per persona; the embedding is nullable
// when the embedding backend was unavailable at append time.
type PersonaEvent struct {
	ID             string          `json:"id"`
	PersonaID      string          `json:"persona_id"`
	FocusGroupID   string          `json:"focus_group_id,omitempty"`
	EventType      EventType       `json:"event_type"`
	Data           EventData       `json:"event_data"`
	SequenceNumber int64           `json:"sequence_number"`
	Embedding      []float32       `json:"-"`
	Timestamp      time.Time       `json:"timestamp"`
}

// EventData is the structured payload of a memory event. Question events fill
// Question only; response events fill both.
type EventData struct {
	Question string `json:"question,omitempty"`
	Response string `json:"response,omitempty"`
}

// Text renders the payload for embedding: question+response for response
// events, question alone otherwise.
func (d EventData) Text() string {
	if d.Response != "" {
		return d.Question + "\n" + d.Response
	}
	return d.Question
}
