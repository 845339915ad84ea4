package model

// PatternKind classifies what the observer saw in a window of messages.
type PatternKind string

const (
	PatternNone                    PatternKind = "none"
	PatternRecurringQuestion       PatternKind = "recurring_question"
	PatternFrustration             PatternKind = "frustration"
	PatternTechnicalConfusion      PatternKind = "technical_confusion"
	PatternConflict                PatternKind = "conflict"
	PatternStrongHumanContribution PatternKind = "strong_human_contribution"
)

// PatternPriority orders kinds for tie-breaking, highest first.
var PatternPriority = []PatternKind{
	PatternConflict,
	PatternFrustration,
	PatternRecurringQuestion,
	PatternTechnicalConfusion,
	PatternStrongHumanContribution,
}

// PatternEvidence is what supports a detected kind.
type PatternEvidence struct {
	Kind       PatternKind `json:"kind"`
	MessageIDs []int64     `json:"message_ids"`
	Keywords   []string    `json:"keywords,omitempty"`
	Frequency  int         `json:"frequency"`
	// Score is only meaningful for strong human contributions (0-100).
	Score int `json:"score,omitempty"`
	// AuthorID of the best contribution, used for highlights.
	AuthorID string `json:"author_id,omitempty"`
	// Myths are the misconceptions behind a technical confusion.
	Myths []string `json:"myths,omitempty"`
}

// Observation is the observer's report over a message window.
type Observation struct {
	Detected []PatternEvidence `json:"detected"`
	Topics   []string          `json:"topics,omitempty"`
}

// Has reports whether kind was detected.
func (o Observation) Has(kind PatternKind) bool {
	_, ok := o.Evidence(kind)
	return ok
}

// Evidence returns the evidence recorded for kind.
func (o Observation) Evidence(kind PatternKind) (PatternEvidence, bool) {
	for _, e := range o.Detected {
		if e.Kind == kind {
			return e, true
		}
	}
	return PatternEvidence{}, false
}

// Primary returns the highest-priority detected kind, or PatternNone.
func (o Observation) Primary() PatternKind {
	for _, kind := range PatternPriority {
		if o.Has(kind) {
			return kind
		}
	}
	return PatternNone
}
