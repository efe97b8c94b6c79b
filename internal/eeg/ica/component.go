// Package ica implements the artifact separator: blind source separation of
// the good-channel signal into independent components, heuristic
// classification of each component, and reconstruction of a cleaned
// recording with artifact components removed.
package ica

// Label classifies a component.
type Label string

const (
	// LabelArtifact marks a component scheduled for removal.
	LabelArtifact Label = "artifact"
	// LabelNeural marks a component retained as brain signal.
	LabelNeural Label = "neural"
	// LabelUnknown marks a component no scorer was confident about.
	// Unknown components are retained.
	LabelUnknown Label = "unknown"
)

// Component is one output of the decomposition: a unit-variance time course
// plus a spatial mixing weight per good channel. Components are owned by the
// separator during decomposition; the slice returned by Remove is a snapshot
// for reporting.
type Component struct {
	// Index is the component's position in explained-variance order.
	Index int `json:"index"`
	// Source is the component time course, one value per sample.
	Source []float64 `json:"-"`
	// Mixing holds the spatial topography: one weight per good channel, in
	// good-channel order.
	Mixing []float64 `json:"mixing"`
	// Label is the classification outcome.
	Label Label `json:"label"`
	// Kind names the artifact family ("ocular", "muscle") when labelled
	// artifact, empty otherwise.
	Kind string `json:"kind,omitempty"`
	// Score is the strongest artifact-likelihood score any scorer
	// assigned, in z-score units.
	Score float64 `json:"score"`
}
