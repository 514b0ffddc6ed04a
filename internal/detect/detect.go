// Package detect normalizes Roboflow workflow responses and arbitrates
// between the rice and wheat detection models.
//
// Workflow responses are treated as untrusted, partially-shaped data: the
// vendor returns either a bare object or a one-element list wrapping one,
// the predictions collection may be nested or flat, and confidence values
// arrive under several field names and sometimes as strings. Absence of
// any field is a normal, non-error case, so nothing in this package
// returns an error.
package detect

// Model identifies which detection workflow won arbitration.
type Model string

const (
	ModelRice  Model = "rice"
	ModelWheat Model = "wheat"
	ModelNone  Model = "none"
)

// Policy holds the runtime-configurable arbitration parameters.
type Policy struct {
	// MinConfidence is the floor below which neither model is trusted.
	MinConfidence float64
	// Margin is the confidence gap required to treat one model's result
	// as clearly better than the other's.
	Margin float64
}

// Result is the outcome of arbitrating two workflow responses.
// Confidence equals the maximum confidence found in Source's detections,
// or 0.0 if none were found or parseable.
type Result struct {
	Chosen     Model
	Confidence float64
	Source     any
}
