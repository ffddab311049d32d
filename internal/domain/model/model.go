// Package model defines the inference model taxonomy shared by the
// resilience layer and the inference transport.
package model

// Type identifies a class of inference model. Circuit breakers are
// tracked per type so a failing text model never blocks embeddings.
type Type string

// Model type constants.
const (
	Text      Type = "text"
	Embedding Type = "embedding"
	Vision    Type = "vision"
)

// IsValid checks if the type is one of the supported values.
func (t Type) IsValid() bool {
	return t == Text || t == Embedding || t == Vision
}
