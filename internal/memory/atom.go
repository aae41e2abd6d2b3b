package memory

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

// MaxContentLength is the character limit for atom content.
const MaxContentLength = 500

// Type classifies what kind of user knowledge an atom captures.
type Type string

const (
	TypeIdentity      Type = "identity"      // who the user is
	TypeValue         Type = "value"         // what the user believes
	TypeThinking      Type = "thinking"      // how the user reasons
	TypePreference    Type = "preference"    // what the user prefers
	TypeCommunication Type = "communication" // how the user communicates
)

// Types lists all atom types in injection priority order.
func Types() []Type {
	return []Type{TypeIdentity, TypeValue, TypeThinking, TypePreference, TypeCommunication}
}

// Valid reports whether t is a recognized atom type.
func (t Type) Valid() bool {
	switch t {
	case TypeIdentity, TypeValue, TypeThinking, TypePreference, TypeCommunication:
		return true
	}
	return false
}

// Tier is an atom's lifecycle stage. Each tier has its own decay rate,
// confidence floor, and inactivity window. Atoms only move up (or out).
type Tier string

const (
	TierShortTerm Tier = "short_term"
	TierWorking   Tier = "working"
	TierLongTerm  Tier = "long_term"
)

// Tiers lists all tiers from lowest to highest.
func Tiers() []Tier {
	return []Tier{TierShortTerm, TierWorking, TierLongTerm}
}

// Valid reports whether t is a recognized tier.
func (t Tier) Valid() bool {
	return t.Index() >= 0
}

// Index returns the tier's rank (short_term=0, working=1, long_term=2),
// or -1 for an unknown tier.
func (t Tier) Index() int {
	switch t {
	case TierShortTerm:
		return 0
	case TierWorking:
		return 1
	case TierLongTerm:
		return 2
	}
	return -1
}

// Atom is the smallest persisted unit of inferred user knowledge.
//
// Confidence always holds the value as of the later of LastTriggeredAt and
// DecayedAt. Because exponential decay composes, re-materializing the decayed
// value with a fresh DecayedAt stamp is exact: decay never compounds.
type Atom struct {
	ID                 string    `json:"id"`
	Type               Type      `json:"type"`
	Content            string    `json:"content"`
	Confidence         float64   `json:"confidence"`
	Tier               Tier      `json:"tier"`
	CreatedAt          time.Time `json:"created_at"`
	LastTriggeredAt    time.Time `json:"last_triggered_at"`
	DecayedAt          time.Time `json:"decayed_at,omitempty"`
	TriggerCount       int       `json:"trigger_count"`
	SourceSessionID    string    `json:"source_session_id"`
	Tags               []string  `json:"tags,omitempty"`
	RelatedPrincipleID string    `json:"related_principle_id,omitempty"`
}

// New creates a short-term atom with a fresh ID and current timestamps.
// The extractor collaborator is expected to call this (or supply an
// equivalent well-formed atom).
func New(typ Type, content string, confidence float64, sourceSessionID string) *Atom {
	now := time.Now()
	return &Atom{
		ID:              uuid.NewString(),
		Type:            typ,
		Content:         content,
		Confidence:      confidence,
		Tier:            TierShortTerm,
		CreatedAt:       now,
		LastTriggeredAt: now,
		SourceSessionID: sourceSessionID,
	}
}

// Validate checks the atom's structural invariants.
func (a *Atom) Validate() error {
	if a.ID == "" {
		return &ValidationError{Field: "id", Reason: "empty"}
	}
	if !a.Type.Valid() {
		return &ValidationError{Field: "type", Reason: fmt.Sprintf("unrecognized type %q", a.Type)}
	}
	if !a.Tier.Valid() {
		return &ValidationError{Field: "tier", Reason: fmt.Sprintf("unrecognized tier %q", a.Tier)}
	}
	if a.Confidence < 0 || a.Confidence > 1 {
		return &ValidationError{Field: "confidence", Reason: fmt.Sprintf("%.3f outside [0,1]", a.Confidence)}
	}
	if len([]rune(a.Content)) > MaxContentLength {
		return &ValidationError{Field: "content", Reason: fmt.Sprintf("exceeds %d characters", MaxContentLength)}
	}
	if a.TriggerCount < 0 {
		return &ValidationError{Field: "trigger_count", Reason: "negative"}
	}
	return nil
}

// confidenceBasis returns the instant the stored confidence was last written:
// the later of LastTriggeredAt and DecayedAt.
func (a *Atom) confidenceBasis() time.Time {
	if a.DecayedAt.After(a.LastTriggeredAt) {
		return a.DecayedAt
	}
	return a.LastTriggeredAt
}
