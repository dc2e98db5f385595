package nlu

import "time"

// IntentClassification names an intent together with the resolver's
// confidence in it.
type IntentClassification struct {
	Name       string  `json:"intentName"`
	Confidence float64 `json:"confidenceScore"`
}

// IntentMessage is the result of a successful resolution: the top-ranked
// intent, bounded alternatives, and the slots extracted from the utterance.
type IntentMessage struct {
	// SessionID is the dialogue session the resolution belongs to. Filled in
	// by the session manager, not by the resolver.
	SessionID string `json:"sessionId"`

	// Input is the transcript the resolution ran against.
	Input string `json:"input"`

	// Intent is the top-ranked classification.
	Intent IntentClassification `json:"intent"`

	// Alternatives are lower-ranked intent candidates, best first, bounded by
	// the resolver's configured maximum.
	Alternatives []IntentClassification `json:"alternatives,omitempty"`

	// Slots are the typed spans supporting the resolved intent.
	Slots []Slot `json:"slots,omitempty"`
}

// Slot is a typed named span extracted from the utterance.
type Slot struct {
	// Name is the slot name from the intent definition.
	Name string `json:"slotName"`

	// Entity is the entity type the value was matched against.
	Entity string `json:"entity"`

	// RawValue is the verbatim substring of the utterance the slot covers.
	RawValue string `json:"rawValue"`

	// Value is the resolved, typed payload.
	Value SlotValue `json:"value"`

	// Confidence scores the match (0.0 to 1.0).
	Confidence float64 `json:"confidenceScore"`

	// Alternatives are lower-ranked resolutions for the same span, bounded by
	// the resolver's configured maximum.
	Alternatives []SlotCandidate `json:"alternatives,omitempty"`
}

// SlotCandidate is an alternative resolution for a slot span.
type SlotCandidate struct {
	Value      SlotValue `json:"value"`
	Confidence float64   `json:"confidenceScore"`
}

// SlotValue is the closed set of typed slot payloads. Exactly four kinds
// exist: [CustomValue], [InstantTimeValue], [DurationValue] and
// [NumberValue]. Resolution sites switch exhaustively over these.
type SlotValue interface {
	// Kind discriminates the concrete payload type.
	Kind() SlotKind
}

// SlotKind discriminates SlotValue payloads.
type SlotKind string

const (
	SlotKindCustom      SlotKind = "Custom"
	SlotKindInstantTime SlotKind = "InstantTime"
	SlotKindDuration    SlotKind = "Duration"
	SlotKindNumber      SlotKind = "Number"
)

// Grain is the resolution of an instant-time value.
type Grain string

const (
	GrainYear   Grain = "Year"
	GrainMonth  Grain = "Month"
	GrainWeek   Grain = "Week"
	GrainDay    Grain = "Day"
	GrainHour   Grain = "Hour"
	GrainMinute Grain = "Minute"
	GrainSecond Grain = "Second"
)

// Precision tells whether an instant-time value is exact or approximate.
type Precision string

const (
	PrecisionExact       Precision = "Exact"
	PrecisionApproximate Precision = "Approximate"
)

// CustomValue is a gazetteer-resolved string value.
type CustomValue struct {
	Value string `json:"value"`
}

func (CustomValue) Kind() SlotKind { return SlotKindCustom }

// InstantTimeValue is a point in time with its grain and precision.
type InstantTimeValue struct {
	Value     time.Time `json:"value"`
	Grain     Grain     `json:"grain"`
	Precision Precision `json:"precision"`
}

func (InstantTimeValue) Kind() SlotKind { return SlotKindInstantTime }

// DurationValue is a span of time.
type DurationValue struct {
	Value time.Duration `json:"value"`
}

func (DurationValue) Kind() SlotKind { return SlotKindDuration }

// NumberValue is a numeric quantity.
type NumberValue struct {
	Value float64 `json:"value"`
}

func (NumberValue) Kind() SlotKind { return SlotKindNumber }
