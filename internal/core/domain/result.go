package domain

import "time"

// Role is the capability an adapter provides to the orchestrator.
type Role string

const (
	RoleDrafting   Role = "drafting"
	RoleValidation Role = "validation"
	RoleQA         Role = "qa"
)

// Roles lists every role in phase order.
var Roles = []Role{RoleDrafting, RoleValidation, RoleQA}

// Valid reports whether r is a known role.
func (r Role) Valid() bool {
	switch r {
	case RoleDrafting, RoleValidation, RoleQA:
		return true
	}
	return false
}

// ErrorKind classifies a failed adapter invocation.
type ErrorKind string

const (
	ErrorKindNone           ErrorKind = ""
	ErrorKindTimeout        ErrorKind = "timeout"
	ErrorKindCanceled       ErrorKind = "canceled"
	ErrorKindNetwork        ErrorKind = "network"
	ErrorKindAuth           ErrorKind = "auth"
	ErrorKindRateLimited    ErrorKind = "rate_limited"
	ErrorKindUpstream       ErrorKind = "upstream"
	ErrorKindParse          ErrorKind = "parse"
	ErrorKindInvalidPayload ErrorKind = "invalid_payload"
)

// QAMode selects how thorough a quality check is.
type QAMode string

const (
	QAModeOff   QAMode = "off"
	QAModeBasic QAMode = "basic"
	QAModeFull  QAMode = "full"
)

// StageInput is what an adapter receives. Adapters treat it as read-only.
type StageInput struct {
	Request *GenerationRequest
	// Draft is set for validation and QA.
	Draft *GeneratedItinerary
	// QAMode is set for QA.
	QAMode QAMode
}

// Payload is a normalized adapter result. The concrete type depends on the role.
type Payload interface {
	PayloadRole() Role
}

// DraftPayload carries a complete itinerary draft.
type DraftPayload struct {
	Itinerary *GeneratedItinerary
}

func (DraftPayload) PayloadRole() Role { return RoleDrafting }

// LocationCorrection is a validator's proposed fix for one activity.
type LocationCorrection struct {
	Day        int     `json:"day"`
	Index      int     `json:"index"`
	Name       string  `json:"name,omitempty"`
	Address    string  `json:"address,omitempty"`
	Note       string  `json:"note,omitempty"`
	Confidence float64 `json:"confidence"`
}

// ValidationPayload carries location corrections for a draft.
type ValidationPayload struct {
	Corrections []LocationCorrection
	Confidence  float64
	Issues      []string
}

func (ValidationPayload) PayloadRole() Role { return RoleValidation }

// QualityPayload carries a quality assessment of a draft.
type QualityPayload struct {
	Score       float64
	Issues      []string
	Suggestions []string
}

func (QualityPayload) PayloadRole() Role { return RoleQA }

// ProviderResult is the outcome of a single adapter invocation.
type ProviderResult struct {
	Provider string
	Role     Role
	Success  bool
	Payload  Payload
	Latency  time.Duration

	ErrorKind ErrorKind
	Detail    string

	PromptTokens     int
	CompletionTokens int
}

// Usable reports whether the result carries a payload the orchestrator can merge.
func (r ProviderResult) Usable() bool {
	return r.Success && r.Payload != nil
}
