package api

import "maps"

type (
	// ExecutionContext carries what the caller knows about the case, the
	// operator, and the authorization they have supplied
	ExecutionContext struct {
		Params        map[string]string `json:"params,omitempty"`
		Authorization *Authorization    `json:"authorization,omitempty"`
		CaseID        string            `json:"caseId,omitempty"`
		Actor         string            `json:"actor,omitempty"`
		Intent        string            `json:"intent,omitempty"`
	}

	// Authorization holds the attestations an operator has made
	Authorization struct {
		TypedPhrases      []string `json:"typedPhrases,omitempty"`
		EvidenceScore     int      `json:"evidenceScore,omitempty"`
		OwnershipAttested bool     `json:"ownershipAttested,omitempty"`
		DeviceAuthorized  bool     `json:"deviceAuthorized,omitempty"`
		Confirmed         bool     `json:"confirmed,omitempty"`
	}
)

// DefaultActor is recorded in audit entries when no actor is supplied
const DefaultActor = "system"

// ActorOrDefault returns the actor, or DefaultActor when none is set
func (c *ExecutionContext) ActorOrDefault() string {
	if c == nil || c.Actor == "" {
		return DefaultActor
	}
	return c.Actor
}

// Clone returns a deep copy of the context
func (c *ExecutionContext) Clone() *ExecutionContext {
	if c == nil {
		return &ExecutionContext{}
	}
	res := *c
	res.Params = maps.Clone(c.Params)
	if c.Authorization != nil {
		a := *c.Authorization
		a.TypedPhrases = append([]string(nil), c.Authorization.TypedPhrases...)
		res.Authorization = &a
	}
	return &res
}

// HasPhrase reports whether the operator typed the given phrase exactly
func (a *Authorization) HasPhrase(phrase string) bool {
	if a == nil {
		return false
	}
	for _, p := range a.TypedPhrases {
		if p == phrase {
			return true
		}
	}
	return false
}
