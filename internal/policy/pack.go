package policy

import (
	"errors"
	"fmt"

	"github.com/Bboy9090/Super-Bobbys-World-of-Secret-Rooms-sub005/pkg/api"
)

// Pack is an immutable set of named gates
type Pack struct {
	gates map[api.GateID]*api.Gate
	order []api.GateID
}

// Built-in gate IDs
const (
	OwnershipAttestation api.GateID = "GATE_OWNERSHIP_ATTESTATION"
	DestructiveConfirm   api.GateID = "GATE_DESTRUCTIVE_CONFIRMATION"
	NoCircumvention      api.GateID = "GATE_NO_CIRCUMVENTION"
	ToolAllowlist        api.GateID = "GATE_TOOL_ALLOWLIST"
	DeviceAuthorization  api.GateID = "GATE_DEVICE_AUTHORIZATION"
	EvidenceCompleteness api.GateID = "GATE_EVIDENCE_COMPLETENESS"
)

// Phrases and thresholds used by the built-in gates
const (
	OwnershipPhrase        = "I CONFIRM AUTHORIZED SERVICE"
	DestructivePhrase      = "ERASE AND RESTORE"
	DefaultEvidenceMinimum = 70
)

var (
	ErrDuplicateGate = errors.New("duplicate gate")
	ErrInvalidGate   = errors.New("invalid gate")
)

var defaultGates = []*api.Gate{
	{
		ID:       OwnershipAttestation,
		Name:     "Ownership Attestation",
		Type:     api.GateOwnershipAttestation,
		Required: true,
		Message:  "Confirm the device owner has authorized this service",
		Requirements: api.GateRequirements{
			TypedPhrase:  OwnershipPhrase,
			CheckboxText: "I confirm I am the owner or have written " +
				"authorization from the owner",
		},
	},
	{
		ID:       DestructiveConfirm,
		Name:     "Destructive Operation Confirmation",
		Type:     api.GateDestructiveConfirm,
		Required: true,
		Message:  "This operation permanently erases device data",
		Requirements: api.GateRequirements{
			TypedPhrase: DestructivePhrase,
		},
	},
	{
		ID:       NoCircumvention,
		Name:     "No Security Circumvention",
		Type:     api.GateBlockedIntent,
		Required: true,
		Message:  "Requests to bypass device security are refused",
		Requirements: api.GateRequirements{
			Keywords: []string{
				"bypass", "exploit", "unlock icloud",
				"activation lock removal", "frp bypass", "mdm bypass",
				"crack", "hack",
			},
		},
	},
	{
		ID:       ToolAllowlist,
		Name:     "Tool Allowlist",
		Type:     api.GateToolAllowlist,
		Required: true,
		Message:  "Only approved device tools may run",
		Requirements: api.GateRequirements{
			AllowedTools: []string{"adb", "fastboot", "ios", "system"},
		},
	},
	{
		ID:       DeviceAuthorization,
		Name:     "Device Authorization",
		Type:     api.GateDeviceAuthorization,
		Required: false,
		Message:  "The device should trust this host (iOS pairing or ADB key)",
	},
	{
		ID:       EvidenceCompleteness,
		Name:     "Evidence Completeness",
		Type:     api.GateEvidenceCompleteness,
		Required: true,
		Message:  "Case evidence must be complete before proceeding",
		Requirements: api.GateRequirements{
			MinimumScore: DefaultEvidenceMinimum,
		},
	},
}

// DefaultPack returns the built-in policy pack
func DefaultPack() *Pack {
	p, err := NewPack(defaultGates...)
	if err != nil {
		panic(err)
	}
	return p
}

// NewPack builds a pack from the given gates
func NewPack(gates ...*api.Gate) (*Pack, error) {
	res := &Pack{gates: make(map[api.GateID]*api.Gate, len(gates))}
	for _, g := range gates {
		if g == nil || g.ID == "" || g.Type == "" {
			return nil, ErrInvalidGate
		}
		if _, ok := res.gates[g.ID]; ok {
			return nil, fmt.Errorf("%w: %s", ErrDuplicateGate, g.ID)
		}
		res.gates[g.ID] = g.Clone()
		res.order = append(res.order, g.ID)
	}
	return res, nil
}

// Contains reports whether the pack defines the gate
func (p *Pack) Contains(id api.GateID) bool {
	_, ok := p.gates[id]
	return ok
}

// Gate returns a copy of the gate with the given ID
func (p *Pack) Gate(id api.GateID) (*api.Gate, bool) {
	g, ok := p.gates[id]
	if !ok {
		return nil, false
	}
	return g.Clone(), true
}

// Gates returns copies of every gate in definition order
func (p *Pack) Gates() []*api.Gate {
	res := make([]*api.Gate, 0, len(p.order))
	for _, id := range p.order {
		res = append(res, p.gates[id].Clone())
	}
	return res
}
