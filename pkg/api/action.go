package api

import (
	"errors"
	"fmt"
)

type (
	// ActionSpec binds a catalog actionId to a provider command. Args may
	// hold {name} placeholders resolved from execution params and earlier
	// step outputs
	ActionSpec struct {
		Provider    string   `json:"provider"`
		Command     string   `json:"command"`
		Args        []string `json:"args,omitempty"`
		Description string   `json:"description,omitempty"`
		Destructive bool     `json:"destructive,omitempty"`
	}

	// ActionResult is what a provider reports for one dispatch
	ActionResult struct {
		Outputs    map[string]string `json:"outputs,omitempty"`
		Stdout     string            `json:"stdout,omitempty"`
		Stderr     string            `json:"stderr,omitempty"`
		Error      string            `json:"error,omitempty"`
		ExitCode   int               `json:"exitCode"`
		DurationMs int64             `json:"durationMs"`
		Success    bool              `json:"success"`
	}

	// Manifest is the on-disk document holding workflow definitions and
	// optional catalog extensions
	Manifest struct {
		Version   string                   `json:"version,omitempty"`
		Workflows []*WorkflowDefinition    `json:"workflows"`
		Actions   map[ActionID]*ActionSpec `json:"actions,omitempty"`
	}
)

var (
	ErrActionProviderEmpty = errors.New("action provider empty")
	ErrActionCommandEmpty  = errors.New("action command empty")
)

// Validate checks that the action names a provider and a command
func (a *ActionSpec) Validate(id ActionID) error {
	if a.Provider == "" {
		return fmt.Errorf("%w: %s", ErrActionProviderEmpty, id)
	}
	if a.Command == "" {
		return fmt.Errorf("%w: %s", ErrActionCommandEmpty, id)
	}
	return nil
}

// Failure formats the most specific error text a result carries
func (r *ActionResult) Failure() string {
	switch {
	case r.Error != "":
		return r.Error
	case r.Stderr != "":
		return r.Stderr
	default:
		return fmt.Sprintf("exit code %d", r.ExitCode)
	}
}
