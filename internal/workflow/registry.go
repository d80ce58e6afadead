package workflow

import (
	"bytes"
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"slices"
	"sync"

	"github.com/santhosh-tekuri/jsonschema/v5"

	"github.com/Bboy9090/Super-Bobbys-World-of-Secret-Rooms-sub005/pkg/api"
	"github.com/Bboy9090/Super-Bobbys-World-of-Secret-Rooms-sub005/pkg/util"
)

type (
	// Registry holds validated workflow definitions. It is never mutated
	// after Load returns, so concurrent readers need no locking
	Registry struct {
		workflows map[api.WorkflowID]*api.WorkflowDefinition
		catalog   *Catalog
		order     []api.WorkflowID
		version   string
	}

	// GateLookup reports whether a gate ID is known to the policy pack
	GateLookup func(api.GateID) bool

	// Option configures how a manifest is loaded
	Option func(*options)

	options struct {
		catalog *Catalog
		gates   GateLookup
	}
)

var (
	ErrWorkflowNotFound   = errors.New("workflow not found")
	ErrInvalidManifest    = errors.New("invalid manifest")
	ErrSchemaViolation    = errors.New("manifest schema violation")
	ErrDuplicateWorkflow  = errors.New("duplicate workflow ID")
	ErrUnknownAction      = errors.New("unknown action")
	ErrInvalidAction      = errors.New("invalid action")
	ErrActionTypeMismatch = errors.New("action type does not match action")
	ErrUnknownGate        = errors.New("unknown gate")
	ErrMissingValue       = errors.New("missing template value")
	ErrForwardReference   = errors.New("value produced by a later step")
)

var (
	//go:embed schema.json
	schemaJSON []byte

	//go:embed manifest.json
	defaultManifest []byte

	compileSchema = sync.OnceValues(func() (*jsonschema.Schema, error) {
		compiler := jsonschema.NewCompiler()
		err := compiler.AddResource(
			"manifest.json", bytes.NewReader(schemaJSON),
		)
		if err != nil {
			return nil, err
		}
		return compiler.Compile("manifest.json")
	})
)

// WithCatalog sets the base action catalog that manifest actions extend
func WithCatalog(c *Catalog) Option {
	return func(o *options) {
		o.catalog = c
	}
}

// WithGates enables checking that every referenced gate exists
func WithGates(lookup GateLookup) Option {
	return func(o *options) {
		o.gates = lookup
	}
}

// Load reads, validates, and registers every workflow in a manifest
func Load(r io.Reader, opts ...Option) (*Registry, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidManifest, err)
	}
	return parse(data, opts...)
}

// LoadFile loads a manifest from the filesystem
func LoadFile(path string, opts ...Option) (*Registry, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidManifest, err)
	}
	return parse(data, opts...)
}

// LoadDefault loads the manifest compiled into the binary
func LoadDefault(opts ...Option) (*Registry, error) {
	return parse(defaultManifest, opts...)
}

// DefaultManifest returns a copy of the compiled-in manifest document
func DefaultManifest() []byte {
	return slices.Clone(defaultManifest)
}

// Get returns the definition with the given ID. The returned pointer is
// shared and must be treated as read-only
func (r *Registry) Get(id api.WorkflowID) (*api.WorkflowDefinition, error) {
	if def, ok := r.workflows[id]; ok {
		return def, nil
	}
	return nil, fmt.Errorf("%w: %s", ErrWorkflowNotFound, id)
}

// List returns every definition in manifest order
func (r *Registry) List() []*api.WorkflowDefinition {
	res := make([]*api.WorkflowDefinition, 0, len(r.order))
	for _, id := range r.order {
		res = append(res, r.workflows[id])
	}
	return res
}

// ByCategory returns the definitions in a category, in manifest order
func (r *Registry) ByCategory(category string) []*api.WorkflowDefinition {
	var res []*api.WorkflowDefinition
	for _, id := range r.order {
		if def := r.workflows[id]; def.Category == category {
			res = append(res, def)
		}
	}
	return res
}

// Catalog returns the action catalog definitions were validated against
func (r *Registry) Catalog() *Catalog {
	return r.catalog
}

// Version returns the manifest version string
func (r *Registry) Version() string {
	return r.version
}

// Len returns the number of registered workflows
func (r *Registry) Len() int {
	return len(r.order)
}

func parse(data []byte, opts ...Option) (*Registry, error) {
	o := &options{}
	for _, opt := range opts {
		opt(o)
	}
	if o.catalog == nil {
		o.catalog = NewCatalog()
	}

	var raw any
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidManifest, err)
	}

	schema, err := compileSchema()
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidManifest, err)
	}
	if err := schema.Validate(raw); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrSchemaViolation, err)
	}

	var m api.Manifest
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidManifest, err)
	}

	catalog, err := o.catalog.With(m.Actions)
	if err != nil {
		return nil, err
	}

	res := &Registry{
		workflows: make(map[api.WorkflowID]*api.WorkflowDefinition),
		catalog:   catalog,
		version:   m.Version,
	}
	for _, def := range m.Workflows {
		if err := res.add(def, o.gates); err != nil {
			return nil, err
		}
	}
	return res, nil
}

func (r *Registry) add(def *api.WorkflowDefinition, gates GateLookup) error {
	if def == nil {
		return fmt.Errorf("%w: null workflow", ErrInvalidManifest)
	}
	if err := def.Validate(); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidManifest, err)
	}
	if _, ok := r.workflows[def.ID]; ok {
		return fmt.Errorf("%w: %s", ErrDuplicateWorkflow, def.ID)
	}

	outputs := util.Set[string]{}
	for _, s := range def.Steps {
		for _, o := range s.Outputs {
			outputs.Add(o)
		}
	}
	produced := util.Set[string]{}
	for _, s := range def.Steps {
		if err := r.checkAction(def.ID, s); err != nil {
			return err
		}
		if err := r.checkReferences(def.ID, s, outputs, produced); err != nil {
			return err
		}
		for _, o := range s.Outputs {
			produced.Add(o)
		}
	}
	for _, s := range def.RollbackSteps {
		if err := r.checkAction(def.ID, s); err != nil {
			return err
		}
	}

	if gates != nil {
		for _, id := range def.Gates() {
			if !gates(id) {
				return fmt.Errorf("%w: %s in workflow %s",
					ErrUnknownGate, id, def.ID)
			}
		}
	}

	r.workflows[def.ID] = def.Clone()
	r.order = append(r.order, def.ID)
	return nil
}

func (r *Registry) checkAction(wf api.WorkflowID, s *api.WorkflowStep) error {
	action, ok := r.catalog.Lookup(s.ActionID)
	if !ok {
		return fmt.Errorf("%w: %s in step %s of workflow %s",
			ErrUnknownAction, s.ActionID, s.ID, wf)
	}
	system := action.Provider == ProviderSystem
	if system == s.Dispatches() {
		return fmt.Errorf("%w: step %s uses %s as %s",
			ErrActionTypeMismatch, s.ID, s.ActionID, s.ActionType)
	}
	return nil
}

// checkReferences rejects inputs and argument placeholders naming an output
// that only this step or a later one produces. Such a value can never be
// bound when the step runs
func (r *Registry) checkReferences(
	wf api.WorkflowID, s *api.WorkflowStep, outputs, produced util.Set[string],
) error {
	action, _ := r.catalog.Lookup(s.ActionID)
	names := append(slices.Clone(s.Inputs), Placeholders(action.Args)...)
	for _, name := range names {
		if outputs.Contains(name) && !produced.Contains(name) {
			return fmt.Errorf("%w: %s in step %s of workflow %s",
				ErrForwardReference, name, s.ID, wf)
		}
	}
	return nil
}
