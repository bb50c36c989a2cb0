package run

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"sort"

	"github.com/ValentinKolb/dFlux/lib/docstore"
	"github.com/ValentinKolb/dFlux/lib/getter"
	"github.com/ValentinKolb/dFlux/lib/immutable"
	"github.com/ValentinKolb/dFlux/lib/reactor"
	"gopkg.in/yaml.v3"
)

// --------------------------------------------------------------------------
// Scenario File
// --------------------------------------------------------------------------

// Scenario describes a replayable session: document stores, derived values,
// observed paths and the steps to run
type Scenario struct {
	Name    string               `yaml:"name"`
	Stores  map[string]StoreSpec `yaml:"stores"`
	Getters []GetterSpec         `yaml:"getters"`
	Observe []string             `yaml:"observe"`
	Steps   []Step               `yaml:"steps"`
}

// StoreSpec configures one document store
type StoreSpec struct {
	Initial any `yaml:"initial"`
}

// GetterSpec defines a named getter over one key path. Op is one of
// count, sum or keys.
type GetterSpec struct {
	Name string `yaml:"name"`
	Op   string `yaml:"op"`
	Path string `yaml:"path"`
}

// Step is one entry of the scenario. Exactly one of Dispatch, Batch,
// Evaluate and Reset is set.
type Step struct {
	Dispatch    string `yaml:"dispatch"`
	Payload     any    `yaml:"payload"`
	Batch       []Step `yaml:"batch"`
	Evaluate    string `yaml:"evaluate"`
	Reset       bool   `yaml:"reset"`
	ExpectError bool   `yaml:"expect_error"`
}

// LoadScenario reads a scenario from a YAML file
func LoadScenario(path string) (*Scenario, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return ParseScenario(b)
}

// ParseScenario decodes a YAML scenario
func ParseScenario(b []byte) (*Scenario, error) {
	var s Scenario
	if err := yaml.Unmarshal(b, &s); err != nil {
		return nil, fmt.Errorf("invalid scenario: %w", err)
	}
	if len(s.Stores) == 0 {
		return nil, fmt.Errorf("invalid scenario: no stores defined")
	}
	for i, step := range s.Steps {
		if err := step.validate(); err != nil {
			return nil, fmt.Errorf("invalid scenario: step %d: %w", i+1, err)
		}
	}
	return &s, nil
}

func (s Step) validate() error {
	set := 0
	if s.Dispatch != "" {
		set++
	}
	if len(s.Batch) > 0 {
		set++
	}
	if s.Evaluate != "" {
		set++
	}
	if s.Reset {
		set++
	}
	if set != 1 {
		return fmt.Errorf("exactly one of dispatch, batch, evaluate and reset must be set")
	}
	for i, inner := range s.Batch {
		if inner.Dispatch == "" {
			return fmt.Errorf("batch entry %d: only dispatches may be batched", i+1)
		}
	}
	return nil
}

// --------------------------------------------------------------------------
// Runner
// --------------------------------------------------------------------------

// Runner replays a scenario against a reactor and writes every observed
// change and evaluation to out
type Runner struct {
	scenario *Scenario
	reactor  *reactor.Reactor
	getters  map[string]*getter.Getter
	out      io.Writer
}

// NewRunner creates the reactor, registers the document stores and getters
// and starts observing
func NewRunner(s *Scenario, config *reactor.Config, out io.Writer) (*Runner, error) {
	r := &Runner{
		scenario: s,
		reactor:  reactor.New(config),
		getters:  make(map[string]*getter.Getter),
		out:      out,
	}

	stores := make(map[string]reactor.Store, len(s.Stores))
	for id, spec := range s.Stores {
		stores[id] = docstore.New(id, spec.Initial)
	}
	if err := r.reactor.RegisterStores(stores); err != nil {
		return nil, err
	}

	for _, spec := range s.Getters {
		g, err := buildGetter(spec)
		if err != nil {
			return nil, err
		}
		r.getters[spec.Name] = g
	}

	if err := r.observe(); err != nil {
		return nil, err
	}
	return r, nil
}

// observe subscribes to every observed name of the scenario
func (r *Runner) observe() error {
	for _, name := range r.scenario.Observe {
		name := name
		if _, err := r.reactor.Observe(r.resolve(name), func(v any) {
			r.printf("observe  %s = %s\n", name, render(v))
		}); err != nil {
			return err
		}
	}
	return nil
}

// Reactor returns the reactor the scenario runs on
func (r *Runner) Reactor() *reactor.Reactor {
	return r.reactor
}

// Run executes all steps. A failing step aborts the run unless it is
// marked with expect_error.
func (r *Runner) Run() error {
	log.Infof("Running scenario %q (%d steps)", r.scenario.Name, len(r.scenario.Steps))
	for i, step := range r.scenario.Steps {
		err := r.runStep(step)
		switch {
		case err != nil && step.ExpectError:
			r.printf("error    %v (expected)\n", err)
		case err != nil:
			return fmt.Errorf("step %d: %w", i+1, err)
		case step.ExpectError:
			return fmt.Errorf("step %d: expected an error", i+1)
		}
	}
	return nil
}

func (r *Runner) runStep(step Step) error {
	switch {
	case step.Dispatch != "":
		r.printf("dispatch %s\n", step.Dispatch)
		return r.reactor.Dispatch(step.Dispatch, step.Payload)

	case len(step.Batch) > 0:
		r.printf("batch    %d dispatches\n", len(step.Batch))
		return r.reactor.Batch(func() error {
			for _, inner := range step.Batch {
				r.printf("dispatch %s\n", inner.Dispatch)
				if err := r.reactor.Dispatch(inner.Dispatch, inner.Payload); err != nil {
					return err
				}
			}
			return nil
		})

	case step.Evaluate != "":
		v, err := r.reactor.Evaluate(r.resolve(step.Evaluate))
		if err != nil {
			return err
		}
		r.printf("evaluate %s = %s\n", step.Evaluate, render(v))
		return nil

	case step.Reset:
		r.printf("reset\n")
		if err := r.reactor.Reset(); err != nil {
			return err
		}
		// reset drops all observers
		return r.observe()
	}
	return nil
}

// resolve returns the named getter or parses name as a dotted key path
func (r *Runner) resolve(name string) getter.Dependency {
	if g, ok := r.getters[name]; ok {
		return g
	}
	return getter.ParseKeyPath(name)
}

func (r *Runner) printf(format string, args ...any) {
	_, _ = fmt.Fprintf(r.out, format, args...)
}

// render prints a value as compact JSON
func render(v any) string {
	b, err := json.Marshal(immutable.ToNative(v))
	if err != nil {
		return fmt.Sprintf("%v", v)
	}
	return string(b)
}

// --------------------------------------------------------------------------
// Getters
// --------------------------------------------------------------------------

func buildGetter(spec GetterSpec) (*getter.Getter, error) {
	if spec.Name == "" {
		return nil, fmt.Errorf("getter without name")
	}
	path := getter.ParseKeyPath(spec.Path)

	var fn getter.ComputeFunc
	switch spec.Op {
	case "count":
		fn = func(args ...any) (any, error) {
			switch c := args[0].(type) {
			case *immutable.Vector:
				return c.Len(), nil
			case *immutable.Map:
				return c.Len(), nil
			case nil:
				return 0, nil
			}
			return nil, fmt.Errorf("%s: cannot count %T", spec.Name, args[0])
		}
	case "sum":
		fn = func(args ...any) (any, error) {
			var sum float64
			var err error
			if v, ok := args[0].(*immutable.Vector); ok {
				v.Range(func(_ int, e any) bool {
					f, ok := toFloat(e)
					if !ok {
						err = fmt.Errorf("%s: cannot sum %T", spec.Name, e)
						return false
					}
					sum += f
					return true
				})
			}
			return sum, err
		}
	case "keys":
		fn = func(args ...any) (any, error) {
			m, ok := args[0].(*immutable.Map)
			if !ok {
				return immutable.EmptyVector(), nil
			}
			keys := make([]string, 0, m.Len())
			for _, k := range m.Keys() {
				keys = append(keys, fmt.Sprint(k))
			}
			sort.Strings(keys)
			return immutable.FromNative(keys), nil
		}
	default:
		return nil, fmt.Errorf("getter %s: unknown op %q (expected count, sum or keys)", spec.Name, spec.Op)
	}

	return getter.Named(spec.Name, fn, path), nil
}

func toFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	case float64:
		return n, true
	}
	return 0, false
}
