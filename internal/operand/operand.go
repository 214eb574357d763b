// Package operand names the metrics that requirements and the optimiser
// consume. Each operand has a fixed parameter signature and evaluates
// against one prepared configuration.
package operand

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sort"
	"strconv"
	"strings"
	"sync"

	"github.com/banshee-data/lens.design/internal/config"
	"github.com/banshee-data/lens.design/internal/optics"
	"github.com/banshee-data/lens.design/internal/progress"
	"github.com/banshee-data/lens.design/internal/raytrace"
)

var (
	// ErrUnknownOperand is returned for names missing from the registry.
	ErrUnknownOperand = errors.New("unknown operand")
	// ErrTraceFailed marks evaluations that could not ray-trace.
	ErrTraceFailed = errors.New("trace failed")
	// ErrBadParameter is returned for malformed operand parameters.
	ErrBadParameter = errors.New("bad operand parameter")
)

// FailSentinel is the value reported for an evaluation that failed.
const FailSentinel = 1e9

// Env is one configuration prepared for evaluation. Results of expensive
// analyses are memoised for the lifetime of the Env.
type Env struct {
	Model    *raytrace.Model
	Resolver optics.IndexResolver
	Config   *config.EngineConfig
	Progress progress.Func

	mu   sync.Mutex
	memo map[string]memoEntry
}

type memoEntry struct {
	v   interface{}
	err error
}

// NewEnv wraps a model. A nil cfg uses defaults.
func NewEnv(m *raytrace.Model, r optics.IndexResolver, cfg *config.EngineConfig) *Env {
	if cfg == nil {
		cfg = config.DefaultEngineConfig()
	}
	return &Env{Model: m, Resolver: r, Config: cfg}
}

// Memo runs fn once per key and caches its outcome. Cancellations are not
// cached so a later run can retry.
func (e *Env) Memo(key string, fn func() (interface{}, error)) (interface{}, error) {
	e.mu.Lock()
	if e.memo == nil {
		e.memo = make(map[string]memoEntry)
	}
	if m, ok := e.memo[key]; ok {
		e.mu.Unlock()
		return m.v, m.err
	}
	e.mu.Unlock()
	v, err := fn()
	if err != nil && errors.Is(err, progress.ErrCancelled) {
		return v, err
	}
	e.mu.Lock()
	e.memo[key] = memoEntry{v, err}
	e.mu.Unlock()
	return v, err
}

// Sentinel returns the configured failure value.
func (e *Env) Sentinel() float64 {
	if e == nil || e.Config == nil {
		return FailSentinel
	}
	return e.Config.GetFailSentinel()
}

// Params are the positional operand arguments (param1…param5), kept as the
// strings they were persisted as.
type Params []string

// Raw returns argument i (zero-based) or "".
func (p Params) Raw(i int) string {
	if i < 0 || i >= len(p) {
		return ""
	}
	return strings.TrimSpace(p[i])
}

// Int parses argument i, returning def when it is blank.
func (p Params) Int(i, def int) (int, error) {
	s := p.Raw(i)
	if s == "" {
		return def, nil
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil || f != math.Trunc(f) {
		return 0, fmt.Errorf("%w: param%d %q is not an integer", ErrBadParameter, i+1, s)
	}
	return int(f), nil
}

// Float parses argument i, returning def when it is blank.
func (p Params) Float(i int, def float64) (float64, error) {
	s := p.Raw(i)
	if s == "" {
		return def, nil
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, fmt.Errorf("%w: param%d %q is not a number", ErrBadParameter, i+1, s)
	}
	return f, nil
}

// String returns argument i lower-cased, or def when blank.
func (p Params) String(i int, def string) string {
	if s := p.Raw(i); s != "" {
		return strings.ToLower(s)
	}
	return def
}

// ParamSpec documents one positional argument.
type ParamSpec struct {
	Name    string `json:"name"`
	Default string `json:"default,omitempty"`
	Help    string `json:"help,omitempty"`
}

// Definition describes a registered operand.
type Definition struct {
	Name        string      `json:"name"`
	Description string      `json:"description"`
	Units       string      `json:"units,omitempty"`
	Params      []ParamSpec `json:"params,omitempty"`
	// Eval computes the operand value.
	Eval func(ctx context.Context, env *Env, p Params) (float64, error) `json:"-"`
}

// Info is a summary of a registered operand.
type Info struct {
	Name        string      `json:"name"`
	Description string      `json:"description"`
	Units       string      `json:"units,omitempty"`
	Params      []ParamSpec `json:"params,omitempty"`
}

// Registry holds operand definitions by upper-case name.
type Registry struct {
	mu       sync.RWMutex
	operands map[string]*Definition
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{operands: make(map[string]*Definition)}
}

// Register adds def, replacing any operand with the same name.
func (r *Registry) Register(def *Definition) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.operands[strings.ToUpper(def.Name)] = def
}

// Get retrieves an operand by name, ignoring case.
func (r *Registry) Get(name string) (*Definition, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	def, ok := r.operands[strings.ToUpper(strings.TrimSpace(name))]
	return def, ok
}

// List returns every operand sorted by name.
func (r *Registry) List() []Info {
	r.mu.RLock()
	defer r.mu.RUnlock()
	infos := make([]Info, 0, len(r.operands))
	for _, def := range r.operands {
		infos = append(infos, Info{Name: def.Name, Description: def.Description, Units: def.Units, Params: def.Params})
	}
	sort.Slice(infos, func(i, j int) bool { return infos[i].Name < infos[j].Name })
	return infos
}

// Evaluate runs the named operand. On any failure it returns the Env
// sentinel together with the error; non-finite results are returned as is
// for the caller to classify.
func (r *Registry) Evaluate(ctx context.Context, env *Env, name string, p Params) (float64, error) {
	def, ok := r.Get(name)
	if !ok {
		return env.Sentinel(), fmt.Errorf("%w: %q", ErrUnknownOperand, name)
	}
	v, err := def.Eval(ctx, env, p)
	if err != nil {
		return env.Sentinel(), fmt.Errorf("%s: %w", def.Name, err)
	}
	return v, nil
}

var (
	defaultOnce sync.Once
	defaultReg  *Registry
)

// Default returns the shared registry of built-in operands.
func Default() *Registry {
	defaultOnce.Do(func() { defaultReg = Builtin() })
	return defaultReg
}
