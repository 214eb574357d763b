// Package engine is the explicit context the core runs in: the glass
// catalog, tuning config, operand registry and the expansion cache. It turns
// a design document into prepared configurations and fronts the analyses.
package engine

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"sync"

	"github.com/banshee-data/lens.design/internal/blocks"
	"github.com/banshee-data/lens.design/internal/config"
	"github.com/banshee-data/lens.design/internal/design"
	"github.com/banshee-data/lens.design/internal/glass"
	"github.com/banshee-data/lens.design/internal/monitoring"
	"github.com/banshee-data/lens.design/internal/operand"
	"github.com/banshee-data/lens.design/internal/optics"
	"github.com/banshee-data/lens.design/internal/progress"
	"github.com/banshee-data/lens.design/internal/raytrace"
)

var (
	// ErrNoConfiguration is returned for documents without configurations.
	ErrNoConfiguration = errors.New("document has no configurations")
	// ErrFatalExpansion is returned when a configuration cannot be expanded.
	ErrFatalExpansion = errors.New("fatal expansion")
)

// Engine holds the process-wide read-only state and the expansion cache.
// It is safe for concurrent use.
type Engine struct {
	Catalog  *glass.Catalog
	Config   *config.EngineConfig
	Registry *operand.Registry
	// Progress receives reports from prepared configurations.
	Progress progress.Func

	mu    sync.Mutex
	cache map[cacheKey]cached
}

type cacheKey struct {
	configID string
	blocks   string
	scenario string
	// settings are the config fields that change an expansion.
	settings string
}

type cached struct {
	exp        blocks.Expansion
	importMode bool
}

// New creates an engine. Nil arguments select the built-in catalog, the
// default tuning and the built-in operands.
func New(cat *glass.Catalog, cfg *config.EngineConfig) *Engine {
	if cat == nil {
		cat = glass.DefaultCatalog()
	}
	if cfg == nil {
		cfg = config.DefaultEngineConfig()
	}
	return &Engine{Catalog: cat, Config: cfg, Registry: operand.Default(), cache: make(map[cacheKey]cached)}
}

// Operands returns the registry requirements are evaluated against.
func (e *Engine) Operands() *operand.Registry { return e.Registry }

// ClearCache drops every cached expansion. Callers that mutate blocks in
// place must call it.
func (e *Engine) ClearCache() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.cache = make(map[cacheKey]cached)
}

// CacheLen reports the number of cached expansions.
func (e *Engine) CacheLen() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return len(e.cache)
}

func hash(v interface{}) (string, error) {
	b, err := json.Marshal(v)
	if err != nil {
		return "", err
	}
	sum := sha256.Sum256(b)
	return hex.EncodeToString(sum[:]), nil
}

// keyFor reports false when the configuration cannot be hashed; such
// configurations are expanded on every call.
func (e *Engine) keyFor(c design.Configuration) (cacheKey, bool) {
	var in interface{} = c.Blocks
	if e.Config.GetPreserveLegacySemiDia() || len(c.Blocks) == 0 {
		in = []interface{}{c.Blocks, c.OpticalSystem}
	}
	b, err := hash(in)
	if err != nil {
		return cacheKey{}, false
	}
	s, err := hash(c.ActiveOverrides())
	if err != nil {
		return cacheKey{}, false
	}
	settings := fmt.Sprintf("%t/%g", e.Config.GetPreserveLegacySemiDia(), e.Config.GetDefaultSemiDiameter())
	return cacheKey{configID: c.ID, blocks: b, scenario: s, settings: settings}, true
}

// Expand returns the expansion of c under its active scenario. A
// configuration without blocks is in import mode and is read from its
// surface rows.
func (e *Engine) Expand(c design.Configuration) (blocks.Expansion, bool, error) {
	key, cacheable := e.keyFor(c)
	if cacheable {
		e.mu.Lock()
		hit, ok := e.cache[key]
		e.mu.Unlock()
		if ok {
			return copyExpansion(hit.exp), hit.importMode, nil
		}
	}

	var (
		exp      blocks.Expansion
		imported bool
	)
	if len(c.Blocks) == 0 && len(c.OpticalSystem) > 0 {
		surfaces, err := design.RowsToSurfaces(c.OpticalSystem)
		if err != nil {
			return blocks.Expansion{}, true, fmt.Errorf("config %s: %w", c.ID, err)
		}
		exp = blocks.Expansion{Surfaces: surfaces}
		imported = true
	} else {
		exp = blocks.Expand(c.Blocks, blocks.Options{
			Overrides:           c.ActiveOverrides(),
			PreserveLegacy:      e.Config.GetPreserveLegacySemiDia(),
			Legacy:              c.OpticalSystem,
			DefaultSemiDiameter: e.Config.GetDefaultSemiDiameter(),
		})
		for _, is := range exp.Issues {
			if is.Severity != blocks.SeverityFatal {
				monitoring.Logf("engine: config %s: %v", c.ID, is)
			}
		}
		if exp.Fatal() {
			return exp, false, fmt.Errorf("%w: config %s: %v", ErrFatalExpansion, c.ID, exp.Err())
		}
	}

	if cacheable {
		e.mu.Lock()
		e.cache[key] = cached{exp: copyExpansion(exp), importMode: imported}
		e.mu.Unlock()
	}
	return exp, imported, nil
}

func copyExpansion(x blocks.Expansion) blocks.Expansion {
	out := blocks.Expansion{Surfaces: optics.Clone(x.Surfaces), Issues: append([]blocks.Issue(nil), x.Issues...)}
	if x.Provenance != nil {
		out.Provenance = make(map[string][]int, len(x.Provenance))
		for k, v := range x.Provenance {
			out.Provenance[k] = append([]int(nil), v...)
		}
	}
	return out
}

// ActiveSurfaces returns the surface sequence of configID, falling back to
// the active configuration for unknown ids. The result is a fresh copy.
func (e *Engine) ActiveSurfaces(doc design.Document, configID string) ([]optics.Surface, error) {
	c, ok := doc.Resolve(configID)
	if !ok {
		return nil, ErrNoConfiguration
	}
	exp, _, err := e.Expand(c)
	if err != nil {
		return nil, err
	}
	return exp.Surfaces, nil
}

// Model builds the traceable model of a configuration.
func (e *Engine) Model(doc design.Document, configID string) (*raytrace.Model, error) {
	c, ok := doc.Resolve(configID)
	if !ok {
		return nil, ErrNoConfiguration
	}
	surfaces, err := e.ActiveSurfaces(doc, c.ID)
	if err != nil {
		return nil, err
	}
	if err := optics.Validate(surfaces, nil); err != nil {
		return nil, fmt.Errorf("config %s: %w", c.ID, err)
	}
	wls := c.Wavelengths()
	if err := wls.Validate(); err != nil && len(wls) > 0 {
		return nil, fmt.Errorf("config %s: %w", c.ID, err)
	}
	m, err := raytrace.NewModel(surfaces, wls, c.Fields(), e.Catalog, raytrace.Options{
		MaxIterations: e.Config.GetAsphereMaxIterations(),
		Tolerance:     e.Config.GetAsphereTolerance(),
	})
	if err != nil {
		return nil, fmt.Errorf("config %s: %w", c.ID, err)
	}
	return m, nil
}

// Prepare builds an operand environment for one configuration. Each call
// starts a fresh memo.
func (e *Engine) Prepare(doc design.Document, configID string) (*operand.Env, error) {
	m, err := e.Model(doc, configID)
	if err != nil {
		return nil, err
	}
	env := operand.NewEnv(m, e.Catalog, e.Config)
	env.Progress = e.Progress
	return env, nil
}
