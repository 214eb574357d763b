// Package design holds the serialisable design document: configurations,
// design-intent blocks, scenarios, field and wavelength rows and the legacy
// surface table. Every operation returns fresh values and never mutates its
// input.
package design

import (
	"errors"
	"fmt"
	"math"
	"sort"
	"strings"

	"github.com/banshee-data/lens.design/internal/optics"
)

// ErrSchemaMismatch is returned for documents with an unknown schema version.
var ErrSchemaMismatch = errors.New("schema mismatch")

// ErrUnknownScenario is returned by WithOverrides for a missing scenario id.
var ErrUnknownScenario = errors.New("unknown scenario")

// Variable is an optimiser hint attached to a block parameter.
type Variable struct {
	Value interface{} `json:"value"`
	Min   *float64    `json:"min,omitempty"`
	Max   *float64    `json:"max,omitempty"`
}

// Block is a design-intent record as stored in the document.
type Block struct {
	BlockID    string              `json:"blockId"`
	BlockType  string              `json:"blockType"`
	Parameters Params              `json:"parameters"`
	Variables  map[string]Variable `json:"variables,omitempty"`
	Aperture   map[string]float64  `json:"aperture,omitempty"`
}

// Value reads key from parameters first, then from the variable's value.
func (b Block) Value(key string) (interface{}, bool) {
	if v, ok := b.Parameters[key]; ok && v != nil {
		return v, true
	}
	if v, ok := b.Variables[key]; ok && v.Value != nil {
		return v.Value, true
	}
	return nil, false
}

// Clone returns a deep copy.
func (b Block) Clone() Block {
	out := b
	out.Parameters = b.Parameters.Clone()
	if b.Variables != nil {
		out.Variables = make(map[string]Variable, len(b.Variables))
		for k, v := range b.Variables {
			if v.Min != nil {
				m := *v.Min
				v.Min = &m
			}
			if v.Max != nil {
				m := *v.Max
				v.Max = &m
			}
			out.Variables[k] = v
		}
	}
	if b.Aperture != nil {
		out.Aperture = make(map[string]float64, len(b.Aperture))
		for k, v := range b.Aperture {
			out.Aperture[k] = v
		}
	}
	return out
}

// Scenario is a named override set keyed "blockId.paramKey".
type Scenario struct {
	ID        string                 `json:"id"`
	Name      string                 `json:"name"`
	Overrides map[string]interface{} `json:"overrides"`
}

// ObjectRow is one field point row.
type ObjectRow struct {
	ID   int    `json:"id"`
	Type string `json:"type"`
	X    Num    `json:"x"`
	Y    Num    `json:"y"`
}

// SourceRow is one wavelength row in micrometres.
type SourceRow struct {
	ID         int     `json:"id"`
	Wavelength Num     `json:"wavelength"`
	Weight     Num     `json:"weight"`
	Primary    Primary `json:"primary"`
}

// Configuration is the design at one operating condition.
type Configuration struct {
	ID               string                 `json:"id"`
	Name             string                 `json:"name"`
	Blocks           []Block                `json:"blocks"`
	Scenarios        []Scenario             `json:"scenarios,omitempty"`
	ActiveScenarioID string                 `json:"activeScenarioId,omitempty"`
	OpticalSystem    []SurfaceRow           `json:"opticalSystem,omitempty"`
	Object           []ObjectRow            `json:"object"`
	Source           []SourceRow            `json:"source"`
	Metadata         map[string]interface{} `json:"metadata,omitempty"`
}

// Scenario returns the scenario with id.
func (c Configuration) Scenario(id string) (Scenario, bool) {
	for _, s := range c.Scenarios {
		if s.ID == id {
			return s, true
		}
	}
	return Scenario{}, false
}

// ActiveOverrides returns the active scenario's overrides, or nil.
func (c Configuration) ActiveOverrides() map[string]interface{} {
	if c.ActiveScenarioID == "" {
		return nil
	}
	s, ok := c.Scenario(c.ActiveScenarioID)
	if !ok {
		return nil
	}
	return s.Overrides
}

// Wavelengths converts source rows. With no primary marked the first row is primary.
func (c Configuration) Wavelengths() optics.Wavelengths {
	out := make(optics.Wavelengths, 0, len(c.Source))
	hasPrimary := false
	for _, s := range c.Source {
		w := s.Weight.Float()
		if w == 0 {
			w = 1
		}
		p := bool(s.Primary) && !hasPrimary
		hasPrimary = hasPrimary || p
		out = append(out, optics.Wavelength{UM: s.Wavelength.Float(), Weight: w, Primary: p})
	}
	if !hasPrimary && len(out) > 0 {
		out[0].Primary = true
	}
	return out
}

// Fields converts object rows. Unknown types are treated as angles.
func (c Configuration) Fields() optics.Fields {
	out := make(optics.Fields, 0, len(c.Object))
	for _, o := range c.Object {
		ft, _ := optics.ParseFieldType(o.Type)
		out = append(out, optics.Field{Type: ft, X: o.X.Float(), Y: o.Y.Float(), Weight: 1})
	}
	return out
}

// Clone returns a deep copy.
func (c Configuration) Clone() Configuration {
	out := c
	if c.Blocks != nil {
		out.Blocks = make([]Block, len(c.Blocks))
		for i, b := range c.Blocks {
			out.Blocks[i] = b.Clone()
		}
	}
	if c.Scenarios != nil {
		out.Scenarios = make([]Scenario, len(c.Scenarios))
		for i, s := range c.Scenarios {
			s.Overrides = cloneMap(s.Overrides)
			out.Scenarios[i] = s
		}
	}
	out.OpticalSystem = append([]SurfaceRow(nil), c.OpticalSystem...)
	out.Object = append([]ObjectRow(nil), c.Object...)
	out.Source = append([]SourceRow(nil), c.Source...)
	out.Metadata = cloneMap(c.Metadata)
	return out
}

func cloneMap(m map[string]interface{}) map[string]interface{} {
	if m == nil {
		return nil
	}
	out := make(map[string]interface{}, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}

// Document is the root record.
type Document struct {
	SchemaVersion  int             `json:"schemaVersion"`
	Configurations []Configuration `json:"configurations"`
	ActiveConfigID string          `json:"activeConfigId"`
}

// Clone returns a deep copy.
func (d Document) Clone() Document {
	out := d
	if d.Configurations != nil {
		out.Configurations = make([]Configuration, len(d.Configurations))
		for i, c := range d.Configurations {
			out.Configurations[i] = c.Clone()
		}
	}
	return out
}

// Config returns the configuration with id.
func (d Document) Config(id string) (Configuration, bool) {
	for _, c := range d.Configurations {
		if c.ID == id {
			return c, true
		}
	}
	return Configuration{}, false
}

// ConfigByName returns the configuration with a case-insensitive name.
func (d Document) ConfigByName(name string) (Configuration, bool) {
	for _, c := range d.Configurations {
		if strings.EqualFold(c.Name, name) {
			return c, true
		}
	}
	return Configuration{}, false
}

// Active returns the active configuration, or the first one if the active
// id is stale.
func (d Document) Active() (Configuration, bool) {
	if c, ok := d.Config(d.ActiveConfigID); ok {
		return c, true
	}
	if len(d.Configurations) > 0 {
		return d.Configurations[0], true
	}
	return Configuration{}, false
}

// Resolve returns the configuration with id, falling back to the active
// configuration for unknown or empty ids.
func (d Document) Resolve(id string) (Configuration, bool) {
	if id != "" {
		if c, ok := d.Config(id); ok {
			return c, true
		}
	}
	return d.Active()
}

// ConfigIDs returns every configuration id in document order.
func (d Document) ConfigIDs() []string {
	ids := make([]string, len(d.Configurations))
	for i, c := range d.Configurations {
		ids[i] = c.ID
	}
	return ids
}

// ApplyOverrides returns blocks with "blockId.key" overrides written into
// parameters. Numeric-looking values become numbers; others pass through.
// Keys naming unknown blocks are returned as unmatched.
func ApplyOverrides(blocks []Block, overrides map[string]interface{}) ([]Block, []string) {
	out := make([]Block, len(blocks))
	index := make(map[string]int, len(blocks))
	for i, b := range blocks {
		out[i] = b.Clone()
		index[b.BlockID] = i
	}
	keys := make([]string, 0, len(overrides))
	for k := range overrides {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var unmatched []string
	for _, k := range keys {
		dot := strings.LastIndex(k, ".")
		if dot <= 0 || dot == len(k)-1 {
			unmatched = append(unmatched, k)
			continue
		}
		i, ok := index[k[:dot]]
		if !ok {
			unmatched = append(unmatched, k)
			continue
		}
		if out[i].Parameters == nil {
			out[i].Parameters = Params{}
		}
		out[i].Parameters[k[dot+1:]] = Coerce(overrides[k])
	}
	return out, unmatched
}

// WithOverrides returns a copy of doc in which the configuration owning
// scenarioID has that scenario's overrides baked into its blocks. That
// configuration becomes active and its scenario selection is cleared so the
// overrides are not applied twice. The active configuration is searched first.
func WithOverrides(doc Document, scenarioID string) (Document, error) {
	out := doc.Clone()
	order := make([]int, 0, len(out.Configurations))
	for i, c := range out.Configurations {
		if c.ID == out.ActiveConfigID {
			order = append([]int{i}, order...)
		} else {
			order = append(order, i)
		}
	}
	for _, i := range order {
		c := &out.Configurations[i]
		s, ok := c.Scenario(scenarioID)
		if !ok {
			continue
		}
		c.Blocks, _ = ApplyOverrides(c.Blocks, s.Overrides)
		c.ActiveScenarioID = ""
		out.ActiveConfigID = c.ID
		return out, nil
	}
	return Document{}, fmt.Errorf("%w: %s", ErrUnknownScenario, scenarioID)
}

// Primary decodes booleans and the strings "primary"/"true"/"yes".
type Primary bool

// UnmarshalJSON accepts bools, strings and numbers.
func (p *Primary) UnmarshalJSON(b []byte) error {
	s := strings.Trim(strings.ToLower(strings.TrimSpace(string(b))), `"`)
	switch s {
	case "true", "primary", "yes", "1":
		*p = true
	case "false", "", "no", "0", "null":
		*p = false
	default:
		if f, ok := ParseNumber(s); ok && f != 0 && !math.IsNaN(f) {
			*p = true
			return nil
		}
		return fmt.Errorf("invalid primary flag %s", string(b))
	}
	return nil
}
