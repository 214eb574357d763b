package glass

import (
	"fmt"
	"sort"

	"github.com/banshee-data/lens.design/internal/monitoring"
)

// Source is one named glass catalog. It is read-only once built.
type Source struct {
	Name      string
	materials map[string]Material
}

// NewSource builds a source from entries. Later duplicates replace earlier ones.
func NewSource(name string, entries []Material) *Source {
	s := &Source{Name: name, materials: make(map[string]Material, len(entries))}
	for _, m := range entries {
		s.materials[normalizeName(m.Name)] = m
	}
	return s
}

// Get looks up a material by case-insensitive name.
func (s *Source) Get(name string) (Material, bool) {
	m, ok := s.materials[normalizeName(name)]
	return m, ok
}

// Len returns the number of entries.
func (s *Source) Len() int { return len(s.materials) }

// Materials returns all entries sorted by name.
func (s *Source) Materials() []Material {
	out := make([]Material, 0, len(s.materials))
	for _, m := range s.materials {
		out = append(out, m)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// Catalog resolves names across ordered sources. One Catalog is one warning
// session: each unknown or coefficient-less material is reported once.
type Catalog struct {
	sources []*Source
	warn    monitoring.Once
}

// NewCatalog searches sources in the given order.
func NewCatalog(sources ...*Source) *Catalog {
	return &Catalog{sources: sources}
}

// DefaultCatalog returns the built-in miscellaneous, Ohara and Schott sources.
func DefaultCatalog() *Catalog {
	return NewCatalog(Misc, Ohara, Schott)
}

// Sources returns the search order.
func (c *Catalog) Sources() []*Source {
	return append([]*Source(nil), c.sources...)
}

// Lookup returns the first matching material and the source it came from.
func (c *Catalog) Lookup(name string) (Material, string, bool) {
	for _, s := range c.sources {
		if m, ok := s.Get(name); ok {
			return m, s.Name, true
		}
	}
	return Material{}, "", false
}

// Resolves reports whether name is AIR or present in some source.
func (c *Catalog) Resolves(name string) bool {
	if IsAir(name) {
		return true
	}
	_, _, ok := c.Lookup(name)
	return ok
}

// IndexAt returns the refractive index of material at lambdaUM micrometres.
// Unknown materials return 1.0 together with ErrUnknownMaterial.
func (c *Catalog) IndexAt(material string, lambdaUM float64) (float64, error) {
	if err := checkWavelength(lambdaUM); err != nil {
		return 0, err
	}
	if IsAir(material) {
		return 1.0, nil
	}
	m, src, ok := c.Lookup(material)
	if !ok {
		c.warn.Warnf(monitoring.Keyf("unknown:%s", normalizeName(material)), "glass: unknown material %q, using n=1.0", material)
		return 1.0, fmt.Errorf("%w: %s", ErrUnknownMaterial, material)
	}
	n, fellBack, err := m.Index(lambdaUM)
	if err != nil {
		return 0, fmt.Errorf("glass %s/%s: %w", src, m.Name, err)
	}
	if fellBack {
		c.warn.Warnf(monitoring.Keyf("nd:%s/%s", src, normalizeName(material)), "glass: %s/%s has no Sellmeier coefficients, using nd=%.5f", src, m.Name, m.Nd)
	}
	return n, nil
}

// ResetWarnings starts a new warning session.
func (c *Catalog) ResetWarnings() { c.warn.Reset() }

// Abbe returns (n_d − 1)/(n_F − n_C) computed from dispersion, or the stored
// vd when coefficients are missing.
func (c *Catalog) Abbe(material string) (float64, error) {
	m, _, ok := c.Lookup(material)
	if !ok {
		return 0, fmt.Errorf("%w: %s", ErrUnknownMaterial, material)
	}
	if !m.HasDispersion() {
		return m.Vd, nil
	}
	nd, err := m.Sellmeier.Index(Lined)
	if err != nil {
		return 0, err
	}
	nf, err := m.Sellmeier.Index(LineF)
	if err != nil {
		return 0, err
	}
	nc, err := m.Sellmeier.Index(LineC)
	if err != nil {
		return 0, err
	}
	return (nd - 1) / (nf - nc), nil
}
