package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
)

// DefaultConfigPath is the path to the canonical engine defaults file.
const DefaultConfigPath = "config/engine.defaults.json"

// Defaults used by the Get* accessors when a field is unset.
const (
	DefaultSpotRays             = 501
	DefaultSpotRings            = 10
	DefaultFanRays              = 21
	DefaultOPDGridSize          = 32
	DefaultOPDTraceGrid         = 0
	MaxOPDGridSize              = 512
	DefaultPSFPadding           = 2
	DefaultZernikeTerms         = 37
	DefaultYieldEveryRays       = 32
	DefaultMinSurvivorFraction  = 0.1
	DefaultSemiDiameter         = 10.0
	DefaultAsphereMaxIterations = 50
	DefaultAsphereTolerance     = 1e-12
	DefaultAstigFieldPoints     = 11
	DefaultFailSentinel         = 1e9
)

// EngineConfig holds tunable analysis parameters. Every field is optional;
// nil fields fall back to the defaults above, so partial files are safe.
type EngineConfig struct {
	// Sampling
	SpotRays  *int `json:"spot_rays,omitempty"`
	SpotRings *int `json:"spot_rings,omitempty"`
	FanRays   *int `json:"fan_rays,omitempty"`

	// Wavefront and PSF
	OPDGridSize *int `json:"opd_grid_size,omitempty"`
	// OPDTraceGrid traces a coarser grid and regrids it to OPDGridSize;
	// 0 traces every cell.
	OPDTraceGrid *int `json:"opd_trace_grid,omitempty"`
	PSFPadding   *int `json:"psf_padding,omitempty"`
	ZernikeTerms *int `json:"zernike_terms,omitempty"`

	// Cooperative scheduling
	YieldEveryRays *int `json:"yield_every_rays,omitempty"`

	// Ray survival and failure handling
	MinSurvivorFraction *float64 `json:"min_survivor_fraction,omitempty"`
	FailSentinel        *float64 `json:"fail_sentinel,omitempty"`

	// Expansion
	PreserveLegacySemiDia *bool    `json:"preserve_legacy_semidia,omitempty"`
	DefaultSemiDiameter   *float64 `json:"default_semi_diameter,omitempty"`

	// Asphere intersection
	AsphereMaxIterations *int     `json:"asphere_max_iterations,omitempty"`
	AsphereTolerance     *float64 `json:"asphere_tolerance,omitempty"`

	// Field curves
	AstigFieldPoints *int `json:"astig_field_points,omitempty"`
}

func ptrFloat64(v float64) *float64 { return &v }
func ptrBool(v bool) *bool          { return &v }
func ptrInt(v int) *int             { return &v }

// EmptyEngineConfig returns an EngineConfig with all fields set to nil.
func EmptyEngineConfig() *EngineConfig {
	return &EngineConfig{}
}

// DefaultEngineConfig returns a config with every field populated.
func DefaultEngineConfig() *EngineConfig {
	return &EngineConfig{
		SpotRays:              ptrInt(DefaultSpotRays),
		SpotRings:             ptrInt(DefaultSpotRings),
		FanRays:               ptrInt(DefaultFanRays),
		OPDGridSize:           ptrInt(DefaultOPDGridSize),
		OPDTraceGrid:          ptrInt(DefaultOPDTraceGrid),
		PSFPadding:            ptrInt(DefaultPSFPadding),
		ZernikeTerms:          ptrInt(DefaultZernikeTerms),
		YieldEveryRays:        ptrInt(DefaultYieldEveryRays),
		MinSurvivorFraction:   ptrFloat64(DefaultMinSurvivorFraction),
		FailSentinel:          ptrFloat64(DefaultFailSentinel),
		PreserveLegacySemiDia: ptrBool(false),
		DefaultSemiDiameter:   ptrFloat64(DefaultSemiDiameter),
		AsphereMaxIterations:  ptrInt(DefaultAsphereMaxIterations),
		AsphereTolerance:      ptrFloat64(DefaultAsphereTolerance),
		AstigFieldPoints:      ptrInt(DefaultAstigFieldPoints),
	}
}

// LoadEngineConfig loads an EngineConfig from a JSON file.
// The file must have a .json extension and be under 1MB.
func LoadEngineConfig(path string) (*EngineConfig, error) {
	cleanPath := filepath.Clean(path)
	if ext := filepath.Ext(cleanPath); ext != ".json" {
		return nil, fmt.Errorf("config file must have .json extension, got %q", ext)
	}

	fileInfo, err := os.Stat(cleanPath)
	if err != nil {
		return nil, fmt.Errorf("failed to stat config file: %w", err)
	}
	const maxFileSize = 1 * 1024 * 1024 // 1MB
	if fileInfo.Size() > maxFileSize {
		return nil, fmt.Errorf("config file too large: %d bytes (max %d)", fileInfo.Size(), maxFileSize)
	}

	data, err := os.ReadFile(cleanPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	cfg := EmptyEngineConfig()
	if err := json.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config JSON: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

// Validate checks that the configuration values are valid.
func (c *EngineConfig) Validate() error {
	if c.SpotRays != nil && *c.SpotRays < 1 {
		return fmt.Errorf("spot_rays must be positive, got %d", *c.SpotRays)
	}
	if c.SpotRings != nil && *c.SpotRings < 1 {
		return fmt.Errorf("spot_rings must be positive, got %d", *c.SpotRings)
	}
	if c.FanRays != nil && *c.FanRays < 3 {
		return fmt.Errorf("fan_rays must be at least 3, got %d", *c.FanRays)
	}
	if c.OPDGridSize != nil && (*c.OPDGridSize < 4 || *c.OPDGridSize > MaxOPDGridSize) {
		return fmt.Errorf("opd_grid_size must be between 4 and %d, got %d", MaxOPDGridSize, *c.OPDGridSize)
	}
	if c.OPDTraceGrid != nil && *c.OPDTraceGrid != 0 && (*c.OPDTraceGrid < 4 || *c.OPDTraceGrid > MaxOPDGridSize) {
		return fmt.Errorf("opd_trace_grid must be 0 or between 4 and %d, got %d", MaxOPDGridSize, *c.OPDTraceGrid)
	}
	if c.PSFPadding != nil && (*c.PSFPadding < 1 || *c.PSFPadding > 8) {
		return fmt.Errorf("psf_padding must be between 1 and 8, got %d", *c.PSFPadding)
	}
	if c.ZernikeTerms != nil && (*c.ZernikeTerms < 1 || *c.ZernikeTerms > 37) {
		return fmt.Errorf("zernike_terms must be between 1 and 37, got %d", *c.ZernikeTerms)
	}
	if c.YieldEveryRays != nil && *c.YieldEveryRays < 1 {
		return fmt.Errorf("yield_every_rays must be positive, got %d", *c.YieldEveryRays)
	}
	if c.MinSurvivorFraction != nil && (*c.MinSurvivorFraction < 0 || *c.MinSurvivorFraction > 1) {
		return fmt.Errorf("min_survivor_fraction must be between 0 and 1, got %f", *c.MinSurvivorFraction)
	}
	if c.FailSentinel != nil && *c.FailSentinel < 1e8 {
		return fmt.Errorf("fail_sentinel must be at least 1e8, got %g", *c.FailSentinel)
	}
	if c.DefaultSemiDiameter != nil && *c.DefaultSemiDiameter <= 0 {
		return fmt.Errorf("default_semi_diameter must be positive, got %f", *c.DefaultSemiDiameter)
	}
	if c.AsphereMaxIterations != nil && *c.AsphereMaxIterations < 1 {
		return fmt.Errorf("asphere_max_iterations must be positive, got %d", *c.AsphereMaxIterations)
	}
	if c.AsphereTolerance != nil && *c.AsphereTolerance <= 0 {
		return fmt.Errorf("asphere_tolerance must be positive, got %g", *c.AsphereTolerance)
	}
	if c.AstigFieldPoints != nil && *c.AstigFieldPoints < 2 {
		return fmt.Errorf("astig_field_points must be at least 2, got %d", *c.AstigFieldPoints)
	}
	return nil
}

func getInt(p *int, def int) int {
	if p == nil {
		return def
	}
	return *p
}

func getFloat(p *float64, def float64) float64 {
	if p == nil {
		return def
	}
	return *p
}

// GetSpotRays returns the spot_rays value or the default.
func (c *EngineConfig) GetSpotRays() int { return getInt(c.SpotRays, DefaultSpotRays) }

// GetSpotRings returns the spot_rings value or the default.
func (c *EngineConfig) GetSpotRings() int { return getInt(c.SpotRings, DefaultSpotRings) }

// GetFanRays returns the fan_rays value or the default.
func (c *EngineConfig) GetFanRays() int { return getInt(c.FanRays, DefaultFanRays) }

// GetOPDGridSize returns the opd_grid_size value or the default.
func (c *EngineConfig) GetOPDGridSize() int { return getInt(c.OPDGridSize, DefaultOPDGridSize) }

// GetOPDTraceGrid returns the opd_trace_grid value or the default.
func (c *EngineConfig) GetOPDTraceGrid() int { return getInt(c.OPDTraceGrid, DefaultOPDTraceGrid) }

// GetPSFPadding returns the psf_padding value or the default.
func (c *EngineConfig) GetPSFPadding() int { return getInt(c.PSFPadding, DefaultPSFPadding) }

// GetZernikeTerms returns the zernike_terms value or the default.
func (c *EngineConfig) GetZernikeTerms() int { return getInt(c.ZernikeTerms, DefaultZernikeTerms) }

// GetYieldEveryRays returns the yield_every_rays value or the default.
func (c *EngineConfig) GetYieldEveryRays() int {
	return getInt(c.YieldEveryRays, DefaultYieldEveryRays)
}

// GetMinSurvivorFraction returns the min_survivor_fraction value or the default.
func (c *EngineConfig) GetMinSurvivorFraction() float64 {
	return getFloat(c.MinSurvivorFraction, DefaultMinSurvivorFraction)
}

// GetFailSentinel returns the fail_sentinel value or the default.
func (c *EngineConfig) GetFailSentinel() float64 {
	return getFloat(c.FailSentinel, DefaultFailSentinel)
}

// GetPreserveLegacySemiDia returns the preserve_legacy_semidia value or the default.
func (c *EngineConfig) GetPreserveLegacySemiDia() bool {
	if c.PreserveLegacySemiDia == nil {
		return false
	}
	return *c.PreserveLegacySemiDia
}

// GetDefaultSemiDiameter returns the default_semi_diameter value or the default.
func (c *EngineConfig) GetDefaultSemiDiameter() float64 {
	return getFloat(c.DefaultSemiDiameter, DefaultSemiDiameter)
}

// GetAsphereMaxIterations returns the asphere_max_iterations value or the default.
func (c *EngineConfig) GetAsphereMaxIterations() int {
	return getInt(c.AsphereMaxIterations, DefaultAsphereMaxIterations)
}

// GetAsphereTolerance returns the asphere_tolerance value or the default.
func (c *EngineConfig) GetAsphereTolerance() float64 {
	return getFloat(c.AsphereTolerance, DefaultAsphereTolerance)
}

// GetAstigFieldPoints returns the astig_field_points value or the default.
func (c *EngineConfig) GetAstigFieldPoints() int {
	return getInt(c.AstigFieldPoints, DefaultAstigFieldPoints)
}
