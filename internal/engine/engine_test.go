package engine

import (
	"context"
	"math"
	"testing"

	"github.com/banshee-data/lens.design/internal/aberration"
	"github.com/banshee-data/lens.design/internal/design"
	"github.com/banshee-data/lens.design/internal/glass"
	"github.com/banshee-data/lens.design/internal/operand"
	"github.com/banshee-data/lens.design/internal/optics"
	"github.com/banshee-data/lens.design/internal/requirements"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func singletConfig(id string, thickness float64) design.Configuration {
	return design.Configuration{
		ID:   id,
		Name: "singlet " + id,
		Blocks: []design.Block{
			{BlockID: "obj", BlockType: "ObjectPlane", Parameters: design.Params{"distance": math.Inf(1)}},
			{BlockID: "stop", BlockType: "Stop", Parameters: design.Params{"semiDiameter": 5.0}},
			{BlockID: "g0", BlockType: "AirGap", Parameters: design.Params{"thickness": 2.0}},
			{BlockID: "L1", BlockType: "Lens", Parameters: design.Params{
				"frontRadius": 50.0, "backRadius": -50.0, "centerThickness": thickness, "material": "N-BK7",
			}},
			{BlockID: "g1", BlockType: "AirGap", Parameters: design.Params{"thickness": 47.0}},
			{BlockID: "img", BlockType: "ImagePlane"},
		},
		Scenarios: []design.Scenario{
			{ID: "thick", Name: "Thick", Overrides: map[string]interface{}{"L1.centerThickness": "8"}},
		},
		Object: []design.ObjectRow{{ID: 1, Type: "angle"}, {ID: 2, Type: "angle", Y: 2}},
		Source: []design.SourceRow{
			{ID: 1, Wavelength: design.Num(glass.LineF), Weight: 1},
			{ID: 2, Wavelength: design.Num(glass.Lined), Weight: 1, Primary: true},
			{ID: 3, Wavelength: design.Num(glass.LineC), Weight: 1},
		},
	}
}

func testDoc() design.Document {
	return design.Document{
		SchemaVersion:  2,
		ActiveConfigID: "a",
		Configurations: []design.Configuration{singletConfig("a", 5), singletConfig("b", 6)},
	}
}

func thickEFL(t *testing.T, thickness float64) float64 {
	t.Helper()
	n, err := glass.DefaultCatalog().IndexAt("N-BK7", glass.Lined)
	require.NoError(t, err)
	phi1 := (n - 1) / 50
	return 1 / (2*phi1 - thickness/n*phi1*phi1)
}

func TestActiveSurfaces_CachesAndCopies(t *testing.T) {
	e := New(nil, nil)
	doc := testDoc()

	s, err := e.ActiveSurfaces(doc, "a")
	require.NoError(t, err)
	require.Len(t, s, 5)
	assert.Equal(t, optics.KindStop, s[1].Kind)
	assert.Equal(t, 1, e.CacheLen())

	s[2].Thickness = 999
	again, err := e.ActiveSurfaces(doc, "a")
	require.NoError(t, err)
	assert.Equal(t, 5.0, again[2].Thickness)
	assert.Equal(t, 1, e.CacheLen())

	_, err = e.ActiveSurfaces(doc, "b")
	require.NoError(t, err)
	assert.Equal(t, 2, e.CacheLen())

	// Unknown ids fall back to the active configuration.
	fallback, err := e.ActiveSurfaces(doc, "zzz")
	require.NoError(t, err)
	assert.Equal(t, 5.0, fallback[2].Thickness)

	e.ClearCache()
	assert.Equal(t, 0, e.CacheLen())
}

func TestActiveScenarioChangesKey(t *testing.T) {
	e := New(nil, nil)
	doc := testDoc()
	base, err := e.Paraxial(doc, "a")
	require.NoError(t, err)
	assert.InDelta(t, thickEFL(t, 5), base.EFL, 1e-8)

	doc.Configurations[0].ActiveScenarioID = "thick"
	thick, err := e.Paraxial(doc, "a")
	require.NoError(t, err)
	assert.InDelta(t, thickEFL(t, 8), thick.EFL, 1e-8)
	assert.Equal(t, 2, e.CacheLen())

	// Baking the scenario in gives the same surfaces.
	baked, err := design.WithOverrides(doc, "thick")
	require.NoError(t, err)
	s, err := e.ActiveSurfaces(baked, "a")
	require.NoError(t, err)
	assert.Equal(t, 8.0, s[2].Thickness)
}

func TestConfigChangesKey(t *testing.T) {
	e := New(nil, nil)
	doc := testDoc()
	s, err := e.ActiveSurfaces(doc, "a")
	require.NoError(t, err)
	assert.Equal(t, 10.0, s[3].SemiDiameter)

	semi := 7.0
	e.Config.DefaultSemiDiameter = &semi
	s, err = e.ActiveSurfaces(doc, "a")
	require.NoError(t, err)
	assert.Equal(t, 7.0, s[3].SemiDiameter)
	assert.Equal(t, 2, e.CacheLen())
}

func TestImportModeAndFatal(t *testing.T) {
	e := New(nil, nil)
	doc := testDoc()
	s, err := e.ActiveSurfaces(doc, "a")
	require.NoError(t, err)

	imported := design.Configuration{
		ID:            "imp",
		OpticalSystem: design.SurfacesToRows(s),
		Object:        doc.Configurations[0].Object,
		Source:        doc.Configurations[0].Source,
	}
	doc.Configurations = append(doc.Configurations, imported)
	pr, err := e.Paraxial(doc, "imp")
	require.NoError(t, err)
	assert.InDelta(t, thickEFL(t, 5), pr.EFL, 1e-8)

	_, isImport, err := e.Expand(imported)
	require.NoError(t, err)
	assert.True(t, isImport)

	bad := singletConfig("bad", -1)
	doc.Configurations = append(doc.Configurations, bad)
	_, err = e.ActiveSurfaces(doc, "bad")
	assert.ErrorIs(t, err, ErrFatalExpansion)

	_, err = e.ActiveSurfaces(design.Document{}, "")
	assert.ErrorIs(t, err, ErrNoConfiguration)
}

func TestOperandsThroughEngine(t *testing.T) {
	e := New(nil, nil)
	doc := testDoc()
	ctx := context.Background()

	efl, err := e.Operand(ctx, doc, "a", "EFL", nil)
	require.NoError(t, err)
	assert.InDelta(t, thickEFL(t, 5), efl, 1e-8)

	v, err := e.Operand(ctx, doc, "a", "NOPE", nil)
	assert.ErrorIs(t, err, operand.ErrUnknownOperand)
	assert.Equal(t, operand.FailSentinel, v)

	spot, err := e.Spot(ctx, doc, "a", aberration.SpotOptions{Field: 1, Wavelength: 2})
	require.NoError(t, err)
	require.Len(t, spot.Fields, 1)
	assert.Equal(t, 501, spot.Fields[0].Total)

	wm, err := e.Wavefront(ctx, doc, "a", 1, 0)
	require.NoError(t, err)
	psf, err := e.PSF(ctx, doc, "a", wm)
	require.NoError(t, err)
	assert.Greater(t, psf.Strehl, 0.0)

	seidel, err := e.Seidel(doc, "a")
	require.NoError(t, err)
	assert.Greater(t, seidel.Total.SI, 0.0)
}

func TestEvaluateRequirements(t *testing.T) {
	e := New(nil, nil)
	doc := testDoc()
	want := thickEFL(t, 5)

	reqs := []requirements.Requirement{
		{ID: "efl", Enabled: true, Operand: "EFL", ConfigID: "a", Op: requirements.Equal,
			Target: design.Num(want + 0.05), Tol: 0.1, Weight: 1},
		{ID: "efl-tight", Enabled: true, Operand: "EFL", ConfigID: "a", Op: requirements.Equal,
			Target: design.Num(want + 0.05), Tol: 0.02, Weight: 1},
		{ID: "track", Enabled: true, Operand: "TOTAL_TRACK", ConfigID: "all", Op: requirements.LessEqual,
			Target: 200, Weight: 1},
		{ID: "off", Enabled: false, Operand: "EFL", Weight: 1},
	}
	ups, err := e.Evaluate(context.Background(), reqs, doc)
	require.NoError(t, err)
	require.Len(t, ups, 4)

	assert.Equal(t, requirements.StatusOK, ups[0].Status)
	assert.Equal(t, requirements.StatusNG, ups[1].Status)
	assert.InDelta(t, 0.03, ups[1].Violation, 1e-9)
	assert.InDelta(t, (2+5+47)+(2+6+47), ups[2].Current, 1e-9)
	assert.Equal(t, requirements.StatusOff, ups[3].Status)
}
