package optimize

import (
	"context"
	"math"
	"testing"

	"github.com/banshee-data/lens.design/internal/design"
	"github.com/banshee-data/lens.design/internal/engine"
	"github.com/banshee-data/lens.design/internal/glass"
	"github.com/banshee-data/lens.design/internal/requirements"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func ptr(v float64) *float64 { return &v }

func doc() design.Document {
	return design.Document{
		ActiveConfigID: "a",
		Configurations: []design.Configuration{{
			ID: "a",
			Blocks: []design.Block{
				{BlockID: "stop", BlockType: "Stop", Parameters: design.Params{"semiDiameter": 5.0}},
				{BlockID: "L1", BlockType: "Lens",
					Parameters: design.Params{"backRadius": -50.0, "centerThickness": 5.0, "material": "N-BK7"},
					Variables:  map[string]design.Variable{"frontRadius": {Value: 50.0, Min: ptr(20), Max: ptr(500)}},
				},
				{BlockID: "g1", BlockType: "AirGap", Parameters: design.Params{"thickness": 60.0}},
				{BlockID: "img", BlockType: "ImagePlane"},
			},
			Source: []design.SourceRow{{ID: 1, Wavelength: design.Num(glass.Lined), Weight: 1, Primary: true}},
		}},
	}
}

func TestVariables(t *testing.T) {
	vars := Variables(doc())
	require.Len(t, vars, 1)
	assert.Equal(t, "a/L1.frontRadius", vars[0].String())
	assert.Equal(t, 50.0, vars[0].Start)
	assert.Equal(t, 20.0, vars[0].Min)
	assert.Equal(t, 500.0, vars[0].Max)

	_, err := Run(context.Background(), engine.New(nil, nil), nil, design.Document{}, Options{})
	assert.ErrorIs(t, err, ErrNoVariables)
}

func TestApplyClampsAndCopies(t *testing.T) {
	d := doc()
	out := Apply(d, Variables(d), []float64{1000})
	v, _ := out.Configurations[0].Blocks[1].Value("frontRadius")
	assert.Equal(t, 500.0, v)
	_, ok := d.Configurations[0].Blocks[1].Parameters["frontRadius"]
	assert.False(t, ok)
}

func TestRunMeetsFocalLength(t *testing.T) {
	eng := engine.New(nil, nil)
	reqs := []requirements.Requirement{
		{ID: "efl", Enabled: true, Operand: "EFL", Op: requirements.Equal, Target: 60, Weight: 1},
	}
	res, err := Run(context.Background(), eng, reqs, doc(), Options{})
	require.NoError(t, err)

	assert.Greater(t, res.StartMerit, 1.0)
	assert.Less(t, res.Merit, 1e-4)
	assert.Greater(t, res.X[0], 50.0)
	require.Len(t, res.Requirements, 1)
	assert.Less(t, math.Abs(res.Requirements[0].Current-60), 0.01)
	assert.Equal(t, 0, eng.CacheLen())
}

func TestRunCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	reqs := []requirements.Requirement{
		{ID: "efl", Enabled: true, Operand: "EFL", Op: requirements.Equal, Target: 60, Weight: 1},
	}
	_, err := Run(ctx, engine.New(nil, nil), reqs, doc(), Options{})
	assert.Error(t, err)
}
