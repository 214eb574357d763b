// Package optimize adjusts block variables to minimise the requirement
// merit with gonum's optimisers. The engine stays a pure evaluator; this
// package is the caller-side loop.
package optimize

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sort"

	"gonum.org/v1/gonum/diff/fd"
	gopt "gonum.org/v1/gonum/optimize"

	"github.com/banshee-data/lens.design/internal/design"
	"github.com/banshee-data/lens.design/internal/monitoring"
	"github.com/banshee-data/lens.design/internal/progress"
	"github.com/banshee-data/lens.design/internal/requirements"
)

// ErrNoVariables is returned when no block declares a numeric variable.
var ErrNoVariables = errors.New("no optimisation variables")

// boundPenalty scales the squared distance outside a variable's bounds.
const boundPenalty = 1e4

// Variable is one adjustable block parameter.
type Variable struct {
	ConfigID string
	BlockID  string
	Key      string
	Start    float64
	Min, Max float64
}

func (v Variable) String() string { return v.ConfigID + "/" + v.BlockID + "." + v.Key }

func (v Variable) clamp(x float64) (float64, float64) {
	switch {
	case x < v.Min:
		return v.Min, v.Min - x
	case x > v.Max:
		return v.Max, x - v.Max
	}
	return x, 0
}

// Variables lists the numeric block variables of every configuration in
// document order, keys sorted within a block. Missing bounds are infinite.
func Variables(doc design.Document) []Variable {
	var out []Variable
	for _, c := range doc.Configurations {
		for _, b := range c.Blocks {
			keys := make([]string, 0, len(b.Variables))
			for k := range b.Variables {
				keys = append(keys, k)
			}
			sort.Strings(keys)
			for _, k := range keys {
				start, ok, err := design.Params{k: valueOf(b, k)}.Number(k)
				if err != nil || !ok || math.IsInf(start, 0) {
					monitoring.Logf("optimize: skipping %s/%s.%s: not numeric", c.ID, b.BlockID, k)
					continue
				}
				v := Variable{ConfigID: c.ID, BlockID: b.BlockID, Key: k, Start: start, Min: math.Inf(-1), Max: math.Inf(1)}
				if m := b.Variables[k].Min; m != nil {
					v.Min = *m
				}
				if m := b.Variables[k].Max; m != nil {
					v.Max = *m
				}
				out = append(out, v)
			}
		}
	}
	return out
}

func valueOf(b design.Block, k string) interface{} {
	v, _ := b.Value(k)
	return v
}

// Apply returns a copy of doc with x written into the variables'
// parameters. Values are clamped to bounds.
func Apply(doc design.Document, vars []Variable, x []float64) design.Document {
	out := doc.Clone()
	for i, v := range vars {
		val, _ := v.clamp(x[i])
		for ci := range out.Configurations {
			c := &out.Configurations[ci]
			if c.ID != v.ConfigID {
				continue
			}
			for bi := range c.Blocks {
				if c.Blocks[bi].BlockID != v.BlockID {
					continue
				}
				if c.Blocks[bi].Parameters == nil {
					c.Blocks[bi].Parameters = design.Params{}
				}
				c.Blocks[bi].Parameters[v.Key] = val
			}
		}
	}
	return out
}

// Evaluator is the engine surface the optimiser drives.
type Evaluator interface {
	requirements.Engine
	ClearCache()
}

// Method selects the optimiser.
type Method string

const (
	NelderMead Method = "nelder-mead"
	LBFGS      Method = "lbfgs"
)

// Options tune one optimisation.
type Options struct {
	Method          Method
	FuncEvaluations int
	MajorIterations int
	// Progress is called after every merit evaluation.
	Progress progress.Func
}

// Result is the optimised document and its merit history endpoints.
type Result struct {
	Variables    []Variable
	X            []float64
	StartMerit   float64
	Merit        float64
	Evaluations  int
	Status       string
	Document     design.Document
	Requirements []requirements.Update
}

// Run minimises the hinge-quadratic merit of reqs over the document's
// variables. Cancelling ctx stops after the current evaluation and returns
// the best point found so far together with the error.
func Run(ctx context.Context, eng Evaluator, reqs []requirements.Requirement, doc design.Document, opt Options) (Result, error) {
	vars := Variables(doc)
	if len(vars) == 0 {
		return Result{}, ErrNoVariables
	}
	if opt.FuncEvaluations <= 0 {
		opt.FuncEvaluations = 200 * len(vars)
	}
	tr := progress.New(ctx, opt.Progress, 1)
	tr.Begin(opt.FuncEvaluations, "optimising")

	var (
		evals   int
		best    = math.Inf(1)
		bestX   []float64
		stopErr error
	)
	merit := func(x []float64) float64 {
		if stopErr != nil {
			return best
		}
		penalty := 0.0
		for i, v := range vars {
			_, d := v.clamp(x[i])
			penalty += boundPenalty * d * d
		}
		trial := Apply(doc, vars, x)
		ups, err := requirements.Evaluate(ctx, eng, reqs, trial)
		// Every trial expands new blocks.
		eng.ClearCache()
		evals++
		if err != nil {
			stopErr = err
			return best
		}
		m := requirements.Merit(ups) + penalty
		if m < best {
			best = m
			bestX = append(bestX[:0], x...)
		}
		if err := tr.Step(1); err != nil {
			stopErr = err
		}
		return m
	}

	x0 := make([]float64, len(vars))
	for i, v := range vars {
		x0[i] = v.Start
	}
	start := merit(x0)
	if stopErr != nil {
		return Result{Variables: vars, X: x0, StartMerit: start, Merit: start, Document: doc}, stopErr
	}

	problem := gopt.Problem{Func: merit}
	var method gopt.Method = &gopt.NelderMead{}
	if opt.Method == LBFGS {
		problem.Grad = func(grad, x []float64) {
			fd.Gradient(grad, merit, x, &fd.Settings{Formula: fd.Central})
		}
		method = &gopt.LBFGS{}
	}
	settings := &gopt.Settings{FuncEvaluations: opt.FuncEvaluations, MajorIterations: opt.MajorIterations}
	res, err := gopt.Minimize(problem, x0, settings, method)
	status := ""
	if res != nil {
		status = res.Status.String()
	}
	if err != nil && stopErr == nil {
		monitoring.Logf("optimize: %s stopped: %v", status, err)
	}

	final := x0
	if bestX != nil {
		final = make([]float64, len(bestX))
		for i, v := range vars {
			final[i], _ = v.clamp(bestX[i])
		}
	}
	out := Apply(doc, vars, final)
	ups, uerr := requirements.Evaluate(ctx, eng, reqs, out)
	eng.ClearCache()
	result := Result{
		Variables:    vars,
		X:            final,
		StartMerit:   start,
		Merit:        requirements.Merit(ups),
		Evaluations:  evals,
		Status:       status,
		Document:     out,
		Requirements: ups,
	}
	if stopErr != nil {
		return result, stopErr
	}
	if uerr != nil {
		return result, fmt.Errorf("final evaluation: %w", uerr)
	}
	return result, nil
}
