package requirements

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strings"

	"github.com/banshee-data/lens.design/internal/design"
	"github.com/banshee-data/lens.design/internal/monitoring"
	"github.com/banshee-data/lens.design/internal/operand"
	"github.com/banshee-data/lens.design/internal/progress"
)

// Status classifies one evaluated requirement.
type Status string

const (
	StatusOff  Status = "OFF"
	StatusFail Status = "FAIL"
	StatusNG   Status = "NG"
	StatusOK   Status = "OK"
)

// Update carries the derived fields of one requirement.
type Update struct {
	ID           string  `json:"id"`
	Current      float64 `json:"current"`
	Status       Status  `json:"status"`
	Violation    float64 `json:"violation"`
	Contribution float64 `json:"contribution"`
	Weight       float64 `json:"weight"`
	// Diagnostic keeps the failure cause or the raw non-finite value.
	Diagnostic string `json:"diagnostic,omitempty"`
}

// Engine prepares configurations for operand evaluation.
type Engine interface {
	Prepare(doc design.Document, configID string) (*operand.Env, error)
	Operands() *operand.Registry
}

type prepared struct {
	env *operand.Env
	err error
}

// session prepares each configuration at most once per evaluation.
type session struct {
	eng      Engine
	doc      design.Document
	envs     map[string]prepared
	sentinel float64
}

func (s *session) env(configID string) (*operand.Env, error) {
	if p, ok := s.envs[configID]; ok {
		return p.env, p.err
	}
	env, err := s.eng.Prepare(s.doc, configID)
	s.envs[configID] = prepared{env, err}
	if env != nil {
		s.sentinel = env.Sentinel()
	}
	return env, err
}

// targets resolves a configId to the configurations it evaluates over.
func (s *session) targets(ref string) []string {
	if strings.EqualFold(ref, AllConfigs) {
		return s.doc.ConfigIDs()
	}
	c, ok := s.doc.Resolve(ref)
	if !ok {
		return nil
	}
	return []string{c.ID}
}

func (s *session) current(ctx context.Context, r Requirement) (float64, error) {
	ids := s.targets(r.ConfigID)
	if len(ids) == 0 {
		return 0, fmt.Errorf("no configuration for %q", r.ConfigID)
	}
	sum := 0.0
	for _, id := range ids {
		env, err := s.env(id)
		if err != nil {
			return 0, fmt.Errorf("config %s: %w", id, err)
		}
		v, err := s.eng.Operands().Evaluate(ctx, env, r.Operand, r.Params())
		if err != nil {
			return v, err
		}
		sum += v
	}
	return sum, nil
}

// Evaluate computes updates for reqs in declared order. Requirements that
// are disabled or carry no weight are OFF without being evaluated. A
// cancellation stops the run and returns the updates made so far.
func Evaluate(ctx context.Context, eng Engine, reqs []Requirement, doc design.Document) ([]Update, error) {
	s := &session{eng: eng, doc: doc, envs: make(map[string]prepared), sentinel: operand.FailSentinel}
	out := make([]Update, 0, len(reqs))
	for _, r := range reqs {
		u := Update{ID: r.ID, Weight: r.Weight.Float(), Status: StatusOff}
		if !r.Enabled || !(u.Weight > 0) {
			out = append(out, u)
			continue
		}
		if err := ctx.Err(); err != nil {
			return out, fmt.Errorf("%w: %v", progress.ErrCancelled, err)
		}

		cur, err := s.current(ctx, r)
		if errors.Is(err, progress.ErrCancelled) {
			return out, err
		}
		sentinel := s.sentinel
		switch {
		case err != nil:
			u = fail(u, sentinel, err.Error())
		case math.IsNaN(cur) || math.IsInf(cur, 0):
			u = fail(u, sentinel, fmt.Sprintf("non-finite metric %v", cur))
		case cur >= sentinel:
			u = fail(u, sentinel, fmt.Sprintf("metric %g at failure sentinel", cur))
		default:
			v, verr := r.Op.Violation(cur, r.Target.Float(), r.Tol.Float())
			if verr != nil {
				u = fail(u, sentinel, verr.Error())
				break
			}
			u.Current = cur
			u.Violation = v
			u.Contribution = u.Weight * v
			u.Status = StatusOK
			if v > 0 {
				u.Status = StatusNG
			}
		}
		if u.Status == StatusFail {
			monitoring.Logf("requirements: %s %s failed: %s", r.ID, r.Operand, u.Diagnostic)
		}
		out = append(out, u)
	}
	return out, nil
}

func fail(u Update, sentinel float64, diag string) Update {
	u.Status = StatusFail
	u.Current = sentinel
	u.Violation = sentinel
	u.Contribution = u.Weight * sentinel
	u.Diagnostic = diag
	return u
}

// Total is the sum of contributions.
func Total(updates []Update) float64 {
	t := 0.0
	for _, u := range updates {
		t += u.Contribution
	}
	return t
}

// Merit is the hinge-quadratic merit Σ w·v² over the evaluated
// requirements. A failed requirement adds its weight times the sentinel so
// the merit stays finite.
func Merit(updates []Update) float64 {
	m := 0.0
	for _, u := range updates {
		switch u.Status {
		case StatusFail:
			m += u.Contribution
		case StatusNG:
			m += u.Weight * u.Violation * u.Violation
		}
	}
	return m
}

// Summary counts updates per status.
func Summary(updates []Update) map[Status]int {
	out := map[Status]int{StatusOff: 0, StatusFail: 0, StatusNG: 0, StatusOK: 0}
	for _, u := range updates {
		out[u.Status]++
	}
	return out
}
