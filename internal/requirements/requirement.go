// Package requirements evaluates design requirements: each names an operand,
// a comparator and a target, and reports the current value with a status,
// violation and weighted contribution.
package requirements

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/banshee-data/lens.design/internal/design"
	"github.com/banshee-data/lens.design/internal/monitoring"
	"github.com/banshee-data/lens.design/internal/operand"
)

// ErrUnknownComparator is returned for comparators other than =, ≤ and ≥.
var ErrUnknownComparator = errors.New("unknown comparator")

// AllConfigs as a configId sums the operand over every configuration.
const AllConfigs = "all"

// Comparator is the requirement relation.
type Comparator string

const (
	Equal        Comparator = "="
	LessEqual    Comparator = "<="
	GreaterEqual Comparator = ">="
)

// ParseComparator accepts the ASCII and Unicode spellings. A blank
// comparator is equality.
func ParseComparator(s string) (Comparator, error) {
	switch strings.TrimSpace(s) {
	case "", "=", "==", "eq", "EQ":
		return Equal, nil
	case "<=", "≤", "<", "le", "LE", "max":
		return LessEqual, nil
	case ">=", "≥", ">", "ge", "GE", "min":
		return GreaterEqual, nil
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownComparator, s)
}

// Violation is how far current lies outside target ± tol, never negative.
func (c Comparator) Violation(current, target, tol float64) (float64, error) {
	var v float64
	switch c {
	case Equal:
		d := current - target
		if d < 0 {
			d = -d
		}
		v = d - tol
	case LessEqual:
		v = current - (target + tol)
	case GreaterEqual:
		v = (target - tol) - current
	default:
		return 0, fmt.Errorf("%w: %q", ErrUnknownComparator, string(c))
	}
	if v < 0 {
		v = 0
	}
	return v, nil
}

// UnmarshalJSON normalises the stored spelling.
func (c *Comparator) UnmarshalJSON(b []byte) error {
	var s string
	if err := json.Unmarshal(b, &s); err != nil {
		return err
	}
	p, err := ParseComparator(s)
	if err != nil {
		return err
	}
	*c = p
	return nil
}

// Param is one positional operand argument. Stored documents carry both
// numbers and strings; both decode to the string form.
type Param string

// UnmarshalJSON accepts strings, numbers and null.
func (p *Param) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	switch {
	case bytes.Equal(b, []byte("null")):
		*p = ""
	case len(b) > 0 && b[0] == '"':
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
		*p = Param(s)
	default:
		var f float64
		if err := json.Unmarshal(b, &f); err != nil {
			return fmt.Errorf("param: %w", err)
		}
		*p = Param(strconv.FormatFloat(f, 'g', -1, 64))
	}
	return nil
}

// Requirement is the persisted record. Derived values live in Update.
type Requirement struct {
	ID        string     `json:"id"`
	Enabled   bool       `json:"enabled"`
	Operand   string     `json:"operand"`
	ConfigID  string     `json:"configId"`
	Param1    Param      `json:"param1"`
	Param2    Param      `json:"param2"`
	Param3    Param      `json:"param3"`
	Param4    Param      `json:"param4"`
	Param5    Param      `json:"param5"`
	Op        Comparator `json:"op"`
	Tol       design.Num `json:"tol"`
	Target    design.Num `json:"target"`
	Weight    design.Num `json:"weight"`
	Rationale string     `json:"rationale,omitempty"`
}

// Params returns the positional arguments for the operand.
func (r Requirement) Params() operand.Params {
	return operand.Params{string(r.Param1), string(r.Param2), string(r.Param3), string(r.Param4), string(r.Param5)}
}

// renamedOperands are operand names retired in favour of a new spelling.
var renamedOperands = map[string]string{
	"SPOT_SIZE": "SPOT_SIZE_ANNULAR",
}

// Migrate applies the enumerated requirement upgrades: retired operand
// names and configId references made by configuration name. It returns a
// fresh slice.
func Migrate(reqs []Requirement, doc design.Document) []Requirement {
	out := make([]Requirement, len(reqs))
	for i, r := range reqs {
		name := strings.ToUpper(strings.TrimSpace(r.Operand))
		if to, ok := renamedOperands[name]; ok {
			monitoring.Logf("requirements: %s operand %s renamed to %s", r.ID, r.Operand, to)
			r.Operand = to
		}
		if r.ConfigID != "" && !strings.EqualFold(r.ConfigID, AllConfigs) {
			if id := doc.ResolveConfigRef(r.ConfigID); id != r.ConfigID {
				monitoring.Logf("requirements: %s configId %q resolved by name to %q", r.ID, r.ConfigID, id)
				r.ConfigID = id
			}
		}
		out[i] = r
	}
	return out
}

// Load decodes a requirement array and migrates it against doc.
func Load(r io.Reader, doc design.Document) ([]Requirement, error) {
	var reqs []Requirement
	if err := json.NewDecoder(r).Decode(&reqs); err != nil {
		return nil, fmt.Errorf("decode requirements: %w", err)
	}
	return Migrate(reqs, doc), nil
}

// Save encodes reqs.
func Save(w io.Writer, reqs []Requirement) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(reqs); err != nil {
		return fmt.Errorf("encode requirements: %w", err)
	}
	return nil
}
