package glass

import (
	"bufio"
	"encoding/json"
	"fmt"
	"io"
	"strconv"
	"strings"
)

// agfSellmeier1 is the AGF dispersion formula code for the three-term Sellmeier.
const agfSellmeier1 = 2

// ParseAGF reads a Zemax AGF catalog. Each NM line starts an entry
// (name, formula, MIL, nd, vd); the following CD line supplies the
// coefficients K1 L1 K2 L2 K3 L3. Entries with another formula keep nd only.
func ParseAGF(r io.Reader) ([]Material, error) {
	var (
		out     []Material
		cur     *Material
		formula int
		lineNo  int
	)
	flush := func() {
		if cur != nil {
			out = append(out, *cur)
			cur = nil
		}
	}
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 64*1024), 1024*1024)
	for sc.Scan() {
		lineNo++
		line := strings.TrimPrefix(sc.Text(), "\ufeff")
		fields := strings.Fields(line)
		if len(fields) == 0 {
			continue
		}
		switch fields[0] {
		case "NM":
			flush()
			if len(fields) < 6 {
				return nil, fmt.Errorf("agf line %d: NM needs name, formula, MIL, nd, vd", lineNo)
			}
			f, err := strconv.ParseFloat(fields[2], 64)
			if err != nil {
				return nil, fmt.Errorf("agf line %d: formula: %w", lineNo, err)
			}
			nd, err := strconv.ParseFloat(fields[4], 64)
			if err != nil {
				return nil, fmt.Errorf("agf line %d: nd: %w", lineNo, err)
			}
			vd, err := strconv.ParseFloat(fields[5], 64)
			if err != nil {
				return nil, fmt.Errorf("agf line %d: vd: %w", lineNo, err)
			}
			formula = int(f)
			cur = &Material{Name: fields[1], Nd: nd, Vd: vd}
		case "CD":
			if cur == nil || formula != agfSellmeier1 {
				continue
			}
			if len(fields) < 7 {
				return nil, fmt.Errorf("agf line %d: CD needs six coefficients", lineNo)
			}
			var k [6]float64
			for i := range k {
				v, err := strconv.ParseFloat(fields[i+1], 64)
				if err != nil {
					return nil, fmt.Errorf("agf line %d: coefficient %d: %w", lineNo, i+1, err)
				}
				k[i] = v
			}
			cur.Sellmeier = &Sellmeier{B1: k[0], C1: k[1], B2: k[2], C2: k[3], B3: k[4], C3: k[5]}
		}
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("agf read: %w", err)
	}
	flush()
	return out, nil
}

// ReadJSON decodes a catalog array of {name, nd, vd, sellmeier}.
func ReadJSON(r io.Reader) ([]Material, error) {
	var out []Material
	if err := json.NewDecoder(r).Decode(&out); err != nil {
		return nil, fmt.Errorf("decode glass catalog: %w", err)
	}
	for i, m := range out {
		if strings.TrimSpace(m.Name) == "" {
			return nil, fmt.Errorf("glass catalog entry %d has no name", i)
		}
	}
	return out, nil
}

// WriteJSON encodes materials in the catalog array format.
func WriteJSON(w io.Writer, materials []Material) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(materials)
}
