package main

import (
	"fmt"
	"io"
	"text/tabwriter"

	"github.com/banshee-data/lens.design/internal/optimize"
	"github.com/banshee-data/lens.design/internal/paraxial"
	"github.com/banshee-data/lens.design/internal/requirements"
	"github.com/banshee-data/lens.design/internal/units"
)

func writeParaxial(w io.Writer, configID string, pr paraxial.Result, unit string) {
	fmt.Fprintf(w, "Configuration %s (lengths in %s)\n", configID, unit)
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	type row struct {
		name   string
		v      float64
		length bool
	}
	rows := []row{
		{"EFL", pr.EFL, true},
		{"BFL", pr.BFL, true},
		{"F/#", pr.FNumber, false},
		{"Working F/#", pr.WorkingFNumber, false},
		{"NA (image)", pr.NAImage, false},
		{"Entrance pupil dia", pr.EntrancePupilDia, true},
		{"Entrance pupil pos", pr.EntrancePupilPos, true},
		{"Exit pupil dia", pr.ExitPupilDia, true},
		{"Exit pupil pos", pr.ExitPupilPos, true},
		{"Total track", pr.TotalTrack, true},
	}
	if !pr.ObjectAtInf {
		rows = append(rows, row{"Magnification", pr.Magnification, false})
	}
	for _, r := range rows {
		v := r.v
		if r.length {
			v = units.MMToLength(v, unit)
		}
		fmt.Fprintf(tw, "  %s\t%.6g\n", r.name, v)
	}
	tw.Flush()
	fmt.Fprintln(w)
}

func writeRequirements(w io.Writer, reqs []requirements.Requirement, updates []requirements.Update) {
	byID := make(map[string]requirements.Requirement, len(reqs))
	for _, r := range reqs {
		byID[r.ID] = r
	}
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tOPERAND\tCURRENT\tOP\tTARGET\tSTATUS\tCONTRIB\t")
	for _, u := range updates {
		r := byID[u.ID]
		fmt.Fprintf(tw, "%s\t%s\t%.6g\t%s\t%.6g\t%s\t%.4g\t%s\n",
			u.ID, r.Operand, u.Current, r.Op, r.Target.Float(), u.Status, u.Contribution, u.Diagnostic)
	}
	tw.Flush()
	counts := requirements.Summary(updates)
	fmt.Fprintf(w, "merit %.6g (ok %d, ng %d, fail %d, off %d)\n\n", requirements.Merit(updates),
		counts[requirements.StatusOK], counts[requirements.StatusNG], counts[requirements.StatusFail], counts[requirements.StatusOff])
}

func writeOptimization(w io.Writer, res optimize.Result) {
	fmt.Fprintf(w, "Optimisation %s: merit %.6g -> %.6g in %d evaluations\n", res.Status, res.StartMerit, res.Merit, res.Evaluations)
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	for i, v := range res.Variables {
		fmt.Fprintf(tw, "  %s\t%.6g\t->\t%.6g\n", v, v.Start, res.X[i])
	}
	tw.Flush()
	fmt.Fprintln(w)
}
