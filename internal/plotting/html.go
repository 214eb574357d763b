package plotting

import (
	"fmt"
	"io"
	"math"

	"github.com/go-echarts/go-echarts/v2/charts"
	"github.com/go-echarts/go-echarts/v2/components"
	"github.com/go-echarts/go-echarts/v2/opts"

	"github.com/banshee-data/lens.design/internal/aberration"
	"github.com/banshee-data/lens.design/internal/requirements"
)

// AssetsHost is where rendered pages load the echarts scripts from.
var AssetsHost = "https://go-echarts.github.io/go-echarts-assets/assets/"

var statusColors = map[requirements.Status]string{
	requirements.StatusOK:   "#35b779",
	requirements.StatusNG:   "#fde725",
	requirements.StatusFail: "#ff5252",
	requirements.StatusOff:  "#9e9e9e",
}

func hexColor(i, n int) string {
	r, g, b := hslToRGB(float64(i)/float64(n), 0.7, 0.45)
	return fmt.Sprintf("#%02x%02x%02x", r, g, b)
}

// spotChart builds one field's interactive spot scatter.
func spotChart(fs aberration.FieldSpot, units string) *charts.Scatter {
	byWl := map[int][]opts.ScatterData{}
	maxWl := 0
	pad := 0.0
	for _, pt := range fs.Points {
		x, y := pt.X-fs.CentroidX, pt.Y-fs.CentroidY
		byWl[pt.Wavelength] = append(byWl[pt.Wavelength], opts.ScatterData{Value: []interface{}{x, y}})
		if pt.Wavelength > maxWl {
			maxWl = pt.Wavelength
		}
		pad = max(pad, math.Abs(x), math.Abs(y))
	}
	if pad == 0 {
		pad = 1e-3
	}
	pad *= 1.1

	scatter := charts.NewScatter()
	scatter.SetGlobalOptions(
		charts.WithInitializationOpts(opts.Initialization{PageTitle: "Spot diagram", Width: "700px", Height: "700px", AssetsHost: AssetsHost}),
		charts.WithTitleOpts(opts.Title{
			Title:    fmt.Sprintf("Field %d", fs.Index+1),
			Subtitle: fmt.Sprintf("rms=%.4g geo=%.4g %s rays=%d/%d", fs.RMS, fs.GEO, units, fs.Survivors, fs.Total),
		}),
		charts.WithTooltipOpts(opts.Tooltip{Show: opts.Bool(true)}),
		charts.WithLegendOpts(opts.Legend{Show: opts.Bool(true)}),
		charts.WithXAxisOpts(opts.XAxis{Min: -pad, Max: pad, Name: "X (" + units + ")", NameLocation: "middle", NameGap: 25}),
		charts.WithYAxisOpts(opts.YAxis{Min: -pad, Max: pad, Name: "Y (" + units + ")", NameLocation: "middle", NameGap: 40}),
	)
	for w := 0; w <= maxWl; w++ {
		data, ok := byWl[w]
		if !ok {
			continue
		}
		scatter.AddSeries(fmt.Sprintf("λ%d", w+1), data,
			charts.WithScatterChartOpts(opts.ScatterChart{SymbolSize: 3}),
			charts.WithItemStyleOpts(opts.ItemStyle{Color: hexColor(w, maxWl+1)}))
	}
	return scatter
}

// SpotHTML renders every field of res as a page of scatter charts.
func SpotHTML(w io.Writer, res *aberration.SpotResult) error {
	if res == nil || len(res.Fields) == 0 {
		return fmt.Errorf("no spot fields to render")
	}
	page := components.NewPage()
	page.SetAssetsHost(AssetsHost)
	for _, fs := range res.Fields {
		page.AddCharts(spotChart(fs, res.Units))
	}
	if err := page.Render(w); err != nil {
		return fmt.Errorf("render spot page: %w", err)
	}
	return nil
}

// RequirementsHTML renders merit contributions as a bar chart coloured by
// status. Each bar is labelled with the requirement id.
func RequirementsHTML(w io.Writer, reqs []requirements.Requirement, updates []requirements.Update) error {
	if len(updates) == 0 {
		return fmt.Errorf("no requirement updates to render")
	}
	names := make(map[string]string, len(reqs))
	for _, r := range reqs {
		names[r.ID] = r.Operand
	}
	x := make([]string, 0, len(updates))
	y := make([]opts.BarData, 0, len(updates))
	for _, u := range updates {
		label := u.ID
		if op := names[u.ID]; op != "" {
			label = fmt.Sprintf("%s (%s)", u.ID, op)
		}
		x = append(x, label)
		y = append(y, opts.BarData{
			Name:      string(u.Status),
			Value:     u.Contribution,
			ItemStyle: &opts.ItemStyle{Color: statusColors[u.Status]},
		})
	}
	counts := requirements.Summary(updates)

	bar := charts.NewBar()
	bar.SetGlobalOptions(
		charts.WithInitializationOpts(opts.Initialization{PageTitle: "Requirements", Width: "100%", Height: "600px", AssetsHost: AssetsHost}),
		charts.WithTitleOpts(opts.Title{
			Title: "Merit contributions",
			Subtitle: fmt.Sprintf("merit=%.6g ok=%d ng=%d fail=%d off=%d", requirements.Merit(updates),
				counts[requirements.StatusOK], counts[requirements.StatusNG], counts[requirements.StatusFail], counts[requirements.StatusOff]),
		}),
		charts.WithTooltipOpts(opts.Tooltip{Show: opts.Bool(true)}),
	)
	bar.SetXAxis(x).AddSeries("contribution", y,
		charts.WithLabelOpts(opts.Label{Show: opts.Bool(true), Position: "top"}))

	page := components.NewPage()
	page.SetAssetsHost(AssetsHost)
	page.AddCharts(bar)
	if err := page.Render(w); err != nil {
		return fmt.Errorf("render requirements page: %w", err)
	}
	return nil
}
