package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"path/filepath"

	"github.com/banshee-data/lens.design/internal/aberration"
	"github.com/banshee-data/lens.design/internal/design"
	"github.com/banshee-data/lens.design/internal/engine"
	"github.com/banshee-data/lens.design/internal/plotting"
	"github.com/banshee-data/lens.design/internal/requirements"
	"github.com/banshee-data/lens.design/internal/security"
)

// writePlots renders the standard analysis set for one configuration. File
// names carry the configuration id.
// The OPD and PSF are taken at the first field.
func writePlots(ctx context.Context, eng *engine.Engine, doc design.Document, configID, dir string, reqs []requirements.Requirement, updates []requirements.Update) error {
	if err := security.ValidateOutputPath(dir); err != nil {
		return err
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create plot dir: %w", err)
	}
	prefix := security.SanitizeFilename(configID) + "_"
	n := 0
	save := func(name string, build func() error) error {
		if err := build(); err != nil {
			return fmt.Errorf("%s: %w", name, err)
		}
		n++
		return nil
	}

	spot, err := eng.Spot(ctx, doc, configID, aberration.SpotOptions{})
	if err != nil {
		return fmt.Errorf("spot diagram: %w", err)
	}
	for _, fs := range spot.Fields {
		name := fmt.Sprintf("%sspot_f%d.png", prefix, fs.Index+1)
		if err := save(name, func() error {
			p, err := plotting.SpotPlot(fs, spot.Units)
			if err != nil {
				return err
			}
			return plotting.Save(p, filepath.Join(dir, name))
		}); err != nil {
			return err
		}
	}
	if err := save("spot.html", func() error {
		return writeHTML(filepath.Join(dir, prefix+"spot.html"), func(f *os.File) error { return plotting.SpotHTML(f, &spot) })
	}); err != nil {
		return err
	}

	fans, err := eng.Transverse(ctx, doc, configID, aberration.FanOptions{})
	if err != nil {
		return fmt.Errorf("ray fans: %w", err)
	}
	for _, ff := range fans.Fields {
		name := fmt.Sprintf("%sfan_f%d.png", prefix, ff.Index+1)
		if err := save(name, func() error {
			p, err := plotting.FanPlot(ff)
			if err != nil {
				return err
			}
			return plotting.Save(p, filepath.Join(dir, name))
		}); err != nil {
			return err
		}
	}

	// Afocal systems have no field curves.
	if curves, err := eng.FieldCurves(ctx, doc, configID, aberration.FieldCurveOptions{}); err != nil {
		log.Printf("field curves skipped: %v", err)
	} else if err := save("field_curves.png", func() error {
		p, err := plotting.FieldCurvePlot(curves)
		if err != nil {
			return err
		}
		return plotting.Save(p, filepath.Join(dir, prefix+"field_curves.png"))
	}); err != nil {
		return err
	}

	wm, err := eng.Wavefront(ctx, doc, configID, 1, 0)
	if err != nil {
		return fmt.Errorf("wavefront: %w", err)
	}
	if err := save("opd.png", func() error {
		p, err := plotting.OPDPlot(wm)
		if err != nil {
			return err
		}
		return plotting.Save(p, filepath.Join(dir, prefix+"opd.png"))
	}); err != nil {
		return err
	}
	if ps, err := eng.PSF(ctx, doc, configID, wm); err != nil {
		log.Printf("psf skipped: %v", err)
	} else if err := save("psf.png", func() error {
		p, err := plotting.PSFPlot(ps)
		if err != nil {
			return err
		}
		return plotting.Save(p, filepath.Join(dir, prefix+"psf.png"))
	}); err != nil {
		return err
	}

	if len(updates) > 0 {
		if err := save("requirements.html", func() error {
			return writeHTML(filepath.Join(dir, "requirements.html"), func(f *os.File) error {
				return plotting.RequirementsHTML(f, reqs, updates)
			})
		}); err != nil {
			return err
		}
	}
	log.Printf("wrote %d plots to %s", n, dir)
	return nil
}

func writeHTML(path string, render func(*os.File) error) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := render(f); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}
