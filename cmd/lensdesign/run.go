package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"os"
	"path/filepath"
	"strings"

	"github.com/banshee-data/lens.design/internal/config"
	"github.com/banshee-data/lens.design/internal/design"
	"github.com/banshee-data/lens.design/internal/engine"
	"github.com/banshee-data/lens.design/internal/glass"
	"github.com/banshee-data/lens.design/internal/monitoring"
	"github.com/banshee-data/lens.design/internal/optimize"
	"github.com/banshee-data/lens.design/internal/progress"
	"github.com/banshee-data/lens.design/internal/requirements"
	"github.com/banshee-data/lens.design/internal/security"
	"github.com/banshee-data/lens.design/internal/storage/sqlite"
	"github.com/banshee-data/lens.design/internal/units"
)

type options struct {
	DesignPath       string
	RequirementsPath string
	ConfigPath       string
	ConfigID         string
	Scenario         string
	Catalogs         []string
	Optimize         bool
	Method           string
	Evaluations      int
	OutPath          string
	PlotDir          string
	DBPath           string
	Verbose          bool
	// LengthUnit is the first-order report unit; empty means mm.
	LengthUnit string
}

func run(ctx context.Context, o options, w io.Writer) error {
	if o.LengthUnit == "" {
		o.LengthUnit = units.MM
	}
	if !units.IsValidLength(o.LengthUnit) {
		return fmt.Errorf("invalid length unit %q, want one of %s", o.LengthUnit, strings.Join(units.ValidLengthUnits, ", "))
	}
	cfg := config.DefaultEngineConfig()
	if o.ConfigPath != "" {
		var err error
		if cfg, err = config.LoadEngineConfig(o.ConfigPath); err != nil {
			return err
		}
	}
	cat, err := loadCatalog(o.Catalogs)
	if err != nil {
		return err
	}
	doc, err := loadDocument(o.DesignPath)
	if err != nil {
		return err
	}
	if o.Scenario != "" {
		if doc, err = design.WithOverrides(doc, o.Scenario); err != nil {
			return err
		}
	}
	id := doc.ActiveConfigID
	if o.ConfigID != "" {
		id = doc.ResolveConfigRef(o.ConfigID)
	}

	eng := engine.New(cat, cfg)
	if o.Verbose {
		eng.Progress = logProgress
	}

	pr, err := eng.Paraxial(doc, id)
	if err != nil {
		return fmt.Errorf("paraxial analysis: %w", err)
	}
	writeParaxial(w, id, pr, units.Normalize(o.LengthUnit))

	var reqs []requirements.Requirement
	if o.RequirementsPath != "" {
		if reqs, err = loadRequirements(o.RequirementsPath, doc); err != nil {
			return err
		}
	}

	var updates []requirements.Update
	if len(reqs) > 0 {
		if updates, err = eng.Evaluate(ctx, reqs, doc); err != nil {
			return fmt.Errorf("evaluate requirements: %w", err)
		}
		writeRequirements(w, reqs, updates)
	}

	if o.Optimize {
		if len(reqs) == 0 {
			return fmt.Errorf("-optimize needs -requirements")
		}
		opt := optimize.Options{Method: optimize.Method(strings.ToLower(o.Method)), FuncEvaluations: o.Evaluations}
		if o.Verbose {
			opt.Progress = logProgress
		}
		res, err := optimize.Run(ctx, eng, reqs, doc, opt)
		if err != nil {
			return fmt.Errorf("optimise: %w", err)
		}
		writeOptimization(w, res)
		doc, updates = res.Document, res.Requirements
		writeRequirements(w, reqs, updates)
	}

	if o.OutPath != "" {
		if err := security.ValidateOutputPath(o.OutPath); err != nil {
			return err
		}
		if err := saveDocument(o.OutPath, doc); err != nil {
			return err
		}
		log.Printf("wrote %s", o.OutPath)
	}
	if o.PlotDir != "" {
		if err := writePlots(ctx, eng, doc, id, o.PlotDir, reqs, updates); err != nil {
			return err
		}
	}
	if o.DBPath != "" {
		if err := record(o.DBPath, o.DesignPath, doc, cfg, updates); err != nil {
			return err
		}
	}
	return nil
}

func logProgress(r progress.Report) bool {
	monitoring.Logf("%5.1f%% %s", r.Percent, r.Message)
	return true
}

// loadCatalog puts user catalogs ahead of the built-in sources.
func loadCatalog(paths []string) (*glass.Catalog, error) {
	var sources []*glass.Source
	for _, p := range paths {
		f, err := os.Open(p)
		if err != nil {
			return nil, fmt.Errorf("open glass catalog: %w", err)
		}
		var mats []glass.Material
		switch strings.ToLower(filepath.Ext(p)) {
		case ".agf":
			mats, err = glass.ParseAGF(f)
		case ".json":
			mats, err = glass.ReadJSON(f)
		default:
			err = fmt.Errorf("unsupported catalog extension %q", filepath.Ext(p))
		}
		f.Close()
		if err != nil {
			return nil, fmt.Errorf("%s: %w", p, err)
		}
		name := strings.TrimSuffix(filepath.Base(p), filepath.Ext(p))
		sources = append(sources, glass.NewSource(strings.ToLower(name), mats))
		log.Printf("loaded %d glasses from %s", len(mats), p)
	}
	return glass.NewCatalog(append(sources, glass.DefaultCatalog().Sources()...)...), nil
}

func loadDocument(path string) (design.Document, error) {
	f, err := os.Open(path)
	if err != nil {
		return design.Document{}, fmt.Errorf("open design: %w", err)
	}
	defer f.Close()
	return design.Load(f)
}

func loadRequirements(path string, doc design.Document) ([]requirements.Requirement, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open requirements: %w", err)
	}
	defer f.Close()
	return requirements.Load(f, doc)
}

func saveDocument(path string, doc design.Document) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create %s: %w", path, err)
	}
	if err := design.Save(f, doc); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

// record stores the document under its file name and attaches the run.
func record(dbPath, designPath string, doc design.Document, cfg *config.EngineConfig, updates []requirements.Update) error {
	db, err := sqlite.Open(dbPath)
	if err != nil {
		return err
	}
	defer db.Close()

	docs := sqlite.NewDocumentStore(db)
	name := filepath.Base(designPath)
	stored := &sqlite.StoredDocument{Name: name, Document: doc}
	list, err := docs.List()
	if err != nil {
		return err
	}
	for _, s := range list {
		if s.Name == name {
			stored.DocumentID = s.DocumentID
			break
		}
	}
	if err := docs.Save(stored); err != nil {
		return err
	}

	run := sqlite.NewEvaluationRun(stored.DocumentID, stored.Revision, updates)
	if run.EngineJSON, err = json.Marshal(cfg); err != nil {
		return fmt.Errorf("encode engine config: %w", err)
	}
	if err := sqlite.NewEvaluationRunStore(db).Insert(run); err != nil {
		return err
	}
	log.Printf("recorded run %s for %s rev %d", run.RunID, name, stored.Revision)
	return nil
}
