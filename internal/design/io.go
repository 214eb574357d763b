package design

import (
	"encoding/json"
	"fmt"
	"io"

	"github.com/banshee-data/lens.design/internal/monitoring"
	"github.com/banshee-data/lens.design/internal/version"
)

// Load decodes a document, rejects unknown schema versions and applies the
// enumerated upgrades. A missing version is read as schema 1.
func Load(r io.Reader) (Document, error) {
	var doc Document
	if err := json.NewDecoder(r).Decode(&doc); err != nil {
		return Document{}, fmt.Errorf("decode document: %w", err)
	}
	if doc.SchemaVersion == 0 {
		doc.SchemaVersion = 1
	}
	if !version.IsSupportedSchema(doc.SchemaVersion) {
		return Document{}, fmt.Errorf("%w: document schema %d, supported %v", ErrSchemaMismatch, doc.SchemaVersion, version.SupportedSchemas)
	}
	return Migrate(doc), nil
}

// Save encodes doc at the current schema version.
func Save(w io.Writer, doc Document) error {
	out := doc.Clone()
	out.SchemaVersion = version.DocumentSchema
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(out); err != nil {
		return fmt.Errorf("encode document: %w", err)
	}
	return nil
}

// Migrate upgrades a supported older document to the current schema.
// Schema 1 could reference the active configuration by name; schema 2
// references it by id.
func Migrate(doc Document) Document {
	out := doc.Clone()
	if out.SchemaVersion < 2 {
		if _, ok := out.Config(out.ActiveConfigID); !ok {
			if c, ok := out.ConfigByName(out.ActiveConfigID); ok {
				monitoring.Logf("design: activeConfigId %q resolved by name to %q", out.ActiveConfigID, c.ID)
				out.ActiveConfigID = c.ID
			}
		}
		out.SchemaVersion = 2
	}
	return out
}

// ResolveConfigRef maps a requirement's config reference onto an id. Ids
// win; names are accepted for older records; "all" and unknown references
// pass through untouched.
func (d Document) ResolveConfigRef(ref string) string {
	if _, ok := d.Config(ref); ok {
		return ref
	}
	if c, ok := d.ConfigByName(ref); ok {
		return c.ID
	}
	return ref
}
