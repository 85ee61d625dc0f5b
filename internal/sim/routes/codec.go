package routes

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"

	"github.com/santhosh-tekuri/jsonschema/v5"

	"clawoffice.ai/schemas"
)

var (
	schemaOnce sync.Once
	schema     *jsonschema.Schema
	schemaErr  error
)

func catalogSchema() (*jsonschema.Schema, error) {
	schemaOnce.Do(func() {
		raw, err := schemas.FS.ReadFile("route_catalog.schema.json")
		if err != nil {
			schemaErr = err
			return
		}
		c := jsonschema.NewCompiler()
		if err := c.AddResource(schemas.RouteCatalogURL, bytes.NewReader(raw)); err != nil {
			schemaErr = err
			return
		}
		schema, schemaErr = c.Compile(schemas.RouteCatalogURL)
	})
	return schema, schemaErr
}

// Decode validates raw catalog JSON against the catalog schema and decodes it.
func Decode(raw []byte) ([]Route, error) {
	s, err := catalogSchema()
	if err != nil {
		return nil, fmt.Errorf("route catalog schema: %w", err)
	}
	var doc any
	if err := json.Unmarshal(raw, &doc); err != nil {
		return nil, fmt.Errorf("route catalog: %w", err)
	}
	if err := s.Validate(doc); err != nil {
		return nil, fmt.Errorf("route catalog: %w", err)
	}
	var out []Route
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil, fmt.Errorf("route catalog: %w", err)
	}
	return out, nil
}

func DecodeReader(r io.Reader) ([]Route, error) {
	raw, err := io.ReadAll(r)
	if err != nil {
		return nil, err
	}
	return Decode(raw)
}

func Encode(rs []Route) ([]byte, error) {
	if rs == nil {
		rs = []Route{}
	}
	return json.MarshalIndent(rs, "", "  ")
}

func LoadFile(path string) ([]Route, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return Decode(raw)
}

// WriteFile writes the catalog through a temp file and rename so readers
// never see a partial catalog.
func WriteFile(path string, rs []Route) error {
	b, err := Encode(rs)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, append(b, '\n'), 0o644); err != nil {
		return err
	}
	return os.Rename(tmp, path)
}
