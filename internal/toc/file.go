package toc

import (
	_ "embed"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	jsonschema "github.com/santhosh-tekuri/jsonschema/v5"
	"gopkg.in/yaml.v3"
)

//go:embed toc.schema.json
var schemaSource string

const schemaURL = "mem://reportgen/toc.schema.json"

var (
	schemaOnce     sync.Once
	compiledSchema *jsonschema.Schema
	schemaErr      error
)

type fileDoc struct {
	Sections []Node `json:"sections" yaml:"sections"`
}

func loadSchema() (*jsonschema.Schema, error) {
	schemaOnce.Do(func() {
		compiler := jsonschema.NewCompiler()
		if err := compiler.AddResource(schemaURL, strings.NewReader(schemaSource)); err != nil {
			schemaErr = err
			return
		}
		compiledSchema, schemaErr = compiler.Compile(schemaURL)
	})
	return compiledSchema, schemaErr
}

// LoadFile reads a TOC from a YAML or JSON file.
func LoadFile(path string) (TOC, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		var v any
		if err := yaml.Unmarshal(raw, &v); err != nil {
			return nil, fmt.Errorf("failed to parse %s: %w", path, err)
		}
		if raw, err = json.Marshal(v); err != nil {
			return nil, fmt.Errorf("failed to normalize %s: %w", path, err)
		}
	}
	return Parse(raw)
}

// Parse validates a JSON document against the TOC schema and builds nodes.
func Parse(raw []byte) (TOC, error) {
	schema, err := loadSchema()
	if err != nil {
		return nil, fmt.Errorf("failed to compile toc schema: %w", err)
	}

	var v any
	if err := json.Unmarshal(raw, &v); err != nil {
		return nil, fmt.Errorf("failed to parse toc: %w", err)
	}
	if err := schema.Validate(v); err != nil {
		return nil, fmt.Errorf("toc schema validation failed: %w", err)
	}

	var doc fileDoc
	if err := json.Unmarshal(raw, &doc); err != nil {
		return nil, fmt.Errorf("failed to decode toc: %w", err)
	}

	out := make(TOC, 0, len(doc.Sections))
	for _, s := range doc.Sections {
		n, err := NewNode(s.Number, s.Title, s.Level, s.Emphasis, s.WordCount)
		if err != nil {
			return nil, err
		}
		out = append(out, n)
	}
	return out, nil
}

// Marshal renders the TOC in the same document shape that Parse accepts.
func Marshal(t TOC) ([]byte, error) {
	if t == nil {
		t = TOC{}
	}
	return json.MarshalIndent(fileDoc{Sections: t}, "", "  ")
}
