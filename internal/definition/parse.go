package definition

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/seantiz/taskflow/internal/model"
)

// ErrInvalid is returned when a pipeline definition is malformed.
var ErrInvalid = errors.New("invalid pipeline definition")

// Parse decodes and validates a pipeline definition.
func Parse(data []byte) (*model.Pipeline, error) {
	if len(bytes.TrimSpace(data)) == 0 {
		return nil, fmt.Errorf("%w: empty document", ErrInvalid)
	}

	dec := yaml.NewDecoder(bytes.NewReader(data))

	var p model.Pipeline
	if err := dec.Decode(&p); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalid, err)
	}
	var extra yaml.Node
	if err := dec.Decode(&extra); !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("%w: expected a single document", ErrInvalid)
	}

	if err := Validate(&p); err != nil {
		return nil, err
	}
	return &p, nil
}

// ParseFile reads and parses the definition at path.
func ParseFile(path string) (*model.Pipeline, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}
	p, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return p, nil
}

// File is a parsed definition together with its source.
type File struct {
	Path     string
	Source   []byte
	Pipeline *model.Pipeline
}

// LoadDir parses every .yaml, .yml and .json file directly inside dir, in
// lexical order. The first invalid file aborts loading.
func LoadDir(dir string) ([]File, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("read pipeline dir: %w", err)
	}

	var names []string
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		switch strings.ToLower(filepath.Ext(e.Name())) {
		case ".yaml", ".yml", ".json":
			names = append(names, e.Name())
		}
	}
	sort.Strings(names)

	files := make([]File, 0, len(names))
	for _, name := range names {
		path := filepath.Join(dir, name)
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read %s: %w", path, err)
		}
		p, err := Parse(data)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", path, err)
		}
		files = append(files, File{Path: path, Source: data, Pipeline: p})
	}
	return files, nil
}
