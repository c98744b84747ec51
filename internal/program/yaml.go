package program

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"

	"github.com/roach88/koloss/internal/term"
)

// DecodeYAML decodes a YAML program document. Unknown top-level fields are
// rejected.
func DecodeYAML(data []byte, syms *term.SymbolTable) (*Program, error) {
	var doc document
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&doc); err != nil {
		if errors.Is(err, io.EOF) {
			return &Program{}, nil
		}
		return nil, term.Errorf(term.CodeParse, "yaml: %v", err)
	}
	return doc.build(syms)
}

// LoadFile decodes a program file, choosing the decoder by extension
// (.yaml, .yml or .cue).
func LoadFile(path string, syms *term.SymbolTable) (*Program, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading program: %w", err)
	}
	var p *Program
	switch filepath.Ext(path) {
	case ".yaml", ".yml":
		p, err = DecodeYAML(data, syms)
	case ".cue":
		p, err = CompileCUE(data, path, syms)
	default:
		return nil, term.Errorf(term.CodeParse, "unsupported program file %s (want .yaml, .yml or .cue)", path)
	}
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	if p.Name == "" {
		base := filepath.Base(path)
		p.Name = base[:len(base)-len(filepath.Ext(base))]
	}
	return p, nil
}
