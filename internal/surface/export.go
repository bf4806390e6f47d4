package surface

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

// Document formats.
const (
	FormatJSON = "json"
	FormatYAML = "yaml"
)

// DocumentJSON returns the indented JSON encoding of the document. The output
// depends only on the operations and info passed to Generate.
func (s *Surface) DocumentJSON() ([]byte, error) {
	b, err := json.MarshalIndent(s.Document, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("encoding openapi document: %w", err)
	}
	return append(b, '\n'), nil
}

// WriteDocument writes the document to w in the given format.
func (s *Surface) WriteDocument(w io.Writer, format string) error {
	data, err := s.DocumentJSON()
	if err != nil {
		return err
	}

	switch strings.ToLower(format) {
	case "", FormatJSON:
	case FormatYAML, "yml":
		if data, err = jsonToYAML(data); err != nil {
			return err
		}
	default:
		return fmt.Errorf("unsupported document format %q (want json or yaml)", format)
	}

	_, err = w.Write(data)
	return err
}

// WriteDocumentFile writes the document to path, choosing YAML for .yaml and
// .yml extensions and JSON otherwise.
func (s *Surface) WriteDocumentFile(path string) error {
	format := FormatJSON
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		format = FormatYAML
	}

	var buf bytes.Buffer
	if err := s.WriteDocument(&buf, format); err != nil {
		return err
	}
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("creating document directory: %w", err)
		}
	}
	if err := os.WriteFile(path, buf.Bytes(), 0o644); err != nil {
		return fmt.Errorf("writing openapi document: %w", err)
	}
	return nil
}

// jsonToYAML re-encodes JSON as block-style YAML, keeping key order.
func jsonToYAML(data []byte) ([]byte, error) {
	var node yaml.Node
	if err := yaml.Unmarshal(data, &node); err != nil {
		return nil, fmt.Errorf("converting document to yaml: %w", err)
	}
	resetStyle(&node)

	var buf bytes.Buffer
	enc := yaml.NewEncoder(&buf)
	enc.SetIndent(2)
	if err := enc.Encode(&node); err != nil {
		return nil, fmt.Errorf("encoding yaml: %w", err)
	}
	if err := enc.Close(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func resetStyle(n *yaml.Node) {
	n.Style = 0
	for _, c := range n.Content {
		resetStyle(c)
	}
}
