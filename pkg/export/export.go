// Package export serializes an embedding grid for clipboard copy and file download.
package export

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/menta2k/embedviz/pkg/grid"
)

// BaseName is the file name stem used for downloads.
const BaseName = "embedding_matrix"

// Supported formats
const (
	FormatJSON = "json"
	FormatYAML = "yaml"
)

// ErrNoMatrix is returned when there is nothing to export.
var ErrNoMatrix = errors.New("no matrix to export")

// File is a downloadable payload
type File struct {
	Name     string
	MIMEType string
	Data     []byte
}

// Exporter renders a grid as pretty-printed text.
type Exporter struct {
	format string
}

// New returns a JSON exporter.
func New() *Exporter {
	return &Exporter{format: FormatJSON}
}

// NewWithFormat returns an exporter for "json" or "yaml".
func NewWithFormat(format string) (*Exporter, error) {
	switch f := strings.ToLower(strings.TrimSpace(format)); f {
	case FormatJSON, "":
		return &Exporter{format: FormatJSON}, nil
	case FormatYAML, "yml":
		return &Exporter{format: FormatYAML}, nil
	default:
		return nil, fmt.Errorf("unsupported export format: %s", format)
	}
}

// Format returns the exporter's format name.
func (e *Exporter) Format() string {
	return e.format
}

// FileName returns embedding_matrix.<ext>.
func (e *Exporter) FileName() string {
	return BaseName + "." + e.format
}

// MIMEType returns the content type of the payload.
func (e *Exporter) MIMEType() string {
	if e.format == FormatYAML {
		return "application/yaml"
	}
	return "application/json"
}

// Marshal renders the grid. JSON uses a two-space indent with one number per line.
func (e *Exporter) Marshal(g grid.Grid) ([]byte, error) {
	if len(g) == 0 {
		return nil, ErrNoMatrix
	}
	if e.format == FormatYAML {
		var buf bytes.Buffer
		enc := yaml.NewEncoder(&buf)
		enc.SetIndent(2)
		if err := enc.Encode([][]float64(g)); err != nil {
			return nil, fmt.Errorf("failed to marshal matrix: %w", err)
		}
		if err := enc.Close(); err != nil {
			return nil, fmt.Errorf("failed to marshal matrix: %w", err)
		}
		return buf.Bytes(), nil
	}
	data, err := json.MarshalIndent([][]float64(g), "", "  ")
	if err != nil {
		return nil, fmt.Errorf("failed to marshal matrix: %w", err)
	}
	return data, nil
}

// ClipboardPayload returns the text placed on the clipboard.
func (e *Exporter) ClipboardPayload(g grid.Grid) (string, error) {
	data, err := e.Marshal(g)
	if err != nil {
		return "", err
	}
	return string(data), nil
}

// File returns the download payload.
func (e *Exporter) File(g grid.Grid) (File, error) {
	data, err := e.Marshal(g)
	if err != nil {
		return File{}, err
	}
	return File{Name: e.FileName(), MIMEType: e.MIMEType(), Data: data}, nil
}

// WriteFile writes the download payload into dir and returns its path.
func (e *Exporter) WriteFile(dir string, g grid.Grid) (string, error) {
	f, err := e.File(g)
	if err != nil {
		return "", err
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("failed to create export directory: %w", err)
	}
	path := filepath.Join(dir, f.Name)
	if err := os.WriteFile(path, f.Data, 0o644); err != nil {
		return "", fmt.Errorf("failed to write export file: %w", err)
	}
	return path, nil
}

// Parse reads a matrix written by Marshal. YAML is a superset of JSON, so both
// formats go through the YAML decoder unless the input is plainly JSON.
func Parse(data []byte) (grid.Grid, error) {
	var m [][]float64
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 {
		return nil, ErrNoMatrix
	}
	var err error
	if trimmed[0] == '[' {
		err = json.Unmarshal(trimmed, &m)
	} else {
		err = yaml.Unmarshal(trimmed, &m)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to parse matrix: %w", err)
	}
	if len(m) == 0 {
		return nil, ErrNoMatrix
	}
	return grid.Grid(m), nil
}

// ReadFile parses a matrix file.
func ReadFile(path string) (grid.Grid, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read matrix file: %w", err)
	}
	return Parse(data)
}
