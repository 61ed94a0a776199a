package pset

import (
	"bytes"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/BurntSushi/toml"
	json "github.com/json-iterator/go"
	"gopkg.in/yaml.v3"
)

// Format names a document encoding.
type Format string

const (
	FormatTOML Format = "toml"
	FormatJSON Format = "json"
	FormatYAML Format = "yaml"
)

// ParseFormat validates a format name.
func ParseFormat(s string) (Format, error) {
	switch f := Format(strings.ToLower(s)); f {
	case FormatTOML, FormatJSON, FormatYAML:
		return f, nil
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownFormat, s)
}

// DetectFormat determines format from file extension, or "" if unknown
func DetectFormat(path string) Format {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".toml", ".tml":
		return FormatTOML
	case ".json":
		return FormatJSON
	case ".yaml", ".yml":
		return FormatYAML
	}
	return ""
}

// document is the serialized form of a set: an ordered list of fields, each
// carrying its kind and tracking flag so both survive a round trip.
type document struct {
	Fields []fieldDocument `toml:"field" json:"fields" yaml:"fields"`
}

type fieldDocument struct {
	Name    string          `toml:"name" json:"name" yaml:"name"`
	Type    string          `toml:"type" json:"type" yaml:"type"`
	Tracked bool            `toml:"tracked" json:"tracked" yaml:"tracked"`
	Value   any             `toml:"value" json:"value,omitempty" yaml:"value,omitempty"`
	Fields  []fieldDocument `toml:"field,omitempty" json:"fields,omitempty" yaml:"fields,omitempty"`
}

func toDocument(ps *ParameterSet) []fieldDocument {
	out := make([]fieldDocument, 0, ps.Len())
	for _, f := range ps.Fields() {
		fd := fieldDocument{Name: f.Name, Type: f.Value.kind.String(), Tracked: f.Tracked}
		if nested, isSet := f.Value.data.(*ParameterSet); isSet {
			fd.Fields = toDocument(nested)
		} else {
			fd.Value = f.Value.Interface()
		}
		out = append(out, fd)
	}
	return out
}

func fromDocument(fields []fieldDocument) (*ParameterSet, error) {
	b := NewBuilder()
	for _, fd := range fields {
		kind, err := ParseKind(fd.Type)
		if err != nil {
			return nil, fmt.Errorf("field %s: %w", fd.Name, err)
		}

		var v Value
		if kind == KindPSet {
			nested, err := fromDocument(fd.Fields)
			if err != nil {
				return nil, fmt.Errorf("in %s: %w", fd.Name, err)
			}
			v = PSetValue(nested)
		} else if v, err = coerce(kind, fd.Value); err != nil {
			return nil, fmt.Errorf("field %s: %w", fd.Name, err)
		}
		b.Set(Field{Name: fd.Name, Value: v, Tracked: fd.Tracked})
	}
	return b.Build()
}

// Encode writes ps to w in the given document format.
func Encode(w io.Writer, ps *ParameterSet, format Format) error {
	doc := document{Fields: toDocument(ps)}

	switch format {
	case FormatTOML:
		if err := toml.NewEncoder(w).Encode(doc); err != nil {
			return fmt.Errorf("failed to marshal parameter set to TOML: %w", err)
		}
	case FormatJSON:
		encoder := json.NewEncoder(w)
		encoder.SetIndent("", "  ")
		if err := encoder.Encode(doc); err != nil {
			return fmt.Errorf("failed to marshal parameter set to JSON: %w", err)
		}
	case FormatYAML:
		encoder := yaml.NewEncoder(w)
		encoder.SetIndent(2)
		if err := encoder.Encode(doc); err != nil {
			return fmt.Errorf("failed to marshal parameter set to YAML: %w", err)
		}
		if err := encoder.Close(); err != nil {
			return fmt.Errorf("failed to flush YAML encoder: %w", err)
		}
	default:
		return fmt.Errorf("%w: %q", ErrUnknownFormat, format)
	}
	return nil
}

// Decode reads a set previously written by Encode.
func Decode(r io.Reader, format Format) (*ParameterSet, error) {
	var doc document

	switch format {
	case FormatTOML:
		if _, err := toml.NewDecoder(r).Decode(&doc); err != nil {
			return nil, fmt.Errorf("failed to parse TOML parameter set: %w", err)
		}
	case FormatJSON:
		if err := json.NewDecoder(r).Decode(&doc); err != nil {
			return nil, fmt.Errorf("failed to parse JSON parameter set: %w", err)
		}
	case FormatYAML:
		if err := yaml.NewDecoder(r).Decode(&doc); err != nil && err != io.EOF {
			return nil, fmt.Errorf("failed to parse YAML parameter set: %w", err)
		}
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownFormat, format)
	}

	return fromDocument(doc.Fields)
}

// Marshal is Encode into a byte slice.
func Marshal(ps *ParameterSet, format Format) ([]byte, error) {
	var buf bytes.Buffer
	if err := Encode(&buf, ps, format); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// Unmarshal is Decode from a byte slice.
func Unmarshal(data []byte, format Format) (*ParameterSet, error) {
	return Decode(bytes.NewReader(data), format)
}

// SaveFile writes ps atomically to path, choosing the format from the extension.
func SaveFile(path string, ps *ParameterSet) error {
	format := DetectFormat(path)
	if format == "" {
		return fmt.Errorf("%w: cannot determine format of '%s'", ErrUnknownFormat, path)
	}
	data, err := Marshal(ps, format)
	if err != nil {
		return err
	}
	return atomicWriteFile(path, data)
}

// LoadFile reads a set saved by SaveFile.
func LoadFile(path string) (*ParameterSet, error) {
	format := DetectFormat(path)
	if format == "" {
		return nil, fmt.Errorf("%w: cannot determine format of '%s'", ErrUnknownFormat, path)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read parameter set file '%s': %w", path, err)
	}
	ps, err := Unmarshal(data, format)
	if err != nil {
		return nil, fmt.Errorf("'%s': %w", path, err)
	}
	return ps, nil
}

// atomicWriteFile performs atomic file write
func atomicWriteFile(path string, data []byte) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create directory '%s': %w", dir, err)
	}

	tempFile, err := os.CreateTemp(dir, filepath.Base(path)+".*.tmp")
	if err != nil {
		return fmt.Errorf("failed to create temporary file: %w", err)
	}

	tempPath := tempFile.Name()
	removed := false
	defer func() {
		if !removed {
			os.Remove(tempPath)
		}
	}()

	if _, err := tempFile.Write(data); err != nil {
		tempFile.Close()
		return fmt.Errorf("failed to write temporary file: %w", err)
	}

	if err := tempFile.Sync(); err != nil {
		tempFile.Close()
		return fmt.Errorf("failed to sync temporary file: %w", err)
	}

	if err := tempFile.Close(); err != nil {
		return fmt.Errorf("failed to close temporary file: %w", err)
	}

	if err := os.Chmod(tempPath, 0644); err != nil {
		return fmt.Errorf("failed to set permissions: %w", err)
	}

	if err := os.Rename(tempPath, path); err != nil {
		return fmt.Errorf("failed to rename temporary file: %w", err)
	}
	removed = true

	return nil
}
