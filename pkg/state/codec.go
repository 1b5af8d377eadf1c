package state

import (
	"bytes"
	"encoding/json"
	"fmt"
	"path/filepath"
	"strings"

	toml "github.com/pelletier/go-toml/v2"
	"gopkg.in/yaml.v3"
)

// Format names a snapshot encoding.
type Format string

const (
	FormatJSON Format = "json"
	FormatYAML Format = "yaml"
	FormatTOML Format = "toml"
)

// codec marshals snapshot envelopes.
type codec interface {
	format() Format
	marshal(v any) ([]byte, error)
	unmarshal(data []byte, v any) error
}

type jsonCodec struct{}

func (jsonCodec) format() Format                { return FormatJSON }
func (jsonCodec) marshal(v any) ([]byte, error) { return json.MarshalIndent(v, "", "  ") }

// unmarshal keeps numbers as json.Number so integers past 2^53 survive.
func (jsonCodec) unmarshal(data []byte, v any) error {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	return dec.Decode(v)
}

type yamlCodec struct{}

func (yamlCodec) format() Format                     { return FormatYAML }
func (yamlCodec) marshal(v any) ([]byte, error)      { return yaml.Marshal(v) }
func (yamlCodec) unmarshal(data []byte, v any) error { return yaml.Unmarshal(data, v) }

type tomlCodec struct{}

func (tomlCodec) format() Format                     { return FormatTOML }
func (tomlCodec) marshal(v any) ([]byte, error)      { return toml.Marshal(v) }
func (tomlCodec) unmarshal(data []byte, v any) error { return toml.Unmarshal(data, v) }

// FormatForPath picks a format from the file extension of path.
func FormatForPath(path string) (Format, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".json":
		return FormatJSON, nil
	case ".yaml", ".yml":
		return FormatYAML, nil
	case ".toml":
		return FormatTOML, nil
	default:
		return "", fmt.Errorf("state: unsupported snapshot extension %q (want .json, .yaml, .yml or .toml)", filepath.Ext(path))
	}
}

func codecFor(format Format) (codec, error) {
	switch format {
	case FormatJSON:
		return jsonCodec{}, nil
	case FormatYAML:
		return yamlCodec{}, nil
	case FormatTOML:
		return tomlCodec{}, nil
	default:
		return nil, fmt.Errorf("state: unsupported format %q", format)
	}
}

// Encode renders root in the given format without the snapshot envelope.
// It is meant for display, not for persistence.
func Encode(root Bundle, format Format) ([]byte, error) {
	c, err := codecFor(format)
	if err != nil {
		return nil, err
	}
	plain := root.Plain()
	if plain == nil {
		plain = map[string]any{}
	}
	return c.marshal(plain)
}
