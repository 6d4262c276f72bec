package registry

import (
	"bytes"
	"encoding/json"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/BurntSushi/toml"
	"gopkg.in/yaml.v3"

	"github.com/ZebulonRouseFrantzich/depfetch/internal/platform"
)

// codec converts between a registry file's bytes and a Table.
type codec interface {
	decode(data []byte) (Table, error)
	encode(table Table) ([]byte, error)
}

// codecFor picks the codec for path by extension.
func codecFor(path string, info *platform.Info) (codec, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".json":
		return jsonCodec{}, nil
	case ".toml":
		return tomlCodec{}, nil
	case ".yaml", ".yml":
		return yamlCodec{}, nil
	case ".lua":
		return &luaCodec{platform: info}, nil
	default:
		return nil, fmt.Errorf("unsupported registry format %q (want .json, .toml, .yaml or .lua)", filepath.Ext(path))
	}
}

type jsonCodec struct{}

func (jsonCodec) decode(data []byte) (Table, error) {
	table := Table{}
	if err := json.Unmarshal(data, &table); err != nil {
		return nil, &ParseError{Message: "JSON syntax error", Detail: err.Error()}
	}
	return table, nil
}

// encode keeps the four-space indentation of hand-maintained source files.
func (jsonCodec) encode(table Table) ([]byte, error) {
	data, err := json.MarshalIndent(table, "", "    ")
	if err != nil {
		return nil, err
	}
	return append(data, '\n'), nil
}

type tomlCodec struct{}

func (tomlCodec) decode(data []byte) (Table, error) {
	table := Table{}
	if _, err := toml.Decode(string(data), &table); err != nil {
		return nil, &ParseError{Message: "TOML syntax error", Detail: err.Error()}
	}
	return table, nil
}

func (tomlCodec) encode(table Table) ([]byte, error) {
	var buf bytes.Buffer
	if err := toml.NewEncoder(&buf).Encode(table); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

type yamlCodec struct{}

func (yamlCodec) decode(data []byte) (Table, error) {
	table := Table{}
	if err := yaml.Unmarshal(data, &table); err != nil {
		return nil, &ParseError{Message: "YAML syntax error", Detail: err.Error()}
	}
	return table, nil
}

func (yamlCodec) encode(table Table) ([]byte, error) {
	var buf bytes.Buffer
	enc := yaml.NewEncoder(&buf)
	enc.SetIndent(2)
	if err := enc.Encode(table); err != nil {
		return nil, err
	}
	if err := enc.Close(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
