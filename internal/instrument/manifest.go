package instrument

import (
	_ "embed"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/santhosh-tekuri/jsonschema/v5"
	"gopkg.in/yaml.v3"

	"github.com/KevinKickass/MokuCore/internal/deployment"
	"github.com/KevinKickass/MokuCore/internal/platform"
)

//go:embed schema/manifest-v1.json
var manifestSchemaJSON string

const (
	DefaultVersion    = "1.0.0"
	DefaultNumOutputs = 4
	MaxIO             = 4
)

// Manifest packages a custom FPGA design as a named instrument. All such
// instruments run in a CloudCompile slot.
type Manifest struct {
	Name          string `json:"name" yaml:"name"`
	DisplayName   string `json:"display_name" yaml:"display_name"`
	Description   string `json:"description" yaml:"description"`
	Author        string `json:"author" yaml:"author"`
	Version       string `json:"version" yaml:"version"`
	NumInputs     int    `json:"num_inputs" yaml:"num_inputs"`
	NumOutputs    int    `json:"num_outputs" yaml:"num_outputs"`
	BitstreamPath string `json:"bitstream_path,omitempty" yaml:"bitstream_path,omitempty"`
}

// NewManifest returns a manifest with the default version and outputs.
func NewManifest(name, displayName, description, author string) Manifest {
	return Manifest{
		Name:        name,
		DisplayName: displayName,
		Description: description,
		Author:      author,
		Version:     DefaultVersion,
		NumOutputs:  DefaultNumOutputs,
	}
}

// Validator checks manifests against the embedded schema.
type Validator struct {
	schema *jsonschema.Schema
}

func NewValidator() (*Validator, error) {
	compiler := jsonschema.NewCompiler()

	if err := compiler.AddResource("manifest-v1.json",
		strings.NewReader(manifestSchemaJSON)); err != nil {
		return nil, fmt.Errorf("failed to add schema resource: %w", err)
	}

	schema, err := compiler.Compile("manifest-v1.json")
	if err != nil {
		return nil, fmt.Errorf("failed to compile schema: %w", err)
	}

	return &Validator{schema: schema}, nil
}

func (v *Validator) Validate(m Manifest) error {
	data, err := json.Marshal(m)
	if err != nil {
		return fmt.Errorf("failed to marshal manifest: %w", err)
	}

	var doc interface{}
	if err := json.Unmarshal(data, &doc); err != nil {
		return fmt.Errorf("invalid JSON: %w", err)
	}

	if err := v.schema.Validate(doc); err != nil {
		return fmt.Errorf("manifest %q: schema validation failed: %w", m.Name, err)
	}
	return nil
}

// Validate checks the I/O counts and required fields without the schema.
func (m Manifest) Validate() error {
	required := []struct{ field, value string }{
		{"name", m.Name},
		{"display_name", m.DisplayName},
		{"description", m.Description},
		{"author", m.Author},
	}
	for _, r := range required {
		if strings.TrimSpace(r.value) == "" {
			return fmt.Errorf("manifest: %s is required", r.field)
		}
	}
	if m.NumInputs < 0 || m.NumInputs > MaxIO {
		return fmt.Errorf("manifest %s: num_inputs must be 0-%d, got %d", m.Name, MaxIO, m.NumInputs)
	}
	if m.NumOutputs < 0 || m.NumOutputs > MaxIO {
		return fmt.Errorf("manifest %s: num_outputs must be 0-%d, got %d", m.Name, MaxIO, m.NumOutputs)
	}
	return nil
}

func (m Manifest) String() string {
	return fmt.Sprintf("%s v%s: %dIN/%dOUT", m.DisplayName, m.Version, m.NumInputs, m.NumOutputs)
}

// ParseManifest decodes YAML, filling defaults for absent fields.
func ParseManifest(data []byte) (Manifest, error) {
	m := Manifest{Version: DefaultVersion, NumOutputs: DefaultNumOutputs}
	if err := yaml.Unmarshal(data, &m); err != nil {
		return Manifest{}, fmt.Errorf("failed to parse manifest: %w", err)
	}
	if err := m.Validate(); err != nil {
		return Manifest{}, err
	}
	return m, nil
}

// LoadManifest reads a manifest file. A relative bitstream path is resolved
// against the manifest's directory.
func LoadManifest(path string) (Manifest, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Manifest{}, fmt.Errorf("failed to read manifest: %w", err)
	}

	m, err := ParseManifest(data)
	if err != nil {
		return Manifest{}, fmt.Errorf("%s: %w", path, err)
	}
	if m.BitstreamPath != "" && !filepath.IsAbs(m.BitstreamPath) {
		m.BitstreamPath = filepath.Join(filepath.Dir(path), m.BitstreamPath)
	}
	return m, nil
}

// Save writes the manifest as YAML.
func (m Manifest) Save(path string) error {
	data, err := yaml.Marshal(m)
	if err != nil {
		return fmt.Errorf("failed to encode manifest: %w", err)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write manifest: %w", err)
	}
	return nil
}

// SlotConfig places the instrument in slot index as a CloudCompile slot
// carrying the manifest's bitstream.
func (m Manifest) SlotConfig(index int, params map[string]any) deployment.SlotConfig {
	sc := deployment.NewSlotConfig(index, platform.InstrumentCloudCompile, params)
	sc.Bitstream = m.BitstreamPath
	return sc
}
