package deployment

import (
	"bytes"
	_ "embed"
	"encoding/json"
	"fmt"
	"maps"
	"strings"
	"sync"

	"github.com/santhosh-tekuri/jsonschema/v5"
	"gopkg.in/yaml.v3"

	"github.com/KevinKickass/MokuCore/internal/platform"
	"github.com/KevinKickass/MokuCore/internal/routing"
)

//go:embed schema/deployment-v1.json
var deploymentSchemaJSON string

// Document is the serialized form of a Config. The platform is referenced by
// name so platform definitions stay centrally upgradable.
type Document struct {
	Platform string               `json:"platform" yaml:"platform"`
	Slots    []SlotDocument       `json:"slots" yaml:"slots"`
	Routing  []ConnectionDocument `json:"routing" yaml:"routing"`
	Metadata map[string]any       `json:"metadata,omitempty" yaml:"metadata,omitempty"`
	Device   *DeviceBinding       `json:"device,omitempty" yaml:"device,omitempty"`
	Sealed   bool                 `json:"sealed" yaml:"sealed"`
}

type SlotDocument struct {
	Slot             int            `json:"slot" yaml:"slot"`
	Instrument       string         `json:"instrument" yaml:"instrument"`
	Settings         map[string]any `json:"settings,omitempty" yaml:"settings,omitempty"`
	ControlRegisters map[int]uint32 `json:"control_registers,omitempty" yaml:"control_registers,omitempty"`
	Bitstream        string         `json:"bitstream,omitempty" yaml:"bitstream,omitempty"`
}

// ConnectionDocument uses the vendor routing names, e.g. Input1 -> Slot1InA.
type ConnectionDocument struct {
	Source      string `json:"source" yaml:"source"`
	Destination string `json:"destination" yaml:"destination"`
}

// Document snapshots the configuration.
func (c *Config) Document() Document {
	doc := Document{
		Slots:    make([]SlotDocument, 0, len(c.slots)),
		Routing:  make([]ConnectionDocument, 0, c.routing.Len()),
		Metadata: nilIfEmpty(c.metadata),
		Sealed:   c.Sealed(),
	}
	if c.platform != nil {
		doc.Platform = c.platform.Name
	}

	for _, sc := range c.Slots() {
		sd := SlotDocument{
			Slot:       sc.Index,
			Instrument: sc.Instrument,
			Settings:   nilIfEmpty(sc.Parameters),
			Bitstream:  sc.Bitstream,
		}
		if len(sc.ControlRegisters) > 0 {
			sd.ControlRegisters = sc.ControlRegisters
		}
		doc.Slots = append(doc.Slots, sd)
	}

	for _, conn := range c.routing.All() {
		doc.Routing = append(doc.Routing, ConnectionDocument{
			Source:      conn.Source.String(),
			Destination: conn.Destination.String(),
		})
	}

	if c.device != nil {
		d := *c.device
		doc.Device = &d
	}
	return doc
}

func nilIfEmpty(m map[string]any) map[string]any {
	if len(m) == 0 {
		return nil
	}
	return maps.Clone(m)
}

// FromDocument rebuilds a Config through the public mutators, so every rule
// that applies to hand-built configurations applies here too. A document
// marked sealed comes back sealed.
func FromDocument(doc Document, reg *platform.Registry) (*Config, error) {
	spec, err := reg.Get(doc.Platform)
	if err != nil {
		return nil, err
	}

	c := New(spec)
	for _, sd := range doc.Slots {
		sc := NewSlotConfig(sd.Slot, sd.Instrument, sd.Settings)
		sc.ControlRegisters = maps.Clone(sd.ControlRegisters)
		sc.Bitstream = sd.Bitstream
		if err := c.AddSlot(sc); err != nil {
			return nil, fmt.Errorf("failed to add slot %d: %w", sd.Slot, err)
		}
	}

	for i, cd := range doc.Routing {
		conn, err := routing.ParseConnection(cd.Source, cd.Destination)
		if err != nil {
			return nil, fmt.Errorf("routing %d: %w", i, err)
		}
		if err := c.AddConnection(conn); err != nil {
			return nil, fmt.Errorf("routing %d: %w", i, err)
		}
	}

	for k, v := range doc.Metadata {
		if err := c.SetMetadata(k, v); err != nil {
			return nil, err
		}
	}

	if doc.Device != nil {
		if err := c.bind(*doc.Device); err != nil {
			return nil, fmt.Errorf("failed to bind device: %w", err)
		}
	}

	if doc.Sealed {
		if err := c.Seal(); err != nil {
			return nil, err
		}
	}
	return c, nil
}

// CheckDocument reports every problem in doc without stopping at the first.
// Unlike FromDocument it never fails; the result is only a report.
func CheckDocument(doc Document, reg *platform.Registry) Report {
	rep := Report{}

	spec, err := reg.Get(doc.Platform)
	if err != nil {
		rep.addError(Issue{
			Code:    "CONFIG_002",
			Message: err.Error(),
			Field:   "platform",
			Path:    "/platform",
			Hint:    fmt.Sprintf("Known platforms: %s", strings.Join(reg.Names(), ", ")),
			Err:     err,
		})
		rep.finalize()
		return rep
	}

	c := New(spec)
	for i, sd := range doc.Slots {
		if c.HasSlot(sd.Slot) {
			err := fmt.Errorf("%w: slot %d", ErrDuplicateSlot, sd.Slot)
			rep.addError(slotIssue(err, sd.Slot, fmt.Sprintf("/slots/%d", i)))
			continue
		}
		sc := NewSlotConfig(sd.Slot, sd.Instrument, sd.Settings)
		c.slots[sc.Index] = sc
	}

	var entries []routeEntry
	for i, cd := range doc.Routing {
		conn, err := routing.ParseConnection(cd.Source, cd.Destination)
		if err != nil {
			rep.addError(Issue{
				Code:    "ROUTE_004",
				Message: fmt.Sprintf("Connection %d: %v", i, err),
				Path:    fmt.Sprintf("/routing/%d", i),
				Meta:    map[string]any{"connection_index": i},
				Err:     err,
			})
			continue
		}
		entries = append(entries, routeEntry{index: i, conn: conn})
	}

	if doc.Device != nil {
		d := *doc.Device
		c.device = &d
	}

	c.collect(&rep, entries)
	rep.finalize()
	return rep
}

var (
	schemaOnce     sync.Once
	compiledSchema *jsonschema.Schema
	schemaErr      error
)

func documentSchema() (*jsonschema.Schema, error) {
	schemaOnce.Do(func() {
		compiler := jsonschema.NewCompiler()
		if err := compiler.AddResource("deployment-v1.json",
			strings.NewReader(deploymentSchemaJSON)); err != nil {
			schemaErr = fmt.Errorf("failed to add schema resource: %w", err)
			return
		}
		compiledSchema, schemaErr = compiler.Compile("deployment-v1.json")
		if schemaErr != nil {
			schemaErr = fmt.Errorf("failed to compile schema: %w", schemaErr)
		}
	})
	return compiledSchema, schemaErr
}

// ValidateDocumentJSON checks raw JSON against the deployment schema.
func ValidateDocumentJSON(data []byte) error {
	schema, err := documentSchema()
	if err != nil {
		return err
	}

	var v interface{}
	if err := json.Unmarshal(data, &v); err != nil {
		return fmt.Errorf("invalid JSON: %w", err)
	}

	if err := schema.Validate(v); err != nil {
		return fmt.Errorf("schema validation failed: %w", err)
	}
	return nil
}

func (c *Config) MarshalJSON() ([]byte, error) {
	return json.Marshal(c.Document())
}

func (c *Config) MarshalYAML() (interface{}, error) {
	return c.Document(), nil
}

// EncodeJSON returns the indented JSON document of c.
func EncodeJSON(c *Config) ([]byte, error) {
	return json.MarshalIndent(c.Document(), "", "  ")
}

// DecodeJSON validates data against the schema and rebuilds the Config.
func DecodeJSON(data []byte, reg *platform.Registry) (*Config, error) {
	if err := ValidateDocumentJSON(data); err != nil {
		return nil, err
	}

	var doc Document
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	if err := dec.Decode(&doc); err != nil {
		return nil, fmt.Errorf("failed to decode deployment: %w", err)
	}
	return FromDocument(doc, reg)
}

func EncodeYAML(c *Config) ([]byte, error) {
	return yaml.Marshal(c.Document())
}

// DecodeYAML parses a YAML document, then validates it the same way as
// DecodeJSON.
func DecodeYAML(data []byte, reg *platform.Registry) (*Config, error) {
	var doc Document
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}

	raw, err := json.Marshal(doc)
	if err != nil {
		return nil, fmt.Errorf("failed to convert deployment: %w", err)
	}
	if err := ValidateDocumentJSON(raw); err != nil {
		return nil, err
	}
	return FromDocument(doc, reg)
}
