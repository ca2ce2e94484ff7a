package routing

import (
	"fmt"

	"github.com/KevinKickass/MokuCore/internal/platform"
)

// Connection routes a signal from Source to Destination.
type Connection struct {
	Source      Endpoint `json:"source" yaml:"source"`
	Destination Endpoint `json:"destination" yaml:"destination"`
}

func NewConnection(source, destination Endpoint) Connection {
	return Connection{Source: source, Destination: destination}
}

// ParseConnection builds a connection from vendor routing names.
func ParseConnection(source, destination string) (Connection, error) {
	src, err := ParseEndpoint(source)
	if err != nil {
		return Connection{}, err
	}
	dst, err := ParseEndpoint(destination)
	if err != nil {
		return Connection{}, err
	}
	return NewConnection(src, dst), nil
}

// Touches reports whether either side of the connection is ep.
func (c Connection) Touches(ep Endpoint) bool {
	return c.Source == ep || c.Destination == ep
}

// TouchesSlot reports whether either side is a channel of slot.
func (c Connection) TouchesSlot(slot int) bool {
	return (!c.Source.IsPort() && c.Source.Slot == slot) ||
		(!c.Destination.IsPort() && c.Destination.Slot == slot)
}

// Reversed reports whether the signal direction is backwards, i.e. the source
// consumes or the destination produces.
func (c Connection) Reversed() bool {
	return !c.Source.Produces() || c.Destination.Produces()
}

// ToDict returns the form accepted by the vendor set_connections() API.
func (c Connection) ToDict() map[string]string {
	return map[string]string{
		"source":      c.Source.String(),
		"destination": c.Destination.String(),
	}
}

func (c Connection) String() string {
	return fmt.Sprintf("%s -> %s", c.Source, c.Destination)
}

// Owner is the configuration a ConnectionList belongs to. The list consults
// it on every mutation.
type Owner interface {
	HasSlot(index int) bool
	Platform() *platform.Spec
	Sealed() bool
}

// CheckEndpoint verifies that ep resolves inside owner: slot endpoints must
// name an occupied slot and a channel the platform provides, port endpoints
// must exist on the platform.
func CheckEndpoint(owner Owner, ep Endpoint) error {
	spec := owner.Platform()

	if ep.IsPort() {
		if spec == nil || !spec.HasPort(ep.Port) {
			return &EndpointError{Endpoint: ep.String(), Reason: "no such physical port on platform"}
		}
		return nil
	}

	if !ep.Channel.Valid() {
		return &EndpointError{Endpoint: ep.String(), Reason: fmt.Sprintf("unknown channel %q", ep.Channel)}
	}
	if spec != nil && ep.Channel.Index() >= spec.SlotChannels {
		return &EndpointError{
			Endpoint: ep.String(),
			Reason:   fmt.Sprintf("platform %s provides %d channels per slot", spec.Name, spec.SlotChannels),
		}
	}
	if !owner.HasSlot(ep.Slot) {
		return &EndpointError{Endpoint: ep.String(), Reason: fmt.Sprintf("slot %d is not configured", ep.Slot)}
	}
	return nil
}

// CheckConnection applies CheckEndpoint to both sides and rejects loops.
func CheckConnection(owner Owner, c Connection) error {
	if c.Source == c.Destination {
		return &EndpointError{Endpoint: c.Source.String(), Reason: "source and destination are the same"}
	}
	if err := CheckEndpoint(owner, c.Source); err != nil {
		return fmt.Errorf("source: %w", err)
	}
	if err := CheckEndpoint(owner, c.Destination); err != nil {
		return fmt.Errorf("destination: %w", err)
	}
	return nil
}
