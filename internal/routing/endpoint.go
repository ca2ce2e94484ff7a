package routing

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

// Channel is a virtual port of an instrument slot.
type Channel string

const (
	InA  Channel = "InA"
	InB  Channel = "InB"
	InC  Channel = "InC"
	InD  Channel = "InD"
	OutA Channel = "OutA"
	OutB Channel = "OutB"
	OutC Channel = "OutC"
	OutD Channel = "OutD"
)

// IsInput reports whether the channel feeds a signal into the slot.
func (c Channel) IsInput() bool {
	return strings.HasPrefix(string(c), "In")
}

// Index returns the zero-based lane (A=0 .. D=3), or -1 for an unknown channel.
func (c Channel) Index() int {
	s := string(c)
	switch {
	case strings.HasPrefix(s, "Out"):
		s = strings.TrimPrefix(s, "Out")
	case strings.HasPrefix(s, "In"):
		s = strings.TrimPrefix(s, "In")
	default:
		return -1
	}
	if len(s) != 1 || s[0] < 'A' || s[0] > 'D' {
		return -1
	}
	return int(s[0] - 'A')
}

func (c Channel) Valid() bool {
	return c.Index() >= 0
}

// Endpoint is one side of a connection: either a slot channel or a physical
// port of the platform. Slot indices are zero-based; the string form follows
// the vendor routing names where slot 0 is "Slot1".
type Endpoint struct {
	Port    string
	Slot    int
	Channel Channel
}

func SlotEndpoint(slot int, ch Channel) Endpoint {
	return Endpoint{Slot: slot, Channel: ch}
}

func PortEndpoint(name string) Endpoint {
	return Endpoint{Port: name}
}

func (e Endpoint) IsPort() bool {
	return e.Port != ""
}

// Produces reports whether the endpoint is a signal source: a physical input
// or a slot output channel.
func (e Endpoint) Produces() bool {
	if e.IsPort() {
		return strings.HasPrefix(e.Port, "Input")
	}
	return !e.Channel.IsInput()
}

func (e Endpoint) String() string {
	if e.IsPort() {
		return e.Port
	}
	return fmt.Sprintf("Slot%d%s", e.Slot+1, e.Channel)
}

func (e Endpoint) MarshalText() ([]byte, error) {
	return []byte(e.String()), nil
}

func (e *Endpoint) UnmarshalText(text []byte) error {
	ep, err := ParseEndpoint(string(text))
	if err != nil {
		return err
	}
	*e = ep
	return nil
}

var (
	slotEndpointRe = regexp.MustCompile(`^Slot([0-9]+)((?:In|Out)[A-D])$`)
	portEndpointRe = regexp.MustCompile(`^(Input|Output|IN|OUT)([0-9]+)$`)
	portLetterRe   = regexp.MustCompile(`^(Input|Output)([A-D])$`)
)

// ParseEndpoint parses vendor routing names: Input1, Output2, Slot1InA,
// Slot2OutB. Port ids (IN1, OUT2) and lettered names (InputA, OutputB) are
// normalized to Input1 / Output2.
func ParseEndpoint(s string) (Endpoint, error) {
	name := strings.TrimSpace(s)
	if name == "" {
		return Endpoint{}, &EndpointError{Endpoint: s, Reason: "port name cannot be empty"}
	}

	if m := slotEndpointRe.FindStringSubmatch(name); m != nil {
		n, err := strconv.Atoi(m[1])
		if err != nil || n < 1 {
			return Endpoint{}, &EndpointError{Endpoint: s, Reason: "slot numbers start at 1"}
		}
		return SlotEndpoint(n-1, Channel(m[2])), nil
	}

	if m := portEndpointRe.FindStringSubmatch(name); m != nil {
		switch m[1] {
		case "IN":
			return PortEndpoint("Input" + m[2]), nil
		case "OUT":
			return PortEndpoint("Output" + m[2]), nil
		}
		return PortEndpoint(name), nil
	}

	if m := portLetterRe.FindStringSubmatch(name); m != nil {
		return PortEndpoint(m[1] + strconv.Itoa(int(m[2][0]-'A')+1)), nil
	}

	return Endpoint{}, &EndpointError{Endpoint: s, Reason: "unrecognized port name"}
}
