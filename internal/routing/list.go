package routing

import (
	"fmt"
	"slices"
)

// ConnectionList is the ordered routing table of one configuration. Order is
// significant: it is the order connections are applied.
//
// Endpoints are validated eagerly against the owner, so slots must be added
// before connections that use them.
type ConnectionList struct {
	owner Owner
	conns []Connection
}

// NewConnectionList returns an empty list bound to owner.
func NewConnectionList(owner Owner) *ConnectionList {
	if owner == nil {
		panic("routing: connection list requires an owner")
	}
	return &ConnectionList{owner: owner}
}

// Add appends a connection after checking both endpoints.
func (l *ConnectionList) Add(c Connection) error {
	if l.owner.Sealed() {
		return ErrSealed
	}
	if err := CheckConnection(l.owner, c); err != nil {
		return err
	}
	l.conns = append(l.conns, c)
	return nil
}

// Remove deletes the first connection equal to c.
func (l *ConnectionList) Remove(c Connection) error {
	if l.owner.Sealed() {
		return ErrSealed
	}
	i := slices.Index(l.conns, c)
	if i < 0 {
		return fmt.Errorf("%w: %s", ErrConnectionNotFound, c)
	}
	l.conns = slices.Delete(l.conns, i, i+1)
	return nil
}

// Resolve returns every connection touching ep, in insertion order.
func (l *ConnectionList) Resolve(ep Endpoint) []Connection {
	var out []Connection
	for _, c := range l.conns {
		if c.Touches(ep) {
			out = append(out, c)
		}
	}
	return out
}

// ResolveSlot returns every connection touching any channel of slot.
func (l *ConnectionList) ResolveSlot(slot int) []Connection {
	var out []Connection
	for _, c := range l.conns {
		if c.TouchesSlot(slot) {
			out = append(out, c)
		}
	}
	return out
}

func (l *ConnectionList) ReferencesSlot(slot int) bool {
	return slices.ContainsFunc(l.conns, func(c Connection) bool { return c.TouchesSlot(slot) })
}

// All returns a copy of the connections in order.
func (l *ConnectionList) All() []Connection {
	return slices.Clone(l.conns)
}

func (l *ConnectionList) Len() int {
	return len(l.conns)
}

// ToDictList converts to the vendor set_connections() format.
func (l *ConnectionList) ToDictList() []map[string]string {
	out := make([]map[string]string, 0, len(l.conns))
	for _, c := range l.conns {
		out = append(out, c.ToDict())
	}
	return out
}

// ParseDictList parses the vendor connection list format. The result is not
// bound to any configuration; add it to one with Add.
func ParseDictList(data []map[string]string) ([]Connection, error) {
	conns := make([]Connection, 0, len(data))
	for i, d := range data {
		c, err := ParseConnection(d["source"], d["destination"])
		if err != nil {
			return nil, fmt.Errorf("connection %d: %w", i, err)
		}
		conns = append(conns, c)
	}
	return conns, nil
}
