package routing

import (
	"errors"
	"fmt"
)

var (
	ErrInvalidEndpoint    = errors.New("invalid endpoint")
	ErrSealed             = errors.New("configuration is sealed")
	ErrConnectionNotFound = errors.New("connection not found")
)

// EndpointError describes why an endpoint cannot be used.
type EndpointError struct {
	Endpoint string
	Reason   string
}

func (e *EndpointError) Error() string {
	return fmt.Sprintf("invalid endpoint %q: %s", e.Endpoint, e.Reason)
}

func (e *EndpointError) Unwrap() error {
	return ErrInvalidEndpoint
}
