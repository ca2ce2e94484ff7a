package websocket

import (
	"time"

	"github.com/KevinKickass/MokuCore/internal/discovery"
)

// MessageType defines the type of WebSocket message
type MessageType string

const (
	// Discovery messages
	MessageTypeDeviceDiscovered MessageType = "device_discovered"
	MessageTypeDevicesPurged    MessageType = "devices_purged"

	// Deployment messages
	MessageTypeDeploymentSealed  MessageType = "deployment_sealed"
	MessageTypeDeploymentDeleted MessageType = "deployment_deleted"

	// System messages
	MessageTypeSystemState MessageType = "system_state"
)

// Message represents a WebSocket message
type Message struct {
	Type      MessageType `json:"type"`
	Timestamp time.Time   `json:"timestamp"`
	Data      interface{} `json:"data"`
}

type DevicesPurgedData struct {
	Removed int    `json:"removed"`
	MaxAge  string `json:"max_age"`
}

type DeploymentData struct {
	ID       string `json:"id"`
	Name     string `json:"name,omitempty"`
	Platform string `json:"platform,omitempty"`
}

type SystemStateData struct {
	State    string `json:"state"`
	Previous string `json:"previous_state"`
}

// NewMessage creates a new message with current timestamp
func NewMessage(msgType MessageType, data interface{}) Message {
	return Message{
		Type:      msgType,
		Timestamp: time.Now(),
		Data:      data,
	}
}

func NewDeviceDiscoveredMessage(info discovery.DeviceInfo) Message {
	return NewMessage(MessageTypeDeviceDiscovered, info)
}

func NewDevicesPurgedMessage(removed int, maxAge time.Duration) Message {
	return NewMessage(MessageTypeDevicesPurged, DevicesPurgedData{
		Removed: removed,
		MaxAge:  maxAge.String(),
	})
}

func NewDeploymentMessage(msgType MessageType, id, name, platform string) Message {
	return NewMessage(msgType, DeploymentData{
		ID:       id,
		Name:     name,
		Platform: platform,
	})
}

func NewSystemStateMessage(newState, previousState string) Message {
	return NewMessage(MessageTypeSystemState, SystemStateData{
		State:    newState,
		Previous: previousState,
	})
}
