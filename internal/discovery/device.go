package discovery

import (
	"strings"
	"time"
)

// DefaultPort is the HTTP port Moku devices listen on.
const DefaultPort = 80

// DeviceInfo is what discovery learned about one device.
type DeviceInfo struct {
	ID            string    `json:"id,omitempty"`
	IP            string    `json:"ip"`
	Port          int       `json:"port"`
	CanonicalName string    `json:"canonical_name,omitempty"` // user-assigned, e.g. "Lilo"
	SerialNumber  string    `json:"serial_number,omitempty"`
	ZeroconfName  string    `json:"zeroconf_name,omitempty"`
	Platform      string    `json:"platform,omitempty"`
	LastSeen      time.Time `json:"last_seen"`
}

// Key is the identity the cache stores the device under: the explicit ID,
// else the serial number, else the IP address.
func (d DeviceInfo) Key() string {
	switch {
	case d.ID != "":
		return d.ID
	case d.SerialNumber != "":
		return d.SerialNumber
	default:
		return d.IP
	}
}

// MatchesIdentifier reports whether identifier names this device. IP
// addresses match exactly; names and serials ignore case.
func (d DeviceInfo) MatchesIdentifier(identifier string) bool {
	if identifier == "" {
		return false
	}
	if identifier == d.IP {
		return true
	}
	if d.CanonicalName != "" && strings.EqualFold(identifier, d.CanonicalName) {
		return true
	}
	if d.SerialNumber != "" && strings.EqualFold(identifier, d.SerialNumber) {
		return true
	}
	return false
}

// Age is how long ago the device was last seen, relative to now.
func (d DeviceInfo) Age(now time.Time) time.Duration {
	return now.Sub(d.LastSeen)
}
