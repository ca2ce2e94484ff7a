package storage

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/KevinKickass/MokuCore/internal/discovery"
)

// SaveDevices upserts a device cache snapshot keyed by device identity.
func (p *PostgresClient) SaveDevices(ctx context.Context, devices []discovery.DeviceInfo) error {
	tx, err := p.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	for _, dev := range devices {
		infoJSON, err := json.Marshal(dev)
		if err != nil {
			return fmt.Errorf("failed to marshal device: %w", err)
		}

		_, err = tx.Exec(ctx, `
			INSERT INTO discovered_devices (device_key, ip_address, info, last_seen)
			VALUES ($1, $2, $3, $4)
			ON CONFLICT (device_key)
			DO UPDATE SET
				ip_address = EXCLUDED.ip_address,
				info = EXCLUDED.info,
				last_seen = EXCLUDED.last_seen,
				updated_at = NOW()
			WHERE discovered_devices.last_seen <= EXCLUDED.last_seen
		`, dev.Key(), dev.IP, infoJSON, dev.LastSeen)
		if err != nil {
			return fmt.Errorf("failed to upsert device %s: %w", dev.Key(), err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

// LoadDevices returns every stored device, most recently seen first.
func (p *PostgresClient) LoadDevices(ctx context.Context) ([]discovery.DeviceInfo, error) {
	rows, err := p.pool.Query(ctx, `
		SELECT info FROM discovered_devices ORDER BY last_seen DESC
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to query devices: %w", err)
	}
	defer rows.Close()

	devices := make([]discovery.DeviceInfo, 0)
	for rows.Next() {
		var infoJSON []byte
		if err := rows.Scan(&infoJSON); err != nil {
			return nil, fmt.Errorf("failed to scan device: %w", err)
		}

		var dev discovery.DeviceInfo
		if err := json.Unmarshal(infoJSON, &dev); err != nil {
			return nil, fmt.Errorf("failed to unmarshal device: %w", err)
		}
		devices = append(devices, dev)
	}
	return devices, rows.Err()
}
