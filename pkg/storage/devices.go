package storage

import (
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/synodriver/rqgo/pkg/device"
)

// DeviceRecord is a stored profile with its bookkeeping columns
type DeviceRecord struct {
	Name      string
	Profile   device.Profile
	CreatedAt int64
	UpdatedAt int64
}

// SaveDevice stores a profile under name, replacing any previous one
func (s *Store) SaveDevice(name string, p device.Profile) error {
	name = strings.TrimSpace(name)
	if name == "" {
		return ErrInvalidName
	}
	data, err := p.Marshal()
	if err != nil {
		return fmt.Errorf("failed to encode device: %w", err)
	}

	now := s.now().Unix()
	query := `
		INSERT INTO devices (name, profile, created_at, updated_at)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(name) DO UPDATE SET
			profile = excluded.profile,
			updated_at = excluded.updated_at
	`
	if _, err := s.db.Exec(query, name, string(data), now, now); err != nil {
		return fmt.Errorf("failed to save device: %w", err)
	}
	return nil
}

// LoadDevice returns the profile stored under name
func (s *Store) LoadDevice(name string) (device.Profile, error) {
	var data string
	err := s.db.QueryRow(`SELECT profile FROM devices WHERE name = ?`, name).Scan(&data)
	if errors.Is(err, sql.ErrNoRows) {
		return device.Profile{}, ErrNotFound
	}
	if err != nil {
		return device.Profile{}, fmt.Errorf("failed to load device: %w", err)
	}
	return device.Unmarshal([]byte(data))
}

// LoadOrCreateDevice returns the profile stored under name, generating and
// saving a random one on first use.
func (s *Store) LoadOrCreateDevice(name string) (device.Profile, bool, error) {
	p, err := s.LoadDevice(name)
	if err == nil {
		return p, false, nil
	}
	if !errors.Is(err, ErrNotFound) {
		return device.Profile{}, false, err
	}
	p = device.Random()
	if err := s.SaveDevice(name, p); err != nil {
		return device.Profile{}, false, err
	}
	return p, true, nil
}

// ListDevices returns every stored profile ordered by name
func (s *Store) ListDevices() ([]*DeviceRecord, error) {
	rows, err := s.db.Query(`SELECT name, profile, created_at, updated_at FROM devices ORDER BY name`)
	if err != nil {
		return nil, fmt.Errorf("failed to list devices: %w", err)
	}
	defer rows.Close()

	var records []*DeviceRecord
	for rows.Next() {
		var r DeviceRecord
		var data string
		if err := rows.Scan(&r.Name, &data, &r.CreatedAt, &r.UpdatedAt); err != nil {
			return nil, err
		}
		if r.Profile, err = device.Unmarshal([]byte(data)); err != nil {
			return nil, fmt.Errorf("device %s: %w", r.Name, err)
		}
		records = append(records, &r)
	}
	return records, rows.Err()
}

// DeleteDevice removes a profile. Sessions bound to it are removed too.
func (s *Store) DeleteDevice(name string) error {
	tx, err := s.db.Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if _, err := tx.Exec(`DELETE FROM sessions WHERE device_name = ?`, name); err != nil {
		return fmt.Errorf("failed to delete sessions: %w", err)
	}
	res, err := tx.Exec(`DELETE FROM devices WHERE name = ?`, name)
	if err != nil {
		return fmt.Errorf("failed to delete device: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return tx.Commit()
}
