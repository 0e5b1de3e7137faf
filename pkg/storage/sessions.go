package storage

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"

	"github.com/synodriver/rqgo/pkg/engine"
	"github.com/synodriver/rqgo/pkg/protocol"
)

// SessionRecord binds a resumable session to the device and protocol it
// was established with.
type SessionRecord struct {
	Uin        int64
	Protocol   protocol.Protocol
	DeviceName string
	Token      engine.SessionToken
	UpdatedAt  int64
}

// SaveSession stores a session token, sealed, replacing any previous one
// for the same account.
func (s *Store) SaveSession(r *SessionRecord) error {
	if r.Uin == 0 || r.Token.Uin != r.Uin {
		return fmt.Errorf("session uin %d does not match token uin %d", r.Uin, r.Token.Uin)
	}
	data, err := json.Marshal(r.Token)
	if err != nil {
		return fmt.Errorf("failed to encode session: %w", err)
	}
	sealed, err := s.seal(data, sessionAAD(r.Uin))
	if err != nil {
		return fmt.Errorf("failed to seal session: %w", err)
	}

	r.UpdatedAt = s.now().Unix()
	query := `
		INSERT INTO sessions (uin, protocol, device_name, token, updated_at)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(uin) DO UPDATE SET
			protocol = excluded.protocol,
			device_name = excluded.device_name,
			token = excluded.token,
			updated_at = excluded.updated_at
	`
	if _, err := s.db.Exec(query, r.Uin, int(r.Protocol), r.DeviceName, sealed, r.UpdatedAt); err != nil {
		return fmt.Errorf("failed to save session: %w", err)
	}
	return nil
}

// LoadSession returns the session stored for uin
func (s *Store) LoadSession(uin int64) (*SessionRecord, error) {
	r := &SessionRecord{Uin: uin}
	var proto int
	var sealed []byte
	err := s.db.QueryRow(
		`SELECT protocol, device_name, token, updated_at FROM sessions WHERE uin = ?`, uin,
	).Scan(&proto, &r.DeviceName, &sealed, &r.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load session: %w", err)
	}
	r.Protocol = protocol.Protocol(proto)

	data, err := s.open(sealed, sessionAAD(uin))
	if err != nil {
		return nil, err
	}
	if err := json.Unmarshal(data, &r.Token); err != nil {
		return nil, fmt.Errorf("failed to decode session: %w", err)
	}
	return r, nil
}

// ListSessions returns the accounts with a stored session, without
// unsealing their tokens.
func (s *Store) ListSessions() ([]*SessionRecord, error) {
	rows, err := s.db.Query(`SELECT uin, protocol, device_name, updated_at FROM sessions ORDER BY uin`)
	if err != nil {
		return nil, fmt.Errorf("failed to list sessions: %w", err)
	}
	defer rows.Close()

	var records []*SessionRecord
	for rows.Next() {
		var r SessionRecord
		var proto int
		if err := rows.Scan(&r.Uin, &proto, &r.DeviceName, &r.UpdatedAt); err != nil {
			return nil, err
		}
		r.Protocol = protocol.Protocol(proto)
		records = append(records, &r)
	}
	return records, rows.Err()
}

// DeleteSession forgets the session for uin
func (s *Store) DeleteSession(uin int64) error {
	res, err := s.db.Exec(`DELETE FROM sessions WHERE uin = ?`, uin)
	if err != nil {
		return fmt.Errorf("failed to delete session: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

func sessionAAD(uin int64) []byte {
	return []byte("session:" + strconv.FormatInt(uin, 10))
}
