// Package profile persists learned gamepad mapping profiles. Profiles are
// keyed by the controller's identifier string and survive gateway restarts.
package profile

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"log"
	"time"

	_ "modernc.org/sqlite"
)

// Profile is one stored controller mapping. Mapping is kept as raw JSON: the
// gateway never interprets entries, it only stores and replays them.
type Profile struct {
	ID        string          `json:"id"`
	VendorID  int             `json:"vendorId"`
	ProductID int             `json:"productId"`
	Name      string          `json:"name"`
	Mapping   json.RawMessage `json:"mapping"`
}

// Store is a SQLite-backed profile store.
type Store struct {
	db *sql.DB
}

// Open opens (creating if needed) the profile database at path. Use
// ":memory:" for an ephemeral store.
func Open(path string) (*Store, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open profile db: %w", err)
	}
	// A single connection sidesteps SQLITE_BUSY and keeps :memory: stores
	// on one database.
	db.SetMaxOpenConns(1)

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping profile db: %w", err)
	}

	const schema = `
		CREATE TABLE IF NOT EXISTS gamepad_profiles (
			id         TEXT PRIMARY KEY,
			vendor_id  INTEGER NOT NULL DEFAULT 0,
			product_id INTEGER NOT NULL DEFAULT 0,
			name       TEXT NOT NULL,
			mapping    TEXT NOT NULL,
			updated_at TIMESTAMP NOT NULL
		)`
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("init profile schema: %w", err)
	}
	return &Store{db: db}, nil
}

// Save inserts or replaces a profile.
func (s *Store) Save(p Profile) error {
	if p.ID == "" {
		return fmt.Errorf("save profile: missing id")
	}
	mapping := p.Mapping
	if len(mapping) == 0 {
		mapping = json.RawMessage("{}")
	}
	_, err := s.db.Exec(`
		INSERT INTO gamepad_profiles (id, vendor_id, product_id, name, mapping, updated_at)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			vendor_id = excluded.vendor_id,
			product_id = excluded.product_id,
			name = excluded.name,
			mapping = excluded.mapping,
			updated_at = excluded.updated_at`,
		p.ID, p.VendorID, p.ProductID, p.Name, string(mapping), time.Now().UTC())
	if err != nil {
		return fmt.Errorf("save profile %q: %w", p.ID, err)
	}
	log.Printf("profile: saved %q (%s)", p.Name, p.ID)
	return nil
}

// Get fetches a profile by id; the second return reports whether it exists.
func (s *Store) Get(id string) (Profile, bool, error) {
	var p Profile
	var mapping string
	err := s.db.QueryRow(`
		SELECT id, vendor_id, product_id, name, mapping
		FROM gamepad_profiles WHERE id = ?`, id).
		Scan(&p.ID, &p.VendorID, &p.ProductID, &p.Name, &mapping)
	if err == sql.ErrNoRows {
		return Profile{}, false, nil
	}
	if err != nil {
		return Profile{}, false, fmt.Errorf("get profile %q: %w", id, err)
	}
	p.Mapping = json.RawMessage(mapping)
	return p, true, nil
}

// Exists reports whether a profile is stored for the id.
func (s *Store) Exists(id string) (bool, error) {
	_, ok, err := s.Get(id)
	return ok, err
}

// Delete removes a profile; the first return reports whether one existed.
func (s *Store) Delete(id string) (bool, error) {
	res, err := s.db.Exec(`DELETE FROM gamepad_profiles WHERE id = ?`, id)
	if err != nil {
		return false, fmt.Errorf("delete profile %q: %w", id, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

// List returns every stored profile ordered by name.
func (s *Store) List() ([]Profile, error) {
	rows, err := s.db.Query(`
		SELECT id, vendor_id, product_id, name, mapping
		FROM gamepad_profiles ORDER BY name, id`)
	if err != nil {
		return nil, fmt.Errorf("list profiles: %w", err)
	}
	defer rows.Close()

	var out []Profile
	for rows.Next() {
		var p Profile
		var mapping string
		if err := rows.Scan(&p.ID, &p.VendorID, &p.ProductID, &p.Name, &mapping); err != nil {
			return nil, fmt.Errorf("scan profile: %w", err)
		}
		p.Mapping = json.RawMessage(mapping)
		out = append(out, p)
	}
	return out, rows.Err()
}

// Close releases the database handle.
func (s *Store) Close() error {
	return s.db.Close()
}
