package dataset

import (
	"database/sql"
	"errors"
	"fmt"

	_ "github.com/mattn/go-sqlite3"

	"github.com/muurk/arrayacq/internal/wire"
)

// ErrNotFound is returned by Load for an unknown dataset name.
var ErrNotFound = errors.New("dataset: not found")

// Store wraps the SQLite dataset file.
type Store struct {
	db *sql.DB
}

// Info describes a stored dataset without its data.
type Info struct {
	Name     string
	Channels int
	Samples  int
}

// Open opens the dataset file at path, creating the table if needed.
func Open(path string) (*Store, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("dataset: open %s: %w", path, err)
	}
	if err := migrate(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("dataset: migrate %s: %w", path, err)
	}
	return &Store{db: db}, nil
}

func migrate(db *sql.DB) error {
	_, err := db.Exec(`
		CREATE TABLE IF NOT EXISTS datasets (
			name TEXT PRIMARY KEY,
			channels INTEGER NOT NULL,
			samples INTEGER NOT NULL,
			data BLOB NOT NULL
		);
	`)
	return err
}

// Close closes the database.
func (s *Store) Close() error {
	return s.db.Close()
}

// Save stores m under name, replacing any dataset with the same name.
func (s *Store) Save(name string, m *Matrix) error {
	if err := m.Validate(); err != nil {
		return err
	}
	buf := wire.NewBuffer()
	for _, v := range m.Data {
		buf.PutFloat32(v)
	}
	_, err := s.db.Exec(
		"INSERT OR REPLACE INTO datasets (name, channels, samples, data) VALUES (?, ?, ?, ?)",
		name, m.Channels, m.Samples, buf.Bytes(),
	)
	if err != nil {
		return fmt.Errorf("dataset: save %q: %w", name, err)
	}
	return nil
}

// Load reads the dataset called name.
func (s *Store) Load(name string) (*Matrix, error) {
	var (
		channels, samples int
		blob              []byte
	)
	err := s.db.QueryRow("SELECT channels, samples, data FROM datasets WHERE name = ?", name).
		Scan(&channels, &samples, &blob)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("%w: %q", ErrNotFound, name)
	}
	if err != nil {
		return nil, fmt.Errorf("dataset: load %q: %w", name, err)
	}

	if channels <= 0 || samples <= 0 || len(blob) != channels*samples*4 {
		return nil, fmt.Errorf("%w: %q has %d bytes for %d x %d", ErrShape, name, len(blob), channels, samples)
	}

	m := NewMatrix(channels, samples)
	buf := wire.NewBuffer()
	copy(buf.Load(len(blob)), blob)
	for i := range m.Data {
		// Length was checked above.
		m.Data[i], _ = buf.ReadFloat32()
	}
	return m, nil
}

// List returns all stored datasets ordered by name.
func (s *Store) List() ([]Info, error) {
	rows, err := s.db.Query("SELECT name, channels, samples FROM datasets ORDER BY name")
	if err != nil {
		return nil, fmt.Errorf("dataset: list: %w", err)
	}
	defer rows.Close()

	var out []Info
	for rows.Next() {
		var info Info
		if err := rows.Scan(&info.Name, &info.Channels, &info.Samples); err != nil {
			return nil, fmt.Errorf("dataset: list: %w", err)
		}
		out = append(out, info)
	}
	return out, rows.Err()
}

// Delete removes a dataset. Deleting an unknown name is not an error.
func (s *Store) Delete(name string) error {
	if _, err := s.db.Exec("DELETE FROM datasets WHERE name = ?", name); err != nil {
		return fmt.Errorf("dataset: delete %q: %w", name, err)
	}
	return nil
}
