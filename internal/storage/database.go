package storage

import (
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite" // Registers the sqlite driver

	"github.com/conorfennell/knolimport/internal/domain"
)

// DefaultModelName is the model seeded into an empty collection.
const DefaultModelName = "Basic"

const currentModelKey = "current_model"

// ErrModelNotFound is returned when a model lookup finds nothing.
var ErrModelNotFound = errors.New("model not found")

// queryer is satisfied by both *sql.DB and *sql.Tx.
type queryer interface {
	Exec(query string, args ...any) (sql.Result, error)
	Query(query string, args ...any) (*sql.Rows, error)
	QueryRow(query string, args ...any) *sql.Row
}

// DB represents a wrapper around the SQL database connection.
type DB struct {
	conn *sql.DB
}

// Open creates a new database connection, ensures the schema is up to date
// and seeds the default model into an empty collection.
func Open(dsn string) (*DB, error) {
	conn, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	// An import owns the collection exclusively; one connection keeps the
	// foreign_keys pragma and every statement on the same session.
	conn.SetMaxOpenConns(1)

	if err := conn.Ping(); err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}
	if _, err := conn.Exec(`PRAGMA foreign_keys = ON`); err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("failed to enable foreign keys: %w", err)
	}
	if _, err := conn.Exec(schema); err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("failed to apply schema: %w", err)
	}

	db := &DB{conn: conn}
	if err := db.seed(); err != nil {
		_ = conn.Close()
		return nil, err
	}
	return db, nil
}

// Close closes the database connection.
func (db *DB) Close() error {
	return db.conn.Close()
}

// WithTx runs fn inside a transaction. The transaction is committed when fn
// returns nil and rolled back otherwise.
func (db *DB) WithTx(fn func(tx *Tx) error) error {
	sqlTx, err := db.conn.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	tx := &Tx{tx: sqlTx, now: time.Now}
	if err := fn(tx); err != nil {
		if rbErr := sqlTx.Rollback(); rbErr != nil {
			return errors.Join(err, fmt.Errorf("failed to roll back: %w", rbErr))
		}
		return err
	}
	if err := sqlTx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

func (db *DB) seed() error {
	var n int
	if err := db.conn.QueryRow(`SELECT COUNT(*) FROM models`).Scan(&n); err != nil {
		return fmt.Errorf("failed to count models: %w", err)
	}
	if n > 0 {
		return nil
	}
	m := &domain.Model{
		Name: DefaultModelName,
		Fields: []domain.FieldTemplate{
			{Name: "Front", Ordinal: 0, Required: true, Unique: true},
			{Name: "Back", Ordinal: 1},
		},
		Cards: []domain.CardTemplate{
			{Name: "Forward", Ordinal: 0, Active: true, QFormat: "{{Front}}", AFormat: "{{Back}}"},
			{Name: "Reverse", Ordinal: 1, Active: false, QFormat: "{{Back}}", AFormat: "{{Front}}"},
		},
	}
	if err := db.CreateModel(m); err != nil {
		return err
	}
	return db.SetCurrentModel(m.Name)
}

// CreateModel stores a model with its templates. Zero ids are allocated.
func (db *DB) CreateModel(m *domain.Model) error {
	return db.WithTx(func(tx *Tx) error {
		return createModel(tx.tx, m)
	})
}

func createModel(q queryer, m *domain.Model) error {
	if m.ID == uuid.Nil {
		m.ID = uuid.Must(uuid.NewV7())
	}
	if _, err := q.Exec(`INSERT INTO models (id, name, created) VALUES (?, ?, ?)`,
		m.ID, m.Name, time.Now().UnixNano()); err != nil {
		return fmt.Errorf("failed to insert model %s: %w", m.Name, err)
	}
	for i := range m.Fields {
		f := &m.Fields[i]
		if f.ID == uuid.Nil {
			f.ID = uuid.Must(uuid.NewV7())
		}
		if _, err := q.Exec(`
			INSERT INTO field_models (id, model_id, ordinal, name, required, is_unique)
			VALUES (?, ?, ?, ?, ?, ?)
		`, f.ID, m.ID, f.Ordinal, f.Name, f.Required, f.Unique); err != nil {
			return fmt.Errorf("failed to insert field model %s: %w", f.Name, err)
		}
	}
	for i := range m.Cards {
		c := &m.Cards[i]
		if c.ID == uuid.Nil {
			c.ID = uuid.Must(uuid.NewV7())
		}
		if _, err := q.Exec(`
			INSERT INTO card_models (id, model_id, ordinal, name, active, qformat, aformat)
			VALUES (?, ?, ?, ?, ?, ?, ?)
		`, c.ID, m.ID, c.Ordinal, c.Name, c.Active, c.QFormat, c.AFormat); err != nil {
			return fmt.Errorf("failed to insert card model %s: %w", c.Name, err)
		}
	}
	return nil
}

// SetCurrentModel makes the named model the collection's current model.
func (db *DB) SetCurrentModel(name string) error {
	m, err := db.ModelByName(name)
	if err != nil {
		return err
	}
	if _, err := db.conn.Exec(`
		INSERT INTO config (key, value) VALUES (?, ?)
		ON CONFLICT(key) DO UPDATE SET value = excluded.value
	`, currentModelKey, m.ID.String()); err != nil {
		return fmt.Errorf("failed to set current model %s: %w", name, err)
	}
	return nil
}

// CurrentModel returns the model new notes are created with.
func (db *DB) CurrentModel() (*domain.Model, error) {
	var id string
	err := db.conn.QueryRow(`SELECT value FROM config WHERE key = ?`, currentModelKey).Scan(&id)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, ErrModelNotFound
		}
		return nil, fmt.Errorf("failed to read current model: %w", err)
	}
	return loadModel(db.conn, `id = ?`, id)
}

// ModelByName retrieves a model and its templates by name.
func (db *DB) ModelByName(name string) (*domain.Model, error) {
	return loadModel(db.conn, `name = ?`, name)
}

func loadModel(q queryer, where string, arg any) (*domain.Model, error) {
	var m domain.Model
	err := q.QueryRow(`SELECT id, name FROM models WHERE `+where, arg).Scan(&m.ID, &m.Name)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, fmt.Errorf("%w: %v", ErrModelNotFound, arg)
		}
		return nil, fmt.Errorf("failed to find model %v: %w", arg, err)
	}

	rows, err := q.Query(`
		SELECT id, ordinal, name, required, is_unique
		FROM field_models WHERE model_id = ? ORDER BY ordinal
	`, m.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to get field models for %s: %w", m.Name, err)
	}
	for rows.Next() {
		var f domain.FieldTemplate
		if err := rows.Scan(&f.ID, &f.Ordinal, &f.Name, &f.Required, &f.Unique); err != nil {
			rows.Close()
			return nil, fmt.Errorf("failed to scan field model row: %w", err)
		}
		m.Fields = append(m.Fields, f)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read field models: %w", err)
	}

	rows, err = q.Query(`
		SELECT id, ordinal, name, active, qformat, aformat
		FROM card_models WHERE model_id = ? ORDER BY ordinal
	`, m.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to get card models for %s: %w", m.Name, err)
	}
	defer rows.Close()
	for rows.Next() {
		var c domain.CardTemplate
		if err := rows.Scan(&c.ID, &c.Ordinal, &c.Name, &c.Active, &c.QFormat, &c.AFormat); err != nil {
			return nil, fmt.Errorf("failed to scan card model row: %w", err)
		}
		m.Cards = append(m.Cards, c)
	}
	return &m, rows.Err()
}
