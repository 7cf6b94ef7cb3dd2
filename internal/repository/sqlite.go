package repository

import (
	"context"
	"database/sql"
	_ "embed"
	"fmt"

	"github.com/google/uuid"
	_ "github.com/mattn/go-sqlite3"

	"github.com/ruleforge/ucr/internal/rule"
)

//go:embed schema.sql
var schemaSQL string

// Schema version tracking:
// 0 - Initial schema (pre-migration)
// 1 - Added rules.created_at column and tenant/status index
const currentSchemaVersion = 1

// SQLite is a Repository backed by a SQLite database.
// Uses WAL mode for concurrent read access during writes.
type SQLite struct {
	db *sql.DB
}

// Open creates or opens a SQLite rule database at the given path.
// Applies required pragmas and the schema automatically; idempotent.
func Open(path string) (*SQLite, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	// SQLite only supports one writer at a time, so limit connections
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	if err := applyPragmas(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to apply pragmas: %w", err)
	}

	if err := applySchema(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to apply schema: %w", err)
	}

	return &SQLite{db: db}, nil
}

// Close closes the database connection.
func (s *SQLite) Close() error {
	if s.db == nil {
		return nil
	}
	return s.db.Close()
}

// FetchActiveRules returns the tenant's active rules ordered by insertion.
// The returned order is the stable tie-break for equal priorities, so the
// query must never reorder rows beyond rowid.
func (s *SQLite) FetchActiveRules(ctx context.Context, tenant string) ([]rule.Record, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, name, type, classification_code, status, priority
		FROM rules
		WHERE tenant = ? AND status = 'active'
		ORDER BY rowid
	`, tenant)
	if err != nil {
		return nil, fmt.Errorf("query active rules: %w", err)
	}
	defer rows.Close()

	var records []rule.Record
	for rows.Next() {
		var rec rule.Record
		if err := rows.Scan(&rec.ID, &rec.Name, &rec.Type, &rec.ClassificationCode, &rec.Status, &rec.Priority); err != nil {
			return nil, fmt.Errorf("scan rule row: %w", err)
		}
		records = append(records, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate rule rows: %w", err)
	}

	return records, nil
}

// FetchRuleFields returns a rule's attribute fields in stored order.
func (s *SQLite) FetchRuleFields(ctx context.Context, ruleID string) ([]rule.Field, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT name, json_value, numeric_value, text_value, boolean_value
		FROM rule_fields
		WHERE rule_id = ?
		ORDER BY position, rowid
	`, ruleID)
	if err != nil {
		return nil, fmt.Errorf("query rule fields for %s: %w", ruleID, err)
	}
	defer rows.Close()

	var fields []rule.Field
	for rows.Next() {
		var (
			f       rule.Field
			jsonVal sql.NullString
			numVal  sql.NullFloat64
			textVal sql.NullString
			boolVal sql.NullBool
		)
		if err := rows.Scan(&f.Name, &jsonVal, &numVal, &textVal, &boolVal); err != nil {
			return nil, fmt.Errorf("scan field row: %w", err)
		}
		if jsonVal.Valid {
			v := jsonVal.String
			f.JSON = &v
		}
		if numVal.Valid {
			v := numVal.Float64
			f.Numeric = &v
		}
		if textVal.Valid {
			v := textVal.String
			f.Text = &v
		}
		if boolVal.Valid {
			v := boolVal.Bool
			f.Boolean = &v
		}
		fields = append(fields, f)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate field rows: %w", err)
	}

	return fields, nil
}

// SaveRule flattens a typed rule and writes it with its attribute fields in
// a single transaction. A rule without an ID gets a generated UUID.
// Used by the CLI importer and test seeding; the engine never writes.
func (s *SQLite) SaveRule(ctx context.Context, tenant string, r rule.Rule) (string, error) {
	if r.ID == "" {
		r.ID = uuid.NewString()
	}

	rec, fields, err := rule.Encode(r)
	if err != nil {
		return "", fmt.Errorf("encode rule %s: %w", r.ID, err)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return "", fmt.Errorf("begin save: %w", err)
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx, `
		INSERT INTO rules (id, tenant, name, type, classification_code, status, priority)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`, rec.ID, tenant, rec.Name, rec.Type, rec.ClassificationCode, rec.Status, rec.Priority)
	if err != nil {
		return "", fmt.Errorf("insert rule %s: %w", rec.ID, err)
	}

	for i, f := range fields {
		var boolVal any
		if f.Boolean != nil {
			boolVal = *f.Boolean
		}
		_, err = tx.ExecContext(ctx, `
			INSERT INTO rule_fields (rule_id, name, json_value, numeric_value, text_value, boolean_value, position)
			VALUES (?, ?, ?, ?, ?, ?, ?)
		`, rec.ID, f.Name, nullable(f.JSON), nullableFloat(f.Numeric), nullable(f.Text), boolVal, i)
		if err != nil {
			return "", fmt.Errorf("insert field %q for rule %s: %w", f.Name, rec.ID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return "", fmt.Errorf("commit save: %w", err)
	}

	return rec.ID, nil
}

func nullable(s *string) any {
	if s == nil {
		return nil
	}
	return *s
}

func nullableFloat(f *float64) any {
	if f == nil {
		return nil
	}
	return *f
}

// applyPragmas sets required SQLite configuration.
func applyPragmas(db *sql.DB) error {
	pragmas := []string{
		"PRAGMA journal_mode = WAL",
		"PRAGMA synchronous = NORMAL",
		"PRAGMA busy_timeout = 5000",
		"PRAGMA foreign_keys = ON",
	}

	for _, pragma := range pragmas {
		if _, err := db.Exec(pragma); err != nil {
			return fmt.Errorf("failed to execute %q: %w", pragma, err)
		}
	}

	return nil
}

// applySchema creates tables if they don't exist and records the version.
// Idempotent.
func applySchema(db *sql.DB) error {
	if _, err := db.Exec(schemaSQL); err != nil {
		return fmt.Errorf("failed to execute schema: %w", err)
	}

	var version int
	if err := db.QueryRow("PRAGMA user_version").Scan(&version); err != nil {
		return fmt.Errorf("get user_version: %w", err)
	}
	if version < currentSchemaVersion {
		if _, err := db.Exec(fmt.Sprintf("PRAGMA user_version = %d", currentSchemaVersion)); err != nil {
			return fmt.Errorf("set user_version: %w", err)
		}
	}

	return nil
}
