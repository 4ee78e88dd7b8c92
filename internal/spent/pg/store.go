package pg

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/jmoiron/sqlx"

	"github.com/drand/vmauth/common/log"
	"github.com/drand/vmauth/internal/spent"
)

// Store is a spent.Store backed by the rows of spent_records that carry its
// name. Several stores share one database.
type Store struct {
	log  log.Logger
	db   *sqlx.DB
	name string
}

type dbEntry struct {
	StoreName     string `db:"store_name"`
	SerialNumber  []byte `db:"serial_number"`
	Tag           []byte `db:"tag"`
	Commitment    []byte `db:"commitment"`
	Authorization string `db:"auth_id"`
	Program       string `db:"program_id"`
	Function      string `db:"function_name"`
}

// NewPGStore migrates the schema if needed and returns the store of the
// given name. name must be a plain identifier.
func NewPGStore(ctx context.Context, l log.Logger, db *sqlx.DB, name string) (*Store, error) {
	name = strings.ToLower(name)
	if name == "" {
		return nil, errors.New("empty store name")
	}
	for _, c := range name {
		if !(c == '_' || ('a' <= c && c <= 'z') || ('0' <= c && c <= '9')) {
			return nil, fmt.Errorf("invalid store name %q", name)
		}
	}
	if err := Migrate(ctx, db); err != nil {
		return nil, fmt.Errorf("migrating spent_records: %w", err)
	}
	return &Store{log: l, db: db, name: name}, nil
}

// Spend inserts every entry in one transaction. A unique key violation on
// either the serial number or the tag rolls everything back.
func (p *Store) Spend(ctx context.Context, entries []spent.Entry) error {
	const query = `INSERT INTO spent_records (store_name, serial_number, tag, commitment, auth_id, program_id, function_name)
		VALUES (:store_name, :serial_number, :tag, :commitment, :auth_id, :program_id, :function_name)`

	err := withinTran(ctx, p.log, p.db, func(tx *sqlx.Tx) error {
		for i := range entries {
			if _, err := tx.NamedExecContext(ctx, query, p.toDB(&entries[i])); err != nil {
				return err
			}
		}
		return nil
	})
	if errors.Is(err, ErrDBDuplicatedEntry) {
		return fmt.Errorf("%w: %v", spent.ErrDoubleSpend, err)
	}
	return err
}

// IsSpent implements the spent.Store interface.
func (p *Store) IsSpent(ctx context.Context, serialNumber []byte) (bool, error) {
	return p.exists(ctx, "serial_number", serialNumber)
}

// HasTag implements the spent.Store interface.
func (p *Store) HasTag(ctx context.Context, tag []byte) (bool, error) {
	return p.exists(ctx, "tag", tag)
}

// column is one of the two unique keys, never user input.
func (p *Store) exists(ctx context.Context, column string, value []byte) (bool, error) {
	query := fmt.Sprintf(`SELECT EXISTS(SELECT 1 FROM spent_records WHERE store_name = $1 AND %s = $2)`, column)
	var found bool
	if err := p.db.QueryRowxContext(ctx, query, p.name, value).Scan(&found); err != nil {
		return false, err
	}
	return found, nil
}

// Get implements the spent.Store interface.
func (p *Store) Get(ctx context.Context, serialNumber []byte) (*spent.Entry, error) {
	const query = `SELECT store_name, serial_number, tag, commitment, auth_id, program_id, function_name
		FROM spent_records WHERE store_name = $1 AND serial_number = $2`
	var e dbEntry
	if err := p.db.GetContext(ctx, &e, query, p.name, serialNumber); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, spent.ErrNotFound
		}
		return nil, err
	}
	return &spent.Entry{
		SerialNumber:  e.SerialNumber,
		Tag:           e.Tag,
		Commitment:    e.Commitment,
		Authorization: e.Authorization,
		Program:       e.Program,
		Function:      e.Function,
	}, nil
}

// Len implements the spent.Store interface.
func (p *Store) Len(ctx context.Context) (int, error) {
	var n int
	if err := p.db.GetContext(ctx, &n, `SELECT COUNT(*) FROM spent_records WHERE store_name = $1`, p.name); err != nil {
		return 0, err
	}
	return n, nil
}

func (p *Store) toDB(e *spent.Entry) dbEntry {
	return dbEntry{
		StoreName:     p.name,
		SerialNumber:  e.SerialNumber,
		Tag:           e.Tag,
		Commitment:    e.Commitment,
		Authorization: e.Authorization,
		Program:       e.Program,
		Function:      e.Function,
	}
}

// Close does not close the shared database handle.
func (p *Store) Close(context.Context) error {
	return nil
}
