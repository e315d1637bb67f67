package tool

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/pgdialect"
	"github.com/uptrace/bun/driver/pgdriver"
)

type PostgresConfig struct {
	DSN string `envconfig:"DSN" split_words:"true"`
}

// BlacklistEntry is one row of the bank_blacklist table.
type BlacklistEntry struct {
	bun.BaseModel `bun:"table:bank_blacklist,alias:bl"`

	USCC        string    `bun:"uscc,pk"`
	CompanyName string    `bun:"company_name,notnull"`
	Reason      string    `bun:"reason"`
	CreatedAt   time.Time `bun:"created_at,notnull"`
}

// PostgresBlacklist looks companies up in the bank_blacklist table.
type PostgresBlacklist struct {
	db *bun.DB
}

func OpenPostgres(cfg PostgresConfig) (*bun.DB, error) {
	dsn := strings.TrimSpace(cfg.DSN)
	if dsn == "" {
		return nil, errors.New("postgres dsn is required")
	}
	sqldb := sql.OpenDB(pgdriver.NewConnector(pgdriver.WithDSN(dsn)))
	return bun.NewDB(sqldb, pgdialect.New()), nil
}

func NewPostgresBlacklist(db *bun.DB) (*PostgresBlacklist, error) {
	if db == nil {
		return nil, errors.New("bun db is required")
	}
	return &PostgresBlacklist{db: db}, nil
}

func (b *PostgresBlacklist) EnsureSchema(ctx context.Context) error {
	_, err := b.db.NewCreateTable().
		Model((*BlacklistEntry)(nil)).
		IfNotExists().
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("create blacklist table: %w", err)
	}
	return nil
}

func (b *PostgresBlacklist) Contains(ctx context.Context, name string, registrationID string) (bool, error) {
	name = normalizeKey(name)
	registrationID = normalizeKey(registrationID)

	q := b.db.NewSelect().Model((*BlacklistEntry)(nil))
	switch {
	case name != "" && registrationID != "":
		q = q.Where("uscc = ?", registrationID).WhereOr("company_name = ?", name)
	case registrationID != "":
		q = q.Where("uscc = ?", registrationID)
	case name != "":
		q = q.Where("company_name = ?", name)
	default:
		return false, nil
	}

	listed, err := q.Exists(ctx)
	if err != nil {
		return false, fmt.Errorf("query blacklist: %w", err)
	}
	return listed, nil
}

// Add inserts a blacklist entry. An existing row for the same uscc is kept.
func (b *PostgresBlacklist) Add(ctx context.Context, entry BlacklistEntry) error {
	entry.USCC = normalizeKey(entry.USCC)
	entry.CompanyName = normalizeKey(entry.CompanyName)
	if entry.USCC == "" || entry.CompanyName == "" {
		return errors.New("blacklist entry requires uscc and company name")
	}
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = time.Now().UTC()
	}

	if _, err := b.db.NewInsert().Model(&entry).Ignore().Exec(ctx); err != nil {
		return fmt.Errorf("insert blacklist entry: %w", err)
	}
	return nil
}
