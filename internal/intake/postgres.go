package intake

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"fibermesh/internal/model"
)

// PostgresStore is the durable Store backing C5/C6 in a multi-process
// deployment, grounded on the data-layer connection-pool idiom of
// core/connection_pool.go adapted to sqlx/lib/pq (DESIGN.md C5/C6).
type PostgresStore struct {
	db *sqlx.DB
}

// OpenPostgresStore connects to dsn and pings it; it does not check the
// schema, which callers create by running Migrate once at boot.
func OpenPostgresStore(dsn string) (*PostgresStore, error) {
	db, err := sqlx.Connect("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("%w: connect: %v", model.ErrUpstream, err)
	}
	return &PostgresStore{db: db}, nil
}

// Close releases the underlying connection pool.
func (s *PostgresStore) Close() error {
	return s.db.Close()
}

// Migrate creates the rejections and snapshots tables if absent. The
// unique constraint on update_hash is the correctness backstop spec.md
// §4.5 names explicitly.
func (s *PostgresStore) Migrate(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, `
CREATE TABLE IF NOT EXISTS rejections (
	id           BIGSERIAL PRIMARY KEY,
	ordinal      BIGINT NOT NULL,
	ts           TIMESTAMPTZ NOT NULL,
	update_type  TEXT NOT NULL,
	fiber_id     TEXT NOT NULL,
	update_hash  TEXT NOT NULL UNIQUE,
	errors       JSONB NOT NULL,
	signers      TEXT[] NOT NULL,
	raw_payload  JSONB
);
CREATE INDEX IF NOT EXISTS rejections_fiber_id_idx ON rejections (fiber_id);
CREATE INDEX IF NOT EXISTS rejections_ordinal_idx ON rejections (ordinal DESC, id DESC);

CREATE TABLE IF NOT EXISTS snapshots (
	ordinal      BIGINT PRIMARY KEY,
	hash         TEXT NOT NULL,
	status       TEXT NOT NULL,
	gl0_ordinal  BIGINT,
	confirmed_at TIMESTAMPTZ
);
`)
	if err != nil {
		return fmt.Errorf("%w: migrate: %v", model.ErrUpstream, err)
	}
	return nil
}

type rejectionRow struct {
	ID         int64          `db:"id"`
	Ordinal    int64          `db:"ordinal"`
	Timestamp  time.Time      `db:"ts"`
	UpdateType string         `db:"update_type"`
	FiberID    string         `db:"fiber_id"`
	UpdateHash string         `db:"update_hash"`
	Errors     []byte         `db:"errors"`
	Signers    pq.StringArray `db:"signers"`
	RawPayload sql.NullString `db:"raw_payload"`
}

func (r rejectionRow) toModel() (model.RejectedTransaction, error) {
	var errs []model.RejectionError
	if err := json.Unmarshal(r.Errors, &errs); err != nil {
		return model.RejectedTransaction{}, err
	}
	tx := model.RejectedTransaction{
		ID:         r.ID,
		Ordinal:    uint64(r.Ordinal),
		Timestamp:  r.Timestamp,
		UpdateType: model.UpdateType(r.UpdateType),
		FiberID:    r.FiberID,
		UpdateHash: r.UpdateHash,
		Errors:     errs,
		Signers:    []string(r.Signers),
	}
	if r.RawPayload.Valid {
		var raw map[string]any
		if err := json.Unmarshal([]byte(r.RawPayload.String), &raw); err == nil {
			tx.RawPayload = raw
		}
	}
	return tx, nil
}

func (s *PostgresStore) UpsertRejection(ctx context.Context, tx model.RejectedTransaction) (bool, error) {
	errsJSON, err := json.Marshal(tx.Errors)
	if err != nil {
		return false, fmt.Errorf("%w: %v", model.ErrValidation, err)
	}
	var rawJSON []byte
	if tx.RawPayload != nil {
		rawJSON, err = json.Marshal(tx.RawPayload)
		if err != nil {
			return false, fmt.Errorf("%w: %v", model.ErrValidation, err)
		}
	}
	res, err := s.db.ExecContext(ctx, `
INSERT INTO rejections (ordinal, ts, update_type, fiber_id, update_hash, errors, signers, raw_payload)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
ON CONFLICT (update_hash) DO NOTHING
`, tx.Ordinal, tx.Timestamp, string(tx.UpdateType), tx.FiberID, tx.UpdateHash, errsJSON, pq.Array(tx.Signers), nullableJSON(rawJSON))
	if err != nil {
		return false, fmt.Errorf("%w: %v", model.ErrUpstream, err)
	}
	n, _ := res.RowsAffected()
	return n == 0, nil
}

func (s *PostgresStore) ConfirmSnapshot(ctx context.Context, ordinal uint64, hash string, gl0Ordinal *uint64, confirmedAt time.Time) error {
	txn, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("%w: %v", model.ErrUpstream, err)
	}
	defer txn.Rollback()

	if _, err := txn.ExecContext(ctx, `
INSERT INTO snapshots (ordinal, hash, status, gl0_ordinal, confirmed_at)
VALUES ($1, $2, 'CONFIRMED', $3, $4)
ON CONFLICT (ordinal) DO UPDATE SET hash = EXCLUDED.hash, status = 'CONFIRMED', gl0_ordinal = EXCLUDED.gl0_ordinal, confirmed_at = EXCLUDED.confirmed_at
`, ordinal, hash, gl0Ordinal, confirmedAt); err != nil {
		return fmt.Errorf("%w: %v", model.ErrUpstream, err)
	}

	if _, err := txn.ExecContext(ctx, `
UPDATE snapshots SET status = 'ORPHANED' WHERE status = 'PENDING' AND ordinal < $1
`, ordinal); err != nil {
		return fmt.Errorf("%w: %v", model.ErrUpstream, err)
	}

	if err := txn.Commit(); err != nil {
		return fmt.Errorf("%w: %v", model.ErrUpstream, err)
	}
	return nil
}

func (s *PostgresStore) GetRejectionByHash(ctx context.Context, updateHash string) (model.RejectedTransaction, error) {
	var row rejectionRow
	err := s.db.GetContext(ctx, &row, `SELECT id, ordinal, ts, update_type, fiber_id, update_hash, errors, signers, raw_payload FROM rejections WHERE update_hash = $1`, updateHash)
	if err == sql.ErrNoRows {
		return model.RejectedTransaction{}, model.ErrNotFound
	}
	if err != nil {
		return model.RejectedTransaction{}, fmt.Errorf("%w: %v", model.ErrUpstream, err)
	}
	return row.toModel()
}

func (s *PostgresStore) ListRejections(ctx context.Context, f RejectionFilter) ([]model.RejectedTransaction, int, error) {
	f = f.normalized()
	var conds []string
	var args []any
	arg := func(v any) string {
		args = append(args, v)
		return fmt.Sprintf("$%d", len(args))
	}
	if f.FiberID != "" {
		conds = append(conds, "fiber_id = "+arg(f.FiberID))
	}
	if f.UpdateType != "" {
		conds = append(conds, "update_type = "+arg(f.UpdateType))
	}
	if f.Signer != "" {
		conds = append(conds, "signers @> "+arg(pq.Array([]string{f.Signer}))+"::text[]")
	}
	if f.ErrorCode != "" {
		conds = append(conds, "errors::text ILIKE "+arg("%"+f.ErrorCode+"%"))
	}
	if f.FromOrdinal != nil {
		conds = append(conds, "ordinal >= "+arg(int64(*f.FromOrdinal)))
	}
	if f.ToOrdinal != nil {
		conds = append(conds, "ordinal <= "+arg(int64(*f.ToOrdinal)))
	}
	where := ""
	if len(conds) > 0 {
		where = "WHERE " + strings.Join(conds, " AND ")
	}

	var total int
	countQuery := "SELECT count(*) FROM rejections " + where
	if err := s.db.GetContext(ctx, &total, countQuery, args...); err != nil {
		return nil, 0, fmt.Errorf("%w: %v", model.ErrUpstream, err)
	}

	limitArg, offsetArg := arg(f.Limit), arg(f.Offset)
	query := fmt.Sprintf(`SELECT id, ordinal, ts, update_type, fiber_id, update_hash, errors, signers, raw_payload
FROM rejections %s ORDER BY ordinal DESC, id DESC LIMIT %s OFFSET %s`, where, limitArg, offsetArg)

	var rows []rejectionRow
	if err := s.db.SelectContext(ctx, &rows, query, args...); err != nil {
		return nil, 0, fmt.Errorf("%w: %v", model.ErrUpstream, err)
	}
	out := make([]model.RejectedTransaction, 0, len(rows))
	for _, r := range rows {
		tx, err := r.toModel()
		if err != nil {
			return nil, 0, fmt.Errorf("%w: %v", model.ErrUpstream, err)
		}
		out = append(out, tx)
	}
	return out, total, nil
}

func nullableJSON(b []byte) any {
	if len(b) == 0 {
		return nil
	}
	return string(b)
}
