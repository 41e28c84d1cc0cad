package postgres

import (
	"context"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgtype"
)

// DBTX is satisfied by *pgxpool.Pool, *pgx.Conn and pgx.Tx.
type DBTX interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// linkRow mirrors one row of the links table.
type linkRow struct {
	ID          uuid.UUID
	Code        string
	TargetURL   string
	Clicks      int64
	LastClicked pgtype.Timestamptz
	CreatedAt   pgtype.Timestamptz
}

type createLinkParams struct {
	ID        uuid.UUID
	Code      string
	TargetURL string
}

const linkColumns = `id, code, target_url, clicks, last_clicked, created_at`

const createLink = `
INSERT INTO links (id, code, target_url)
VALUES ($1, $2, $3)
RETURNING ` + linkColumns

const getLinkByCode = `
SELECT ` + linkColumns + `
FROM links
WHERE code = $1`

// last_clicked never drops below created_at, even if the database clock steps back.
const resolveAndTrackLink = `
UPDATE links
SET clicks = clicks + 1,
    last_clicked = GREATEST(now(), created_at)
WHERE code = $1
RETURNING ` + linkColumns

const listLinks = `
SELECT ` + linkColumns + `
FROM links
ORDER BY created_at DESC, id DESC`

const deleteLink = `
DELETE FROM links
WHERE code = $1`

// Queries runs the link statements against a DBTX.
type Queries struct {
	db DBTX
}

func NewQueries(db DBTX) *Queries {
	return &Queries{db: db}
}

func scanLink(row pgx.Row) (linkRow, error) {
	var l linkRow
	err := row.Scan(&l.ID, &l.Code, &l.TargetURL, &l.Clicks, &l.LastClicked, &l.CreatedAt)
	return l, err
}

func (q *Queries) CreateLink(ctx context.Context, arg createLinkParams) (linkRow, error) {
	return scanLink(q.db.QueryRow(ctx, createLink, arg.ID, arg.Code, arg.TargetURL))
}

func (q *Queries) GetLinkByCode(ctx context.Context, code string) (linkRow, error) {
	return scanLink(q.db.QueryRow(ctx, getLinkByCode, code))
}

func (q *Queries) ResolveAndTrackLink(ctx context.Context, code string) (linkRow, error) {
	return scanLink(q.db.QueryRow(ctx, resolveAndTrackLink, code))
}

func (q *Queries) ListLinks(ctx context.Context) ([]linkRow, error) {
	rows, err := q.db.Query(ctx, listLinks)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var items []linkRow
	for rows.Next() {
		l, err := scanLink(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, l)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return items, nil
}

// DeleteLink returns the number of rows removed.
func (q *Queries) DeleteLink(ctx context.Context, code string) (int64, error) {
	tag, err := q.db.Exec(ctx, deleteLink, code)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}
