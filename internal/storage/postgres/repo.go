// Package postgres stores links in PostgreSQL through pgx.
package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgtype"

	"github.com/sundayezeilo/shortlinks/internal/errx"
	"github.com/sundayezeilo/shortlinks/internal/links"
)

// querier abstracts *Queries so the repository can be tested without a database.
type querier interface {
	CreateLink(ctx context.Context, arg createLinkParams) (linkRow, error)
	GetLinkByCode(ctx context.Context, code string) (linkRow, error)
	ResolveAndTrackLink(ctx context.Context, code string) (linkRow, error)
	ListLinks(ctx context.Context) ([]linkRow, error)
	DeleteLink(ctx context.Context, code string) (int64, error)
}

// Pinger is implemented by *pgxpool.Pool.
type Pinger interface {
	Ping(ctx context.Context) error
}

type repo struct {
	q    querier
	ping Pinger
}

// Pool is the subset of *pgxpool.Pool the repository needs.
type Pool interface {
	DBTX
	Pinger
}

// NewRepository returns a links.Repository backed by PostgreSQL.
func NewRepository(pool Pool) links.Repository {
	return &repo{q: NewQueries(pool), ping: pool}
}

func mustTime(ts pgtype.Timestamptz, field string) (time.Time, error) {
	if !ts.Valid {
		return time.Time{}, fmt.Errorf("%s unexpectedly NULL", field)
	}
	return ts.Time, nil
}

func timePtr(ts pgtype.Timestamptz) *time.Time {
	if !ts.Valid {
		return nil
	}
	t := ts.Time
	return &t
}

func toDomainLink(x linkRow) (links.Link, error) {
	createdAt, err := mustTime(x.CreatedAt, "created_at")
	if err != nil {
		return links.Link{}, err
	}

	return links.Link{
		ID:          x.ID,
		Code:        x.Code,
		TargetURL:   x.TargetURL,
		Clicks:      x.Clicks,
		LastClicked: timePtr(x.LastClicked),
		CreatedAt:   createdAt,
	}, nil
}

func (r *repo) Create(ctx context.Context, link links.Link) (links.Link, error) {
	const op = "postgres.repo.Create"

	id, err := links.NewID()
	if err != nil {
		return links.Link{}, errx.E(op, errx.Internal, err)
	}

	row, err := r.q.CreateLink(ctx, createLinkParams{
		ID:        id,
		Code:      link.Code,
		TargetURL: link.TargetURL,
	})
	if err != nil {
		return links.Link{}, mapRepoError(op, link.Code, err)
	}

	out, err := toDomainLink(row)
	if err != nil {
		return links.Link{}, errx.E(op, errx.Internal, err)
	}
	return out, nil
}

func (r *repo) GetByCode(ctx context.Context, code string) (links.Link, error) {
	const op = "postgres.repo.GetByCode"

	row, err := r.q.GetLinkByCode(ctx, code)
	if err != nil {
		return links.Link{}, mapRepoError(op, code, err)
	}

	out, err := toDomainLink(row)
	if err != nil {
		return links.Link{}, errx.E(op, errx.Internal, err)
	}
	return out, nil
}

// ResolveAndTrack increments clicks and stamps last_clicked in a single UPDATE ... RETURNING.
func (r *repo) ResolveAndTrack(ctx context.Context, code string) (links.Link, error) {
	const op = "postgres.repo.ResolveAndTrack"

	row, err := r.q.ResolveAndTrackLink(ctx, code)
	if err != nil {
		return links.Link{}, mapRepoError(op, code, err)
	}

	out, err := toDomainLink(row)
	if err != nil {
		return links.Link{}, errx.E(op, errx.Internal, err)
	}
	return out, nil
}

func (r *repo) List(ctx context.Context) ([]links.Link, error) {
	const op = "postgres.repo.List"

	rows, err := r.q.ListLinks(ctx)
	if err != nil {
		return nil, mapRepoError(op, "", err)
	}

	out := make([]links.Link, 0, len(rows))
	for _, row := range rows {
		l, err := toDomainLink(row)
		if err != nil {
			return nil, errx.E(op, errx.Internal, err)
		}
		out = append(out, l)
	}
	return out, nil
}

func (r *repo) Delete(ctx context.Context, code string) error {
	const op = "postgres.repo.Delete"

	n, err := r.q.DeleteLink(ctx, code)
	if err != nil {
		return mapRepoError(op, code, err)
	}
	if n == 0 {
		return errx.E(op, errx.NotFound, fmt.Errorf("%w: %s", links.ErrNotFound, code))
	}
	return nil
}

func (r *repo) Ping(ctx context.Context) error {
	const op = "postgres.repo.Ping"

	if err := r.ping.Ping(ctx); err != nil {
		return mapRepoError(op, "", err)
	}
	return nil
}
