package postgres

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgtype"

	"github.com/sundayezeilo/shortlinks/internal/errx"
	"github.com/sundayezeilo/shortlinks/internal/links"
)

/***************
 * Mocks / Stubs
 ***************/

// mockQueries implements the querier interface for testing.
type mockQueries struct {
	createLinkFunc      func(ctx context.Context, params createLinkParams) (linkRow, error)
	getLinkByCodeFunc   func(ctx context.Context, code string) (linkRow, error)
	resolveAndTrackFunc func(ctx context.Context, code string) (linkRow, error)
	listLinksFunc       func(ctx context.Context) ([]linkRow, error)
	deleteLinkFunc      func(ctx context.Context, code string) (int64, error)
}

func (m *mockQueries) CreateLink(ctx context.Context, params createLinkParams) (linkRow, error) {
	if m.createLinkFunc != nil {
		return m.createLinkFunc(ctx, params)
	}
	return linkRow{}, nil
}

func (m *mockQueries) GetLinkByCode(ctx context.Context, code string) (linkRow, error) {
	if m.getLinkByCodeFunc != nil {
		return m.getLinkByCodeFunc(ctx, code)
	}
	return linkRow{}, nil
}

func (m *mockQueries) ResolveAndTrackLink(ctx context.Context, code string) (linkRow, error) {
	if m.resolveAndTrackFunc != nil {
		return m.resolveAndTrackFunc(ctx, code)
	}
	return linkRow{}, nil
}

func (m *mockQueries) ListLinks(ctx context.Context) ([]linkRow, error) {
	if m.listLinksFunc != nil {
		return m.listLinksFunc(ctx)
	}
	return nil, nil
}

func (m *mockQueries) DeleteLink(ctx context.Context, code string) (int64, error) {
	if m.deleteLinkFunc != nil {
		return m.deleteLinkFunc(ctx, code)
	}
	return 1, nil
}

type stubPinger struct{ err error }

func (p stubPinger) Ping(context.Context) error { return p.err }

/***************
 * Helpers
 ***************/

func makeValidTimestamp(t time.Time) pgtype.Timestamptz {
	return pgtype.Timestamptz{Time: t, Valid: true}
}

func makeTestRow(now time.Time, code string) linkRow {
	return linkRow{
		ID:        uuid.New(),
		Code:      code,
		TargetURL: "https://example.com",
		CreatedAt: makeValidTimestamp(now),
	}
}

func newTestRepo(q querier) *repo {
	return &repo{q: q, ping: stubPinger{}}
}

/***************
 * Unit tests: helpers
 ***************/

func TestMustTime(t *testing.T) {
	now := time.Now()

	got, err := mustTime(makeValidTimestamp(now), "created_at")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !got.Equal(now) {
		t.Errorf("mustTime() = %v, want %v", got, now)
	}

	if _, err := mustTime(pgtype.Timestamptz{}, "created_at"); err == nil {
		t.Error("expected error for NULL timestamp")
	}
}

func TestTimePtr(t *testing.T) {
	if timePtr(pgtype.Timestamptz{}) != nil {
		t.Error("expected nil for NULL timestamp")
	}

	now := time.Now()
	p := timePtr(makeValidTimestamp(now))
	if p == nil || !p.Equal(now) {
		t.Errorf("timePtr() = %v, want %v", p, now)
	}
}

func TestToDomainLink(t *testing.T) {
	now := time.Now()
	clicked := now.Add(time.Minute)

	row := makeTestRow(now, "abc123")
	row.Clicks = 3
	row.LastClicked = makeValidTimestamp(clicked)

	got, err := toDomainLink(row)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got.ID != row.ID || got.Code != "abc123" || got.TargetURL != row.TargetURL || got.Clicks != 3 {
		t.Errorf("toDomainLink() = %+v", got)
	}
	if got.LastClicked == nil || !got.LastClicked.Equal(clicked) {
		t.Errorf("LastClicked = %v, want %v", got.LastClicked, clicked)
	}

	row.CreatedAt = pgtype.Timestamptz{}
	if _, err := toDomainLink(row); err == nil {
		t.Error("expected error when created_at is NULL")
	}
}

func TestMapRepoError(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		wantKind errx.Kind
		wantIs   error
	}{
		{"no rows", pgx.ErrNoRows, errx.NotFound, links.ErrNotFound},
		{"code unique violation", &pgconn.PgError{Code: "23505", ConstraintName: "links_code_unique"}, errx.Conflict, links.ErrCodeConflict},
		{"other unique violation", &pgconn.PgError{Code: "23505", ConstraintName: "links_pkey"}, errx.Storage, nil},
		{"check violation", &pgconn.PgError{Code: "23514"}, errx.Storage, nil},
		{"deadline exceeded", context.DeadlineExceeded, errx.Timeout, context.DeadlineExceeded},
		{"connection error", errors.New("connection refused"), errx.Storage, nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := mapRepoError("op", "abc123", tt.err)

			if got := errx.KindOf(err); got != tt.wantKind {
				t.Errorf("KindOf() = %v, want %v", got, tt.wantKind)
			}
			if tt.wantIs != nil && !errors.Is(err, tt.wantIs) {
				t.Errorf("errors.Is(%v, %v) = false", err, tt.wantIs)
			}
		})
	}
}

/***************
 * Unit tests: repository
 ***************/

func TestRepoCreate(t *testing.T) {
	ctx := context.Background()
	now := time.Now()

	t.Run("assigns a v7 id and returns the stored row", func(t *testing.T) {
		var gotParams createLinkParams
		r := newTestRepo(&mockQueries{
			createLinkFunc: func(_ context.Context, p createLinkParams) (linkRow, error) {
				gotParams = p
				row := makeTestRow(now, p.Code)
				row.ID = p.ID
				row.TargetURL = p.TargetURL
				return row, nil
			},
		})

		got, err := r.Create(ctx, links.Link{Code: "abc123", TargetURL: "https://go.dev"})
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if gotParams.ID.Version() != 7 {
			t.Errorf("id version = %d, want 7", gotParams.ID.Version())
		}
		if got.ID != gotParams.ID || got.Code != "abc123" || got.TargetURL != "https://go.dev" {
			t.Errorf("Create() = %+v", got)
		}
		if got.Clicks != 0 || got.LastClicked != nil {
			t.Errorf("new link should have no clicks, got %d / %v", got.Clicks, got.LastClicked)
		}
	})

	t.Run("maps unique violation to conflict", func(t *testing.T) {
		r := newTestRepo(&mockQueries{
			createLinkFunc: func(context.Context, createLinkParams) (linkRow, error) {
				return linkRow{}, &pgconn.PgError{Code: "23505", ConstraintName: "links_code_unique"}
			},
		})

		_, err := r.Create(ctx, links.Link{Code: "abc123", TargetURL: "https://go.dev"})
		if errx.KindOf(err) != errx.Conflict || !errors.Is(err, links.ErrCodeConflict) {
			t.Errorf("expected conflict, got %v", err)
		}
	})
}

func TestRepoGetByCode(t *testing.T) {
	ctx := context.Background()

	r := newTestRepo(&mockQueries{
		getLinkByCodeFunc: func(context.Context, string) (linkRow, error) {
			return linkRow{}, pgx.ErrNoRows
		},
	})

	_, err := r.GetByCode(ctx, "nope99")
	if errx.KindOf(err) != errx.NotFound || !errors.Is(err, links.ErrNotFound) {
		t.Errorf("expected not found, got %v", err)
	}
}

func TestRepoResolveAndTrack(t *testing.T) {
	ctx := context.Background()
	now := time.Now()

	r := newTestRepo(&mockQueries{
		resolveAndTrackFunc: func(_ context.Context, code string) (linkRow, error) {
			row := makeTestRow(now, code)
			row.Clicks = 1
			row.LastClicked = makeValidTimestamp(now.Add(time.Second))
			return row, nil
		},
	})

	got, err := r.ResolveAndTrack(ctx, "abc123")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got.Clicks != 1 || got.LastClicked == nil {
		t.Errorf("ResolveAndTrack() = %+v", got)
	}
}

func TestRepoList(t *testing.T) {
	ctx := context.Background()
	now := time.Now()

	t.Run("preserves query order", func(t *testing.T) {
		r := newTestRepo(&mockQueries{
			listLinksFunc: func(context.Context) ([]linkRow, error) {
				return []linkRow{makeTestRow(now, "cccccc"), makeTestRow(now.Add(-time.Second), "bbbbbb")}, nil
			},
		})

		got, err := r.List(ctx)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if len(got) != 2 || got[0].Code != "cccccc" || got[1].Code != "bbbbbb" {
			t.Errorf("List() = %+v", got)
		}
	})

	t.Run("empty table returns empty slice", func(t *testing.T) {
		got, err := newTestRepo(&mockQueries{}).List(ctx)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if got == nil || len(got) != 0 {
			t.Errorf("List() = %#v, want empty non-nil slice", got)
		}
	})
}

func TestRepoDelete(t *testing.T) {
	ctx := context.Background()

	tests := []struct {
		name     string
		affected int64
		err      error
		wantKind errx.Kind
	}{
		{"deleted", 1, nil, errx.Unknown},
		{"missing code", 0, nil, errx.NotFound},
		{"storage failure", 0, errors.New("broken pipe"), errx.Storage},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := newTestRepo(&mockQueries{
				deleteLinkFunc: func(context.Context, string) (int64, error) {
					return tt.affected, tt.err
				},
			})

			err := r.Delete(ctx, "abc123")
			if tt.wantKind == errx.Unknown {
				if err != nil {
					t.Errorf("unexpected error: %v", err)
				}
				return
			}
			if errx.KindOf(err) != tt.wantKind {
				t.Errorf("KindOf() = %v, want %v", errx.KindOf(err), tt.wantKind)
			}
		})
	}
}

func TestRepoPing(t *testing.T) {
	r := &repo{q: &mockQueries{}, ping: stubPinger{err: errors.New("down")}}

	if err := r.Ping(context.Background()); errx.KindOf(err) != errx.Storage {
		t.Errorf("expected storage error, got %v", err)
	}
}

func TestMigrationURL(t *testing.T) {
	tests := []struct {
		in, want string
	}{
		{"postgres://u:p@localhost:5432/db?sslmode=disable", "pgx5://u:p@localhost:5432/db?sslmode=disable"},
		{"postgresql://u@h/db", "pgx5://u@h/db"},
		{"pgx5://u@h/db", "pgx5://u@h/db"},
	}

	for _, tt := range tests {
		if got := MigrationURL(tt.in); got != tt.want {
			t.Errorf("MigrationURL(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}
