package postgres

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/testcontainers/testcontainers-go"
	tcpostgres "github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/sundayezeilo/shortlinks/internal/errx"
	"github.com/sundayezeilo/shortlinks/internal/links"
)

// setupDB starts PostgreSQL, applies the embedded migrations and returns a pool.
func setupDB(t *testing.T) *pgxpool.Pool {
	t.Helper()

	if testing.Short() {
		t.Skip("skipping postgres integration test in short mode")
	}

	ctx := context.Background()

	pgContainer, err := tcpostgres.Run(ctx,
		"postgres:16-alpine",
		tcpostgres.WithDatabase("testdb"),
		tcpostgres.WithUsername("testuser"),
		tcpostgres.WithPassword("testpass"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(60*time.Second),
		),
	)
	if err != nil {
		t.Fatalf("failed to start postgres container: %v", err)
	}
	t.Cleanup(func() {
		if err := pgContainer.Terminate(context.Background()); err != nil {
			t.Errorf("failed to terminate container: %v", err)
		}
	})

	dsn, err := pgContainer.ConnectionString(ctx, "sslmode=disable")
	if err != nil {
		t.Fatalf("failed to get connection string: %v", err)
	}

	if err := Migrate(dsn, slog.New(slog.NewJSONHandler(io.Discard, nil))); err != nil {
		t.Fatalf("failed to run migrations: %v", err)
	}

	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		t.Fatalf("failed to create pool: %v", err)
	}
	t.Cleanup(pool.Close)

	return pool
}

func TestPostgresRepository(t *testing.T) {
	pool := setupDB(t)
	r := NewRepository(pool)
	ctx := context.Background()

	t.Run("create then get", func(t *testing.T) {
		created, err := r.Create(ctx, links.Link{Code: "getme01", TargetURL: "https://go.dev"})
		if err != nil {
			t.Fatalf("Create() error = %v", err)
		}

		got, err := r.GetByCode(ctx, "getme01")
		if err != nil {
			t.Fatalf("GetByCode() error = %v", err)
		}
		if got.ID != created.ID || got.Clicks != 0 || got.LastClicked != nil {
			t.Errorf("GetByCode() = %+v, want %+v", got, created)
		}
	})

	t.Run("duplicate code leaves the first link untouched", func(t *testing.T) {
		if _, err := r.Create(ctx, links.Link{Code: "dupe001", TargetURL: "https://first.example"}); err != nil {
			t.Fatalf("Create() error = %v", err)
		}

		_, err := r.Create(ctx, links.Link{Code: "dupe001", TargetURL: "https://second.example"})
		if errx.KindOf(err) != errx.Conflict || !errors.Is(err, links.ErrCodeConflict) {
			t.Fatalf("expected conflict, got %v", err)
		}

		got, err := r.GetByCode(ctx, "dupe001")
		if err != nil {
			t.Fatalf("GetByCode() error = %v", err)
		}
		if got.TargetURL != "https://first.example" {
			t.Errorf("TargetURL = %q, want the first target", got.TargetURL)
		}
	})

	t.Run("concurrent resolves count every click", func(t *testing.T) {
		created, err := r.Create(ctx, links.Link{Code: "hot0001", TargetURL: "https://hot.example"})
		if err != nil {
			t.Fatalf("Create() error = %v", err)
		}

		const n = 50
		var wg sync.WaitGroup
		errs := make(chan error, n)
		for range n {
			wg.Add(1)
			go func() {
				defer wg.Done()
				if _, err := r.ResolveAndTrack(ctx, "hot0001"); err != nil {
					errs <- err
				}
			}()
		}
		wg.Wait()
		close(errs)
		for err := range errs {
			t.Fatalf("ResolveAndTrack() error = %v", err)
		}

		got, err := r.GetByCode(ctx, "hot0001")
		if err != nil {
			t.Fatalf("GetByCode() error = %v", err)
		}
		if got.Clicks != n {
			t.Errorf("Clicks = %d, want %d", got.Clicks, n)
		}
		if got.LastClicked == nil || got.LastClicked.Before(created.CreatedAt) {
			t.Errorf("LastClicked = %v, want >= %v", got.LastClicked, created.CreatedAt)
		}
	})

	t.Run("resolving a missing code changes nothing", func(t *testing.T) {
		before, err := r.List(ctx)
		if err != nil {
			t.Fatalf("List() error = %v", err)
		}

		_, err = r.ResolveAndTrack(ctx, "absent1")
		if errx.KindOf(err) != errx.NotFound {
			t.Fatalf("expected not found, got %v", err)
		}

		after, err := r.List(ctx)
		if err != nil {
			t.Fatalf("List() error = %v", err)
		}
		if len(after) != len(before) {
			t.Errorf("link count changed from %d to %d", len(before), len(after))
		}
	})

	t.Run("delete then get is not found", func(t *testing.T) {
		if _, err := r.Create(ctx, links.Link{Code: "gone001", TargetURL: "https://gone.example"}); err != nil {
			t.Fatalf("Create() error = %v", err)
		}
		if err := r.Delete(ctx, "gone001"); err != nil {
			t.Fatalf("Delete() error = %v", err)
		}
		if _, err := r.GetByCode(ctx, "gone001"); errx.KindOf(err) != errx.NotFound {
			t.Errorf("expected not found after delete, got %v", err)
		}
		if err := r.Delete(ctx, "gone001"); errx.KindOf(err) != errx.NotFound {
			t.Errorf("second delete should be not found, got %v", err)
		}

		// The code is free again once deleted.
		if _, err := r.Create(ctx, links.Link{Code: "gone001", TargetURL: "https://back.example"}); err != nil {
			t.Errorf("re-create after delete error = %v", err)
		}
	})

	t.Run("ping", func(t *testing.T) {
		if err := r.Ping(ctx); err != nil {
			t.Errorf("Ping() error = %v", err)
		}
	})
}

func TestPostgresRepository_ListOrder(t *testing.T) {
	pool := setupDB(t)
	r := NewRepository(pool)
	ctx := context.Background()

	for i, code := range []string{"orderAA", "orderBB", "orderCC"} {
		if _, err := r.Create(ctx, links.Link{Code: code, TargetURL: fmt.Sprintf("https://%d.example", i)}); err != nil {
			t.Fatalf("Create(%s) error = %v", code, err)
		}
		time.Sleep(5 * time.Millisecond)
	}

	got, err := r.List(ctx)
	if err != nil {
		t.Fatalf("List() error = %v", err)
	}

	want := []string{"orderCC", "orderBB", "orderAA"}
	if len(got) != len(want) {
		t.Fatalf("List() returned %d links, want %d", len(got), len(want))
	}
	for i, code := range want {
		if got[i].Code != code {
			t.Errorf("List()[%d].Code = %q, want %q", i, got[i].Code, code)
		}
	}
}

func TestMigrator_DownAndUp(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping postgres integration test in short mode")
	}

	ctx := context.Background()
	pgContainer, err := tcpostgres.Run(ctx,
		"postgres:16-alpine",
		tcpostgres.WithDatabase("testdb"),
		tcpostgres.WithUsername("testuser"),
		tcpostgres.WithPassword("testpass"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(60*time.Second),
		),
	)
	if err != nil {
		t.Fatalf("failed to start postgres container: %v", err)
	}
	defer pgContainer.Terminate(ctx)

	dsn, err := pgContainer.ConnectionString(ctx, "sslmode=disable")
	if err != nil {
		t.Fatalf("failed to get connection string: %v", err)
	}

	m, err := NewMigrator(dsn, slog.New(slog.NewJSONHandler(io.Discard, nil)))
	if err != nil {
		t.Fatalf("NewMigrator() error = %v", err)
	}
	defer m.Close()

	if _, _, ok, err := m.Version(); err != nil || ok {
		t.Fatalf("fresh database: ok = %v, err = %v", ok, err)
	}
	if err := m.Up(); err != nil {
		t.Fatalf("Up() error = %v", err)
	}
	if v, dirty, ok, err := m.Version(); err != nil || !ok || dirty || v != 1 {
		t.Fatalf("Version() = %d, %v, %v, %v", v, dirty, ok, err)
	}
	if err := m.Up(); err != nil {
		t.Fatalf("second Up() should be a no-op, got %v", err)
	}
	if err := m.Down(); err != nil {
		t.Fatalf("Down() error = %v", err)
	}
	if _, _, ok, _ := m.Version(); ok {
		t.Error("expected no version after rolling back the only migration")
	}
}
