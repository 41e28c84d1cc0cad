// Package memory keeps links in process memory. It backs local development
// and tests; nothing survives a restart.
package memory

import (
	"bytes"
	"context"
	"fmt"
	"slices"
	"sync"
	"time"

	"github.com/sundayezeilo/shortlinks/internal/errx"
	"github.com/sundayezeilo/shortlinks/internal/links"
)

// Repository is a links.Repository guarded by a single mutex.
type Repository struct {
	mu    sync.RWMutex
	links map[string]links.Link
	now   func() time.Time
}

// Option configures a Repository.
type Option func(*Repository)

// WithClock overrides the time source.
func WithClock(now func() time.Time) Option {
	return func(r *Repository) { r.now = now }
}

func NewRepository(opts ...Option) *Repository {
	r := &Repository{
		links: make(map[string]links.Link),
		now:   time.Now,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

func notFound(op, code string) error {
	return errx.E(op, errx.NotFound, fmt.Errorf("%w: %s", links.ErrNotFound, code))
}

// clone copies the LastClicked pointer so callers never alias stored state.
func clone(l links.Link) links.Link {
	if l.LastClicked != nil {
		t := *l.LastClicked
		l.LastClicked = &t
	}
	return l
}

func (r *Repository) Create(ctx context.Context, link links.Link) (links.Link, error) {
	const op = "memory.repo.Create"

	if err := ctx.Err(); err != nil {
		return links.Link{}, errx.FromContext(op, err)
	}

	id, err := links.NewID()
	if err != nil {
		return links.Link{}, errx.E(op, errx.Internal, err)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.links[link.Code]; exists {
		return links.Link{}, errx.E(op, errx.Conflict, fmt.Errorf("%w: %s", links.ErrCodeConflict, link.Code))
	}

	stored := links.Link{
		ID:        id,
		Code:      link.Code,
		TargetURL: link.TargetURL,
		CreatedAt: r.now().UTC(),
	}
	r.links[link.Code] = stored
	return clone(stored), nil
}

func (r *Repository) GetByCode(ctx context.Context, code string) (links.Link, error) {
	const op = "memory.repo.GetByCode"

	if err := ctx.Err(); err != nil {
		return links.Link{}, errx.FromContext(op, err)
	}

	r.mu.RLock()
	defer r.mu.RUnlock()

	l, ok := r.links[code]
	if !ok {
		return links.Link{}, notFound(op, code)
	}
	return clone(l), nil
}

func (r *Repository) ResolveAndTrack(ctx context.Context, code string) (links.Link, error) {
	const op = "memory.repo.ResolveAndTrack"

	if err := ctx.Err(); err != nil {
		return links.Link{}, errx.FromContext(op, err)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	l, ok := r.links[code]
	if !ok {
		return links.Link{}, notFound(op, code)
	}

	now := r.now().UTC()
	if now.Before(l.CreatedAt) {
		now = l.CreatedAt
	}
	l.Clicks++
	l.LastClicked = &now
	r.links[code] = l

	return clone(l), nil
}

// List returns links newest first, breaking ties by descending id.
func (r *Repository) List(ctx context.Context) ([]links.Link, error) {
	const op = "memory.repo.List"

	if err := ctx.Err(); err != nil {
		return nil, errx.FromContext(op, err)
	}

	r.mu.RLock()
	out := make([]links.Link, 0, len(r.links))
	for _, l := range r.links {
		out = append(out, clone(l))
	}
	r.mu.RUnlock()

	slices.SortFunc(out, func(a, b links.Link) int {
		if c := b.CreatedAt.Compare(a.CreatedAt); c != 0 {
			return c
		}
		return bytes.Compare(b.ID[:], a.ID[:])
	})
	return out, nil
}

func (r *Repository) Delete(ctx context.Context, code string) error {
	const op = "memory.repo.Delete"

	if err := ctx.Err(); err != nil {
		return errx.FromContext(op, err)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.links[code]; !ok {
		return notFound(op, code)
	}
	delete(r.links, code)
	return nil
}

func (r *Repository) Ping(ctx context.Context) error {
	return errx.FromContext("memory.repo.Ping", ctx.Err())
}
