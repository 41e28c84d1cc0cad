package links

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/sundayezeilo/shortlinks/codegen"
	"github.com/sundayezeilo/shortlinks/internal/errx"
)

const (
	DefaultMaxRetries = 5
	DefaultOpTimeout  = 3 * time.Second
)

var codeCollisions = promauto.NewCounter(prometheus.CounterOpts{
	Name: "links_code_collisions_total",
	Help: "Generated codes rejected because they were already taken",
})

var tracer = otel.Tracer("github.com/sundayezeilo/shortlinks/internal/links")

// CreateLinkRequest represents the parameters for creating a new link.
type CreateLinkRequest struct {
	TargetURL string
	Code      string // Optional: if empty, a code will be generated
}

// Service is the link store used by handlers and the admin CLI.
type Service interface {
	Create(ctx context.Context, req CreateLinkRequest) (Link, error)
	Get(ctx context.Context, code string) (Link, error)
	Resolve(ctx context.Context, code string) (string, error)
	List(ctx context.Context) ([]Link, error)
	Delete(ctx context.Context, code string) error
}

type service struct {
	repo       Repository
	codes      codegen.Generator
	maxRetries int
	opTimeout  time.Duration
}

// ServiceConfig holds configuration for the service.
type ServiceConfig struct {
	CodeGenerator codegen.Generator
	CodeLength    int
	MaxRetries    int           // insert attempts with generated codes (default: 5)
	OpTimeout     time.Duration // upper bound per storage call; negative disables it
}

// NewService creates a new service instance.
func NewService(repo Repository, config *ServiceConfig) Service {
	if config == nil {
		config = &ServiceConfig{}
	}

	gen := config.CodeGenerator
	if gen == nil {
		gen = codegen.NewBase62(config.CodeLength)
	}

	retries := config.MaxRetries
	if retries <= 0 {
		retries = DefaultMaxRetries
	}

	timeout := config.OpTimeout
	if timeout == 0 {
		timeout = DefaultOpTimeout
	}

	return &service{
		repo:       repo,
		codes:      gen,
		maxRetries: retries,
		opTimeout:  timeout,
	}
}

// Create stores a new link. A caller-chosen code is inserted once; generated codes
// are retried on conflict.
func (s *service) Create(ctx context.Context, req CreateLinkRequest) (_ Link, err error) {
	const op = "links.service.Create"

	ctx, span := tracer.Start(ctx, "links.Create", trace.WithAttributes(
		attribute.Bool("link.custom_code", req.Code != ""),
	))
	defer func() { endSpan(span, err) }()

	if err := ValidateTargetURL(req.TargetURL); err != nil {
		return Link{}, errx.E(op, errx.Invalid, err)
	}

	if req.Code != "" {
		if err := ValidateCode(req.Code); err != nil {
			return Link{}, errx.E(op, errx.Invalid, err)
		}

		created, err := s.create(ctx, req.Code, req.TargetURL)
		if err != nil {
			return Link{}, errx.E(op, errx.KindOf(err), err)
		}
		return created, nil
	}

	for attempt := range s.maxRetries {
		code := s.codes.Generate()

		created, err := s.create(ctx, code, req.TargetURL)
		if err == nil {
			span.SetAttributes(attribute.Int("link.attempts", attempt+1))
			return created, nil
		}

		if errx.KindOf(err) != errx.Conflict {
			return Link{}, errx.E(op, errx.KindOf(err), err)
		}
		codeCollisions.Inc()
	}

	return Link{}, errx.E(op, errx.Storage,
		fmt.Errorf("%w after %d attempts", ErrCodeSpaceExhausted, s.maxRetries))
}

func (s *service) create(ctx context.Context, code, targetURL string) (Link, error) {
	ctx, cancel := s.bound(ctx)
	defer cancel()

	return s.repo.Create(ctx, Link{Code: code, TargetURL: targetURL})
}

// Resolve records one click and returns the target URL.
func (s *service) Resolve(ctx context.Context, code string) (_ string, err error) {
	const op = "links.service.Resolve"

	ctx, span := tracer.Start(ctx, "links.Resolve", trace.WithAttributes(attribute.String("link.code", code)))
	defer func() { endSpan(span, err) }()

	if err := checkLookupCode(code); err != nil {
		return "", errx.E(op, errx.NotFound, err)
	}

	ctx, cancel := s.bound(ctx)
	defer cancel()

	link, err := s.repo.ResolveAndTrack(ctx, code)
	if err != nil {
		return "", errx.E(op, errx.KindOf(err), err)
	}
	return link.TargetURL, nil
}

func (s *service) Get(ctx context.Context, code string) (_ Link, err error) {
	const op = "links.service.Get"

	ctx, span := tracer.Start(ctx, "links.Get", trace.WithAttributes(attribute.String("link.code", code)))
	defer func() { endSpan(span, err) }()

	if err := checkLookupCode(code); err != nil {
		return Link{}, errx.E(op, errx.NotFound, err)
	}

	ctx, cancel := s.bound(ctx)
	defer cancel()

	link, err := s.repo.GetByCode(ctx, code)
	if err != nil {
		return Link{}, errx.E(op, errx.KindOf(err), err)
	}
	return link, nil
}

// List returns every link, most recently created first.
func (s *service) List(ctx context.Context) (_ []Link, err error) {
	const op = "links.service.List"

	ctx, span := tracer.Start(ctx, "links.List")
	defer func() { endSpan(span, err) }()

	ctx, cancel := s.bound(ctx)
	defer cancel()

	all, err := s.repo.List(ctx)
	if err != nil {
		return nil, errx.E(op, errx.KindOf(err), err)
	}
	if all == nil {
		all = []Link{}
	}
	span.SetAttributes(attribute.Int("link.count", len(all)))
	return all, nil
}

// Delete removes a link. Deleting a missing code reports NotFound.
func (s *service) Delete(ctx context.Context, code string) (err error) {
	const op = "links.service.Delete"

	ctx, span := tracer.Start(ctx, "links.Delete", trace.WithAttributes(attribute.String("link.code", code)))
	defer func() { endSpan(span, err) }()

	if err := checkLookupCode(code); err != nil {
		return errx.E(op, errx.NotFound, err)
	}

	ctx, cancel := s.bound(ctx)
	defer cancel()

	if err := s.repo.Delete(ctx, code); err != nil {
		return errx.E(op, errx.KindOf(err), err)
	}
	return nil
}

// bound applies the per-operation timeout unless the caller's deadline is sooner.
func (s *service) bound(ctx context.Context) (context.Context, context.CancelFunc) {
	if s.opTimeout < 0 {
		return ctx, func() {}
	}
	return context.WithTimeout(ctx, s.opTimeout)
}

// checkLookupCode rejects codes that cannot exist, so lookups never reach storage for them.
func checkLookupCode(code string) error {
	if err := ValidateCode(code); err != nil {
		return fmt.Errorf("%w: %q", ErrNotFound, code)
	}
	return nil
}

func endSpan(span trace.Span, err error) {
	if err != nil {
		span.RecordError(err)
		span.SetAttributes(attribute.String("error.kind", errx.KindOf(err).String()))
		if !errors.Is(err, ErrNotFound) {
			span.SetStatus(codes.Error, err.Error())
		}
	}
	span.End()
}
