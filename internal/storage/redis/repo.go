// Package redis stores links in Redis. Each link is a hash; a sorted set scored by
// creation time backs listing. Mutations run as Lua scripts so each is atomic.
package redis

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/sundayezeilo/shortlinks/internal/errx"
	"github.com/sundayezeilo/shortlinks/internal/links"
)

const (
	keyPrefix    = "link:"
	createdIndex = "links:by_created"
)

// hashFields is the field order used by HMGET and by resolveScript.
var hashFields = []string{"id", "code", "target_url", "clicks", "last_clicked", "created_at"}

type repo struct {
	client redis.UniversalClient
}

// NewRepository returns a links.Repository backed by Redis.
func NewRepository(client redis.UniversalClient) links.Repository {
	return &repo{client: client}
}

func linkKey(code string) string {
	return keyPrefix + code
}

func mapRepoError(op, code string, err error) error {
	if ctxErr := errx.FromContext(op, err); ctxErr != nil {
		return ctxErr
	}
	if errors.Is(err, redis.Nil) {
		return errx.E(op, errx.NotFound, fmt.Errorf("%w: %s", links.ErrNotFound, code))
	}
	return errx.E(op, errx.Storage, err)
}

func fromMicros(s string) (time.Time, error) {
	us, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return time.Time{}, fmt.Errorf("parse timestamp %q: %w", s, err)
	}
	return time.UnixMicro(us).UTC(), nil
}

// parseLink decodes HMGET values in hashFields order. ok is false when the hash is missing.
func parseLink(vals []any) (link links.Link, ok bool, err error) {
	if len(vals) != len(hashFields) {
		return links.Link{}, false, fmt.Errorf("expected %d fields, got %d", len(hashFields), len(vals))
	}
	if vals[0] == nil {
		return links.Link{}, false, nil
	}

	str := make([]string, len(vals))
	for i, v := range vals {
		switch x := v.(type) {
		case string:
			str[i] = x
		case int64:
			str[i] = strconv.FormatInt(x, 10)
		case nil:
		default:
			return links.Link{}, false, fmt.Errorf("field %s: unexpected type %T", hashFields[i], v)
		}
	}

	id, err := uuid.Parse(str[0])
	if err != nil {
		return links.Link{}, false, fmt.Errorf("parse id: %w", err)
	}
	clicks, err := strconv.ParseInt(str[3], 10, 64)
	if err != nil {
		return links.Link{}, false, fmt.Errorf("parse clicks: %w", err)
	}
	createdAt, err := fromMicros(str[5])
	if err != nil {
		return links.Link{}, false, err
	}

	link = links.Link{
		ID:        id,
		Code:      str[1],
		TargetURL: str[2],
		Clicks:    clicks,
		CreatedAt: createdAt,
	}
	if str[4] != "" {
		lc, err := fromMicros(str[4])
		if err != nil {
			return links.Link{}, false, err
		}
		link.LastClicked = &lc
	}
	return link, true, nil
}

func (r *repo) Create(ctx context.Context, link links.Link) (links.Link, error) {
	const op = "redis.repo.Create"

	id, err := links.NewID()
	if err != nil {
		return links.Link{}, errx.E(op, errx.Internal, err)
	}

	res, err := createScript.Run(ctx, r.client,
		[]string{linkKey(link.Code), createdIndex},
		id.String(), link.Code, link.TargetURL,
	).Slice()
	if err != nil {
		return links.Link{}, mapRepoError(op, link.Code, err)
	}
	if len(res) != 2 {
		return links.Link{}, errx.E(op, errx.Internal, fmt.Errorf("unexpected script reply %v", res))
	}

	if inserted, _ := res[0].(int64); inserted == 0 {
		return links.Link{}, errx.E(op, errx.Conflict, fmt.Errorf("%w: %s", links.ErrCodeConflict, link.Code))
	}

	createdStr, _ := res[1].(string)
	createdAt, err := fromMicros(createdStr)
	if err != nil {
		return links.Link{}, errx.E(op, errx.Internal, err)
	}

	return links.Link{
		ID:        id,
		Code:      link.Code,
		TargetURL: link.TargetURL,
		CreatedAt: createdAt,
	}, nil
}

func (r *repo) GetByCode(ctx context.Context, code string) (links.Link, error) {
	const op = "redis.repo.GetByCode"

	vals, err := r.client.HMGet(ctx, linkKey(code), hashFields...).Result()
	if err != nil {
		return links.Link{}, mapRepoError(op, code, err)
	}

	link, ok, err := parseLink(vals)
	if err != nil {
		return links.Link{}, errx.E(op, errx.Internal, err)
	}
	if !ok {
		return links.Link{}, errx.E(op, errx.NotFound, fmt.Errorf("%w: %s", links.ErrNotFound, code))
	}
	return link, nil
}

func (r *repo) ResolveAndTrack(ctx context.Context, code string) (links.Link, error) {
	const op = "redis.repo.ResolveAndTrack"

	vals, err := resolveScript.Run(ctx, r.client, []string{linkKey(code)}).Slice()
	if err != nil {
		return links.Link{}, mapRepoError(op, code, err)
	}

	link, ok, err := parseLink(vals)
	if err != nil {
		return links.Link{}, errx.E(op, errx.Internal, err)
	}
	if !ok {
		return links.Link{}, errx.E(op, errx.NotFound, fmt.Errorf("%w: %s", links.ErrNotFound, code))
	}
	return link, nil
}

// List reads the index newest first and fetches every hash in one pipeline.
// Codes whose hash vanished between the two steps are skipped.
func (r *repo) List(ctx context.Context) ([]links.Link, error) {
	const op = "redis.repo.List"

	codes, err := r.client.ZRevRange(ctx, createdIndex, 0, -1).Result()
	if err != nil {
		return nil, mapRepoError(op, "", err)
	}
	if len(codes) == 0 {
		return []links.Link{}, nil
	}

	pipe := r.client.Pipeline()
	cmds := make([]*redis.SliceCmd, len(codes))
	for i, code := range codes {
		cmds[i] = pipe.HMGet(ctx, linkKey(code), hashFields...)
	}
	if _, err := pipe.Exec(ctx); err != nil {
		return nil, mapRepoError(op, "", err)
	}

	out := make([]links.Link, 0, len(codes))
	for _, cmd := range cmds {
		link, ok, err := parseLink(cmd.Val())
		if err != nil {
			return nil, errx.E(op, errx.Internal, err)
		}
		if ok {
			out = append(out, link)
		}
	}
	return out, nil
}

func (r *repo) Delete(ctx context.Context, code string) error {
	const op = "redis.repo.Delete"

	n, err := deleteScript.Run(ctx, r.client, []string{linkKey(code), createdIndex}, code).Int64()
	if err != nil {
		return mapRepoError(op, code, err)
	}
	if n == 0 {
		return errx.E(op, errx.NotFound, fmt.Errorf("%w: %s", links.ErrNotFound, code))
	}
	return nil
}

func (r *repo) Ping(ctx context.Context) error {
	const op = "redis.repo.Ping"

	if err := r.client.Ping(ctx).Err(); err != nil {
		return mapRepoError(op, "", err)
	}
	return nil
}
