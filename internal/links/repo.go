package links

import "context"

// Repository defines the persistence operations for Link entities.
// Implementations own uniqueness of codes and must perform ResolveAndTrack
// as a single atomic storage operation.
type Repository interface {
	Create(ctx context.Context, link Link) (Link, error)
	GetByCode(ctx context.Context, code string) (Link, error)
	ResolveAndTrack(ctx context.Context, code string) (Link, error)
	List(ctx context.Context) ([]Link, error)
	Delete(ctx context.Context, code string) error
	Ping(ctx context.Context) error
}
