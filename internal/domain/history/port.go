package history

import "context"

// Repository port for persisting and querying settled analyses
type Repository interface {
	Save(ctx context.Context, r *Record) error
	Paginate(ctx context.Context, page, pageSize int) ([]*Record, error)
	Count(ctx context.Context) (int64, error)
	LatestByURL(ctx context.Context, url string) (*Record, error)
}
