package port

import "context"

type CacheRepository interface {
	// IsSoldOut reports whether the train was previously observed with no seats left
	IsSoldOut(ctx context.Context, trainID int64) (bool, error)

	// MarkSoldOut records that the train has no seats left
	MarkSoldOut(ctx context.Context, trainID int64) error
}
