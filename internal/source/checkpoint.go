package source

import (
	"context"
	"errors"

	"gorm.io/gorm"

	"github.com/tbourn/go-powboard/internal/repo"
)

// CheckpointStore persists the last block height a stream delivered.
type CheckpointStore interface {
	// Load returns ok=false when the stream has no checkpoint yet.
	Load(ctx context.Context, stream string) (height int64, ok bool, err error)
	Save(ctx context.Context, stream string, height int64) error
}

// DBCheckpoints stores checkpoints in the checkpoints table.
type DBCheckpoints struct {
	DB *gorm.DB
}

func (d DBCheckpoints) Load(ctx context.Context, stream string) (int64, bool, error) {
	h, err := repo.GetCheckpoint(ctx, d.DB, stream)
	if errors.Is(err, repo.ErrNotFound) {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, err
	}
	return h, true, nil
}

func (d DBCheckpoints) Save(ctx context.Context, stream string, height int64) error {
	return repo.SaveCheckpoint(ctx, d.DB, stream, height)
}
