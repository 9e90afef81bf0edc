package cli

import (
	"context"
	"testing"

	"github.com/m-mizutani/gt"
	"google.golang.org/api/option"
)

func TestImageStorageIsReleased(t *testing.T) {
	ctx := context.Background()
	cfg := newConfig(&dependencies{
		clientOptions: []option.ClientOption{option.WithoutAuthentication()},
	})

	t.Run("no bucket", func(t *testing.T) {
		storage, err := cfg.newImageStorage(ctx)
		gt.NoError(t, err)
		gt.Nil(t, storage)
		gt.A(t, cfg.closers).Length(0)
	})

	t.Run("bucket client is closed with the config", func(t *testing.T) {
		cfg.imageBucket = "agritech-images"
		storage, err := cfg.newImageStorage(ctx)
		gt.NoError(t, err)
		gt.V(t, storage).NotNil()
		gt.A(t, cfg.closers).Length(1)

		cfg.Close()
		gt.A(t, cfg.closers).Length(0)
	})
}
