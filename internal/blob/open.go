package blob

import (
	"context"
	"os"
	"path"
	"path/filepath"

	"github.com/cockroachdb/errors"

	"genorollup/internal/config"
)

// Open builds the store named by cfg.Driver. It returns nil when upload is
// disabled.
func Open(ctx context.Context, cfg config.BlobConfig) (Store, error) {
	switch Driver(cfg.Driver) {
	case "":
		return nil, nil
	case DriverFilesystem:
		return NewFilesystem(cfg.FSRoot)
	case DriverS3:
		return NewS3(ctx, S3Config{
			Bucket:    cfg.Bucket,
			Region:    cfg.Region,
			Endpoint:  cfg.Endpoint,
			PathStyle: cfg.PathStyle,
		})
	case DriverMemory:
		return NewMemory(), nil
	default:
		return nil, errors.Newf("unknown blob driver %q", cfg.Driver)
	}
}

// Key returns the object key of a run's load file: prefix/runID/base(file).
func Key(prefix, runID, file string) string {
	return path.Join(prefix, runID, filepath.Base(file))
}

// PublishFile uploads the file at local under key as tab-separated text.
func PublishFile(ctx context.Context, store Store, key, local string, metadata map[string]string) (Info, error) {
	f, err := os.Open(local) //nolint:gosec // operator-supplied output path
	if err != nil {
		return Info{}, errors.Wrapf(err, "open %s", local)
	}
	defer func() { _ = f.Close() }()
	info, err := store.Put(ctx, key, f, PutOptions{
		ContentType: "text/tab-separated-values",
		Metadata:    metadata,
	})
	if err != nil {
		return Info{}, errors.Wrapf(err, "publish %s", key)
	}
	return info, nil
}
