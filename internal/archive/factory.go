package archive

import (
	"context"
	"fmt"
	"os"

	"diagramcore/internal/config"
)

// Open selects an archive Store implementation using environment variables.
//
//	DIAGRAMCORE_ARCHIVE_DRIVER: fs|s3|memory (default fs)
//	DIAGRAMCORE_ARCHIVE_FS_ROOT: directory root when driver=fs (default ./archivedata)
//	(S3 specific variables documented in internal/infra/archive/s3)
func Open(ctx context.Context) (Store, error) {
	driver := os.Getenv("DIAGRAMCORE_ARCHIVE_DRIVER")
	if driver == "" {
		driver = string(DriverFilesystem)
	}
	switch Driver(driver) {
	case DriverFilesystem:
		root := os.Getenv("DIAGRAMCORE_ARCHIVE_FS_ROOT")
		return NewFilesystem(root)
	case DriverS3:
		return OpenS3FromEnv(ctx)
	case DriverMemory:
		return NewMemory(), nil
	default:
		return nil, fmt.Errorf("unknown archive driver %s", driver)
	}
}

// OpenFromConfig opens the archive Store described by cfg. S3 credentials
// still come from the ambient AWS environment.
func OpenFromConfig(ctx context.Context, cfg config.Archive) (Store, error) {
	switch Driver(cfg.Driver) {
	case DriverFilesystem:
		return NewFilesystem(cfg.Root)
	case DriverS3:
		return NewS3(ctx, S3Config{
			Region:    cfg.Region,
			Bucket:    cfg.Bucket,
			Endpoint:  cfg.Endpoint,
			PathStyle: cfg.PathStyle,
		})
	case DriverMemory:
		return NewMemory(), nil
	default:
		return nil, fmt.Errorf("unknown archive driver %s", cfg.Driver)
	}
}
