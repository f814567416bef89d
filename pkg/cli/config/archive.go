package config

import (
	"github.com/m-mizutani/goerr/v2"
	"github.com/urfave/cli/v3"

	"github.com/docpack/docpack/pkg/domain/interfaces"
	"github.com/docpack/docpack/pkg/usecase"
	"github.com/docpack/docpack/pkg/utils/metrics"
)

// Archive holds zip streaming configuration
type Archive struct {
	Prefetch      int
	MaxSpoolBytes int64
	SpoolDir      string
	Manifest      bool
	BulkLevel     int
	SingleLevel   int
}

// Flags returns CLI flags for archive configuration
func (c *Archive) Flags() []cli.Flag {
	return []cli.Flag{
		&cli.IntFlag{
			Name:        "prefetch",
			Usage:       "Documents fetched ahead of the zip writer (1 = strictly sequential)",
			Value:       1,
			Destination: &c.Prefetch,
			Sources:     cli.EnvVars("DOCPACK_PREFETCH"),
		},
		&cli.Int64Flag{
			Name:        "max-spool-bytes",
			Usage:       "In-memory limit of one prefetched document; larger ones are spooled to disk",
			Value:       usecase.DefaultMaxSpoolBytes,
			Destination: &c.MaxSpoolBytes,
			Sources:     cli.EnvVars("DOCPACK_MAX_SPOOL_BYTES"),
		},
		&cli.StringFlag{
			Name:        "spool-dir",
			Usage:       "Directory for spooled documents (default: OS temp dir)",
			Destination: &c.SpoolDir,
			Sources:     cli.EnvVars("DOCPACK_SPOOL_DIR"),
		},
		&cli.BoolFlag{
			Name:        "archive-manifest",
			Usage:       "Append _manifest.toml listing written and skipped documents",
			Destination: &c.Manifest,
			Sources:     cli.EnvVars("DOCPACK_ARCHIVE_MANIFEST"),
		},
		&cli.IntFlag{
			Name:        "bulk-level",
			Usage:       "Deflate level of the all-students archive (-1 default, 0-9)",
			Value:       9,
			Destination: &c.BulkLevel,
			Sources:     cli.EnvVars("DOCPACK_BULK_LEVEL"),
		},
		&cli.IntFlag{
			Name:        "single-level",
			Usage:       "Deflate level of single-student archives (-1 default, 0-9)",
			Value:       -1,
			Destination: &c.SingleLevel,
			Sources:     cli.EnvVars("DOCPACK_SINGLE_LEVEL"),
		},
	}
}

// Validate checks value ranges
func (c *Archive) Validate() error {
	if c.Prefetch < 1 || c.Prefetch > 64 {
		return goerr.New("prefetch must be between 1 and 64", goerr.V("prefetch", c.Prefetch))
	}
	if c.MaxSpoolBytes < 0 {
		return goerr.New("max-spool-bytes must not be negative", goerr.V("max_spool_bytes", c.MaxSpoolBytes))
	}
	for name, level := range map[string]int{"bulk-level": c.BulkLevel, "single-level": c.SingleLevel} {
		if level < -1 || level > 9 {
			return goerr.New("deflate level must be between -1 and 9", goerr.V(name, level))
		}
	}
	return nil
}

// NewArchiver creates the archive writer
func (c *Archive) NewArchiver(f interfaces.FileFetcher, displayField string, m *metrics.Metrics) *usecase.Archiver {
	return usecase.NewArchiver(f,
		usecase.WithArchiveDisplayField(displayField),
		usecase.WithArchiveMetrics(m),
		usecase.WithPrefetch(c.Prefetch),
		usecase.WithSpool(c.MaxSpoolBytes, c.SpoolDir),
		usecase.WithManifest(c.Manifest),
	)
}

// DownloadOptions returns the use case options derived from this config
func (c *Archive) DownloadOptions() []usecase.DownloadOption {
	return []usecase.DownloadOption{
		usecase.WithLevels(c.BulkLevel, c.SingleLevel),
	}
}
