package cli

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/fatih/color"
	"github.com/m-mizutani/ctxlog"
	"github.com/m-mizutani/goerr/v2"
	"github.com/urfave/cli/v3"

	"github.com/docpack/docpack/pkg/cli/config"
	"github.com/docpack/docpack/pkg/domain/interfaces"
	"github.com/docpack/docpack/pkg/domain/model"
	"github.com/docpack/docpack/pkg/usecase"
)

func cmdDownload() *cli.Command {
	var (
		upstreamCfg config.Upstream
		archiveCfg  config.Archive
		output      string
		studentID   string
		query       model.RosterQuery
		batch       string
		search      string
		from        string
		to          string
	)

	var flags []cli.Flag
	flags = append(flags, upstreamCfg.Flags()...)
	flags = append(flags, archiveCfg.Flags()...)
	flags = append(flags,
		&cli.StringFlag{
			Name:        "output",
			Aliases:     []string{"o"},
			Usage:       "Output zip path (default: archive name in the current directory)",
			Destination: &output,
		},
		&cli.StringFlag{
			Name:        "student",
			Usage:       "Only archive the student with this user id",
			Destination: &studentID,
		},
		&cli.StringFlag{
			Name:        "batch",
			Usage:       "Only archive students of this batch",
			Destination: &batch,
		},
		&cli.StringFlag{
			Name:        "q",
			Usage:       "Only archive students whose name or email contains this text",
			Destination: &search,
		},
		&cli.StringFlag{
			Name:        "from",
			Usage:       "Only archive submissions on or after this date (YYYY-MM-DD)",
			Destination: &from,
		},
		&cli.StringFlag{
			Name:        "to",
			Usage:       "Only archive submissions on or before this date (YYYY-MM-DD)",
			Destination: &to,
		},
	)

	return &cli.Command{
		Name:    "download",
		Aliases: []string{"d"},
		Usage:   "Write a documents archive to a local file",
		Flags:   flags,
		Action: func(ctx context.Context, c *cli.Command) error {
			if err := archiveCfg.Validate(); err != nil {
				return err
			}

			query.Batch = batch
			query.Query = search
			for _, d := range []struct {
				value string
				dst   **time.Time
			}{{from, &query.From}, {to, &query.To}} {
				if d.value == "" {
					continue
				}
				t, err := time.Parse(time.DateOnly, d.value)
				if err != nil {
					return goerr.Wrap(err, "invalid date, expected YYYY-MM-DD", goerr.V("date", d.value))
				}
				*d.dst = &t
			}

			rosterClient, err := upstreamCfg.NewRosterClient()
			if err != nil {
				return err
			}
			archiver := archiveCfg.NewArchiver(upstreamCfg.NewFetcher(), upstreamCfg.DisplayField, nil)
			downloadUC := usecase.NewDownload(rosterClient, archiver,
				append(archiveCfg.DownloadOptions(),
					usecase.WithDisplayField(upstreamCfg.DisplayField),
					usecase.WithEmailField(upstreamCfg.EmailField),
				)...,
			)

			var job *model.ArchiveJob
			if studentID != "" {
				job, err = downloadUC.PlanStudent(ctx, studentID)
			} else {
				job, err = downloadUC.PlanAll(ctx, &query)
			}
			if err != nil {
				return err
			}

			if output == "" {
				output = job.Filename
			}
			manifest, err := writeArchiveFile(ctx, downloadUC, job, output)
			if err != nil {
				return err
			}

			printSummary(os.Stdout, output, manifest)
			return nil
		},
	}
}

// writeArchiveFile writes the archive next to path and renames it into place
// only when complete
func writeArchiveFile(ctx context.Context, uc interfaces.DownloadUseCase, job *model.ArchiveJob, path string) (*model.Manifest, error) {
	f, err := os.CreateTemp(filepath.Dir(path), ".docpack-*.zip")
	if err != nil {
		return nil, goerr.Wrap(err, "failed to create output file", goerr.V("path", path))
	}
	tmp := f.Name()
	defer func() {
		if _, err := os.Stat(tmp); err == nil {
			_ = os.Remove(tmp)
		}
	}()

	manifest, err := uc.WriteArchive(ctx, job, f)
	if closeErr := f.Close(); err == nil && closeErr != nil {
		err = goerr.Wrap(closeErr, "failed to close output file", goerr.V("path", tmp))
	}
	if err != nil {
		return manifest, err
	}

	if err := os.Rename(tmp, path); err != nil {
		return manifest, goerr.Wrap(err, "failed to move archive into place", goerr.V("path", path))
	}
	ctxlog.From(ctx).Debug("Archive written", "path", path)
	return manifest, nil
}

func printSummary(w io.Writer, path string, manifest *model.Manifest) {
	bold := color.New(color.Bold)
	green := color.New(color.FgGreen)
	yellow := color.New(color.FgYellow)

	_, _ = bold.Fprintf(w, "%s\n", path)
	_, _ = green.Fprintf(w, "  %d documents written", len(manifest.Entries))
	_, _ = fmt.Fprintf(w, " from %d students\n", manifest.Students)

	if len(manifest.Skipped) == 0 {
		return
	}
	_, _ = yellow.Fprintf(w, "  %d documents skipped:\n", len(manifest.Skipped))
	for _, s := range manifest.Skipped {
		_, _ = fmt.Fprintf(w, "    %s %s %s\n", s.Student, s.Field, s.URL)
		_, _ = color.New(color.Faint).Fprintf(w, "      %s\n", s.Reason)
	}
}
