package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/dustin/go-humanize"
	"github.com/google/uuid"
	"github.com/spf13/afero"
	"github.com/spf13/cobra"

	"github.com/tendant/simple-mediaboard/internal/app"
	"github.com/tendant/simple-mediaboard/internal/collision"
	"github.com/tendant/simple-mediaboard/internal/config"
	"github.com/tendant/simple-mediaboard/internal/converters"
	"github.com/tendant/simple-mediaboard/internal/img"
	"github.com/tendant/simple-mediaboard/internal/ingest"
	"github.com/tendant/simple-mediaboard/internal/sniff"
	"github.com/tendant/simple-mediaboard/internal/upload"
)

func newRootCommand() *cobra.Command {
	root := &cobra.Command{
		Use:          "ingest",
		Short:        "Store, strip and thumbnail post attachments",
		SilenceUsage: true,
	}
	root.AddCommand(
		newUploadCommand(),
		newEmbedCommand(),
		newProbeCommand(),
		newMigrateCommand(),
	)
	return root
}

// setup loads configuration and logs to the command's error stream so that
// stdout carries only results.
func setup(cmd *cobra.Command) (config.Config, *slog.Logger, error) {
	cfg, err := config.Load()
	if err != nil {
		return config.Config{}, nil, fmt.Errorf("load config: %w", err)
	}
	logger := app.NewLogger(cmd.ErrOrStderr(), cfg.LogLevel)
	slog.SetDefault(logger)
	return cfg, logger, nil
}

func newUploadCommand() *cobra.Command {
	var (
		name       string
		spoiler    bool
		allowEmpty bool
	)

	cmd := &cobra.Command{
		Use:   "upload <file>",
		Short: "Validate, store and thumbnail a file",
		Long: `Validate, store and thumbnail a file.

The file is copied to a temporary upload slot first; the original is left
untouched. A file whose content was stored before is reused.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, logger, err := setup(cmd)
			if err != nil {
				return err
			}

			file := upload.File(upload.EmptySlot())
			if len(args) == 1 {
				tmp, err := copyToTemp(args[0])
				if err != nil {
					return err
				}
				defer os.Remove(tmp)
				if name == "" {
					name = filepath.Base(args[0])
				}
				file = upload.NewTempFile(tmp, name)
			}

			a, err := app.New(cmd.Context(), cfg, nil, logger)
			if err != nil {
				return err
			}
			defer a.Close()

			res, err := a.Service.Upload(cmd.Context(), ingest.UploadRequest{
				ID:         uuid.NewString(),
				File:       file,
				Spoiler:    spoiler,
				AllowEmpty: allowEmpty,
			})
			if err != nil {
				return err
			}
			return writeJSON(cmd.OutOrStdout(), res.Job.Done(&res.Artifact, res.Reused))
		},
	}

	cmd.Flags().StringVar(&name, "name", "", "Client filename (default: base name of <file>)")
	cmd.Flags().BoolVar(&spoiler, "spoiler", false, "Use the spoiler placeholder as thumbnail")
	cmd.Flags().BoolVar(&allowEmpty, "allow-empty", false, "Accept a missing file")
	return cmd
}

func newEmbedCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "embed <url>",
		Short: "Resolve an embed link and thumbnail its preview",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, logger, err := setup(cmd)
			if err != nil {
				return err
			}
			a, err := app.New(cmd.Context(), cfg, nil, logger)
			if err != nil {
				return err
			}
			defer a.Close()

			res, err := a.Service.Embed(cmd.Context(), uuid.NewString(), args[0])
			if err != nil {
				return err
			}
			return writeJSON(cmd.OutOrStdout(), res.Job.Done(&res.Artifact, false))
		},
	}
}

func newProbeCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "probe <file>",
		Short: "Show the detected type, dimensions and duration of a file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, logger, err := setup(cmd)
			if err != nil {
				return err
			}
			ffmpeg := converters.NewFFmpegConverter(converters.NewExecRunner(logger))
			return probe(cmd.Context(), cmd.OutOrStdout(), afero.NewOsFs(), cfg, ffmpeg, args[0])
		},
	}
}

type prober interface {
	Probe(ctx context.Context, input string) (*converters.FileInfo, error)
}

func probe(ctx context.Context, w io.Writer, fs afero.Fs, cfg config.Config, videos prober, path string) error {
	info, err := fs.Stat(path)
	if err != nil {
		return err
	}

	sniffer := sniff.New(fs, cfg.MIMETypes)
	mime, confidence, err := sniffer.Detect(path, filepath.Base(path))
	if err != nil {
		return fmt.Errorf("detect: %w", err)
	}
	_, accepted := cfg.MIMETypes[mime]

	fmt.Fprintf(w, "MIME Type: %s (%s)\n", mime, confidence)
	fmt.Fprintf(w, "Accepted: %t\n", accepted)
	fmt.Fprintf(w, "File Size: %s\n", humanize.Bytes(uint64(info.Size())))

	if width, height, err := img.NewThumbnailer(fs).DecodeSize(path); err == nil {
		fmt.Fprintf(w, "Dimensions: %dx%d pixels\n", width, height)
	}

	if strings.HasPrefix(mime, "video/") {
		vi, err := videos.Probe(ctx, path)
		if err != nil {
			return fmt.Errorf("probe video: %w", err)
		}
		if vi.Width > 0 && vi.Height > 0 {
			fmt.Fprintf(w, "Dimensions: %dx%d pixels\n", vi.Width, vi.Height)
		}
		if vi.Duration > 0 {
			fmt.Fprintf(w, "Duration: %s\n", vi.Duration)
		}
	}
	return nil
}

func newMigrateCommand() *cobra.Command {
	var down bool

	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Apply database migrations",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, _, err := setup(cmd)
			if err != nil {
				return err
			}
			db, err := collision.Open(cfg.DBDriver, cfg.DBConnection)
			if err != nil {
				return err
			}
			defer collision.Close(db)

			if down {
				return collision.MigrateDown(db.DB, cfg.DBDriver)
			}
			return collision.Migrate(db.DB, cfg.DBDriver)
		},
	}

	cmd.Flags().BoolVar(&down, "down", false, "Roll back the most recent migration")
	return cmd
}

// copyToTemp copies src into a new temp file, standing in for the upload
// transport's temp directory.
func copyToTemp(src string) (string, error) {
	in, err := os.Open(src)
	if err != nil {
		return "", err
	}
	defer in.Close()

	out, err := os.CreateTemp("", "ingest-upload-*")
	if err != nil {
		return "", fmt.Errorf("create temp: %w", err)
	}
	if _, err := io.Copy(out, in); err != nil {
		out.Close()
		os.Remove(out.Name())
		return "", fmt.Errorf("copy upload: %w", err)
	}
	if err := out.Close(); err != nil {
		os.Remove(out.Name())
		return "", fmt.Errorf("copy upload: %w", err)
	}
	return out.Name(), nil
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
