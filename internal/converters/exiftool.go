package converters

import (
	"context"
	"log/slog"
)

// statusUnavailable is reported when the tool could not be run at all.
const statusUnavailable = 127

// ExifTool strips metadata with `exiftool -All=`.
type ExifTool struct {
	runner Runner
	binary string
	logger *slog.Logger
}

// NewExifTool creates a stripper that executes exiftool through runner.
func NewExifTool(runner Runner, logger *slog.Logger) *ExifTool {
	if logger == nil {
		logger = slog.Default()
	}
	return &ExifTool{runner: runner, binary: "exiftool", logger: logger}
}

// Strip checks that exiftool is available, then removes all metadata from
// path in place. It returns the first non-zero status it sees.
func (e *ExifTool) Strip(ctx context.Context, path string) int {
	res, err := e.runner.Run(ctx, e.binary, "-ver")
	if status := exitStatus(res, err); status != 0 {
		e.logger.Warn("exiftool unavailable", "status", status, "err", err)
		return status
	}

	res, err = e.runner.Run(ctx, e.binary, "-All=", "-overwrite_original_in_place", path)
	status := exitStatus(res, err)
	if status != 0 {
		e.logger.Warn("exiftool strip failed", "path", path, "status", status, "err", err, "stderr", res.Stderr)
	}
	return status
}

func exitStatus(res Result, err error) int {
	if err != nil {
		if res.ExitCode > 0 {
			return res.ExitCode
		}
		return statusUnavailable
	}
	return res.ExitCode
}
