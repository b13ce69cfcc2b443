// Package thumbnail extracts a preview frame from a finished recording.
package thumbnail

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"dvr/internal/config"
	"dvr/internal/logging"
	"dvr/internal/store"
)

// DirName is the hidden directory beside the recordings that holds thumbnails.
const DirName = ".thumbnails"

// ErrNoMedia reports a missing or empty input file.
var ErrNoMedia = errors.New("recording file missing or empty")

// PathFor returns where the thumbnail of recording id stored in storageDir lives.
func PathFor(storageDir string, id int64) string {
	return filepath.Join(storageDir, DirName, strconv.FormatInt(id, 10)+".jpg")
}

// Extractor runs ffmpeg to grab one frame.
type Extractor struct {
	binary  string
	seek    int
	timeout time.Duration
}

// NewExtractor configures an extractor from the recorder and thumbnail settings.
func NewExtractor(cfg *config.Config) *Extractor {
	timeout := time.Duration(cfg.Thumbnails.Timeout) * time.Second
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &Extractor{
		binary:  cfg.Recorder.FFmpegBinary,
		seek:    cfg.Thumbnails.SeekSeconds,
		timeout: timeout,
	}
}

// Args returns the ffmpeg arguments that write one frame of input to output.
func (e *Extractor) Args(input, output string) []string {
	return []string{
		"-ss", strconv.Itoa(e.seek),
		"-i", input,
		"-vframes", "1",
		"-q:v", "2",
		"-y", output,
	}
}

// Extract writes a JPEG of input to output.
func (e *Extractor) Extract(ctx context.Context, input, output string) error {
	info, err := os.Stat(input)
	if err != nil || info.Size() == 0 {
		return fmt.Errorf("%s: %w", input, ErrNoMedia)
	}
	if err := os.MkdirAll(filepath.Dir(output), 0o755); err != nil {
		return fmt.Errorf("create thumbnail dir: %w", err)
	}

	runCtx, cancel := context.WithTimeout(ctx, e.timeout)
	defer cancel()
	cmd := exec.CommandContext(runCtx, e.binary, e.Args(input, output)...) //nolint:gosec
	out, err := cmd.CombinedOutput()
	if runCtx.Err() == context.DeadlineExceeded {
		return fmt.Errorf("thumbnail timed out after %s", e.timeout)
	}
	if err != nil {
		return fmt.Errorf("ffmpeg thumbnail: %w: %s", err, lastLine(string(out)))
	}
	if _, err := os.Stat(output); err != nil {
		return fmt.Errorf("ffmpeg reported success but %s is missing", output)
	}
	return nil
}

func lastLine(s string) string {
	lines := strings.Split(strings.TrimSpace(s), "\n")
	return strings.TrimSpace(lines[len(lines)-1])
}

// Store receives the thumbnail location.
type Store interface {
	SetRecordingThumbnail(ctx context.Context, id int64, path string) error
}

// Processor extracts a thumbnail for a finished recording and stores its path.
type Processor struct {
	extractor *Extractor
	store     Store
	logger    *slog.Logger
}

// NewProcessor wires an extractor to the store.
func NewProcessor(extractor *Extractor, st Store, logger *slog.Logger) *Processor {
	if logger == nil {
		logger = logging.NewNop()
	}
	return &Processor{extractor: extractor, store: st, logger: logging.NewComponentLogger(logger, "thumbnail")}
}

// Name identifies the processor in logs.
func (p *Processor) Name() string { return "thumbnail" }

// Process extracts the frame next to the recording and records its path.
func (p *Processor) Process(ctx context.Context, rec *store.Recording) error {
	output := PathFor(filepath.Dir(rec.FilePath), rec.ID)
	if err := p.extractor.Extract(ctx, rec.FilePath, output); err != nil {
		return err
	}
	if err := p.store.SetRecordingThumbnail(ctx, rec.ID, output); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			// Row deleted while extracting; nothing will ever point at the file.
			if rmErr := os.Remove(output); rmErr != nil && !errors.Is(rmErr, os.ErrNotExist) {
				p.logger.Warn("failed to remove orphaned thumbnail",
					logging.Int64(logging.FieldRecordingID, rec.ID),
					logging.String("path", output),
					logging.Error(rmErr),
				)
			}
		}
		return fmt.Errorf("store thumbnail path: %w", err)
	}
	p.logger.Info("thumbnail generated",
		logging.Int64(logging.FieldRecordingID, rec.ID),
		logging.String("path", output),
	)
	return nil
}
