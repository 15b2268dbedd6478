package sinks

import (
	"context"
	"crypto/md5"
	"encoding/hex"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/gabriel-vasile/mimetype"
	"go.uber.org/multierr"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	"google.golang.org/api/googleapi"

	"driveindex/pkg/interfaces"
	"driveindex/pkg/models"
)

// DownloadOptions configures a DownloadSink.
type DownloadOptions struct {
	Dir            string
	Concurrency    int
	VerifyChecksum bool
	Logger         *zap.Logger
}

// DownloadStats summarizes completed downloads.
type DownloadStats struct {
	Files  int
	Bytes  int64
	Failed int
}

// DownloadSink fetches each resource's bytes through its fetch reference and
// stores them as <dir>/<file id>_<name>. Downloads run in the background with
// bounded concurrency; Write blocks while all slots are busy. Failures do not
// stop other downloads and are reported together by Close.
//
// Downloads are bound to the context given to NewDownloadSink, not to the
// context of each Write, so files still in flight when enumeration ends are
// finished by Close.
type DownloadSink struct {
	ctx    context.Context
	client *http.Client
	opts   DownloadOptions
	logger *zap.Logger
	group  errgroup.Group

	mu    sync.Mutex
	errs  error
	stats DownloadStats
}

// NewDownloadSink creates a sink using client, which must carry authorization.
// Cancelling ctx aborts pending and in-flight downloads.
func NewDownloadSink(ctx context.Context, client *http.Client, opts DownloadOptions) (*DownloadSink, error) {
	if opts.Dir == "" {
		return nil, fmt.Errorf("download directory is required")
	}

	if opts.Concurrency < 1 {
		opts.Concurrency = 1
	}

	if err := os.MkdirAll(opts.Dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create download directory: %w", err)
	}

	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	s := &DownloadSink{ctx: ctx, client: client, opts: opts, logger: logger}
	s.group.SetLimit(opts.Concurrency)

	return s, nil
}

func (s *DownloadSink) Name() string {
	return "download"
}

// Write schedules a download for resources; containers are ignored.
func (s *DownloadSink) Write(_ context.Context, entity models.Entity) error {
	res, ok := entity.(*models.Resource)
	if !ok || res.Fetch.IsZero() {
		return nil
	}

	s.group.Go(func() error {
		n, err := s.download(s.ctx, res)

		s.mu.Lock()
		defer s.mu.Unlock()

		if err != nil {
			s.logger.Error("Download failed", zap.String("id", res.FileID), zap.String("name", res.Name), zap.Error(err))
			s.errs = multierr.Append(s.errs, fmt.Errorf("download %s: %w", res.FileID, err))
			s.stats.Failed++

			return nil
		}

		s.stats.Files++
		s.stats.Bytes += n

		return nil
	})

	return nil
}

// Close waits for in-flight downloads and returns their combined errors.
func (s *DownloadSink) Close() error {
	_ = s.group.Wait()

	s.mu.Lock()
	defer s.mu.Unlock()

	return s.errs
}

// Stats returns download counts; call after Close for final numbers.
func (s *DownloadSink) Stats() DownloadStats {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.stats
}

// TargetPath returns where res is stored under dir.
func TargetPath(dir string, res *models.Resource) string {
	name := sanitizeFilename(res.Name)
	if res.Fetch.Mode == models.FetchModeExport && !strings.HasSuffix(strings.ToLower(name), ".pdf") {
		name += ".pdf"
	}

	return filepath.Join(dir, sanitizeFilename(res.FileID)+"_"+name)
}

func (s *DownloadSink) download(ctx context.Context, res *models.Resource) (int64, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, res.Fetch.URL, nil)
	if err != nil {
		return 0, err
	}

	resp, err := s.client.Do(req)
	if err != nil {
		return 0, err
	}
	defer resp.Body.Close()

	if err := googleapi.CheckResponse(resp); err != nil {
		return 0, err
	}

	path := TargetPath(s.opts.Dir, res)
	tmp := path + ".part"

	f, err := os.Create(tmp)
	if err != nil {
		return 0, fmt.Errorf("failed to create %s: %w", tmp, err)
	}

	hash := md5.New()

	n, copyErr := io.Copy(io.MultiWriter(f, hash), resp.Body)
	closeErr := f.Close()

	if err := multierr.Append(copyErr, closeErr); err != nil {
		os.Remove(tmp)

		return 0, fmt.Errorf("failed to write %s: %w", tmp, err)
	}

	if s.opts.VerifyChecksum && res.Fetch.Mode == models.FetchModeDirect && res.MD5Checksum != "" {
		if sum := hex.EncodeToString(hash.Sum(nil)); !strings.EqualFold(sum, res.MD5Checksum) {
			os.Remove(tmp)

			return 0, fmt.Errorf("checksum mismatch: expected %s, got %s", res.MD5Checksum, sum)
		}
	}

	if err := os.Rename(tmp, path); err != nil {
		os.Remove(tmp)

		return 0, fmt.Errorf("failed to move download into place: %w", err)
	}

	s.logDetectedType(path, res)

	return n, nil
}

func (s *DownloadSink) logDetectedType(path string, res *models.Resource) {
	detected, err := mimetype.DetectFile(path)
	if err != nil {
		s.logger.Debug("Content type detection failed", zap.String("path", path), zap.Error(err))

		return
	}

	expected := res.MimeType
	if res.Fetch.Mode == models.FetchModeExport {
		expected = "application/pdf"
	}

	fields := []zap.Field{
		zap.String("id", res.FileID),
		zap.String("path", path),
		zap.String("detected", detected.String()),
		zap.String("expected", expected),
	}

	if expected != "" && !detected.Is(expected) {
		s.logger.Warn("Downloaded content type differs from metadata", fields...)

		return
	}

	s.logger.Debug("Downloaded file", fields...)
}

// sanitizeFilename replaces characters that are unsafe in file names.
func sanitizeFilename(filename string) string {
	replacements := map[string]string{
		"/":  "-",
		"\\": "-",
		":":  "-",
		"*":  "",
		"?":  "",
		"\"": "",
		"<":  "",
		">":  "",
		"|":  "-",
	}

	for old, repl := range replacements {
		filename = strings.ReplaceAll(filename, old, repl)
	}

	filename = strings.TrimSpace(filename)
	for strings.Contains(filename, "  ") {
		filename = strings.ReplaceAll(filename, "  ", " ")
	}

	return filename
}

var _ interfaces.Sink = (*DownloadSink)(nil)
