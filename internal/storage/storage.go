// Package storage saves retrieved artifacts to the local download directory.
package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"
	"time"

	"relaydl/internal/config"
	"relaydl/internal/entity"
	"relaydl/internal/errs"
	"relaydl/internal/observability"
)

const (
	partialSuffix   = ".part"
	maxNameBytes    = 200
	maxDuplicates   = 1000
	dirPermissions  = 0o755
	filePermissions = 0o644
)

var reUnsafe = regexp.MustCompile(`[\\/:*?"<>|\x00-\x1f]`)

// Store writes artifacts into one directory.
type Store struct {
	log        *slog.Logger
	dir        string
	partialTTL time.Duration
	metrics    *observability.Metrics
}

// New creates the download directory if needed and starts the partial file
// cleanup loop, which stops with ctx.
func New(ctx context.Context, log *slog.Logger, cfg *config.Config, metrics *observability.Metrics) (*Store, error) {
	err := os.MkdirAll(cfg.Dir.Downloads, dirPermissions)
	if err != nil {
		return nil, fmt.Errorf("create download dir: %w", err)
	}

	stg := &Store{
		log:        log.With(slog.String("package", "storage")),
		dir:        cfg.Dir.Downloads,
		partialTTL: cfg.Storage.PartialTTL,
		metrics:    metrics,
	}

	if cfg.Storage.CleanupInterval > 0 && cfg.Storage.PartialTTL > 0 {
		go stg.CleanupPartials(ctx, cfg.Storage.CleanupInterval)
	}

	return stg, nil
}

// Dir returns the download directory.
func (stg *Store) Dir() string {
	return stg.dir
}

// Save streams r into the download directory under a sanitized, unique
// version of name. Data goes to a temporary partial file first, which is
// removed on any failure.
func (stg *Store) Save(ctx context.Context, name string, r io.Reader) (entity.Artifact, error) {
	name = Sanitize(name)
	if name == "" {
		return entity.Artifact{}, errs.ErrInvalidFilename
	}

	tmp, err := os.CreateTemp(stg.dir, "."+name+".*"+partialSuffix)
	if err != nil {
		return entity.Artifact{}, fmt.Errorf("create partial file: %w", err)
	}

	tmpPath := tmp.Name()
	committed := false

	defer func() {
		if !committed {
			tmp.Close()
			os.Remove(tmpPath)
		}
	}()

	size, err := io.Copy(tmp, &ctxReader{ctx: ctx, r: r})
	if err != nil {
		return entity.Artifact{}, fmt.Errorf("write partial file: %w", err)
	}

	if err := tmp.Sync(); err != nil {
		return entity.Artifact{}, fmt.Errorf("sync partial file: %w", err)
	}

	if err := tmp.Close(); err != nil {
		return entity.Artifact{}, fmt.Errorf("close partial file: %w", err)
	}

	if err := os.Chmod(tmpPath, filePermissions); err != nil {
		return entity.Artifact{}, fmt.Errorf("chmod partial file: %w", err)
	}

	finalPath, err := stg.uniquePath(name)
	if err != nil {
		return entity.Artifact{}, err
	}

	if err := os.Rename(tmpPath, finalPath); err != nil {
		return entity.Artifact{}, fmt.Errorf("rename partial file: %w", err)
	}

	committed = true

	artifact := entity.Artifact{
		Filename: filepath.Base(finalPath),
		Path:     finalPath,
		Size:     size,
	}

	stg.log.InfoContext(ctx, "artifact saved", slog.Any("artifact", artifact))

	return artifact, nil
}

// uniquePath returns dir/name, or dir/"name (n).ext" when it already exists.
func (stg *Store) uniquePath(name string) (string, error) {
	ext := filepath.Ext(name)
	base := strings.TrimSuffix(name, ext)

	for i := range maxDuplicates {
		candidate := name
		if i > 0 {
			candidate = base + " (" + strconv.Itoa(i) + ")" + ext
		}

		path := filepath.Join(stg.dir, candidate)

		_, err := os.Lstat(path)
		if errors.Is(err, fs.ErrNotExist) {
			return path, nil
		}

		if err != nil {
			return "", fmt.Errorf("stat %s: %w", candidate, err)
		}
	}

	return "", fmt.Errorf("%w: too many files named %q", errs.ErrInvalidFilename, name)
}

// Sanitize makes name safe to use as a single path component.
func Sanitize(name string) string {
	name = filepath.Base(strings.ReplaceAll(name, `\`, "/"))
	name = reUnsafe.ReplaceAllString(name, "_")
	name = strings.TrimSpace(name)
	name = strings.TrimLeft(name, ".")

	for len(name) > maxNameBytes {
		ext := filepath.Ext(name)
		if len(ext) >= maxNameBytes {
			ext = ""
		}

		base := []rune(strings.TrimSuffix(name, ext))
		name = string(base[:len(base)-1]) + ext
	}

	// an emptied base leaves only the extension
	return strings.TrimLeft(name, ".")
}

type ctxReader struct {
	ctx context.Context //nolint:containedctx // scoped to a single copy
	r   io.Reader
}

func (cr *ctxReader) Read(p []byte) (int, error) {
	if err := cr.ctx.Err(); err != nil {
		return 0, err
	}

	return cr.r.Read(p)
}
