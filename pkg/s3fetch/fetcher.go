package s3fetch

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/euancatapang/Exploration-to-Bedrock/pkg/logging"
)

// FetchConfig configures fetching of save files and template trees.
type FetchConfig struct {
	// DownloadDir is the local directory saves are downloaded into.
	DownloadDir string
	// Concurrency is the number of objects fetched in parallel by FetchTree (default: 4).
	Concurrency int
	// Downloader configures ranged downloads of a single object.
	Downloader DownloaderConfig
	// KeepFiles if true, Cleanup leaves DownloadDir in place.
	KeepFiles bool
}

// FetchResult describes a downloaded save file.
type FetchResult struct {
	Bucket    string
	Key       string
	LocalPath string
	Bytes     int64
	Duration  time.Duration
}

// Fetcher downloads save files and world templates from S3.
type Fetcher struct {
	client     *Client
	downloader *Downloader
	cfg        FetchConfig
}

// NewFetcher creates a new fetcher.
func NewFetcher(client *Client, cfg FetchConfig) *Fetcher {
	if cfg.Concurrency <= 0 {
		cfg.Concurrency = 4
	}
	return &Fetcher{
		client:     client,
		downloader: NewDownloader(client.api, cfg.Downloader),
		cfg:        cfg,
	}
}

// FetchSave downloads the save object named by uri into DownloadDir.
func (f *Fetcher) FetchSave(ctx context.Context, uri string) (*FetchResult, error) {
	bucket, key, err := ParseS3URI(uri)
	if err != nil {
		return nil, fmt.Errorf("parse save URI: %w", err)
	}
	if key == "" {
		return nil, fmt.Errorf("parse save URI %q: missing object key", uri)
	}

	localPath := filepath.Join(f.cfg.DownloadDir, sanitizeFilename(key))
	res, err := f.downloader.DownloadToFile(ctx, bucket, key, localPath)
	if err != nil {
		return nil, fmt.Errorf("fetch save: %w", err)
	}

	logging.L().Info().
		Str("uri", uri).
		Str("path", localPath).
		Int64("bytes", res.BytesDownloaded).
		Dur("elapsed", res.Duration).
		Msg("downloaded save file")

	return &FetchResult{
		Bucket:    bucket,
		Key:       key,
		LocalPath: localPath,
		Bytes:     res.BytesDownloaded,
		Duration:  res.Duration,
	}, nil
}

// FetchTree downloads every object under the prefix named by uri into dest,
// preserving the key layout below the prefix. It returns the number of files written.
func (f *Fetcher) FetchTree(ctx context.Context, uri, dest string) (int, error) {
	bucket, prefix, err := ParseS3URI(uri)
	if err != nil {
		return 0, fmt.Errorf("parse template URI: %w", err)
	}

	objects, err := f.client.ListObjects(ctx, bucket, prefix)
	if err != nil {
		return 0, fmt.Errorf("list template: %w", err)
	}
	if err := os.MkdirAll(dest, 0o755); err != nil {
		return 0, fmt.Errorf("create template dir: %w", err)
	}

	var written atomic.Int64
	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(f.cfg.Concurrency)

	for _, obj := range objects {
		rel, ok := relativeKey(prefix, obj.Key)
		if !ok {
			continue
		}
		g.Go(func() error {
			if _, err := f.downloader.DownloadToFile(ctx, bucket, obj.Key, filepath.Join(dest, rel)); err != nil {
				return fmt.Errorf("download %s: %w", obj.Key, err)
			}
			written.Add(1)
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return int(written.Load()), fmt.Errorf("wait for downloads: %w", err)
	}
	return int(written.Load()), nil
}

// Cleanup removes downloaded files.
func (f *Fetcher) Cleanup() error {
	if f.cfg.KeepFiles || f.cfg.DownloadDir == "" {
		return nil
	}
	return os.RemoveAll(f.cfg.DownloadDir)
}
