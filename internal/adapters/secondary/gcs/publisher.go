package gcs

import (
	"context"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path"
	"path/filepath"
	"strconv"

	"cloud.google.com/go/storage"
	log "github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"
	"google.golang.org/api/option"

	"serving-optimizer/internal/config"
	"serving-optimizer/internal/core/domain"
	ports "serving-optimizer/internal/core/ports/output"
)

// Publisher uploads version directories to gs://{bucket}/{prefix}/{model}/{version}/
// so a cluster model server can load them from the bucket.
type Publisher struct {
	client      *storage.Client
	bucket      string
	prefix      string
	concurrency int
	enabled     bool

	newWriter func(ctx context.Context, object string) io.WriteCloser
}

// NewPublisher creates a publisher. A disabled config yields a publisher
// whose IsAvailable is false.
func NewPublisher(ctx context.Context, cfg *config.GCSConfig) (*Publisher, error) {
	if !cfg.Enabled {
		return &Publisher{enabled: false}, nil
	}
	if cfg.Bucket == "" {
		return nil, fmt.Errorf("gcs bucket is required")
	}

	var opts []option.ClientOption
	if cfg.CredentialsFile != "" {
		if _, err := os.Stat(cfg.CredentialsFile); err != nil {
			return nil, fmt.Errorf("service account key %s: %w", cfg.CredentialsFile, err)
		}
		opts = append(opts, option.WithCredentialsFile(cfg.CredentialsFile))
	}

	client, err := storage.NewClient(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("create GCS storage client: %w", err)
	}

	p := &Publisher{
		client:      client,
		bucket:      cfg.Bucket,
		prefix:      cfg.Prefix,
		concurrency: cfg.Concurrency,
		enabled:     true,
	}
	p.newWriter = func(ctx context.Context, object string) io.WriteCloser {
		w := client.Bucket(p.bucket).Object(object).NewWriter(ctx)
		w.ContentType = "application/octet-stream"
		return w
	}
	return p, nil
}

func (p *Publisher) IsAvailable() bool {
	return p.enabled
}

func (p *Publisher) Close() error {
	if p.client == nil {
		return nil
	}
	return p.client.Close()
}

func (p *Publisher) modelPrefix(modelName string) string {
	return path.Join(p.prefix, modelName)
}

func (p *Publisher) BaseURI(modelName string) string {
	return fmt.Sprintf("gs://%s/%s", p.bucket, p.modelPrefix(modelName))
}

// objectName maps a file below localDir to its object key, keeping the
// relative directory structure (variables/variables.index etc).
func (p *Publisher) objectName(modelName string, version int64, localDir, file string) (string, error) {
	rel, err := filepath.Rel(localDir, file)
	if err != nil {
		return "", err
	}
	return path.Join(p.modelPrefix(modelName), strconv.FormatInt(version, 10), filepath.ToSlash(rel)), nil
}

func (p *Publisher) Publish(ctx context.Context, localDir, modelName string, version int64) (string, error) {
	if !p.enabled {
		return "", fmt.Errorf("publish: %w", domain.ErrPublisherNotAvailable)
	}

	var files []string
	err := filepath.WalkDir(localDir, func(file string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.IsDir() {
			files = append(files, file)
		}
		return nil
	})
	if err != nil {
		return "", fmt.Errorf("walk %s: %w", localDir, err)
	}

	limit := p.concurrency
	if limit <= 0 {
		limit = 4
	}
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(limit)

	for _, file := range files {
		file := file
		object, err := p.objectName(modelName, version, localDir, file)
		if err != nil {
			return "", fmt.Errorf("object name for %s: %w", file, err)
		}
		g.Go(func() error {
			return p.upload(gctx, file, object)
		})
	}
	if err := g.Wait(); err != nil {
		return "", err
	}

	log.WithFields(log.Fields{
		"model":   modelName,
		"version": version,
		"files":   len(files),
		"uri":     p.BaseURI(modelName),
	}).Info("version published")

	return p.BaseURI(modelName), nil
}

func (p *Publisher) upload(ctx context.Context, file, object string) error {
	f, err := os.Open(file)
	if err != nil {
		return fmt.Errorf("open %s: %w", file, err)
	}
	defer f.Close()

	w := p.newWriter(ctx, object)
	if _, err := io.Copy(w, f); err != nil {
		w.Close()
		return fmt.Errorf("copy %s to gs://%s/%s: %w", file, p.bucket, object, err)
	}
	if err := w.Close(); err != nil {
		return fmt.Errorf("finalize gs://%s/%s: %w", p.bucket, object, err)
	}
	return nil
}

// Ensure interface compliance
var _ ports.ArtifactPublisher = (*Publisher)(nil)
