// Package storage handles what happens to saved captures after they hit disk:
// optional upload to S3-compatible object storage and retention cleanup of
// the output directory.
package storage

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"

	"github.com/earshot-audio/earshot/internal/config"
	"github.com/earshot-audio/earshot/internal/eventlog"
)

const (
	uploadQueueSize = 100
	uploadTimeout   = 5 * time.Minute
	s3KeyPrefix     = "captures/"
)

// uploadRequest is one file queued for S3 upload.
type uploadRequest struct {
	localPath string
	key       string
	size      int64
}

// Uploader ships saved captures to S3 from a single worker goroutine so a
// slow network never delays the save call itself. Remaining items are
// drained on Stop.
type Uploader struct {
	client *s3.Client
	bucket string
	events *eventlog.Logger

	queue  chan uploadRequest
	stopCh chan struct{}
	wg     sync.WaitGroup
}

// NewUploader creates an uploader for the given S3 settings, or nil when S3
// is not configured; a nil Uploader accepts and ignores all calls.
func NewUploader(cfg config.S3Config, events *eventlog.Logger) *Uploader {
	if cfg.Bucket == "" || cfg.AccessKeyID == "" || cfg.SecretAccessKey == "" {
		return nil
	}

	u := &Uploader{
		client: newS3Client(cfg),
		bucket: cfg.Bucket,
		events: events,
		queue:  make(chan uploadRequest, uploadQueueSize),
		stopCh: make(chan struct{}),
	}
	u.wg.Add(1)
	go u.worker()
	return u
}

// newS3Client builds a client with static credentials; a custom endpoint
// switches to path-style addressing for S3-compatible stores.
func newS3Client(cfg config.S3Config) *s3.Client {
	creds := credentials.NewStaticCredentialsProvider(cfg.AccessKeyID, cfg.SecretAccessKey, "")

	options := []func(*s3.Options){
		func(o *s3.Options) {
			o.Credentials = creds
			o.Region = "auto"
		},
	}
	if cfg.Endpoint != "" {
		options = append(options, func(o *s3.Options) {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
			o.UsePathStyle = true
		})
	}
	return s3.New(s3.Options{}, options...)
}

// Enqueue queues a saved capture for upload. Never blocks; when the queue is
// full the file stays local and a warning is logged.
func (u *Uploader) Enqueue(path string) {
	if u == nil {
		return
	}

	info, err := os.Stat(path)
	if err != nil {
		slog.Warn("failed to stat capture for upload", "path", path, "error", err)
		return
	}

	select {
	case u.queue <- uploadRequest{
		localPath: path,
		key:       s3KeyPrefix + filepath.Base(path),
		size:      info.Size(),
	}:
		slog.Info("capture queued for upload", "file", filepath.Base(path))
	default:
		slog.Warn("upload queue full, keeping capture local", "file", filepath.Base(path))
	}
}

// Stop drains the queue and stops the worker.
func (u *Uploader) Stop() {
	if u == nil {
		return
	}
	close(u.stopCh)
	u.wg.Wait()
}

// worker processes the queue, draining remaining items on shutdown.
func (u *Uploader) worker() {
	defer u.wg.Done()

	for {
		select {
		case <-u.stopCh:
			for {
				select {
				case req := <-u.queue:
					u.upload(req)
				default:
					return
				}
			}
		case req := <-u.queue:
			u.upload(req)
		}
	}
}

// upload pushes one capture to the bucket.
func (u *Uploader) upload(req uploadRequest) {
	ctx, cancel := context.WithTimeoutCause(
		context.Background(),
		uploadTimeout,
		errors.New("s3 upload timeout"),
	)
	defer cancel()

	file, err := os.Open(req.localPath)
	if err != nil {
		slog.Error("failed to open capture for upload", "path", req.localPath, "error", err)
		return
	}
	defer func() {
		if err := file.Close(); err != nil {
			slog.Warn("failed to close capture after upload", "path", req.localPath, "error", err)
		}
	}()

	_, err = u.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:        aws.String(u.bucket),
		Key:           aws.String(req.key),
		Body:          file,
		ContentLength: aws.Int64(req.size),
		ContentType:   aws.String("audio/wav"),
	})
	if err != nil {
		slog.Error("capture upload failed", "key", req.key, "error", err)
		_ = u.events.Log(eventlog.Event{Type: eventlog.UploadFailed, Path: req.localPath, Error: err.Error()})
		return
	}

	slog.Info("capture upload completed", "key", req.key)
	_ = u.events.Log(eventlog.Event{Type: eventlog.UploadCompleted, Path: req.localPath})
}
