package scratch

import (
	"bytes"
	"context"
	"crypto/tls"
	"fmt"
	"io"
	"net/http"
	"sync"
	"time"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
	"github.com/oklog/ulid/v2"

	"github.com/autopeer-io/groundpeer/internal/station/model"
	"github.com/autopeer-io/groundpeer/pkg/log"
	"github.com/autopeer-io/groundpeer/pkg/options"
)

const uploadTimeout = 30 * time.Second

// objectStore is the part of *minio.Client the mirror uses.
type objectStore interface {
	BucketExists(ctx context.Context, bucket string) (bool, error)
	MakeBucket(ctx context.Context, bucket string, opts minio.MakeBucketOptions) error
	PutObject(ctx context.Context, bucket, key string, r io.Reader, size int64, opts minio.PutObjectOptions) (minio.UploadInfo, error)
}

// Mirror wraps a Writer and additionally uploads every payload to object
// storage as scratch/{vehicleID}/{ulid}.mdl. Uploads run in the background;
// their failures are logged and never fail Write.
type Mirror struct {
	next   Writer
	client objectStore
	bucket string

	wg sync.WaitGroup
}

var _ Writer = (*Mirror)(nil)

// NewMirror creates a minio client from opts.
func NewMirror(next Writer, opts *options.S3Options) (*Mirror, error) {
	minioOpts := &minio.Options{
		Creds:  credentials.NewStaticV4(opts.AccessKeyID, opts.SecretAccessKey, ""),
		Secure: opts.UseSSL,
		Region: opts.Region,
	}
	if opts.UseSSL {
		minioOpts.Transport = &http.Transport{TLSClientConfig: &tls.Config{MinVersion: tls.VersionTLS12}}
	}

	client, err := minio.New(opts.Endpoint, minioOpts)
	if err != nil {
		return nil, fmt.Errorf("failed to create minio client: %w", err)
	}
	return newMirror(next, client, opts.BucketName), nil
}

func newMirror(next Writer, client objectStore, bucket string) *Mirror {
	return &Mirror{next: next, client: client, bucket: bucket}
}

// EnsureBucket creates the bucket when it does not exist yet.
func (m *Mirror) EnsureBucket(ctx context.Context) error {
	exists, err := m.client.BucketExists(ctx, m.bucket)
	if err != nil {
		return fmt.Errorf("failed to check bucket existence: %w", err)
	}
	if exists {
		return nil
	}
	log.Info("Bucket does not exist, creating", "bucket", m.bucket)
	if err := m.client.MakeBucket(ctx, m.bucket, minio.MakeBucketOptions{}); err != nil {
		return fmt.Errorf("failed to create bucket: %w", err)
	}
	return nil
}

func (m *Mirror) Write(ctx context.Context, id model.VehicleID, payload []byte) error {
	if err := m.next.Write(ctx, id, payload); err != nil {
		return err
	}

	key := ObjectKey(id, ulid.Make())
	data := bytes.Clone(payload)

	m.wg.Add(1)
	go func() {
		defer m.wg.Done()

		ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), uploadTimeout)
		defer cancel()

		_, err := m.client.PutObject(ctx, m.bucket, key, bytes.NewReader(data), int64(len(data)),
			minio.PutObjectOptions{ContentType: "application/octet-stream"})
		if err != nil {
			log.Warn("Failed to mirror settings payload", "vehicleId", id, "key", key, "error", err)
			return
		}
		log.Debug("Mirrored settings payload", "vehicleId", id, "key", key, "bytes", len(data))
	}()
	return nil
}

func (m *Mirror) Read(ctx context.Context) ([]byte, error) {
	return m.next.Read(ctx)
}

// Wait blocks until every pending upload has finished.
func (m *Mirror) Wait() {
	m.wg.Wait()
}

// ObjectKey names the mirrored copy of one payload.
func ObjectKey(id model.VehicleID, u ulid.ULID) string {
	return fmt.Sprintf("scratch/%d/%s.mdl", id, u)
}
