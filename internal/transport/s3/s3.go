// Package s3 implements a transport whose upstream location is a prefix in
// an S3 bucket, with optional age encryption of the stored objects.
package s3

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/url"
	"path"
	"strings"
	"sync"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/feature/s3/manager"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/spf13/afero"

	"pfs-go/internal/config"
	"pfs-go/internal/pfs"
	"pfs-go/internal/transport"
)

// encryptedSuffix marks objects stored age-encrypted.
const encryptedSuffix = ".age"

// Client is the subset of the S3 API the transport uses.
type Client interface {
	manager.UploadAPIClient
	s3.ListObjectsV2APIClient
	GetObject(ctx context.Context, params *s3.GetObjectInput, optFns ...func(*s3.Options)) (*s3.GetObjectOutput, error)
	DeleteObject(ctx context.Context, params *s3.DeleteObjectInput, optFns ...func(*s3.Options)) (*s3.DeleteObjectOutput, error)
}

// Options configures a Transport.
type Options struct {
	Client    Client
	Bucket    string
	Prefix    string
	FS        afero.Fs
	LocalPath string
	Logger    pfs.Logger
	// Encryptor, when set, encrypts uploads. Unlock opens downloads of
	// encrypted objects and is called at most once.
	Encryptor pfs.Encryptor
	Unlock    func() (pfs.DecryptionContext, error)
}

// Transport syncs the working clone with objects under a bucket prefix.
type Transport struct {
	client    Client
	uploader  *manager.Uploader
	bucket    string
	prefix    string
	fs        afero.Fs
	localPath string
	logger    pfs.Logger
	encryptor pfs.Encryptor
	unlock    func() (pfs.DecryptionContext, error)

	unlockOnce sync.Once
	dc         pfs.DecryptionContext
	unlockErr  error
}

var _ pfs.Transport = (*Transport)(nil)

// New creates an S3 transport.
func New(opts Options) *Transport {
	logger := opts.Logger
	if logger == nil {
		logger = pfs.NewNopLogger()
	}
	return &Transport{
		client:    opts.Client,
		uploader:  manager.NewUploader(opts.Client),
		bucket:    opts.Bucket,
		prefix:    strings.Trim(opts.Prefix, "/"),
		fs:        opts.FS,
		localPath: opts.LocalPath,
		logger:    logger,
		encryptor: opts.Encryptor,
		unlock:    opts.Unlock,
	}
}

// ParseURL splits an s3://bucket/prefix location.
func ParseURL(raw string) (bucket, prefix string, err error) {
	u, err := url.Parse(raw)
	if err != nil {
		return "", "", fmt.Errorf("parsing %q: %w", raw, err)
	}
	if u.Scheme != "s3" {
		return "", "", fmt.Errorf("%q is not an s3:// url", raw)
	}
	if u.Host == "" {
		return "", "", fmt.Errorf("%q has no bucket", raw)
	}
	return u.Host, strings.Trim(u.Path, "/"), nil
}

// NewClient builds an S3 client from configuration, using the default
// credential chain unless static keys are configured.
func NewClient(ctx context.Context, cfg config.S3Config) (*s3.Client, error) {
	var loadOpts []func(*awsconfig.LoadOptions) error
	if cfg.Region != "" {
		loadOpts = append(loadOpts, awsconfig.WithRegion(cfg.Region))
	}
	if cfg.AccessKeyID != "" {
		loadOpts = append(loadOpts, awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AccessKeyID, cfg.SecretAccessKey, "")))
	}
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, loadOpts...)
	if err != nil {
		return nil, fmt.Errorf("loading aws config: %w", err)
	}
	return s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
		}
		o.UsePathStyle = cfg.UsePathStyle
	}), nil
}

// Constructor builds the transport from a project's fs_url and the
// application's [transport.s3] settings.
func Constructor(project *pfs.Project, env transport.Env) (pfs.Transport, error) {
	bucket, prefix, err := ParseURL(project.FSURL)
	if err != nil {
		return nil, &pfs.ConfigError{Field: "fs_url", Err: err}
	}
	var s3cfg config.S3Config
	if env.Config != nil {
		s3cfg = env.Config.Transport.S3
	}
	opts := Options{
		Bucket:    bucket,
		Prefix:    prefix,
		FS:        env.FS,
		LocalPath: env.LocalPath,
		Logger:    env.Logger,
		Unlock:    env.Unlock,
	}
	if s3cfg.Encrypt {
		if env.Encryptor == nil || !env.Encryptor.IsConfigured() {
			return nil, &pfs.ConfigError{Field: "transport.s3.encrypt", Err: fmt.Errorf("encryption keys are not set up")}
		}
		opts.Encryptor = env.Encryptor
	}
	client, err := NewClient(context.Background(), s3cfg)
	if err != nil {
		return nil, err
	}
	opts.Client = client
	return New(opts), nil
}

func (t *Transport) key(rel string) string {
	k := strings.TrimLeft(rel, "/")
	if t.prefix != "" {
		k = path.Join(t.prefix, k)
	}
	if t.encryptor != nil {
		k += encryptedSuffix
	}
	return k
}

// relPath maps an object key back to a clone path.
func (t *Transport) relPath(key string) (string, bool) {
	rel := key
	if t.prefix != "" {
		if !strings.HasPrefix(key, t.prefix+"/") {
			return "", false
		}
		rel = strings.TrimPrefix(key, t.prefix+"/")
	}
	rel = strings.TrimSuffix(rel, encryptedSuffix)
	if rel == "" || strings.HasSuffix(rel, "/") {
		return "", false
	}
	return "/" + rel, true
}

func (t *Transport) listPrefix() *string {
	if t.prefix == "" {
		return nil
	}
	return aws.String(t.prefix + "/")
}

// Fetch downloads every object under the prefix into the working clone
// and removes clone files with no object.
func (t *Transport) Fetch(ctx context.Context) error {
	if err := t.fs.MkdirAll(t.localPath, 0755); err != nil {
		return fmt.Errorf("creating working clone: %w", err)
	}

	keep := make(map[string]bool)
	downloaded := 0
	paginator := s3.NewListObjectsV2Paginator(t.client, &s3.ListObjectsV2Input{
		Bucket: aws.String(t.bucket),
		Prefix: t.listPrefix(),
	})
	for paginator.HasMorePages() {
		page, err := paginator.NextPage(ctx)
		if err != nil {
			return fmt.Errorf("listing s3://%s/%s: %w", t.bucket, t.prefix, err)
		}
		for _, obj := range page.Contents {
			key := aws.ToString(obj.Key)
			rel, ok := t.relPath(key)
			if !ok {
				continue
			}
			keep[rel] = true
			changed, err := t.download(ctx, key, rel)
			if err != nil {
				return err
			}
			if changed {
				downloaded++
			}
		}
	}

	removed, err := transport.Prune(t.fs, t.localPath, keep)
	if err != nil {
		return err
	}
	t.logger.Info("fetched", "bucket", t.bucket, "prefix", t.prefix, "downloaded", downloaded, "removed", removed)
	return nil
}

func (t *Transport) download(ctx context.Context, key, rel string) (bool, error) {
	out, err := t.client.GetObject(ctx, &s3.GetObjectInput{Bucket: aws.String(t.bucket), Key: aws.String(key)})
	if err != nil {
		return false, fmt.Errorf("downloading %s: %w", key, err)
	}
	defer out.Body.Close()

	var content bytes.Buffer
	if strings.HasSuffix(key, encryptedSuffix) {
		dc, err := t.decryptionContext()
		if err != nil {
			return false, err
		}
		if err := dc.Decrypt(out.Body, &content); err != nil {
			return false, fmt.Errorf("decrypting %s: %w", key, err)
		}
	} else if _, err := io.Copy(&content, out.Body); err != nil {
		return false, fmt.Errorf("downloading %s: %w", key, err)
	}

	dst := transport.Join(t.localPath, rel)
	if current, err := afero.ReadFile(t.fs, dst); err == nil && bytes.Equal(current, content.Bytes()) {
		return false, nil
	}
	if err := transport.WriteFile(t.fs, dst, &content); err != nil {
		return false, fmt.Errorf("writing %s: %w", rel, err)
	}
	return true, nil
}

func (t *Transport) decryptionContext() (pfs.DecryptionContext, error) {
	t.unlockOnce.Do(func() {
		if t.unlock == nil {
			t.unlockErr = fmt.Errorf("encrypted objects found but no passphrase source is configured")
			return
		}
		t.dc, t.unlockErr = t.unlock()
	})
	if t.unlockErr != nil {
		return nil, fmt.Errorf("unlocking private key: %w", t.unlockErr)
	}
	return t.dc, nil
}

// Push uploads written files and deletes the objects of removed ones.
func (t *Transport) Push(ctx context.Context, resp *pfs.Response) error {
	written, removed := transport.Changes(resp)
	for _, rel := range written {
		if err := t.upload(ctx, rel); err != nil {
			return err
		}
	}
	for _, rel := range removed {
		_, err := t.client.DeleteObject(ctx, &s3.DeleteObjectInput{
			Bucket: aws.String(t.bucket),
			Key:    aws.String(t.key(rel)),
		})
		if err != nil {
			return fmt.Errorf("deleting %s: %w", rel, err)
		}
	}
	t.logger.Info("pushed", "bucket", t.bucket, "prefix", t.prefix, "uploaded", len(written), "deleted", len(removed))
	return nil
}

func (t *Transport) upload(ctx context.Context, rel string) error {
	data, err := afero.ReadFile(t.fs, transport.Join(t.localPath, rel))
	if err != nil {
		return fmt.Errorf("reading %s: %w", rel, err)
	}
	body := data
	if t.encryptor != nil {
		var sealed bytes.Buffer
		if err := t.encryptor.Encrypt(bytes.NewReader(data), &sealed); err != nil {
			return fmt.Errorf("encrypting %s: %w", rel, err)
		}
		body = sealed.Bytes()
	}
	_, err = t.uploader.Upload(ctx, &s3.PutObjectInput{
		Bucket: aws.String(t.bucket),
		Key:    aws.String(t.key(rel)),
		Body:   bytes.NewReader(body),
	})
	if err != nil {
		return fmt.Errorf("uploading %s: %w", rel, err)
	}
	return nil
}

// LatestChangeToken fingerprints the working clone.
func (t *Transport) LatestChangeToken() (string, error) {
	return pfs.TreeToken(t.fs, t.localPath)
}
