package s3

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/url"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/aws/smithy-go"

	"github.com/gobeaver/netfs"
)

// FileSystem provides an S3 implementation of netfs.FileSystem.
//
// The URI form is s3://[accessKey:secret@]bucket/prefix. Directories are
// key prefixes delimited by "/".
type FileSystem struct {
	settings *netfs.Settings
	client   API
	bucket   string
	prefix   string
}

// New creates an S3 filesystem; the client is built from the settings and
// the URI during Init.
func New(settings *netfs.Settings) *FileSystem {
	return NewWithAPI(settings, nil)
}

// NewWithAPI creates an S3 filesystem using client.
func NewWithAPI(settings *netfs.Settings, client API) *FileSystem {
	if settings == nil {
		settings = netfs.DefaultSettings()
	}
	return &FileSystem{settings: settings, client: client}
}

// Kind implements netfs.FileSystem
func (fs *FileSystem) Kind() netfs.Kind { return netfs.KindS3 }

// Base implements netfs.FileSystem. It is "/bucket/prefix".
func (fs *FileSystem) Base() string {
	return "/" + netfs.Join(fs.bucket, fs.prefix)
}

// Init implements netfs.FileSystem
func (fs *FileSystem) Init(ctx context.Context, uri *netfs.URI) error {
	if uri == nil || uri.Host == "" {
		return &netfs.PathError{Op: "init", Path: uri.Redacted(), Err: fmt.Errorf("%w: missing bucket", netfs.ErrInvalidURI)}
	}
	fs.bucket = uri.Host
	fs.prefix = netfs.Relative(uri.Path)

	if fs.client == nil {
		client, err := createS3Client(ctx, resolveOptions(fs.settings, uri))
		if err != nil {
			return &netfs.PathError{Op: "init", Path: uri.Redacted(), Err: fmt.Errorf("%w: %v", netfs.ErrConnection, err)}
		}
		fs.client = client
	}
	netfs.Logger().Debug("s3 filesystem ready", "bucket", fs.bucket, "prefix", fs.prefix)
	return nil
}

func (fs *FileSystem) key(dir, name string) string {
	return netfs.Join(netfs.Join(fs.prefix, dir), name)
}

// dirPrefix returns the listing prefix for dir, ending in "/" unless it
// is the bucket root.
func (fs *FileSystem) dirPrefix(dir string) string {
	p := netfs.Join(fs.prefix, dir)
	if p != "" {
		p += "/"
	}
	return p
}

// Create implements netfs.FileSystem
func (fs *FileSystem) Create(ctx context.Context, dir, name string) (netfs.File, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if err := netfs.ValidName(name); err != nil {
		return nil, &netfs.PathError{Op: "create", Path: netfs.Join(dir, name), Err: err}
	}
	return &File{fs: fs, dir: netfs.Relative(dir), name: name}, nil
}

// List implements netfs.FileSystem
func (fs *FileSystem) List(ctx context.Context, dir string, filter netfs.NameFilter) ([]string, error) {
	files, _, err := fs.list(ctx, "list", dir)
	if err != nil {
		return nil, err
	}
	return accept(files, filter, dir), nil
}

// ListDirs implements netfs.FileSystem
func (fs *FileSystem) ListDirs(ctx context.Context, dir string, filter netfs.NameFilter) ([]string, error) {
	_, dirs, err := fs.list(ctx, "listdirs", dir)
	if err != nil {
		return nil, err
	}
	return accept(dirs, filter, dir), nil
}

// list returns the immediate children of dir. A prefix without any object
// below it does not exist, except for the bucket root.
func (fs *FileSystem) list(ctx context.Context, op, dir string) (files, dirs []string, err error) {
	if fs.client == nil {
		return nil, nil, &netfs.PathError{Op: op, Path: dir, Err: netfs.ErrInvalidArgument}
	}
	prefix := fs.dirPrefix(dir)
	paginator := s3.NewListObjectsV2Paginator(fs.client, &s3.ListObjectsV2Input{
		Bucket:    aws.String(fs.bucket),
		Prefix:    aws.String(prefix),
		Delimiter: aws.String("/"),
	})

	found := false
	files, dirs = []string{}, []string{}
	for paginator.HasMorePages() {
		page, err := paginator.NextPage(ctx)
		if err != nil {
			return nil, nil, mapS3Error(op, dir, err)
		}
		for _, p := range page.CommonPrefixes {
			found = true
			name := strings.TrimSuffix(strings.TrimPrefix(aws.ToString(p.Prefix), prefix), "/")
			if name != "" {
				dirs = append(dirs, name)
			}
		}
		for _, obj := range page.Contents {
			found = true
			name := strings.TrimPrefix(aws.ToString(obj.Key), prefix)
			// the directory marker itself
			if name == "" || strings.Contains(name, "/") {
				continue
			}
			files = append(files, name)
		}
	}

	if !found && prefix != "" {
		return nil, nil, &netfs.PathError{Op: op, Path: dir, Err: netfs.ErrNotExist}
	}
	return files, dirs, nil
}

func accept(names []string, filter netfs.NameFilter, dir string) []string {
	if filter == nil {
		return names
	}
	out := make([]string, 0, len(names))
	for _, n := range names {
		if filter.Accept(dir, n) {
			out = append(out, n)
		}
	}
	return out
}

// Close implements netfs.FileSystem
func (fs *FileSystem) Close() error {
	return nil
}

// ============================================================================
// File
// ============================================================================

// File is an S3 netfs.File
type File struct {
	fs   *FileSystem
	dir  string
	name string
}

// Dir implements netfs.File
func (f *File) Dir() string { return f.dir }

// Name implements netfs.File
func (f *File) Name() string { return f.name }

// Key returns the object key.
func (f *File) Key() string {
	return f.fs.key(f.dir, f.name)
}

func (f *File) rel() string {
	return netfs.Join(f.dir, f.name)
}

func (f *File) head(ctx context.Context, op string) (*s3.HeadObjectOutput, error) {
	out, err := f.fs.client.HeadObject(ctx, &s3.HeadObjectInput{
		Bucket: aws.String(f.fs.bucket),
		Key:    aws.String(f.Key()),
	})
	if err != nil {
		if isNotFound(err) {
			return nil, nil
		}
		return nil, mapS3Error(op, f.rel(), err)
	}
	return out, nil
}

// Exists implements netfs.File
func (f *File) Exists(ctx context.Context) (bool, error) {
	out, err := f.head(ctx, "exists")
	return out != nil, err
}

// Length implements netfs.File
func (f *File) Length(ctx context.Context) (int64, error) {
	out, err := f.head(ctx, "length")
	if err != nil || out == nil {
		return 0, err
	}
	return aws.ToInt64(out.ContentLength), nil
}

// LastModified implements netfs.File
func (f *File) LastModified(ctx context.Context) (time.Time, error) {
	out, err := f.head(ctx, "lastmodified")
	if err != nil || out == nil {
		return time.Time{}, err
	}
	return aws.ToTime(out.LastModified), nil
}

// Read implements netfs.File
func (f *File) Read(ctx context.Context) (io.ReadCloser, error) {
	out, err := f.fs.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(f.fs.bucket),
		Key:    aws.String(f.Key()),
	})
	if err != nil {
		return nil, mapS3Error("read", f.rel(), err)
	}
	return out.Body, nil
}

// Write implements netfs.File. The content is buffered and uploaded with a
// single PutObject on Close.
func (f *File) Write(ctx context.Context) (io.WriteCloser, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return &objectWriter{ctx: ctx, file: f}, nil
}

type objectWriter struct {
	ctx    context.Context
	file   *File
	buf    bytes.Buffer
	closed bool
}

func (w *objectWriter) Write(p []byte) (int, error) {
	if w.closed {
		return 0, &netfs.PathError{Op: "write", Path: w.file.rel(), Err: errors.New("writer closed")}
	}
	return w.buf.Write(p)
}

func (w *objectWriter) Close() error {
	if w.closed {
		return nil
	}
	w.closed = true
	_, err := w.file.fs.client.PutObject(w.ctx, &s3.PutObjectInput{
		Bucket:        aws.String(w.file.fs.bucket),
		Key:           aws.String(w.file.Key()),
		Body:          bytes.NewReader(w.buf.Bytes()),
		ContentLength: aws.Int64(int64(w.buf.Len())),
	})
	if err != nil {
		return mapS3Error("write", w.file.rel(), err)
	}
	return nil
}

// Delete implements netfs.File. Deleting a missing key succeeds.
func (f *File) Delete(ctx context.Context) error {
	_, err := f.fs.client.DeleteObject(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(f.fs.bucket),
		Key:    aws.String(f.Key()),
	})
	if err != nil && !isNotFound(err) {
		return mapS3Error("delete", f.rel(), err)
	}
	return nil
}

// Rename implements netfs.File with CopyObject followed by DeleteObject.
func (f *File) Rename(ctx context.Context, newName string) error {
	if err := netfs.ValidName(newName); err != nil {
		return &netfs.PathError{Op: "rename", Path: f.rel(), Err: err}
	}
	ok, err := f.Exists(ctx)
	if err != nil {
		return err
	}
	if !ok {
		return &netfs.PathError{Op: "rename", Path: f.rel(), Err: netfs.ErrNotExist}
	}

	src := f.Key()
	dst := f.fs.key(f.dir, newName)
	_, err = f.fs.client.CopyObject(ctx, &s3.CopyObjectInput{
		Bucket:     aws.String(f.fs.bucket),
		CopySource: aws.String(url.PathEscape(f.fs.bucket + "/" + src)),
		Key:        aws.String(dst),
	})
	if err != nil {
		return mapS3Error("rename", f.rel(), err)
	}
	if _, err := f.fs.client.DeleteObject(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(f.fs.bucket),
		Key:    aws.String(src),
	}); err != nil {
		return mapS3Error("rename", f.rel(), err)
	}
	f.name = newName
	return nil
}

// ============================================================================
// Helpers
// ============================================================================

func isNotFound(err error) bool {
	var nsk *types.NoSuchKey
	var notFound *types.NotFound
	if errors.As(err, &nsk) || errors.As(err, &notFound) {
		return true
	}
	var apiErr smithy.APIError
	if errors.As(err, &apiErr) {
		switch apiErr.ErrorCode() {
		case "NotFound", "NoSuchKey":
			return true
		}
	}
	return false
}

// mapS3Error maps S3 errors to netfs errors
func mapS3Error(op, path string, err error) error {
	if isNotFound(err) {
		return &netfs.PathError{Op: op, Path: path, Err: netfs.ErrNotExist}
	}
	var apiErr smithy.APIError
	if errors.As(err, &apiErr) {
		switch apiErr.ErrorCode() {
		case "NoSuchBucket":
			return &netfs.PathError{Op: op, Path: path, Err: fmt.Errorf("%w: %v", netfs.ErrNotExist, err)}
		case "AccessDenied", "InvalidAccessKeyId", "SignatureDoesNotMatch":
			return &netfs.PathError{Op: op, Path: path, Err: fmt.Errorf("%w: %v", netfs.ErrAuth, err)}
		}
	}
	return &netfs.PathError{Op: op, Path: path, Err: err}
}

var _ netfs.FileSystem = (*FileSystem)(nil)
var _ netfs.File = (*File)(nil)
