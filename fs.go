package netfs

import (
	"context"
	"io"
	"time"
)

// Kind identifies the backend implementing a FileSystem.
type Kind string

const (
	KindLocal Kind = "local"
	KindFTP   Kind = "ftp"
	KindSFTP  Kind = "sftp"
	KindSMB   Kind = "smb"
	KindS3    Kind = "s3"
)

// ============================================================================
// Core Interfaces
// ============================================================================

// File is a reference to a named file inside a directory of a FileSystem.
// It holds no content. Every content or metadata access goes back to the
// backend that created it.
type File interface {
	// Dir returns the directory relative to the base directory of the
	// owning FileSystem. An empty string denotes the base directory.
	Dir() string

	// Name returns the file name.
	Name() string

	// Exists reports whether the file exists. A missing file or a missing
	// directory is reported as false, not as an error.
	Exists(ctx context.Context) (bool, error)

	// Length returns the size in bytes, or 0 if the file does not exist.
	Length(ctx context.Context) (int64, error)

	// LastModified returns the modification time, or the zero time if the
	// file does not exist.
	LastModified(ctx context.Context) (time.Time, error)

	// Read opens a stream over the file content. The caller closes it.
	Read(ctx context.Context) (io.ReadCloser, error)

	// Write opens a stream that replaces the file content. The caller
	// closes it. The content is committed on Close.
	Write(ctx context.Context) (io.WriteCloser, error)

	// Delete removes the file. Deleting a missing file is a no-op.
	Delete(ctx context.Context) error

	// Rename renames the file within its directory. It fails with
	// ErrInvalidName for an empty name and ErrNotExist if the file is absent.
	Rename(ctx context.Context, newName string) error
}

// FileSystem is one logical connection to a storage backend rooted at a
// base directory. A FileSystem is used by one caller at a time.
type FileSystem interface {
	// Kind returns the backend tag.
	Kind() Kind

	// Base returns the base directory established by Init.
	Base() string

	// Init binds the FileSystem to uri. Remote backends connect here.
	Init(ctx context.Context, uri *URI) error

	// Create returns a reference to name inside dir. It does not contact
	// a remote backend.
	Create(ctx context.Context, dir, name string) (File, error)

	// List returns the names of the files in dir accepted by filter.
	// A nil filter accepts every entry. An existing empty directory yields
	// an empty slice, a missing one an error satisfying IsNotExist.
	List(ctx context.Context, dir string, filter NameFilter) ([]string, error)

	// ListDirs is List for subdirectories.
	ListDirs(ctx context.Context, dir string, filter NameFilter) ([]string, error)

	// Close releases the connection. Calling it twice is harmless.
	Close() error
}

// DirExists reports whether dir can be listed on fs.
func DirExists(ctx context.Context, fs FileSystem, dir string) (bool, error) {
	_, err := fs.List(ctx, dir, nil)
	if err == nil {
		return true, nil
	}
	if IsNotExist(err) {
		return false, nil
	}
	return false, err
}
