package netfs

import (
	"bytes"
	"context"
	"errors"
	"testing"
)

func TestReadOnly(t *testing.T) {
	ctx := context.Background()
	inner := newMemFS("in")
	inner.files["in/a.txt"] = []byte("data")
	ro := NewReadOnly(inner)

	if ro.Kind() != inner.Kind() || ro.Unwrap() != FileSystem(inner) {
		t.Errorf("decorator does not delegate to the wrapped FileSystem")
	}

	names, err := ro.List(ctx, "in", nil)
	if err != nil || len(names) != 1 {
		t.Fatalf("List() = %v, %v", names, err)
	}

	f, err := ro.Create(ctx, "in", "a.txt")
	if err != nil {
		t.Fatalf("Create() error = %v", err)
	}
	var buf bytes.Buffer
	if _, err := Download(ctx, f, &buf); err != nil || buf.String() != "data" {
		t.Errorf("Download() = %q, %v", buf.String(), err)
	}
	if n, err := f.Length(ctx); err != nil || n != 4 {
		t.Errorf("Length() = %d, %v", n, err)
	}

	tests := []struct {
		op  string
		run func() error
	}{
		{"write", func() error { _, err := f.Write(ctx); return err }},
		{"delete", func() error { return f.Delete(ctx) }},
		{"rename", func() error { return f.Rename(ctx, "b.txt") }},
	}
	for _, tt := range tests {
		t.Run(tt.op, func(t *testing.T) {
			err := tt.run()
			if !IsReadOnly(err) {
				t.Fatalf("%s error = %v, want ErrReadOnly", tt.op, err)
			}
			var pe *PathError
			if !errors.As(err, &pe) || pe.Op != tt.op || pe.Path != "in/a.txt" {
				t.Errorf("%s error = %#v", tt.op, err)
			}
		})
	}
	if _, ok := inner.files["in/a.txt"]; !ok {
		t.Errorf("read-only view modified the file")
	}
}

func TestReadOnlyOptions(t *testing.T) {
	ctx := context.Background()
	inner := newMemFS()
	inner.files["a"] = []byte("x")

	var attempts []string
	ro := NewReadOnly(inner,
		WithAllowDelete(true),
		WithOnWriteAttempt(func(op, path string) error {
			attempts = append(attempts, op+" "+path)
			if op == "rename" {
				return nil
			}
			return errBoom
		}))

	f, _ := ro.Create(ctx, "", "a")
	if err := f.Rename(ctx, "b"); err != nil {
		t.Fatalf("Rename() allowed by callback error = %v", err)
	}
	if _, err := f.Write(ctx); !errors.Is(err, errBoom) {
		t.Errorf("Write() error = %v, want callback error", err)
	}
	if err := f.Delete(ctx); err != nil {
		t.Errorf("Delete() with AllowDelete error = %v", err)
	}
	if len(inner.files) != 0 {
		t.Errorf("files = %v, want none", inner.files)
	}
	if len(attempts) != 2 || attempts[0] != "rename a" {
		t.Errorf("attempts = %v", attempts)
	}
}
