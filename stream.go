package netfs

import (
	"context"
	"errors"
	"io"
)

// Upload copies r into f and commits it. The write stream is closed on
// every path, and a failing Close is reported.
func Upload(ctx context.Context, f File, r io.Reader) (n int64, err error) {
	w, err := f.Write(ctx)
	if err != nil {
		return 0, err
	}
	defer func() {
		if cerr := w.Close(); cerr != nil && err == nil {
			err = WrapPathErr("write", Join(f.Dir(), f.Name()), cerr)
		}
	}()

	n, err = io.Copy(w, r)
	if err != nil {
		return n, WrapPathErr("write", Join(f.Dir(), f.Name()), err)
	}
	return n, nil
}

// Download copies the content of f into w. The read stream is always
// closed.
func Download(ctx context.Context, f File, w io.Writer) (n int64, err error) {
	rc, err := f.Read(ctx)
	if err != nil {
		return 0, err
	}
	defer func() {
		err = errors.Join(err, rc.Close())
	}()

	n, err = io.Copy(w, rc)
	if err != nil {
		return n, WrapPathErr("read", Join(f.Dir(), f.Name()), err)
	}
	return n, nil
}
