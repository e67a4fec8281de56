package netfs

import (
	"context"
	"strings"
)

// ResolveDir computes the directory reached by moving from current to
// target. Both are relative to the base directory, "" being the base.
//
//	"."   stays in current
//	"/"   returns to the base
//	".."  moves to the parent; the base is its own parent
//	"/x"  is x below the base
//	"x"   is x below current
func ResolveDir(current, target string) (string, error) {
	target = strings.TrimSpace(target)
	if target == "" {
		return "", &PathError{Op: "cd", Path: target, Err: ErrInvalidArgument}
	}
	current = Relative(current)

	switch {
	case target == ".":
		return current, nil
	case target == "/" || target == "\\":
		return "", nil
	case target == "..":
		i := strings.LastIndexByte(current, '/')
		if i < 0 {
			return "", nil
		}
		return current[:i], nil
	case strings.HasPrefix(target, "/") || strings.HasPrefix(target, "\\"):
		return Relative(target), nil
	default:
		return Join(current, target), nil
	}
}

// ChangeDir resolves target against current and checks that the result can
// be listed on fs. A missing directory yields an error satisfying IsNotExist.
func ChangeDir(ctx context.Context, fs FileSystem, current, target string) (string, error) {
	dir, err := ResolveDir(current, target)
	if err != nil {
		return current, err
	}
	ok, err := DirExists(ctx, fs, dir)
	if err != nil {
		return current, err
	}
	if !ok {
		return current, &PathError{Op: "cd", Path: dir, Err: ErrNotExist}
	}
	return dir, nil
}
