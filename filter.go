package netfs

import (
	"fmt"

	"github.com/gobwas/glob"
)

// NameFilter decides whether a directory entry is part of a listing.
//
// Filters compose:
//
//	f := netfs.And(netfs.MustGlob("*.csv"), netfs.Not(netfs.Exact("skip.csv")))
//	names, err := fs.List(ctx, "exports", f)
type NameFilter interface {
	// Accept reports whether name, found in dir, should be listed.
	Accept(dir, name string) bool
}

// FilterFunc adapts a function to NameFilter.
type FilterFunc func(dir, name string) bool

// Accept implements NameFilter
func (f FilterFunc) Accept(dir, name string) bool {
	return f(dir, name)
}

// ============================================================================
// Built-in filters
// ============================================================================

type globFilter struct {
	pattern string
	g       glob.Glob
}

func (f *globFilter) Accept(_, name string) bool {
	return f.g.Match(name)
}

func (f *globFilter) String() string {
	return "glob(" + f.pattern + ")"
}

// Glob returns a filter matching names against a shell pattern such as
// "*.txt", "report-[0-9]*" or "{a,b}.log".
func Glob(pattern string) (NameFilter, error) {
	g, err := glob.Compile(pattern)
	if err != nil {
		return nil, fmt.Errorf("%w: glob %q: %v", ErrInvalidArgument, pattern, err)
	}
	return &globFilter{pattern: pattern, g: g}, nil
}

// MustGlob is Glob that panics on a bad pattern.
func MustGlob(pattern string) NameFilter {
	f, err := Glob(pattern)
	if err != nil {
		panic(err)
	}
	return f
}

// Exact accepts exactly one name.
func Exact(name string) NameFilter {
	return FilterFunc(func(_, n string) bool { return n == name })
}

// And accepts an entry when every filter accepts it.
func And(filters ...NameFilter) NameFilter {
	return FilterFunc(func(dir, name string) bool {
		for _, f := range filters {
			if f != nil && !f.Accept(dir, name) {
				return false
			}
		}
		return true
	})
}

// Or accepts an entry when any filter accepts it.
func Or(filters ...NameFilter) NameFilter {
	return FilterFunc(func(dir, name string) bool {
		for _, f := range filters {
			if f != nil && f.Accept(dir, name) {
				return true
			}
		}
		return false
	})
}

// Not inverts f.
func Not(f NameFilter) NameFilter {
	return FilterFunc(func(dir, name string) bool {
		return !f.Accept(dir, name)
	})
}

// Accepts applies a possibly nil filter.
func Accepts(f NameFilter, dir, name string) bool {
	return f == nil || f.Accept(dir, name)
}
