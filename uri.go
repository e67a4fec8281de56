package netfs

import (
	"fmt"
	"net/url"
	"strconv"
	"strings"
)

// SchemeFile is the scheme every local path resolves to.
const SchemeFile = "file"

// URI is the parsed form of a backend address:
//
//	scheme://[user[:password]@][host[:port]]/path
//
// Plain local paths ("/data", "C:/data") are URIs too. They carry the file
// scheme and keep the raw string as their path.
type URI struct {
	Raw         string
	Scheme      string
	User        string
	Password    string
	HasPassword bool
	Host        string
	Port        int
	Path        string
	Query       url.Values

	parsed *url.URL
}

// SchemeOf returns the lower-cased scheme of raw. A colon at index 1 is a
// drive letter and yields the file scheme. A raw string without a valid
// scheme yields "".
func SchemeOf(raw string) string {
	i := strings.IndexByte(raw, ':')
	switch {
	case i == 1:
		return SchemeFile
	case i <= 0:
		return ""
	}
	scheme := raw[:i]
	if !validScheme(scheme) {
		return ""
	}
	return strings.ToLower(scheme)
}

func validScheme(s string) bool {
	for i, c := range s {
		switch {
		case c >= 'a' && c <= 'z', c >= 'A' && c <= 'Z':
		case i > 0 && (c >= '0' && c <= '9' || c == '+' || c == '-' || c == '.'):
		default:
			return false
		}
	}
	return true
}

// ParseURI parses raw. Credentials are split out of the user info before
// the user name is taken, so "user:secret@host" yields both parts.
func ParseURI(raw string) (*URI, error) {
	if raw == "" {
		return nil, &PathError{Op: "parse", Path: raw, Err: ErrInvalidArgument}
	}

	scheme := SchemeOf(raw)
	if scheme == "" || strings.IndexByte(raw, ':') == 1 {
		return &URI{Raw: raw, Scheme: SchemeFile, Path: raw}, nil
	}
	if scheme == SchemeFile {
		return parseFileURI(raw), nil
	}

	u, err := url.Parse(raw)
	if err != nil {
		return nil, &PathError{Op: "parse", Path: raw, Err: fmt.Errorf("%w: %v", ErrInvalidURI, err)}
	}

	out := &URI{
		Raw:    raw,
		Scheme: scheme,
		Host:   u.Hostname(),
		Path:   u.Path,
		Query:  u.Query(),
		parsed: u,
	}
	if out.Path == "" && u.Opaque != "" {
		out.Path = u.Opaque
	}
	if p := u.Port(); p != "" {
		port, err := strconv.Atoi(p)
		if err != nil || port <= 0 || port > 65535 {
			return nil, &PathError{Op: "parse", Path: out.Redacted(), Err: fmt.Errorf("%w: bad port %q", ErrInvalidURI, p)}
		}
		out.Port = port
	}
	if u.User != nil {
		out.User = u.User.Username()
		out.Password, out.HasPassword = u.User.Password()
	}
	return out, nil
}

// parseFileURI strips the file prefix without url.Parse so that local
// paths containing '%' or spaces survive unchanged.
func parseFileURI(raw string) *URI {
	// file:///path has an empty authority; file://host/path is not supported.
	p := strings.TrimPrefix(raw[len(SchemeFile)+1:], "//")
	return &URI{Raw: raw, Scheme: SchemeFile, Path: p}
}

// Addr returns host:port, using def when no port was given.
func (u *URI) Addr(def int) string {
	port := u.Port
	if port == 0 {
		port = def
	}
	return fmt.Sprintf("%s:%d", u.Host, port)
}

// Redacted returns the URI with any password masked. A nil URI yields "".
func (u *URI) Redacted() string {
	if u == nil {
		return ""
	}
	if u.parsed != nil {
		return u.parsed.Redacted()
	}
	return u.Raw
}

// String implements fmt.Stringer. It never prints the password.
func (u *URI) String() string {
	return u.Redacted()
}
