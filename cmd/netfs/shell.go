package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/gobeaver/netfs"
	"github.com/gobeaver/netfs/factory"
)

const helpText = `available commands:

connect <url>      connect to <url>
cd <dir>           change into server directory <dir>
put <file>         upload local <file> to the server
get <file>         download <file> from the server
dir, ls            list the server directory
rm <file>          delete <file> on the server
mv <from> <to>     rename <from> to <to>
sum <file> [alg]   checksum of <file> (md5, sha1, sha256, sha512, crc32, xxhash)
pwd                print the server directory
quit               close the connection and quit
help, h            print this help text`

// Shell runs client commands against one FileSystem at a time.
type Shell struct {
	registry *factory.Registry
	in       *bufio.Scanner
	out      io.Writer

	fs  netfs.FileSystem
	dir string

	// LocalDir resolves relative local paths of put and get.
	LocalDir string

	// ReadOnly rejects put, rm and mv on every connection.
	ReadOnly bool
}

// NewShell creates a shell reading commands from in.
func NewShell(registry *factory.Registry, in io.Reader, out io.Writer) *Shell {
	return &Shell{
		registry: registry,
		in:       bufio.NewScanner(in),
		out:      out,
		LocalDir: ".",
	}
}

func (s *Shell) println(a ...any) {
	fmt.Fprintln(s.out, a...)
}

func (s *Shell) printf(format string, a ...any) {
	fmt.Fprintf(s.out, format, a...)
}

func (s *Shell) prompt() string {
	if s.fs == nil {
		return "> "
	}
	return "/" + s.dir + "> "
}

// Run reads and executes commands until quit, end of input or ctx is done.
func (s *Shell) Run(ctx context.Context) error {
	s.println(`type "help" to show available commands.`)
	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		fmt.Fprint(s.out, s.prompt())
		if !s.in.Scan() {
			s.println()
			return s.in.Err()
		}
		if quit := s.Exec(ctx, s.in.Text()); quit {
			return nil
		}
	}
}

// Exec executes a single command line. It reports whether the shell should
// terminate. Command failures are printed, never returned.
func (s *Shell) Exec(ctx context.Context, line string) bool {
	fields := strings.Fields(line)
	if len(fields) == 0 {
		return false
	}
	cmd, args := strings.ToLower(fields[0]), fields[1:]

	var err error
	switch cmd {
	case "connect":
		err = s.connect(ctx, args)
	case "cd":
		err = s.cd(ctx, args)
	case "put":
		err = s.put(ctx, args)
	case "get":
		err = s.get(ctx, args)
	case "dir", "ls":
		err = s.list(ctx)
	case "rm":
		err = s.rm(ctx, args)
	case "mv":
		err = s.mv(ctx, args)
	case "sum":
		err = s.sum(ctx, args)
	case "pwd":
		err = s.pwd()
	case "quit":
		s.println("quit")
		return true
	case "help", "h":
		s.println(helpText)
	default:
		s.println("invalid command:", cmd)
	}
	if err != nil {
		s.println("error:", err)
	}
	return false
}

var errNotConnected = errors.New("not connected")

func (s *Shell) connected() error {
	if s.fs == nil {
		return errNotConnected
	}
	return nil
}

func arg(args []string, n int, what string) (string, error) {
	if len(args) < n+1 {
		return "", fmt.Errorf("no %s given", what)
	}
	return args[n], nil
}

func (s *Shell) connect(ctx context.Context, args []string) error {
	url, err := arg(args, 0, "url")
	if err != nil {
		return err
	}
	if err := s.Close(); err != nil {
		netfs.Logger().Warn("closing previous connection", "error", err)
	}
	fs, err := s.registry.CreateFileSystem(ctx, url)
	if err != nil {
		return err
	}
	if s.ReadOnly {
		fs = netfs.NewReadOnly(fs)
	}
	s.fs, s.dir = fs, ""
	s.printf("ok (%s %s)\n", fs.Kind(), fs.Base())
	return nil
}

func (s *Shell) cd(ctx context.Context, args []string) error {
	if err := s.connected(); err != nil {
		return err
	}
	target, err := arg(args, 0, "directory")
	if err != nil {
		return err
	}
	dir, err := netfs.ChangeDir(ctx, s.fs, s.dir, target)
	if err != nil {
		if netfs.IsNotExist(err) {
			missing, _ := netfs.ResolveDir(s.dir, target)
			return fmt.Errorf("directory /%s does not exist", missing)
		}
		return err
	}
	s.dir = dir
	return nil
}

func (s *Shell) localPath(name string) string {
	if filepath.IsAbs(name) {
		return name
	}
	return filepath.Join(s.LocalDir, name)
}

func (s *Shell) put(ctx context.Context, args []string) error {
	if err := s.connected(); err != nil {
		return err
	}
	name, err := arg(args, 0, "file")
	if err != nil {
		return err
	}
	local := s.localPath(name)
	fi, err := os.Stat(local)
	switch {
	case err != nil:
		return fmt.Errorf("file does not exist: %s", name)
	case !fi.Mode().IsRegular():
		return fmt.Errorf("no regular file: %s", name)
	}

	src, err := os.Open(local)
	if err != nil {
		return err
	}
	defer src.Close()

	target, err := s.fs.Create(ctx, s.dir, filepath.Base(local))
	if err != nil {
		return err
	}
	s.printf("uploading file %s ...", target.Name())
	n, err := netfs.Upload(ctx, target, src)
	if err != nil {
		s.println()
		return err
	}
	s.printf("ok (%d bytes)\n", n)
	return nil
}

func (s *Shell) get(ctx context.Context, args []string) (err error) {
	if err := s.connected(); err != nil {
		return err
	}
	name, err := arg(args, 0, "file")
	if err != nil {
		return err
	}
	f, err := s.fs.Create(ctx, s.dir, name)
	if err != nil {
		return err
	}
	ok, err := f.Exists(ctx)
	if err != nil {
		return err
	}
	if !ok {
		return fmt.Errorf("file does not exist: %s", name)
	}

	dst, err := os.Create(s.localPath(name))
	if err != nil {
		return err
	}
	defer func() {
		if cerr := dst.Close(); cerr != nil && err == nil {
			err = cerr
		}
	}()

	s.printf("downloading file %s ...", name)
	n, err := netfs.Download(ctx, f, dst)
	if err != nil {
		s.println()
		return err
	}
	s.printf("ok (%d bytes)\n", n)
	return nil
}

func (s *Shell) list(ctx context.Context) error {
	if err := s.connected(); err != nil {
		return err
	}
	files, err := s.fs.List(ctx, s.dir, nil)
	if err != nil {
		if netfs.IsNotExist(err) {
			return fmt.Errorf("directory /%s does not exist", s.dir)
		}
		return err
	}
	dirs, err := s.fs.ListDirs(ctx, s.dir, nil)
	if err != nil {
		return err
	}
	sort.Strings(dirs)
	sort.Strings(files)

	s.printf("dir: /%s\n\n", s.dir)
	for _, d := range dirs {
		s.println("[DIR]", d)
	}
	for _, f := range files {
		s.println(f)
	}
	s.printf("\nentries: %d\n", len(dirs)+len(files))
	return nil
}

func (s *Shell) rm(ctx context.Context, args []string) error {
	if err := s.connected(); err != nil {
		return err
	}
	name, err := arg(args, 0, "file")
	if err != nil {
		return err
	}
	f, err := s.fs.Create(ctx, s.dir, name)
	if err != nil {
		return err
	}
	if err := f.Delete(ctx); err != nil {
		return err
	}
	s.println("ok")
	return nil
}

func (s *Shell) mv(ctx context.Context, args []string) error {
	if err := s.connected(); err != nil {
		return err
	}
	from, err := arg(args, 0, "source")
	if err != nil {
		return err
	}
	to, err := arg(args, 1, "target")
	if err != nil {
		return err
	}
	f, err := s.fs.Create(ctx, s.dir, from)
	if err != nil {
		return err
	}
	if err := f.Rename(ctx, to); err != nil {
		return err
	}
	s.println("ok")
	return nil
}

func (s *Shell) sum(ctx context.Context, args []string) error {
	if err := s.connected(); err != nil {
		return err
	}
	name, err := arg(args, 0, "file")
	if err != nil {
		return err
	}
	alg := netfs.ChecksumSHA256
	if len(args) > 1 {
		if alg, err = netfs.ParseChecksumAlgorithm(args[1]); err != nil {
			return err
		}
	}
	f, err := s.fs.Create(ctx, s.dir, name)
	if err != nil {
		return err
	}
	sum, err := netfs.FileChecksum(ctx, f, alg)
	if err != nil {
		return err
	}
	s.printf("%s  %s (%s)\n", sum, name, alg)
	return nil
}

func (s *Shell) pwd() error {
	if err := s.connected(); err != nil {
		return err
	}
	s.println("/" + s.dir)
	return nil
}

// Close closes the current FileSystem, if any.
func (s *Shell) Close() error {
	if s.fs == nil {
		return nil
	}
	fs := s.fs
	s.fs, s.dir = nil, ""
	return fs.Close()
}
