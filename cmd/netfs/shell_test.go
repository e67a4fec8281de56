package main

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/gobeaver/netfs"
	"github.com/gobeaver/netfs/factory"
)

type shellHarness struct {
	sh     *Shell
	out    *bytes.Buffer
	remote string
	local  string
}

func newShellHarness(t *testing.T) *shellHarness {
	t.Helper()
	remote := t.TempDir()
	local := t.TempDir()
	out := &bytes.Buffer{}

	sh := NewShell(factory.NewRegistry(netfs.DefaultSettings(), factory.DefaultTable()), strings.NewReader(""), out)
	sh.LocalDir = local
	t.Cleanup(func() { sh.Close() })

	h := &shellHarness{sh: sh, out: out, remote: remote, local: local}
	h.exec(t, "connect file://"+filepath.ToSlash(remote))
	if !strings.Contains(out.String(), "ok (local") {
		t.Fatalf("connect output = %q", out.String())
	}
	return h
}

// exec runs line and returns what it printed.
func (h *shellHarness) exec(t *testing.T, line string) string {
	t.Helper()
	h.out.Reset()
	if h.sh.Exec(context.Background(), line) {
		t.Fatalf("Exec(%q) requested quit", line)
	}
	return h.out.String()
}

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
}

func TestShellNotConnected(t *testing.T) {
	out := &bytes.Buffer{}
	sh := NewShell(factory.NewRegistry(nil, factory.DefaultTable()), strings.NewReader(""), out)

	for _, line := range []string{"dir", "cd x", "put a", "get a", "rm a", "mv a b", "sum a", "pwd"} {
		out.Reset()
		sh.Exec(context.Background(), line)
		if !strings.Contains(out.String(), "not connected") {
			t.Errorf("Exec(%q) = %q, want not connected", line, out.String())
		}
	}
}

func TestShellListing(t *testing.T) {
	h := newShellHarness(t)
	writeFile(t, filepath.Join(h.remote, "b.txt"), "b")
	writeFile(t, filepath.Join(h.remote, "a.txt"), "a")
	writeFile(t, filepath.Join(h.remote, "zdir", "inner.txt"), "i")
	writeFile(t, filepath.Join(h.remote, "adir", "inner.txt"), "i")

	got := h.exec(t, "ls")
	want := "dir: /\n\n[DIR] adir\n[DIR] zdir\na.txt\nb.txt\n\nentries: 4\n"
	if got != want {
		t.Errorf("ls output:\n%s\nwant:\n%s", got, want)
	}
}

func TestShellNavigation(t *testing.T) {
	h := newShellHarness(t)
	writeFile(t, filepath.Join(h.remote, "in", "2024", "x.txt"), "x")

	steps := []struct {
		line string
		pwd  string
	}{
		{"cd in", "/in"},
		{"cd 2024", "/in/2024"},
		{"cd .", "/in/2024"},
		{"cd ..", "/in"},
		{"cd /in/2024", "/in/2024"},
		{"cd /", "/"},
		{"cd ..", "/"},
		{"cd missing", "/"},
	}
	for _, st := range steps {
		h.exec(t, st.line)
		if got := strings.TrimSpace(h.exec(t, "pwd")); got != st.pwd {
			t.Errorf("after %q pwd = %q, want %q", st.line, got, st.pwd)
		}
	}

	if got := h.exec(t, "cd missing"); !strings.Contains(got, "directory /missing does not exist") {
		t.Errorf("cd missing = %q", got)
	}
	if got := h.sh.prompt(); got != "/> " {
		t.Errorf("prompt() = %q", got)
	}
}

func TestShellTransfer(t *testing.T) {
	h := newShellHarness(t)
	writeFile(t, filepath.Join(h.local, "report.csv"), "a,b\n1,2\n")
	writeFile(t, filepath.Join(h.remote, "out", ".keep"), "")

	h.exec(t, "cd out")
	if got := h.exec(t, "put report.csv"); !strings.Contains(got, "ok (8 bytes)") {
		t.Fatalf("put = %q", got)
	}
	data, err := os.ReadFile(filepath.Join(h.remote, "out", "report.csv"))
	if err != nil || string(data) != "a,b\n1,2\n" {
		t.Fatalf("uploaded = %q, %v", data, err)
	}

	if got := h.exec(t, "put nothing.csv"); !strings.Contains(got, "file does not exist: nothing.csv") {
		t.Errorf("put missing = %q", got)
	}

	if got := h.exec(t, "mv report.csv final.csv"); !strings.Contains(got, "ok") {
		t.Fatalf("mv = %q", got)
	}
	if got := h.exec(t, "get final.csv"); !strings.Contains(got, "ok (8 bytes)") {
		t.Fatalf("get = %q", got)
	}
	data, err = os.ReadFile(filepath.Join(h.local, "final.csv"))
	if err != nil || string(data) != "a,b\n1,2\n" {
		t.Fatalf("downloaded = %q, %v", data, err)
	}

	sum := strings.Fields(h.exec(t, "sum final.csv md5"))
	if len(sum) != 3 || len(sum[0]) != 32 || sum[2] != "(md5)" {
		t.Errorf("sum = %q", sum)
	}
	if got := h.exec(t, "sum final.csv whirlpool"); !strings.Contains(got, "error:") {
		t.Errorf("sum with unknown algorithm = %q", got)
	}

	if got := h.exec(t, "rm final.csv"); !strings.Contains(got, "ok") {
		t.Fatalf("rm = %q", got)
	}
	if _, err := os.Stat(filepath.Join(h.remote, "out", "final.csv")); !os.IsNotExist(err) {
		t.Errorf("rm left the file: %v", err)
	}
	if got := h.exec(t, "get final.csv"); !strings.Contains(got, "file does not exist: final.csv") {
		t.Errorf("get missing = %q", got)
	}
}

func TestShellReadOnly(t *testing.T) {
	remote := t.TempDir()
	local := t.TempDir()
	writeFile(t, filepath.Join(remote, "keep.txt"), "k")
	writeFile(t, filepath.Join(local, "new.txt"), "n")

	out := &bytes.Buffer{}
	sh := NewShell(factory.NewRegistry(nil, factory.DefaultTable()), strings.NewReader(""), out)
	sh.LocalDir = local
	sh.ReadOnly = true
	defer sh.Close()

	sh.Exec(context.Background(), "connect "+remote)
	for _, line := range []string{"put new.txt", "rm keep.txt", "mv keep.txt other.txt"} {
		out.Reset()
		sh.Exec(context.Background(), line)
		if !strings.Contains(out.String(), "read-only") {
			t.Errorf("Exec(%q) = %q, want read-only error", line, out.String())
		}
	}
	if _, err := os.Stat(filepath.Join(remote, "keep.txt")); err != nil {
		t.Errorf("keep.txt changed: %v", err)
	}
	if _, err := os.Stat(filepath.Join(remote, "new.txt")); !os.IsNotExist(err) {
		t.Errorf("new.txt uploaded in read-only mode")
	}

	out.Reset()
	sh.Exec(context.Background(), "get keep.txt")
	if !strings.Contains(out.String(), "ok (1 bytes)") {
		t.Errorf("get = %q", out.String())
	}
}

func TestShellRun(t *testing.T) {
	remote := t.TempDir()
	writeFile(t, filepath.Join(remote, "a.txt"), "a")

	in := strings.NewReader("connect " + filepath.ToSlash(remote) + "\nbogus\nhelp\ndir\nquit\npwd\n")
	out := &bytes.Buffer{}
	sh := NewShell(factory.NewRegistry(nil, factory.DefaultTable()), in, out)
	defer sh.Close()

	if err := sh.Run(context.Background()); err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	got := out.String()
	for _, want := range []string{"> ", "invalid command: bogus", "available commands:", "a.txt", "entries: 1", "quit"} {
		if !strings.Contains(got, want) {
			t.Errorf("output missing %q:\n%s", want, got)
		}
	}
	if strings.Count(got, "/> ") != 4 {
		t.Errorf("expected four prompts after connect:\n%s", got)
	}
}

func TestShellCanceled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	sh := NewShell(factory.NewRegistry(nil, factory.DefaultTable()), strings.NewReader("help\n"), &bytes.Buffer{})
	if err := sh.Run(ctx); err != context.Canceled {
		t.Errorf("Run() error = %v, want context.Canceled", err)
	}
}
