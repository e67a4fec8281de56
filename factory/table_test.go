package factory

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/gobeaver/netfs"
)

func TestLoadTable(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		want    map[string]string
		wantErr bool
	}{
		{
			name:  "full table",
			input: "backends:\n  local: file\n  ftp: ftp\n  sftp: sftp\n  smb: smb, cifs\n  s3: s3\n",
			want:  DefaultTable().Backends,
		},
		{
			name:  "empty document",
			input: "",
			want:  nil,
		},
		{
			name:    "unknown backend",
			input:   "backends:\n  webdav: dav\n",
			wantErr: true,
		},
		{
			name:    "empty scheme list",
			input:   "backends:\n  ftp: \"\"\n",
			wantErr: true,
		},
		{
			name:    "unknown field",
			input:   "schemes:\n  ftp: ftp\n",
			wantErr: true,
		},
		{
			name:    "not yaml",
			input:   "backends: [unclosed",
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := LoadTable(strings.NewReader(tt.input))
			if (err != nil) != tt.wantErr {
				t.Fatalf("LoadTable() error = %v, wantErr %v", err, tt.wantErr)
			}
			if err != nil {
				if !errors.Is(err, netfs.ErrInvalidArgument) {
					t.Errorf("error = %v, want ErrInvalidArgument", err)
				}
				return
			}
			if len(got.Backends) != len(tt.want) {
				t.Fatalf("Backends = %v, want %v", got.Backends, tt.want)
			}
			for k, v := range tt.want {
				if got.Backends[k] != v {
					t.Errorf("Backends[%q] = %q, want %q", k, got.Backends[k], v)
				}
			}
		})
	}
}

func TestLoadTableFileDegrades(t *testing.T) {
	dir := t.TempDir()
	bad := filepath.Join(dir, "bad.yaml")
	if err := os.WriteFile(bad, []byte("backends: [unclosed"), 0o644); err != nil {
		t.Fatal(err)
	}

	for _, path := range []string{filepath.Join(dir, "missing.yaml"), bad} {
		table := LoadTableFile(path)
		if len(table.Backends) != 0 {
			t.Errorf("LoadTableFile(%s) = %v, want empty", path, table.Backends)
		}
		r := NewRegistry(nil, table)
		if len(r.Schemes()) != 0 {
			t.Errorf("registry from degraded table has schemes %v", r.Schemes())
		}
	}
}

func TestNewRegistrySkipsUnknownBackend(t *testing.T) {
	r := NewRegistry(nil, Table{Backends: map[string]string{"webdav": "dav", "FTP": " FTP , ftps "}})
	if _, ok := r.Lookup("dav"); ok {
		t.Errorf("unknown backend registered")
	}
	for _, s := range []string{"ftp", "ftps"} {
		if _, ok := r.Lookup(s); !ok {
			t.Errorf("Lookup(%q) failed", s)
		}
	}
}
