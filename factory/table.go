package factory

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"

	"github.com/gobeaver/netfs"
)

// Table maps a backend kind to a comma-separated list of schemes:
//
//	backends:
//	  local: file
//	  smb: smb, cifs
type Table struct {
	Backends map[string]string `yaml:"backends" validate:"dive,keys,oneof=local ftp sftp smb s3,endkeys,required"`
}

var validate = validator.New()

// DefaultTable returns the built-in scheme table.
func DefaultTable() Table {
	return Table{Backends: map[string]string{
		string(netfs.KindLocal): "file",
		string(netfs.KindFTP):   "ftp",
		string(netfs.KindSFTP):  "sftp",
		string(netfs.KindSMB):   "smb, cifs",
		string(netfs.KindS3):    "s3",
	}}
}

// LoadTable decodes and validates a YAML scheme table.
func LoadTable(r io.Reader) (Table, error) {
	var t Table
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(&t); err != nil && !errors.Is(err, io.EOF) {
		return Table{}, fmt.Errorf("%w: scheme table: %v", netfs.ErrInvalidArgument, err)
	}
	if err := validate.Struct(&t); err != nil {
		return Table{}, fmt.Errorf("%w: scheme table: %v", netfs.ErrInvalidArgument, formatValidationError(err))
	}
	return t, nil
}

// LoadTableFile reads the YAML scheme table at path. A missing or malformed
// file is logged and yields an empty table, so every scheme falls back to the
// local backend.
func LoadTableFile(path string) Table {
	data, err := os.ReadFile(path)
	if err != nil {
		netfs.Logger().Warn("scheme table not readable", "path", path, "error", err)
		return Table{}
	}
	t, err := LoadTable(bytes.NewReader(data))
	if err != nil {
		netfs.Logger().Warn("scheme table rejected", "path", path, "error", err)
		return Table{}
	}
	return t
}

func formatValidationError(err error) error {
	var verrs validator.ValidationErrors
	if errors.As(err, &verrs) && len(verrs) > 0 {
		e := verrs[0]
		return fmt.Errorf("%s: validation failed on '%s' tag (value: %v)", e.Namespace(), e.Tag(), e.Value())
	}
	return err
}
