// Package scratch keeps the most recently received raw settings payload on
// disk, as a primary and a backup copy.
package scratch

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/autopeer-io/groundpeer/internal/station/model"
)

const (
	PrimaryName = "last_recv_model.mdl"
	BackupName  = "last_recv_model.bak"
)

// Writer persists a raw payload and reads the primary copy back.
type Writer interface {
	Write(ctx context.Context, id model.VehicleID, payload []byte) error
	Read(ctx context.Context) ([]byte, error)
}

// Files writes both copies into one directory. Each copy is written to a
// temporary file and renamed into place, so a reader never sees a torn file.
type Files struct {
	dir string
}

var _ Writer = (*Files)(nil)

func NewFiles(dir string) *Files {
	return &Files{dir: dir}
}

// Dir returns the directory holding the copies.
func (f *Files) Dir() string { return f.dir }

func (f *Files) Write(_ context.Context, _ model.VehicleID, payload []byte) error {
	if err := os.MkdirAll(f.dir, 0o750); err != nil {
		return fmt.Errorf("create scratch dir: %w", err)
	}
	for _, name := range []string{PrimaryName, BackupName} {
		if err := writeAtomic(filepath.Join(f.dir, name), payload); err != nil {
			return err
		}
	}
	return nil
}

func (f *Files) Read(_ context.Context) ([]byte, error) {
	b, err := os.ReadFile(filepath.Join(f.dir, PrimaryName))
	if err != nil {
		return nil, fmt.Errorf("read scratch copy: %w", err)
	}
	return b, nil
}

func writeAtomic(path string, payload []byte) error {
	tmp, err := os.CreateTemp(filepath.Dir(path), "."+filepath.Base(path)+".*")
	if err != nil {
		return fmt.Errorf("write %s: %w", filepath.Base(path), err)
	}
	defer os.Remove(tmp.Name()) // no-op after a successful rename

	if _, err := tmp.Write(payload); err != nil {
		tmp.Close()
		return fmt.Errorf("write %s: %w", filepath.Base(path), err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return fmt.Errorf("sync %s: %w", filepath.Base(path), err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close %s: %w", filepath.Base(path), err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return fmt.Errorf("rename %s: %w", filepath.Base(path), err)
	}
	return nil
}
