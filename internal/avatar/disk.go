// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package avatar

import (
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"

	"github.com/samber/oops"
)

// DiskBackend writes avatars into a local directory.
type DiskBackend struct {
	dir string
}

// NewDiskBackend creates dir if needed and returns a backend writing into it.
func NewDiskBackend(dir string) (*DiskBackend, error) {
	if dir == "" {
		return nil, oops.Code("AVATAR_CONFIG_INVALID").Errorf("avatar directory is required")
	}
	if err := os.MkdirAll(dir, 0o750); err != nil {
		return nil, oops.Code("AVATAR_CONFIG_INVALID").With("dir", dir).Wrap(err)
	}
	return &DiskBackend{dir: dir}, nil
}

// Put writes r to dir/name. A partially written file is removed on error.
func (d *DiskBackend) Put(ctx context.Context, name, _ string, r io.Reader) (err error) {
	if err := ctx.Err(); err != nil {
		return err
	}
	if name != filepath.Base(name) {
		return oops.With("name", name).Errorf("avatar name must not contain a path")
	}

	path := filepath.Join(d.dir, name)
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o640) //nolint:gosec // name is generated, not user input
	if err != nil {
		return oops.With("path", path).Wrap(err)
	}
	defer func() {
		err = errors.Join(err, f.Close())
		if err != nil {
			_ = os.Remove(path)
		}
	}()

	if _, err := io.Copy(f, r); err != nil {
		return oops.With("path", path).Wrap(err)
	}
	return nil
}
