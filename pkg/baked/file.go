package baked

import (
	"bufio"
	"fmt"
	"os"
	"path/filepath"

	"go.uber.org/zap"

	"github.com/Faultbox/meshbake/pkg/bakeerr"
)

// LoadFile reads a baked model from path. Texture paths resolve against the
// directory of path through Model.TexturePath.
func LoadFile(path string, log *zap.Logger) (*Model, error) {
	if log == nil {
		log = zap.NewNop()
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, bakeerr.IO("opening baked model", err)
	}
	defer f.Close()

	log.Debug("loading baked model", zap.String("path", path))
	mdl, err := NewDecoder(bufio.NewReader(f), log.With(zap.String("path", path))).Decode()
	if err != nil {
		return nil, fmt.Errorf("load %s: %w", path, err)
	}
	mdl.Dir = filepath.Dir(path)
	return mdl, nil
}

// WriteFile writes mdl to path, creating parent directories. The file is
// written under a temporary name and renamed, so a failed write never leaves
// a partial model behind.
func WriteFile(path string, mdl *Model) (int64, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return 0, bakeerr.IO("creating output directory", err)
	}

	tmp := path + ".tmp"
	f, err := os.Create(tmp)
	if err != nil {
		return 0, bakeerr.IO("creating "+tmp, err)
	}

	w := bufio.NewWriter(f)
	enc := NewEncoder(w)
	err = enc.Encode(mdl)
	if err == nil {
		if ferr := w.Flush(); ferr != nil {
			err = bakeerr.IO("flushing "+tmp, ferr)
		}
	}
	if cerr := f.Close(); err == nil && cerr != nil {
		err = bakeerr.IO("closing "+tmp, cerr)
	}
	if err != nil {
		os.Remove(tmp)
		return 0, err
	}

	if err := os.Rename(tmp, path); err != nil {
		os.Remove(tmp)
		return 0, bakeerr.IO("renaming "+tmp, err)
	}
	return enc.Written(), nil
}
