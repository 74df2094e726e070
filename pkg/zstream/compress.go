package zstream

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/klauspost/compress/zstd"
	"github.com/pierrec/lz4/v4"
	"go.uber.org/zap"

	"github.com/Faultbox/meshbake/pkg/bakeerr"
)

// SourcePath returns the uncompressed .obj path next to a compressed file.
func SourcePath(compressedPath string) string {
	if f, ok := FormatFromPath(compressedPath); ok {
		return strings.TrimSuffix(compressedPath, f.Ext()) + ".obj"
	}
	return compressedPath
}

// CompressedPath returns the compressed path for an .obj file.
func CompressedPath(objPath string, f Format) string {
	return strings.TrimSuffix(objPath, filepath.Ext(objPath)) + f.Ext()
}

// EnsureCompressed makes sure compressedPath exists. An existing compressed
// file is used as is unless its .obj source sits next to it, in which case
// the source is compressed again so edits to the .obj are picked up.
func EnsureCompressed(compressedPath string, log *zap.Logger) error {
	if log == nil {
		log = zap.NewNop()
	}
	f, ok := FormatFromPath(compressedPath)
	if !ok {
		return fmt.Errorf("%w: %s: unrecognized compressed extension", bakeerr.ErrCompression, compressedPath)
	}

	objPath := SourcePath(compressedPath)
	if exists(compressedPath) && !exists(objPath) {
		log.Debug("using provided compressed source", zap.String("path", compressedPath))
		return nil
	}
	if !exists(objPath) {
		return bakeerr.IO("compressing", fmt.Errorf("uncompressed source %s not present", objPath))
	}

	log.Info("compressing source",
		zap.String("from", objPath),
		zap.String("to", compressedPath),
		zap.Stringer("format", f))
	return Compress(objPath, compressedPath, f)
}

// Compress writes src to dst using format f. The output is written to a
// temporary file first and renamed into place.
func Compress(src, dst string, f Format) error {
	data, err := os.ReadFile(src)
	if err != nil {
		return bakeerr.IO("reading "+src, err)
	}

	compressed, err := compressBytes(data, f)
	if err != nil {
		return fmt.Errorf("%w: %s: %w", bakeerr.ErrCompression, src, err)
	}

	if err := os.MkdirAll(filepath.Dir(dst), 0755); err != nil {
		return bakeerr.IO("creating directory", err)
	}
	tmp := dst + ".tmp"
	if err := os.WriteFile(tmp, compressed, 0644); err != nil {
		return bakeerr.IO("writing "+tmp, err)
	}
	if err := os.Rename(tmp, dst); err != nil {
		os.Remove(tmp)
		return bakeerr.IO("renaming "+tmp, err)
	}
	return nil
}

func compressBytes(data []byte, f Format) ([]byte, error) {
	switch f {
	case FormatLZ4:
		var buf bytes.Buffer
		w := lz4.NewWriter(&buf)
		if _, err := w.Write(data); err != nil {
			return nil, err
		}
		if err := w.Close(); err != nil {
			return nil, err
		}
		return buf.Bytes(), nil
	default:
		enc, err := zstd.NewWriter(nil, zstd.WithEncoderLevel(zstd.SpeedDefault))
		if err != nil {
			return nil, err
		}
		defer enc.Close()
		return enc.EncodeAll(data, make([]byte, 0, len(data)/2)), nil
	}
}

func exists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}
