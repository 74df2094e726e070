package bake

import (
	"io"
	"os"
	"path/filepath"

	"github.com/h2non/filetype"
	"go.uber.org/zap"
)

// sniffLen is the header size filetype needs to classify a file.
const sniffLen = 261

// CopyTextures copies every texture of table into outDir under its
// destination path. Existing destination files are never overwritten.
// Failures are logged and counted, never returned.
func CopyTextures(table *TextureTable, outDir string, log *zap.Logger) (copied, failed int) {
	if log == nil {
		log = zap.NewNop()
	}
	for _, info := range table.Order {
		dest := filepath.Join(outDir, filepath.FromSlash(info.Dest))
		if err := copyTexture(info.Source, dest, log); err != nil {
			failed++
			log.Warn("texture copy failed", zap.String("dest", dest), zap.Error(err))
			continue
		}
		copied++
	}

	log.Info("copied textures", zap.Int("copied", copied), zap.Int("total", table.Len()))
	if failed > 0 {
		log.Warn("some texture copies failed; existing files are never overwritten, remove old files manually if necessary")
	}
	return copied, failed
}

func copyTexture(src, dest string, log *zap.Logger) error {
	in, err := os.Open(filepath.FromSlash(src))
	if err != nil {
		return err
	}
	defer in.Close()

	head := make([]byte, sniffLen)
	n, err := io.ReadFull(in, head)
	if err != nil && err != io.ErrUnexpectedEOF && err != io.EOF {
		return err
	}
	head = head[:n]
	if !filetype.IsImage(head) {
		log.Warn("texture is not a recognized image format", zap.String("source", src))
	}

	if err := os.MkdirAll(filepath.Dir(dest), 0755); err != nil {
		return err
	}
	out, err := os.OpenFile(dest, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0644)
	if err != nil {
		return err
	}
	_, err = out.Write(head)
	if err == nil {
		_, err = io.Copy(out, in)
	}
	if err != nil {
		out.Close()
		os.Remove(dest)
		return err
	}
	return out.Close()
}
