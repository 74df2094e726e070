package zstream

import (
	"bufio"
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/pierrec/lz4/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Faultbox/meshbake/pkg/bakeerr"
)

// sampleOBJ returns a few tens of kilobytes of OBJ-like text.
func sampleOBJ() []byte {
	var sb strings.Builder
	sb.WriteString("# generated\no sample\n")
	for i := 0; i < 2000; i++ {
		fmt.Fprintf(&sb, "v %d.%03d %d.5 -%d.25\n", i, i%1000, i/3, i%17)
	}
	for i := 1; i < 1998; i++ {
		fmt.Fprintf(&sb, "f %d %d %d\n", i, i+1, i+2)
	}
	return []byte(sb.String())
}

func writeCompressed(t *testing.T, data []byte, f Format) string {
	t.Helper()
	dir := t.TempDir()
	src := filepath.Join(dir, "model.obj")
	require.NoError(t, os.WriteFile(src, data, 0644))
	dst := CompressedPath(src, f)
	require.NoError(t, Compress(src, dst, f))
	require.NoError(t, os.Remove(src))
	return dst
}

func TestReaderRoundTrip(t *testing.T) {
	data := sampleOBJ()

	tests := []struct {
		name    string
		format  Format
		in, out int
	}{
		{"zstd default buffers", FormatZstd, 0, 0},
		{"zstd tiny buffers", FormatZstd, 7, 5},
		{"lz4 default buffers", FormatLZ4, 0, 0},
		{"lz4 tiny buffers", FormatLZ4, 11, 3},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := writeCompressed(t, data, tt.format)

			r, err := Open(path, WithBufferSizes(tt.in, tt.out))
			require.NoError(t, err)
			defer r.Close()

			got, err := io.ReadAll(r)
			require.NoError(t, err)
			assert.Equal(t, data, got)
		})
	}
}

func TestReaderReadByte(t *testing.T) {
	data := []byte("v 1 2 3\nv 4 5 6\n")
	path := writeCompressed(t, data, FormatZstd)

	r, err := Open(path, WithBufferSizes(4, 2))
	require.NoError(t, err)
	defer r.Close()

	var got []byte
	for {
		b, err := r.ReadByte()
		if errors.Is(err, io.EOF) {
			break
		}
		require.NoError(t, err)
		got = append(got, b)
	}
	assert.Equal(t, data, got)

	// stays at EOF
	_, err = r.ReadByte()
	assert.ErrorIs(t, err, io.EOF)
}

func TestReaderLineScanning(t *testing.T) {
	data := sampleOBJ()
	path := writeCompressed(t, data, FormatZstd)

	r, err := Open(path, WithBufferSizes(64, 64))
	require.NoError(t, err)
	defer r.Close()

	lines := 0
	sc := bufio.NewScanner(r)
	for sc.Scan() {
		lines++
	}
	require.NoError(t, sc.Err())
	assert.Equal(t, strings.Count(string(data), "\n"), lines)
}

func TestReaderReadsFileOnlyWhenInputExhausted(t *testing.T) {
	data := sampleOBJ()
	path := writeCompressed(t, data, FormatZstd)

	info, err := os.Stat(path)
	require.NoError(t, err)

	const inSize = 256
	r, err := Open(path, WithBufferSizes(inSize, 32))
	require.NoError(t, err)
	defer r.Close()

	assert.GreaterOrEqual(t, r.Blocks(), 1)

	_, err = io.Copy(io.Discard, r)
	require.NoError(t, err)

	maxBlocks := int(info.Size())/inSize + 2
	assert.LessOrEqual(t, r.Blocks(), maxBlocks)
}

func TestOpenMissingFile(t *testing.T) {
	_, err := Open(filepath.Join(t.TempDir(), "missing.obj-zstd"))
	require.Error(t, err)
	assert.ErrorIs(t, err, bakeerr.ErrIO)
	assert.ErrorIs(t, err, os.ErrNotExist)
}

func TestOpenUnknownExtension(t *testing.T) {
	_, err := Open(filepath.Join(t.TempDir(), "model.obj"))
	assert.ErrorIs(t, err, bakeerr.ErrCompression)
}

// readAllFrom opens path and drains it, returning the first error seen.
func readAllFrom(path string) error {
	r, err := Open(path, WithBufferSizes(64, 64))
	if err != nil {
		return err
	}
	defer r.Close()
	_, err = io.ReadAll(r)
	return err
}

func TestCorruptInput(t *testing.T) {
	dir := t.TempDir()

	t.Run("garbage", func(t *testing.T) {
		path := filepath.Join(dir, "garbage.obj-zstd")
		require.NoError(t, os.WriteFile(path, []byte(strings.Repeat("not zstd at all ", 64)), 0644))

		err := readAllFrom(path)
		require.Error(t, err)
		assert.ErrorIs(t, err, bakeerr.ErrCompression)
	})

	t.Run("truncated", func(t *testing.T) {
		full := writeCompressed(t, sampleOBJ(), FormatZstd)
		compressed, err := os.ReadFile(full)
		require.NoError(t, err)

		path := filepath.Join(dir, "truncated.obj-zstd")
		require.NoError(t, os.WriteFile(path, compressed[:len(compressed)/2], 0644))

		err = readAllFrom(path)
		require.Error(t, err)
		assert.ErrorIs(t, err, bakeerr.ErrCompression)
	})

	t.Run("truncated lz4", func(t *testing.T) {
		full := writeCompressed(t, sampleOBJ(), FormatLZ4)
		compressed, err := os.ReadFile(full)
		require.NoError(t, err)

		multi := lz4Frame(t, bytes.Repeat(sampleOBJ(), 3), lz4.BlockSizeOption(lz4.Block64Kb))
		// magic, FLG, BD and HC precede the first block size
		firstBlock := 7 + 4 + int(binary.LittleEndian.Uint32(multi[7:])&^0x80000000)
		require.Less(t, firstBlock, len(multi)-8, "frame must span several blocks")

		cuts := map[string][]byte{
			"checksum missing":      compressed[:len(compressed)-4],
			"end mark missing":      compressed[:len(compressed)-8],
			"cut at block boundary": multi[:firstBlock],
		}
		for name, data := range cuts {
			path := filepath.Join(dir, strings.ReplaceAll(name, " ", "-")+".obj-lz4")
			require.NoError(t, os.WriteFile(path, data, 0644))

			err := readAllFrom(path)
			require.Error(t, err, name)
			assert.ErrorIs(t, err, bakeerr.ErrCompression, name)
		}
	})
}

// lz4Frame compresses data into one lz4 frame written with opts.
func lz4Frame(t *testing.T, data []byte, opts ...lz4.Option) []byte {
	t.Helper()
	var buf bytes.Buffer
	w := lz4.NewWriter(&buf)
	require.NoError(t, w.Apply(opts...))
	_, err := w.Write(data)
	require.NoError(t, err)
	require.NoError(t, w.Close())
	return buf.Bytes()
}

func TestLZ4FrameEndMark(t *testing.T) {
	data := bytes.Repeat(sampleOBJ(), 3)
	dir := t.TempDir()

	tests := []struct {
		name string
		opts []lz4.Option
	}{
		{"with content checksum", nil},
		{"without content checksum", []lz4.Option{lz4.ChecksumOption(false)}},
		{"small blocks", []lz4.Option{lz4.BlockSizeOption(lz4.Block64Kb)}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := filepath.Join(dir, strings.ReplaceAll(tt.name, " ", "-")+".obj-lz4")
			require.NoError(t, os.WriteFile(path, lz4Frame(t, data, tt.opts...), 0644))

			r, err := Open(path, WithBufferSizes(13, 0))
			require.NoError(t, err)
			defer r.Close()
			got, err := io.ReadAll(r)
			require.NoError(t, err)
			assert.Equal(t, data, got)
		})
	}
}

func TestEnsureCompressed(t *testing.T) {
	dir := t.TempDir()
	objPath := filepath.Join(dir, "box.obj")
	zPath := filepath.Join(dir, "box.obj-zstd")

	// neither exists
	err := EnsureCompressed(zPath, nil)
	assert.ErrorIs(t, err, bakeerr.ErrIO)

	// .obj exists: compressed file is created
	data := sampleOBJ()
	require.NoError(t, os.WriteFile(objPath, data, 0644))
	require.NoError(t, EnsureCompressed(zPath, nil))
	require.FileExists(t, zPath)

	r, err := Open(zPath)
	require.NoError(t, err)
	got, err := io.ReadAll(r)
	r.Close()
	require.NoError(t, err)
	assert.Equal(t, data, got)

	// only the compressed file: used as is
	require.NoError(t, os.Remove(objPath))
	before, err := os.ReadFile(zPath)
	require.NoError(t, err)
	require.NoError(t, EnsureCompressed(zPath, nil))
	after, err := os.ReadFile(zPath)
	require.NoError(t, err)
	assert.Equal(t, before, after)
}

func TestFormatHelpers(t *testing.T) {
	f, ok := FormatFromPath("a/b/scene.obj-lz4")
	assert.True(t, ok)
	assert.Equal(t, FormatLZ4, f)

	_, ok = FormatFromPath("scene.obj")
	assert.False(t, ok)

	assert.Equal(t, "a/scene.obj", SourcePath("a/scene.obj-zstd"))
	assert.Equal(t, "a/scene.obj-lz4", CompressedPath("a/scene.obj", FormatLZ4))

	for name, want := range map[string]Format{"zstd": FormatZstd, "LZ4": FormatLZ4, "": FormatZstd} {
		got, err := ParseFormat(name)
		require.NoError(t, err)
		assert.Equal(t, want, got, name)
	}
	_, err := ParseFormat("brotli")
	assert.Error(t, err)

	assert.Equal(t, "zstd", FormatZstd.String())
	assert.Equal(t, "Unknown(9)", Format(9).String())
}
