package baked

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"

	"go.uber.org/zap"

	"github.com/Faultbox/meshbake/pkg/bakeerr"
	"github.com/Faultbox/meshbake/pkg/encoding"
	m "github.com/Faultbox/meshbake/pkg/math"
)

// Decoding errors. All of them wrap bakeerr.ErrFormat.
var (
	ErrInvalidMagic   = fmt.Errorf("%w: invalid file signature", bakeerr.ErrFormat)
	ErrInvalidVariant = fmt.Errorf("%w: unsupported file variant", bakeerr.ErrFormat)
	ErrTruncated      = fmt.Errorf("%w: truncated data", bakeerr.ErrFormat)
	ErrStringTooLong  = fmt.Errorf("%w: string too long", bakeerr.ErrFormat)
	ErrInvalidString  = fmt.Errorf("%w: string without terminator", bakeerr.ErrFormat)
)

// arrays are read in chunks so a corrupt count cannot allocate more than
// the input actually provides
const chunkElems = 16 * 1024

// Decoder reads a Model from a stream.
type Decoder struct {
	r   io.Reader
	n   int64
	log *zap.Logger
}

// NewDecoder returns a decoder reading from r. A nil logger disables the
// trailing bytes warning.
func NewDecoder(r io.Reader, log *zap.Logger) *Decoder {
	if log == nil {
		log = zap.NewNop()
	}
	return &Decoder{r: r, log: log}
}

// Consumed returns the number of bytes read so far.
func (d *Decoder) Consumed() int64 { return d.n }

// Decode reads and validates a complete model. On error no model is
// returned.
func (d *Decoder) Decode() (*Model, error) {
	var magic, variant [16]byte
	if err := d.read(&magic, "magic"); err != nil {
		return nil, err
	}
	if magic != Magic {
		return nil, ErrInvalidMagic
	}
	if err := d.read(&variant, "variant"); err != nil {
		return nil, err
	}
	if variant != Variant {
		return nil, fmt.Errorf("%w: %q", ErrInvalidVariant, encoding.TrimNullString(variant[:]))
	}

	mdl := &Model{}

	// Texture table
	count, err := d.readUint32("texture count")
	if err != nil {
		return nil, err
	}
	for i := uint32(0); i < count; i++ {
		var tex Texture
		if tex.Path, err = d.readString("texture path"); err != nil {
			return nil, err
		}
		if err := d.read(&tex.Channels, "texture channels"); err != nil {
			return nil, err
		}
		mdl.Textures = append(mdl.Textures, tex)
	}

	// Material table
	if count, err = d.readUint32("material count"); err != nil {
		return nil, err
	}
	for i := uint32(0); i < count; i++ {
		var mat Material
		if mat.Name, err = d.readString("material name"); err != nil {
			return nil, err
		}
		if err := d.read(&mat.BaseColor, "base color"); err != nil {
			return nil, err
		}
		if err := d.read(&mat.Emission, "emission"); err != nil {
			return nil, err
		}
		if err := d.read(&mat.Roughness, "roughness"); err != nil {
			return nil, err
		}
		if err := d.read(&mat.Metalness, "metalness"); err != nil {
			return nil, err
		}
		if err := d.read(&mat.Textures, "texture ids"); err != nil {
			return nil, err
		}
		mdl.Materials = append(mdl.Materials, mat)
	}

	// Meshes
	if count, err = d.readUint32("mesh count"); err != nil {
		return nil, err
	}
	for i := uint32(0); i < count; i++ {
		mesh, err := d.readMesh()
		if err != nil {
			return nil, fmt.Errorf("mesh %d: %w", i, err)
		}
		mdl.Meshes = append(mdl.Meshes, mesh)
	}

	if err := mdl.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %w", bakeerr.ErrFormat, err)
	}

	// Trailing bytes are tolerated
	var probe [1]byte
	if n, _ := io.ReadFull(d.r, probe[:]); n > 0 {
		d.log.Warn("baked model contains trailing bytes", zap.Int64("offset", d.n))
	}
	return mdl, nil
}

func (d *Decoder) readMesh() (Mesh, error) {
	var mesh Mesh
	var err error
	if mesh.Name, err = d.readString("mesh name"); err != nil {
		return mesh, err
	}
	if err := d.read(&mesh.MaterialID, "material id"); err != nil {
		return mesh, err
	}
	v, err := d.readUint32("vertex count")
	if err != nil {
		return mesh, err
	}
	n, err := d.readUint32("index count")
	if err != nil {
		return mesh, err
	}

	if mesh.Positions, err = readArray[m.Vec3](d, v, "positions"); err != nil {
		return mesh, err
	}
	if mesh.Normals, err = readArray[m.Vec3](d, v, "normals"); err != nil {
		return mesh, err
	}
	if mesh.UVs, err = readArray[m.Vec2](d, v, "uvs"); err != nil {
		return mesh, err
	}
	if mesh.Tangents, err = readArray[m.Vec4](d, v, "tangents"); err != nil {
		return mesh, err
	}
	if mesh.Indices, err = readArray[uint32](d, n, "indices"); err != nil {
		return mesh, err
	}
	return mesh, nil
}

// read decodes a fixed-size value, classifying short reads as ErrTruncated.
func (d *Decoder) read(v any, what string) error {
	if err := binary.Read(d.r, binary.LittleEndian, v); err != nil {
		if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
			return fmt.Errorf("%w: reading %s at byte %d", ErrTruncated, what, d.n)
		}
		return bakeerr.IO(fmt.Sprintf("reading %s at byte %d", what, d.n), err)
	}
	d.n += int64(binary.Size(v))
	return nil
}

func (d *Decoder) readUint32(what string) (uint32, error) {
	var v uint32
	err := d.read(&v, what)
	return v, err
}

func (d *Decoder) readString(what string) (string, error) {
	length, err := d.readUint32(what)
	if err != nil {
		return "", err
	}
	if length >= MaxString {
		return "", fmt.Errorf("%w: %s of %d bytes at byte %d", ErrStringTooLong, what, length, d.n)
	}
	if length == 0 {
		return "", fmt.Errorf("%w: empty %s at byte %d", ErrInvalidString, what, d.n)
	}
	buf := make([]byte, length)
	if err := d.read(buf, what); err != nil {
		return "", err
	}
	if buf[length-1] != 0 {
		return "", fmt.Errorf("%w: %s at byte %d", ErrInvalidString, what, d.n)
	}
	return encoding.TrimNullString(buf), nil
}

func readArray[T any](d *Decoder, count uint32, what string) ([]T, error) {
	out := make([]T, 0, min(int(count), chunkElems))
	for remaining := int(count); remaining > 0; {
		chunk := make([]T, min(remaining, chunkElems))
		if err := d.read(chunk, what); err != nil {
			return nil, err
		}
		out = append(out, chunk...)
		remaining -= len(chunk)
	}
	return out, nil
}
