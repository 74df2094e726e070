package baked

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"

	"github.com/Faultbox/meshbake/pkg/bakeerr"
)

// Encoder writes a Model to a stream.
type Encoder struct {
	w   io.Writer
	n   int64
	err error
}

// NewEncoder returns an encoder writing to w.
func NewEncoder(w io.Writer) *Encoder {
	return &Encoder{w: w}
}

// Written returns the number of bytes written so far.
func (e *Encoder) Written() int64 { return e.n }

// Encode writes mdl. Names too long to encode wrap bakeerr.ErrFormat and
// write failures wrap bakeerr.ErrIO. Any other Validate failure is a
// programming error and panics with bakeerr.ErrContract.
func (e *Encoder) Encode(mdl *Model) error {
	if err := mdl.Validate(); err != nil {
		if errors.Is(err, errStringLimit) {
			return fmt.Errorf("%w: %w", bakeerr.ErrFormat, err)
		}
		bakeerr.Contractf("encoding invalid model: %v", err)
	}

	// Header
	e.write(Magic)
	e.write(Variant)

	// Texture table
	e.write(uint32(len(mdl.Textures)))
	for _, tex := range mdl.Textures {
		e.writeString(tex.Path)
		e.write(tex.Channels)
	}

	// Material table
	e.write(uint32(len(mdl.Materials)))
	for _, mat := range mdl.Materials {
		e.writeString(mat.Name)
		e.write(mat.BaseColor)
		e.write(mat.Emission)
		e.write(mat.Roughness)
		e.write(mat.Metalness)
		e.write(mat.Textures)
	}

	// Meshes
	e.write(uint32(len(mdl.Meshes)))
	for i := range mdl.Meshes {
		mesh := &mdl.Meshes[i]
		e.writeString(mesh.Name)
		e.write(mesh.MaterialID)
		e.write(uint32(len(mesh.Positions)))
		e.write(uint32(len(mesh.Indices)))
		e.write(mesh.Positions)
		e.write(mesh.Normals)
		e.write(mesh.UVs)
		e.write(mesh.Tangents)
		e.write(mesh.Indices)
	}

	if e.err != nil {
		return bakeerr.IO(fmt.Sprintf("writing baked model at byte %d", e.n), e.err)
	}
	return nil
}

// write encodes a fixed-size value. After the first failure it does nothing.
func (e *Encoder) write(v any) {
	if e.err != nil {
		return
	}
	size := binary.Size(v)
	if e.err = binary.Write(e.w, binary.LittleEndian, v); e.err == nil {
		e.n += int64(size)
	}
}

func (e *Encoder) writeString(s string) {
	e.write(uint32(len(s) + 1))
	if e.err != nil {
		return
	}
	buf := make([]byte, len(s)+1)
	copy(buf, s)
	var n int
	n, e.err = e.w.Write(buf)
	e.n += int64(n)
}
