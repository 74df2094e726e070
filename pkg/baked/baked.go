// Package baked reads and writes baked mesh files (*.bakedmesh).
//
// File layout (little-endian, IEEE-754 floats):
//
//	header    16 bytes magic, 16 bytes variant tag
//	textures  uint32 U, then U x {string path, uint8 channels}
//	materials uint32 M, then M x {string name, vec3 base color, vec3 emission,
//	          f32 roughness, f32 metalness, 6 x uint32 texture id}
//	meshes    uint32 N, then N x {string name, uint32 material id,
//	          uint32 V, uint32 I, V x vec3 position, V x vec3 normal,
//	          V x vec2 uv, V x vec4 tangent, I x uint32 index}
//
// Strings are a uint32 byte length, including a terminating NUL, followed by
// the bytes. The position of a texture in the table is its id.
package baked

import (
	"errors"
	"fmt"
	"path/filepath"

	m "github.com/Faultbox/meshbake/pkg/math"
)

// Ext is the file extension of baked mesh files.
const Ext = ".bakedmesh"

// NoID marks an absent texture. Only the alpha mask slot may hold it.
const NoID uint32 = 0xFFFFFFFF

// MaxString is the exclusive upper bound on encoded string lengths.
const MaxString = 32 * 1024

// HeaderSize is the size of the magic plus the variant tag.
const HeaderSize = 32

var (
	// Magic starts every baked mesh file.
	Magic = [16]byte{0, 0, 'S', 'P', 'I', 'C', 'Y', 'M', 'E', 'S', 'H'}
	// Variant identifies the single supported layout.
	Variant = [16]byte{'s', 'p', 'i', 'c', 'y'}
)

// Texture channel counts by slot.
const (
	BaseColorChannels = 4
	EmissiveChannels  = 1
	RoughnessChannels = 1
	MetalnessChannels = 1
	NormalMapChannels = 3
	AlphaMaskChannels = 4
)

// Slot names a material texture slot, in file order.
type Slot int

const (
	SlotBaseColor Slot = iota
	SlotEmissive
	SlotRoughness
	SlotMetalness
	SlotNormalMap
	SlotAlphaMask

	NumSlots = 6
)

var slotNames = [NumSlots]string{"baseColor", "emissive", "roughness", "metalness", "normalMap", "alphaMask"}

var slotChannels = [NumSlots]uint8{
	BaseColorChannels, EmissiveChannels, RoughnessChannels,
	MetalnessChannels, NormalMapChannels, AlphaMaskChannels,
}

// String returns the slot name.
func (s Slot) String() string {
	if s < 0 || int(s) >= NumSlots {
		return fmt.Sprintf("Slot(%d)", int(s))
	}
	return slotNames[s]
}

// Channels returns the channel count expected for textures in this slot.
func (s Slot) Channels() uint8 {
	return slotChannels[s]
}

// Texture is an entry of the texture table.
type Texture struct {
	Path     string // relative to the model file, forward slashes
	Channels uint8
}

// Material is a baked PBR material.
type Material struct {
	Name      string
	BaseColor m.Vec3
	Emission  m.Vec3
	Roughness float32
	Metalness float32

	// Texture ids indexed by Slot.
	Textures [NumSlots]uint32
}

// HasAlphaMask reports whether the material references an alpha mask.
func (mat Material) HasAlphaMask() bool {
	return mat.Textures[SlotAlphaMask] != NoID
}

// Mesh is a baked indexed mesh.
type Mesh struct {
	Name       string
	MaterialID uint32

	Positions []m.Vec3
	Normals   []m.Vec3
	UVs       []m.Vec2
	Tangents  []m.Vec4
	Indices   []uint32
}

// VertexCount returns the number of vertices.
func (mesh *Mesh) VertexCount() int { return len(mesh.Positions) }

// Model is the content of a baked mesh file.
type Model struct {
	// Dir is the directory texture paths are relative to. LoadFile sets it
	// to the directory of the loaded file.
	Dir string

	Textures  []Texture
	Materials []Material
	Meshes    []Mesh
}

// TexturePath returns the filesystem path of texture id, or "" for NoID
// and unknown ids.
func (mdl *Model) TexturePath(id uint32) string {
	if id == NoID || int(id) >= len(mdl.Textures) {
		return ""
	}
	return filepath.Join(mdl.Dir, filepath.FromSlash(mdl.Textures[id].Path))
}

// Counts returns the total number of vertices and indices over all meshes.
func (mdl *Model) Counts() (vertices, indices int) {
	for i := range mdl.Meshes {
		vertices += len(mdl.Meshes[i].Positions)
		indices += len(mdl.Meshes[i].Indices)
	}
	return vertices, indices
}

// Validate checks the cross references of the model: texture ids, material
// ids, index ranges, attribute lengths and string lengths.
func (mdl *Model) Validate() error {
	nt := uint32(len(mdl.Textures))
	nm := uint32(len(mdl.Materials))

	for i, tex := range mdl.Textures {
		if err := checkString(tex.Path); err != nil {
			return fmt.Errorf("texture %d: %w", i, err)
		}
	}
	for i := range mdl.Materials {
		mat := &mdl.Materials[i]
		if err := checkString(mat.Name); err != nil {
			return fmt.Errorf("material %d: %w", i, err)
		}
		for s, id := range mat.Textures {
			if id == NoID && Slot(s) == SlotAlphaMask {
				continue
			}
			if id >= nt {
				return fmt.Errorf("material %q: %s texture id %d out of range (%d textures)",
					mat.Name, Slot(s), id, nt)
			}
		}
	}
	for i := range mdl.Meshes {
		mesh := &mdl.Meshes[i]
		if err := checkString(mesh.Name); err != nil {
			return fmt.Errorf("mesh %d: %w", i, err)
		}
		if mesh.MaterialID >= nm {
			return fmt.Errorf("mesh %q: material id %d out of range (%d materials)", mesh.Name, mesh.MaterialID, nm)
		}
		v := len(mesh.Positions)
		if len(mesh.Normals) != v || len(mesh.UVs) != v || len(mesh.Tangents) != v {
			return fmt.Errorf("mesh %q: attribute lengths differ", mesh.Name)
		}
		for _, idx := range mesh.Indices {
			if int(idx) >= v {
				return fmt.Errorf("mesh %q: index %d out of range (%d vertices)", mesh.Name, idx, v)
			}
		}
	}
	return nil
}

// errStringLimit reports a string that cannot be encoded.
var errStringLimit = errors.New("string exceeds encoding limit")

func checkString(s string) error {
	if len(s)+1 >= MaxString {
		return fmt.Errorf("%w: %d bytes", errStringLimit, len(s)+1)
	}
	return nil
}
