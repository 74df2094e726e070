// Package ingest turns parsed OBJ geometry into an InputModel: one flat
// triangle soup for the whole model, split into contiguous per-mesh ranges,
// plus the material side table.
package ingest

import (
	"github.com/Faultbox/meshbake/pkg/bakeerr"
	m "github.com/Faultbox/meshbake/pkg/math"
	"github.com/Faultbox/meshbake/pkg/weld"
)

// DefaultMaterialName names the material assigned to faces without one.
const DefaultMaterialName = "default"

// Material is a material as read from the source, before texture
// normalization. Texture paths are source paths; empty means unset.
type Material struct {
	Name string

	BaseColor m.Vec3
	Emission  m.Vec3
	Roughness float32
	Metalness float32

	BaseColorTexture string
	EmissiveTexture  string
	RoughnessTexture string
	MetalnessTexture string
	NormalMapTexture string
	AlphaMaskTexture string
}

// Mesh is one (shape, material) group and the vertex range it occupies.
type Mesh struct {
	Name        string
	MaterialID  int
	FirstVertex int
	VertexCount int
}

// Model is the flattened input of a bake.
type Model struct {
	SourcePath string

	Materials []Material
	Meshes    []Mesh

	Positions []m.Vec3
	Normals   []m.Vec3
	UVs       []m.Vec2
}

// SoupVertices returns the total number of soup vertices.
func (mdl *Model) SoupVertices() int {
	return len(mdl.Positions)
}

// Soup returns the triangle soup of a mesh. The slices alias the model.
func (mdl *Model) Soup(mesh Mesh) weld.TriangleSoup {
	end := mesh.FirstVertex + mesh.VertexCount
	if mesh.FirstVertex < 0 || end > len(mdl.Positions) || len(mdl.Normals) != len(mdl.Positions) || len(mdl.UVs) != len(mdl.Positions) {
		bakeerr.Contractf("mesh %q range [%d,%d) outside model of %d vertices",
			mesh.Name, mesh.FirstVertex, end, len(mdl.Positions))
	}
	return weld.TriangleSoup{
		Positions: mdl.Positions[mesh.FirstVertex:end],
		Normals:   mdl.Normals[mesh.FirstVertex:end],
		UVs:       mdl.UVs[mesh.FirstVertex:end],
	}
}

// Transform applies xf to all positions and its normal matrix to all
// normals. Normals are renormalized.
func (mdl *Model) Transform(xf m.Mat4) {
	if xf.IsIdentity() {
		return
	}
	nm := xf.NormalMatrix()
	for i := range mdl.Positions {
		mdl.Positions[i] = xf.TransformPoint(mdl.Positions[i])
	}
	for i := range mdl.Normals {
		mdl.Normals[i] = nm.TransformDirection(mdl.Normals[i]).Normalize()
	}
}
