package ingest

import (
	"fmt"
	"path/filepath"
	"strings"

	"go.uber.org/zap"

	"github.com/Faultbox/meshbake/pkg/bakeerr"
	m "github.com/Faultbox/meshbake/pkg/math"
	"github.com/Faultbox/meshbake/pkg/obj"
	"github.com/Faultbox/meshbake/pkg/zstream"
)

// LoadCompressedOBJ loads a compressed OBJ file (.obj-zstd or .obj-lz4).
// The compressed file is created from its sibling .obj first when needed.
// Material libraries are resolved relative to the file's directory.
func LoadCompressedOBJ(path string, log *zap.Logger) (*Model, error) {
	if log == nil {
		log = zap.NewNop()
	}
	if err := zstream.EnsureCompressed(path, log); err != nil {
		return nil, err
	}

	r, err := zstream.Open(path)
	if err != nil {
		return nil, err
	}
	defer r.Close()

	dir, err := filepath.Abs(filepath.Dir(path))
	if err != nil {
		return nil, bakeerr.IO("resolve directory of "+path, err)
	}

	res, err := obj.Parse(r, obj.SearchPath(dir))
	if err != nil {
		return nil, fmt.Errorf("load %s: %w", path, err)
	}
	for _, w := range res.Warnings {
		log.Debug("obj warning", zap.String("path", path), zap.String("warning", w))
	}
	obj.Triangulate(res)

	return FromResult(res, path)
}

// FromResult groups triangulated faces by (shape, material).
//
// A shape using one material yields one mesh named after the shape; a shape
// using several yields one mesh per material, named "<shape>::<material>",
// in the order the materials first appear in the shape. Texture paths are
// prefixed with the directory of sourcePath.
func FromResult(res *obj.Result, sourcePath string) (*Model, error) {
	if err := res.CheckTriangulated(); err != nil {
		return nil, err
	}

	mdl := &Model{SourcePath: sourcePath}
	prefix := texturePrefix(sourcePath)
	for _, om := range res.Materials {
		mdl.Materials = append(mdl.Materials, convertMaterial(om, prefix))
	}

	defaultID := -1
	materialFor := func(id int) int {
		if id != obj.NoIndex {
			return id
		}
		if defaultID < 0 {
			mdl.Materials = append(mdl.Materials, defaultMaterial())
			defaultID = len(mdl.Materials) - 1
		}
		return defaultID
	}

	attr := &res.Attributes
	for _, shape := range res.Shapes {
		mesh := &shape.Mesh

		var active []int
		seen := make(map[int]bool)
		for _, id := range mesh.MaterialIDs {
			if id != obj.NoIndex && (id < 0 || id >= len(res.Materials)) {
				return nil, fmt.Errorf("%w: shape %q references material %d of %d",
					bakeerr.ErrParse, shape.Name, id, len(res.Materials))
			}
			if !seen[id] {
				seen[id] = true
				active = append(active, id)
			}
		}

		for _, id := range active {
			matID := materialFor(id)

			name := shape.Name
			if len(active) > 1 {
				name = shape.Name + "::" + mdl.Materials[matID].Name
			}

			first := len(mdl.Positions)
			for face, faceMat := range mesh.MaterialIDs {
				if faceMat != id {
					continue
				}
				mdl.appendFace(attr, mesh.Indices[face*3:face*3+3])
			}

			mdl.Meshes = append(mdl.Meshes, Mesh{
				Name:        name,
				MaterialID:  matID,
				FirstVertex: first,
				VertexCount: len(mdl.Positions) - first,
			})
		}
	}
	return mdl, nil
}

func (mdl *Model) appendFace(attr *obj.Attributes, corners []obj.Index) {
	var p [3]m.Vec3
	for k, c := range corners {
		p[k] = vec3At(attr.Positions, c.Position)
	}
	flat := p[1].Sub(p[0]).Cross(p[2].Sub(p[0])).Normalize()

	for k, c := range corners {
		mdl.Positions = append(mdl.Positions, p[k])

		n := flat
		if c.Normal != obj.NoIndex {
			n = vec3At(attr.Normals, c.Normal)
		}
		mdl.Normals = append(mdl.Normals, n)

		var uv m.Vec2
		if c.Texcoord != obj.NoIndex {
			uv = m.Vec2{X: attr.Texcoords[c.Texcoord*2], Y: attr.Texcoords[c.Texcoord*2+1]}
		}
		mdl.UVs = append(mdl.UVs, uv)
	}
}

func vec3At(data []float32, i int) m.Vec3 {
	return m.Vec3{X: data[i*3], Y: data[i*3+1], Z: data[i*3+2]}
}

// texturePrefix returns the directory part of path including its trailing
// slash, or "" for a bare file name.
func texturePrefix(path string) string {
	path = filepath.ToSlash(path)
	if i := strings.LastIndexByte(path, '/'); i >= 0 {
		return path[:i+1]
	}
	return ""
}

func convertMaterial(om obj.Material, prefix string) Material {
	tex := func(name string) string {
		if name == "" || filepath.IsAbs(name) {
			return name
		}
		return prefix + name
	}
	return Material{
		Name:      om.Name,
		BaseColor: m.Vec3{X: om.Diffuse[0], Y: om.Diffuse[1], Z: om.Diffuse[2]},
		Emission:  m.Vec3{X: om.Emission[0], Y: om.Emission[1], Z: om.Emission[2]},
		Roughness: om.Roughness,
		Metalness: om.Metallic,

		BaseColorTexture: tex(om.DiffuseTexname),
		EmissiveTexture:  tex(om.EmissiveTexname),
		RoughnessTexture: tex(om.RoughnessTexname),
		MetalnessTexture: tex(om.MetallicTexname),
		NormalMapTexture: tex(om.NormalTexname),
		AlphaMaskTexture: tex(om.AlphaTexname),
	}
}

func defaultMaterial() Material {
	return Material{
		Name:      DefaultMaterialName,
		BaseColor: m.Vec3{X: 1, Y: 1, Z: 1},
		Roughness: 1,
	}
}
