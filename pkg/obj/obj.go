// Package obj parses the Wavefront OBJ format (*.obj) and its material
// libraries (*.mtl) from a sequential byte stream. Only the subset needed to
// bake static meshes is supported: positions, normals, texture coordinates,
// polygonal faces, objects/groups and PBR-extended materials.
package obj

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/Faultbox/meshbake/pkg/bakeerr"
	"github.com/Faultbox/meshbake/pkg/encoding"
)

// NoIndex marks an absent texture coordinate or normal reference, and a face
// without a material.
const NoIndex = -1

// Index refers to one corner of a face. Texcoord and Normal are NoIndex when
// the face omits them.
type Index struct {
	Position int
	Texcoord int
	Normal   int
}

// Mesh holds the faces of one shape. Indices is the concatenation of every
// face's corners; FaceSizes gives the corner count of each face.
type Mesh struct {
	Indices     []Index
	FaceSizes   []int
	MaterialIDs []int // per face, NoIndex when no material is active
}

// Shape is a named object or group.
type Shape struct {
	Name string
	Mesh Mesh
}

// Attributes are the flat attribute arrays shared by all shapes.
type Attributes struct {
	Positions []float32 // xyz
	Normals   []float32 // xyz
	Texcoords []float32 // uv
}

// Material is a material from an MTL library. Texture names are as written
// in the library, with forward slashes.
type Material struct {
	Name string

	Diffuse   [3]float32
	Emission  [3]float32
	Roughness float32
	Metallic  float32

	DiffuseTexname   string
	EmissiveTexname  string
	RoughnessTexname string
	MetallicTexname  string
	NormalTexname    string
	AlphaTexname     string
}

// Result is everything decoded from an OBJ stream.
type Result struct {
	Attributes Attributes
	Shapes     []Shape
	Materials  []Material
	Warnings   []string
}

// MaterialLibrary opens material libraries referenced by mtllib.
type MaterialLibrary interface {
	Open(name string) (io.ReadCloser, error)
}

// SearchPath returns a MaterialLibrary resolving names relative to dir.
func SearchPath(dir string) MaterialLibrary {
	return searchPath(dir)
}

type searchPath string

func (s searchPath) Open(name string) (io.ReadCloser, error) {
	name = encoding.NormalizeSlashes(name)
	if !filepath.IsAbs(name) {
		name = filepath.Join(string(s), filepath.FromSlash(name))
	}
	return os.Open(name)
}

// Local constants
const (
	blanks  = "\r\n\t "
	objType = "obj"
	mtlType = "mtl"
)

var defaultMaterial = Material{
	Diffuse: [3]float32{0.6, 0.6, 0.6},
}

type decoder struct {
	res        *Result
	lib        MaterialLibrary
	line       int
	shape      *Shape
	material   int
	matIndex   map[string]int
	matCurrent *Material
}

// Parse decodes an OBJ stream. Material libraries are opened through lib,
// which may be nil when materials are not needed. Syntax errors wrap
// bakeerr.ErrParse and report the offending line.
func Parse(r io.Reader, lib MaterialLibrary) (*Result, error) {
	dec := &decoder{
		res:      &Result{},
		lib:      lib,
		material: NoIndex,
		matIndex: make(map[string]int),
	}
	if err := dec.parse(r, dec.parseObjLine); err != nil {
		return nil, err
	}

	// drop empty shapes
	shapes := dec.res.Shapes[:0]
	for _, s := range dec.res.Shapes {
		if len(s.Mesh.FaceSizes) > 0 {
			shapes = append(shapes, s)
		}
	}
	dec.res.Shapes = shapes
	return dec.res, nil
}

// parse reads the lines from the specified reader and dispatches them
// to the specified line parser.
func (dec *decoder) parse(reader io.Reader, parseLine func(string) error) error {
	bufin := bufio.NewReader(reader)
	dec.line = 1
	for {
		// Reads next line and abort on errors (not EOF)
		line, err := bufin.ReadString('\n')
		if err != nil && err != io.EOF {
			return err
		}
		line = strings.Trim(line, blanks)
		if perr := parseLine(line); perr != nil {
			return perr
		}
		if err == io.EOF {
			break
		}
		dec.line++
	}
	return nil
}

// Parses obj file line, dispatching to specific parsers
func (dec *decoder) parseObjLine(line string) error {
	fields := strings.Fields(line)
	if len(fields) == 0 || strings.HasPrefix(fields[0], "#") {
		return nil
	}
	switch fields[0] {
	case "mtllib":
		return dec.parseMatlib(fields[1:])
	case "o", "g":
		return dec.parseObject(fields[1:])
	case "v":
		return dec.parseFloats(fields[1:], 3, &dec.res.Attributes.Positions, "v")
	case "vn":
		return dec.parseFloats(fields[1:], 3, &dec.res.Attributes.Normals, "vn")
	case "vt":
		return dec.parseTexcoord(fields[1:])
	case "f":
		return dec.parseFace(fields[1:])
	case "usemtl":
		return dec.parseUsemtl(fields[1:])
	case "s", "l", "p":
		// smoothing groups, lines and points carry nothing we bake
	default:
		dec.appendWarn(objType, "field not supported: "+fields[0])
	}
	return nil
}

// Parses a mtllib line and loads every library it names:
// mtllib <name> [<name> ...]
func (dec *decoder) parseMatlib(fields []string) error {
	if len(fields) < 1 {
		return dec.formatError("mtllib with no fields")
	}
	if dec.lib == nil {
		return nil
	}
	for _, name := range fields {
		if err := dec.loadLibrary(name); err != nil {
			dec.appendWarn(objType, fmt.Sprintf("material library %s: %v", name, err))
		}
	}
	return nil
}

func (dec *decoder) loadLibrary(name string) error {
	rc, err := dec.lib.Open(name)
	if err != nil {
		return err
	}
	defer rc.Close()

	objLine := dec.line
	defer func() {
		dec.line = objLine
		dec.matCurrent = nil
	}()
	return dec.parse(rc, dec.parseMtlLine)
}

// Parses an object or group line:
// o <name>
func (dec *decoder) parseObject(fields []string) error {
	name := "unnamed"
	if len(fields) > 0 {
		name = encoding.NameToUTF8(strings.Join(fields, " "))
	}
	dec.res.Shapes = append(dec.res.Shapes, Shape{Name: name})
	dec.shape = &dec.res.Shapes[len(dec.res.Shapes)-1]
	return nil
}

func (dec *decoder) parseFloats(fields []string, n int, dst *[]float32, kind string) error {
	if len(fields) < n {
		return dec.formatError(fmt.Sprintf("less than %d values in '%s' line", n, kind))
	}
	for _, f := range fields[:n] {
		val, err := strconv.ParseFloat(f, 32)
		if err != nil {
			return dec.formatError(fmt.Sprintf("'%s' parse float error: %v", kind, err))
		}
		*dst = append(*dst, float32(val))
	}
	return nil
}

// parseTexcoord parses a texture coordinate line:
// vt u [v [w]]
// A missing v is 0; w is checked but not kept.
func (dec *decoder) parseTexcoord(fields []string) error {
	if len(fields) < 1 {
		return dec.formatError("no values in 'vt' line")
	}
	var uvw [3]float32
	for i, f := range fields[:min(len(fields), 3)] {
		val, err := strconv.ParseFloat(f, 32)
		if err != nil {
			return dec.formatError(fmt.Sprintf("'vt' parse float error: %v", err))
		}
		uvw[i] = float32(val)
	}
	dec.res.Attributes.Texcoords = append(dec.res.Attributes.Texcoords, uvw[0], uvw[1])
	return nil
}

// parseFace parses a face description line:
// f v1[/vt1][/vn1] v2[/vt2][/vn2] v3[/vt3][/vn3] ...
func (dec *decoder) parseFace(fields []string) error {
	if dec.shape == nil {
		// faces before any 'o' or 'g' go to an unnamed shape
		dec.parseObject(nil)
	}
	if len(fields) < 3 {
		return dec.formatError("face line with less than 3 fields")
	}

	attr := &dec.res.Attributes
	npos := len(attr.Positions) / 3
	ntex := len(attr.Texcoords) / 2
	nnrm := len(attr.Normals) / 3

	mesh := &dec.shape.Mesh
	for _, f := range fields {
		parts := strings.Split(f, "/")

		var idx Index
		var err error
		if idx.Position, err = dec.resolveIndex(parts[0], npos, "vertex"); err != nil {
			return err
		}
		idx.Texcoord, idx.Normal = NoIndex, NoIndex
		if len(parts) > 1 && parts[1] != "" {
			if idx.Texcoord, err = dec.resolveIndex(parts[1], ntex, "uv"); err != nil {
				return err
			}
		}
		if len(parts) > 2 && parts[2] != "" {
			if idx.Normal, err = dec.resolveIndex(parts[2], nnrm, "normal"); err != nil {
				return err
			}
		}
		mesh.Indices = append(mesh.Indices, idx)
	}
	mesh.FaceSizes = append(mesh.FaceSizes, len(fields))
	mesh.MaterialIDs = append(mesh.MaterialIDs, dec.material)
	return nil
}

// resolveIndex converts a 1-based or negative relative OBJ index to a
// 0-based index into an attribute array of length count.
func (dec *decoder) resolveIndex(s string, count int, kind string) (int, error) {
	val, err := strconv.Atoi(s)
	if err != nil {
		return 0, dec.formatError(fmt.Sprintf("face %s index %q", kind, s))
	}
	var idx int
	switch {
	case val > 0:
		idx = val - 1
	case val < 0:
		idx = count + val
	default:
		return 0, dec.formatError(fmt.Sprintf("face %s index value equal to 0", kind))
	}
	if idx < 0 || idx >= count {
		return 0, dec.formatError(fmt.Sprintf("face %s index %d out of range (%d defined)", kind, val, count))
	}
	return idx, nil
}

// parseUsemtl parses a "usemtl" description line:
// usemtl <name>
func (dec *decoder) parseUsemtl(fields []string) error {
	if len(fields) < 1 {
		return dec.formatError("usemtl with no fields")
	}
	name := encoding.NameToUTF8(strings.Join(fields, " "))
	id, ok := dec.matIndex[name]
	if !ok {
		dec.appendWarn(objType, "could not find material: "+name+"; using default values")
		id = dec.addMaterial(name)
	}
	dec.material = id
	return nil
}

func (dec *decoder) addMaterial(name string) int {
	m := defaultMaterial
	m.Name = name
	dec.res.Materials = append(dec.res.Materials, m)
	id := len(dec.res.Materials) - 1
	dec.matIndex[name] = id
	return id
}

func (dec *decoder) formatError(msg string) error {
	return fmt.Errorf("%w: %s in line %d", bakeerr.ErrParse, msg, dec.line)
}

func (dec *decoder) appendWarn(ftype string, msg string) {
	dec.res.Warnings = append(dec.res.Warnings, fmt.Sprintf("%s(%d): %s", ftype, dec.line, msg))
}

// Triangulate converts every polygon to a fan of triangles around its first
// corner. Afterwards every face has three corners.
func Triangulate(res *Result) {
	for si := range res.Shapes {
		m := &res.Shapes[si].Mesh
		if isTriangulated(m) {
			continue
		}
		var indices []Index
		var sizes, mats []int
		off := 0
		for fi, n := range m.FaceSizes {
			face := m.Indices[off : off+n]
			for k := 1; k+1 < n; k++ {
				indices = append(indices, face[0], face[k], face[k+1])
				sizes = append(sizes, 3)
				mats = append(mats, m.MaterialIDs[fi])
			}
			off += n
		}
		m.Indices, m.FaceSizes, m.MaterialIDs = indices, sizes, mats
	}
}

func isTriangulated(m *Mesh) bool {
	for _, n := range m.FaceSizes {
		if n != 3 {
			return false
		}
	}
	return true
}

// ErrNotTriangulated is returned by callers that require triangles.
var ErrNotTriangulated = errors.New("mesh is not triangulated")

// CheckTriangulated returns ErrNotTriangulated if any face is not a triangle.
func (r *Result) CheckTriangulated() error {
	for _, s := range r.Shapes {
		if !isTriangulated(&s.Mesh) {
			return fmt.Errorf("%w: shape %q", ErrNotTriangulated, s.Name)
		}
	}
	return nil
}
