package weld

import (
	"github.com/chewxy/math32"

	m "github.com/Faultbox/meshbake/pkg/math"
)

// degenerate uv parameterizations contribute nothing
const uvAreaEpsilon = 1e-12

// computeTangents accumulates per-triangle tangents from the soup onto the
// kept vertices, then orthonormalizes them against the vertex normals.
func computeTangents(soup TriangleSoup, out *IndexedMesh) {
	tan := make([]m.Vec3, len(out.Positions))
	bitan := make([]m.Vec3, len(out.Positions))

	for t := 0; t+2 < len(out.Indices); t += 3 {
		p0, p1, p2 := soup.Positions[t], soup.Positions[t+1], soup.Positions[t+2]
		uv0, uv1, uv2 := soup.UVs[t], soup.UVs[t+1], soup.UVs[t+2]

		e1, e2 := p1.Sub(p0), p2.Sub(p0)
		d1, d2 := uv1.Sub(uv0), uv2.Sub(uv0)

		det := d1.X*d2.Y - d2.X*d1.Y
		if math32.Abs(det) < uvAreaEpsilon {
			continue
		}
		r := 1 / det
		sdir := e1.Scale(d2.Y).Sub(e2.Scale(d1.Y)).Scale(r)
		tdir := e2.Scale(d1.X).Sub(e1.Scale(d2.X)).Scale(r)
		if !sdir.IsFinite() || !tdir.IsFinite() {
			continue
		}

		for k := 0; k < 3; k++ {
			idx := out.Indices[t+k]
			tan[idx] = tan[idx].Add(sdir)
			bitan[idx] = bitan[idx].Add(tdir)
		}
	}

	out.Tangents = make([]m.Vec4, len(out.Positions))
	for i, n := range out.Normals {
		out.Tangents[i] = orthonormalize(n, tan[i], bitan[i])
	}
}

// orthonormalize applies Gram-Schmidt to t against n and derives the
// handedness from b. Degenerate results fall back to any unit vector
// orthogonal to n.
func orthonormalize(n, t, b m.Vec3) m.Vec4 {
	n = n.Normalize()
	ortho := t.Sub(n.Scale(n.Dot(t))).Normalize()
	if ortho == (m.Vec3{}) || !ortho.IsFinite() {
		ortho = n.Orthogonal()
	}

	w := float32(1)
	if n.Cross(ortho).Dot(b) < 0 {
		w = -1
	}
	return m.Vec4{X: ortho.X, Y: ortho.Y, Z: ortho.Z, W: w}
}
