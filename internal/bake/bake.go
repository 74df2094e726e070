// Package bake runs the baking pipeline: load a compressed OBJ, fill in
// fallback textures, weld every mesh, deduplicate textures, write the baked
// file and copy the textures next to it.
package bake

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/Faultbox/meshbake/internal/ingest"
	"github.com/Faultbox/meshbake/internal/logger"
	"github.com/Faultbox/meshbake/pkg/baked"
	"github.com/Faultbox/meshbake/pkg/bakeerr"
	m "github.com/Faultbox/meshbake/pkg/math"
	"github.com/Faultbox/meshbake/pkg/weld"
)

// bytes per soup vertex: position, normal, uv
const vertexSize = 4 * (3 + 3 + 2)

// Job is one model to bake.
type Job struct {
	Input     string // .obj-zstd or .obj-lz4
	Output    string // .bakedmesh
	Transform m.Mat4 // zero value means identity
}

// Options are the settings shared by all jobs.
type Options struct {
	Weld        weld.Options
	FallbackDir string
}

// Stats summarizes one bake.
type Stats struct {
	RunID string
	Model string

	Meshes    int
	Materials int

	SoupVertices    int
	IndexedVertices int
	Indices         int
	UniqueTextures  int

	TexturesCopied int
	TexturesFailed int

	BytesWritten int64
	Duration     time.Duration
}

// SoupKB is the size estimate of the triangle soup.
func (s Stats) SoupKB() int {
	return s.SoupVertices * vertexSize / 1024
}

// IndexedKB is the size estimate of the indexed meshes.
func (s Stats) IndexedKB() int {
	return (s.IndexedVertices*vertexSize + s.Indices*4) / 1024
}

// ModelName returns the base name of an output path without extension.
func ModelName(output string) string {
	base := filepath.Base(output)
	return strings.TrimSuffix(base, filepath.Ext(base))
}

// Bake runs the whole pipeline for job. Any error aborts this model only;
// texture copy failures are counted in Stats and logged.
func Bake(ctx context.Context, job Job, opts Options, log *zap.Logger) (Stats, error) {
	start := time.Now()
	name := ModelName(job.Output)
	log, runID := logger.ForRun(log, name)
	stats := Stats{RunID: runID, Model: name}

	if err := EnsureFallbacks(opts.FallbackDir, log); err != nil {
		return stats, err
	}

	mdl, err := ingest.LoadCompressedOBJ(job.Input, log)
	if err != nil {
		return stats, err
	}
	if job.Transform != (m.Mat4{}) {
		mdl.Transform(job.Transform)
	}
	Normalize(mdl, FallbacksIn(opts.FallbackDir))

	stats.Meshes = len(mdl.Meshes)
	stats.Materials = len(mdl.Materials)
	stats.SoupVertices = mdl.SoupVertices()
	log.Info("loaded model",
		zap.String("input", job.Input),
		zap.Int("meshes", stats.Meshes),
		zap.Int("materials", stats.Materials),
		zap.Int("soup_vertices", stats.SoupVertices),
		zap.Int("soup_kb", stats.SoupKB()))

	indexed, err := IndexMeshes(ctx, mdl, opts.Weld)
	if err != nil {
		return stats, err
	}
	for _, im := range indexed {
		stats.IndexedVertices += im.VertexCount()
		stats.Indices += len(im.Indices)
	}
	log.Info("indexed meshes",
		zap.Int("vertices", stats.IndexedVertices),
		zap.Int("indices", stats.Indices),
		zap.Int("indexed_kb", stats.IndexedKB()))

	textures := FindUniqueTextures(mdl, log)
	PopulatePaths(textures, name, log)
	stats.UniqueTextures = textures.Len()
	log.Info("unique textures", zap.Int("count", stats.UniqueTextures))

	out := Build(mdl, indexed, textures)
	if stats.BytesWritten, err = baked.WriteFile(job.Output, out); err != nil {
		return stats, err
	}

	stats.TexturesCopied, stats.TexturesFailed = CopyTextures(textures, filepath.Dir(job.Output), log)
	stats.Duration = time.Since(start)
	log.Info("baked model",
		zap.String("output", job.Output),
		zap.Int64("bytes", stats.BytesWritten),
		zap.Int("textures_copied", stats.TexturesCopied),
		zap.Int("textures_failed", stats.TexturesFailed),
		zap.Duration("took", stats.Duration))
	return stats, nil
}

// IndexMeshes welds every mesh of mdl in order. It stops early when ctx is
// cancelled.
func IndexMeshes(ctx context.Context, mdl *ingest.Model, opts weld.Options) ([]weld.IndexedMesh, error) {
	indexed := make([]weld.IndexedMesh, 0, len(mdl.Meshes))
	for _, mesh := range mdl.Meshes {
		if err := ctx.Err(); err != nil {
			return nil, fmt.Errorf("indexing %s: %w", mesh.Name, err)
		}
		indexed = append(indexed, weld.Weld(mdl.Soup(mesh), opts))
	}
	return indexed, nil
}

// Build assembles the baked model from the normalized input, its indexed
// meshes and the populated texture table.
func Build(mdl *ingest.Model, indexed []weld.IndexedMesh, textures *TextureTable) *baked.Model {
	if len(indexed) != len(mdl.Meshes) {
		bakeerr.Contractf("%d indexed meshes for %d meshes", len(indexed), len(mdl.Meshes))
	}

	out := &baked.Model{
		Textures:  make([]baked.Texture, 0, textures.Len()),
		Materials: make([]baked.Material, 0, len(mdl.Materials)),
		Meshes:    make([]baked.Mesh, 0, len(mdl.Meshes)),
	}
	for _, info := range textures.Order {
		out.Textures = append(out.Textures, baked.Texture{Path: info.Dest, Channels: info.Channels})
	}

	for i := range mdl.Materials {
		mat := &mdl.Materials[i]
		bm := baked.Material{
			Name:      mat.Name,
			BaseColor: mat.BaseColor,
			Emission:  mat.Emission,
			Roughness: mat.Roughness,
			Metalness: mat.Metalness,
		}
		for s, source := range materialSlots(mat) {
			bm.Textures[s] = textures.ID(source)
		}
		out.Materials = append(out.Materials, bm)
	}

	for i, mesh := range mdl.Meshes {
		im := indexed[i]
		out.Meshes = append(out.Meshes, baked.Mesh{
			Name:       mesh.Name,
			MaterialID: uint32(mesh.MaterialID),
			Positions:  im.Positions,
			Normals:    im.Normals,
			UVs:        im.UVs,
			Tangents:   im.Tangents,
			Indices:    im.Indices,
		})
	}
	return out
}

func panicUnknownTexture(source string) {
	bakeerr.Contractf("texture %q missing from the texture table", source)
}
