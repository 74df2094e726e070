package bake

import (
	"path"

	"go.uber.org/zap"

	"github.com/Faultbox/meshbake/internal/ingest"
	"github.com/Faultbox/meshbake/pkg/baked"
	"github.com/Faultbox/meshbake/pkg/encoding"
)

// TextureInfo describes one unique source texture.
type TextureInfo struct {
	ID       uint32
	Channels uint8
	Source   string // path the texture is copied from
	Dest     string // path relative to the output directory
}

// TextureTable assigns dense ids to texture paths in first-seen order.
// Entries keep their insertion order; the index maps a source path to its
// position in it.
type TextureTable struct {
	Order []TextureInfo
	index map[string]int
}

// NewTextureTable returns an empty table.
func NewTextureTable() *TextureTable {
	return &TextureTable{index: make(map[string]int)}
}

// Len returns the number of unique textures.
func (t *TextureTable) Len() int { return len(t.Order) }

// Add registers source with the given channel count and returns its id.
// A source already present keeps its id and first channel count; conflict
// reports whether the counts differ.
func (t *TextureTable) Add(source string, channels uint8) (id uint32, conflict bool) {
	if i, ok := t.index[source]; ok {
		return t.Order[i].ID, t.Order[i].Channels != channels
	}
	id = uint32(len(t.Order))
	t.index[source] = len(t.Order)
	t.Order = append(t.Order, TextureInfo{ID: id, Channels: channels, Source: source})
	return id, false
}

// Lookup returns the entry for source.
func (t *TextureTable) Lookup(source string) (TextureInfo, bool) {
	i, ok := t.index[source]
	if !ok {
		return TextureInfo{}, false
	}
	return t.Order[i], true
}

// ID returns the id of source, or baked.NoID when source is empty.
// An unknown non-empty source is a programming error.
func (t *TextureTable) ID(source string) uint32 {
	if source == "" {
		return baked.NoID
	}
	info, ok := t.Lookup(source)
	if !ok {
		panicUnknownTexture(source)
	}
	return info.ID
}

// materialSlots returns the texture paths of mat indexed by baked.Slot.
func materialSlots(mat *ingest.Material) [baked.NumSlots]string {
	return [baked.NumSlots]string{
		baked.SlotBaseColor: mat.BaseColorTexture,
		baked.SlotEmissive:  mat.EmissiveTexture,
		baked.SlotRoughness: mat.RoughnessTexture,
		baked.SlotMetalness: mat.MetalnessTexture,
		baked.SlotNormalMap: mat.NormalMapTexture,
		baked.SlotAlphaMask: mat.AlphaMaskTexture,
	}
}

// FindUniqueTextures collects the distinct texture paths of all materials.
// Ids follow the order materials and then slots are visited.
func FindUniqueTextures(mdl *ingest.Model, log *zap.Logger) *TextureTable {
	if log == nil {
		log = zap.NewNop()
	}
	table := NewTextureTable()
	for i := range mdl.Materials {
		mat := &mdl.Materials[i]
		for s, source := range materialSlots(mat) {
			if source == "" {
				continue
			}
			slot := baked.Slot(s)
			if _, conflict := table.Add(source, slot.Channels()); conflict {
				info, _ := table.Lookup(source)
				log.Warn("texture used with different channel counts; keeping the first",
					zap.String("texture", source),
					zap.String("material", mat.Name),
					zap.Stringer("slot", slot),
					zap.Uint8("kept", info.Channels),
					zap.Uint8("requested", slot.Channels()))
			}
		}
	}
	return table
}

// PopulatePaths sets every destination to "<modelName>-tex/<file name>".
// Two sources sharing a file name end up on the same destination; this is
// reported but left as is.
func PopulatePaths(table *TextureTable, modelName string, log *zap.Logger) {
	if log == nil {
		log = zap.NewNop()
	}
	dir := TextureDir(modelName)
	owner := make(map[string]string, table.Len())
	for i := range table.Order {
		info := &table.Order[i]
		info.Dest = path.Join(dir, path.Base(encoding.NormalizeSlashes(info.Source)))
		if prev, ok := owner[info.Dest]; ok {
			log.Warn("texture destination collision",
				zap.String("dest", info.Dest),
				zap.String("first", prev),
				zap.String("second", info.Source))
			continue
		}
		owner[info.Dest] = info.Source
	}
}

// TextureDir returns the texture directory name for a model.
func TextureDir(modelName string) string {
	return modelName + "-tex"
}
