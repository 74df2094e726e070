package bake

import (
	"image"
	"image/color"
	"image/png"
	"os"
	"path/filepath"

	"go.uber.org/zap"

	"github.com/Faultbox/meshbake/internal/ingest"
	"github.com/Faultbox/meshbake/pkg/bakeerr"
)

// Fallback texture file names.
const (
	FallbackR1         = "r1.png"         // single channel, 1.0
	FallbackRGBA1111   = "rgba1111.png"   // opaque white
	FallbackRRGGB05051 = "rrggb05051.png" // flat normal (0.5, 0.5, 1)
)

var fallbackImages = map[string]func() image.Image{
	FallbackR1: func() image.Image {
		img := image.NewGray(image.Rect(0, 0, 1, 1))
		img.SetGray(0, 0, color.Gray{Y: 255})
		return img
	},
	FallbackRGBA1111: func() image.Image {
		img := image.NewNRGBA(image.Rect(0, 0, 1, 1))
		img.SetNRGBA(0, 0, color.NRGBA{R: 255, G: 255, B: 255, A: 255})
		return img
	},
	FallbackRRGGB05051: func() image.Image {
		img := image.NewNRGBA(image.Rect(0, 0, 1, 1))
		img.SetNRGBA(0, 0, color.NRGBA{R: 128, G: 128, B: 255, A: 255})
		return img
	},
}

// Fallbacks holds the source paths of the fallback textures.
type Fallbacks struct {
	R1         string
	RGBA1111   string
	RRGGB05051 string
}

// FallbacksIn returns the fallback paths inside dir, with forward slashes.
func FallbacksIn(dir string) Fallbacks {
	p := func(name string) string { return filepath.ToSlash(filepath.Join(dir, name)) }
	return Fallbacks{
		R1:         p(FallbackR1),
		RGBA1111:   p(FallbackRGBA1111),
		RRGGB05051: p(FallbackRRGGB05051),
	}
}

// EnsureFallbacks writes any missing fallback texture into dir as a 1x1
// PNG. Existing files are left untouched.
func EnsureFallbacks(dir string, log *zap.Logger) error {
	if log == nil {
		log = zap.NewNop()
	}
	if err := os.MkdirAll(dir, 0755); err != nil {
		return bakeerr.IO("creating fallback directory", err)
	}
	for name, gen := range fallbackImages {
		path := filepath.Join(dir, name)
		if _, err := os.Stat(path); err == nil {
			continue
		}
		if err := writePNG(path, gen()); err != nil {
			return err
		}
		log.Info("generated fallback texture", zap.String("path", path))
	}
	return nil
}

// writePNG encodes img into a temporary file next to path and renames it
// into place, so a concurrent bake never sees a partial file.
func writePNG(path string, img image.Image) error {
	f, err := os.CreateTemp(filepath.Dir(path), filepath.Base(path)+".*.tmp")
	if err != nil {
		return bakeerr.IO("creating "+path, err)
	}
	tmp := f.Name()
	if err := png.Encode(f, img); err != nil {
		f.Close()
		os.Remove(tmp)
		return bakeerr.IO("encoding "+path, err)
	}
	if err := f.Close(); err != nil {
		os.Remove(tmp)
		return bakeerr.IO("closing "+tmp, err)
	}
	if err := os.Chmod(tmp, 0644); err != nil {
		os.Remove(tmp)
		return bakeerr.IO("chmod "+tmp, err)
	}
	if err := os.Rename(tmp, path); err != nil {
		os.Remove(tmp)
		return bakeerr.IO("renaming "+tmp, err)
	}
	return nil
}

// Normalize fills every unset mandatory texture slot with a fallback.
// The alpha mask is never defaulted.
func Normalize(mdl *ingest.Model, fb Fallbacks) {
	for i := range mdl.Materials {
		mat := &mdl.Materials[i]
		if mat.BaseColorTexture == "" {
			mat.BaseColorTexture = fb.RGBA1111
		}
		if mat.EmissiveTexture == "" {
			mat.EmissiveTexture = fb.R1
		}
		if mat.RoughnessTexture == "" {
			mat.RoughnessTexture = fb.R1
		}
		if mat.MetalnessTexture == "" {
			mat.MetalnessTexture = fb.R1
		}
		if mat.NormalMapTexture == "" {
			mat.NormalMapTexture = fb.RRGGB05051
		}
	}
}
