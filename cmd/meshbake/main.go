// meshbake converts OBJ models into baked mesh files ready for the renderer.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/h2non/filetype"
	"go.uber.org/zap"

	"github.com/Faultbox/meshbake/internal/bake"
	"github.com/Faultbox/meshbake/internal/config"
	"github.com/Faultbox/meshbake/internal/logger"
	"github.com/Faultbox/meshbake/pkg/baked"
	"github.com/Faultbox/meshbake/pkg/zstream"
)

func main() {
	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}

	command := os.Args[1]
	args := os.Args[2:]

	var err error
	switch command {
	case "bake", "b":
		err = cmdBake(args)
	case "watch", "w":
		err = cmdWatch(args)
	case "inspect", "i":
		err = cmdInspect(args)
	case "compress", "c":
		err = cmdCompress(args)
	case "help", "-h", "--help":
		printUsage()
	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n", command)
		printUsage()
		os.Exit(1)
	}

	logger.Sync()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func printUsage() {
	fmt.Println(`meshbake - OBJ to baked mesh converter

Usage:
  meshbake <command> [options]

Commands:
  bake [flags] [input output]      Bake one model, or every model in the config
  watch [flags] [input output]     Rebake whenever the sources change
  inspect <file.bakedmesh>         Show the contents of a baked file
  compress [-format f] <file.obj>  Compress an OBJ next to itself

Flags for bake and watch:
  -config path        Config file (.yaml or .toml)
  -tolerance t        Weld position tolerance (0 = exact)
  -jobs n             Models baked concurrently
  -compression f      Source compression: zstd or lz4
  -fallback-dir dir   Directory holding fallback textures
  -log-file path      Also log to this file
  -debug              Enable debug logging

Examples:
  meshbake bake assets-src/sponza/sponza.obj assets/sponza.bakedmesh
  meshbake bake -config meshbake.yaml -jobs 4
  meshbake inspect assets/sponza.bakedmesh`)
}

// setup parses the shared bake flags, loads the config and initializes
// logging. Positional input and output replace the configured models.
func setup(name string, args []string) (*config.Config, []bake.Job, error) {
	fs := flag.NewFlagSet(name, flag.ExitOnError)
	var flags config.Flags
	flags.Register(fs)
	fs.Parse(args)

	cfg, err := config.Load(&flags)
	if err != nil {
		return nil, nil, err
	}
	if err := logger.Init(cfg.Logging.Level, cfg.Logging.LogFile); err != nil {
		return nil, nil, err
	}

	switch fs.NArg() {
	case 0:
	case 2:
		cfg.Models = []config.ModelConfig{{Input: fs.Arg(0), Output: fs.Arg(1)}}
	default:
		return nil, nil, fmt.Errorf("usage: meshbake %s [flags] [input output]", name)
	}
	if len(cfg.Models) == 0 {
		return nil, nil, errors.New("no models to bake: pass input and output or list models in the config")
	}
	return cfg, bake.JobsFromConfig(cfg), nil
}

func cmdBake(args []string) error {
	cfg, jobs, err := setup("bake", args)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	results, err := bake.RunAll(ctx, jobs, bake.OptionsFromConfig(cfg), cfg.Bake.Jobs, logger.Log)
	for _, r := range results {
		if r.Err != nil {
			continue
		}
		fmt.Printf("%s: %d meshes, %d vertices (%d KB -> %d KB), %d textures, %d bytes in %s\n",
			r.Job.Output, r.Stats.Meshes, r.Stats.IndexedVertices,
			r.Stats.SoupKB(), r.Stats.IndexedKB(), r.Stats.UniqueTextures,
			r.Stats.BytesWritten, r.Stats.Duration.Round(time.Millisecond))
	}
	return err
}

func cmdWatch(args []string) error {
	cfg, jobs, err := setup("watch", args)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	opts := bake.OptionsFromConfig(cfg)
	// bake once up front so the outputs exist before the first change
	if _, err := bake.RunAll(ctx, jobs, opts, cfg.Bake.Jobs, logger.Log); err != nil {
		logger.Warn("initial bake failed", zap.Error(err))
	}

	w := &bake.Watcher{
		Jobs:    jobs,
		Options: opts,
		Log:     logger.Log,
		OnResult: func(r bake.Result) {
			if r.Err == nil {
				logger.Info("rebaked", zap.String("output", r.Job.Output), zap.Duration("took", r.Stats.Duration))
			}
		},
	}
	return w.Watch(ctx)
}

func cmdInspect(args []string) error {
	fs := flag.NewFlagSet("inspect", flag.ExitOnError)
	debug := fs.Bool("debug", false, "Enable debug logging")
	fs.Parse(args)

	if fs.NArg() < 1 {
		return errors.New("usage: meshbake inspect <file.bakedmesh>")
	}
	level := "warn"
	if *debug {
		level = "debug"
	}
	if err := logger.Init(level, ""); err != nil {
		return err
	}

	mdl, err := baked.LoadFile(fs.Arg(0), logger.Log)
	if err != nil {
		return err
	}
	printModel(os.Stdout, fs.Arg(0), mdl)
	return nil
}

func printModel(w io.Writer, path string, mdl *baked.Model) {
	vertices, indices := mdl.Counts()
	fmt.Fprintf(w, "File:      %s\n", path)
	fmt.Fprintf(w, "Textures:  %d\n", len(mdl.Textures))
	fmt.Fprintf(w, "Materials: %d\n", len(mdl.Materials))
	fmt.Fprintf(w, "Meshes:    %d\n", len(mdl.Meshes))
	fmt.Fprintf(w, "Vertices:  %d\n", vertices)
	fmt.Fprintf(w, "Triangles: %d\n", indices/3)

	fmt.Fprintln(w)
	fmt.Fprintln(w, "Textures:")
	for id, tex := range mdl.Textures {
		fmt.Fprintf(w, "  %4d  %dch  %-40s %s\n", id, tex.Channels, tex.Path, textureStatus(mdl.TexturePath(uint32(id))))
	}

	fmt.Fprintln(w)
	fmt.Fprintln(w, "Materials:")
	for id, mat := range mdl.Materials {
		alpha := ""
		if mat.HasAlphaMask() {
			alpha = "  alpha-masked"
		}
		fmt.Fprintf(w, "  %4d  %-24s base %.2f %.2f %.2f  rough %.2f  metal %.2f%s\n",
			id, mat.Name, mat.BaseColor.X, mat.BaseColor.Y, mat.BaseColor.Z,
			mat.Roughness, mat.Metalness, alpha)
	}

	fmt.Fprintln(w)
	fmt.Fprintln(w, "Meshes:")
	for _, mesh := range mdl.Meshes {
		fmt.Fprintf(w, "  %-32s material %-4d %8d vertices %8d triangles\n",
			mesh.Name, mesh.MaterialID, mesh.VertexCount(), len(mesh.Indices)/3)
	}
}

// textureStatus reports whether a copied texture is present and readable
// as an image.
func textureStatus(path string) string {
	f, err := os.Open(path)
	if err != nil {
		return "(missing)"
	}
	defer f.Close()

	head := make([]byte, 261)
	n, _ := io.ReadFull(f, head)
	kind, err := filetype.Match(head[:n])
	if err != nil || kind == filetype.Unknown {
		return "(unknown format)"
	}
	return kind.Extension
}

func cmdCompress(args []string) error {
	fs := flag.NewFlagSet("compress", flag.ExitOnError)
	format := fs.String("format", "zstd", "Compression format: zstd or lz4")
	fs.Parse(args)

	if fs.NArg() < 1 {
		return errors.New("usage: meshbake compress [-format zstd|lz4] <file.obj>")
	}
	f, err := zstream.ParseFormat(*format)
	if err != nil {
		return err
	}

	for _, src := range fs.Args() {
		if filepath.Ext(src) != ".obj" {
			return fmt.Errorf("%s: not an .obj file", src)
		}
		dst := zstream.CompressedPath(src, f)
		if err := zstream.Compress(src, dst, f); err != nil {
			return err
		}
		fmt.Printf("%s -> %s\n", src, dst)
	}
	return nil
}
