// gltfinfo is a CLI utility for inspecting glTF 2.0 assets.
package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/Faultbox/gltfview/internal/assets"
	"github.com/Faultbox/gltfview/internal/loader"
	"github.com/Faultbox/gltfview/internal/logger"
	"github.com/Faultbox/gltfview/internal/scene"
	"github.com/Faultbox/gltfview/pkg/gltf"
	"github.com/Faultbox/gltfview/pkg/math"
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
	case "info":
		err = cmdInfo(os.Stdout, args)
	case "nodes", "tree":
		err = cmdNodes(os.Stdout, args)
	case "validate", "check":
		err = cmdValidate(os.Stdout, args)
	case "render":
		err = cmdRender(os.Stdout, args)
	case "config":
		err = cmdConfig(os.Stdout, args)
	case "help", "-h", "--help":
		printUsage()
	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n", command)
		printUsage()
		os.Exit(1)
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func printUsage() {
	fmt.Println(`gltfinfo - glTF 2.0 asset inspector

Usage:
  gltfinfo <command> [options] <file>

Commands:
  info <file>              Show document and scene statistics
  nodes <file>             Print the node hierarchy
  validate <file>...       Load and postprocess, report problems
  render <file>            Draw one frame headlessly and list the draw calls
  config [-o path|-user]   Print or write the default gltfview.yaml

Options (all commands):
  -offline                 Do not fetch http(s) resources
  -v                       Verbose logging

Examples:
  gltfinfo info BoxTextured.glb
  gltfinfo nodes -offline CesiumMan.gltf
  gltfinfo validate models/*.glb
  gltfinfo render -w 1920 -h 1080 Fox.glb`)
}

// commonFlags registers the options every command accepts.
type commonFlags struct {
	offline *bool
	verbose *bool
}

func newFlagSet(name string) (*flag.FlagSet, commonFlags) {
	fs := flag.NewFlagSet(name, flag.ExitOnError)
	return fs, commonFlags{
		offline: fs.Bool("offline", false, "Do not fetch http(s) resources"),
		verbose: fs.Bool("v", false, "Verbose logging"),
	}
}

func (c commonFlags) options(fit bool) loader.Options {
	if *c.verbose {
		_ = logger.Init("debug", "")
	}
	opts := loader.DefaultOptions()
	opts.AllowNetwork = !*c.offline
	opts.FitToView = fit
	return opts
}

// load opens a scene file, or downloads it when given a URL.
func load(opts loader.Options, target string) (*loader.Result, error) {
	if assets.IsRemote(target) {
		return loader.LoadURL(context.Background(), opts, target)
	}
	return loader.LoadPaths(context.Background(), opts, target)
}

func cmdInfo(w io.Writer, args []string) error {
	fs, common := newFlagSet("info")
	fs.Parse(args)
	if fs.NArg() < 1 {
		return fmt.Errorf("usage: gltfinfo info <file>")
	}

	res, err := load(common.options(false), fs.Arg(0))
	if err != nil {
		return err
	}
	s := res.Scene

	format := "glTF (JSON)"
	if res.Binary {
		format = "GLB (binary)"
	}
	fmt.Fprintf(w, "File:       %s\n", fs.Arg(0))
	fmt.Fprintf(w, "Format:     %s\n", format)
	fmt.Fprintf(w, "Scene:      %s\n", s.Name)
	fmt.Fprintf(w, "Load time:  %s\n", res.Duration.Round(time.Microsecond))
	fmt.Fprintln(w)
	fmt.Fprintf(w, "  %-12s %d (%d roots)\n", "nodes", len(s.Nodes), len(s.RootNodes))
	fmt.Fprintf(w, "  %-12s %d (%d primitives)\n", "meshes", len(s.Meshes), s.PrimitiveCount())
	fmt.Fprintf(w, "  %-12s %d\n", "materials", len(s.Materials))
	fmt.Fprintf(w, "  %-12s %d\n", "textures", len(s.Textures))
	fmt.Fprintf(w, "  %-12s %d (%d missing)\n", "images", len(s.Images), len(s.MissingImages))
	fmt.Fprintf(w, "  %-12s %d\n", "skins", len(s.Skins))
	fmt.Fprintf(w, "  %-12s %d\n", "animations", len(s.Animations))
	fmt.Fprintf(w, "  %-12s %d\n", "accessors", len(s.Accessors))

	modes := make(map[int]int)
	semantics := make(map[string]int)
	for _, m := range s.Meshes {
		for _, p := range m.Primitives {
			modes[p.Mode]++
			for sem := range p.Attributes {
				semantics[sem]++
			}
		}
	}
	if len(semantics) > 0 {
		fmt.Fprintln(w)
		fmt.Fprintln(w, "Attributes:")
		names := make([]string, 0, len(semantics))
		for sem := range semantics {
			names = append(names, sem)
		}
		sort.Strings(names)
		for _, sem := range names {
			fmt.Fprintf(w, "  %-12s %d\n", sem, semantics[sem])
		}
	}

	if len(modes) > 0 {
		fmt.Fprintln(w)
		fmt.Fprintln(w, "Primitive modes:")
		for mode := gltf.ModePoints; mode <= gltf.ModeTriangleFan; mode++ {
			if n := modes[mode]; n > 0 {
				fmt.Fprintf(w, "  %-14s %d\n", modeName(mode), n)
			}
		}
	}

	fmt.Fprintln(w)
	fmt.Fprintf(w, "Generated:  %d normal sets, %d tangent sets\n", res.Stats.GeneratedNormals, res.Stats.GeneratedTangents)
	for _, name := range s.MissingImages {
		fmt.Fprintf(w, "Missing:    %s\n", name)
	}
	return nil
}

func cmdNodes(w io.Writer, args []string) error {
	fs, common := newFlagSet("nodes")
	fs.Parse(args)
	if fs.NArg() < 1 {
		return fmt.Errorf("usage: gltfinfo nodes <file>")
	}

	res, err := load(common.options(false), fs.Arg(0))
	if err != nil {
		return err
	}
	s := res.Scene
	for i, root := range s.RootNodes {
		printNode(w, s, root, "", i == len(s.RootNodes)-1, 0)
	}
	return nil
}

func printNode(w io.Writer, s *scene.Scene, idx int, prefix string, last bool, depth int) {
	branch, indent := "├── ", "│   "
	if last {
		branch, indent = "└── ", "    "
	}
	if depth > len(s.Nodes) {
		fmt.Fprintf(w, "%s%s...\n", prefix, branch)
		return
	}

	n := &s.Nodes[idx]
	name := n.Name
	if name == "" {
		name = fmt.Sprintf("node %d", idx)
	}
	var tags []string
	if n.HasMesh() {
		m := s.Meshes[n.Mesh]
		tags = append(tags, fmt.Sprintf("mesh %d %q, %d prim", n.Mesh, m.Name, len(m.Primitives)))
	}
	if n.HasSkin() {
		tags = append(tags, fmt.Sprintf("skin %d, %d joints", n.Skin, len(s.Skins[n.Skin].Joints)))
	}
	if n.Translation != (math.Vec3{}) {
		t := n.Translation
		tags = append(tags, fmt.Sprintf("t=(%.3g %.3g %.3g)", t.X, t.Y, t.Z))
	}
	line := prefix + branch + name
	if len(tags) > 0 {
		line += " [" + strings.Join(tags, "; ") + "]"
	}
	fmt.Fprintln(w, line)

	for i, c := range n.Children {
		printNode(w, s, c, prefix+indent, i == len(n.Children)-1, depth+1)
	}
}

func cmdValidate(w io.Writer, args []string) error {
	fs, common := newFlagSet("validate")
	fs.Parse(args)
	if fs.NArg() < 1 {
		return fmt.Errorf("usage: gltfinfo validate <file>...")
	}

	opts := common.options(true)
	failed := 0
	for _, target := range fs.Args() {
		res, err := load(opts, target)
		if err != nil {
			failed++
			fmt.Fprintf(w, "FAIL  %s: %v\n", filepath.Base(target), err)
			continue
		}
		status := "OK  "
		if len(res.Scene.MissingImages) > 0 {
			status = "WARN"
		}
		fmt.Fprintf(w, "%s  %s (%d nodes, %d primitives", status, filepath.Base(target), len(res.Scene.Nodes), res.Scene.PrimitiveCount())
		if n := len(res.Scene.MissingImages); n > 0 {
			fmt.Fprintf(w, ", %d missing images", n)
		}
		fmt.Fprintln(w, ")")
	}
	if failed > 0 {
		return fmt.Errorf("%d of %d files failed", failed, fs.NArg())
	}
	return nil
}
