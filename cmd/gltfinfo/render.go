package main

import (
	"context"
	"fmt"
	"io"

	"github.com/Faultbox/gltfview/internal/assets"
	"github.com/Faultbox/gltfview/internal/config"
	"github.com/Faultbox/gltfview/internal/gpu"
	"github.com/Faultbox/gltfview/internal/viewer"
	"github.com/Faultbox/gltfview/pkg/gltf"
)

var modeNames = map[int]string{
	gltf.ModePoints:        "POINTS",
	gltf.ModeLines:         "LINES",
	gltf.ModeLineLoop:      "LINE_LOOP",
	gltf.ModeLineStrip:     "LINE_STRIP",
	gltf.ModeTriangles:     "TRIANGLES",
	gltf.ModeTriangleStrip: "TRIANGLE_STRIP",
	gltf.ModeTriangleFan:   "TRIANGLE_FAN",
}

func modeName(mode int) string {
	if name, ok := modeNames[mode]; ok {
		return name
	}
	return fmt.Sprintf("mode(%d)", mode)
}

// cmdRender draws one frame through a recording device, the same path the
// viewer takes on screen, and lists what it would have sent to the GPU.
func cmdRender(w io.Writer, args []string) error {
	fs, common := newFlagSet("render")
	width := fs.Int("w", 1280, "Viewport width")
	height := fs.Int("h", 720, "Viewport height")
	fs.Parse(args)
	if fs.NArg() < 1 {
		return fmt.Errorf("usage: gltfinfo render [-w width] [-h height] <file>")
	}

	cfg := viewer.ConfigFrom(config.Default())
	cfg.Loader = common.options(true)

	var reported []error
	dev := gpu.NewRecorder()
	v := viewer.New(dev, cfg, func(err error) { reported = append(reported, err) })
	defer v.Close()
	v.Resize(*width, *height)

	req := viewer.PathsRequest(fs.Arg(0))
	if assets.IsRemote(fs.Arg(0)) {
		req = viewer.LoadRequest{URL: fs.Arg(0)}
	}
	if _, err := v.Load(context.Background(), req); err != nil {
		return err
	}
	v.Frame()

	st := v.Renderer().Stats()
	fmt.Fprintf(w, "Viewport:   %dx%d\n", dev.ViewportSize[0], dev.ViewportSize[1])
	fmt.Fprintf(w, "Draw calls: %d (%d primitives skipped)\n", st.DrawCalls, st.SkippedPrimitives)
	fmt.Fprintf(w, "Buffers:    %d\n", dev.Counts.BuffersCreated)
	fmt.Fprintf(w, "Textures:   %d\n", dev.Counts.TexturesCreated)
	fmt.Fprintf(w, "Programs:   %d (%d shaders)\n", dev.Counts.ProgramsLinked, dev.Counts.ShadersCompiled)
	if st.Animating {
		fmt.Fprintln(w, "Animated:   yes")
	}
	fmt.Fprintln(w)

	for i, dc := range dev.Draws {
		kind := "arrays"
		if dc.Indexed {
			kind = "elements"
		}
		fmt.Fprintf(w, "  #%-4d program %-3d %-14s %-8s count=%-7d attribs=%d", i, dc.Program, modeName(int(dc.Mode)), kind, dc.Count, len(dc.Attribs))
		if dc.Blend.Enabled {
			fmt.Fprint(w, " blend")
		}
		if !dc.Cull {
			fmt.Fprint(w, " double-sided")
		}
		fmt.Fprintln(w)
	}

	for _, err := range reported {
		fmt.Fprintf(w, "Warning: %v\n", err)
	}
	return nil
}
