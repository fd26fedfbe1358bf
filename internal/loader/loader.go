// Package loader turns a set of files into a renderable scene: it finds the
// glTF or GLB file, resolves every buffer and image it references, builds
// the scene and runs the postprocessing passes.
package loader

import (
	"context"
	"errors"
	"fmt"
	"image"
	"net/url"
	"path"
	"strings"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	"golang.org/x/text/encoding/unicode"
	"golang.org/x/text/transform"

	"github.com/Faultbox/gltfview/internal/assets"
	"github.com/Faultbox/gltfview/internal/engine/texture"
	"github.com/Faultbox/gltfview/internal/logger"
	"github.com/Faultbox/gltfview/internal/scene"
	"github.com/Faultbox/gltfview/pkg/gltf"
)

var (
	// ErrNoSceneFile is returned when the input holds no .gltf or .glb file.
	ErrNoSceneFile = errors.New(`no ".gltf" or ".glb" file found`)
	// ErrMissingFile is returned when a relative URI matches no file.
	ErrMissingFile = errors.New("referenced file not found")
	// ErrFetchFailed is returned when a remote resource cannot be fetched.
	ErrFetchFailed = errors.New("fetch failed")
)

// File extensions recognised as scene files.
const (
	ExtGLTF = ".gltf"
	ExtGLB  = ".glb"
)

// maxConcurrentFetches bounds the buffer and image fan-out.
const maxConcurrentFetches = 8

// Options controls a load.
type Options struct {
	// AllowNetwork permits http(s) buffer and image URIs.
	AllowNetwork bool
	// MaxTextureSize downscales larger images; 0 keeps them as decoded.
	MaxTextureSize int
	// FitToView wraps the scene so it is centered with a longest side of 1.
	FitToView bool
	// Fetcher resolves remote URIs; nil uses an HTTPFetcher.
	Fetcher Fetcher
	// BaseURL, when set, resolves relative URIs missing from the file set
	// against a remote location.
	BaseURL string
}

// DefaultOptions returns the options the viewer loads with.
func DefaultOptions() Options {
	return Options{AllowNetwork: true, FitToView: true}
}

// Result is a successfully loaded scene.
type Result struct {
	Scene    *scene.Scene
	Source   string
	Binary   bool
	Stats    scene.Stats
	Duration time.Duration
}

// FindSceneFile picks the scene file in files: the first name ending in
// .gltf or .glb, else the first file carrying the GLB magic.
func FindSceneFile(files *assets.FileSet) (string, error) {
	if name, ok := files.Find(IsSceneFile); ok {
		return name, nil
	}
	if name, ok := files.Find(func(n string) bool {
		data, _ := files.Get(n)
		return gltf.IsGLB(data)
	}); ok {
		return name, nil
	}
	return "", ErrNoSceneFile
}

// IsSceneFile reports whether name has a scene file extension.
func IsSceneFile(name string) bool {
	ext := strings.ToLower(path.Ext(name))
	return ext == ExtGLTF || ext == ExtGLB
}

// Load builds a scene from files. Structural errors abort the whole load;
// images that fail to load are only recorded in Scene.MissingImages.
func Load(ctx context.Context, files *assets.FileSet, opts Options) (*Result, error) {
	start := time.Now()
	log := logger.Named("loader")

	name, err := FindSceneFile(files)
	if err != nil {
		return nil, err
	}
	data, _ := files.Get(name)

	doc, bin, binary, err := Decode(name, data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", name, err)
	}

	if opts.Fetcher == nil {
		opts.Fetcher = NewHTTPFetcher()
	}
	r := &resolver{files: files, opts: opts, log: log}

	buffers, err := r.buffers(ctx, doc, bin)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", name, err)
	}
	images, missing := r.images(ctx, doc, buffers)

	s, err := scene.New(doc, buffers, images)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", name, err)
	}
	s.MissingImages = missing
	if s.Name == "" {
		s.Name = name
	}

	st, err := scene.Postprocess(s, scene.Options{FitToView: opts.FitToView})
	if err != nil {
		return nil, fmt.Errorf("%s: %w", name, err)
	}

	res := &Result{Scene: s, Source: name, Binary: binary, Stats: st, Duration: time.Since(start)}
	log.Info("scene loaded",
		zap.String("file", name),
		zap.Bool("binary", binary),
		zap.Int("buffers", len(buffers)),
		zap.Int("images", len(images)),
		zap.Int("missing_images", len(missing)),
		zap.Int("nodes", len(s.Nodes)),
		zap.Int("primitives", s.PrimitiveCount()),
		zap.Duration("took", res.Duration),
	)
	return res, nil
}

// LoadPaths opens the files at paths, with their directories as search
// roots for sibling resources, and loads them.
func LoadPaths(ctx context.Context, opts Options, paths ...string) (*Result, error) {
	files, err := assets.OpenPaths(paths...)
	if err != nil {
		return nil, err
	}
	return Load(ctx, files, opts)
}

// LoadURL downloads a scene file and loads it, fetching the resources it
// references relative to the same location.
func LoadURL(ctx context.Context, opts Options, rawURL string) (*Result, error) {
	u, err := url.Parse(rawURL)
	if err != nil || !assets.IsRemote(rawURL) {
		return nil, fmt.Errorf("%w: %s: not an http(s) url", ErrFetchFailed, rawURL)
	}
	if !opts.AllowNetwork {
		return nil, fmt.Errorf("%w: %s: network access disabled", ErrFetchFailed, rawURL)
	}
	if opts.Fetcher == nil {
		opts.Fetcher = NewHTTPFetcher()
	}
	data, err := opts.Fetcher.Fetch(ctx, rawURL)
	if err != nil {
		if !errors.Is(err, ErrFetchFailed) {
			err = fmt.Errorf("%w: %s: %v", ErrFetchFailed, rawURL, err)
		}
		return nil, err
	}
	opts.BaseURL = rawURL
	name := path.Base(u.Path)
	return Load(ctx, assets.NewFileSet(assets.File{Name: name, Data: data}), opts)
}

// Decode parses a scene file. GLB is chosen by magic bytes or extension;
// anything else is read as JSON after stripping a byte order mark.
func Decode(name string, data []byte) (doc *gltf.Document, bin []byte, binary bool, err error) {
	if gltf.IsGLB(data) || strings.EqualFold(path.Ext(name), ExtGLB) {
		glb, err := gltf.ParseGLB(data)
		if err != nil {
			return nil, nil, true, err
		}
		return glb.Document, glb.Binary, true, nil
	}

	text, _, err := transform.Bytes(unicode.BOMOverride(transform.Nop), data)
	if err != nil {
		return nil, nil, false, fmt.Errorf("%w: %v", gltf.ErrMalformedAsset, err)
	}
	doc, err = gltf.Unmarshal(text)
	if err != nil {
		return nil, nil, false, err
	}
	return doc, nil, false, nil
}

type resolver struct {
	files *assets.FileSet
	opts  Options
	log   *zap.Logger
}

// buffers resolves every buffer concurrently. The first failure cancels
// the rest.
func (r *resolver) buffers(ctx context.Context, doc *gltf.Document, bin []byte) ([][]byte, error) {
	out := make([][]byte, len(doc.Buffers))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(maxConcurrentFetches)
	for i, b := range doc.Buffers {
		g.Go(func() error {
			if b.URI == "" {
				if bin == nil {
					return fmt.Errorf("%w: buffer %d has no uri and there is no binary chunk", gltf.ErrMalformedAsset, i)
				}
				out[i] = bin
				return nil
			}
			data, _, err := r.resolve(gctx, b.URI)
			if err != nil {
				return fmt.Errorf("buffer %d: %w", i, err)
			}
			out[i] = data
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return out, nil
}

// images decodes every image concurrently. Failures leave a nil entry and
// add the image's URI (or a synthetic name) to missing.
func (r *resolver) images(ctx context.Context, doc *gltf.Document, buffers [][]byte) ([]*image.RGBA, []string) {
	out := make([]*image.RGBA, len(doc.Images))
	errs := make([]error, len(doc.Images))

	var g errgroup.Group
	g.SetLimit(maxConcurrentFetches)
	for i, img := range doc.Images {
		g.Go(func() error {
			out[i], errs[i] = r.image(ctx, doc, buffers, img)
			return nil
		})
	}
	_ = g.Wait()

	var missing []string
	for i, err := range errs {
		if err == nil {
			continue
		}
		id := doc.Images[i].URI
		if id == "" || assets.IsDataURI(id) {
			id = fmt.Sprintf("image[%d]", i)
		}
		missing = append(missing, id)
		r.log.Warn("image unavailable", zap.String("image", id), zap.Error(err))
	}
	return out, missing
}

func (r *resolver) image(ctx context.Context, doc *gltf.Document, buffers [][]byte, img gltf.Image) (*image.RGBA, error) {
	var (
		data     []byte
		mimeType = img.MimeType
		err      error
	)
	switch {
	case img.URI != "":
		var mt string
		data, mt, err = r.resolve(ctx, img.URI)
		if err != nil {
			return nil, err
		}
		if mimeType == "" {
			mimeType = mt
		}
	case img.BufferView != nil:
		v := doc.BufferViews[*img.BufferView]
		buf := buffers[v.Buffer]
		if v.ByteOffset < 0 || v.ByteOffset+v.ByteLength > len(buf) {
			return nil, fmt.Errorf("%w: image buffer view %d outside buffer", gltf.ErrMalformedAsset, *img.BufferView)
		}
		data = buf[v.ByteOffset : v.ByteOffset+v.ByteLength]
	default:
		return nil, fmt.Errorf("%w: image has neither uri nor bufferView", gltf.ErrMalformedAsset)
	}

	rgba, err := texture.Decode(data, mimeType)
	if err != nil {
		return nil, err
	}
	return texture.Fit(rgba, r.opts.MaxTextureSize), nil
}

// resolve returns the bytes behind a URI and, for data URIs, the declared
// media type.
func (r *resolver) resolve(ctx context.Context, uri string) ([]byte, string, error) {
	switch {
	case assets.IsDataURI(uri):
		mt, data, err := decodeDataURI(uri)
		if err != nil {
			return nil, "", fmt.Errorf("%w: %v", gltf.ErrMalformedAsset, err)
		}
		return data, mt, nil
	case assets.IsRemote(uri):
		if !r.opts.AllowNetwork {
			return nil, "", fmt.Errorf("%w: %s: network access disabled", ErrFetchFailed, uri)
		}
		data, err := r.opts.Fetcher.Fetch(ctx, uri)
		if err != nil {
			if !errors.Is(err, ErrFetchFailed) {
				err = fmt.Errorf("%w: %s: %v", ErrFetchFailed, uri, err)
			}
			return nil, "", err
		}
		return data, "", nil
	default:
		data, err := r.files.Open(uri)
		if err != nil {
			if !errors.Is(err, assets.ErrNotFound) {
				return nil, "", err
			}
			if r.opts.BaseURL == "" {
				return nil, "", fmt.Errorf("%w: %s", ErrMissingFile, uri)
			}
			abs, err := resolveReference(r.opts.BaseURL, uri)
			if err != nil {
				return nil, "", fmt.Errorf("%w: %s: %v", ErrMissingFile, uri, err)
			}
			return r.resolve(ctx, abs)
		}
		return data, "", nil
	}
}

// resolveReference resolves a relative URI against base the way a browser
// would.
func resolveReference(base, uri string) (string, error) {
	b, err := url.Parse(base)
	if err != nil {
		return "", err
	}
	ref, err := url.Parse(strings.ReplaceAll(uri, "\\", "/"))
	if err != nil {
		return "", err
	}
	return b.ResolveReference(ref).String(), nil
}
