// Package assets resolves the files a glTF asset refers to: the set of
// files a user opened or dropped, plus sibling files next to them on disk.
package assets

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"path"
	"path/filepath"
	"sort"
	"strings"
	"sync"
)

// ErrNotFound is returned when no file matches a URI.
var ErrNotFound = errors.New("file not found")

// File is a named in-memory file.
type File struct {
	Name string
	Data []byte
}

// FileSet is the input of a load: in-memory files plus directories
// searched for relative URIs that are not among them.
type FileSet struct {
	files map[string][]byte
	names []string
	dirs  []string
	mu    sync.RWMutex
}

// NewFileSet creates a file set from in-memory files.
func NewFileSet(files ...File) *FileSet {
	fs := &FileSet{files: make(map[string][]byte)}
	for _, f := range files {
		fs.Add(f.Name, f.Data)
	}
	return fs
}

// OpenPaths reads the given files from disk and adds their directories as
// search roots, so a .gltf opened alone still finds its .bin and images.
func OpenPaths(paths ...string) (*FileSet, error) {
	fs := NewFileSet()
	for _, p := range paths {
		data, err := os.ReadFile(p)
		if err != nil {
			return nil, fmt.Errorf("reading %s: %w", p, err)
		}
		fs.Add(filepath.Base(p), data)
		fs.AddDir(filepath.Dir(p))
	}
	return fs, nil
}

// Add stores a file under its normalized name. Later files with the same
// name replace earlier ones.
func (s *FileSet) Add(name string, data []byte) {
	key := NormalizeURI(name)
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.files[key]; !ok {
		s.names = append(s.names, key)
	}
	s.files[key] = data
}

// AddDir adds a directory searched for URIs missing from memory.
func (s *FileSet) AddDir(dir string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, d := range s.dirs {
		if d == dir {
			return
		}
	}
	s.dirs = append(s.dirs, dir)
}

// Names returns the in-memory file names in insertion order.
func (s *FileSet) Names() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]string(nil), s.names...)
}

// Dirs returns the search directories.
func (s *FileSet) Dirs() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]string(nil), s.dirs...)
}

// Get returns an in-memory file by name.
func (s *FileSet) Get(name string) ([]byte, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	data, ok := s.files[NormalizeURI(name)]
	return data, ok
}

// Open resolves a relative URI: in-memory files first, then each search
// directory in the order added. URIs escaping a search directory are not
// followed.
func (s *FileSet) Open(uri string) ([]byte, error) {
	key := NormalizeURI(uri)
	if data, ok := s.Get(key); ok {
		return data, nil
	}
	if !filepath.IsLocal(filepath.FromSlash(key)) {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, uri)
	}
	for _, dir := range s.Dirs() {
		data, err := os.ReadFile(filepath.Join(dir, filepath.FromSlash(key)))
		if err == nil {
			return data, nil
		}
		if !errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("reading %s: %w", uri, err)
		}
	}
	return nil, fmt.Errorf("%w: %s", ErrNotFound, uri)
}

// Find returns the first in-memory name accepted by match.
func (s *FileSet) Find(match func(name string) bool) (string, bool) {
	for _, name := range s.Names() {
		if match(name) {
			return name, true
		}
	}
	return "", false
}

// NormalizeURI turns a relative URI into the key files are stored under:
// backslashes become slashes, percent escapes are decoded and a leading
// "./" is dropped.
func NormalizeURI(uri string) string {
	s := strings.ReplaceAll(uri, "\\", "/")
	if dec, err := url.PathUnescape(s); err == nil {
		s = dec
	}
	for strings.HasPrefix(s, "./") {
		s = s[2:]
	}
	if s == "" {
		return s
	}
	return path.Clean(s)
}

// IsRemote reports whether a URI is fetched over the network rather than
// from the file set: http(s) and protocol-relative URIs.
func IsRemote(uri string) bool {
	lower := strings.ToLower(uri)
	return strings.HasPrefix(lower, "http://") || strings.HasPrefix(lower, "https://") || strings.HasPrefix(uri, "//")
}

// IsDataURI reports whether a URI embeds its payload.
func IsDataURI(uri string) bool {
	return len(uri) > 5 && strings.EqualFold(uri[:5], "data:") && strings.Contains(uri, ",")
}

// Cache is a concurrency-safe cache for fetched remote resources, so a
// reload does not download the same buffer again.
type Cache struct {
	data map[string][]byte
	mu   sync.RWMutex

	hits   int
	misses int
}

// NewCache creates a new cache.
func NewCache() *Cache {
	return &Cache{
		data: make(map[string][]byte),
	}
}

// Get retrieves an item from cache.
func (c *Cache) Get(key string) ([]byte, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	data, ok := c.data[key]
	if ok {
		c.hits++
	} else {
		c.misses++
	}
	return data, ok
}

// Set stores an item in cache.
func (c *Cache) Set(key string, data []byte) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.data[key] = data
}

// Keys returns the cached keys, sorted.
func (c *Cache) Keys() []string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	keys := make([]string, 0, len(c.data))
	for k := range c.data {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Clear clears the cache.
func (c *Cache) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.data = make(map[string][]byte)
	c.hits = 0
	c.misses = 0
}

// Stats returns cache statistics.
func (c *Cache) Stats() (hits, misses int) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.hits, c.misses
}
