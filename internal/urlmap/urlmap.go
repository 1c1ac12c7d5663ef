// Package urlmap translates between local file paths and the URLs a browser
// reports for scripts.
package urlmap

import (
	"fmt"
	"net/url"
	"path/filepath"
	"strings"

	"pkt.systems/ffdebug/schema"
)

const fileScheme = "file://"

// Resolver maps local paths to browser URLs and back.
type Resolver interface {
	ToURL(path string) string
	// ToPath reports false when url does not name a file under the project root.
	ToPath(url string) (string, bool)
}

// FileResolver maps file:// URLs onto the local filesystem.
type FileResolver struct {
	root string
}

// NewFileResolver returns a resolver accepting paths under root. An empty
// root accepts every local path.
func NewFileResolver(root string) *FileResolver {
	if root != "" {
		root = filepath.Clean(root)
	}
	return &FileResolver{root: root}
}

// Root returns the project root.
func (r *FileResolver) Root() string {
	return r.root
}

func (r *FileResolver) ToURL(path string) string {
	if strings.Contains(path, "://") {
		return path
	}
	return fileScheme + (&url.URL{Path: filepath.ToSlash(path)}).EscapedPath()
}

func (r *FileResolver) ToPath(u string) (string, bool) {
	path := u
	if strings.HasPrefix(u, fileScheme+"/") {
		unescaped, err := url.PathUnescape(strings.TrimPrefix(u, fileScheme))
		if err != nil {
			return "", false
		}
		path = filepath.FromSlash(unescaped)
	} else if strings.Contains(u, "://") {
		return "", false
	}
	if r.root == "" {
		return path, true
	}
	return path, within(r.root, path)
}

// HTTPResolver maps URLs under a base URL onto a local web root.
type HTTPResolver struct {
	root string
	base string
}

// NewHTTPResolver binds base (an origin or directory URL) to the local root.
func NewHTTPResolver(root, base string) *HTTPResolver {
	if !strings.HasSuffix(base, "/") {
		base += "/"
	}
	return &HTTPResolver{root: filepath.Clean(root), base: base}
}

// Root returns the local web root.
func (r *HTTPResolver) Root() string {
	return r.root
}

// Base returns the URL served from the web root.
func (r *HTTPResolver) Base() string {
	return r.base
}

func (r *HTTPResolver) ToURL(path string) string {
	if strings.Contains(path, "://") {
		return path
	}
	rel := path
	if filepath.IsAbs(path) {
		if p, err := filepath.Rel(r.root, path); err == nil {
			rel = p
		}
	}
	rel = filepath.ToSlash(rel)
	for {
		switch {
		case strings.HasPrefix(rel, "./"):
			rel = rel[2:]
		case strings.HasPrefix(rel, "../"):
			rel = rel[3:]
		case rel == "." || rel == "..":
			rel = ""
		default:
			return r.base + (&url.URL{Path: rel}).EscapedPath()
		}
	}
}

func (r *HTTPResolver) ToPath(u string) (string, bool) {
	if !strings.HasPrefix(u, r.base) {
		return "", false
	}
	rel := strings.TrimPrefix(u, r.base)
	if i := strings.IndexAny(rel, "?#"); i >= 0 {
		rel = rel[:i]
	}
	unescaped, err := url.PathUnescape(rel)
	if err != nil {
		return "", false
	}
	path := filepath.Join(r.root, filepath.FromSlash(unescaped))
	return path, within(r.root, path)
}

// Select picks the resolver for a launch target. A program URL other than
// file:// needs a web root; anything else resolves against webRoot or the
// program's directory.
func Select(program, webRoot string) (Resolver, error) {
	if isRemote(program) {
		if webRoot == "" {
			return nil, fmt.Errorf("%w: webRoot is required when program is a URL (%s)", schema.ErrConfiguration, program)
		}
		parsed, err := url.Parse(program)
		if err != nil || parsed.Host == "" {
			return nil, fmt.Errorf("%w: program URL %q: %v", schema.ErrConfiguration, program, err)
		}
		root, err := filepath.Abs(webRoot)
		if err != nil {
			return nil, fmt.Errorf("%w: webRoot: %v", schema.ErrConfiguration, err)
		}
		return NewHTTPResolver(root, parsed.Scheme+"://"+parsed.Host+"/"), nil
	}
	root := webRoot
	if root == "" {
		local, err := LocalPath(program)
		if err != nil {
			return nil, err
		}
		root = filepath.Dir(local)
	}
	root, err := filepath.Abs(root)
	if err != nil {
		return nil, fmt.Errorf("%w: root: %v", schema.ErrConfiguration, err)
	}
	return NewFileResolver(root), nil
}

// TargetURL returns the tab URL a launched program is expected to load.
func TargetURL(program string, r Resolver) (string, error) {
	if isRemote(program) {
		return program, nil
	}
	local, err := LocalPath(program)
	if err != nil {
		return "", err
	}
	return r.ToURL(local), nil
}

// LocalPath returns the absolute path of a local program given as a path or
// file:// URL.
func LocalPath(program string) (string, error) {
	path := program
	if strings.HasPrefix(program, fileScheme) {
		unescaped, err := url.PathUnescape(strings.TrimPrefix(program, fileScheme))
		if err != nil {
			return "", fmt.Errorf("%w: program %q: %v", schema.ErrConfiguration, program, err)
		}
		path = filepath.FromSlash(unescaped)
	}
	abs, err := filepath.Abs(path)
	if err != nil {
		return "", fmt.Errorf("%w: program %q: %v", schema.ErrConfiguration, program, err)
	}
	return abs, nil
}

func isRemote(program string) bool {
	return strings.Contains(program, "://") && !strings.HasPrefix(program, fileScheme)
}

func within(root, path string) bool {
	rel, err := filepath.Rel(root, path)
	if err != nil {
		return false
	}
	return rel != ".." && !strings.HasPrefix(rel, ".."+string(filepath.Separator))
}
