package urlmap

import (
	"errors"
	"path/filepath"
	"testing"

	"pkt.systems/ffdebug/schema"
)

func TestFileResolverRoundTrip(t *testing.T) {
	r := NewFileResolver("/srv/app")
	url := r.ToURL("/srv/app/js/main.js")
	if url != "file:///srv/app/js/main.js" {
		t.Fatalf("ToURL = %q", url)
	}
	path, ok := r.ToPath(url)
	if !ok || path != filepath.FromSlash("/srv/app/js/main.js") {
		t.Fatalf("ToPath = %q, %v", path, ok)
	}
}

func TestFileResolverEscapes(t *testing.T) {
	r := NewFileResolver("/srv/my app")
	url := r.ToURL("/srv/my app/x.js")
	if url != "file:///srv/my%20app/x.js" {
		t.Fatalf("ToURL = %q", url)
	}
	path, ok := r.ToPath(url)
	if !ok || path != filepath.FromSlash("/srv/my app/x.js") {
		t.Fatalf("ToPath = %q, %v", path, ok)
	}
}

func TestFileResolverRejects(t *testing.T) {
	r := NewFileResolver("/srv/app")
	cases := []string{
		"file:///etc/passwd",
		"file:///srv/application/x.js",
		"resource://gre/modules/x.js",
		"http://localhost/x.js",
	}
	for _, url := range cases {
		if path, ok := r.ToPath(url); ok {
			t.Fatalf("ToPath(%q) = %q, want rejection", url, path)
		}
	}
}

func TestFileResolverPassesLocalPathsThrough(t *testing.T) {
	r := NewFileResolver("/srv/app")
	path, ok := r.ToPath("/srv/app/x.js")
	if !ok || path != "/srv/app/x.js" {
		t.Fatalf("ToPath = %q, %v", path, ok)
	}
	if got := r.ToURL("http://example.com/x.js"); got != "http://example.com/x.js" {
		t.Fatalf("ToURL = %q", got)
	}
}

func TestHTTPResolverRoundTrip(t *testing.T) {
	r := NewHTTPResolver("/srv/www", "http://localhost:8080")
	url := r.ToURL("/srv/www/js/app.js")
	if url != "http://localhost:8080/js/app.js" {
		t.Fatalf("ToURL = %q", url)
	}
	path, ok := r.ToPath(url + "?v=3#top")
	if !ok || path != filepath.FromSlash("/srv/www/js/app.js") {
		t.Fatalf("ToPath = %q, %v", path, ok)
	}
}

func TestHTTPResolverStripsDotSegments(t *testing.T) {
	r := NewHTTPResolver("/srv/www", "http://localhost/")
	cases := map[string]string{
		"./js/app.js":     "http://localhost/js/app.js",
		"../../js/app.js": "http://localhost/js/app.js",
		"/srv/other.js":   "http://localhost/other.js",
	}
	for in, want := range cases {
		if got := r.ToURL(in); got != want {
			t.Fatalf("ToURL(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestHTTPResolverRejectsForeignURLs(t *testing.T) {
	r := NewHTTPResolver("/srv/www", "http://localhost:8080/")
	cases := []string{
		"http://cdn.example.com/lib.js",
		"http://localhost:8080/../../etc/passwd",
		"",
	}
	for _, url := range cases {
		if path, ok := r.ToPath(url); ok {
			t.Fatalf("ToPath(%q) = %q, want rejection", url, path)
		}
	}
}

func TestSelect(t *testing.T) {
	r, err := Select("http://localhost:8080/index.html", "/srv/www")
	if err != nil {
		t.Fatalf("Select: %v", err)
	}
	h, ok := r.(*HTTPResolver)
	if !ok || h.Base() != "http://localhost:8080/" {
		t.Fatalf("expected http resolver, got %#v", r)
	}

	if _, err := Select("http://localhost:8080/index.html", ""); !errors.Is(err, schema.ErrConfiguration) {
		t.Fatalf("expected ErrConfiguration, got %v", err)
	}

	r, err = Select("/srv/app/index.html", "")
	if err != nil {
		t.Fatalf("Select: %v", err)
	}
	f, ok := r.(*FileResolver)
	if !ok || f.Root() != filepath.FromSlash("/srv/app") {
		t.Fatalf("expected file resolver rooted at program dir, got %#v", r)
	}

	r, err = Select("file:///srv/app/index.html", "")
	if err != nil {
		t.Fatalf("Select file url: %v", err)
	}
	if _, ok := r.(*FileResolver); !ok {
		t.Fatalf("expected file resolver for file url, got %#v", r)
	}
}

func TestTargetURL(t *testing.T) {
	r := NewFileResolver("/srv/app")
	got, err := TargetURL("/srv/app/index.html", r)
	if err != nil || got != "file:///srv/app/index.html" {
		t.Fatalf("TargetURL = %q, %v", got, err)
	}
	got, err = TargetURL("http://localhost/x.html", r)
	if err != nil || got != "http://localhost/x.html" {
		t.Fatalf("TargetURL = %q, %v", got, err)
	}
}
