// Package zip builds the downloadable site archive.
package zip

import (
	"archive/zip"
	"bytes"
	"fmt"
	"net/http"
	"regexp"
	"sort"
	"time"
)

// Asset is a single file inside an archive.
type Asset struct {
	Filename string
	MIME     string
	Data     []byte
}

var placeholderRegexp = regexp.MustCompile(`\{\{\s*([A-Za-z0-9_-]+)\s*\}\}`)

// ReplacePlaceholders substitutes every {{ key }} token for which resolve
// returns true. Unresolved tokens are left untouched.
func ReplacePlaceholders(document string, resolve func(key string) (string, bool)) string {
	return placeholderRegexp.ReplaceAllStringFunc(document, func(token string) string {
		key := placeholderRegexp.FindStringSubmatch(token)[1]
		if v, ok := resolve(key); ok {
			return v
		}
		return token
	})
}

// ArchiveAssets writes the files into a zip archive in the given order.
func ArchiveAssets(assets []Asset) ([]byte, error) {
	buf := &bytes.Buffer{}
	zw := zip.NewWriter(buf)
	for _, asset := range assets {
		w, err := zw.CreateHeader(&zip.FileHeader{
			Name:     asset.Filename,
			Method:   zip.Deflate,
			Modified: time.Now().UTC(),
		})
		if err != nil {
			return nil, fmt.Errorf("zip: create %s: %w", asset.Filename, err)
		}
		if _, err := w.Write(asset.Data); err != nil {
			return nil, fmt.Errorf("zip: write %s: %w", asset.Filename, err)
		}
	}
	if err := zw.Close(); err != nil {
		return nil, fmt.Errorf("zip: close: %w", err)
	}
	return buf.Bytes(), nil
}

// Option customizes Package.
type Option func(*packageOptions)

type packageOptions struct {
	readme string
}

// WithReadme adds a README.md at the archive root.
func WithReadme(text string) Option {
	return func(o *packageOptions) { o.readme = text }
}

// Package produces index.html plus images/<key>.<ext> for every asset.
// Placeholders that still reference an asset are rewritten to its relative path.
func Package(document string, assets map[string][]byte, opts ...Option) ([]byte, error) {
	var o packageOptions
	for _, opt := range opts {
		opt(&o)
	}

	keys := make([]string, 0, len(assets))
	for k := range assets {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	paths := make(map[string]string, len(keys))
	files := make([]Asset, 0, len(keys)+2)
	for _, key := range keys {
		mime := http.DetectContentType(assets[key])
		name := "images/" + key + extensionFor(mime)
		paths[key] = "./" + name
		files = append(files, Asset{Filename: name, MIME: mime, Data: assets[key]})
	}

	document = ReplacePlaceholders(document, func(key string) (string, bool) {
		p, ok := paths[key]
		return p, ok
	})

	out := []Asset{{Filename: "index.html", MIME: "text/html", Data: []byte(document)}}
	if o.readme != "" {
		out = append(out, Asset{Filename: "README.md", MIME: "text/markdown", Data: []byte(o.readme)})
	}
	return ArchiveAssets(append(out, files...))
}

func extensionFor(mime string) string {
	switch mime {
	case "image/png":
		return ".png"
	case "image/gif":
		return ".gif"
	case "image/webp":
		return ".webp"
	case "image/svg+xml":
		return ".svg"
	default:
		return ".jpg"
	}
}
