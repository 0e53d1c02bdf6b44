package server

import (
	"bytes"
	"io/fs"
	"mime"
	"net/http"
	"path"
	"strings"

	"github.com/tdewolff/minify/v2"
	"github.com/tdewolff/minify/v2/css"
	"github.com/tdewolff/minify/v2/html"
	"github.com/tdewolff/minify/v2/js"
)

type asset struct {
	data        []byte
	contentType string
}

// AssetCache holds the dashboard files, minified once at startup and served
// from memory.
type AssetCache struct {
	files map[string]asset
}

var minifiable = map[string]string{
	".html": "text/html",
	".css":  "text/css",
	".js":   "application/javascript",
}

func NewAssetCache(src fs.FS) (*AssetCache, error) {
	m := minify.New()
	m.AddFunc("text/html", html.Minify)
	m.AddFunc("text/css", css.Minify)
	m.AddFunc("application/javascript", js.Minify)

	cache := &AssetCache{files: make(map[string]asset)}

	err := fs.WalkDir(src, ".", func(p string, d fs.DirEntry, err error) error {
		if err != nil || d.IsDir() {
			return err
		}
		data, err := fs.ReadFile(src, p)
		if err != nil {
			return err
		}

		ext := strings.ToLower(path.Ext(p))
		ctype := mime.TypeByExtension(ext)
		if ctype == "" {
			ctype = "application/octet-stream"
		}
		if mtype, ok := minifiable[ext]; ok {
			var buf bytes.Buffer
			if err := m.Minify(mtype, &buf, bytes.NewReader(data)); err == nil {
				data = buf.Bytes()
			}
			ctype = mtype
		}

		cache.files["/"+p] = asset{data: data, contentType: ctype}
		return nil
	})
	if err != nil {
		return nil, err
	}

	if index, ok := cache.files["/index.html"]; ok {
		cache.files["/"] = index
	}
	return cache, nil
}

func (c *AssetCache) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	a, ok := c.files[r.URL.Path]
	if !ok {
		http.NotFound(w, r)
		return
	}
	w.Header().Set("Content-Type", a.contentType)
	w.Write(a.data)
}
