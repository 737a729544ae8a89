// Package ui renders the two pages of the web interface and keeps the
// navigation state machine that selects between them.
package ui

import (
	"bytes"
	"embed"
	"encoding/base64"
	"fmt"
	"html/template"
	"image"
	"io"
	"io/fs"

	"github.com/disintegration/imaging"

	"github.com/hosplant/hosplant/internal/catalog"
	"github.com/hosplant/hosplant/internal/model"
)

const (
	GridColumns  = 4
	previewWidth = 320
)

//go:embed templates/*.html
var templateFS embed.FS

//go:embed static
var staticFS embed.FS

// Static is the stylesheet tree served under /static/.
func Static() fs.FS {
	sub, err := fs.Sub(staticFS, "static")
	if err != nil {
		panic(err)
	}
	return sub
}

// View is everything a page render needs.
type View struct {
	Page    Page
	Result  *model.Prediction
	Preview template.URL
	Error   string

	catalog *catalog.Catalog
}

func (v View) IsDetect() bool { return v.Page == PageDetect }
func (v View) IsPlants() bool { return v.Page == PagePlants }

func (v View) Rows() [][]catalog.Plant {
	if v.catalog == nil {
		return nil
	}
	return v.catalog.Rows(GridColumns)
}

type Renderer struct {
	catalog *catalog.Catalog
	pages   map[Page]*template.Template
}

func NewRenderer(c *catalog.Catalog) (*Renderer, error) {
	layout, err := template.ParseFS(templateFS, "templates/layout.html")
	if err != nil {
		return nil, err
	}
	pages := map[Page]*template.Template{}
	for page, file := range map[Page]string{
		PageDetect: "templates/detect.html",
		PagePlants: "templates/plants.html",
	} {
		base, err := layout.Clone()
		if err != nil {
			return nil, err
		}
		tmpl, err := base.ParseFS(templateFS, file)
		if err != nil {
			return nil, fmt.Errorf("parse %s: %w", file, err)
		}
		pages[page] = tmpl
	}
	return &Renderer{catalog: c, pages: pages}, nil
}

// Render writes the page selected by v.Page.
func (r *Renderer) Render(w io.Writer, v View) error {
	tmpl, ok := r.pages[v.Page]
	if !ok {
		return fmt.Errorf("no template for page %s", v.Page)
	}
	v.catalog = r.catalog

	buf := &bytes.Buffer{}
	if err := tmpl.ExecuteTemplate(buf, "layout", v); err != nil {
		return err
	}
	_, err := buf.WriteTo(w)
	return err
}

// Preview encodes a downscaled copy of img as a data URI for inline display.
func Preview(img image.Image) (template.URL, error) {
	thumb := imaging.Resize(img, previewWidth, 0, imaging.Lanczos)
	buf := &bytes.Buffer{}
	if err := imaging.Encode(buf, thumb, imaging.JPEG, imaging.JPEGQuality(85)); err != nil {
		return "", err
	}
	return template.URL("data:image/jpeg;base64," + base64.StdEncoding.EncodeToString(buf.Bytes())), nil
}
