package render

import (
	"embed"
	"html/template"
	"io"
	"io/fs"
)

//go:embed templates/*.html
var templateFS embed.FS

//go:embed static
var staticFS embed.FS

var templates = template.Must(template.New("").Funcs(template.FuncMap{
	"add": func(a, b int) int { return a + b },
}).ParseFS(templateFS, "templates/*.html"))

// Choice is one option of a select or checkbox group.
type Choice struct {
	Value    string
	Label    string
	Selected bool
}

// PageData is everything the dashboard page shows.
type PageData struct {
	Title     string
	SessionID string

	Attributes  []Choice
	Species     []Choice
	PlotlyBins  int
	SeabornBins int
	SeabornMin  int
	SeabornMax  int

	// Outputs holds the rendered HTML of each output, keyed by output ID.
	Outputs map[string]template.HTML

	SourceURL string
}

// Page writes the full dashboard page.
func Page(w io.Writer, data PageData) error {
	return templates.ExecuteTemplate(w, "page", data)
}

// Static returns the client assets served under /static/.
func Static() fs.FS {
	sub, err := fs.Sub(staticFS, "static")
	if err != nil {
		panic(err)
	}
	return sub
}
