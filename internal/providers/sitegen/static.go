package sitegen

import (
	"bytes"
	"context"
	"fmt"
	"html/template"
	"slices"
	"time"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

type palette struct {
	Primary    string
	Secondary  string
	Background string
	Text       string
}

var defaultPalette = palette{Primary: "#0077BE", Secondary: "#FF6B35", Background: "#FFFFFF", Text: "#333333"}

var palettes = map[string]palette{
	"ocean":   defaultPalette,
	"forest":  {Primary: "#2D6A4F", Secondary: "#95D5B2", Background: "#F8FFF9", Text: "#1B4332"},
	"sunset":  {Primary: "#9D4EDD", Secondary: "#FF9E00", Background: "#FFFBF5", Text: "#3C096C"},
	"minimal": {Primary: "#111111", Secondary: "#777777", Background: "#FFFFFF", Text: "#222222"},
}

// Asset placeholders are literal template text, so the template uses [[ ]]
// as its action delimiters.
var staticTemplate = template.Must(template.New("static").Delims("[[", "]]").Parse(`<!DOCTYPE html>
<html lang="en">
<head>
    <meta charset="UTF-8">
    <meta name="viewport" content="width=device-width, initial-scale=1.0">
    <title>[[ .Name ]]</title>
    <style>
        * { margin: 0; padding: 0; box-sizing: border-box; }
        body { font-family: Arial, sans-serif; line-height: 1.6; color: [[ .Colors.Text ]]; background: [[ .Colors.Background ]]; }
        nav { background: [[ .Colors.Primary ]]; color: white; padding: 1rem 5%; position: fixed; width: 100%; top: 0; z-index: 1000; display: flex; align-items: center; gap: 1rem; }
        nav img { height: 40px; }
        .hero { min-height: 100vh; display: flex; align-items: center; justify-content: center; text-align: center; padding: 6rem 5% 3rem; background: linear-gradient(135deg, [[ .Colors.Primary ]], [[ .Colors.Secondary ]]); color: white; }
        .hero h1 { font-size: 3rem; margin-bottom: 1rem; }
        .hero p { font-size: 1.3rem; margin-bottom: 2rem; }
        .services { padding: 4rem 5%; }
        .services li { margin: 0.5rem 0; }
        .btn { display: inline-block; padding: 1rem 2rem; background: [[ .Colors.Secondary ]]; color: white; text-decoration: none; border-radius: 5px; transition: transform 0.3s; }
        .btn:hover { transform: translateY(-3px); }
        footer { background: [[ .Colors.Primary ]]; color: white; text-align: center; padding: 2rem 5%; }
        @media (max-width: 768px) { .hero h1 { font-size: 2rem; } }
    </style>
</head>
<body>
    <nav>
        [[ if .HasLogo ]]<img src="{{ logo }}" alt="logo">[[ end ]]
        <h1>[[ .Name ]]</h1>
    </nav>
    <section class="hero">
        <div>
            <h1>[[ .Name ]]</h1>
            <p>[[ .Tagline ]]</p>
            [[ if .Description ]]<p>[[ .Description ]]</p>[[ end ]]
            <a href="#contact" class="btn">Contact us</a>
        </div>
    </section>
    [[ if .Services ]]<section class="services">
        <h2>Services</h2>
        <ul>[[ range .Services ]]<li>[[ . ]]</li>[[ end ]]</ul>
    </section>[[ end ]]
    <div id="ai-chat-container"></div>
    <footer id="contact">
        <p>&copy; [[ .Year ]] [[ .Name ]]. All rights reserved.</p>
        <p>Email: [[ .Email ]]</p>
    </footer>
</body>
</html>
`))

// StaticGenerator renders a fixed responsive template. It is used when no
// remote provider is configured.
type StaticGenerator struct {
	now func() time.Time
}

func NewStaticGenerator() *StaticGenerator {
	return &StaticGenerator{now: time.Now}
}

func (s *StaticGenerator) Name() string { return ProviderStatic }

func (s *StaticGenerator) Generate(ctx context.Context, req Request) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	colors, ok := palettes[req.TemplateID]
	if !ok {
		colors = defaultPalette
	}
	data := struct {
		Name        string
		Tagline     string
		Description string
		Email       string
		Services    []string
		HasLogo     bool
		Colors      palette
		Year        int
	}{
		Name:        coalesce(req.Field("company_name"), "My Company"),
		Tagline:     coalesce(req.Field("tagline"), "Welcome to our website"),
		Description: req.Field("description"),
		Email:       coalesce(req.Field("contact_email"), "contact@example.com"),
		Services:    titleCase(stringList(req.Fields["services"])),
		HasLogo:     slices.Contains(req.AssetKeys, "logo"),
		Colors:      colors,
		Year:        s.now().Year(),
	}
	var buf bytes.Buffer
	if err := staticTemplate.Execute(&buf, data); err != nil {
		return "", fmt.Errorf("render static template: %w", err)
	}
	return buf.String(), nil
}

// titleCase capitalizes service headings. A Caser is stateful, so each call
// builds its own.
func titleCase(items []string) []string {
	c := cases.Title(language.Und)
	out := make([]string, 0, len(items))
	for _, item := range items {
		out = append(out, c.String(item))
	}
	return out
}

var _ Generator = (*StaticGenerator)(nil)
