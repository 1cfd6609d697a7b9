// Package web provides HTTP handlers for the site pages and the theme switcher.
package web

import (
	"bytes"
	"context"
	"embed"
	"fmt"
	"html/template"
	"io/fs"
	"net/http"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
	log "github.com/go-pkgz/lgr"
	"github.com/go-pkgz/routegroup"

	"github.com/viktokle/folio/app/content"
	"github.com/viktokle/folio/app/theme"
)

//go:generate moq -out mocks/posts.go -pkg mocks -skip-ensure -fmt goimports . Posts
//go:generate moq -out mocks/preferences.go -pkg mocks -skip-ensure -fmt goimports . Preferences

//go:embed static
var staticFS embed.FS

//go:embed templates
var templatesFS embed.FS

// StaticFS returns the embedded static filesystem for external use.
func StaticFS() (fs.FS, error) {
	sub, err := fs.Sub(staticFS, "static")
	if err != nil {
		return nil, fmt.Errorf("failed to get static sub-filesystem: %w", err)
	}
	return sub, nil
}

// Posts defines the interface for the blog post source.
type Posts interface {
	List() []content.Post
	Get(slug string) (content.Post, error)
}

// Preferences defines the interface for server-side preference storage keyed by visitor.
type Preferences interface {
	Get(ctx context.Context, visitor, key string) (string, error)
	Set(ctx context.Context, visitor, key, value string) error
}

// Broadcaster delivers preference changes to the other open tabs of a visitor.
type Broadcaster interface {
	Publish(visitor, origin, key, value string) int
	Channel(visitor, tab string) theme.Notifier
}

// Config holds web handler configuration.
type Config struct {
	BaseURL          string
	Version          string
	CookieTTL        time.Duration // lifetime of the preference and visitor cookies
	SecureCookies    bool
	TransitionWindow time.Duration // theme toggle animation window
	KeepAlive        time.Duration // interval of comment pings on the theme event stream
}

// Handler handles web UI requests.
type Handler struct {
	posts       Posts
	profile     content.Profile
	prefs       Preferences // optional, cookies are used when nil
	hub         Broadcaster // optional, no cross-tab updates when nil
	highlighter *content.Highlighter
	tmpl        *template.Template
	cfg         Config
}

// New creates a new web handler. prefs and hub are optional.
func New(posts Posts, profile content.Profile, prefs Preferences, hub Broadcaster, cfg Config) (*Handler, error) {
	if cfg.CookieTTL <= 0 {
		cfg.CookieTTL = 365 * 24 * time.Hour
	}
	if cfg.KeepAlive <= 0 {
		cfg.KeepAlive = 30 * time.Second
	}

	h := &Handler{
		posts:       posts,
		profile:     profile,
		prefs:       prefs,
		hub:         hub,
		highlighter: content.NewHighlighter(),
		cfg:         cfg,
	}

	tmpl, err := parseTemplates(h.templateFuncs())
	if err != nil {
		return nil, fmt.Errorf("failed to parse templates: %w", err)
	}
	h.tmpl = tmpl
	return h, nil
}

// Register registers web UI routes on the given router.
func (h *Handler) Register(r *routegroup.Bundle) {
	r.HandleFunc("GET /{$}", h.handleHome)
	r.HandleFunc("GET /blogs", h.handleBlogs)
	r.HandleFunc("GET /blogs/{slug}", h.handlePost)
	r.HandleFunc("GET /highlight.css", h.handleHighlightCSS)
	r.HandleFunc("GET /web/theme/switch", h.handleThemeSwitch)
	r.HandleFunc("POST /web/theme", h.handleThemeToggle)
	r.HandleFunc("GET /web/theme/events", h.handleThemeEvents)
}

// NotFound renders the not found page, used as the catch-all route.
func (h *Handler) NotFound(w http.ResponseWriter, r *http.Request) {
	h.renderNotFound(w, r)
}

// templateFuncs returns custom template functions.
func (h *Handler) templateFuncs() template.FuncMap {
	return template.FuncMap{
		"url": h.url,
		"formatDate": func(t time.Time) string {
			if t.IsZero() {
				return ""
			}
			return t.Format("January 2, 2006")
		},
		"isoDate": func(t time.Time) string {
			return t.Format(time.RFC3339)
		},
		"ago":  humanize.Time,
		"join": strings.Join,
	}
}

// parseTemplates parses all templates from embedded filesystem.
func parseTemplates(funcs template.FuncMap) (*template.Template, error) {
	tmpl := template.New("").Funcs(funcs)

	pages := []string{"base.html", "home.html", "blogs.html", "post.html", "notfound.html"}
	for _, name := range pages {
		data, err := templatesFS.ReadFile("templates/" + name)
		if err != nil {
			return nil, fmt.Errorf("read %s: %w", name, err)
		}
		if _, err = tmpl.New(name).Parse(string(data)); err != nil {
			return nil, fmt.Errorf("parse %s: %w", name, err)
		}
	}

	partials := []string{"header", "drawer", "footer", "theme-switch", "post-preview"}
	for _, name := range partials {
		data, err := templatesFS.ReadFile("templates/partials/" + name + ".html")
		if err != nil {
			return nil, fmt.Errorf("read partial %s: %w", name, err)
		}
		if _, err = tmpl.New(name).Parse(string(data)); err != nil {
			return nil, fmt.Errorf("parse partial %s: %w", name, err)
		}
	}
	return tmpl, nil
}

// templateData holds data passed to templates.
type templateData struct {
	Profile     content.Profile
	Title       string
	Description string
	OGImage     string
	Page        string // active navigation section
	Theme       string
	Dark        bool
	Switch      theme.State // hydrated toggle state, used by the theme-switch partial
	HeroPost    *content.Post
	MorePosts   []content.Post
	Post        content.Post
	BaseURL     string
	Version     string
	Year        int
}

// render executes the named template into a buffer and writes it with the status,
// so a template failure still results in a clean 500 response.
func (h *Handler) render(w http.ResponseWriter, status int, name string, data templateData) {
	var buf bytes.Buffer
	if err := h.tmpl.ExecuteTemplate(&buf, name, data); err != nil {
		log.Printf("[ERROR] failed to execute template %s: %v", name, err)
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	if _, err := buf.WriteTo(w); err != nil {
		log.Printf("[DEBUG] failed to write response: %v", err)
	}
}

// pageData returns template data common to all pages.
func (h *Handler) pageData(t theme.State, page string) templateData {
	return templateData{
		Profile:     h.profile,
		Title:       h.profile.Site.Name,
		Description: h.profile.Site.Description,
		OGImage:     h.profile.Site.OGImage,
		Page:        page,
		Theme:       t.Theme.String(),
		Dark:        t.Theme.IsDark(),
		Switch:      t,
		BaseURL:     h.cfg.BaseURL,
		Version:     h.cfg.Version,
		Year:        time.Now().Year(),
	}
}

// url returns a URL path with the base URL prefix. Absolute and fragment-only URLs are kept as is.
func (h *Handler) url(path string) string {
	if !strings.HasPrefix(path, "/") || strings.HasPrefix(path, "//") {
		return path
	}
	return h.cfg.BaseURL + path
}

// cookiePath returns the path for cookies (base URL with trailing slash or "/").
func (h *Handler) cookiePath() string {
	if h.cfg.BaseURL == "" {
		return "/"
	}
	return h.cfg.BaseURL + "/"
}
