package web

import (
	"errors"
	"net/http"

	log "github.com/go-pkgz/lgr"

	"github.com/viktokle/folio/app/content"
)

// handleHome renders the homepage.
func (h *Handler) handleHome(w http.ResponseWriter, r *http.Request) {
	data := h.pageData(h.pageTheme(w, r), "home")
	h.render(w, http.StatusOK, "home.html", data)
}

// handleBlogs renders the blog listing, the newest post as the hero and the rest below.
func (h *Handler) handleBlogs(w http.ResponseWriter, r *http.Request) {
	data := h.pageData(h.pageTheme(w, r), "blogs")
	data.Title = h.profile.Site.BlogTitle + " | " + h.profile.Site.Name

	posts := h.posts.List()
	if len(posts) > 0 {
		hero := posts[0]
		data.HeroPost = &hero
		data.MorePosts = posts[1:]
	}
	h.render(w, http.StatusOK, "blogs.html", data)
}

// handlePost renders a single post.
func (h *Handler) handlePost(w http.ResponseWriter, r *http.Request) {
	slug := r.PathValue("slug")
	post, err := h.posts.Get(slug)
	if errors.Is(err, content.ErrPostNotFound) {
		h.renderNotFound(w, r)
		return
	}
	if err != nil {
		log.Printf("[ERROR] failed to get post %s: %v", slug, err)
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}

	data := h.pageData(h.pageTheme(w, r), "blogs")
	data.Post = post
	data.Title = post.Title + " | " + h.profile.Site.Name
	if post.Excerpt != "" {
		data.Description = post.Excerpt
	}
	if post.OGImage != "" {
		data.OGImage = post.OGImage
	}
	h.render(w, http.StatusOK, "post.html", data)
}

// renderNotFound renders the 404 page.
func (h *Handler) renderNotFound(w http.ResponseWriter, r *http.Request) {
	data := h.pageData(h.pageTheme(w, r), "")
	data.Title = "Page not found | " + h.profile.Site.Name
	h.render(w, http.StatusNotFound, "notfound.html", data)
}

// handleHighlightCSS serves the stylesheet for highlighted code blocks.
func (h *Handler) handleHighlightCSS(w http.ResponseWriter, _ *http.Request) {
	css, err := h.highlighter.CSS()
	if err != nil {
		log.Printf("[ERROR] failed to build highlight css: %v", err)
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "text/css; charset=utf-8")
	w.Header().Set("Cache-Control", "public, max-age=86400")
	_, _ = w.Write([]byte(css))
}
