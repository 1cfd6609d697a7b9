package web

import (
	"errors"
	"html/template"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/viktokle/folio/app/content"
	"github.com/viktokle/folio/app/server/web/mocks"
	"github.com/viktokle/folio/app/theme"
)

func TestHandler_HandleHome(t *testing.T) {
	h := newTestHandler(t, &mocks.PostsMock{}, nil, nil)

	t.Run("seeds the theme from the color-scheme hint", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/", http.NoBody)
		req.Header.Set(colorSchemeHint, "dark")
		rec := httptest.NewRecorder()
		h.handleHome(rec, req)

		assert.Equal(t, http.StatusOK, rec.Code)
		body := rec.Body.String()
		assert.Contains(t, body, `<html lang="en" class="dark" data-theme="dark">`)
		assert.Contains(t, body, "Fullstack Developer")
		assert.Contains(t, body, `id="contact"`)
		assert.Contains(t, body, "Programming Languages")

		c := findCookie(rec, theme.StorageKey)
		require.NotNil(t, c, "missing preference is persisted")
		assert.Equal(t, "dark", c.Value)
		assert.NotNil(t, findCookie(rec, visitorCookie))
	})

	t.Run("persisted preference wins over the hint", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/", http.NoBody)
		req.Header.Set(colorSchemeHint, "dark")
		req.AddCookie(&http.Cookie{Name: theme.StorageKey, Value: "light"})
		rec := httptest.NewRecorder()
		h.handleHome(rec, req)

		assert.Equal(t, http.StatusOK, rec.Code)
		assert.Contains(t, rec.Body.String(), `<html lang="en" data-theme="light">`)
		assert.Nil(t, findCookie(rec, theme.StorageKey), "present value is not written again")
	})

	t.Run("malformed preference is re-seeded", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/", http.NoBody)
		req.AddCookie(&http.Cookie{Name: theme.StorageKey, Value: "purple"})
		rec := httptest.NewRecorder()
		h.handleHome(rec, req)

		assert.Contains(t, rec.Body.String(), `data-theme="light"`)
		c := findCookie(rec, theme.StorageKey)
		require.NotNil(t, c)
		assert.Equal(t, "light", c.Value)
	})

	t.Run("renders the neutral switch placeholder", func(t *testing.T) {
		rec := httptest.NewRecorder()
		h.handleHome(rec, httptest.NewRequest(http.MethodGet, "/", http.NoBody))
		body := rec.Body.String()
		assert.Contains(t, body, `class="theme-switch theme-switch--placeholder" aria-hidden="true"`)
		assert.Contains(t, body, `hx-get="/web/theme/switch"`)
		assert.NotContains(t, body, "Switch to", "no interactive control before hydration")
	})
}

func TestHandler_HandleBlogs(t *testing.T) {
	t.Run("hero and more stories", func(t *testing.T) {
		posts := &mocks.PostsMock{ListFunc: func() []content.Post {
			return []content.Post{
				{Slug: "newest", Title: "Newest Post", Excerpt: "fresh", Date: time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC)},
				{Slug: "older", Title: "Older Post", Date: time.Date(2023, 1, 2, 0, 0, 0, 0, time.UTC)},
			}
		}}
		h := newTestHandler(t, posts, nil, nil)
		rec := httptest.NewRecorder()
		h.handleBlogs(rec, httptest.NewRequest(http.MethodGet, "/blogs", http.NoBody))

		assert.Equal(t, http.StatusOK, rec.Code)
		body := rec.Body.String()
		assert.Contains(t, body, `<a href="/blogs/newest">Newest Post</a>`)
		assert.Contains(t, body, "May 1, 2024")
		assert.Contains(t, body, "More Stories")
		assert.Contains(t, body, `<a href="/blogs/older">Older Post</a>`)
		assert.Contains(t, body, `aria-current="page"`)
		assert.NotContains(t, body, "No blog posts yet")
	})

	t.Run("single post has no more stories", func(t *testing.T) {
		posts := &mocks.PostsMock{ListFunc: func() []content.Post {
			return []content.Post{{Slug: "only", Title: "Only Post"}}
		}}
		h := newTestHandler(t, posts, nil, nil)
		rec := httptest.NewRecorder()
		h.handleBlogs(rec, httptest.NewRequest(http.MethodGet, "/blogs", http.NoBody))

		assert.Contains(t, rec.Body.String(), "Only Post")
		assert.NotContains(t, rec.Body.String(), "More Stories")
	})

	t.Run("empty state", func(t *testing.T) {
		posts := &mocks.PostsMock{ListFunc: func() []content.Post { return nil }}
		h := newTestHandler(t, posts, nil, nil)
		rec := httptest.NewRecorder()
		h.handleBlogs(rec, httptest.NewRequest(http.MethodGet, "/blogs", http.NoBody))

		assert.Equal(t, http.StatusOK, rec.Code)
		assert.Contains(t, rec.Body.String(), "No blog posts yet. Check back soon!")
	})
}

func TestHandler_HandlePost(t *testing.T) {
	posts := &mocks.PostsMock{GetFunc: func(slug string) (content.Post, error) {
		switch slug {
		case "hello":
			return content.Post{
				Slug: "hello", Title: "Hello World", Excerpt: "greeting",
				Date: time.Date(2020, 3, 16, 0, 0, 0, 0, time.UTC), Author: content.Author{Name: "Viktor"},
				ReadingTime: 3, OGImage: "/img/hello.png", Content: template.HTML("<p>body text</p>"),
			}, nil
		case "broken":
			return content.Post{}, errors.New("render failed")
		default:
			return content.Post{}, content.ErrPostNotFound
		}
	}}
	h := newTestHandler(t, posts, nil, nil)
	router := newTestRouter(h)

	t.Run("found", func(t *testing.T) {
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/blogs/hello", http.NoBody))

		assert.Equal(t, http.StatusOK, rec.Code)
		body := rec.Body.String()
		assert.Contains(t, body, "<title>Hello World | Viktor Le</title>")
		assert.Contains(t, body, "<p>body text</p>")
		assert.Contains(t, body, "March 16, 2020")
		assert.Contains(t, body, "3 min read")
		assert.Contains(t, body, `<meta property="og:image" content="/img/hello.png">`)
		assert.Contains(t, body, `<meta name="description" content="greeting">`)
	})

	t.Run("not found", func(t *testing.T) {
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/blogs/missing", http.NoBody))
		assert.Equal(t, http.StatusNotFound, rec.Code)
		assert.Contains(t, rec.Body.String(), "This page could not be found.")
		assert.Contains(t, rec.Body.String(), "data-theme=")
	})

	t.Run("error", func(t *testing.T) {
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/blogs/broken", http.NoBody))
		assert.Equal(t, http.StatusInternalServerError, rec.Code)
	})
}

func TestHandler_NotFound(t *testing.T) {
	h := newTestHandler(t, &mocks.PostsMock{}, nil, nil)
	rec := httptest.NewRecorder()
	h.NotFound(rec, httptest.NewRequest(http.MethodGet, "/nope", http.NoBody))
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Contains(t, rec.Header().Get("Content-Type"), "text/html")
}

func TestHandler_HandleHighlightCSS(t *testing.T) {
	h := newTestHandler(t, &mocks.PostsMock{}, nil, nil)
	rec := httptest.NewRecorder()
	h.handleHighlightCSS(rec, httptest.NewRequest(http.MethodGet, "/highlight.css", http.NoBody))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "text/css; charset=utf-8", rec.Header().Get("Content-Type"))
	assert.Contains(t, rec.Body.String(), ".chroma")
}
