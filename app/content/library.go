package content

import (
	"context"
	"errors"
	"fmt"
	"html/template"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/go-pkgz/lcw/v2"
	log "github.com/go-pkgz/lgr"
)

const watchDebounce = 200 * time.Millisecond

// Library holds the blog posts of a directory of Markdown files.
// Metadata is loaded eagerly, post bodies are rendered on demand and cached.
type Library struct {
	dir      string
	renderer *Renderer
	cache    lcw.LoadingCache[template.HTML]

	mu     sync.RWMutex
	posts  []Post            // sorted by date desc, no drafts
	bodies map[string][]byte // markdown bodies by slug
	gen    int               // load generation, part of the render cache key
}

// NewLibrary makes a library for dir. cacheSize limits the number of rendered posts kept in memory.
func NewLibrary(dir string, renderer *Renderer, cacheSize int) (*Library, error) {
	cache, err := lcw.NewLruCache(lcw.NewOpts[template.HTML]().MaxKeys(cacheSize))
	if err != nil {
		return nil, fmt.Errorf("failed to create render cache: %w", err)
	}
	return &Library{dir: dir, renderer: renderer, cache: cache, bodies: map[string][]byte{}}, nil
}

// Load scans the directory and replaces the posts. Broken files are skipped with a warning.
// A missing directory results in an empty library.
func (l *Library) Load() error {
	entries, err := os.ReadDir(l.dir)
	if err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("failed to read posts directory %s: %w", l.dir, err)
	}

	posts := make([]Post, 0, len(entries))
	bodies := make(map[string][]byte, len(entries))
	for _, e := range entries {
		if e.IsDir() || !isPostFile(e.Name()) {
			continue
		}
		data, readErr := os.ReadFile(filepath.Join(l.dir, e.Name())) //nolint:gosec // file from the configured posts dir
		if readErr != nil {
			log.Printf("[WARN] failed to read post %s: %v", e.Name(), readErr)
			continue
		}
		post, body, draft, parseErr := parsePost(e.Name(), data)
		if parseErr != nil {
			log.Printf("[WARN] skip post: %v", parseErr)
			continue
		}
		if draft {
			log.Printf("[DEBUG] skip draft post %s", post.Slug)
			continue
		}
		posts = append(posts, post)
		bodies[post.Slug] = body
	}

	sort.SliceStable(posts, func(i, j int) bool {
		if posts[i].Date.Equal(posts[j].Date) {
			return posts[i].Slug < posts[j].Slug
		}
		return posts[i].Date.After(posts[j].Date) // newest first
	})

	l.mu.Lock()
	l.posts = posts
	l.bodies = bodies
	l.gen++
	l.mu.Unlock()
	l.cache.Purge()

	log.Printf("[INFO] loaded %d posts from %s", len(posts), l.dir)
	return nil
}

// List returns post metadata, newest first. Content is not set.
func (l *Library) List() []Post {
	l.mu.RLock()
	defer l.mu.RUnlock()
	res := make([]Post, len(l.posts))
	copy(res, l.posts)
	return res
}

// Get returns the post with rendered content.
func (l *Library) Get(slug string) (Post, error) {
	l.mu.RLock()
	var post Post
	found := false
	for _, p := range l.posts {
		if p.Slug == slug {
			post, found = p, true
			break
		}
	}
	body := l.bodies[slug]
	gen := l.gen
	l.mu.RUnlock()

	if !found {
		return Post{}, ErrPostNotFound
	}

	html, err := l.cache.Get(fmt.Sprintf("%d/%s", gen, slug), func() (template.HTML, error) {
		return l.renderer.Render(body)
	})
	if err != nil {
		return Post{}, fmt.Errorf("render post %s: %w", slug, err)
	}
	post.Content = html
	return post, nil
}

// Watch reloads the library on changes in the posts directory until ctx is canceled.
// Rapid changes are debounced.
func (l *Library) Watch(ctx context.Context) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("failed to create file watcher: %w", err)
	}
	defer watcher.Close()

	if err := watcher.Add(l.dir); err != nil {
		return fmt.Errorf("failed to watch directory %s: %w", l.dir, err)
	}
	log.Printf("[INFO] watching posts directory %s for changes", l.dir)

	var debounceTimer *time.Timer
	defer func() {
		if debounceTimer != nil {
			debounceTimer.Stop()
		}
	}()

	for {
		select {
		case <-ctx.Done():
			log.Printf("[INFO] posts watcher stopped")
			return nil

		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if !isPostFile(event.Name) {
				continue
			}
			if event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename|fsnotify.Remove) == 0 {
				continue
			}
			log.Printf("[DEBUG] posts change detected: %s", event)

			if debounceTimer != nil {
				debounceTimer.Stop()
			}
			debounceTimer = time.AfterFunc(watchDebounce, func() {
				if err := l.Load(); err != nil {
					log.Printf("[WARN] failed to reload posts: %v", err)
				}
			})

		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			log.Printf("[WARN] posts watcher error: %v", err)
		}
	}
}

// Close releases the render cache.
func (l *Library) Close() error {
	return l.cache.Close()
}

func isPostFile(name string) bool {
	base := filepath.Base(name)
	if strings.HasPrefix(base, ".") {
		return false
	}
	ext := strings.ToLower(filepath.Ext(base))
	return ext == ".md" || ext == ".markdown"
}
