package main

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/dustin/go-humanize"
	log "github.com/go-pkgz/lgr"
	"golang.org/x/sync/errgroup"

	"github.com/viktokle/folio/app/content"
	"github.com/viktokle/folio/app/notify"
	"github.com/viktokle/folio/app/server"
	"github.com/viktokle/folio/app/server/web"
	"github.com/viktokle/folio/app/store"
)

// ContentOptions locate the site content, shared by server and check commands
type ContentOptions struct {
	Posts     string `long:"posts" env:"POSTS" default:"_posts" description:"directory with markdown blog posts"`
	Profile   string `long:"profile" env:"PROFILE" description:"profile toml file, built-in profile if not set"`
	CacheSize int    `long:"cache-size" env:"CACHE_SIZE" default:"100" description:"max number of rendered posts kept in memory"`
}

// ServerCmd implements the server subcommand
type ServerCmd struct {
	Content struct {
		ContentOptions
		Watch bool `long:"watch" env:"WATCH" description:"reload posts on changes"`
	} `group:"content" namespace:"content" env-namespace:"FOLIO_CONTENT"`

	Server struct {
		Address         string        `long:"address" env:"ADDRESS" default:":8080" description:"server listen address"`
		ReadTimeout     time.Duration `long:"read-timeout" env:"READ_TIMEOUT" default:"5s" description:"read timeout"`
		WriteTimeout    time.Duration `long:"write-timeout" env:"WRITE_TIMEOUT" default:"30s" description:"write timeout, theme streams are exempt"`
		IdleTimeout     time.Duration `long:"idle-timeout" env:"IDLE_TIMEOUT" default:"60s" description:"idle timeout"`
		ShutdownTimeout time.Duration `long:"shutdown-timeout" env:"SHUTDOWN_TIMEOUT" default:"5s" description:"graceful shutdown timeout"`
		BaseURL         string        `long:"base-url" env:"BASE_URL" description:"base URL path for reverse proxy (e.g., /folio)"`
		Assets          string        `long:"assets" env:"ASSETS" description:"directory served under /assets/, post images"`
		BodyLimit       int64         `long:"body-limit" env:"BODY_LIMIT" default:"65536" description:"max request body size in bytes"`
		Throttle        int64         `long:"throttle" env:"THROTTLE" default:"1000" description:"max concurrent requests"`
	} `group:"server" namespace:"server" env-namespace:"FOLIO_SERVER"`

	Prefs struct {
		DB            string        `long:"db" env:"DB" description:"database URL (sqlite file or postgres://...), cookies only if not set"`
		CacheSize     int           `long:"cache-size" env:"CACHE_SIZE" default:"1000" description:"max number of preferences kept in memory"`
		CookieTTL     time.Duration `long:"cookie-ttl" env:"COOKIE_TTL" default:"8760h" description:"preference and visitor cookie lifetime"`
		SecureCookies bool          `long:"secure-cookies" env:"SECURE_COOKIES" description:"mark cookies secure, for https deployments"`
		CleanupEvery  time.Duration `long:"cleanup-interval" env:"CLEANUP_INTERVAL" default:"24h" description:"how often to remove stale preferences"`
		MaxAge        time.Duration `long:"max-age" env:"MAX_AGE" default:"8760h" description:"preferences not updated for longer are removed"`
	} `group:"prefs" namespace:"prefs" env-namespace:"FOLIO_PREFS"`

	Debug bool `long:"dbg" env:"DEBUG" description:"debug mode"`

	ctx    context.Context
	cancel context.CancelFunc
}

// Execute runs the server command
func (s *ServerCmd) Execute(_ []string) error {
	setupLogs(s.Debug)

	defer func() {
		if x := recover(); x != nil {
			log.Printf("[WARN] run time panic:\n%v", x)
			panic(x)
		}
	}()

	if s.ctx == nil {
		s.ctx, s.cancel = context.WithCancel(context.Background())
		signals(s.cancel)
	}

	return s.run(s.ctx)
}

func (s *ServerCmd) run(ctx context.Context) error {
	baseURL, err := validateBaseURL(s.Server.BaseURL)
	if err != nil {
		return fmt.Errorf("invalid base URL: %w", err)
	}

	log.Printf("[INFO] starting folio server on %s", s.Server.Address)
	if baseURL != "" {
		log.Printf("[INFO] base URL: %s", baseURL)
	}

	library, profile, err := loadContent(s.Content.ContentOptions)
	if err != nil {
		return err
	}
	defer library.Close()

	hub := notify.NewHub(0)

	// preferences live in cookies unless a database is configured
	var prefs web.Preferences
	var cleaner *server.Cleaner
	if s.Prefs.DB != "" {
		dbStore, dbErr := store.New(s.Prefs.DB)
		if dbErr != nil {
			return fmt.Errorf("failed to initialize store: %w", dbErr)
		}
		cached, cacheErr := store.NewCached(dbStore, s.Prefs.CacheSize)
		if cacheErr != nil {
			_ = dbStore.Close()
			return fmt.Errorf("failed to initialize store cache: %w", cacheErr)
		}
		defer cached.Close()
		prefs = cached
		if s.Prefs.CleanupEvery > 0 {
			cleaner = server.NewCleaner(cached, server.CleanerConfig{Interval: s.Prefs.CleanupEvery, MaxAge: s.Prefs.MaxAge})
		}
		log.Printf("[INFO] preferences stored in database")
	}

	srv, err := server.New(library, profile, prefs, hub, server.Config{
		Address:         s.Server.Address,
		ReadTimeout:     s.Server.ReadTimeout,
		WriteTimeout:    s.Server.WriteTimeout,
		IdleTimeout:     s.Server.IdleTimeout,
		ShutdownTimeout: s.Server.ShutdownTimeout,
		Version:         revision,
		BaseURL:         baseURL,
		AssetsDir:       s.Server.Assets,
		CookieTTL:       s.Prefs.CookieTTL,
		SecureCookies:   s.Prefs.SecureCookies,
		BodySizeLimit:   s.Server.BodyLimit,
		RequestsPerSec:  s.Server.Throttle,
	})
	if err != nil {
		return fmt.Errorf("failed to initialize server: %w", err)
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		if err := srv.Run(gctx); err != nil {
			return fmt.Errorf("server failed: %w", err)
		}
		return nil
	})
	if s.Content.Watch {
		g.Go(func() error {
			// a broken watcher leaves the site with the posts loaded at start
			if err := library.Watch(gctx); err != nil {
				log.Printf("[WARN] posts are not watched: %v", err)
			}
			return nil
		})
	}
	if cleaner != nil {
		g.Go(func() error {
			cleaner.Run(gctx)
			return nil
		})
	}
	return g.Wait()
}

// CleanupCmd implements the cleanup subcommand
type CleanupCmd struct {
	DB     string        `short:"d" long:"db" env:"FOLIO_PREFS_DB" required:"true" description:"database URL (sqlite file or postgres://...)"`
	MaxAge time.Duration `long:"max-age" env:"FOLIO_PREFS_MAX_AGE" default:"8760h" description:"remove preferences not updated for longer"`
	Debug  bool          `long:"dbg" env:"DEBUG" description:"debug mode"`

	out io.Writer
}

// Execute runs the cleanup command
func (c *CleanupCmd) Execute(_ []string) error {
	out := setupLogs(c.Debug)
	if c.out != nil {
		out = c.out
	}

	st, err := store.New(c.DB)
	if err != nil {
		return fmt.Errorf("failed to initialize store: %w", err)
	}
	defer st.Close()

	n, err := st.Cleanup(context.Background(), c.MaxAge)
	if err != nil {
		return fmt.Errorf("failed to clean up preferences: %w", err)
	}
	left, err := st.Count(context.Background())
	if err != nil {
		return fmt.Errorf("failed to count preferences: %w", err)
	}
	_, _ = fmt.Fprintf(out, "removed %s stale preferences, %s left\n", humanize.Comma(n), humanize.Comma(int64(left)))
	return nil
}

// CheckCmd implements the check subcommand
type CheckCmd struct {
	Content ContentOptions `group:"content" namespace:"content" env-namespace:"FOLIO_CONTENT"`
	Debug   bool           `long:"dbg" env:"DEBUG" description:"debug mode"`

	out io.Writer
}

// Execute runs the check command, every post is rendered once so broken markdown shows up
func (c *CheckCmd) Execute(_ []string) error {
	out := setupLogs(c.Debug)
	if c.out != nil {
		out = c.out
	}

	library, profile, err := loadContent(c.Content)
	if err != nil {
		return err
	}
	defer library.Close()

	posts := library.List()
	_, _ = fmt.Fprintf(out, "site %q by %s, %d post(s)\n", profile.Site.Name, profile.Hero.Name, len(posts))
	var failed int
	for _, p := range posts {
		if _, err := library.Get(p.Slug); err != nil {
			failed++
			_, _ = fmt.Fprintf(out, "  %s: %v\n", p.Slug, err)
			continue
		}
		_, _ = fmt.Fprintf(out, "  %s  %q, %s, %d min read\n", p.Slug, p.Title, humanize.Time(p.Date), p.ReadingTime)
	}
	if failed > 0 {
		return fmt.Errorf("%d post(s) failed to render", failed)
	}
	return nil
}

func loadContent(opts ContentOptions) (*content.Library, content.Profile, error) {
	profile, err := content.LoadProfile(opts.Profile)
	if err != nil {
		return nil, content.Profile{}, fmt.Errorf("failed to load profile: %w", err)
	}

	library, err := content.NewLibrary(opts.Posts, content.NewRenderer(content.NewHighlighter()), opts.CacheSize)
	if err != nil {
		return nil, content.Profile{}, fmt.Errorf("failed to initialize posts: %w", err)
	}
	if err := library.Load(); err != nil {
		_ = library.Close()
		return nil, content.Profile{}, fmt.Errorf("failed to load posts: %w", err)
	}
	log.Printf("[INFO] loaded %d post(s) from %s", len(library.List()), opts.Posts)
	return library, profile, nil
}
