package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog"

	"postboard/internal/cache"
	"postboard/internal/config"
	"postboard/internal/gorest"
	"postboard/internal/pagecache"
	"postboard/internal/refresh"
	"postboard/internal/search"
	"postboard/internal/session"
	"postboard/internal/web"
)

func main() {
	// .env is optional; real environments set variables directly.
	_ = godotenv.Load()
	cfg := config.Load()
	log := newLogger(cfg.App.Environment)

	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}

	switch command := os.Args[1]; command {
	case "serve":
		runServe(cfg, log)
	case "list":
		runList(cfg, log)
	case "page":
		if len(os.Args) < 3 {
			fmt.Println("Error: page number required")
			fmt.Println("Usage: postboard page <n>")
			os.Exit(1)
		}
		n, err := strconv.Atoi(os.Args[2])
		if err != nil || n < 1 {
			fmt.Printf("Error: invalid page number %q\n", os.Args[2])
			os.Exit(1)
		}
		runPage(cfg, log, n)
	case "get-post":
		if len(os.Args) < 3 {
			fmt.Println("Error: post id required")
			fmt.Println("Usage: postboard get-post <id>")
			os.Exit(1)
		}
		runGetPost(cfg, log, os.Args[2])
	case "find-user":
		if len(os.Args) < 3 {
			fmt.Println("Error: user name required")
			fmt.Println("Usage: postboard find-user <name>")
			os.Exit(1)
		}
		runFindUser(cfg, log, strings.Join(os.Args[2:], " "))
	case "purge-sessions":
		runPurgeSessions(cfg, log)
	default:
		fmt.Printf("Unknown command: %s\n", command)
		printUsage()
		os.Exit(1)
	}
}

func printUsage() {
	fmt.Println("Postboard - a small board over the gorest.co.in posts API")
	fmt.Println()
	fmt.Println("Usage:")
	fmt.Println("  postboard <command> [args]")
	fmt.Println()
	fmt.Println("Commands:")
	fmt.Println("  serve               Start the web server")
	fmt.Println("  list                Show a short preview of recent posts")
	fmt.Println("  page <n>            Show one page of posts with authors")
	fmt.Println("  get-post <id>       Show a single post")
	fmt.Println("  find-user <name>    Look up users by name")
	fmt.Println("  purge-sessions      Remove expired sessions from the local store")
	fmt.Println()
	fmt.Println("Configuration is read from the environment (or a .env file):")
	fmt.Println("  GOREST_TOKEN        API token used by CLI commands")
	fmt.Println("  GOREST_BASE_URL     API base URL (default: the public gorest API)")
	fmt.Println("  HOST, PORT          serve bind address (default: localhost:8080)")
	fmt.Println("  DATA_DIR            sessions db and search index location (default: ./data)")
	fmt.Println("  REDIS_ADDR          optional Redis for the page cache (default: in-memory)")
}

func newLogger(environment string) zerolog.Logger {
	if environment == "development" {
		return zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr}).With().Timestamp().Logger()
	}
	return zerolog.New(os.Stderr).With().Timestamp().Logger()
}

// getToken resolves the CLI token: environment first, then a local
// token file.
func getToken(cfg *config.Config) string {
	if cfg.API.Token != "" {
		return cfg.API.Token
	}
	data, err := os.ReadFile("./token")
	if err != nil {
		return ""
	}
	return strings.TrimSpace(string(data))
}

func newClient(cfg *config.Config, log zerolog.Logger) *gorest.Client {
	return gorest.NewClient(cfg.API.BaseURL, getToken(cfg), log)
}

// newCache prefers Redis when configured, falling back to the in-memory
// cache when it is absent or unreachable.
func newCache(cfg *config.Config, log zerolog.Logger) cache.Cache {
	if cfg.Redis.Addr == "" {
		return cache.NewMemory()
	}

	r := cache.NewRedis(cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB)
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := r.Ping(ctx); err != nil {
		log.Warn().Err(err).Str("addr", cfg.Redis.Addr).
			Msg("redis unavailable, using in-memory page cache")
		_ = r.Close()
		return cache.NewMemory()
	}

	log.Info().Str("addr", cfg.Redis.Addr).Msg("using redis page cache")
	return r
}

func runServe(cfg *config.Config, log zerolog.Logger) {
	if err := os.MkdirAll(cfg.App.DataDir, 0o755); err != nil {
		log.Fatal().Err(err).Str("dir", cfg.App.DataDir).Msg("creating data directory")
	}

	sessions, err := session.Open(filepath.Join(cfg.App.DataDir, "sessions.db"))
	if err != nil {
		log.Fatal().Err(err).Msg("opening session store")
	}
	defer sessions.Close()

	if purged, err := sessions.PurgeExpired(context.Background()); err != nil {
		log.Warn().Err(err).Msg("purging expired sessions")
	} else if purged > 0 {
		log.Info().Int64("purged", purged).Msg("removed expired sessions")
	}

	idx, err := search.Open(filepath.Join(cfg.App.DataDir, "bleve"))
	if err != nil {
		log.Fatal().Err(err).Msg("opening search index")
	}
	defer idx.Close()

	client := newClient(cfg, log)
	loader := pagecache.NewLoader(client, newCache(cfg, log), cfg.App.CacheTTL, log)
	refresher := refresh.New(loader, idx, cfg.App.RefreshDelay, log)

	server := web.NewServer(client, loader, sessions, refresher, idx, log)

	addr := cfg.App.Host + ":" + cfg.App.Port
	log.Info().Str("addr", addr).Msg("postboard listening")
	if err := http.ListenAndServe(addr, server.Router()); err != nil {
		log.Fatal().Err(err).Msg("server stopped")
	}
}

func runList(cfg *config.Config, log zerolog.Logger) {
	posts, err := newClient(cfg, log).ListPosts(context.Background())
	if err != nil {
		log.Fatal().Err(err).Msg("listing posts")
	}

	for _, p := range posts {
		fmt.Printf("%s  %s\n", p.ID, p.Title)
	}
}

func runPage(cfg *config.Config, log zerolog.Logger, n int) {
	page, err := newClient(cfg, log).PostsByPage(context.Background(), n)
	if err != nil {
		log.Fatal().Err(err).Msg("fetching page")
	}

	fmt.Printf("Page %d of %d\n\n", page.Number, page.TotalPages)
	for _, p := range page.Posts {
		author := ""
		if p.Author != nil {
			author = p.Author.Name
		}
		fmt.Printf("%s  %-40s  %s\n", p.ID, truncate(p.Title, 40), author)
	}
}

func runGetPost(cfg *config.Config, log zerolog.Logger, id string) {
	post, err := newClient(cfg, log).PostByID(context.Background(), gorest.ID(id))
	if err != nil {
		log.Fatal().Err(err).Msg("fetching post")
	}

	fmt.Println(post.Title)
	if post.Author != nil {
		fmt.Printf("by %s <%s>\n", post.Author.Name, post.Author.Email)
	}
	fmt.Println()
	fmt.Println(post.Body)
}

func runFindUser(cfg *config.Config, log zerolog.Logger, name string) {
	users, err := newClient(cfg, log).FindUsersByName(context.Background(), name)
	if err != nil {
		log.Fatal().Err(err).Msg("finding users")
	}

	if len(users) == 0 {
		fmt.Println("No users found")
		return
	}
	for _, u := range users {
		fmt.Printf("%s  %-30s  %s\n", u.ID, u.Name, u.Email)
	}
}

func runPurgeSessions(cfg *config.Config, log zerolog.Logger) {
	sessions, err := session.Open(filepath.Join(cfg.App.DataDir, "sessions.db"))
	if err != nil {
		log.Fatal().Err(err).Msg("opening session store")
	}
	defer sessions.Close()

	purged, err := sessions.PurgeExpired(context.Background())
	if err != nil {
		log.Fatal().Err(err).Msg("purging sessions")
	}
	fmt.Printf("Removed %d expired sessions\n", purged)
}

// truncate shortens s to at most n runes, never splitting a multi-byte
// character.
func truncate(s string, n int) string {
	runes := []rune(s)
	if len(runes) <= n {
		return s
	}
	return string(runes[:n-1]) + "…"
}
