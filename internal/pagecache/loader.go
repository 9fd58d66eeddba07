// Package pagecache is the read-through cache between the web layer and
// the remote API, keyed by page number.
package pagecache

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/singleflight"

	"postboard/internal/cache"
	"postboard/internal/gorest"
)

const keyPrefix = "posts:page:"

// DefaultTTL matches the staleness window the UI tolerates before a
// page is refetched.
const DefaultTTL = 5 * time.Minute

// Fetcher is the slice of the API client the loader needs.
type Fetcher interface {
	PostsByPage(ctx context.Context, page int) (*gorest.Page, error)
}

// Loader serves pages from cache, deduplicates concurrent fetches of
// the same page, and stores results with a TTL. Cache failures degrade
// to a direct fetch; they never fail a page load.
type Loader struct {
	fetcher Fetcher
	cache   cache.Cache
	ttl     time.Duration
	group   singleflight.Group
	log     zerolog.Logger
}

func NewLoader(fetcher Fetcher, c cache.Cache, ttl time.Duration, log zerolog.Logger) *Loader {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &Loader{fetcher: fetcher, cache: c, ttl: ttl, log: log}
}

func pageKey(n int) string { return fmt.Sprintf("%s%d", keyPrefix, n) }

// Page returns the given page, from cache when fresh. Concurrent
// callers asking for the same page share one remote fetch.
func (l *Loader) Page(ctx context.Context, n int) (*gorest.Page, error) {
	key := pageKey(n)

	var cached gorest.Page
	found, err := l.cache.Get(ctx, key, &cached)
	if err != nil {
		l.log.Warn().Err(err).Str("key", key).Msg("page cache read failed, fetching directly")
	}
	if found {
		return &cached, nil
	}

	result, err, _ := l.group.Do(key, func() (interface{}, error) {
		page, err := l.fetcher.PostsByPage(ctx, n)
		if err != nil {
			return nil, err
		}
		if err := l.cache.Set(ctx, key, page, l.ttl); err != nil {
			l.log.Warn().Err(err).Str("key", key).Msg("page cache write failed")
		}
		return page, nil
	})
	if err != nil {
		return nil, err
	}
	return result.(*gorest.Page), nil
}

// Invalidate drops every cached page. The next Page call refetches.
func (l *Loader) Invalidate(ctx context.Context) {
	if err := l.cache.DeletePattern(ctx, keyPrefix+"*"); err != nil {
		l.log.Warn().Err(err).Msg("page cache invalidation failed")
	}
}
