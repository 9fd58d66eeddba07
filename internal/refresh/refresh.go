// Package refresh revalidates page state after mutations. A mutation
// only invalidates the remote view; the refresher refetches the current
// page, reseeds the visitor's store and feeds the search index, with
// bursts of mutations coalesced into a single refetch.
package refresh

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"postboard/internal/debounce"
	"postboard/internal/gorest"
	"postboard/internal/pagecache"
	"postboard/internal/search"
	"postboard/internal/store"
)

// DefaultDelay is the quiet period before a kicked refresh runs.
const DefaultDelay = 500 * time.Millisecond

// Refresher ties the page loader and search index together behind a
// debounced trigger. The store to reseed travels with each kick, since
// every visitor has their own.
type Refresher struct {
	loader *pagecache.Loader
	index  *search.Index
	log    zerolog.Logger
	kick   func(kickReq)
}

type kickReq struct {
	page  int
	token string
	store *store.Store
}

func New(loader *pagecache.Loader, idx *search.Index, delay time.Duration, log zerolog.Logger) *Refresher {
	if delay <= 0 {
		delay = DefaultDelay
	}
	r := &Refresher{
		loader: loader,
		index:  idx,
		log:    log,
	}
	r.kick = debounce.New(delay, r.refresh)
	return r
}

// Kick schedules a refresh of the given page. Rapid successive kicks
// collapse into one refresh of the last page asked for. token is the
// kicking session's bearer credential: the background refetch runs off
// the request goroutine and must still authenticate as the visitor.
func (r *Refresher) Kick(page int, token string, st *store.Store) {
	r.kick(kickReq{page: page, token: token, store: st})
}

// Refresh runs the revalidation immediately: drop cached pages, refetch
// the given page, reseed the store, index the posts.
func (r *Refresher) Refresh(ctx context.Context, pageNum int, st *store.Store) error {
	r.loader.Invalidate(ctx)

	page, err := r.loader.Page(ctx, pageNum)
	if err != nil {
		return err
	}

	if st != nil {
		st.Replace(page.Posts)
	}
	r.indexPage(page)
	return nil
}

// Seed pushes an already-fetched page into the store and index, used on
// ordinary page views where no invalidation is wanted.
func (r *Refresher) Seed(page *gorest.Page, st *store.Store) {
	if st != nil {
		st.Replace(page.Posts)
	}
	r.indexPage(page)
}

func (r *Refresher) indexPage(page *gorest.Page) {
	if r.index == nil {
		return
	}
	if err := r.index.IndexPosts(page.Posts); err != nil {
		r.log.Warn().Err(err).Int("page", page.Number).Msg("search indexing failed")
	}
}

// refresh is the debounced target; it runs off the request goroutine
// with its own deadline, carrying the kicking session's token.
func (r *Refresher) refresh(req kickReq) {
	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()
	if req.token != "" {
		ctx = gorest.WithToken(ctx, req.token)
	}

	if err := r.Refresh(ctx, req.page, req.store); err != nil {
		r.log.Error().Err(err).Int("page", req.page).Msg("background page refresh failed")
		return
	}
	r.log.Debug().Int("page", req.page).Msg("page refreshed after mutation")
}
