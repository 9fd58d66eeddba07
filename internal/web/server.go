// Package web is the HTML surface: login, the paginated post board,
// single-post pages and full-text search, rendered server-side from
// embedded templates.
package web

import (
	"embed"
	"html/template"
	"net/http"
	"net/url"
	"strconv"
	"sync"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"postboard/internal/gorest"
	"postboard/internal/pagecache"
	"postboard/internal/pagination"
	"postboard/internal/refresh"
	"postboard/internal/search"
	"postboard/internal/session"
	"postboard/internal/store"
)

//go:embed templates/*.html
var templatesFS embed.FS

// SessionCookie names the cookie carrying the session id.
const SessionCookie = "postboard_session"

const ctxSession = "session"

type Server struct {
	client    *gorest.Client
	loader    *pagecache.Loader
	sessions  *session.Store
	refresher *refresh.Refresher
	index     *search.Index // nil disables the search page
	log       zerolog.Logger

	mu     sync.Mutex
	stores map[string]*store.Store // per-session page state, keyed by session id
}

func NewServer(
	client *gorest.Client,
	loader *pagecache.Loader,
	sessions *session.Store,
	refresher *refresh.Refresher,
	idx *search.Index,
	log zerolog.Logger,
) *Server {
	return &Server{
		client:    client,
		loader:    loader,
		sessions:  sessions,
		refresher: refresher,
		index:     idx,
		log:       log,
		stores:    make(map[string]*store.Store),
	}
}

// storeFor returns the visitor's own page store, creating it on first
// use. Stores are per session so one visitor's filter or page never
// leaks into another's board.
func (s *Server) storeFor(sess *session.Session) *store.Store {
	s.mu.Lock()
	defer s.mu.Unlock()

	st, ok := s.stores[sess.ID]
	if !ok {
		st = store.New()
		s.stores[sess.ID] = st
	}
	return st
}

func (s *Server) dropStore(sessionID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.stores, sessionID)
}

func (s *Server) Router() *gin.Engine {
	router := gin.New()
	router.Use(RequestLogger(s.log), Recovery(s.log))

	tmpl := template.Must(template.New("").ParseFS(templatesFS, "templates/*.html"))
	router.SetHTMLTemplate(tmpl)

	router.GET("/", s.handleLoginPage)
	router.POST("/login", s.handleLogin)
	router.POST("/logout", s.handleLogout)
	router.GET("/health", s.handleHealth)

	authed := router.Group("/", s.requireSession())
	authed.GET("/posts", s.handlePosts)
	authed.GET("/posts/fragment", s.handlePostsFragment)
	authed.GET("/posts/:id", s.handlePost)
	authed.POST("/posts", s.handleCreate)
	authed.POST("/posts/:id", s.handleUpdate)
	authed.POST("/posts/:id/delete", s.handleDelete)
	authed.GET("/search", s.handleSearch)

	return router
}

// requireSession guards every post route: no valid session, back to the
// login page. A valid session's token is threaded onto the request
// context so every API call downstream authenticates as the visitor.
func (s *Server) requireSession() gin.HandlerFunc {
	return func(c *gin.Context) {
		id, err := c.Cookie(SessionCookie)
		if err != nil || id == "" {
			c.Redirect(http.StatusSeeOther, "/")
			c.Abort()
			return
		}

		sess, err := s.sessions.Get(c.Request.Context(), id)
		if err != nil {
			s.log.Error().Err(err).Msg("session lookup failed")
		}
		if sess == nil {
			c.SetCookie(SessionCookie, "", -1, "/", "", false, true)
			c.Redirect(http.StatusSeeOther, "/")
			c.Abort()
			return
		}

		c.Set(ctxSession, sess)
		c.Request = c.Request.WithContext(gorest.WithToken(c.Request.Context(), sess.Token))
		c.Next()
	}
}

func (s *Server) sessionFrom(c *gin.Context) *session.Session {
	return c.MustGet(ctxSession).(*session.Session)
}

func (s *Server) handleLoginPage(c *gin.Context) {
	if id, err := c.Cookie(SessionCookie); err == nil && id != "" {
		if sess, _ := s.sessions.Get(c.Request.Context(), id); sess != nil {
			c.Redirect(http.StatusSeeOther, "/posts")
			return
		}
	}

	c.HTML(http.StatusOK, "login.html", gin.H{
		"Error": c.Query("error"),
	})
}

// handleLogin verifies the submitted token by looking up the submitted
// name with it. The first matching user becomes the session identity.
func (s *Server) handleLogin(c *gin.Context) {
	var f loginForm
	_ = c.ShouldBind(&f)
	if err := f.Validate(); err != nil {
		s.renderLoginError(c, err.Error())
		return
	}

	ctx := gorest.WithToken(c.Request.Context(), f.Token)
	users, err := s.client.FindUsersByName(ctx, f.Name)
	if err != nil {
		s.renderLoginError(c, "could not verify credentials with the API")
		return
	}
	if len(users) == 0 {
		s.renderLoginError(c, "no user found with that name")
		return
	}

	sess, err := s.sessions.Create(c.Request.Context(), f.Token, f.Name, users[0].ID.String())
	if err != nil {
		s.log.Error().Err(err).Msg("session create failed")
		s.renderLoginError(c, "could not start a session")
		return
	}

	c.SetCookie(SessionCookie, sess.ID, int(session.TTL.Seconds()), "/", "", false, true)
	c.Redirect(http.StatusSeeOther, "/posts")
}

func (s *Server) renderLoginError(c *gin.Context, msg string) {
	c.HTML(http.StatusOK, "login.html", gin.H{"Error": msg})
}

func (s *Server) handleLogout(c *gin.Context) {
	if id, err := c.Cookie(SessionCookie); err == nil && id != "" {
		if err := s.sessions.Delete(c.Request.Context(), id); err != nil {
			s.log.Error().Err(err).Msg("session delete failed")
		}
		s.dropStore(id)
	}
	c.SetCookie(SessionCookie, "", -1, "/", "", false, true)
	c.Redirect(http.StatusSeeOther, "/")
}

// handlePosts renders the board: one cached page of posts, filtered by
// the q term, with the pagination window underneath.
func (s *Server) handlePosts(c *gin.Context) {
	sess := s.sessionFrom(c)
	pageNum := queryInt(c, "page", 1)
	q := c.Query("q")

	data := gin.H{
		"UserName": sess.Name,
		"Query":    q,
		"Page":     pageNum,
		"Flash":    c.Query("flash"),
	}

	page, err := s.loader.Page(c.Request.Context(), pageNum)
	if err != nil {
		data["Error"] = err.Error()
		c.HTML(http.StatusOK, "posts.html", data)
		return
	}

	st := s.storeFor(sess)
	s.refresher.Seed(page, st)
	st.Filter(q)

	data["Posts"] = st.Visible()
	data["Window"] = pagination.Window(page.Number, page.TotalPages)
	c.HTML(http.StatusOK, "posts.html", data)
}

// handlePostsFragment re-renders just the post list for the debounced
// filter box. No remote call: it filters the page already in the
// visitor's store.
func (s *Server) handlePostsFragment(c *gin.Context) {
	st := s.storeFor(s.sessionFrom(c))
	st.Filter(c.Query("q"))
	c.HTML(http.StatusOK, "post_list.html", gin.H{
		"Posts": st.Visible(),
	})
}

func (s *Server) handlePost(c *gin.Context) {
	sess := s.sessionFrom(c)
	id := gorest.ID(c.Param("id"))

	data := gin.H{
		"UserName": sess.Name,
		"Flash":    c.Query("flash"),
	}

	post, err := s.client.PostByID(c.Request.Context(), id)
	if err != nil {
		data["Error"] = err.Error()
		c.HTML(http.StatusOK, "post.html", data)
		return
	}

	data["Post"] = post
	data["Own"] = post.UserID.String() == sess.UserID
	c.HTML(http.StatusOK, "post.html", data)
}

func (s *Server) handleCreate(c *gin.Context) {
	sess := s.sessionFrom(c)

	var f postForm
	_ = c.ShouldBind(&f)
	if err := f.Validate(); err != nil {
		s.redirectBoard(c, f.page(), err.Error())
		return
	}

	post, err := s.client.CreatePost(c.Request.Context(), gorest.ID(sess.UserID), f.Title, f.Body)
	if err != nil {
		s.redirectBoard(c, f.page(), err.Error())
		return
	}

	st := s.storeFor(sess)
	st.Add(*post)
	s.loader.Invalidate(c.Request.Context())
	s.refresher.Kick(f.page(), sess.Token, st)
	s.redirectBoard(c, f.page(), "Post created")
}

func (s *Server) handleUpdate(c *gin.Context) {
	sess := s.sessionFrom(c)
	id := gorest.ID(c.Param("id"))

	var f postForm
	_ = c.ShouldBind(&f)
	if err := f.Validate(); err != nil {
		s.redirectPost(c, id, err.Error())
		return
	}

	if _, err := s.client.UpdatePost(c.Request.Context(), id, f.Title, f.Body); err != nil {
		s.redirectPost(c, id, err.Error())
		return
	}

	st := s.storeFor(sess)
	st.Update(id, store.Patch{Title: &f.Title, Body: &f.Body})
	s.loader.Invalidate(c.Request.Context())
	s.refresher.Kick(f.page(), sess.Token, st)
	s.redirectPost(c, id, "Post updated")
}

func (s *Server) handleDelete(c *gin.Context) {
	sess := s.sessionFrom(c)
	id := gorest.ID(c.Param("id"))
	pageNum := queryInt(c, "page", 1)

	if err := s.client.DeletePost(c.Request.Context(), id); err != nil {
		s.redirectBoard(c, pageNum, err.Error())
		return
	}

	st := s.storeFor(sess)
	st.Remove(id)
	s.loader.Invalidate(c.Request.Context())
	if s.index != nil {
		if err := s.index.Delete(id); err != nil {
			s.log.Warn().Err(err).Str("post_id", id.String()).Msg("search index delete failed")
		}
	}
	s.refresher.Kick(pageNum, sess.Token, st)
	s.redirectBoard(c, pageNum, "Post deleted")
}

// handleSearch queries the full-text index, which reaches across every
// page the app has seen rather than just the one on screen.
func (s *Server) handleSearch(c *gin.Context) {
	sess := s.sessionFrom(c)
	q := c.Query("q")

	data := gin.H{
		"UserName": sess.Name,
		"Query":    q,
	}

	if s.index == nil {
		data["Error"] = "search index is disabled"
		c.HTML(http.StatusOK, "search.html", data)
		return
	}

	if q != "" {
		results, err := s.index.Search(q, 20)
		if err != nil {
			data["Error"] = "search failed"
			s.log.Error().Err(err).Str("query", q).Msg("index search failed")
		} else {
			data["Results"] = searchHits(results)
		}
	}

	c.HTML(http.StatusOK, "search.html", data)
}

func (s *Server) handleHealth(c *gin.Context) {
	resp := gin.H{"status": "ok"}
	if s.index != nil {
		if n, err := s.index.Count(); err == nil {
			resp["indexed_posts"] = n
		}
	}
	c.JSON(http.StatusOK, resp)
}

type searchHit struct {
	ID      string
	Title   string
	Author  string
	Score   float64
	Preview template.HTML
}

// searchHits converts index results for rendering. Preview fragments
// carry the index's own highlight markup and render unescaped.
func searchHits(results []*search.Result) []searchHit {
	hits := make([]searchHit, 0, len(results))
	for _, r := range results {
		hit := searchHit{
			ID:     r.ID,
			Title:  r.Title,
			Author: r.Author,
			Score:  r.Score,
		}
		if fragments, ok := r.Fragments["Body"]; ok && len(fragments) > 0 {
			hit.Preview = template.HTML(fragments[0])
		}
		hits = append(hits, hit)
	}
	return hits
}

func (s *Server) redirectBoard(c *gin.Context, page int, flash string) {
	c.Redirect(http.StatusSeeOther,
		"/posts?page="+strconv.Itoa(page)+"&flash="+url.QueryEscape(flash))
}

func (s *Server) redirectPost(c *gin.Context, id gorest.ID, flash string) {
	c.Redirect(http.StatusSeeOther,
		"/posts/"+url.PathEscape(id.String())+"?flash="+url.QueryEscape(flash))
}

func queryInt(c *gin.Context, key string, fallback int) int {
	if v := c.Query(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			return n
		}
	}
	return fallback
}
