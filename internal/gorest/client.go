// Package gorest is a client for the hosted posts/users REST API.
package gorest

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

const (
	// DefaultBaseURL is the public API the app was written against.
	DefaultBaseURL = "https://gorest.co.in/public/v2"

	// ListPreviewSize is the raw first-page fetch size; PageSize is the
	// size of every browsed page.
	ListPreviewSize = 5
	PageSize        = 20

	// fallbackTotalPages is used when the API omits its pagination
	// header.
	fallbackTotalPages = 100

	enrichConcurrency = 5
)

type ctxKey int

const tokenKey ctxKey = 0

// WithToken returns a context carrying a bearer token. The client reads
// it on every request, so a rotated credential takes effect on the next
// call without rebuilding the client.
func WithToken(ctx context.Context, token string) context.Context {
	return context.WithValue(ctx, tokenKey, token)
}

// Client is a gorest API client.
type Client struct {
	baseURL    string
	token      string // static fallback when the context carries none
	httpClient *http.Client
	log        zerolog.Logger
}

// NewClient creates a new API client. token may be empty when every
// caller supplies one via WithToken.
func NewClient(baseURL, token string, log zerolog.Logger) *Client {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	return &Client{
		baseURL: baseURL,
		token:   token,
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
		log: log,
	}
}

func (c *Client) bearer(ctx context.Context) string {
	if t, ok := ctx.Value(tokenKey).(string); ok && t != "" {
		return t
	}
	return c.token
}

// do performs a request and decodes the response body into out (when
// non-nil). The response headers are returned for pagination metadata.
func (c *Client) do(ctx context.Context, method, path string, query url.Values, payload, out interface{}) (http.Header, error) {
	u := c.baseURL + path
	if len(query) > 0 {
		u += "?" + query.Encode()
	}

	var body io.Reader
	if payload != nil {
		jsonData, err := json.Marshal(payload)
		if err != nil {
			return nil, fmt.Errorf("marshal request: %w", err)
		}
		body = bytes.NewReader(jsonData)
	}

	req, err := http.NewRequestWithContext(ctx, method, u, body)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if token := c.bearer(ctx); token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("do request: %w", err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("unexpected status: %d %s", resp.StatusCode, resp.Status)
	}

	if out != nil {
		if err := json.Unmarshal(data, out); err != nil {
			return nil, fmt.Errorf("unmarshal response: %w", err)
		}
	}

	return resp.Header, nil
}

// fail logs the underlying cause and returns the generic operation
// error callers are allowed to see.
func (c *Client) fail(op Op, target string, err error) *Error {
	c.log.Error().Err(err).Str("op", string(op)).Str("target", target).Msg("gorest request failed")
	return opErr(op, target)
}

// ListPosts fetches the first page of posts, raw (no author
// enrichment).
func (c *Client) ListPosts(ctx context.Context) ([]Post, error) {
	query := url.Values{"per_page": {strconv.Itoa(ListPreviewSize)}}

	var posts []Post
	if _, err := c.do(ctx, http.MethodGet, "/posts", query, nil, &posts); err != nil {
		return nil, c.fail(OpFetch, "posts", err)
	}
	return posts, nil
}

// PostsByPage fetches one page of posts and attaches each post's author
// via concurrent per-post lookups. A failed lookup degrades that one
// post to the anonymous author; only the page fetch itself can fail.
func (c *Client) PostsByPage(ctx context.Context, pageNum int) (*Page, error) {
	query := url.Values{
		"page":     {strconv.Itoa(pageNum)},
		"per_page": {strconv.Itoa(PageSize)},
	}

	var posts []Post
	header, err := c.do(ctx, http.MethodGet, "/posts", query, nil, &posts)
	if err != nil {
		return nil, c.fail(OpFetch, fmt.Sprintf("posts page %d", pageNum), err)
	}

	c.enrichAll(ctx, posts)

	return &Page{
		Number:     pageNum,
		TotalPages: totalPages(header),
		Posts:      posts,
	}, nil
}

// enrichAll attaches authors to every post in place using a bounded
// worker pool. The join waits for all lookups; none of them can fail
// the batch.
func (c *Client) enrichAll(ctx context.Context, posts []Post) {
	if len(posts) == 0 {
		return
	}

	indexes := make(chan int, len(posts))
	for i := range posts {
		indexes <- i
	}
	close(indexes)

	var wg sync.WaitGroup
	for range enrichConcurrency {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := range indexes {
				user := c.UserByID(ctx, posts[i].UserID)
				posts[i].Author = &Author{Name: user.Name, Email: user.Email}
			}
		}()
	}
	wg.Wait()
}

// UserByID fetches a user record. It never fails: transport errors and
// empty payloads both come back as the anonymous sentinel user.
func (c *Client) UserByID(ctx context.Context, id ID) *User {
	var user User
	if _, err := c.do(ctx, http.MethodGet, "/users/"+url.PathEscape(id.String()), nil, nil, &user); err != nil {
		c.log.Warn().Err(err).Str("user_id", id.String()).Msg("user lookup failed, substituting anonymous user")
		return sentinelUser()
	}
	if user.Name == "" && user.Email == "" {
		c.log.Warn().Str("user_id", id.String()).Msg("user lookup returned empty payload, substituting anonymous user")
		return sentinelUser()
	}
	return &user
}

func sentinelUser() *User {
	anon := AnonymousAuthor()
	return &User{Name: anon.Name, Email: anon.Email}
}

// PostByID fetches a single post and, when the post carries a user
// reference, attaches the author. The author lookup is sequential and
// cannot fail the call.
func (c *Client) PostByID(ctx context.Context, id ID) (*Post, error) {
	var post Post
	if _, err := c.do(ctx, http.MethodGet, "/posts/"+url.PathEscape(id.String()), nil, nil, &post); err != nil {
		return nil, c.fail(OpFetch, "post "+id.String(), err)
	}

	if post.UserID != "" {
		user := c.UserByID(ctx, post.UserID)
		post.Author = &Author{Name: user.Name, Email: user.Email}
	}

	return &post, nil
}

type postPayload struct {
	Title string `json:"title"`
	Body  string `json:"body"`
}

// CreatePost creates a post owned by ownerID and returns the API's
// response verbatim.
func (c *Client) CreatePost(ctx context.Context, ownerID ID, title, body string) (*Post, error) {
	path := "/users/" + url.PathEscape(ownerID.String()) + "/posts"

	var post Post
	if _, err := c.do(ctx, http.MethodPost, path, nil, postPayload{Title: title, Body: body}, &post); err != nil {
		return nil, c.fail(OpCreate, "post for user "+ownerID.String(), err)
	}
	return &post, nil
}

// UpdatePost replaces a post's title and body.
func (c *Client) UpdatePost(ctx context.Context, id ID, title, body string) (*Post, error) {
	var post Post
	if _, err := c.do(ctx, http.MethodPut, "/posts/"+url.PathEscape(id.String()), nil, postPayload{Title: title, Body: body}, &post); err != nil {
		return nil, c.fail(OpUpdate, "post "+id.String(), err)
	}
	return &post, nil
}

// DeletePost deletes a post.
func (c *Client) DeletePost(ctx context.Context, id ID) error {
	if _, err := c.do(ctx, http.MethodDelete, "/posts/"+url.PathEscape(id.String()), nil, nil, nil); err != nil {
		return c.fail(OpDelete, "post "+id.String(), err)
	}
	return nil
}

// FindUsersByName searches users by name, capped at the first ten
// matches.
func (c *Client) FindUsersByName(ctx context.Context, name string) ([]User, error) {
	query := url.Values{
		"name":     {name},
		"per_page": {"10"},
	}

	var users []User
	if _, err := c.do(ctx, http.MethodGet, "/users", query, nil, &users); err != nil {
		return nil, c.fail(OpFetch, "users named "+name, err)
	}
	return users, nil
}

// PostsByUser fetches the posts owned by a user, raw.
func (c *Client) PostsByUser(ctx context.Context, userID ID) ([]Post, error) {
	query := url.Values{"user_id": {userID.String()}}

	var posts []Post
	if _, err := c.do(ctx, http.MethodGet, "/posts", query, nil, &posts); err != nil {
		return nil, c.fail(OpFetch, "posts for user "+userID.String(), err)
	}
	return posts, nil
}

// totalPages reads the pagination extent from the response headers. The
// public API reports it as X-Pagination-Pages; when absent we fall back
// to a fixed extent rather than guessing from page contents.
func totalPages(header http.Header) int {
	if v := header.Get("X-Pagination-Pages"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			return n
		}
	}
	return fallbackTotalPages
}
