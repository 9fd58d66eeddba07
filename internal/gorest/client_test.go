package gorest

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestClient(t *testing.T, handler http.Handler) *Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return NewClient(srv.URL, "static-token", zerolog.Nop())
}

func writeJSON(w http.ResponseWriter, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(v)
}

func TestIDUnmarshalAcceptsNumberAndString(t *testing.T) {
	var p Post
	require.NoError(t, json.Unmarshal([]byte(`{"id": 7716761, "user_id": "42"}`), &p))
	assert.Equal(t, ID("7716761"), p.ID)
	assert.Equal(t, ID("42"), p.UserID)
}

func TestBearerTokenReadPerRequest(t *testing.T) {
	var mu sync.Mutex
	var seen []string

	client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		mu.Lock()
		seen = append(seen, r.Header.Get("Authorization"))
		mu.Unlock()
		writeJSON(w, []Post{})
	}))

	ctx := context.Background()
	_, err := client.ListPosts(ctx)
	require.NoError(t, err)

	// A rotated credential in the context wins over the static one on
	// the very next call.
	_, err = client.ListPosts(WithToken(ctx, "rotated"))
	require.NoError(t, err)

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, []string{"Bearer static-token", "Bearer rotated"}, seen)
}

func TestPostsByPageEnrichesAuthors(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/posts", func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "2", r.URL.Query().Get("page"))
		assert.Equal(t, "20", r.URL.Query().Get("per_page"))
		w.Header().Set("X-Pagination-Pages", "87")
		writeJSON(w, []Post{
			{ID: "1", UserID: "10", Title: "first"},
			{ID: "2", UserID: "11", Title: "second"},
			{ID: "3", UserID: "404", Title: "orphaned"},
		})
	})
	mux.HandleFunc("/users/10", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, User{ID: "10", Name: "Ada", Email: "ada@example.com"})
	})
	mux.HandleFunc("/users/11", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, User{ID: "11", Name: "Brin", Email: "brin@example.com"})
	})
	mux.HandleFunc("/users/404", func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"message":"not found"}`, http.StatusNotFound)
	})

	client := newTestClient(t, mux)

	page, err := client.PostsByPage(context.Background(), 2)
	require.NoError(t, err)
	assert.Equal(t, 2, page.Number)
	assert.Equal(t, 87, page.TotalPages)
	require.Len(t, page.Posts, 3)

	// Every post has an author after enrichment; the failed lookup
	// degraded to the sentinel instead of failing the page.
	assert.Equal(t, "Ada", page.Posts[0].Author.Name)
	assert.Equal(t, "Brin", page.Posts[1].Author.Name)
	assert.Equal(t, "Anonymous User", page.Posts[2].Author.Name)
	assert.Equal(t, "no-email@example.com", page.Posts[2].Author.Email)
}

func TestPostsByPageTotalPagesFallback(t *testing.T) {
	client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, []Post{})
	}))

	page, err := client.PostsByPage(context.Background(), 1)
	require.NoError(t, err)
	assert.Equal(t, 100, page.TotalPages)
}

func TestPostsByPageFetchFailure(t *testing.T) {
	client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "boom", http.StatusInternalServerError)
	}))

	_, err := client.PostsByPage(context.Background(), 3)
	require.Error(t, err)

	var apiErr *Error
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, OpFetch, apiErr.Op)
	assert.Equal(t, "failed to fetch posts page 3", apiErr.Error())
}

func TestUserByIDEmptyPayloadYieldsSentinel(t *testing.T) {
	client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, map[string]interface{}{})
	}))

	user := client.UserByID(context.Background(), "9")
	assert.Equal(t, "Anonymous User", user.Name)
	assert.Equal(t, "no-email@example.com", user.Email)
}

func TestPostByIDAttachesSentinelOnLookupFailure(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/posts/42", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, Post{ID: "42", UserID: "7", Title: "t", Body: "b"})
	})
	mux.HandleFunc("/users/7", func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "nope", http.StatusInternalServerError)
	})

	client := newTestClient(t, mux)

	post, err := client.PostByID(context.Background(), "42")
	require.NoError(t, err)
	require.NotNil(t, post.Author)
	assert.Equal(t, "Anonymous User", post.Author.Name)
}

func TestPostByIDFetchFailure(t *testing.T) {
	client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.NotFound(w, r)
	}))

	_, err := client.PostByID(context.Background(), "42")
	var apiErr *Error
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, "failed to fetch post 42", apiErr.Error())
}

func TestCreateUpdateDelete(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/users/5/posts", func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, http.MethodPost, r.Method)
		var payload map[string]string
		require.NoError(t, json.NewDecoder(r.Body).Decode(&payload))
		assert.Equal(t, map[string]string{"title": "hi", "body": "there"}, payload)
		w.WriteHeader(http.StatusCreated)
		writeJSON(w, Post{ID: "99", UserID: "5", Title: "hi", Body: "there"})
	})
	mux.HandleFunc("/posts/99", func(w http.ResponseWriter, r *http.Request) {
		switch r.Method {
		case http.MethodPut:
			writeJSON(w, Post{ID: "99", UserID: "5", Title: "hi2", Body: "there2"})
		case http.MethodDelete:
			w.WriteHeader(http.StatusNoContent)
		default:
			http.Error(w, "bad method", http.StatusMethodNotAllowed)
		}
	})

	client := newTestClient(t, mux)
	ctx := context.Background()

	created, err := client.CreatePost(ctx, "5", "hi", "there")
	require.NoError(t, err)
	assert.Equal(t, ID("99"), created.ID)

	updated, err := client.UpdatePost(ctx, "99", "hi2", "there2")
	require.NoError(t, err)
	assert.Equal(t, "hi2", updated.Title)

	require.NoError(t, client.DeletePost(ctx, "99"))
}

func TestWriteFailuresNameTheirTarget(t *testing.T) {
	client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "denied", http.StatusUnauthorized)
	}))
	ctx := context.Background()

	_, err := client.CreatePost(ctx, "5", "t", "b")
	assert.EqualError(t, err, "failed to create post for user 5")

	_, err = client.UpdatePost(ctx, "8", "t", "b")
	assert.EqualError(t, err, "failed to update post 8")

	err = client.DeletePost(ctx, "8")
	assert.EqualError(t, err, "failed to delete post 8")
}

func TestFindUsersByName(t *testing.T) {
	client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/users", r.URL.Path)
		assert.Equal(t, "ada", r.URL.Query().Get("name"))
		assert.Equal(t, "10", r.URL.Query().Get("per_page"))
		writeJSON(w, []User{{ID: "10", Name: "Ada"}})
	}))

	users, err := client.FindUsersByName(context.Background(), "ada")
	require.NoError(t, err)
	require.Len(t, users, 1)
	assert.Equal(t, ID("10"), users[0].ID)
}

func TestPostsByUser(t *testing.T) {
	client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "12", r.URL.Query().Get("user_id"))
		writeJSON(w, []Post{{ID: "1", UserID: "12"}})
	}))

	posts, err := client.PostsByUser(context.Background(), "12")
	require.NoError(t, err)
	require.Len(t, posts, 1)
}

func TestListPostsUsesPreviewSize(t *testing.T) {
	client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, fmt.Sprintf("%d", ListPreviewSize), r.URL.Query().Get("per_page"))
		writeJSON(w, []Post{{ID: "1"}})
	}))

	posts, err := client.ListPosts(context.Background())
	require.NoError(t, err)
	require.Len(t, posts, 1)
	assert.Nil(t, posts[0].Author, "list fetch is raw, no enrichment")
}
