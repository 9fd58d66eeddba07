// Package store holds the in-memory post state for the page the user is
// looking at. It performs no I/O: callers mutate it only after the
// corresponding remote call has succeeded.
package store

import (
	"strings"
	"sync"

	"postboard/internal/gorest"
)

// Patch is a partial post update. Nil fields keep the existing value.
type Patch struct {
	Title *string
	Body  *string
}

// Store keeps the current page's posts plus the filtered view derived
// from the last search term. posts is replaced wholesale on every page
// fetch; filtered is always a subset of the current posts.
type Store struct {
	mu       sync.RWMutex
	posts    []gorest.Post
	filtered []gorest.Post
	term     string
}

func New() *Store {
	return &Store{}
}

// Replace swaps in a new page of posts, discarding the old page
// entirely. An active filter is recomputed against the new posts so the
// filtered view can never be stale relative to them.
func (s *Store) Replace(posts []gorest.Post) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.posts = make([]gorest.Post, len(posts))
	copy(s.posts, posts)
	s.refilter()
}

// Add appends a post. Insertion order is kept and ids are not checked
// for duplicates.
func (s *Store) Add(post gorest.Post) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.posts = append(s.posts, post)
}

// Update shallow-merges patch onto the post with the given id. Posts
// that don't match are untouched; a missing id is a no-op.
func (s *Store) Update(id gorest.ID, patch Patch) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for i := range s.posts {
		if s.posts[i].ID != id {
			continue
		}
		if patch.Title != nil {
			s.posts[i].Title = *patch.Title
		}
		if patch.Body != nil {
			s.posts[i].Body = *patch.Body
		}
	}
}

// Remove deletes every post with the given id, preserving the relative
// order of the rest. A missing id is a no-op.
func (s *Store) Remove(id gorest.ID) {
	s.mu.Lock()
	defer s.mu.Unlock()

	kept := s.posts[:0]
	for _, p := range s.posts {
		if p.ID != id {
			kept = append(kept, p)
		}
	}
	s.posts = kept
}

// Filter records query as the active search term and recomputes the
// filtered view: a case-insensitive substring match over title or body,
// order preserved. An empty query clears the filter, meaning "show all".
func (s *Store) Filter(query string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.term = query
	s.refilter()
}

// refilter recomputes filtered from posts and term. Callers hold mu.
func (s *Store) refilter() {
	if s.term == "" {
		s.filtered = nil
		return
	}

	needle := strings.ToLower(s.term)
	s.filtered = s.filtered[:0]
	for _, p := range s.posts {
		if strings.Contains(strings.ToLower(p.Title), needle) ||
			strings.Contains(strings.ToLower(p.Body), needle) {
			s.filtered = append(s.filtered, p)
		}
	}
}

// Posts returns a copy of the current page's posts.
func (s *Store) Posts() []gorest.Post {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return copyPosts(s.posts)
}

// Filtered returns a copy of the posts matching the active term. It is
// empty when no term is active.
func (s *Store) Filtered() []gorest.Post {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return copyPosts(s.filtered)
}

// Term returns the active search term, "" when none.
func (s *Store) Term() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.term
}

// Visible returns what the UI should render: the filtered view while a
// term is active, otherwise the full page.
func (s *Store) Visible() []gorest.Post {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.term != "" {
		return copyPosts(s.filtered)
	}
	return copyPosts(s.posts)
}

func copyPosts(posts []gorest.Post) []gorest.Post {
	out := make([]gorest.Post, len(posts))
	copy(out, posts)
	return out
}
