package gorest

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// ID is a remote identifier. The API types ids as numbers in JSON but
// they travel as path segments everywhere else, so we normalize to a
// string at the decode boundary and accept either form.
type ID string

func (id *ID) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || string(data) == "null" {
		*id = ""
		return nil
	}
	if data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*id = ID(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(data, &n); err != nil {
		return fmt.Errorf("id is neither string nor number: %w", err)
	}
	*id = ID(n.String())
	return nil
}

func (id ID) String() string { return string(id) }

// Author is the denormalized owner snapshot attached to a post at fetch
// time. It is a point-in-time copy and is not kept in sync with later
// user changes.
type Author struct {
	Name  string `json:"name"`
	Email string `json:"email"`
}

// Post is a user-authored content record from the remote API. Display
// fields past Body are optional and usually absent.
type Post struct {
	ID         ID      `json:"id"`
	UserID     ID      `json:"user_id"`
	Title      string  `json:"title"`
	Body       string  `json:"body"`
	Date       string  `json:"date,omitempty"`
	Slug       string  `json:"slug,omitempty"`
	CoverImage string  `json:"coverImage,omitempty"`
	Excerpt    string  `json:"excerpt,omitempty"`
	Author     *Author `json:"author,omitempty"`
}

// User is a remote user record.
type User struct {
	ID     ID     `json:"id"`
	Name   string `json:"name"`
	Email  string `json:"email"`
	Gender string `json:"gender,omitempty"`
	Status string `json:"status,omitempty"`
}

// AnonymousAuthor is substituted whenever an author lookup fails or
// comes back empty, so an enriched post always carries an author.
func AnonymousAuthor() *Author {
	return &Author{
		Name:  "Anonymous User",
		Email: "no-email@example.com",
	}
}

// Page is one page of posts plus the pagination extent reported by the
// API.
type Page struct {
	Number     int
	TotalPages int
	Posts      []Post
}
