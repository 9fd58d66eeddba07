package web

import (
	validation "github.com/go-ozzo/ozzo-validation/v4"
)

// maxBodyLen caps post bodies at the form boundary. The remote API
// accepts longer bodies; the cap is ours.
const maxBodyLen = 500

type loginForm struct {
	Name  string `form:"name"`
	Token string `form:"token"`
}

func (f loginForm) Validate() error {
	return validation.ValidateStruct(&f,
		validation.Field(&f.Name, validation.Required.Error("display name is required")),
		validation.Field(&f.Token, validation.Required.Error("API token is required")),
	)
}

type postForm struct {
	Title string `form:"title"`
	Body  string `form:"body"`
	Page  int    `form:"page"`
}

func (f postForm) Validate() error {
	return validation.ValidateStruct(&f,
		validation.Field(&f.Title, validation.Required.Error("title is required")),
		validation.Field(&f.Body,
			validation.Required.Error("body is required"),
			validation.Length(1, maxBodyLen).Error("body must be at most 500 characters"),
		),
	)
}

// page returns the form's page number, defaulting to the first page.
func (f postForm) page() int {
	if f.Page < 1 {
		return 1
	}
	return f.Page
}
