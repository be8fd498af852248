package models

import "strings"

// Reader is an entry of the reader search endpoint.
// The backend uses both "name" and "reader_name" depending on the endpoint.
type Reader struct {
	ID         int    `json:"id"`
	Name       string `json:"name,omitempty"`
	ReaderName string `json:"reader_name,omitempty"`
	Email      string `json:"email"`
}

// DisplayName returns whichever name field the backend filled.
func (r Reader) DisplayName() string {
	if strings.TrimSpace(r.Name) != "" {
		return r.Name
	}
	return r.ReaderName
}

// Matches reports whether query (already lower-cased) occurs in the name or email.
func (r Reader) Matches(query string) bool {
	return strings.Contains(strings.ToLower(r.DisplayName()), query) ||
		strings.Contains(strings.ToLower(r.Email), query)
}

// ReaderRef is the selected reader of a workflow.
type ReaderRef struct {
	ID    int
	Name  string
	Email string
}
