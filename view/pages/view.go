package pages

import (
	"net/url"

	"github.com/a-h/templ"

	"github.com/mmuslimabdulj/goat-dm/internal/domain"
)

//go:generate go run github.com/a-h/templ/cmd/templ@v0.3.977 generate

// ChatView is the data behind the chat page
type ChatView struct {
	Current     string
	Contacts    []domain.Contact
	Suggestions []string
	// Peer is the open conversation, empty on the contact overview
	Peer     string
	Messages []domain.Message
	Flash    string
}

// chatURL links a conversation. Usernames may contain '/' or '%', so the name
// is escaped as a single path segment.
func chatURL(username string) templ.SafeURL {
	return templ.URL("/chat/" + url.PathEscape(username))
}
