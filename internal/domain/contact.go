package domain

// Contact is a vCard snapshot from the CardDAV address book.
type Contact struct {
	Path   string // resource path on the server
	Name   string // FN
	Phones []string
	Emails []string
	Org    string
	Title  string
	Note   string
}
