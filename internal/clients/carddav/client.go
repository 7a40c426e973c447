// Package carddav wraps the CardDAV protocol client for the contacts
// collaborator.
package carddav

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/emersion/go-vcard"
	"github.com/emersion/go-webdav/carddav"
	"github.com/google/uuid"

	"github.com/dhkang/dalbot/internal/domain"
)

// Client is a CardDAV client bound to one address book account.
type Client struct {
	baseURL  string
	username string
	password string
	client   *carddav.Client
}

// NewClient creates a new CardDAV client.
func NewClient(baseURL, username, password string) *Client {
	return &Client{
		baseURL:  baseURL,
		username: username,
		password: password,
	}
}

// IsConfigured returns true if the client has an endpoint and credentials.
func (c *Client) IsConfigured() bool {
	return c.baseURL != "" && c.username != "" && c.password != ""
}

func (c *Client) connect() (*carddav.Client, error) {
	if c.client != nil {
		return c.client, nil
	}

	httpClient := &http.Client{
		Transport: &basicAuthTransport{
			username: c.username,
			password: c.password,
		},
		Timeout: 30 * time.Second,
	}

	client, err := carddav.NewClient(httpClient, c.baseURL)
	if err != nil {
		return nil, fmt.Errorf("connect to CardDAV: %w", err)
	}

	c.client = client
	return client, nil
}

type basicAuthTransport struct {
	username string
	password string
}

func (t *basicAuthTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	req.SetBasicAuth(t.username, t.password)
	return http.DefaultTransport.RoundTrip(req)
}

// addressBookPath resolves the first address book of the account. When
// the configured URL already points at a collection, discovery failures
// fall back to the URL path itself.
func (c *Client) addressBookPath(ctx context.Context) (string, error) {
	client, err := c.connect()
	if err != nil {
		return "", err
	}

	principal, err := client.FindCurrentUserPrincipal(ctx)
	if err != nil {
		return c.baseURL, nil
	}

	homeSet, err := client.FindAddressBookHomeSet(ctx, principal)
	if err != nil {
		return c.baseURL, nil
	}

	books, err := client.FindAddressBooks(ctx, homeSet)
	if err != nil || len(books) == 0 {
		return c.baseURL, nil
	}

	return books[0].Path, nil
}

// SearchContacts returns contacts whose formatted name contains the
// keyword (case-insensitive on the server side).
func (c *Client) SearchContacts(ctx context.Context, keyword string) ([]domain.Contact, error) {
	client, err := c.connect()
	if err != nil {
		return nil, err
	}

	path, err := c.addressBookPath(ctx)
	if err != nil {
		return nil, err
	}

	query := &carddav.AddressBookQuery{
		DataRequest: carddav.AddressDataRequest{AllProp: true},
		PropFilters: []carddav.PropFilter{
			{
				Name: vcard.FieldFormattedName,
				TextMatches: []carddav.TextMatch{
					{Text: keyword, MatchType: carddav.MatchContains},
				},
			},
		},
	}

	objects, err := client.QueryAddressBook(ctx, path, query)
	if err != nil {
		return nil, fmt.Errorf("query address book: %w", err)
	}

	var contacts []domain.Contact
	for _, obj := range objects {
		contacts = append(contacts, cardToContact(obj.Path, obj.Card))
	}

	return contacts, nil
}

// CreateContact stores a new vCard on the server.
func (c *Client) CreateContact(ctx context.Context, name, phone, email string) (*domain.Contact, error) {
	client, err := c.connect()
	if err != nil {
		return nil, err
	}

	path, err := c.addressBookPath(ctx)
	if err != nil {
		return nil, err
	}

	card := make(vcard.Card)
	card.SetValue(vcard.FieldFormattedName, name)
	// N is family;given;additional;prefix;suffix. Korean names go into
	// the family component whole.
	card.SetValue(vcard.FieldName, name+";;;;")
	card.SetValue(vcard.FieldUID, uuid.NewString())
	if phone != "" {
		card.Add(vcard.FieldTelephone, &vcard.Field{
			Value:  phone,
			Params: vcard.Params{vcard.ParamType: []string{"cell"}},
		})
	}
	if email != "" {
		card.Add(vcard.FieldEmail, &vcard.Field{
			Value:  email,
			Params: vcard.Params{vcard.ParamType: []string{"work"}},
		})
	}
	vcard.ToV4(card)

	contactPath := path
	if !strings.HasSuffix(contactPath, "/") {
		contactPath += "/"
	}
	contactPath += uuid.NewString() + ".vcf"

	if _, err := client.PutAddressObject(ctx, contactPath, card); err != nil {
		return nil, fmt.Errorf("create contact: %w", err)
	}

	contact := cardToContact(contactPath, card)
	return &contact, nil
}

// DeleteContact removes a vCard by its resource path.
func (c *Client) DeleteContact(ctx context.Context, contactPath string) error {
	client, err := c.connect()
	if err != nil {
		return err
	}

	if err := client.RemoveAll(ctx, contactPath); err != nil {
		return fmt.Errorf("delete contact: %w", err)
	}

	return nil
}

func cardToContact(path string, card vcard.Card) domain.Contact {
	contact := domain.Contact{
		Path:   path,
		Name:   card.PreferredValue(vcard.FieldFormattedName),
		Phones: card.Values(vcard.FieldTelephone),
		Emails: card.Values(vcard.FieldEmail),
		Org:    card.PreferredValue(vcard.FieldOrganization),
		Title:  card.PreferredValue(vcard.FieldTitle),
		Note:   card.PreferredValue(vcard.FieldNote),
	}
	if contact.Name == "" {
		contact.Name = "이름 없음"
	}
	return contact
}
