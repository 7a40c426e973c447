package service

import (
	"context"
	"fmt"
	"html"
	"strings"

	"github.com/dhkang/dalbot/internal/clients/carddav"
	"github.com/dhkang/dalbot/internal/domain"
)

// ContactService handles address book lookups and writes.
type ContactService struct {
	client *carddav.Client
}

func NewContactService(client *carddav.Client) *ContactService {
	return &ContactService{client: client}
}

func (s *ContactService) IsConfigured() bool {
	return s.client != nil && s.client.IsConfigured()
}

func (s *ContactService) Search(ctx context.Context, keyword string) ([]domain.Contact, error) {
	if !s.IsConfigured() {
		return nil, fmt.Errorf("CardDAV not configured")
	}
	return s.client.SearchContacts(ctx, keyword)
}

func (s *ContactService) Create(ctx context.Context, name, phone, email string) (*domain.Contact, error) {
	if !s.IsConfigured() {
		return nil, fmt.Errorf("CardDAV not configured")
	}
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, fmt.Errorf("contact name cannot be empty")
	}
	return s.client.CreateContact(ctx, name, phone, email)
}

// FormatContact renders one contact as an HTML card.
func (s *ContactService) FormatContact(c *domain.Contact) string {
	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("👤 <b>%s</b>\n", html.EscapeString(c.Name)))
	for _, tel := range c.Phones {
		sb.WriteString(fmt.Sprintf("📞 %s\n", html.EscapeString(tel)))
	}
	for _, email := range c.Emails {
		sb.WriteString(fmt.Sprintf("✉️ %s\n", html.EscapeString(email)))
	}
	if c.Org != "" {
		sb.WriteString(fmt.Sprintf("🏢 %s", html.EscapeString(c.Org)))
		if c.Title != "" {
			sb.WriteString(" / " + html.EscapeString(c.Title))
		}
		sb.WriteString("\n")
	}
	if c.Note != "" {
		sb.WriteString(fmt.Sprintf("📝 %s\n", html.EscapeString(c.Note)))
	}
	return sb.String()
}
