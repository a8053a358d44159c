package familysearch

import (
	"context"
	"errors"
	"net/url"
	"strings"

	"github.com/AllTales-Labs/getmyancestors/internal/gedcomx"
)

const (
	pathCurrentUser = "/platform/users/current"
	pathPersons     = "/platform/tree/persons"
	pathCouple      = "/platform/tree/couple-relationships/"
)

// ErrNoCurrentUser means the current-user endpoint returned no account.
var ErrNoCurrentUser = errors.New("familysearch: current user unavailable")

// CurrentUser returns the logged-in account: its tree person id, display
// name and preferred language.
func (s *Session) CurrentUser(ctx context.Context) (*gedcomx.User, error) {
	var page gedcomx.UsersPage
	ok, err := s.GetJSON(ctx, pathCurrentUser, &page)
	if err != nil {
		return nil, err
	}
	if !ok || len(page.Users) == 0 {
		return nil, ErrNoCurrentUser
	}
	user := page.Users[0]
	return &user, nil
}

// FetchPersons fetches up to gedcomx.MaxPersons persons with their
// relationships. A nil page means the response was absent.
func (s *Session) FetchPersons(ctx context.Context, ids []string) (*gedcomx.PersonsPage, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	var page gedcomx.PersonsPage
	ok, err := s.GetJSON(ctx, pathPersons+"?pids="+strings.Join(ids, ","), &page)
	if err != nil || !ok {
		return nil, err
	}
	return &page, nil
}

// FetchCoupleRelationship fetches one couple relationship with its facts. A
// nil page means the response was absent.
func (s *Session) FetchCoupleRelationship(ctx context.Context, id string) (*gedcomx.RelationshipsPage, error) {
	var page gedcomx.RelationshipsPage
	ok, err := s.GetJSON(ctx, pathCouple+url.PathEscape(id), &page)
	if err != nil || !ok {
		return nil, err
	}
	return &page, nil
}

// endpointOf names the API endpoint of a request path for metrics, without
// ids or query strings.
func endpointOf(path string) string {
	path, _, _ = strings.Cut(path, "?")
	switch {
	case path == pathCurrentUser:
		return "users"
	case path == pathPersons:
		return "persons"
	case strings.HasPrefix(path, pathCouple):
		return "couple-relationships"
	}
	return "other"
}
