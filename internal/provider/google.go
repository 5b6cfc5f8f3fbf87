package provider

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"go.uber.org/zap"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
	"google.golang.org/api/calendar/v3"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/option"

	"github.com/chronoplan/calsync-api/pkg/config"
)

// EventPage is one page of provider-native events plus the continuation token.
type EventPage struct {
	Events        []*calendar.Event
	NextPageToken string
}

// Calendar is the narrow provider surface the sync engine consumes.
type Calendar interface {
	ListEvents(ctx context.Context, userID, calendarID string, timeMin, timeMax time.Time, pageToken string, pageSize int64) (*EventPage, error)
	InsertEvent(ctx context.Context, userID, calendarID string, event *calendar.Event) (*calendar.Event, error)
}

// CredentialStore supplies an auto-refreshing authenticated token source for a
// user. Token acquisition and refresh persistence live outside this core.
type CredentialStore interface {
	TokenSource(ctx context.Context, userID string) (oauth2.TokenSource, error)
}

// GoogleCalendar talks to the Google Calendar API with per-user credentials.
type GoogleCalendar struct {
	creds  CredentialStore
	logger *zap.Logger
}

// NewGoogleCalendar constructs the adapter.
func NewGoogleCalendar(creds CredentialStore, logger *zap.Logger) *GoogleCalendar {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &GoogleCalendar{creds: creds, logger: logger}
}

func (g *GoogleCalendar) serviceFor(ctx context.Context, userID string) (*calendar.Service, error) {
	ts, err := g.creds.TokenSource(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("credential lookup for user %s: %w", userID, err)
	}
	svc, err := calendar.NewService(ctx, option.WithTokenSource(ts))
	if err != nil {
		return nil, fmt.Errorf("build calendar service: %w", err)
	}
	return svc, nil
}

// ListEvents fetches a single page of events within [timeMin, timeMax].
func (g *GoogleCalendar) ListEvents(ctx context.Context, userID, calendarID string, timeMin, timeMax time.Time, pageToken string, pageSize int64) (*EventPage, error) {
	svc, err := g.serviceFor(ctx, userID)
	if err != nil {
		return nil, err
	}

	call := svc.Events.List(calendarID).
		ShowDeleted(false).
		SingleEvents(true).
		TimeMin(timeMin.Format(time.RFC3339)).
		TimeMax(timeMax.Format(time.RFC3339)).
		MaxResults(pageSize).
		Context(ctx)
	if pageToken != "" {
		call = call.PageToken(pageToken)
	}

	res, err := call.Do()
	if err != nil {
		return nil, fmt.Errorf("list events for user %s: %w", userID, err)
	}

	g.logger.Debug("fetched event page",
		zap.String("user_id", userID),
		zap.Int("count", len(res.Items)),
		zap.Bool("has_next", res.NextPageToken != ""))

	return &EventPage{Events: res.Items, NextPageToken: res.NextPageToken}, nil
}

// InsertEvent creates an event on the user's calendar.
func (g *GoogleCalendar) InsertEvent(ctx context.Context, userID, calendarID string, event *calendar.Event) (*calendar.Event, error) {
	svc, err := g.serviceFor(ctx, userID)
	if err != nil {
		return nil, err
	}

	created, err := svc.Events.Insert(calendarID, event).Context(ctx).Do()
	if err != nil {
		return nil, fmt.Errorf("insert event for user %s: %w", userID, err)
	}
	return created, nil
}

// IsAuthError reports whether the provider rejected our credentials. These
// failures are terminal for retry purposes.
func IsAuthError(err error) bool {
	var apiErr *googleapi.Error
	if errors.As(err, &apiErr) {
		return apiErr.Code == 401 || apiErr.Code == 403
	}
	return false
}

// FileCredentialStore reads per-user OAuth tokens from disk and wraps them in
// an auto-refreshing source using the shared client config.
type FileCredentialStore struct {
	oauth *oauth2.Config
	dir   string
}

// NewFileCredentialStore builds a store rooted at dir holding token-<user>.json
// files.
func NewFileCredentialStore(cfg config.GoogleConfig, dir string) *FileCredentialStore {
	return &FileCredentialStore{
		oauth: &oauth2.Config{
			ClientID:     cfg.ClientID,
			ClientSecret: cfg.ClientSecret,
			Scopes:       []string{calendar.CalendarScope},
			Endpoint:     google.Endpoint,
		},
		dir: dir,
	}
}

// TokenSource loads the persisted token for userID.
func (s *FileCredentialStore) TokenSource(ctx context.Context, userID string) (oauth2.TokenSource, error) {
	path := filepath.Join(s.dir, fmt.Sprintf("token-%s.json", userID))
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("no stored credential for user %s: %w", userID, err)
	}
	defer f.Close()

	tok := &oauth2.Token{}
	if err := json.NewDecoder(f).Decode(tok); err != nil {
		return nil, fmt.Errorf("decode token for user %s: %w", userID, err)
	}
	return s.oauth.TokenSource(ctx, tok), nil
}
