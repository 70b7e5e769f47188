package gcal

import (
	"context"
	"fmt"
	"net/http"

	"google.golang.org/api/calendar/v3"
	"google.golang.org/api/option"
)

// EventsAPI is the subset of the Calendar events service used by Syncer.
type EventsAPI interface {
	// FindByUID returns the event tagged with uid, or nil when none exists.
	FindByUID(ctx context.Context, calendarID, uid string) (*calendar.Event, error)
	Insert(ctx context.Context, calendarID string, event *calendar.Event) (*calendar.Event, error)
	Update(ctx context.Context, calendarID, eventID string, event *calendar.Event) (*calendar.Event, error)
}

// Client implements EventsAPI on top of the Calendar v3 service.
type Client struct {
	svc *calendar.Service
}

func New(ctx context.Context, httpClient *http.Client, opts ...option.ClientOption) (*Client, error) {
	opts = append([]option.ClientOption{option.WithHTTPClient(httpClient)}, opts...)
	svc, err := calendar.NewService(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("create calendar service: %w", err)
	}
	return &Client{svc: svc}, nil
}

func (c *Client) FindByUID(ctx context.Context, calendarID, uid string) (*calendar.Event, error) {
	resp, err := c.svc.Events.List(calendarID).
		PrivateExtendedProperty(syncKeyProperty + "=" + uid).
		ShowDeleted(false).
		MaxResults(1).
		Context(ctx).
		Do()
	if err != nil {
		return nil, err
	}
	if len(resp.Items) == 0 {
		return nil, nil
	}
	return resp.Items[0], nil
}

func (c *Client) Insert(ctx context.Context, calendarID string, event *calendar.Event) (*calendar.Event, error) {
	if calendarID == "" {
		return nil, fmt.Errorf("calendarID is required")
	}
	return c.svc.Events.Insert(calendarID, event).Context(ctx).Do()
}

func (c *Client) Update(ctx context.Context, calendarID, eventID string, event *calendar.Event) (*calendar.Event, error) {
	if calendarID == "" || eventID == "" || event == nil {
		return nil, fmt.Errorf("calendarID, eventID and event are required")
	}
	return c.svc.Events.Update(calendarID, eventID, event).Context(ctx).Do()
}
