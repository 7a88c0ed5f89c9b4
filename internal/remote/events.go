package remote

import (
	"context"
	"fmt"

	"cloud.google.com/go/firestore"

	"github.com/quillpad/quill/internal/model"
)

// Events fetches every calendar event owned by uid.
func (c *Client) Events(ctx context.Context, uid string) ([]*model.CalendarEvent, error) {
	if uid == "" {
		return nil, fmt.Errorf("remote: owner uid is required")
	}

	callCtx, cancel := c.callCtx(ctx)
	defer cancel()

	docs, err := collectDocs(c.eventsQuery(uid).Documents(callCtx))
	if err != nil {
		return nil, wrap("list events", err)
	}
	return c.decodeEventDocs(docs), nil
}

// PutEvent writes e to the backend and returns its document id.
func (c *Client) PutEvent(ctx context.Context, e *model.CalendarEvent) (string, error) {
	if err := e.Validate(); err != nil {
		return "", &Error{Op: "put event", Kind: KindMalformed, Err: err}
	}

	ref := c.fs.Collection(collEvents).NewDoc()
	if e.RemoteID != "" {
		ref = c.fs.Collection(collEvents).Doc(e.RemoteID)
	}

	callCtx, cancel := c.callCtx(ctx)
	defer cancel()

	if _, err := ref.Set(callCtx, e); err != nil {
		return "", wrap("put event", err)
	}
	return ref.ID, nil
}

// DeleteEvent removes the event with the given document id.
func (c *Client) DeleteEvent(ctx context.Context, remoteID string) error {
	if remoteID == "" {
		return fmt.Errorf("remote: event id is required for delete")
	}

	callCtx, cancel := c.callCtx(ctx)
	defer cancel()

	if _, err := c.fs.Collection(collEvents).Doc(remoteID).Delete(callCtx); err != nil {
		return wrap("delete event", err)
	}
	return nil
}

// WatchEvents streams the full owned event set to fn on every backend
// change. It blocks until ctx ends or the stream fails.
func (c *Client) WatchEvents(ctx context.Context, uid string, fn func([]*model.CalendarEvent)) error {
	it := c.eventsQuery(uid).Snapshots(ctx)
	defer it.Stop()

	for {
		snap, err := it.Next()
		if err != nil {
			return wrap("watch events", err)
		}
		docs, err := collectDocs(snap.Documents)
		if err != nil {
			return wrap("watch events", err)
		}
		fn(c.decodeEventDocs(docs))
	}
}

func (c *Client) eventsQuery(uid string) firestore.Query {
	return c.fs.Collection(collEvents).
		Where("ownerUid", "==", uid).
		OrderBy("startAt", firestore.Asc)
}

func (c *Client) decodeEventDocs(docs []*firestore.DocumentSnapshot) []*model.CalendarEvent {
	events := make([]*model.CalendarEvent, 0, len(docs))
	for _, doc := range docs {
		var e model.CalendarEvent
		if err := doc.DataTo(&e); err != nil {
			c.logger.Printf("skipping undecodable event %s: %v", doc.Ref.ID, err)
			continue
		}
		e.RemoteID = doc.Ref.ID
		e.SyncStatus = model.SyncStateSynced
		events = append(events, &e)
	}
	return events
}
