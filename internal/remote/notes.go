package remote

import (
	"context"
	"fmt"

	"cloud.google.com/go/firestore"

	"github.com/quillpad/quill/internal/model"
)

// Notes fetches every note owned by uid.
func (c *Client) Notes(ctx context.Context, uid string) ([]*model.Note, error) {
	if uid == "" {
		return nil, fmt.Errorf("remote: owner uid is required")
	}

	callCtx, cancel := c.callCtx(ctx)
	defer cancel()

	docs, err := collectDocs(c.notesQuery(uid).Documents(callCtx))
	if err != nil {
		return nil, wrap("list notes", err)
	}
	return c.decodeNoteDocs(docs), nil
}

// NotesByID fetches the notes named by ids. Missing documents are
// silently absent from the result.
func (c *Client) NotesByID(ctx context.Context, ids []string) ([]*model.Note, error) {
	var notes []*model.Note
	for _, chunk := range idChunks(ids) {
		callCtx, cancel := c.callCtx(ctx)
		docs, err := collectDocs(c.fs.Collection(collNotes).
			Where(firestore.DocumentID, "in", chunk).
			Documents(callCtx))
		cancel()
		if err != nil {
			return nil, wrap("get notes by id", err)
		}
		notes = append(notes, c.decodeNoteDocs(docs)...)
	}
	return notes, nil
}

// PutNote writes n to the backend and returns its document id. A note
// without a remote id is assigned one.
func (c *Client) PutNote(ctx context.Context, n *model.Note) (string, error) {
	if err := n.Validate(); err != nil {
		return "", &Error{Op: "put note", Kind: KindMalformed, Err: err}
	}

	ref := c.fs.Collection(collNotes).NewDoc()
	if n.RemoteID != "" {
		ref = c.fs.Collection(collNotes).Doc(n.RemoteID)
	}

	callCtx, cancel := c.callCtx(ctx)
	defer cancel()

	if _, err := ref.Set(callCtx, n); err != nil {
		return "", wrap("put note", err)
	}
	return ref.ID, nil
}

// DeleteNote removes the note with the given document id. Deleting a
// document that does not exist is not an error.
func (c *Client) DeleteNote(ctx context.Context, remoteID string) error {
	if remoteID == "" {
		return fmt.Errorf("remote: note id is required for delete")
	}

	callCtx, cancel := c.callCtx(ctx)
	defer cancel()

	if _, err := c.fs.Collection(collNotes).Doc(remoteID).Delete(callCtx); err != nil {
		return wrap("delete note", err)
	}
	return nil
}

// WatchNotes streams the full owned note set to fn on every backend
// change, starting with the current state. It blocks until ctx ends or
// the stream fails.
func (c *Client) WatchNotes(ctx context.Context, uid string, fn func([]*model.Note)) error {
	it := c.notesQuery(uid).Snapshots(ctx)
	defer it.Stop()

	for {
		snap, err := it.Next()
		if err != nil {
			return wrap("watch notes", err)
		}
		docs, err := collectDocs(snap.Documents)
		if err != nil {
			return wrap("watch notes", err)
		}
		fn(c.decodeNoteDocs(docs))
	}
}

func (c *Client) notesQuery(uid string) firestore.Query {
	return c.fs.Collection(collNotes).
		Where("ownerUid", "==", uid).
		OrderBy("updatedAt", firestore.Desc)
}

func (c *Client) decodeNoteDocs(docs []*firestore.DocumentSnapshot) []*model.Note {
	notes := make([]*model.Note, 0, len(docs))
	for _, doc := range docs {
		var n model.Note
		if err := doc.DataTo(&n); err != nil {
			// A document the client cannot decode must not take the
			// rest of the set down with it.
			c.logger.Printf("skipping undecodable note %s: %v", doc.Ref.ID, err)
			continue
		}
		n.RemoteID = doc.Ref.ID
		n.SyncStatus = model.SyncStateSynced
		notes = append(notes, &n)
	}
	return notes
}
