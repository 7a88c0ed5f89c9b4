package remote

import (
	"context"
	"fmt"

	"github.com/quillpad/quill/internal/model"
)

// Tags fetches every tag created by uid.
func (c *Client) Tags(ctx context.Context, uid string) ([]*model.Tag, error) {
	if uid == "" {
		return nil, fmt.Errorf("remote: creator uid is required")
	}

	callCtx, cancel := c.callCtx(ctx)
	defer cancel()

	docs, err := collectDocs(c.fs.Collection(collTags).
		Where("creatorUid", "==", uid).
		Documents(callCtx))
	if err != nil {
		return nil, wrap("list tags", err)
	}

	tags := make([]*model.Tag, 0, len(docs))
	for _, doc := range docs {
		var tag model.Tag
		if err := doc.DataTo(&tag); err != nil {
			c.logger.Printf("skipping undecodable tag %s: %v", doc.Ref.ID, err)
			continue
		}
		tag.RemoteID = doc.Ref.ID
		tag.SyncStatus = model.SyncStateSynced
		tags = append(tags, &tag)
	}
	return tags, nil
}

// PutTag writes tag to the backend and returns its document id.
func (c *Client) PutTag(ctx context.Context, tag *model.Tag) (string, error) {
	if err := tag.Validate(); err != nil {
		return "", &Error{Op: "put tag", Kind: KindMalformed, Err: err}
	}
	return c.putDoc(ctx, collTags, tag.RemoteID, tag, "put tag")
}

// DeleteTag removes the tag with the given document id.
func (c *Client) DeleteTag(ctx context.Context, remoteID string) error {
	return c.deleteDoc(ctx, collTags, remoteID, "delete tag")
}

// Folders fetches every folder owned by uid.
func (c *Client) Folders(ctx context.Context, uid string) ([]*model.Folder, error) {
	if uid == "" {
		return nil, fmt.Errorf("remote: owner uid is required")
	}

	callCtx, cancel := c.callCtx(ctx)
	defer cancel()

	docs, err := collectDocs(c.fs.Collection(collFolders).
		Where("ownerUid", "==", uid).
		Documents(callCtx))
	if err != nil {
		return nil, wrap("list folders", err)
	}

	folders := make([]*model.Folder, 0, len(docs))
	for _, doc := range docs {
		var folder model.Folder
		if err := doc.DataTo(&folder); err != nil {
			c.logger.Printf("skipping undecodable folder %s: %v", doc.Ref.ID, err)
			continue
		}
		folder.RemoteID = doc.Ref.ID
		folder.SyncStatus = model.SyncStateSynced
		folders = append(folders, &folder)
	}
	return folders, nil
}

// PutFolder writes folder to the backend and returns its document id.
func (c *Client) PutFolder(ctx context.Context, folder *model.Folder) (string, error) {
	if err := folder.Validate(); err != nil {
		return "", &Error{Op: "put folder", Kind: KindMalformed, Err: err}
	}
	return c.putDoc(ctx, collFolders, folder.RemoteID, folder, "put folder")
}

// DeleteFolder removes the folder with the given document id.
func (c *Client) DeleteFolder(ctx context.Context, remoteID string) error {
	return c.deleteDoc(ctx, collFolders, remoteID, "delete folder")
}

func (c *Client) putDoc(ctx context.Context, coll, remoteID string, data any, op string) (string, error) {
	ref := c.fs.Collection(coll).NewDoc()
	if remoteID != "" {
		ref = c.fs.Collection(coll).Doc(remoteID)
	}

	callCtx, cancel := c.callCtx(ctx)
	defer cancel()

	if _, err := ref.Set(callCtx, data); err != nil {
		return "", wrap(op, err)
	}
	return ref.ID, nil
}

func (c *Client) deleteDoc(ctx context.Context, coll, remoteID, op string) error {
	if remoteID == "" {
		return fmt.Errorf("remote: document id is required for delete")
	}

	callCtx, cancel := c.callCtx(ctx)
	defer cancel()

	if _, err := c.fs.Collection(coll).Doc(remoteID).Delete(callCtx); err != nil {
		return wrap(op, err)
	}
	return nil
}
