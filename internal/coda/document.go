package coda

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
)

// docMeta holds the fields of the document payload the exporter reads.
// The full payload is kept as raw JSON for archival.
type docMeta struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	OwnerName string `json:"ownerName"`
	Folder    struct {
		ID   string `json:"id"`
		Name string `json:"name"`
	} `json:"folder"`
}

// Doc is a document as returned by the API. It carries the client so that
// tables can be iterated directly from a Doc.
type Doc struct {
	c    *Client
	raw  json.RawMessage
	meta docMeta
}

// ParseDoc parses a raw document payload into a Doc bound to the given
// client.
func ParseDoc(c *Client, raw json.RawMessage) (*Doc, error) {
	var meta docMeta
	if err := json.Unmarshal(raw, &meta); err != nil {
		return nil, fmt.Errorf("parse document payload: %w", err)
	}
	if meta.ID == "" {
		return nil, fmt.Errorf("document payload has no id: %s", string(raw))
	}
	return &Doc{c: c, raw: raw, meta: meta}, nil
}

// Raw returns the unmodified API payload of the document.
func (d *Doc) Raw() json.RawMessage { return d.raw }

// ID returns the document id.
func (d *Doc) ID() string { return d.meta.ID }

// Name returns the document name.
func (d *Doc) Name() string { return d.meta.Name }

// OwnerName returns the display name of the document owner.
func (d *Doc) OwnerName() string { return d.meta.OwnerName }

// FolderID returns the id of the folder containing the document.
func (d *Doc) FolderID() string { return d.meta.Folder.ID }

// FolderName returns the name of the folder containing the document.
// The API omits folder names the token cannot see; those come back empty.
func (d *Doc) FolderName() string { return d.meta.Folder.Name }

// apiRoot is the API path prefix for endpoints scoped to this document.
func (d *Doc) apiRoot() string {
	return "/docs/" + url.PathEscape(d.meta.ID)
}

// Tables iterates over all tables and views of the document, calling fn
// for each.
func (d *Doc) Tables(ctx context.Context, fn func(*Table) error) error {
	return d.c.forEach(ctx, d.apiRoot()+"/tables", nil, func(item json.RawMessage) error {
		table, err := newTable(d.c, d.apiRoot(), item)
		if err != nil {
			return err
		}
		return fn(table)
	})
}
