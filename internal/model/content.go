package model

import (
	"encoding/json"
	"fmt"
	"strings"
)

// BlockKind tags the variant of a content block.
type BlockKind string

const (
	// KindParagraph is a plain text paragraph.
	KindParagraph BlockKind = "paragraph"
	// KindHeading is a heading with a level of 1-6.
	KindHeading BlockKind = "heading"
	// KindList is a bullet, numbered, or check list.
	KindList BlockKind = "list"
	// KindQuote is a block quote.
	KindQuote BlockKind = "quote"
	// KindCode is a fenced code block with an optional language.
	KindCode BlockKind = "code"
	// KindImage references an image by URL.
	KindImage BlockKind = "image"
	// KindQuarantined wraps a block that failed validation. The original
	// payload is preserved in Raw so nothing is lost, but the block is
	// inert: it renders as nothing and round-trips unchanged.
	KindQuarantined BlockKind = "quarantined"
)

// ListStyle selects the list rendering for KindList blocks.
type ListStyle string

const (
	ListBullet   ListStyle = "bullet"
	ListNumbered ListStyle = "numbered"
	ListCheck    ListStyle = "check"
)

// ListItem is one entry of a list block. Checked only applies to check lists.
type ListItem struct {
	Text    string `json:"text"`
	Checked bool   `json:"checked,omitempty"`
}

// Block is one unit of rich-text content. Exactly the fields for its Kind
// are meaningful; the rest stay zero.
type Block struct {
	Kind BlockKind `json:"kind"`

	// Text carries the body for paragraph, heading, and quote blocks,
	// and the source for code blocks.
	Text string `json:"text,omitempty"`

	// Level is the heading level (1-6). Heading blocks only.
	Level int `json:"level,omitempty"`

	// Style and Items describe list blocks.
	Style ListStyle  `json:"style,omitempty"`
	Items []ListItem `json:"items,omitempty"`

	// Language is the code block's syntax hint.
	Language string `json:"language,omitempty"`

	// URL and Alt describe image blocks.
	URL string `json:"url,omitempty"`
	Alt string `json:"alt,omitempty"`

	// Raw preserves the original payload of a quarantined block.
	Raw json.RawMessage `json:"raw,omitempty"`
}

// validate checks the block's fields against its kind. An error here means
// the block gets quarantined, not that parsing fails.
func (b *Block) validate() error {
	switch b.Kind {
	case KindParagraph, KindQuote, KindCode:
		return nil
	case KindHeading:
		if b.Level < 1 || b.Level > 6 {
			return fmt.Errorf("heading level must be 1-6 (got %d)", b.Level)
		}
		return nil
	case KindList:
		switch b.Style {
		case ListBullet, ListNumbered, ListCheck:
			return nil
		default:
			return fmt.Errorf("unknown list style %q", b.Style)
		}
	case KindImage:
		if b.URL == "" {
			return fmt.Errorf("image block requires a url")
		}
		return nil
	case KindQuarantined:
		return nil
	default:
		return fmt.Errorf("unknown block kind %q", b.Kind)
	}
}

// Document is the validated in-memory form of a note's content.
type Document struct {
	Blocks []Block `json:"blocks"`
}

// ParseDocument parses serialized note content into a validated Document.
//
// The wire form is a JSON array of blocks. Each block is validated
// independently: a block that fails to decode or validate is replaced with
// a quarantined block holding the original payload, and parsing continues.
// Only a payload that is not a JSON array at all is rejected outright.
// An empty string parses to an empty document.
func ParseDocument(raw string) (*Document, error) {
	doc := &Document{}
	if strings.TrimSpace(raw) == "" {
		return doc, nil
	}

	var parts []json.RawMessage
	if err := json.Unmarshal([]byte(raw), &parts); err != nil {
		return nil, fmt.Errorf("content is not a block array: %w", err)
	}

	for _, part := range parts {
		var b Block
		if err := json.Unmarshal(part, &b); err != nil {
			doc.Blocks = append(doc.Blocks, quarantine(part))
			continue
		}
		if err := b.validate(); err != nil {
			doc.Blocks = append(doc.Blocks, quarantine(part))
			continue
		}
		doc.Blocks = append(doc.Blocks, b)
	}

	return doc, nil
}

// quarantine wraps an undecodable or invalid block payload.
func quarantine(part json.RawMessage) Block {
	raw := make(json.RawMessage, len(part))
	copy(raw, part)
	return Block{Kind: KindQuarantined, Raw: raw}
}

// Marshal serializes the document back to its wire form.
// Quarantined blocks are emitted as their preserved original payload so a
// load/store cycle never destroys content this device cannot understand.
func (d *Document) Marshal() (string, error) {
	parts := make([]json.RawMessage, 0, len(d.Blocks))
	for i := range d.Blocks {
		b := &d.Blocks[i]
		if b.Kind == KindQuarantined && len(b.Raw) > 0 {
			parts = append(parts, b.Raw)
			continue
		}
		data, err := json.Marshal(b)
		if err != nil {
			return "", fmt.Errorf("failed to marshal block %d: %w", i, err)
		}
		parts = append(parts, data)
	}

	data, err := json.Marshal(parts)
	if err != nil {
		return "", fmt.Errorf("failed to marshal document: %w", err)
	}
	return string(data), nil
}

// QuarantinedCount returns how many blocks failed validation on parse.
func (d *Document) QuarantinedCount() int {
	n := 0
	for i := range d.Blocks {
		if d.Blocks[i].Kind == KindQuarantined {
			n++
		}
	}
	return n
}

// PlainText flattens the document to text for previews and search.
// Quarantined and image blocks contribute nothing.
func (d *Document) PlainText() string {
	var sb strings.Builder
	for i := range d.Blocks {
		b := &d.Blocks[i]
		switch b.Kind {
		case KindParagraph, KindHeading, KindQuote, KindCode:
			if b.Text != "" {
				if sb.Len() > 0 {
					sb.WriteByte('\n')
				}
				sb.WriteString(b.Text)
			}
		case KindList:
			for _, item := range b.Items {
				if sb.Len() > 0 {
					sb.WriteByte('\n')
				}
				sb.WriteString(item.Text)
			}
		}
	}
	return sb.String()
}
