package importer

import (
	"bytes"
	"fmt"
	"strings"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/ast"
	"github.com/yuin/goldmark/text"
	"gopkg.in/yaml.v3"

	"github.com/quillpad/quill/internal/model"
)

// FrontMatter carries the YAML header of an imported markdown file.
type FrontMatter struct {
	Title  string   `yaml:"title"`
	Tags   []string `yaml:"tags"`
	Folder string   `yaml:"folder"`
}

var frontMatterDelim = []byte("---")

// splitFrontMatter separates a leading YAML header from the markdown
// body. Files without a header pass through untouched.
func splitFrontMatter(source []byte) (FrontMatter, []byte, error) {
	var fm FrontMatter

	trimmed := bytes.TrimLeft(source, "\uFEFF")
	if !bytes.HasPrefix(trimmed, frontMatterDelim) {
		return fm, source, nil
	}

	rest := trimmed[len(frontMatterDelim):]
	rest = bytes.TrimPrefix(rest, []byte("\r"))
	if len(rest) == 0 || rest[0] != '\n' {
		return fm, source, nil
	}
	rest = rest[1:]

	end := bytes.Index(rest, []byte("\n---"))
	if end < 0 {
		return fm, nil, fmt.Errorf("front matter is not terminated")
	}

	header := rest[:end]
	body := rest[end+len("\n---"):]
	if i := bytes.IndexByte(body, '\n'); i >= 0 {
		body = body[i+1:]
	} else {
		body = nil
	}

	if err := yaml.Unmarshal(header, &fm); err != nil {
		return fm, nil, fmt.Errorf("failed to parse front matter: %w", err)
	}
	return fm, body, nil
}

// ParseMarkdown converts a markdown file into a block document plus
// its front matter. The title falls back to the first heading when the
// front matter does not name one.
func ParseMarkdown(source []byte) (FrontMatter, string, *model.Document, error) {
	fm, body, err := splitFrontMatter(source)
	if err != nil {
		return fm, "", nil, err
	}

	root := goldmark.DefaultParser().Parse(text.NewReader(body))

	doc := &model.Document{}
	title := fm.Title

	for n := root.FirstChild(); n != nil; n = n.NextSibling() {
		block, ok := convertNode(n, body)
		if !ok {
			continue
		}
		if title == "" && block.Kind == model.KindHeading {
			// The first heading names the note; it is not repeated in
			// the body.
			title = block.Text
			continue
		}
		doc.Blocks = append(doc.Blocks, block)
	}

	if title == "" {
		title = "Imported note"
	}
	return fm, title, doc, nil
}

func convertNode(n ast.Node, source []byte) (model.Block, bool) {
	switch n := n.(type) {
	case *ast.Heading:
		return model.Block{
			Kind:  model.KindHeading,
			Level: n.Level,
			Text:  nodeText(n, source),
		}, true

	case *ast.Paragraph:
		if img, ok := soleImage(n); ok {
			return model.Block{
				Kind: model.KindImage,
				URL:  string(img.Destination),
				Alt:  nodeText(n, source),
			}, true
		}
		return model.Block{
			Kind: model.KindParagraph,
			Text: nodeText(n, source),
		}, true

	case *ast.Blockquote:
		return model.Block{
			Kind: model.KindQuote,
			Text: nodeText(n, source),
		}, true

	case *ast.List:
		style := model.ListBullet
		if n.IsOrdered() {
			style = model.ListNumbered
		}
		block := model.Block{Kind: model.KindList, Style: style}
		for item := n.FirstChild(); item != nil; item = item.NextSibling() {
			block.Items = append(block.Items, model.ListItem{
				Text: nodeText(item, source),
			})
		}
		return block, true

	case *ast.FencedCodeBlock:
		var buf strings.Builder
		lines := n.Lines()
		for i := 0; i < lines.Len(); i++ {
			seg := lines.At(i)
			buf.Write(seg.Value(source))
		}
		return model.Block{
			Kind:     model.KindCode,
			Language: string(n.Language(source)),
			Text:     strings.TrimRight(buf.String(), "\n"),
		}, true

	default:
		return model.Block{}, false
	}
}

// soleImage reports whether the paragraph wraps a single image.
func soleImage(p *ast.Paragraph) (*ast.Image, bool) {
	child := p.FirstChild()
	if child == nil || child.NextSibling() != nil {
		return nil, false
	}
	img, ok := child.(*ast.Image)
	return img, ok
}

func nodeText(n ast.Node, source []byte) string {
	return strings.TrimSpace(string(n.Text(source)))
}
