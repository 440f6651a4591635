package content

import (
	"bytes"
	"os"
	"path/filepath"

	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"
)

// writePlaceholder renders a minimal page that displays appName.
func writePlaceholder(root, appName, entryPage string) error {
	if entryPage == "" {
		entryPage = "index.html"
	}
	dst, err := resolve(root, entryPage)
	if err != nil {
		return stagingError("rejected entry page", entryPage, err)
	}

	var buf bytes.Buffer
	buf.WriteString("<!DOCTYPE html>\n")
	if err := html.Render(&buf, placeholderDoc(appName)); err != nil {
		return stagingError("failed to render placeholder", entryPage, err)
	}
	buf.WriteString("\n")

	if err := os.MkdirAll(filepath.Dir(dst), 0o750); err != nil {
		return stagingError("failed to create entry page directory", entryPage, err)
	}
	if err := os.WriteFile(dst, buf.Bytes(), 0o644); err != nil {
		return stagingError("failed to write placeholder", entryPage, err)
	}
	return nil
}

func placeholderDoc(appName string) *html.Node {
	el := func(a atom.Atom, attrs ...html.Attribute) *html.Node {
		return &html.Node{Type: html.ElementNode, DataAtom: a, Data: a.String(), Attr: attrs}
	}
	text := func(s string) *html.Node {
		return &html.Node{Type: html.TextNode, Data: s}
	}

	root := el(atom.Html)
	head := el(atom.Head)
	head.AppendChild(el(atom.Meta, html.Attribute{Key: "charset", Val: "UTF-8"}))
	head.AppendChild(el(atom.Meta,
		html.Attribute{Key: "name", Val: "viewport"},
		html.Attribute{Key: "content", Val: "width=device-width, initial-scale=1.0"}))
	title := el(atom.Title)
	title.AppendChild(text(appName))
	head.AppendChild(title)

	body := el(atom.Body)
	h1 := el(atom.H1)
	h1.AppendChild(text(appName))
	body.AppendChild(h1)
	p := el(atom.P)
	p.AppendChild(text("This app was generated from a web bundle."))
	body.AppendChild(p)

	root.AppendChild(head)
	root.AppendChild(body)
	return root
}
