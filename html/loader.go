// Package html builds a bridge document from markup using
// golang.org/x/net/html. Scripts are collected in document order rather
// than executed, so the caller decides when and where they run.
package html

import (
	"fmt"
	"io"
	"io/fs"
	"strings"

	"go.uber.org/zap"
	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"

	"github.com/chrisuehlinger/vibebridge/dom"
)

// Script is a script found while loading a page.
type Script struct {
	// Name identifies the script in stack traces: the src path, or
	// "inline#N" for inline scripts.
	Name string
	Code string
}

// Page is the result of loading markup into a document.
type Page struct {
	Title   string
	Scripts []Script
}

// Options configures Load.
type Options struct {
	// FS resolves <script src>. Without it external scripts are skipped.
	FS     fs.FS
	Logger *zap.Logger
}

// LoadString is Load for an in-memory page.
func LoadString(doc *dom.Document, markup string, opts Options) (*Page, error) {
	return Load(doc, strings.NewReader(markup), opts)
}

// Load parses r and appends the body's content to doc.Body(). Attributes
// on <html> and <body> are copied onto the document's own elements.
func Load(doc *dom.Document, r io.Reader, opts Options) (*Page, error) {
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	root, err := html.Parse(r)
	if err != nil {
		return nil, fmt.Errorf("html: parse: %w", err)
	}

	l := &loader{doc: doc, opts: opts, logger: opts.Logger.Named("html"), page: &Page{}}
	for c := root.FirstChild; c != nil; c = c.NextSibling {
		if c.Type == html.ElementNode && c.DataAtom == atom.Html {
			if err := l.loadRoot(c); err != nil {
				return nil, err
			}
		}
	}
	l.logger.Debug("Page loaded",
		zap.String("title", l.page.Title),
		zap.Int("scripts", len(l.page.Scripts)))
	return l.page, nil
}

type loader struct {
	doc    *dom.Document
	opts   Options
	logger *zap.Logger
	page   *Page
	inline int
}

func (l *loader) loadRoot(n *html.Node) error {
	l.copyAttributes(l.doc.DocumentElement(), n)
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		if c.Type != html.ElementNode {
			continue
		}
		switch c.DataAtom {
		case atom.Head:
			l.loadHead(c)
		case atom.Body:
			l.copyAttributes(l.doc.Body(), c)
			if err := l.loadChildren(l.doc.Body().AsNode(), c); err != nil {
				return err
			}
		}
	}
	return nil
}

// loadHead only looks for the title and scripts.
func (l *loader) loadHead(n *html.Node) {
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		if c.Type != html.ElementNode {
			continue
		}
		switch c.DataAtom {
		case atom.Title:
			l.page.Title = strings.TrimSpace(textOf(c))
		case atom.Script:
			l.addScript(c)
		}
	}
}

func (l *loader) loadChildren(parent *dom.Node, n *html.Node) error {
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		child, err := l.convert(c)
		if err != nil {
			return err
		}
		if child == nil {
			continue
		}
		if _, err := parent.AppendChild(child); err != nil {
			return fmt.Errorf("html: append <%s>: %w", c.Data, err)
		}
	}
	return nil
}

// convert returns the bridge node for n, or nil for content that has no
// place in the tree.
func (l *loader) convert(n *html.Node) (*dom.Node, error) {
	switch n.Type {
	case html.TextNode:
		if strings.TrimSpace(n.Data) == "" {
			return nil, nil
		}
		return l.doc.CreateTextNode(n.Data).AsNode(), nil
	case html.ElementNode:
		switch n.DataAtom {
		case atom.Script:
			l.addScript(n)
			return nil, nil
		case atom.Style, atom.Template:
			return nil, nil
		}
		el, err := l.doc.CreateElement(strings.ToUpper(n.Data))
		if err != nil {
			return nil, fmt.Errorf("html: create <%s>: %w", n.Data, err)
		}
		l.copyAttributes(el, n)
		if err := l.loadChildren(el.AsNode(), n); err != nil {
			return nil, err
		}
		return el.AsNode(), nil
	}
	return nil, nil
}

// copyAttributes sets every attribute of n on el. The style attribute
// feeds the inline declaration so the native side sees set-style records.
func (l *loader) copyAttributes(el *dom.Element, n *html.Node) {
	for _, a := range n.Attr {
		if a.Namespace != "" {
			continue
		}
		if a.Key == "style" {
			el.Style().SetCSSText(a.Val)
			continue
		}
		if err := el.SetAttribute(a.Key, a.Val); err != nil {
			l.logger.Debug("Skipping attribute", zap.String("name", a.Key), zap.Error(err))
		}
	}
}

func (l *loader) addScript(n *html.Node) {
	if typ := attr(n, "type"); typ != "" && !isJavaScriptType(typ) {
		l.logger.Debug("Skipping non-JavaScript script", zap.String("type", typ))
		return
	}
	if src := attr(n, "src"); src != "" {
		if l.opts.FS == nil {
			l.logger.Warn("No filesystem for external script", zap.String("src", src))
			return
		}
		code, err := fs.ReadFile(l.opts.FS, strings.TrimPrefix(src, "/"))
		if err != nil {
			l.logger.Warn("Failed to read external script", zap.String("src", src), zap.Error(err))
			return
		}
		l.page.Scripts = append(l.page.Scripts, Script{Name: src, Code: string(code)})
		return
	}
	l.inline++
	l.page.Scripts = append(l.page.Scripts, Script{
		Name: fmt.Sprintf("inline#%d", l.inline),
		Code: textOf(n),
	})
}

func isJavaScriptType(typ string) bool {
	switch strings.ToLower(strings.TrimSpace(typ)) {
	case "text/javascript", "application/javascript":
		return true
	}
	return false
}

func attr(n *html.Node, key string) string {
	for _, a := range n.Attr {
		if a.Key == key {
			return a.Val
		}
	}
	return ""
}

func textOf(n *html.Node) string {
	var sb strings.Builder
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		if c.Type == html.TextNode {
			sb.WriteString(c.Data)
		}
	}
	return sb.String()
}
