// Package dom defines the narrow document and node capabilities the
// purification engine consumes, plus adapters over golang.org/x/net/html.
// The engine never sees a concrete tree type: callers hand it these
// interfaces and can back them with any representation.
package dom

import (
	"bytes"
	"strings"

	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"
)

// Document exposes the one document-level question the engine asks.
type Document interface {
	// IsEmail reports whether the document is in the restricted email mode.
	IsEmail() bool
}

// Doc is a Document with a fixed mode.
type Doc struct {
	Email bool
}

func (d Doc) IsEmail() bool { return d.Email }

// Node exposes the node capabilities the diff classifier needs: read the
// tag name, probe for an attribute, and (caller-side only) write one.
type Node interface {
	TagName() string
	HasAttribute(name string) bool
	SetAttribute(name, value string)
}

// urlAttrs are attribute names whose values carry URLs.
var urlAttrs = map[string]bool{
	"action":     true,
	"background": true,
	"cite":       true,
	"formaction": true,
	"href":       true,
	"longdesc":   true,
	"poster":     true,
	"src":        true,
	"srcset":     true,
	"usemap":     true,
	"xlink:href": true,
}

// IsURLAttribute reports whether name (already lowercase) carries a URL
// value.
func IsURLAttribute(name string) bool {
	return urlAttrs[name]
}

// HTMLNode adapts *html.Node to the Node capability. The x/net/html parser
// lowercases tag and attribute names, so no normalization happens here.
type HTMLNode struct {
	N *html.Node
}

func (h HTMLNode) TagName() string {
	return h.N.Data
}

func (h HTMLNode) HasAttribute(name string) bool {
	for _, a := range h.N.Attr {
		if a.Namespace == "" && a.Key == name {
			return true
		}
	}
	return false
}

func (h HTMLNode) SetAttribute(name, value string) {
	for i, a := range h.N.Attr {
		if a.Namespace == "" && a.Key == name {
			h.N.Attr[i].Val = value
			return
		}
	}
	h.N.Attr = append(h.N.Attr, html.Attribute{Key: name, Val: value})
}

// ParseFragment parses markup as body content and returns its top-level
// nodes.
func ParseFragment(markup string) ([]*html.Node, error) {
	ctx := &html.Node{
		Type:     html.ElementNode,
		Data:     "body",
		DataAtom: atom.Body,
	}
	return html.ParseFragment(strings.NewReader(markup), ctx)
}

// RenderFragment serializes nodes back to markup in document order.
func RenderFragment(nodes []*html.Node) (string, error) {
	var buf bytes.Buffer
	for _, n := range nodes {
		if err := html.Render(&buf, n); err != nil {
			return "", err
		}
	}
	return buf.String(), nil
}
