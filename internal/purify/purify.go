// Package purify turns untrusted markup into markup the policy tables
// permit: denylisted tags are stripped with their content, component tags
// outside the email allowlist are stripped in email documents, and every
// surviving attribute runs through the validity predicate.
//
// Two entry points exist. Sanitize applies the engine's own allowlist and
// all validator checks. SanitizeWithPrepass first runs a general-purpose
// bluemonday pass built from the same tables, then walks the result with
// the overlapping validator checks skipped.
package purify

import (
	"fmt"
	"regexp"
	"sort"
	"strings"
	"sync"

	"github.com/microcosm-cc/bluemonday"
	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"

	"github.com/air-gapped/purist/internal/dom"
	"github.com/air-gapped/purist/internal/policy"
)

// Purifier sanitizes markup for documents in one fixed mode. Safe for
// concurrent use; it holds no per-call state.
type Purifier struct {
	doc dom.Document
}

// New returns a purifier for documents in the given mode.
func New(doc dom.Document) *Purifier {
	return &Purifier{doc: doc}
}

// Sanitize purifies markup using the engine's checks only.
func (p *Purifier) Sanitize(markup string) (string, error) {
	root, err := p.purify(markup, false)
	if err != nil {
		return "", err
	}
	return renderChildren(root)
}

// SanitizeWithPrepass runs the shared bluemonday policy over markup first,
// then the engine's walk with the overlapping checks skipped. The prepass
// already enforced the attribute allowlist and removed event handlers and
// script-scheme values, so the walk only applies the table-specific rules.
func (p *Purifier) SanitizeWithPrepass(markup string) (string, error) {
	root, err := p.purify(prepass().Sanitize(markup), true)
	if err != nil {
		return "", err
	}
	return renderChildren(root)
}

// SanitizeForDiff purifies markup and then applies diff markers to the
// surviving elements, generating pairing keys with generateKey.
func (p *Purifier) SanitizeForDiff(markup string, generateKey func() string) (string, error) {
	root, err := p.purify(markup, false)
	if err != nil {
		return "", err
	}
	PrepareForDiff(root, generateKey)
	return renderChildren(root)
}

// purify parses markup as body content and filters it in place, returning
// the synthetic root whose children are the surviving nodes.
func (p *Purifier) purify(markup string, skipOverlap bool) (*html.Node, error) {
	nodes, err := dom.ParseFragment(markup)
	if err != nil {
		return nil, fmt.Errorf("parse fragment: %w", err)
	}

	root := &html.Node{
		Type:     html.ElementNode,
		Data:     "body",
		DataAtom: atom.Body,
	}
	for _, n := range nodes {
		root.AppendChild(n)
	}
	p.walk(root, skipOverlap)
	return root, nil
}

// walk filters the children of n recursively: comments and doctypes go,
// denylisted and mode-forbidden elements go with their subtrees, and every
// surviving element has its attributes filtered.
func (p *Purifier) walk(n *html.Node, skipOverlap bool) {
	for c := n.FirstChild; c != nil; {
		next := c.NextSibling
		switch c.Type {
		case html.CommentNode, html.DoctypeNode:
			n.RemoveChild(c)
		case html.ElementNode:
			if p.dropTag(c.Data) {
				n.RemoveChild(c)
			} else {
				p.filterAttrs(c, skipOverlap)
				p.walk(c, skipOverlap)
			}
		}
		c = next
	}
}

// dropTag reports whether elements with this tag are removed wholesale,
// content included.
func (p *Purifier) dropTag(tag string) bool {
	if policy.DenylistedTags[tag] {
		return true
	}
	if p.doc.IsEmail() &&
		strings.HasPrefix(tag, policy.ComponentPrefix) &&
		!policy.EmailAllowedComponentTags[tag] {
		return true
	}
	return false
}

func (p *Purifier) filterAttrs(n *html.Node, skipOverlap bool) {
	email := p.doc.IsEmail()
	keep := n.Attr[:0]
	for _, a := range n.Attr {
		if a.Namespace != "" {
			continue
		}
		// The prepass already enforced its allowlist; without it the walk
		// enforces ours.
		if !skipOverlap && !allowedAttr(n.Data, a.Key) {
			continue
		}
		if !policy.ValidAttribute(n.Data, a.Key, a.Val, email, skipOverlap) {
			continue
		}
		if a.Key == "target" && !policy.AllowedTargets[strings.ToLower(a.Val)] {
			continue
		}
		keep = append(keep, a)
	}
	n.Attr = keep
}

// generalAttrs are benign HTML attributes permitted on any tag in addition
// to the policy tables' global allowlist.
var generalAttrs = map[string]bool{
	"alt":      true,
	"colspan":  true,
	"datetime": true,
	"dir":      true,
	"disabled": true,
	"height":   true,
	"hidden":   true,
	"id":       true,
	"lang":     true,
	"media":    true,
	"name":     true,
	"role":     true,
	"rowspan":  true,
	"selected": true,
	"src":      true,
	"srcset":   true,
	"tabindex": true,
	"title":    true,
	"type":     true,
	"value":    true,
	"width":    true,
}

func allowedAttr(tag, attr string) bool {
	if policy.GlobalAllowedAttrs[attr] || generalAttrs[attr] {
		return true
	}
	if policy.AllowedAttrsByTag[tag][attr] {
		return true
	}
	return strings.HasPrefix(attr, "data-") || strings.HasPrefix(attr, "aria-")
}

var (
	prepassOnce   sync.Once
	prepassPolicy *bluemonday.Policy
)

// componentTagRe matches custom component tag names so the prepass keeps
// them for the walk's own mode-sensitive decision.
var componentTagRe = regexp.MustCompile(`^amp-[a-z][a-z0-9-]*$`)

// prepass returns the shared bluemonday policy derived from the tables.
// Built once; bluemonday policies must not be mutated after first use.
func prepass() *bluemonday.Policy {
	prepassOnce.Do(func() {
		p := bluemonday.UGCPolicy()
		p.AllowAttrs(sortedKeys(policy.GlobalAllowedAttrs)...).Globally()
		for tag, attrs := range policy.AllowedAttrsByTag {
			p.AllowAttrs(sortedKeys(attrs)...).OnElements(tag)
		}
		p.AllowDataAttributes()
		p.AllowElementsMatching(componentTagRe)
		// Denylisted tags lose their content too, not just the tags.
		p.SkipElementsContent(sortedKeys(policy.DenylistedTags)...)
		prepassPolicy = p
	})
	return prepassPolicy
}

var (
	tripleOnce   sync.Once
	triplePolicy *bluemonday.Policy
)

// SanitizeTripleMustache purifies markup destined for raw (triple-mustache)
// template interpolation: plain formatting tags only, no attributes at all.
// No later stage re-checks this content, hence the narrower surface.
func SanitizeTripleMustache(markup string) string {
	tripleOnce.Do(func() {
		p := bluemonday.NewPolicy()
		p.AllowElements(policy.TripleMustacheAllowedTags...)
		triplePolicy = p
	})
	return triplePolicy.Sanitize(markup)
}

// PrepareForDiff walks a rendered tree and applies the diff marker each
// element calls for. Safe to run repeatedly: elements already marked come
// back with no instruction.
func PrepareForDiff(root *html.Node, generateKey func() string) {
	if root.Type == html.ElementNode {
		node := dom.HTMLNode{N: root}
		policy.ClassifyForDiffing(node, generateKey).Apply(node)
	}
	for c := root.FirstChild; c != nil; c = c.NextSibling {
		PrepareForDiff(c, generateKey)
	}
}

func renderChildren(root *html.Node) (string, error) {
	var keep []*html.Node
	for c := root.FirstChild; c != nil; c = c.NextSibling {
		keep = append(keep, c)
	}
	return dom.RenderFragment(keep)
}

func sortedKeys(set map[string]bool) []string {
	keys := make([]string, 0, len(set))
	for k := range set {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
