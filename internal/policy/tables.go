// Package policy holds the static purification rule tables and the two
// decision functions built on them: the per-attribute validity predicate
// and the diff-strategy classifier.
//
// All tables are keyed by lowercase tag and attribute names and are
// read-only after package init. Callers lowercase names before querying;
// the hot-path functions do not re-check that precondition.
package policy

import "regexp"

// ComponentPrefix marks custom component tags (amp-img, amp-list, ...).
const ComponentPrefix = "amp-"

// InternalClassPrefix is reserved for runtime-generated class names and may
// never appear in author-supplied class attributes.
const InternalClassPrefix = "i-amphtml-"

// SourceOriginParam is appended to outgoing request URLs by the runtime and
// may never appear in author-supplied URL attribute values.
const SourceOriginParam = "__amp_source_origin"

// Marker attributes written during diff preparation and by the binding
// runtime.
const (
	DiffIgnoreAttr = "i-amphtml-ignore"
	DiffKeyAttr    = "i-amphtml-key"
	BindingAttr    = "i-amphtml-binding"
)

// DenylistedTags are never permitted in purified output, in any document
// mode. They are stripped structurally, content included, before attribute
// filtering ever sees them. Media tags appear here because the component
// equivalents (amp-img, amp-video, ...) replace them.
var DenylistedTags = map[string]bool{
	"applet":   true,
	"audio":    true,
	"base":     true,
	"embed":    true,
	"frame":    true,
	"frameset": true,
	"iframe":   true,
	"img":      true,
	"link":     true,
	"meta":     true,
	"object":   true,
	"script":   true,
	"style":    true,
	"video":    true,
}

// EmailAllowedComponentTags are the only component tags permitted in email
// documents. Any other tag with the component prefix is stripped there.
var EmailAllowedComponentTags = map[string]bool{
	"amp-accordion":      true,
	"amp-anim":           true,
	"amp-bind-macro":     true,
	"amp-carousel":       true,
	"amp-fit-text":       true,
	"amp-img":            true,
	"amp-image-lightbox": true,
	"amp-lightbox":       true,
	"amp-list":           true,
	"amp-selector":       true,
	"amp-sidebar":        true,
	"amp-state":          true,
	"amp-timeago":        true,
}

// TripleMustacheAllowedTags may appear in raw (unescaped) template
// interpolation output. Stricter than general purification because no
// later stage re-checks that content.
var TripleMustacheAllowedTags = []string{
	"a", "b", "br", "caption", "colgroup", "code", "del", "div", "em",
	"i", "ins", "li", "mark", "ol", "p", "q", "s", "small", "span",
	"strong", "sub", "sup", "table", "tbody", "td", "tfoot", "th",
	"thead", "time", "tr", "u", "ul",
}

// GlobalAllowedAttrs are permitted on any tag: framework attributes plus
// the few HTML attributes that get dedicated validator branches.
var GlobalAllowedAttrs = map[string]bool{
	"amp-fx":               true,
	"fallback":             true,
	"heights":              true,
	"layout":               true,
	"max-font-size":        true,
	"min-font-size":        true,
	"on":                   true,
	"option":               true,
	"placeholder":          true,
	"submit-error":         true,
	"submit-success":       true,
	"submitting":           true,
	"validation-for":       true,
	"verify-error":         true,
	"visible-when-invalid": true,

	// HTML attributes with dedicated handling in the validator.
	"class": true,
	"href":  true,
	"style": true,
}

// AllowedAttrsByTag adds tag-scoped attributes on top of the global list.
var AllowedAttrsByTag = map[string]map[string]bool{
	"a":   {"rel": true, "target": true},
	"div": {"template": true},
	"form": {
		"action-xhr":                  true,
		"custom-validation-reporting": true,
		"target":                      true,
		"verify-xhr":                  true,
	},
	"input":    {"mask-output": true},
	"template": {"type": true},
	"textarea": {"autoexpand": true},
}

// AllowedTargets are the only permitted values for target attributes.
var AllowedTargets = map[string]bool{
	"_blank": true,
	"_top":   true,
}

// DenylistedValueSubstrings reject an attribute value outright when found
// anywhere in it after lowercasing and whitespace/NUL stripping.
var DenylistedValueSubstrings = []string{
	"javascript:",
	"vbscript:",
	"data:",
	"<script",
	"</script",
}

// DenylistedAttrsByTag lists attributes unconditionally rejected on a tag.
// Free-standing form controls must not re-associate with or override a
// form, hence the input entries.
var DenylistedAttrsByTag = map[string][]string{
	"input": {
		"formaction",
		"formenctype",
		"formmethod",
		"formnovalidate",
		"formtarget",
	},
}

// EmailDenylistedAttrsByTag extends DenylistedAttrsByTag in email
// documents.
var EmailDenylistedAttrsByTag = map[string][]string{
	"amp-anim": {"controls"},
	"form":     {"name"},
}

// DenylistedAttrValues rejects a per-tag attribute when its value matches
// the pattern.
var DenylistedAttrValues = map[string]map[string]*regexp.Regexp{
	"input": {
		"type": regexp.MustCompile(`(?i)(?:image|button)`),
	},
}

// EmailDenylistedAttrValues extends DenylistedAttrValues in email
// documents.
var EmailDenylistedAttrValues = map[string]map[string]*regexp.Regexp{
	"input": {
		"type": regexp.MustCompile(`(?i)(?:button|file|image|password)`),
	},
}

// invalidInlineStyleRe rejects style values that can pin or overlay content
// on top of the page chrome.
var invalidInlineStyleRe = regexp.MustCompile(
	`(?i)!important|position\s*:\s*fixed|position\s*:\s*sticky`)

// internalClassRe matches the reserved class prefix at string start or
// after a non-word character.
var internalClassRe = regexp.MustCompile(`(?i)(^|\W)` + InternalClassPrefix)

// DiffableElements maps component tags that support manual,
// attribute-scoped diffing to the attributes whose change forces full
// replacement instead of an in-place diff.
var DiffableElements = map[string][]string{
	"amp-img": {"src", "srcset", "layout", "width", "height"},
}

// ruleset is one precomputed merge of the base denylist tables with
// (optionally) the email-only additions. Exactly two exist, built at init:
// re-merging per call would rebuild identical maps on a hot path.
type ruleset struct {
	attrDeny      map[string]map[string]bool
	attrValueDeny map[string]map[string]*regexp.Regexp
}

var (
	standardRules = newRuleset(false)
	emailRules    = newRuleset(true)
)

func newRuleset(email bool) *ruleset {
	rs := &ruleset{
		attrDeny:      make(map[string]map[string]bool),
		attrValueDeny: make(map[string]map[string]*regexp.Regexp),
	}

	for tag, attrs := range DenylistedAttrsByTag {
		rs.addAttrDeny(tag, attrs)
	}
	for tag, patterns := range DenylistedAttrValues {
		rs.addValueDeny(tag, patterns)
	}
	if email {
		for tag, attrs := range EmailDenylistedAttrsByTag {
			rs.addAttrDeny(tag, attrs)
		}
		for tag, patterns := range EmailDenylistedAttrValues {
			rs.addValueDeny(tag, patterns)
		}
	}
	return rs
}

func (rs *ruleset) addAttrDeny(tag string, attrs []string) {
	set := rs.attrDeny[tag]
	if set == nil {
		set = make(map[string]bool)
		rs.attrDeny[tag] = set
	}
	for _, a := range attrs {
		set[a] = true
	}
}

func (rs *ruleset) addValueDeny(tag string, patterns map[string]*regexp.Regexp) {
	set := rs.attrValueDeny[tag]
	if set == nil {
		set = make(map[string]*regexp.Regexp)
		rs.attrValueDeny[tag] = set
	}
	for a, re := range patterns {
		set[a] = re
	}
}

// rulesFor returns the merged ruleset for the given document mode.
func rulesFor(email bool) *ruleset {
	if email {
		return emailRules
	}
	return standardRules
}
