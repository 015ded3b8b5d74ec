package policy

import (
	"strings"
	"unicode"

	"github.com/air-gapped/purist/internal/dom"
)

// ValidAttribute reports whether attrName with attrValue may remain on
// tagName. tagName and attrName must already be lowercase; attrValue may be
// empty. email selects the restricted email-document rule additions.
//
// skipOverlap tells the validator that a general-purpose sanitizer already
// ran upstream and covered the event-handler and script-substring checks,
// so those are skipped here rather than repeated per attribute.
//
// The first matching rejection wins. An attribute no rule rejects is
// accepted, which makes completeness of these tables a security property
// rather than a fail-closed fallback.
func ValidAttribute(tagName, attrName, attrValue string, email, skipOverlap bool) bool {
	if !skipOverlap {
		// Event handler attributes. The bare "on" action attribute is not
		// one of them.
		if strings.HasPrefix(attrName, "on") && attrName != "on" {
			return false
		}
		normalized := normalizeValue(attrValue)
		for _, s := range DenylistedValueSubstrings {
			if strings.Contains(normalized, s) {
				return false
			}
		}
	}

	// Style gets a single dedicated rule and no further checks. It runs
	// even when a sanitizer ran upstream: that pass keeps or drops the
	// attribute wholesale and never inspects declarations.
	if attrName == "style" {
		return !invalidInlineStyleRe.MatchString(attrValue)
	}

	if attrName == "class" && attrValue != "" && internalClassRe.MatchString(attrValue) {
		return false
	}

	if dom.IsURLAttribute(attrName) && strings.Contains(attrValue, SourceOriginParam) {
		return false
	}

	rules := rulesFor(email)

	if rules.attrDeny[tagName][attrName] {
		return false
	}

	if re := rules.attrValueDeny[tagName][attrName]; re != nil && re.MatchString(attrValue) {
		return false
	}

	return true
}

// normalizeValue lowercases v and strips whitespace and NUL bytes, so that
// split or padded scheme strings ("java\tscript :") still match the
// substring denylist.
func normalizeValue(v string) string {
	return strings.Map(func(r rune) rune {
		if r == 0 || unicode.IsSpace(r) {
			return -1
		}
		return unicode.ToLower(r)
	}, v)
}
