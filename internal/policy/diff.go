package policy

import (
	"strings"

	"github.com/air-gapped/purist/internal/dom"
)

// MarkerInstruction tells the diff-preparation caller what to write onto a
// node, if anything.
type MarkerInstruction int

const (
	// MarkNone leaves the node alone; default diffing applies.
	MarkNone MarkerInstruction = iota

	// MarkIgnore marks the node opaque to the differ. Manual,
	// attribute-scoped diffing handles it elsewhere.
	MarkIgnore

	// MarkKey assigns the node a pairing key; the differ replaces nodes
	// whose keys do not match.
	MarkKey
)

// Marker is the classifier's output: an instruction plus the generated key
// when the instruction is MarkKey. The classifier never writes to the node;
// exactly one caller applies the marker via Apply.
type Marker struct {
	Instruction MarkerInstruction
	Key         string
}

// ClassifyForDiffing decides how the tree differ should treat n.
//
// Nodes carrying a dynamic binding must never be diffed in place: the
// binding runtime discards and rebinds all rendered nodes before the diff
// runs, so preserving old node identity would silently break bindings.
// They get keys, forcing replacement. Component tags get keys for the same
// reason. Diffable elements without a binding get the ignore marker
// instead, since they support manual attribute-scoped diffing and must not
// be blindly replaced. The binding check runs first, so a bound diffable
// element still gets a key, never an ignore marker.
//
// generateKey is called at most once, and only when a fresh key is needed:
// a node already carrying a marker comes back MarkNone.
func ClassifyForDiffing(n dom.Node, generateKey func() string) Marker {
	tag := n.TagName()
	hasBinding := n.HasAttribute(BindingAttr)

	if !hasBinding {
		if _, ok := DiffableElements[tag]; ok {
			if n.HasAttribute(DiffIgnoreAttr) {
				return Marker{Instruction: MarkNone}
			}
			return Marker{Instruction: MarkIgnore}
		}
	}

	if hasBinding || strings.HasPrefix(tag, ComponentPrefix) {
		if n.HasAttribute(DiffKeyAttr) {
			return Marker{Instruction: MarkNone}
		}
		return Marker{Instruction: MarkKey, Key: generateKey()}
	}

	return Marker{Instruction: MarkNone}
}

// Apply writes the marker onto n. A MarkNone marker is a no-op.
func (m Marker) Apply(n dom.Node) {
	switch m.Instruction {
	case MarkIgnore:
		n.SetAttribute(DiffIgnoreAttr, "")
	case MarkKey:
		n.SetAttribute(DiffKeyAttr, m.Key)
	}
}
