package dom

import (
	"unicode/utf16"
	"unicode/utf8"

	"github.com/chrisuehlinger/vibebridge/uicommand"
)

// Text represents a text node.
type Text Node

// AsNode returns the underlying Node.
func (t *Text) AsNode() *Node {
	return (*Node)(t)
}

// NodeType returns TextNode (3).
func (t *Text) NodeType() NodeType {
	return TextNode
}

// Data returns the text content of this node.
func (t *Text) Data() string {
	return *t.textData
}

// SetData replaces the text and queues a set-property for "data".
func (t *Text) SetData(data string) error {
	if t.disposed {
		return ErrInvalidState("The node has been disposed.")
	}
	oldValue := *t.textData
	*t.textData = data
	t.AsNode().addCommand(uicommand.SetProperty(t.nativeID, "data", data))
	t.ownerDoc.notifyCharacterDataMutation(t.AsNode(), oldValue)
	return nil
}

// Length returns the length of the data in UTF-16 code units, the way
// script sees it.
func (t *Text) Length() int {
	return UTF16Length(*t.textData)
}

// UTF16Length returns the length of s in UTF-16 code units. Invalid bytes
// count as one U+FFFD each.
func UTF16Length(s string) int {
	n := 0
	for len(s) > 0 {
		r, size := utf8.DecodeRuneInString(s)
		s = s[size:]
		if utf16.RuneLen(r) == 2 {
			n += 2
		} else {
			n++
		}
	}
	return n
}
