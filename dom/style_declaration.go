package dom

import (
	"regexp"
	"strings"

	"github.com/chrisuehlinger/vibebridge/uicommand"
)

// StyleDeclaration represents an element's inline style. Every change is
// mirrored to the native side as a set-style command keyed by the
// camelCase property name.
type StyleDeclaration struct {
	element *Element

	// kebab-case property name -> value
	declarations map[string]string

	// Order in which properties were set (for cssText serialization)
	propertyOrder []string
}

// Declaration is one parsed "property: value" pair.
type Declaration struct {
	Property string
	Value    string
}

func newStyleDeclaration(element *Element) *StyleDeclaration {
	return &StyleDeclaration{
		element:      element,
		declarations: make(map[string]string),
	}
}

// CSSText returns the textual representation of the declaration block.
func (sd *StyleDeclaration) CSSText() string {
	parts := make([]string, 0, len(sd.propertyOrder))
	for _, prop := range sd.propertyOrder {
		parts = append(parts, prop+": "+sd.declarations[prop])
	}
	return strings.Join(parts, "; ")
}

// SetCSSText clears every property and applies the parsed text.
func (sd *StyleDeclaration) SetCSSText(cssText string) {
	for _, prop := range sd.PropertyNames() {
		sd.RemoveProperty(prop)
	}
	for _, d := range ParseDeclarations(cssText) {
		sd.SetProperty(d.Property, d.Value)
	}
}

// Length returns the number of properties set.
func (sd *StyleDeclaration) Length() int {
	return len(sd.declarations)
}

// Item returns the property name at the given index.
func (sd *StyleDeclaration) Item(index int) string {
	if index < 0 || index >= len(sd.propertyOrder) {
		return ""
	}
	return sd.propertyOrder[index]
}

// GetPropertyValue returns the value of a CSS property.
func (sd *StyleDeclaration) GetPropertyValue(property string) string {
	return sd.declarations[normalizeCSSPropertyName(property)]
}

// SetProperty sets a CSS property. An empty value removes it.
func (sd *StyleDeclaration) SetProperty(property, value string) {
	property = normalizeCSSPropertyName(property)
	if !isValidCSSPropertyName(property) || sd.element.disposed {
		return
	}
	value = strings.TrimSpace(value)
	if value == "" {
		sd.RemoveProperty(property)
		return
	}
	if _, exists := sd.declarations[property]; !exists {
		sd.propertyOrder = append(sd.propertyOrder, property)
	}
	sd.declarations[property] = value
	sd.element.AsNode().addCommand(uicommand.SetStyle(sd.element.nativeID, camelCasePropertyName(property), value))
}

// RemoveProperty removes a CSS property and returns its old value.
func (sd *StyleDeclaration) RemoveProperty(property string) string {
	property = normalizeCSSPropertyName(property)
	oldValue, ok := sd.declarations[property]
	if !ok {
		return ""
	}
	delete(sd.declarations, property)
	for i, p := range sd.propertyOrder {
		if p == property {
			sd.propertyOrder = append(sd.propertyOrder[:i], sd.propertyOrder[i+1:]...)
			break
		}
	}
	sd.element.AsNode().addCommand(uicommand.SetStyle(sd.element.nativeID, camelCasePropertyName(property), ""))
	return oldValue
}

// PropertyNames returns all property names in declaration order.
func (sd *StyleDeclaration) PropertyNames() []string {
	return append([]string(nil), sd.propertyOrder...)
}

// clear forgets every declaration without queuing anything.
func (sd *StyleDeclaration) clear() {
	sd.declarations = make(map[string]string)
	sd.propertyOrder = nil
}

// ParseDeclarations splits a style attribute string into declarations.
// Property names come back in kebab-case; "!important" is dropped.
func ParseDeclarations(cssText string) []Declaration {
	var decls []Declaration
	for _, part := range strings.Split(cssText, ";") {
		part = strings.TrimSpace(part)
		colonIdx := strings.Index(part, ":")
		if colonIdx == -1 {
			continue
		}

		property := normalizeCSSPropertyName(strings.TrimSpace(part[:colonIdx]))
		value := strings.TrimSpace(part[colonIdx+1:])
		if i := strings.LastIndex(value, "!"); i != -1 && strings.EqualFold(strings.TrimSpace(value[i+1:]), "important") {
			value = strings.TrimSpace(value[:i])
		}
		if property == "" || value == "" {
			continue
		}
		decls = append(decls, Declaration{Property: property, Value: value})
	}
	return decls
}

// normalizeCSSPropertyName converts camelCase to kebab-case and lowercases.
// "backgroundColor" -> "background-color", "WebkitTransform" -> "-webkit-transform"
func normalizeCSSPropertyName(name string) string {
	if name == "" {
		return ""
	}

	// If already kebab-case, just lowercase
	if strings.Contains(name, "-") {
		return strings.ToLower(name)
	}

	var result strings.Builder
	for _, r := range name {
		if r >= 'A' && r <= 'Z' {
			result.WriteByte('-')
			result.WriteByte(byte(r - 'A' + 'a'))
		} else {
			result.WriteRune(r)
		}
	}
	return result.String()
}

// camelCasePropertyName converts kebab-case to camelCase.
// "background-color" -> "backgroundColor", "-webkit-transform" -> "WebkitTransform"
func camelCasePropertyName(name string) string {
	vendor := strings.HasPrefix(name, "-")
	parts := strings.Split(strings.TrimPrefix(name, "-"), "-")
	var result strings.Builder
	for i, part := range parts {
		if part == "" {
			continue
		}
		if i == 0 && !vendor {
			result.WriteString(part)
		} else {
			result.WriteString(strings.ToUpper(part[:1]) + part[1:])
		}
	}
	return result.String()
}

var cssPropertyPattern = regexp.MustCompile(`^-?[a-z][a-z0-9-]*$`)

func isValidCSSPropertyName(name string) bool {
	return cssPropertyPattern.MatchString(name)
}
