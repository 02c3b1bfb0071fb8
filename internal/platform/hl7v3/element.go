// Package hl7v3 models the HL7 V3 XML wire protocol spoken by the national
// prescription exchange. Messages are built as ordered element trees rather
// than marshalled structs so that serialization is fully deterministic:
// re-serializing the same logical tree twice is byte-identical, which is what
// makes prescription signing digests reproducible.
package hl7v3

import "fmt"

// Namespace is the HL7 V3 XML namespace carried by every wire document.
const Namespace = "urn:hl7-org:v3"

// Attribute is a single XML attribute. Attribute order on an Element is the
// insertion order; the canonicalizer applies its own ordering when hashing.
type Attribute struct {
	Name  string
	Value string
}

// Element is one node of an HL7 V3 message tree. An element either carries
// text content or child elements, never both.
type Element struct {
	Name       string
	Attributes []Attribute
	Children   []*Element
	Text       string
}

// NewElement creates an element with no attributes or children.
func NewElement(name string) *Element {
	return &Element{Name: name}
}

// NewTextElement creates a leaf element holding text content.
func NewTextElement(name, text string) *Element {
	return &Element{Name: name, Text: text}
}

// Attr sets an attribute and returns the element for chaining. Setting the
// same attribute twice replaces the earlier value in place.
func (e *Element) Attr(name, value string) *Element {
	for i := range e.Attributes {
		if e.Attributes[i].Name == name {
			e.Attributes[i].Value = value
			return e
		}
	}
	e.Attributes = append(e.Attributes, Attribute{Name: name, Value: value})
	return e
}

// Add appends child elements in document order and returns the element.
func (e *Element) Add(children ...*Element) *Element {
	e.Children = append(e.Children, children...)
	return e
}

// AttrValue returns the value of the named attribute, or "" if absent.
func (e *Element) AttrValue(name string) string {
	for _, a := range e.Attributes {
		if a.Name == name {
			return a.Value
		}
	}
	return ""
}

// Find returns the first child with the given name, or nil.
func (e *Element) Find(name string) *Element {
	for _, c := range e.Children {
		if c.Name == name {
			return c
		}
	}
	return nil
}

// FindAll returns every direct child with the given name, in document order.
func (e *Element) FindAll(name string) []*Element {
	var out []*Element
	for _, c := range e.Children {
		if c.Name == name {
			out = append(out, c)
		}
	}
	return out
}

// FindPath walks a chain of child names and returns the first element at the
// end of the chain, or nil if any step is missing.
func (e *Element) FindPath(names ...string) *Element {
	cur := e
	for _, n := range names {
		if cur = cur.Find(n); cur == nil {
			return nil
		}
	}
	return cur
}

// MustFindPath is FindPath for paths the schema guarantees; it returns an
// error naming the missing step instead of nil.
func (e *Element) MustFindPath(names ...string) (*Element, error) {
	cur := e
	for i, n := range names {
		next := cur.Find(n)
		if next == nil {
			return nil, fmt.Errorf("hl7v3: element %s has no %s (step %d of path %v)", cur.Name, n, i+1, names)
		}
		cur = next
	}
	return cur, nil
}

// Walk visits e and every descendant in document order until fn returns false.
func (e *Element) Walk(fn func(*Element) bool) bool {
	if !fn(e) {
		return false
	}
	for _, c := range e.Children {
		if !c.Walk(fn) {
			return false
		}
	}
	return true
}

// FindDescendant returns the first element with the given name anywhere below
// e (depth-first, document order), or nil.
func (e *Element) FindDescendant(name string) *Element {
	var found *Element
	for _, c := range e.Children {
		c.Walk(func(el *Element) bool {
			if el.Name == name {
				found = el
				return false
			}
			return true
		})
		if found != nil {
			break
		}
	}
	return found
}

// Clone returns a deep copy of the element tree.
func (e *Element) Clone() *Element {
	cp := &Element{Name: e.Name, Text: e.Text}
	cp.Attributes = append([]Attribute(nil), e.Attributes...)
	for _, c := range e.Children {
		cp.Children = append(cp.Children, c.Clone())
	}
	return cp
}

// ---- Common HL7 V3 element constructors ----

// IDRoot builds an <id> element with only a root attribute (long-form ids).
func IDRoot(root string) *Element {
	return NewElement("id").Attr("root", root)
}

// ID builds an <id> element with root and extension attributes.
func ID(root, extension string) *Element {
	return NewElement("id").Attr("root", root).Attr("extension", extension)
}

// Code builds a <code> element against a code system.
func Code(system, code, display string) *Element {
	e := NewElement("code").Attr("codeSystem", system).Attr("code", code)
	if display != "" {
		e.Attr("displayName", display)
	}
	return e
}

// NamedCode is Code with an explicit element name (value, reasonCode, ...).
func NamedCode(name, system, code, display string) *Element {
	e := NewElement(name).Attr("codeSystem", system).Attr("code", code)
	if display != "" {
		e.Attr("displayName", display)
	}
	return e
}

// TimeValue builds an element carrying an HL7 timestamp in its value attribute.
func TimeValue(name, value string) *Element {
	return NewElement(name).Attr("value", value)
}

// Interval builds an <effectiveTime> style interval with optional bounds.
func Interval(name, low, high string) *Element {
	e := NewElement(name)
	if low != "" {
		e.Add(NewElement("low").Attr("value", low))
	}
	if high != "" {
		e.Add(NewElement("high").Attr("value", high))
	}
	return e
}

// Quantity builds a quantity element with value and unit attributes.
func Quantity(name, value, unit string) *Element {
	return NewElement(name).Attr("value", value).Attr("unit", unit)
}
