package hl7v3

import (
	"bytes"
	"encoding/xml"
	"fmt"
	"io"
	"strings"
)

// Parse decodes a wire XML document into an element tree. Namespace prefixes
// are stripped (the wire protocol is single-namespace), whitespace-only text
// between elements is discarded, and document order is preserved so that a
// received prescription canonicalizes to the same bytes that were signed.
func Parse(data []byte) (*Element, error) {
	dec := xml.NewDecoder(bytes.NewReader(data))
	var (
		root  *Element
		stack []*Element
	)
	for {
		tok, err := dec.Token()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("hl7v3: malformed XML: %w", err)
		}
		switch t := tok.(type) {
		case xml.StartElement:
			el := NewElement(t.Name.Local)
			for _, a := range t.Attr {
				switch {
				case a.Name.Space == "xmlns" || a.Name.Local == "xmlns":
					// Namespace declarations are re-applied at
					// canonicalization time.
				default:
					el.Attr(a.Name.Local, a.Value)
				}
			}
			if len(stack) == 0 {
				if root != nil {
					return nil, fmt.Errorf("hl7v3: multiple document roots")
				}
				root = el
			} else {
				stack[len(stack)-1].Add(el)
			}
			stack = append(stack, el)
		case xml.EndElement:
			if len(stack) == 0 {
				return nil, fmt.Errorf("hl7v3: unbalanced end element %s", t.Name.Local)
			}
			stack = stack[:len(stack)-1]
		case xml.CharData:
			if len(stack) == 0 {
				continue
			}
			text := string(t)
			if strings.TrimSpace(text) == "" {
				continue
			}
			cur := stack[len(stack)-1]
			if len(cur.Children) > 0 {
				// Mixed content does not occur in the wire schema;
				// stray text around children is insignificant.
				continue
			}
			cur.Text += text
		}
	}
	if root == nil {
		return nil, fmt.Errorf("hl7v3: document has no root element")
	}
	if len(stack) != 0 {
		return nil, fmt.Errorf("hl7v3: unterminated element %s", stack[len(stack)-1].Name)
	}
	return root, nil
}
