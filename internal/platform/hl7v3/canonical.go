package hl7v3

import (
	"bytes"
	"sort"
	"strings"
)

// Canonicalize serializes an element tree using exclusive XML
// canonicalization. The output is byte-exact for equal logical input, which
// is required wherever the bytes feed a signing digest: the external signer
// and the verifier must both re-derive exactly these bytes or the digest
// comparison fails spuriously.
//
// Rules applied, matching Exclusive XML Canonicalization 1.0 for the
// prefix-free trees this package builds:
//   - no XML declaration and no insignificant whitespace;
//   - empty elements are written as a start/end tag pair, never self-closed;
//   - the default namespace declaration sorts before ordinary attributes,
//     which are sorted lexicographically by name;
//   - attribute values escape &, <, ", tab, newline and carriage return;
//   - text content escapes &, <, > and carriage return.
func Canonicalize(e *Element) []byte {
	var buf bytes.Buffer
	writeCanonical(&buf, e)
	return buf.Bytes()
}

// CanonicalizeFragment canonicalizes a sub-tree extracted from a larger
// document. Extraction loses the ancestor's namespace context, so the HL7 V3
// namespace declaration is copied onto the fragment root before serializing.
// The input element is not modified.
func CanonicalizeFragment(e *Element) []byte {
	root := e
	if root.AttrValue("xmlns") == "" {
		root = e.Clone()
		root.Attr("xmlns", Namespace)
	}
	return Canonicalize(root)
}

func writeCanonical(buf *bytes.Buffer, e *Element) {
	buf.WriteByte('<')
	buf.WriteString(e.Name)

	attrs := append([]Attribute(nil), e.Attributes...)
	sort.SliceStable(attrs, func(i, j int) bool {
		// Namespace declarations precede all other attributes.
		ni, nj := isNamespaceDecl(attrs[i].Name), isNamespaceDecl(attrs[j].Name)
		if ni != nj {
			return ni
		}
		return attrs[i].Name < attrs[j].Name
	})
	for _, a := range attrs {
		buf.WriteByte(' ')
		buf.WriteString(a.Name)
		buf.WriteString(`="`)
		buf.WriteString(escapeAttribute(a.Value))
		buf.WriteByte('"')
	}
	buf.WriteByte('>')

	if len(e.Children) > 0 {
		for _, c := range e.Children {
			writeCanonical(buf, c)
		}
	} else if e.Text != "" {
		buf.WriteString(escapeText(e.Text))
	}

	buf.WriteString("</")
	buf.WriteString(e.Name)
	buf.WriteByte('>')
}

func isNamespaceDecl(name string) bool {
	return name == "xmlns" || strings.HasPrefix(name, "xmlns:")
}

var attributeEscaper = strings.NewReplacer(
	"&", "&amp;",
	"<", "&lt;",
	`"`, "&quot;",
	"\t", "&#x9;",
	"\n", "&#xA;",
	"\r", "&#xD;",
)

var textEscaper = strings.NewReplacer(
	"&", "&amp;",
	"<", "&lt;",
	">", "&gt;",
	"\r", "&#xD;",
)

func escapeAttribute(s string) string { return attributeEscaper.Replace(s) }

func escapeText(s string) string { return textEscaper.Replace(s) }
