package odk

import (
	"bytes"
	"encoding/xml"
	"errors"
	"io"
	"strings"
)

// element is a minimal DOM node for one submission document. The builder
// walks elements in document order; attributes only matter on the root.
type element struct {
	name     string
	attrs    map[string]string
	text     strings.Builder
	children []*element
}

func (e *element) attr(name string) string { return e.attrs[name] }

// content returns the element's accumulated character data.
func (e *element) content() string { return e.text.String() }

// parseDocument builds the element tree from raw submission bytes.
func parseDocument(raw []byte) (*element, error) {
	dec := xml.NewDecoder(bytes.NewReader(raw))
	var root *element
	var stack []*element
	for {
		tok, err := dec.Token()
		if err != nil {
			if errors.Is(err, io.EOF) {
				break
			}
			return nil, submissionErrorf("malformed XML: %v", err)
		}
		switch t := tok.(type) {
		case xml.StartElement:
			el := &element{name: t.Name.Local, attrs: map[string]string{}}
			for _, a := range t.Attr {
				el.attrs[a.Name.Local] = a.Value
			}
			if len(stack) == 0 {
				if root != nil {
					return nil, submissionErrorf("multiple root elements")
				}
				root = el
			} else {
				parent := stack[len(stack)-1]
				parent.children = append(parent.children, el)
			}
			stack = append(stack, el)
		case xml.EndElement:
			if len(stack) == 0 {
				return nil, submissionErrorf("malformed XML: unbalanced end tag")
			}
			stack = stack[:len(stack)-1]
		case xml.CharData:
			if len(stack) > 0 {
				stack[len(stack)-1].text.Write(t)
			}
		}
	}
	if root == nil {
		return nil, submissionErrorf("empty submission document")
	}
	if len(stack) != 0 {
		return nil, submissionErrorf("malformed XML: unclosed element")
	}
	return root, nil
}
