package static

import (
	"strings"

	"golang.org/x/net/html"
)

// Element is a handle to a node of a static page.
type Element struct {
	node *html.Node
	page *Page
}

func (e *Element) String() string {
	return describe(e.node)
}

func (e *Element) Node() *html.Node {
	return e.node
}

func describe(n *html.Node) string {
	if n == nil {
		return "<nil>"
	}
	s := "<" + n.Data
	if id, ok := attr(n, "id"); ok && id != "" {
		s += "#" + id
	} else if class, ok := attr(n, "class"); ok && class != "" {
		s += "." + strings.Join(strings.Fields(class), ".")
	}
	return s + ">"
}

func attr(n *html.Node, name string) (string, bool) {
	for _, a := range n.Attr {
		if a.Namespace == "" && a.Key == name {
			return a.Val, true
		}
	}
	return "", false
}

func hasAttr(n *html.Node, name string) bool {
	_, ok := attr(n, name)
	return ok
}

func setAttr(n *html.Node, name, value string) {
	for i, a := range n.Attr {
		if a.Namespace == "" && a.Key == name {
			n.Attr[i].Val = value
			return
		}
	}
	n.Attr = append(n.Attr, html.Attribute{Key: name, Val: value})
}

func removeAttr(n *html.Node, name string) {
	out := n.Attr[:0]
	for _, a := range n.Attr {
		if a.Namespace == "" && a.Key == name {
			continue
		}
		out = append(out, a)
	}
	n.Attr = out
}

func setBool(n *html.Node, name string, on bool) {
	if on {
		setAttr(n, name, "")
		return
	}
	removeAttr(n, name)
}

func inputType(n *html.Node) string {
	t, _ := attr(n, "type")
	if t == "" {
		return "text"
	}
	return strings.ToLower(t)
}

// rendered reports whether n is an element that could ever be drawn.
func rendered(n *html.Node) bool {
	switch n.Data {
	case "head", "script", "style", "template", "noscript", "title", "meta", "link":
		return false
	}
	return true
}

func visible(n *html.Node) bool {
	if n.Type != html.ElementNode {
		return false
	}
	if n.Data == "input" && inputType(n) == "hidden" {
		return false
	}
	for cur := n; cur != nil; cur = cur.Parent {
		if cur.Type != html.ElementNode {
			continue
		}
		if !rendered(cur) || hasAttr(cur, "hidden") {
			return false
		}
		style, _ := attr(cur, "style")
		style = strings.ReplaceAll(strings.ToLower(style), " ", "")
		if strings.Contains(style, "display:none") || strings.Contains(style, "visibility:hidden") {
			return false
		}
	}
	return true
}

// textOf returns the text content of n, skipping non-rendered children.
func textOf(n *html.Node) string {
	var b strings.Builder
	var walk func(*html.Node)
	walk = func(cur *html.Node) {
		switch cur.Type {
		case html.TextNode:
			b.WriteString(cur.Data)
			return
		case html.ElementNode:
			if !rendered(cur) {
				return
			}
		}
		for c := cur.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(n)
	return b.String()
}

func editable(n *html.Node) bool {
	switch n.Data {
	case "textarea":
		return true
	case "input":
		switch inputType(n) {
		case "checkbox", "radio", "hidden", "button", "submit", "reset", "image", "file":
			return false
		}
		return true
	}
	v, ok := attr(n, "contenteditable")
	return ok && v != "false"
}

func checkable(n *html.Node) bool {
	if n.Data == "input" {
		t := inputType(n)
		return t == "checkbox" || t == "radio"
	}
	role, _ := attr(n, "role")
	return role == "checkbox" || role == "radio" || role == "switch"
}

func isChecked(n *html.Node) bool {
	if n.Data == "input" {
		return hasAttr(n, "checked")
	}
	v, _ := attr(n, "aria-checked")
	return v == "true"
}

func activatable(n *html.Node) bool {
	switch n.Data {
	case "button", "a":
		return true
	case "input":
		switch inputType(n) {
		case "button", "submit", "reset", "image":
			return true
		}
	}
	role, _ := attr(n, "role")
	return role == "button" || role == "link"
}

func valueOf(n *html.Node) string {
	if n.Data == "input" {
		v, _ := attr(n, "value")
		return v
	}
	return textOf(n)
}

func setValue(n *html.Node, value string) {
	if n.Data == "input" {
		setAttr(n, "value", value)
		return
	}
	for c := n.FirstChild; c != nil; {
		next := c.NextSibling
		n.RemoveChild(c)
		c = next
	}
	if value != "" {
		n.AppendChild(&html.Node{Type: html.TextNode, Data: value})
	}
}

func closestAnchor(n *html.Node) *html.Node {
	for cur := n; cur != nil; cur = cur.Parent {
		if cur.Type == html.ElementNode && cur.Data == "a" && hasAttr(cur, "href") {
			return cur
		}
	}
	return nil
}
