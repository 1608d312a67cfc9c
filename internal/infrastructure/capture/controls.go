package capture

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

const defaultMaxControls = 200

// Control is an interactive element found in a failure snapshot, with the
// candidate selectors a scenario file could use to reach it.
type Control struct {
	Type      string   `yaml:"type"`
	Text      string   `yaml:"text,omitempty"`
	Label     string   `yaml:"label,omitempty"`
	Role      string   `yaml:"role,omitempty"`
	Count     string   `yaml:"count,omitempty"`
	Selectors []string `yaml:"selectors"`
}

var countRe = regexp.MustCompile(`\(([\d.,\s]+)\)`)

var controlGroups = []struct {
	typ string
	css string
}{
	{"button", `button, [role="button"], input[type="button"], input[type="submit"]`},
	{"checkbox", `input[type="checkbox"], [role="checkbox"]`},
	{"field", `input:not([type="hidden"]):not([type="checkbox"]):not([type="button"]):not([type="submit"]), textarea, select, [role="textbox"], [role="combobox"]`},
	{"link", `a[href], [role="link"]`},
	{"element", `[data-testid], [data-test-id]`},
}

// ExtractControls lists the interactive elements of an HTML document in
// group order, skipping hidden ones and duplicates.
func ExtractControls(raw string, limit int) ([]Control, error) {
	if limit <= 0 {
		limit = defaultMaxControls
	}
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(raw))
	if err != nil {
		return nil, fmt.Errorf("parse html: %w", err)
	}

	var out []Control
	seen := make(map[string]bool)
	for _, g := range controlGroups {
		doc.Find(g.css).EachWithBreak(func(_ int, s *goquery.Selection) bool {
			if len(out) >= limit {
				return false
			}
			if hidden(s) {
				return true
			}
			c := describe(s, g.typ)
			if len(c.Selectors) == 0 || seen[c.Selectors[0]] {
				return true
			}
			seen[c.Selectors[0]] = true
			out = append(out, c)
			return true
		})
	}
	return out, nil
}

func hidden(s *goquery.Selection) bool {
	for n := s; n.Length() > 0; n = n.Parent() {
		if _, ok := n.Attr("hidden"); ok {
			return true
		}
		style := strings.ReplaceAll(strings.ToLower(n.AttrOr("style", "")), " ", "")
		if strings.Contains(style, "display:none") || strings.Contains(style, "visibility:hidden") {
			return true
		}
	}
	return false
}

func describe(s *goquery.Selection, typ string) Control {
	text := strings.Join(strings.Fields(s.Text()), " ")
	if typ == "button" && text == "" {
		text = s.AttrOr("value", "")
	}
	role := s.AttrOr("role", "")
	c := Control{
		Type:  typ,
		Text:  truncate(text, 80),
		Label: firstNonEmpty(s.AttrOr("aria-label", ""), s.AttrOr("title", ""), s.AttrOr("placeholder", "")),
		Role:  role,
	}

	if typ == "link" {
		if m := countRe.FindStringSubmatch(text); len(m) > 1 {
			c.Type = "folder"
			c.Count = strings.ReplaceAll(m[1], " ", "")
			c.Text = strings.TrimSpace(countRe.ReplaceAllString(text, ""))
		}
	}

	if id := s.AttrOr("id", ""); id != "" {
		c.Selectors = append(c.Selectors, fmt.Sprintf("{id: %s}", quote(id)))
	}
	if tid := firstNonEmpty(s.AttrOr("data-testid", ""), s.AttrOr("data-test-id", "")); tid != "" {
		c.Selectors = append(c.Selectors, fmt.Sprintf("{testid: %s}", quote(tid)))
	}
	if ph := s.AttrOr("placeholder", ""); ph != "" {
		c.Selectors = append(c.Selectors, fmt.Sprintf("{placeholder: %s}", quote(ph)))
	}
	if name := firstNonEmpty(s.AttrOr("aria-label", ""), c.Text); name != "" && roleFor(s, typ) != "" {
		c.Selectors = append(c.Selectors, fmt.Sprintf("{role: %s, name: %s}", roleFor(s, typ), quote(name)))
	}
	if name := s.AttrOr("name", ""); name != "" {
		c.Selectors = append(c.Selectors, fmt.Sprintf("{attr: name, value: %s}", quote(name)))
	}
	if len(c.Selectors) == 0 && c.Text != "" {
		c.Selectors = append(c.Selectors, fmt.Sprintf("{text: %s, exact: true}", quote(c.Text)))
	}
	return c
}

func roleFor(s *goquery.Selection, typ string) string {
	if role := s.AttrOr("role", ""); role != "" {
		return role
	}
	switch typ {
	case "button", "checkbox", "link":
		return typ
	case "field":
		if goquery.NodeName(s) == "select" {
			return "combobox"
		}
		return "textbox"
	}
	return ""
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if trimmed := strings.TrimSpace(v); trimmed != "" {
			return trimmed
		}
	}
	return ""
}

func quote(s string) string {
	return fmt.Sprintf("%q", s)
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
