// Package locator renders entity selectors into the CSS and XPath dialects
// understood by CDP-based providers.
package locator

import (
	"errors"
	"fmt"
	"strings"

	"resilient-ui/internal/domain/entity"
)

var (
	ErrNoCSS   = errors.New("selector has no css form")
	ErrNoXPath = errors.New("selector has no xpath form")
)

const (
	upperASCII = "ABCDEFGHIJKLMNOPQRSTUVWXYZ"
	lowerASCII = "abcdefghijklmnopqrstuvwxyz"
)

type role struct {
	css   string
	xpath string
}

var roles = map[string]role{
	"button": {
		css:   `button, [role="button"], input[type="button"], input[type="submit"], input[type="reset"]`,
		xpath: `self::button or @role="button" or (self::input and (@type="button" or @type="submit" or @type="reset"))`,
	},
	"link": {
		css:   `a[href], [role="link"]`,
		xpath: `(self::a and @href) or @role="link"`,
	},
	"textbox": {
		css:   `input:not([type]), input[type="text"], input[type="email"], input[type="search"], input[type="tel"], input[type="url"], textarea, [role="textbox"]`,
		xpath: `(self::input and (not(@type) or @type="text" or @type="email" or @type="search" or @type="tel" or @type="url")) or self::textarea or @role="textbox"`,
	},
	"checkbox": {
		css:   `input[type="checkbox"], [role="checkbox"]`,
		xpath: `(self::input and @type="checkbox") or @role="checkbox"`,
	},
	"radio": {
		css:   `input[type="radio"], [role="radio"]`,
		xpath: `(self::input and @type="radio") or @role="radio"`,
	},
	"combobox": {
		css:   `select, [role="combobox"]`,
		xpath: `self::select or @role="combobox"`,
	},
	"heading": {
		css:   `h1, h2, h3, h4, h5, h6, [role="heading"]`,
		xpath: `self::h1 or self::h2 or self::h3 or self::h4 or self::h5 or self::h6 or @role="heading"`,
	},
	"dialog": {
		css:   `dialog, [role="dialog"]`,
		xpath: `self::dialog or @role="dialog"`,
	},
	"row": {
		css:   `tr, [role="row"]`,
		xpath: `self::tr or @role="row"`,
	},
}

// RoleCSS returns the CSS selector for elements carrying role, explicitly
// or implicitly.
func RoleCSS(name string) string {
	if r, ok := roles[strings.ToLower(name)]; ok {
		return r.css
	}
	return fmt.Sprintf(`[role=%s]`, cssString(name))
}

func roleXPath(name string) string {
	if r, ok := roles[strings.ToLower(name)]; ok {
		return r.xpath
	}
	return "@role=" + XPathString(name)
}

func CSS(s entity.Selector) (string, error) {
	switch s.Kind {
	case entity.SelectorCSS:
		return s.Value, nil
	case entity.SelectorTestID:
		return fmt.Sprintf(`[data-testid=%s]`, cssString(s.Value)), nil
	case entity.SelectorAttr:
		if s.Name == "" {
			return fmt.Sprintf(`[%s]`, s.Value), nil
		}
		return fmt.Sprintf(`[%s=%s]`, s.Value, cssString(s.Name)), nil
	case entity.SelectorPlaceholder:
		if s.Exact {
			return fmt.Sprintf(`[placeholder=%s]`, cssString(s.Value)), nil
		}
		return fmt.Sprintf(`[placeholder*=%s]`, cssString(s.Value)), nil
	case entity.SelectorRole:
		if s.Name == "" {
			return RoleCSS(s.Value), nil
		}
	}
	return "", fmt.Errorf("%w: %s", ErrNoCSS, s)
}

func XPath(s entity.Selector) (string, error) {
	switch s.Kind {
	case entity.SelectorXPath:
		return s.Value, nil
	case entity.SelectorText:
		match := textMatch(".", s.Value, s.Exact)
		return fmt.Sprintf(`//*[%s][not(.//*[%s])]`, match, match), nil
	case entity.SelectorRole:
		xp := fmt.Sprintf(`//*[%s]`, roleXPath(s.Value))
		if s.Name != "" {
			xp += fmt.Sprintf(`[%s or %s or %s]`,
				textMatch(".", s.Name, s.Exact),
				textMatch("@aria-label", s.Name, s.Exact),
				textMatch("@value", s.Name, s.Exact),
			)
		}
		return xp, nil
	}
	return "", fmt.Errorf("%w: %s", ErrNoXPath, s)
}

// Native returns the CSS form when there is one and the XPath form otherwise.
func Native(s entity.Selector) (expr string, isXPath bool, err error) {
	if css, err := CSS(s); err == nil {
		return css, false, nil
	}
	xp, err := XPath(s)
	if err != nil {
		return "", false, err
	}
	return xp, true, nil
}

func textMatch(expr, text string, exact bool) string {
	norm := fmt.Sprintf("normalize-space(%s)", expr)
	if exact {
		return fmt.Sprintf("%s=%s", norm, XPathString(NormalizeSpace(text)))
	}
	return fmt.Sprintf("contains(translate(%s, %q, %q), %s)",
		norm, upperASCII, lowerASCII, XPathString(strings.ToLower(NormalizeSpace(text))))
}

// MatchText applies the same rules as the XPath text match: exact compares
// normalized text, otherwise a case-insensitive substring match.
func MatchText(have, want string, exact bool) bool {
	have, want = NormalizeSpace(have), NormalizeSpace(want)
	if exact {
		return have == want
	}
	return strings.Contains(strings.ToLower(have), strings.ToLower(want))
}

func NormalizeSpace(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

// XPathString quotes s as an XPath 1.0 literal, using concat() when it holds
// both quote characters.
func XPathString(s string) string {
	if !strings.Contains(s, `"`) {
		return `"` + s + `"`
	}
	if !strings.Contains(s, `'`) {
		return `'` + s + `'`
	}
	parts := strings.Split(s, `"`)
	quoted := make([]string, 0, len(parts)*2)
	for i, p := range parts {
		if i > 0 {
			quoted = append(quoted, `'"'`)
		}
		if p != "" {
			quoted = append(quoted, `"`+p+`"`)
		}
	}
	if len(quoted) == 1 {
		return quoted[0]
	}
	return "concat(" + strings.Join(quoted, ", ") + ")"
}

func cssString(s string) string {
	return `"` + strings.NewReplacer(`\`, `\\`, `"`, `\"`).Replace(s) + `"`
}
