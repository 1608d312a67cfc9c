package entity

import (
	"fmt"
	"strings"
)

type SelectorKind string

const (
	SelectorCSS         SelectorKind = "css"
	SelectorXPath       SelectorKind = "xpath"
	SelectorText        SelectorKind = "text"
	SelectorRole        SelectorKind = "role"
	SelectorTestID      SelectorKind = "testid"
	SelectorAttr        SelectorKind = "attr"
	SelectorPlaceholder SelectorKind = "placeholder"
)

// Selector is one way of locating a logical element. Value holds the css
// expression, xpath, text, role, test id or attribute name depending on Kind;
// Name holds the accessible name for roles and the attribute value for attrs.
type Selector struct {
	Kind  SelectorKind
	Value string
	Name  string
	Exact bool
}

func ByCSS(css string) Selector {
	return Selector{Kind: SelectorCSS, Value: css}
}

func ByID(id string) Selector {
	return Selector{Kind: SelectorCSS, Value: "#" + strings.TrimPrefix(id, "#")}
}

func ByXPath(xpath string) Selector {
	return Selector{Kind: SelectorXPath, Value: xpath}
}

func ByText(text string) Selector {
	return Selector{Kind: SelectorText, Value: text}
}

func ByExactText(text string) Selector {
	return Selector{Kind: SelectorText, Value: text, Exact: true}
}

func ByRole(role, name string) Selector {
	return Selector{Kind: SelectorRole, Value: role, Name: name}
}

func ByTestID(id string) Selector {
	return Selector{Kind: SelectorTestID, Value: id}
}

func ByAttr(name, value string) Selector {
	return Selector{Kind: SelectorAttr, Value: name, Name: value}
}

func ByPlaceholder(text string) Selector {
	return Selector{Kind: SelectorPlaceholder, Value: text}
}

func (s Selector) Validate() error {
	switch s.Kind {
	case SelectorCSS, SelectorXPath, SelectorText, SelectorRole, SelectorTestID, SelectorAttr, SelectorPlaceholder:
	default:
		return NewProgrammerError("unknown selector kind %q", s.Kind)
	}
	if strings.TrimSpace(s.Value) == "" {
		return NewProgrammerError("empty %s selector", s.Kind)
	}
	return nil
}

func (s Selector) String() string {
	switch s.Kind {
	case SelectorText:
		if s.Exact {
			return fmt.Sprintf("text=%q exact", s.Value)
		}
		return fmt.Sprintf("text=%q", s.Value)
	case SelectorRole:
		if s.Name != "" {
			return fmt.Sprintf("role=%s[name=%q]", s.Value, s.Name)
		}
		return "role=" + s.Value
	case SelectorAttr:
		if s.Name != "" {
			return fmt.Sprintf("attr=[%s=%q]", s.Value, s.Name)
		}
		return fmt.Sprintf("attr=[%s]", s.Value)
	case SelectorPlaceholder:
		return fmt.Sprintf("placeholder=%q", s.Value)
	default:
		return string(s.Kind) + "=" + s.Value
	}
}
