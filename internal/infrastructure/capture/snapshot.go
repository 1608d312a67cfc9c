package capture

import (
	"fmt"
	"strings"

	"golang.org/x/net/html"
)

type SnapshotConfig struct {
	TagsToRemove  []string
	AttrsToRemove []string
	// KeepPrefixes protects attributes that would otherwise be dropped by
	// DropPrefixes (data-testid survives while data-reactid goes).
	KeepPrefixes []string
	DropPrefixes []string
	MaxSize      int
}

var DefaultSnapshotConfig = SnapshotConfig{
	TagsToRemove: []string{
		"script", "style", "noscript", "svg", "iframe", "link", "meta",
	},
	AttrsToRemove: []string{
		"style", "srcset", "sizes", "loading", "decoding", "fetchpriority",
	},
	KeepPrefixes: []string{"data-testid", "data-test", "aria-"},
	DropPrefixes: []string{"data-", "on"},
	MaxSize:      500_000,
}

// Snapshot strips markup that does not help locating elements and returns
// the rendered document, truncated to cfg.MaxSize.
func Snapshot(raw string, cfg SnapshotConfig) (string, error) {
	doc, err := html.Parse(strings.NewReader(raw))
	if err != nil {
		return "", fmt.Errorf("parse html: %w", err)
	}

	clean(doc, cfg)

	var sb strings.Builder
	if err := html.Render(&sb, doc); err != nil {
		return "", fmt.Errorf("render html: %w", err)
	}
	out := sb.String()
	if cfg.MaxSize > 0 && len(out) > cfg.MaxSize {
		out = out[:cfg.MaxSize] + "\n<!-- truncated -->"
	}
	return out, nil
}

func clean(n *html.Node, cfg SnapshotConfig) {
	for c := n.FirstChild; c != nil; {
		next := c.NextSibling
		switch {
		case c.Type == html.CommentNode:
			n.RemoveChild(c)
		case c.Type == html.ElementNode && oneOf(c.Data, cfg.TagsToRemove):
			n.RemoveChild(c)
		default:
			if c.Type == html.ElementNode {
				c.Attr = filterAttrs(c.Attr, cfg)
			}
			clean(c, cfg)
		}
		c = next
	}
}

func filterAttrs(attrs []html.Attribute, cfg SnapshotConfig) []html.Attribute {
	var kept []html.Attribute
	for _, a := range attrs {
		if !dropAttr(a.Key, cfg) {
			kept = append(kept, a)
		}
	}
	return kept
}

func dropAttr(key string, cfg SnapshotConfig) bool {
	if oneOf(key, cfg.AttrsToRemove) {
		return true
	}
	if hasPrefix(key, cfg.KeepPrefixes) {
		return false
	}
	return hasPrefix(key, cfg.DropPrefixes)
}

func hasPrefix(s string, prefixes []string) bool {
	for _, p := range prefixes {
		if strings.HasPrefix(s, p) {
			return true
		}
	}
	return false
}

func oneOf(s string, candidates []string) bool {
	for _, c := range candidates {
		if s == c {
			return true
		}
	}
	return false
}
