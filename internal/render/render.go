// Package render converts parsed HTML fragments into sink markup dialects.
//
// Each dialect owns a table of tag handlers keyed by lowercase tag name.
// Tags without a handler are transparent: their children are rendered and
// concatenated with no wrapper. A small substitution table maps semantic
// tags (strong, em, del, ins) onto their presentational equivalents so a
// dialect only has to register the short form.
package render

import (
	"fmt"
	"strings"

	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"
)

// Dialect selects the output markup style.
type Dialect string

// Supported output dialects.
const (
	DialectPlain    Dialect = "plain"
	DialectMarkdown Dialect = "markdown"
	DialectHTML     Dialect = "html"
)

const (
	bullet = "•" // list item marker for plain/html
	stripe = "▍" // blockquote marker for plain/html

	// spoilerClass marks a span whose content is hidden behind a
	// click-through spoiler on the originating server.
	spoilerClass = "_mfm_blur_"
)

// renderFunc renders a single node in the dialect the handler belongs to.
type renderFunc func(n *html.Node) string

// handler renders one element node. The render argument may be applied to
// any node, usually the element's children.
type handler func(n *html.Node, render renderFunc) string

// substitutes maps tags without a registered handler onto an equivalent
// tag that may have one. Lookups are a single step, never chained.
var substitutes = map[string]string{
	"strong": "b",
	"em":     "i",
	"del":    "s",
	"ins":    "u",
}

// escapes holds the per-dialect text node escaping. Plain text has no entry
// and passes through unchanged.
var escapes = map[Dialect]func(string) string{
	DialectHTML:     html.EscapeString,
	DialectMarkdown: escapeMarkdown,
}

var mdEscaper = strings.NewReplacer(
	`\`, `\\`,
	`*`, `\*`,
	`[`, `\[`,
	`]`, `\]`,
	`_`, `\_`,
	`~`, `\~`,
	`|`, `\|`,
	"`", "\\`",
)

func escapeMarkdown(s string) string {
	return mdEscaper.Replace(s)
}

var handlers = buildHandlers()

// Render converts a sequence of sibling nodes into the given dialect.
func Render(nodes []*html.Node, d Dialect) string {
	var b strings.Builder
	for _, n := range nodes {
		b.WriteString(renderNode(n, d))
	}
	return b.String()
}

// RenderFragment parses an HTML fragment and renders it into the given
// dialect.
func RenderFragment(fragment string, d Dialect) (string, error) {
	ctx := &html.Node{Type: html.ElementNode, Data: "div", DataAtom: atom.Div}
	nodes, err := html.ParseFragment(strings.NewReader(fragment), ctx)
	if err != nil {
		return "", fmt.Errorf("parse fragment: %w", err)
	}
	return Render(nodes, d), nil
}

func renderNode(n *html.Node, d Dialect) string {
	switch n.Type {
	case html.TextNode:
		if esc, ok := escapes[d]; ok {
			return esc(n.Data)
		}
		return n.Data
	case html.ElementNode, html.DocumentNode:
		// handled below
	default:
		// comments, doctypes
		return ""
	}

	recurse := func(n *html.Node) string { return renderNode(n, d) }

	if n.Type == html.ElementNode {
		table := handlers[d]
		name := strings.ToLower(n.Data)
		h, ok := table[name]
		if !ok {
			if sub, subOK := substitutes[name]; subOK {
				h, ok = table[sub]
			}
		}
		if ok {
			return h(n, recurse)
		}
	}

	return renderChildren(n, recurse)
}

func renderChildren(n *html.Node, render renderFunc) string {
	var b strings.Builder
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		b.WriteString(render(c))
	}
	return b.String()
}

func attr(n *html.Node, key string) (string, bool) {
	for _, a := range n.Attr {
		if a.Key == key {
			return a.Val, true
		}
	}
	return "", false
}

func href(n *html.Node) string {
	if v, ok := attr(n, "href"); ok {
		return v
	}
	return "#"
}

func hasClass(n *html.Node, class string) bool {
	v, ok := attr(n, "class")
	return ok && strings.Contains(v, class)
}

// wrap returns a handler emitting prefix + children + suffix.
func wrap(prefix, suffix string) handler {
	return func(n *html.Node, render renderFunc) string {
		return prefix + renderChildren(n, render) + suffix
	}
}

// literal returns a handler emitting a fixed string, ignoring children.
func literal(s string) handler {
	return func(*html.Node, renderFunc) string { return s }
}

// quoted prefixes every line of the rendered children with marker.
func quoted(marker string) handler {
	return func(n *html.Node, render renderFunc) string {
		body := strings.TrimSpace(renderChildren(n, render))
		lines := strings.Split(body, "\n")
		for i, line := range lines {
			lines[i] = marker + line
		}
		return strings.Join(lines, "\n")
	}
}

// listed renders each direct child element on its own line, prefixed by
// marker(i) and with nested lines indented to align under the marker.
func listed(marker func(i int) string) handler {
	return func(n *html.Node, render renderFunc) string {
		var b strings.Builder
		i := 0
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			if c.Type != html.ElementNode {
				continue
			}
			i++
			item := strings.ReplaceAll(render(c), "\n", "\n   ")
			b.WriteString("\n")
			b.WriteString(marker(i))
			b.WriteString(strings.TrimRight(item, " \t\n"))
		}
		return b.String()
	}
}

func numbered(i int) string {
	return fmt.Sprintf("%d. ", i)
}

func buildHandlers() map[Dialect]map[string]handler {
	htmlTable := map[string]handler{
		"a": func(n *html.Node, render renderFunc) string {
			return fmt.Sprintf(`<a href="%s">%s</a>`,
				html.EscapeString(href(n)), renderChildren(n, render))
		},
		"p":    wrap("", "\n\n"),
		"br":   literal("\n"),
		"i":    wrap("<i>", "</i>"),
		"b":    wrap("<b>", "</b>"),
		"s":    wrap("<s>", "</s>"),
		"u":    wrap("<u>", "</u>"),
		"pre":  wrap("\n<pre>", "</pre>\n"),
		"code": wrap("<code>", "</code>"),
		"span": func(n *html.Node, render renderFunc) string {
			if hasClass(n, spoilerClass) {
				return `<span class="tg-spoiler">` + renderChildren(n, render) + `</span>`
			}
			return renderChildren(n, render)
		},
		"blockquote": quoted(stripe + " "),
		"ul":         listed(func(int) string { return bullet + " " }),
		"ol":         listed(numbered),
	}

	markdownTable := map[string]handler{
		"a": func(n *html.Node, render renderFunc) string {
			return fmt.Sprintf("[%s](%s)",
				renderChildren(n, render), html.EscapeString(href(n)))
		},
		"p":    wrap("", "\n\n"),
		"br":   literal("\n"),
		"i":    wrap("*", "*"),
		"b":    wrap("**", "**"),
		"s":    wrap("~~", "~~"),
		"u":    wrap("__", "__"),
		"pre":  wrap("\n```", "```\n"),
		"code": wrap("`", "`"),
		"span": func(n *html.Node, render renderFunc) string {
			if hasClass(n, spoilerClass) {
				return "||" + renderChildren(n, render) + "||"
			}
			return renderChildren(n, render)
		},
		"blockquote": quoted("> "),
		"ul":         listed(func(int) string { return "* " }),
		"ol":         listed(numbered),
	}

	// Plain text drops emphasis and code markers entirely: those tags
	// have no handler here and fall through as transparent.
	plainTable := map[string]handler{
		"a": func(n *html.Node, render renderFunc) string {
			return fmt.Sprintf("%s (%s)",
				renderChildren(n, render), html.EscapeString(href(n)))
		},
		"p":          wrap("", "\n\n"),
		"br":         literal("\n"),
		"blockquote": quoted(stripe + " "),
		"ul":         listed(func(int) string { return bullet + " " }),
		"ol":         listed(numbered),
	}

	return map[Dialect]map[string]handler{
		DialectHTML:     htmlTable,
		DialectMarkdown: markdownTable,
		DialectPlain:    plainTable,
	}
}
