package parse

import (
	"strings"

	"golang.org/x/net/html"
)

// Flatten strips HTML markup from feed text for list-view display.
//
// It renders a small, deterministic plain-text dialect: headings become
// "#"-prefixed lines, paragraphs and divs become paragraph breaks, list
// items become "- " bullets, and anchors keep their target as "text (href)".
// Elements outside that set are dropped. Entities are decoded by the
// tokenizer. Input that fails to tokenize is returned whitespace-collapsed.
func Flatten(markup string) string {
	if strings.TrimSpace(markup) == "" {
		return ""
	}
	doc, err := html.Parse(strings.NewReader(markup))
	if err != nil {
		return strings.Join(strings.Fields(markup), " ")
	}

	var b strings.Builder
	if body := findBody(doc); body != nil {
		flattenChildren(&b, body)
	}
	return strings.TrimSpace(b.String())
}

func findBody(n *html.Node) *html.Node {
	if n.Type == html.ElementNode && n.Data == "body" {
		return n
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		if body := findBody(c); body != nil {
			return body
		}
	}
	return nil
}

func flattenChildren(b *strings.Builder, n *html.Node) {
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		flattenNode(b, c)
	}
}

func childText(n *html.Node) string {
	var b strings.Builder
	flattenChildren(&b, n)
	return strings.TrimLeft(b.String(), " \t\n\r")
}

func flattenNode(b *strings.Builder, n *html.Node) {
	switch n.Type {
	case html.TextNode:
		b.WriteString(n.Data)
	case html.ElementNode:
		switch n.Data {
		case "h1", "h2", "h3", "h4", "h5", "h6":
			level := int(n.Data[1] - '0')
			b.WriteString(strings.Repeat("#", level))
			b.WriteByte(' ')
			b.WriteString(childText(n))
			b.WriteString("\n\n")
		case "p", "div":
			b.WriteString(childText(n))
			b.WriteString("\n\n")
		case "b", "i", "strong", "em", "small", "span", "pre", "code", "u":
			b.WriteString(childText(n))
		case "ul", "ol":
			b.WriteByte('\n')
			flattenChildren(b, n)
			b.WriteByte('\n')
		case "li":
			b.WriteString("- ")
			b.WriteString(childText(n))
			b.WriteByte('\n')
		case "a":
			text := childText(n)
			if href := attr(n, "href"); href != "" {
				b.WriteString(text)
				b.WriteString(" (")
				b.WriteString(href)
				b.WriteByte(')')
			} else {
				b.WriteString(text)
			}
		case "br":
			b.WriteByte('\n')
		}
		// Remaining elements (script, style, img, ...) are dropped.
	}
}

func attr(n *html.Node, name string) string {
	for _, a := range n.Attr {
		if a.Key == name {
			return a.Val
		}
	}
	return ""
}
