// Package richtext cleans recipe instructions written in the rich text editor.
package richtext

import (
	"strings"

	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"
)

// разрешённые теги и их атрибуты
var allowed = map[atom.Atom][]string{
	atom.P: nil, atom.Br: nil, atom.B: nil, atom.Strong: nil, atom.I: nil, atom.Em: nil,
	atom.U: nil, atom.S: nil, atom.Ul: nil, atom.Ol: nil, atom.Li: nil, atom.Blockquote: nil,
	atom.H2: nil, atom.H3: nil, atom.H4: nil, atom.Pre: nil, atom.Code: nil, atom.Span: nil,
	atom.A: {"href", "title"},
}

// содержимое этих тегов выбрасывается целиком
var dropped = map[atom.Atom]bool{
	atom.Script: true, atom.Style: true, atom.Iframe: true, atom.Object: true,
	atom.Embed: true, atom.Noscript: true, atom.Template: true, atom.Svg: true, atom.Math: true,
}

var blocks = map[atom.Atom]bool{
	atom.P: true, atom.Br: true, atom.Li: true, atom.Blockquote: true,
	atom.H2: true, atom.H3: true, atom.H4: true, atom.Pre: true,
}

func parse(src string) []*html.Node {
	body := &html.Node{Type: html.ElementNode, Data: "body", DataAtom: atom.Body}
	nodes, err := html.ParseFragment(strings.NewReader(src), body)
	if err != nil {
		return nil
	}
	return nodes
}

// Sanitize keeps an allowlist of formatting tags. Unknown tags are unwrapped,
// scripts and embeds are removed with their content, links keep only safe schemes.
func Sanitize(src string) string {
	var sb strings.Builder
	for _, n := range parse(src) {
		writeNode(&sb, n)
	}
	return strings.TrimSpace(sb.String())
}

func writeNode(sb *strings.Builder, n *html.Node) {
	switch n.Type {
	case html.TextNode:
		sb.WriteString(html.EscapeString(n.Data))
		return
	case html.ElementNode:
	default:
		return
	}
	if dropped[n.DataAtom] {
		return
	}
	attrs, ok := allowed[n.DataAtom]
	if !ok || n.DataAtom == 0 {
		writeChildren(sb, n)
		return
	}

	sb.WriteByte('<')
	sb.WriteString(n.Data)
	for _, a := range n.Attr {
		if a.Namespace != "" || !contains(attrs, a.Key) {
			continue
		}
		if a.Key == "href" && !safeURL(a.Val) {
			continue
		}
		sb.WriteByte(' ')
		sb.WriteString(a.Key)
		sb.WriteString(`="`)
		sb.WriteString(html.EscapeString(a.Val))
		sb.WriteByte('"')
	}
	if n.DataAtom == atom.A {
		sb.WriteString(` rel="nofollow noopener"`)
	}
	sb.WriteByte('>')
	if n.DataAtom == atom.Br {
		return
	}
	writeChildren(sb, n)
	sb.WriteString("</")
	sb.WriteString(n.Data)
	sb.WriteByte('>')
}

func writeChildren(sb *strings.Builder, n *html.Node) {
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		writeNode(sb, c)
	}
}

func safeURL(v string) bool {
	u := strings.ToLower(strings.TrimSpace(v))
	return strings.HasPrefix(u, "http://") || strings.HasPrefix(u, "https://") ||
		strings.HasPrefix(u, "mailto:") || strings.HasPrefix(u, "/")
}

func contains(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}

// PlainText strips all markup; block elements become line breaks.
func PlainText(src string) string {
	var sb strings.Builder
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		switch n.Type {
		case html.TextNode:
			sb.WriteString(n.Data)
			return
		case html.ElementNode:
			if dropped[n.DataAtom] {
				return
			}
			if n.DataAtom == atom.Li {
				sb.WriteString("• ")
			}
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
		if n.Type == html.ElementNode && blocks[n.DataAtom] {
			sb.WriteByte('\n')
		}
	}
	for _, n := range parse(src) {
		walk(n)
	}

	lines := strings.Split(sb.String(), "\n")
	out := lines[:0]
	for _, l := range lines {
		if l = strings.TrimSpace(l); l != "" {
			out = append(out, l)
		}
	}
	return strings.Join(out, "\n")
}
