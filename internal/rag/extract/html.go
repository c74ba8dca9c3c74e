package extract

import (
	"bytes"
	"context"
	"regexp"
	"strings"

	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"
)

var skippedElements = map[atom.Atom]bool{
	atom.Script:   true,
	atom.Style:    true,
	atom.Noscript: true,
	atom.Template: true,
}

var blockElements = map[atom.Atom]bool{
	atom.P: true, atom.Div: true, atom.Br: true, atom.Li: true, atom.Ul: true, atom.Ol: true,
	atom.H1: true, atom.H2: true, atom.H3: true, atom.H4: true, atom.H5: true, atom.H6: true,
	atom.Tr: true, atom.Table: true, atom.Section: true, atom.Article: true, atom.Header: true,
	atom.Footer: true, atom.Blockquote: true, atom.Pre: true, atom.Hr: true, atom.Main: true,
	atom.Nav: true, atom.Aside: true, atom.Dt: true, atom.Dd: true, atom.Figcaption: true,
}

var (
	inlineSpaces = regexp.MustCompile(`[ \t\f\r\v]+`)
	blankLines   = regexp.MustCompile(`\n{3,}`)
)

func extractHTML(_ context.Context, _ *Extractor, buf []byte, _ string) (extraction, error) {
	doc, err := html.Parse(bytes.NewReader(buf))
	if err != nil {
		return extraction{}, err
	}

	meta := map[string]any{}
	var b strings.Builder
	var walk func(n *html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.ElementNode {
			switch n.DataAtom {
			case atom.Title:
				if t := strings.TrimSpace(nodeText(n)); t != "" {
					meta["title"] = t
				}
				return
			case atom.Meta:
				readMeta(n, meta)
				return
			case atom.Head:
				for c := n.FirstChild; c != nil; c = c.NextSibling {
					if c.Type == html.ElementNode && (c.DataAtom == atom.Title || c.DataAtom == atom.Meta) {
						walk(c)
					}
				}
				return
			}
			if skippedElements[n.DataAtom] {
				return
			}
		}
		if n.Type == html.TextNode {
			b.WriteString(inlineSpaces.ReplaceAllString(strings.ReplaceAll(n.Data, "\n", " "), " "))
		}

		block := n.Type == html.ElementNode && blockElements[n.DataAtom]
		if block {
			b.WriteString("\n")
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
		if block {
			b.WriteString("\n")
		}
	}
	walk(doc)

	lines := strings.Split(b.String(), "\n")
	for i, l := range lines {
		lines[i] = strings.TrimSpace(l)
	}
	text := blankLines.ReplaceAllString(strings.Join(lines, "\n"), "\n\n")
	return extraction{text: strings.TrimSpace(text), meta: meta}, nil
}

func nodeText(n *html.Node) string {
	var b strings.Builder
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		if c.Type == html.TextNode {
			b.WriteString(c.Data)
		}
	}
	return b.String()
}

func readMeta(n *html.Node, meta map[string]any) {
	var name, content string
	for _, a := range n.Attr {
		switch strings.ToLower(a.Key) {
		case "name", "property":
			name = strings.ToLower(a.Val)
		case "content":
			content = strings.TrimSpace(a.Val)
		}
	}
	if content == "" {
		return
	}
	switch name {
	case "description", "og:description":
		if _, ok := meta["description"]; !ok {
			meta["description"] = content
		}
	case "author", "keywords":
		meta[name] = content
	}
}
