package news

import (
	"io"
	"strings"

	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"
)

// CleanText strips markup from an HTML fragment and collapses whitespace.
func CleanText(s string) string {
	if strings.TrimSpace(s) == "" {
		return ""
	}
	nodes, err := html.ParseFragment(strings.NewReader(s), &html.Node{Type: html.ElementNode, Data: "body", DataAtom: atom.Body})
	if err != nil {
		return strings.Join(strings.Fields(s), " ")
	}
	var b strings.Builder
	for _, n := range nodes {
		collectText(n, &b)
	}
	return strings.Join(strings.Fields(b.String()), " ")
}

// collectText appends the text under n, separating nodes with spaces.
func collectText(n *html.Node, b *strings.Builder) {
	switch n.Type {
	case html.TextNode:
		b.WriteString(n.Data)
		b.WriteByte(' ')
		return
	case html.ElementNode:
		if n.DataAtom == atom.Script || n.DataAtom == atom.Style {
			return
		}
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		collectText(c, b)
	}
}

func nodeText(n *html.Node) string {
	var b strings.Builder
	collectText(n, &b)
	return strings.Join(strings.Fields(b.String()), " ")
}

// Page is the readable part of an HTML document.
type Page struct {
	Title      string
	Text       string   // paragraphs longer than 50 characters, blank-line separated
	Paragraphs []string // paragraphs longer than 30 characters
	Body       string   // all text of the main content node
}

var boilerplate = map[atom.Atom]bool{
	atom.Script: true,
	atom.Style:  true,
	atom.Nav:    true,
	atom.Header: true,
	atom.Footer: true,
	atom.Aside:  true,
	atom.Form:   true,
}

var contentClasses = []string{"article-content", "post-content", "entry-content", "content"}

// ExtractPage parses an HTML document and pulls out the main content: the
// first article, main or role=main element, then well-known content
// classes, falling back to body.
func ExtractPage(r io.Reader) (Page, error) {
	doc, err := html.Parse(r)
	if err != nil {
		return Page{}, err
	}
	prune(doc)

	var p Page
	if h1 := find(doc, func(n *html.Node) bool { return n.DataAtom == atom.H1 }); h1 != nil {
		p.Title = nodeText(h1)
	}

	root := mainContent(doc)
	if root == nil {
		return p, nil
	}
	p.Body = nodeText(root)

	var long []string
	walk(root, func(n *html.Node) {
		if n.Type != html.ElementNode || n.DataAtom != atom.P {
			return
		}
		text := nodeText(n)
		if len(text) > 30 {
			p.Paragraphs = append(p.Paragraphs, text)
		}
		if len(text) > 50 {
			long = append(long, text)
		}
	})
	p.Text = strings.Join(long, "\n\n")
	return p, nil
}

func mainContent(doc *html.Node) *html.Node {
	matchers := []func(*html.Node) bool{
		func(n *html.Node) bool { return n.DataAtom == atom.Article },
		func(n *html.Node) bool { return n.DataAtom == atom.Main },
		func(n *html.Node) bool { return attr(n, "role") == "main" },
	}
	for _, class := range contentClasses {
		matchers = append(matchers, func(n *html.Node) bool { return hasClass(n, class) })
	}
	matchers = append(matchers,
		func(n *html.Node) bool { return attr(n, "id") == "content" },
		func(n *html.Node) bool { return n.DataAtom == atom.Body },
	)
	for _, m := range matchers {
		if n := find(doc, m); n != nil {
			return n
		}
	}
	return nil
}

// prune drops elements that never hold article text.
func prune(n *html.Node) {
	for c := n.FirstChild; c != nil; {
		next := c.NextSibling
		if c.Type == html.ElementNode && boilerplate[c.DataAtom] {
			n.RemoveChild(c)
		} else {
			prune(c)
		}
		c = next
	}
}

func walk(n *html.Node, fn func(*html.Node)) {
	fn(n)
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		walk(c, fn)
	}
}

func find(n *html.Node, match func(*html.Node) bool) *html.Node {
	if n.Type == html.ElementNode && match(n) {
		return n
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		if found := find(c, match); found != nil {
			return found
		}
	}
	return nil
}

func attr(n *html.Node, key string) string {
	for _, a := range n.Attr {
		if a.Key == key {
			return a.Val
		}
	}
	return ""
}

func hasClass(n *html.Node, class string) bool {
	for _, c := range strings.Fields(attr(n, "class")) {
		if c == class {
			return true
		}
	}
	return false
}
