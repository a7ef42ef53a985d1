package dedupe

import (
	"fmt"
	"io"
	"strings"

	"golang.org/x/net/html"
)

// ScrapeRules tells the HTML normalizer where a bespoke tracker's search
// page keeps its fields. Selectors are "tag.class" (class optional).
type ScrapeRules struct {
	Row       string // element that wraps one result
	Name      string // element whose text is the release name
	Link      string // anchor whose href is the details link
	Size      string // element whose text is the human-readable size
	Trumpable string // element present only on trumpable entries (optional)
}

// ScrapeCandidates parses a bespoke tracker's search page into normalized
// candidates. Scrape precision is whatever the markup allows; missing fields
// are left zero rather than failing the whole page.
func ScrapeCandidates(r io.Reader, rules ScrapeRules) ([]Candidate, error) {
	root, err := html.Parse(r)
	if err != nil {
		return nil, fmt.Errorf("parse search page: %w", err)
	}

	rowTag, rowClass := splitSelector(rules.Row)
	var candidates []Candidate
	for _, row := range findAll(root, rowTag, rowClass) {
		candidate := Candidate{}

		nameTag, nameClass := splitSelector(rules.Name)
		if node := findFirst(row, nameTag, nameClass); node != nil {
			candidate.Name = strings.TrimSpace(textOf(node))
		}
		linkTag, linkClass := splitSelector(rules.Link)
		if node := findFirst(row, linkTag, linkClass); node != nil {
			candidate.Link = attr(node, "href")
			if candidate.Name == "" {
				candidate.Name = strings.TrimSpace(textOf(node))
			}
		}
		if rules.Size != "" {
			sizeTag, sizeClass := splitSelector(rules.Size)
			if node := findFirst(row, sizeTag, sizeClass); node != nil {
				candidate.Size = ParseSize(textOf(node))
			}
		}
		if rules.Trumpable != "" {
			trumpTag, trumpClass := splitSelector(rules.Trumpable)
			candidate.Trumpable = findFirst(row, trumpTag, trumpClass) != nil
		}

		if candidate.Name == "" && candidate.Link == "" {
			continue
		}
		candidates = append(candidates, candidate)
	}
	return candidates, nil
}

func splitSelector(selector string) (tag, class string) {
	parts := strings.SplitN(strings.TrimSpace(selector), ".", 2)
	tag = parts[0]
	if len(parts) == 2 {
		class = parts[1]
	}
	return tag, class
}

func findAll(node *html.Node, tag, class string) []*html.Node {
	var out []*html.Node
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if matches(n, tag, class) {
			out = append(out, n)
			return // do not descend into matched rows
		}
		for child := n.FirstChild; child != nil; child = child.NextSibling {
			walk(child)
		}
	}
	walk(node)
	return out
}

func findFirst(node *html.Node, tag, class string) *html.Node {
	var found *html.Node
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if found != nil {
			return
		}
		if n != node && matches(n, tag, class) {
			found = n
			return
		}
		for child := n.FirstChild; child != nil; child = child.NextSibling {
			walk(child)
		}
	}
	walk(node)
	return found
}

func matches(n *html.Node, tag, class string) bool {
	if n.Type != html.ElementNode {
		return false
	}
	if tag != "" && n.Data != tag {
		return false
	}
	if class == "" {
		return true
	}
	for _, a := range n.Attr {
		if a.Key != "class" {
			continue
		}
		for _, c := range strings.Fields(a.Val) {
			if c == class {
				return true
			}
		}
	}
	return false
}

func attr(n *html.Node, key string) string {
	for _, a := range n.Attr {
		if a.Key == key {
			return a.Val
		}
	}
	return ""
}

func textOf(n *html.Node) string {
	var b strings.Builder
	var walk func(*html.Node)
	walk = func(node *html.Node) {
		if node.Type == html.TextNode {
			b.WriteString(node.Data)
		}
		for child := node.FirstChild; child != nil; child = child.NextSibling {
			walk(child)
		}
	}
	walk(n)
	return b.String()
}
