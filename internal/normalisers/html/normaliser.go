package html

import (
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"
	nethtml "golang.org/x/net/html"
	"golang.org/x/net/html/atom"

	"github.com/custodia-labs/stackqa/internal/core/ports/driven"
)

// Ensure Normaliser implements the interface.
var _ driven.Normaliser = (*Normaliser)(nil)

var (
	multiNewline = regexp.MustCompile(`\n{3,}`)
	multiSpace   = regexp.MustCompile(` {2,}`)
)

// bulletMarker prefixes list items.
const bulletMarker = "• "

// Normaliser converts answer HTML into clean text.
// It is stateless and safe for concurrent use.
type Normaliser struct {
	detector driven.LanguageDetector
}

// New creates a normaliser using the default language rules.
func New() *Normaliser {
	return &Normaliser{detector: NewDetector()}
}

// NewWithDetector creates a normaliser with a custom language detector.
func NewWithDetector(detector driven.LanguageDetector) *Normaliser {
	if detector == nil {
		detector = NewDetector()
	}
	return &Normaliser{detector: detector}
}

// Normalize converts an HTML fragment to clean text.
// Empty input, or input the parser cannot handle, yields "".
func (n *Normaliser) Normalize(htmlText string) string {
	if strings.TrimSpace(htmlText) == "" {
		return ""
	}

	doc, err := parseFragment(htmlText)
	if err != nil {
		return ""
	}

	rewriteLinks(doc)
	rewriteMath(doc)

	return assemble(n.collect(doc.Selection))
}

// parseFragment parses htmlText as body content and wraps the resulting
// top-level nodes in a single root so their order is preserved exactly.
func parseFragment(htmlText string) (*goquery.Document, error) {
	body := &nethtml.Node{Type: nethtml.ElementNode, Data: "body", DataAtom: atom.Body}
	nodes, err := nethtml.ParseFragment(strings.NewReader(htmlText), body)
	if err != nil {
		return nil, err
	}

	root := &nethtml.Node{Type: nethtml.ElementNode, Data: "div", DataAtom: atom.Div}
	for _, node := range nodes {
		root.AppendChild(node)
	}
	return goquery.NewDocumentFromNode(root), nil
}

// rewriteLinks replaces every <a href> with "text (href)".
func rewriteLinks(doc *goquery.Document) {
	doc.Find("a[href]").Each(func(_ int, a *goquery.Selection) {
		href, _ := a.Attr("href")
		href = strings.TrimSpace(href)
		text := a.Text()
		if href != "" {
			text += " (" + href + ")"
		}
		a.ReplaceWithNodes(textNode(text))
	})
}

// rewriteMath replaces MathJax script/span elements and class="math"
// elements with $...$, or $$...$$ in its own block when displayed as a block.
func rewriteMath(doc *goquery.Document) {
	doc.Find(`script[type^="math/tex"], span[type^="math/tex"], [class~="math"]`).Each(func(_ int, m *goquery.Selection) {
		if m.Parent().Length() == 0 {
			return
		}
		typ, _ := m.Attr("type")
		display, _ := m.Attr("display")
		if !displayMath(display, typ) {
			m.ReplaceWithNodes(textNode(delimitMath(m.Text(), false)))
			return
		}
		div := &nethtml.Node{Type: nethtml.ElementNode, Data: "div", DataAtom: atom.Div}
		div.AppendChild(textNode(delimitMath(m.Text(), true)))
		m.ReplaceWithNodes(div)
	})
}

func displayMath(display, typ string) bool {
	return display == "block" || strings.Contains(typ, "mode=display")
}

func delimitMath(expr string, block bool) string {
	expr = strings.TrimSpace(expr)
	if block {
		return "$$" + expr + "$$"
	}
	return "$" + expr + "$"
}

// collect visits the children of sel in document order. Runs of inline
// content are gathered into one part; block elements produce their own parts.
func (n *Normaliser) collect(sel *goquery.Selection) []string {
	var parts []string
	var run strings.Builder

	flush := func() {
		if text := strings.TrimSpace(run.String()); text != "" {
			parts = append(parts, text)
		}
		run.Reset()
	}

	for _, parent := range sel.Nodes {
		for c := parent.FirstChild; c != nil; c = c.NextSibling {
			if !isBlock(c) {
				n.writeInline(&run, c)
				continue
			}
			flush()
			parts = append(parts, n.block(c)...)
		}
	}
	flush()

	return parts
}

// block renders one block-level element.
func (n *Normaliser) block(node *nethtml.Node) []string {
	switch node.DataAtom {
	case atom.Pre, atom.Code:
		if code := n.codeBlock(node); code != "" {
			return []string{code}
		}
		return nil

	case atom.Ul, atom.Ol:
		return n.list(node)

	case atom.Blockquote:
		return quote(n.collect(selectionOf(node)))

	case atom.Hr:
		return []string{"---"}

	case atom.Math:
		return []string{delimitMath(nodeText(node), true)}

	case atom.Table:
		return n.table(node)

	case atom.Div, atom.Section, atom.Article, atom.Main, atom.Aside, atom.Details:
		return n.collect(selectionOf(node))

	default:
		var b strings.Builder
		n.writeInline(&b, node)
		if text := strings.TrimSpace(b.String()); text != "" {
			return []string{text}
		}
		return nil
	}
}

// codeBlock fences the code inside a <pre> (or a multi-line <code>).
// An explicit class language wins over inference.
func (n *Normaliser) codeBlock(node *nethtml.Node) string {
	src := node
	lang := ""
	if code := findElement(node, atom.Code); code != nil {
		src = code
		lang = languageFromClass(attr(code, "class"))
	}
	if lang == "" {
		lang = languageFromClass(attr(node, "class"))
	}

	code := strings.Trim(nodeText(src), "\r\n")
	if strings.TrimSpace(code) == "" {
		return ""
	}
	if lang == "" {
		lang = n.detector.Detect(code)
	}

	return "```" + lang + "\n" + code + "\n```"
}

// list renders each direct <li> as a bulleted line. Code blocks inside an
// item follow the item's line as separate parts.
func (n *Normaliser) list(node *nethtml.Node) []string {
	var parts []string
	var lines []string

	flush := func() {
		if len(lines) > 0 {
			parts = append(parts, strings.Join(lines, "\n"))
			lines = nil
		}
	}

	for li := node.FirstChild; li != nil; li = li.NextSibling {
		if !isElement(li, atom.Li) {
			continue
		}
		itemLines, codes := n.listItem(li, 0)
		lines = append(lines, itemLines...)
		if len(codes) > 0 {
			flush()
			parts = append(parts, codes...)
		}
	}
	flush()

	return parts
}

func (n *Normaliser) listItem(li *nethtml.Node, depth int) (lines []string, codes []string) {
	indent := strings.Repeat("  ", depth)

	var text strings.Builder
	var nested []string
	for c := li.FirstChild; c != nil; c = c.NextSibling {
		switch {
		case isElement(c, atom.Ul) || isElement(c, atom.Ol):
			for sub := c.FirstChild; sub != nil; sub = sub.NextSibling {
				if !isElement(sub, atom.Li) {
					continue
				}
				subLines, subCodes := n.listItem(sub, depth+1)
				nested = append(nested, subLines...)
				codes = append(codes, subCodes...)
			}
		default:
			n.writeInline(&text, c)
		}
	}

	for _, pre := range findAll(li, atom.Pre, atom.Ul, atom.Ol) {
		if code := n.codeBlock(pre); code != "" {
			codes = append(codes, code)
		}
	}

	if item := strings.Join(strings.Fields(text.String()), " "); item != "" {
		lines = append(lines, indent+bulletMarker+item)
	}
	lines = append(lines, nested...)
	return lines, codes
}

// table renders rows as " | "-separated cells.
func (n *Normaliser) table(node *nethtml.Node) []string {
	var rows []string
	selectionOf(node).Find("tr").Each(func(_ int, tr *goquery.Selection) {
		var cells []string
		tr.Children().Each(func(_ int, cell *goquery.Selection) {
			var b strings.Builder
			for _, c := range cell.Nodes {
				n.writeInline(&b, c)
			}
			cells = append(cells, strings.Join(strings.Fields(b.String()), " "))
		})
		if row := strings.Join(cells, " | "); strings.TrimSpace(row) != "" {
			rows = append(rows, row)
		}
	})
	if len(rows) == 0 {
		return nil
	}
	return []string{strings.Join(rows, "\n")}
}

// writeInline renders a node as running text. Inline code is wrapped in
// backticks and inline math in dollar signs. <pre> is skipped; callers that
// want code blocks extract them separately.
func (n *Normaliser) writeInline(b *strings.Builder, node *nethtml.Node) {
	switch node.Type {
	case nethtml.TextNode:
		b.WriteString(node.Data)
		return
	case nethtml.ElementNode:
	default:
		return
	}

	switch node.DataAtom {
	case atom.Script, atom.Style, atom.Pre:
		return
	case atom.Br:
		b.WriteString("\n")
		return
	case atom.Code:
		if code := strings.TrimSpace(nodeText(node)); code != "" {
			b.WriteString("`" + code + "`")
		}
		return
	case atom.Math:
		b.WriteString(delimitMath(nodeText(node), false))
		return
	case atom.Img:
		if alt := attr(node, "alt"); alt != "" {
			b.WriteString(alt)
		}
		return
	}

	for c := node.FirstChild; c != nil; c = c.NextSibling {
		n.writeInline(b, c)
	}

	switch node.DataAtom {
	case atom.P, atom.Div, atom.Li, atom.H1, atom.H2, atom.H3, atom.H4, atom.H5, atom.H6:
		b.WriteString("\n")
	}
}

// quote prefixes every non-empty line of parts with "> ".
func quote(parts []string) []string {
	text := strings.TrimSpace(strings.Join(parts, "\n"))
	if text == "" {
		return nil
	}
	lines := strings.Split(text, "\n")
	for i, line := range lines {
		if strings.TrimSpace(line) == "" {
			lines[i] = ">"
			continue
		}
		lines[i] = "> " + strings.TrimSpace(line)
	}
	return []string{strings.Join(lines, "\n")}
}

// assemble joins parts with blank lines and collapses runs of newlines and spaces.
func assemble(parts []string) string {
	text := strings.Join(parts, "\n\n")
	text = strings.ReplaceAll(text, "\r\n", "\n")
	text = multiNewline.ReplaceAllString(text, "\n\n")
	text = multiSpace.ReplaceAllString(text, " ")
	return strings.TrimSpace(text)
}

func isBlock(node *nethtml.Node) bool {
	if node.Type != nethtml.ElementNode {
		return false
	}
	switch node.DataAtom {
	case atom.P, atom.Pre, atom.Ul, atom.Ol, atom.Blockquote, atom.Hr, atom.Table,
		atom.Div, atom.Section, atom.Article, atom.Main, atom.Aside, atom.Details,
		atom.H1, atom.H2, atom.H3, atom.H4, atom.H5, atom.H6:
		return true
	case atom.Code:
		return strings.Contains(strings.Trim(nodeText(node), "\r\n"), "\n")
	case atom.Math:
		return attr(node, "display") == "block"
	default:
		return false
	}
}

func isElement(node *nethtml.Node, a atom.Atom) bool {
	return node.Type == nethtml.ElementNode && node.DataAtom == a
}

func selectionOf(node *nethtml.Node) *goquery.Selection {
	return goquery.NewDocumentFromNode(node).Selection
}

func textNode(text string) *nethtml.Node {
	return &nethtml.Node{Type: nethtml.TextNode, Data: text}
}

func attr(node *nethtml.Node, key string) string {
	for _, a := range node.Attr {
		if a.Key == key {
			return a.Val
		}
	}
	return ""
}

// nodeText concatenates all descendant text.
func nodeText(node *nethtml.Node) string {
	if node.Type == nethtml.TextNode {
		return node.Data
	}
	var b strings.Builder
	for c := node.FirstChild; c != nil; c = c.NextSibling {
		b.WriteString(nodeText(c))
	}
	return b.String()
}

// findElement returns node itself or its first descendant with atom a.
func findElement(node *nethtml.Node, a atom.Atom) *nethtml.Node {
	if isElement(node, a) {
		return node
	}
	for c := node.FirstChild; c != nil; c = c.NextSibling {
		if found := findElement(c, a); found != nil {
			return found
		}
	}
	return nil
}

// findAll returns descendants of node with atom a, not descending into
// elements whose atom is in skip.
func findAll(node *nethtml.Node, a atom.Atom, skip ...atom.Atom) []*nethtml.Node {
	var found []*nethtml.Node
	for c := node.FirstChild; c != nil; c = c.NextSibling {
		if c.Type != nethtml.ElementNode {
			continue
		}
		if isElement(c, a) {
			found = append(found, c)
			continue
		}
		skipped := false
		for _, s := range skip {
			if c.DataAtom == s {
				skipped = true
				break
			}
		}
		if !skipped {
			found = append(found, findAll(c, a, skip...)...)
		}
	}
	return found
}
