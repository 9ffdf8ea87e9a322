package htmlutil

import (
	"bytes"
	"fmt"
	"regexp"
	"strings"
	"unicode"

	"github.com/PuerkitoBio/goquery"
	"golang.org/x/net/html"
)

func ParseDocument(body []byte) (*goquery.Document, error) {
	return goquery.NewDocumentFromReader(bytes.NewReader(body))
}

// MetaContent returns the content attribute of <meta name="`name`">,
// or "" when there is no such element.
func MetaContent(doc *goquery.Document, name string) string {
	selector := fmt.Sprintf(`meta[name="%s"]`, name)
	return strings.TrimSpace(doc.Find(selector).First().AttrOr("content", ""))
}

func GetText(node *html.Node) string {
	var buffer bytes.Buffer
	getTextRecursive(node, &buffer)
	return buffer.String()
}

func getTextRecursive(node *html.Node, buffer *bytes.Buffer) {
	if node == nil {
		return
	}
	if node.Type == html.TextNode {
		buffer.WriteString(node.Data)
		return
	}
	child := node.FirstChild
	for child != nil {
		getTextRecursive(child, buffer)
		child = child.NextSibling
	}
}

var innerWhitespace = regexp.MustCompile(`\s+`)

func removeNonPrintable(s string) string {
	newStr := strings.Builder{}
	for _, c := range s {
		if unicode.IsPrint(c) {
			newStr.WriteRune(c)
		}
	}
	return newStr.String()
}

// CleanText joins the text of every node in `sel` with whitespace
// collapsed, it is used to surface flash messages from html pages.
func CleanText(sel *goquery.Selection) string {
	var parts []string
	for _, n := range sel.Nodes {
		text := innerWhitespace.ReplaceAllString(GetText(n), " ")
		text = strings.TrimSpace(removeNonPrintable(text))
		if text != "" {
			parts = append(parts, text)
		}
	}
	return strings.Join(parts, " ")
}
