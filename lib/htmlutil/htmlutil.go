package htmlutil

import (
	"bytes"
	"regexp"
	"strings"
	"unicode"

	"github.com/PuerkitoBio/goquery"
	"golang.org/x/net/html"
)

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

var innerWhitespace = regexp.MustCompile(`\s\s+`)

func removeNonPrintable(s string) string {
	newStr := strings.Builder{}
	for _, c := range s {
		if unicode.IsPrint(c) {
			newStr.WriteRune(c)
		}
	}
	return newStr.String()
}

// CleanText is the visible text of a selection with non-printable runes
// dropped and runs of whitespace collapsed to one space.
func CleanText(sel *goquery.Selection) string {
	var buffer bytes.Buffer
	for _, n := range sel.Nodes {
		getTextRecursive(n, &buffer)
		buffer.WriteByte(' ')
	}
	text := strings.ReplaceAll(buffer.String(), "\n", " ")
	text = removeNonPrintable(text)
	text = innerWhitespace.ReplaceAllString(text, " ")
	return strings.Trim(text, " \t")
}

// FirstText is CleanText of the first element matching selector.
func FirstText(doc *goquery.Selection, selector string) string {
	return CleanText(doc.Find(selector).First())
}

// LabelledValue looks for an element whose text starts with `label` and
// returns the text after it, for markup like "<li>Rating: <b>1500</b></li>".
func LabelledValue(doc *goquery.Selection, selector, label string) (string, bool) {
	var out string
	found := false
	doc.Find(selector).EachWithBreak(func(_ int, s *goquery.Selection) bool {
		text := CleanText(s)
		if !strings.HasPrefix(strings.ToLower(text), strings.ToLower(label)) {
			return true
		}
		out = strings.Trim(text[len(label):], " :\t")
		found = true
		return false
	})
	return out, found
}
