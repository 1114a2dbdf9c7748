package mail

import (
	"strings"

	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"
)

var skippedElements = map[atom.Atom]bool{
	atom.Script:   true,
	atom.Style:    true,
	atom.Head:     true,
	atom.Template: true,
	atom.Noscript: true,
}

var blockElements = map[atom.Atom]bool{
	atom.Br: true, atom.P: true, atom.Div: true, atom.Li: true, atom.Ul: true, atom.Ol: true,
	atom.Tr: true, atom.Td: true, atom.Th: true, atom.Table: true, atom.Blockquote: true,
	atom.H1: true, atom.H2: true, atom.H3: true, atom.H4: true, atom.H5: true, atom.H6: true,
	atom.Hr: true, atom.Pre: true, atom.Section: true, atom.Article: true, atom.Body: true,
}

// HTMLToText is a lightweight conversion good enough for prompts: scripts,
// styles and comments are dropped, block elements become word breaks,
// entities are unescaped and whitespace is collapsed.
func HTMLToText(markup string) string {
	tokenizer := html.NewTokenizer(strings.NewReader(markup))
	var (
		out     strings.Builder
		skipped int
	)
	for {
		switch tokenizer.Next() {
		case html.ErrorToken:
			// io.EOF or malformed input; keep whatever text was read.
			return collapseSpace(out.String())
		case html.TextToken:
			if skipped == 0 {
				out.WriteString(tokenizer.Token().Data)
			}
		case html.StartTagToken:
			token := tokenizer.Token()
			if skippedElements[token.DataAtom] {
				skipped++
			} else if blockElements[token.DataAtom] {
				out.WriteByte(' ')
			}
		case html.EndTagToken:
			token := tokenizer.Token()
			if skippedElements[token.DataAtom] {
				if skipped > 0 {
					skipped--
				}
			} else if blockElements[token.DataAtom] {
				out.WriteByte(' ')
			}
		case html.SelfClosingTagToken:
			if blockElements[tokenizer.Token().DataAtom] {
				out.WriteByte(' ')
			}
		}
	}
}

// collapseSpace folds every run of Unicode whitespace, NBSP included, into
// one ASCII space.
func collapseSpace(text string) string {
	return strings.Join(strings.Fields(text), " ")
}
