package audio

import (
	"bytes"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/neurosnap/sentences/english"
	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/extension"
)

var mdRenderer = goldmark.New(goldmark.WithExtensions(extension.GFM))

// CleanForSpeech strips markdown and markup from a bot reply so the TTS
// endpoint does not read asterisks and table pipes aloud. The reply is
// rendered to HTML, the tags are dropped, and the result is re-joined per
// sentence to normalize the whitespace the rendering leaves behind.
func CleanForSpeech(text string) string {
	var buf bytes.Buffer
	if err := mdRenderer.Convert([]byte(text), &buf); err != nil {
		// not valid markdown is fine, speak it as-is
		return strings.TrimSpace(text)
	}
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(buf.Bytes()))
	if err != nil {
		return strings.TrimSpace(text)
	}
	doc.Find("script, style, noscript, code, pre").Each(func(i int, s *goquery.Selection) {
		s.Remove()
	})
	plain := strings.Join(strings.Fields(doc.Text()), " ")
	tokenizer, err := english.NewSentenceTokenizer(nil)
	if err != nil {
		return plain
	}
	parts := []string{}
	for _, sentence := range tokenizer.Tokenize(plain) {
		s := strings.TrimSpace(sentence.Text)
		if s != "" {
			parts = append(parts, s)
		}
	}
	return strings.Join(parts, " ")
}
