// Package ingest extracts candidate facts from web pages so a corpus can
// be built from existing prose instead of one manual call at a time.
package ingest

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"unicode"

	"github.com/PuerkitoBio/goquery"
)

// Sentences shorter than this are noise (nav fragments, bylines) and are
// dropped.
const minSentenceLength = 40

// ExtractFacts pulls candidate fact sentences from the paragraph elements
// of an HTML document.
func ExtractFacts(r io.Reader) ([]string, error) {
	doc, err := goquery.NewDocumentFromReader(r)
	if err != nil {
		return nil, fmt.Errorf("failed to parse HTML: %w", err)
	}

	var facts []string
	doc.Find("p").Each(func(_ int, sel *goquery.Selection) {
		for _, sentence := range splitSentences(sel.Text()) {
			if len(sentence) >= minSentenceLength {
				facts = append(facts, sentence)
			}
		}
	})
	return facts, nil
}

// FetchFacts downloads a page and extracts candidate facts from it.
func FetchFacts(ctx context.Context, client *http.Client, url string) ([]string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to build request: %w", err)
	}

	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch %s: %w", url, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("unexpected status %d fetching %s", resp.StatusCode, url)
	}

	return ExtractFacts(resp.Body)
}

func splitSentences(text string) []string {
	var sentences []string
	var current strings.Builder

	flush := func() {
		sentence := strings.Join(strings.Fields(current.String()), " ")
		if sentence != "" {
			sentences = append(sentences, sentence)
		}
		current.Reset()
	}

	for _, r := range text {
		current.WriteRune(r)
		if r == '.' || r == '!' || r == '?' {
			flush()
		}
	}
	// Trailing fragment without terminal punctuation is kept only if it
	// reads like a full clause.
	tail := strings.TrimSpace(current.String())
	if len(tail) >= minSentenceLength && unicode.IsUpper(firstRune(tail)) {
		flush()
	}

	return sentences
}

func firstRune(s string) rune {
	for _, r := range s {
		return r
	}
	return 0
}
