package ingest

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

const samplePage = `<!DOCTYPE html>
<html>
<head><title>Sample</title></head>
<body>
	<nav><p>Home</p></nav>
	<article>
		<p>Regular exercise improves cardiovascular health in most adults. Short one.</p>
		<p>Walking ten thousand steps a day is associated with lower blood pressure readings!</p>
		<p>   Whitespace   and
		newlines   inside a paragraph should be collapsed into single spaces here.  </p>
	</article>
</body>
</html>`

func TestExtractFacts(t *testing.T) {
	facts, err := ExtractFacts(strings.NewReader(samplePage))
	if err != nil {
		t.Fatalf("ExtractFacts failed: %v", err)
	}

	want := []string{
		"Regular exercise improves cardiovascular health in most adults.",
		"Walking ten thousand steps a day is associated with lower blood pressure readings!",
		"Whitespace and newlines inside a paragraph should be collapsed into single spaces here.",
	}
	if len(facts) != len(want) {
		t.Fatalf("Expected %d facts, got %d: %v", len(want), len(facts), facts)
	}
	for i, sentence := range want {
		if facts[i] != sentence {
			t.Errorf("Fact %d:\n  want %q\n  got  %q", i, sentence, facts[i])
		}
	}
}

func TestExtractFacts_DropsShortFragments(t *testing.T) {
	facts, err := ExtractFacts(strings.NewReader(`<p>Too short. Nope.</p>`))
	if err != nil {
		t.Fatalf("ExtractFacts failed: %v", err)
	}
	if len(facts) != 0 {
		t.Errorf("Expected short fragments to be dropped, got %v", facts)
	}
}

func TestFetchFacts(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html")
		_, _ = w.Write([]byte(samplePage))
	}))
	defer srv.Close()

	facts, err := FetchFacts(context.Background(), srv.Client(), srv.URL)
	if err != nil {
		t.Fatalf("FetchFacts failed: %v", err)
	}
	if len(facts) == 0 {
		t.Error("Expected facts from fetched page")
	}
}

func TestFetchFacts_BadStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.NotFound(w, r)
	}))
	defer srv.Close()

	if _, err := FetchFacts(context.Background(), srv.Client(), srv.URL); err == nil {
		t.Error("Expected error for non-200 response")
	}
}
