package parser

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"MediaMonitor/internal/httpclient"
)

const sampleRSS = `<?xml version="1.0" encoding="UTF-8"?>
<rss version="2.0">
  <channel>
    <title>Daily Tech</title>
    <link>https://news.example.org</link>
    <item>
      <title>Acme launches rocket</title>
      <link>https://news.example.org/acme-rocket</link>
      <description><![CDATA[<p>Acme <b>finally</b> launched.</p>]]></description>
      <pubDate>Mon, 10 Nov 2025 08:00:00 GMT</pubDate>
      <category>space</category>
    </item>
    <item>
      <title>Globex quarterly results</title>
      <link>https://news.example.org/globex-q3</link>
      <description>Numbers are up.</description>
    </item>
  </channel>
</rss>`

func TestRSSProviderContinuesAfterFailedFeed(t *testing.T) {
	t.Parallel()

	mux := http.NewServeMux()
	mux.HandleFunc("/down", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	})
	mux.HandleFunc("/garbage", func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("not a feed"))
	})
	mux.HandleFunc("/feed", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/rss+xml")
		_, _ = w.Write([]byte(sampleRSS))
	})
	server := httptest.NewServer(mux)
	defer server.Close()

	p := NewRSSProvider(httpclient.New(httpclient.Options{}), []string{
		server.URL + "/down",
		server.URL + "/garbage",
		server.URL + "/feed",
		"ftp://ignored.example.org/feed",
	}, nil)

	items, err := p.FetchItems(context.Background())
	if err == nil {
		t.Fatalf("expected aggregated error for failing feeds")
	}
	if len(items) != 2 {
		t.Fatalf("expected 2 items, got %d", len(items))
	}

	first := items[0]
	if first.Source != "Daily Tech" {
		t.Fatalf("unexpected source: %s", first.Source)
	}
	if first.RawSummary != "Acme finally launched." {
		t.Fatalf("unexpected summary: %q", first.RawSummary)
	}
	if first.ProviderName != "rss" {
		t.Fatalf("unexpected provider name: %s", first.ProviderName)
	}
	if _, ok := first.Metadata["published_at"]; !ok {
		t.Fatalf("expected published_at metadata")
	}
}

func TestRSSProviderTotalFailureReturnsEmptySlice(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	defer server.Close()

	p := NewRSSProvider(nil, []string{server.URL}, nil)
	items, err := p.FetchItems(context.Background())
	if err == nil {
		t.Fatalf("expected error")
	}
	if items == nil {
		t.Fatalf("items must be an empty slice, not nil")
	}
	if len(items) != 0 {
		t.Fatalf("expected no items, got %d", len(items))
	}
}

func TestRSSProviderDecodesEntities(t *testing.T) {
	t.Parallel()

	const feed = `<?xml version="1.0" encoding="UTF-8"?>
<rss version="2.0">
  <channel>
    <title>Food</title>
    <item>
      <title>Ben &amp; Jerry's</title>
      <link>https://food.example.org/bj</link>
      <description><![CDATA[<p>Ben &amp; Jerry&#39;s &quot;new&quot; flavour</p><p>Out now</p><script>track()</script>]]></description>
    </item>
  </channel>
</rss>`

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(feed))
	}))
	defer server.Close()

	items, err := NewRSSProvider(nil, []string{server.URL}, nil).FetchItems(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(items) != 1 {
		t.Fatalf("expected 1 item, got %d", len(items))
	}
	if items[0].Title != "Ben & Jerry's" {
		t.Fatalf("unexpected title: %q", items[0].Title)
	}
	if want := `Ben & Jerry's "new" flavour Out now`; items[0].RawSummary != want {
		t.Fatalf("unexpected summary: %q, want %q", items[0].RawSummary, want)
	}
}

func TestHTMLText(t *testing.T) {
	t.Parallel()

	cases := map[string]string{
		"plain  text\n":              "plain text",
		"<b>bold</b> and <i>it</i>":  "bold and it",
		"Tom &amp; Jerry":            "Tom & Jerry",
		"<style>p{}</style><p>x</p>": "x",
		"":                           "",
	}
	for in, want := range cases {
		if got := htmlText(in); got != want {
			t.Fatalf("htmlText(%q) = %q, want %q", in, got, want)
		}
	}
}
