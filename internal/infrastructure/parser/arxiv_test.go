package parser

import (
	"context"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/PuerkitoBio/goquery"

	"MediaMonitor/internal/httpclient"
)

func TestBuildPageURL(t *testing.T) {
	t.Parallel()

	base := "https://export.arxiv.org/list/cs.AI/pastweek"
	u, err := buildPageURL(base, 200, 100)
	if err != nil {
		t.Fatalf("buildPageURL returned error: %v", err)
	}

	parsed, err := url.Parse(u)
	if err != nil {
		t.Fatalf("parse result: %v", err)
	}

	if parsed.Scheme != "https" || parsed.Host != "export.arxiv.org" {
		t.Fatalf("unexpected host: %s", parsed.Host)
	}

	q := parsed.Query()
	if q.Get("skip") != "200" {
		t.Fatalf("expected skip=200, got %s", q.Get("skip"))
	}
	if q.Get("show") != "100" {
		t.Fatalf("expected show=100, got %s", q.Get("show"))
	}
}

func TestCategoryName(t *testing.T) {
	t.Parallel()

	if got := categoryName("https://export.arxiv.org/list/cs.AI/pastweek"); got != "cs.AI" {
		t.Fatalf("unexpected category: %s", got)
	}
}

func TestParseEntry(t *testing.T) {
	t.Parallel()

	html := `
	<dl>
	  <dt>
	    <span class="list-identifier"><a href="/abs/1234.56789">arXiv:1234.56789</a></span>
	  </dt>
	  <dd>
	    <div class="list-date">Date: 8 Nov 2025</div>
	    <div class="list-title mathjax">Title: Sample Title</div>
	    <p class="mathjax">Abstract: Sample abstract text.</p>
	  </dd>
	</dl>`

	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		t.Fatalf("new document: %v", err)
	}

	item, publishedAt := parseEntry(doc.Find("dt").First(), doc.Find("dd").First(), "cs.AI")

	if item.Metadata["arxiv_id"] != "arXiv:1234.56789" {
		t.Fatalf("unexpected id: %v", item.Metadata["arxiv_id"])
	}
	if item.Title != "Sample Title" {
		t.Fatalf("unexpected title: %s", item.Title)
	}
	if item.RawSummary != "Sample abstract text." {
		t.Fatalf("unexpected abstract: %s", item.RawSummary)
	}
	if item.Source != "arxiv/cs.AI" {
		t.Fatalf("unexpected source: %s", item.Source)
	}
	if item.Link != "https://arxiv.org/abs/1234.56789" {
		t.Fatalf("unexpected link: %s", item.Link)
	}
	if item.ProviderName != "arxiv" {
		t.Fatalf("unexpected provider: %s", item.ProviderName)
	}

	wantDate := time.Date(2025, time.November, 8, 0, 0, 0, 0, time.UTC)
	if publishedAt.Format("2006-01-02") != wantDate.Format("2006-01-02") {
		t.Fatalf("unexpected published date: %v", publishedAt)
	}
}

func TestArxivProviderFetchItems(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if strings.Contains(r.URL.Path, "broken") {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		_, _ = w.Write([]byte(`
		<dl>
		  <dt>
		    <span class="list-identifier"><a href="/abs/2501.00001">arXiv:2501.00001</a></span>
		  </dt>
		  <dd>
		    <div class="list-date">Date: 8 Nov 2025</div>
		    <div class="list-title mathjax">Title: Fresh Article</div>
		    <p class="mathjax">Abstract: brand new.</p>
		  </dd>
		  <dt>
		    <span class="list-identifier"><a href="/abs/2501.00002">arXiv:2501.00002</a></span>
		  </dt>
		  <dd>
		    <div class="list-date">Date: 7 Nov 2025</div>
		    <div class="list-title mathjax">Title: Old Article</div>
		    <p class="mathjax">Abstract: older.</p>
		  </dd>
		</dl>`))
	}))
	defer server.Close()

	p := NewArxivProvider(httpclient.New(httpclient.Options{}), []string{
		server.URL + "/list/broken",
		server.URL + "/list/cs.AI",
	}, 1, nil)
	p.pageSize = 10

	items, err := p.FetchItems(context.Background())
	if err == nil {
		t.Fatalf("expected aggregated error for the broken category")
	}

	if len(items) != 1 {
		t.Fatalf("expected 1 item, got %d", len(items))
	}
	if items[0].Title != "Fresh Article" {
		t.Fatalf("unexpected title: %s", items[0].Title)
	}
	if items[0].RawSummary != "brand new." {
		t.Fatalf("unexpected abstract: %s", items[0].RawSummary)
	}
}
