package parser

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestNewsAPIProviderFetchItems(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("X-Api-Key") != "secret" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		if r.URL.Query().Get("q") == "Broken" {
			w.WriteHeader(http.StatusTooManyRequests)
			_, _ = w.Write([]byte(`{"status":"error","code":"rateLimited","message":"slow down"}`))
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]any{
			"status": "ok",
			"articles": []map[string]any{
				{
					"source":      map[string]string{"name": "Wire"},
					"title":       "Acme expands",
					"description": "Acme opens a plant.",
					"url":         "https://wire.example.org/acme",
					"publishedAt": "2025-11-10T08:00:00Z",
				},
			},
		})
	}))
	defer server.Close()

	p, err := NewNewsAPIProvider(nil, NewsAPIConfig{Endpoint: server.URL, APIKey: "secret"}, []string{"Acme", "Broken", "Acme"}, nil)
	if err != nil {
		t.Fatalf("NewNewsAPIProvider: %v", err)
	}

	items, err := p.FetchItems(context.Background())
	if err == nil {
		t.Fatalf("expected error for rate limited query")
	}
	if len(items) != 1 {
		t.Fatalf("expected 1 item, got %d", len(items))
	}
	if items[0].Source != "Wire" || items[0].Link != "https://wire.example.org/acme" {
		t.Fatalf("unexpected item: %+v", items[0])
	}
}

func TestNewNewsAPIProviderRequiresKey(t *testing.T) {
	t.Parallel()

	if _, err := NewNewsAPIProvider(nil, NewsAPIConfig{}, nil, nil); err == nil {
		t.Fatalf("expected missing key error")
	}
}

func TestSocialProviderFetchItems(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") != "Bearer tok" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"data":[
			{"id":"1","author":"@fan","caption":"Loving my #acme boots\nso comfy","url":"","hashtags":["acme"],"views":500,"likes":10},
			{"id":"2","author":"critic","caption":"meh","url":"https://social.example.org/p/2","likes":3}
		]}`))
	}))
	defer server.Close()

	p, err := NewSocialProvider(nil, SocialConfig{Endpoint: server.URL, Token: "tok", Platform: "tiktok"}, []string{"#acme"}, nil)
	if err != nil {
		t.Fatalf("NewSocialProvider: %v", err)
	}

	items, err := p.FetchItems(context.Background())
	if err != nil {
		t.Fatalf("FetchItems: %v", err)
	}
	if len(items) != 2 {
		t.Fatalf("expected 2 items, got %d", len(items))
	}

	first := items[0]
	if first.Title != "Loving my #acme boots" {
		t.Fatalf("unexpected title: %q", first.Title)
	}
	if first.Link != "" {
		t.Fatalf("expected empty link, got %q", first.Link)
	}
	if first.Source != "tiktok/@fan" {
		t.Fatalf("unexpected source: %s", first.Source)
	}
	if first.Metadata["views"] != int64(500) || first.Metadata["likes"] != int64(10) {
		t.Fatalf("unexpected counts: %v", first.Metadata)
	}
	if _, ok := items[1].Metadata["views"]; ok {
		t.Fatalf("absent counts must not be set")
	}
}

func TestHeadlineTruncates(t *testing.T) {
	t.Parallel()

	long := ""
	for i := 0; i < 200; i++ {
		long += "a"
	}
	got := headline(long)
	if len([]rune(got)) != socialTitleRunes+1 {
		t.Fatalf("unexpected headline length: %d", len([]rune(got)))
	}
}
