package content

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/rs/zerolog"
)

func testClient(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	c := NewClient(srv.URL, zerolog.New(io.Discard))
	c.page = func() int { return 7 }
	return c
}

func TestFetchOneMapsResponse(t *testing.T) {
	t.Parallel()
	var gotPage float64
	c := testClient(t, func(w http.ResponseWriter, r *http.Request) {
		var req map[string]any
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Errorf("decode request: %v", err)
		}
		vars, _ := req["variables"].(map[string]any)
		gotPage, _ = vars["page"].(float64)

		_, _ = w.Write([]byte(`{"data":{"Page":{"media":[{
			"title":{"romaji":"Shingeki no Kyojin","english":"Attack on Titan"},
			"coverImage":{"extraLarge":"https://img/cover.jpg"},
			"bannerImage":"https://img/banner.jpg",
			"description":"Humanity<br>fights <i>titans</i>.",
			"averageScore":85,
			"siteUrl":"https://anilist.co/anime/16498"
		}]}}}`))
	})

	item, err := c.FetchOne(context.Background())
	if err != nil {
		t.Fatalf("FetchOne: %v", err)
	}
	if item == nil {
		t.Fatal("FetchOne returned nil item")
	}
	if gotPage != 7 {
		t.Fatalf("requested page = %v, want 7", gotPage)
	}
	if item.Title != "Attack on Titan" {
		t.Fatalf("Title = %q", item.Title)
	}
	if item.AltTitle != "Shingeki no Kyojin" {
		t.Fatalf("AltTitle = %q", item.AltTitle)
	}
	if item.ImageURL != "https://img/banner.jpg" {
		t.Fatalf("ImageURL = %q, want banner preferred", item.ImageURL)
	}
	if item.Description != "Humanity\nfights titans." {
		t.Fatalf("Description = %q", item.Description)
	}
	if item.Rating != 85 || item.CanonicalURL != "https://anilist.co/anime/16498" {
		t.Fatalf("item = %+v", item)
	}
}

func TestFetchOneFallbacks(t *testing.T) {
	t.Parallel()
	c := testClient(t, func(w http.ResponseWriter, _ *http.Request) {
		// No english title, no banner.
		_, _ = w.Write([]byte(`{"data":{"Page":{"media":[{
			"title":{"romaji":"Mononoke Hime","english":""},
			"coverImage":{"extraLarge":"https://img/cover.jpg"},
			"bannerImage":"",
			"description":"",
			"averageScore":0,
			"siteUrl":"https://anilist.co/anime/164"
		}]}}}`))
	})

	item, err := c.FetchOne(context.Background())
	if err != nil {
		t.Fatalf("FetchOne: %v", err)
	}
	if item == nil {
		t.Fatal("FetchOne returned nil item")
	}
	if item.Title != "Mononoke Hime" || item.AltTitle != "" {
		t.Fatalf("titles = (%q, %q)", item.Title, item.AltTitle)
	}
	if item.ImageURL != "https://img/cover.jpg" {
		t.Fatalf("ImageURL = %q, want cover fallback", item.ImageURL)
	}
	if item.Description != "No description available." {
		t.Fatalf("Description = %q", item.Description)
	}
}

func TestFetchOneEmptyPage(t *testing.T) {
	t.Parallel()
	c := testClient(t, func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`{"data":{"Page":{"media":[]}}}`))
	})

	item, err := c.FetchOne(context.Background())
	if err != nil {
		t.Fatalf("FetchOne: %v", err)
	}
	if item != nil {
		t.Fatalf("item = %+v, want nil for empty page", item)
	}
}

func TestFetchOneDropsUnusableEntry(t *testing.T) {
	t.Parallel()
	c := testClient(t, func(w http.ResponseWriter, _ *http.Request) {
		// No image at all: validated out at the boundary.
		_, _ = w.Write([]byte(`{"data":{"Page":{"media":[{
			"title":{"romaji":"Ghost Entry","english":""},
			"coverImage":{"extraLarge":""},
			"bannerImage":""
		}]}}}`))
	})

	item, err := c.FetchOne(context.Background())
	if err != nil {
		t.Fatalf("FetchOne: %v", err)
	}
	if item != nil {
		t.Fatalf("item = %+v, want nil for unusable entry", item)
	}
}

func TestFetchOneServerError(t *testing.T) {
	t.Parallel()
	c := testClient(t, func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, "boom", http.StatusInternalServerError)
	})

	if _, err := c.FetchOne(context.Background()); err == nil {
		t.Fatal("expected error for 500 response")
	}
}

func TestCleanDescription(t *testing.T) {
	t.Parallel()
	long := strings.Repeat("a", 450)
	tests := []struct {
		name string
		in   string
		want string
	}{
		{name: "empty", in: "", want: "No description available."},
		{name: "tags", in: "a<br>b<i>c</i><b>d</b>", want: "a\nbcd"},
		{name: "truncated", in: long, want: strings.Repeat("a", 400) + "..."},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			if got := cleanDescription(tt.in); got != tt.want {
				t.Fatalf("cleanDescription = %q, want %q", got, tt.want)
			}
		})
	}
}
