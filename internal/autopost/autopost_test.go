package autopost

import (
	"context"
	"errors"
	"io"
	"strings"
	"testing"

	"github.com/rs/zerolog"

	"animecast/internal/broadcast"
	"animecast/internal/content"
)

type fakeSource struct {
	item *content.Item
	err  error
}

func (s *fakeSource) FetchOne(context.Context) (*content.Item, error) { return s.item, s.err }

type fakeLinks struct {
	byTitle map[string]string
	err     error
}

func (l *fakeLinks) Resolve(_ context.Context, title string) (string, bool, error) {
	if l.err != nil {
		return "", false, l.err
	}
	url, ok := l.byTitle[strings.ToLower(title)]
	return url, ok, nil
}

type fakeRunner struct {
	payloads []broadcast.Payload
}

func (r *fakeRunner) RunAll(_ context.Context, p broadcast.Payload) (broadcast.Result, error) {
	r.payloads = append(r.payloads, p)
	return broadcast.Result{Delivered: 3}, nil
}

func newTestPoster(src *fakeSource, links *fakeLinks, runner *fakeRunner) *Poster {
	return NewPoster(Config{ChannelName: "My Channel", ChannelLink: "https://t.me/mychannel"},
		src, links, runner, zerolog.New(io.Discard))
}

func sampleItem() *content.Item {
	return &content.Item{
		Title:        "Attack on Titan",
		AltTitle:     "Shingeki no Kyojin",
		ImageURL:     "https://img/banner.jpg",
		Description:  "Humanity fights.",
		Rating:       85,
		CanonicalURL: "https://anilist.co/anime/16498",
	}
}

func TestTickBroadcastsPhoto(t *testing.T) {
	t.Parallel()
	runner := &fakeRunner{}
	p := newTestPoster(&fakeSource{item: sampleItem()}, &fakeLinks{}, runner)

	if err := p.Tick(context.Background()); err != nil {
		t.Fatalf("Tick: %v", err)
	}
	if len(runner.payloads) != 1 {
		t.Fatalf("broadcast calls = %d, want 1", len(runner.payloads))
	}
	photo, ok := runner.payloads[0].(broadcast.PhotoPayload)
	if !ok {
		t.Fatalf("payload = %T, want PhotoPayload", runner.payloads[0])
	}
	if photo.URL != "https://img/banner.jpg" {
		t.Fatalf("photo URL = %q", photo.URL)
	}
	if !strings.Contains(photo.Caption, "Attack on Titan") {
		t.Fatalf("caption missing title: %q", photo.Caption)
	}
}

func TestTickNoContentIsNoop(t *testing.T) {
	t.Parallel()
	runner := &fakeRunner{}
	p := newTestPoster(&fakeSource{item: nil}, &fakeLinks{}, runner)

	if err := p.Tick(context.Background()); err != nil {
		t.Fatalf("Tick: %v", err)
	}
	if len(runner.payloads) != 0 {
		t.Fatalf("broadcast calls = %d, want 0", len(runner.payloads))
	}
}

func TestTickFetchErrorSkipsCycle(t *testing.T) {
	t.Parallel()
	runner := &fakeRunner{}
	p := newTestPoster(&fakeSource{err: errors.New("api down")}, &fakeLinks{}, runner)

	if err := p.Tick(context.Background()); err == nil {
		t.Fatal("expected fetch error")
	}
	if len(runner.payloads) != 0 {
		t.Fatalf("broadcast calls = %d, want 0", len(runner.payloads))
	}
}

func TestWatchLinkPrefersDisplayTitleThenAlt(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name  string
		links *fakeLinks
		want  string
	}{
		{
			name:  "display title match",
			links: &fakeLinks{byTitle: map[string]string{"attack on titan": "https://t.me/c/1/1", "shingeki no kyojin": "https://t.me/c/1/2"}},
			want:  "https://t.me/c/1/1",
		},
		{
			name:  "alt title fallback",
			links: &fakeLinks{byTitle: map[string]string{"shingeki no kyojin": "https://t.me/c/1/2"}},
			want:  "https://t.me/c/1/2",
		},
		{
			name:  "no match",
			links: &fakeLinks{},
			want:  "",
		},
		{
			name:  "resolver error loses override only",
			links: &fakeLinks{err: errors.New("db locked")},
			want:  "",
		},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			p := newTestPoster(&fakeSource{}, tt.links, &fakeRunner{})
			if got := p.watchLink(context.Background(), sampleItem()); got != tt.want {
				t.Fatalf("watchLink = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestBuildCaption(t *testing.T) {
	t.Parallel()
	item := sampleItem()

	withLink := BuildCaption(item, "https://t.me/c/9/9", "My Channel", "https://t.me/mychannel")
	if !strings.Contains(withLink, "WATCH HERE") || !strings.Contains(withLink, "https://t.me/c/9/9") {
		t.Fatalf("caption missing custom link: %q", withLink)
	}
	if !strings.Contains(withLink, "85%") {
		t.Fatalf("caption missing rating: %q", withLink)
	}
	if !strings.Contains(withLink, "(Shingeki no Kyojin)") {
		t.Fatalf("caption missing alt title: %q", withLink)
	}

	withoutLink := BuildCaption(item, "", "My Channel", "https://t.me/mychannel")
	if !strings.Contains(withoutLink, "Where to watch") || !strings.Contains(withoutLink, item.CanonicalURL) {
		t.Fatalf("caption missing canonical fallback: %q", withoutLink)
	}

	item.Rating = 0
	if got := BuildCaption(item, "", "My Channel", "https://t.me/mychannel"); !strings.Contains(got, "N/A") {
		t.Fatalf("caption missing N/A rating: %q", got)
	}
}
