// Package content fetches anime picks from the AniList GraphQL API and turns
// the loosely-typed response into a validated Item before it reaches the
// broadcast engine.
package content

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"math/rand"
	"net/http"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

const DefaultEndpoint = "https://graphql.anilist.co"

// maxPage bounds the random page pick over AniList's popularity ranking.
const maxPage = 50

const pickQuery = `query ($page: Int) {
  Page (page: $page, perPage: 1) {
    media (type: ANIME, sort: POPULARITY_DESC) {
      title { romaji english }
      coverImage { extraLarge }
      bannerImage
      description
      averageScore
      siteUrl
    }
  }
}`

// Item is one content pick. Rating is AniList's 0-100 average score, 0 when
// unknown.
type Item struct {
	Title        string
	AltTitle     string
	ImageURL     string
	Description  string
	Rating       int
	CanonicalURL string
}

type Client struct {
	endpoint string
	http     *http.Client
	log      zerolog.Logger

	page func() int // test hook
}

func NewClient(endpoint string, log zerolog.Logger) *Client {
	if strings.TrimSpace(endpoint) == "" {
		endpoint = DefaultEndpoint
	}
	return &Client{
		endpoint: endpoint,
		http:     &http.Client{Timeout: 15 * time.Second},
		log:      log.With().Str("comp", "anilist").Logger(),
		page:     func() int { return 1 + rand.Intn(maxPage) },
	}
}

type gqlRequest struct {
	Query     string         `json:"query"`
	Variables map[string]any `json:"variables"`
}

type gqlResponse struct {
	Data struct {
		Page struct {
			Media []gqlMedia `json:"media"`
		} `json:"Page"`
	} `json:"data"`
}

type gqlMedia struct {
	Title struct {
		Romaji  string `json:"romaji"`
		English string `json:"english"`
	} `json:"title"`
	CoverImage struct {
		ExtraLarge string `json:"extraLarge"`
	} `json:"coverImage"`
	BannerImage  string `json:"bannerImage"`
	Description  string `json:"description"`
	AverageScore int    `json:"averageScore"`
	SiteURL      string `json:"siteUrl"`
}

// FetchOne returns one random popular anime, or (nil, nil) when nothing
// usable came back. The nil item is the defined "no content this cycle"
// state, not an error.
func (c *Client) FetchOne(ctx context.Context) (*Item, error) {
	page := c.page()
	body, err := json.Marshal(gqlRequest{Query: pickQuery, Variables: map[string]any{"page": page}})
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("anilist: unexpected status %d", resp.StatusCode)
	}

	var gr gqlResponse
	if err := json.NewDecoder(resp.Body).Decode(&gr); err != nil {
		return nil, fmt.Errorf("anilist: decode: %w", err)
	}
	if len(gr.Data.Page.Media) == 0 {
		c.log.Debug().Int("page", page).Msg("empty media page")
		return nil, nil
	}

	item := toItem(gr.Data.Page.Media[0])
	if item == nil {
		c.log.Debug().Int("page", page).Msg("media entry missing title or image")
	}
	return item, nil
}

// toItem validates and normalizes one media entry. Entries without a title or
// a usable image are dropped here so the core never sees partial data.
func toItem(m gqlMedia) *Item {
	title := strings.TrimSpace(m.Title.English)
	alt := strings.TrimSpace(m.Title.Romaji)
	if title == "" {
		title, alt = alt, ""
	}
	if title == alt {
		alt = ""
	}

	image := strings.TrimSpace(m.BannerImage)
	if image == "" {
		image = strings.TrimSpace(m.CoverImage.ExtraLarge)
	}
	if title == "" || image == "" {
		return nil
	}

	return &Item{
		Title:        title,
		AltTitle:     alt,
		ImageURL:     image,
		Description:  cleanDescription(m.Description),
		Rating:       m.AverageScore,
		CanonicalURL: strings.TrimSpace(m.SiteURL),
	}
}

const maxDescriptionRunes = 400

// cleanDescription strips the HTML AniList embeds in synopses and truncates
// to a caption-friendly length.
func cleanDescription(s string) string {
	if strings.TrimSpace(s) == "" {
		return "No description available."
	}
	r := strings.NewReplacer("<br>", "\n", "<br/>", "\n", "<br />", "\n", "<i>", "", "</i>", "", "<b>", "", "</b>", "")
	s = strings.TrimSpace(r.Replace(s))

	runes := []rune(s)
	if len(runes) > maxDescriptionRunes {
		s = string(runes[:maxDescriptionRunes]) + "..."
	}
	return s
}
