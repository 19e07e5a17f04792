package autopost

import (
	"fmt"
	"strconv"

	"animecast/internal/content"
	"animecast/pkg/htmlui"
)

const divider = "━━━━━━━━━━━━━━━━━━"

// BuildCaption renders the photo caption for one content item. watchLink, when
// non-empty, is the admin-curated channel post for this title and wins over
// the item's canonical page.
func BuildCaption(item *content.Item, watchLink, channelName, channelLink string) string {
	title := htmlui.Join("", htmlui.Raw("🎬 "), htmlui.B(item.Title))
	if item.AltTitle != "" {
		title += htmlui.Esc(" (" + item.AltTitle + ")")
	}

	rating := "N/A"
	if item.Rating > 0 {
		rating = strconv.Itoa(item.Rating) + "%"
	}

	var watch htmlui.H
	if watchLink != "" {
		watch = htmlui.Join("", htmlui.Raw("📺 <b>WATCH HERE: "), htmlui.Link(channelName, watchLink), htmlui.Raw("</b>"))
	} else {
		watch = htmlui.Join("", htmlui.Raw("📺 <b>Where to watch:</b> Check "), htmlui.Link("AniList", item.CanonicalURL))
	}

	return fmt.Sprintf("%s\n%s\n⭐ <b>Rating:</b> %s\n📝 <b>Description:</b> %s\n\n%s\n\n%s\n📣 Ads sponsored by %s\n⚠️ %s",
		title,
		divider,
		htmlui.Esc(rating),
		htmlui.Esc(item.Description),
		watch,
		divider,
		htmlui.Join("", htmlui.Raw("<b>"), htmlui.Link(channelName, channelLink), htmlui.Raw("</b>")),
		htmlui.I("We do not host anything; we only recommend shows to subscribers."),
	)
}
