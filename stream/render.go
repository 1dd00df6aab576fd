package stream

import (
	"math/rand/v2"
	"strings"

	"github.com/dustin/go-humanize"

	"github.com/onnwee/thetaalert/chat"
	"github.com/onnwee/thetaalert/thetaapi"
)

const (
	// BrandColor is the embed accent color.
	BrandColor = 0x6441A4
	// PlaceholderAvatar is used when the profile has no image.
	PlaceholderAvatar = "https://user-slivertv.imgix.net/default_profile.jpg?w=56"
)

var previewSize = strings.NewReplacer("{width}", "320", "{height}", "180")

type enrichment struct {
	Category        string
	Followers       *int64
	Views           *int64
	ProfileImageURL string
}

func render(webURL string, live *thetaapi.LiveStream, info enrichment) *chat.Embed {
	title := live.Title
	if title == "" {
		title = "Untitled broadcast"
	}
	if live.Type == "rerun" {
		title += " - Rerun"
	}
	thumb := info.ProfileImageURL
	if thumb == "" {
		thumb = PlaceholderAvatar
	}
	e := &chat.Embed{
		Title:     title,
		URL:       strings.TrimRight(webURL, "/") + "/" + live.UserName,
		Color:     BrandColor,
		Author:    live.UserName,
		Thumbnail: thumb,
	}
	if info.Followers != nil {
		e.Fields = append(e.Fields, chat.Field{Name: "Followers", Value: humanize.Comma(*info.Followers), Inline: true})
	}
	if info.Views != nil {
		e.Fields = append(e.Fields, chat.Field{Name: "Total views", Value: humanize.Comma(*info.Views), Inline: true})
	}
	if live.ThumbnailURL != "" {
		e.Image = cacheBust(previewSize.Replace(live.ThumbnailURL))
	}
	if info.Category != "" {
		e.Footer = "Playing: " + info.Category
	}
	return e
}

const letters = "abcdefghijklmnopqrstuvwxyzABCDEFGHIJKLMNOPQRSTUVWXYZ"

// cacheBust appends a random rnd query so chat clients don't reuse a stale preview.
func cacheBust(u string) string {
	b := make([]byte, 6)
	for i := range b {
		b[i] = letters[rand.IntN(len(letters))]
	}
	sep := "?"
	if strings.Contains(u, "?") {
		sep = "&"
	}
	return u + sep + "rnd=" + string(b)
}
