// Package normalize holds the pure per-entry transforms applied during fetch:
// HTML cleaning, image candidate resolution, and trending score computation.
package normalize

import (
	"math"
	"regexp"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
)

// maxCleanLength caps cleaned description/content text.
const maxCleanLength = 500

var (
	tagPattern        = regexp.MustCompile(`<[^>]*>`)
	whitespacePattern = regexp.MustCompile(`\s+`)
	entityReplacer    = strings.NewReplacer(
		"&nbsp;", " ",
		"&amp;", "&",
		"&lt;", "<",
		"&gt;", ">",
		"&quot;", `"`,
		"&#39;", "'",
	)
)

// CleanHTML strips markup from a feed fragment and returns plain text capped
// at 500 characters. An empty input yields an empty string.
func CleanHTML(html string) string {
	if html == "" {
		return ""
	}

	text := tagPattern.ReplaceAllString(html, " ")
	text = entityReplacer.Replace(text)
	text = whitespacePattern.ReplaceAllString(text, " ")
	text = strings.TrimSpace(text)

	if runes := []rune(text); len(runes) > maxCleanLength {
		text = string(runes[:maxCleanLength])
	}
	return text
}

// FirstText returns the first non-empty candidate, used to pick between a
// summary field and full content when building description/content text.
func FirstText(candidates ...string) string {
	for _, c := range candidates {
		if c != "" {
			return c
		}
	}
	return ""
}

// FirstImage resolves an article image from its candidate fields in fixed
// priority order: media:content, then media:thumbnail, then enclosure, then
// the first <img> inside the encoded HTML content. Absence of all four is
// not an error; the result is simply empty.
func FirstImage(mediaContent, mediaThumbnail, enclosure, encodedHTML string) string {
	if mediaContent != "" {
		return mediaContent
	}
	if mediaThumbnail != "" {
		return mediaThumbnail
	}
	if enclosure != "" {
		return enclosure
	}
	return inlineImageSrc(encodedHTML)
}

func inlineImageSrc(html string) string {
	if html == "" {
		return ""
	}

	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return ""
	}

	src, _ := doc.Find("img").First().Attr("src")
	return src
}

// TrendingScore ranks an article by recency at ingestion time. Fresh content
// scores near 100 and anything 24 hours or older floors at 10, so the score
// always lands in [10, 100].
func TrendingScore(publishedAt, now time.Time) int {
	hours := now.Sub(publishedAt).Hours()
	if hours < 0 {
		hours = 0
	}

	score := 100 - hours*3.75
	if score < 10 {
		score = 10
	}
	return int(math.Round(score))
}
