package models

// NewsItem is one headline from a news feed.
type NewsItem struct {
	Title  string `json:"title"`
	Link   string `json:"link"`
	Date   string `json:"date"`
	Source string `json:"source"`
}

// FallbackLink points at a manual search page when no feed items were
// found.
type FallbackLink struct {
	Label string `json:"label"`
	URL   string `json:"url"`
}

// NewsResult is the response for a news lookup. FallbackLinks is only
// populated when News is empty.
type NewsResult struct {
	News          []NewsItem     `json:"news"`
	FallbackLinks []FallbackLink `json:"fallbackLinks,omitempty"`
}
