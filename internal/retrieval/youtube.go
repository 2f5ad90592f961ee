package retrieval

import (
	"context"
	"fmt"
	"html"
	"io"
	"net/http"
	"net/url"
	"regexp"
	"strconv"
	"strings"
	"time"
)

const (
	defaultYouTubeURL   = "https://www.youtube.com/results"
	defaultFetchTimeout = 8 * time.Second
)

// videoRenderer pairs each result's videoId with the first run of its title.
// The lazy gap stops at the nearest title so IDs and titles stay aligned.
var videoRenderer = regexp.MustCompile(
	`"videoRenderer":\{"videoId":"([a-zA-Z0-9_-]{11})".*?"title":\{"runs":\[\{"text":"((?:[^"\\]|\\.)*)"`,
)

// YouTubeSource scrapes the public results page. It needs no API key and
// returns whatever the page embeds in its initial data blob.
type YouTubeSource struct {
	baseURL    string
	httpClient *http.Client
}

// NewYouTubeSource returns a Source for the YouTube results page. baseURL
// overrides the results endpoint (tests); timeout <= 0 means 8s.
func NewYouTubeSource(baseURL string, timeout time.Duration) *YouTubeSource {
	if baseURL == "" {
		baseURL = defaultYouTubeURL
	}
	if timeout <= 0 {
		timeout = defaultFetchTimeout
	}
	return &YouTubeSource{
		baseURL:    baseURL,
		httpClient: &http.Client{Timeout: timeout},
	}
}

// Fetch downloads the results page for query and extracts every video on it
// in page order. The Engine filters and caps the list.
func (s *YouTubeSource) Fetch(ctx context.Context, query string) ([]Candidate, error) {
	u := s.baseURL + "?search_query=" + url.QueryEscape(query)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, fmt.Errorf("youtube: build request: %w", err)
	}
	req.Header.Set("User-Agent", "Mozilla/5.0")
	req.Header.Set("Accept-Language", "en")

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("youtube: http request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("youtube: unexpected status %d", resp.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, 8<<20)) // 8 MB cap
	if err != nil {
		return nil, fmt.Errorf("youtube: read body: %w", err)
	}

	return parseResults(string(body)), nil
}

func parseResults(page string) []Candidate {
	var out []Candidate
	seen := map[string]bool{}
	for _, m := range videoRenderer.FindAllStringSubmatch(page, -1) {
		id := m[1]
		if seen[id] {
			continue
		}
		seen[id] = true

		out = append(out, Candidate{
			ID:           id,
			Title:        unescapeTitle(m[2]),
			URL:          "https://www.youtube.com/watch?v=" + id,
			ThumbnailURL: "https://i.ytimg.com/vi/" + id + "/hqdefault.jpg",
		})
	}
	return out
}

// unescapeTitle decodes the JSON string escapes and then any HTML entities.
func unescapeTitle(raw string) string {
	s, err := strconv.Unquote(`"` + raw + `"`)
	if err != nil {
		s = raw
	}
	return strings.TrimSpace(html.UnescapeString(s))
}
