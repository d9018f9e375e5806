// Package mediator reads the remote language list and media category
// listings used for "latest videos" and sign-language detection.
package mediator

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"meetingmedia/internal/language"
	"meetingmedia/internal/mediaindex"
	"meetingmedia/internal/services"
)

// LatestVideos is the category key of recently published videos.
const LatestVideos = "LatestVideos"

// Language is one entry of the language list.
type Language struct {
	Code           string `json:"code"`
	Locale         string `json:"locale"`
	Name           string `json:"name"`
	Vernacular     string `json:"vernacular"`
	IsSignLanguage bool   `json:"isSignLanguage"`
	IsRTL          bool   `json:"isRTL"`
}

// MediaFile is one downloadable rendition of a category item.
type MediaFile struct {
	ProgressiveDownloadURL string  `json:"progressiveDownloadURL"`
	Checksum               string  `json:"checksum"`
	Filesize               int64   `json:"filesize"`
	Label                  string  `json:"label"`
	Subtitled              bool    `json:"subtitled"`
	Duration               float64 `json:"duration"`
	Subtitles              *struct {
		URL string `json:"url"`
	} `json:"subtitles"`
}

// MediaItem is one entry of a category listing.
type MediaItem struct {
	GUID           string      `json:"guid"`
	NaturalKey     string      `json:"naturalKey"`
	Title          string      `json:"title"`
	Duration       float64     `json:"duration"`
	FirstPublished string      `json:"firstPublished"`
	Files          []MediaFile `json:"files"`
}

// Category is a media category listing.
type Category struct {
	Key   string      `json:"key"`
	Name  string      `json:"name"`
	Media []MediaItem `json:"media"`
}

// Client calls the mediator API.
type Client struct {
	baseURL    string
	userAgent  string
	httpClient *http.Client
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient overrides the default HTTP client.
func WithHTTPClient(client *http.Client) Option {
	return func(c *Client) {
		if client != nil {
			c.httpClient = client
		}
	}
}

// WithUserAgent sets the User-Agent header.
func WithUserAgent(agent string) Option {
	return func(c *Client) { c.userAgent = strings.TrimSpace(agent) }
}

// New creates a mediator client rooted at baseURL (".../mediator/v1").
func New(baseURL string, opts ...Option) (*Client, error) {
	baseURL = strings.TrimSpace(baseURL)
	if baseURL == "" {
		return nil, errors.New("mediator url required")
	}
	client := &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{Timeout: 30 * time.Second},
	}
	for _, opt := range opts {
		opt(client)
	}
	return client, nil
}

// Languages lists the languages known to the mediator, named in lang.
func (c *Client) Languages(ctx context.Context, lang string) ([]Language, error) {
	var payload struct {
		Languages []Language `json:"languages"`
	}
	endpoint := fmt.Sprintf("%s/languages/%s/web", c.baseURL, url.PathEscape(lang))
	if err := c.get(ctx, endpoint, &payload); err != nil {
		return nil, err
	}
	return payload.Languages, nil
}

// Category returns the listing for key in lang.
func (c *Client) Category(ctx context.Context, lang, key string) (*Category, error) {
	var payload struct {
		Category Category `json:"category"`
	}
	endpoint := fmt.Sprintf("%s/categories/%s/%s?detailed=1&clientType=www",
		c.baseURL, url.PathEscape(lang), url.PathEscape(key))
	if err := c.get(ctx, endpoint, &payload); err != nil {
		return nil, err
	}
	return &payload.Category, nil
}

// IsSignLanguage reports whether lang is a sign language, asking the
// mediator first and falling back to the built-in table when it is
// unreachable.
func (c *Client) IsSignLanguage(ctx context.Context, lang string) (bool, error) {
	langs, err := c.Languages(ctx, "E")
	if err == nil {
		for _, l := range langs {
			if strings.EqualFold(l.Code, lang) {
				return l.IsSignLanguage, nil
			}
		}
	}
	if sign, known := language.IsSignLanguage(lang); known {
		return sign, nil
	}
	return false, err
}

func (c *Client) get(ctx context.Context, endpoint string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	if c.userAgent != "" {
		req.Header.Set("User-Agent", c.userAgent)
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return services.Wrap(services.ErrNetwork, endpoint, "mediator request", err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusNotFound:
		return services.Wrap(services.ErrUnavailable, endpoint, "mediator request", fmt.Errorf("status %d", resp.StatusCode))
	case resp.StatusCode != http.StatusOK:
		return services.Wrap(services.ErrNetwork, endpoint, "mediator request", fmt.Errorf("status %d", resp.StatusCode))
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return services.Wrap(services.ErrNetwork, endpoint, "decode", err)
	}
	return nil
}

// BestFile picks the highest rendition at or under maxRes (zero for no
// ceiling) and converts it to an index file.
func (m MediaItem) BestFile(maxRes int, lang string) (mediaindex.File, bool) {
	var (
		best  *MediaFile
		bestR int
	)
	for i := range m.Files {
		f := &m.Files[i]
		res := leadingInt(f.Label)
		if maxRes > 0 && res > maxRes {
			continue
		}
		if best == nil || res > bestR || (res == bestR && f.Subtitled && !best.Subtitled) {
			best, bestR = f, res
		}
	}
	if best == nil {
		return mediaindex.File{}, false
	}
	file := mediaindex.File{
		Title:    m.Title,
		URL:      best.ProgressiveDownloadURL,
		Checksum: best.Checksum,
		Size:     best.Filesize,
		Kind:     mediaindex.KindFromName(best.ProgressiveDownloadURL),
		Duration: best.Duration,
		Label:    best.Label,
		Lang:     lang,
		Ordinal:  mediaindex.DateLevel,
	}
	if best.Subtitles != nil {
		file.SubtitleURL = best.Subtitles.URL
	}
	return file, true
}

func leadingInt(label string) int {
	n := 0
	for _, r := range strings.TrimSpace(label) {
		if r < '0' || r > '9' {
			break
		}
		n = n*10 + int(r-'0')
	}
	return n
}
