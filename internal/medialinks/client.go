package medialinks

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"meetingmedia/internal/mediaindex"
	"meetingmedia/internal/services"
)

// Query addresses one publication item on the pub-media API. Either Pub or
// DocID identifies the publication.
type Query struct {
	Pub        string
	DocID      int
	Issue      string
	Track      int
	FileFormat string
	Lang       string
}

func (q Query) String() string {
	id := q.Pub
	if id == "" {
		id = "docid:" + strconv.Itoa(q.DocID)
	}
	return fmt.Sprintf("%s_%s_%s_%d", id, q.Lang, q.Issue, q.Track)
}

// RemoteFile is the file block of a media entry.
type RemoteFile struct {
	URL              string `json:"url"`
	Checksum         string `json:"checksum"`
	ModifiedDatetime string `json:"modifiedDatetime"`
}

// Entry is one downloadable variant in a pub-media response.
type Entry struct {
	Title      string     `json:"title"`
	File       RemoteFile `json:"file"`
	Filesize   int64      `json:"filesize"`
	Duration   float64    `json:"duration"`
	Mimetype   string     `json:"mimetype"`
	Label      string     `json:"label"`
	Track      int        `json:"track"`
	Pub        string     `json:"pub"`
	DocID      int        `json:"docid"`
	Subtitled  bool       `json:"subtitled"`
	TrackImage struct {
		URL string `json:"url"`
	} `json:"trackImage"`
	Subtitles *RemoteFile `json:"subtitles"`
	Markers   *struct {
		Markers []mediaindex.Marker `json:"markers"`
	} `json:"markers"`
}

// Response is the pub-media descriptor: files keyed by language, then by
// file format (MP4, MP3, JWPUB, ...).
type Response struct {
	PubName string                        `json:"pubName"`
	Pub     string                        `json:"pub"`
	Issue   string                        `json:"issue"`
	Files   map[string]map[string][]Entry `json:"files"`
}

// Entries returns the entries for lang, restricted to formats when given.
func (r *Response) Entries(lang string, formats ...string) []Entry {
	if r == nil {
		return nil
	}
	byFormat := r.Files[lang]
	if byFormat == nil {
		for key, value := range r.Files {
			if strings.EqualFold(key, lang) {
				byFormat = value
				break
			}
		}
	}
	if len(formats) == 0 {
		var out []Entry
		for _, entries := range byFormat {
			out = append(out, entries...)
		}
		return out
	}
	for _, format := range formats {
		if entries := byFormat[strings.ToUpper(format)]; len(entries) > 0 {
			return entries
		}
	}
	return nil
}

// Lookup is the pub-media operation the resolver depends on.
type Lookup interface {
	Lookup(ctx context.Context, q Query) (*Response, error)
}

// Client calls the pub-media API.
type Client struct {
	baseURL    string
	userAgent  string
	httpClient *http.Client
}

var _ Lookup = (*Client)(nil)

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
	return func(c *Client) {
		c.userAgent = strings.TrimSpace(agent)
	}
}

// WithTimeout sets the per-request timeout.
func WithTimeout(timeout time.Duration) Option {
	return func(c *Client) {
		if timeout > 0 {
			c.httpClient = &http.Client{Timeout: timeout}
		}
	}
}

// New creates a pub-media client for the GETPUBMEDIALINKS endpoint at baseURL.
func New(baseURL string, opts ...Option) (*Client, error) {
	baseURL = strings.TrimSpace(baseURL)
	if baseURL == "" {
		return nil, errors.New("pub-media url required")
	}
	client := &Client{
		baseURL:    baseURL,
		httpClient: &http.Client{Timeout: 30 * time.Second},
	}
	for _, opt := range opts {
		opt(client)
	}
	return client, nil
}

// Lookup fetches the descriptor for q. A 404 yields (nil, nil); transport
// failures and server errors are tagged services.ErrNetwork.
func (c *Client) Lookup(ctx context.Context, q Query) (*Response, error) {
	endpoint, err := url.Parse(c.baseURL)
	if err != nil {
		return nil, fmt.Errorf("parse pub-media url: %w", err)
	}
	params := url.Values{}
	params.Set("output", "json")
	params.Set("alllangs", "0")
	if q.Pub != "" {
		params.Set("pub", q.Pub)
	} else if q.DocID != 0 {
		params.Set("docid", strconv.Itoa(q.DocID))
	} else {
		return nil, errors.New("query needs pub or docid")
	}
	if q.Issue != "" && q.Issue != "0" {
		params.Set("issue", q.Issue)
	}
	if q.Track != 0 {
		params.Set("track", strconv.Itoa(q.Track))
	}
	if q.FileFormat != "" {
		params.Set("fileformat", q.FileFormat)
	}
	params.Set("langwritten", q.Lang)
	endpoint.RawQuery = params.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint.String(), nil)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	if c.userAgent != "" {
		req.Header.Set("User-Agent", c.userAgent)
	}

	requestStart := time.Now()
	resp, err := c.httpClient.Do(req)
	latency := time.Since(requestStart)
	if err != nil {
		return nil, services.Wrap(services.ErrNetwork, q.String(), "lookup",
			fmt.Errorf("execute request (latency=%v): %w", latency, err))
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusNotFound:
		return nil, nil
	case resp.StatusCode >= 500:
		return nil, services.Wrap(services.ErrNetwork, q.String(), "lookup",
			fmt.Errorf("pub-media returned %d (latency=%v)", resp.StatusCode, latency))
	case resp.StatusCode != http.StatusOK:
		return nil, fmt.Errorf("pub-media %s returned %d", q, resp.StatusCode)
	}

	var payload Response
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return nil, services.Wrap(services.ErrNetwork, q.String(), "decode", err)
	}
	return &payload, nil
}
