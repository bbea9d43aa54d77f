package enrich

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
)

const DefaultBaseUrl = "https://www.googleapis.com/books/v1/volumes"

// Metadata is the zero-or-one best match returned by the public book lookup.
type Metadata struct {
	Title       string
	Author      string
	Genre       string
	Isbn        string
	Description string
	Cover       string
}

// GoogleBooks queries the public volumes search to canonicalize book data
// before it enters a pool. The lookup is best-effort everywhere it is used:
// a miss returns (nil, nil) and the caller keeps the data it already has.
type GoogleBooks struct {
	Client  *http.Client
	BaseUrl string
	Logger  *slog.Logger
}

type volumesResponse struct {
	Items []struct {
		VolumeInfo struct {
			Title       string   `json:"title"`
			Authors     []string `json:"authors"`
			Categories  []string `json:"categories"`
			Description string   `json:"description"`
			ImageLinks  struct {
				Thumbnail string `json:"thumbnail"`
			} `json:"imageLinks"`
			IndustryIdentifiers []struct {
				Type       string `json:"type"`
				Identifier string `json:"identifier"`
			} `json:"industryIdentifiers"`
		} `json:"volumeInfo"`
	} `json:"items"`
}

// Lookup searches by title and optionally author and returns the first match.
func (g *GoogleBooks) Lookup(ctx context.Context, title, author string) (*Metadata, error) {
	query := title
	if strings.TrimSpace(author) != "" {
		query += " inauthor:" + author
	}

	base := g.BaseUrl
	if base == "" {
		base = DefaultBaseUrl
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet,
		base+"?maxResults=1&q="+url.QueryEscape(query), nil)
	if err != nil {
		return nil, err
	}

	res, err := g.Client.Do(req)
	if err != nil {
		g.Logger.Warn("Book metadata lookup failed for " + title + ": " + err.Error())
		return nil, fmt.Errorf("querying book metadata: %w", err)
	}

	var bs []byte
	func() {
		defer res.Body.Close()
		bs, err = io.ReadAll(res.Body)
	}()

	if err != nil {
		return nil, fmt.Errorf("querying book metadata (reading response): %w", err)
	}

	if res.StatusCode != http.StatusOK {
		g.Logger.Warn("Book metadata lookup for " + title + " returned status " + res.Status)
		return nil, fmt.Errorf("querying book metadata: unexpected status %v", res.StatusCode)
	}

	var decoded volumesResponse
	err = json.Unmarshal(bs, &decoded)
	if err != nil {
		return nil, fmt.Errorf("decoding book metadata: %w", err)
	}

	if len(decoded.Items) == 0 {
		return nil, nil
	}

	info := decoded.Items[0].VolumeInfo

	meta := &Metadata{
		Title:       info.Title,
		Description: info.Description,
		Cover:       info.ImageLinks.Thumbnail,
	}

	if len(info.Authors) > 0 {
		meta.Author = info.Authors[0]
	}

	if len(info.Categories) > 0 {
		meta.Genre = info.Categories[0]
	}

	for _, id := range info.IndustryIdentifiers {
		if id.Type == "ISBN_13" || (id.Type == "ISBN_10" && meta.Isbn == "") {
			meta.Isbn = id.Identifier
		}
	}

	return meta, nil
}
