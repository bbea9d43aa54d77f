package feed

import (
	"encoding/xml"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"regexp"
	"strings"

	"github.com/opds-community/libopds2-go/opds1"

	"biblioswap/internal/types"
)

const (
	linkTypeCatalog = "application/atom+xml;profile=opds-catalog"
	linkRelImage    = "http://opds-spec.org/image"
	linkRelNext     = "next"
)

var regLinkTypeImage = regexp.MustCompile("^image/[^/]+$")

// OPDSImporter walks an OPDS 1.x acquisition feed and feeds every book entry
// to a Consumer, following rel=next pagination.
type OPDSImporter struct {
	Client *http.Client
	Logger *slog.Logger
}

func (o *OPDSImporter) Import(feedUrl *url.URL, seq *Sequence, consumer Consumer) error {
	for feedUrl != nil {
		next, err := o.importPage(feedUrl, seq, consumer)
		if err != nil {
			return err
		}

		feedUrl = next
	}

	return nil
}

func (o *OPDSImporter) importPage(feedUrl *url.URL, seq *Sequence, consumer Consumer) (*url.URL, error) {
	o.Logger.Debug("Begin processing catalog feed page " + feedUrl.Path)

	res, err := o.Client.Do(&http.Request{
		Method: http.MethodGet,
		URL:    feedUrl,
	})
	if err != nil {
		o.Logger.Error("Failed to fetch catalog feed " + feedUrl.Path + ": " + err.Error())
		return nil, fmt.Errorf("fetching catalog feed: %w", err)
	}

	var bs []byte
	func() {
		defer res.Body.Close()
		bs, err = io.ReadAll(res.Body)
	}()

	if err != nil {
		o.Logger.Error("Failed to read body of catalog feed " + feedUrl.Path + ": " + err.Error())
		return nil, fmt.Errorf("fetching catalog feed (reading response): %w", err)
	}

	var feed opds1.Feed
	err = xml.Unmarshal(bs, &feed)
	if err != nil {
		o.Logger.Error("Failed to unmarshal catalog feed " + feedUrl.Path + ": " + err.Error())
		return nil, fmt.Errorf("unmarshalling catalog feed: %w", err)
	}

	l := o.Logger.With(slog.String("feed", feedUrl.Path))

	books := make([]*types.Book, 0, len(feed.Entries))
	for _, entry := range feed.Entries {
		title := strings.TrimSpace(entry.Title)
		if title == "" {
			l.Warn("Skipping catalog entry without title: " + entry.ID)
			continue
		}

		var authors []string
		for _, auth := range entry.Author {
			name := strings.TrimSpace(auth.Name)
			if name != "" {
				authors = append(authors, name)
			}
		}

		genre := ""
		for _, cat := range entry.Category {
			genre = strings.TrimSpace(cat.Term)
			if genre != "" {
				break
			}
		}
		if genre == "" {
			genre = "General"
		}

		cover := ""
		if link := chooseLink(&entry, func(link *opds1.Link) string {
			if link.Rel != linkRelImage {
				return "unknown rel: " + link.Rel
			}

			if !regLinkTypeImage.MatchString(link.TypeLink) {
				return "unknown type: " + link.TypeLink
			}

			return ""
		}, l); link != nil {
			coverUrl, err := url.Parse(link.Href)
			if err != nil {
				l.Error("Failed to parse cover link in entry " + entry.ID + ": " + err.Error())
			} else {
				cover = feedUrl.ResolveReference(coverUrl).String()
			}
		}

		books = append(books, &types.Book{
			Id:       seq.Next(),
			Title:    title,
			Author:   strings.Join(authors, "; "),
			Genre:    genre,
			Summary:  entry.Content.Content,
			Language: strings.TrimSpace(entry.Language),
			Cover:    cover,
		})
	}

	if len(books) > 0 {
		err = consumer.ConsumeBooks(books)
		if err != nil {
			return nil, fmt.Errorf("consuming catalog page: %w", err)
		}
	}

	nextLink := chooseLink(&opds1.Entry{Links: feed.Links}, func(link *opds1.Link) string {
		if link.Rel != linkRelNext {
			return "unknown rel: " + link.Rel
		}

		if link.TypeLink != linkTypeCatalog {
			return "unknown type: " + link.TypeLink
		}

		return ""
	}, l)

	if nextLink == nil {
		return nil, nil
	}

	nextUrl, err := url.Parse(nextLink.Href)
	if err != nil {
		l.Error("Failed to parse next-page link: " + err.Error())
		return nil, nil
	}

	return feedUrl.ResolveReference(nextUrl), nil
}

// chooseLink returns the single entry link the matcher accepts, logging and
// skipping the rest. More than one acceptable link is treated as none.
func chooseLink(e *opds1.Entry, matcher func(link *opds1.Link) string, l *slog.Logger) *opds1.Link {
	var ret *opds1.Link

	for ix := range e.Links {
		link := &e.Links[ix]

		if reason := matcher(link); reason != "" {
			l.Debug("Skipping link " + link.Href + ": " + reason)
			continue
		}

		if ret != nil {
			l.Warn("Multiple matching links in entry, ignoring all")
			return nil
		}

		ret = link
	}

	return ret
}
