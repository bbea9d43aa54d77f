package feed

import (
	"encoding/csv"
	"fmt"
	"io"
	"strconv"
	"strings"

	"biblioswap/internal/types"
)

// Sequence hands out the synthesized catalog ids. Ids carry the pool name as
// a prefix so they can never collide with shelf-book uuids.
type Sequence struct {
	next int
}

func NewSequence() *Sequence {
	return &Sequence{next: 1}
}

func (s *Sequence) Next() string {
	id := "catalog-" + strconv.Itoa(s.next)
	s.next++

	return id
}

// ParseCatalog reads the community catalog table: a header row naming at
// least title, authors and genre columns, then one book per row. A
// semicolon-joined multi-author field is kept verbatim, not split. Rows with
// an empty title are skipped; an empty genre becomes "General" here, at Book
// construction time.
func ParseCatalog(r io.Reader, seq *Sequence) ([]*types.Book, error) {
	cr := csv.NewReader(r)
	cr.TrimLeadingSpace = true
	cr.FieldsPerRecord = -1

	header, err := cr.Read()
	if err != nil {
		return nil, fmt.Errorf("reading catalog header: %w", err)
	}

	cols := make(map[string]int, len(header))
	for ix, name := range header {
		cols[strings.ToLower(strings.TrimSpace(name))] = ix
	}

	if _, ok := cols["title"]; !ok {
		return nil, fmt.Errorf("catalog header has no title column")
	}

	field := func(row []string, names ...string) string {
		for _, name := range names {
			ix, ok := cols[name]
			if ok && ix < len(row) {
				return strings.TrimSpace(row[ix])
			}
		}

		return ""
	}

	var books []*types.Book
	for {
		row, err := cr.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("reading catalog row: %w", err)
		}

		title := field(row, "title")
		if title == "" {
			continue
		}

		genre := field(row, "genre")
		if genre == "" {
			genre = "General"
		}

		books = append(books, &types.Book{
			Id:     seq.Next(),
			Title:  title,
			Author: field(row, "authors", "author"),
			Genre:  genre,
			Cover:  field(row, "thumbnail", "cover_url"),
		})
	}

	return books, nil
}
