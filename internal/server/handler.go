package server

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"biblioswap/internal/enrich"
	"biblioswap/internal/recommend"
	"biblioswap/internal/response"
	"biblioswap/internal/scan"
	"biblioswap/internal/storage/catalog"
	"biblioswap/internal/storage/residents"
	"biblioswap/internal/storage/shelves"
	"biblioswap/internal/types"
)

const maxScanBytes = 8 << 20

func Handler(cr catalog.Repository, nr residents.Repository, sr shelves.Repository,
	rec *recommend.Recommender, sc *scan.Scanner, lookup *enrich.GoogleBooks,
	rr *response.Responder) http.Handler {

	r := chi.NewRouter()

	r.Get("/catalog", func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()

		rows, err := cr.Search(r.Context(), q.Get("search"), q.Get("genre"),
			getIntOrDefault("limit", q, 50))
		if err != nil {
			rr.RespondAndLogError(w, r.Context(), err)
			return
		}

		if rows == nil {
			rows = make([]*types.Book, 0)
		}

		rr.SendJson(w, r.Context(), struct {
			Books []*types.Book `json:"books"`
		}{Books: rows})
	})

	r.Get("/catalog/genres", func(w http.ResponseWriter, r *http.Request) {
		rows, err := cr.GetGenres(r.Context())
		if err != nil {
			rr.RespondAndLogError(w, r.Context(), err)
			return
		}

		if rows == nil {
			rows = make([]string, 0)
		}

		rr.SendJson(w, r.Context(), struct {
			Titles []string `json:"titles"`
		}{Titles: rows})
	})

	r.Get("/residents", func(w http.ResponseWriter, r *http.Request) {
		rows, err := nr.GetAll(r.Context())
		if err != nil {
			rr.RespondAndLogError(w, r.Context(), err)
			return
		}

		if rows == nil {
			rows = make([]*types.Resident, 0)
		}

		rr.SendJson(w, r.Context(), struct {
			Residents []*types.Resident `json:"residents"`
		}{Residents: rows})
	})

	r.Get("/residents/{id}/shelf", func(w http.ResponseWriter, r *http.Request) {
		id := chi.URLParam(r, "id")

		resident, err := nr.GetById(r.Context(), id)
		if err != nil {
			rr.RespondAndLogError(w, r.Context(), err)
			return
		}

		if resident == nil {
			rr.RespondClientError(w, r.Context(), http.StatusNotFound, "unknown resident: "+id)
			return
		}

		if !resident.Public {
			rr.RespondClientError(w, r.Context(), http.StatusForbidden, "this shelf is private")
			return
		}

		books, err := sr.GetByOwner(r.Context(), id)
		if err != nil {
			rr.RespondAndLogError(w, r.Context(), err)
			return
		}

		if books == nil {
			books = make([]*types.Book, 0)
		}

		rr.SendJson(w, r.Context(), struct {
			Resident *types.Resident `json:"resident"`
			Books    []*types.Book   `json:"books"`
		}{Resident: resident, Books: books})
	})

	r.Get("/shelves/{owner}", func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()

		books, err := sr.GetByOwner(r.Context(), chi.URLParam(r, "owner"))
		if err != nil {
			rr.RespondAndLogError(w, r.Context(), err)
			return
		}

		if status := strings.TrimSpace(q.Get("status")); status != "" {
			filtered := books[:0]
			for _, b := range books {
				if string(b.Status) == status {
					filtered = append(filtered, b)
				}
			}
			books = filtered
		}

		if language := strings.TrimSpace(q.Get("language")); language != "" {
			filtered := books[:0]
			for _, b := range books {
				if b.Language == language {
					filtered = append(filtered, b)
				}
			}
			books = filtered
		}

		if books == nil {
			books = make([]*types.Book, 0)
		}

		rr.SendJson(w, r.Context(), struct {
			Books []*types.Book `json:"books"`
		}{Books: books})
	})

	r.Post("/shelves/{owner}", func(w http.ResponseWriter, r *http.Request) {
		owner := chi.URLParam(r, "owner")

		var in struct {
			Title         string `json:"title"`
			Author        string `json:"author"`
			Isbn          string `json:"isbn"`
			Genre         string `json:"genre"`
			Summary       string `json:"summary"`
			CoverUrl      string `json:"cover_url"`
			Status        string `json:"status"`
			Condition     string `json:"condition"`
			ConditionNote string `json:"condition_note"`
			Language      string `json:"language"`
		}

		err := json.NewDecoder(r.Body).Decode(&in)
		if err != nil {
			rr.RespondClientError(w, r.Context(), http.StatusBadRequest, "invalid body: "+err.Error())
			return
		}

		if strings.TrimSpace(in.Title) == "" {
			rr.RespondClientError(w, r.Context(), http.StatusBadRequest, "title is required")
			return
		}

		status := types.ReadingStatus(in.Status)
		if in.Status == "" {
			status = types.StatusOwned
		} else if !status.Valid() {
			rr.RespondClientError(w, r.Context(), http.StatusBadRequest, "unknown status: "+in.Status)
			return
		}

		book := &types.Book{
			Id:            uuid.NewString(),
			Title:         strings.TrimSpace(in.Title),
			Author:        strings.TrimSpace(in.Author),
			Isbn:          in.Isbn,
			Genre:         strings.TrimSpace(in.Genre),
			Summary:       in.Summary,
			Cover:         in.CoverUrl,
			Status:        status,
			Condition:     types.BookCondition(in.Condition),
			ConditionNote: in.ConditionNote,
			Language:      in.Language,
			AddedAt:       time.Now().UnixMilli(),
		}

		enrichBook(r.Context(), lookup, book)

		if book.Author == "" {
			book.Author = "Unknown Author"
		}
		if book.Genre == "" {
			book.Genre = "General"
		}
		if book.Language == "" {
			book.Language = "English"
		}

		err = sr.Save(r.Context(), owner, book)
		if err != nil {
			rr.RespondAndLogError(w, r.Context(), err)
			return
		}

		refreshLater(owner, cr, nr, sr, rec)

		rr.SendJson(w, r.Context(), struct {
			Book *types.Book `json:"book"`
		}{Book: book})
	})

	r.Patch("/shelves/{owner}/{id}", func(w http.ResponseWriter, r *http.Request) {
		owner := chi.URLParam(r, "owner")

		var in struct {
			Status string `json:"status"`
		}

		err := json.NewDecoder(r.Body).Decode(&in)
		if err != nil {
			rr.RespondClientError(w, r.Context(), http.StatusBadRequest, "invalid body: "+err.Error())
			return
		}

		status := types.ReadingStatus(in.Status)
		if !status.Valid() {
			rr.RespondClientError(w, r.Context(), http.StatusBadRequest, "unknown status: "+in.Status)
			return
		}

		ok, err := sr.SetStatus(r.Context(), owner, chi.URLParam(r, "id"), status)
		if err != nil {
			rr.RespondAndLogError(w, r.Context(), err)
			return
		}

		if !ok {
			rr.RespondClientError(w, r.Context(), http.StatusNotFound, "no such book on this shelf")
			return
		}

		refreshLater(owner, cr, nr, sr, rec)

		rr.SendJson(w, r.Context(), struct {
			Updated bool `json:"updated"`
		}{Updated: true})
	})

	r.Delete("/shelves/{owner}/{id}", func(w http.ResponseWriter, r *http.Request) {
		owner := chi.URLParam(r, "owner")

		ok, err := sr.Delete(r.Context(), owner, chi.URLParam(r, "id"))
		if err != nil {
			rr.RespondAndLogError(w, r.Context(), err)
			return
		}

		if !ok {
			rr.RespondClientError(w, r.Context(), http.StatusNotFound, "no such book on this shelf")
			return
		}

		refreshLater(owner, cr, nr, sr, rec)

		rr.SendJson(w, r.Context(), struct {
			Deleted bool `json:"deleted"`
		}{Deleted: true})
	})

	r.Get("/shelves/{owner}/recommendations", func(w http.ResponseWriter, r *http.Request) {
		owner := chi.URLParam(r, "owner")

		recs := rec.Latest(owner)
		if recs == nil {
			// First ask in this session: run a cycle synchronously.
			snap, err := loadSnapshot(r.Context(), owner, cr, nr, sr)
			if err != nil {
				rr.RespondAndLogError(w, r.Context(), err)
				return
			}

			recs = rec.Refresh(r.Context(), owner, snap)
		}

		if recs == nil {
			recs = make([]recommend.Recommendation, 0)
		}

		rr.SendJson(w, r.Context(), struct {
			Recommendations []recommend.Recommendation `json:"recommendations"`
		}{Recommendations: recs})
	})

	r.Post("/scan", func(w http.ResponseWriter, r *http.Request) {
		image, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxScanBytes))
		if err != nil {
			rr.RespondClientError(w, r.Context(), http.StatusBadRequest, "reading image: "+err.Error())
			return
		}

		if len(image) == 0 {
			rr.RespondClientError(w, r.Context(), http.StatusBadRequest, "empty image")
			return
		}

		result, err := sc.Identify(r.Context(), image)
		if err != nil {
			rr.RespondAndLogError(w, r.Context(), err)
			return
		}

		rr.SendJson(w, r.Context(), struct {
			Book *scan.Result `json:"book"`
		}{Book: result})
	})

	return r
}

// enrichBook fills blanks from the public metadata lookup. Best-effort: a
// miss or a failed call leaves the supplied data unchanged.
func enrichBook(ctx context.Context, lookup *enrich.GoogleBooks, book *types.Book) {
	if lookup == nil {
		return
	}

	meta, err := lookup.Lookup(ctx, book.Title, book.Author)
	if err != nil || meta == nil {
		return
	}

	if book.Author == "" {
		book.Author = meta.Author
	}
	if book.Genre == "" {
		book.Genre = meta.Genre
	}
	if book.Summary == "" {
		book.Summary = meta.Description
	}
	if book.Cover == "" {
		book.Cover = meta.Cover
	}
	if book.Isbn == "" {
		book.Isbn = meta.Isbn
	}
}

// loadSnapshot reads the three pools one recommendation cycle works on: the
// owner's shelf, the flattened shelves of the owner's friends and the
// community catalog.
func loadSnapshot(ctx context.Context, owner string,
	cr catalog.Repository, nr residents.Repository, sr shelves.Repository) (*recommend.Snapshot, error) {

	shelf, err := sr.GetByOwner(ctx, owner)
	if err != nil {
		return nil, err
	}

	var neighborBooks []*types.Book

	resident, err := nr.GetById(ctx, owner)
	if err != nil {
		return nil, err
	}

	if resident != nil && len(resident.Friends) > 0 {
		byOwner, err := sr.GetByOwners(ctx, resident.Friends...)
		if err != nil {
			return nil, err
		}

		for _, friendId := range resident.Friends {
			neighborBooks = append(neighborBooks, byOwner[friendId]...)
		}
	}

	catalogBooks, err := cr.GetAll(ctx)
	if err != nil {
		return nil, err
	}

	return &recommend.Snapshot{
		Shelf:     shelf,
		Neighbors: neighborBooks,
		Catalog:   catalogBooks,
	}, nil
}

// refreshLater recycles recommendations after a shelf mutation without
// holding up the response. The cycle reads a fresh snapshot and the
// generation counter inside the recommender keeps late results from
// clobbering newer ones.
func refreshLater(owner string, cr catalog.Repository, nr residents.Repository,
	sr shelves.Repository, rec *recommend.Recommender) {

	go func() {
		ctx := context.Background()

		snap, err := loadSnapshot(ctx, owner, cr, nr, sr)
		if err != nil {
			slog.Warn("Failed to load snapshot for recommendation refresh: " + err.Error())
			return
		}

		rec.Refresh(ctx, owner, snap)
	}()
}

func getIntOrDefault(key string, q url.Values, default_ int) int {
	if ls := q.Get(key); ls != "" {
		limit, err := strconv.Atoi(ls)
		if err == nil {
			return limit
		}
	}

	return default_
}
