package catalog

import (
	"context"
	"log/slog"
	"strings"

	"github.com/doug-martin/goqu/v9"
	"github.com/georgysavva/scany/v2/pgxscan"
	"github.com/jackc/pgx/v5/pgxpool"

	"biblioswap/internal/types"
)

func NewPGXRepository(pg *pgxpool.Pool, l *slog.Logger) Repository {
	return &pgxRepo{pg: pg, g: goqu.Dialect("postgres"), l: l}
}

type pgxRepo struct {
	pg *pgxpool.Pool
	g  goqu.DialectWrapper
	l  *slog.Logger
}

type pgxCatalogBook struct {
	Id       string `db:"id"`
	Title    string `db:"title"`
	Author   string `db:"author"`
	Genre    string `db:"genre"`
	Summary  string `db:"summary"`
	CoverUrl string `db:"cover_url"`
	Language string `db:"language"`
}

func (b *pgxCatalogBook) intoCommon() *types.Book {
	return &types.Book{
		Id:       b.Id,
		Title:    b.Title,
		Author:   b.Author,
		Genre:    b.Genre,
		Summary:  b.Summary,
		Cover:    b.CoverUrl,
		Language: b.Language,
	}
}

func (p *pgxRepo) GetAll(ctx context.Context) ([]*types.Book, error) {
	return p.Search(ctx, "", "", 0)
}

func (p *pgxRepo) Search(ctx context.Context, query, genre string, limit int) ([]*types.Book, error) {
	qb := p.g.From("catalog_book").
		Order(goqu.C("title").Asc())

	if limit > 0 {
		qb = qb.Limit(uint(limit))
	}

	query = strings.ReplaceAll(strings.ReplaceAll(strings.ReplaceAll(strings.TrimSpace(query),
		"\\", "\\\\"),
		"_", "\\_"),
		"%", "\\%")
	if query != "" {
		qb = qb.Where(goqu.C("title").ILike("%" + query + "%"))
	}

	genre = strings.TrimSpace(genre)
	if genre != "" {
		qb = qb.Where(goqu.L("lower(genre)").Eq(strings.ToLower(genre)))
	}

	sql, params, err := qb.ToSQL()
	if err != nil {
		return nil, err
	}

	var rows []pgxCatalogBook

	err = pgxscan.Select(ctx, p.pg, &rows, sql, params...)
	if err != nil {
		return nil, err
	}

	books := make([]*types.Book, 0, len(rows))
	for ix := range rows {
		books = append(books, rows[ix].intoCommon())
	}

	return books, nil
}

func (p *pgxRepo) GetGenres(ctx context.Context) ([]string, error) {
	sql, params, err := p.g.From("catalog_book").
		SelectDistinct(goqu.C("genre")).
		Order(goqu.C("genre").Asc()).
		ToSQL()
	if err != nil {
		return nil, err
	}

	var rows []string

	err = pgxscan.Select(ctx, p.pg, &rows, sql, params...)
	if err != nil {
		return nil, err
	}

	return rows, nil
}

func (p *pgxRepo) Save(ctx context.Context, books ...*types.Book) error {
	if len(books) == 0 {
		return nil
	}

	rows := make([]any, 0, len(books))
	for _, b := range books {
		rows = append(rows, pgxCatalogBook{
			Id:       b.Id,
			Title:    b.Title,
			Author:   b.Author,
			Genre:    b.Genre,
			Summary:  b.Summary,
			CoverUrl: b.Cover,
			Language: b.Language,
		})
	}

	sql, params, err := p.g.Insert("catalog_book").
		Rows(rows...).
		OnConflict(goqu.DoUpdate("id", map[string]any{
			"title":     goqu.L("excluded.title"),
			"author":    goqu.L("excluded.author"),
			"genre":     goqu.L("excluded.genre"),
			"summary":   goqu.L("excluded.summary"),
			"cover_url": goqu.L("excluded.cover_url"),
			"language":  goqu.L("excluded.language"),
		})).
		ToSQL()
	if err != nil {
		return err
	}

	_, err = p.pg.Exec(ctx, sql, params...)
	return err
}
