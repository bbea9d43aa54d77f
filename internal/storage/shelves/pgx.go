package shelves

import (
	"context"
	"errors"
	"log/slog"

	"github.com/doug-martin/goqu/v9"
	"github.com/georgysavva/scany/v2/pgxscan"
	"github.com/jackc/pgx/v5"
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

type pgxShelfBook struct {
	Id            string `db:"id"`
	OwnerId       string `db:"owner_id"`
	Title         string `db:"title"`
	Author        string `db:"author"`
	Isbn          string `db:"isbn"`
	Genre         string `db:"genre"`
	Summary       string `db:"summary"`
	CoverUrl      string `db:"cover_url"`
	Status        string `db:"status"`
	Condition     string `db:"condition"`
	ConditionNote string `db:"condition_note"`
	Language      string `db:"language"`
	AddedAt       int64  `db:"added_at"`
}

func (b *pgxShelfBook) intoCommon() *types.Book {
	return &types.Book{
		Id:            b.Id,
		Title:         b.Title,
		Author:        b.Author,
		Isbn:          b.Isbn,
		Genre:         b.Genre,
		Summary:       b.Summary,
		Cover:         b.CoverUrl,
		Status:        types.ReadingStatus(b.Status),
		Condition:     types.BookCondition(b.Condition),
		ConditionNote: b.ConditionNote,
		Language:      b.Language,
		AddedAt:       b.AddedAt,
	}
}

func intoRow(ownerId string, b *types.Book) pgxShelfBook {
	return pgxShelfBook{
		Id:            b.Id,
		OwnerId:       ownerId,
		Title:         b.Title,
		Author:        b.Author,
		Isbn:          b.Isbn,
		Genre:         b.Genre,
		Summary:       b.Summary,
		CoverUrl:      b.Cover,
		Status:        string(b.Status),
		Condition:     string(b.Condition),
		ConditionNote: b.ConditionNote,
		Language:      b.Language,
		AddedAt:       b.AddedAt,
	}
}

func (p *pgxRepo) GetByOwner(ctx context.Context, ownerId string) ([]*types.Book, error) {
	sql, params, err := p.g.From("shelf_book").
		Where(goqu.C("owner_id").Eq(ownerId)).
		Order(goqu.C("added_at").Desc()).
		ToSQL()
	if err != nil {
		return nil, err
	}

	var rows []pgxShelfBook

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

func (p *pgxRepo) GetByOwners(ctx context.Context, ownerIds ...string) (map[string][]*types.Book, error) {
	if len(ownerIds) == 0 {
		return make(map[string][]*types.Book), nil
	}

	sql, params, err := p.g.From("shelf_book").
		Where(goqu.C("owner_id").In(ownerIds)).
		Order(goqu.C("added_at").Desc()).
		ToSQL()
	if err != nil {
		return nil, err
	}

	var rows []pgxShelfBook

	err = pgxscan.Select(ctx, p.pg, &rows, sql, params...)
	if err != nil {
		return nil, err
	}

	ret := make(map[string][]*types.Book, len(ownerIds))
	for ix := range rows {
		ret[rows[ix].OwnerId] = append(ret[rows[ix].OwnerId], rows[ix].intoCommon())
	}

	return ret, nil
}

func (p *pgxRepo) GetById(ctx context.Context, ownerId, id string) (*types.Book, error) {
	sql, params, err := p.g.From("shelf_book").
		Where(goqu.C("owner_id").Eq(ownerId), goqu.C("id").Eq(id)).
		ToSQL()
	if err != nil {
		return nil, err
	}

	var row pgxShelfBook

	err = pgxscan.Get(ctx, p.pg, &row, sql, params...)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			err = nil
		}
		return nil, err
	}

	return row.intoCommon(), nil
}

func (p *pgxRepo) Save(ctx context.Context, ownerId string, books ...*types.Book) error {
	if len(books) == 0 {
		return nil
	}

	rows := make([]any, 0, len(books))
	for _, b := range books {
		rows = append(rows, intoRow(ownerId, b))
	}

	sql, params, err := p.g.Insert("shelf_book").
		Rows(rows...).
		OnConflict(goqu.DoUpdate("id", map[string]any{
			"title":          goqu.L("excluded.title"),
			"author":         goqu.L("excluded.author"),
			"isbn":           goqu.L("excluded.isbn"),
			"genre":          goqu.L("excluded.genre"),
			"summary":        goqu.L("excluded.summary"),
			"cover_url":      goqu.L("excluded.cover_url"),
			"status":         goqu.L("excluded.status"),
			"condition":      goqu.L("excluded.condition"),
			"condition_note": goqu.L("excluded.condition_note"),
			"language":       goqu.L("excluded.language"),
			"added_at":       goqu.L("excluded.added_at"),
		})).
		ToSQL()
	if err != nil {
		return err
	}

	_, err = p.pg.Exec(ctx, sql, params...)
	return err
}

func (p *pgxRepo) SetStatus(ctx context.Context, ownerId, id string, status types.ReadingStatus) (bool, error) {
	sql, params, err := p.g.Update("shelf_book").
		Set(map[string]any{"status": string(status)}).
		Where(goqu.C("owner_id").Eq(ownerId), goqu.C("id").Eq(id)).
		ToSQL()
	if err != nil {
		return false, err
	}

	res, err := p.pg.Exec(ctx, sql, params...)
	if err != nil {
		return false, err
	}

	return res.RowsAffected() > 0, nil
}

func (p *pgxRepo) Delete(ctx context.Context, ownerId, id string) (bool, error) {
	sql, params, err := p.g.Delete("shelf_book").
		Where(goqu.C("owner_id").Eq(ownerId), goqu.C("id").Eq(id)).
		ToSQL()
	if err != nil {
		return false, err
	}

	res, err := p.pg.Exec(ctx, sql, params...)
	if err != nil {
		return false, err
	}

	return res.RowsAffected() > 0, nil
}
