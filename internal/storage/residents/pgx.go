package residents

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

var subFriends = goqu.Select(goqu.L("array_agg(friend_id order by friend_id)")).
	From("resident_friend").
	Where(goqu.C("resident_id").Eq(goqu.C("id")))

func NewPGXRepository(pg *pgxpool.Pool, l *slog.Logger) Repository {
	return &pgxRepo{pg: pg, g: goqu.Dialect("postgres"), l: l}
}

type pgxRepo struct {
	pg *pgxpool.Pool
	g  goqu.DialectWrapper
	l  *slog.Logger
}

type pgxResident struct {
	Id        string `db:"id"`
	Name      string `db:"name"`
	AvatarUrl string `db:"avatar_url"`
	Society   string `db:"society"`
	Public    bool   `db:"public"`
}

type pgxResidentFull struct {
	Base    pgxResident `db:""` // follow
	Friends []string    `db:"friends"`
}

func (r *pgxResidentFull) intoCommon() *types.Resident {
	return &types.Resident{
		Id:      r.Base.Id,
		Name:    r.Base.Name,
		Avatar:  r.Base.AvatarUrl,
		Society: r.Base.Society,
		Public:  r.Base.Public,
		Friends: r.Friends,
	}
}

func (p *pgxRepo) GetById(ctx context.Context, id string) (*types.Resident, error) {
	sql, params, err := p.g.From("resident").
		Select("*", subFriends.As("friends")).
		Where(goqu.C("id").Eq(id)).
		ToSQL()
	if err != nil {
		return nil, err
	}

	var row pgxResidentFull

	err = pgxscan.Get(ctx, p.pg, &row, sql, params...)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			err = nil
		}
		return nil, err
	}

	return row.intoCommon(), nil
}

func (p *pgxRepo) GetAll(ctx context.Context) ([]*types.Resident, error) {
	sql, params, err := p.g.From("resident").
		Select("*", subFriends.As("friends")).
		Order(goqu.C("name").Asc()).
		ToSQL()
	if err != nil {
		return nil, err
	}

	var rows []pgxResidentFull

	err = pgxscan.Select(ctx, p.pg, &rows, sql, params...)
	if err != nil {
		return nil, err
	}

	ret := make([]*types.Resident, 0, len(rows))
	for ix := range rows {
		ret = append(ret, rows[ix].intoCommon())
	}

	return ret, nil
}

func (p *pgxRepo) Save(ctx context.Context, residents ...*types.Resident) error {
	if len(residents) == 0 {
		return nil
	}

	rows := make([]any, 0, len(residents))
	for _, r := range residents {
		rows = append(rows, pgxResident{
			Id:        r.Id,
			Name:      r.Name,
			AvatarUrl: r.Avatar,
			Society:   r.Society,
			Public:    r.Public,
		})
	}

	sql, params, err := p.g.Insert("resident").
		Rows(rows...).
		OnConflict(goqu.DoUpdate("id", map[string]any{
			"name":       goqu.L("excluded.name"),
			"avatar_url": goqu.L("excluded.avatar_url"),
			"society":    goqu.L("excluded.society"),
			"public":     goqu.L("excluded.public"),
		})).
		ToSQL()
	if err != nil {
		return err
	}

	_, err = p.pg.Exec(ctx, sql, params...)
	return err
}

func (p *pgxRepo) LinkFriends(ctx context.Context, residentId string, friendIds ...string) error {
	sql, params, err := p.g.Delete("resident_friend").
		Where(goqu.C("resident_id").Eq(residentId)).
		ToSQL()
	if err != nil {
		return err
	}

	_, err = p.pg.Exec(ctx, sql, params...)
	if err != nil {
		return err
	}

	if len(friendIds) == 0 {
		return nil
	}

	type row struct {
		ResidentId string `db:"resident_id"`
		FriendId   string `db:"friend_id"`
	}

	rows := make([]any, 0, len(friendIds))

	for _, friendId := range friendIds {
		rows = append(rows, row{
			ResidentId: residentId,
			FriendId:   friendId,
		})
	}

	sql, params, err = p.g.Insert("resident_friend").
		Rows(rows...).
		ToSQL()
	if err != nil {
		return err
	}

	_, err = p.pg.Exec(ctx, sql, params...)
	return err
}
