package postgres

import (
	sq "github.com/Masterminds/squirrel"

	"github.com/apollos-finance/bridge-tracker/db"
)

type basePostgresRepo struct {
	table string
	db    *db.DB
	psql  sq.StatementBuilderType
}

func newBasePostgresRepo(table string, db *db.DB) *basePostgresRepo {
	return &basePostgresRepo{
		table: table,
		db:    db,
		psql:  sq.StatementBuilder.PlaceholderFormat(sq.Dollar),
	}
}
