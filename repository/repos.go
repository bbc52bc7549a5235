package repository

import (
	"github.com/apollos-finance/bridge-tracker/db"
	"github.com/apollos-finance/bridge-tracker/entity"
	"github.com/apollos-finance/bridge-tracker/repository/postgres"
)

type Repo struct {
	StatusUpdates entity.StatusUpdatesRepo
}

func NewRepo(db *db.DB) *Repo {
	return &Repo{
		StatusUpdates: postgres.NewStatusUpdatesRepo("status_updates", db),
	}
}
