package postgres

import (
	"context"
	"errors"
	"fmt"

	sq "github.com/Masterminds/squirrel"
	"github.com/ethereum/go-ethereum/common"

	"github.com/apollos-finance/bridge-tracker/db"
	"github.com/apollos-finance/bridge-tracker/entity"
)

type statusUpdatesRepo basePostgresRepo

func NewStatusUpdatesRepo(table string, db *db.DB) entity.StatusUpdatesRepo {
	return (*statusUpdatesRepo)(newBasePostgresRepo(table, db))
}

func (r *statusUpdatesRepo) Insert(ctx context.Context, update *entity.StatusUpdate) error {
	q, args, err := r.psql.Insert(r.table).
		Columns("message_id", "tx_hash", "status", "amount", "receiver", "executed").
		Values(update.MessageID, update.TxHash, update.Status, update.Amount, update.Receiver, update.Executed).
		ToSql()
	if err != nil {
		return fmt.Errorf("can't build query: %w", err)
	}
	_, err = r.db.ExecContext(ctx, q, args...)
	if err != nil {
		return fmt.Errorf("can't insert status update: %w", err)
	}
	return nil
}

func (r *statusUpdatesRepo) FindByMessageID(ctx context.Context, messageID common.Hash) ([]*entity.StatusUpdate, error) {
	q, args, err := r.psql.Select("*").
		From(r.table).
		Where(sq.Eq{"message_id": messageID}).
		OrderBy("id").
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("can't build query: %w", err)
	}
	updates := make([]*entity.StatusUpdate, 0, 4)
	err = r.db.SelectContext(ctx, &updates, q, args...)
	if err != nil {
		return nil, fmt.Errorf("can't select status updates: %w", err)
	}
	return updates, nil
}

func (r *statusUpdatesRepo) GetLatest(ctx context.Context, messageID common.Hash) (*entity.StatusUpdate, error) {
	q, args, err := r.psql.Select("*").
		From(r.table).
		Where(sq.Eq{"message_id": messageID}).
		OrderBy("id DESC").
		Limit(1).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("can't build query: %w", err)
	}
	update := new(entity.StatusUpdate)
	err = r.db.GetContext(ctx, update, q, args...)
	if err != nil {
		if errors.Is(err, db.ErrNotFound) {
			return nil, err
		}
		return nil, fmt.Errorf("can't get latest status update: %w", err)
	}
	return update, nil
}
