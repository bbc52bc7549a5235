package alerts

import (
	"context"
	"fmt"
	"time"

	sq "github.com/Masterminds/squirrel"
	"github.com/ethereum/go-ethereum/common"

	"github.com/apollos-finance/bridge-tracker/db"
	"github.com/apollos-finance/bridge-tracker/entity"
)

type DBAlertsProvider struct {
	db    *db.DB
	table string
}

func NewDBAlertsProvider(db *db.DB, table string) *DBAlertsProvider {
	return &DBAlertsProvider{
		db:    db,
		table: table,
	}
}

type MessageAlert struct {
	MessageID common.Hash       `db:"message_id" json:"message_id"`
	TxHash    *common.Hash      `db:"tx_hash" json:"tx_hash"`
	Status    entity.CCIPStatus `db:"status" json:"status"`
	Age       time.Duration     `db:"age" json:"_value,string"`
}

// LatestStatusQuery selects messages whose latest journaled status is status and is older than minAge.
func (p *DBAlertsProvider) LatestStatusQuery(status entity.CCIPStatus, minAge time.Duration) (string, []interface{}, error) {
	latest := sq.Select("DISTINCT ON (message_id) *").
		From(p.table).
		OrderBy("message_id", "id DESC")
	return sq.Select("su.message_id", "su.tx_hash", "su.status", "EXTRACT(EPOCH FROM now() - su.created_at)::int as age").
		FromSelect(latest, "su").
		Where(sq.Eq{"su.status": status}).
		Where("su.created_at <= now() - ? * interval '1 second'", int64(minAge.Seconds())).
		OrderBy("su.created_at").
		PlaceholderFormat(sq.Dollar).
		ToSql()
}

func (p *DBAlertsProvider) findByLatestStatus(ctx context.Context, status entity.CCIPStatus, minAge time.Duration) ([]MessageAlert, error) {
	q, args, err := p.LatestStatusQuery(status, minAge)
	if err != nil {
		return nil, fmt.Errorf("can't build query: %w", err)
	}
	res := make([]MessageAlert, 0, 5)
	err = p.db.SelectContext(ctx, &res, q, args...)
	if err != nil {
		return nil, fmt.Errorf("can't select %s messages: %w", status, err)
	}
	return res, nil
}

func (p *DBAlertsProvider) FindStuckMessages(ctx context.Context, params *AlertJobParams) (interface{}, error) {
	return p.findByLatestStatus(ctx, entity.CCIPStatusPending, params.MinAge)
}

func (p *DBAlertsProvider) FindUnexecutedDeposits(ctx context.Context, params *AlertJobParams) (interface{}, error) {
	return p.findByLatestStatus(ctx, entity.CCIPStatusStored, params.MinAge)
}

func (p *DBAlertsProvider) FindFailedMessages(ctx context.Context, params *AlertJobParams) (interface{}, error) {
	return p.findByLatestStatus(ctx, entity.CCIPStatusFailed, params.MinAge)
}
