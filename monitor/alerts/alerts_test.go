package alerts_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/require"

	"github.com/apollos-finance/bridge-tracker/config"
	"github.com/apollos-finance/bridge-tracker/entity"
	"github.com/apollos-finance/bridge-tracker/logging"
	"github.com/apollos-finance/bridge-tracker/monitor/alerts"
)

const alertsConfig = `
chains:
  base_sepolia:
    chain_id: 84532
  arbitrum_sepolia:
    chain_id: 421614
alerts:
  stuck_message:
    min_age: 45m
  unexecuted_deposit:
  failed_message: {}
`

func TestConvertToAlertMetricValues(t *testing.T) {
	t.Parallel()
	txHash := common.HexToHash("0x02")
	values, err := alerts.ConvertToAlertMetricValues([]alerts.MessageAlert{
		{MessageID: common.HexToHash("0x01"), TxHash: &txHash, Status: entity.CCIPStatusPending, Age: 3600},
		{MessageID: common.HexToHash("0x03"), Status: entity.CCIPStatusStored, Age: 60},
	})
	require.NoError(t, err)
	require.Len(t, values, 2)
	require.Equal(t, prometheus.Labels{
		"message_id": common.HexToHash("0x01").Hex(),
		"tx_hash":    txHash.Hex(),
		"status":     "pending",
	}, values[0].Labels())
	require.InDelta(t, 3600, values[0].Value(), 0)
	require.Equal(t, "", values[1]["tx_hash"])
	require.InDelta(t, 60, values[1].Value(), 0)
	require.Zero(t, alerts.AlertMetricValues{}.Value())
}

func TestNewAlertManager(t *testing.T) {
	t.Parallel()
	cfg, err := config.ReadConfig([]byte(alertsConfig))
	require.NoError(t, err)

	m, err := alerts.NewAlertManager(logging.NewNop(), nil, cfg)
	require.NoError(t, err)
	jobs := m.Jobs()
	require.Len(t, jobs, 3)
	require.Equal(t, 45*time.Minute, jobs["stuck_message"].Params.MinAge)
	require.Equal(t, 10*time.Minute, jobs["unexecuted_deposit"].Params.MinAge)
	require.Equal(t, uint64(84532), jobs["failed_message"].Params.SourceChainID)
	require.Equal(t, uint64(421614), jobs["failed_message"].Params.DestinationChainID)

	cfg.Alerts = map[string]*config.AlertConfig{"unknown_message_execution": nil}
	_, err = alerts.NewAlertManager(logging.NewNop(), nil, cfg)
	require.Error(t, err)
}

func TestLatestStatusQuery(t *testing.T) {
	t.Parallel()
	q, args, err := alerts.NewDBAlertsProvider(nil, "status_updates").LatestStatusQuery(entity.CCIPStatusStored, 10*time.Minute)
	require.NoError(t, err)
	require.Contains(t, q, "FROM (SELECT DISTINCT ON (message_id) * FROM status_updates ORDER BY message_id, id DESC) AS su")
	require.Contains(t, q, "su.status = $1")
	require.Contains(t, q, "su.created_at <= now() - $2 * interval '1 second'")
	require.Equal(t, []interface{}{entity.CCIPStatusStored, int64(600)}, args)
}

func TestJob_RunOnce(t *testing.T) {
	t.Parallel()
	metric := prometheus.NewGaugeVec(prometheus.GaugeOpts{Name: "test_alert"}, []string{"message_id", "tx_hash", "status"})
	found := []alerts.MessageAlert{{MessageID: common.HexToHash("0x01"), Status: entity.CCIPStatusPending, Age: 1800}}
	var fail error
	cfg, err := config.ReadConfig([]byte(alertsConfig))
	require.NoError(t, err)
	m, err := alerts.NewAlertManager(logging.NewNop(), nil, cfg)
	require.NoError(t, err)
	job := m.Jobs()["stuck_message"]
	job.Metric = metric
	job.Func = func(ctx context.Context, params *alerts.AlertJobParams) (interface{}, error) {
		_, ok := ctx.Deadline()
		require.True(t, ok)
		require.Equal(t, 45*time.Minute, params.MinAge)
		return found, fail
	}

	require.NoError(t, job.RunOnce(context.Background()))
	require.Equal(t, 1, testutil.CollectAndCount(metric))
	require.InDelta(t, 1800, testutil.ToFloat64(metric.WithLabelValues(common.HexToHash("0x01").Hex(), "", "pending")), 0)

	found = nil
	require.NoError(t, job.RunOnce(context.Background()))
	require.Zero(t, testutil.CollectAndCount(metric))

	fail = errors.New("relation does not exist")
	require.Error(t, job.RunOnce(context.Background()))
}
