package alerts

import (
	"context"
	"fmt"
	"time"

	"github.com/apollos-finance/bridge-tracker/config"
	"github.com/apollos-finance/bridge-tracker/db"
	"github.com/apollos-finance/bridge-tracker/logging"
)

type AlertManager struct {
	logger logging.Logger
	jobs   map[string]*Job
}

func NewAlertManager(logger logging.Logger, db *db.DB, cfg *config.Config) (*AlertManager, error) {
	provider := NewDBAlertsProvider(db, "status_updates")
	jobs := make(map[string]*Job, len(cfg.Alerts))

	for name, alertCfg := range cfg.Alerts {
		switch name {
		case "stuck_message":
			jobs[name] = &Job{
				Interval: time.Minute,
				Timeout:  time.Second * 10,
				Func:     provider.FindStuckMessages,
				Metric:   AlertStuckMessage,
				Params:   &AlertJobParams{MinAge: 30 * time.Minute},
			}
		case "unexecuted_deposit":
			jobs[name] = &Job{
				Interval: time.Minute,
				Timeout:  time.Second * 10,
				Func:     provider.FindUnexecutedDeposits,
				Metric:   AlertUnexecutedDeposit,
				Params:   &AlertJobParams{MinAge: 10 * time.Minute},
			}
		case "failed_message":
			jobs[name] = &Job{
				Interval: time.Minute * 5,
				Timeout:  time.Second * 10,
				Func:     provider.FindFailedMessages,
				Metric:   AlertFailedMessage,
				Params:   new(AlertJobParams),
			}
		default:
			return nil, fmt.Errorf("unknown alert type %q", name)
		}
		jobs[name].logger = logger.WithField("alert_job", name)
		jobs[name].Params.SourceChainID = cfg.Bridge.SourceChain.ChainID
		jobs[name].Params.DestinationChainID = cfg.Bridge.DestinationChain.ChainID
		if alertCfg != nil && alertCfg.MinAge > 0 {
			jobs[name].Params.MinAge = alertCfg.MinAge
		}
	}

	return &AlertManager{
		logger: logger,
		jobs:   jobs,
	}, nil
}

func (m *AlertManager) Jobs() map[string]*Job {
	return m.jobs
}

func (m *AlertManager) Start(ctx context.Context) {
	m.logger.WithField("count", len(m.jobs)).Info("starting alert manager jobs")
	for _, job := range m.jobs {
		go job.Start(ctx)
	}
}
