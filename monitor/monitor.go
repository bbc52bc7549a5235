package monitor

import (
	"context"
	"fmt"

	"github.com/sirupsen/logrus"

	"github.com/apollos-finance/bridge-tracker/bridgestate"
	"github.com/apollos-finance/bridge-tracker/ccip"
	"github.com/apollos-finance/bridge-tracker/config"
	"github.com/apollos-finance/bridge-tracker/contract"
	"github.com/apollos-finance/bridge-tracker/db"
	"github.com/apollos-finance/bridge-tracker/entity"
	"github.com/apollos-finance/bridge-tracker/ethclient"
	"github.com/apollos-finance/bridge-tracker/logging"
	"github.com/apollos-finance/bridge-tracker/monitor/alerts"
	"github.com/apollos-finance/bridge-tracker/repository"
	"github.com/apollos-finance/bridge-tracker/storage"
)

// Monitor owns the long-lived pieces of the tracker: rpc clients, the local
// state store, the message tracker and the optional postgres journal.
type Monitor struct {
	cfg          *config.Config
	logger       logging.Logger
	clients      map[uint64]ethclient.Client
	kv           storage.KV
	dbConn       *db.DB
	tracker      *Tracker
	alertManager *alerts.AlertManager
}

func dialChain(chain *config.ChainConfig) (ethclient.Client, error) {
	if chain.RPC == nil || chain.RPC.Host == "" {
		return nil, fmt.Errorf("chain %s has no rpc host configured", chain.Name)
	}
	client, err := ethclient.NewClient(chain.RPC.Host, chain.RPC.Timeout, chain.ChainID)
	if err != nil {
		return nil, fmt.Errorf("can't dial %s rpc client: %w", chain.Name, err)
	}
	return client, nil
}

// NewMonitor dials both bridge chains and opens the configured storage.
// When postgres is configured the status journal and its alerts are enabled.
func NewMonitor(logger logging.Logger, cfg *config.Config) (*Monitor, error) {
	logger.Info("initializing bridge tracker")
	source, err := dialChain(cfg.Bridge.SourceChain)
	if err != nil {
		return nil, err
	}
	destination, err := dialChain(cfg.Bridge.DestinationChain)
	if err != nil {
		source.Close()
		return nil, err
	}
	kv, err := storage.New(cfg.Storage)
	if err != nil {
		source.Close()
		destination.Close()
		return nil, fmt.Errorf("can't open %s storage: %w", cfg.Storage.Backend, err)
	}
	clients := map[uint64]ethclient.Client{
		source.ChainID():      source,
		destination.ChainID(): destination,
	}

	var dbConn *db.DB
	if cfg.DBConfig != nil {
		dbConn, err = db.ConnectToDBAndMigrate(cfg.DBConfig)
		if err != nil {
			kv.Close()
			source.Close()
			destination.Close()
			return nil, fmt.Errorf("can't connect to database and apply migrations: %w", err)
		}
	}

	m, err := NewMonitorWithClients(logger, cfg, clients, kv, dbConn)
	if err != nil {
		m.Close()
		return nil, err
	}
	return m, nil
}

// NewMonitorWithClients assembles a monitor from already opened dependencies.
// dbConn may be nil, the status journal and alerts are disabled then.
func NewMonitorWithClients(logger logging.Logger, cfg *config.Config, clients map[uint64]ethclient.Client, kv storage.KV, dbConn *db.DB) (*Monitor, error) {
	m := &Monitor{
		cfg:     cfg,
		logger:  logger,
		clients: clients,
		kv:      kv,
		dbConn:  dbConn,
	}
	destination, ok := clients[cfg.Bridge.DestinationChain.ChainID]
	if !ok {
		return m, fmt.Errorf("no rpc client for destination chain %s", cfg.Bridge.DestinationChain.Name)
	}
	if _, ok = clients[cfg.Bridge.SourceChain.ChainID]; !ok {
		return m, fmt.Errorf("no rpc client for source chain %s", cfg.Bridge.SourceChain.Name)
	}

	var journal entity.StatusUpdatesRepo
	if dbConn != nil {
		journal = repository.NewRepo(dbConn).StatusUpdates
		alertManager, err := alerts.NewAlertManager(logger.WithField("service", "alerts"), dbConn, cfg)
		if err != nil {
			return m, fmt.Errorf("failed to initialize alert manager: %w", err)
		}
		m.alertManager = alertManager
	}

	receiver := contract.NewCCIPReceiverContract(destination, cfg.Addresses.CCIPReceiver)
	poller := ccip.NewPoller(receiver, ccip.Options{
		Interval:    cfg.Bridge.PollInterval,
		FailedAfter: cfg.Bridge.FailedAfter,
	}, logger.WithField("service", "ccip_poller"))
	store := bridgestate.NewStore(kv, logger.WithField("service", "bridge_state"))
	m.tracker = NewTracker(store, poller, journal, logger.WithField("service", "tracker"))
	return m, nil
}

func (m *Monitor) Tracker() *Tracker {
	return m.tracker
}

func (m *Monitor) Clients() map[uint64]ethclient.Client {
	return m.clients
}

func (m *Monitor) Source() ethclient.Client {
	return m.clients[m.cfg.Bridge.SourceChain.ChainID]
}

func (m *Monitor) Destination() ethclient.Client {
	return m.clients[m.cfg.Bridge.DestinationChain.ChainID]
}

// AlertManager returns nil when no database is configured.
func (m *Monitor) AlertManager() *alerts.AlertManager {
	return m.alertManager
}

// checkSourceAsset warns when the configured source asset decimals differ from the token.
func (m *Monitor) checkSourceAsset(ctx context.Context) {
	asset := contract.NewERC20Contract(m.Source(), m.cfg.Addresses.BaseCCIPBnM)
	logger := m.logger.WithField("asset", asset.Address().Hex())
	decimals, err := asset.Decimals(ctx)
	if err != nil {
		logger.WithError(err).Warn("can't verify source asset decimals")
		return
	}
	if decimals != m.cfg.Bridge.SourceAssetDecimals {
		logger.WithFields(logrus.Fields{
			"token_decimals":  decimals,
			"config_decimals": m.cfg.Bridge.SourceAssetDecimals,
		}).Warn("source asset decimals mismatch")
	}
}

// Start resumes tracking of a persisted bridge attempt and starts the alert jobs.
// It reports whether a message is being tracked.
func (m *Monitor) Start(ctx context.Context) bool {
	m.checkSourceAsset(ctx)
	if m.alertManager != nil {
		m.alertManager.Start(ctx)
	}
	_, resumed := m.tracker.Resume(ctx)
	return resumed
}

// Close stops tracking and releases storage, database and rpc connections.
func (m *Monitor) Close() {
	if m.tracker != nil {
		m.tracker.Stop()
	}
	if m.kv != nil {
		if err := m.kv.Close(); err != nil {
			m.logger.WithError(err).Warn("can't close storage")
		}
	}
	if m.dbConn != nil {
		if err := m.dbConn.Close(); err != nil {
			m.logger.WithError(err).Warn("can't close database connection")
		}
	}
	for _, client := range m.clients {
		client.Close()
	}
}
