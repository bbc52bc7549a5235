package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/ethereum/go-ethereum/common"
	"github.com/sirupsen/logrus"

	"github.com/apollos-finance/bridge-tracker/bridge"
	"github.com/apollos-finance/bridge-tracker/config"
	"github.com/apollos-finance/bridge-tracker/logging"
	"github.com/apollos-finance/bridge-tracker/monitor"
	"github.com/apollos-finance/bridge-tracker/wallet"
)

var (
	configPath = flag.String("config", "config.yml", "path to the config file")
	amount     = flag.String("amount", "", "amount of the source asset to bridge")
	vault      = flag.String("vault", "", "destination vault market, e.g. afWETH")
	account    = flag.String("account", "", "account to quote for, defaults to the wallet address")
	wait       = flag.Bool("wait", false, "wait until the bridged message is delivered")
)

func usage() {
	fmt.Fprintf(flag.CommandLine.Output(), "Usage: %s [flags] status|quote|proceed|clear|track\n", os.Args[0])
	flag.PrintDefaults()
}

func printJSON(v interface{}) {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	_ = enc.Encode(v)
}

func main() {
	flag.Usage = usage
	flag.Parse()
	if flag.NArg() != 1 {
		usage()
		os.Exit(2)
	}
	command := flag.Arg(0)

	logger := logging.New()
	cfg, err := config.ReadConfigFromFile(*configPath)
	if err != nil {
		logger.WithError(err).Fatal("can't read config")
	}
	logger.SetLevel(cfg.LogLevel)
	// local attempts are not journaled
	cfg.DBConfig = nil

	m, err := monitor.NewMonitor(logger, cfg)
	if err != nil {
		logger.WithError(err).Fatal("can't initialize bridge tracker")
	}
	defer m.Close()

	var privateKey string
	if cfg.Wallet != nil {
		privateKey = cfg.Wallet.PrivateKey
	}
	w, err := wallet.NewKeyedWallet(privateKey, m.Clients(), cfg.Bridge.SourceChain.ChainID, logger.WithField("service", "wallet"))
	if err != nil {
		logger.WithError(err).Fatal("can't initialize wallet")
	}

	reader := bridge.NewReader(cfg, m.Source(), m.Destination(), logger.WithField("service", "reader"))
	controller := bridge.NewController(cfg, w, reader, m.Tracker(), logger.WithField("service", "controller"))
	defer controller.Close()
	if err = controller.SetInput(bridge.Input{Amount: *amount, Vault: *vault}); err != nil {
		logger.WithError(err).Fatal("invalid bridge input")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err = run(ctx, command, cfg, w, reader, controller, logger); err != nil {
		logger.WithError(err).Error("command failed")
		controller.Close()
		m.Close()
		os.Exit(1)
	}
}

func run(ctx context.Context, command string, cfg *config.Config, w *wallet.KeyedWallet, reader *bridge.Reader, controller *bridge.Controller, logger logging.Logger) error {
	switch command {
	case "status":
		// without a key the snapshot only shows persisted state
		if err := w.Connect(ctx); err != nil && !errors.Is(err, wallet.ErrNoPrivateKey) {
			return err
		}
		printJSON(controller.Refresh(ctx))
	case "quote":
		addr := w.Address()
		if *account != "" {
			if !config.IsValidAddress(*account) {
				return fmt.Errorf("invalid account %q", *account)
			}
			addr = common.HexToAddress(*account)
		}
		q, err := bridge.NewQuote(ctx, cfg, reader, bridge.Input{Amount: *amount, Vault: *vault}, addr)
		if err != nil {
			return err
		}
		printJSON(q)
	case "proceed":
		if controller.Resume(ctx) {
			logger.Info("resumed tracking of the persisted bridge message")
		}
		if !w.Connected() {
			if _, err := controller.Proceed(ctx); err != nil {
				return err
			}
		}
		d, err := controller.Proceed(ctx)
		if errors.Is(err, bridge.ErrBusy) && *wait {
			return track(ctx, controller, logger)
		}
		if err != nil {
			return err
		}
		logger.WithField("action", d.Action).Info("bridge action done")
		if d.Action == bridge.ActionBridge && *wait {
			return track(ctx, controller, logger)
		}
		printJSON(controller.Snapshot())
	case "clear":
		controller.Clear(ctx)
		logger.Info("bridge state cleared")
	case "track":
		if !controller.Resume(ctx) {
			logger.Info("nothing to track")
			printJSON(controller.Tracker().Store().State())
			return nil
		}
		return track(ctx, controller, logger)
	default:
		usage()
		return fmt.Errorf("unknown command %q", command)
	}
	return nil
}

func track(ctx context.Context, controller *bridge.Controller, logger logging.Logger) error {
	state := controller.Tracker().Store().State()
	if state.HasMessage() {
		logger.WithField("message_id", state.MessageID.Hex()).Info("waiting for ccip delivery")
	}
	if err := controller.Wait(ctx); err != nil {
		return fmt.Errorf("stopped waiting for delivery: %w", err)
	}
	snap := controller.Snapshot()
	logger.WithFields(logrus.Fields{
		"status": snap.Status,
		"step":   snap.State.Step,
	}).Info("message tracking finished")
	printJSON(snap)
	return nil
}
