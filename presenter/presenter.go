package presenter

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/jellydator/ttlcache/v3"

	"github.com/apollos-finance/bridge-tracker/bridge"
	"github.com/apollos-finance/bridge-tracker/config"
	"github.com/apollos-finance/bridge-tracker/dashboard"
	"github.com/apollos-finance/bridge-tracker/entity"
	"github.com/apollos-finance/bridge-tracker/logging"
	"github.com/apollos-finance/bridge-tracker/monitor"
	"github.com/apollos-finance/bridge-tracker/presenter/http/middleware"
	"github.com/apollos-finance/bridge-tracker/presenter/http/render"
)

const (
	lendBorrowKey = "lend_borrow"
	lendBorrowTTL = 15 * time.Second

	shutdownTimeout = 5 * time.Second
)

type Presenter struct {
	logger  logging.Logger
	cfg     *config.Config
	tracker *monitor.Tracker
	reader  *bridge.Reader
	markets *dashboard.Monitor
	root    chi.Router

	quotes         *ttlcache.Cache[string, *bridge.Quote]
	lendBorrow     *ttlcache.Cache[string, *dashboard.LendBorrow]
	lendBorrowLock sync.Mutex
}

// NewPresenter builds the HTTP API. markets may be nil, the lend/borrow route then responds with 404.
func NewPresenter(logger logging.Logger, cfg *config.Config, tracker *monitor.Tracker, reader *bridge.Reader, markets *dashboard.Monitor) *Presenter {
	p := &Presenter{
		logger:  logger,
		cfg:     cfg,
		tracker: tracker,
		reader:  reader,
		markets: markets,
		root:    chi.NewMux(),
		quotes: ttlcache.New[string, *bridge.Quote](
			ttlcache.WithTTL[string, *bridge.Quote](cfg.Bridge.RefetchInterval),
			ttlcache.WithDisableTouchOnHit[string, *bridge.Quote](),
		),
		lendBorrow: ttlcache.New[string, *dashboard.LendBorrow](
			ttlcache.WithTTL[string, *dashboard.LendBorrow](lendBorrowTTL),
			ttlcache.WithDisableTouchOnHit[string, *dashboard.LendBorrow](),
		),
	}
	p.routes()
	return p
}

func (p *Presenter) routes() {
	p.root.Use(chimiddleware.Throttle(5))
	p.root.Use(chimiddleware.RequestID)
	p.root.Use(middleware.NewLoggerMiddleware(p.logger))
	p.root.Use(middleware.Recoverer)

	p.root.Get("/health", p.GetHealth)
	p.root.Route("/bridge", func(r chi.Router) {
		r.Get("/state", p.GetState)
		r.Get("/status", p.GetStatus)
		r.With(middleware.GetQuoteMiddleware(p.cfg)).Get("/quote", p.GetQuote)
		r.With(middleware.GetMessageIDMiddleware).Get("/history/{messageId}", p.GetHistory)
		r.Post("/clear", p.PostClear)
	})
	p.root.Get("/markets/lend-borrow", p.GetLendBorrow)
}

func (p *Presenter) Handler() http.Handler {
	return p.root
}

// Serve listens on addr until ctx is done, then shuts the server down.
func (p *Presenter) Serve(ctx context.Context, addr string) error {
	p.logger.WithField("addr", addr).Info("starting presenter service")
	go p.quotes.Start()
	go p.lendBorrow.Start()
	defer p.quotes.Stop()
	defer p.lendBorrow.Stop()

	srv := &http.Server{Addr: addr, Handler: p.root, ReadHeaderTimeout: shutdownTimeout}
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			p.logger.WithError(err).Warn("can't gracefully shutdown presenter")
		}
	}()
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("can't serve presenter: %w", err)
	}
	return nil
}

func (p *Presenter) GetHealth(w http.ResponseWriter, r *http.Request) {
	status := p.tracker.Status()
	render.JSON(w, r, http.StatusOK, &HealthResult{
		Status:   "ok",
		Tracking: status == entity.CCIPStatusPending || status == entity.CCIPStatusStored,
		CCIP:     status,
	})
}

func (p *Presenter) GetState(w http.ResponseWriter, r *http.Request) {
	render.JSON(w, r, http.StatusOK, p.tracker.Store().State())
}

func (p *Presenter) GetStatus(w http.ResponseWriter, r *http.Request) {
	state := p.tracker.Store().State()
	res := &StatusResult{
		Status:    p.tracker.Status(),
		Step:      state.Step,
		Completed: state.Step >= entity.StepCount,
		Deposit:   p.tracker.Deposit(),
		Links:     stateLinks(p.cfg.Bridge.SourceChain.ChainID, state),
	}
	if state.HasMessage() {
		res.MessageID = state.MessageID
	}
	render.JSON(w, r, http.StatusOK, res)
}

func (p *Presenter) GetQuote(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	q := middleware.GetQuoteContext(ctx)
	key := fmt.Sprintf("%s|%s|%s", q.Input.Amount, q.Input.Vault, q.Account.Hex())

	if item := p.quotes.Get(key); item != nil {
		render.JSON(w, r, http.StatusOK, item.Value())
		return
	}

	quote, err := bridge.NewQuote(ctx, p.cfg, p.reader, q.Input, q.Account)
	if err != nil {
		if errors.Is(err, bridge.ErrUnknownVault) {
			render.ErrorWithStatus(w, r, http.StatusNotFound, err)
			return
		}
		render.Error(w, r, fmt.Errorf("can't build quote: %w", err))
		return
	}
	if len(quote.Reads.Failed) == 0 {
		p.quotes.Set(key, quote, ttlcache.DefaultTTL)
	}
	render.JSON(w, r, http.StatusOK, quote)
}

func (p *Presenter) GetHistory(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	messageID := middleware.MessageID(ctx)

	updates, err := p.tracker.History(ctx, messageID)
	if err != nil {
		if errors.Is(err, monitor.ErrJournalDisabled) {
			render.ErrorWithStatus(w, r, http.StatusNotFound, err)
			return
		}
		render.Error(w, r, fmt.Errorf("can't find status updates: %w", err))
		return
	}

	res := &HistoryResult{
		MessageID: messageID,
		Updates:   updates,
	}
	for _, u := range updates {
		if u.TxHash != nil {
			res.Links = stateLinks(p.cfg.Bridge.SourceChain.ChainID, entity.BridgeState{MessageID: &res.MessageID, TxHash: u.TxHash})
			break
		}
	}
	if res.Links.Message == "" {
		res.Links = stateLinks(p.cfg.Bridge.SourceChain.ChainID, entity.BridgeState{MessageID: &res.MessageID})
	}
	render.JSON(w, r, http.StatusOK, res)
}

func (p *Presenter) PostClear(w http.ResponseWriter, r *http.Request) {
	p.tracker.Clear(r.Context())
	logging.LoggerFromContext(r.Context()).Info("cleared persisted bridge state")
	render.JSON(w, r, http.StatusOK, p.tracker.Store().State())
}

func (p *Presenter) GetLendBorrow(w http.ResponseWriter, r *http.Request) {
	if p.markets == nil {
		render.ErrorWithStatus(w, r, http.StatusNotFound, errors.New("lend/borrow monitor is not configured"))
		return
	}
	render.JSON(w, r, http.StatusOK, p.readLendBorrow(r.Context()))
}

func (p *Presenter) readLendBorrow(ctx context.Context) *dashboard.LendBorrow {
	p.lendBorrowLock.Lock()
	defer p.lendBorrowLock.Unlock()

	if item := p.lendBorrow.Get(lendBorrowKey); item != nil {
		return item.Value()
	}
	res := p.markets.Read(ctx)
	if len(res.Failed) == 0 {
		p.lendBorrow.Set(lendBorrowKey, res, ttlcache.DefaultTTL)
	}
	return res
}
