package main

import (
	"fmt"
	"net/http"
	"os"
	"time"

	"github.com/iov-one/treasury"
	"github.com/iov-one/treasury/store"
	"github.com/iov-one/treasury/x/cash"
	"github.com/iov-one/treasury/x/factory"
	"github.com/iov-one/treasury/x/sigs"
	"github.com/kelseyhightower/envconfig"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/tendermint/tendermint/libs/log"
)

// configuration is loaded from TREASURY_* environment variables.
type configuration struct {
	HTTP         string        `envconfig:"HTTP" default:":8000"`
	LogLevel     string        `envconfig:"LOG_LEVEL" default:"info"`
	Minter       string        `envconfig:"MINTER"`
	Metrics      bool          `envconfig:"METRICS" default:"true"`
	Debug        bool          `envconfig:"DEBUG" default:"false"`
	MaxClockSkew time.Duration `envconfig:"MAX_CLOCK_SKEW" default:"5m"`
}

func main() {
	logger := log.NewTMLogger(log.NewSyncWriter(os.Stdout)).With("module", "treasuryd")

	var conf configuration
	if err := envconfig.Process("treasury", &conf); err != nil {
		logger.Error("cannot load configuration", "err", err)
		os.Exit(2)
	}

	if err := run(conf, logger); err != nil {
		logger.Error("treasuryd failed", "err", err)
		os.Exit(1)
	}
}

func run(conf configuration, logger log.Logger) error {
	opt, err := log.AllowLevel(conf.LogLevel)
	if err != nil {
		return fmt.Errorf("log level: %s", err)
	}
	logger = log.NewFilter(logger, opt)

	var minter treasury.Address
	if conf.Minter != "" {
		minter, err = treasury.ParseAddress(conf.Minter)
		if err != nil {
			return fmt.Errorf("minter: %s", err)
		}
	}

	app, err := newApp(store.MemStore(), minter, conf.Debug)
	if err != nil {
		return err
	}

	rt := app.routes()
	if conf.Metrics {
		rt.Handle("/metrics", promhttp.Handler())
	}
	handler := &SignatureAuth{
		Auth:      app.auth,
		Sequences: app.sigs,
		MaxSkew:   conf.MaxClockSkew,
		Logger:    logger,
		Next:      app.middleware(rt),
	}

	logger.Info("starting", "http", conf.HTTP, "version", treasury.Version(), "minter", minter)
	if err := http.ListenAndServe(conf.HTTP, handler); err != nil {
		return fmt.Errorf("http server: %s", err)
	}
	return nil
}

// app holds the process wide state shared by all handlers.
type app struct {
	auth     *treasury.CtxAuth
	sigs     *sigs.Controller
	ledger   *cash.Ledger
	registry *factory.Registry
	debug    bool
}

func newApp(db treasury.KVStore, minter treasury.Address, debug bool) (*app, error) {
	auth := &treasury.CtxAuth{Key: "treasuryd"}
	ledger := cash.NewLedger(store.NewPrefixStore(db, []byte("cash/")), auth, minter)
	registry, err := factory.NewRegistry(store.NewPrefixStore(db, []byte("factory/")), ledger, auth)
	if err != nil {
		return nil, fmt.Errorf("registry: %s", err)
	}
	return &app{
		auth:     auth,
		sigs:     sigs.NewController(store.NewPrefixStore(db, []byte("sigs/"))),
		ledger:   ledger,
		registry: registry,
		debug:    debug,
	}, nil
}

// middleware wraps the handler with the request logging and panic
// recovery. It expects the logger in the request context.
func (a *app) middleware(h http.Handler) http.Handler {
	return &Logging{Next: &Recovery{Next: h, Debug: a.debug}}
}

func (a *app) routes() *http.ServeMux {
	rt := http.NewServeMux()
	rt.Handle("/info", instrument("info", &InfoHandler{}))
	rt.Handle("/vaults", instrument("vaults", &VaultsHandler{Registry: a.registry, Debug: a.debug}))
	rt.Handle("/vaults/", instrument("vault", &VaultsHandler{Registry: a.registry, Debug: a.debug}))
	rt.Handle("/cash/", instrument("cash", &CashHandler{Ledger: a.ledger, Debug: a.debug}))
	rt.Handle("/sigs/", instrument("sigs", &SigsHandler{Sequences: a.sigs, Debug: a.debug}))
	rt.Handle("/", &DefaultHandler{})
	return rt
}
