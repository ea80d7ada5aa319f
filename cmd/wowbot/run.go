package main

import (
	"context"
	"fmt"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/ghetolay/WowBot/internal/api"
	"github.com/ghetolay/WowBot/internal/bot"
	"github.com/ghetolay/WowBot/internal/config"
	"github.com/ghetolay/WowBot/internal/crypto"
	"github.com/ghetolay/WowBot/internal/discord"
	"github.com/ghetolay/WowBot/internal/dispatch"
	"github.com/ghetolay/WowBot/internal/dynmsg"
	"github.com/ghetolay/WowBot/internal/logger"
	"github.com/ghetolay/WowBot/internal/metrics"
	"github.com/ghetolay/WowBot/internal/store/pebble"
	"github.com/ghetolay/WowBot/internal/store/sqlite"
)

const shutdownTimeout = 30 * time.Second

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Connect to Discord and serve rosters and events",
	RunE:  runBot,
}

func init() {
	f := runCmd.Flags()
	f.Bool("debug", false, "enable debug logging and gin debug mode")
	f.String("log-level", "", "log level (trace, debug, info, warn, error)")
	f.String("state-backend", "", "entity mirror: history, sqlite or pebble")
	f.String("state-path", "", "path of the sqlite file or pebble directory")
	f.String("api-addr", "", "admin API listen address")
	rootCmd.AddCommand(runCmd)
}

// overrides keeps only the flags set on the command line.
func overrides(cmd *cobra.Command) config.Overrides {
	var o config.Overrides
	f := cmd.Flags()
	str := func(name string) *string {
		if !f.Changed(name) {
			return nil
		}
		v, _ := f.GetString(name)
		return &v
	}
	o.LogLevel = str("log-level")
	o.StateBackend = str("state-backend")
	o.StatePath = str("state-path")
	o.APIAddr = str("api-addr")
	if f.Changed("debug") {
		v, _ := f.GetBool("debug")
		o.Debug = &v
	}
	return o
}

func loadConfig(cmd *cobra.Command, o config.Overrides) (*config.Config, error) {
	path, _ := cmd.Flags().GetString("config")
	cfg, err := config.Load(path, o)
	if err != nil {
		return nil, err
	}

	lvl, err := logger.ParseLevel(cfg.LogLevel)
	if err != nil {
		return nil, err
	}
	if cfg.Debug && lvl > logger.LevelDebug {
		lvl = logger.LevelDebug
	}
	logger.SetLevel(lvl)
	logger.SetJSON(!cfg.Debug)
	return cfg, nil
}

// state is the configured entity mirror. The repository is built by the bot
// around its history scanner, so opening errors surface after bot.New.
type state struct {
	cfg   *config.Config
	db    *sqlite.DB
	store *pebble.Store
	err   error
}

func (st *state) open() error {
	if st.cfg.State.Backend != config.BackendSQLite {
		return nil
	}
	logger.Infof("Opening database: %s", st.cfg.State.Path)
	db, err := sqlite.Open(st.cfg.State.Path)
	if err != nil {
		return err
	}
	st.db = db
	return nil
}

func (st *state) repository(s *dynmsg.Scanner) dynmsg.Repository {
	switch {
	case st.db != nil:
		return sqlite.NewRepository(st.db, s)
	case st.cfg.State.Backend == config.BackendPebble:
		logger.Infof("Opening store: %s", st.cfg.State.Path)
		st.store, st.err = pebble.Open(st.cfg.State.Path, s)
		if st.err == nil {
			return st.store
		}
	}
	return &dynmsg.HistoryRepository{Scanner: s}
}

func (st *state) close() {
	if st.db != nil {
		if err := st.db.Close(); err != nil {
			logger.Warnf("close database: %v", err)
		}
	}
	if err := st.store.Close(); err != nil {
		logger.Warnf("close store: %v", err)
	}
}

func runBot(cmd *cobra.Command, _ []string) error {
	cfg, err := loadConfig(cmd, overrides(cmd))
	if err != nil {
		return err
	}
	defer logger.Sync()
	logger.Debugf("config: %+v", cfg.Redacted())

	st := &state{cfg: cfg}
	if err := st.open(); err != nil {
		return err
	}
	defer st.close()

	session, err := discord.NewSession(cfg.Discord.Token)
	if err != nil {
		return err
	}
	client := discord.New(session)
	m := metrics.New()

	b := bot.New(bot.Options{Config: cfg, Client: client, Metrics: m, Repository: st.repository})
	if st.err != nil {
		return st.err
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	gw := discord.NewGateway(ctx, client, b.Router(), dispatch.NewQueue())
	gw.OnReady = b.Ready
	if err := gw.Open(); err != nil {
		return err
	}
	logger.Infof("WowBot %s connected", version)

	g, gctx := errgroup.WithContext(ctx)
	if cfg.API.Enabled {
		opts := api.Options{
			Addr:           cfg.API.Addr,
			AllowedOrigins: cfg.API.AllowedOrigins,
			Tracker:        b.Tracker(),
			Metrics:        m,
			Version:        version,
			Debug:          cfg.Debug,
		}
		if cfg.API.Auth {
			jwtManager, err := crypto.NewJWTManager(cfg.API.MasterSecret)
			if err != nil {
				return fmt.Errorf("create JWT manager: %w", err)
			}
			opts.JWT = jwtManager
		}
		srv := api.New(opts)
		g.Go(func() error { return srv.Run(gctx) })
	}
	g.Go(func() error {
		<-gctx.Done()
		return nil
	})

	runErr := g.Wait()
	logger.Infof("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := b.Shutdown(shutdownCtx); err != nil {
		logger.Warnf("shutdown: %v", err)
	}
	if err := gw.Close(); err != nil {
		logger.Warnf("%v", err)
	}
	return runErr
}
