package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/rs/zerolog"
	"github.com/urfave/cli/v3"

	"github.com/justestif/go-spotify-history/internal/auth"
	"github.com/justestif/go-spotify-history/internal/catalog"
	"github.com/justestif/go-spotify-history/internal/config"
	"github.com/justestif/go-spotify-history/internal/db"
	"github.com/justestif/go-spotify-history/internal/history"
	"github.com/justestif/go-spotify-history/internal/library"
	"github.com/justestif/go-spotify-history/internal/logging"
	"github.com/justestif/go-spotify-history/internal/poller"
	"github.com/justestif/go-spotify-history/internal/spotify"
	"github.com/justestif/go-spotify-history/internal/storage"
	"github.com/justestif/go-spotify-history/internal/supervisor"
	"github.com/justestif/go-spotify-history/internal/web"
)

// app holds the wired components for one command invocation.
type app struct {
	cfg     *config.Config
	log     zerolog.Logger
	store   *db.Store
	manager *auth.Manager
	authn   *auth.Authenticator
	cache   *auth.TokenCache
	remote  *spotify.Client
	catalog *catalog.Cache
	history *history.Log
	library *library.Library
}

// loadBase reads configuration, builds the logger and opens the store.
func loadBase(ctx context.Context, cmd *cli.Command) (*app, error) {
	cfg, err := config.Load(cmd.String("config"))
	if err != nil {
		return nil, fmt.Errorf("loading config: %w", err)
	}

	log := logging.New(logging.Config{Level: cfg.Log.Level, Format: cfg.Log.Format})

	store, err := storage.OpenAndMigrate(ctx, cfg.Database)
	if err != nil {
		return nil, err
	}
	return &app{cfg: cfg, log: log, store: store}, nil
}

// newApp wires every component that talks to Spotify.
func newApp(ctx context.Context, cmd *cli.Command) (*app, error) {
	a, err := loadBase(ctx, cmd)
	if err != nil {
		return nil, err
	}
	if err := a.cfg.RequireSpotify(); err != nil {
		a.store.Close()
		return nil, err
	}
	sp := a.cfg.Spotify

	a.cache = a.tokenCache()
	a.authn = auth.NewAuthenticator(sp.ClientID, sp.ClientSecret, sp.RedirectURI)
	a.manager = auth.NewManager(a.store.Tokens,
		auth.NewOAuthRefresher(sp.ClientID, sp.ClientSecret, "", sp.RequestTimeout),
		auth.WithTokenCache(a.cache),
		auth.WithLogger(logging.Component(a.log, "auth")),
	)
	a.remote = spotify.New(
		spotify.WithTimeout(sp.RequestTimeout),
		spotify.WithRateLimit(sp.RateLimit),
		spotify.WithLogger(logging.Component(a.log, "spotify")),
	)
	a.catalog = catalog.New(a.store, a.manager, a.remote, sp.UserID, logging.Component(a.log, "catalog"))
	a.history = history.New(a.store.History, logging.Component(a.log, "history"))
	a.library = library.New(a.manager, a.remote, a.catalog, a.history, sp.UserID,
		library.WithLogger(logging.Component(a.log, "library")),
	)
	return a, nil
}

func (a *app) tokenCache() *auth.TokenCache {
	if a.cfg.TokenCachePath != "" {
		return auth.NewTokenCache(a.cfg.TokenCachePath)
	}
	cache, err := auth.DefaultTokenCache()
	if err != nil {
		a.log.Warn().Err(err).Msg("token cache disabled")
		return nil
	}
	return cache
}

func (a *app) poller() *poller.Poller {
	return poller.New(a.manager, a.remote, a.catalog, a.history, a.cfg.Spotify.UserID,
		poller.WithInterval(a.cfg.Poll.Interval),
		poller.WithTickTimeout(a.cfg.Poll.Timeout),
		poller.WithLogger(logging.Component(a.log, "poller")),
	)
}

func (a *app) close() {
	a.store.Close()
}

func runServe(ctx context.Context, cmd *cli.Command) error {
	a, err := newApp(ctx, cmd)
	if err != nil {
		return err
	}
	defer a.close()

	server := web.NewServer(web.ServerConfig{
		Addr:      a.cfg.HTTP.Addr,
		RateLimit: a.cfg.HTTP.RateLimit,
		UserID:    a.cfg.Spotify.UserID,
		Logger:    logging.Component(a.log, "http"),
	}, a.library, a.authn, a.manager)

	tree := supervisor.New("spotify-history", supervisor.DefaultConfig(), logging.Component(a.log, "supervisor"))
	tree.Add(a.poller())
	tree.Add(server)

	a.log.Info().
		Str("addr", a.cfg.HTTP.Addr).
		Dur("interval", a.cfg.Poll.Interval).
		Msg("spotify-history started")
	return ignoreCanceled(tree.Serve(ctx))
}

func runPoll(ctx context.Context, cmd *cli.Command) error {
	a, err := newApp(ctx, cmd)
	if err != nil {
		return err
	}
	defer a.close()

	p := a.poller()
	if cmd.Bool("once") {
		outcome, err := p.Tick(ctx)
		fmt.Fprintln(os.Stdout, outcome)
		return err
	}
	return ignoreCanceled(p.Run(ctx))
}

func runLogin(ctx context.Context, cmd *cli.Command) error {
	a, err := newApp(ctx, cmd)
	if err != nil {
		return err
	}
	defer a.close()

	return a.authn.Login(ctx, a.manager, a.cfg.Spotify.UserID, a.cache, os.Stdout, logging.Component(a.log, "auth"))
}

func runHistory(ctx context.Context, cmd *cli.Command) error {
	a, err := newApp(ctx, cmd)
	if err != nil {
		return err
	}
	defer a.close()

	page, err := a.library.HistoryPage(ctx, cmd.Int("limit"), cmd.Int("offset"))
	if err != nil {
		return err
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "PLAYED AT (UTC)\tTRACK\tARTIST\tALBUM")
	for _, e := range page.Items {
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\n",
			e.Event.Time().Format("2006-01-02 15:04:05"),
			e.Track.Name,
			e.Track.ArtistName,
			e.Track.Album,
		)
	}
	if err := w.Flush(); err != nil {
		return err
	}
	fmt.Fprintf(os.Stdout, "\n%d of %d plays\n", len(page.Items), page.Total)
	return nil
}

func runMigrate(ctx context.Context, cmd *cli.Command) error {
	a, err := loadBase(ctx, cmd)
	if err != nil {
		return err
	}
	defer a.close()

	a.log.Info().Str("driver", a.cfg.Database.Driver).Msg("schema is up to date")
	return nil
}

// ignoreCanceled treats shutdown by signal as success.
func ignoreCanceled(err error) error {
	if err == nil || errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}
