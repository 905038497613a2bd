package main

import (
	"errors"
	"fmt"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"sync"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/urfave/cli/v2"
	"golang.org/x/crypto/bcrypt"
	"golang.org/x/time/rate"

	"albumlog/internal/discogs"
	"albumlog/internal/metadata"
	"albumlog/internal/musicbrainz"
	"albumlog/internal/upstream"
)

func main() {
	err := godotenv.Load()
	if os.IsNotExist(err) {
		log.Printf("no .env file found, skipping")
	} else if err != nil {
		log.Fatalf("failed loading .env file: %s", err)
	}

	app := cli.NewApp()
	app.Name = "albumlog"
	app.Usage = "Shared album log with ratings, notes and automatic metadata."
	app.Flags = []cli.Flag{
		&cli.IntFlag{
			Name:    "port",
			Value:   8080,
			Usage:   "port to run server on",
			EnvVars: []string{"ALBUMLOG_PORT"},
		},
		&cli.StringFlag{
			Name:    "database",
			Value:   "albumlog.db",
			Usage:   "sqlite database file, or a postgres DSN",
			EnvVars: []string{"ALBUMLOG_DATABASE"},
		},
		&cli.StringFlag{
			Name:    "metadata-provider",
			Value:   discogs.Name,
			Usage:   "metadata provider: discogs or musicbrainz",
			EnvVars: []string{"ALBUMLOG_METADATA_PROVIDER"},
		},
		&cli.StringFlag{
			Name:    "search-strategy",
			Value:   "strict",
			Usage:   "metadata search cascade: strict or extended",
			EnvVars: []string{"ALBUMLOG_SEARCH_STRATEGY"},
		},
		&cli.StringFlag{
			Name:    "preferred-country",
			Usage:   "country used to scope artist-only searches of the extended cascade",
			EnvVars: []string{"ALBUMLOG_PREFERRED_COUNTRY"},
		},
		&cli.StringFlag{
			Name:    "discogs-token",
			Usage:   "discogs personal access token",
			EnvVars: []string{"DISCOGS_TOKEN"},
		},
		&cli.StringFlag{
			Name:    "user-agent",
			Value:   "albumlog/1.0",
			Usage:   "user agent sent to metadata providers",
			EnvVars: []string{"ALBUMLOG_USER_AGENT"},
		},
		&cli.DurationFlag{
			Name:    "upstream-timeout",
			Value:   15 * time.Second,
			Usage:   "timeout of a single metadata provider request",
			EnvVars: []string{"ALBUMLOG_UPSTREAM_TIMEOUT"},
		},
		&cli.StringFlag{
			Name:    "username",
			Usage:   "login username; authentication is disabled when empty",
			EnvVars: []string{"ALBUMLOG_USERNAME"},
		},
		&cli.StringFlag{
			Name:    "password-hash",
			Usage:   "bcrypt hash of the login password, see the hash-password command",
			EnvVars: []string{"ALBUMLOG_PASSWORD_HASH"},
		},
		&cli.StringFlag{
			Name:    "jwt-secret",
			Usage:   "secret used to sign session tokens",
			EnvVars: []string{"ALBUMLOG_JWT_SECRET"},
		},
		&cli.StringFlag{
			Name:    "api-token",
			Usage:   "static token accepted as \"Authorization: Token <token>\"",
			EnvVars: []string{"ALBUMLOG_API_TOKEN"},
		},
		&cli.StringSliceFlag{
			Name:    "cors-origin",
			Value:   cli.NewStringSlice("*"),
			Usage:   "allowed CORS origin or comma-separated origins",
			EnvVars: []string{"ALBUMLOG_CORS_ORIGINS"},
		},
		&cli.StringFlag{
			Name:    "log-level",
			Value:   "info",
			Usage:   "log level: debug, info, warn or error",
			EnvVars: []string{"ALBUMLOG_LOG_LEVEL"},
		},
	}
	app.Commands = []*cli.Command{
		{
			Name:      "hash-password",
			Usage:     "print the bcrypt hash of a password",
			ArgsUsage: "<password>",
			Action: func(ctx *cli.Context) error {
				if ctx.NArg() != 1 {
					return errors.New("expected exactly one password argument")
				}
				hash, err := bcrypt.GenerateFromPassword([]byte(ctx.Args().First()), bcrypt.DefaultCost)
				if err != nil {
					return err
				}
				fmt.Println(string(hash))
				return nil
			},
		},
	}
	app.Action = func(ctx *cli.Context) error {
		err := setupLogging(ctx.String("log-level"))
		if err != nil {
			return err
		}

		db, err := newDatabase(ctx.String("database"))
		if err != nil {
			return fmt.Errorf("opening database: %w", err)
		}
		defer db.Close()

		provider, err := newProvider(ctx)
		if err != nil {
			return err
		}
		if err := provider.Ready(); err != nil {
			slog.Warn("metadata lookups will fail", "provider", provider.Name(), "error", err)
		}

		strategies, err := metadata.ParseStrategies(ctx.String("search-strategy"))
		if err != nil {
			return err
		}

		resolver := metadata.NewResolver(provider, db, metadata.Config{
			Strategies: strategies,
			Country:    ctx.String("preferred-country"),
		})

		handler, err := newServer(serverConfig{
			Username:     ctx.String("username"),
			PasswordHash: ctx.String("password-hash"),
			JWTSecret:    ctx.String("jwt-secret"),
			APIToken:     ctx.String("api-token"),
			CORSOrigins:  ctx.StringSlice("cors-origin"),
		}, db, resolver)
		if err != nil {
			return err
		}

		// Start HTTP handler.
		quit := make(chan os.Signal, 2)
		var wg sync.WaitGroup
		wg.Add(1)

		server := &http.Server{Addr: ":" + strconv.Itoa(ctx.Int("port")), Handler: handler}

		go func() {
			defer wg.Done()

			slog.Info("serving", "address", server.Addr, "provider", provider.Name())

			err := server.ListenAndServe()
			if err != nil && !errors.Is(err, http.ErrServerClosed) {
				fmt.Fprintf(os.Stderr, "failed to start server: %s\n", err)
				quit <- os.Interrupt
			}
		}()

		signal.Notify(
			quit,
			syscall.SIGINT,
			syscall.SIGTERM,
			syscall.SIGHUP,
		)
		<-quit

		slog.Info("Server shutting down...")

		go server.Close()

		wg.Wait()
		return nil
	}

	err = app.Run(os.Args)
	if err != nil {
		log.Fatal(err)
	}
}

type providerConfig struct {
	Name         string
	DiscogsToken string
	UserAgent    string
	Timeout      time.Duration
}

func newProvider(ctx *cli.Context) (metadata.Provider, error) {
	return buildProvider(providerConfig{
		Name:         ctx.String("metadata-provider"),
		DiscogsToken: ctx.String("discogs-token"),
		UserAgent:    ctx.String("user-agent"),
		Timeout:      ctx.Duration("upstream-timeout"),
	})
}

func buildProvider(cfg providerConfig) (metadata.Provider, error) {
	switch cfg.Name {
	case discogs.Name:
		hc := upstream.NewClient(upstreamConfig(cfg.Name, cfg))
		return discogs.NewClient(discogs.BaseURL, cfg.DiscogsToken, hc), nil
	case musicbrainz.Name:
		hc := upstream.NewClient(upstreamConfig(cfg.Name, cfg))
		coverHC := upstream.NewClient(upstreamConfig(coverArtName, cfg))
		return musicbrainz.NewClient(musicbrainz.BaseURL, musicbrainz.CoverArtBaseURL, hc, coverHC), nil
	}
	return nil, fmt.Errorf("unknown metadata provider %q", cfg.Name)
}

const coverArtName = "coverartarchive"

// upstreamConfig sizes the transport of one upstream host.
func upstreamConfig(name string, cfg providerConfig) upstream.Config {
	out := upstream.Config{
		Name:      name,
		UserAgent: cfg.UserAgent,
		Timeout:   cfg.Timeout,
		Rate:      rate.Every(time.Second),
		Burst:     1,
	}
	if name == discogs.Name {
		// Authenticated clients get 60 requests a minute.
		out.Burst = 5
	}
	return out
}

func setupLogging(level string) error {
	var lvl slog.Level
	err := lvl.UnmarshalText([]byte(level))
	if err != nil {
		return fmt.Errorf("invalid log level %q", level)
	}

	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: lvl})))
	return nil
}
