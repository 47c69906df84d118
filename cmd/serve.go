package cmd

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/derickschaefer/carprice/internal/config"
	"github.com/derickschaefer/carprice/internal/pricing"
	"github.com/derickschaefer/carprice/internal/web"
)

var serveFlags struct {
	Listen     string
	SessionTTL string
	Record     bool
	LogJSON    bool
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the prediction page over HTTP",
	Long: `Start the web front end.

Every browser session gets its own page state: GET / mounts a fresh form and
loads the option catalog, POST / applies a selection change or requests a
prediction. GET /healthz reports the prediction service status.

Sessions live in memory and expire after --session-ttl of inactivity.

All sessions share one client to the prediction service, so a rate limit
applies to the whole server, not per visitor. serve therefore does not
throttle by default; set --rate or "rate" in the config file to cap the
total request rate. Requests over the cap wait for the limiter.`,
	Example: `  carprice serve
  carprice serve --listen 127.0.0.1:9000 --record
  carprice serve --log-json --api-url http://pricing:8000`,
	RunE: func(cmd *cobra.Command, args []string) error {
		deps, err := buildDeps()
		if err != nil {
			return err
		}
		defer deps.Close()

		addr := deps.Config.Listen
		if serveFlags.Listen != "" {
			addr = serveFlags.Listen
		}
		ttl := deps.Config.SessionTTL
		if serveFlags.SessionTTL != "" {
			d, err := time.ParseDuration(serveFlags.SessionTTL)
			if err != nil {
				return fmt.Errorf("invalid --session-ttl %q: %w", serveFlags.SessionTTL, err)
			}
			ttl = d
		}

		log := newLogger(cmd.ErrOrStderr(), deps.Config.Debug, serveFlags.LogJSON)
		opts := web.Options{
			Logger:      log,
			SessionTTL:  ttl,
			ServiceName: "carprice",
		}
		if serveFlags.Record {
			st, err := deps.RequireStore()
			if err != nil {
				return err
			}
			opts.Recorder = st
			log.Info("recording predictions", "db", st.Path())
		}

		limit := serveRate(deps.Config)
		client := pricing.NewClient(deps.Config.APIURL, deps.Config.Timeout, limit, deps.Config.Debug)
		if limit > 0 {
			log.Info("upstream rate limit shared by all sessions", "rate", limit)
		}

		srv, err := web.New(client, opts)
		if err != nil {
			return err
		}

		ctx, stop := signalContext(cmd.Context())
		defer stop()
		log.Info("prediction service", "api_url", client.BaseURL())
		return srv.ListenAndServe(ctx, addr)
	},
}

// serveRate is the request rate cap for the server's shared client: the
// configured rate when one was set explicitly, otherwise none.
func serveRate(cfg *config.Config) float64 {
	if cfg.RateSet {
		return cfg.Rate
	}
	return 0
}

func init() {
	rootCmd.AddCommand(serveCmd)

	f := serveCmd.Flags()
	f.StringVar(&serveFlags.Listen, "listen", "", "listen address (default: config listen or :8080)")
	f.StringVar(&serveFlags.SessionTTL, "session-ttl", "", "idle session lifetime (e.g. 30m; 0 keeps sessions forever)")
	f.BoolVar(&serveFlags.Record, "record", false, "store every successful prediction in the local history")
	f.BoolVar(&serveFlags.LogJSON, "log-json", false, "emit JSON logs")
}
