package calai

import (
	"os"
	"os/signal"
	"syscall"

	"github.com/gin-gonic/gin"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/yazinsai/cal-ai/internal/api"
	"github.com/yazinsai/cal-ai/internal/realtime"
	"github.com/yazinsai/cal-ai/internal/service"
)

var (
	serveAddr    string
	serveCatalog string
	serveOffline bool
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the HTTP API with live rollover notifications",
	RunE: func(cmd *cobra.Command, args []string) error {
		addr := cfg.Serve.Addr
		if serveAddr != "" {
			addr = serveAddr
		}
		catalog := service.DefaultCatalog()
		if serveCatalog != "" {
			var err error
			if catalog, err = service.LoadCatalog(serveCatalog); err != nil {
				return err
			}
		}
		if cfg.Log.Level != "debug" {
			gin.SetMode(gin.ReleaseMode)
		}

		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()
		return withStore(func(e *env) error {
			sched := service.NewResetScheduler(e.st, e.clk, logger)
			srv := api.NewServer(api.Deps{
				Store:      e.st,
				Clock:      e.clk,
				Scheduler:  sched,
				Estimator:  newEstimator(serveOffline),
				Hub:        realtime.NewHub(logger),
				Logger:     logger,
				Catalog:    catalog,
				UndoWindow: cfg.UndoWindow,
			})

			g, gctx := errgroup.WithContext(ctx)
			g.Go(func() error { return sched.Run(gctx) })
			g.Go(func() error { return srv.Serve(gctx, addr) })
			return g.Wait()
		})
	},
}

func init() {
	rootCmd.AddCommand(serveCmd)
	serveCmd.Flags().StringVar(&serveAddr, "addr", "", "Listen address (default from serve.addr)")
	serveCmd.Flags().StringVar(&serveCatalog, "catalog", "", "JSON file of candidate foods for suggestions")
	serveCmd.Flags().BoolVar(&serveOffline, "offline", false, "Use only the built-in target formula")
}
