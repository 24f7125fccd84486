package cli

import (
	"context"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"portfolioapi/internal/api"
	"portfolioapi/internal/config"
	"portfolioapi/internal/exchange/binance"
	"portfolioapi/internal/exchange/bithumb"
	"portfolioapi/internal/exchange/okx"
	"portfolioapi/internal/exchange/ratelimit"
	"portfolioapi/internal/httpx"
	"portfolioapi/internal/logger"
	"portfolioapi/internal/price"
	"portfolioapi/internal/price/krwsource"
	"portfolioapi/internal/price/spot"

	"github.com/shopspring/decimal"
	"github.com/spf13/cobra"
)

var serverCmd = &cobra.Command{ //nolint:gochecknoglobals
	Use:   "server",
	Short: "Run the API server.",
	RunE: func(cmd *cobra.Command, _ []string) error {
		log := logger.New()

		cfg, err := config.Load()
		if err != nil {
			log.Error(cmd.Context(), "failed to load config", err)
			return err
		}

		httpClient := httpx.New(cfg.Server.UpstreamTimeout)

		chain := &price.Chain{
			Sources: krwsource.DefaultChain(httpClient),
			Timeout: cfg.Aggregation.RateSourceTimeout,
		}
		table := &spot.Fetcher{Client: httpClient}

		// Unconfigured venues stay nil; their routes answer with a
		// configuration error instead of calling out.
		var binanceClient api.BinanceAccount
		if cfg.BinanceCredentials().Configured() {
			c, err := binance.NewClient(cfg.BinanceCredentials(), httpClient,
				binance.WithGate(ratelimit.ForBudget(cfg.Binance.MaxRequestsPerMinute, cfg.Binance.Burst)))
			if err != nil {
				return err
			}
			// Best effort; signing still works on a synced-enough local clock.
			syncCtx, cancel := context.WithTimeout(cmd.Context(), 5*time.Second)
			if err := c.SyncTime(syncCtx); err != nil {
				log.Warn(cmd.Context(), "binance time sync failed", "error", err.Error())
			}
			cancel()
			binanceClient = c
		}
		var okxClient api.OKXAccount
		if creds := cfg.OKXCredentials(); creds.Configured() && creds.Passphrase != "" {
			c, err := okx.NewClient(creds, httpClient,
				okx.WithGate(ratelimit.ForBudget(cfg.OKX.MaxRequestsPerMinute, cfg.OKX.Burst)))
			if err != nil {
				return err
			}
			okxClient = c
		}
		var bithumbClient api.BithumbAccount
		if cfg.BithumbCredentials().Configured() {
			c, err := bithumb.NewClient(cfg.BithumbCredentials(), httpClient,
				bithumb.WithGate(ratelimit.ForBudget(cfg.Bithumb.MaxRequestsPerMinute, cfg.Bithumb.Burst)))
			if err != nil {
				return err
			}
			bithumbClient = c
		}

		handler := api.NewHandler(chain, table, binanceClient, okxClient, bithumbClient, api.Options{
			MinUSD:          decimal.NewFromFloat(cfg.Aggregation.MinUSD),
			TopN:            cfg.Aggregation.TopN,
			UpstreamTimeout: cfg.Server.UpstreamTimeout,
		}, log)

		srv := &http.Server{
			Addr:              ":" + cfg.Server.Port,
			Handler:           handler.Routes(),
			ReadHeaderTimeout: 5 * time.Second,
			ReadTimeout:       cfg.Server.RequestTimeout,
			WriteTimeout:      cfg.Server.RequestTimeout + 5*time.Second,
			IdleTimeout:       60 * time.Second,
		}

		errChan := make(chan error, 1)
		go func() {
			log.Info(cmd.Context(), "server listening", "port", cfg.Server.Port)
			if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				errChan <- err
			}
		}()

		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		select {
		case <-ctx.Done():
			log.Info(context.Background(), "shutting down")
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if err := srv.Shutdown(shutdownCtx); err != nil {
				log.Error(context.Background(), "forced shutdown", err)
				return err
			}
			log.Info(context.Background(), "server stopped")
		case err := <-errChan:
			log.Error(context.Background(), "server error", err)
			return err
		}
		return nil
	},
}

func init() { //nolint:gochecknoinits
	rootCmd.AddCommand(serverCmd)
}
