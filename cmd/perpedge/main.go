package main

import (
	"fmt"
	"os"
	"time"

	"github.com/quantbr/perpedge/pkg/bot"
	"github.com/quantbr/perpedge/pkg/config"
	"github.com/quantbr/perpedge/pkg/exchange"
	"github.com/quantbr/perpedge/pkg/exchange/binance"
	"github.com/quantbr/perpedge/pkg/logger"
	zl "github.com/quantbr/perpedge/pkg/logger/zerolog"
	"github.com/quantbr/perpedge/pkg/notification"
	"github.com/quantbr/perpedge/pkg/storage"

	"github.com/spf13/cobra"
	"gorm.io/driver/sqlite"
)

const dateLayout = "2006-01-02"

// Command line flags
var (
	pairs     []string
	timeframe string
	size      float64

	pair       string
	days       int
	startDate  string
	endDate    string
	outputFile string

	inputFile string
)

func main() {
	rootCmd := &cobra.Command{
		Use:     "perpedge",
		Short:   "Perpetual futures trading agent with adaptive exits",
		Version: "1.0.0",
	}

	rootCmd.AddCommand(buildRunCmd())
	rootCmd.AddCommand(buildDownloadCmd())
	rootCmd.AddCommand(buildOptimizeCmd())

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newLogger() logger.Logger {
	log, err := zl.New("info", time.RFC3339, true, false)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	return log
}

func buildRunCmd() *cobra.Command {
	runCmd := &cobra.Command{
		Use:   "run",
		Short: "Run the trading agent",
		RunE:  runAgent,
	}

	runCmd.Flags().StringSliceVarP(&pairs, "pairs", "p", nil, "Trading pairs (e.g. BTC/USDT)")
	runCmd.Flags().StringVarP(&timeframe, "timeframe", "t", "1h", "Candle timeframe (e.g. 1h)")
	runCmd.Flags().Float64VarP(&size, "size", "s", 100, "Quote amount per entry")

	runCmd.MarkFlagRequired("pairs")

	return runCmd
}

func runAgent(cmd *cobra.Command, args []string) error {
	log := newLogger()

	appConfig, err := LoadAppConfig()
	if err != nil {
		return err
	}

	cfg := config.NewManager(appConfig.ConfigPath, log)

	options := []binance.FuturesOption{
		binance.WithFuturesCredentials(appConfig.Binance.APIKey, appConfig.Binance.SecretKey),
	}
	for _, p := range pairs {
		options = append(options,
			binance.WithFuturesLeverage(p, appConfig.Binance.Leverage, binance.MarginTypeIsolated))
	}

	futures, err := binance.NewFutures(cmd.Context(), options...)
	if err != nil {
		return fmt.Errorf("failed to connect to the exchange: %w", err)
	}

	store, err := storage.FromSQL(sqlite.Open(appConfig.StoragePath))
	if err != nil {
		return fmt.Errorf("failed to open position storage: %w", err)
	}
	defer store.Close()

	agent, err := bot.NewAgent(bot.Settings{
		Pairs:        pairs,
		Timeframe:    timeframe,
		PositionSize: size,
	}, futures, futures, cfg, log, bot.WithStorage(store))
	if err != nil {
		return err
	}

	if appConfig.Telegram.Enabled {
		telegram, err := notification.NewTelegram(agent, notification.Settings{
			Token: appConfig.Telegram.Token,
			Users: []int{appConfig.Telegram.UserID},
		})
		if err != nil {
			return fmt.Errorf("failed to start telegram service: %w", err)
		}
		agent.SetNotifier(telegram)
		telegram.Start()
	}

	return agent.Run(cmd.Context())
}

func buildDownloadCmd() *cobra.Command {
	downloadCmd := &cobra.Command{
		Use:   "download",
		Short: "Download historical candle data",
		RunE:  runDownload,
	}

	downloadCmd.Flags().StringVarP(&pair, "pair", "p", "", "Trading pair (e.g. BTC/USDT)")
	downloadCmd.Flags().IntVarP(&days, "days", "d", 0, "Number of days to download (default 30 days)")
	downloadCmd.Flags().StringVarP(&startDate, "start", "s", "", "Start date (e.g. 2025-12-01)")
	downloadCmd.Flags().StringVarP(&endDate, "end", "e", "", "End date (e.g. 2025-12-31)")
	downloadCmd.Flags().StringVarP(&timeframe, "timeframe", "t", "", "Timeframe (e.g. 1h)")
	downloadCmd.Flags().StringVarP(&outputFile, "output", "o", "", "Output file path (e.g. ./btc.csv)")

	downloadCmd.MarkFlagRequired("pair")
	downloadCmd.MarkFlagRequired("timeframe")
	downloadCmd.MarkFlagRequired("output")

	return downloadCmd
}

func runDownload(cmd *cobra.Command, args []string) error {
	log := newLogger()

	futures, err := binance.NewFutures(cmd.Context())
	if err != nil {
		return err
	}

	options, err := buildDownloadOptions()
	if err != nil {
		return err
	}

	if info, err := futures.AssetsInfo(pair); err == nil {
		options = append(options, exchange.WithPrecision(info.QuotePrecision))
	}

	return exchange.NewDownloader(futures, log).Download(
		cmd.Context(),
		pair,
		timeframe,
		outputFile,
		options...,
	)
}

func buildDownloadOptions() ([]exchange.Option, error) {
	var options []exchange.Option

	if days > 0 {
		options = append(options, exchange.WithDays(days))
	}

	if startDate != "" || endDate != "" {
		if startDate == "" || endDate == "" {
			return nil, fmt.Errorf("start and end dates must be provided together")
		}

		start, err := time.Parse(dateLayout, startDate)
		if err != nil {
			return nil, fmt.Errorf("invalid start date format: %w", err)
		}

		end, err := time.Parse(dateLayout, endDate)
		if err != nil {
			return nil, fmt.Errorf("invalid end date format: %w", err)
		}

		options = append(options, exchange.WithInterval(start, end))
	}

	return options, nil
}

func buildOptimizeCmd() *cobra.Command {
	optimizeCmd := &cobra.Command{
		Use:   "optimize",
		Short: "Grid-search exit parameters over downloaded candles",
		RunE:  runOptimize,
	}

	optimizeCmd.Flags().StringVarP(&inputFile, "input", "i", "", "Candle CSV produced by the download command")
	optimizeCmd.Flags().StringVarP(&pair, "pair", "p", "", "Trading pair the candles belong to")

	optimizeCmd.MarkFlagRequired("input")
	optimizeCmd.MarkFlagRequired("pair")

	return optimizeCmd
}
