package main

import (
	"github.com/spf13/viper"
)

// Default paths
const (
	DefaultConfigPath  = "./perpedge.json"
	DefaultStoragePath = "./perpedge.sqlite"
)

// AppConfig holds the application configuration
type AppConfig struct {
	Binance     BinanceConfig
	Telegram    TelegramConfig
	ConfigPath  string
	StoragePath string
}

// BinanceConfig holds Binance exchange configuration
type BinanceConfig struct {
	APIKey    string
	SecretKey string
	Leverage  int
}

// TelegramConfig holds Telegram notification configuration
type TelegramConfig struct {
	Enabled bool
	Token   string
	UserID  int
}

// LoadAppConfig loads application configuration from the environment
func LoadAppConfig() (*AppConfig, error) {
	viper.AutomaticEnv()

	viper.SetDefault("CONFIG_PATH", DefaultConfigPath)
	viper.SetDefault("STORAGE_PATH", DefaultStoragePath)
	viper.SetDefault("BINANCE_LEVERAGE", 1)
	viper.SetDefault("TELEGRAM_ENABLED", false)

	config := &AppConfig{
		Binance: BinanceConfig{
			APIKey:    viper.GetString("BINANCE_API_KEY"),
			SecretKey: viper.GetString("BINANCE_SECRET_KEY"),
			Leverage:  viper.GetInt("BINANCE_LEVERAGE"),
		},
		Telegram: TelegramConfig{
			Enabled: viper.GetBool("TELEGRAM_ENABLED"),
			Token:   viper.GetString("TELEGRAM_TOKEN"),
			UserID:  viper.GetInt("TELEGRAM_USER"),
		},
		ConfigPath:  viper.GetString("CONFIG_PATH"),
		StoragePath: viper.GetString("STORAGE_PATH"),
	}

	return config, nil
}
