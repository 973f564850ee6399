package cmd

import (
	"errors"
	"io/fs"
	"log"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"github.com/spigell/segcompare/internal/extract"
	"github.com/spigell/segcompare/internal/logger"
	"github.com/spigell/segcompare/internal/templates"
	"github.com/subosito/gotenv"
	"go.uber.org/zap"
)

const (
	app = "segcompare"
)

type Config struct {
	Templates *TemplatesConfig `mapstructure:"templates"`
	Extract   *ExtractConfig   `mapstructure:"extract"`
	Oracle    *OracleConfig    `mapstructure:"oracle"`
	History   *HistoryConfig   `mapstructure:"history"`
}

type TemplatesConfig struct {
	Dir string `mapstructure:"dir"`
}

type ExtractConfig struct {
	MaxFileSize int64 `mapstructure:"max-file-size"`
}

type OracleConfig struct {
	Provider     string         `mapstructure:"provider"`
	Timeout      time.Duration  `mapstructure:"timeout"`
	Workers      int            `mapstructure:"workers"`
	MaxLogLength int            `mapstructure:"max-log-length"`
	Options      map[string]any `mapstructure:"options"`
}

type HistoryConfig struct {
	Database string `mapstructure:"database"`
}

var (
	// Used for flags.
	cfgFile string

	rootCmd = &cobra.Command{
		Use:   app,
		Short: "segcompare splits documents into heading sections and compares filled documents against templates",
	}
)

// Execute executes the root command.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	viper.SetDefault("templates.dir", templates.DefaultDir)
	viper.SetDefault("extract.max-file-size", extract.DefaultMaxFileSize)
	viper.SetDefault("oracle.provider", "gemini")
	viper.SetDefault("oracle.timeout", 120*time.Second)
	viper.SetDefault("oracle.workers", 1)
	viper.SetDefault("oracle.max-log-length", 200)

	viper.SetEnvPrefix(app)
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	viper.AutomaticEnv()

	if err := viper.BindEnv("oracle.options.api-key-file", "SEGCOMPARE_API_KEY_FILE"); err != nil {
		log.Fatalf("binding SEGCOMPARE_API_KEY_FILE environment variable: %v", err)
	}

	cobra.OnInitialize(initConfig)

	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "a config file (default is segcompare.yaml in current directory)")
	rootCmd.PersistentFlags().BoolP("debug", "d", false, "verbose/debug output")
	rootCmd.PersistentFlags().BoolP("json", "j", false, "json format for logging")

	viper.BindPFlag("debug", rootCmd.PersistentFlags().Lookup("debug"))
	viper.BindPFlag("json", rootCmd.PersistentFlags().Lookup("json"))
}

func initConfig() {
	// A missing .env is fine, a broken one is not.
	if err := gotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		log.Fatalf("loading .env: %v", err)
	}

	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		viper.AddConfigPath(".")
		viper.SetConfigName(app)
		viper.SetConfigType("yaml")
	}

	err := viper.ReadInConfig()
	if err == nil {
		return
	}

	// The config file is optional unless it was given explicitly.
	var notFound viper.ConfigFileNotFoundError
	if cfgFile == "" && errors.As(err, &notFound) {
		return
	}

	log.Fatal(err)
}

func getConfig() (*Config, error) {
	var config *Config
	err := viper.Unmarshal(&config)
	if err != nil {
		return config, err
	}

	if config.Templates == nil {
		config.Templates = &TemplatesConfig{}
	}
	if config.Extract == nil {
		config.Extract = &ExtractConfig{}
	}
	if config.Oracle == nil {
		config.Oracle = &OracleConfig{}
	}
	if config.History == nil {
		config.History = &HistoryConfig{}
	}

	return config, nil
}

// setup builds the logger and the config every command starts with.
func setup() (*zap.Logger, *Config) {
	logger, err := logger.New(viper.GetBool("json"), viper.GetBool("debug"))
	if err != nil {
		log.Fatalf("creating a logger: %s", err)
	}

	config, err := getConfig()
	if err != nil {
		logger.Fatal("getting a config", zap.Error(err))
	}

	return logger, config
}

func newStore(config *Config, logger *zap.Logger) *templates.Store {
	return templates.NewStore(nil, config.Templates.Dir, logger)
}

func newExtractor(config *Config, logger *zap.Logger) *extract.Extractor {
	return extract.New(config.Extract.MaxFileSize, logger)
}
