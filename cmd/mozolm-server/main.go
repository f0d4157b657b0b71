// mozolm-server serves character-level language model predictions over
// gRPC. Models come from a YAML config file or, for quick local runs,
// from flags describing a single model.
package main

import (
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"

	"github.com/RajanChettri/mozolm/internal/config"
	"github.com/RajanChettri/mozolm/internal/logger"
	"github.com/RajanChettri/mozolm/internal/server"
)

var (
	cfgPath     string
	addressURI  string
	modelType   string
	modelFile   string
	vocabFile   string
	maxOrder    int
	staticModel bool
	metricsAddr string
	logLevel    string
	logFormat   string
)

func buildConfig() (*config.ServerConfig, error) {
	if cfgPath != "" {
		cfg, err := config.LoadServer(cfgPath)
		if err != nil {
			return nil, err
		}
		if addressURI != "" {
			cfg.AddressURI = addressURI
		}
		return cfg, nil
	}
	cfg := &config.ServerConfig{
		AddressURI: addressURI,
		ModelHub: config.ModelHubConfig{
			MixtureType: config.MixtureSingle,
			Models: []config.ModelConfig{{
				Type: config.ModelType(modelType),
				Storage: config.StorageConfig{
					ModelFile:      modelFile,
					VocabularyFile: vocabFile,
					PPMOptions: config.PPMOptions{
						MaxOrder:    maxOrder,
						StaticModel: staticModel,
					},
				},
			}},
		},
	}
	config.InitServerDefaults(cfg)
	return cfg, nil
}

func run(cmd *cobra.Command, args []string) error {
	logger.Setup(logLevel, logFormat)
	log := logger.Log.Component("main")

	cfg, err := buildConfig()
	if err != nil {
		return err
	}

	if metricsAddr != "" {
		go func() {
			http.Handle("/metrics", promhttp.Handler())
			log.Info("metrics serving", "addr", metricsAddr+"/metrics")
			if err := http.ListenAndServe(metricsAddr, nil); err != nil {
				log.Error("metrics server", "error", err.Error())
			}
		}()
	}

	srv, err := server.New(*cfg)
	if err != nil {
		return err
	}
	if err := srv.Run(false); err != nil {
		return err
	}
	log.Info("server started", "address", cfg.AddressURI,
		"port", srv.SelectedPort(), "models", len(cfg.ModelHub.Models))

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	sig := <-sigChan
	log.Info("shutting down", "signal", sig.String())
	srv.Stop()
	return nil
}

func main() {
	rootCmd := &cobra.Command{
		Use:           "mozolm-server",
		Short:         "Character-level language model server",
		RunE:          run,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	flags := rootCmd.Flags()
	flags.StringVar(&cfgPath, "config", "", "YAML server config file")
	flags.StringVar(&addressURI, "address", "",
		"listen address, host:port or unix://<path> (overrides config)")
	flags.StringVar(&modelType, "model-type", string(config.ModelPPM),
		"model type when no config file is given (uniform, char_ngram, ppm)")
	flags.StringVar(&modelFile, "model-file", "", "model or training text file")
	flags.StringVar(&vocabFile, "vocab-file", "", "one-character-per-line vocabulary")
	flags.IntVar(&maxOrder, "max-order", 4, "maximum PPM context order")
	flags.BoolVar(&staticModel, "static", false, "freeze PPM counts after training")
	flags.StringVar(&metricsAddr, "metrics", ":9090",
		"Prometheus metrics address, empty disables")
	flags.StringVar(&logLevel, "log-level", "info", "log level")
	flags.StringVar(&logFormat, "log-format", "console", "log format (console or json)")

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}
