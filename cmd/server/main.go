package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/Brownie44l1/fabric-inspector/internal/config"
	"github.com/Brownie44l1/fabric-inspector/internal/logging"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
)

// Version is the application version.
const Version = "0.2.0"

var (
	cfgFile string
	cfg     config.Config
	logger  zerolog.Logger

	// flag values; applied over the loaded config only when set explicitly
	flagModel     string
	flagMetadata  string
	flagORTLib    string
	flagUploads   string
	flagAnnotated string
	flagDB        string
	flagLogLevel  string
	flagPretty    bool
	flagTopK      int
)

var rootCmd = &cobra.Command{
	Use:           "fabric-inspector",
	Short:         "Classify fabric defects in uploaded images",
	Version:       Version,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		var err error
		cfg, err = config.Load(cfgFile)
		if err != nil {
			return err
		}

		applyFlags(cmd)

		if err := cfg.Validate(); err != nil {
			return fmt.Errorf("invalid configuration: %w", err)
		}

		logger = logging.New(os.Stderr, cfg.LogLevel, cfg.PrettyLogs)
		return nil
	},
}

func applyFlags(cmd *cobra.Command) {
	flags := cmd.Flags()
	set := func(name string, dst *string, v string) {
		if flags.Changed(name) {
			*dst = v
		}
	}

	set("model", &cfg.ModelPath, flagModel)
	set("metadata", &cfg.MetadataPath, flagMetadata)
	set("onnxruntime-lib", &cfg.SharedLibraryPath, flagORTLib)
	set("upload-dir", &cfg.UploadDir, flagUploads)
	set("annotated-dir", &cfg.AnnotatedDir, flagAnnotated)
	set("db", &cfg.DatabaseURL, flagDB)
	set("log-level", &cfg.LogLevel, flagLogLevel)

	if flags.Changed("pretty") {
		cfg.PrettyLogs = flagPretty
	}
	if flags.Changed("top-k") {
		cfg.TopK = flagTopK
	}
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	rootCmd.SetVersionTemplate(`{{printf "%s\n" .Version}}`)

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	pf := rootCmd.PersistentFlags()
	pf.StringVarP(&cfgFile, "config", "c", "", "YAML config file")
	pf.StringVar(&flagModel, "model", "", "Path to the .onnx classifier (default models/model.onnx)")
	pf.StringVar(&flagMetadata, "metadata", "", "Path to the model metadata JSON (default models/model_metadata.json)")
	pf.StringVar(&flagORTLib, "onnxruntime-lib", "", "Path to the onnxruntime shared library")
	pf.StringVar(&flagUploads, "upload-dir", "", "Directory for original uploads (default static/uploads)")
	pf.StringVar(&flagAnnotated, "annotated-dir", "", "Directory for annotated copies (default static/annotated)")
	pf.StringVar(&flagDB, "db", "", "PostgreSQL connection string for prediction history")
	pf.StringVar(&flagLogLevel, "log-level", "", "Log level (debug, info, warn, error)")
	pf.BoolVar(&flagPretty, "pretty", false, "Human readable console logs")
	pf.IntVarP(&flagTopK, "top-k", "k", 0, "Number of ranked labels per image (default 5)")
}
