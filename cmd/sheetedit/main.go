// Command sheetedit serves and inspects commission records kept in a shared spreadsheet.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	sheetedit "github.com/ideamans/go-sheetedit"
	"github.com/ideamans/go-sheetedit/adapters/googlesheets"
	"github.com/ideamans/go-sheetedit/internal/config"
)

// version is overridden at build time with -ldflags "-X main.version=..."
var version = "dev"

var (
	// configFile is set by the --config flag
	configFile string
	verbose    bool

	cfg    *config.Config
	client *sheetedit.Client
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:   "sheetedit",
	Short: "Per-salesperson editor for commission records in a spreadsheet",
	Long: `sheetedit loads a commission sheet, shows each salesperson only their own
rows and writes their edits back as row-level updates.`,
	SilenceUsage:      true,
	PersistentPreRunE: setup,
	PersistentPostRunE: func(cmd *cobra.Command, args []string) error {
		if client != nil {
			return client.Close()
		}
		return nil
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configFile, "config", "", "config file (default: ./sheetedit.yaml)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "verbose logging")

	rootCmd.AddCommand(versionCmd)
	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(worksheetsCmd)
	rootCmd.AddCommand(showCmd)
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the version number",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Printf("sheetedit %s\n", version)
	},
}

// setup configures logging, loads the config and builds the client
func setup(cmd *cobra.Command, args []string) error {
	log.SetFormatter(&log.TextFormatter{
		FullTimestamp: true,
	})
	if verbose {
		log.SetLevel(log.DebugLevel)
	}

	if cmd.Name() == "version" {
		return nil
	}

	var err error
	cfg, err = config.Load(configFile)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	dial, err := cfg.Dialer()
	if err != nil {
		return err
	}
	if cfg.Backend == config.BackendSheets {
		logServiceAccount(cfg.CredentialsFile)
	}

	client = sheetedit.NewWithDialer(dial, cfg.ClientConfig(log.StandardLogger()))
	return nil
}

// logServiceAccount tells which account the sheet must be shared with
func logServiceAccount(path string) {
	if path == "" {
		path = os.Getenv("GOOGLE_APPLICATION_CREDENTIALS")
	}
	if path == "" {
		return
	}
	data, err := os.ReadFile(path)
	if err != nil {
		log.WithError(err).Warn("cannot read credentials file")
		return
	}
	key, err := googlesheets.ParseServiceAccountJSON(data)
	if err != nil {
		log.WithError(err).Warn("credentials file is not a service account key")
		return
	}
	log.WithField("email", key.ClientEmail).Info("using service account; share the spreadsheet with this address")
}
