package cmd

import (
	"fmt"
	"os"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

var (
	// Flags
	cfgFile string
	debug   bool

	// Root command
	rootCmd = &cobra.Command{
		Use:   "dn-service",
		Short: "Delivery Note Service",
		Long: `Delivery Note Service for supplier-side shipment reconciliation.

Functions:
- Serve delivery note snapshots and accept quantity submissions over a REST HTTP server
- Track multi-wave confirmations: the first confirmation and later outstanding waves
- Publish accepted submissions to the cloud ERP and index them for reporting
- Drive a delivery note through its reconciliation steps from the command line`,
	}
)

// Execute executes the root command
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Println(err)
		os.Exit(1)
	}
}

func init() {
	cobra.OnInitialize(initConfig)

	// Persistent flags
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is ./config.yaml)")
	rootCmd.PersistentFlags().BoolVar(&debug, "debug", false, "enable debug logging")

	// Add commands
	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(migrateCmd)
	rootCmd.AddCommand(confirmCmd)
	rootCmd.AddCommand(openWaveCmd)
	rootCmd.AddCommand(submitWaveCmd)
	rootCmd.AddCommand(cancelCmd)
}

// initConfig initializes the configuration
func initConfig() {
	// Setup logging
	if debug {
		logrus.SetLevel(logrus.DebugLevel)
	} else {
		logrus.SetLevel(logrus.InfoLevel)
	}

	logrus.SetFormatter(&logrus.TextFormatter{
		FullTimestamp: true,
	})
}
