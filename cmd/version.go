package cmd

import (
	"fmt"

	"github.com/parleychat/parley/internal/config"
	"github.com/parleychat/parley/internal/i18n"
	"github.com/spf13/cobra"
)

// Version information (injected at build time via ldflags)
var (
	AppVersion = "development"
	BuildTime  = "unknown"
	GitCommit  = "unknown"
)

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: i18n.T("version.description"),
	RunE:  runVersion,
}

func init() {
	rootCmd.AddCommand(versionCmd)
}

func runVersion(cmd *cobra.Command, args []string) error {
	fmt.Printf("%s %s\n", i18n.T("app.name"), AppVersion)
	fmt.Printf("Build Time: %s\n", BuildTime)
	fmt.Printf("Git Commit: %s\n", GitCommit)
	fmt.Println()

	// Version only needs the configuration, not the wired client.
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf(i18n.T("error.config"), err)
	}

	fmt.Println("Configuration:")
	fmt.Printf("  Server: %s\n", cfg.ServerURL)
	fmt.Printf("  Request timeout: %ds\n", cfg.RequestTimeout)
	fmt.Printf("  Context length: %d\n", cfg.ContextLength)
	fmt.Printf("  Upload caps: %d images, %d files\n", cfg.MaxUploadImages, cfg.MaxUploadFiles)
	fmt.Printf("  Sample rate: %d Hz\n", cfg.SampleRate)
	if cfg.Telemetry.Enabled() {
		fmt.Printf("  Tracing: %s\n", cfg.Telemetry.Endpoint)
	} else {
		fmt.Println("  Tracing: disabled")
	}
	return nil
}
