package cmd

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/oshokin/manifest-updater/internal/service/updater"
	"github.com/oshokin/manifest-updater/internal/version"
)

// tokenEnvVariable is where the optional bearer token is read from.
const tokenEnvVariable = "GITHUB_TOKEN"

var (
	// configPath to the optional configuration YAML file.
	configPath string

	// packageName is the label used in messages.
	packageName string

	// repository is the upstream repository identifier.
	repository string

	// assets is the architecture-to-filename mapping as a JSON string.
	assets string

	// manifestPath is the path to the manifest file.
	manifestPath string

	// skipCommit disables the final commit step.
	skipCommit bool

	// rootCmd represents the base command for updating a package manifest.
	rootCmd = &cobra.Command{
		Use:   "manifest-updater",
		Short: "Update a package manifest to the latest upstream release",
		Long:  "Detect a new upstream release, download and fingerprint its platform-specific assets, and rewrite the manifest's version and per-architecture download metadata. Designed for unattended automation: the manifest is never left corrupted or partially updated.",
		RunE: func(cmd *cobra.Command, _ []string) error {
			// Setup graceful shutdown handling.
			ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGTERM, syscall.SIGINT)
			defer stop()

			// Flag validation is done; runtime failures are not usage errors.
			cmd.SilenceUsage = true

			options := &updater.Options{
				ConfigPath:   configPath,
				Package:      packageName,
				Repository:   repository,
				Assets:       assets,
				ManifestPath: manifestPath,
				SkipCommit:   skipCommit,
				Token:        os.Getenv(tokenEnvVariable),
			}

			return updater.Run(ctx, options)
		},
	}
)

// Execute runs the manifest-updater CLI and exits with non-zero status on error.
func Execute() {
	version.AttachCobraVersionCommand(rootCmd)

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

//nolint:gochecknoinits // Required by Cobra CLI framework architecture.
func init() {
	// Setup command flags with consistent naming and descriptions.
	rootCmd.Flags().StringVarP(&packageName, "package", "p", "", "name of the package to update")
	rootCmd.Flags().StringVarP(&repository, "repo", "r", "", "upstream repository of the package, e.g. acme/widget")
	rootCmd.Flags().StringVarP(&assets, "assets", "a", "", "asset mapping as a JSON string, architecture to filename")
	rootCmd.Flags().StringVarP(&manifestPath, "manifest", "m", "", "path to the manifest file")
	rootCmd.Flags().BoolVar(&skipCommit, "skip-commit", false, "skip committing changes to the repository")
	rootCmd.Flags().StringVarP(&configPath, "config", "c", "", "path to configuration file (optional)")

	for _, flag := range []string{"package", "repo", "assets", "manifest"} {
		_ = rootCmd.MarkFlagRequired(flag)
	}
}
