package cli

import (
	"fmt"
	"log/slog"
	"slices"

	"github.com/spf13/cobra"

	"github.com/roach88/settingsync/internal/config"
)

// RootOptions holds global flags for all commands.
type RootOptions struct {
	Verbose bool
	Format  string // "json" | "text"

	ConfigPath  string
	Server      string
	Bucket      string
	Collection  string
	Storage     string
	StoragePath string
	TrustLocal  bool
	SyncIfEmpty bool
	Verifier    string
	RootHash    string
	DNSName     string

	logger *slog.Logger
}

// ValidFormats defines the allowed output formats.
var ValidFormats = []string{"text", "json"}

// NewRootCommand creates the root command for the settingsync CLI.
func NewRootCommand() *cobra.Command {
	opts := &RootOptions{}

	cmd := &cobra.Command{
		Use:   "settingsync",
		Short: "settingsync - Remote Settings sync client",
		Long: `Keep a local copy of a Remote Settings collection in sync with the server.

Collections are fetched incrementally, verified against their content
signature and persisted locally (file or SQLite storage).`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			// Validate format flag
			if !isValidFormat(opts.Format) {
				return fmt.Errorf("invalid format %q: must be one of %v", opts.Format, ValidFormats)
			}
			opts.logger = newLogger(cmd.ErrOrStderr(), opts.Verbose)
			return nil
		},
	}

	// Global flags
	flags := cmd.PersistentFlags()
	flags.BoolVarP(&opts.Verbose, "verbose", "v", false, "verbose output")
	flags.StringVar(&opts.Format, "format", "text", "output format (json|text)")
	flags.StringVar(&opts.ConfigPath, "config", "", "config file (.yaml, .yml or .cue)")
	flags.StringVar(&opts.Server, "server", "", "server URL (default "+config.Default().ServerURL+")")
	flags.StringVar(&opts.Bucket, "bucket", "", "bucket name (default "+config.Default().Bucket+")")
	flags.StringVar(&opts.Collection, "collection", "", "collection name")
	flags.StringVar(&opts.Storage, "storage", "", "storage backend (none|memory|file|sqlite)")
	flags.StringVar(&opts.StoragePath, "storage-path", "", "storage directory (file) or database (sqlite)")
	flags.BoolVar(&opts.TrustLocal, "trust-local", true, "return stored records without verifying them")
	flags.BoolVar(&opts.SyncIfEmpty, "sync-if-empty", true, "sync when nothing usable is stored")
	flags.StringVar(&opts.Verifier, "verifier", "", "verifier (none|content-signature)")
	flags.StringVar(&opts.RootHash, "root-hash", "", "SHA-256 fingerprint of the trusted root certificate")
	flags.StringVar(&opts.DNSName, "dns-name", "", "expected signer certificate name")

	// Add subcommands
	cmd.AddCommand(NewGetCommand(opts))
	cmd.AddCommand(NewSyncCommand(opts))
	cmd.AddCommand(NewInspectCommand(opts))
	cmd.AddCommand(NewVerifyCommand(opts))

	return cmd
}

// resolveConfig loads the config file, if any, and applies the flags the
// user set explicitly on top of it.
func (o *RootOptions) resolveConfig(cmd *cobra.Command) (*config.Config, error) {
	cfg := config.Default()
	if o.ConfigPath != "" {
		loaded, err := config.Load(o.ConfigPath)
		if err != nil {
			return nil, err
		}
		cfg = *loaded
	}

	flags := cmd.Flags()
	if flags.Changed("server") {
		cfg.ServerURL = o.Server
	}
	if flags.Changed("bucket") {
		cfg.Bucket = o.Bucket
	}
	if flags.Changed("collection") {
		cfg.Collection = o.Collection
	}
	if flags.Changed("storage") {
		cfg.Storage.Backend = o.Storage
	}
	if flags.Changed("storage-path") {
		cfg.Storage.Path = o.StoragePath
	}
	if flags.Changed("trust-local") {
		cfg.TrustLocal = o.TrustLocal
	}
	if flags.Changed("sync-if-empty") {
		cfg.SyncIfEmpty = o.SyncIfEmpty
	}
	if flags.Changed("verifier") {
		cfg.Verifier.Kind = o.Verifier
	}
	if flags.Changed("root-hash") {
		cfg.Verifier.RootHash = o.RootHash
	}
	if flags.Changed("dns-name") {
		cfg.Verifier.DNSName = o.DNSName
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// isValidFormat checks if the format is one of the allowed values.
func isValidFormat(format string) bool {
	return slices.Contains(ValidFormats, format)
}
