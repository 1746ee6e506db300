package cli

import (
	"fmt"
	"io"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/roach88/settingsync/internal/config"
	"github.com/roach88/settingsync/internal/engine"
	"github.com/roach88/settingsync/internal/ir"
	"github.com/roach88/settingsync/internal/signatures"
	"github.com/roach88/settingsync/internal/store"
)

// runtime is everything a command needs, built from a resolved Config.
type runtime struct {
	cfg      *config.Config
	storage  store.Storage
	verifier signatures.Verifier
	client   *engine.Client
	close    func() error
}

func newLogger(w io.Writer, verbose bool) *slog.Logger {
	level := slog.LevelWarn
	if verbose {
		level = slog.LevelDebug
	}
	return slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{Level: level}))
}

// newRuntime opens storage and builds the verifier and client.
// The caller must call close.
func newRuntime(cfg *config.Config, logger *slog.Logger) (*runtime, error) {
	if logger == nil {
		logger = slog.Default()
	}

	s, closeStorage, err := openStorage(cfg.Storage)
	if err != nil {
		return nil, err
	}

	v, err := newVerifier(cfg.Verifier, logger)
	if err != nil {
		_ = closeStorage()
		return nil, err
	}

	client := engine.New(cfg.Collection,
		engine.WithServerURL(cfg.ServerURL),
		engine.WithBucket(cfg.Bucket),
		engine.WithStorage(s),
		engine.WithVerifier(v),
		engine.WithSyncIfEmpty(cfg.SyncIfEmpty),
		engine.WithTrustLocal(cfg.TrustLocal),
		engine.WithLogger(logger),
	)

	return &runtime{
		cfg:      cfg,
		storage:  s,
		verifier: v,
		client:   client,
		close:    closeStorage,
	}, nil
}

func openStorage(sc config.StorageConfig) (store.Storage, func() error, error) {
	noop := func() error { return nil }

	switch sc.Backend {
	case config.BackendNone:
		return store.DummyStorage{}, noop, nil
	case config.BackendMemory:
		return store.NewMemoryStorage(), noop, nil
	case config.BackendFile:
		fs, err := store.NewFileStorage(sc.Path)
		if err != nil {
			return nil, nil, fmt.Errorf("opening file storage: %w", err)
		}
		return fs, noop, nil
	case config.BackendSQLite:
		db, err := store.Open(sc.Path)
		if err != nil {
			return nil, nil, fmt.Errorf("opening sqlite storage: %w", err)
		}
		return db, db.Close, nil
	default:
		return nil, nil, fmt.Errorf("unknown storage backend %q", sc.Backend)
	}
}

func newVerifier(vc config.VerifierConfig, logger *slog.Logger) (signatures.Verifier, error) {
	switch vc.Kind {
	case config.VerifierNone:
		return signatures.DummyVerifier{}, nil
	case config.VerifierContentSignature:
		opts := []signatures.ContentSignatureOption{signatures.WithVerifierLogger(logger)}
		if vc.RootHash != "" {
			hash, err := signatures.ParseRootHash(vc.RootHash)
			if err != nil {
				return nil, err
			}
			opts = append(opts, signatures.WithRootHash(hash))
		}
		if vc.DNSName != "" {
			opts = append(opts, signatures.WithDNSName(vc.DNSName))
		}
		return signatures.NewContentSignatureVerifier(opts...), nil
	default:
		return nil, fmt.Errorf("unknown verifier %q", vc.Kind)
	}
}

func newFormatter(opts *RootOptions, cmd *cobra.Command) *OutputFormatter {
	return &OutputFormatter{
		Format:    opts.Format,
		Writer:    cmd.OutOrStdout(),
		ErrWriter: cmd.ErrOrStderr(), // Verbose logs go to stderr to avoid corrupting JSON
		Verbose:   opts.Verbose,
	}
}

// openRuntime resolves the configuration and builds the runtime, writing
// any failure through formatter.
func openRuntime(opts *RootOptions, cmd *cobra.Command, formatter *OutputFormatter) (*runtime, error) {
	cfg, err := opts.resolveConfig(cmd)
	if err != nil {
		return nil, outputCodedError(formatter, ExitCommandError, ErrCodeConfig, err.Error(), nil)
	}

	rt, err := newRuntime(cfg, opts.logger)
	if err != nil {
		return nil, outputCodedError(formatter, ExitCommandError, ErrCodeStorage, err.Error(), nil)
	}

	formatter.VerboseLog("Using %s/%s on %s (storage %s, verifier %s)",
		cfg.Bucket, cfg.Collection, cfg.ServerURL, cfg.Storage.Backend, cfg.Verifier.Kind)
	return rt, nil
}

// loadStored reads and decodes the stored collection without touching the
// network, writing any failure through formatter.
func (rt *runtime) loadStored(cmd *cobra.Command, formatter *OutputFormatter) (*ir.Collection, error) {
	key := rt.client.StorageKey()

	data, ok, err := rt.storage.Retrieve(cmd.Context(), key)
	if err != nil {
		return nil, outputCodedError(formatter, ExitCommandError, ErrCodeStorage, err.Error(), nil)
	}
	if !ok {
		return nil, outputCodedError(formatter, ExitCommandError, ErrCodeNotFound,
			fmt.Sprintf("nothing stored under %s", key), nil)
	}

	c, err := ir.DecodeCollection(data)
	if err != nil {
		return nil, outputCodedError(formatter, ExitCommandError, ErrCodeStorage,
			fmt.Sprintf("stored collection under %s is malformed: %v", key, err), nil)
	}
	return c, nil
}
