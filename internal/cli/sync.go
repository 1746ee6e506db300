package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/roach88/settingsync/internal/engine"
	"github.com/roach88/settingsync/internal/ir"
)

// SyncResult is the output of the sync command.
type SyncResult struct {
	Bucket      string `json:"bucket"`
	Collection  string `json:"collection"`
	Timestamp   uint64 `json:"timestamp"`
	Records     int    `json:"records"`
	Fingerprint string `json:"fingerprint"`
}

// String implements fmt.Stringer for text output.
func (r SyncResult) String() string {
	return fmt.Sprintf("✓ Synced %s/%s at %d (%d record(s), fingerprint %s)",
		r.Bucket, r.Collection, r.Timestamp, r.Records, shortFingerprint(r.Fingerprint))
}

// NewSyncCommand creates the sync command.
func NewSyncCommand(rootOpts *RootOptions) *cobra.Command {
	var expected uint64

	cmd := &cobra.Command{
		Use:   "sync",
		Short: "Synchronize the collection with the server",
		Long: `Fetch the changes made since the stored timestamp, merge them, verify the
result and store it.

Without --expected the server is asked for the collection's latest timestamp.
Nothing is fetched when the stored collection is already at that timestamp
and verifies.`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			var exp *uint64
			if cmd.Flags().Changed("expected") {
				exp = engine.Expect(expected)
			}
			return runSync(rootOpts, exp, cmd)
		},
	}

	cmd.Flags().Uint64Var(&expected, "expected", 0, "expected collection timestamp (skips the timestamp query)")

	return cmd
}

func runSync(opts *RootOptions, expected *uint64, cmd *cobra.Command) error {
	formatter := newFormatter(opts, cmd)

	rt, err := openRuntime(opts, cmd, formatter)
	if err != nil {
		return err
	}
	defer rt.close()

	collection, err := rt.client.Sync(cmd.Context(), expected)
	if err != nil {
		// A store failure still yields a verified collection.
		var details any
		if collection != nil {
			details = newSyncResult(collection)
		}
		return outputError(formatter, err, details)
	}

	return formatter.Success(newSyncResult(collection))
}

func newSyncResult(c *ir.Collection) SyncResult {
	fp, _ := ir.Fingerprint(c)
	return SyncResult{
		Bucket:      c.Bid,
		Collection:  c.Cid,
		Timestamp:   c.Timestamp,
		Records:     len(c.Records),
		Fingerprint: fp,
	}
}

func shortFingerprint(fp string) string {
	if len(fp) > 12 {
		return fp[:12]
	}
	return fp
}
