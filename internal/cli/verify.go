package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/roach88/settingsync/internal/engine"
)

// VerifyResult is the output of a successful verify command.
type VerifyResult struct {
	Bucket     string `json:"bucket"`
	Collection string `json:"collection"`
	Timestamp  uint64 `json:"timestamp"`
	Verifier   string `json:"verifier"`
}

// String implements fmt.Stringer for text output.
func (r VerifyResult) String() string {
	return fmt.Sprintf("✓ %s/%s at %d verified (%s)", r.Bucket, r.Collection, r.Timestamp, r.Verifier)
}

// NewVerifyCommand creates the verify command.
func NewVerifyCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "verify",
		Short: "Verify the stored collection",
		Long: `Verify the stored collection with the configured verifier.

Only the certificate chain is downloaded; the collection itself is not
refreshed. Exits with status 1 when verification fails.`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runVerify(rootOpts, cmd)
		},
	}

	return cmd
}

func runVerify(opts *RootOptions, cmd *cobra.Command) error {
	formatter := newFormatter(opts, cmd)

	rt, err := openRuntime(opts, cmd, formatter)
	if err != nil {
		return err
	}
	defer rt.close()

	c, err := rt.loadStored(cmd, formatter)
	if err != nil {
		return err
	}

	if err := rt.verifier.Verify(cmd.Context(), c); err != nil {
		return outputError(formatter, &engine.Error{
			Kind: engine.KindVerification,
			Name: err.Error(),
			Err:  err,
		}, nil)
	}

	return formatter.Success(VerifyResult{
		Bucket:     c.Bid,
		Collection: c.Cid,
		Timestamp:  c.Timestamp,
		Verifier:   rt.cfg.Verifier.Kind,
	})
}
