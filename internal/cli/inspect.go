package cli

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/roach88/settingsync/internal/ir"
	"github.com/roach88/settingsync/internal/store"
)

// InspectResult describes the stored collection.
type InspectResult struct {
	Key         string     `json:"key"`
	Backend     string     `json:"backend"`
	Timestamp   uint64     `json:"timestamp"`
	Records     int        `json:"records"`
	Tombstones  int        `json:"tombstones"`
	Signed      bool       `json:"signed"`
	Fingerprint string     `json:"fingerprint"`
	UpdatedAt   *time.Time `json:"updated_at,omitempty"`
}

// String implements fmt.Stringer for text output.
func (r InspectResult) String() string {
	var b strings.Builder
	fmt.Fprintf(&b, "Key:         %s\n", r.Key)
	fmt.Fprintf(&b, "Backend:     %s\n", r.Backend)
	fmt.Fprintf(&b, "Timestamp:   %d\n", r.Timestamp)
	fmt.Fprintf(&b, "Records:     %d\n", r.Records)
	if r.Tombstones > 0 {
		fmt.Fprintf(&b, "Tombstones:  %d\n", r.Tombstones)
	}
	fmt.Fprintf(&b, "Signed:      %t\n", r.Signed)
	fmt.Fprintf(&b, "Fingerprint: %s", r.Fingerprint)
	if r.UpdatedAt != nil {
		fmt.Fprintf(&b, "\nUpdated:     %s", r.UpdatedAt.UTC().Format(time.RFC3339))
	}
	return b.String()
}

// NewInspectCommand creates the inspect command.
func NewInspectCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "inspect",
		Short: "Describe the stored collection without contacting the server",
		Long: `Decode the stored collection and print its timestamp, record count
and fingerprint. Nothing is verified and the server is never contacted.`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runInspect(rootOpts, cmd)
		},
	}

	return cmd
}

func runInspect(opts *RootOptions, cmd *cobra.Command) error {
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

	fp, err := ir.Fingerprint(c)
	if err != nil {
		return outputCodedError(formatter, ExitCommandError, ErrCodeStorage, err.Error(), nil)
	}

	result := InspectResult{
		Key:         rt.client.StorageKey(),
		Backend:     rt.cfg.Storage.Backend,
		Timestamp:   c.Timestamp,
		Records:     len(c.Records),
		Signed:      hasSignature(c),
		Fingerprint: fp,
		UpdatedAt:   rt.updatedAt(cmd),
	}
	for _, r := range c.Records {
		if r.Deleted() {
			result.Tombstones++
		}
	}

	return formatter.Success(result)
}

// updatedAt returns when the collection was last written, when the backend
// tracks it.
func (rt *runtime) updatedAt(cmd *cobra.Command) *time.Time {
	key := rt.client.StorageKey()

	switch s := rt.storage.(type) {
	case *store.SQLiteStorage:
		ms, ok, err := s.UpdatedAt(cmd.Context(), key)
		if err != nil || !ok || ms == 0 {
			return nil
		}
		t := time.UnixMilli(ms)
		return &t
	case *store.FileStorage:
		info, err := os.Stat(s.Path(key))
		if err != nil {
			return nil
		}
		t := info.ModTime()
		return &t
	default:
		return nil
	}
}

func hasSignature(c *ir.Collection) bool {
	sig, ok := c.Metadata.Object("signature")
	if !ok {
		return false
	}
	_, ok = sig.String("signature")
	return ok
}
