package cli

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/roach88/settingsync/internal/ir"
)

// GetResult is the output of the get command.
type GetResult struct {
	Bucket     string      `json:"bucket"`
	Collection string      `json:"collection"`
	Records    []ir.Record `json:"records"`
}

// String renders one JSON record per line under a summary line.
func (r GetResult) String() string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s/%s: %d record(s)", r.Bucket, r.Collection, len(r.Records))
	for _, rec := range r.Records {
		data, err := json.Marshal(rec)
		if err != nil {
			continue
		}
		b.WriteByte('\n')
		b.Write(data)
	}
	return b.String()
}

// NewGetCommand creates the get command.
func NewGetCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "get",
		Short: "Print the collection's records",
		Long: `Print the records of the configured collection.

Stored records are returned without contacting the server. When nothing
usable is stored, a full sync is performed first unless --sync-if-empty=false.`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runGet(rootOpts, cmd)
		},
	}

	return cmd
}

func runGet(opts *RootOptions, cmd *cobra.Command) error {
	formatter := newFormatter(opts, cmd)

	rt, err := openRuntime(opts, cmd, formatter)
	if err != nil {
		return err
	}
	defer rt.close()

	records, err := rt.client.Get(cmd.Context())
	if err != nil {
		var details any
		if records != nil {
			details = map[string]int{"records": len(records)}
		}
		return outputError(formatter, err, details)
	}

	return formatter.Success(GetResult{
		Bucket:     rt.cfg.Bucket,
		Collection: rt.cfg.Collection,
		Records:    records,
	})
}
