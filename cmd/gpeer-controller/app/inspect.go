package app

import (
	"context"
	"fmt"
	"io"

	"github.com/gosuri/uitable"
	"github.com/spf13/cobra"
	utilerrors "k8s.io/apimachinery/pkg/util/errors"

	"github.com/autopeer-io/groundpeer/internal/station/model"
	"github.com/autopeer-io/groundpeer/internal/station/store"
	"github.com/autopeer-io/groundpeer/pkg/options"
)

func newInspectCommand() *cobra.Command {
	opts := options.NewStoreOptions()
	cmd := &cobra.Command{
		Use:   "inspect",
		Short: "Print the known-vehicle store",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if err := utilerrors.NewAggregate(opts.Validate()); err != nil {
				return err
			}
			return inspect(cmd.Context(), cmd.OutOrStdout(), opts)
		},
	}
	opts.AddFlags(cmd.Flags())
	return cmd
}

func inspect(ctx context.Context, w io.Writer, opts *options.StoreOptions) error {
	if ctx == nil {
		ctx = context.Background()
	}
	st, err := store.New(opts)
	if err != nil {
		return err
	}
	defer st.Close()

	if err := st.Warm(ctx); err != nil {
		return err
	}
	printVehicles(w, st.List())
	return nil
}

func printVehicles(w io.Writer, snaps []*model.Snapshot) {
	table := uitable.New()
	table.MaxColWidth = 32
	table.AddRow("VEHICLE", "NAME", "VERSION", "LINKS", "INTERFACES", "RELAY", "FLIGHTS")
	for _, s := range snaps {
		relay := "off"
		if s.Relay.Active() {
			relay = fmt.Sprintf("link %d -> %s", s.Relay.EnabledOnLink, s.Relay.RelayedVehicleID)
		}
		table.AddRow(s.VehicleID, s.Name, s.Version, len(s.Links), len(s.Interfaces), relay, s.Stats.TotalFlights)
	}
	fmt.Fprintln(w, table)
}
