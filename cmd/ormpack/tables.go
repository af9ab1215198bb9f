package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/AndrewDonelson/ormpack"
)

var (
	typeIDCmd = &cobra.Command{
		Use:   "typeid <qualified-name>...",
		Short: "Print the wire type id of Go type names",
		Long: `Print the wire type id of each fully qualified Go type name,
e.g. github.com/acme/app/models.User.`,
		Args: cobra.MinimumNArgs(1),
		Run: func(cmd *cobra.Command, args []string) {
			for _, name := range args {
				fmt.Fprintf(cmd.OutOrStdout(), "%d\t%s\n", ormpack.TypeID(name), name)
			}
		},
	}

	zonesCmd = &cobra.Command{
		Use:   "zones [name]",
		Short: "List the time zone table or print one zone's index",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			out := cmd.OutOrStdout()
			if len(args) == 1 {
				idx, ok := ormpack.ZoneIndex(args[0])
				if !ok {
					return fmt.Errorf("unknown zone %q", args[0])
				}
				fmt.Fprintf(out, "%d\t%s\n", idx, args[0])
				return nil
			}
			for i, name := range ormpack.Zones() {
				fmt.Fprintf(out, "%d\t%s\n", i, name)
			}
			return nil
		},
	}
)
