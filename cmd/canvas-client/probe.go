package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/rickgao/canvas-sync/internal/connection"
	"github.com/rickgao/canvas-sync/internal/version"
)

// probeCmd performs one handshake.
var probeCmd = &cobra.Command{
	Use:   "probe",
	Short: "Check that the server answers the handshake",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		ccfg := connectionConfig(cfg)
		rtt, err := connection.Probe(cmd.Context(), ccfg)
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "%s: pong in %v\n", ccfg.Addr, rtt)
		return nil
	},
}

// versionCmd prints build information.
var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print build information",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		fmt.Fprintln(cmd.OutOrStdout(), "canvas-client", version.String())
		return nil
	},
}
