// Copyright © 2026 The ELPS authors

package cmd

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
)

// Version is set at build time with -ldflags "-X".
var Version = "dev"

var versionRemote bool

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the version",
	Long: `Print the v8bridge version. With --remote, also attach to the debuggee
and print the V8 version it reports.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		fmt.Fprintf(cmd.OutOrStdout(), "v8bridge %s\n", Version) //nolint:errcheck
		if !versionRemote {
			return nil
		}
		cfg, log, err := setup(cmd.ErrOrStderr())
		if err != nil {
			return err
		}
		c, err := connect(cmd.Context(), cfg, log)
		if err != nil {
			return err
		}
		defer c.close(context.Background())
		v, err := c.session.Version(cmd.Context())
		if err != nil {
			return err
		}
		hs, _ := c.session.Handshake()
		fmt.Fprintf(cmd.OutOrStdout(), "V8 %s (%s)\n", v, hs.EmbeddingHost) //nolint:errcheck
		return nil
	},
}

func init() {
	rootCmd.AddCommand(versionCmd)
	versionCmd.Flags().BoolVar(&versionRemote, "remote", false, "also query the debuggee")
}
