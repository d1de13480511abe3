// Copyright © 2026 The ELPS authors

package cmd

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"
)

var scriptsJSON bool

var scriptsCmd = &cobra.Command{
	Use:   "scripts",
	Short: "List the scripts loaded by the debuggee",
	Long: `List the scripts the debuggee has compiled, with the local file each
maps to under --source-root, then detach.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, log, err := setup(cmd.ErrOrStderr())
		if err != nil {
			return err
		}
		c, err := connect(cmd.Context(), cfg, log)
		if err != nil {
			return err
		}
		defer c.close(context.Background())

		modules, err := c.session.Scripts(cmd.Context())
		if err != nil {
			return err
		}
		type script struct {
			ID    int    `json:"id"`
			Name  string `json:"name"`
			Local string `json:"local,omitempty"`
		}
		out := make([]script, len(modules))
		for i, m := range modules {
			out[i] = script{ID: m.ID, Name: m.Name}
			out[i].Local, _ = c.session.Paths().Resolve(m.Name)
		}
		if scriptsJSON {
			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			return enc.Encode(out)
		}
		for _, s := range out {
			if s.Local != "" {
				fmt.Fprintf(cmd.OutOrStdout(), "%4d %s -> %s\n", s.ID, s.Name, s.Local) //nolint:errcheck
				continue
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%4d %s\n", s.ID, s.Name) //nolint:errcheck
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(scriptsCmd)
	scriptsCmd.Flags().BoolVar(&scriptsJSON, "json", false, "print JSON")
}
