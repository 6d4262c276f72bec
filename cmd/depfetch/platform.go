package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"
)

func newPlatformCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "platform",
		Short: "Print the detected platform and the registry keys tried for it",
		Args:  cobra.NoArgs,
		RunE: func(c *cobra.Command, args []string) error {
			cfg, err := a.settings()
			if err != nil {
				return err
			}

			info, err := a.resolvePlatform(c.Context(), cfg.Platform)
			if err != nil {
				return err
			}

			fmt.Fprintf(a.stdout, "OS:     %s (%s)\n", info.OS, info.System())
			fmt.Fprintf(a.stdout, "Arch:   %s\n", info.Arch)
			if d := info.Distro; d != nil {
				fmt.Fprintf(a.stdout, "Distro: %s %s (%s)\n", d.ID, d.Version, d.Family)
			}
			fmt.Fprintf(a.stdout, "Keys:   %s\n", strings.Join(info.Keys(), ", "))
			return nil
		},
	}
}
