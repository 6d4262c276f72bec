package main

import (
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"
)

func newSourcesCmd(a *app) *cobra.Command {
	var all bool

	cmd := &cobra.Command{
		Use:   "sources",
		Short: "List registry sources for this platform",
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

			reg, err := a.loadRegistry(cfg.RegistryPath, info)
			if err != nil {
				return err
			}

			keys := reg.Platforms()
			if !all {
				key, _, err := reg.Resolve(info.Keys()...)
				if err != nil {
					return err
				}
				keys = []string{key}
			}

			w := tabwriter.NewWriter(a.stdout, 0, 0, 2, ' ', 0)
			fmt.Fprintln(w, "PLATFORM\t#\tSHA256\tDESCRIPTION\tURL")
			for _, key := range keys {
				sources, err := reg.Sources(key)
				if err != nil {
					return err
				}
				for i, src := range sources {
					hash := "(none)"
					if src.HasHash() {
						hash = shortHash(src.SHA256)
					}
					fmt.Fprintf(w, "%s\t%d\t%s\t%s\t%s\n", key, i+1, hash, src.Label(), src.URL)
				}
			}
			return w.Flush()
		},
	}

	cmd.Flags().BoolVarP(&all, "all", "a", false, "List every platform in the registry")
	return cmd
}

func shortHash(h string) string {
	if len(h) > 12 {
		return h[:12]
	}
	return h
}
