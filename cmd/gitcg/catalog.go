package main

import (
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/gi-tcg/gitcg-server-go/internal/catalog"
)

func newCatalogCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "catalog",
		Short: "Check card catalogues",
	}
	cmd.AddCommand(&cobra.Command{
		Use:   "validate FILE...",
		Short: "Validate and compile catalogue files",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "FILE\tVERSION\tCHARACTERS\tCARDS\tENTITIES\tSKILLS")
			for _, path := range args {
				d, err := catalog.Load(path)
				if err != nil {
					_ = tw.Flush()
					return err
				}
				fmt.Fprintf(tw, "%s\t%s\t%d\t%d\t%d\t%d\n", path, d.Version(),
					len(d.CharacterIDs()), len(d.CardIDs()), len(d.EntityIDs()), d.SkillCount())
			}
			return tw.Flush()
		},
	})
	cmd.AddCommand(&cobra.Command{
		Use:   "versions",
		Short: "List the catalogue versions the configuration loads",
		RunE: func(cmd *cobra.Command, _ []string) error {
			r, err := catalog.LoadRegistry(cmd.Context(), a.cfg.Catalog.Files, a.logger)
			if err != nil {
				return err
			}
			for _, v := range r.Versions() {
				fmt.Fprintln(cmd.OutOrStdout(), v)
			}
			return nil
		},
	})
	return cmd
}
