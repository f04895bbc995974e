package main

import (
	"encoding/json"
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/gi-tcg/gitcg-server-go/internal/repository"
)

func (a *app) openStore(cmd *cobra.Command) (repository.Store, error) {
	store, err := repository.Open(cmd.Context(), a.cfg.Storage, a.logger)
	if err != nil {
		return nil, fmt.Errorf("open storage: %w", err)
	}
	return store, nil
}

func newGamesCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "games",
		Short: "Query stored games",
	}

	var limit int
	list := &cobra.Command{
		Use:   "list",
		Short: "List the most recent games",
		RunE: func(cmd *cobra.Command, _ []string) error {
			store, err := a.openStore(cmd)
			if err != nil {
				return err
			}
			defer store.Close()
			games, err := store.ListGames(cmd.Context(), limit)
			if err != nil {
				return err
			}
			tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "ID\tFINISHED\tPLAYERS\tWINNER\tREASON\tROUNDS")
			for _, g := range games {
				fmt.Fprintf(tw, "%s\t%s\t%s vs %s\t%s\t%s\t%d\n", g.ID, g.FinishedAt.Format("2006-01-02 15:04"),
					g.Players[0], g.Players[1], g.Winner, g.Reason, g.Rounds)
			}
			return tw.Flush()
		},
	}
	list.Flags().IntVar(&limit, "limit", 20, "maximum number of games")

	show := &cobra.Command{
		Use:   "show ID",
		Short: "Print a stored game with its statistics",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := a.openStore(cmd)
			if err != nil {
				return err
			}
			defer store.Close()
			rec, err := store.GetGame(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			return enc.Encode(struct {
				repository.GameSummary
				Stats any `json:"stats"`
			}{rec.Summary(), rec.Stats})
		},
	}

	var out string
	export := &cobra.Command{
		Use:   "export ID",
		Short: "Write the replay log of a stored game",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := a.openStore(cmd)
			if err != nil {
				return err
			}
			defer store.Close()
			rec, err := store.GetGame(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			if out == "" {
				out = rec.ID + ".replay.zst"
			}
			return os.WriteFile(out, rec.Log, 0o644)
		},
	}
	export.Flags().StringVarP(&out, "output", "o", "", "output file")

	record := &cobra.Command{
		Use:   "record PLAYER",
		Short: "Print the wins and losses of a player",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			player := args[0]
			store, err := a.openStore(cmd)
			if err != nil {
				return err
			}
			defer store.Close()
			wins, losses, err := store.PlayerRecord(cmd.Context(), player)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s: %d wins, %d losses\n", player, wins, losses)
			return nil
		},
	}

	cmd.AddCommand(list, show, export, record)
	return cmd
}
