package main

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/gi-tcg/gitcg-server-go/internal/catalog"
	"github.com/gi-tcg/gitcg-server-go/internal/game"
	"github.com/gi-tcg/gitcg-server-go/internal/game/rpc"
	"github.com/gi-tcg/gitcg-server-go/internal/game/state"
)

func readLog(path string) (*game.GameLog, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	l, err := game.DecodeLog(f)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return l, nil
}

func newReplayCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "replay",
		Short: "Inspect recorded game logs",
	}
	cmd.AddCommand(newReplayVerifyCmd(), newReplayShowCmd(), newReplayResumeCmd(a))
	return cmd
}

func newReplayVerifyCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "verify FILE...",
		Short: "Replay logs and check their final-state checksums",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			failed := 0
			for _, path := range args {
				l, err := readLog(path)
				if err == nil {
					err = l.Verify()
				}
				if err != nil {
					failed++
					fmt.Fprintf(cmd.OutOrStdout(), "FAIL %s: %v\n", path, err)
					continue
				}
				fmt.Fprintf(cmd.OutOrStdout(), "ok   %s (%d entries, %d mutations)\n", path, len(l.Entries), len(l.Mutations))
			}
			if failed > 0 {
				return fmt.Errorf("%d of %d logs failed", failed, len(args))
			}
			return nil
		},
	}
}

func newReplayShowCmd() *cobra.Command {
	var from, count int
	cmd := &cobra.Command{
		Use:   "show FILE",
		Short: "Print one line per pause point",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			l, err := readLog(args[0])
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "game %s, catalogue %s, %d entries\n", l.GameID, l.Version, len(l.Entries))
			r := game.NewReplay(l)
			r.Skip(from)
			for i := 0; count <= 0 || i < count; i++ {
				idx := r.CurrentIndex
				st := r.Next()
				if st == nil {
					break
				}
				printEntry(out, idx, st, l.Entries[idx].CanResume)
			}
			return nil
		},
	}
	cmd.Flags().IntVar(&from, "from", 0, "first entry")
	cmd.Flags().IntVar(&count, "count", 0, "entries to print, 0 for all")
	return cmd
}

func printEntry(w io.Writer, idx int, st *state.GameState, canResume bool) {
	mark := " "
	if canResume {
		mark = "*"
	}
	fmt.Fprintf(w, "%4d%s round %d %-8s turn %s", idx, mark, st.RoundNumber, st.Phase, st.CurrentTurn)
	for i := range st.Players {
		p := &st.Players[i]
		hp := make([]string, 0, len(p.Characters))
		for _, c := range p.Characters {
			h, _ := c.Vars.Get(state.Health)
			mark := ""
			if c.ID == p.ActiveCharacterID {
				mark = "!"
			}
			hp = append(hp, fmt.Sprintf("%d%s", h, mark))
		}
		fmt.Fprintf(w, " | %s hp[%s] hand %d dice %d", p.Who, strings.Join(hp, " "), len(p.Hands), len(p.Dice))
	}
	if st.Winner != nil {
		fmt.Fprintf(w, " | winner %s", *st.Winner)
	}
	fmt.Fprintln(w)
}

func newReplayResumeCmd(a *app) *cobra.Command {
	var (
		index int
		seed  uint64
	)
	cmd := &cobra.Command{
		Use:   "resume FILE",
		Short: "Continue a recorded game from a resumable entry with bots",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			l, err := readLog(args[0])
			if err != nil {
				return err
			}
			registry, err := catalog.LoadRegistry(cmd.Context(), a.cfg.Catalog.Files, a.logger)
			if err != nil {
				return err
			}
			lib, err := registry.Data(l.Version)
			if err != nil {
				return err
			}
			g, err := game.Resume(lib, l, index, game.Options{
				Players: [2]rpc.PlayerIO{
					game.NewNullPlayer(seed, a.logger),
					game.NewNullPlayer(seed+1, a.logger),
				},
				MaxReprompts: a.cfg.Game.MaxReprompts,
				Logger:       a.logger,
			})
			if err != nil {
				return err
			}
			final, err := g.Start(cmd.Context())
			if err != nil {
				return err
			}
			printEntry(cmd.OutOrStdout(), index, final, false)
			return nil
		},
	}
	cmd.Flags().IntVar(&index, "index", 0, "entry to resume from")
	cmd.Flags().Uint64Var(&seed, "seed", 1, "bot seed")
	return cmd
}
