package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"slices"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"gopkg.in/yaml.v3"

	"github.com/gi-tcg/gitcg-server-go/internal/catalog"
	"github.com/gi-tcg/gitcg-server-go/internal/game"
	"github.com/gi-tcg/gitcg-server-go/internal/game/rpc"
	"github.com/gi-tcg/gitcg-server-go/internal/game/state"
	"github.com/gi-tcg/gitcg-server-go/internal/game/watchers"
	"github.com/gi-tcg/gitcg-server-go/internal/repository"
)

var defaultCards = []int{311001, 321001, 321002, 321003, 321004, 332001, 332002, 332003, 332004, 332005,
	332006, 332007, 332008, 332009, 332010, 332011}

// defaultDecks pair two builtin teams over the same action cards.
func defaultDecks() [2]state.Deck {
	cards := make([]int, 0, state.DeckCards)
	for i := 0; len(cards) < state.DeckCards; i++ {
		cards = append(cards, defaultCards[i%len(defaultCards)])
	}
	return [2]state.Deck{
		{Characters: []int{1101, 1201, 1301}, Cards: cards},
		{Characters: []int{1401, 1501, 1701}, Cards: slices.Clone(cards)},
	}
}

// loadDecks reads a YAML list of exactly two decks.
func loadDecks(path string) ([2]state.Deck, error) {
	var out [2]state.Deck
	raw, err := os.ReadFile(path)
	if err != nil {
		return out, err
	}
	var decks []state.Deck
	if err := yaml.Unmarshal(raw, &decks); err != nil {
		return out, fmt.Errorf("%s: %w", path, err)
	}
	if len(decks) != 2 {
		return out, fmt.Errorf("%s: want 2 decks, got %d", path, len(decks))
	}
	copy(out[:], decks)
	return out, nil
}

type selfPlayResult struct {
	GameID string           `json:"gameId"`
	Seed   uint64           `json:"seed"`
	Winner *state.Who       `json:"winner"`
	Stats  watchers.Summary `json:"stats"`
}

func newSelfPlayCmd(a *app) *cobra.Command {
	var (
		seed      uint64
		games     int
		decksPath string
		saveDir   string
		record    bool
		timeout   time.Duration
	)
	cmd := &cobra.Command{
		Use:   "selfplay",
		Short: "Play bot-versus-bot games and print their statistics",
		RunE: func(cmd *cobra.Command, _ []string) error {
			registry, err := catalog.LoadRegistry(cmd.Context(), a.cfg.Catalog.Files, a.logger)
			if err != nil {
				return err
			}
			lib, err := registry.Data(a.cfg.Catalog.Version)
			if err != nil {
				return err
			}
			decks := defaultDecks()
			if decksPath != "" {
				if decks, err = loadDecks(decksPath); err != nil {
					return err
				}
			}

			var store repository.Store
			if record {
				store, err = repository.Open(cmd.Context(), a.cfg.Storage, a.logger)
				if err != nil {
					return err
				}
				defer store.Close()
			}

			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			for i := 0; i < games; i++ {
				res, err := selfPlay(cmd.Context(), a, lib, decks, seed+uint64(i), timeout, saveDir, store)
				if err != nil {
					return err
				}
				if err := enc.Encode(res); err != nil {
					return err
				}
			}
			return nil
		},
	}
	cmd.Flags().Uint64Var(&seed, "seed", 1, "random seed of the first game")
	cmd.Flags().IntVarP(&games, "games", "n", 1, "number of games")
	cmd.Flags().StringVar(&decksPath, "decks", "", "YAML file with two decks")
	cmd.Flags().StringVar(&saveDir, "save", "", "directory to write replay logs to")
	cmd.Flags().BoolVar(&record, "record", false, "store results in the configured storage")
	cmd.Flags().DurationVar(&timeout, "timeout", time.Minute, "limit per game")
	return cmd
}

func selfPlay(ctx context.Context, a *app, lib *catalog.Data, decks [2]state.Deck, seed uint64, timeout time.Duration, saveDir string, store repository.Store) (*selfPlayResult, error) {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	cfg := a.cfg.Game.StateConfig()
	cfg.RandomSeed = seed
	stats := watchers.NewSet()
	started := time.Now().UTC()
	g, err := game.New(lib, game.Options{
		ID:     uuid.NewString(),
		Config: cfg,
		Decks:  decks,
		Players: [2]rpc.PlayerIO{
			game.NewNullPlayer(seed, a.logger),
			game.NewNullPlayer(seed+1, a.logger),
		},
		OnPause:      stats.OnPause,
		MaxReprompts: a.cfg.Game.MaxReprompts,
		Logger:       a.logger.With(zap.Uint64("seed", seed)),
	})
	if err != nil {
		return nil, err
	}
	final, err := g.Start(ctx)
	if err != nil {
		return nil, err
	}

	res := &selfPlayResult{GameID: g.ID(), Seed: seed, Winner: final.Winner, Stats: stats.Summary()}
	if saveDir == "" && store == nil {
		return res, nil
	}
	l, err := g.Log()
	if err != nil {
		return nil, err
	}
	if saveDir != "" {
		if err := l.SaveToFile(saveDir); err != nil {
			return nil, err
		}
	}
	if store != nil {
		raw, err := l.Bytes()
		if err != nil {
			return nil, err
		}
		rec := &repository.GameRecord{
			ID:        g.ID(),
			Version:   lib.Version(),
			Players:   [2]string{"bot", "bot"},
			Winner:    state.NoOne,
			Reason:    "finished",
			Rounds:    res.Stats.Rounds,
			Stats:     res.Stats,
			Log:       raw,
			StartedAt: started,
		}
		if final.Winner != nil {
			rec.Winner = *final.Winner
		}
		if err := store.SaveGame(ctx, rec); err != nil && !errors.Is(err, repository.ErrAlreadyExists) {
			return nil, err
		}
	}
	return res, nil
}
