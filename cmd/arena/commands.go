package main

import (
	"errors"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"github.com/AdamBeresnev/llm-chess-arena/internal/app"
	"github.com/AdamBeresnev/llm-chess-arena/internal/bracket"
	"github.com/AdamBeresnev/llm-chess-arena/internal/chessboard"
	"github.com/AdamBeresnev/llm-chess-arena/internal/db"
	"github.com/AdamBeresnev/llm-chess-arena/internal/event"
	"github.com/AdamBeresnev/llm-chess-arena/internal/game"
	"github.com/AdamBeresnev/llm-chess-arena/internal/random"
	"github.com/AdamBeresnev/llm-chess-arena/internal/service"
	"github.com/AdamBeresnev/llm-chess-arena/internal/store"
	"github.com/AdamBeresnev/llm-chess-arena/internal/utils"
	"github.com/google/uuid"
	"github.com/urfave/cli/v2"
)

// parseParticipant reads "provider[:model[:name]]". The model defaults to
// the provider id and the name to the model.
func parseParticipant(spec string) (service.ParticipantInput, error) {
	parts := strings.SplitN(strings.TrimSpace(spec), ":", 3)
	in := service.ParticipantInput{Provider: parts[0]}
	if in.Provider == "" {
		return in, fmt.Errorf("participant %q has no provider", spec)
	}
	in.ModelID = in.Provider
	if len(parts) > 1 && parts[1] != "" {
		in.ModelID = parts[1]
	}
	in.Name = in.ModelID
	if len(parts) > 2 && parts[2] != "" {
		in.Name = parts[2]
	}
	return in, nil
}

var unsafeFileChars = regexp.MustCompile(`[^A-Za-z0-9._-]+`)

// savePGN writes pgn to dir/name.pgn, creating dir as needed.
func savePGN(dir, name, pgn string) (string, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("create pgn dir: %w", err)
	}
	path := filepath.Join(dir, unsafeFileChars.ReplaceAllString(name, "_")+".pgn")
	if err := os.WriteFile(path, []byte(pgn+"\n"), 0o644); err != nil {
		return "", fmt.Errorf("write pgn: %w", err)
	}
	return path, nil
}

func httpClient(timeout time.Duration) *http.Client {
	return &http.Client{Timeout: timeout + 10*time.Second}
}

func newGameCommand() *cli.Command {
	return &cli.Command{
		Name:  "game",
		Usage: "play a single game",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "white", Value: "random", Usage: "white player as provider[:model[:name]]"},
			&cli.StringFlag{Name: "black", Value: "random", Usage: "black player as provider[:model[:name]]"},
			&cli.StringFlag{Name: "fen", Usage: "starting position, standard if empty"},
			&cli.BoolFlag{Name: "boards", Usage: "print the board before every turn"},
			&cli.BoolFlag{Name: "annotate", Usage: "keep each move's reasoning as a PGN comment"},
			&cli.BoolFlag{Name: "no-save", Usage: "do not write the PGN even if save_pgn is on"},
		},
		Action: func(c *cli.Context) error {
			cfg, logger, err := loadConfig(c)
			if err != nil {
				return err
			}

			rng, err := random.New()
			if err != nil {
				return err
			}
			players := app.NewRegistry(cfg.Providers, rng, httpClient(cfg.Game.MoveTimeout))

			var seats [2]game.Player
			var names [2]string
			for i, flag := range []string{"white", "black"} {
				in, err := parseParticipant(c.String(flag))
				if err != nil {
					return err
				}
				if !players.Has(in.Provider) {
					return fmt.Errorf("unknown provider %q", in.Provider)
				}
				p, err := players.NewPlayer(bracket.Participant{ProviderID: in.Provider, ModelID: in.ModelID, DisplayName: in.Name, Seed: i + 1})
				if err != nil {
					return err
				}
				seats[i], names[i] = p, in.Name
			}

			newBoard, err := chessboard.Factory(c.String("fen"))
			if err != nil {
				return err
			}
			gc := app.GameConfig(cfg.Game)
			gc.StartingFEN = c.String("fen")
			gc.AnnotatePGN = gc.AnnotatePGN || c.Bool("annotate")
			loop := game.NewLoop(gc, newBoard, game.WithLogger(logger), game.WithTranscripts(app.Transcripts(cfg)))

			p := newPrinter(c.App.Writer, c.Bool("boards"))
			var over event.GameOver
			for ev := range loop.Stream(c.Context, seats[0], seats[1]) {
				p.game(ev)
				if g, ok := ev.(event.GameOver); ok {
					over = g
				}
			}

			if cfg.Game.SavePGN && !c.Bool("no-save") {
				name := fmt.Sprintf("%s_%s_vs_%s", time.Now().Format("20060102-150405"), names[0], names[1])
				path, err := savePGN(cfg.Game.PGNDir, name, over.PGN)
				if err != nil {
					return err
				}
				fmt.Fprintf(c.App.Writer, "PGN saved to %s\n", path)
			}
			if over.Reason == event.ReasonInterrupted {
				return c.Context.Err()
			}
			return nil
		},
	}
}

func newTournamentCommand() *cli.Command {
	return &cli.Command{
		Name:  "tournament",
		Usage: "run a knockout tournament and archive it",
		Flags: []cli.Flag{
			&cli.StringSliceFlag{Name: "players", Required: true, Usage: "participants in seed order as provider[:model[:name]]"},
			&cli.StringFlag{Name: "type", Usage: "tournament format, the configured one if empty"},
			&cli.StringFlag{Name: "draw", Usage: "draw handling: rematch, coin_flip or seed"},
			&cli.StringFlag{Name: "fen", Usage: "starting position of every game, standard if empty"},
			&cli.BoolFlag{Name: "boards", Usage: "print the board before every turn"},
			&cli.BoolFlag{Name: "annotate", Usage: "keep each move's reasoning as a PGN comment"},
			&cli.BoolFlag{Name: "no-save", Usage: "do not write PGNs even if save_pgn is on"},
		},
		Action: func(c *cli.Context) error {
			cfg, logger, err := loadConfig(c)
			if err != nil {
				return err
			}

			req := service.StartRequest{TournamentType: c.String("type"), DrawHandling: c.String("draw")}
			for _, spec := range c.StringSlice("players") {
				in, err := parseParticipant(spec)
				if err != nil {
					return err
				}
				req.Participants = append(req.Participants, in)
			}

			database, err := db.InitDB(cfg.Database.DSN)
			if err != nil {
				return err
			}
			defer database.Close()
			if err := db.RunMigrations(database.DB); err != nil {
				return err
			}

			rng, err := random.New()
			if err != nil {
				return err
			}
			players := app.NewRegistry(cfg.Providers, rng, httpClient(cfg.Game.MoveTimeout))
			newBoard, err := chessboard.Factory(c.String("fen"))
			if err != nil {
				return err
			}
			gc := app.GameConfig(cfg.Game)
			gc.StartingFEN = c.String("fen")
			gc.AnnotatePGN = gc.AnnotatePGN || c.Bool("annotate")
			arena := service.NewArena(service.ArenaConfig{
				Game:          gc,
				NewBoard:      newBoard,
				Players:       players.NewPlayer,
				KnownProvider: players.Has,
				DefaultType:   bracket.Format(cfg.Tournament.Type),
				DefaultDraw:   bracket.DrawHandling(cfg.Tournament.DrawHandling),
				MaxRematches:  cfg.Tournament.MaxRematches,
				Transcripts:   app.Transcripts(cfg),
				Archive:       store.NewTournamentStore(database),
				Rand:          rng,
				Logger:        logger,
			})
			defer arena.Close()

			started, err := arena.Start(req)
			if err != nil {
				return err
			}

			sub := arena.Broadcaster().Subscribe()
			defer sub.Close()
			p := newPrinter(c.App.Writer, c.Bool("boards"))
			for {
				ev, err := sub.Next(c.Context)
				if err != nil {
					arena.Close()
					return err
				}
				if tev, ok := ev.(event.TournamentEvent); ok {
					p.tournament(tev)
				}
				if t := ev.EventType(); t == event.TypeTournamentComplete || t == event.TypeError {
					break
				}
			}
			arena.Wait()

			if cfg.Game.SavePGN && !c.Bool("no-save") {
				for i, pgn := range arena.PGNs() {
					if _, err := savePGN(cfg.Game.PGNDir, fmt.Sprintf("%s_%02d", started.ID, i+1), pgn); err != nil {
						return err
					}
				}
			}
			fmt.Fprintf(c.App.Writer, "Archived as %s\n", started.ID)

			if status := arena.Status(); status.State == bracket.StatusError {
				return errors.New(*status.Detail)
			}
			return nil
		},
	}
}

func newReplayCommand() *cli.Command {
	return &cli.Command{
		Name:  "replay",
		Usage: "print an archived tournament, or list the archive without --id",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "id", Usage: "tournament id"},
			&cli.BoolFlag{Name: "boards", Usage: "print the board before every turn"},
		},
		Action: func(c *cli.Context) error {
			cfg, _, err := loadConfig(c)
			if err != nil {
				return err
			}
			database, err := db.InitDB(cfg.Database.DSN)
			if err != nil {
				return err
			}
			defer database.Close()
			if err := db.RunMigrations(database.DB); err != nil {
				return err
			}
			archive := store.NewTournamentStore(database)

			if c.String("id") == "" {
				tournaments, err := archive.ListTournaments(c.Context)
				if err != nil {
					return err
				}
				for _, t := range tournaments {
					fmt.Fprintf(c.App.Writer, "%s  %s  %-8s  %s\n", t.ID, t.CreatedAt.Format(time.RFC3339), t.Status, utils.Deref(t.WinnerName, "-"))
				}
				return nil
			}

			id, err := uuid.Parse(c.String("id"))
			if err != nil {
				return fmt.Errorf("invalid tournament id: %w", err)
			}
			if _, err := archive.GetTournament(c.Context, id); err != nil {
				return err
			}
			events, err := archive.GetEvents(c.Context, id)
			if err != nil {
				return err
			}
			p := newPrinter(c.App.Writer, c.Bool("boards"))
			for _, ev := range events {
				p.tournament(ev)
			}
			return nil
		},
	}
}
