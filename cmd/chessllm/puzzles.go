package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/discochess/chessllm/internal/builder"
	"github.com/discochess/chessllm/internal/puzzle"
)

var puzzlesCmd = &cobra.Command{
	Use:   "puzzles",
	Short: "Build and solve puzzle batches",
}

var puzzlesBuildCmd = &cobra.Command{
	Use:   "build",
	Short: "Build a puzzle batch from the lichess archives",
	Long: `Download the lichess game archive and puzzle database, index the
games and write every puzzle whose game is in the archive as a CSV of
id, rating, movetext and SAN solution.

Both archives are downloaded concurrently, resumed if interrupted and
decompressed in place. The game index is cached in the work directory.`,
	Args: cobra.NoArgs,
	RunE: runPuzzlesBuild,
}

var puzzlesSolveCmd = &cobra.Command{
	Use:   "solve [puzzles.csv]",
	Short: "Measure how many puzzles the model solves",
	Long: `Replay each puzzle, alternating the recorded opponent move with the
model's guess, and report accuracy per 200-point rating bucket. A guess
that differs from the recorded move but mates is also correct.`,
	Args: cobra.MaximumNArgs(1),
	RunE: runPuzzlesSolve,
}

var (
	buildWorkDir    string
	buildOutput     string
	buildGamesURL   string
	buildPuzzlesURL string
	buildGames      string
	buildPuzzles    string

	solvePerBucket int
	solveMarkdown  bool
)

func init() {
	puzzlesBuildCmd.Flags().StringVar(&buildWorkDir, "work-dir", ".", "directory for downloaded archives and the game index")
	puzzlesBuildCmd.Flags().StringVarP(&buildOutput, "output", "o", builder.DefaultOutput, "puzzle CSV to write")
	puzzlesBuildCmd.Flags().StringVar(&buildGamesURL, "games-url", builder.DefaultGamesURL, "lichess game archive URL")
	puzzlesBuildCmd.Flags().StringVar(&buildPuzzlesURL, "puzzles-url", builder.DefaultPuzzlesURL, "lichess puzzle database URL")
	puzzlesBuildCmd.Flags().StringVar(&buildGames, "games", "", "use this local PGN archive instead of downloading")
	puzzlesBuildCmd.Flags().StringVar(&buildPuzzles, "puzzles", "", "use this local puzzle CSV instead of downloading")

	puzzlesSolveCmd.Flags().IntVar(&solvePerBucket, "per-bucket", puzzle.DefaultPerBucket, "puzzles solved per rating bucket")
	puzzlesSolveCmd.Flags().BoolVar(&solveMarkdown, "markdown", false, "print a Markdown report")

	puzzlesCmd.AddCommand(puzzlesBuildCmd, puzzlesSolveCmd)
	rootCmd.AddCommand(puzzlesCmd)
}

func runPuzzlesBuild(cmd *cobra.Command, args []string) error {
	log, err := newLogger()
	if err != nil {
		return err
	}
	defer log.Sync()

	b := builder.NewBuilder(
		builder.WithWorkDir(buildWorkDir),
		builder.WithOutput(buildOutput),
		builder.WithGamesURL(buildGamesURL),
		builder.WithPuzzlesURL(buildPuzzlesURL),
		builder.WithProgress(builder.TextProgress(os.Stderr)),
		builder.WithLogger(log),
	)

	var m *builder.Manifest
	if buildGames != "" && buildPuzzles != "" {
		m, err = b.BuildFromFiles(cmd.Context(), buildGames, buildPuzzles)
	} else {
		m, err = b.Build(cmd.Context())
	}
	if err != nil {
		return err
	}

	fmt.Printf("Output:    %s\n", filepath.Join(filepath.Dir(buildOutput), m.Output))
	fmt.Printf("Puzzles:   %d of %d\n", m.PuzzleCount, m.PuzzlesRead)
	fmt.Printf("Skipped:   %d\n", m.Skipped)
	fmt.Printf("Unindexed: %d\n", m.Unindexed)
	return nil
}

func runPuzzlesSolve(cmd *cobra.Command, args []string) error {
	path := builder.DefaultOutput
	if len(args) == 1 {
		path = args[0]
	}
	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("opening puzzles: %w", err)
	}
	puzzles, err := puzzle.ReadCSV(f)
	f.Close()
	if err != nil {
		return err
	}

	env, err := setup(cmd.Context())
	if err != nil {
		return err
	}
	defer env.close()

	h := puzzle.NewHarness(env.client,
		puzzle.WithPerBucket(solvePerBucket),
		puzzle.WithLogger(env.log),
		puzzle.WithStats(env.collector),
	)
	report, err := h.Run(cmd.Context(), puzzles)
	if report != nil {
		if solveMarkdown {
			report.WriteMarkdown(os.Stdout)
		} else {
			report.WriteText(os.Stdout)
		}
	}
	return err
}
