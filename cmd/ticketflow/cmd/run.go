package cmd

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/helpdesk-stack/ticketflow/internal/engine"
	"github.com/helpdesk-stack/ticketflow/internal/guardrail"
	"github.com/helpdesk-stack/ticketflow/internal/llm"
	"github.com/helpdesk-stack/ticketflow/internal/logging"
	"github.com/helpdesk-stack/ticketflow/internal/prompts"
	"github.com/helpdesk-stack/ticketflow/internal/search"
	"github.com/helpdesk-stack/ticketflow/internal/session"
	"github.com/helpdesk-stack/ticketflow/internal/tablestore"
)

var ticketFile string

// sampleTicket drives a run when neither an argument nor --file is given.
const sampleTicket = "Database connection timeout errors in production since this morning, " +
	"all API requests failing with 500 errors, affecting every customer."

var runCmd = &cobra.Command{
	Use:   "run [ticket text]",
	Short: "Run one ticket through the resolution workflow",
	Args:  cobra.ArbitraryArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		if verbose {
			cfg.Logging.Level = "debug"
		}
		log := logging.New(cfg.Logging.Level, cfg.Logging.Format)

		text, err := ticketText(args)
		if err != nil {
			return err
		}

		eng, err := buildEngine(cfg, log)
		if err != nil {
			return err
		}

		res, err := eng.Run(cmd.Context(), text)
		if err != nil {
			var be *engine.BudgetExceededError
			switch {
			case errors.Is(err, engine.ErrBlocked):
				return fmt.Errorf("ticket rejected: %w", err)
			case errors.As(err, &be):
				return fmt.Errorf("workflow aborted: %w", err)
			default:
				return err
			}
		}

		fmt.Printf("session:  %s\n", res.SessionID)
		fmt.Printf("status:   %s\n", res.Report.Status)
		fmt.Printf("summary:  %s\n", res.Report.Summary)
		for _, f := range res.Report.FollowUps {
			fmt.Printf("followup: %s\n", f)
		}
		return nil
	},
}

func init() {
	runCmd.Flags().StringVarP(&ticketFile, "file", "f", "", "read ticket text from a file")
	rootCmd.AddCommand(runCmd)
}

func loadConfig() (engine.Config, error) {
	if configPath == "" {
		return engine.DefaultConfig(), nil
	}
	return engine.LoadConfig(configPath)
}

func ticketText(args []string) (string, error) {
	if ticketFile != "" {
		b, err := os.ReadFile(ticketFile)
		if err != nil {
			return "", fmt.Errorf("read ticket file: %w", err)
		}
		return strings.TrimSpace(string(b)), nil
	}
	if len(args) > 0 {
		return strings.Join(args, " "), nil
	}
	return sampleTicket, nil
}

func buildEngine(cfg engine.Config, log *slog.Logger) (*engine.Engine, error) {
	sessions, err := session.NewStore(cfg.SessionRoot, cfg.ArtifactExcludeGlobs, log)
	if err != nil {
		return nil, err
	}
	tables, err := tablestore.NewStore(cfg.DataDir, log)
	if err != nil {
		return nil, err
	}

	corpus := search.DefaultCorpus()
	if cfg.CorpusPath != "" {
		corpus, err = search.LoadCorpus(cfg.CorpusPath)
		if err != nil {
			return nil, err
		}
	}

	bundle := prompts.Default()
	if cfg.PromptsPath != "" {
		bundle, err = prompts.Load(cfg.PromptsPath)
		if err != nil {
			return nil, err
		}
	}

	gate, err := guardrail.NewGate(guardrail.NewPatternChecker(), log)
	if err != nil {
		return nil, err
	}

	return engine.New(engine.Deps{
		Sessions:      sessions,
		Unit:          &llm.SimulatedUnit{},
		Guard:         gate,
		Tickets:       search.NewTicketIndex(corpus.Tickets),
		Schemas:       search.NewSchemaIndex(corpus.Schemas),
		Tables:        tables,
		Prompts:       bundle,
		Log:           log,
		MaxNodeVisits: cfg.MaxNodeVisits,
		RetrievalK:    cfg.RetrievalK,
	})
}
