package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/helpdesk-stack/ticketflow/internal/prompts"
	"github.com/helpdesk-stack/ticketflow/internal/search"
)

var checkCmd = &cobra.Command{
	Use:   "check",
	Short: "Validate the configuration, corpus and prompt files",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		fmt.Printf("config:   ok (session_root=%s, data_dir=%s)\n", cfg.SessionRoot, cfg.DataDir)

		if cfg.CorpusPath != "" {
			c, err := search.LoadCorpus(cfg.CorpusPath)
			if err != nil {
				return err
			}
			fmt.Printf("corpus:   ok (%d tickets, %d schemas)\n", len(c.Tickets), len(c.Schemas))
		} else {
			c := search.DefaultCorpus()
			fmt.Printf("corpus:   built-in (%d tickets, %d schemas)\n", len(c.Tickets), len(c.Schemas))
		}

		if cfg.PromptsPath != "" {
			if _, err := prompts.Load(cfg.PromptsPath); err != nil {
				return err
			}
			fmt.Println("prompts:  ok")
		} else {
			fmt.Println("prompts:  built-in")
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(checkCmd)
}
