package cli

import (
	"fmt"
	"os"

	"github.com/CoderParva/Onebox/internal/classify"
	"github.com/CoderParva/Onebox/internal/config"
	"github.com/CoderParva/Onebox/internal/services"
	"github.com/spf13/cobra"
	"gorm.io/gorm"
)

var (
	db  *gorm.DB
	cfg *config.Config
)

// rootCmd represents the base command
var rootCmd = &cobra.Command{
	Use:   "onebox",
	Short: "Onebox mail ingestion and classification pipeline",
	Long: `Onebox pulls mail from configured mailboxes, deduplicates it into a
searchable store, pushes it to live viewers and classifies it with an
AI oracle.

Run without arguments to start the server. Subcommands:
  onebox accounts                 # list configured mailbox accounts
  onebox classify -s SUBJ -b BODY # one-shot oracle classification
  onebox logs                     # show recent pipeline logs`,
}

// Execute runs the CLI with the provided database and config
func Execute(database *gorm.DB, conf *config.Config) {
	db = database
	cfg = conf

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

var accountsCmd = &cobra.Command{
	Use:   "accounts",
	Short: "List configured mailbox accounts",
	Run: func(cmd *cobra.Command, args []string) {
		if len(cfg.Accounts) == 0 {
			fmt.Println("No accounts configured.")
			return
		}
		for _, acc := range cfg.Accounts {
			fmt.Printf("%-40s %s:%d folder=%s ssl=%v\n", acc.Address, acc.IMAPHost, acc.IMAPPort, acc.Folder, acc.UseSSL)
		}
	},
}

var (
	classifySubject string
	classifyBody    string
)

var classifyCmd = &cobra.Command{
	Use:   "classify",
	Short: "Classify a subject/body pair through the configured oracle",
	RunE: func(cmd *cobra.Command, args []string) error {
		oracle := classify.NewOracle()
		oracle.Configure(cfg.AI.Provider, cfg.AI.APIKey, cfg.AI.Model, cfg.AI.BaseURL)
		if !oracle.IsConfigured() {
			return fmt.Errorf("oracle not configured: set ai.api_key in config.yaml or ONEBOX_AI_API_KEY")
		}

		raw, err := oracle.Classify("", "", classifySubject, classifyBody)
		if err != nil {
			return err
		}

		fmt.Printf("raw:        %s\n", raw)
		fmt.Printf("normalized: %s\n", classify.NormalizeLabel(raw))
		return nil
	},
}

var logsLimit int

var logsCmd = &cobra.Command{
	Use:   "logs",
	Short: "Show recent pipeline log entries",
	RunE: func(cmd *cobra.Command, args []string) error {
		logService := services.NewLogService(db)
		logs, err := logService.Recent(logsLimit, "")
		if err != nil {
			return err
		}
		for _, entry := range logs {
			fmt.Printf("%s [%s] %s/%s %s %s\n",
				entry.CreatedAt.Format("2006-01-02 15:04:05"),
				entry.Level, entry.Module, entry.Action, entry.Message, entry.Details)
		}
		return nil
	},
}

func init() {
	classifyCmd.Flags().StringVarP(&classifySubject, "subject", "s", "", "email subject")
	classifyCmd.Flags().StringVarP(&classifyBody, "body", "b", "", "email body")
	logsCmd.Flags().IntVarP(&logsLimit, "limit", "n", 50, "number of entries")

	rootCmd.AddCommand(accountsCmd)
	rootCmd.AddCommand(classifyCmd)
	rootCmd.AddCommand(logsCmd)
}
