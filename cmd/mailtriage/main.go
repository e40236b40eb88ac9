package main

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/charmbracelet/log"
	"github.com/spf13/cobra"

	"github.com/mailtriage/mailtriage/internal/analysis"
	"github.com/mailtriage/mailtriage/internal/config"
	"github.com/mailtriage/mailtriage/internal/llm"
	"github.com/mailtriage/mailtriage/internal/mailbox"
	"github.com/mailtriage/mailtriage/internal/store"
	"github.com/mailtriage/mailtriage/internal/triage"
	"github.com/mailtriage/mailtriage/internal/web"
)

var (
	cfgFile string
	verbose bool
)

func resolveConfigPath() string {
	if cfgFile != "" {
		return cfgFile
	}
	return config.DefaultConfigPath()
}

func newLogger() *log.Logger {
	logger := log.NewWithOptions(os.Stderr, log.Options{
		ReportTimestamp: true,
	})
	if verbose {
		logger.SetLevel(log.DebugLevel)
	}
	return logger
}

func main() {
	rootCmd := &cobra.Command{
		Use:   "mailtriage",
		Short: "mailtriage - Classify unread emails by importance",
		Long: `mailtriage fetches your unread emails and sorts them into four
importance levels (very important, important, unimportant, spam), with a
one-paragraph summary and any deadlines it finds in each message.

Classification runs through an LLM provider when configured, and falls
back to deterministic keyword analysis when the provider is unreachable,
so a run always produces a verdict for every message.`,
	}

	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is $HOME/.mailtriage/config.yaml)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable debug logging")

	rootCmd.AddCommand(initCmd())
	rootCmd.AddCommand(processCmd())
	rootCmd.AddCommand(serveCmd())
	rootCmd.AddCommand(showCmd())
	rootCmd.AddCommand(statusCmd())

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func initCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "init",
		Short: "Initialize configuration interactively",
		Long:  "Create a new configuration file with your mailbox and model provider settings.",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runInit()
		},
	}
}

func processCmd() *cobra.Command {
	var max int

	cmd := &cobra.Command{
		Use:   "process",
		Short: "Analyze unread emails and store the verdicts",
		Long:  "Fetch unread emails from the configured mailbox, classify each one, and store the results.",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runProcess(max)
		},
	}

	cmd.Flags().IntVar(&max, "max", 0, "Maximum emails to process (default from config)")

	return cmd
}

func serveCmd() *cobra.Command {
	var port int

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the local web dashboard",
		Long: `Start a local web server providing a browser-based view of your triaged inbox.

From the dashboard you can:
- Kick off a new analysis run with visual progress
- Browse verdicts grouped by importance level
- Inspect summaries, deadlines and extracted links per email

The server runs locally on your machine - email content never leaves it
except for the classification calls to your configured model provider.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(port)
		},
	}

	cmd.Flags().IntVar(&port, "port", 0, "Port to listen on (default from config)")

	return cmd
}

func showCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "show <message-id>",
		Short: "Show the stored verdict for one email",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runShow(args[0])
		},
	}
}

func statusCmd() *cobra.Command {
	var limit int

	cmd := &cobra.Command{
		Use:   "status",
		Short: "Show stored verdicts and statistics",
		Long:  "Display the outcome of the last analysis run.",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runStatus(limit)
		},
	}

	cmd.Flags().IntVar(&limit, "limit", 20, "Number of recent verdicts to show")

	return cmd
}

func runInit() error {
	reader := bufio.NewReader(os.Stdin)

	fmt.Println("📬 mailtriage Configuration Setup")
	fmt.Println("==================================")
	fmt.Println()

	cfg := &config.Config{}

	fmt.Println("🤖 Model Provider")
	fmt.Println()
	fmt.Printf("Supported providers: %s (enter 'none' for heuristic-only mode)\n", strings.Join(llm.Providers(), ", "))
	cfg.Model.Provider = prompt(reader, "Provider [groq]: ")
	switch cfg.Model.Provider {
	case "":
		cfg.Model.Provider = "groq"
	case "none":
		cfg.Model.Provider = ""
	}
	if cfg.Model.Provider != "" {
		cfg.Model.APIKey = prompt(reader, "API key: ")
	}

	fmt.Println()
	fmt.Println("📥 Mailbox")
	fmt.Println()

	source := prompt(reader, "Mailbox source (gmail/imap) [gmail]: ")
	if source == "" {
		source = "gmail"
	}
	cfg.Mailbox.Source = source

	switch source {
	case "gmail":
		fmt.Println()
		fmt.Println("Gmail API access requires an OAuth client secret file.")
		fmt.Println("  (See https://developers.google.com/gmail/api/quickstart/go for setup)")
		fmt.Println()
		cfg.Mailbox.CredentialsFile = prompt(reader, "Path to credentials.json [~/.mailtriage/credentials.json]: ")
	case "imap":
		fmt.Println()
		fmt.Println("IMAP Configuration:")
		fmt.Println("  (For Gmail over IMAP, use an App Password: https://support.google.com/accounts/answer/185833)")
		fmt.Println()
		cfg.Mailbox.IMAP.Server = prompt(reader, "  IMAP server [imap.gmail.com]: ")
		portStr := prompt(reader, "  IMAP port [993]: ")
		if portStr != "" {
			port, err := strconv.Atoi(portStr)
			if err != nil {
				return fmt.Errorf("invalid port %q", portStr)
			}
			cfg.Mailbox.IMAP.Port = port
		}
		cfg.Mailbox.IMAP.Email = prompt(reader, "  Email address: ")
		cfg.Mailbox.IMAP.Password = prompt(reader, "  App password: ")
	}

	maxStr := prompt(reader, "Max emails per run [10]: ")
	if maxStr != "" {
		max, err := strconv.Atoi(maxStr)
		if err != nil {
			return fmt.Errorf("invalid number %q", maxStr)
		}
		cfg.Mailbox.MaxEmails = max
	}

	cfg.ApplyDefaults()

	configPath := resolveConfigPath()
	if err := config.Save(configPath, cfg); err != nil {
		return fmt.Errorf("failed to save config: %w", err)
	}

	fmt.Println()
	fmt.Printf("✅ Configuration saved to: %s\n", configPath)
	fmt.Println()
	fmt.Println("Next steps:")
	fmt.Println("  1. Review and edit the config file if needed")
	fmt.Println("  2. Run 'mailtriage process' to analyze your unread emails")
	fmt.Println("  3. Run 'mailtriage serve' for the web dashboard")

	return nil
}

// buildGateway resolves the configured provider. Any failure here means
// heuristic-only operation, never a fatal error.
func buildGateway(ctx context.Context, cfg *config.Config, logger *log.Logger) analysis.CallGateway {
	if cfg.Model.Provider == "" {
		logger.Info("no model provider configured, running heuristic-only")
		return nil
	}

	gateway, err := llm.NewGateway(cfg.Model.Provider, llm.Options{
		APIKey:          cfg.Model.APIKey,
		BaseURL:         cfg.Model.BaseURL,
		Model:           cfg.Model.Model,
		Temperature:     cfg.Model.Temperature,
		MaxOutputTokens: cfg.Model.MaxOutputTokens,
		RetryCount:      cfg.Model.RetryCount,
		TruncationLimit: cfg.Model.TruncationLimit,
	}, logger)
	if err != nil {
		logger.Warn("model provider unusable, running heuristic-only", "err", err)
		return nil
	}

	if err := gateway.Init(ctx); err != nil {
		logger.Warn("model provider unreachable, calls will fall back", "provider", cfg.Model.Provider, "err", err)
	}
	return gateway
}

func buildSource(ctx context.Context, cfg *config.Config, logger *log.Logger) (mailbox.Source, error) {
	switch cfg.Mailbox.Source {
	case "gmail":
		return mailbox.NewGmailSource(ctx, cfg.Mailbox.CredentialsFile, cfg.Mailbox.TokenFile, logger)
	case "imap":
		return mailbox.NewIMAPSource(mailbox.IMAPConfig{
			Server:   cfg.Mailbox.IMAP.Server,
			Port:     cfg.Mailbox.IMAP.Port,
			Email:    cfg.Mailbox.IMAP.Email,
			Password: cfg.Mailbox.IMAP.Password,
			Folder:   cfg.Mailbox.IMAP.Folder,
		}, logger)
	default:
		return nil, fmt.Errorf("unknown mailbox source %q", cfg.Mailbox.Source)
	}
}

func runProcess(maxOverride int) error {
	logger := newLogger()

	cfg, err := config.Load(resolveConfigPath())
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}

	max := cfg.Mailbox.MaxEmails
	if maxOverride > 0 {
		max = maxOverride
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	gateway := buildGateway(ctx, cfg, logger)

	source, err := buildSource(ctx, cfg, logger)
	if err != nil {
		return fmt.Errorf("failed to open mailbox: %w", err)
	}

	st, err := store.NewStore(store.DefaultDBPath())
	if err != nil {
		return fmt.Errorf("failed to open store: %w", err)
	}
	defer st.Close()

	runner := &triage.Runner{
		Source:   source,
		Analyzer: analysis.NewAnalyzer(gateway, logger),
		Store:    st,
		Max:      max,
		Logger:   logger,
	}
	defer runner.Close()

	fmt.Printf("📥 Analyzing up to %d unread emails...\n", max)
	fmt.Println()

	summary, err := runner.Run(ctx, func(done, total int, subject string) {
		if subject == "" {
			subject = "(skipped)"
		}
		fmt.Printf("[%d/%d] %s\n", done, total, subject)
	})
	if err != nil {
		return err
	}

	fmt.Println()
	fmt.Println("━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━")
	fmt.Printf("📊 Analyzed %d emails\n", summary.Processed)
	fmt.Printf("  🔴 Very important: %d\n", summary.ByLevel[analysis.VeryImportant])
	fmt.Printf("  🟠 Important:      %d\n", summary.ByLevel[analysis.Important])
	fmt.Printf("  ⚪ Unimportant:    %d\n", summary.ByLevel[analysis.Unimportant])
	fmt.Printf("  🟣 Spam:           %d\n", summary.ByLevel[analysis.Spam])
	if summary.Fallback > 0 {
		fmt.Printf("  ⚠️  %d verdicts came from the heuristic fallback\n", summary.Fallback)
	}
	fmt.Println()
	fmt.Println("Run 'mailtriage status' for details or 'mailtriage serve' for the dashboard.")

	return nil
}

func runServe(portOverride int) error {
	logger := newLogger()

	cfg, err := config.Load(resolveConfigPath())
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}

	port := cfg.Web.Port
	if portOverride > 0 {
		port = portOverride
	}

	st, err := store.NewStore(store.DefaultDBPath())
	if err != nil {
		return fmt.Errorf("failed to open store: %w", err)
	}
	defer st.Close()

	newRunner := func(ctx context.Context) (*triage.Runner, error) {
		source, err := buildSource(ctx, cfg, logger)
		if err != nil {
			return nil, fmt.Errorf("failed to open mailbox: %w", err)
		}
		return &triage.Runner{
			Source:   source,
			Analyzer: analysis.NewAnalyzer(buildGateway(ctx, cfg, logger), logger),
			Store:    st,
			Max:      cfg.Mailbox.MaxEmails,
			Logger:   logger,
		}, nil
	}

	server, err := web.NewServer(port, st, newRunner, logger)
	if err != nil {
		return fmt.Errorf("failed to create web server: %w", err)
	}

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		<-sigChan
		fmt.Println("\nShutting down...")
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		server.Shutdown(ctx)
	}()

	return server.Start()
}

func runShow(messageID string) error {
	st, err := store.NewStore(store.DefaultDBPath())
	if err != nil {
		return fmt.Errorf("failed to open store: %w", err)
	}
	defer st.Close()

	rec, err := st.Get(messageID)
	if err != nil {
		return fmt.Errorf("failed to load verdict: %w", err)
	}
	if rec == nil {
		return fmt.Errorf("no stored verdict for message %s", messageID)
	}

	data, err := json.MarshalIndent(rec, "", "  ")
	if err != nil {
		return err
	}
	fmt.Println(string(data))
	return nil
}

func runStatus(limit int) error {
	st, err := store.NewStore(store.DefaultDBPath())
	if err != nil {
		return fmt.Errorf("failed to open store: %w", err)
	}
	defer st.Close()

	stats, err := st.GetStats()
	if err != nil {
		return fmt.Errorf("failed to get stats: %w", err)
	}

	fmt.Println("📊 mailtriage Statistics")
	fmt.Println("━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━")
	fmt.Println()
	fmt.Printf("Analyzed emails: %d\n", stats.Total)
	fmt.Printf("  🔴 Very important: %d\n", stats.ByLevel[analysis.VeryImportant])
	fmt.Printf("  🟠 Important:      %d\n", stats.ByLevel[analysis.Important])
	fmt.Printf("  ⚪ Unimportant:    %d\n", stats.ByLevel[analysis.Unimportant])
	fmt.Printf("  🟣 Spam:           %d\n", stats.ByLevel[analysis.Spam])
	if stats.Heuristic > 0 {
		fmt.Printf("  ⚠️  Heuristic verdicts: %d\n", stats.Heuristic)
	}

	records, err := st.Recent(limit)
	if err != nil {
		return fmt.Errorf("failed to get recent verdicts: %w", err)
	}

	if len(records) > 0 {
		fmt.Println()
		fmt.Printf("📜 Recent Verdicts (last %d)\n", limit)
		fmt.Println("━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━")

		for _, r := range records {
			icon := "⚪"
			switch r.Result.Level {
			case analysis.VeryImportant:
				icon = "🔴"
			case analysis.Important:
				icon = "🟠"
			case analysis.Spam:
				icon = "🟣"
			}
			fmt.Printf("%s %s - %s\n", icon, r.Result.Level, r.Subject)
			fmt.Printf("   %s\n", r.Result.Summary)
			if len(r.Result.Deadlines) > 0 {
				fmt.Printf("   ⏰ Deadlines: %s\n", strings.Join(r.Result.Deadlines, ", "))
			}
			fmt.Printf("   ID: %s\n", r.MessageID)
		}
	}

	return nil
}

func prompt(reader *bufio.Reader, message string) string {
	fmt.Print(message)
	input, err := reader.ReadString('\n')
	if err != nil {
		return ""
	}
	return strings.TrimSpace(input)
}
