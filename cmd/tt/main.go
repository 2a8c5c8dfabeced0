package main

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"time"

	"tt-go/internal/app"
	"tt-go/internal/config"
	"tt-go/internal/database/sqlc"
	"tt-go/internal/tt"

	"github.com/google/uuid"
	"github.com/spf13/cobra"
	"golang.org/x/term"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	err := rootCmd.ExecuteContext(ctx)
	stop()
	if err != nil {
		os.Exit(1)
	}
}

func readConfig() (*config.Config, error) {
	defaults, err := app.GetDefaults()
	if err != nil {
		return nil, fmt.Errorf("getting defaults: %w", err)
	}

	cfg, err := config.ReadFromFile(defaults["config_path"])
	if err != nil {
		return nil, fmt.Errorf("reading config: %w", err)
	}
	return cfg, nil
}

// newApp reads the config and creates a TTApp. The caller must defer app.Close().
// operation identifies the CLI command being run (e.g. "Transfer", "Status").
func newApp(ctx context.Context, operation string) (*app.TTApp, error) {
	cfg, err := readConfig()
	if err != nil {
		return nil, err
	}

	a, err := app.NewTTApp(ctx, cfg, operation)
	if err != nil {
		return nil, fmt.Errorf("initializing app: %w", err)
	}

	return a, nil
}

// destination returns the --dest flag, falling back to the only configured
// destination.
func destination(cmd *cobra.Command, cfg *config.Config) (string, error) {
	dest, _ := cmd.Flags().GetString("dest")
	if dest != "" {
		return dest, nil
	}
	if len(cfg.Destinations) == 1 {
		return cfg.Destinations[0].Name, nil
	}
	return "", fmt.Errorf("--dest is required")
}

var rootCmd = &cobra.Command{
	Use:   "tt",
	Short: "Content-addressed file placement",
}

// config command
var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Manage configuration",
}

var configInitCmd = &cobra.Command{
	Use:   "init",
	Short: "Initialize configuration and identity store",
	RunE: func(cmd *cobra.Command, args []string) error {
		defaults, err := app.GetDefaults()
		if err != nil {
			return fmt.Errorf("failed to get defaults: %w", err)
		}

		hostID := uuid.New().String()
		cfg := config.NewConfig(hostID, defaults["base_dir"])

		if err := config.Init(defaults["config_path"], cfg); err != nil {
			return fmt.Errorf("failed to initialize config: %w", err)
		}
		if err := app.Migrate(cfg); err != nil {
			return err
		}

		fmt.Printf("Configuration initialized at %s\n", defaults["config_path"])
		fmt.Printf("Host ID: %s\n", hostID)
		fmt.Printf("Base Dir: %s\n", defaults["base_dir"])
		return nil
	},
}

var configListCmd = &cobra.Command{
	Use:   "list",
	Short: "View configuration",
	RunE: func(cmd *cobra.Command, args []string) error {
		defaults, err := app.GetDefaults()
		if err != nil {
			return fmt.Errorf("failed to get defaults: %w", err)
		}

		cfg, err := config.ReadFromFile(defaults["config_path"])
		if err != nil {
			return fmt.Errorf("failed to read config: %w", err)
		}

		fmt.Printf("Configuration from %s:\n\n", defaults["config_path"])
		fmt.Printf("Host ID:    %s\n", cfg.HostID)
		fmt.Printf("Base Dir:   %s\n", cfg.BaseDir)
		fmt.Printf("Log Dir:    %s\n", cfg.LogDir)
		fmt.Printf("Transport:  %s (%s)\n", cfg.Transport.Name, cfg.Transport.Type)
		fmt.Printf("Chunk Size: %d\n", app.SettingsFromConfig(cfg).Ceiling())
		fmt.Printf("Policy:     %s\n", cfg.Transfer.Policy)
		for _, d := range cfg.Destinations {
			fmt.Printf("Destination %-12s %d\n", d.Name, d.ID)
		}
		return nil
	},
}

// db command
var dbCmd = &cobra.Command{
	Use:   "db",
	Short: "Manage the identity store",
}

var dbMigrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Apply pending schema migrations",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := readConfig()
		if err != nil {
			return err
		}
		if err := app.Migrate(cfg); err != nil {
			return err
		}
		fmt.Println("Identity store is up to date.")
		return nil
	},
}

// transfer command
var transferCmd = &cobra.Command{
	Use:     "transfer PATH...",
	Aliases: []string{"upload"},
	Short:   "Place files or directories on a destination",
	Args:    cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		a, err := newApp(ctx, "Transfer")
		if err != nil {
			return err
		}
		defer a.Close()

		dest, err := destination(cmd, a.Config())
		if err != nil {
			return err
		}
		policyName, _ := cmd.Flags().GetString("policy")
		if policyName == "" {
			policyName = a.Config().Transfer.Policy
		}
		policy, err := tt.ParsePolicy(policyName)
		if err != nil {
			return err
		}

		var ask tt.AskFunc
		if term.IsTerminal(int(os.Stdin.Fd())) {
			ask = prompt(os.Stdin, os.Stdout)
		}

		for _, path := range args {
			res, err := a.Transfer(ctx, path, dest, policy, ask)
			if err != nil {
				return fmt.Errorf("%s: %w", path, err)
			}
			fmt.Printf("%-9s %s  [%s, %s]\n", res.Outcome, path, res.Availability.State, res.Contract.Strategy)
		}
		return nil
	},
}

// prompt returns an AskFunc that asks on out and reads the answer from in.
func prompt(in io.Reader, out io.Writer) tt.AskFunc {
	reader := bufio.NewReader(in)
	return func(_ context.Context, c *sqlc.Contract, a *tt.Availability) (tt.Decision, error) {
		canForward := a.State == tt.StateRemoteMirror || a.State == tt.StateRemotePuzzle
		fmt.Fprintf(out, "Contract %s is %s", c.ID, a.State)
		if len(a.Donors) > 0 {
			fmt.Fprintf(out, " (held by %v)", a.Donors)
		}
		if canForward {
			fmt.Fprint(out, ". [f]orward, [u]pload or [s]kip? ")
		} else {
			fmt.Fprint(out, ". [u]pload or [s]kip? ")
		}

		line, err := reader.ReadString('\n')
		if err != nil && line == "" {
			return tt.DecisionSkip, fmt.Errorf("reading answer: %w", err)
		}
		switch strings.ToLower(strings.TrimSpace(line)) {
		case "f", "forward":
			if canForward {
				return tt.DecisionForward, nil
			}
		case "u", "upload":
			return tt.DecisionUpload, nil
		}
		return tt.DecisionSkip, nil
	}
}

// status command
var statusCmd = &cobra.Command{
	Use:   "status PATH...",
	Short: "Show where content is available",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		a, err := newApp(ctx, "Status")
		if err != nil {
			return err
		}
		defer a.Close()

		dest, err := destination(cmd, a.Config())
		if err != nil {
			return err
		}

		for _, path := range args {
			st, err := a.Status(ctx, path, dest)
			if err != nil {
				return fmt.Errorf("%s: %w", path, err)
			}
			contract := "-"
			if st.Contract != nil {
				contract = fmt.Sprintf("%s %s", st.Contract.Strategy, st.Contract.Status)
			}
			fmt.Printf("%-17s %d/%d  %s  %s  %s\n", st.State, st.Placed, st.Expected, st.Checksum[:12], contract, st.Path)
		}
		return nil
	},
}

// contracts command
var contractsCmd = &cobra.Command{
	Use:   "contracts",
	Short: "List recent contracts",
	RunE: func(cmd *cobra.Command, args []string) error {
		limit, _ := cmd.Flags().GetInt("limit")

		a, err := newApp(cmd.Context(), "ListContracts")
		if err != nil {
			return err
		}
		defer a.Close()

		summaries, err := a.ListContracts(limit)
		if err != nil {
			return err
		}
		if len(summaries) == 0 {
			fmt.Println("No contracts.")
			return nil
		}

		titles := a.Config().DestinationTitles()
		for _, s := range summaries {
			dest, ok := titles[s.Contract.DestinationID]
			if !ok {
				dest = fmt.Sprint(s.Contract.DestinationID)
			}
			fmt.Printf("%s  %-8s  %-7s  %d/%d  %-12s  %s\n",
				s.Contract.ID[:8],
				s.Contract.Status,
				s.Contract.Strategy,
				s.Placed,
				s.Expected,
				dest,
				s.Source.Path,
			)
		}
		return nil
	},
}

// history command
var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "View operation history",
	RunE: func(cmd *cobra.Command, args []string) error {
		limit, _ := cmd.Flags().GetInt("limit")

		a, err := newApp(cmd.Context(), "GetHistory")
		if err != nil {
			return err
		}
		defer a.Close()

		ops, err := a.GetHistory(limit)
		if err != nil {
			return err
		}

		if len(ops) == 0 {
			fmt.Println("No operations recorded.")
			return nil
		}

		for _, op := range ops {
			duration := ""
			if op.FinishedAt.Valid {
				d := op.FinishedAt.Time.Sub(op.StartedAt)
				duration = d.Truncate(time.Millisecond).String()
			}
			fmt.Printf("#%d  %-15s  %s  %-10s  %s  %s\n",
				op.ID,
				op.Operation,
				op.StartedAt.Format("2006-01-02 15:04:05"),
				op.Status,
				duration,
				op.Parameters,
			)
		}
		return nil
	},
}

// manifest command
var manifestCmd = &cobra.Command{
	Use:   "manifest",
	Short: "Export or import contract manifests",
}

var manifestExportCmd = &cobra.Command{
	Use:   "export PATH",
	Short: "Write the manifest of a placed file or directory",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp(cmd.Context(), "ExportManifest")
		if err != nil {
			return err
		}
		defer a.Close()

		dest, err := destination(cmd, a.Config())
		if err != nil {
			return err
		}

		var w io.Writer = os.Stdout
		if output, _ := cmd.Flags().GetString("output"); output != "" {
			f, err := os.Create(output)
			if err != nil {
				return fmt.Errorf("creating %s: %w", output, err)
			}
			defer f.Close()
			w = f
		}

		doc, err := a.ExportManifest(args[0], dest, w)
		if err != nil {
			return err
		}
		fmt.Fprintf(os.Stderr, "Manifest of %s: %d part(s)\n", doc.Source.Filename, len(doc.Parts))
		return nil
	},
}

var manifestImportCmd = &cobra.Command{
	Use:   "import FILE",
	Short: "Restore a contract from its manifest",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp(cmd.Context(), "ImportManifest")
		if err != nil {
			return err
		}
		defer a.Close()

		f, err := os.Open(args[0])
		if err != nil {
			return fmt.Errorf("opening manifest: %w", err)
		}
		defer f.Close()

		dest, _ := cmd.Flags().GetString("dest")
		res, err := a.ImportManifest(cmd.Context(), f, dest)
		if err != nil {
			return err
		}
		fmt.Printf("Contract %s: %d part(s) restored, %d missing, status %s\n",
			res.Contract.ID, res.Restored, res.Missing, res.Contract.Status)
		return nil
	},
}

func init() {
	// config subcommands
	configCmd.AddCommand(configInitCmd)
	configCmd.AddCommand(configListCmd)

	// db subcommands
	dbCmd.AddCommand(dbMigrateCmd)

	// manifest subcommands
	manifestCmd.AddCommand(manifestExportCmd)
	manifestExportCmd.Flags().StringP("dest", "d", "", "Destination name or ID")
	manifestExportCmd.Flags().StringP("output", "o", "", "Write the manifest to a file instead of stdout")
	manifestCmd.AddCommand(manifestImportCmd)
	manifestImportCmd.Flags().StringP("dest", "d", "", "Expected destination name or ID")

	// root commands
	rootCmd.AddCommand(configCmd)
	rootCmd.AddCommand(dbCmd)
	rootCmd.AddCommand(transferCmd)
	transferCmd.Flags().StringP("dest", "d", "", "Destination name or ID")
	transferCmd.Flags().StringP("policy", "p", "", "Policy: strict, force or smart (default from config)")
	rootCmd.AddCommand(statusCmd)
	statusCmd.Flags().StringP("dest", "d", "", "Destination name or ID")
	rootCmd.AddCommand(contractsCmd)
	contractsCmd.Flags().IntP("limit", "n", 50, "Maximum number of contracts to show")
	rootCmd.AddCommand(historyCmd)
	historyCmd.Flags().IntP("limit", "n", 50, "Maximum number of operations to show")
	rootCmd.AddCommand(manifestCmd)
}
