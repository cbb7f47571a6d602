package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"

	"cdmkn-go/internal/app"
	"cdmkn-go/internal/cdmkn"
	"cdmkn-go/internal/config"
	"cdmkn-go/internal/daemon"

	"github.com/dustin/go-humanize"
	"github.com/google/uuid"
	"github.com/spf13/cobra"
	"golang.org/x/term"
)

var verbose bool

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func loadConfig() (*config.Config, string, error) {
	defaults, err := app.GetDefaults()
	if err != nil {
		return nil, "", fmt.Errorf("getting defaults: %w", err)
	}
	cfg, err := config.ReadFromFile(defaults["config_path"])
	if err != nil {
		return nil, "", fmt.Errorf("reading config (run `cdmkn init` first): %w", err)
	}
	return cfg, defaults["config_path"], nil
}

// withApp reads the config, builds the app for command and runs fn with
// it. The run is marked failed when fn returns an error.
func withApp(command string, fn func(a *app.CdmknApp) error) error {
	cfg, _, err := loadConfig()
	if err != nil {
		return err
	}
	a, err := app.NewCdmknApp(cfg, command, app.Options{Verbose: verbose})
	if err != nil {
		return fmt.Errorf("initializing app: %w", err)
	}
	defer a.Close()

	if err := fn(a); err != nil {
		a.Run().Fail()
		return err
	}
	return nil
}

// readPassphrase prompts on the terminal without echo, or reads one line
// when stdin is not a terminal.
func readPassphrase(prompt string) (string, error) {
	fd := int(os.Stdin.Fd())
	if term.IsTerminal(fd) {
		fmt.Fprint(os.Stderr, prompt)
		b, err := term.ReadPassword(fd)
		fmt.Fprintln(os.Stderr)
		if err != nil {
			return "", fmt.Errorf("reading passphrase: %w", err)
		}
		return string(b), nil
	}
	line, err := bufio.NewReader(os.Stdin).ReadString('\n')
	if err != nil && line == "" {
		return "", fmt.Errorf("reading passphrase: %w", err)
	}
	return strings.TrimRight(line, "\r\n"), nil
}

func parseChangeID(s string) (int64, error) {
	id, err := strconv.ParseInt(s, 10, 64)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("%w: change id must be a positive number, got %q", cdmkn.ErrInvalidInput, s)
	}
	return id, nil
}

var rootCmd = &cobra.Command{
	Use:           "cdmkn",
	Short:         "Continuous history for text files",
	SilenceUsage:  true,
	SilenceErrors: false,
}

var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Create the configuration, data directory and database",
	RunE: func(cmd *cobra.Command, args []string) error {
		defaults, err := app.GetDefaults()
		if err != nil {
			return fmt.Errorf("failed to get defaults: %w", err)
		}

		installID := uuid.New().String()
		cfg := config.NewConfig(installID, defaults["base_dir"])
		if noEncryption, _ := cmd.Flags().GetBool("no-encryption"); noEncryption {
			cfg.Sync.Encryption.Type = "none"
		}

		if err := app.Initialize(defaults["config_path"], cfg); err != nil {
			return fmt.Errorf("failed to initialize: %w", err)
		}

		fmt.Printf("Configuration initialized at %s\n", defaults["config_path"])
		fmt.Printf("Install ID: %s\n", installID)
		fmt.Printf("Base Dir:   %s\n", cfg.BaseDir)
		if cfg.Sync.Encryption.Type != "none" {
			fmt.Println("Run `cdmkn keys init` before the first push.")
		}
		return nil
	},
}

var keysCmd = &cobra.Command{
	Use:   "keys",
	Short: "Manage encryption keys",
}

var keysInitCmd = &cobra.Command{
	Use:   "init",
	Short: "Generate the key pair used to encrypt pushed history",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, _, err := loadConfig()
		if err != nil {
			return err
		}
		passphrase, err := readPassphrase("Passphrase: ")
		if err != nil {
			return err
		}
		if term.IsTerminal(int(os.Stdin.Fd())) {
			confirm, err := readPassphrase("Repeat passphrase: ")
			if err != nil {
				return err
			}
			if confirm != passphrase {
				return errors.New("passphrases do not match")
			}
		}
		if err := app.SetupKeys(cfg, passphrase); err != nil {
			return err
		}
		fmt.Printf("Keys written to %s\n", cfg.Sync.Encryption.PrivateKeyPath)
		return nil
	},
}

// repo command
var repoCmd = &cobra.Command{
	Use:   "repo",
	Short: "Manage watched repositories",
}

var repoAddCmd = &cobra.Command{
	Use:   "add [PATH]",
	Short: "Watch a directory",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		target := "."
		if len(args) > 0 {
			target = args[0]
		}
		return withApp("repo add", func(a *app.CdmknApp) error {
			repo, err := a.AddRepository(target)
			if err != nil {
				return err
			}
			fmt.Printf("Watching %s\n", repo.AbsolutePath)
			return nil
		})
	},
}

var repoListCmd = &cobra.Command{
	Use:   "list",
	Short: "List watched repositories",
	RunE: func(cmd *cobra.Command, args []string) error {
		return withApp("repo list", func(a *app.CdmknApp) error {
			repos, err := a.ListRepositories()
			if err != nil {
				return err
			}
			if len(repos) == 0 {
				fmt.Println("No repositories.")
				return nil
			}
			for _, r := range repos {
				fmt.Printf("%-8s  %-14s  %s\n", cdmkn.RepoStatus(r.Status), humanize.Time(r.CreatedAt), r.AbsolutePath)
			}
			return nil
		})
	},
}

func repoToggleCmd(use, short string, enabled bool) *cobra.Command {
	return &cobra.Command{
		Use:   use + " PATH",
		Short: short,
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp("repo "+use, func(a *app.CdmknApp) error {
				if err := a.SetRepositoryEnabled(args[0], enabled); err != nil {
					return err
				}
				fmt.Printf("Repository %sd: %s\n", use, args[0])
				return nil
			})
		},
	}
}

// daemon commands
var startCmd = &cobra.Command{
	Use:   "start",
	Short: "Run the watcher in the foreground",
	RunE: func(cmd *cobra.Command, args []string) error {
		return withApp("start", func(a *app.CdmknApp) error {
			err := a.RunWatcher(context.Background())
			var running *daemon.AlreadyRunningError
			if errors.As(err, &running) {
				fmt.Printf("Watcher already running (pid %d).\n", running.PID)
				return nil
			}
			return err
		})
	},
}

var stopCmd = &cobra.Command{
	Use:   "stop",
	Short: "Ask the running watcher to stop",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, _, err := loadConfig()
		if err != nil {
			return err
		}
		pid, err := app.Controller(cfg).Stop()
		if errors.Is(err, daemon.ErrNotRunning) {
			fmt.Println("Watcher is not running.")
			return nil
		}
		if err != nil {
			return err
		}
		fmt.Printf("Stop requested (pid %d). The watcher exits after its current pass.\n", pid)
		return nil
	},
}

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show whether the watcher is running",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, _, err := loadConfig()
		if err != nil {
			return err
		}
		status, err := app.Controller(cfg).Status()
		if err != nil {
			return err
		}
		switch {
		case !status.Running:
			fmt.Println("Watcher is not running.")
		case status.Alive:
			fmt.Printf("Watcher is running (pid %d).\n", status.PID)
		default:
			fmt.Printf("Stale marker: process %d is gone. Run `cdmkn stop` to clear it.\n", status.PID)
		}
		return nil
	},
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Log debug output to stderr")

	initCmd.Flags().Bool("no-encryption", false, "Push history without encryption")
	rootCmd.AddCommand(initCmd)

	keysCmd.AddCommand(keysInitCmd)
	rootCmd.AddCommand(keysCmd)

	repoCmd.AddCommand(repoAddCmd)
	repoCmd.AddCommand(repoListCmd)
	repoCmd.AddCommand(repoToggleCmd("enable", "Resume watching a repository", true))
	repoCmd.AddCommand(repoToggleCmd("disable", "Stop watching a repository", false))
	rootCmd.AddCommand(repoCmd)

	rootCmd.AddCommand(startCmd)
	rootCmd.AddCommand(stopCmd)
	rootCmd.AddCommand(statusCmd)
}
