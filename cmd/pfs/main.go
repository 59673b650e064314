package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strconv"
	"syscall"

	"pfs-go/internal/app"
	"pfs-go/internal/config"
	"pfs-go/internal/display"
	"pfs-go/internal/pfs"

	"github.com/spf13/cobra"
	"golang.org/x/term"
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

// newApp reads the config and creates a PFSApp. The caller must defer app.Close().
// operation identifies the CLI command being run (e.g. "sync", "state").
func newApp(operation string) (*app.PFSApp, error) {
	cfg, _, err := readConfig()
	if err != nil {
		return nil, err
	}

	a, err := app.NewPFSApp(cfg, operation)
	if err != nil {
		return nil, fmt.Errorf("initializing app: %w", err)
	}

	return a, nil
}

func readConfig() (*config.Config, string, error) {
	paths, err := app.DefaultPaths()
	if err != nil {
		return nil, "", fmt.Errorf("getting defaults: %w", err)
	}

	cfg, err := config.ReadFromFile(paths.ConfigPath)
	if err != nil {
		return nil, "", fmt.Errorf("reading config: %w", err)
	}
	return cfg, paths.ConfigPath, nil
}

func newPrinter() *display.Printer {
	return display.New(os.Stdout, display.IsTerminal(os.Stdout))
}

// filterFromFlags builds the path and state filter shared by the
// project commands.
func filterFromFlags(cmd *cobra.Command) (pfs.Filter, error) {
	var f pfs.Filter
	f.FSPaths, _ = cmd.Flags().GetStringSlice("fs-path")
	f.PootlePaths, _ = cmd.Flags().GetStringSlice("pootle-path")
	if cmd.Flags().Lookup("type") != nil {
		types, _ := cmd.Flags().GetStringSlice("type")
		for _, t := range types {
			st, err := pfs.ParseStateType(t)
			if err != nil {
				return f, err
			}
			f.Types = append(f.Types, st)
		}
	}
	return f, nil
}

func addFilterFlags(cmd *cobra.Command) {
	cmd.Flags().StringSliceP("fs-path", "p", nil, "Only act on filesystem paths matching this glob")
	cmd.Flags().StringSliceP("pootle-path", "P", nil, "Only act on pootle paths matching this glob")
}

// runMutation runs a recorded project operation and prints its response.
func runMutation(cmd *cobra.Command, operation string,
	fn func(ctx context.Context, a *app.PFSApp, f pfs.Filter) (*pfs.Response, error)) error {
	f, err := filterFromFlags(cmd)
	if err != nil {
		return err
	}

	a, err := newApp(operation)
	if err != nil {
		return err
	}
	defer a.Close()

	resp, err := fn(cmd.Context(), a, f)
	if resp != nil {
		newPrinter().Response(resp)
	}
	if err != nil {
		return fmt.Errorf("%s failed: %w", operation, err)
	}
	if resp.HasFailed() {
		return fmt.Errorf("%s: %d action(s) failed", operation, len(resp.Failed()))
	}
	return nil
}

// readNewPassphrase reads a new passphrase from PFS_PASSPHRASE, or asks for
// it twice on the terminal.
func readNewPassphrase() (string, error) {
	if p := os.Getenv(app.PassphraseEnv); p != "" {
		return p, nil
	}
	fd := int(os.Stdin.Fd())
	if !term.IsTerminal(fd) {
		return "", fmt.Errorf("no passphrase: set %s or run from a terminal", app.PassphraseEnv)
	}

	read := func(prompt string) (string, error) {
		fmt.Fprint(os.Stderr, prompt)
		b, err := term.ReadPassword(fd)
		fmt.Fprintln(os.Stderr)
		if err != nil {
			return "", fmt.Errorf("reading passphrase: %w", err)
		}
		return string(b), nil
	}

	first, err := read("New passphrase: ")
	if err != nil {
		return "", err
	}
	if first == "" {
		return "", fmt.Errorf("passphrase must not be empty")
	}
	second, err := read("Confirm passphrase: ")
	if err != nil {
		return "", err
	}
	if first != second {
		return "", fmt.Errorf("passphrases do not match")
	}
	return first, nil
}

var rootCmd = &cobra.Command{
	Use:          "pfs",
	Short:        "Reconcile Pootle stores with translation files",
	SilenceUsage: true,
}

// config command
var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Manage configuration",
}

var configInitCmd = &cobra.Command{
	Use:   "init",
	Short: "Initialize configuration and database",
	RunE: func(cmd *cobra.Command, args []string) error {
		paths, err := app.DefaultPaths()
		if err != nil {
			return fmt.Errorf("failed to get defaults: %w", err)
		}

		cfg := config.NewConfig(paths.BaseDir)

		if err := config.Init(paths.ConfigPath, cfg); err != nil {
			return fmt.Errorf("failed to initialize config: %w", err)
		}
		if err := app.InitDatabase(cfg); err != nil {
			return err
		}

		fmt.Printf("Configuration initialized at %s\n", paths.ConfigPath)
		fmt.Printf("Base Dir: %s\n", paths.BaseDir)
		return nil
	},
}

var configListCmd = &cobra.Command{
	Use:   "list",
	Short: "View configuration",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, path, err := readConfig()
		if err != nil {
			return err
		}

		fmt.Printf("Configuration from %s:\n\n", path)
		fmt.Printf("Base Dir:    %s\n", cfg.BaseDir)
		fmt.Printf("Log Dir:     %s\n", cfg.LogDir)
		fmt.Printf("Working Dir: %s\n", cfg.WorkingDir)
		fmt.Printf("Database:    %s %s\n", cfg.Database.Type, cfg.Database.DataDir)
		fmt.Printf("Log Level:   %s\n", cfg.Log.Level)
		if s3 := cfg.Transport.S3; s3.Region != "" || s3.Endpoint != "" {
			fmt.Printf("S3:          region=%s endpoint=%s encrypt=%t\n", s3.Region, s3.Endpoint, s3.Encrypt)
		}
		return nil
	},
}

// db command
var dbCmd = &cobra.Command{
	Use:   "db",
	Short: "Manage the database",
}

var dbMigrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Apply pending schema migrations",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, _, err := readConfig()
		if err != nil {
			return err
		}
		if err := app.InitDatabase(cfg); err != nil {
			return err
		}
		fmt.Println("Database is up to date.")
		return nil
	},
}

var dbBackupCmd = &cobra.Command{
	Use:   "backup PATH",
	Short: "Write a copy of the database",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp("db-backup")
		if err != nil {
			return err
		}
		defer a.Close()

		if err := a.BackupDatabase(args[0]); err != nil {
			return err
		}
		fmt.Printf("Database written to %s\n", args[0])
		return nil
	},
}

// project command
var projectCmd = &cobra.Command{
	Use:   "project",
	Short: "Manage projects",
}

var projectInitCmd = &cobra.Command{
	Use:   "init CODE",
	Short: "Create a project",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		fsType, _ := cmd.Flags().GetString("fs-type")
		fsURL, _ := cmd.Flags().GetString("fs-url")
		mapping, _ := cmd.Flags().GetString("mapping")
		excluded, _ := cmd.Flags().GetStringSlice("exclude-language")
		langMapping, _ := cmd.Flags().GetStringToString("lang-mapping")

		a, err := newApp("project-init")
		if err != nil {
			return err
		}
		defer a.Close()

		p, err := a.InitProject(app.ProjectSpec{
			Code:               args[0],
			FSType:             fsType,
			FSURL:              fsURL,
			TranslationMapping: mapping,
			ExcludedLanguages:  excluded,
			LangMapping:        langMapping,
		})
		if err != nil {
			return err
		}
		fmt.Printf("Created project %s (%s %s)\n", p.Code, p.FSType, p.FSURL)
		fmt.Printf("Run 'pfs fetch %s' to create the working clone.\n", p.Code)
		return nil
	},
}

var projectListCmd = &cobra.Command{
	Use:   "list",
	Short: "List projects",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp("project-list")
		if err != nil {
			return err
		}
		defer a.Close()

		projects, err := a.Projects()
		if err != nil {
			return err
		}
		newPrinter().Projects(projects)
		return nil
	},
}

// state command
var stateCmd = &cobra.Command{
	Use:   "state PROJECT",
	Short: "Show the sync state of a project",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		all, _ := cmd.Flags().GetBool("all")
		watch, _ := cmd.Flags().GetBool("watch")
		f, err := filterFromFlags(cmd)
		if err != nil {
			return err
		}

		a, err := newApp("state")
		if err != nil {
			return err
		}
		defer a.Close()

		show := func() error {
			s, err := a.State(cmd.Context(), args[0], f)
			if err != nil {
				return err
			}
			newPrinter().State(args[0], s, all)
			return nil
		}
		if err := show(); err != nil {
			return err
		}
		if !watch {
			return nil
		}

		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()
		err = a.Watch(ctx, args[0], func() {
			fmt.Println()
			if err := show(); err != nil {
				fmt.Fprintf(os.Stderr, "state: %v\n", err)
			}
		})
		if err != nil && ctx.Err() == nil {
			return err
		}
		return nil
	},
}

// add command
var addCmd = &cobra.Command{
	Use:   "add PROJECT",
	Short: "Track untracked files and stores",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		force, _ := cmd.Flags().GetBool("force")
		return runMutation(cmd, "add", func(ctx context.Context, a *app.PFSApp, f pfs.Filter) (*pfs.Response, error) {
			return a.Add(ctx, args[0], force, f)
		})
	},
}

// resolve command
var resolveCmd = &cobra.Command{
	Use:   "resolve PROJECT",
	Short: "Stage conflicts for merge or overwrite",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		overwrite, _ := cmd.Flags().GetBool("overwrite")
		pootleWins, _ := cmd.Flags().GetBool("pootle-wins")
		return runMutation(cmd, "resolve", func(ctx context.Context, a *app.PFSApp, f pfs.Filter) (*pfs.Response, error) {
			return a.Resolve(ctx, args[0], !overwrite, pootleWins, f)
		})
	},
}

// rm command
var rmCmd = &cobra.Command{
	Use:   "rm PROJECT",
	Short: "Stage removed files and stores for removal",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		force, _ := cmd.Flags().GetBool("force")
		return runMutation(cmd, "rm", func(ctx context.Context, a *app.PFSApp, f pfs.Filter) (*pfs.Response, error) {
			return a.Rm(ctx, args[0], force, f)
		})
	},
}

// unstage command
var unstageCmd = &cobra.Command{
	Use:   "unstage PROJECT",
	Short: "Revert staged actions",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return runMutation(cmd, "unstage", func(ctx context.Context, a *app.PFSApp, f pfs.Filter) (*pfs.Response, error) {
			return a.Unstage(ctx, args[0], f)
		})
	},
}

// sync command
var syncCmd = &cobra.Command{
	Use:   "sync PROJECT",
	Short: "Synchronize stores and files",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return runMutation(cmd, "sync", func(ctx context.Context, a *app.PFSApp, f pfs.Filter) (*pfs.Response, error) {
			return a.Sync(ctx, args[0], f)
		})
	},
}

// fetch command
var fetchCmd = &cobra.Command{
	Use:   "fetch PROJECT",
	Short: "Update the working clone from upstream",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp("fetch")
		if err != nil {
			return err
		}
		defer a.Close()

		if err := a.Fetch(cmd.Context(), args[0]); err != nil {
			return err
		}
		fmt.Printf("Fetched %s\n", args[0])
		return nil
	},
}

// info command
var infoCmd = &cobra.Command{
	Use:   "info PROJECT",
	Short: "Show project configuration and revisions",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp("info")
		if err != nil {
			return err
		}
		defer a.Close()

		info, err := a.Info(args[0])
		if err != nil {
			return err
		}
		newPrinter().Info(info)
		return nil
	},
}

// history command
var historyCmd = &cobra.Command{
	Use:   "history PROJECT",
	Short: "View operation history",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		limit, _ := cmd.Flags().GetInt("limit")

		a, err := newApp("history")
		if err != nil {
			return err
		}
		defer a.Close()

		ops, err := a.History(args[0], limit)
		if err != nil {
			return err
		}
		newPrinter().History(ops)
		return nil
	},
}

var historyShowCmd = &cobra.Command{
	Use:   "show RUN",
	Short: "Show the actions of one operation",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp("history")
		if err != nil {
			return err
		}
		defer a.Close()

		op, actions, err := a.Run(args[0])
		if err != nil {
			return err
		}
		newPrinter().Run(op, actions)
		return nil
	},
}

// store command
var storeCmd = &cobra.Command{
	Use:   "store",
	Short: "Inspect and edit stores",
}

var storeLsCmd = &cobra.Command{
	Use:   "ls PROJECT",
	Short: "List the stores of a project",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp("store-ls")
		if err != nil {
			return err
		}
		defer a.Close()

		docs, err := a.Stores(args[0])
		if err != nil {
			return err
		}
		newPrinter().Stores(docs)
		return nil
	},
}

var storeShowCmd = &cobra.Command{
	Use:   "show POOTLE_PATH",
	Short: "Show the units of a store",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp("store-show")
		if err != nil {
			return err
		}
		defer a.Close()

		doc, units, err := a.Units(args[0])
		if err != nil {
			return err
		}
		newPrinter().Units(doc, units)
		return nil
	},
}

var storeEditCmd = &cobra.Command{
	Use:   "edit POOTLE_PATH INDEX TARGET",
	Short: "Set the translation of one unit",
	Args:  cobra.ExactArgs(3),
	RunE: func(cmd *cobra.Command, args []string) error {
		index, err := strconv.Atoi(args[1])
		if err != nil {
			return fmt.Errorf("invalid unit index %q: %w", args[1], err)
		}

		a, err := newApp("store-edit")
		if err != nil {
			return err
		}
		defer a.Close()

		rev, err := a.EditUnit(args[0], index, args[2])
		if err != nil {
			return err
		}
		fmt.Printf("Unit %d of %s updated (revision %d)\n", index, args[0], rev)
		return nil
	},
}

var storeImportCmd = &cobra.Command{
	Use:   "import PROJECT POOTLE_PATH FILE",
	Short: "Create or replace a store from a translation file",
	Args:  cobra.ExactArgs(3),
	RunE: func(cmd *cobra.Command, args []string) error {
		f, err := os.Open(args[2])
		if err != nil {
			return fmt.Errorf("opening %s: %w", args[2], err)
		}
		defer f.Close()

		a, err := newApp("store-import")
		if err != nil {
			return err
		}
		defer a.Close()

		doc, err := a.ImportStore(args[0], args[1], f)
		if err != nil {
			return err
		}
		fmt.Printf("Imported %s (revision %d)\n", doc.PootlePath, doc.MaxUnitRevision)
		return nil
	},
}

// encryption command
var encryptionCmd = &cobra.Command{
	Use:   "encryption",
	Short: "Manage encryption keys",
}

var encryptionInitCmd = &cobra.Command{
	Use:   "init",
	Short: "Generate the key pair used by encrypted transports",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp("encryption-init")
		if err != nil {
			return err
		}
		defer a.Close()

		passphrase, err := readNewPassphrase()
		if err != nil {
			return err
		}
		if err := a.InitEncryption(passphrase); err != nil {
			return err
		}
		fmt.Printf("Keys written to %s and %s\n",
			a.Config().Encryption.PublicKeyPath, a.Config().Encryption.PrivateKeyPath)
		return nil
	},
}

func init() {
	// config subcommands
	configCmd.AddCommand(configInitCmd)
	configCmd.AddCommand(configListCmd)

	// db subcommands
	dbCmd.AddCommand(dbMigrateCmd)
	dbCmd.AddCommand(dbBackupCmd)

	// project subcommands
	projectCmd.AddCommand(projectInitCmd)
	projectCmd.AddCommand(projectListCmd)
	projectInitCmd.Flags().String("fs-type", "localfs", "Transport type")
	projectInitCmd.Flags().String("fs-url", "", "Upstream location (directory or s3://bucket/prefix)")
	projectInitCmd.Flags().String("mapping", "/<language_code>/<filename>.<ext>", "Translation path template")
	projectInitCmd.Flags().StringSlice("exclude-language", nil, "Pootle language codes to ignore")
	projectInitCmd.Flags().StringToString("lang-mapping", nil, "Upstream to pootle language codes (upstream=pootle)")
	projectInitCmd.MarkFlagRequired("fs-url")

	// project operations
	addFilterFlags(stateCmd)
	stateCmd.Flags().StringSliceP("type", "t", nil, "Only show these state types")
	stateCmd.Flags().BoolP("all", "a", false, "Include unchanged pairs")
	stateCmd.Flags().BoolP("watch", "w", false, "Fetch and re-display on upstream changes")
	addFilterFlags(addCmd)
	addCmd.Flags().BoolP("force", "f", false, "Re-add pairs removed on one side")
	addFilterFlags(resolveCmd)
	resolveCmd.Flags().Bool("overwrite", false, "Overwrite instead of merging")
	resolveCmd.Flags().Bool("pootle-wins", false, "Let Pootle win instead of the filesystem")
	addFilterFlags(rmCmd)
	rmCmd.Flags().BoolP("force", "f", false, "Also stage conflicting and untracked pairs")
	addFilterFlags(unstageCmd)
	addFilterFlags(syncCmd)

	// history subcommands
	historyCmd.AddCommand(historyShowCmd)
	historyCmd.Flags().IntP("limit", "n", 50, "Maximum number of operations to show")

	// store subcommands
	storeCmd.AddCommand(storeLsCmd)
	storeCmd.AddCommand(storeShowCmd)
	storeCmd.AddCommand(storeEditCmd)
	storeCmd.AddCommand(storeImportCmd)

	// encryption subcommands
	encryptionCmd.AddCommand(encryptionInitCmd)

	// root commands
	rootCmd.AddCommand(configCmd)
	rootCmd.AddCommand(dbCmd)
	rootCmd.AddCommand(projectCmd)
	rootCmd.AddCommand(stateCmd)
	rootCmd.AddCommand(addCmd)
	rootCmd.AddCommand(resolveCmd)
	rootCmd.AddCommand(rmCmd)
	rootCmd.AddCommand(unstageCmd)
	rootCmd.AddCommand(syncCmd)
	rootCmd.AddCommand(fetchCmd)
	rootCmd.AddCommand(infoCmd)
	rootCmd.AddCommand(historyCmd)
	rootCmd.AddCommand(storeCmd)
	rootCmd.AddCommand(encryptionCmd)
}
