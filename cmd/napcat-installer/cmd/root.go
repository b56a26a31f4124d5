package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/napneko/napcat-installer/internal/core"
	"github.com/napneko/napcat-installer/internal/tui"
)

// Version info set via ldflags at build time.
var (
	Version = "dev"
	Commit  = "unknown"
	Date    = "unknown"
)

var (
	flagShell  bool
	flagDocker bool
	flagConfig string
)

var rootCmd = &cobra.Command{
	Use:   "napcat-installer",
	Short: "Install or upgrade Linux QQ and the NapCat framework",
	Long: `napcat-installer keeps a machine's Linux QQ package and NapCat
framework at the latest released versions.

It resolves the current versions remotely, compares them with what is
installed, and performs only the work that is needed: a fresh install, an
in-place upgrade, or nothing at all. User configuration survives upgrades.`,
	SilenceUsage:  true,
	SilenceErrors: true,
	RunE:          runInstall,
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Printf("napcat-installer %s (commit: %s, built: %s)\n", Version, Commit, Date)
	},
}

func init() {
	rootCmd.Flags().BoolVarP(&flagShell, "shell", "s", false, "install directly on this machine")
	rootCmd.Flags().BoolVarP(&flagDocker, "docker", "d", false, "install as a Docker container")
	rootCmd.MarkFlagsMutuallyExclusive("shell", "docker")
	rootCmd.Flags().StringVar(&flagConfig, "config", core.DefaultConfigPath, "installer config file")

	rootCmd.AddCommand(versionCmd)
}

func runInstall(cmd *cobra.Command, args []string) error {
	fmt.Print(tui.Banner())

	if os.Geteuid() != 0 {
		return fmt.Errorf("this installer must run as root")
	}

	cfg, err := core.LoadConfig(flagConfig)
	if err != nil {
		return err
	}

	method := tui.MethodShell
	switch {
	case flagDocker:
		method = tui.MethodDocker
	case flagShell:
		// explicit
	default:
		method, err = tui.ChooseMethod()
		if err != nil {
			return err
		}
	}

	renderer := tui.NewRenderer(os.Stdout)
	runner := core.NewExecRunner()

	if method == tui.MethodDocker {
		return core.NewDockerInstaller(runner, cfg, renderer.Events()).Install(cmd.Context())
	}

	engine := core.NewEngine(runner, cfg, renderer.Events())
	_, err = engine.Run(cmd.Context())
	return err
}

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}
