// Command droidkeyctl drives the key store directly against the local data
// directory, without going through the HTTP host.
package main

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/fatih/color"
	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"droidkey/config"
	"droidkey/internal/engine"
	"droidkey/internal/store"
	"droidkey/internal/usage"
	"droidkey/observability"
)

var rootCmd = &cobra.Command{
	Use:   "droidkeyctl",
	Short: "Manage the local droid API key store",
	Long: `droidkeyctl manages the rotating API key store used by the droid CLI.

Keys live encrypted in the data directory and carry a cached usage record
fetched from the metering endpoint. The active key is a 1-based index into
the stored list.`,
	SilenceUsage: true,
}

var listCmd = &cobra.Command{
	Use:   "list",
	Short: "List stored keys with cached usage",
	RunE: func(cmd *cobra.Command, args []string) error {
		eng, err := newEngine()
		if err != nil {
			return err
		}
		entries, err := eng.List()
		if err != nil {
			return err
		}
		if len(entries) == 0 {
			fmt.Println("no keys stored")
			return nil
		}
		for _, e := range entries {
			marker := " "
			if e.Current {
				marker = color.GreenString("*")
			}
			line := fmt.Sprintf("%s %d. %s", marker, e.Index, maskKey(e.Secret))
			if e.Usage != nil {
				line += fmt.Sprintf("  balance %d/%d  expires %s", e.Usage.Balance, e.Usage.Total, e.Usage.Expires)
				if e.Usage.Raw != "" {
					line += "  " + color.RedString("[%s]", e.Usage.Raw)
				}
			}
			fmt.Println(line)
		}
		return nil
	},
}

var addCmd = &cobra.Command{
	Use:   "add <key>",
	Short: "Append a key to the store",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		eng, err := newEngine()
		if err != nil {
			return err
		}
		msg, err := eng.Add(cmd.Context(), args[0])
		if err != nil {
			return err
		}
		fmt.Println(color.GreenString("✓") + " " + msg)
		return nil
	},
}

var removeCmd = &cobra.Command{
	Use:   "remove <index>",
	Short: "Delete the key at a 1-based index",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		index, err := strconv.Atoi(args[0])
		if err != nil {
			return fmt.Errorf("index must be an integer, got %q", args[0])
		}
		eng, err := newEngine()
		if err != nil {
			return err
		}
		msg, err := eng.Remove(index)
		if err != nil {
			return err
		}
		fmt.Println(color.GreenString("✓") + " " + msg)
		return nil
	},
}

var useCmd = &cobra.Command{
	Use:   "use <index>",
	Short: "Move the active pointer to a 1-based index",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		index, err := strconv.Atoi(args[0])
		if err != nil {
			return fmt.Errorf("index must be an integer, got %q", args[0])
		}
		eng, err := newEngine()
		if err != nil {
			return err
		}
		msg, err := eng.Use(index)
		if err != nil {
			return err
		}
		fmt.Println(color.GreenString("✓") + " " + msg)
		return nil
	},
}

var refreshCmd = &cobra.Command{
	Use:   "refresh",
	Short: "Rebuild the usage cache for every stored key",
	RunE: func(cmd *cobra.Command, args []string) error {
		eng, err := newEngine()
		if err != nil {
			return err
		}
		if err := eng.Refresh(cmd.Context()); err != nil {
			return err
		}
		fmt.Println(color.GreenString("✓") + " usage cache refreshed")
		return nil
	},
}

func newEngine() (*engine.Engine, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}
	st, err := store.New(cfg.Store.DataDir)
	if err != nil {
		return nil, err
	}
	fetcher := usage.NewFetcher(cfg.Usage.Endpoint, cfg.Usage.UserAgent,
		time.Duration(cfg.Usage.TimeoutSeconds)*time.Second)
	cache := usage.NewManager(cfg.Store.DataDir, fetcher)
	return engine.New(st, cache), nil
}

// maskKey keeps enough of a secret to recognize it in a listing
func maskKey(key string) string {
	if len(key) <= 8 {
		return "****"
	}
	return key[:4] + "…" + key[len(key)-4:]
}

func init() {
	rootCmd.AddCommand(listCmd)
	rootCmd.AddCommand(addCmd)
	rootCmd.AddCommand(removeCmd)
	rootCmd.AddCommand(useCmd)
	rootCmd.AddCommand(refreshCmd)
}

func main() {
	// Load environment variables; a missing .env file is fine
	_ = godotenv.Load()

	observability.InitLogger(true)

	if err := rootCmd.Execute(); err != nil {
		fmt.Println(color.RedString("✗") + " " + err.Error())
		os.Exit(1)
	}
}
