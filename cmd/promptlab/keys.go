package main

import (
	"bufio"
	"errors"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/dschwags/Prompt-Lab-sub000/internal/cost"
	"github.com/dschwags/Prompt-Lab-sub000/internal/keys"
	"github.com/dschwags/Prompt-Lab-sub000/pkg/models"
)

var errEmptyKey = errors.New("API key cannot be empty")

func newKeysCmd(app *App) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "keys",
		Short: "Manage stored provider API keys",
	}

	cmd.AddCommand(
		&cobra.Command{
			Use:   "set <provider> [key]",
			Short: "Store an API key (prompts when the key is omitted)",
			Args:  cobra.RangeArgs(1, 2),
			RunE: func(cmd *cobra.Command, args []string) error {
				p, err := parseProvider(args[0])
				if err != nil {
					return err
				}
				key := ""
				if len(args) == 2 {
					key = args[1]
				} else {
					fmt.Fprintf(app.Out, "Enter %s API key: ", p)
					if key, err = app.readSecret(cmd); err != nil {
						return fmt.Errorf("failed to read key: %w", err)
					}
					fmt.Fprintln(app.Out)
				}
				key = strings.TrimSpace(key)
				if key == "" {
					return errEmptyKey
				}

				store, err := app.NewKeyStore()
				if err != nil {
					return err
				}
				if err := store.Set(string(p), key); err != nil {
					return err
				}
				fmt.Fprintf(app.Out, "Stored %s key %s in %s\n", p, keys.MaskKey(key), store.Path())
				return nil
			},
		},
		&cobra.Command{
			Use:   "get <provider>",
			Short: "Show the masked key a provider would use and where it comes from",
			Args:  cobra.ExactArgs(1),
			RunE: func(_ *cobra.Command, args []string) error {
				p, err := parseProvider(args[0])
				if err != nil {
					return err
				}
				// A missing key store still leaves the environment to check.
				store, _ := app.NewKeyStore()
				key, origin := keys.NewResolver(store, app.GetEnv).Source(p)
				if key == "" {
					fmt.Fprintf(app.Out, "No key configured for %s (set %s or run 'promptlab keys set %s')\n", p, p.EnvVar(), p)
					return nil
				}
				fmt.Fprintf(app.Out, "%s: %s from %s\n", p, keys.MaskKey(key), origin)
				return nil
			},
		},
		&cobra.Command{
			Use:   "list",
			Short: "List providers with a stored key",
			Args:  cobra.NoArgs,
			RunE: func(_ *cobra.Command, _ []string) error {
				store, err := app.NewKeyStore()
				if err != nil {
					return err
				}
				names, err := store.List()
				if err != nil {
					return err
				}
				if len(names) == 0 {
					fmt.Fprintln(app.Out, "No stored keys.")
					return nil
				}
				for _, name := range names {
					key, _ := store.Get(name)
					fmt.Fprintf(app.Out, "  %-12s %s\n", name, keys.MaskKey(key))
				}
				return nil
			},
		},
		&cobra.Command{
			Use:   "delete <provider>",
			Short: "Remove a stored key",
			Args:  cobra.ExactArgs(1),
			RunE: func(_ *cobra.Command, args []string) error {
				store, err := app.NewKeyStore()
				if err != nil {
					return err
				}
				if err := store.Delete(args[0]); err != nil {
					return err
				}
				fmt.Fprintf(app.Out, "Deleted %s key\n", args[0])
				return nil
			},
		},
	)
	return cmd
}

// readSecret uses the terminal reader for interactive stdin and falls back to
// reading one line otherwise.
func (a *App) readSecret(cmd *cobra.Command) (string, error) {
	if a.ReadSecret != nil {
		if key, err := a.ReadSecret(); err == nil {
			return key, nil
		}
	}
	line, err := bufio.NewReader(cmd.InOrStdin()).ReadString('\n')
	if err != nil && line == "" {
		return "", err
	}
	return line, nil
}

func parseProvider(name string) (models.ProviderType, error) {
	p := models.ProviderType(strings.ToLower(name))
	if !p.IsValid() {
		return "", fmt.Errorf("%w: %q (want one of %v)", models.ErrUnknownProvider, name, models.ValidProviders())
	}
	return p, nil
}

func newPricingCmd(app *App) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "pricing",
		Short: "Manage local token price overrides",
	}

	cmd.AddCommand(
		&cobra.Command{
			Use:   "set <model> <input-per-mtok> <output-per-mtok>",
			Short: "Override the USD price per million tokens for a model",
			Args:  cobra.ExactArgs(3),
			RunE: func(_ *cobra.Command, args []string) error {
				in, err := strconv.ParseFloat(args[1], 64)
				if err != nil || in < 0 {
					return fmt.Errorf("invalid input price %q", args[1])
				}
				out, err := strconv.ParseFloat(args[2], 64)
				if err != nil || out < 0 {
					return fmt.Errorf("invalid output price %q", args[2])
				}
				if err := cost.SetPrice(args[0], cost.TokenPrice{InputPerMTok: in, OutputPerMTok: out}); err != nil {
					return err
				}
				fmt.Fprintf(app.Out, "%s: $%.2f in / $%.2f out per MTok\n", args[0], in, out)
				return nil
			},
		},
		&cobra.Command{
			Use:   "show",
			Short: "Show local price overrides",
			Args:  cobra.NoArgs,
			RunE: func(_ *cobra.Command, _ []string) error {
				local, err := cost.LoadPricing()
				if err != nil {
					return err
				}
				if local == nil || len(local.Models) == 0 {
					fmt.Fprintln(app.Out, "No price overrides. Built-in rates apply.")
					return nil
				}
				ids := make([]string, 0, len(local.Models))
				for id := range local.Models {
					ids = append(ids, id)
				}
				sort.Strings(ids)

				fmt.Fprintf(app.Out, "Overrides (%s, updated %s):\n", local.Source, local.UpdatedAt.Format(time.DateTime))
				for _, id := range ids {
					p := local.Models[id]
					fmt.Fprintf(app.Out, "  %-42s $%.2f / $%.2f\n", id, p.InputPerMTok, p.OutputPerMTok)
				}
				return nil
			},
		},
		&cobra.Command{
			Use:   "reset",
			Short: "Remove all local price overrides",
			Args:  cobra.NoArgs,
			RunE: func(_ *cobra.Command, _ []string) error {
				if err := cost.DeletePricing(); err != nil {
					return err
				}
				fmt.Fprintln(app.Out, "Price overrides removed")
				return nil
			},
		},
	)
	return cmd
}
