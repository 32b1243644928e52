package main

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"time"

	"github.com/spf13/cobra"

	"github.com/sweeney/peak-switch/internal/config"
	"github.com/sweeney/peak-switch/internal/fetch"
	"github.com/sweeney/peak-switch/internal/logic"
)

// stateCmd prints the decision inputs for now without touching the GPIO line.
func (a *app) stateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "state",
		Short: "Print today's classification, period and switch target",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, st, err := a.open()
			if err != nil {
				return err
			}
			defer st.Close()

			now := time.Now()
			today := logic.DateOf(now)
			code, ok, err := st.Get(today)
			if err != nil {
				return fmt.Errorf("reading classification: %w", err)
			}
			period := cfg.Window().PeriodAt(now)

			out := cmd.OutOrStdout()
			if !ok || !code.Known() {
				fmt.Fprintf(out, "Date: %s, Classification: UNKNOWN, Period: %s, Switch %d: not decided (fetch required)\n",
					today, period, cfg.SwitchID)
			} else {
				fmt.Fprintf(out, "Date: %s, Classification: %s, Period: %s, Switch %d: %s\n",
					today, code, period, cfg.SwitchID, logic.StateOf(logic.TargetOn(period, code)))
			}

			last, ok, err := st.LastFetch()
			if err != nil {
				return fmt.Errorf("reading last fetch: %w", err)
			}
			if ok {
				fmt.Fprintf(out, "Last fetch: %s\n", last.Format(time.RFC3339))
			} else {
				fmt.Fprintln(out, "Last fetch: never")
			}
			return nil
		},
	}
}

// entryJSON is the fetch command's output row.
type entryJSON struct {
	Date string `json:"date"`
	Code int    `json:"code"`
	Tier string `json:"tier"`
}

func (a *app) fetchCmd() *cobra.Command {
	var date string

	cmd := &cobra.Command{
		Use:   "fetch",
		Short: "Fetch the classification once, store it and print it as JSON",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, st, err := a.open()
			if err != nil {
				return err
			}
			defer st.Close()

			now := time.Now()
			day := logic.DateOf(now)
			if date != "today" {
				if day, err = logic.ParseDate(date); err != nil {
					return err
				}
			}

			ctx, cancel := context.WithTimeout(cmd.Context(), cfg.Source.Timeout+time.Second)
			defer cancel()

			fetcher := fetch.NewHTTPFetcher(cfg.Source.URL, cfg.Source.Format, cfg.Source.Timeout)
			entries, err := fetcher.Fetch(ctx, day)
			if err != nil {
				return fmt.Errorf("fetching %s: %w", day, err)
			}
			if err := st.Put(entries); err != nil {
				return fmt.Errorf("storing classifications: %w", err)
			}
			if day == logic.DateOf(now) {
				if err := st.SetLastFetch(now); err != nil {
					return fmt.Errorf("recording fetch time: %w", err)
				}
			}

			rows := make([]entryJSON, 0, len(entries))
			for _, e := range entries {
				rows = append(rows, entryJSON{Date: string(e.Date), Code: int(e.Code), Tier: e.Code.String()})
			}
			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			return enc.Encode(rows)
		},
	}

	cmd.Flags().StringVarP(&date, "date", "d", "today", "Date to fetch (YYYY-MM-DD or 'today')")
	return cmd
}

func (a *app) setCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "set KEY VALUE",
		Short: "Store a configuration override applied at every startup",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			key, value := args[0], args[1]
			if err := config.CheckOverride(key, value); err != nil {
				return err
			}

			cfg, st, err := a.open()
			if err != nil {
				return err
			}
			defer st.Close()

			// The override must also leave a valid configuration behind.
			if _, _, err := config.ApplyOverrides(&cfg, map[string]string{config.OverridePrefix + key: value}); err != nil {
				return err
			}
			if _, err := cfg.Validate(); err != nil {
				return fmt.Errorf("override rejected: %w", err)
			}

			if err := st.PutSetting(config.OverridePrefix+key, value); err != nil {
				return fmt.Errorf("storing override: %w", err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s = %s\n", key, value)
			return nil
		},
	}
}

func (a *app) overridesCmd() *cobra.Command {
	var all bool

	cmd := &cobra.Command{
		Use:   "overrides",
		Short: "List stored configuration overrides",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			_, st, err := a.open()
			if err != nil {
				return err
			}
			defer st.Close()

			out := cmd.OutOrStdout()
			if all {
				for _, k := range config.OverrideKeys() {
					fmt.Fprintln(out, k)
				}
				return nil
			}

			stored, err := st.ListSettings(config.OverridePrefix)
			if err != nil {
				return fmt.Errorf("listing overrides: %w", err)
			}
			keys := make([]string, 0, len(stored))
			for k := range stored {
				keys = append(keys, k)
			}
			sort.Strings(keys)
			for _, k := range keys {
				fmt.Fprintf(out, "%s = %s\n", k[len(config.OverridePrefix):], stored[k])
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&all, "keys", false, "List the keys that accept overrides instead")
	return cmd
}
