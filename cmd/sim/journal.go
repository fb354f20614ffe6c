package main

import (
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"signalcode-go/services/journal"
	"signalcode-go/types"
)

var journalCmd = &cobra.Command{
	Use:   "journal",
	Short: "List recorded phase transitions",
	RunE:  runJournal,
}

var (
	journalLimit  int
	journalCounts bool
	journalJSON   bool
)

func init() {
	journalCmd.Flags().IntVarP(&journalLimit, "limit", "n", 20, "number of transitions to show")
	journalCmd.Flags().BoolVar(&journalCounts, "counts", false, "show transition counts per target phase")
	journalCmd.Flags().BoolVar(&journalJSON, "json", false, "output as JSON")
	rootCmd.AddCommand(journalCmd)
}

func runJournal(cmd *cobra.Command, args []string) error {
	cfg := LoadConfig()
	if cfg.Journal.Path == "" {
		return fmt.Errorf("no journal configured (use --journal or journal.path)")
	}
	ctx := cmd.Context()
	store, err := journal.Open(ctx, cfg.Journal.Path)
	if err != nil {
		return err
	}
	defer store.Close() //nolint:errcheck

	out := cmd.OutOrStdout()
	if journalCounts {
		counts, err := store.CountByState(ctx)
		if err != nil {
			return err
		}
		if journalJSON {
			named := map[string]int{}
			for p, n := range counts {
				named[p.String()] = n
			}
			return json.NewEncoder(out).Encode(named)
		}
		phases := make([]types.Phase, 0, len(counts))
		for p := range counts {
			phases = append(phases, p)
		}
		sort.Slice(phases, func(i, j int) bool { return phases[i] < phases[j] })
		for _, p := range phases {
			fmt.Fprintf(out, "%-18s %d\n", p, counts[p])
		}
		return nil
	}

	entries, err := store.Recent(ctx, journalLimit)
	if err != nil {
		return err
	}
	if journalJSON {
		return json.NewEncoder(out).Encode(entries)
	}
	fmt.Fprintf(out, "%-19s %-8s %6s  %-16s   %-16s %s\n", "TIME", "BOOT", "TICK", "FROM", "TO", "FLAGS")
	fmt.Fprintln(out, strings.Repeat("─", 86))
	for _, e := range entries {
		var flags []string
		if e.Caution {
			flags = append(flags, "caution")
		}
		if e.Forced {
			flags = append(flags, "forced")
		}
		fmt.Fprintf(out, "%-19s %-8s %6d  %-16s → %-16s %s\n",
			time.UnixMilli(e.TS).Format("2006-01-02 15:04:05"), shortID(e.BootID),
			e.Tick, e.From, e.To, strings.Join(flags, ","))
	}
	return nil
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}
