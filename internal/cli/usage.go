package cli

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/MrWong99/elektron/internal/app"
	"github.com/MrWong99/elektron/internal/config"
	"github.com/MrWong99/elektron/internal/usage"
)

// usageFlags selects the store to report on. Flags override the config file.
type usageFlags struct {
	backend string
	dsn     string
}

func (f *usageFlags) register(cmd *cobra.Command) {
	cmd.Flags().StringVar(&f.backend, "backend", "", "Usage backend: sqlite or postgres (default from config)")
	cmd.Flags().StringVar(&f.dsn, "dsn", "", "SQLite path or PostgreSQL DSN (default from config)")
}

func (f *usageFlags) open(cmd *cobra.Command, opts *options) (usage.Store, error) {
	cfg, err := opts.loadConfig()
	if err != nil {
		return nil, err
	}
	u := cfg.Usage
	if f.backend != "" {
		u.Backend = config.UsageBackend(f.backend)
	}
	if f.dsn != "" {
		u.DSN = f.dsn
	}
	if u.Backend == config.UsageMemory || !u.Backend.IsValid() {
		return nil, fmt.Errorf("usage reports need a persistent backend, got %q", u.Backend)
	}
	return app.OpenUsageStore(cmd.Context(), u)
}

func newStatsCmd(opts *options) *cobra.Command {
	var (
		uf   usageFlags
		user string
	)
	cmd := &cobra.Command{
		Use:   "stats",
		Short: "Show usage statistics for all users or one user",
		RunE: func(cmd *cobra.Command, _ []string) error {
			s, err := uf.open(cmd, opts)
			if err != nil {
				return err
			}
			defer s.Close()

			now := time.Now()
			if user != "" {
				st, err := s.UserStats(cmd.Context(), user, now)
				if err != nil {
					return err
				}
				return printJSON(cmd.OutOrStdout(), st)
			}
			st, err := s.Stats(cmd.Context(), now)
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), st)
		},
	}
	uf.register(cmd)
	cmd.Flags().StringVarP(&user, "user", "u", "", "Report on a single user email")
	return cmd
}

func newLogsCmd(opts *options) *cobra.Command {
	var (
		uf    usageFlags
		limit int
		level string
	)
	cmd := &cobra.Command{
		Use:   "logs",
		Short: "List recent activity log entries, newest first",
		RunE: func(cmd *cobra.Command, _ []string) error {
			q := usage.LogQuery{Limit: limit, Level: usage.Level(level)}
			if q.Level != "" && !q.Level.IsValid() {
				return fmt.Errorf("unknown level %q", level)
			}
			s, err := uf.open(cmd, opts)
			if err != nil {
				return err
			}
			defer s.Close()

			logs, err := s.Logs(cmd.Context(), q)
			if err != nil {
				return err
			}
			if opts.format == formatText {
				for _, e := range logs {
					fmt.Fprintf(cmd.OutOrStdout(), "%s  %-7s  %-16s  %s\n",
						e.Timestamp.Format(time.RFC3339), e.Level, e.Source, e.Message)
				}
				return nil
			}
			return printJSON(cmd.OutOrStdout(), logs)
		},
	}
	uf.register(cmd)
	cmd.Flags().IntVarP(&limit, "limit", "l", usage.DefaultLogLimit, "Maximum entries")
	cmd.Flags().StringVar(&level, "level", "", "Filter by level: info, warning or error")
	return cmd
}
