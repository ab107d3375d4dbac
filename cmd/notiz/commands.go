package main

import (
	"context"
	"fmt"
	"io"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/notiz/notiz/internal/config"
	"github.com/notiz/notiz/internal/database"
	"github.com/notiz/notiz/internal/email"
	"github.com/notiz/notiz/internal/logger"
	"github.com/notiz/notiz/internal/repository"
	"github.com/notiz/notiz/internal/schedule"
	"github.com/notiz/notiz/internal/service"
	"github.com/notiz/notiz/internal/sheet"
)

const version = "0.1.0"

type flags struct {
	configFile string
	envFile    string
	dryRun     bool
	logStdout  bool
}

func newRootCmd() *cobra.Command {
	f := &flags{}

	rootCmd := &cobra.Command{
		Use:   "notiz",
		Short: "Email reminders for scheduled screenings kept in a spreadsheet",
		Long: `Notiz reads the screening schedule from an Excel workbook and emails the
configured recipients when a screening is due today or when it is exactly
SEND_REMINDER_DAYS_BEFORE days away.`,
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runNotify(cmd.Context(), f)
		},
	}

	rootCmd.PersistentFlags().StringVar(&f.configFile, "config", "", "Path to a YAML config file")
	rootCmd.PersistentFlags().StringVar(&f.envFile, "env-file", "", "Path to a dotenv file (default .env)")
	rootCmd.PersistentFlags().BoolVar(&f.logStdout, "log-stdout", false, "Mirror log lines to stdout")
	rootCmd.Flags().BoolVar(&f.dryRun, "dry-run", false, "Log notifications instead of sending them")

	runCmd := &cobra.Command{
		Use:   "run",
		Short: "Evaluate the schedule once and send due notifications",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runNotify(cmd.Context(), f)
		},
	}
	runCmd.Flags().BoolVar(&f.dryRun, "dry-run", false, "Log notifications instead of sending them")

	checkCmd := &cobra.Command{
		Use:   "check",
		Short: "Show which notifications today's run would send",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runCheck(cmd, f)
		},
	}

	rootCmd.AddCommand(runCmd)
	rootCmd.AddCommand(checkCmd)
	return rootCmd
}

func loadConfig(f *flags) (*config.Config, error) {
	cfg, err := config.Load(config.Options{ConfigFile: f.configFile, EnvFile: f.envFile, DryRun: f.dryRun})
	if err != nil {
		return nil, err
	}
	if f.logStdout {
		cfg.Log.Stdout = true
	}
	return cfg, nil
}

func newEvaluator(cfg *config.Config) (*schedule.Evaluator, error) {
	loc, err := cfg.Reminder.Location()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", config.ErrInvalid, err)
	}
	return schedule.NewEvaluator(cfg.Reminder.DaysBefore, loc, nil), nil
}

func runNotify(ctx context.Context, f *flags) error {
	cfg, err := loadConfig(f)
	if err != nil {
		return err
	}

	log, err := logger.New(cfg.Log)
	if err != nil {
		return fmt.Errorf("failed to initialize logger: %w", err)
	}
	defer log.Close()

	eval, err := newEvaluator(cfg)
	if err != nil {
		return err
	}

	var sender email.Sender
	if f.dryRun {
		sender = email.WithSubjectPrefix(email.NewLogSender(log), cfg.Email.SubjectPrefix)
	} else {
		sender, err = email.NewSender(ctx, cfg.Email, log)
		if err != nil {
			log.Error().Err(err).Msg("failed to initialize email sender")
			return err
		}
	}

	opts := []service.Option{service.WithDryRun(f.dryRun)}

	if cfg.Redis.Enabled {
		rdb, err := database.NewRedis(cfg.Redis)
		if err != nil {
			log.Error().Err(err).Msg("failed to connect to Redis")
			return err
		}
		defer rdb.Close()
		opts = append(opts, service.WithLedger(repository.NewSentLedger(rdb, cfg.Redis.KeyPrefix, cfg.Redis.TTL)))
		log.Debug().Str("addr", cfg.Redis.Addr()).Msg("sent ledger enabled")
	}

	if cfg.Database.Enabled {
		db, err := database.NewPostgres(cfg.Database)
		if err != nil {
			log.Error().Err(err).Msg("failed to connect to database")
			return err
		}
		defer db.Close()
		opts = append(opts, service.WithAuditor(repository.NewAuditRepository(db)))
		log.Debug().Msg("notification audit enabled")
	}

	reader, err := sheet.Open(cfg.Sheet.Path, sheet.SchemaFromConfig(cfg.Sheet))
	if err != nil {
		log.Error().Err(err).Str("path", cfg.Sheet.Path).Msg("failed to open events workbook")
		return err
	}

	svc := service.NewNotificationService(sender, eval, cfg, log, opts...)
	if _, err := svc.Run(ctx, reader); err != nil {
		log.Error().Err(err).Msg("notification run aborted")
		return err
	}
	return nil
}

func runCheck(cmd *cobra.Command, f *flags) error {
	cfg, err := loadConfig(f)
	if err != nil {
		return err
	}

	eval, err := newEvaluator(cfg)
	if err != nil {
		return err
	}

	reader, err := sheet.Open(cfg.Sheet.Path, sheet.SchemaFromConfig(cfg.Sheet))
	if err != nil {
		return err
	}

	svc := service.NewNotificationService(nil, eval, cfg, logger.Nop())
	planned, rowErrs, err := svc.Plan(cmd.Context(), reader)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "Today: %s, reminder lead time: %d days\n\n", eval.Today().Format("2006-01-02"), eval.LeadDays())

	if len(planned) == 0 {
		fmt.Fprintln(out, "No notifications would be sent")
	} else {
		w := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
		fmt.Fprintln(w, "ROW\tKIND\tDUE\tSUBJECT")
		for _, n := range planned {
			fmt.Fprintf(w, "%d\t%s\t%s\t%s%s\n", n.Event.Row, n.Kind, n.Event.DueDate.Format("2006-01-02"), cfg.Email.SubjectPrefix, n.Subject)
		}
		w.Flush()
	}

	for _, e := range rowErrs {
		fmt.Fprintf(out, "warning: %v\n", e)
	}

	fmt.Fprintln(out)
	reportStores(cmd.Context(), out, cfg)
	return nil
}

// reportStores prints whether the optional sent ledger and audit store are
// reachable. An unreachable store is reported, not returned as an error.
func reportStores(ctx context.Context, out io.Writer, cfg *config.Config) {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	if !cfg.Redis.Enabled {
		fmt.Fprintln(out, "sent ledger: disabled")
	} else {
		rdb, err := database.NewRedis(cfg.Redis)
		if err == nil {
			err = rdb.HealthCheck(ctx)
			rdb.Close()
		}
		printStore(out, "sent ledger", cfg.Redis.Addr(), err)
	}

	if !cfg.Database.Enabled {
		fmt.Fprintln(out, "audit store: disabled")
	} else {
		db, err := database.NewPostgres(cfg.Database)
		if err == nil {
			err = db.HealthCheck(ctx)
			db.Close()
		}
		printStore(out, "audit store", fmt.Sprintf("%s:%d/%s", cfg.Database.Host, cfg.Database.Port, cfg.Database.Name), err)
	}
}

func printStore(out io.Writer, name, addr string, err error) {
	if err != nil {
		fmt.Fprintf(out, "%s: unreachable at %s: %v\n", name, addr, err)
		return
	}
	fmt.Fprintf(out, "%s: reachable at %s\n", name, addr)
}
