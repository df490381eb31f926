package cmd

import (
	"fmt"
	"io"
	"strconv"
	"time"

	"github.com/cuongbtq/niceshot/internal/domain"
	"github.com/cuongbtq/niceshot/internal/storage"
	"github.com/cuongbtq/niceshot/shared/database"
	"github.com/olekukonko/tablewriter"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

// statsCmd represents the stats command
var statsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Show job and recording history",
	Long:  `Reads the history store written by niceshot-service and prints job status counts, recent jobs and recent recordings.`,
	Args:  cobra.NoArgs,
	RunE:  runStats,
}

func init() {
	rootCmd.AddCommand(statsCmd)
	statsCmd.Flags().Int("limit", 10, "number of recent rows to show")
	statsCmd.Flags().String("db-driver", database.DriverSQLite, "history database driver: sqlite3 or postgres")
	statsCmd.Flags().String("db-path", "niceshot.db", "sqlite3 database file")

	_ = viper.BindPFlag("database.driver", statsCmd.Flags().Lookup("db-driver"))
	_ = viper.BindPFlag("database.path", statsCmd.Flags().Lookup("db-path"))
	viper.SetDefault("database.port", 5432)
	viper.SetDefault("database.sslmode", "disable")
}

func historyConfig() *database.Config {
	return &database.Config{
		Driver:       viper.GetString("database.driver"),
		Path:         viper.GetString("database.path"),
		Host:         viper.GetString("database.host"),
		Port:         viper.GetInt("database.port"),
		User:         viper.GetString("database.user"),
		Password:     viper.GetString("database.password"),
		Database:     viper.GetString("database.name"),
		SSLMode:      viper.GetString("database.sslmode"),
		MaxOpenConns: 1,
		MaxIdleConns: 1,
	}
}

func runStats(cmd *cobra.Command, args []string) error {
	logger, err := newLogger()
	if err != nil {
		return err
	}
	limit, _ := cmd.Flags().GetInt("limit")

	client, err := database.NewClient(historyConfig(), logger)
	if err != nil {
		return fmt.Errorf("failed to open history store: %w", err)
	}
	defer client.Close()

	store := storage.NewStore(client, logger)
	if err := store.Migrate(cmd.Context()); err != nil {
		return err
	}
	return printStats(cmd, store, limit)
}

func printStats(cmd *cobra.Command, store *storage.Store, limit int) error {
	ctx := cmd.Context()
	out := cmd.OutOrStdout()

	counts, err := store.JobStatusCounts(ctx)
	if err != nil {
		return fmt.Errorf("failed to count jobs: %w", err)
	}
	jobs, err := store.RecentJobs(ctx, limit)
	if err != nil {
		return fmt.Errorf("failed to list jobs: %w", err)
	}
	recordings, err := store.RecentRecordings(ctx, limit)
	if err != nil {
		return fmt.Errorf("failed to list recordings: %w", err)
	}

	fmt.Fprintln(out, "Jobs by status")
	table := tablewriter.NewWriter(out)
	table.Header("Status", "Count")
	for _, c := range counts {
		table.Append(string(c.Status), strconv.FormatInt(c.Count, 10))
	}
	if err := table.Render(); err != nil {
		return err
	}

	fmt.Fprintln(out, "\nRecent jobs")
	if len(jobs) == 0 {
		fmt.Fprintln(out, "No jobs recorded")
	} else {
		table = tablewriter.NewWriter(out)
		table.Header("Job", "Size", "Status", "Encode", "Finished", "Path")
		for _, j := range jobs {
			table.Append(
				strconv.FormatUint(j.ID, 10),
				fmt.Sprintf("%dx%d", j.Width, j.Height),
				string(j.Status),
				j.Duration().Round(time.Millisecond).String(),
				j.FinishedAt.Local().Format(time.DateTime),
				j.Path,
			)
		}
		if err := table.Render(); err != nil {
			return err
		}
	}

	return printRecordings(out, recordings)
}

func printRecordings(out io.Writer, recordings []domain.RecordingSummary) error {
	fmt.Fprintln(out, "\nRecent recordings")
	if len(recordings) == 0 {
		fmt.Fprintln(out, "No recordings recorded")
		return nil
	}

	table := tablewriter.NewWriter(out)
	table.Header("Session", "Size", "FPS", "Encoded", "Dropped", "Errors", "Status", "Path")
	for _, r := range recordings {
		table.Append(
			r.SessionID,
			fmt.Sprintf("%dx%d", r.Width, r.Height),
			strconv.FormatFloat(r.FPS, 'f', -1, 64),
			strconv.FormatUint(r.FramesEncoded, 10),
			strconv.FormatUint(r.FramesDropped, 10),
			strconv.FormatUint(r.EncodeErrors, 10),
			string(r.Status),
			r.Path,
		)
	}
	return table.Render()
}
