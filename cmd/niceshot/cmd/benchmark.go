package cmd

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/cuongbtq/niceshot/internal/codec"
	"github.com/cuongbtq/niceshot/internal/pipeline"
	"github.com/olekukonko/tablewriter"
	"github.com/spf13/cobra"
)

// benchmarkCmd represents the benchmark command
var benchmarkCmd = &cobra.Command{
	Use:   "benchmark",
	Short: "Measure PNG encode time",
	Long:  `Encodes a synthetic gradient at each size and compression level and prints the average encode time.`,
	Args:  cobra.NoArgs,
	RunE:  runBenchmark,
}

func init() {
	rootCmd.AddCommand(benchmarkCmd)
	benchmarkCmd.Flags().StringSlice("sizes", []string{"640x480", "1280x720", "1920x1080"}, "image sizes as WIDTHxHEIGHT")
	benchmarkCmd.Flags().IntSlice("levels", []int{1, 6, 9}, "PNG compression levels")
	benchmarkCmd.Flags().Int("iterations", 5, "encodes per measurement")
}

type benchmarkRow struct {
	Width      int
	Height     int
	Level      int
	Iterations int
	Average    time.Duration
}

// parseSize parses WIDTHxHEIGHT
func parseSize(s string) (int, int, error) {
	w, h, ok := strings.Cut(strings.ToLower(strings.TrimSpace(s)), "x")
	if !ok {
		return 0, 0, fmt.Errorf("invalid size %q, expected WIDTHxHEIGHT", s)
	}
	width, err := strconv.Atoi(w)
	if err != nil {
		return 0, 0, fmt.Errorf("invalid width in %q: %w", s, err)
	}
	height, err := strconv.Atoi(h)
	if err != nil {
		return 0, 0, fmt.Errorf("invalid height in %q: %w", s, err)
	}
	return width, height, nil
}

func runBenchmarks(sizes []string, levels []int, iterations int) ([]benchmarkRow, error) {
	p, err := pipeline.New(&pipeline.Config{CompressionLevel: codec.DefaultCompressionLevel, WorkerCount: pipeline.MinWorkers})
	if err != nil {
		return nil, err
	}

	var rows []benchmarkRow
	for _, size := range sizes {
		width, height, err := parseSize(size)
		if err != nil {
			return nil, err
		}
		for _, level := range levels {
			if err := p.SetCompressionLevel(level); err != nil {
				return nil, err
			}
			avg, err := p.BenchmarkPNG(width, height, iterations)
			if err != nil {
				return nil, fmt.Errorf("benchmark %s level %d: %w", size, level, err)
			}
			rows = append(rows, benchmarkRow{Width: width, Height: height, Level: level, Iterations: iterations, Average: avg})
		}
	}
	return rows, nil
}

// megapixelsPerSecond is the encode throughput of one row
func (r benchmarkRow) megapixelsPerSecond() float64 {
	if r.Average <= 0 {
		return 0
	}
	return float64(r.Width*r.Height) / 1e6 / r.Average.Seconds()
}

func runBenchmark(cmd *cobra.Command, args []string) error {
	sizes, _ := cmd.Flags().GetStringSlice("sizes")
	levels, _ := cmd.Flags().GetIntSlice("levels")
	iterations, _ := cmd.Flags().GetInt("iterations")

	rows, err := runBenchmarks(sizes, levels, iterations)
	if err != nil {
		return err
	}

	table := tablewriter.NewWriter(cmd.OutOrStdout())
	table.Header("Size", "Level", "Iterations", "Avg", "MP/s")
	for _, r := range rows {
		table.Append(
			fmt.Sprintf("%dx%d", r.Width, r.Height),
			strconv.Itoa(r.Level),
			strconv.Itoa(r.Iterations),
			r.Average.Round(time.Microsecond).String(),
			fmt.Sprintf("%.1f", r.megapixelsPerSecond()),
		)
	}
	return table.Render()
}
