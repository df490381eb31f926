package cmd

import (
	"fmt"
	"time"

	"github.com/cuongbtq/niceshot/internal/convert"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

// convertCmd represents the convert command
var convertCmd = &cobra.Command{
	Use:   "convert <recording.json>",
	Short: "Convert a raw recording to H.264",
	Long: `Reads the sidecar written next to a raw recording, encodes the raw stream to H.264 with ffmpeg
(preset slow, CRF 18 by default) and deletes the raw file on success.`,
	Args: cobra.ExactArgs(1),
	RunE: runConvert,
}

func init() {
	rootCmd.AddCommand(convertCmd)
	convertCmd.Flags().Bool("keep-raw", false, "keep the raw file after a successful conversion")
	convertCmd.Flags().Int("crf", convert.DefaultCRF, "x264 constant rate factor")
	convertCmd.Flags().String("preset", "slow", "x264 preset")

	_ = viper.BindPFlag("convert.keep_raw", convertCmd.Flags().Lookup("keep-raw"))
	_ = viper.BindPFlag("convert.crf", convertCmd.Flags().Lookup("crf"))
	_ = viper.BindPFlag("convert.preset", convertCmd.Flags().Lookup("preset"))
}

func runConvert(cmd *cobra.Command, args []string) error {
	logger, err := newLogger()
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	lastReport := time.Time{}
	conv := convert.New(convert.Options{
		FFmpegPath: viper.GetString("ffmpeg_path"),
		Preset:     viper.GetString("convert.preset"),
		CRF:        viper.GetInt("convert.crf"),
		KeepRaw:    viper.GetBool("convert.keep_raw"),
		Logger:     logger,
		OnProgress: func(p convert.Progress) {
			if time.Since(lastReport) < time.Second && p.Frame < p.Total {
				return
			}
			lastReport = time.Now()
			fmt.Fprintf(out, "Progress: %.1f%% (%d/%d frames, %.1f fps)\n", p.Percent(), p.Frame, p.Total, p.FPS)
		},
	})

	result, err := conv.Run(cmd.Context(), args[0])
	if err != nil {
		return fmt.Errorf("conversion failed: %w", err)
	}

	fmt.Fprintf(out, "Conversion completed in %s\n", result.Duration.Round(time.Millisecond))
	fmt.Fprintf(out, "Output: %s\n", result.OutputPath)
	if result.RawRemoved {
		fmt.Fprintf(out, "Deleted raw file: %s\n", result.Sidecar.RawFile)
	}
	if result.RemuxCommand != "" {
		fmt.Fprintf(out, "To create an MP4 file, run:\n  %s\n", result.RemuxCommand)
	}
	return nil
}
