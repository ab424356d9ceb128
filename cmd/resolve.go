package cmd

import (
	"context"
	"fmt"
	"log"

	"syncthat/config"
	"syncthat/core/resolver"
	"syncthat/logger"
	"syncthat/model"

	"github.com/spf13/cobra"
)

var resolveCmd = &cobra.Command{
	Use:   "resolve <url>",
	Short: "Resolve a URL from the command line",
	Long:  `Probe a URL with yt-dlp, download the audio and print progress. Useful for checking the yt-dlp and audiowaveform setup without starting the server.`,
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		cfg := config.Load()
		logger.InitLogger(logger.Config{Level: logger.WarnLevel})
		if err := cfg.Validate(); err != nil {
			log.Fatalf("Invalid configuration: %v", err)
		}

		res := resolver.NewYtDlpResolver(cfg, nil)

		done := make(chan bool, 1)
		result, cancel, err := res.Resolve(context.Background(), args[0], func(u resolver.Update) {
			switch {
			case u.Progress == model.ProgressFailed:
				fmt.Println("Download failed.")
				done <- false
			case u.Ready && u.WaveformGenerated:
				done <- true
			default:
				fmt.Printf("\r%6.2f%%", u.Progress)
			}
		})
		if err != nil {
			log.Fatalf("Could not resolve %s: %v", args[0], err)
		}
		defer cancel()

		fmt.Printf("%s [%s] %ds\n", result.Title, result.Key, result.DurationInSeconds)
		if result.Ready && result.WaveformGenerated {
			fmt.Println("Already downloaded.")
			return
		}

		if ok := <-done; ok {
			fmt.Printf("\rDone. Audio and waveform for %s are in %s\n", result.Key, cfg.DownloadDir)
		}
	},
}

func init() {
	rootCmd.AddCommand(resolveCmd)
}
