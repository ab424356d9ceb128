package resolver

import (
	"os/exec"
	"path/filepath"
	"strings"

	"syncthat/logger"

	"github.com/fsnotify/fsnotify"
)

// generateWaveform renders the waveform JSON for a finished download. The
// resulting file shows up as a create event on the download dir, which is
// where the waveformGenerated flag actually gets flipped.
func (r *YtDlpResolver) generateWaveform(key string) {
	cmd := exec.Command(r.cfg.AudiowaveformPath,
		"-i", r.audioPath(key),
		"-o", r.waveformPath(key),
		"--pixels-per-second", "20",
		"--bits", "8",
	)
	if out, err := cmd.CombinedOutput(); err != nil {
		logger.Warn("audiowaveform failed",
			logger.ErrorField(err),
			logger.String("key", key),
			logger.String("output", string(out)))
	}
}

// watchWaveforms watches the download dir for waveform JSON files and
// flips the matching download's waveformGenerated flag. Watching the
// filesystem rather than the audiowaveform exit also covers waveforms
// produced out of band.
func (r *YtDlpResolver) watchWaveforms() {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		logger.Warn("failed to create waveform watcher", logger.ErrorField(err))
		return
	}

	if err := watcher.Add(r.cfg.DownloadDir); err != nil {
		logger.Warn("failed to watch download dir",
			logger.ErrorField(err),
			logger.String("dir", r.cfg.DownloadDir))
		watcher.Close()
		return
	}

	go func() {
		defer watcher.Close()
		for {
			select {
			case event, ok := <-watcher.Events:
				if !ok {
					return
				}
				if event.Op&(fsnotify.Create|fsnotify.Write) == 0 {
					continue
				}
				if !strings.HasSuffix(event.Name, ".json") {
					continue
				}
				key := strings.TrimSuffix(filepath.Base(event.Name), ".json")

				r.mu.Lock()
				dl, known := r.downloads[key]
				r.mu.Unlock()
				if !known {
					continue
				}

				logger.Debug("waveform generated", logger.String("key", key))
				dl.markWaveform()

			case err, ok := <-watcher.Errors:
				if !ok {
					return
				}
				logger.Warn("waveform watcher error", logger.ErrorField(err))
			}
		}
	}()
}
