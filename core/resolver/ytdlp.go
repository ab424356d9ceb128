package resolver

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"regexp"
	"strconv"
	"sync"

	"syncthat/cache"
	"syncthat/config"
	"syncthat/logger"
	"syncthat/model"
)

var (
	progressRe = regexp.MustCompile(`\[download\]\s+([\d.]+)% of`)
	durationRe = regexp.MustCompile(`(?:(?:(\d+):)?(\d+):)?(\d+)$`)
)

// YtDlpResolver resolves URLs by shelling out to yt-dlp: a --dump-json
// probe for metadata, then a background bestaudio download into the
// configured download dir. audiowaveform renders a waveform JSON next to
// each finished download; completion of that file is picked up by the
// directory watcher.
type YtDlpResolver struct {
	cfg   *config.Config
	cache *cache.MetadataCache

	mu        sync.Mutex
	downloads map[string]*download
}

// download tracks one in-flight or finished acquisition, fanned out to any
// number of progress subscribers.
type download struct {
	key               string
	title             string
	durationInSeconds int

	mu                sync.Mutex
	progress          float64
	ready             bool
	failed            bool
	waveformGenerated bool
	subs              map[int]func(Update)
	nextSub           int
}

// NewYtDlpResolver creates a resolver. metaCache may be nil, in which case
// every resolve probes yt-dlp.
func NewYtDlpResolver(cfg *config.Config, metaCache *cache.MetadataCache) *YtDlpResolver {
	r := &YtDlpResolver{
		cfg:       cfg,
		cache:     metaCache,
		downloads: make(map[string]*download),
	}
	r.watchWaveforms()
	return r
}

// ytDlpDump is the subset of yt-dlp --dump-json output the resolver reads.
type ytDlpDump struct {
	ID             string `json:"id"`
	Extractor      string `json:"extractor"`
	Title          string `json:"title"`
	DurationString string `json:"duration_string"`
	Uploader       string `json:"uploader"`
	WebpageURL     string `json:"webpage_url"`
	Thumbnail      string `json:"thumbnail"`
}

// Resolve probes url for metadata and ensures a download is running or
// done. The returned result reflects the current state; onProgress receives
// every later change until the returned CancelFunc is called.
func (r *YtDlpResolver) Resolve(ctx context.Context, url string, onProgress func(Update)) (*Result, CancelFunc, error) {
	meta, err := r.probe(ctx, url)
	if err != nil {
		return nil, nil, err
	}

	r.mu.Lock()
	dl, exists := r.downloads[meta.Key]
	if !exists {
		dl = &download{
			key:               meta.Key,
			title:             meta.Title,
			durationInSeconds: meta.DurationInSeconds,
			subs:              make(map[int]func(Update)),
		}
		if r.hasAudioFile(meta.Key) {
			// Already downloaded in an earlier run.
			dl.progress = 100
			dl.ready = true
			dl.waveformGenerated = r.hasWaveformFile(meta.Key)
		}
		r.downloads[meta.Key] = dl
	}
	r.mu.Unlock()

	cancel := dl.subscribe(onProgress)

	if !exists && !dl.snapshot().Ready {
		go r.run(dl, url)
	}

	snap := dl.snapshot()
	return &Result{
		Key:               meta.Key,
		Title:             meta.Title,
		DurationInSeconds: meta.DurationInSeconds,
		Progress:          snap.Progress,
		Ready:             snap.Ready,
		WaveformGenerated: snap.WaveformGenerated,
		SongInfo:          meta.SongInfo,
	}, cancel, nil
}

// Status reports the current acquisition state for a song key, or nil when
// the key is unknown to this process.
func (r *YtDlpResolver) Status(key string) *Update {
	r.mu.Lock()
	dl, ok := r.downloads[key]
	r.mu.Unlock()
	if !ok {
		return nil
	}
	snap := dl.snapshot()
	return &snap
}

// probe fetches metadata for url, preferring the cache.
func (r *YtDlpResolver) probe(ctx context.Context, url string) (*cache.SongMetadata, error) {
	if meta, err := r.cache.Get(ctx, url); err != nil {
		logger.Warn("metadata cache read failed", logger.ErrorField(err), logger.String("url", url))
	} else if meta != nil {
		return meta, nil
	}

	out, err := exec.CommandContext(ctx, r.cfg.YtDlpPath, "--dump-json", "-q", url).Output()
	if err != nil {
		return nil, fmt.Errorf("yt-dlp metadata probe failed for %s: %w", url, err)
	}

	var dump ytDlpDump
	if err := json.NewDecoder(bytes.NewReader(bytes.TrimLeft(out, " \t\r\n,"))).Decode(&dump); err != nil {
		return nil, fmt.Errorf("failed to parse yt-dlp metadata for %s: %w", url, err)
	}
	if dump.ID == "" || dump.Extractor == "" {
		return nil, fmt.Errorf("yt-dlp metadata for %s is missing id/extractor", url)
	}

	meta := &cache.SongMetadata{
		Key:               dump.Extractor + "-" + dump.ID,
		Title:             dump.Title,
		DurationInSeconds: parseDurationString(dump.DurationString),
		SongInfo: model.SongInfo{
			Title:      dump.Title,
			Uploader:   dump.Uploader,
			WebpageURL: dump.WebpageURL,
			Thumbnail:  dump.Thumbnail,
			Extractor:  dump.Extractor,
		},
	}

	if err := r.cache.Set(ctx, url, meta); err != nil {
		logger.Warn("metadata cache write failed", logger.ErrorField(err), logger.String("url", url))
	}

	return meta, nil
}

// run executes the download and, on success, kicks off waveform rendering.
func (r *YtDlpResolver) run(dl *download, url string) {
	cmd := exec.Command(r.cfg.YtDlpPath,
		"-f", "bestaudio/best",
		"-x", "--audio-format", "mp3",
		"-o", dl.key+".%(ext)s",
		url,
	)
	cmd.Dir = r.cfg.DownloadDir

	stdout, err := cmd.StdoutPipe()
	if err == nil {
		err = cmd.Start()
	}
	if err != nil {
		logger.Error("failed to start yt-dlp download", logger.ErrorField(err), logger.String("key", dl.key))
		dl.fail()
		return
	}

	scanner := bufio.NewScanner(stdout)
	for scanner.Scan() {
		match := progressRe.FindStringSubmatch(scanner.Text())
		if match == nil {
			continue
		}
		if progress, err := strconv.ParseFloat(match[1], 64); err == nil {
			dl.setProgress(progress)
		}
	}

	if err := cmd.Wait(); err != nil {
		logger.Warn("yt-dlp download failed",
			logger.ErrorField(err),
			logger.String("key", dl.key),
			logger.String("url", url))
		dl.fail()
		return
	}

	logger.Info("download finished", logger.String("key", dl.key), logger.String("title", dl.title))
	dl.finish()

	r.generateWaveform(dl.key)
}

func (r *YtDlpResolver) audioPath(key string) string {
	return filepath.Join(r.cfg.DownloadDir, key+".mp3")
}

func (r *YtDlpResolver) waveformPath(key string) string {
	return filepath.Join(r.cfg.DownloadDir, key+".json")
}

func (r *YtDlpResolver) hasAudioFile(key string) bool {
	_, err := os.Stat(r.audioPath(key))
	return err == nil
}

func (r *YtDlpResolver) hasWaveformFile(key string) bool {
	_, err := os.Stat(r.waveformPath(key))
	return err == nil
}

// parseDurationString parses yt-dlp's H:MM:SS / M:SS / SS duration form.
// Unparseable input counts as zero seconds.
func parseDurationString(duration string) int {
	match := durationRe.FindStringSubmatch(duration)
	if match == nil {
		return 0
	}

	hours, _ := strconv.Atoi(match[1])
	mins, _ := strconv.Atoi(match[2])
	secs, _ := strconv.Atoi(match[3])

	return hours*60*60 + mins*60 + secs
}

// ========== download state ==========

func (d *download) subscribe(fn func(Update)) CancelFunc {
	if fn == nil {
		return func() {}
	}

	d.mu.Lock()
	if d.subs == nil {
		d.subs = make(map[int]func(Update))
	}
	id := d.nextSub
	d.nextSub++
	d.subs[id] = fn
	d.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			d.mu.Lock()
			delete(d.subs, id)
			d.mu.Unlock()
		})
	}
}

// snapshot returns the current state under the lock.
func (d *download) snapshot() Update {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.update()
}

// update builds an Update; callers must hold d.mu.
func (d *download) update() Update {
	return Update{
		Key:               d.key,
		Title:             d.title,
		DurationInSeconds: d.durationInSeconds,
		Progress:          d.progress,
		Ready:             d.ready,
		WaveformGenerated: d.waveformGenerated,
	}
}

// publish fans the current state out to all subscribers; callers must hold d.mu.
func (d *download) publish() {
	upd := d.update()
	subs := make([]func(Update), 0, len(d.subs))
	for _, fn := range d.subs {
		subs = append(subs, fn)
	}

	// Deliver outside the lock so a subscriber may cancel itself.
	d.mu.Unlock()
	for _, fn := range subs {
		fn(upd)
	}
	d.mu.Lock()
}

func (d *download) setProgress(progress float64) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.failed || d.ready || progress <= d.progress {
		return
	}
	if progress > 99 {
		// 100 is only reported once the process exits cleanly.
		progress = 99
	}
	d.progress = progress
	d.publish()
}

func (d *download) finish() {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.progress = 100
	d.ready = true
	d.publish()
}

func (d *download) fail() {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.progress = model.ProgressFailed
	d.ready = false
	d.failed = true
	d.publish()
}

func (d *download) markWaveform() {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.waveformGenerated {
		return
	}
	d.waveformGenerated = true
	d.publish()
}
