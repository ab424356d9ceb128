package server

import (
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"

	"syncthat/logger"

	"github.com/gorilla/mux"
)

// streamWindowBytes caps one range response. Clients fetch the rest with
// follow-up range requests as playback advances.
const streamWindowBytes = 1024 * 1024

var streamFileRe = regexp.MustCompile(`^[\w-]+\.(mp3|json)$`)

// handleStream serves downloaded audio and waveform files. Audio goes out
// in bounded 206 windows so a client never pulls a whole song at once;
// waveform JSON is small and served whole.
func (s *Server) handleStream(w http.ResponseWriter, r *http.Request) {
	name := mux.Vars(r)["file"]
	if !streamFileRe.MatchString(name) {
		http.Error(w, "Invalid file name", http.StatusBadRequest)
		return
	}

	path := filepath.Join(s.cfg.DownloadDir, name)
	f, err := os.Open(path)
	if err != nil {
		http.Error(w, "File not found", http.StatusNotFound)
		return
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		http.Error(w, "File not found", http.StatusNotFound)
		return
	}
	size := info.Size()

	if strings.HasSuffix(name, ".json") {
		w.Header().Set("Content-Type", "application/json")
		w.Header().Set("Content-Length", strconv.FormatInt(size, 10))
		if r.Method == http.MethodHead {
			return
		}
		if _, err := io.Copy(w, f); err != nil {
			logger.Warn("waveform serve interrupted", logger.ErrorField(err), logger.String("file", name))
		}
		return
	}

	start, end, err := parseRange(r.Header.Get("Range"), size)
	if err != nil {
		w.Header().Set("Content-Range", fmt.Sprintf("bytes */%d", size))
		http.Error(w, "Invalid range", http.StatusRequestedRangeNotSatisfiable)
		return
	}

	w.Header().Set("Content-Type", "audio/mpeg")
	w.Header().Set("Accept-Ranges", "bytes")
	w.Header().Set("Content-Range", fmt.Sprintf("bytes %d-%d/%d", start, end, size))
	w.Header().Set("Content-Length", strconv.FormatInt(end-start+1, 10))
	w.WriteHeader(http.StatusPartialContent)

	if r.Method == http.MethodHead {
		return
	}

	if _, err := f.Seek(start, io.SeekStart); err != nil {
		return
	}
	if _, err := io.CopyN(w, f, end-start+1); err != nil {
		logger.Debug("stream interrupted", logger.ErrorField(err), logger.String("file", name))
	}
}

// parseRange resolves a Range header against the file size, applying the
// response window cap. A missing header means "from the start".
func parseRange(header string, size int64) (start, end int64, err error) {
	if size <= 0 {
		return 0, 0, fmt.Errorf("empty file")
	}

	end = size - 1
	if header != "" {
		spec, ok := strings.CutPrefix(header, "bytes=")
		if !ok {
			return 0, 0, fmt.Errorf("unsupported range unit: %q", header)
		}
		// Only the first range of a set is honored.
		spec, _, _ = strings.Cut(spec, ",")
		from, to, found := strings.Cut(strings.TrimSpace(spec), "-")
		if !found {
			return 0, 0, fmt.Errorf("malformed range: %q", header)
		}

		if from == "" {
			// Suffix range: the last N bytes.
			n, perr := strconv.ParseInt(to, 10, 64)
			if perr != nil || n <= 0 {
				return 0, 0, fmt.Errorf("malformed range: %q", header)
			}
			if n > size {
				n = size
			}
			start = size - n
		} else {
			start, err = strconv.ParseInt(from, 10, 64)
			if err != nil || start < 0 {
				return 0, 0, fmt.Errorf("malformed range: %q", header)
			}
			if start >= size {
				return 0, 0, fmt.Errorf("range start past end")
			}
			if to != "" {
				end, err = strconv.ParseInt(to, 10, 64)
				if err != nil || end < start {
					return 0, 0, fmt.Errorf("malformed range: %q", header)
				}
			}
		}
	}

	if end >= size {
		end = size - 1
	}
	if end-start+1 > streamWindowBytes {
		end = start + streamWindowBytes - 1
	}
	return start, end, nil
}
