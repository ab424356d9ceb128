package server

import (
	"encoding/json"
	"net/http"
	"sort"

	"github.com/gorilla/mux"
)

// RoomSummary is one row in the room listing.
type RoomSummary struct {
	ID        string `json:"id"`
	UserCount int    `json:"userCount"`
}

// SongStatusResponse reports the acquisition state of one song key.
type SongStatusResponse struct {
	Key               string  `json:"key"`
	Title             string  `json:"title,omitempty"`
	DurationInSeconds int     `json:"durationInSeconds,omitempty"`
	DownloadProgress  float64 `json:"downloadProgress"`
	Ready             bool    `json:"ready"`
	WaveformGenerated bool    `json:"waveformGenerated"`
}

// handleRooms lists the configured rooms with their current user counts.
func (s *Server) handleRooms(w http.ResponseWriter, r *http.Request) {
	rooms := make([]RoomSummary, 0, len(s.registry.Rooms()))
	for id, session := range s.registry.Rooms() {
		rooms = append(rooms, RoomSummary{ID: id, UserCount: session.UserCount()})
	}
	sort.Slice(rooms, func(i, j int) bool { return rooms[i].ID < rooms[j].ID })

	writeJSON(w, rooms)
}

// handleSongStatus reports download and waveform progress for one song key.
func (s *Server) handleSongStatus(w http.ResponseWriter, r *http.Request) {
	key := mux.Vars(r)["key"]

	status := s.resolver.Status(key)
	if status == nil {
		http.Error(w, "Unknown song", http.StatusNotFound)
		return
	}

	writeJSON(w, SongStatusResponse{
		Key:               status.Key,
		Title:             status.Title,
		DurationInSeconds: status.DurationInSeconds,
		DownloadProgress:  status.Progress,
		Ready:             status.Ready,
		WaveformGenerated: status.WaveformGenerated,
	})
}

// DownloadRequest asks for a URL to be resolved outside of any room.
type DownloadRequest struct {
	URL string `json:"url"`
}

// handleDownload kicks off a resolve for a URL without queueing it
// anywhere. Progress is polled through the status endpoint.
func (s *Server) handleDownload(w http.ResponseWriter, r *http.Request) {
	var req DownloadRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.URL == "" {
		http.Error(w, "A url is required", http.StatusBadRequest)
		return
	}

	result, cancel, err := s.resolver.Resolve(r.Context(), req.URL, nil)
	if err != nil {
		http.Error(w, "Unable to resolve the URL", http.StatusBadGateway)
		return
	}
	cancel()

	w.WriteHeader(http.StatusAccepted)
	writeJSON(w, SongStatusResponse{
		Key:               result.Key,
		Title:             result.Title,
		DurationInSeconds: result.DurationInSeconds,
		DownloadProgress:  result.Progress,
		Ready:             result.Ready,
		WaveformGenerated: result.WaveformGenerated,
	})
}

func writeJSON(w http.ResponseWriter, payload any) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(payload)
}
