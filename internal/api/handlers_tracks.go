package api

import (
	"net/http"
	"sort"

	"github.com/chartwell/trellis/internal/db"
)

// trackInfo summarizes one known track for API clients.
type trackInfo struct {
	Track       string   `json:"track"`
	Description string   `json:"description,omitempty"`
	Phases      []string `json:"phases"`
	Source      string   `json:"source"`
}

// handleListTracks returns every track tasks can be created on: the
// built-ins plus any track with a phase catalog.
func (s *Server) handleListTracks(w http.ResponseWriter, r *http.Request) {
	var tracks []trackInfo
	seen := make(map[string]bool)

	for _, rc := range s.resolver.List() {
		tracks = append(tracks, trackInfo{
			Track:       rc.Catalog.Track,
			Description: rc.Catalog.Description,
			Phases:      rc.Catalog.Keys(),
			Source:      string(rc.Source),
		})
		seen[rc.Catalog.Track] = true
	}

	// Built-in tracks without a catalog spawn no phases but are
	// still valid.
	for _, t := range []db.Track{db.TrackQuick, db.TrackStaged} {
		if !seen[string(t)] {
			tracks = append(tracks, trackInfo{
				Track:  string(t),
				Phases: []string{},
				Source: "builtin",
			})
		}
	}

	sort.Slice(tracks, func(i, j int) bool { return tracks[i].Track < tracks[j].Track })

	s.jsonResponse(w, tracks)
}
