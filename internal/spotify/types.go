package spotify

import "github.com/justestif/go-spotify-history/internal/db"

// Snapshot is one "currently playing" observation.
type Snapshot struct {
	Playing    bool
	Timestamp  int64 // epoch ms, as reported by Spotify
	ProgressMs int
	Item       *db.Track // nil when nothing, or something other than a track, is loaded
}

// Active reports whether the snapshot describes a track that is playing.
func (s *Snapshot) Active() bool {
	return s != nil && s.Playing && s.Item != nil
}
