// Listenimport - ListenBrainz Listen History Importer
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/listenimport

package loader

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/goccy/go-json"
	"github.com/zmb3/spotify/v2"

	"github.com/tomtom215/listenimport/internal/models"
)

// spotifySimpleLayout is the endTime layout of StreamingHistory*.json, in UTC.
const spotifySimpleLayout = "2006-01-02 15:04"

// spotifyTrackURL is the public URL of a Spotify track.
const spotifyTrackURL = "https://open.spotify.com/tracks/"

// spotifyEntry covers both export shapes. Extended exports use ts and the
// master_metadata_* names; simple exports use endTime and camelCase names.
type spotifyEntry struct {
	// Extended
	TS               string  `json:"ts"`
	MsPlayed         *uint32 `json:"ms_played"`
	TrackName        *string `json:"master_metadata_track_name"`
	ArtistName       *string `json:"master_metadata_album_artist_name"`
	AlbumName        *string `json:"master_metadata_album_album_name"`
	TrackURI         *string `json:"spotify_track_uri"`
	ReasonEnd        string  `json:"reason_end"`
	OfflineTimestamp *int64  `json:"offline_timestamp"`

	// Simple
	EndTime          string  `json:"endTime"`
	SimpleTrackName  *string `json:"trackName"`
	SimpleArtistName *string `json:"artistName"`
	SimpleMsPlayed   *uint32 `json:"msPlayed"`
}

func decodeSpotify(raw json.RawMessage, epochGuard int64) (models.Listen, error) {
	var e spotifyEntry
	if err := json.Unmarshal(raw, &e); err != nil {
		return models.Listen{}, err
	}

	var listen models.Listen
	switch {
	case e.TS != "":
		t, err := time.Parse(time.RFC3339, e.TS)
		if err != nil {
			return models.Listen{}, fmt.Errorf("parse ts: %w", err)
		}
		listen = models.Listen{
			ListenedAt:  t.Unix(),
			TrackName:   deref(e.TrackName),
			ArtistName:  deref(e.ArtistName),
			ReleaseName: deref(e.AlbumName),
			MsPlayed:    e.MsPlayed,
			EndReason:   models.ParseEndReason(e.ReasonEnd),
		}
	case e.EndTime != "":
		t, err := time.ParseInLocation(spotifySimpleLayout, e.EndTime, time.UTC)
		if err != nil {
			return models.Listen{}, fmt.Errorf("parse endTime: %w", err)
		}
		listen = models.Listen{
			ListenedAt: t.Unix(),
			TrackName:  deref(e.SimpleTrackName),
			ArtistName: deref(e.SimpleArtistName),
			MsPlayed:   e.SimpleMsPlayed,
		}
	default:
		return models.Listen{}, errors.New("entry has neither ts nor endTime")
	}

	// Offline plays are logged when the client reconnects; the capture time
	// is the real listen time when it looks like one.
	if e.OfflineTimestamp != nil {
		if offline := *e.OfflineTimestamp / 1000; offline > epochGuard {
			listen.ListenedAt = offline
		}
	}

	listen.ExtraMetadata = map[string]any{
		models.MetaMusicService: "spotify.com",
	}
	if id := trackIDFromURI(deref(e.TrackURI)); id != "" {
		listen.TrackID = string(id)
		listen.ExtraMetadata[models.MetaSpotifyID] = spotifyTrackURL + string(id)
		listen.ExtraMetadata[models.MetaOriginURL] = spotifyTrackURL + string(id)
	}

	return listen, nil
}

// trackIDFromURI extracts the id from a spotify:track:<id> URI.
func trackIDFromURI(uri string) spotify.ID {
	u := spotify.URI(strings.TrimSpace(uri))
	if u == "" {
		return ""
	}
	_, id, ok := strings.Cut(string(u), "spotify:track:")
	if !ok || id == "" {
		return ""
	}
	return spotify.ID(id)
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
