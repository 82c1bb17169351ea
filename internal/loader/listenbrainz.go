// Listenimport - ListenBrainz Listen History Importer
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/listenimport

package loader

import (
	"errors"

	"github.com/goccy/go-json"

	"github.com/tomtom215/listenimport/internal/models"
)

// lbEntry is one listen of a ListenBrainz export.
type lbEntry struct {
	ListenedAt    *int64 `json:"listened_at"`
	TrackMetadata struct {
		ArtistName     string         `json:"artist_name"`
		TrackName      string         `json:"track_name"`
		ReleaseName    string         `json:"release_name"`
		AdditionalInfo map[string]any `json:"additional_info"`
		MBIDMapping    *struct {
			RecordingMBID string   `json:"recording_mbid"`
			ReleaseMBID   string   `json:"release_mbid"`
			ArtistMBIDs   []string `json:"artist_mbids"`
		} `json:"mbid_mapping"`
	} `json:"track_metadata"`
}

func decodeListenBrainz(raw json.RawMessage, _ int64) (models.Listen, error) {
	var e lbEntry
	if err := json.Unmarshal(raw, &e); err != nil {
		return models.Listen{}, err
	}
	if e.ListenedAt == nil {
		return models.Listen{}, errors.New("entry has no listened_at")
	}

	md := e.TrackMetadata
	info := make(map[string]any, len(md.AdditionalInfo)+3)
	for k, v := range md.AdditionalInfo {
		info[k] = v
	}
	if m := md.MBIDMapping; m != nil {
		if m.RecordingMBID != "" {
			info[models.MetaRecordingMBID] = m.RecordingMBID
		}
		if m.ReleaseMBID != "" {
			info[models.MetaReleaseMBID] = m.ReleaseMBID
		}
		if len(m.ArtistMBIDs) > 0 {
			info[models.MetaArtistMBIDs] = m.ArtistMBIDs
		}
	}

	listen := models.Listen{
		ListenedAt:    *e.ListenedAt,
		TrackName:     md.TrackName,
		ArtistName:    md.ArtistName,
		ReleaseName:   md.ReleaseName,
		ExtraMetadata: info,
	}
	if mbid, ok := info[models.MetaRecordingMBID].(string); ok {
		listen.TrackID = mbid
	}
	return listen, nil
}
