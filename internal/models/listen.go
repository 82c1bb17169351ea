// Listenimport - ListenBrainz Listen History Importer
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/listenimport

package models

import (
	"fmt"
	"maps"
	"strings"
	"time"

	"github.com/tomtom215/listenimport/internal/listenbrainz"
)

// SubmissionClient is the client name stamped into every outbound payload.
const SubmissionClient = "listenimport"

// SubmissionClientVersion is overridden at build time with
// -ldflags "-X github.com/tomtom215/listenimport/internal/models.SubmissionClientVersion=...".
var SubmissionClientVersion = "dev"

// Metadata keys written into additional_info.
const (
	MetaSubmissionClient        = "submission_client"
	MetaSubmissionClientVersion = "submission_client_version"
	MetaMusicService            = "music_service"
	MetaSpotifyID               = "spotify_id"
	MetaOriginURL               = "origin_url"
	MetaRecordingMBID           = "recording_mbid"
	MetaReleaseMBID             = "release_mbid"
	MetaArtistMBIDs             = "artist_mbids"
)

// Format identifies the dump format a listen was loaded from.
type Format string

const (
	// FormatAuto selects the format per file from its name.
	FormatAuto Format = "auto"

	// FormatSpotify is a Spotify streaming history export (extended or simple).
	FormatSpotify Format = "spotify"

	// FormatListenBrainz is a ListenBrainz listens export.
	FormatListenBrainz Format = "listenbrainz"
)

// ParseFormat converts a user supplied format name to a Format.
// The empty string selects FormatAuto.
func ParseFormat(s string) (Format, error) {
	switch Format(strings.ToLower(strings.TrimSpace(s))) {
	case "", FormatAuto:
		return FormatAuto, nil
	case FormatSpotify:
		return FormatSpotify, nil
	case FormatListenBrainz, "lb":
		return FormatListenBrainz, nil
	default:
		return "", fmt.Errorf("unknown format %q", s)
	}
}

// PayloadConverter is implemented by records that can be submitted as a listen.
type PayloadConverter interface {
	ToPayload() listenbrainz.Payload
}

// Listen is a single normalized play event.
type Listen struct {
	// ListenedAt is the unix timestamp (seconds) of the play.
	ListenedAt int64

	TrackName   string
	ArtistName  string
	ReleaseName string // empty when unknown

	// MsPlayed is nil for formats that do not report a play duration.
	MsPlayed *uint32

	// TrackID is an opaque per-service track reference, empty when unknown.
	TrackID string

	EndReason EndReason

	// ExtraMetadata is merged into the payload's additional_info.
	ExtraMetadata map[string]any

	Source Format
}

var _ PayloadConverter = Listen{}

// Valid reports whether the listen carries the fields every payload requires.
func (l Listen) Valid() bool {
	return strings.TrimSpace(l.TrackName) != "" && strings.TrimSpace(l.ArtistName) != ""
}

// Time returns ListenedAt as a UTC time.
func (l Listen) Time() time.Time {
	return time.Unix(l.ListenedAt, 0).UTC()
}

// TrackKey identifies the track for deduplication. The service track identifier
// is used when present, otherwise a case-folded artist/release/track key.
func (l Listen) TrackKey() string {
	if l.TrackID != "" {
		return l.TrackID
	}
	return strings.ToLower(l.ArtistName) + "\x00" + strings.ToLower(l.ReleaseName) + "\x00" + strings.ToLower(l.TrackName)
}

// PlayedAtLeast reports whether the listen satisfies a minimum play duration.
// Listens without a reported duration always do.
func (l Listen) PlayedAtLeast(minMs uint32) bool {
	return l.MsPlayed == nil || *l.MsPlayed >= minMs
}

// ToPayload maps the listen to the submit-listens payload shape.
// The submission client stamp overrides ExtraMetadata keys of the same name.
func (l Listen) ToPayload() listenbrainz.Payload {
	info := make(map[string]any, len(l.ExtraMetadata)+2)
	maps.Copy(info, l.ExtraMetadata)
	info[MetaSubmissionClient] = SubmissionClient
	info[MetaSubmissionClientVersion] = SubmissionClientVersion

	return listenbrainz.Payload{
		ListenedAt: l.ListenedAt,
		TrackMetadata: listenbrainz.TrackMetadata{
			ArtistName:     l.ArtistName,
			TrackName:      l.TrackName,
			ReleaseName:    l.ReleaseName,
			AdditionalInfo: info,
		},
	}
}

// Uint32 returns a pointer to v.
func Uint32(v uint32) *uint32 {
	return &v
}
