// Listenimport - ListenBrainz Listen History Importer
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/listenimport

package models

import (
	"testing"
	"time"
)

func TestParseEndReason(t *testing.T) {
	t.Parallel()

	tests := []struct {
		raw  string
		want EndReason
	}{
		{"", EndReasonNone},
		{"  ", EndReasonNone},
		{"appload", EndReasonAppLoad},
		{"backbtn", EndReasonBackButton},
		{"clickrow", EndReasonClickRow},
		{"endplay", EndReasonEndPlay},
		{"fwdbtn", EndReasonForwardButton},
		{"logout", EndReasonLogout},
		{"playbtn", EndReasonPlayButton},
		{"remote", EndReasonRemote},
		{"trackdone", EndReasonTrackDone},
		{"trackerror", EndReasonTrackError},
		{"unexpected-exit", EndReasonUnexpectedExit},
		{"unexpected-exit-while-paused", EndReasonUnexpectedExitWhilePaused},
		{"unexpected-crash", EndReasonUnexpectedOther},
		{"unknown", EndReasonUnknown},
		{"TrackDone", EndReasonTrackDone},
		{"something-new", EndReasonOther},
		{"other", EndReasonOther},
	}

	for _, tt := range tests {
		t.Run(tt.raw, func(t *testing.T) {
			t.Parallel()
			if got := ParseEndReason(tt.raw); got != tt.want {
				t.Errorf("ParseEndReason(%q) = %v, want %v", tt.raw, got, tt.want)
			}
		})
	}
}

func TestEndReason_IsInterruption(t *testing.T) {
	t.Parallel()

	interruptions := map[string]bool{
		"logout":                       true,
		"remote":                       true,
		"trackerror":                   true,
		"unknown":                      true,
		"unexpected-exit":              true,
		"unexpected-exit-while-paused": true,
		"unexpected-anything":          true,
		"trackdone":                    false,
		"fwdbtn":                       false,
		"backbtn":                      false,
		"endplay":                      false,
		"clickrow":                     false,
		"playbtn":                      false,
		"appload":                      false,
		"":                             false,
		"made-up":                      false,
	}

	for raw, want := range interruptions {
		if got := ParseEndReason(raw).IsInterruption(); got != want {
			t.Errorf("ParseEndReason(%q).IsInterruption() = %v, want %v", raw, got, want)
		}
	}
}

func TestEndReason_StringRoundTrip(t *testing.T) {
	t.Parallel()

	for r := EndReasonAppLoad; r <= EndReasonUnknown; r++ {
		if r == EndReasonUnexpectedOther {
			continue
		}
		if got := ParseEndReason(r.String()); got != r {
			t.Errorf("ParseEndReason(%q) = %v, want %v", r.String(), got, r)
		}
	}
}

func TestParseFormat(t *testing.T) {
	t.Parallel()

	tests := []struct {
		in      string
		want    Format
		wantErr bool
	}{
		{"", FormatAuto, false},
		{"auto", FormatAuto, false},
		{"spotify", FormatSpotify, false},
		{"Spotify", FormatSpotify, false},
		{"listenbrainz", FormatListenBrainz, false},
		{"lb", FormatListenBrainz, false},
		{"lastfm", "", true},
	}

	for _, tt := range tests {
		got, err := ParseFormat(tt.in)
		if (err != nil) != tt.wantErr {
			t.Errorf("ParseFormat(%q) error = %v, wantErr %v", tt.in, err, tt.wantErr)
			continue
		}
		if got != tt.want {
			t.Errorf("ParseFormat(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestListen_Valid(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name   string
		listen Listen
		want   bool
	}{
		{"complete", Listen{TrackName: "Burn Brighter", ArtistName: "Lansdowne"}, true},
		{"missing track", Listen{ArtistName: "Lansdowne"}, false},
		{"missing artist", Listen{TrackName: "Burn Brighter"}, false},
		{"whitespace only", Listen{TrackName: " ", ArtistName: "Lansdowne"}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.listen.Valid(); got != tt.want {
				t.Errorf("Valid() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestListen_TrackKey(t *testing.T) {
	t.Parallel()

	t.Run("uses track id when present", func(t *testing.T) {
		a := Listen{TrackName: "A", ArtistName: "X", TrackID: "spotify:1"}
		b := Listen{TrackName: "B", ArtistName: "Y", TrackID: "spotify:1"}
		if a.TrackKey() != b.TrackKey() {
			t.Errorf("expected equal keys for shared track id, got %q and %q", a.TrackKey(), b.TrackKey())
		}
	})

	t.Run("falls back to names case-insensitively", func(t *testing.T) {
		a := Listen{TrackName: "Burn Brighter", ArtistName: "Lansdowne"}
		b := Listen{TrackName: "burn brighter", ArtistName: "LANSDOWNE"}
		if a.TrackKey() != b.TrackKey() {
			t.Errorf("expected equal keys, got %q and %q", a.TrackKey(), b.TrackKey())
		}
	})

	t.Run("different tracks without ids differ", func(t *testing.T) {
		a := Listen{TrackName: "One", ArtistName: "Lansdowne"}
		b := Listen{TrackName: "Two", ArtistName: "Lansdowne"}
		if a.TrackKey() == b.TrackKey() {
			t.Errorf("expected different keys, both %q", a.TrackKey())
		}
	})
}

func TestListen_PlayedAtLeast(t *testing.T) {
	t.Parallel()

	if !(Listen{}).PlayedAtLeast(30000) {
		t.Error("listen without duration should satisfy any minimum")
	}
	if !(Listen{MsPlayed: Uint32(30000)}).PlayedAtLeast(30000) {
		t.Error("duration equal to minimum should pass")
	}
	if (Listen{MsPlayed: Uint32(29999)}).PlayedAtLeast(30000) {
		t.Error("duration below minimum should fail")
	}
}

func TestListen_Time(t *testing.T) {
	t.Parallel()

	l := Listen{ListenedAt: 1531090963}
	want := time.Date(2018, 7, 8, 23, 2, 43, 0, time.UTC)
	if got := l.Time(); !got.Equal(want) {
		t.Errorf("Time() = %v, want %v", got, want)
	}
}

func TestListen_ToPayload(t *testing.T) {
	t.Parallel()

	l := Listen{
		ListenedAt:  1531090963,
		TrackName:   "Burn Brighter",
		ArtistName:  "Lansdowne",
		ReleaseName: "No Home but the Road",
		ExtraMetadata: map[string]any{
			MetaMusicService:     "spotify.com",
			MetaSubmissionClient: "someone-else",
		},
	}

	p := l.ToPayload()

	if p.ListenedAt != l.ListenedAt {
		t.Errorf("ListenedAt = %d, want %d", p.ListenedAt, l.ListenedAt)
	}
	if p.TrackMetadata.TrackName != "Burn Brighter" {
		t.Errorf("TrackName = %q", p.TrackMetadata.TrackName)
	}
	if p.TrackMetadata.ArtistName != "Lansdowne" {
		t.Errorf("ArtistName = %q", p.TrackMetadata.ArtistName)
	}
	if p.TrackMetadata.ReleaseName != "No Home but the Road" {
		t.Errorf("ReleaseName = %q", p.TrackMetadata.ReleaseName)
	}

	info := p.TrackMetadata.AdditionalInfo
	if info[MetaSubmissionClient] != SubmissionClient {
		t.Errorf("submission_client = %v, want %s", info[MetaSubmissionClient], SubmissionClient)
	}
	if info[MetaSubmissionClientVersion] != SubmissionClientVersion {
		t.Errorf("submission_client_version = %v, want %s", info[MetaSubmissionClientVersion], SubmissionClientVersion)
	}
	if info[MetaMusicService] != "spotify.com" {
		t.Errorf("music_service = %v, want spotify.com", info[MetaMusicService])
	}

	// The source metadata map must not be mutated by the stamp.
	if l.ExtraMetadata[MetaSubmissionClient] != "someone-else" {
		t.Error("ToPayload mutated ExtraMetadata")
	}
}

func TestListen_ToPayloadWithoutMetadata(t *testing.T) {
	t.Parallel()

	p := Listen{ListenedAt: 1, TrackName: "T", ArtistName: "A"}.ToPayload()
	if len(p.TrackMetadata.AdditionalInfo) != 2 {
		t.Errorf("expected only the submission stamp, got %v", p.TrackMetadata.AdditionalInfo)
	}
}
