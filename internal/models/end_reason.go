// Listenimport - ListenBrainz Listen History Importer
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/listenimport

package models

import "strings"

// EndReason describes why playback of a track stopped, as recorded in the
// Spotify extended streaming history (reason_end).
type EndReason uint8

const (
	EndReasonNone EndReason = iota // not reported
	EndReasonAppLoad
	EndReasonBackButton
	EndReasonClickRow
	EndReasonEndPlay
	EndReasonForwardButton
	EndReasonLogout
	EndReasonPlayButton
	EndReasonRemote
	EndReasonTrackDone
	EndReasonTrackError
	EndReasonUnexpectedExit
	EndReasonUnexpectedExitWhilePaused
	EndReasonUnexpectedOther // any other "unexpected-" tag
	EndReasonUnknown
	EndReasonOther // unrecognized tag
)

// unexpectedPrefix marks tags emitted when the client died mid-track.
const unexpectedPrefix = "unexpected-"

var endReasonNames = map[EndReason]string{
	EndReasonNone:                      "",
	EndReasonAppLoad:                   "appload",
	EndReasonBackButton:                "backbtn",
	EndReasonClickRow:                  "clickrow",
	EndReasonEndPlay:                   "endplay",
	EndReasonForwardButton:             "fwdbtn",
	EndReasonLogout:                    "logout",
	EndReasonPlayButton:                "playbtn",
	EndReasonRemote:                    "remote",
	EndReasonTrackDone:                 "trackdone",
	EndReasonTrackError:                "trackerror",
	EndReasonUnexpectedExit:            "unexpected-exit",
	EndReasonUnexpectedExitWhilePaused: "unexpected-exit-while-paused",
	EndReasonUnexpectedOther:           "unexpected-other",
	EndReasonUnknown:                   "unknown",
	EndReasonOther:                     "other",
}

var endReasonsByName = func() map[string]EndReason {
	m := make(map[string]EndReason, len(endReasonNames))
	for r, name := range endReasonNames {
		if r == EndReasonNone || r == EndReasonOther || r == EndReasonUnexpectedOther {
			continue
		}
		m[name] = r
	}
	return m
}()

// ParseEndReason maps a raw reason tag to an EndReason. Matching is case
// insensitive. Unlisted tags with the "unexpected-" prefix map to
// EndReasonUnexpectedOther, any other unlisted tag to EndReasonOther.
func ParseEndReason(raw string) EndReason {
	tag := strings.ToLower(strings.TrimSpace(raw))
	if tag == "" {
		return EndReasonNone
	}
	if r, ok := endReasonsByName[tag]; ok {
		return r
	}
	if strings.HasPrefix(tag, unexpectedPrefix) {
		return EndReasonUnexpectedOther
	}
	return EndReasonOther
}

// String returns the tag as it appears in Spotify exports.
func (r EndReason) String() string {
	if name, ok := endReasonNames[r]; ok {
		return name
	}
	return "other"
}

// IsInterruption reports whether playback was cut off by something other than
// the listener: a logout, a remote device takeover, a playback error, an
// unknown cause or an unexpected client exit.
func (r EndReason) IsInterruption() bool {
	switch r {
	case EndReasonLogout,
		EndReasonRemote,
		EndReasonTrackError,
		EndReasonUnknown,
		EndReasonUnexpectedExit,
		EndReasonUnexpectedExitWhilePaused,
		EndReasonUnexpectedOther:
		return true
	case EndReasonNone,
		EndReasonAppLoad,
		EndReasonBackButton,
		EndReasonClickRow,
		EndReasonEndPlay,
		EndReasonForwardButton,
		EndReasonPlayButton,
		EndReasonTrackDone,
		EndReasonOther:
		return false
	default:
		return false
	}
}
