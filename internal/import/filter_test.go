// Listenimport - ListenBrainz Listen History Importer
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/listenimport

package listenimport

import (
	"testing"

	"github.com/tomtom215/listenimport/internal/models"
)

func int64Ptr(v int64) *int64 { return &v }

func TestFilter_Keep(t *testing.T) {
	t.Parallel()

	bounded := Filter{Before: int64Ptr(2000), After: int64Ptr(1000), MinPlayMs: models.Uint32(30000)}

	tests := []struct {
		name   string
		filter Filter
		listen models.Listen
		want   bool
	}{
		{"zero filter keeps everything", Filter{}, models.Listen{ListenedAt: 5}, true},
		{"inside window", bounded, models.Listen{ListenedAt: 1500}, true},
		{"at after bound", bounded, models.Listen{ListenedAt: 1000}, false},
		{"below after bound", bounded, models.Listen{ListenedAt: 999}, false},
		{"at before bound", bounded, models.Listen{ListenedAt: 2000}, false},
		{"above before bound", bounded, models.Listen{ListenedAt: 2001}, false},
		{"just inside both bounds", bounded, models.Listen{ListenedAt: 1001}, true},
		{"short play", bounded, models.Listen{ListenedAt: 1500, MsPlayed: models.Uint32(29999)}, false},
		{"exact minimum play", bounded, models.Listen{ListenedAt: 1500, MsPlayed: models.Uint32(30000)}, true},
		{"no reported duration passes", Filter{MinPlayMs: models.Uint32(30000)}, models.Listen{ListenedAt: 1}, true},
		{"before only", Filter{Before: int64Ptr(10)}, models.Listen{ListenedAt: -5}, true},
		{"after only", Filter{After: int64Ptr(10)}, models.Listen{ListenedAt: 11}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.filter.Keep(tt.listen); got != tt.want {
				t.Errorf("Keep(%+v) = %v, want %v", tt.listen, got, tt.want)
			}
		})
	}
}

// TestFilter_KeepMatchesWindow checks Keep against the closed form
// after < t < before && (ms absent || ms >= min) over a grid of inputs.
func TestFilter_KeepMatchesWindow(t *testing.T) {
	t.Parallel()

	const after, before, minMs = 100, 200, 1000
	f := Filter{Before: int64Ptr(before), After: int64Ptr(after), MinPlayMs: models.Uint32(minMs)}

	durations := []*uint32{nil, models.Uint32(0), models.Uint32(minMs - 1), models.Uint32(minMs), models.Uint32(minMs * 10)}
	for ts := int64(90); ts <= 210; ts++ {
		for _, ms := range durations {
			l := models.Listen{ListenedAt: ts, MsPlayed: ms}
			want := after < ts && ts < before && (ms == nil || *ms >= minMs)
			if got := f.Keep(l); got != want {
				t.Fatalf("Keep(t=%d, ms=%v) = %v, want %v", ts, ms, got, want)
			}
		}
	}
}

func TestFilter_Apply(t *testing.T) {
	t.Parallel()

	input := []models.Listen{
		{ListenedAt: 30, TrackName: "c"},
		{ListenedAt: 10, TrackName: "a"},
		{ListenedAt: 50, TrackName: "e"},
		{ListenedAt: 20, TrackName: "b"},
	}
	f := Filter{Before: int64Ptr(50), After: int64Ptr(10)}

	got := f.Apply(input)
	if len(got) != 2 || got[0].TrackName != "c" || got[1].TrackName != "b" {
		t.Errorf("Apply() = %+v, want [c b] in input order", got)
	}
	if len(input) != 4 {
		t.Error("Apply() modified its input")
	}
}
