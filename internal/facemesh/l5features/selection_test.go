package l5features

import (
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"
)

func TestParseSelection(t *testing.T) {
	tests := []struct {
		name         string
		input        string
		clusters     []string
		wantIndices  []int
		wantRejected []string
	}{
		{"single", "320", nil, []int{320}, nil},
		{"range inclusive", "1-4", nil, []int{1, 2, 3, 4}, nil},
		{"list with spaces and duplicates", " 20, 34 ,7,20", nil, []int{7, 20, 34}, nil},
		{"malformed tokens", "5,abc,3-x,9-2", nil, []int{5}, []string{"abc", "3-x", "9-2"}},
		{"out of range", "476-479,-3", nil, []int{476, 477}, []string{"478", "479", "-3"}},
		{"cluster", "", []string{"noseTip"}, []int{1}, nil},
		{"group and text", "2", []string{"cheeks"}, []int{2, 205, 425}, nil},
		{"unknown cluster", "", []string{"forehead"}, []int{}, []string{"forehead"}},
		{"empty", "", nil, []int{}, nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, rejected := ParseSelection(tt.input, tt.clusters...)
			if diff := cmp.Diff(tt.wantIndices, got, cmpopts.EquateEmpty()); diff != "" {
				t.Errorf("indices mismatch (-want +got):\n%s", diff)
			}
			if diff := cmp.Diff(tt.wantRejected, rejected, cmpopts.EquateEmpty()); diff != "" {
				t.Errorf("rejected mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestTrainingLabels(t *testing.T) {
	tests := []struct {
		path string
		want Labels
	}{
		{"data/s01_smile.csv", Labels{Subject: "s01", Test: "smile"}},
		{"/tmp/s02_raise_brows.csv", Labels{Subject: "s02", Test: "raise_brows"}},
		{"baseline.csv", Labels{Subject: "baseline", Test: "baseline"}},
	}
	for _, tt := range tests {
		if got := TrainingLabels(tt.path); got != tt.want {
			t.Errorf("TrainingLabels(%q) = %+v, want %+v", tt.path, got, tt.want)
		}
	}
}
