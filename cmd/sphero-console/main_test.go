package main

import (
	"reflect"
	"testing"
)

func TestParseStreamPreset(t *testing.T) {
	tests := []struct {
		in         string
		wantGroups []string
		wantHz     int
		wantErr    bool
	}{
		{in: "accel@10", wantGroups: []string{"accel"}, wantHz: 10},
		{in: "accel+gyro@20", wantGroups: []string{"accel", "gyro"}, wantHz: 20},
		{in: "imu_angles", wantGroups: []string{"imu_angles"}, wantHz: 10},
		{in: "odometer + velocity @ 5", wantErr: true},
		{in: "accel@fast", wantErr: true},
		{in: "@10", wantErr: true},
		{in: "accel@0", wantErr: true},
	}

	for _, tt := range tests {
		groups, hz, err := parseStreamPreset(tt.in)
		if tt.wantErr {
			if err == nil {
				t.Errorf("parseStreamPreset(%q): expected error", tt.in)
			}
			continue
		}
		if err != nil {
			t.Errorf("parseStreamPreset(%q): %v", tt.in, err)
			continue
		}
		if !reflect.DeepEqual(groups, tt.wantGroups) || hz != tt.wantHz {
			t.Errorf("parseStreamPreset(%q) = (%v, %d), want (%v, %d)",
				tt.in, groups, hz, tt.wantGroups, tt.wantHz)
		}
	}
}
