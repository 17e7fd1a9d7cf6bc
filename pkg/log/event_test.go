package log

import (
	"testing"
	"time"
)

func TestEventEncodeDecode(t *testing.T) {
	tests := []struct {
		name  string
		event Event
	}{
		{
			name: "frame event",
			event: Event{
				Timestamp:    time.Now().UTC(),
				ConnectionID: "conn-1",
				Direction:    DirectionOut,
				Layer:        LayerFrame,
				Category:     CategoryCommand,
				Frame: &FrameEvent{
					Size: 7,
					Data: []byte{0xFF, 0xFF, 0x00, 0x01, 0x05, 0x01, 0xF8},
				},
			},
		},
		{
			name: "packet event",
			event: Event{
				Timestamp:    time.Now().UTC(),
				ConnectionID: "conn-2",
				Direction:    DirectionIn,
				Layer:        LayerPacket,
				Category:     CategoryResponse,
				RobotName:    "Sphero-RGB",
				Packet: &PacketEvent{
					Device:      0x00,
					Code:        0x00,
					Sequence:    0x12,
					PayloadSize: 8,
				},
			},
		},
		{
			name: "state change",
			event: Event{
				Timestamp:    time.Now().UTC(),
				ConnectionID: "conn-3",
				Direction:    DirectionIn,
				Layer:        LayerConnection,
				Category:     CategoryState,
				StateChange: &StateChangeEvent{
					OldState: "CONNECTED",
					NewState: "DISCONNECTING",
					Reason:   "transport read: EOF",
				},
			},
		},
		{
			name: "error event",
			event: Event{
				Timestamp:    time.Now().UTC(),
				ConnectionID: "conn-4",
				Direction:    DirectionIn,
				Layer:        LayerFrame,
				Category:     CategoryError,
				Error: &ErrorEventData{
					Layer:   LayerFrame,
					Message: "checksum mismatch: computed 0xF8, frame carries 0x07",
					Context: "read loop",
				},
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			data, err := EncodeEvent(tt.event)
			if err != nil {
				t.Fatalf("EncodeEvent failed: %v", err)
			}

			got, err := DecodeEvent(data)
			if err != nil {
				t.Fatalf("DecodeEvent failed: %v", err)
			}

			if got.ConnectionID != tt.event.ConnectionID {
				t.Errorf("ConnectionID = %q, want %q", got.ConnectionID, tt.event.ConnectionID)
			}
			if got.Direction != tt.event.Direction {
				t.Errorf("Direction = %v, want %v", got.Direction, tt.event.Direction)
			}
			if got.Layer != tt.event.Layer {
				t.Errorf("Layer = %v, want %v", got.Layer, tt.event.Layer)
			}
			if got.Category != tt.event.Category {
				t.Errorf("Category = %v, want %v", got.Category, tt.event.Category)
			}
			if (got.Packet == nil) != (tt.event.Packet == nil) {
				t.Errorf("Packet presence = %v, want %v", got.Packet != nil, tt.event.Packet != nil)
			}
			if tt.event.Packet != nil && *got.Packet != *tt.event.Packet {
				t.Errorf("Packet = %+v, want %+v", *got.Packet, *tt.event.Packet)
			}
		})
	}
}

func TestEnumStrings(t *testing.T) {
	if DirectionIn.String() != "IN" || DirectionOut.String() != "OUT" {
		t.Error("Direction.String() mismatch")
	}
	if LayerFrame.String() != "FRAME" || LayerPacket.String() != "PACKET" || LayerConnection.String() != "CONNECTION" {
		t.Error("Layer.String() mismatch")
	}
	if CategoryAsync.String() != "ASYNC" || CategoryError.String() != "ERROR" {
		t.Error("Category.String() mismatch")
	}
	if Direction(99).String() != "UNKNOWN" {
		t.Error("unknown Direction should stringify as UNKNOWN")
	}
}

func TestFilterMatches(t *testing.T) {
	in := DirectionIn
	catAsync := CategoryAsync

	event := Event{
		Timestamp:    time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC),
		ConnectionID: "conn-9",
		Direction:    DirectionIn,
		Layer:        LayerPacket,
		Category:     CategoryAsync,
		RobotName:    "Sphero-YYP",
	}

	tests := []struct {
		name   string
		filter Filter
		want   bool
	}{
		{"empty filter", Filter{}, true},
		{"matching connection", Filter{ConnectionID: "conn-9"}, true},
		{"wrong connection", Filter{ConnectionID: "conn-1"}, false},
		{"matching direction and category", Filter{Direction: &in, Category: &catAsync}, true},
		{"matching robot", Filter{RobotName: "Sphero-YYP"}, true},
		{"wrong robot", Filter{RobotName: "Sphero-ABC"}, false},
		{
			"time window hit",
			Filter{
				TimeStart: timePtr(time.Date(2025, 6, 1, 11, 0, 0, 0, time.UTC)),
				TimeEnd:   timePtr(time.Date(2025, 6, 1, 13, 0, 0, 0, time.UTC)),
			},
			true,
		},
		{
			"time window miss",
			Filter{TimeEnd: timePtr(time.Date(2025, 6, 1, 11, 0, 0, 0, time.UTC))},
			false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.filter.matches(event); got != tt.want {
				t.Errorf("matches = %v, want %v", got, tt.want)
			}
		})
	}
}

func timePtr(t time.Time) *time.Time {
	return &t
}
