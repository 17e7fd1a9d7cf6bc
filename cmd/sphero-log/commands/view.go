// Package commands implements the sphero-log CLI commands.
package commands

import (
	"encoding/hex"
	"fmt"
	"io"
	"strings"

	"github.com/sphero-protocol/sphero-go/pkg/commands"
	"github.com/sphero-protocol/sphero-go/pkg/log"
	"github.com/sphero-protocol/sphero-go/pkg/wire"
)

// ViewFilter specifies criteria for filtering events in the view command.
type ViewFilter struct {
	Layer     *log.Layer
	Direction *log.Direction
	Category  *log.Category
}

// formatEvent writes a human-readable representation of the event to w.
func formatEvent(w io.Writer, event log.Event) {
	// Header line: timestamp [conn:id] DIRECTION LAYER Type
	ts := event.Timestamp.UTC().Format("2006-01-02T15:04:05.000000Z")
	connID := shortenConnID(event.ConnectionID)
	dir := event.Direction.String()

	// Determine event type label
	var typeLabel string
	switch {
	case event.Frame != nil:
		typeLabel = "Frame"
	case event.Packet != nil:
		typeLabel = packetTypeLabel(event.Category)
	case event.StateChange != nil:
		typeLabel = "State"
	case event.Error != nil:
		typeLabel = "Error"
	default:
		typeLabel = "Unknown"
	}

	fmt.Fprintf(w, "%s [conn:%s] %-3s %s %s\n", ts, connID, dir, event.Layer.String(), typeLabel)

	// Type-specific details
	switch {
	case event.Frame != nil:
		formatFrameDetails(w, event.Frame)
	case event.Packet != nil:
		formatPacketDetails(w, event.Category, event.Packet)
	case event.StateChange != nil:
		formatStateChangeDetails(w, event.StateChange)
	case event.Error != nil:
		formatErrorDetails(w, event.Error)
	}

	fmt.Fprintln(w) // Blank line between events
}

// packetTypeLabel names a packet event for the header line.
func packetTypeLabel(category log.Category) string {
	switch category {
	case log.CategoryCommand:
		return "Command"
	case log.CategoryResponse:
		return "Response"
	case log.CategoryAsync:
		return "Async"
	default:
		return "Packet"
	}
}

// shortenConnID returns the first 8 characters of the connection ID.
func shortenConnID(id string) string {
	if len(id) >= 8 {
		return id[:8]
	}
	return id
}

// formatFrameDetails writes frame-specific details.
func formatFrameDetails(w io.Writer, frame *log.FrameEvent) {
	fmt.Fprintf(w, "  Size: %d bytes\n", frame.Size)
	if len(frame.Data) > 0 {
		fmt.Fprintf(w, "  Data: %s", hex.EncodeToString(frame.Data))
		if frame.Truncated {
			fmt.Fprintf(w, " (truncated)")
		}
		fmt.Fprintln(w)
	}
}

// formatPacketDetails writes packet-specific details. HDR2 carries the
// command ID on sends and the status or async event code on receives,
// so the category decides how the fields are labeled.
func formatPacketDetails(w io.Writer, category log.Category, pkt *log.PacketEvent) {
	switch category {
	case log.CategoryCommand:
		fmt.Fprintf(w, "  Device: %s (0x%02X)\n", wire.DeviceID(pkt.Device).String(), pkt.Device)
		if name := commandName(wire.DeviceID(pkt.Device), pkt.Code); name != "" {
			fmt.Fprintf(w, "  Command: 0x%02X (%s)\n", pkt.Code, name)
		} else {
			fmt.Fprintf(w, "  Command: 0x%02X\n", pkt.Code)
		}
		fmt.Fprintf(w, "  Sequence: %d\n", pkt.Sequence)

	case log.CategoryResponse:
		fmt.Fprintf(w, "  Status: %s (0x%02X)\n", wire.Status(pkt.Code).String(), pkt.Code)
		fmt.Fprintf(w, "  Sequence: %d\n", pkt.Sequence)

	case log.CategoryAsync:
		fmt.Fprintf(w, "  Event: %s (0x%02X)\n", wire.AsyncID(pkt.Code).String(), pkt.Code)
	}

	if pkt.PayloadSize > 0 {
		fmt.Fprintf(w, "  Payload: %d bytes\n", pkt.PayloadSize)
	}
	if pkt.NoAnswer {
		fmt.Fprintln(w, "  NoAnswer: true")
	}
}

// formatStateChangeDetails writes state change details.
func formatStateChangeDetails(w io.Writer, sc *log.StateChangeEvent) {
	if sc.OldState != "" {
		fmt.Fprintf(w, "  %s -> %s\n", sc.OldState, sc.NewState)
	} else {
		fmt.Fprintf(w, "  -> %s\n", sc.NewState)
	}
	if sc.Reason != "" {
		fmt.Fprintf(w, "  Reason: %s\n", sc.Reason)
	}
}

// formatErrorDetails writes error details.
func formatErrorDetails(w io.Writer, err *log.ErrorEventData) {
	fmt.Fprintf(w, "  Layer: %s\n", err.Layer.String())
	fmt.Fprintf(w, "  Message: %s\n", err.Message)
	if err.Context != "" {
		fmt.Fprintf(w, "  Context: %s\n", err.Context)
	}
}

// filterEvents returns events matching the filter criteria.
func filterEvents(events []log.Event, filter ViewFilter) []log.Event {
	var result []log.Event
	for _, e := range events {
		if filter.Layer != nil && e.Layer != *filter.Layer {
			continue
		}
		if filter.Direction != nil && e.Direction != *filter.Direction {
			continue
		}
		if filter.Category != nil && e.Category != *filter.Category {
			continue
		}
		result = append(result, e)
	}
	return result
}

// ParseLayerFlag parses a layer string from command-line flag (case-insensitive).
func ParseLayerFlag(s string) (log.Layer, error) {
	return parseLayer(s)
}

// parseLayer parses a layer string (case-insensitive).
func parseLayer(s string) (log.Layer, error) {
	switch strings.ToLower(s) {
	case "frame":
		return log.LayerFrame, nil
	case "packet":
		return log.LayerPacket, nil
	case "connection":
		return log.LayerConnection, nil
	default:
		return 0, fmt.Errorf("invalid layer: %s (must be frame, packet, or connection)", s)
	}
}

// ParseDirectionFlag parses a direction string from command-line flag (case-insensitive).
func ParseDirectionFlag(s string) (log.Direction, error) {
	return parseDirection(s)
}

// parseDirection parses a direction string (case-insensitive).
func parseDirection(s string) (log.Direction, error) {
	switch strings.ToLower(s) {
	case "in":
		return log.DirectionIn, nil
	case "out":
		return log.DirectionOut, nil
	default:
		return 0, fmt.Errorf("invalid direction: %s (must be in or out)", s)
	}
}

// ParseCategoryFlag parses a category string from command-line flag (case-insensitive).
func ParseCategoryFlag(s string) (log.Category, error) {
	return parseCategory(s)
}

// parseCategory parses a category string (case-insensitive).
func parseCategory(s string) (log.Category, error) {
	switch strings.ToLower(s) {
	case "command":
		return log.CategoryCommand, nil
	case "response":
		return log.CategoryResponse, nil
	case "async":
		return log.CategoryAsync, nil
	case "state":
		return log.CategoryState, nil
	case "error":
		return log.CategoryError, nil
	default:
		return 0, fmt.Errorf("invalid category: %s (must be command, response, async, state, or error)", s)
	}
}

var coreCommandNames = map[byte]string{
	commands.CoreCmdPing:                 "ping",
	commands.CoreCmdGetVersioning:        "get versioning",
	commands.CoreCmdSetDeviceName:        "set device name",
	commands.CoreCmdGetBluetoothInfo:     "get bluetooth info",
	commands.CoreCmdGetPowerState:        "get power state",
	commands.CoreCmdSetPowerNotification: "set power notification",
	commands.CoreCmdSleep:                "sleep",
	commands.CoreCmdGetVoltageTrip:       "get voltage trip",
	commands.CoreCmdSetVoltageTrip:       "set voltage trip",
	commands.CoreCmdSetInactivityTimeout: "set inactivity timeout",
	commands.CoreCmdRunL1Diagnostics:     "run l1 diagnostics",
	commands.CoreCmdRunL2Diagnostics:     "run l2 diagnostics",
	commands.CoreCmdPollPacketTimes:      "poll packet times",
}

var spheroCommandNames = map[byte]string{
	commands.SpheroCmdSetHeading:          "set heading",
	commands.SpheroCmdSetStabilization:    "set stabilization",
	commands.SpheroCmdSetRotationRate:     "set rotation rate",
	commands.SpheroCmdGetChassisID:        "get chassis id",
	commands.SpheroCmdSetDataStreaming:    "set data streaming",
	commands.SpheroCmdSetRGBLED:           "set rgb led",
	commands.SpheroCmdSetBackLED:          "set back led",
	commands.SpheroCmdGetRGBLED:           "get rgb led",
	commands.SpheroCmdRoll:                "roll",
	commands.SpheroCmdBoost:               "boost",
	commands.SpheroCmdSetRawMotors:        "set raw motors",
	commands.SpheroCmdSetMotionTimeout:    "set motion timeout",
	commands.SpheroCmdSetPermanentOptions: "set permanent options",
	commands.SpheroCmdGetPermanentOptions: "get permanent options",
	commands.SpheroCmdSetTemporaryOptions: "set temporary options",
	commands.SpheroCmdGetTemporaryOptions: "get temporary options",
}

// commandName names a command for humans, or "" when unknown.
func commandName(device wire.DeviceID, code byte) string {
	switch device {
	case wire.DeviceCore:
		return coreCommandNames[code]
	case wire.DeviceSphero:
		return spheroCommandNames[code]
	default:
		return ""
	}
}

// RunView executes the view command.
func RunView(path string, filter ViewFilter, output io.Writer) error {
	reader, err := log.NewReader(path)
	if err != nil {
		return fmt.Errorf("failed to open log file: %w", err)
	}
	defer reader.Close()

	for {
		event, err := reader.Next()
		if err == io.EOF {
			break
		}
		if err != nil {
			return fmt.Errorf("failed to read event: %w", err)
		}

		// Apply filter
		if filter.Layer != nil && event.Layer != *filter.Layer {
			continue
		}
		if filter.Direction != nil && event.Direction != *filter.Direction {
			continue
		}
		if filter.Category != nil && event.Category != *filter.Category {
			continue
		}

		formatEvent(output, event)
	}

	return nil
}
