// Package mqtt publishes mission telemetry to an MQTT broker and accepts
// operator commands from it.
package mqtt

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/skyfleet/missionctl/internal/geo"
	"github.com/skyfleet/missionctl/pkg/core"
	"github.com/vmihailenco/msgpack/v5"
)

// Payload encodings.
const (
	EncodingJSON    = "json"
	EncodingMsgpack = "msgpack"
)

var ErrUnknownEncoding = errors.New("unknown payload encoding")

// Telemetry is the state message published for every mission snapshot.
type Telemetry struct {
	MessageID string          `json:"message_id" msgpack:"message_id"`
	MissionID string          `json:"mission_id" msgpack:"mission_id"`
	RunID     uint64          `json:"run_id" msgpack:"run_id"`
	Timestamp int64           `json:"timestamp" msgpack:"timestamp"` // unix microseconds
	Status    string          `json:"status" msgpack:"status"`
	Progress  float64         `json:"progress" msgpack:"progress"`
	Paused    bool            `json:"paused" msgpack:"paused"`
	Returning bool            `json:"returning" msgpack:"returning"`
	Phase     core.PhaseKind  `json:"phase" msgpack:"phase"`
	Pattern   string          `json:"pattern" msgpack:"pattern"`
	ProfileID string          `json:"profile_id" msgpack:"profile_id"`
	Location  geo.GeoPosition `json:"location" msgpack:"location"`
	Canvas    core.Position   `json:"canvas" msgpack:"canvas"`
}

// NewTelemetry builds the state message of snap. altitude is the flight
// altitude of the mission's capture profile.
func NewTelemetry(snap core.Snapshot, g *geo.Georeferencer, altitude float64) Telemetry {
	return Telemetry{
		MessageID: uuid.New().String(),
		MissionID: snap.MissionID,
		RunID:     snap.RunID,
		Timestamp: snap.Time.UnixMicro(),
		Status:    snap.State.Status.String(),
		Progress:  snap.State.Progress,
		Paused:    snap.State.Paused,
		Returning: snap.State.Returning,
		Phase:     snap.Phase.Kind,
		Pattern:   string(snap.Pattern),
		ProfileID: snap.ProfileID,
		Location:  g.Locate(snap.Position, altitude),
		Canvas:    snap.Position,
	}
}

// Encoder serializes a message payload.
type Encoder func(v any) ([]byte, error)

// EncoderFor returns the encoder for an encoding name. Empty means JSON.
func EncoderFor(name string) (Encoder, error) {
	switch strings.ToLower(name) {
	case "", EncodingJSON:
		return json.Marshal, nil
	case EncodingMsgpack:
		return msgpack.Marshal, nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownEncoding, name)
	}
}

// StateTopic is the topic a mission's telemetry is published on.
func StateTopic(prefix, missionID string) string {
	return prefix + "/" + missionID + "/state"
}

// CommandFilter is the subscription filter for commands to any mission.
func CommandFilter(prefix string) string {
	return prefix + "/+/command"
}

// MissionFromCommandTopic extracts the mission id of a command topic.
func MissionFromCommandTopic(prefix, topic string) (string, bool) {
	rest, ok := strings.CutPrefix(topic, prefix+"/")
	if !ok {
		return "", false
	}
	id, ok := strings.CutSuffix(rest, "/command")
	if !ok || id == "" || strings.Contains(id, "/") {
		return "", false
	}
	return id, true
}
