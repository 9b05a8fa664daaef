// Package transport implements the Twilio Media Streams side of a call:
// the TwiML webhook that tells Twilio where to stream, the WebSocket
// endpoint that receives the stream, and the sender used to push
// synthesized audio back.
package transport

import "encoding/json"

// Media Streams event names, as sent by Twilio in the "event" field.
const (
	EventConnected = "connected"
	EventStart     = "start"
	EventMedia     = "media"
	EventStop      = "stop"
	EventMark      = "mark"
)

// Event is the envelope of a Media Streams WebSocket message. Only the
// section matching the event name is populated.
type Event struct {
	Event     string `json:"event"`
	StreamSid string `json:"streamSid,omitempty"`

	Start *StartPayload `json:"start,omitempty"`
	Media *MediaPayload `json:"media,omitempty"`
	Stop  *StopPayload  `json:"stop,omitempty"`
	Mark  *MarkPayload  `json:"mark,omitempty"`
}

// StartPayload carries the call identity and media format.
type StartPayload struct {
	StreamSid   string      `json:"streamSid"`
	AccountSid  string      `json:"accountSid"`
	CallSid     string      `json:"callSid"`
	Tracks      []string    `json:"tracks"`
	MediaFormat MediaFormat `json:"mediaFormat"`
}

// MediaFormat describes the stream encoding. Twilio voice streams are
// always audio/x-mulaw at 8000 Hz mono.
type MediaFormat struct {
	Encoding   string `json:"encoding"`
	SampleRate int    `json:"sampleRate"`
	Channels   int    `json:"channels"`
}

// MediaPayload carries one 20ms frame of base64-encoded mulaw audio.
type MediaPayload struct {
	Track     string `json:"track,omitempty"`
	Chunk     string `json:"chunk,omitempty"`
	Timestamp string `json:"timestamp,omitempty"`
	Payload   string `json:"payload"`
}

// StopPayload signals the end of the stream.
type StopPayload struct {
	AccountSid string `json:"accountSid"`
	CallSid    string `json:"callSid"`
}

// MarkPayload acknowledges a mark previously sent by us.
type MarkPayload struct {
	Name string `json:"name"`
}

// DecodeEvent parses one WebSocket text message. A decode error means the
// frame is malformed and should be dropped, not that the call is broken.
func DecodeEvent(data []byte) (*Event, error) {
	var evt Event
	if err := json.Unmarshal(data, &evt); err != nil {
		return nil, err
	}
	return &evt, nil
}
