package transport

import (
	"encoding/base64"
	"encoding/json"
	"sync"

	"github.com/gorilla/websocket"
)

// Sender pushes outbound events onto a media stream. Implementations must
// be safe for concurrent use: the turn processor and the close path can
// both write.
type Sender interface {
	// SendMedia sends one frame of mulaw audio back to the caller.
	SendMedia(streamSid string, mulaw []byte) error

	// SendMark sends a named mark event. Twilio echoes it back once all
	// audio queued before it has been played.
	SendMark(streamSid, name string) error
}

// WSSender implements Sender over a gorilla websocket connection.
// gorilla permits one concurrent writer, so all writes go through a mutex.
type WSSender struct {
	mu   sync.Mutex
	conn *websocket.Conn
}

// NewWSSender wraps an upgraded connection.
func NewWSSender(conn *websocket.Conn) *WSSender {
	return &WSSender{conn: conn}
}

type outboundMedia struct {
	Event     string       `json:"event"`
	StreamSid string       `json:"streamSid"`
	Media     mediaPayload `json:"media"`
}

type mediaPayload struct {
	Payload string `json:"payload"`
}

type outboundMark struct {
	Event     string      `json:"event"`
	StreamSid string      `json:"streamSid"`
	Mark      markPayload `json:"mark"`
}

type markPayload struct {
	Name string `json:"name"`
}

// SendMedia base64-encodes the frame and writes a media event.
func (s *WSSender) SendMedia(streamSid string, mulaw []byte) error {
	return s.writeJSON(outboundMedia{
		Event:     EventMedia,
		StreamSid: streamSid,
		Media:     mediaPayload{Payload: base64.StdEncoding.EncodeToString(mulaw)},
	})
}

// SendMark writes a mark event.
func (s *WSSender) SendMark(streamSid, name string) error {
	return s.writeJSON(outboundMark{
		Event:     EventMark,
		StreamSid: streamSid,
		Mark:      markPayload{Name: name},
	})
}

func (s *WSSender) writeJSON(v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.conn.WriteMessage(websocket.TextMessage, data)
}
