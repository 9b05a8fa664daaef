package transport

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/gorilla/websocket"
)

// CallSession is the per-call state machine driven by stream events.
// The transport owns the socket; the session owns the conversation.
type CallSession interface {
	// HandleMedia feeds one base64 mulaw frame into the session.
	HandleMedia(payload string)

	// HandleMark is called when Twilio acknowledges a mark we sent.
	HandleMark(name string)

	// Close ends the session. Safe to call more than once.
	Close()
}

// SessionFactory creates a session when a stream's start event arrives.
type SessionFactory func(ctx context.Context, start *StartPayload, sender Sender) CallSession

var upgrader = websocket.Upgrader{
	ReadBufferSize:  4096,
	WriteBufferSize: 4096,
	// Twilio connects server-to-server with no Origin header.
	CheckOrigin: func(r *http.Request) bool { return true },
}

// MediaStreamHandler upgrades to WebSocket and pumps stream events into a
// session created by factory.
//
//	@Summary     Twilio media stream endpoint
//	@Description WebSocket endpoint that Twilio connects to after the /voice TwiML response.
//	@Description Receives base64 mulaw audio frames and streams synthesized replies back.
//	@Tags        call
//	@Router      /media-stream [get]
func MediaStreamHandler(factory SessionFactory) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			slog.Error("websocket upgrade failed", "error", err)
			return
		}
		defer conn.Close()

		slog.Info("media stream connected", "remote", r.RemoteAddr)

		sender := NewWSSender(conn)
		var session CallSession
		defer func() {
			if session != nil {
				session.Close()
			}
		}()

		for {
			msgType, data, err := conn.ReadMessage()
			if err != nil {
				if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
					slog.Warn("media stream read error", "error", err)
				}
				return
			}
			if msgType != websocket.TextMessage {
				continue
			}

			evt, err := DecodeEvent(data)
			if err != nil {
				slog.Debug("dropping malformed stream event", "error", err)
				continue
			}

			switch evt.Event {
			case EventConnected:
				// Handshake preamble, nothing to do.

			case EventStart:
				if evt.Start == nil {
					slog.Warn("start event missing payload")
					continue
				}
				slog.Info("call started",
					"call_sid", evt.Start.CallSid,
					"stream_sid", evt.Start.StreamSid)
				session = factory(r.Context(), evt.Start, sender)

			case EventMedia:
				if session != nil && evt.Media != nil {
					session.HandleMedia(evt.Media.Payload)
				}

			case EventMark:
				if session != nil && evt.Mark != nil {
					session.HandleMark(evt.Mark.Name)
				}

			case EventStop:
				slog.Info("call ended")
				if session != nil {
					session.Close()
					session = nil
				}
				return

			default:
				slog.Debug("unknown stream event", "event", evt.Event)
			}
		}
	}
}

// VoiceHandler answers Twilio's incoming-call webhook with TwiML that
// connects the call to our media stream endpoint.
//
//	@Summary     Twilio voice webhook
//	@Description Returns TwiML instructing Twilio to open a bidirectional media stream.
//	@Tags        call
//	@Produce     xml
//	@Router      /voice [get]
func VoiceHandler(publicHost string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		host := publicHost
		if host == "" {
			host = r.Host
		}
		twiml := fmt.Sprintf(`<?xml version="1.0" encoding="UTF-8"?>
<Response>
    <Connect>
        <Stream url="wss://%s/media-stream" />
    </Connect>
</Response>`, host)

		w.Header().Set("Content-Type", "text/xml")
		_, _ = w.Write([]byte(twiml))
	}
}
