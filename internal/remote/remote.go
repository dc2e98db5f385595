// Package remote exposes the engine over a websocket. Each connection gets
// its own event subscription: every engine event is streamed to the client as
// a JSON object, and the client drives the dialogue by sending JSON commands
// on the same connection.
package remote

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/coder/websocket"

	"github.com/hushlabs/hearth/internal/dialogue"
	"github.com/hushlabs/hearth/internal/event"
	"github.com/hushlabs/hearth/internal/vocab"
)

// Engine is the subset of the voice engine a remote client may drive.
type Engine interface {
	Events() *event.Subscription
	StartSession(req dialogue.StartRequest) error
	StartNotification(req dialogue.NotificationRequest) error
	ContinueSession(sessionID, text string, filter []string) error
	EndSession(sessionID string) error
	NotifySpeechEnded(messageID, sessionID string) error
	RequestInjection(ops []vocab.Operation) (string, error)
	RequestInjectionReset() (string, error)
}

// Command is the inbound client message envelope. Type selects which fields
// are meaningful.
type Command struct {
	Type string `json:"type"`

	SessionID  string `json:"sessionId,omitempty"`
	SiteID     string `json:"siteId,omitempty"`
	CustomData string `json:"customData,omitempty"`
	Text       string `json:"text,omitempty"`
	MessageID  string `json:"messageId,omitempty"`

	IntentFilter            []string `json:"intentFilter,omitempty"`
	CanBeEnqueued           bool     `json:"canBeEnqueued,omitempty"`
	SendIntentNotRecognized bool     `json:"sendIntentNotRecognized,omitempty"`

	Operations []InjectionOperation `json:"operations,omitempty"`
}

// InjectionOperation is the wire form of one vocabulary injection operation.
type InjectionOperation struct {
	Kind   string              `json:"kind"`
	Values map[string][]string `json:"values"`
}

const (
	cmdStartSession      = "startSession"
	cmdStartNotification = "startNotification"
	cmdContinueSession   = "continueSession"
	cmdEndSession        = "endSession"
	cmdSpeechEnded       = "speechEnded"
	cmdInject            = "inject"
	cmdInjectReset       = "injectReset"
)

// writeTimeout bounds one outbound event write per connection.
const writeTimeout = 10 * time.Second

// Server bridges websocket connections to the engine.
type Server struct {
	eng Engine
	log *slog.Logger
}

var _ http.Handler = (*Server)(nil)

// NewServer creates a websocket bridge over eng. A nil logger falls back to
// [slog.Default].
func NewServer(eng Engine, log *slog.Logger) *Server {
	if log == nil {
		log = slog.Default()
	}
	return &Server{eng: eng, log: log}
}

// ServeHTTP upgrades the request and serves the connection until either side
// closes it.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := websocket.Accept(w, r, nil)
	if err != nil {
		s.log.Warn("websocket accept failed", "err", err)
		return
	}
	defer conn.Close(websocket.StatusNormalClosure, "bye")

	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()

	sub := s.eng.Events()
	defer sub.Cancel()

	go func() {
		defer cancel()
		s.writeEvents(ctx, conn, sub)
	}()

	s.readCommands(ctx, conn)
}

// writeEvents streams the subscription to the connection until the
// subscription or the connection goes away.
func (s *Server) writeEvents(ctx context.Context, conn *websocket.Conn, sub *event.Subscription) {
	for {
		select {
		case <-ctx.Done():
			return
		case ev, ok := <-sub.C():
			if !ok {
				return
			}
			data, err := json.Marshal(ev)
			if err != nil {
				s.log.Error("marshal event", "type", ev.Type, "err", err)
				continue
			}
			wctx, cancel := context.WithTimeout(ctx, writeTimeout)
			err = conn.Write(wctx, websocket.MessageText, data)
			cancel()
			if err != nil {
				return
			}
		}
	}
}

// readCommands consumes client commands until the connection closes. Command
// failures are reported back as error events on the same connection rather
// than tearing the connection down.
func (s *Server) readCommands(ctx context.Context, conn *websocket.Conn) {
	for {
		_, data, err := conn.Read(ctx)
		if err != nil {
			return
		}

		var cmd Command
		if err := json.Unmarshal(data, &cmd); err != nil {
			s.reportError(ctx, conn, fmt.Errorf("malformed command: %w", err))
			continue
		}
		if err := s.dispatch(cmd); err != nil {
			s.reportError(ctx, conn, fmt.Errorf("%s: %w", cmd.Type, err))
		}
	}
}

func (s *Server) dispatch(cmd Command) error {
	switch cmd.Type {
	case cmdStartSession:
		return s.eng.StartSession(dialogue.StartRequest{
			SiteID:                  cmd.SiteID,
			CustomData:              cmd.CustomData,
			Text:                    cmd.Text,
			Filter:                  cmd.IntentFilter,
			CanBeEnqueued:           cmd.CanBeEnqueued,
			SendIntentNotRecognized: cmd.SendIntentNotRecognized,
		})
	case cmdStartNotification:
		return s.eng.StartNotification(dialogue.NotificationRequest{
			SiteID:     cmd.SiteID,
			CustomData: cmd.CustomData,
			Text:       cmd.Text,
		})
	case cmdContinueSession:
		return s.eng.ContinueSession(cmd.SessionID, cmd.Text, cmd.IntentFilter)
	case cmdEndSession:
		return s.eng.EndSession(cmd.SessionID)
	case cmdSpeechEnded:
		return s.eng.NotifySpeechEnded(cmd.MessageID, cmd.SessionID)
	case cmdInject:
		ops := make([]vocab.Operation, 0, len(cmd.Operations))
		for _, op := range cmd.Operations {
			ops = append(ops, vocab.Operation{
				Kind:   vocab.OperationKind(op.Kind),
				Values: op.Values,
			})
		}
		_, err := s.eng.RequestInjection(ops)
		return err
	case cmdInjectReset:
		_, err := s.eng.RequestInjectionReset()
		return err
	default:
		return fmt.Errorf("unknown command type %q", cmd.Type)
	}
}

// reportError sends a connection-local error event. It never blocks the read
// loop for longer than one write timeout.
func (s *Server) reportError(ctx context.Context, conn *websocket.Conn, cause error) {
	ev := event.Event{
		Type:  event.TypeError,
		Time:  time.Now(),
		Error: &event.Error{Message: cause.Error()},
	}
	data, err := json.Marshal(ev)
	if err != nil {
		return
	}
	wctx, cancel := context.WithTimeout(ctx, writeTimeout)
	defer cancel()
	_ = conn.Write(wctx, websocket.MessageText, data)
}
