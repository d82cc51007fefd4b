package realtime

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"

	"queuedesk/internal/auth"
	apperrors "queuedesk/internal/errors"

	"github.com/google/uuid"
	"github.com/igm/sockjs-go/sockjs"
)

// inbound is the only message viewers send.
type inbound struct {
	Action string `json:"action"`
	Token  string `json:"token"`
}

// NewHandler serves the sockjs endpoint under prefix. Connecting needs no
// credentials; a viewer may authenticate afterwards.
func NewHandler(prefix string, hub *Hub, b *Broadcaster, validator auth.Validator, buffer int, logger *slog.Logger) http.Handler {
	if logger == nil {
		logger = slog.Default()
	}
	if buffer <= 0 {
		buffer = 16
	}

	return sockjs.NewHandler(prefix, sockjs.DefaultOptions, func(session sockjs.Session) {
		client := NewClient(uuid.NewString(), buffer)
		hub.Register(client)
		defer hub.Unregister(client)

		logger.Debug("Viewer connected", "client_id", client.ID, "session_id", session.ID())

		go func() {
			for msg := range client.Send {
				if err := session.Send(string(msg)); err != nil {
					return
				}
			}
		}()

		// The opening request ends long before the session does.
		ctx := context.Background()
		if req := session.Request(); req != nil {
			ctx = context.WithoutCancel(req.Context())
		}
		b.SendInitial(ctx, client)

		for {
			raw, err := session.Recv()
			if err != nil {
				break
			}
			handleInbound(ctx, hub, client, validator, raw, logger)
		}

		logger.Debug("Viewer disconnected", "client_id", client.ID)
	})
}

func handleInbound(ctx context.Context, hub *Hub, client *Client, validator auth.Validator, raw string, logger *slog.Logger) {
	var msg inbound
	if err := json.Unmarshal([]byte(raw), &msg); err != nil || msg.Action != "authenticate" {
		return
	}

	identity, err := validator.Validate(ctx, msg.Token)
	if err != nil {
		reply, _ := encode(TypeError, map[string]string{"message": apperrors.Message(err, "Token is not valid")})
		hub.SendTo(client, reply)
		return
	}

	client.SetIdentity(identity)
	logger.Info("Viewer authenticated", "client_id", client.ID, "user_id", identity.UserID, "role", identity.Role)

	reply, _ := encode(TypeAuthenticated, identity)
	hub.SendTo(client, reply)
}
