package httpserver

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"

	httpadapter "rentbridge/contexts/legacy-integration/sync-queue-service/adapters/http"
	"rentbridge/contexts/legacy-integration/sync-queue-service/ports"
	synchttp "rentbridge/contexts/legacy-integration/sync-queue-service/transport/http"
)

const streamWriteTimeout = 5 * time.Second

type statusStreamMessage struct {
	Type      string                       `json:"type"`
	Status    synchttp.QueueStatusResponse `json:"status"`
	Timestamp string                       `json:"timestamp"`
}

type alertStreamMessage struct {
	Type      string            `json:"type"`
	Alert     synchttp.AlertDTO `json:"alert"`
	Timestamp string            `json:"timestamp"`
}

// handleStatusStream pushes a queue status snapshot on connect and then on
// every stream interval until the client goes away. Operator alerts are
// pushed between snapshots as they arrive.
func (s *Server) handleStatusStream(w http.ResponseWriter, r *http.Request) {
	conn, err := websocket.Accept(w, r, nil)
	if err != nil {
		s.logger.Warn("status stream upgrade failed",
			"event", "http_status_stream_upgrade_failed",
			"module", "internal/platform/httpserver",
			"layer", "platform",
			"error", err.Error(),
		)
		return
	}
	defer conn.CloseNow()

	// Client frames are ignored; CloseRead cancels ctx once the peer closes.
	ctx := conn.CloseRead(r.Context())
	s.logger.Info("status stream client connected",
		"event", "http_status_stream_connected",
		"module", "internal/platform/httpserver",
		"layer", "platform",
		"remote_addr", r.RemoteAddr,
	)

	var alerts <-chan ports.DeadLetterAlert
	if s.options.Alerts != nil {
		var unsubscribe func()
		alerts, unsubscribe = s.options.Alerts.subscribe()
		defer unsubscribe()
	}

	ticker := time.NewTicker(s.options.StreamInterval)
	defer ticker.Stop()
	push := s.pushStatus
	for {
		if err := push(ctx, conn); err != nil {
			if !errors.Is(err, context.Canceled) && websocket.CloseStatus(err) == -1 {
				s.logger.Warn("status stream write failed",
					"event", "http_status_stream_write_failed",
					"module", "internal/platform/httpserver",
					"layer", "platform",
					"error", err.Error(),
				)
			}
			return
		}
		select {
		case <-ctx.Done():
			_ = conn.Close(websocket.StatusNormalClosure, "")
			return
		case <-ticker.C:
			push = s.pushStatus
		case alert := <-alerts:
			push = func(ctx context.Context, conn *websocket.Conn) error {
				return pushAlert(ctx, conn, alert)
			}
		}
	}
}

func pushAlert(ctx context.Context, conn *websocket.Conn, alert ports.DeadLetterAlert) error {
	kind := "dead_letter"
	if alert.Reason == ports.AlertReasonAgedForReview {
		kind = "flagged_for_review"
	}
	writeCtx, cancel := context.WithTimeout(ctx, streamWriteTimeout)
	defer cancel()
	return wsjson.Write(writeCtx, conn, alertStreamMessage{
		Type:      kind,
		Alert:     httpadapter.MapAlert(alert),
		Timestamp: time.Now().UTC().Format(time.RFC3339),
	})
}

func (s *Server) pushStatus(ctx context.Context, conn *websocket.Conn) error {
	status, err := s.syncQueue.Handler.QueueStatusHandler(ctx)
	if err != nil {
		_ = conn.Close(websocket.StatusInternalError, "status unavailable")
		return err
	}
	writeCtx, cancel := context.WithTimeout(ctx, streamWriteTimeout)
	defer cancel()
	return wsjson.Write(writeCtx, conn, statusStreamMessage{
		Type:      "queue_status",
		Status:    status,
		Timestamp: time.Now().UTC().Format(time.RFC3339),
	})
}
