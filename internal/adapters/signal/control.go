package signal

import (
	"context"
	"encoding/json"

	"github.com/dkeye/AvatarCoach/internal/core"
	"github.com/rs/zerolog/log"
)

func (ctl *SignalWSController) handlePing(conn *WsSignalConn) {
	ctl.sendJSON(conn, struct {
		Type string `json:"type"`
	}{Type: "pong"})
}

// handleStart runs the start flow off the read loop so a stop can still arrive.
func (ctl *SignalWSController) handleStart(ctx context.Context, sid core.SessionID, conn *WsSignalConn) {
	ctrl := ctl.Orch.Controller(sid)
	go func() {
		if err := ctrl.StartSession(ctx); err != nil {
			ctl.sendError(conn, "start", err)
		}
	}()
}

func (ctl *SignalWSController) handleStop(ctx context.Context, sid core.SessionID, conn *WsSignalConn) {
	if err := ctl.Orch.Controller(sid).StopSession(context.WithoutCancel(ctx)); err != nil {
		ctl.sendError(conn, "stop", err)
	}
}

func (ctl *SignalWSController) handleLanguage(sid core.SessionID, conn *WsSignalConn, data []byte) {
	var p struct {
		Language string `json:"language"`
	}
	if err := json.Unmarshal(data, &p); err != nil {
		log.Warn().Err(err).Str("module", "signal").Msg("bad language payload")
		return
	}
	if err := ctl.Orch.Controller(sid).SetLanguage(p.Language); err != nil {
		ctl.sendError(conn, "language", err)
	}
}

func (ctl *SignalWSController) handleMute(ctx context.Context, sid core.SessionID, conn *WsSignalConn, muted bool) {
	if err := ctl.Orch.Controller(sid).SetMuted(ctx, muted); err != nil {
		ctl.sendError(conn, "mute", err)
	}
}

func (ctl *SignalWSController) handleAudio(sid core.SessionID, data []byte) {
	ctrl, ok := ctl.Orch.Registry.Controller(sid)
	if !ok {
		return
	}
	if err := ctrl.ForwardAudio(core.Frame(data)); err != nil {
		log.Debug().Err(err).Str("module", "signal").Str("sid", string(sid)).Msg("mic frame dropped")
	}
}
