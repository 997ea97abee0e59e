package guard

import (
	"context"
	"log/slog"
	"time"
)

// Run calls Heartbeat every HeartbeatInterval until ctx is done. The
// heartbeat itself counts as activity, so a device left running keeps its
// session alive until MaxSessionDuration; the inactivity timeout only bites
// when nothing is running. Run returns when the session ends or ctx is done.
func (g *Guard) Run(ctx context.Context) {
	ticker := time.NewTicker(g.cfg.HeartbeatInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			state, err := g.Heartbeat()
			if err != nil {
				g.logger.Error("heartbeat failed", slog.Any("error", err))
				continue
			}
			if state != LoggedIn {
				g.logger.Info("heartbeat stopped", slog.String("state", state.String()))
				return
			}
		}
	}
}
