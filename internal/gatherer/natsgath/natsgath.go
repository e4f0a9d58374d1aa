package natsgath

import (
	"encoding/json"
	"log/slog"

	"github.com/nats-io/nats.go"
	"github.com/programme-lv/runner/internal/gatherer"
)

type publisher struct {
	nc     *nats.Conn
	inbox  string
	logger *slog.Logger
}

// New creates a gatherer that streams events to the given inbox subject.
func New(nc *nats.Conn, evalUuid string, inbox string, logger *slog.Logger) *gatherer.Streamer {
	if logger == nil {
		logger = slog.Default()
	}
	return gatherer.NewStreamer(evalUuid, &publisher{
		nc:     nc,
		inbox:  inbox,
		logger: logger.With("component", "natsgath", "eval_uuid", evalUuid),
	})
}

func (p *publisher) Publish(msg any) {
	b, err := json.Marshal(msg)
	if err != nil {
		p.logger.Error("failed to marshal message", "error", err)
		return
	}

	if err := p.nc.Publish(p.inbox, b); err != nil {
		p.logger.Warn("failed to publish message to NATS", "error", err)
	}
}
