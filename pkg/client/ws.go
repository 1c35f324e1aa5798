package client

import (
	"context"
	"fmt"
	"net/url"
	"strings"

	"github.com/fr3shw3b/tapsync/pkg/protocol"
	"github.com/gorilla/websocket"
)

func (c *clientImpl) WatchStats(ctx context.Context, roomID string) (<-chan protocol.StatsSnapshot, error) {
	target, err := c.buildStreamURL(roomID)
	if err != nil {
		return nil, err
	}

	conn, _, err := c.dialer.DialContext(ctx, target, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: %s", ErrTransport, err)
	}

	snapshots := make(chan protocol.StatsSnapshot, 1)
	go c.readSnapshots(ctx, conn, snapshots)
	return snapshots, nil
}

func (c *clientImpl) readSnapshots(ctx context.Context, conn *websocket.Conn, snapshots chan<- protocol.StatsSnapshot) {
	defer close(snapshots)

	// Closing the connection unblocks ReadMessage once the caller gives up.
	stop := make(chan struct{})
	defer close(stop)
	go func() {
		select {
		case <-ctx.Done():
		case <-stop:
		}
		conn.Close()
	}()

	for {
		_, message, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsCloseError(err, websocket.CloseNormalClosure) {
				c.logger.Debug("stats stream closed by server")
			} else if ctx.Err() == nil {
				c.logger.Warn("stats stream read error: ", err)
			}
			return
		}

		snapshot, err := protocol.ParseStatsSnapshot(message)
		if err != nil {
			c.logger.Warn("discarding stats frame: ", err)
			continue
		}

		select {
		case snapshots <- *snapshot:
		case <-ctx.Done():
			return
		}
	}
}

func (c *clientImpl) buildStreamURL(roomID string) (string, error) {
	base, err := url.Parse(strings.TrimRight(c.params.BaseURL, "/"))
	if err != nil {
		return "", err
	}
	switch base.Scheme {
	case "https":
		base.Scheme = "wss"
	default:
		base.Scheme = "ws"
	}
	return base.String() + roomPath(roomID, "stats/ws"), nil
}
