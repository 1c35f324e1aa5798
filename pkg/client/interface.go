package client

import (
	"context"

	"github.com/fr3shw3b/tapsync/pkg/protocol"
)

type Client interface {
	// Submits a batch of presses for a room. An empty batch is a heartbeat.
	Submit(ctx context.Context, roomID string, seq uint64, request protocol.SubmitRequest) (*protocol.SubmitResponse, error)
	// Fetches the current stats of every category in a room, bypassing caches.
	FetchStats(ctx context.Context, roomID string) (*protocol.StatsSnapshot, error)
	// Streams stat snapshots for a room until the context is done or the room ends.
	WatchStats(ctx context.Context, roomID string) (<-chan protocol.StatsSnapshot, error)
	// Obtains a stable viewer id, retrying transient failures.
	AcquireViewer(ctx context.Context) (protocol.ViewerIdentity, error)
	// Stores a display name for a viewer and returns the normalised name.
	SetViewerName(ctx context.Context, viewerID string, name string) (string, error)
	// Fetches final standings, optionally with a summary for one viewer.
	FetchRoomResult(ctx context.Context, roomID string, viewerID string) (*protocol.RoomResult, error)
}
