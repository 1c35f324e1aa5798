package rooms

import (
	"errors"

	"github.com/fr3shw3b/tapsync/pkg/protocol"
)

var (
	ErrUnknownRoom   = errors.New("unknown room")
	ErrUnknownViewer = errors.New("unknown viewer")
	ErrRoomNotEnded  = errors.New("room has not ended")
	ErrInvalidEvent  = errors.New("invalid push event")
)

type RoomStore interface {
	// Adds a batch of presses for a viewer and returns the room's progress,
	// or the viewer's summary once the room has ended. An empty batch only
	// refreshes the viewer's presence.
	Push(roomID string, viewerID string, viewerName string, events []protocol.PushEvent) (*protocol.SubmitResponse, error)
	// Produces the current stats of every category in a room.
	Stats(roomID string) protocol.StatsSnapshot
	// Issues a new viewer id.
	NewViewer() protocol.ViewerIdentity
	// Looks up a previously issued viewer.
	Viewer(viewerID string) (protocol.ViewerIdentity, error)
	// Stores a display name and returns it normalised.
	SetViewerName(viewerID string, name string) (string, error)
	// Ends a room, after which every push gets the terminal payload.
	End(roomID string) (protocol.RoomResult, error)
	// Produces the final standings of an ended room.
	Result(roomID string, viewerID string) (protocol.RoomResult, error)
}
