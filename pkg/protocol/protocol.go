package protocol

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/fr3shw3b/tapsync/pkg/buttons"
)

// ErrInvalidPayload marks a response body that does not satisfy the counting service contract.
var ErrInvalidPayload = errors.New("invalid payload")

// Request headers.
const (
	HeaderRequestID = "X-Request-Id"
	HeaderSequence  = "X-Request-Seq"
)

// Websocket close reason sent once a room has ended.
const CloseReasonGameOver = "game over"

type PushEvent struct {
	ButtonName buttons.Category `json:"button_name"`
	PushCount  int              `json:"push_count"`
}

type SubmitRequest struct {
	ViewerID   string      `json:"viewer_id"`
	ViewerName string      `json:"viewer_name,omitempty"`
	PushEvents []PushEvent `json:"push_events"`
}

type EventResult struct {
	EventType       buttons.Category `json:"event_type"`
	CurrentCount    int              `json:"current_count"`
	RequiredCount   int              `json:"required_count"`
	EffectTriggered bool             `json:"effect_triggered"`
	ViewerCount     int              `json:"viewer_count"`
	NextThreshold   int              `json:"next_threshold,omitempty"`
}

type RoomStat struct {
	ButtonName    buttons.Category `json:"button_name"`
	CurrentCount  int              `json:"current_count"`
	RequiredCount int              `json:"required_count"`
	Progress      float64          `json:"progress"`
}

// NewRoomStat derives progress from the two counts.
func NewRoomStat(c buttons.Category, current, required int) RoomStat {
	stat := RoomStat{ButtonName: c, CurrentCount: current, RequiredCount: required}
	if required > 0 {
		stat.Progress = float64(current) / float64(required)
	}
	return stat
}

type ViewerSummary struct {
	ViewerID   string                   `json:"viewer_id"`
	ViewerName string                   `json:"viewer_name,omitempty"`
	Counts     map[buttons.Category]int `json:"counts"`
	Total      int                      `json:"total"`
}

type Progress struct {
	EventResults []EventResult `json:"event_results"`
	Stats        []RoomStat    `json:"stats,omitempty"`
}

type GameOver struct {
	ViewerSummary *ViewerSummary `json:"viewer_summary,omitempty"`
}

// SubmitResponse holds exactly one of Progress or GameOver.
type SubmitResponse struct {
	Progress *Progress
	GameOver *GameOver
}

func (r *SubmitResponse) Terminal() bool {
	return r != nil && r.GameOver != nil
}

// MarshalJSON flattens the response into the wire envelope.
func (r SubmitResponse) MarshalJSON() ([]byte, error) {
	if r.GameOver != nil {
		return json.Marshal(struct {
			GameOver      bool           `json:"game_over"`
			ViewerSummary *ViewerSummary `json:"viewer_summary,omitempty"`
		}{true, r.GameOver.ViewerSummary})
	}
	progress := Progress{}
	if r.Progress != nil {
		progress = *r.Progress
	}
	if progress.EventResults == nil {
		progress.EventResults = []EventResult{}
	}
	return json.Marshal(struct {
		GameOver     bool          `json:"game_over"`
		EventResults []EventResult `json:"event_results"`
		Stats        []RoomStat    `json:"stats,omitempty"`
	}{false, progress.EventResults, progress.Stats})
}

type submitEnvelope struct {
	GameOver      *bool           `json:"game_over"`
	EventResults  []EventResult   `json:"event_results"`
	Stats         []RoomStat      `json:"stats"`
	ViewerSummary json.RawMessage `json:"viewer_summary"`
}

// ParseSubmitResponse decodes and validates a submit response body. A terminal
// response is honoured as long as game_over is true; a malformed viewer summary
// is dropped rather than failing the whole payload.
func ParseSubmitResponse(body []byte) (*SubmitResponse, error) {
	envelope := submitEnvelope{}
	if err := json.Unmarshal(body, &envelope); err != nil {
		return nil, fmt.Errorf("%w: %s", ErrInvalidPayload, err)
	}

	if envelope.GameOver != nil && *envelope.GameOver {
		gameOver := &GameOver{}
		if len(envelope.ViewerSummary) > 0 && string(envelope.ViewerSummary) != "null" {
			summary := &ViewerSummary{}
			if err := json.Unmarshal(envelope.ViewerSummary, summary); err == nil {
				gameOver.ViewerSummary = summary.normalise()
			}
		}
		return &SubmitResponse{GameOver: gameOver}, nil
	}

	if envelope.EventResults == nil {
		return nil, fmt.Errorf("%w: missing event_results", ErrInvalidPayload)
	}
	for _, result := range envelope.EventResults {
		if err := result.validate(); err != nil {
			return nil, err
		}
	}
	stats, err := validateStats(envelope.Stats)
	if err != nil {
		return nil, err
	}

	return &SubmitResponse{Progress: &Progress{
		EventResults: envelope.EventResults,
		Stats:        stats,
	}}, nil
}

func (r EventResult) validate() error {
	if !r.EventType.Valid() {
		return fmt.Errorf("%w: unknown event_type %q", ErrInvalidPayload, r.EventType)
	}
	if r.CurrentCount < 0 || r.RequiredCount <= 0 || r.ViewerCount < 0 {
		return fmt.Errorf("%w: event result for %s has out of range counts", ErrInvalidPayload, r.EventType)
	}
	return nil
}

func (s RoomStat) validate() error {
	if !s.ButtonName.Valid() {
		return fmt.Errorf("%w: unknown button_name %q", ErrInvalidPayload, s.ButtonName)
	}
	if s.CurrentCount < 0 || s.RequiredCount <= 0 {
		return fmt.Errorf("%w: stat for %s has out of range counts", ErrInvalidPayload, s.ButtonName)
	}
	return nil
}

// validateStats checks every stat and fills in progress when the service left it out.
func validateStats(stats []RoomStat) ([]RoomStat, error) {
	for i, stat := range stats {
		if err := stat.validate(); err != nil {
			return nil, err
		}
		if stat.Progress == 0 && stat.CurrentCount > 0 {
			stats[i] = NewRoomStat(stat.ButtonName, stat.CurrentCount, stat.RequiredCount)
		}
	}
	return stats, nil
}

func (s *ViewerSummary) normalise() *ViewerSummary {
	if s.Counts == nil {
		s.Counts = map[buttons.Category]int{}
	}
	if s.Total == 0 {
		for _, count := range s.Counts {
			s.Total += count
		}
	}
	return s
}

// StatsSnapshot is returned by the fetch stats endpoint and pushed over the stats stream.
type StatsSnapshot struct {
	RoomID   string     `json:"room_id"`
	Stats    []RoomStat `json:"stats"`
	GameOver bool       `json:"game_over"`
}

func ParseStatsSnapshot(body []byte) (*StatsSnapshot, error) {
	snapshot := &StatsSnapshot{}
	if err := json.Unmarshal(body, snapshot); err != nil {
		return nil, fmt.Errorf("%w: %s", ErrInvalidPayload, err)
	}
	if snapshot.Stats == nil && !snapshot.GameOver {
		return nil, fmt.Errorf("%w: missing stats", ErrInvalidPayload)
	}
	stats, err := validateStats(snapshot.Stats)
	if err != nil {
		return nil, err
	}
	snapshot.Stats = stats
	return snapshot, nil
}

type ViewerIdentity struct {
	ViewerID   string `json:"viewer_id"`
	ViewerName string `json:"viewer_name,omitempty"`
}

type SetNameRequest struct {
	ViewerName string `json:"viewer_name"`
}

type ViewerCount struct {
	ViewerID   string `json:"viewer_id"`
	ViewerName string `json:"viewer_name,omitempty"`
	Count      int    `json:"count"`
}

type RoomResult struct {
	RoomID        string                           `json:"room_id"`
	EndedAt       time.Time                        `json:"ended_at"`
	TopOverall    *ViewerCount                     `json:"top_overall"`
	TopByEvent    map[buttons.Category]ViewerCount `json:"top_by_event"`
	ViewerTotals  []ViewerCount                    `json:"viewer_totals"`
	ViewerSummary *ViewerSummary                   `json:"viewer_summary,omitempty"`
}

// DisplayName falls back to the viewer id when no name was stored.
func DisplayName(viewerID, name string) string {
	trimmed := strings.TrimSpace(name)
	if trimmed == "" {
		return viewerID
	}
	return trimmed
}
