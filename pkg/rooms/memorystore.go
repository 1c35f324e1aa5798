package rooms

import (
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/fr3shw3b/tapsync/pkg/buttons"
	"github.com/fr3shw3b/tapsync/pkg/protocol"
	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
	"github.com/sirupsen/logrus"
)

const (
	DefaultRequiredCount = 100
	MaxViewerNameLength  = 20
)

type InMemoryStoreParams struct {
	// Seconds without a push after which a viewer no longer counts
	// towards a room's live audience.
	ExpireAfterIdleTime int
	RequiredCount       int
	// Per category overrides of RequiredCount.
	Thresholds map[buttons.Category]int
	// Number of triggered effects after which a room ends, 0 never ends.
	GameOverAfterEffects int
	Clock                clockwork.Clock
}

func NewInMemoryStore(params *InMemoryStoreParams, logger *logrus.Logger) RoomStore {
	clock := params.Clock
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	return &inMemoryStore{
		params:  params,
		clock:   clock,
		rooms:   map[string]*roomState{},
		viewers: map[string]string{},
		logger:  logger,
	}
}

type inMemoryStore struct {
	mu     sync.Mutex
	params *InMemoryStoreParams
	clock  clockwork.Clock
	rooms  map[string]*roomState
	// viewer id to display name, shared across rooms.
	viewers map[string]string
	logger  *logrus.Logger
}

type roomState struct {
	id      string
	counts  map[buttons.Category]int
	effects int
	ended   bool
	endedAt time.Time
	viewers map[string]*roomViewer
}

type roomViewer struct {
	counts       map[buttons.Category]int
	lastAccessed time.Time
}

func (v *roomViewer) total() int {
	total := 0
	for _, count := range v.counts {
		total += count
	}
	return total
}

func (s *inMemoryStore) Push(
	roomID string,
	viewerID string,
	viewerName string,
	events []protocol.PushEvent,
) (*protocol.SubmitResponse, error) {
	if viewerID == "" {
		return nil, fmt.Errorf("%w: missing viewer id", ErrInvalidEvent)
	}
	for _, event := range events {
		if !event.ButtonName.Valid() || event.PushCount <= 0 {
			return nil, fmt.Errorf("%w: %s x%d", ErrInvalidEvent, event.ButtonName, event.PushCount)
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, known := s.viewers[viewerID]; !known || viewerName != "" {
		s.viewers[viewerID] = normaliseName(viewerName)
	}
	room := s.loadOrCreate(roomID)
	viewer := room.viewer(viewerID)
	viewer.lastAccessed = s.clock.Now()

	if room.ended {
		return s.gameOver(room, viewerID), nil
	}

	audience := s.activeViewers(room)
	results := make([]protocol.EventResult, 0, len(events))
	for _, event := range events {
		c := event.ButtonName
		required := s.requiredFor(c)
		room.counts[c] += event.PushCount
		viewer.counts[c] += event.PushCount

		triggered := false
		for room.counts[c] >= required {
			room.counts[c] -= required
			room.effects += 1
			triggered = true
		}
		if triggered {
			s.logger.WithFields(logrus.Fields{
				"roomId":  roomID,
				"button":  c,
				"effects": room.effects,
			}).Info("effect triggered")
		}

		results = append(results, protocol.EventResult{
			EventType:       c,
			CurrentCount:    room.counts[c],
			RequiredCount:   required,
			EffectTriggered: triggered,
			ViewerCount:     audience,
			NextThreshold:   required,
		})
	}

	limit := s.params.GameOverAfterEffects
	if limit > 0 && room.effects >= limit {
		s.end(room)
		return s.gameOver(room, viewerID), nil
	}

	return &protocol.SubmitResponse{Progress: &protocol.Progress{
		EventResults: results,
		Stats:        s.stats(room),
	}}, nil
}

func (s *inMemoryStore) Stats(roomID string) protocol.StatsSnapshot {
	s.mu.Lock()
	defer s.mu.Unlock()

	room := s.rooms[roomID]
	if room == nil {
		room = newRoomState(roomID)
	}
	return protocol.StatsSnapshot{
		RoomID:   roomID,
		Stats:    s.stats(room),
		GameOver: room.ended,
	}
}

func (s *inMemoryStore) NewViewer() protocol.ViewerIdentity {
	s.mu.Lock()
	defer s.mu.Unlock()

	viewerID := uuid.NewString()
	s.viewers[viewerID] = ""
	return protocol.ViewerIdentity{ViewerID: viewerID}
}

func (s *inMemoryStore) Viewer(viewerID string) (protocol.ViewerIdentity, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	name, exists := s.viewers[viewerID]
	if !exists {
		return protocol.ViewerIdentity{}, fmt.Errorf("%w (%s)", ErrUnknownViewer, viewerID)
	}
	return protocol.ViewerIdentity{ViewerID: viewerID, ViewerName: name}, nil
}

func (s *inMemoryStore) SetViewerName(viewerID string, name string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.viewers[viewerID]; !exists {
		return "", fmt.Errorf("%w (%s)", ErrUnknownViewer, viewerID)
	}
	normalised := normaliseName(name)
	s.viewers[viewerID] = normalised
	return normalised, nil
}

func (s *inMemoryStore) End(roomID string) (protocol.RoomResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	room := s.loadOrCreate(roomID)
	s.end(room)
	return s.result(room, ""), nil
}

func (s *inMemoryStore) Result(roomID string, viewerID string) (protocol.RoomResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	room := s.rooms[roomID]
	if room == nil {
		return protocol.RoomResult{}, fmt.Errorf("%w (%s)", ErrUnknownRoom, roomID)
	}
	if !room.ended {
		return protocol.RoomResult{}, fmt.Errorf("%w (%s)", ErrRoomNotEnded, roomID)
	}
	return s.result(room, viewerID), nil
}

func newRoomState(roomID string) *roomState {
	return &roomState{
		id:      roomID,
		counts:  map[buttons.Category]int{},
		viewers: map[string]*roomViewer{},
	}
}

func (s *inMemoryStore) loadOrCreate(roomID string) *roomState {
	room := s.rooms[roomID]
	if room == nil {
		room = newRoomState(roomID)
		s.rooms[roomID] = room
	}
	return room
}

func (r *roomState) viewer(viewerID string) *roomViewer {
	viewer := r.viewers[viewerID]
	if viewer == nil {
		viewer = &roomViewer{counts: map[buttons.Category]int{}}
		r.viewers[viewerID] = viewer
	}
	return viewer
}

func (s *inMemoryStore) end(room *roomState) {
	if room.ended {
		return
	}
	room.ended = true
	room.endedAt = s.clock.Now()
	s.logger.WithField("roomId", room.id).Info("room ended")
}

// activeViewers counts viewers seen within the idle expiry window.
func (s *inMemoryStore) activeViewers(room *roomState) int {
	expiry := time.Duration(s.params.ExpireAfterIdleTime) * time.Second
	now := s.clock.Now()
	active := 0
	for _, viewer := range room.viewers {
		if expiry <= 0 || !viewer.lastAccessed.Add(expiry).Before(now) {
			active += 1
		}
	}
	return active
}

func (s *inMemoryStore) requiredFor(c buttons.Category) int {
	if required, exists := s.params.Thresholds[c]; exists && required > 0 {
		return required
	}
	if s.params.RequiredCount > 0 {
		return s.params.RequiredCount
	}
	return DefaultRequiredCount
}

func (s *inMemoryStore) stats(room *roomState) []protocol.RoomStat {
	stats := make([]protocol.RoomStat, 0, len(buttons.All))
	for _, c := range buttons.All {
		stats = append(stats, protocol.NewRoomStat(c, room.counts[c], s.requiredFor(c)))
	}
	return stats
}

func (s *inMemoryStore) gameOver(room *roomState, viewerID string) *protocol.SubmitResponse {
	return &protocol.SubmitResponse{GameOver: &protocol.GameOver{
		ViewerSummary: s.summary(room, viewerID),
	}}
}

func (s *inMemoryStore) summary(room *roomState, viewerID string) *protocol.ViewerSummary {
	viewer := room.viewers[viewerID]
	if viewer == nil {
		return nil
	}
	counts := map[buttons.Category]int{}
	for _, c := range buttons.All {
		counts[c] = viewer.counts[c]
	}
	return &protocol.ViewerSummary{
		ViewerID:   viewerID,
		ViewerName: s.viewers[viewerID],
		Counts:     counts,
		Total:      viewer.total(),
	}
}

func (s *inMemoryStore) result(room *roomState, viewerID string) protocol.RoomResult {
	totals := []protocol.ViewerCount{}
	for id, viewer := range room.viewers {
		if viewer.total() == 0 {
			continue
		}
		totals = append(totals, protocol.ViewerCount{ViewerID: id, ViewerName: s.viewers[id], Count: viewer.total()})
	}
	sortByCount(totals)

	topByEvent := map[buttons.Category]protocol.ViewerCount{}
	for _, c := range buttons.All {
		candidates := []protocol.ViewerCount{}
		for id, viewer := range room.viewers {
			if viewer.counts[c] > 0 {
				candidates = append(candidates, protocol.ViewerCount{ViewerID: id, ViewerName: s.viewers[id], Count: viewer.counts[c]})
			}
		}
		sortByCount(candidates)
		top := protocol.ViewerCount{}
		if len(candidates) > 0 {
			top = candidates[0]
		}
		topByEvent[c] = top
	}

	result := protocol.RoomResult{
		RoomID:        room.id,
		EndedAt:       room.endedAt,
		TopByEvent:    topByEvent,
		ViewerTotals:  totals,
		ViewerSummary: s.summary(room, viewerID),
	}
	if len(totals) > 0 {
		top := totals[0]
		result.TopOverall = &top
	}
	return result
}

// Highest count first, ties broken by viewer id so standings are stable.
func sortByCount(counts []protocol.ViewerCount) {
	sort.Slice(counts, func(i, j int) bool {
		if counts[i].Count != counts[j].Count {
			return counts[i].Count > counts[j].Count
		}
		return counts[i].ViewerID < counts[j].ViewerID
	})
}

func normaliseName(name string) string {
	runes := []rune(strings.TrimSpace(name))
	if len(runes) > MaxViewerNameLength {
		runes = runes[:MaxViewerNameLength]
	}
	return strings.TrimSpace(string(runes))
}
