package protocol

import (
	"errors"
	"testing"

	"github.com/fr3shw3b/tapsync/pkg/buttons"
)

func Test_parses_progress_response_and_derives_missing_progress(t *testing.T) {
	body := []byte(`{
		"game_over": false,
		"event_results": [{"event_type": "skill1", "current_count": 12, "required_count": 100, "effect_triggered": false, "viewer_count": 42}],
		"stats": [{"button_name": "enemy1", "current_count": 50, "required_count": 200}]
	}`)

	resp, err := ParseSubmitResponse(body)
	if err != nil {
		t.Error(err)
		t.FailNow()
	}
	if resp.Terminal() {
		t.Error("expected a progress response")
		t.FailNow()
	}
	if resp.Progress.EventResults[0].ViewerCount != 42 {
		t.Errorf("expected viewer count 42, got %d", resp.Progress.EventResults[0].ViewerCount)
	}
	if resp.Progress.Stats[0].Progress != 0.25 {
		t.Errorf("expected derived progress 0.25, got %v", resp.Progress.Stats[0].Progress)
	}
}

func Test_rejects_progress_response_that_fails_validation(t *testing.T) {
	bodies := map[string]string{
		"not json":            `{"game_over":`,
		"no event results":    `{"game_over": false}`,
		"unknown category":    `{"event_results": [{"event_type": "boss", "current_count": 1, "required_count": 10}]}`,
		"zero required count": `{"event_results": [], "stats": [{"button_name": "skill2", "current_count": 1, "required_count": 0}]}`,
		"negative count":      `{"event_results": [{"event_type": "skill2", "current_count": -1, "required_count": 10}]}`,
	}

	for name, body := range bodies {
		_, err := ParseSubmitResponse([]byte(body))
		if !errors.Is(err, ErrInvalidPayload) {
			t.Errorf("%s: expected ErrInvalidPayload, got %v", name, err)
		}
	}
}

func Test_terminal_response_is_honoured_with_a_malformed_summary(t *testing.T) {
	resp, err := ParseSubmitResponse([]byte(`{"game_over": true, "viewer_summary": "oops"}`))
	if err != nil {
		t.Error(err)
		t.FailNow()
	}
	if !resp.Terminal() {
		t.Error("expected a terminal response")
	}
	if resp.GameOver.ViewerSummary != nil {
		t.Error("expected the malformed summary to be dropped")
	}
}

func Test_terminal_response_totals_counts_when_total_is_missing(t *testing.T) {
	resp, err := ParseSubmitResponse([]byte(`{"game_over": true, "viewer_summary": {"viewer_id": "v1", "counts": {"skill1": 3, "enemy2": 4}}}`))
	if err != nil {
		t.Error(err)
		t.FailNow()
	}
	summary := resp.GameOver.ViewerSummary
	if summary.Total != 7 || summary.Counts[buttons.Enemy2] != 4 {
		t.Errorf("unexpected summary %+v", summary)
	}
}

func Test_submit_response_marshals_into_the_wire_envelope(t *testing.T) {
	body, err := SubmitResponse{Progress: &Progress{}}.MarshalJSON()
	if err != nil {
		t.Error(err)
		t.FailNow()
	}
	if string(body) != `{"game_over":false,"event_results":[]}` {
		t.Errorf("unexpected body %s", body)
	}
}

func Test_display_name_falls_back_to_viewer_id(t *testing.T) {
	if DisplayName("v1", "  ") != "v1" {
		t.Error("expected blank name to fall back to the viewer id")
	}
	if DisplayName("v1", " Aiko ") != "Aiko" {
		t.Error("expected name to be trimmed")
	}
}
