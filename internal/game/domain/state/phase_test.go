package state

import (
	"errors"
	"testing"
)

func TestParseGamePhase(t *testing.T) {
	cases := []struct {
		in   string
		want GamePhase
	}{
		{"initialization", PhaseInitialization},
		{"monologue", PhaseMonologue},
		{"qna", PhaseQnA},
		{"QNA", PhaseQnA},
		{"  mission_submit  ", PhaseMissionSubmit},
		{"final_choice", PhaseFinalChoice},
		{"completed", PhaseCompleted},
		{"paused", PhasePaused},
	}
	for _, tc := range cases {
		got, err := ParseGamePhase(tc.in)
		if err != nil {
			t.Errorf("ParseGamePhase(%q) error = %v", tc.in, err)
			continue
		}
		if got != tc.want {
			t.Errorf("ParseGamePhase(%q) = %q, want %q", tc.in, got, tc.want)
		}
	}
}

func TestParseGamePhaseInvalid(t *testing.T) {
	for _, in := range []string{"", "intermission", "qna phase"} {
		if _, err := ParseGamePhase(in); !errors.Is(err, ErrInvalidPhase) {
			t.Errorf("ParseGamePhase(%q) error = %v, want ErrInvalidPhase", in, err)
		}
	}
}

func TestParsePlayerRole(t *testing.T) {
	cases := []struct {
		in   string
		want PlayerRole
	}{
		{"", RolePlayer},
		{"player", RolePlayer},
		{"game_master", RoleGameMaster},
		{"observer", RoleObserver},
	}
	for _, tc := range cases {
		got, err := ParsePlayerRole(tc.in)
		if err != nil {
			t.Errorf("ParsePlayerRole(%q) error = %v", tc.in, err)
			continue
		}
		if got != tc.want {
			t.Errorf("ParsePlayerRole(%q) = %q, want %q", tc.in, got, tc.want)
		}
	}

	if _, err := ParsePlayerRole("referee"); err == nil {
		t.Error("ParsePlayerRole(referee) error = nil")
	}
}
