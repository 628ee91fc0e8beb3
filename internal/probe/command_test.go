package probe

import (
	"reflect"
	"strings"
	"testing"
)

func TestTurnCommand(t *testing.T) {
	cases := []struct {
		in   Target
		want []string
	}{
		{Target{Address: "turn.example.com"}, []string{"-y", "-c", "turn.example.com"}},
		{Target{Address: "10.0.0.1", Port: 3478}, []string{"-y", "-c", "-p", "3478", "10.0.0.1"}},
		{Target{Address: "10.0.0.1", Port: 5349, Secret: "s"}, []string{"-y", "-c", "-p", "5349", "-W", "s", "10.0.0.1"}},
	}
	for _, c := range cases {
		got := TurnCommand("turnutils_uclient", c.in)
		if got.Path != "turnutils_uclient" || !reflect.DeepEqual(got.Args, c.want) {
			t.Fatalf("TurnCommand(%+v)=%v want %v", c.in, got.Args, c.want)
		}
	}
}

func TestCommand_StringMasksSecret(t *testing.T) {
	c := TurnCommand("uclient", Target{Address: "a", Secret: "hunter2"})
	s := c.String()
	if strings.Contains(s, "hunter2") {
		t.Fatalf("secret leaked: %q", s)
	}
	if !strings.Contains(s, "-W ***") {
		t.Fatalf("want masked secret, got %q", s)
	}
}

func TestLookupBinary(t *testing.T) {
	if _, err := LookupBinary("sh"); err != nil {
		t.Fatalf("sh should be on PATH: %v", err)
	}
	if _, err := LookupBinary("definitely-not-a-turn-probe"); err == nil {
		t.Fatalf("want error for missing binary")
	}
}
