package session

import (
	"testing"
)

func TestWebsocketURL(t *testing.T) {
	cases := []struct {
		name string
		in   string
		want string
	}{
		{"http scheme", "http://localhost:8080", "ws://localhost:8080/ws"},
		{"https scheme", "https://cases.example.com", "wss://cases.example.com/ws"},
		{"ws passthrough", "ws://localhost:8080", "ws://localhost:8080/ws"},
		{"trailing slash", "http://localhost:8080/", "ws://localhost:8080/ws"},
		{"behind prefix", "http://example.com/casebox", "ws://example.com/casebox/ws"},
		{"already pointed at ws", "ws://localhost:8080/ws", "ws://localhost:8080/ws"},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got, err := websocketURL(tc.in)
			if err != nil {
				t.Fatalf("websocketURL(%q) returned error: %v", tc.in, err)
			}
			if got != tc.want {
				t.Fatalf("websocketURL(%q) = %q, want %q", tc.in, got, tc.want)
			}
		})
	}
}

func TestWebsocketURLRejectsUnknownScheme(t *testing.T) {
	if _, err := websocketURL("ftp://example.com"); err == nil {
		t.Fatalf("expected unsupported scheme to fail")
	}
}

func TestRolePartnerAndLabel(t *testing.T) {
	if RolePlayer1.Partner() != RolePlayer2 || RolePlayer2.Partner() != RolePlayer1 {
		t.Fatalf("expected roles to pair up")
	}
	if RolePlayer1.Label() == RolePlayer2.Label() {
		t.Fatalf("expected distinct labels")
	}
}
