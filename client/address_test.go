package client

import "testing"

func TestParseAddress(t *testing.T) {
	tests := []struct {
		in, want string
	}{
		{"/run/mdnsoffload-sock/mdnsoffload.sock", "unix:///run/mdnsoffload-sock/mdnsoffload.sock"},
		{"unix:///run/x.sock", "unix:///run/x.sock"},
		{"unix:relative.sock", "unix:relative.sock"},
		{"sock/x.sock", "unix:sock/x.sock"},
	}
	for _, tt := range tests {
		if got := parseAddress(tt.in); got != tt.want {
			t.Errorf("parseAddress(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}
