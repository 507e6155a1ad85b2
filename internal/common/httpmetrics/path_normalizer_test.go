package httpmetrics

import "testing"

func TestNormalizePath(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{in: "", want: "/"},
		{in: "/api/v1/users/login", want: "/api/v1/users/login"},
		{in: "/api/v1/users/8d5c8c0e-4a3e-4f43-9c61-1f1b2b0c2a11", want: "/api/v1/users/{param}"},
		{in: "/api/v1/users/42/avatar", want: "/api/v1/users/{param}/avatar"},
	}

	for _, tt := range tests {
		if got := NormalizePath(tt.in); got != tt.want {
			t.Errorf("NormalizePath(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}
