package redis

import "testing"

func TestServiceKey(t *testing.T) {
	tests := []struct {
		name string
		want string
	}{
		{"Alpha", "presence:service:Alpha"},
		{"1.20.1空岛", "presence:service:1.20.1空岛"},
		{"", "presence:service:"},
	}

	for _, tt := range tests {
		t.Run(tt.want, func(t *testing.T) {
			if got := ServiceKey(tt.name); got != tt.want {
				t.Errorf("ServiceKey(%q) = %q, want %q", tt.name, got, tt.want)
			}
		})
	}
}
