package objstore

import "testing"

func TestSlugify(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"Digital Trust and Safety Act", "digital-trust-and-safety-act"},
		{"  GDPR — Regulation (EU) 2016/679  ", "gdpr--regulation-eu-2016679"},
		{"!!!", "bill"},
		{"", "bill"},
	}
	for _, tt := range tests {
		if got := slugify(tt.in); got != tt.want {
			t.Errorf("slugify(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestNewValidation(t *testing.T) {
	if _, err := New(Config{}); err == nil {
		t.Fatal("expected error for empty endpoint")
	}
	if _, err := New(Config{Endpoint: "localhost:9000"}); err == nil {
		t.Fatal("expected error for missing credentials")
	}
	if _, err := New(Config{Endpoint: "localhost:9000", AccessKey: "a", SecretKey: "s"}); err == nil {
		t.Fatal("expected error for missing bucket")
	}
}
