package conv

import "testing"

func TestNormalizePhone(t *testing.T) {
	tests := []struct {
		name    string
		raw     string
		want    string
		wantErr bool
	}{
		{"bare ten digits", "5551234567", "+15551234567", false},
		{"formatted", "(555) 123-4567", "+15551234567", false},
		{"dotted", "555.123.4567", "+15551234567", false},
		{"with country code", "15551234567", "+15551234567", false},
		{"already e164", "+15551234567", "+15551234567", false},
		{"international", "+442071234567", "+442071234567", false},
		{"nine digits", "555123456", "", true},
		{"empty", "", "", true},
		{"letters only", "not a phone", "", true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := NormalizePhone(tt.raw)
			if (err != nil) != tt.wantErr {
				t.Fatalf("NormalizePhone(%q) error = %v, wantErr %v", tt.raw, err, tt.wantErr)
			}
			if got != tt.want {
				t.Errorf("NormalizePhone(%q) = %q, want %q", tt.raw, got, tt.want)
			}
		})
	}
}
