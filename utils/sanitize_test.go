package utils

import "testing"

func TestSanitizeInput(t *testing.T) {
	tests := []struct {
		in, want string
	}{
		{"  see you at 2pm  ", "see you at 2pm"},
		{"hi<script>alert(1)</script> there", "hi there"},
		{"a\x00b\x07c", "abc"},
		{"line one\nline two", "line one\nline two"},
		{`5 > 3 & "quotes"`, "5 &gt; 3 &amp; &#34;quotes&#34;"},
	}
	for _, tt := range tests {
		if got := SanitizeInput(tt.in); got != tt.want {
			t.Errorf("SanitizeInput(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestSanitizeEmail(t *testing.T) {
	tests := []struct {
		in      string
		want    string
		wantErr bool
	}{
		{" Ravi@Example.com ", "ravi@example.com", false},
		{"asha+test@mail.co.in", "asha+test@mail.co.in", false},
		{"nobody", "", true},
		{"a@b", "", true},
		{"", "", true},
	}
	for _, tt := range tests {
		got, err := SanitizeEmail(tt.in)
		if (err != nil) != tt.wantErr {
			t.Errorf("SanitizeEmail(%q) error = %v, wantErr %v", tt.in, err, tt.wantErr)
			continue
		}
		if got != tt.want {
			t.Errorf("SanitizeEmail(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestSanitizeUPI(t *testing.T) {
	tests := []struct {
		in      string
		want    string
		wantErr bool
	}{
		{"ravi@upi", "ravi@upi", false},
		{" Ravi.K@OkAxis ", "ravi.k@okaxis", false},
		{"x@ybl", "x@ybl", false},
		{"ravi", "", true},
		{"ravi@", "", true},
		{"@upi", "", true},
		{"ravi@ok axis", "", true},
		{" ", "", true},
	}
	for _, tt := range tests {
		got, err := SanitizeUPI(tt.in)
		if (err != nil) != tt.wantErr {
			t.Errorf("SanitizeUPI(%q) error = %v, wantErr %v", tt.in, err, tt.wantErr)
			continue
		}
		if got != tt.want {
			t.Errorf("SanitizeUPI(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}
