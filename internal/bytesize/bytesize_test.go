package bytesize

import "testing"

func TestParse(t *testing.T) {
	tests := []struct {
		in      string
		want    ByteSize
		wantErr bool
	}{
		{in: "4096", want: 4096},
		{in: "32Ki", want: 32 * 1024},
		{in: "32KiB", want: 32 * 1024},
		{in: "1mi", want: 1024 * 1024},
		{in: "8KB", want: 8000},
		{in: " 16 k ", want: 16000},
		{in: "", wantErr: true},
		{in: "abc", wantErr: true},
		{in: "10XB", wantErr: true},
		{in: "-5", wantErr: true},
		{in: "8796093022207Mi", want: 8796093022207 * MiB},
		{in: "8796093022208Mi", wantErr: true},
		{in: "9999999999999Mi", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := Parse(tt.in)
			if tt.wantErr {
				if err == nil {
					t.Fatalf("expected error for %q, got %d", tt.in, got)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if got != tt.want {
				t.Fatalf("Parse(%q) = %d, want %d", tt.in, got, tt.want)
			}
		})
	}
}

func TestString(t *testing.T) {
	if got := (128 * KiB).String(); got != "128Ki" {
		t.Errorf("got %q", got)
	}
	if got := (2 * MiB).String(); got != "2Mi" {
		t.Errorf("got %q", got)
	}
	if got := ByteSize(1000).String(); got != "1000" {
		t.Errorf("got %q", got)
	}
}
