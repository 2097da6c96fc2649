package arc

import (
	"errors"
	"slices"
	"testing"
)

func newMagicRegistry() *Registry {
	return BuildRegistry(func(r Registrar) {
		r.Register("test/abcd", func() Decoder { return &magicDecoder{magic: "ABCD"} })
		r.Register("test/ab", func() Decoder { return &magicDecoder{magic: "AB"} })
		r.Register("test/xyz", func() Decoder { return &magicDecoder{magic: "XYZ"} })
	})
}

func TestGuess(t *testing.T) {
	reg := newMagicRegistry()

	tests := []struct {
		name        string
		content     string
		wantID      string
		wantErr     error
		wantFormats []string
	}{
		{
			name:    "1つだけ認識",
			content: "XYZ123",
			wantID:  "test/xyz",
		},
		{
			name:    "どれにも一致しない",
			content: "nothing",
			wantErr: ErrNotRecognized,
		},
		{
			name:        "複数の形式に一致",
			content:     "ABCD....",
			wantErr:     ErrAmbiguousFormat,
			wantFormats: []string{"test/abcd", "test/ab"},
		},
		{
			name:    "前方一致は短い方のみ",
			content: "ABxx",
			wantID:  "test/ab",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m, err := Guess(reg, NewFile("in.bin", []byte(tt.content)), nil)
			if tt.wantErr != nil {
				if !errors.Is(err, tt.wantErr) {
					t.Fatalf("Guess() error = %v, want %v", err, tt.wantErr)
				}
				if tt.wantFormats != nil {
					var amb *AmbiguousFormatError
					if !errors.As(err, &amb) {
						t.Fatalf("Guess() error type = %T, want *AmbiguousFormatError", err)
					}
					if !slices.Equal(amb.Formats, tt.wantFormats) {
						t.Errorf("Formats = %v, want %v", amb.Formats, tt.wantFormats)
					}
				}
				return
			}
			if err != nil {
				t.Fatalf("Guess() error = %v", err)
			}
			if m.ID != tt.wantID {
				t.Errorf("Guess() ID = %s, want %s", m.ID, tt.wantID)
			}
			if m.Decoder == nil {
				t.Error("Guess() returned nil decoder")
			}
		})
	}
}

func TestGuess_Logging(t *testing.T) {
	logger := &recordLogger{}
	_, _ = Guess(newMagicRegistry(), NewFile("in.bin", []byte("XYZ")), logger)

	want := []string{
		"Trying test/abcd: not recognized",
		"Trying test/ab: not recognized",
		"Trying test/xyz: recognized",
	}
	if !slices.Equal(logger.lines, want) {
		t.Errorf("log = %q, want %q", logger.lines, want)
	}
}

func TestGuess_DoesNotModifyInput(t *testing.T) {
	content := []byte("ABCD")
	f := NewFile("in.bin", content)
	_, _ = Guess(newMagicRegistry(), f, nil)
	if string(f.Content) != "ABCD" || f.Name != "in.bin" {
		t.Error("Guess() must not modify the input file")
	}
}

func TestGuessAmong(t *testing.T) {
	reg := newMagicRegistry()

	// 候補を絞れば曖昧さは解消される
	m, err := GuessAmong(reg, []string{"test/ab", "missing/id"}, NewFile("in.bin", []byte("ABCD")), nil)
	if err != nil {
		t.Fatalf("GuessAmong() error = %v", err)
	}
	if m.ID != "test/ab" {
		t.Errorf("GuessAmong() ID = %s, want test/ab", m.ID)
	}
}
