package segment

import (
	"strings"
	"testing"
	"unicode/utf8"
)

// feed pushes fragments through a segmenter and returns everything emitted
// plus the final flush.
func feed(s *Segmenter, fragments []string) (emitted []string, flushed string) {
	for _, f := range fragments {
		emitted = append(emitted, s.Push(f)...)
	}
	flushed, _ = s.Flush()
	return emitted, flushed
}

func TestCharacterConservation(t *testing.T) {
	tests := []struct {
		name      string
		fragments []string
	}{
		{"single sentence", []string{"Hoje o tempo está bom e o céu está limpo."}},
		{"split mid-word", []string{"Hoje o tempo es", "tá bom e o céu está limpo. Ama", "nhã deve chover bastante."}},
		{"one byte at a time", strings.Split("Primeira frase completa aqui mesmo. Segunda! Curta? Sim.", "")},
		{"no delimiters at all", []string{"texto sem pontuação nenhuma ", "que nunca fecha frase"}},
		{"only delimiters", []string{"...", "!!", "?"}},
		{"empty fragments", []string{"", "Uma frase razoavelmente longa termina aqui.", ""}},
		{"unicode heavy", []string{"Ação completa à vista: coração, atenção e emoção. Até já."}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := New()
			emitted, flushed := feed(s, tt.fragments)

			got := strings.Join(emitted, "") + flushed
			want := strings.Join(tt.fragments, "")
			if got != want {
				t.Errorf("conservation violated:\n got %q\nwant %q", got, want)
			}
		})
	}
}

func TestMinimumLengthHold(t *testing.T) {
	s := New(WithMinLength(30))

	// Each piece ends a sentence but none reaches 30 characters alone;
	// the segmenter must merge forward instead of emitting short audio.
	out := s.Push("Oi. Tudo bem? Sim.")
	if len(out) != 0 {
		t.Fatalf("expected no emission below minimum, got %v", out)
	}

	out = s.Push(" Então vamos conversar mais um pouco agora.")
	if len(out) != 1 {
		t.Fatalf("expected one merged sentence, got %v", out)
	}
	if n := utf8.RuneCountInString(out[0]); n < 30 {
		t.Errorf("emitted sentence shorter than minimum: %d runes (%q)", n, out[0])
	}
}

func TestNoShortEmissionExceptFlush(t *testing.T) {
	s := New(WithMinLength(30))

	fragments := []string{"Primeira frase bem longa o suficiente para emitir. ", "Fim."}
	var emitted []string
	for _, f := range fragments {
		emitted = append(emitted, s.Push(f)...)
	}

	for _, e := range emitted {
		if utf8.RuneCountInString(e) < 30 {
			t.Errorf("short sentence emitted without flush: %q", e)
		}
	}

	// "Fim." stays buffered until the explicit flush.
	flushed, ok := s.Flush()
	if !ok {
		t.Fatal("expected flush to emit the held remainder")
	}
	if !strings.Contains(flushed, "Fim.") {
		t.Errorf("flush lost the short remainder: %q", flushed)
	}
}

func TestEarliestDelimiterWins(t *testing.T) {
	s := New(WithMinLength(5))

	out := s.Push("Uma frase inteira aqui. Outra frase inteira depois.")
	if len(out) != 2 {
		t.Fatalf("expected 2 sentences, got %d: %v", len(out), out)
	}
	if out[0] != "Uma frase inteira aqui." {
		t.Errorf("first sentence wrong: %q", out[0])
	}
	if out[1] != " Outra frase inteira depois." {
		t.Errorf("second sentence wrong: %q", out[1])
	}
}

func TestAllDelimiterKinds(t *testing.T) {
	s := New(WithMinLength(1))

	out := s.Push("a. b! c? d: e;")
	if len(out) != 5 {
		t.Fatalf("expected 5 sentences, got %d: %v", len(out), out)
	}
	for i, want := range []string{"a.", " b!", " c?", " d:", " e;"} {
		if out[i] != want {
			t.Errorf("sentence %d = %q, want %q", i, out[i], want)
		}
	}
}

func TestFlushEmpty(t *testing.T) {
	s := New()

	if _, ok := s.Flush(); ok {
		t.Error("flush on empty buffer should report nothing to flush")
	}

	s.Push("Uma frase suficientemente longa para ser emitida aqui.")
	s.Flush()
	if _, ok := s.Flush(); ok {
		t.Error("second flush should find an empty buffer")
	}
}

func TestReset(t *testing.T) {
	s := New()
	s.Push("texto pendente sem fim de frase")
	s.Reset()

	if s.Buffered() != "" {
		t.Errorf("buffer not cleared by Reset: %q", s.Buffered())
	}
	if _, ok := s.Flush(); ok {
		t.Error("flush after Reset should be empty")
	}
}

func TestStreamedResponseSplitsInTwo(t *testing.T) {
	// A response ending in a question must yield the question as its own
	// sentence when the minimum is low enough, since the follow-up policy
	// inspects the final sentence.
	s := New(WithMinLength(5))

	var out []string
	for _, chunk := range []string{"It's 3 ", "PM. Anything", " else?"} {
		out = append(out, s.Push(chunk)...)
	}
	flushed, ok := s.Flush()
	if ok {
		out = append(out, flushed)
	}

	if len(out) != 2 {
		t.Fatalf("expected 2 sentences, got %d: %v", len(out), out)
	}
	if out[0] != "It's 3 PM." {
		t.Errorf("first sentence = %q", out[0])
	}
	if strings.TrimSpace(out[1]) != "Anything else?" {
		t.Errorf("second sentence = %q", out[1])
	}
}

func TestCustomDelimiters(t *testing.T) {
	s := New(WithMinLength(1), WithDelimiters("|"))

	out := s.Push("primeiro|segundo. ainda buffered")
	if len(out) != 1 || out[0] != "primeiro|" {
		t.Errorf("custom delimiter not honored: %v", out)
	}
	if s.Buffered() != "segundo. ainda buffered" {
		t.Errorf("unexpected buffer: %q", s.Buffered())
	}
}
