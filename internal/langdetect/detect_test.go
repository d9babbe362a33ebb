package langdetect

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/lanceworks/autobid-cli/internal/model"
)

func TestDetect(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		text string
		want model.Language
	}{
		{
			name: "spanish posting",
			text: "Necesito un desarrollador para crear una tienda en línea con pasarela de pagos y panel de administración",
			want: model.LangSpanish,
		},
		{
			name: "english posting",
			text: "Looking for an experienced developer to build an online store with payment gateway integration",
			want: model.LangEnglish,
		},
		{
			name: "portuguese maps to unknown",
			text: "Preciso de um desenvolvedor para criar uma loja virtual com integração de pagamentos",
			want: model.LangUnknown,
		},
		{
			name: "too short",
			text: "dev",
			want: model.LangUnknown,
		},
		{
			name: "empty",
			text: "",
			want: model.LangUnknown,
		},
		{
			name: "whitespace only",
			text: "         \n\t   ",
			want: model.LangUnknown,
		},
		{
			name: "digits and symbols",
			text: "12345 $$$ !!! 67890 ###",
			want: model.LangUnknown,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tt.want, Detect(tt.text))
		})
	}
}

// Detect must return a value for any input, never panic.
func TestDetectTotality(t *testing.T) {
	t.Parallel()

	inputs := []string{
		"\x00\x01\x02",
		"日本語のテキストです、言語検出のテスト",
		"ñ",
		string(make([]byte, 100)),
	}
	for _, in := range inputs {
		got := Detect(in)
		assert.Contains(t, []model.Language{model.LangSpanish, model.LangEnglish, model.LangUnknown}, got)
	}
}
