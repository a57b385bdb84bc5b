package flow

import "testing"

func TestSanitizeOutbound(t *testing.T) {
	cases := []struct {
		name          string
		message       string
		priorGreeting string
		want          string
	}{
		{
			name:    "context markers stripped",
			message: "[contexto: products]\nTenemos One Piece Vol. 1.",
			want:    "Tenemos One Piece Vol. 1.",
		},
		{
			name:    "empty bullets dropped",
			message: "Opciones:\n• One Piece Vol. 1\n•\n-\n• One Piece Vol. 2",
			want:    "Opciones:\n• One Piece Vol. 1\n• One Piece Vol. 2",
		},
		{
			name:          "repeated greeting removed",
			message:       "¡Hola! Acá van las opciones:\nOne Piece Vol. 1",
			priorGreeting: "¡Hola! Soy el asistente de La Comiquería.",
			want:          "One Piece Vol. 1",
		},
		{
			name:    "greeting kept when conversation is new",
			message: "Hola, tenemos varias opciones.",
			want:    "Hola, tenemos varias opciones.",
		},
		{
			name:          "greeting only removed from the first line",
			message:       "Tenemos estas opciones:\nHola Mundo Vol. 1",
			priorGreeting: "hola",
			want:          "Tenemos estas opciones:\nHola Mundo Vol. 1",
		},
		{
			name:    "surrounding whitespace trimmed",
			message: "  \nTenemos One Piece.\n  ",
			want:    "Tenemos One Piece.",
		},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := sanitizeOutbound(tc.message, tc.priorGreeting); got != tc.want {
				t.Errorf("sanitizeOutbound() = %q, want %q", got, tc.want)
			}
		})
	}
}
