package services

import (
	"context"
	"errors"
	"testing"

	"plant-photo-backend/internal/models"

	"github.com/stretchr/testify/require"
	"google.golang.org/genai"
)

func TestParseVerdict(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		want    models.VerificationStatus
		wantErr bool
	}{
		{"plant", "PLANT", models.StatusSuccess, false},
		{"lowercase with newline", "plant\n", models.StatusSuccess, false},
		{"not plant", "NOT_PLANT", models.StatusNotPlant, false},
		{"not plant with space", "Not plant.", models.StatusNotPlant, false},
		{"both words", "PLANT? no: NOT_PLANT", models.StatusNotPlant, false},
		{"plants is not a verdict", "PLANTS", "", true},
		{"empty", "", "", true},
		{"chatter", "I cannot tell", "", true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseVerdict(tt.input)
			if tt.wantErr {
				require.ErrorIs(t, err, ErrParseVerdict)
				return
			}
			require.NoError(t, err)
			require.Equal(t, tt.want, got)
		})
	}
}

type fakeGenerator struct {
	text     string
	err      error
	model    string
	contents []*genai.Content
}

func (g *fakeGenerator) GenerateContent(_ context.Context, model string, contents []*genai.Content, _ *genai.GenerateContentConfig) (*genai.GenerateContentResponse, error) {
	g.model = model
	g.contents = contents
	if g.err != nil {
		return nil, g.err
	}
	return &genai.GenerateContentResponse{
		Candidates: []*genai.Candidate{{Content: genai.NewContentFromText(g.text, genai.RoleModel)}},
	}, nil
}

func TestGeminiVerifier(t *testing.T) {
	gen := &fakeGenerator{text: "PLANT"}
	v := &GeminiVerifier{models: gen, model: "gemini-test"}

	got, err := v.Verify(context.Background(), VerificationInput{Data: []byte("img"), ContentType: "image/png"})
	require.NoError(t, err)
	require.Equal(t, models.StatusSuccess, got)
	require.Equal(t, "gemini-test", gen.model)
	require.Len(t, gen.contents, 1)
	require.Len(t, gen.contents[0].Parts, 2)
	require.NotNil(t, gen.contents[0].Parts[1].InlineData)
	require.Equal(t, "image/png", gen.contents[0].Parts[1].InlineData.MIMEType)

	gen.text = "hmm"
	_, err = v.Verify(context.Background(), VerificationInput{Data: []byte("img")})
	require.ErrorIs(t, err, ErrParseVerdict)

	gen.err = errors.New("quota")
	_, err = v.Verify(context.Background(), VerificationInput{Data: []byte("img")})
	require.Error(t, err)
}
