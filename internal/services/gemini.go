package services

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strings"

	"plant-photo-backend/internal/models"

	"github.com/rs/zerolog/log"
	"google.golang.org/genai"
)

const plantPrompt = `You are verifying photos for a tree planting game.
Look at the image and decide whether it clearly shows a real, living plant or tree.
Answer with exactly one word: PLANT or NOT_PLANT. Do not add any other text.`

var (
	ErrParseVerdict = errors.New("unrecognised verdict")
	verdictWord     = regexp.MustCompile(`[A-Z_]+`)
)

type contentGenerator interface {
	GenerateContent(ctx context.Context, model string, contents []*genai.Content, config *genai.GenerateContentConfig) (*genai.GenerateContentResponse, error)
}

// GeminiVerifier asks a Gemini model whether the image shows a plant
type GeminiVerifier struct {
	models contentGenerator
	model  string
}

// NewGeminiVerifier creates a Gemini API client for the given key and model
func NewGeminiVerifier(ctx context.Context, apiKey, model string) (*GeminiVerifier, error) {
	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create gemini client: %w", err)
	}
	return &GeminiVerifier{models: client.Models, model: model}, nil
}

func (v *GeminiVerifier) Verify(ctx context.Context, in VerificationInput) (models.VerificationStatus, error) {
	mime := in.ContentType
	if mime == "" {
		mime = "image/jpeg"
	}
	parts := []*genai.Part{
		genai.NewPartFromText(plantPrompt),
		genai.NewPartFromBytes(in.Data, mime),
	}
	contents := []*genai.Content{genai.NewContentFromParts(parts, genai.RoleUser)}
	temp := float32(0)

	res, err := v.models.GenerateContent(ctx, v.model, contents, &genai.GenerateContentConfig{Temperature: &temp})
	if err != nil {
		return "", fmt.Errorf("gemini generate: %w", err)
	}

	raw := res.Text()
	status, err := ParseVerdict(raw)
	if err != nil {
		log.Warn().Str("model", v.model).Str("text", raw).Msg("Unparseable gemini verdict")
		return "", err
	}
	return status, nil
}

// ParseVerdict maps a model answer to an outcome. NOT_PLANT wins over PLANT when both appear.
func ParseVerdict(text string) (models.VerificationStatus, error) {
	upper := strings.ReplaceAll(strings.ToUpper(text), "NOT PLANT", "NOT_PLANT")
	found := false
	for _, w := range verdictWord.FindAllString(upper, -1) {
		switch w {
		case "NOT_PLANT":
			return models.StatusNotPlant, nil
		case "PLANT":
			found = true
		}
	}
	if found {
		return models.StatusSuccess, nil
	}
	return "", fmt.Errorf("%w: %q", ErrParseVerdict, text)
}
