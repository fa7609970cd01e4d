package ai

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/genai"

	"github.com/R3E-Network/studio_layer/internal/app/domain/chat"
	"github.com/R3E-Network/studio_layer/internal/app/media"
	"github.com/R3E-Network/studio_layer/internal/app/storage/memory"
	apperrors "github.com/R3E-Network/studio_layer/internal/errors"
)

var pngBytes = []byte("\x89PNG\r\n\x1a\n\x00\x00\x00\rIHDR\x00\x00\x00\x01\x00\x00\x00\x01")

type fakeGenerator struct {
	mu        sync.Mutex
	contents  [][]*genai.Content
	models    []string
	configs   []*genai.GenerateContentConfig
	prompts   []string
	response  *genai.GenerateContentResponse
	images    *genai.GenerateImagesResponse
	err       error
	imageCall int
}

func (f *fakeGenerator) GenerateContent(_ context.Context, model string, contents []*genai.Content, config *genai.GenerateContentConfig) (*genai.GenerateContentResponse, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.models = append(f.models, model)
	f.contents = append(f.contents, contents)
	f.configs = append(f.configs, config)
	return f.response, f.err
}

func (f *fakeGenerator) GenerateImages(_ context.Context, model, prompt string, config *genai.GenerateImagesConfig) (*genai.GenerateImagesResponse, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.models = append(f.models, model)
	f.prompts = append(f.prompts, prompt)
	f.imageCall++
	if config.NumberOfImages != 1 || config.OutputMIMEType != "image/jpeg" || config.AspectRatio != "1:1" {
		return nil, errors.New("unexpected image config")
	}
	return f.images, f.err
}

func imageResponse(data []byte, mime string) *genai.GenerateContentResponse {
	return &genai.GenerateContentResponse{Candidates: []*genai.Candidate{{
		Content: &genai.Content{Parts: []*genai.Part{
			{Text: "aquí está"},
			{InlineData: &genai.Blob{Data: data, MIMEType: mime}},
		}},
	}}}
}

func textResponse(text string, uris ...string) *genai.GenerateContentResponse {
	cand := &genai.Candidate{Content: &genai.Content{Parts: []*genai.Part{{Text: text}}}}
	if len(uris) > 0 {
		cand.GroundingMetadata = &genai.GroundingMetadata{}
		for _, u := range uris {
			cand.GroundingMetadata.GroundingChunks = append(cand.GroundingMetadata.GroundingChunks,
				&genai.GroundingChunk{Web: &genai.GroundingChunkWeb{URI: u, Title: "t"}})
		}
	}
	return &genai.GenerateContentResponse{Candidates: []*genai.Candidate{cand}}
}

func TestOutline(t *testing.T) {
	gen := &fakeGenerator{response: imageResponse([]byte("result"), "image/png")}
	svc := New(gen, nil, nil)

	out, err := svc.Outline(context.Background(), media.ToDataURL("image/png", pngBytes))
	require.NoError(t, err)
	assert.Equal(t, media.ToDataURL("image/png", []byte("result")), out)
	require.Len(t, gen.models, 1)
	assert.Equal(t, ImageEditModel, gen.models[0])
	parts := gen.contents[0][0].Parts
	require.Len(t, parts, 2)
	assert.Equal(t, pngBytes, parts[0].InlineData.Data)
	assert.True(t, strings.HasPrefix(parts[1].Text, "Crea solo el trazo de este dibujo"))
}

func TestOutlineErrors(t *testing.T) {
	ctx := context.Background()
	img := media.ToDataURL("image/png", pngBytes)

	_, err := New(&fakeGenerator{}, nil, nil).Outline(ctx, "")
	assert.True(t, apperrors.Is(err, apperrors.CodeValidation))

	_, err = New(&fakeGenerator{}, nil, nil).Outline(ctx, media.ToDataURL("text/plain", []byte("hola")))
	assert.True(t, apperrors.Is(err, apperrors.CodeValidation))

	_, err = New(&fakeGenerator{response: textResponse("sin imagen")}, nil, nil).Outline(ctx, img)
	require.Error(t, err)
	assert.Equal(t, "No se pudo generar el trazo. La respuesta de la IA no contiene una imagen.", apperrors.GetServiceError(err).Message)

	_, err = New(nil, nil, nil).Outline(ctx, img)
	assert.True(t, apperrors.Is(err, apperrors.CodeUpstream))
}

func TestPreview(t *testing.T) {
	gen := &fakeGenerator{response: imageResponse([]byte("jpeg"), "image/jpeg")}
	svc := New(gen, nil, nil)

	out, err := svc.Preview(context.Background(), media.ToDataURL("image/png", pngBytes), "mujer", "espalda")
	require.NoError(t, err)
	assert.Equal(t, "vista-previa-tatuaje-mujer-espalda.jpeg", out.Filename)
	assert.Contains(t, gen.contents[0][0].Parts[1].Text, "fotorrealista en el espalda de una mujer.")

	_, err = svc.Preview(context.Background(), media.ToDataURL("image/png", pngBytes), "otro", "brazo")
	assert.True(t, apperrors.Is(err, apperrors.CodeValidation))
	_, err = svc.Preview(context.Background(), media.ToDataURL("image/png", pngBytes), "hombre", "cuello")
	assert.True(t, apperrors.Is(err, apperrors.CodeValidation))

	gen.response = textResponse("nada")
	_, err = svc.Preview(context.Background(), media.ToDataURL("image/png", pngBytes), "", "")
	require.Error(t, err)
	assert.Equal(t, "No se pudo generar la vista previa para el brazo de un hombre. La IA no devolvió una imagen.", apperrors.GetServiceError(err).Message)
}

func TestDesigns(t *testing.T) {
	gen := &fakeGenerator{images: &genai.GenerateImagesResponse{GeneratedImages: []*genai.GeneratedImage{
		{Image: &genai.Image{ImageBytes: []byte("img")}},
	}}}
	svc := New(gen, nil, nil)

	out, err := svc.Designs(context.Background(), " un lobo ")
	require.NoError(t, err)
	assert.Len(t, out, DesignCount)
	assert.Equal(t, DesignCount, gen.imageCall)
	for _, p := range gen.prompts {
		assert.Equal(t, "Diseño de tatuaje de un lobo. Estilo minimalista, líneas negras, sobre fondo blanco, listo para ser tatuado.", p)
	}
	assert.True(t, strings.HasPrefix(out[0], "data:image/jpeg;base64,"))

	_, err = svc.Designs(context.Background(), "  ")
	assert.True(t, apperrors.Is(err, apperrors.CodeValidation))

	gen.images = &genai.GenerateImagesResponse{}
	_, err = svc.Designs(context.Background(), "rosa")
	require.Error(t, err)
	assert.Equal(t, "La API no devolvió ninguna imagen.", apperrors.GetServiceError(err).Message)

	gen.err = errors.New("quota")
	_, err = svc.Designs(context.Background(), "rosa")
	assert.True(t, apperrors.Is(err, apperrors.CodeUpstream))
}

func TestConsultKeepsHistory(t *testing.T) {
	ctx := context.Background()
	store := memory.New()
	gen := &fakeGenerator{response: textResponse("Usa agujas 3RL.", "https://a.example", "https://a.example", "https://b.example")}
	svc := New(gen, store, nil)

	answer, err := svc.Consult(ctx, "s1", "harold", "¿Qué aguja uso?", "")
	require.NoError(t, err)
	assert.Equal(t, "Usa agujas 3RL.", answer.Text)
	require.Len(t, answer.Sources, 2)
	assert.Equal(t, ConsultantModel, gen.models[0])
	cfg := gen.configs[0]
	require.NotNil(t, cfg)
	require.Len(t, cfg.Tools, 1)
	assert.NotNil(t, cfg.Tools[0].GoogleSearch)
	assert.Equal(t, consultantInstruction, cfg.SystemInstruction.Parts[0].Text)

	_, err = svc.Consult(ctx, "s1", "harold", "¿Y la tinta?", media.ToDataURL("image/png", pngBytes))
	require.NoError(t, err)
	second := gen.contents[1]
	require.Len(t, second, 3)
	assert.Equal(t, "¿Qué aguja uso?", second[0].Parts[0].Text)
	assert.Equal(t, string(genai.RoleUser), second[0].Role)
	assert.Equal(t, string(genai.RoleModel), second[1].Role)
	require.Len(t, second[2].Parts, 2)
	assert.NotNil(t, second[2].Parts[0].InlineData)

	history, err := svc.History(ctx, "s1", "harold")
	require.NoError(t, err)
	require.Len(t, history, 4)
	assert.Equal(t, chat.RoleUser, history[2].Role)
	assert.True(t, history[2].HasImage)

	require.NoError(t, svc.ClearHistory(ctx, "s1", "harold"))
	history, err = svc.History(ctx, "s1", "harold")
	require.NoError(t, err)
	assert.Empty(t, history)
}

func TestConsultErrors(t *testing.T) {
	ctx := context.Background()
	svc := New(&fakeGenerator{response: textResponse("")}, nil, nil)

	_, err := svc.Consult(ctx, "s1", "ana", "", "")
	assert.True(t, apperrors.Is(err, apperrors.CodeValidation))

	_, err = svc.Consult(ctx, "s1", "ana", "hola", "")
	require.Error(t, err)
	assert.Equal(t, "La IA no generó una respuesta de texto.", apperrors.GetServiceError(err).Message)
}

func TestHelpers(t *testing.T) {
	assert.Equal(t, "el pierna de un hombre", BodyText("hombre", "pierna"))
	assert.Equal(t, "vista-previa-tatuaje-hombre-brazo.jpeg", PreviewFilename("hombre", "brazo"))
}
