// Package ai wraps the generative tools: outline extraction, body previews,
// design generation and the expert consultant.
package ai

import (
	"context"
	"fmt"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"
	"google.golang.org/genai"

	"github.com/R3E-Network/studio_layer/internal/app/domain/chat"
	"github.com/R3E-Network/studio_layer/internal/app/media"
	"github.com/R3E-Network/studio_layer/internal/app/metrics"
	"github.com/R3E-Network/studio_layer/internal/app/storage"
	apperrors "github.com/R3E-Network/studio_layer/internal/errors"
	"github.com/R3E-Network/studio_layer/pkg/logger"
)

const (
	// DesignCount is how many designs one request produces.
	DesignCount = 3
	// HistoryLimit caps the stored consultant conversation per user.
	HistoryLimit = 50

	outlinePrompt = "Crea solo el trazo de este dibujo para un tatuaje, en fondo blanco y con líneas negras bien definidas. El resultado debe ser una imagen limpia y clara, ideal para usar como plantilla de tatuaje."

	consultantInstruction = "Eres un experto tatuador y consultor de materiales con décadas de experiencia. Proporciona respuestas claras, concisas y seguras para artistas del tatuaje. Enfócate en la seguridad, las mejores prácticas y recomendaciones de materiales (tipos de agujas, tintas, máquinas) para estilos específicos."
)

// Genders and body parts accepted by the previewer.
var (
	Genders   = []string{"hombre", "mujer"}
	BodyParts = []string{"brazo", "pierna", "espalda", "muslo", "pantorrilla"}
)

// Preview is a generated body placement.
type Preview struct {
	Image    string `json:"image"`
	Filename string `json:"filename"`
}

// Answer is a consultant reply.
type Answer struct {
	Text    string        `json:"text"`
	Sources []chat.Source `json:"sources,omitempty"`
}

// Service calls the Gemini models. gen may be nil, in which case every
// generation fails with an upstream error.
type Service struct {
	gen     Generator
	history storage.ChatHistoryStore
	log     *logger.Logger
	now     func() time.Time
}

// New constructs an AI service. history may be nil.
func New(gen Generator, history storage.ChatHistoryStore, log *logger.Logger) *Service {
	if log == nil {
		log = logger.NewDefault("ai")
	}
	return &Service{gen: gen, history: history, log: log, now: time.Now}
}

// Enabled reports whether a generator is configured.
func (s *Service) Enabled() bool { return s.gen != nil }

func (s *Service) generator() (Generator, error) {
	if s.gen == nil {
		return nil, apperrors.Upstream("El servicio de IA no está configurado.", nil)
	}
	return s.gen, nil
}

// Outline turns a sketch into clean stencil linework.
func (s *Service) Outline(ctx context.Context, image string) (out string, err error) {
	defer s.observe(ctx, "outline", s.now(), &err)

	if strings.TrimSpace(image) == "" {
		return "", apperrors.Validation("Por favor, selecciona una imagen primero.")
	}
	src, _, err := media.DecodeImage(image)
	if err != nil {
		return "", apperrors.Validation(err.Error())
	}
	gen, err := s.generator()
	if err != nil {
		return "", err
	}
	resp, err := gen.GenerateContent(ctx, ImageEditModel, imageWithText(src, outlinePrompt), nil)
	if err != nil {
		return "", apperrors.Upstream("Hubo un error al generar el trazo. Inténtalo de nuevo.", err)
	}
	blob, ok := firstInlineImage(resp)
	if !ok {
		return "", apperrors.Upstream("No se pudo generar el trazo. La respuesta de la IA no contiene una imagen.", nil)
	}
	return blobDataURL(blob), nil
}

// PreviewFilename is the download name of a generated preview.
func PreviewFilename(gender, bodyPart string) string {
	return fmt.Sprintf("vista-previa-tatuaje-%s-%s.jpeg", gender, bodyPart)
}

// BodyText describes the placement in the prompt, e.g. "el brazo de una mujer".
func BodyText(gender, bodyPart string) string {
	who := "un hombre"
	if gender == "mujer" {
		who = "una mujer"
	}
	return fmt.Sprintf("el %s de %s", bodyPart, who)
}

// Preview renders a design photorealistically on a body part.
func (s *Service) Preview(ctx context.Context, image, gender, bodyPart string) (out Preview, err error) {
	defer s.observe(ctx, "preview", s.now(), &err)

	if strings.TrimSpace(image) == "" {
		return Preview{}, apperrors.Validation("Por favor, sube un diseño de tatuaje primero.")
	}
	if gender == "" {
		gender = Genders[0]
	}
	if bodyPart == "" {
		bodyPart = BodyParts[0]
	}
	if !contains(Genders, gender) {
		return Preview{}, apperrors.Validation(fmt.Sprintf("género no válido: %s", gender))
	}
	if !contains(BodyParts, bodyPart) {
		return Preview{}, apperrors.Validation(fmt.Sprintf("zona del cuerpo no válida: %s", bodyPart))
	}
	src, _, err := media.DecodeImage(image)
	if err != nil {
		return Preview{}, apperrors.Validation(err.Error())
	}
	gen, err := s.generator()
	if err != nil {
		return Preview{}, err
	}

	body := BodyText(gender, bodyPart)
	prompt := fmt.Sprintf("Coloca este diseño de tatuaje de forma fotorrealista en %s. La imagen resultante debe ser de alta calidad, mostrando cómo se vería el tatuaje sobre la piel en un entorno bien iluminado.", body)
	resp, err := gen.GenerateContent(ctx, ImageEditModel, imageWithText(src, prompt), nil)
	if err != nil {
		return Preview{}, apperrors.Upstream("Hubo un error al generar la vista previa. Inténtalo de nuevo.", err)
	}
	blob, ok := firstInlineImage(resp)
	if !ok {
		return Preview{}, apperrors.Upstream(fmt.Sprintf("No se pudo generar la vista previa para %s. La IA no devolvió una imagen.", body), nil)
	}
	return Preview{Image: blobDataURL(blob), Filename: PreviewFilename(gender, bodyPart)}, nil
}

// DesignPrompt expands a short idea into the generation prompt.
func DesignPrompt(idea string) string {
	return fmt.Sprintf("Diseño de tatuaje de %s. Estilo minimalista, líneas negras, sobre fondo blanco, listo para ser tatuado.", idea)
}

// Designs generates DesignCount candidate designs in parallel. Images come
// back as JPEG data URLs in request order.
func (s *Service) Designs(ctx context.Context, idea string) (out []string, err error) {
	defer s.observe(ctx, "designs", s.now(), &err)

	idea = strings.TrimSpace(idea)
	if idea == "" {
		return nil, apperrors.Validation("Por favor, describe el tatuaje que deseas.")
	}
	gen, err := s.generator()
	if err != nil {
		return nil, err
	}

	prompt := DesignPrompt(idea)
	batches := make([][]string, DesignCount)
	g, gctx := errgroup.WithContext(ctx)
	for i := 0; i < DesignCount; i++ {
		g.Go(func() error {
			resp, err := gen.GenerateImages(gctx, ImageModel, prompt, &genai.GenerateImagesConfig{
				NumberOfImages: 1,
				OutputMIMEType: "image/jpeg",
				AspectRatio:    "1:1",
			})
			if err != nil {
				return err
			}
			for _, img := range resp.GeneratedImages {
				if img == nil || img.Image == nil || len(img.Image.ImageBytes) == 0 {
					continue
				}
				batches[i] = append(batches[i], media.ToDataURL("image/jpeg", img.Image.ImageBytes))
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, apperrors.Upstream("Hubo un error al generar los diseños. Inténtalo de nuevo.", err)
	}

	for _, b := range batches {
		out = append(out, b...)
	}
	if len(out) == 0 {
		return nil, apperrors.Upstream("La API no devolvió ninguna imagen.", nil)
	}
	return out, nil
}

// Consult asks the expert consultant a question, optionally with an image,
// and appends the exchange to the user's history.
func (s *Service) Consult(ctx context.Context, studioID, username, question, image string) (out Answer, err error) {
	defer s.observe(ctx, "consult", s.now(), &err)

	question = strings.TrimSpace(question)
	if question == "" {
		return Answer{}, apperrors.Validation("Escribe una pregunta para el consultor.")
	}
	var src media.DataURL
	hasImage := strings.TrimSpace(image) != ""
	if hasImage {
		if src, _, err = media.DecodeImage(image); err != nil {
			return Answer{}, apperrors.Validation(err.Error())
		}
	}
	gen, err := s.generator()
	if err != nil {
		return Answer{}, err
	}

	contents := s.priorTurns(ctx, studioID, username)
	parts := []*genai.Part{genai.NewPartFromText(question)}
	if hasImage {
		parts = append([]*genai.Part{genai.NewPartFromBytes(src.Data, src.MIMEType)}, parts...)
	}
	contents = append(contents, genai.NewContentFromParts(parts, genai.RoleUser))

	resp, err := gen.GenerateContent(ctx, ConsultantModel, contents, &genai.GenerateContentConfig{
		SystemInstruction: genai.NewContentFromText(consultantInstruction, genai.RoleUser),
		Tools:             []*genai.Tool{{GoogleSearch: &genai.GoogleSearch{}}},
	})
	if err != nil {
		return Answer{}, apperrors.Upstream("Error en la consultoría. Los modelos Pro requieren una API Key de pago configurada.", err)
	}
	text := ""
	if resp != nil {
		text = resp.Text()
	}
	if strings.TrimSpace(text) == "" {
		return Answer{}, apperrors.Upstream("La IA no generó una respuesta de texto.", nil)
	}
	out = Answer{Text: text, Sources: groundingSources(resp)}

	if s.history != nil && username != "" {
		now := s.now().UTC()
		if herr := s.history.AppendChatMessages(ctx, studioID, username, HistoryLimit,
			chat.Message{Role: chat.RoleUser, Text: question, HasImage: hasImage, CreatedAt: now},
			chat.Message{Role: chat.RoleModel, Text: out.Text, Sources: out.Sources, CreatedAt: now},
		); herr != nil {
			s.log.WithContext(ctx).WithError(herr).Warn("append chat history failed")
		}
	}
	return out, nil
}

// History returns a user's consultant conversation, oldest first.
func (s *Service) History(ctx context.Context, studioID, username string) ([]chat.Message, error) {
	if s.history == nil {
		return []chat.Message{}, nil
	}
	msgs, err := s.history.ListChatMessages(ctx, studioID, username)
	if err != nil {
		return nil, err
	}
	if msgs == nil {
		msgs = []chat.Message{}
	}
	return msgs, nil
}

// ClearHistory forgets a user's consultant conversation.
func (s *Service) ClearHistory(ctx context.Context, studioID, username string) error {
	if s.history == nil {
		return nil
	}
	return s.history.ClearChatMessages(ctx, studioID, username)
}

// priorTurns replays the stored text of earlier exchanges.
func (s *Service) priorTurns(ctx context.Context, studioID, username string) []*genai.Content {
	if s.history == nil || username == "" {
		return nil
	}
	msgs, err := s.history.ListChatMessages(ctx, studioID, username)
	if err != nil {
		s.log.WithContext(ctx).WithError(err).Warn("load chat history failed")
		return nil
	}
	out := make([]*genai.Content, 0, len(msgs)+1)
	for _, m := range msgs {
		role := genai.Role(genai.RoleUser)
		if m.Role == chat.RoleModel {
			role = genai.RoleModel
		}
		out = append(out, genai.NewContentFromText(m.Text, role))
	}
	return out
}

func (s *Service) observe(ctx context.Context, op string, start time.Time, err *error) {
	elapsed := s.now().Sub(start)
	metrics.RecordAIGeneration(op, elapsed, *err)
	if *err != nil && !apperrors.Is(*err, apperrors.CodeValidation) {
		s.log.WithContext(ctx).WithError(*err).WithField("operation", op).Warn("ai generation failed")
	}
}

func imageWithText(src media.DataURL, text string) []*genai.Content {
	return []*genai.Content{genai.NewContentFromParts([]*genai.Part{
		genai.NewPartFromBytes(src.Data, src.MIMEType),
		genai.NewPartFromText(text),
	}, genai.RoleUser)}
}

func blobDataURL(b *genai.Blob) string {
	mime := b.MIMEType
	if mime == "" {
		mime, _ = media.Sniff(b.Data)
	}
	return media.ToDataURL(mime, b.Data)
}

func contains(list []string, v string) bool {
	for _, item := range list {
		if item == v {
			return true
		}
	}
	return false
}
