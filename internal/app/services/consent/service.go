// Package consent sends consent documents to clients and collects their
// signatures.
package consent

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/R3E-Network/studio_layer/internal/app/domain/consent"
	"github.com/R3E-Network/studio_layer/internal/app/domain/notification"
	"github.com/R3E-Network/studio_layer/internal/app/media"
	"github.com/R3E-Network/studio_layer/internal/app/services/notify"
	"github.com/R3E-Network/studio_layer/internal/app/storage"
	apperrors "github.com/R3E-Network/studio_layer/internal/errors"
	"github.com/R3E-Network/studio_layer/pkg/logger"
)

// Placeholder is replaced by the client's name when a document is sent.
const Placeholder = "[NOMBRE_CLIENTE]"

// DefaultTemplate is the studio's standard consent document.
const DefaultTemplate = "Yo, [NOMBRE_CLIENTE], acepto los términos y condiciones de Bribiesca Studio para el procedimiento de tatuaje. He sido informado de los riesgos y cuidados posteriores.\n\n" +
	"1. SOBRE LA INFORMACIÓN RECIBIDA\n" +
	"He sido informado(a) detalladamente por el profesional sobre la técnica, el diseño, la zona de aplicación y el proceso de cicatrización.\n\n" +
	"2. DECLARACIÓN DE SALUD Y RESPONSABILIDAD\n" +
	"Confirmo que he respondido con veracidad al cuestionario médico previo. Declaro que:\n" +
	"- No estoy bajo los efectos del alcohol o drogas.\n" +
	"- No padezco enfermedades infectocontagiosas no comunicadas.\n" +
	"- No tengo alergias conocidas a los materiales que no hayan sido mencionadas.\n\n" +
	"3. ACEPTACIÓN DE RIESGOS\n" +
	"Entiendo que el tatuaje conlleva riesgos de infección y cicatrización que acepto voluntariamente.\n\n" +
	"DECLARACIÓN FINAL: \"Autorizo al profesional a realizar el procedimiento.\""

// Render fills the first placeholder of template with name.
func Render(template, name string) string {
	return strings.Replace(template, Placeholder, name, 1)
}

// Templates returns the consent template configured for a studio, or "".
type Templates func(studioID string) string

// Service manages consent documents.
type Service struct {
	store     storage.ConsentStore
	clients   storage.ClientStore
	templates Templates
	pub       notify.Publisher
	log       *logger.Logger
	now       func() time.Time
}

// New constructs a consent service.
func New(store storage.ConsentStore, clients storage.ClientStore, log *logger.Logger) *Service {
	if log == nil {
		log = logger.NewDefault("consent")
	}
	return &Service{
		store:   store,
		clients: clients,
		pub:     notify.Discard{},
		log:     log,
		now:     time.Now,
	}
}

// WithTemplates installs per-studio template overrides.
func (s *Service) WithTemplates(t Templates) *Service {
	s.templates = t
	return s
}

// WithPublisher routes sent and signed events to pub.
func (s *Service) WithPublisher(pub notify.Publisher) *Service {
	if pub != nil {
		s.pub = pub
	}
	return s
}

// Template returns the document text used for studioID.
func (s *Service) Template(studioID string) string {
	if s.templates != nil {
		if t := strings.TrimSpace(s.templates(studioID)); t != "" {
			return t
		}
	}
	return DefaultTemplate
}

// Send creates a pending document for a client that has an app login.
// An empty text uses the studio template.
func (s *Service) Send(ctx context.Context, studioID, clientID, text string) (consent.Consent, error) {
	if strings.TrimSpace(clientID) == "" {
		return consent.Consent{}, apperrors.Validation("Selecciona un cliente")
	}
	c, err := s.clients.GetClient(ctx, studioID, clientID)
	if err != nil {
		return consent.Consent{}, err
	}
	username := strings.ToLower(strings.TrimSpace(c.Username))
	if username == "" {
		return consent.Consent{}, apperrors.Validation(fmt.Sprintf("ERROR: @%s NO TIENE USUARIO. Asígnale uno en 'Fichas' antes.", c.Name))
	}
	if strings.TrimSpace(text) == "" {
		text = s.Template(studioID)
	}

	created, err := s.store.CreateConsent(ctx, consent.Consent{
		StudioID:       studioID,
		ClientID:       c.ID,
		ClientUsername: username,
		ClientName:     c.Name,
		Content:        Render(text, c.Name),
		Status:         consent.StatusPending,
		CreatedAt:      s.now().UTC(),
	})
	if err != nil {
		return consent.Consent{}, err
	}
	s.log.WithContext(ctx).WithField("consent_id", created.ID).Infof("consent sent to @%s", username)
	s.pub.Publish(ctx, notification.Notification{
		StudioID: studioID,
		Kind:     notification.KindConsentSent,
		Audience: username,
		Message:  notify.MsgNewDocument,
		Ref:      created.ID,
	})
	return created, nil
}

// ListAll returns every document of the studio, newest first.
func (s *Service) ListAll(ctx context.Context, studioID string) ([]consent.Consent, error) {
	all, err := s.store.ListConsents(ctx, studioID)
	if err != nil {
		return nil, err
	}
	newestFirst(all)
	return all, nil
}

// ListForUser returns a client's documents, newest first, split by status.
func (s *Service) ListForUser(ctx context.Context, studioID, username string) (pending, signed []consent.Consent, err error) {
	all, err := s.store.ListConsentsByUsername(ctx, studioID, strings.ToLower(strings.TrimSpace(username)))
	if err != nil {
		return nil, nil, err
	}
	newestFirst(all)
	pending = []consent.Consent{}
	signed = []consent.Consent{}
	for _, c := range all {
		switch c.Status {
		case consent.StatusPending:
			pending = append(pending, c)
		case consent.StatusSigned:
			signed = append(signed, c)
		}
	}
	return pending, signed, nil
}

// Get fetches one document. A non-empty username restricts access to that
// client's own documents.
func (s *Service) Get(ctx context.Context, studioID, id, username string) (consent.Consent, error) {
	c, err := s.store.GetConsent(ctx, studioID, id)
	if err != nil {
		return consent.Consent{}, err
	}
	if username != "" && c.ClientUsername != strings.ToLower(username) {
		return consent.Consent{}, apperrors.Forbidden("")
	}
	return c, nil
}

// Sign stores a PNG signature on a pending document. A non-empty username
// must own the document.
func (s *Service) Sign(ctx context.Context, studioID, id, username, signature string) (consent.Consent, error) {
	c, err := s.Get(ctx, studioID, id, username)
	if err != nil {
		return consent.Consent{}, err
	}
	if c.Status == consent.StatusSigned {
		return consent.Consent{}, apperrors.Conflict("El documento ya fue firmado.")
	}
	sig, err := media.ParseDataURL(signature)
	if err != nil {
		return consent.Consent{}, apperrors.Validation(err.Error())
	}
	if sig.MIMEType != "image/png" || len(sig.Data) == 0 {
		return consent.Consent{}, apperrors.Validation("La firma debe ser una imagen PNG.")
	}

	updated, err := s.store.SignConsent(ctx, studioID, c.ID, signature, s.now().UTC())
	if errors.Is(err, storage.ErrConflict) {
		return consent.Consent{}, apperrors.Conflict("El documento ya fue firmado.")
	}
	if err != nil {
		return consent.Consent{}, err
	}
	s.log.WithContext(ctx).WithField("consent_id", id).Info("consent signed")
	s.pub.Publish(ctx, notification.Notification{
		StudioID: studioID,
		Kind:     notification.KindConsentSigned,
		Audience: notification.AudienceAdmin,
		Message:  notify.SignedMessage(updated.ClientName),
		Ref:      updated.ID,
	})
	return updated, nil
}

func newestFirst(list []consent.Consent) {
	sort.SliceStable(list, func(i, j int) bool { return list[i].CreatedAt.After(list[j].CreatedAt) })
}
