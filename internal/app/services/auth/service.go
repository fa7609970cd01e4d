// Package auth handles studio logins: configured staff accounts, client
// accounts stored in the client book, registration and password recovery.
package auth

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/R3E-Network/studio_layer/internal/app/domain/client"
	"github.com/R3E-Network/studio_layer/internal/app/services/clients"
	"github.com/R3E-Network/studio_layer/internal/app/storage"
	"github.com/R3E-Network/studio_layer/internal/config"
	apperrors "github.com/R3E-Network/studio_layer/internal/errors"
	"github.com/R3E-Network/studio_layer/pkg/logger"
)

// Messages shown on the login screen.
const (
	MsgUserNotFound    = "USUARIO NO ENCONTRADO"
	MsgWrongPassword   = "CONTRASEÑA INCORRECTA"
	MsgMissingFields   = "TODOS LOS CAMPOS SON OBLIGATORIOS"
	MsgAlreadyExists   = "EL USUARIO O CORREO YA EXISTEN"
	MsgEmailUnknown    = "CORREO NO REGISTRADO EN EL SISTEMA"
	MsgPasswordFailed  = "ERROR AL ACTUALIZAR CONTRASEÑA"
	MsgPasswordChanged = "¡CONTRASEÑA ACTUALIZADA CON ÉXITO!"
)

const registrationNote = "Registro vía App"

// Session is returned by a successful login or registration.
type Session struct {
	Token     string    `json:"token"`
	ExpiresAt time.Time `json:"expires_at"`
	UserID    string    `json:"user_id"`
	Username  string    `json:"username"`
	Role      string    `json:"role"`
	Studio    string    `json:"studio"`
}

// Service authenticates studio users.
type Service struct {
	store   storage.ClientStore
	studios *config.StudioConfig
	tokens  *Tokens
	log     *logger.Logger
}

// New constructs an auth service.
func New(store storage.ClientStore, studios *config.StudioConfig, tokens *Tokens, log *logger.Logger) *Service {
	if log == nil {
		log = logger.NewDefault("auth")
	}
	if studios == nil {
		studios = config.DefaultStudioConfig()
	}
	return &Service{store: store, studios: studios, tokens: tokens, log: log}
}

// Tokens exposes the signer used for sessions.
func (s *Service) Tokens() *Tokens { return s.tokens }

// Login checks the studio's staff accounts first, then the client book.
// Legacy plain-text client passwords are upgraded to bcrypt on success.
func (s *Service) Login(ctx context.Context, studioID, username, password string) (Session, error) {
	username = client.NormalizeUsername(username)
	if username == "" || password == "" {
		return Session{}, apperrors.Validation(MsgMissingFields)
	}

	if admin, ok := s.findAdmin(studioID, username); ok && adminPasswordMatches(admin, password) {
		s.log.WithContext(ctx).WithField("username", username).Info("staff login")
		return s.session("admin:"+username, username, client.RoleAdmin, studioID)
	}

	c, err := s.store.FindClientByUsername(ctx, studioID, username)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			s.log.LogSecurityEvent(ctx, "login_unknown_user", map[string]interface{}{"username": username, "studio": studioID})
			return Session{}, apperrors.Unauthorized(MsgUserNotFound)
		}
		return Session{}, err
	}
	if !clients.CheckPassword(c.Password, password) {
		s.log.LogSecurityEvent(ctx, "login_bad_password", map[string]interface{}{"username": username, "studio": studioID})
		return Session{}, apperrors.Unauthorized(MsgWrongPassword)
	}

	if !clients.IsHashed(c.Password) {
		if hash, err := clients.HashPassword(password); err == nil {
			c.Password = hash
			if _, err := s.store.UpdateClient(ctx, c); err != nil {
				s.log.WithError(err).WithField("client_id", c.ID).Warn("password rehash failed")
			}
		}
	}

	role := c.Role
	if role == "" {
		role = client.RoleClient
	}
	return s.session(c.ID, c.Username, role, studioID)
}

// RegisterRequest is the sign-up form.
type RegisterRequest struct {
	FullName string `json:"full_name"`
	Username string `json:"username"`
	Email    string `json:"email"`
	WhatsApp string `json:"whatsapp"`
	Password string `json:"password"`
}

// Register creates a client login and signs the user in.
func (s *Service) Register(ctx context.Context, studioID string, req RegisterRequest) (Session, error) {
	if req.FullName == "" || req.Username == "" || req.Email == "" || req.WhatsApp == "" || req.Password == "" {
		return Session{}, apperrors.Validation(MsgMissingFields)
	}
	username := client.NormalizeUsername(req.Username)
	if _, ok := s.findAdmin(studioID, username); ok {
		return Session{}, apperrors.Conflict(MsgAlreadyExists)
	}
	email := strings.ToLower(strings.TrimSpace(req.Email))
	if _, err := s.store.FindClientByContact(ctx, studioID, email); err == nil {
		return Session{}, apperrors.Conflict(MsgAlreadyExists)
	} else if !errors.Is(err, storage.ErrNotFound) {
		return Session{}, err
	}

	hash, err := clients.HashPassword(req.Password)
	if err != nil {
		return Session{}, err
	}
	created, err := s.store.CreateClient(ctx, client.Client{
		StudioID: studioID,
		Name:     strings.TrimSpace(req.FullName),
		Username: username,
		Contact:  email,
		WhatsApp: strings.TrimSpace(req.WhatsApp),
		Password: hash,
		Role:     client.RoleClient,
		Notes:    registrationNote,
	})
	if err != nil {
		if errors.Is(err, storage.ErrConflict) {
			return Session{}, apperrors.Conflict(MsgAlreadyExists)
		}
		return Session{}, err
	}
	s.log.WithContext(ctx).WithField("username", username).Info("client registered")
	return s.session(created.ID, created.Username, client.RoleClient, studioID)
}

// Recover sets a new password for the client registered with email.
func (s *Service) Recover(ctx context.Context, studioID, email, newPassword string) (string, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	if email == "" || newPassword == "" {
		return "", apperrors.Validation(MsgMissingFields)
	}
	c, err := s.store.FindClientByContact(ctx, studioID, email)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return "", apperrors.NotFound(MsgEmailUnknown)
		}
		return "", apperrors.Internal(MsgPasswordFailed, err)
	}
	hash, err := clients.HashPassword(newPassword)
	if err != nil {
		return "", apperrors.Internal(MsgPasswordFailed, err)
	}
	c.Password = hash
	if _, err := s.store.UpdateClient(ctx, c); err != nil {
		return "", apperrors.Internal(MsgPasswordFailed, err)
	}
	s.log.LogSecurityEvent(ctx, "password_recovered", map[string]interface{}{"client_id": c.ID, "studio": studioID})
	return MsgPasswordChanged, nil
}

func (s *Service) findAdmin(studioID, username string) (config.Admin, bool) {
	studio, ok := s.studios.Studio(studioID)
	if !ok {
		return config.Admin{}, false
	}
	for _, a := range studio.Admins {
		if a.Username == username {
			return a, true
		}
	}
	return config.Admin{}, false
}

func adminPasswordMatches(a config.Admin, password string) bool {
	if a.PasswordHash != "" {
		return clients.CheckPassword(a.PasswordHash, password)
	}
	return clients.CheckPassword(a.Password, password)
}

func (s *Service) session(userID, username, role, studioID string) (Session, error) {
	token, expires, err := s.tokens.Issue(userID, username, role, studioID)
	if err != nil {
		return Session{}, apperrors.Internal("could not create session", err)
	}
	return Session{
		Token:     token,
		ExpiresAt: expires,
		UserID:    userID,
		Username:  username,
		Role:      role,
		Studio:    studioID,
	}, nil
}
