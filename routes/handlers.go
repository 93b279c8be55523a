package routes

import (
	"context"

	"ratemylandlord-server/models"
	"ratemylandlord-server/services"

	"github.com/rs/zerolog"
)

// AuditReader lists the moderation trail of one resource.
type AuditReader interface {
	ListAudit(ctx context.Context, resourceType string, resourceID uint) ([]models.AuditLog, error)
}

// Deps are the collaborators the HTTP handlers are built from.
type Deps struct {
	Store      *services.DataStore
	Moderation *services.Moderation
	Sessions   *services.SessionStore
	Identity   services.Identity
	Handshake  *services.Handshake
	Reset      *services.PasswordReset
	Admins     services.AdminDirectory
	Audit      AuditReader
	AppURL     string
	Logger     zerolog.Logger
}

type Handlers struct {
	store      *services.DataStore
	moderation *services.Moderation
	sessions   *services.SessionStore
	identity   services.Identity
	handshake  *services.Handshake
	reset      *services.PasswordReset
	admins     services.AdminDirectory
	audit      AuditReader
	appURL     string
	logger     zerolog.Logger
}

func NewHandlers(d Deps) *Handlers {
	return &Handlers{
		store:      d.Store,
		moderation: d.Moderation,
		sessions:   d.Sessions,
		identity:   d.Identity,
		handshake:  d.Handshake,
		reset:      d.Reset,
		admins:     d.Admins,
		audit:      d.Audit,
		appURL:     d.AppURL,
		logger:     d.Logger.With().Str("component", "http").Logger(),
	}
}
