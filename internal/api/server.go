// Package api exposes the agent's state to the dashboard over a localhost
// HTTP JSON API. Handlers delegate to the core packages and never let a core
// error escape unmapped.
package api

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/leadline/leadline/internal/conv"
	"github.com/leadline/leadline/internal/crm"
	"github.com/leadline/leadline/internal/delivery"
	"github.com/leadline/leadline/internal/draft"
	"github.com/leadline/leadline/internal/optimistic"
	"github.com/leadline/leadline/internal/poll"
	"github.com/leadline/leadline/internal/popover"
	"github.com/leadline/leadline/internal/view"
	"go.uber.org/zap"
)

// Deps carries everything the handlers reach into.
type Deps struct {
	Session       string
	StorePath     string
	Conversations *view.ConversationList
	Threads       *view.Threads
	Leads         *view.LeadList
	Tracker       *delivery.Tracker
	Resolver      *conv.Resolver
	Drafts        *draft.Store
	Popover       *popover.Controller
	Guard         *optimistic.Guard
	CRM           *crm.Client
	Schedulers    []*poll.Scheduler
	Logger        *zap.Logger
}

// Server is the agent HTTP server.
type Server struct {
	http   *http.Server
	logger *zap.Logger
}

// NewServer builds the router and wraps it in an http.Server bound to listen.
// Origin is the dashboard origin allowed by CORS.
func NewServer(listen, origin string, deps Deps) *Server {
	return &Server{
		http: &http.Server{
			Addr:              listen,
			Handler:           newRouter(origin, deps),
			ReadHeaderTimeout: 5 * time.Second,
		},
		logger: deps.Logger,
	}
}

func newRouter(origin string, deps Deps) chi.Router {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: []string{origin},
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodDelete},
		AllowedHeaders: []string{"Content-Type"},
	}))

	s := &service{deps: deps}
	r.Route("/v1", func(r chi.Router) {
		r.Get("/conversations", s.listConversations)
		r.Post("/conversations/resolve", s.resolveConversation)
		r.Get("/conversations/{key}", s.getThread)
		r.Get("/conversations/{id}/tags", s.listTags)
		r.Post("/conversations/{id}/tags", s.tagLead)
		r.Delete("/tags/{id}", s.untagLead)
		r.Get("/conversations/{id}/suggested-leads", s.suggestedLeads)
		r.Post("/conversations/{id}/select", s.selectConversation)
		r.Post("/conversations/{id}/highlight", s.highlightConversation)

		r.Post("/messages", s.sendMessage)
		r.Post("/messages/retry", s.retryMessage)

		r.Get("/drafts/{key}", s.getDraft)
		r.Put("/drafts/{key}", s.putDraft)
		r.Delete("/drafts/{key}", s.deleteDraft)

		r.Get("/popover", s.getPopover)
		r.Post("/popover/open", s.openPopover)
		r.Post("/popover/minimize", s.minimizePopover)
		r.Post("/popover/restore", s.restorePopover)
		r.Post("/popover/close", s.closePopover)

		r.Get("/templates", s.listTemplates)
		r.Post("/templates", s.createTemplate)
		r.Put("/templates/{id}", s.updateTemplate)
		r.Delete("/templates/{id}", s.deleteTemplate)
		r.Post("/templates/reorder", s.reorderTemplates)
		r.Post("/templates/render", s.renderTemplate)

		r.Get("/leads", s.listLeads)
		r.Post("/leads/{id}/archive", s.archiveLead)
		r.Post("/leads/{id}/contact-date", s.bumpContactDate)
		r.Post("/leads/{id}/convert", s.convertLead)
		r.Post("/leads/{id}/select", s.selectLead)
		r.Post("/leads/{id}/expand", s.expandLead)
		r.Post("/conversations/{id}/read", s.markRead)
		r.Post("/conversations/{id}/unread", s.markUnread)

		r.Get("/status", s.agentStatus)
		r.Post("/sync/poke", s.pokeSync)
	})

	return r
}

// Start begins serving in a goroutine.
func (s *Server) Start() {
	go func() {
		s.logger.Info("api listening", zap.String("addr", s.http.Addr))
		if err := s.http.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			s.logger.Error("api server stopped", zap.Error(err))
		}
	}()
}

// Stop shuts the server down, draining in-flight requests.
func (s *Server) Stop(ctx context.Context) error {
	return s.http.Shutdown(ctx)
}

// service groups the handlers around their shared dependencies.
type service struct {
	deps Deps
}
