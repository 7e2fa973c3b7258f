package api

import (
	"encoding/json"
	"fmt"
	"mime"
	"net/http"
	"strconv"
	"strings"

	"autoblog/internal/cron"
	"autoblog/pkg/host"
	"autoblog/pkg/integration"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"
)

const (
	defaultPostLimit = 20
	maxPostLimit     = 100
	maxBodyBytes     = 1 << 20
)

var validate = validator.New()

func writeJSON(w http.ResponseWriter, status int, v any) {
	integration.WriteJSON(w, status, v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	integration.WriteError(w, status, msg)
}

// handleHealth returns a simple health check response
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleCategories(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, integration.Categories())
}

func (s *Server) handleAdminPage(w http.ResponseWriter, r *http.Request) {
	m := Scope(r.Context()).Integrations()
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if err := m.RenderPage(w, r.URL.Query().Get("integration")); err != nil {
		s.logger.Error("Failed to render admin page", zap.Error(err))
		http.Error(w, "Internal server error", http.StatusInternalServerError)
	}
}

func (s *Server) handleListIntegrations(w http.ResponseWriter, r *http.Request) {
	m := Scope(r.Context()).Integrations()
	if c := r.URL.Query().Get("category"); c != "" {
		out := []integration.Summary{}
		for _, i := range m.ByCategory(integration.Category(c)) {
			out = append(out, integration.Describe(i))
		}
		writeJSON(w, http.StatusOK, out)
		return
	}
	if r.URL.Query().Get("group") != "" {
		writeJSON(w, http.StatusOK, m.Grouped())
		return
	}
	writeJSON(w, http.StatusOK, m.Summaries())
}

// IntegrationResponse is the detail view of one integration.
type IntegrationResponse struct {
	integration.Summary
	Settings integration.Settings `json:"settings"`
	Fields   []integration.Field  `json:"fields,omitempty"`
}

func (s *Server) lookup(w http.ResponseWriter, r *http.Request) integration.Integration {
	id := chi.URLParam(r, "id")
	i := Scope(r.Context()).Integrations().Get(id)
	if i == nil {
		writeError(w, http.StatusNotFound, fmt.Sprintf("integration %q not found", id))
	}
	return i
}

func (s *Server) handleGetIntegration(w http.ResponseWriter, r *http.Request) {
	i := s.lookup(w, r)
	if i == nil {
		return
	}
	resp := IntegrationResponse{Summary: integration.Describe(i), Settings: integration.PublicSettings(i)}
	if fp, ok := i.(integration.FieldProvider); ok {
		resp.Fields = fp.SettingsFields()
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleToggle(enable bool) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		i := s.lookup(w, r)
		if i == nil {
			return
		}
		m := Scope(r.Context()).Integrations()
		var ok bool
		if enable {
			ok = m.EnableIntegration(i.ID())
		} else {
			ok = m.DisableIntegration(i.ID())
		}
		if !ok {
			writeError(w, http.StatusConflict, fmt.Sprintf("integration %q could not be updated", i.ID()))
			return
		}
		s.logger.Info("Integration toggled",
			zap.String("id", i.ID()),
			zap.Bool("enabled", i.IsEnabled()),
			zap.String("subject", Subject(r.Context())))
		writeJSON(w, http.StatusOK, integration.Describe(i))
	}
}

func (s *Server) handleGetSettings(w http.ResponseWriter, r *http.Request) {
	i := s.lookup(w, r)
	if i == nil {
		return
	}
	writeJSON(w, http.StatusOK, integration.PublicSettings(i))
}

// handleUpdateSettings accepts a JSON object or a settings form post. The
// enabled flag is ignored here; it changes only through enable and disable,
// which run the lifecycle callbacks.
func (s *Server) handleUpdateSettings(w http.ResponseWriter, r *http.Request) {
	i := s.lookup(w, r)
	if i == nil {
		return
	}
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)

	isForm := false
	var values integration.Settings
	ct, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))
	switch ct {
	case "application/json":
		if err := json.NewDecoder(r.Body).Decode(&values); err != nil {
			writeError(w, http.StatusBadRequest, "invalid JSON body")
			return
		}
	case "application/x-www-form-urlencoded", "multipart/form-data":
		var err error
		if ct == "multipart/form-data" {
			err = r.ParseMultipartForm(maxBodyBytes)
			if r.MultipartForm != nil {
				defer func() { _ = r.MultipartForm.RemoveAll() }()
			}
		} else {
			err = r.ParseForm()
		}
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid form body")
			return
		}
		values = integration.FormSettings(i, r.PostForm)
		isForm = true
	default:
		writeError(w, http.StatusUnsupportedMediaType, "expected JSON or form data")
		return
	}
	delete(values, "enabled")

	if !i.UpdateSettings(values) {
		writeError(w, http.StatusInternalServerError, "failed to save settings")
		return
	}
	s.logger.Info("Integration settings updated",
		zap.String("id", i.ID()),
		zap.String("subject", Subject(r.Context())))

	if isForm {
		http.Redirect(w, r, integration.SettingsURL(i.ID()), http.StatusSeeOther)
		return
	}
	writeJSON(w, http.StatusOK, integration.PublicSettings(i))
}

func (s *Server) handleListPosts(w http.ResponseWriter, r *http.Request) {
	limit := defaultPostLimit
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 {
			writeError(w, http.StatusBadRequest, "invalid limit")
			return
		}
		limit = min(n, maxPostLimit)
	}
	list, err := Scope(r.Context()).Posts().List(r.Context(), limit)
	if err != nil {
		s.logger.Error("Failed to list posts", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "failed to list posts")
		return
	}
	if list == nil {
		list = []host.Post{}
	}
	writeJSON(w, http.StatusOK, list)
}

// GenerateRequest is the body of POST /api/generate.
type GenerateRequest struct {
	Topic            string `json:"topic" validate:"required,max=300"`
	Tone             string `json:"tone" validate:"omitempty,max=50"`
	WordCount        int    `json:"word_count" validate:"omitempty,min=100,max=5000"`
	Status           string `json:"status" validate:"omitempty,oneof=draft pending publish private"`
	AuthorID         int64  `json:"author_id" validate:"gte=0"`
	Category         string `json:"category" validate:"max=100"`
	UseKnowledgeBase bool   `json:"use_knowledge_base"`
}

func (s *Server) handleGenerate(w http.ResponseWriter, r *http.Request) {
	var req GenerateRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes)).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	req.Topic = strings.TrimSpace(req.Topic)
	if err := validate.Struct(req); err != nil {
		writeError(w, http.StatusUnprocessableEntity, err.Error())
		return
	}

	st := Scope(r.Context())
	id, err := st.Generator().Generate(r.Context(), host.GenerateRequest{
		Topic:            req.Topic,
		Tone:             req.Tone,
		WordCount:        req.WordCount,
		Status:           req.Status,
		AuthorID:         req.AuthorID,
		Category:         req.Category,
		UseKnowledgeBase: req.UseKnowledgeBase,
	})
	if err != nil {
		s.logger.Error("Post generation failed", zap.String("topic", req.Topic), zap.Error(err))
		writeError(w, http.StatusBadGateway, "post generation failed")
		return
	}

	post, err := st.Posts().Get(r.Context(), id)
	if err != nil {
		writeJSON(w, http.StatusCreated, map[string]any{"id": id})
		return
	}
	writeJSON(w, http.StatusCreated, map[string]any{
		"id":        id,
		"title":     post.Title,
		"status":    post.Status,
		"permalink": st.Posts().Permalink(post),
	})
}

func (s *Server) handleCronEvents(w http.ResponseWriter, r *http.Request) {
	events, err := Scope(r.Context()).Cron().Events(r.Context())
	if err != nil {
		s.logger.Error("Failed to list cron events", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "failed to list cron events")
		return
	}
	if events == nil {
		events = []cron.Event{}
	}
	writeJSON(w, http.StatusOK, events)
}

func (s *Server) handleListRoutes(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, Scope(r.Context()).Routes().List())
}

// handleIntegrationRoute dispatches /api/x/{namespace}/... to the routes
// registered by enabled integrations during Init.
func (s *Server) handleIntegrationRoute(w http.ResponseWriter, r *http.Request) {
	Scope(r.Context()).Routes().ServeHTTP(w, r)
}
