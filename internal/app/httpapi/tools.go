package httpapi

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/mux"
	"github.com/gorilla/websocket"

	"github.com/R3E-Network/studio_layer/internal/app/domain/notification"
	"github.com/R3E-Network/studio_layer/internal/app/metrics"
	"github.com/R3E-Network/studio_layer/internal/app/services/budget"
	gallerysvc "github.com/R3E-Network/studio_layer/internal/app/services/gallery"
	apperrors "github.com/R3E-Network/studio_layer/internal/errors"
)

const (
	defaultNotificationLimit = 20
	wsBuffer                 = 16
	wsWriteWait              = 10 * time.Second
	wsPongWait               = 60 * time.Second
	wsPingPeriod             = wsPongWait * 9 / 10
)

func (h *handler) registerDashboard(r *mux.Router) {
	r.Handle("/dashboard", admin(h.dashboard)).Methods(http.MethodGet)
	r.Handle("/notifications", admin(h.notifications)).Methods(http.MethodGet)
	r.Handle("/notifications/ws", authed(h.notificationSocket)).Methods(http.MethodGet)
}

func (h *handler) dashboard(w http.ResponseWriter, r *http.Request) {
	stats, err := h.app.Dashboard.Stats(r.Context(), studioID(r))
	if err != nil {
		h.fail(w, r, err)
		return
	}
	h.ok(w, stats)
}

func (h *handler) notifications(w http.ResponseWriter, r *http.Request) {
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	if limit <= 0 {
		limit = defaultNotificationLimit
	}
	h.ok(w, h.app.Dashboard.Notifications(studioID(r), limit))
}

// notificationSocket streams live notifications. Staff receive the admin
// feed; clients receive the notifications addressed to their username.
func (h *handler) notificationSocket(w http.ResponseWriter, r *http.Request) {
	username, role := session(r)
	audience := username
	if isAdmin(r) {
		audience = notification.AudienceAdmin
	}

	upgrader := websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin:     h.checkOrigin,
	}
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.log.WithContext(r.Context()).WithError(err).Warn("websocket upgrade failed")
		return
	}
	defer conn.Close()

	studio := studioID(r)
	events, cancel := h.app.Hub.Subscribe(studio, audience, wsBuffer)
	defer cancel()
	metrics.WebsocketConnected(1)
	defer metrics.WebsocketConnected(-1)

	log := h.log.WithContext(r.Context()).WithFields(map[string]interface{}{
		"audience": audience,
		"role":     role,
	})
	log.Debug("notification socket opened")

	// The read loop only services control frames and detects close.
	closed := make(chan struct{})
	conn.SetReadLimit(512)
	_ = conn.SetReadDeadline(time.Now().Add(wsPongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(wsPongWait))
	})
	go func() {
		defer close(closed)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	ticker := time.NewTicker(wsPingPeriod)
	defer ticker.Stop()
	for {
		select {
		case <-closed:
			log.Debug("notification socket closed")
			return
		case <-r.Context().Done():
			return
		case n, ok := <-events:
			if !ok {
				return
			}
			_ = conn.SetWriteDeadline(time.Now().Add(wsWriteWait))
			if err := conn.WriteJSON(n); err != nil {
				log.WithError(err).Debug("notification write failed")
				return
			}
		case <-ticker.C:
			_ = conn.SetWriteDeadline(time.Now().Add(wsWriteWait))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// checkOrigin applies the CORS allow list to WebSocket upgrades. Requests
// without an Origin header come from non-browser clients.
func (h *handler) checkOrigin(r *http.Request) bool {
	origin := r.Header.Get("Origin")
	if origin == "" || len(h.origins) == 0 {
		return true
	}
	return h.cors.Allowed(origin)
}

func (h *handler) registerAI(r *mux.Router) {
	r.Handle("/ai/outline", authed(h.aiOutline)).Methods(http.MethodPost)
	r.Handle("/ai/preview", authed(h.aiPreview)).Methods(http.MethodPost)
	r.Handle("/ai/designs", authed(h.aiDesigns)).Methods(http.MethodPost)
	r.Handle("/ai/consult", authed(h.aiConsult)).Methods(http.MethodPost)
	r.Handle("/ai/history", authed(h.aiHistory)).Methods(http.MethodGet)
	r.Handle("/ai/history", authed(h.aiClearHistory)).Methods(http.MethodDelete)
}

func (h *handler) aiOutline(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Image string `json:"image"`
	}
	if !h.decode(w, r, &body) {
		return
	}
	img, err := h.app.AI.Outline(r.Context(), body.Image)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	h.ok(w, map[string]string{"image": img})
}

func (h *handler) aiPreview(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Image    string `json:"image"`
		Gender   string `json:"gender"`
		BodyPart string `json:"body_part"`
	}
	if !h.decode(w, r, &body) {
		return
	}
	preview, err := h.app.AI.Preview(r.Context(), body.Image, body.Gender, body.BodyPart)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	h.ok(w, preview)
}

func (h *handler) aiDesigns(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Idea string `json:"idea"`
	}
	if !h.decode(w, r, &body) {
		return
	}
	images, err := h.app.AI.Designs(r.Context(), body.Idea)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	h.ok(w, map[string][]string{"images": images})
}

func (h *handler) aiConsult(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Question string `json:"question"`
		Image    string `json:"image"`
	}
	if !h.decode(w, r, &body) {
		return
	}
	username, _ := session(r)
	answer, err := h.app.AI.Consult(r.Context(), studioID(r), username, body.Question, body.Image)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	h.ok(w, answer)
}

func (h *handler) aiHistory(w http.ResponseWriter, r *http.Request) {
	username, _ := session(r)
	msgs, err := h.app.AI.History(r.Context(), studioID(r), username)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	h.ok(w, msgs)
}

func (h *handler) aiClearHistory(w http.ResponseWriter, r *http.Request) {
	username, _ := session(r)
	if err := h.app.AI.ClearHistory(r.Context(), studioID(r), username); err != nil {
		h.fail(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *handler) registerStudioTools(r *mux.Router) {
	r.Handle("/gallery", public(h.listGallery)).Methods(http.MethodGet)
	r.Handle("/gallery", authed(h.saveGallery)).Methods(http.MethodPost)
	r.Handle("/budget", public(h.estimateBudget)).Methods(http.MethodGet)
	r.Handle("/aftercare", public(h.aftercare)).Methods(http.MethodGet)
	r.Handle("/tips/today", public(h.tipOfTheDay)).Methods(http.MethodGet)
}

func (h *handler) listGallery(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	items, err := h.app.Gallery.List(r.Context(), studioID(r), gallerysvc.Query{
		Style: q.Get("style"),
		Sort:  q.Get("sort"),
	})
	if err != nil {
		h.fail(w, r, err)
		return
	}
	h.ok(w, items)
}

func (h *handler) saveGallery(w http.ResponseWriter, r *http.Request) {
	var req gallerysvc.SaveRequest
	if !h.decode(w, r, &req) {
		return
	}
	item, err := h.app.Gallery.Save(r.Context(), studioID(r), req)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	h.created(w, item)
}

// estimateBudget reads size_cm, style and color from the query string.
func (h *handler) estimateBudget(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	size, err := strconv.Atoi(q.Get("size_cm"))
	if err != nil {
		h.fail(w, r, apperrors.Validation("El tamaño debe ser un número entero de centímetros."))
		return
	}
	color, _ := strconv.ParseBool(q.Get("color"))
	est, err := h.app.Budget.Estimate(budget.Request{SizeCM: size, Style: q.Get("style"), Color: color})
	if err != nil {
		h.fail(w, r, err)
		return
	}
	h.ok(w, map[string]any{"estimate": est, "styles": h.app.Budget.Styles()})
}

func (h *handler) aftercare(w http.ResponseWriter, r *http.Request) {
	h.ok(w, h.app.Budget.Aftercare())
}

func (h *handler) tipOfTheDay(w http.ResponseWriter, r *http.Request) {
	now := h.now().UTC()
	h.ok(w, map[string]string{"date": now.Format("2006-01-02"), "tip": h.app.Budget.Tip(now)})
}
