package httpapi

import (
	"net/http"
	"strconv"

	"github.com/gorilla/mux"

	"github.com/R3E-Network/studio_layer/internal/app/domain/client"
	"github.com/R3E-Network/studio_layer/internal/app/domain/inventory"
	"github.com/R3E-Network/studio_layer/internal/app/services/clients"
	apperrors "github.com/R3E-Network/studio_layer/internal/errors"
)

func (h *handler) registerClients(r *mux.Router) {
	r.Handle("/clients", admin(h.listClients)).Methods(http.MethodGet)
	r.Handle("/clients", admin(h.addClient)).Methods(http.MethodPost)
	r.Handle("/clients/{id}", admin(h.getClient)).Methods(http.MethodGet)
	r.Handle("/clients/{id}", admin(h.updateClient)).Methods(http.MethodPut, http.MethodPatch)
	r.Handle("/clients/{id}", admin(h.deleteClient)).Methods(http.MethodDelete)
	r.Handle("/profile", authed(h.profile)).Methods(http.MethodGet)
	r.Handle("/profile", authed(h.updateProfile)).Methods(http.MethodPut)
}

func (h *handler) listClients(w http.ResponseWriter, r *http.Request) {
	list, err := h.app.Clients.Search(r.Context(), studioID(r), r.URL.Query().Get("q"))
	if err != nil {
		h.fail(w, r, err)
		return
	}
	h.ok(w, list)
}

func (h *handler) addClient(w http.ResponseWriter, r *http.Request) {
	var c client.Client
	if !h.decode(w, r, &c) {
		return
	}
	c.ID = ""
	c.StudioID = studioID(r)
	created, err := h.app.Clients.Add(r.Context(), c)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	h.created(w, created)
}

func (h *handler) getClient(w http.ResponseWriter, r *http.Request) {
	c, err := h.app.Clients.Get(r.Context(), studioID(r), pathVar(r, "id"))
	if err != nil {
		h.fail(w, r, err)
		return
	}
	h.ok(w, c)
}

func (h *handler) updateClient(w http.ResponseWriter, r *http.Request) {
	var p clients.Patch
	if !h.decode(w, r, &p) {
		return
	}
	c, err := h.app.Clients.Update(r.Context(), studioID(r), pathVar(r, "id"), p)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	h.ok(w, c)
}

func (h *handler) deleteClient(w http.ResponseWriter, r *http.Request) {
	if err := h.app.Clients.Delete(r.Context(), studioID(r), pathVar(r, "id")); err != nil {
		h.fail(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// profile serves the signed-in client's own record. Staff logins have no
// client record and get a minimal view.
func (h *handler) profile(w http.ResponseWriter, r *http.Request) {
	username, role := session(r)
	if role == client.RoleAdmin {
		h.ok(w, client.Client{StudioID: studioID(r), Name: username, Username: username, Role: role})
		return
	}
	c, err := h.app.Clients.Profile(r.Context(), studioID(r), username)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	h.ok(w, c)
}

func (h *handler) updateProfile(w http.ResponseWriter, r *http.Request) {
	username, role := session(r)
	if role == client.RoleAdmin {
		h.fail(w, r, apperrors.Forbidden("El perfil del personal se administra en la configuración del estudio."))
		return
	}
	var u clients.ProfileUpdate
	if !h.decode(w, r, &u) {
		return
	}
	c, err := h.app.Clients.UpdateProfile(r.Context(), studioID(r), username, u)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	h.ok(w, c)
}

func (h *handler) registerInventory(r *mux.Router) {
	r.Handle("/inventory", admin(h.listInventory)).Methods(http.MethodGet)
	r.Handle("/inventory", admin(h.addInventory)).Methods(http.MethodPost)
	r.Handle("/inventory/{id}", admin(h.updateInventory)).Methods(http.MethodPut)
	r.Handle("/inventory/{id}", admin(h.deleteInventory)).Methods(http.MethodDelete)
	r.Handle("/inventory/{id}/stock", admin(h.adjustStock)).Methods(http.MethodPost)
}

func (h *handler) listInventory(w http.ResponseWriter, r *http.Request) {
	var (
		items []inventory.Item
		err   error
	)
	if low, _ := strconv.ParseBool(r.URL.Query().Get("low")); low {
		items, err = h.app.Inventory.LowStock(r.Context(), studioID(r))
	} else {
		items, err = h.app.Inventory.List(r.Context(), studioID(r))
	}
	if err != nil {
		h.fail(w, r, err)
		return
	}
	if items == nil {
		items = []inventory.Item{}
	}
	h.ok(w, items)
}

func (h *handler) addInventory(w http.ResponseWriter, r *http.Request) {
	var item inventory.Item
	if !h.decode(w, r, &item) {
		return
	}
	item.ID = ""
	item.StudioID = studioID(r)
	created, err := h.app.Inventory.Add(r.Context(), item)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	h.created(w, created)
}

func (h *handler) updateInventory(w http.ResponseWriter, r *http.Request) {
	var item inventory.Item
	if !h.decode(w, r, &item) {
		return
	}
	item.ID = pathVar(r, "id")
	item.StudioID = studioID(r)
	updated, err := h.app.Inventory.Update(r.Context(), item)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	h.ok(w, updated)
}

func (h *handler) deleteInventory(w http.ResponseWriter, r *http.Request) {
	if err := h.app.Inventory.Delete(r.Context(), studioID(r), pathVar(r, "id")); err != nil {
		h.fail(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// adjustStock applies {"delta": n} or sets {"quantity": n}.
func (h *handler) adjustStock(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Delta    *int `json:"delta"`
		Quantity *int `json:"quantity"`
	}
	if !h.decode(w, r, &body) {
		return
	}
	var (
		item inventory.Item
		err  error
	)
	switch {
	case body.Delta != nil:
		item, err = h.app.Inventory.AdjustStock(r.Context(), studioID(r), pathVar(r, "id"), *body.Delta)
	case body.Quantity != nil:
		item, err = h.app.Inventory.SetStock(r.Context(), studioID(r), pathVar(r, "id"), *body.Quantity)
	default:
		err = apperrors.Validation("Indica delta o quantity.")
	}
	if err != nil {
		h.fail(w, r, err)
		return
	}
	h.ok(w, item)
}
