package httpapi

import (
	"bytes"
	"fmt"
	"net/http"
	"strconv"

	"github.com/gorilla/mux"

	"github.com/R3E-Network/studio_layer/internal/app/domain/consent"
	"github.com/R3E-Network/studio_layer/internal/app/domain/flash"
	"github.com/R3E-Network/studio_layer/internal/app/domain/medical"
	"github.com/R3E-Network/studio_layer/internal/app/domain/review"
	medicalsvc "github.com/R3E-Network/studio_layer/internal/app/services/medical"
)

func (h *handler) registerFlash(r *mux.Router) {
	r.Handle("/flash", public(h.listFlash)).Methods(http.MethodGet)
	r.Handle("/flash", admin(h.addFlash)).Methods(http.MethodPost)
	r.Handle("/flash/{id}", admin(h.updateFlash)).Methods(http.MethodPut)
	r.Handle("/flash/{id}", admin(h.deleteFlash)).Methods(http.MethodDelete)
	r.Handle("/flash/{id}/toggle", admin(h.toggleFlash)).Methods(http.MethodPost)
}

// listFlash shows only available designs unless the caller is staff.
func (h *handler) listFlash(w http.ResponseWriter, r *http.Request) {
	designs, err := h.app.Flash.List(r.Context(), studioID(r), isAdmin(r))
	if err != nil {
		h.fail(w, r, err)
		return
	}
	if designs == nil {
		designs = []flash.Design{}
	}
	h.ok(w, designs)
}

func (h *handler) addFlash(w http.ResponseWriter, r *http.Request) {
	var d flash.Design
	if !h.decode(w, r, &d) {
		return
	}
	d.ID = ""
	d.StudioID = studioID(r)
	created, err := h.app.Flash.Add(r.Context(), d)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	h.created(w, created)
}

func (h *handler) updateFlash(w http.ResponseWriter, r *http.Request) {
	var d flash.Design
	if !h.decode(w, r, &d) {
		return
	}
	d.ID = pathVar(r, "id")
	d.StudioID = studioID(r)
	updated, err := h.app.Flash.Update(r.Context(), d)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	h.ok(w, updated)
}

func (h *handler) deleteFlash(w http.ResponseWriter, r *http.Request) {
	if err := h.app.Flash.Delete(r.Context(), studioID(r), pathVar(r, "id")); err != nil {
		h.fail(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *handler) toggleFlash(w http.ResponseWriter, r *http.Request) {
	d, err := h.app.Flash.ToggleAvailability(r.Context(), studioID(r), pathVar(r, "id"))
	if err != nil {
		h.fail(w, r, err)
		return
	}
	h.ok(w, d)
}

func (h *handler) registerConsents(r *mux.Router) {
	r.Handle("/consents", authed(h.listConsents)).Methods(http.MethodGet)
	r.Handle("/consents", admin(h.sendConsent)).Methods(http.MethodPost)
	r.Handle("/consents/template", admin(h.consentTemplate)).Methods(http.MethodGet)
	r.Handle("/consents/{id}", authed(h.getConsent)).Methods(http.MethodGet)
	r.Handle("/consents/{id}/sign", authed(h.signConsent)).Methods(http.MethodPost)
}

func (h *handler) listConsents(w http.ResponseWriter, r *http.Request) {
	if isAdmin(r) {
		all, err := h.app.Consents.ListAll(r.Context(), studioID(r))
		if err != nil {
			h.fail(w, r, err)
			return
		}
		if all == nil {
			all = []consent.Consent{}
		}
		h.ok(w, all)
		return
	}
	username, _ := session(r)
	pending, signed, err := h.app.Consents.ListForUser(r.Context(), studioID(r), username)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	h.ok(w, map[string][]consent.Consent{"pending": pending, "signed": signed})
}

func (h *handler) sendConsent(w http.ResponseWriter, r *http.Request) {
	var body struct {
		ClientID string `json:"client_id"`
		Content  string `json:"content"`
	}
	if !h.decode(w, r, &body) {
		return
	}
	c, err := h.app.Consents.Send(r.Context(), studioID(r), body.ClientID, body.Content)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	h.created(w, c)
}

func (h *handler) consentTemplate(w http.ResponseWriter, r *http.Request) {
	h.ok(w, map[string]string{"template": h.app.Consents.Template(studioID(r))})
}

// ownerFilter restricts consent access to the caller's own documents unless
// the caller is staff.
func ownerFilter(r *http.Request) string {
	if isAdmin(r) {
		return ""
	}
	username, _ := session(r)
	return username
}

func (h *handler) getConsent(w http.ResponseWriter, r *http.Request) {
	c, err := h.app.Consents.Get(r.Context(), studioID(r), pathVar(r, "id"), ownerFilter(r))
	if err != nil {
		h.fail(w, r, err)
		return
	}
	h.ok(w, c)
}

func (h *handler) signConsent(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Signature string `json:"signature"`
	}
	if !h.decode(w, r, &body) {
		return
	}
	c, err := h.app.Consents.Sign(r.Context(), studioID(r), pathVar(r, "id"), ownerFilter(r), body.Signature)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	h.ok(w, c)
}

func (h *handler) registerMedical(r *mux.Router) {
	r.Handle("/medical", authed(h.createMedical)).Methods(http.MethodPost)
	r.Handle("/medical", admin(h.listMedical)).Methods(http.MethodGet)
	r.Handle("/medical/conditions", public(h.medicalConditions)).Methods(http.MethodGet)
	r.Handle("/medical/{id}", admin(h.getMedical)).Methods(http.MethodGet)
	r.Handle("/medical/{id}/pdf", admin(h.medicalPDF)).Methods(http.MethodGet)
}

func (h *handler) createMedical(w http.ResponseWriter, r *http.Request) {
	var form medical.History
	if !h.decode(w, r, &form) {
		return
	}
	form.ID = ""
	form.StudioID = studioID(r)
	if !isAdmin(r) {
		username, _ := session(r)
		form.ClientUsername = username
	}
	created, err := h.app.Medical.Create(r.Context(), form)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	h.created(w, created)
}

func (h *handler) listMedical(w http.ResponseWriter, r *http.Request) {
	list, err := h.app.Medical.Search(r.Context(), studioID(r), r.URL.Query().Get("q"))
	if err != nil {
		h.fail(w, r, err)
		return
	}
	if list == nil {
		list = []medical.History{}
	}
	h.ok(w, list)
}

func (h *handler) medicalConditions(w http.ResponseWriter, r *http.Request) {
	h.ok(w, medical.Conditions)
}

func (h *handler) getMedical(w http.ResponseWriter, r *http.Request) {
	form, err := h.app.Medical.Get(r.Context(), studioID(r), pathVar(r, "id"))
	if err != nil {
		h.fail(w, r, err)
		return
	}
	h.ok(w, form)
}

func (h *handler) medicalPDF(w http.ResponseWriter, r *http.Request) {
	form, err := h.app.Medical.Get(r.Context(), studioID(r), pathVar(r, "id"))
	if err != nil {
		h.fail(w, r, err)
		return
	}
	st, _ := h.app.Studios.Studio(studioID(r))
	var buf bytes.Buffer
	if err := medicalsvc.WritePDF(&buf, st.Name, form); err != nil {
		h.fail(w, r, err)
		return
	}
	w.Header().Set("Content-Type", "application/pdf")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", medicalsvc.PDFFilename(form)))
	w.Header().Set("Content-Length", strconv.Itoa(buf.Len()))
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(buf.Bytes())
}

func (h *handler) registerReviews(r *mux.Router) {
	r.Handle("/reviews", public(h.listReviews)).Methods(http.MethodGet)
	r.Handle("/reviews", authed(h.createReview)).Methods(http.MethodPost)
}

func (h *handler) listReviews(w http.ResponseWriter, r *http.Request) {
	list, err := h.app.Reviews.List(r.Context(), studioID(r))
	if err != nil {
		h.fail(w, r, err)
		return
	}
	if list == nil {
		list = []review.Review{}
	}
	h.ok(w, list)
}

func (h *handler) createReview(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Rating  int    `json:"rating"`
		Comment string `json:"comment"`
	}
	if !h.decode(w, r, &body) {
		return
	}
	username, _ := session(r)
	rv, err := h.app.Reviews.Create(r.Context(), studioID(r), username, body.Rating, body.Comment)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	h.created(w, rv)
}
