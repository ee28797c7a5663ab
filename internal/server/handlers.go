package server

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/smukkama/matricare/internal/directory"
	"github.com/smukkama/matricare/internal/models"
	"github.com/smukkama/matricare/internal/session"
)

const (
	warningDisconnected = "Unable to reach the vitals service. Showing the last known data."
	warningNoData       = "No vitals data available yet."
)

type loginRequest struct {
	License string `json:"license"`
}

type loginResponse struct {
	Token   string           `json:"token"`
	Doctor  *models.Doctor   `json:"doctor"`
	Session *session.Session `json:"session"`
}

type familyRequest struct {
	Emails []string `json:"emails"`
}

type noteRequest struct {
	Text string `json:"text"`
}

type successResponse struct {
	Success bool `json:"success"`
}

// dashboardResponse is the snapshot plus connectivity status.
type dashboardResponse struct {
	models.Snapshot
	Connected bool      `json:"connected"`
	Warning   string    `json:"warning,omitempty"`
	PolledAt  time.Time `json:"polledAt"`
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

func decodeJSON(w http.ResponseWriter, r *http.Request, v interface{}) error {
	r.Body = http.MaxBytesReader(w, r.Body, 1<<20)
	return json.NewDecoder(r.Body).Decode(v)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	body := map[string]interface{}{"status": "ok"}
	if st := s.deps.State; st != nil {
		body["connected"] = st.State().Connected
	}
	if s.deps.Registry != nil {
		body["subscriptions"] = s.deps.Registry.Stats()
	}
	writeJSON(w, http.StatusOK, body)
}

func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := decodeJSON(w, r, &req); err != nil || req.License == "" {
		writeError(w, http.StatusBadRequest, "license is required")
		return
	}

	doc, err := s.deps.Directory.DoctorByLicense(r.Context(), req.License)
	if errors.Is(err, directory.ErrDoctorNotFound) {
		writeError(w, http.StatusUnauthorized, "Invalid license number")
		return
	}
	if err != nil {
		s.logger.Error("doctor lookup failed", zap.Error(err))
		writeError(w, http.StatusBadGateway, "directory unavailable")
		return
	}

	sess, err := s.deps.Sessions.Start(r.Context(), doc)
	if err != nil {
		s.logger.Error("failed to start session", zap.Error(err))
		writeError(w, http.StatusServiceUnavailable, "session store unavailable")
		return
	}

	tok, err := s.deps.Tokens.SessionToken(sess.ID, s.deps.SessionTTL)
	if err != nil {
		s.logger.Error("failed to sign session token", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "failed to issue token")
		return
	}

	writeJSON(w, http.StatusOK, loginResponse{Token: tok, Doctor: doc, Session: sess})
}

func (s *Server) handleRegister(w http.ResponseWriter, r *http.Request) {
	var in directory.DoctorInput
	if err := decodeJSON(w, r, &in); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	res := s.deps.Directory.RegisterDoctor(r.Context(), in)
	status := http.StatusCreated
	if !res.Success {
		status = http.StatusBadRequest
	}
	writeJSON(w, status, res)
}

func (s *Server) handleLogout(w http.ResponseWriter, r *http.Request) {
	sess := sessionFrom(r.Context())
	if err := s.deps.Sessions.End(r.Context(), sess.ID); err != nil {
		s.logger.Error("failed to end session", zap.String("session_id", sess.ID), zap.Error(err))
		writeError(w, http.StatusServiceUnavailable, "session store unavailable")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleSession(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, sessionFrom(r.Context()))
}

func (s *Server) handleDashboard(w http.ResponseWriter, r *http.Request) {
	st := s.deps.State.State()
	resp := dashboardResponse{
		Snapshot:  st.Snapshot,
		Connected: st.Connected,
		PolledAt:  st.UpdatedAt,
	}
	switch {
	case st.Snapshot.IsEmpty():
		resp.Warning = warningNoData
	case !st.Connected:
		resp.Warning = warningDisconnected
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleHistory(w http.ResponseWriter, r *http.Request) {
	h := s.deps.State.State().History
	if h == nil {
		h = models.History{}
	}
	writeJSON(w, http.StatusOK, h)
}

func (s *Server) handleGetPatient(w http.ResponseWriter, r *http.Request) {
	p, err := s.deps.Directory.Get(r.Context(), chi.URLParam(r, "id"))
	if errors.Is(err, directory.ErrPatientNotFound) {
		writeError(w, http.StatusNotFound, "patient not found")
		return
	}
	if err != nil {
		s.logger.Error("patient lookup failed", zap.Error(err))
		writeError(w, http.StatusBadGateway, "directory unavailable")
		return
	}
	writeJSON(w, http.StatusOK, p)
}

func (s *Server) handleAddAppointment(w http.ResponseWriter, r *http.Request) {
	var in directory.AppointmentInput
	if err := decodeJSON(w, r, &in); err != nil {
		writeJSON(w, http.StatusBadRequest, successResponse{Success: false})
		return
	}
	s.writeWriteResult(w, s.deps.Directory.AddAppointment(r.Context(), chi.URLParam(r, "id"), in))
}

func (s *Server) handleAddSymptom(w http.ResponseWriter, r *http.Request) {
	var in directory.SymptomInput
	if err := decodeJSON(w, r, &in); err != nil {
		writeJSON(w, http.StatusBadRequest, successResponse{Success: false})
		return
	}
	s.writeWriteResult(w, s.deps.Directory.AddSymptom(r.Context(), chi.URLParam(r, "id"), in))
}

func (s *Server) writeWriteResult(w http.ResponseWriter, ok bool) {
	if !ok {
		writeJSON(w, http.StatusBadGateway, successResponse{Success: false})
		return
	}
	writeJSON(w, http.StatusCreated, successResponse{Success: true})
}

func (s *Server) handleUpdateFamily(w http.ResponseWriter, r *http.Request) {
	var req familyRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	err := s.deps.Directory.UpdateFamily(r.Context(), chi.URLParam(r, "id"), req.Emails)
	if errors.Is(err, directory.ErrPatientNotFound) {
		writeError(w, http.StatusNotFound, "patient not found")
		return
	}
	if err != nil {
		s.logger.Error("family update failed", zap.Error(err))
		writeError(w, http.StatusBadGateway, "family update failed")
		return
	}
	writeJSON(w, http.StatusOK, successResponse{Success: true})
}

func (s *Server) handleNotes(w http.ResponseWriter, r *http.Request) {
	notes, err := s.deps.Sessions.Notes(r.Context(), sessionFrom(r.Context()).ID, chi.URLParam(r, "id"))
	if err != nil {
		s.writeSessionError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, notes)
}

func (s *Server) handleAddNote(w http.ResponseWriter, r *http.Request) {
	var req noteRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	note, err := s.deps.Sessions.AddNote(r.Context(), sessionFrom(r.Context()).ID, chi.URLParam(r, "id"), req.Text)
	if err != nil {
		s.writeSessionError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, note)
}

func (s *Server) handleAllNotes(w http.ResponseWriter, r *http.Request) {
	notes, err := s.deps.Sessions.AllNotes(r.Context(), sessionFrom(r.Context()).ID)
	if err != nil {
		s.writeSessionError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, notes)
}

func (s *Server) writeSessionError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, session.ErrNoSession):
		writeError(w, http.StatusUnauthorized, "session expired")
	case errors.Is(err, session.ErrEmptyNote):
		writeError(w, http.StatusBadRequest, err.Error())
	default:
		s.logger.Error("session store error", zap.Error(err))
		writeError(w, http.StatusServiceUnavailable, "session store unavailable")
	}
}
