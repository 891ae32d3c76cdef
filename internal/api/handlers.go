package api

import (
	"encoding/json"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog"
	"github.com/savegress/vaxguard/internal/audit"
	"github.com/savegress/vaxguard/internal/rules"
	"github.com/savegress/vaxguard/internal/validation"
	"github.com/savegress/vaxguard/pkg/models"
)

// Handlers contains all HTTP handlers.
type Handlers struct {
	engine *validation.Engine
	repo   *rules.Repository
	audit  *audit.Logger
	log    zerolog.Logger
}

// NewHandlers creates new handlers.
func NewHandlers(engine *validation.Engine, repo *rules.Repository, auditLog *audit.Logger, log zerolog.Logger) *Handlers {
	return &Handlers{
		engine: engine,
		repo:   repo,
		audit:  auditLog,
		log:    log,
	}
}

// HealthCheck handles health check requests.
func (h *Handlers) HealthCheck(w http.ResponseWriter, r *http.Request) {
	respond(w, http.StatusOK, map[string]string{
		"status":  "healthy",
		"service": "vaxguard",
		"time":    time.Now().UTC().Format(time.RFC3339),
	})
}

// ValidatePatient validates a single patient record against the requirements
// for the state and age or school year named in the query string.
// responseMode=detailed populates the unmet/undetermined lists.
func (h *Handlers) ValidatePatient(w http.ResponseWriter, r *http.Request) {
	state := r.URL.Query().Get("state")
	if state == "" {
		respondError(w, http.StatusBadRequest, "state query parameter is required")
		return
	}

	var patient models.Patient
	if err := json.NewDecoder(r.Body).Decode(&patient); err != nil {
		respondError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	if patient.ID == "" {
		respondError(w, http.StatusBadRequest, "Patient id is required")
		return
	}

	schoolYear := r.URL.Query().Get("schoolYear")
	if schoolYear == "" {
		schoolYear = patient.SchoolYear
	}
	age := parseAge(r.URL.Query().Get("age"))
	includeDetail := strings.EqualFold(r.URL.Query().Get("responseMode"), "detailed")

	start := time.Now()
	requirements, effectiveAge := h.lookup(state, schoolYear, age, patient.BirthDate)
	response := h.engine.Validate(patient, requirements, state, schoolYear, includeDetail)

	h.audit.LogValidation(r.Context(), &audit.ValidationLogRequest{
		RequestID:  middleware.GetReqID(r.Context()),
		SourceIP:   r.RemoteAddr,
		PatientID:  patient.ID,
		State:      state,
		SchoolYear: schoolYear,
		Age:        effectiveAge,
		Mode:       string(h.engine.Mode()),
		Status:     response.Status,
		Duration:   time.Since(start),
	})

	respond(w, http.StatusOK, response)
}

// ValidateBatch validates several patients against one state/age/school-year
// context. Results come back in input order; a failure for one patient never
// aborts the rest.
func (h *Handlers) ValidateBatch(w http.ResponseWriter, r *http.Request) {
	var req models.BatchValidationRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	if req.State == "" {
		respondError(w, http.StatusBadRequest, "state is required")
		return
	}
	if len(req.Patients) == 0 {
		respondError(w, http.StatusBadRequest, "at least one patient is required")
		return
	}

	includeDetail := strings.EqualFold(req.ResponseMode, "detailed")

	start := time.Now()
	results := make([]models.ValidationResponse, len(req.Patients))
	ages := make([]*int, len(req.Patients))
	if req.SchoolYear != "" || req.Age != nil {
		requirements, effectiveAge := h.lookup(req.State, req.SchoolYear, req.Age, "")
		results = h.engine.ValidateBatch(req.Patients, requirements, req.State, req.SchoolYear, includeDetail)
		for i := range ages {
			ages[i] = effectiveAge
		}
	} else {
		// No batch-level context: derive each patient's age from their birth
		// date, as the single endpoint does.
		for i, p := range req.Patients {
			requirements, effectiveAge := h.lookup(req.State, "", nil, p.BirthDate)
			results[i] = h.engine.ValidateIsolated(p, requirements, req.State, "", includeDetail)
			ages[i] = effectiveAge
		}
	}

	counts := map[models.ComplianceStatus]int{}
	for i := range results {
		counts[results[i].Status]++
		h.audit.LogValidation(r.Context(), &audit.ValidationLogRequest{
			RequestID:  middleware.GetReqID(r.Context()),
			SourceIP:   r.RemoteAddr,
			PatientID:  results[i].PatientID,
			State:      req.State,
			SchoolYear: req.SchoolYear,
			Age:        ages[i],
			Mode:       string(h.engine.Mode()),
			Status:     results[i].Status,
			Batch:      true,
			Duration:   time.Since(start),
		})
	}

	h.log.Info().
		Str("state", req.State).
		Int("patients", len(req.Patients)).
		Int("valid", counts[models.StatusValid]).
		Int("invalid", counts[models.StatusInvalid]).
		Int("undetermined", counts[models.StatusUndetermined]).
		Msg("batch validation complete")

	respond(w, http.StatusOK, models.BatchValidationResponse{Results: results})
}

// lookup resolves the requirement list for a request context. School year
// takes precedence when both are supplied; age falls back to the patient's
// birth date when not given explicitly. The returned age is the one actually
// used, for the audit record.
func (h *Handlers) lookup(state, schoolYear string, age *int, birthDate string) ([]validation.CompiledRequirement, *int) {
	if schoolYear != "" {
		return h.repo.ForSchoolYear(state, schoolYear), age
	}
	effective := age
	if effective == nil && birthDate != "" {
		if years, ok := validation.CalculateAge(birthDate, time.Now()); ok {
			effective = &years
		}
	}
	if effective == nil {
		return nil, nil
	}
	return h.repo.ForAge(state, *effective), effective
}

// ListStates lists the states with configured requirements.
func (h *Handlers) ListStates(w http.ResponseWriter, r *http.Request) {
	respond(w, http.StatusOK, map[string]interface{}{
		"states": h.repo.States(),
	})
}

// GetStateRequirements returns everything configured for one state.
func (h *Handlers) GetStateRequirements(w http.ResponseWriter, r *http.Request) {
	state := chi.URLParam(r, "state")
	byAge, byYear, ok := h.repo.Requirements(state)
	if !ok {
		respondError(w, http.StatusNotFound, "No requirements configured for state")
		return
	}
	respond(w, http.StatusOK, map[string]interface{}{
		"state":        state,
		"byAge":        byAge,
		"bySchoolYear": byYear,
	})
}

// ListAuditEvents lists recorded validation events with optional filters.
func (h *Handlers) ListAuditEvents(w http.ResponseWriter, r *http.Request) {
	filter := audit.EventFilter{
		State:  r.URL.Query().Get("state"),
		Status: models.ComplianceStatus(r.URL.Query().Get("status")),
	}
	if limit := parseAge(r.URL.Query().Get("limit")); limit != nil {
		filter.Limit = *limit
	}
	respond(w, http.StatusOK, map[string]interface{}{
		"events": h.audit.GetEvents(filter),
	})
}

// GetAuditEvent returns one audit event by ID.
func (h *Handlers) GetAuditEvent(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	event, ok := h.audit.GetEvent(id)
	if !ok {
		respondError(w, http.StatusNotFound, "Audit event not found")
		return
	}
	respond(w, http.StatusOK, event)
}

// GetAuditStats returns audit statistics.
func (h *Handlers) GetAuditStats(w http.ResponseWriter, r *http.Request) {
	respond(w, http.StatusOK, h.audit.GetStats())
}

func parseAge(s string) *int {
	if s == "" {
		return nil
	}
	n, err := strconv.Atoi(s)
	if err != nil || n < 0 {
		return nil
	}
	return &n
}

func respond(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func respondError(w http.ResponseWriter, status int, message string) {
	respond(w, status, map[string]string{"error": message})
}
