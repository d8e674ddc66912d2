package portal

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/gorilla/mux"

	"github.com/brgyhealth/records-portal/internal/iam"
	"github.com/brgyhealth/records-portal/pkg/types"
)

// setupRoutes configures HTTP routes for the portal service
func (s *Service) setupRoutes(router *mux.Router) {
	api := router.PathPrefix("/api/v1").Subrouter()

	// Authentication
	api.HandleFunc("/auth/login", s.loginHandler).Methods("POST")

	// Authenticated routes
	authed := api.NewRoute().Subrouter()
	authed.Use(s.iam.AuthMiddleware)

	// Account management, admin only
	authed.Handle("/auth/register",
		iam.RequireRole(types.RoleAdmin)(http.HandlerFunc(s.registerHandler))).Methods("POST")

	// Canonical records
	authed.HandleFunc("/records/{table}", s.createRecordHandler).Methods("POST")
	authed.HandleFunc("/records/{table}", s.listRecordsHandler).Methods("GET")
	authed.HandleFunc("/records/{table}/{id}", s.getRecordHandler).Methods("GET")
	authed.HandleFunc("/records/{table}/{id}", s.directUpdateHandler).Methods("PUT")
	authed.HandleFunc("/records/{table}/{id}", s.directDeleteHandler).Methods("DELETE")

	// Change request workflow
	authed.HandleFunc("/requestions/update", s.submitUpdateHandler).Methods("POST")
	authed.HandleFunc("/requestions/delete", s.submitDeleteHandler).Methods("POST")
	authed.HandleFunc("/requestions/pending", s.listPendingHandler).Methods("GET")
	authed.HandleFunc("/requestions/{id}/approve", s.approveHandler).Methods("POST")
	authed.HandleFunc("/requestions/{id}/deny", s.denyHandler).Methods("POST")

	// Audit history
	authed.HandleFunc("/history", s.queryHistoryHandler).Methods("GET")

	// Monitoring
	router.HandleFunc(s.config.Monitoring.HealthPath, s.health.HTTPHandler()).Methods("GET")
	if s.config.Monitoring.Enabled {
		router.Handle(s.config.Monitoring.MetricsPath, s.metrics.Handler()).Methods("GET")
	}

	s.logger.Info("Portal service routes configured")
}

// submitUpdateRequest is the payload for a worker's proposed update
type submitUpdateRequest struct {
	TargetTable    string                 `json:"target_table" validate:"required,oneof=patients child_records"`
	TargetRecordID string                 `json:"target_record_id" validate:"required,uuid"`
	ProposedFields map[string]interface{} `json:"proposed_fields" validate:"required"`
}

// submitDeleteRequest is the payload for a worker's proposed delete
type submitDeleteRequest struct {
	TargetTable    string `json:"target_table" validate:"required,oneof=patients child_records"`
	TargetRecordID string `json:"target_record_id" validate:"required,uuid"`
	Summary        string `json:"summary"`
}

// registerRequest is the payload for admin-driven account creation
type registerRequest struct {
	Username string `json:"username" validate:"required"`
	FullName string `json:"full_name" validate:"required"`
	Password string `json:"password" validate:"required,min=8"`
	Role     string `json:"role" validate:"required,oneof=admin bhw bns midwife mother"`
}

// denyRequest carries the optional denial reason
type denyRequest struct {
	Reason string `json:"reason"`
}

// createRecordRequest is the payload for direct record creation/update
type createRecordRequest struct {
	Fields map[string]interface{} `json:"fields" validate:"required"`
}

// loginHandler handles credential login
func (s *Service) loginHandler(w http.ResponseWriter, r *http.Request) {
	var creds types.Credentials
	if err := json.NewDecoder(r.Body).Decode(&creds); err != nil {
		s.writeErrorResponse(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	if err := s.validate.Struct(&creds); err != nil {
		s.writeErrorResponse(w, http.StatusBadRequest, "Missing credentials", err)
		return
	}

	token, err := s.iam.Login(r.Context(), &creds)
	if err != nil {
		s.metrics.RecordAuthAttempt("password", "failure")
		s.writePortalError(w, "Login failed", err)
		return
	}

	s.metrics.RecordAuthAttempt("password", "success")
	s.writeJSONResponse(w, http.StatusOK, token)
}

// registerHandler creates a portal account
func (s *Service) registerHandler(w http.ResponseWriter, r *http.Request) {
	var req registerRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeErrorResponse(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}
	if err := s.validate.Struct(&req); err != nil {
		s.writeErrorResponse(w, http.StatusBadRequest, "Invalid registration payload", err)
		return
	}

	user, err := s.iam.RegisterUser(r.Context(), req.Username, req.FullName, req.Password, types.UserRole(req.Role))
	if err != nil {
		s.writePortalError(w, "Failed to register user", err)
		return
	}

	s.writeJSONResponse(w, http.StatusCreated, user)
}

// submitUpdateHandler handles a worker's update request submission
func (s *Service) submitUpdateHandler(w http.ResponseWriter, r *http.Request) {
	actor, _ := iam.ActorFromContext(r.Context())

	var req submitUpdateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeErrorResponse(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}
	if err := s.validate.Struct(&req); err != nil {
		s.writeErrorResponse(w, http.StatusBadRequest, "Invalid submission payload", err)
		return
	}

	id, err := s.approval.SubmitUpdate(r.Context(), actor,
		types.RecordTable(req.TargetTable), req.TargetRecordID, req.ProposedFields)
	if err != nil {
		s.writePortalError(w, "Failed to submit update request", err)
		return
	}

	s.writeJSONResponse(w, http.StatusCreated, map[string]string{"requestion_id": id})
}

// submitDeleteHandler handles a worker's delete request submission
func (s *Service) submitDeleteHandler(w http.ResponseWriter, r *http.Request) {
	actor, _ := iam.ActorFromContext(r.Context())

	var req submitDeleteRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeErrorResponse(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}
	if err := s.validate.Struct(&req); err != nil {
		s.writeErrorResponse(w, http.StatusBadRequest, "Invalid submission payload", err)
		return
	}

	id, err := s.approval.SubmitDelete(r.Context(), actor,
		types.RecordTable(req.TargetTable), req.TargetRecordID, req.Summary)
	if err != nil {
		s.writePortalError(w, "Failed to submit delete request", err)
		return
	}

	s.writeJSONResponse(w, http.StatusCreated, map[string]string{"requestion_id": id})
}

// listPendingHandler returns the admin review queue
func (s *Service) listPendingHandler(w http.ResponseWriter, r *http.Request) {
	pending, err := s.approval.ListPending(r.Context())
	if err != nil {
		s.writePortalError(w, "Failed to list pending requestions", err)
		return
	}

	s.writeJSONResponse(w, http.StatusOK, pending)
}

// approveHandler applies a pending requestion
func (s *Service) approveHandler(w http.ResponseWriter, r *http.Request) {
	actor, _ := iam.ActorFromContext(r.Context())
	requestionID := mux.Vars(r)["id"]

	if err := s.approval.Approve(r.Context(), requestionID, actor); err != nil {
		s.writePortalError(w, "Failed to approve requestion", err)
		return
	}

	s.writeJSONResponse(w, http.StatusOK, map[string]string{"message": "Requestion approved"})
}

// denyHandler closes a pending requestion without applying it
func (s *Service) denyHandler(w http.ResponseWriter, r *http.Request) {
	actor, _ := iam.ActorFromContext(r.Context())
	requestionID := mux.Vars(r)["id"]

	var req denyRequest
	if r.Body != nil {
		// The reason is optional; an empty body is fine.
		json.NewDecoder(r.Body).Decode(&req)
	}

	if err := s.approval.Deny(r.Context(), requestionID, actor, req.Reason); err != nil {
		s.writePortalError(w, "Failed to deny requestion", err)
		return
	}

	s.writeJSONResponse(w, http.StatusOK, map[string]string{"message": "Requestion denied"})
}

// queryHistoryHandler answers audit history lookups
func (s *Service) queryHistoryHandler(w http.ResponseWriter, r *http.Request) {
	term := r.URL.Query().Get("q")

	entries, err := s.audit.QueryHistory(r.Context(), term)
	if err != nil {
		s.writePortalError(w, "Failed to query history", err)
		return
	}

	s.writeJSONResponse(w, http.StatusOK, entries)
}

// createRecordHandler handles direct record creation
func (s *Service) createRecordHandler(w http.ResponseWriter, r *http.Request) {
	actor, _ := iam.ActorFromContext(r.Context())
	table := types.RecordTable(mux.Vars(r)["table"])

	var req createRecordRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeErrorResponse(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}
	if err := s.validate.Struct(&req); err != nil {
		s.writeErrorResponse(w, http.StatusBadRequest, "Record fields are required", err)
		return
	}

	record, err := s.records.CreateRecord(r.Context(), actor, table, req.Fields)
	if err != nil {
		s.writePortalError(w, "Failed to create record", err)
		return
	}

	s.writeJSONResponse(w, http.StatusCreated, record)
}

// getRecordHandler retrieves one record
func (s *Service) getRecordHandler(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)

	record, err := s.records.GetRecord(r.Context(), types.RecordTable(vars["table"]), vars["id"])
	if err != nil {
		s.writePortalError(w, "Failed to get record", err)
		return
	}

	s.writeJSONResponse(w, http.StatusOK, record)
}

// listRecordsHandler lists records with filters
func (s *Service) listRecordsHandler(w http.ResponseWriter, r *http.Request) {
	table := types.RecordTable(mux.Vars(r)["table"])
	filters := s.parseRecordFilters(r)

	result, err := s.records.ListRecords(r.Context(), table, filters)
	if err != nil {
		s.writePortalError(w, "Failed to list records", err)
		return
	}

	s.writeJSONResponse(w, http.StatusOK, result)
}

// directUpdateHandler handles admin record overwrite
func (s *Service) directUpdateHandler(w http.ResponseWriter, r *http.Request) {
	actor, _ := iam.ActorFromContext(r.Context())
	vars := mux.Vars(r)

	var req createRecordRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeErrorResponse(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	err := s.records.DirectUpdate(r.Context(), actor, types.RecordTable(vars["table"]), vars["id"], req.Fields)
	if err != nil {
		s.writePortalError(w, "Failed to update record", err)
		return
	}

	s.writeJSONResponse(w, http.StatusOK, map[string]string{"message": "Record updated"})
}

// directDeleteHandler handles admin soft delete
func (s *Service) directDeleteHandler(w http.ResponseWriter, r *http.Request) {
	actor, _ := iam.ActorFromContext(r.Context())
	vars := mux.Vars(r)

	err := s.records.DirectDelete(r.Context(), actor, types.RecordTable(vars["table"]), vars["id"])
	if err != nil {
		s.writePortalError(w, "Failed to delete record", err)
		return
	}

	s.writeJSONResponse(w, http.StatusOK, map[string]string{"message": "Record deleted"})
}

// Helper methods

// parseRecordFilters parses query parameters into record filters
func (s *Service) parseRecordFilters(r *http.Request) *types.RecordFilters {
	filters := &types.RecordFilters{}

	if includeDeleted := r.URL.Query().Get("include_deleted"); includeDeleted != "" {
		if parsed, err := strconv.ParseBool(includeDeleted); err == nil {
			filters.IncludeDeleted = parsed
		}
	}

	if createdBy := r.URL.Query().Get("created_by"); createdBy != "" {
		filters.CreatedBy = createdBy
	}

	if limit := r.URL.Query().Get("limit"); limit != "" {
		if parsed, err := strconv.Atoi(limit); err == nil {
			filters.Limit = parsed
		}
	}

	if offset := r.URL.Query().Get("offset"); offset != "" {
		if parsed, err := strconv.Atoi(offset); err == nil {
			filters.Offset = parsed
		}
	}

	return filters
}

// writePortalError maps the error taxonomy onto HTTP status codes
func (s *Service) writePortalError(w http.ResponseWriter, message string, err error) {
	statusCode := http.StatusInternalServerError
	errorType := string(types.ErrorTypeInternal)

	var pe *types.PortalError
	if errors.As(err, &pe) {
		errorType = string(pe.Type)
		switch pe.Type {
		case types.ErrorTypeValidation:
			statusCode = http.StatusBadRequest
		case types.ErrorTypeAuthentication:
			statusCode = http.StatusUnauthorized
		case types.ErrorTypeAuthorization:
			statusCode = http.StatusForbidden
		case types.ErrorTypeNotFound:
			statusCode = http.StatusNotFound
		case types.ErrorTypeInvalidState:
			if pe.Code == types.ErrCodeForbidden {
				statusCode = http.StatusForbidden
			} else {
				statusCode = http.StatusConflict
			}
		}
	}

	if statusCode >= http.StatusInternalServerError && s.metrics != nil {
		s.metrics.RecordSystemError(errorType, "portal")
	}

	s.writeErrorResponse(w, statusCode, message, err)
}

// writeJSONResponse writes a JSON response
func (s *Service) writeJSONResponse(w http.ResponseWriter, statusCode int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)

	if err := json.NewEncoder(w).Encode(data); err != nil {
		s.logger.WithError(err).Error("Failed to encode JSON response")
	}
}

// writeErrorResponse writes an error response
func (s *Service) writeErrorResponse(w http.ResponseWriter, statusCode int, message string, err error) {
	s.logger.WithError(err).Warn(message)

	response := map[string]interface{}{
		"error":  message,
		"status": statusCode,
	}

	if err != nil {
		response["details"] = err.Error()
	}

	s.writeJSONResponse(w, statusCode, response)
}
