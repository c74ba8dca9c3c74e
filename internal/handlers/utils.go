package handlers

import (
	"encoding/json"
	"net/http"

	"github.com/akolanti/GoIngest/internal/adapter"
	"github.com/akolanti/GoIngest/internal/config"
	"github.com/akolanti/GoIngest/internal/domain/jobModel"
	"github.com/akolanti/GoIngest/internal/domain/ragErrors"
	"github.com/akolanti/GoIngest/internal/rag"
)

func writeJsonResponse(w http.ResponseWriter, statusCode int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)

	if err := json.NewEncoder(w).Encode(data); err != nil {
		// headers are already out
		logRH.Error("Error encoding response", "error", err)
	}
}

func validateId(id string, traceId string) (result jobModel.Job, isFound bool) {
	if id == "" {
		logRH.Warn("Empty Job ID")
		return jobModel.Job{}, false
	}
	return GetJobStatus(id, traceId)
}

func traceIdOf(r *http.Request) string {
	traceId, _ := r.Context().Value(config.TRACE_ID_KEY).(string)
	return traceId
}

func validateContext(r *http.Request) bool {
	ctx := r.Context()
	if ctx.Err() != nil {
		logRH.With("traceId", traceIdOf(r)).Warn("context error", "error", ctx.Err(), "remote", r.RemoteAddr)
		return false
	}
	return true
}

func WriteErrorResponse(w http.ResponseWriter, httpCode int, id string, error string) {
	writeJsonResponse(w, httpCode, adapter.BadRequest(id, error, httpCode))
}

func writeRagError(w http.ResponseWriter, id string, err error) {
	code := rag.StatusCode(err)
	if code >= http.StatusInternalServerError {
		logRH.Error("Request failed", "id", id, "error", err)
	}
	WriteErrorResponse(w, code, id, ragErrors.Describe(err))
}
