package handlers

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"path/filepath"
	"strings"

	"github.com/akolanti/GoIngest/internal/adapter"
	"github.com/akolanti/GoIngest/internal/adapter/utils"
	"github.com/akolanti/GoIngest/internal/api"
	"github.com/akolanti/GoIngest/internal/config"
	"github.com/akolanti/GoIngest/internal/data/blobStore"
	"github.com/akolanti/GoIngest/internal/domain/commonModels"
	"github.com/akolanti/GoIngest/internal/domain/jobModel"
	"github.com/akolanti/GoIngest/pkg/logger_i"
)

var logRH = logger_i.NewLogger("RequestHandler")

// keeps the handlers independent of how jobs are queued
type newJobData struct {
	id      string
	traceId string
	jobType jobModel.JobType
	payload jobModel.JobPayload
}

// @Summary      Liveness check
// @Tags         Health
// @Success      200
// @Router       /healthz [get]
func GetHandler(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
}

// GetStatusHandler returns the job behind /status/{id}.
// @Summary      Get job status
// @Description  Retrieves the current status of an ingestion or reprocess job.
// @Tags         Job Status
// @Produce      json
// @Param        id   path      string  true  "Job ID"
// @Success      200  {object}  api.JobResponse  "The current status of the job"
// @Failure      404  {object}  api.JobResponse  "Job not found"
// @Security     BearerAuth
// @Router       /status/{id} [get]
func GetStatusHandler(w http.ResponseWriter, r *http.Request) {
	if !validateContext(r) {
		return
	}
	idString := utils.GetChiURLParam(r, "id")
	result, isFound := validateId(idString, traceIdOf(r))

	logRH.Debug("Get Status Request:", "URL path", r.URL.Path)
	if !isFound {
		WriteErrorResponse(w, http.StatusNotFound, idString, "Job not found")
		return
	}
	writeJsonResponse(w, http.StatusOK, adapter.ToAPIResponse(result))
}

// PostIngestHandler stores a multipart upload and queues its ingestion.
// Form fields: collection_id (required), document (file), title, chunking_strategy_id,
// cleansing_config_id and metadata (a JSON object).
// @Summary      Upload a document for ingestion
// @Description  Stores a multipart upload and queues a job that extracts, cleanses, chunks, embeds and indexes it.
// @Tags         Ingestion
// @Accept       multipart/form-data
// @Produce      json
// @Param        collection_id         formData  string  true   "Target collection"
// @Param        document              formData  file    true   "The document to ingest"
// @Param        title                 formData  string  false  "Display title"
// @Param        chunking_strategy_id  formData  string  false  "Chunking strategy override"
// @Param        cleansing_config_id   formData  string  false  "Cleansing config override"
// @Param        metadata              formData  string  false  "Document metadata as a JSON object"
// @Success      202  {object}  api.InitJobResponse  "Job queued"
// @Failure      400  {object}  api.JobResponse      "Missing fields, bad metadata or file too large"
// @Failure      404  {object}  api.JobResponse      "Collection not found"
// @Security     BearerAuth
// @Router       /ingest [post]
func PostIngestHandler(w http.ResponseWriter, r *http.Request) {
	if !validateContext(r) {
		return
	}
	if documents.blobs == nil {
		WriteErrorResponse(w, http.StatusServiceUnavailable, "", "Blob storage is not configured")
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, config.MaxUploadSize)
	if err := r.ParseMultipartForm(config.MaxUploadSize); err != nil {
		WriteErrorResponse(w, http.StatusBadRequest, "", "File too large or bad request")
		return
	}

	collectionId := r.FormValue("collection_id")
	if collectionId == "" {
		WriteErrorResponse(w, http.StatusBadRequest, "", "collection_id is required")
		return
	}
	if _, err := documents.service.Collection(r.Context(), collectionId); err != nil {
		writeRagError(w, collectionId, err)
		return
	}

	var metadata map[string]any
	if raw := r.FormValue("metadata"); raw != "" {
		if err := json.Unmarshal([]byte(raw), &metadata); err != nil {
			WriteErrorResponse(w, http.StatusBadRequest, "", "metadata must be a JSON object")
			return
		}
	}

	fileReader, fileHeader, err := r.FormFile("document")
	if err != nil {
		WriteErrorResponse(w, http.StatusBadRequest, "", "Could not retrieve file")
		return
	}
	defer fileReader.Close()

	data, err := io.ReadAll(fileReader)
	if err != nil {
		WriteErrorResponse(w, http.StatusBadRequest, "", "Could not read file")
		return
	}
	if len(data) == 0 {
		WriteErrorResponse(w, http.StatusBadRequest, fileHeader.Filename, "Uploaded file is empty")
		return
	}

	contentType := uploadContentType(fileHeader.Header.Get("Content-Type"), fileHeader.Filename)
	documentId := utils.GetNewUUID()
	key := blobStore.UploadKey(config.DefaultUploadKeyPrefix, documentId, fileHeader.Filename)
	if err := documents.blobs.Put(r.Context(), key, data, contentType); err != nil {
		logRH.Error("Could not store upload", "key", key, "error", err)
		WriteErrorResponse(w, http.StatusInternalServerError, fileHeader.Filename, "Storage error")
		return
	}

	newJob := newJobData{
		id:      utils.GetNewUUID(),
		traceId: traceIdOf(r),
		jobType: jobModel.JobTypeIngest,
		payload: jobModel.JobPayload{
			CollectionId:       collectionId,
			DocumentId:         documentId,
			BlobKey:            key,
			Filename:           fileHeader.Filename,
			Title:              r.FormValue("title"),
			ContentType:        contentType,
			ChunkingStrategyId: r.FormValue("chunking_strategy_id"),
			CleansingConfigId:  r.FormValue("cleansing_config_id"),
			Metadata:           metadata,
		},
	}
	CreateNewJob(newJob)
	writeJsonResponse(w, http.StatusAccepted, adapter.ToInitJobResponse(newJob.id, documentId))
}

// PostReprocessHandler queues a rechunk of /documents/{id}/reprocess, optionally into another collection.
// @Summary      Reprocess a document
// @Tags         Documents
// @Accept       json
// @Produce      json
// @Param        id       path      string                true   "Document ID"
// @Param        request  body      api.ReprocessRequest  false  "Optional overrides"
// @Success      202      {object}  api.InitJobResponse   "Job queued"
// @Failure      404      {object}  api.JobResponse       "Document or collection not found"
// @Security     BearerAuth
// @Router       /documents/{id}/reprocess [post]
func PostReprocessHandler(w http.ResponseWriter, r *http.Request) {
	if !validateContext(r) {
		return
	}
	documentId := utils.GetChiURLParam(r, "id")

	var requestData api.ReprocessRequest
	defer r.Body.Close()
	if err := json.NewDecoder(r.Body).Decode(&requestData); err != nil && !errors.Is(err, io.EOF) {
		logRH.Warn("Bad Reprocess Request", "error", err)
		WriteErrorResponse(w, http.StatusBadRequest, documentId, "Bad Request")
		return
	}

	doc, err := documents.service.Document(r.Context(), documentId)
	if err != nil {
		writeRagError(w, documentId, err)
		return
	}
	if requestData.CollectionId != "" {
		if _, err := documents.service.Collection(r.Context(), requestData.CollectionId); err != nil {
			writeRagError(w, documentId, err)
			return
		}
	}

	newJob := newJobData{
		id:      utils.GetNewUUID(),
		traceId: traceIdOf(r),
		jobType: jobModel.JobTypeReprocess,
		payload: jobModel.JobPayload{
			DocumentId:         doc.Id,
			CollectionId:       requestData.CollectionId,
			ChunkingStrategyId: requestData.ChunkingStrategyId,
			CleansingConfigId:  requestData.CleansingConfigId,
		},
	}
	CreateNewJob(newJob)
	writeJsonResponse(w, http.StatusAccepted, adapter.ToInitJobResponse(newJob.id, doc.Id))
}

// GetDocumentHandler returns the document and, with ?chunks=true, its chunks.
// @Summary      Get a document
// @Tags         Documents
// @Produce      json
// @Param        id      path      string  true   "Document ID"
// @Param        chunks  query     bool    false  "Include chunks"
// @Success      200     {object}  api.DocumentResponse
// @Failure      404     {object}  api.JobResponse  "Document not found"
// @Security     BearerAuth
// @Router       /documents/{id} [get]
func GetDocumentHandler(w http.ResponseWriter, r *http.Request) {
	if !validateContext(r) {
		return
	}
	documentId := utils.GetChiURLParam(r, "id")
	doc, err := documents.service.Document(r.Context(), documentId)
	if err != nil {
		writeRagError(w, documentId, err)
		return
	}

	res := api.DocumentResponse{Document: doc}
	if r.URL.Query().Get("chunks") == "true" {
		chunks, err := documents.service.Chunks(r.Context(), documentId)
		if err != nil {
			writeRagError(w, documentId, err)
			return
		}
		res.Chunks = chunks
	}
	writeJsonResponse(w, http.StatusOK, res)
}

// @Summary      Delete a document
// @Description  Removes the document, its chunks and its vectors.
// @Tags         Documents
// @Param        id   path  string  true  "Document ID"
// @Success      204
// @Failure      404  {object}  api.JobResponse  "Document not found"
// @Security     BearerAuth
// @Router       /documents/{id} [delete]
func DeleteDocumentHandler(w http.ResponseWriter, r *http.Request) {
	if !validateContext(r) {
		return
	}
	documentId := utils.GetChiURLParam(r, "id")
	if err := documents.service.DeleteDocument(r.Context(), documentId); err != nil {
		writeRagError(w, documentId, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// PostSearchHandler runs a similarity search synchronously.
// @Summary      Similarity search
// @Description  Embeds the query and searches one collection, or every collection when collection_id is empty.
// @Tags         Search
// @Accept       json
// @Produce      json
// @Param        request  body      api.SearchRequest   true  "Query, filters and rerank options"
// @Success      200      {object}  api.SearchResponse  "Ranked results"
// @Failure      400      {object}  api.JobResponse     "Missing query"
// @Security     BearerAuth
// @Router       /search [post]
func PostSearchHandler(w http.ResponseWriter, r *http.Request) {
	if !validateContext(r) {
		return
	}
	var requestData api.SearchRequest
	defer r.Body.Close()
	if err := json.NewDecoder(r.Body).Decode(&requestData); err != nil || strings.TrimSpace(requestData.Query) == "" {
		logRH.Warn("Bad Search Request", "error", err)
		WriteErrorResponse(w, http.StatusBadRequest, "", "query is required")
		return
	}

	results, err := documents.service.Search(r.Context(), adapter.ToSearchRequest(requestData))
	if err != nil {
		writeRagError(w, requestData.CollectionId, err)
		return
	}
	if results == nil {
		results = []commonModels.SearchResult{}
	}
	writeJsonResponse(w, http.StatusOK, api.SearchResponse{Query: requestData.Query, Results: results})
}

// @Summary      Collection statistics
// @Tags         Collections
// @Produce      json
// @Param        id   path      string  true  "Collection ID"
// @Success      200  {object}  vectorDB.Stats
// @Failure      404  {object}  api.JobResponse  "Collection not found"
// @Security     BearerAuth
// @Router       /collections/{id}/stats [get]
func GetCollectionStatsHandler(w http.ResponseWriter, r *http.Request) {
	if !validateContext(r) {
		return
	}
	collectionId := utils.GetChiURLParam(r, "id")
	stats, err := documents.service.CollectionStats(r.Context(), collectionId)
	if err != nil {
		writeRagError(w, collectionId, err)
		return
	}
	writeJsonResponse(w, http.StatusOK, stats)
}

// uploadContentType prefers the part header unless it is generic.
func uploadContentType(header, filename string) string {
	ct := strings.TrimSpace(strings.Split(header, ";")[0])
	if ct != "" && ct != "application/octet-stream" {
		return ct
	}
	if byExt := commonModels.MediaTypeForExtension(filepath.Ext(filename)); byExt != "" {
		return byExt
	}
	return "application/octet-stream"
}
