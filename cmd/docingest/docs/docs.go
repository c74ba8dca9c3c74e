// Package docs holds the OpenAPI description served under /swagger.
package docs

import "github.com/swaggo/swag"

const docTemplate = `{
    "schemes": {{ marshal .Schemes }},
    "swagger": "2.0",
    "info": {
        "description": "{{escape .Description}}",
        "title": "{{.Title}}",
        "license": {
            "name": "Apache 2.0",
            "url": "http://www.apache.org/licenses/LICENSE-2.0.html"
        },
        "version": "{{.Version}}"
    },
    "host": "{{.Host}}",
    "basePath": "{{.BasePath}}",
    "securityDefinitions": {
        "BearerAuth": {
            "type": "apiKey",
            "name": "Authorization",
            "in": "header"
        }
    },
    "security": [{"BearerAuth": []}],
    "paths": {
        "/healthz": {
            "get": {
                "tags": ["Health"],
                "summary": "Liveness check",
                "responses": {
                    "200": {"description": "Service is up"}
                }
            }
        },
        "/status/{id}": {
            "get": {
                "tags": ["Job Status"],
                "summary": "Get job status",
                "description": "Retrieves the current status of an ingestion or reprocess job.",
                "produces": ["application/json"],
                "parameters": [
                    {"type": "string", "description": "Job ID", "name": "id", "in": "path", "required": true}
                ],
                "responses": {
                    "200": {"description": "The current status of the job", "schema": {"$ref": "#/definitions/api.JobResponse"}},
                    "404": {"description": "Job not found", "schema": {"$ref": "#/definitions/api.JobResponse"}}
                }
            }
        },
        "/ingest": {
            "post": {
                "tags": ["Ingestion"],
                "summary": "Upload a document for ingestion",
                "description": "Stores a multipart upload and queues a job that extracts, cleanses, chunks, embeds and indexes it.",
                "consumes": ["multipart/form-data"],
                "produces": ["application/json"],
                "parameters": [
                    {"type": "string", "description": "Target collection", "name": "collection_id", "in": "formData", "required": true},
                    {"type": "file", "description": "The document to ingest", "name": "document", "in": "formData", "required": true},
                    {"type": "string", "description": "Display title", "name": "title", "in": "formData"},
                    {"type": "string", "description": "Chunking strategy override", "name": "chunking_strategy_id", "in": "formData"},
                    {"type": "string", "description": "Cleansing config override", "name": "cleansing_config_id", "in": "formData"},
                    {"type": "string", "description": "Document metadata as a JSON object", "name": "metadata", "in": "formData"}
                ],
                "responses": {
                    "202": {"description": "Job queued", "schema": {"$ref": "#/definitions/api.InitJobResponse"}},
                    "400": {"description": "Missing fields, bad metadata or file too large", "schema": {"$ref": "#/definitions/api.JobResponse"}},
                    "404": {"description": "Collection not found", "schema": {"$ref": "#/definitions/api.JobResponse"}}
                }
            }
        },
        "/search": {
            "post": {
                "tags": ["Search"],
                "summary": "Similarity search",
                "description": "Embeds the query and searches one collection, or every collection when collection_id is empty.",
                "consumes": ["application/json"],
                "produces": ["application/json"],
                "parameters": [
                    {"description": "Query, filters and rerank options", "name": "request", "in": "body", "required": true, "schema": {"$ref": "#/definitions/api.SearchRequest"}}
                ],
                "responses": {
                    "200": {"description": "Ranked results", "schema": {"$ref": "#/definitions/api.SearchResponse"}},
                    "400": {"description": "Missing query", "schema": {"$ref": "#/definitions/api.JobResponse"}}
                }
            }
        },
        "/documents/{id}": {
            "get": {
                "tags": ["Documents"],
                "summary": "Get a document",
                "produces": ["application/json"],
                "parameters": [
                    {"type": "string", "description": "Document ID", "name": "id", "in": "path", "required": true},
                    {"type": "boolean", "description": "Include chunks", "name": "chunks", "in": "query"}
                ],
                "responses": {
                    "200": {"description": "The document", "schema": {"$ref": "#/definitions/api.DocumentResponse"}},
                    "404": {"description": "Document not found", "schema": {"$ref": "#/definitions/api.JobResponse"}}
                }
            },
            "delete": {
                "tags": ["Documents"],
                "summary": "Delete a document",
                "description": "Removes the document, its chunks and its vectors.",
                "parameters": [
                    {"type": "string", "description": "Document ID", "name": "id", "in": "path", "required": true}
                ],
                "responses": {
                    "204": {"description": "Deleted"},
                    "404": {"description": "Document not found", "schema": {"$ref": "#/definitions/api.JobResponse"}}
                }
            }
        },
        "/documents/{id}/reprocess": {
            "post": {
                "tags": ["Documents"],
                "summary": "Reprocess a document",
                "description": "Queues a rechunk of a stored document, optionally into another collection.",
                "consumes": ["application/json"],
                "produces": ["application/json"],
                "parameters": [
                    {"type": "string", "description": "Document ID", "name": "id", "in": "path", "required": true},
                    {"description": "Optional overrides", "name": "request", "in": "body", "schema": {"$ref": "#/definitions/api.ReprocessRequest"}}
                ],
                "responses": {
                    "202": {"description": "Job queued", "schema": {"$ref": "#/definitions/api.InitJobResponse"}},
                    "404": {"description": "Document or collection not found", "schema": {"$ref": "#/definitions/api.JobResponse"}}
                }
            }
        },
        "/collections/{id}/stats": {
            "get": {
                "tags": ["Collections"],
                "summary": "Collection statistics",
                "produces": ["application/json"],
                "parameters": [
                    {"type": "string", "description": "Collection ID", "name": "id", "in": "path", "required": true}
                ],
                "responses": {
                    "200": {"description": "Vector store statistics", "schema": {"$ref": "#/definitions/vectorDB.Stats"}},
                    "404": {"description": "Collection not found", "schema": {"$ref": "#/definitions/api.JobResponse"}}
                }
            }
        }
    },
    "definitions": {
        "api.JobOutgoingError": {
            "type": "object",
            "properties": {
                "code": {"type": "integer"},
                "message": {"type": "string"},
                "can_retry": {"type": "boolean"}
            }
        },
        "api.DocumentResult": {
            "type": "object",
            "properties": {
                "document_id": {"type": "string"},
                "collection_id": {"type": "string"},
                "document_status": {"type": "string"},
                "chunk_count": {"type": "integer"},
                "duplicate": {"type": "boolean"}
            }
        },
        "api.Result": {
            "type": "object",
            "properties": {
                "status": {"type": "string"},
                "step": {"type": "string"},
                "document": {"$ref": "#/definitions/api.DocumentResult"}
            }
        },
        "api.JobResponse": {
            "type": "object",
            "properties": {
                "id": {"type": "string"},
                "job_type": {"type": "string"},
                "result": {"$ref": "#/definitions/api.Result"},
                "error": {"$ref": "#/definitions/api.JobOutgoingError"},
                "start_time": {"type": "string"},
                "end_time": {"type": "string"}
            }
        },
        "api.InitJobResponse": {
            "type": "object",
            "properties": {
                "id": {"type": "string"},
                "document_id": {"type": "string"},
                "status_url": {"type": "string"}
            }
        },
        "api.ReprocessRequest": {
            "type": "object",
            "properties": {
                "collection_id": {"type": "string"},
                "chunking_strategy_id": {"type": "string"},
                "cleansing_config_id": {"type": "string"}
            }
        },
        "api.SearchRequest": {
            "type": "object",
            "required": ["query"],
            "properties": {
                "collection_id": {"type": "string"},
                "query": {"type": "string"},
                "top_k": {"type": "integer"},
                "filter": {"type": "object", "additionalProperties": true},
                "rerank": {"type": "object", "additionalProperties": true}
            }
        },
        "api.SearchResponse": {
            "type": "object",
            "properties": {
                "query": {"type": "string"},
                "results": {"type": "array", "items": {"type": "object", "additionalProperties": true}}
            }
        },
        "api.DocumentResponse": {
            "type": "object",
            "properties": {
                "document": {"type": "object", "additionalProperties": true},
                "chunks": {"type": "array", "items": {"type": "object", "additionalProperties": true}}
            }
        },
        "vectorDB.Stats": {
            "type": "object",
            "properties": {
                "collection": {"type": "string"},
                "count": {"type": "integer"},
                "dimensions": {"type": "integer"},
                "index_type": {"type": "string"},
                "tombstones": {"type": "integer"}
            }
        }
    }
}`

// SwaggerInfo holds exported Swagger Info so clients can modify it
var SwaggerInfo = &swag.Spec{
	Version:          "1.0",
	Host:             "localhost:3000",
	BasePath:         "/",
	Schemes:          []string{"http", "https"},
	Title:            "Document Ingestion API",
	Description:      "This API ingests documents asynchronously and serves similarity search over them",
	InfoInstanceName: "swagger",
	SwaggerTemplate:  docTemplate,
	LeftDelim:        "{{",
	RightDelim:       "}}",
}

func init() {
	swag.Register(SwaggerInfo.InstanceName(), SwaggerInfo)
}
