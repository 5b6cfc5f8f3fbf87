package swagger

import "github.com/swaggo/swag"

const docTemplate = `{
    "swagger": "2.0",
    "info": {
        "title": "CalSync API",
        "description": "Calendar synchronization and reconciliation engine",
        "version": "0.1.0"
    },
    "basePath": "/",
    "schemes": [
        "http"
    ],
    "tags": [
        {"name": "Calendar", "description": "Calendar sync, summaries and write-back"}
    ],
    "paths": {
        "/health": {
            "get": {
                "summary": "Health check",
                "responses": {
                    "200": {"description": "OK"}
                }
            }
        },
        "/ready": {
            "get": {
                "summary": "Readiness check",
                "responses": {
                    "200": {"description": "Ready"}
                }
            }
        },
        "/api/v1/calendar/sync": {
            "post": {
                "tags": ["Calendar"],
                "summary": "Run a calendar sync for the authenticated user",
                "responses": {
                    "200": {"description": "Structured sync result", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/api/v1/calendar/sync/needed": {
            "get": {
                "tags": ["Calendar"],
                "summary": "Staleness check for the compressed calendar",
                "responses": {
                    "200": {"description": "Needs-sync flag", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/api/v1/calendar/summary": {
            "get": {
                "tags": ["Calendar"],
                "summary": "Active compressed calendar summary",
                "responses": {
                    "200": {"description": "Summary", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "404": {"description": "No active summary"}
                }
            }
        },
        "/api/v1/calendar/sync/runs": {
            "get": {
                "tags": ["Calendar"],
                "summary": "Sync run audit trail",
                "responses": {
                    "200": {"description": "Runs", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/api/v1/calendar/sync/runs/export": {
            "get": {
                "tags": ["Calendar"],
                "summary": "Export the sync run audit trail as CSV or PDF",
                "responses": {
                    "200": {"description": "File download"}
                }
            }
        },
        "/api/v1/calendar/events": {
            "post": {
                "tags": ["Calendar"],
                "summary": "Create a provider-side event, idempotent per meeting id",
                "responses": {
                    "200": {"description": "Existing outcome", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "201": {"description": "Created", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        }
    },
    "definitions": {
        "Pagination": {
            "type": "object",
            "properties": {
                "page": {"type": "integer"},
                "page_size": {"type": "integer"},
                "total": {"type": "integer"},
                "total_pages": {"type": "integer"}
            }
        },
        "APIError": {
            "type": "object",
            "properties": {
                "code": {"type": "string"},
                "message": {"type": "string"},
                "status": {"type": "integer"}
            }
        },
        "ResponseEnvelope": {
            "type": "object",
            "properties": {
                "data": {"type": "object"},
                "error": {"$ref": "#/definitions/APIError"},
                "pagination": {"$ref": "#/definitions/Pagination"},
                "meta": {"type": "object"}
            }
        }
    }
}`

type swaggerDoc struct{}

// ReadDoc returns the Swagger document.
func (s *swaggerDoc) ReadDoc() string {
	return docTemplate
}

func init() {
	swag.Register(swag.Name, &swaggerDoc{})
}
