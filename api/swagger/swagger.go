package swagger

import "github.com/swaggo/swag"

const docTemplate = `{
    "swagger": "2.0",
    "info": {
        "title": "Document Access API",
        "description": "Access requests for archived theses: submission, review and fulfilment.",
        "version": "1.0.0"
    },
    "basePath": "/api/v1",
    "schemes": ["http", "https"],
    "securityDefinitions": {
        "BearerAuth": {"type": "apiKey", "name": "Authorization", "in": "header"}
    },
    "tags": [
        {"name": "Requests", "description": "Submission and review of access requests"},
        {"name": "Analytics", "description": "Reporting over the analytics mirror"}
    ],
    "paths": {
        "/requests": {
            "post": {
                "tags": ["Requests"],
                "summary": "Submit a document access request",
                "consumes": ["application/json"],
                "parameters": [
                    {"in": "body", "name": "body", "required": true, "schema": {"$ref": "#/definitions/SubmitRequest"}}
                ],
                "responses": {
                    "201": {"description": "Created", "schema": {"$ref": "#/definitions/SubmitRequestResponse"}},
                    "400": {"description": "Validation error", "schema": {"$ref": "#/definitions/SubmitErrorResponse"}},
                    "413": {"description": "Body too large", "schema": {"$ref": "#/definitions/SubmitErrorResponse"}},
                    "429": {"description": "Rate limited", "schema": {"$ref": "#/definitions/RateLimitedResponse"}}
                }
            },
            "get": {
                "tags": ["Requests"],
                "summary": "List requests",
                "security": [{"BearerAuth": []}],
                "parameters": [
                    {"in": "query", "name": "status", "type": "string", "enum": ["pending", "approved", "rejected"]},
                    {"in": "query", "name": "documentId", "type": "string"},
                    {"in": "query", "name": "email", "type": "string"},
                    {"in": "query", "name": "page", "type": "integer"},
                    {"in": "query", "name": "pageSize", "type": "integer"}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/requests/{id}": {
            "get": {
                "tags": ["Requests"],
                "summary": "Fetch a request",
                "security": [{"BearerAuth": []}],
                "parameters": [{"in": "path", "name": "id", "required": true, "type": "string"}],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "404": {"description": "Not found", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/requests/{id}/respond": {
            "post": {
                "tags": ["Requests"],
                "summary": "Approve or reject a pending request",
                "security": [{"BearerAuth": []}],
                "consumes": ["application/json", "multipart/form-data"],
                "parameters": [
                    {"in": "path", "name": "id", "required": true, "type": "string"},
                    {"in": "formData", "name": "status", "required": true, "type": "string", "enum": ["approved", "rejected"]},
                    {"in": "formData", "name": "deanRemarks", "type": "string"},
                    {"in": "formData", "name": "approvedChapters", "type": "string"},
                    {"in": "formData", "name": "pdf", "type": "file"}
                ],
                "responses": {
                    "200": {"description": "Resolved", "schema": {"$ref": "#/definitions/RespondResponse"}},
                    "404": {"description": "Not found", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "409": {"description": "Already resolved", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "502": {"description": "Upload failed", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/requests/files": {
            "get": {
                "tags": ["Requests"],
                "summary": "Download an approved document through a signed link",
                "produces": ["application/pdf"],
                "parameters": [{"in": "query", "name": "token", "required": true, "type": "string"}],
                "responses": {
                    "200": {"description": "PDF"},
                    "403": {"description": "Invalid or expired link"}
                }
            }
        },
        "/analytics/requests/summary": {
            "get": {
                "tags": ["Analytics"],
                "summary": "Request counts by status and user type",
                "security": [{"BearerAuth": []}],
                "parameters": [
                    {"in": "query", "name": "from", "type": "string"},
                    {"in": "query", "name": "to", "type": "string"},
                    {"in": "query", "name": "status", "type": "string"},
                    {"in": "query", "name": "userType", "type": "string"}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/analytics/requests/export": {
            "get": {
                "tags": ["Analytics"],
                "summary": "Export mirrored requests",
                "security": [{"BearerAuth": []}],
                "produces": ["text/csv", "application/pdf"],
                "parameters": [
                    {"in": "query", "name": "format", "type": "string", "enum": ["csv", "pdf"], "default": "csv"},
                    {"in": "query", "name": "from", "type": "string"},
                    {"in": "query", "name": "to", "type": "string"}
                ],
                "responses": {
                    "200": {"description": "File"}
                }
            }
        }
    },
    "definitions": {
        "Requester": {
            "type": "object",
            "required": ["email"],
            "properties": {
                "email": {"type": "string"},
                "name": {"type": "string"},
                "program": {"type": "string"},
                "department": {"type": "string"},
                "country": {"type": "string"},
                "city": {"type": "string"},
                "school": {"type": "string"},
                "group_id": {"type": "string"},
                "leader_name": {"type": "string"}
            }
        },
        "SubmitRequest": {
            "type": "object",
            "required": ["document_id", "userType", "requester", "purpose"],
            "properties": {
                "document_id": {"type": "string"},
                "userType": {"type": "string", "enum": ["student", "guest", "group"]},
                "requester": {"$ref": "#/definitions/Requester"},
                "chaptersRequested": {"type": "array", "items": {"type": "string"}},
                "purpose": {"type": "string"}
            }
        },
        "SubmitRequestResponse": {
            "type": "object",
            "properties": {
                "message": {"type": "string"},
                "requestId": {"type": "string"}
            }
        },
        "RespondResponse": {
            "type": "object",
            "properties": {
                "message": {"type": "string"},
                "presignedUrl": {"type": "string"},
                "expiresAt": {"type": "string", "format": "date-time"}
            }
        },
        "SubmitErrorResponse": {
            "type": "object",
            "properties": {
                "error": {"type": "string"}
            }
        },
        "RateLimitedResponse": {
            "type": "object",
            "properties": {
                "ok": {"type": "boolean"},
                "message": {"type": "string"}
            }
        },
        "Pagination": {
            "type": "object",
            "properties": {
                "page": {"type": "integer"},
                "page_size": {"type": "integer"},
                "total_count": {"type": "integer"}
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
