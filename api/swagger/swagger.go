package swagger

import "github.com/swaggo/swag"

const docTemplate = `{
    "swagger": "2.0",
    "info": {
        "title": "SMA Drive API",
        "description": "Per-user hierarchical drive with trash, bulk operations and copy requests",
        "version": "1.0.0"
    },
    "basePath": "/api/v1",
    "schemes": ["http", "https"],
    "securityDefinitions": {
        "BearerAuth": {"type": "apiKey", "name": "Authorization", "in": "header"}
    },
    "tags": [
        {"name": "Drive", "description": "Drive summary and trash"},
        {"name": "Folders", "description": "Folder tree management"},
        {"name": "Files", "description": "File upload, download and sharing"},
        {"name": "Bulk", "description": "Multi-item operations"},
        {"name": "Copy Requests", "description": "Cross-drive copy workflow"},
        {"name": "Activities", "description": "Drive activity log"}
    ],
    "paths": {
        "/drive": {
            "get": {"tags": ["Drive"], "summary": "Drive summary", "security": [{"BearerAuth": []}],
                "responses": {"200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}}}
        },
        "/drive/trash": {
            "get": {"tags": ["Drive"], "summary": "List trash", "security": [{"BearerAuth": []}],
                "responses": {"200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}}},
            "delete": {"tags": ["Drive"], "summary": "Empty trash", "security": [{"BearerAuth": []}],
                "responses": {"200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}}}
        },
        "/folders": {
            "get": {"tags": ["Folders"], "summary": "List folder contents", "security": [{"BearerAuth": []}],
                "parameters": [{"name": "parentId", "in": "query", "type": "string"}],
                "responses": {"200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}}},
            "post": {"tags": ["Folders"], "summary": "Create folder", "security": [{"BearerAuth": []}],
                "responses": {"201": {"description": "Created", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "409": {"description": "Naming conflict", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}}}
        },
        "/folders/{id}": {
            "get": {"tags": ["Folders"], "summary": "Get folder", "security": [{"BearerAuth": []}],
                "parameters": [{"name": "id", "in": "path", "required": true, "type": "string"}],
                "responses": {"200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}}},
            "put": {"tags": ["Folders"], "summary": "Rename folder", "security": [{"BearerAuth": []}],
                "parameters": [{"name": "id", "in": "path", "required": true, "type": "string"}],
                "responses": {"200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}}},
            "delete": {"tags": ["Folders"], "summary": "Move folder to trash", "security": [{"BearerAuth": []}],
                "parameters": [{"name": "id", "in": "path", "required": true, "type": "string"}],
                "responses": {"200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}}}
        },
        "/folders/{id}/move": {
            "post": {"tags": ["Folders"], "summary": "Move folder", "security": [{"BearerAuth": []}],
                "parameters": [{"name": "id", "in": "path", "required": true, "type": "string"}],
                "responses": {"200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "400": {"description": "Invalid move", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}}}
        },
        "/folders/{id}/restore": {
            "post": {"tags": ["Folders"], "summary": "Restore folder from trash", "security": [{"BearerAuth": []}],
                "parameters": [{"name": "id", "in": "path", "required": true, "type": "string"}],
                "responses": {"200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}}}
        },
        "/folders/{id}/permanent": {
            "delete": {"tags": ["Folders"], "summary": "Purge folder", "security": [{"BearerAuth": []}],
                "parameters": [{"name": "id", "in": "path", "required": true, "type": "string"}],
                "responses": {"200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}}}
        },
        "/files": {
            "get": {"tags": ["Files"], "summary": "List files", "security": [{"BearerAuth": []}],
                "responses": {"200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}}},
            "post": {"tags": ["Files"], "summary": "Upload file", "security": [{"BearerAuth": []}],
                "consumes": ["multipart/form-data"],
                "parameters": [{"name": "file", "in": "formData", "required": true, "type": "file"},
                    {"name": "folderId", "in": "formData", "type": "string"}],
                "responses": {"201": {"description": "Created", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "507": {"description": "Insufficient storage", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}}}
        },
        "/files/{id}": {
            "get": {"tags": ["Files"], "summary": "Get file", "security": [{"BearerAuth": []}],
                "parameters": [{"name": "id", "in": "path", "required": true, "type": "string"}],
                "responses": {"200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}}},
            "put": {"tags": ["Files"], "summary": "Rename file", "security": [{"BearerAuth": []}],
                "parameters": [{"name": "id", "in": "path", "required": true, "type": "string"}],
                "responses": {"200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}}},
            "delete": {"tags": ["Files"], "summary": "Move file to trash", "security": [{"BearerAuth": []}],
                "parameters": [{"name": "id", "in": "path", "required": true, "type": "string"}],
                "responses": {"200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}}}
        },
        "/files/{id}/move": {
            "post": {"tags": ["Files"], "summary": "Move file", "security": [{"BearerAuth": []}],
                "parameters": [{"name": "id", "in": "path", "required": true, "type": "string"}],
                "responses": {"200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}}}
        },
        "/files/{id}/restore": {
            "post": {"tags": ["Files"], "summary": "Restore file from trash", "security": [{"BearerAuth": []}],
                "parameters": [{"name": "id", "in": "path", "required": true, "type": "string"}],
                "responses": {"200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}}}
        },
        "/files/{id}/permanent": {
            "delete": {"tags": ["Files"], "summary": "Purge file", "security": [{"BearerAuth": []}],
                "parameters": [{"name": "id", "in": "path", "required": true, "type": "string"}],
                "responses": {"200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}}}
        },
        "/files/{id}/download": {
            "get": {"tags": ["Files"], "summary": "Download file", "security": [{"BearerAuth": []}],
                "produces": ["application/octet-stream"],
                "parameters": [{"name": "id", "in": "path", "required": true, "type": "string"}],
                "responses": {"200": {"description": "File content"},
                    "429": {"description": "Bandwidth limit exceeded", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}}}
        },
        "/files/{id}/preview": {
            "get": {"tags": ["Files"], "summary": "Preview file inline", "security": [{"BearerAuth": []}],
                "parameters": [{"name": "id", "in": "path", "required": true, "type": "string"}],
                "responses": {"200": {"description": "File content"}}}
        },
        "/files/{id}/link": {
            "post": {"tags": ["Files"], "summary": "Create signed download link", "security": [{"BearerAuth": []}],
                "parameters": [{"name": "id", "in": "path", "required": true, "type": "string"}],
                "responses": {"201": {"description": "Created", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}}}
        },
        "/links/{token}": {
            "get": {"tags": ["Files"], "summary": "Download through a signed link",
                "parameters": [{"name": "token", "in": "path", "required": true, "type": "string"}],
                "responses": {"200": {"description": "File content"},
                    "403": {"description": "Invalid or expired link", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}}}
        },
        "/bulk": {
            "post": {"tags": ["Bulk"], "summary": "Execute a bulk operation", "security": [{"BearerAuth": []}],
                "responses": {"200": {"description": "Per-item results", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}}}
        },
        "/copy-requests": {
            "get": {"tags": ["Copy Requests"], "summary": "List copy requests", "security": [{"BearerAuth": []}],
                "parameters": [{"name": "role", "in": "query", "type": "string", "enum": ["incoming", "outgoing"]},
                    {"name": "status", "in": "query", "type": "string"}],
                "responses": {"200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}}},
            "post": {"tags": ["Copy Requests"], "summary": "Request a copy", "security": [{"BearerAuth": []}],
                "responses": {"201": {"description": "Created", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}}}
        },
        "/copy-requests/{id}": {
            "get": {"tags": ["Copy Requests"], "summary": "Get copy request", "security": [{"BearerAuth": []}],
                "parameters": [{"name": "id", "in": "path", "required": true, "type": "string"}],
                "responses": {"200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}}},
            "put": {"tags": ["Copy Requests"], "summary": "Approve or deny", "security": [{"BearerAuth": []}],
                "parameters": [{"name": "id", "in": "path", "required": true, "type": "string"}],
                "responses": {"200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "507": {"description": "Insufficient storage", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}}},
            "delete": {"tags": ["Copy Requests"], "summary": "Cancel a pending request", "security": [{"BearerAuth": []}],
                "parameters": [{"name": "id", "in": "path", "required": true, "type": "string"}],
                "responses": {"204": {"description": "Cancelled"}}}
        },
        "/activities": {
            "get": {"tags": ["Activities"], "summary": "List drive activity", "security": [{"BearerAuth": []}],
                "responses": {"200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}}}
        },
        "/activities/export": {
            "get": {"tags": ["Activities"], "summary": "Export drive activity", "security": [{"BearerAuth": []}],
                "produces": ["text/csv", "application/pdf"],
                "parameters": [{"name": "format", "in": "query", "type": "string", "enum": ["csv", "pdf"]}],
                "responses": {"200": {"description": "Export document"}}}
        }
    },
    "definitions": {
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
                "status": {"type": "integer"},
                "details": {"type": "object"}
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
