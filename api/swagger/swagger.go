package swagger

import "github.com/swaggo/swag"

const docTemplate = `{
    "swagger": "2.0",
    "info": {
        "title": "DMS Storage API",
        "description": "Multi-tier document storage orchestration engine",
        "version": "1.0.0"
    },
    "basePath": "/api/v1",
    "schemes": [
        "http"
    ],
    "tags": [
        {"name": "Files", "description": "Upload, serving and deletion"},
        {"name": "Versions", "description": "Version history, revert and prune"},
        {"name": "Permissions", "description": "Owner/group/world rwx bits"},
        {"name": "Protection", "description": "Document protection levels"},
        {"name": "Workspaces", "description": "Hierarchical access scopes"},
        {"name": "Queue", "description": "Durable tier sync queue"},
        {"name": "Automation", "description": "Tier reclassification presets"},
        {"name": "Duplicates", "description": "Checksum duplicate detection"}
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
        "/files": {
            "post": {
                "tags": ["Files"],
                "summary": "Upload a file into the tiered store",
                "consumes": ["multipart/form-data"],
                "parameters": [
                    {"name": "file", "in": "formData", "type": "file", "required": true},
                    {"name": "folderPath", "in": "formData", "type": "string"},
                    {"name": "workspaceId", "in": "formData", "type": "string"},
                    {"name": "isPublic", "in": "formData", "type": "boolean"},
                    {"name": "duplicateAction", "in": "formData", "type": "string", "enum": ["skip", "replace", "link", "keep_both", "warn"]}
                ],
                "responses": {
                    "201": {"description": "Created", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/files/{id}": {
            "get": {
                "tags": ["Files"],
                "summary": "Get file metadata and tier placements",
                "parameters": [
                    {"name": "id", "in": "path", "type": "string", "required": true}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            },
            "delete": {
                "tags": ["Files"],
                "summary": "Delete a file",
                "parameters": [
                    {"name": "id", "in": "path", "type": "string", "required": true},
                    {"name": "hard", "in": "query", "type": "boolean"}
                ],
                "responses": {
                    "204": {"description": "No Content"}
                }
            }
        },
        "/files/{id}/url": {
            "get": {
                "tags": ["Files"],
                "summary": "Resolve the best serving URL for a file",
                "parameters": [
                    {"name": "id", "in": "path", "type": "string", "required": true},
                    {"name": "download", "in": "query", "type": "boolean"},
                    {"name": "expires", "in": "query", "type": "integer"}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/files/{id}/versions": {
            "get": {
                "tags": ["Versions"],
                "summary": "List a file's versions",
                "parameters": [
                    {"name": "id", "in": "path", "type": "string", "required": true}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/files/{id}/versions/revert": {
            "post": {
                "tags": ["Versions"],
                "summary": "Make a historical version current again",
                "parameters": [
                    {"name": "id", "in": "path", "type": "string", "required": true},
                    {"name": "payload", "in": "body", "required": true, "schema": {"type": "object"}}
                ],
                "responses": {
                    "201": {"description": "Created", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/queue/stats": {
            "get": {
                "tags": ["Queue"],
                "summary": "Report queue depth per status",
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/duplicates": {
            "get": {
                "tags": ["Duplicates"],
                "summary": "List groups of files sharing identical content",
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        }
    },
    "definitions": {
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
