package swagger

import "github.com/swaggo/swag"

const docTemplate = `{
    "swagger": "2.0",
    "info": {
        "title": "FieldSync API",
        "description": "Offline submission sync and multipart upload coordination for field data collection.",
        "version": "1.0.0"
    },
    "basePath": "/api/v1",
    "schemes": [
        "http"
    ],
    "securityDefinitions": {
        "BearerAuth": {"type": "apiKey", "name": "Authorization", "in": "header"}
    },
    "tags": [
        {"name": "Sync", "description": "Offline batch synchronisation"},
        {"name": "Submissions", "description": "Online submission lifecycle"},
        {"name": "Uploads", "description": "Direct-to-store multipart uploads"},
        {"name": "Storage", "description": "Signed URL endpoints of the filesystem store"}
    ],
    "paths": {
        "/sync/submissions": {
            "post": {
                "tags": ["Sync"],
                "summary": "Sync a batch of offline submissions",
                "security": [{"BearerAuth": []}],
                "parameters": [
                    {"name": "X-Device-ID", "in": "header", "type": "string"},
                    {"name": "payload", "in": "body", "required": true, "schema": {"$ref": "#/definitions/SyncBatchRequest"}}
                ],
                "responses": {
                    "200": {"description": "Per-item results", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "400": {"description": "Malformed batch", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/sync/status": {
            "get": {
                "tags": ["Sync"],
                "summary": "Sync status of a device",
                "security": [{"BearerAuth": []}],
                "parameters": [
                    {"name": "deviceId", "in": "query", "type": "string"},
                    {"name": "X-Device-ID", "in": "header", "type": "string"}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/submissions": {
            "post": {
                "tags": ["Submissions"],
                "summary": "Create a submission",
                "security": [{"BearerAuth": []}],
                "parameters": [
                    {"name": "payload", "in": "body", "required": true, "schema": {"$ref": "#/definitions/SubmissionItem"}}
                ],
                "responses": {
                    "201": {"description": "Created", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "409": {"description": "Client id already synced", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/submissions/{id}": {
            "get": {
                "tags": ["Submissions"],
                "summary": "Get a submission with its attachments",
                "security": [{"BearerAuth": []}],
                "parameters": [
                    {"name": "id", "in": "path", "required": true, "type": "integer"}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "404": {"description": "Not found", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/submissions/{id}/status": {
            "patch": {
                "tags": ["Submissions"],
                "summary": "Move a submission through review",
                "security": [{"BearerAuth": []}],
                "parameters": [
                    {"name": "id", "in": "path", "required": true, "type": "integer"},
                    {"name": "payload", "in": "body", "required": true, "schema": {"$ref": "#/definitions/UpdateSubmissionStatusRequest"}}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "409": {"description": "Invalid transition", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/uploads/multipart": {
            "post": {
                "tags": ["Uploads"],
                "summary": "Open a multipart upload",
                "security": [{"BearerAuth": []}],
                "parameters": [
                    {"name": "payload", "in": "body", "required": true, "schema": {"$ref": "#/definitions/InitiateUploadRequest"}}
                ],
                "responses": {
                    "201": {"description": "Created", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "502": {"description": "Object store failure", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/uploads/multipart/complete": {
            "post": {
                "tags": ["Uploads"],
                "summary": "Complete a multipart upload",
                "security": [{"BearerAuth": []}],
                "parameters": [
                    {"name": "payload", "in": "body", "required": true, "schema": {"$ref": "#/definitions/CompleteUploadRequest"}}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "502": {"description": "Object store failure", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/uploads/multipart/abort": {
            "post": {
                "tags": ["Uploads"],
                "summary": "Abort a multipart upload",
                "security": [{"BearerAuth": []}],
                "parameters": [
                    {"name": "payload", "in": "body", "required": true, "schema": {"$ref": "#/definitions/AbortUploadRequest"}}
                ],
                "responses": {
                    "204": {"description": "No Content"},
                    "404": {"description": "Upload not found", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/objects/{id}/download-url": {
            "get": {
                "tags": ["Uploads"],
                "summary": "Sign a download URL for a registered object",
                "security": [{"BearerAuth": []}],
                "parameters": [
                    {"name": "id", "in": "path", "required": true, "type": "integer"}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "404": {"description": "Not found", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/storage/objects": {
            "put": {
                "tags": ["Storage"],
                "summary": "Upload an object or part against a signed token",
                "consumes": ["application/octet-stream"],
                "parameters": [
                    {"name": "token", "in": "query", "required": true, "type": "string"}
                ],
                "responses": {
                    "200": {"description": "ETag header carries the stored checksum"},
                    "403": {"description": "Invalid or expired token", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            },
            "get": {
                "tags": ["Storage"],
                "summary": "Download an object against a signed token",
                "produces": ["application/octet-stream"],
                "parameters": [
                    {"name": "token", "in": "query", "required": true, "type": "string"}
                ],
                "responses": {
                    "200": {"description": "Object body"},
                    "403": {"description": "Invalid or expired token", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "404": {"description": "Not found", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        }
    },
    "definitions": {
        "Geolocation": {
            "type": "object",
            "properties": {
                "latitude": {"type": "number"},
                "longitude": {"type": "number"},
                "accuracy": {"type": "number"}
            }
        },
        "SubmissionAttachment": {
            "type": "object",
            "required": ["fieldName", "fileName"],
            "properties": {
                "fieldName": {"type": "string"},
                "fileName": {"type": "string"},
                "objectId": {"type": "integer"},
                "description": {"type": "string"}
            }
        },
        "SubmissionItem": {
            "type": "object",
            "required": ["clientId", "templateId", "templateVersion"],
            "properties": {
                "clientId": {"type": "string", "maxLength": 100},
                "templateId": {"type": "integer"},
                "templateVersion": {"type": "integer"},
                "data": {"type": "object"},
                "status": {"type": "string", "enum": ["draft", "submitted", "verified", "rejected"]},
                "geolocation": {"$ref": "#/definitions/Geolocation"},
                "deviceInfo": {"type": "object"},
                "isOfflineSubmission": {"type": "boolean"},
                "attachments": {"type": "array", "items": {"$ref": "#/definitions/SubmissionAttachment"}}
            }
        },
        "SyncBatchRequest": {
            "type": "object",
            "required": ["submissions"],
            "properties": {
                "deviceId": {"type": "string"},
                "submissions": {"type": "array", "items": {"$ref": "#/definitions/SubmissionItem"}}
            }
        },
        "UpdateSubmissionStatusRequest": {
            "type": "object",
            "required": ["status"],
            "properties": {
                "status": {"type": "string", "enum": ["submitted", "verified", "rejected"]},
                "notes": {"type": "string"}
            }
        },
        "InitiateUploadRequest": {
            "type": "object",
            "required": ["fileName", "contentType", "parts"],
            "properties": {
                "fileName": {"type": "string"},
                "contentType": {"type": "string"},
                "parts": {"type": "integer", "minimum": 1},
                "submissionId": {"type": "integer"},
                "formTemplateId": {"type": "integer"},
                "projectId": {"type": "integer"}
            }
        },
        "UploadedPart": {
            "type": "object",
            "required": ["partNumber", "etag"],
            "properties": {
                "partNumber": {"type": "integer"},
                "etag": {"type": "string"}
            }
        },
        "CompleteUploadRequest": {
            "type": "object",
            "required": ["uploadId", "key", "parts"],
            "properties": {
                "uploadId": {"type": "string"},
                "key": {"type": "string"},
                "contentType": {"type": "string"},
                "parts": {"type": "array", "items": {"$ref": "#/definitions/UploadedPart"}}
            }
        },
        "AbortUploadRequest": {
            "type": "object",
            "required": ["uploadId", "key"],
            "properties": {
                "uploadId": {"type": "string"},
                "key": {"type": "string"}
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
