// Package docs registers the OpenAPI description of the API with swag.
package docs

import "github.com/swaggo/swag"

const docTemplate = `{
    "schemes": {{ marshal .Schemes }},
    "swagger": "2.0",
    "info": {
        "description": "{{escape .Description}}",
        "title": "{{.Title}}",
        "contact": {},
        "version": "{{.Version}}"
    },
    "host": "{{.Host}}",
    "basePath": "{{.BasePath}}",
    "paths": {
        "/": {
            "get": {
                "produces": ["application/json"],
                "tags": ["health"],
                "summary": "Service information",
                "responses": {"200": {"description": "OK", "schema": {"$ref": "#/definitions/handlers.ServiceInfoResponse"}}}
            }
        },
        "/health": {
            "get": {
                "description": "Report service health and which integrations are configured",
                "produces": ["application/json"],
                "tags": ["health"],
                "summary": "Health check",
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/handlers.HealthResponse"}},
                    "503": {"description": "Service Unavailable", "schema": {"$ref": "#/definitions/handlers.HealthResponse"}}
                }
            }
        },
        "/system/stats": {
            "get": {
                "produces": ["application/json"],
                "tags": ["system"],
                "summary": "Get system stats",
                "responses": {"200": {"description": "OK", "schema": {"type": "object", "additionalProperties": true}}}
            }
        },
        "/api/v1/detect": {
            "post": {
                "description": "Accepts a multipart \"file\" upload or a JSON body with a base64 image. Uploads get weather/time/location context; live (webcam) requests skip context and trigger alerts.",
                "consumes": ["application/json", "multipart/form-data"],
                "produces": ["application/json"],
                "tags": ["detection"],
                "summary": "Detect fire and smoke in one image",
                "parameters": [
                    {"type": "string", "description": "API key", "name": "X-API-Key", "in": "header"},
                    {"description": "JSON detection request", "name": "request", "in": "body", "schema": {"$ref": "#/definitions/handlers.DetectRequest"}}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"type": "object"}},
                    "400": {"description": "Bad Request", "schema": {"$ref": "#/definitions/handlers.ErrorResponse"}},
                    "401": {"description": "Unauthorized", "schema": {"$ref": "#/definitions/handlers.ErrorResponse"}},
                    "429": {"description": "Too Many Requests", "schema": {"$ref": "#/definitions/handlers.ErrorResponse"}},
                    "503": {"description": "Service Unavailable", "schema": {"$ref": "#/definitions/handlers.ErrorResponse"}}
                }
            }
        },
        "/api/v1/detect/batch": {
            "post": {
                "description": "Runs detection over base64 images in parallel. Item failures are reported per item and never fail the batch.",
                "consumes": ["application/json"],
                "produces": ["application/json"],
                "tags": ["detection"],
                "summary": "Detect fire and smoke in a batch of images",
                "parameters": [
                    {"description": "Batch request", "name": "request", "in": "body", "required": true, "schema": {"$ref": "#/definitions/handlers.BatchRequest"}}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"type": "object"}},
                    "400": {"description": "Bad Request", "schema": {"$ref": "#/definitions/handlers.ErrorResponse"}},
                    "429": {"description": "Too Many Requests", "schema": {"$ref": "#/definitions/handlers.ErrorResponse"}}
                }
            }
        },
        "/api/v1/detect/video": {
            "post": {
                "description": "Samples frames from an uploaded video at the requested rate and runs batch detection over them",
                "consumes": ["multipart/form-data"],
                "produces": ["application/json"],
                "tags": ["detection"],
                "summary": "Detect fire and smoke in a video",
                "parameters": [
                    {"type": "file", "description": "Video file (mp4, avi, mov)", "name": "video", "in": "formData", "required": true},
                    {"type": "string", "description": "Model ID", "name": "model_id", "in": "formData"},
                    {"type": "integer", "description": "Provider confidence threshold (percent)", "name": "confidence", "in": "formData"},
                    {"type": "integer", "description": "Frames to sample per second of video (default: 1)", "name": "fps", "in": "formData"},
                    {"type": "integer", "description": "Maximum frames to analyze (default: 30)", "name": "max_frames", "in": "formData"}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"type": "object"}},
                    "400": {"description": "Bad Request", "schema": {"$ref": "#/definitions/handlers.ErrorResponse"}},
                    "413": {"description": "Request Entity Too Large", "schema": {"$ref": "#/definitions/handlers.ErrorResponse"}},
                    "422": {"description": "Unprocessable Entity", "schema": {"$ref": "#/definitions/handlers.ErrorResponse"}}
                }
            }
        },
        "/api/v1/history": {
            "get": {
                "produces": ["application/json"],
                "tags": ["history"],
                "summary": "Detection history",
                "parameters": [
                    {"type": "string", "description": "API key", "name": "X-API-Key", "in": "header", "required": true},
                    {"type": "integer", "description": "Maximum records (default: 100)", "name": "limit", "in": "query"},
                    {"type": "integer", "description": "Records to skip (default: 0)", "name": "offset", "in": "query"}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"type": "object"}},
                    "401": {"description": "Unauthorized", "schema": {"$ref": "#/definitions/handlers.ErrorResponse"}}
                }
            }
        },
        "/api/v1/analytics": {
            "get": {
                "produces": ["application/json"],
                "tags": ["history"],
                "summary": "Detection analytics",
                "parameters": [
                    {"type": "string", "description": "API key", "name": "X-API-Key", "in": "header", "required": true},
                    {"type": "integer", "description": "Window in days (default: 30)", "name": "days", "in": "query"}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"type": "object"}},
                    "401": {"description": "Unauthorized", "schema": {"$ref": "#/definitions/handlers.ErrorResponse"}}
                }
            }
        },
        "/api/v1/webhooks": {
            "get": {
                "produces": ["application/json"],
                "tags": ["webhooks"],
                "summary": "List webhooks",
                "parameters": [{"type": "string", "description": "API key", "name": "X-API-Key", "in": "header", "required": true}],
                "responses": {"200": {"description": "OK", "schema": {"type": "object"}}}
            },
            "post": {
                "consumes": ["application/json"],
                "produces": ["application/json"],
                "tags": ["webhooks"],
                "summary": "Register a webhook",
                "parameters": [
                    {"type": "string", "description": "API key", "name": "X-API-Key", "in": "header", "required": true},
                    {"description": "Webhook", "name": "request", "in": "body", "required": true, "schema": {"$ref": "#/definitions/handlers.CreateWebhookRequest"}}
                ],
                "responses": {
                    "201": {"description": "Created", "schema": {"type": "object"}},
                    "400": {"description": "Bad Request", "schema": {"$ref": "#/definitions/handlers.ErrorResponse"}}
                }
            }
        },
        "/api/v1/webhooks/{id}": {
            "delete": {
                "produces": ["application/json"],
                "tags": ["webhooks"],
                "summary": "Delete a webhook",
                "parameters": [
                    {"type": "string", "description": "API key", "name": "X-API-Key", "in": "header", "required": true},
                    {"type": "integer", "description": "Webhook ID", "name": "id", "in": "path", "required": true}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/handlers.SuccessResponse"}},
                    "404": {"description": "Not Found", "schema": {"$ref": "#/definitions/handlers.ErrorResponse"}}
                }
            }
        },
        "/api/v1/auth/register": {
            "post": {
                "description": "Creates an account and returns its first API key. The raw key is only shown once.",
                "consumes": ["application/json"],
                "produces": ["application/json"],
                "tags": ["auth"],
                "summary": "Register a user",
                "parameters": [{"description": "Account", "name": "request", "in": "body", "required": true, "schema": {"$ref": "#/definitions/handlers.RegisterRequest"}}],
                "responses": {
                    "201": {"description": "Created", "schema": {"type": "object"}},
                    "400": {"description": "Bad Request", "schema": {"$ref": "#/definitions/handlers.ErrorResponse"}},
                    "409": {"description": "Conflict", "schema": {"$ref": "#/definitions/handlers.ErrorResponse"}}
                }
            }
        },
        "/api/v1/auth/login": {
            "post": {
                "consumes": ["application/json"],
                "produces": ["application/json"],
                "tags": ["auth"],
                "summary": "Verify credentials",
                "parameters": [{"description": "Credentials", "name": "request", "in": "body", "required": true, "schema": {"$ref": "#/definitions/handlers.LoginRequest"}}],
                "responses": {
                    "200": {"description": "OK", "schema": {"type": "object"}},
                    "401": {"description": "Unauthorized", "schema": {"$ref": "#/definitions/handlers.ErrorResponse"}}
                }
            }
        },
        "/api/v1/keys": {
            "get": {
                "produces": ["application/json"],
                "tags": ["auth"],
                "summary": "List API keys",
                "security": [{"BasicAuth": []}],
                "responses": {"200": {"description": "OK", "schema": {"type": "object"}}}
            },
            "post": {
                "consumes": ["application/json"],
                "produces": ["application/json"],
                "tags": ["auth"],
                "summary": "Generate an API key",
                "security": [{"BasicAuth": []}],
                "responses": {"201": {"description": "Created", "schema": {"type": "object"}}}
            }
        },
        "/api/v1/alerts/settings": {
            "get": {
                "produces": ["application/json"],
                "tags": ["alerts"],
                "summary": "Get alert settings",
                "parameters": [{"type": "string", "description": "API key", "name": "X-API-Key", "in": "header", "required": true}],
                "responses": {"200": {"description": "OK", "schema": {"type": "object"}}}
            },
            "put": {
                "consumes": ["application/json"],
                "produces": ["application/json"],
                "tags": ["alerts"],
                "summary": "Update alert settings",
                "parameters": [
                    {"type": "string", "description": "API key", "name": "X-API-Key", "in": "header", "required": true},
                    {"description": "Alert settings", "name": "request", "in": "body", "required": true, "schema": {"$ref": "#/definitions/handlers.AlertSettingsRequest"}}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"type": "object"}},
                    "400": {"description": "Bad Request", "schema": {"$ref": "#/definitions/handlers.ErrorResponse"}}
                }
            }
        }
    },
    "definitions": {
        "handlers.ErrorResponse": {
            "type": "object",
            "properties": {
                "error": {"type": "string", "example": "Invalid API key"},
                "details": {"type": "string"}
            }
        },
        "handlers.SuccessResponse": {
            "type": "object",
            "properties": {
                "success": {"type": "boolean", "example": true},
                "message": {"type": "string"}
            }
        },
        "handlers.HealthResponse": {
            "type": "object",
            "properties": {
                "status": {"type": "string", "example": "healthy"},
                "version": {"type": "string", "example": "1.0.0"},
                "instance_id": {"type": "string", "example": "firesmoke-1"},
                "features": {"type": "array", "items": {"type": "string"}},
                "api_keys_configured": {"type": "object", "additionalProperties": {"type": "boolean"}},
                "database": {"type": "string", "example": "ok"},
                "event_bus": {"type": "string", "example": "disabled"}
            }
        },
        "handlers.ServiceInfoResponse": {
            "type": "object",
            "properties": {
                "name": {"type": "string"},
                "version": {"type": "string"},
                "instance_id": {"type": "string"},
                "docs": {"type": "string"},
                "endpoints": {"type": "object", "additionalProperties": {"type": "string"}}
            }
        },
        "handlers.DetectRequest": {
            "type": "object",
            "properties": {
                "image": {"type": "string", "example": "data:image/jpeg;base64,/9j/4AAQ..."},
                "model_id": {"type": "string", "example": "fire-and-smoke-0izsi/2"},
                "confidence": {"type": "integer", "example": 40},
                "use_context": {"type": "boolean"},
                "is_webcam": {"type": "boolean"},
                "live": {"type": "boolean"},
                "location": {"type": "string", "example": "Warehouse A"},
                "city": {"type": "string", "example": "Bongao"},
                "notification_email": {"type": "string"},
                "notification_phone": {"type": "string"}
            }
        },
        "handlers.BatchRequest": {
            "type": "object",
            "properties": {
                "images": {"type": "array", "items": {"type": "string"}},
                "model_id": {"type": "string", "example": "fire-and-smoke-0izsi/2"},
                "confidence": {"type": "integer", "example": 40},
                "max_workers": {"type": "integer", "example": 5}
            }
        },
        "handlers.CreateWebhookRequest": {
            "type": "object",
            "required": ["url"],
            "properties": {
                "url": {"type": "string", "example": "https://example.com/hooks/fire"},
                "event_type": {"type": "string", "enum": ["all", "fire_detected", "smoke_detected"], "example": "all"}
            }
        },
        "handlers.RegisterRequest": {
            "type": "object",
            "properties": {
                "username": {"type": "string", "example": "operator"},
                "email": {"type": "string", "example": "operator@example.com"},
                "password": {"type": "string"}
            }
        },
        "handlers.LoginRequest": {
            "type": "object",
            "properties": {
                "username": {"type": "string", "example": "operator"},
                "password": {"type": "string"}
            }
        },
        "handlers.AlertSettingsRequest": {
            "type": "object",
            "properties": {
                "email_enabled": {"type": "boolean"},
                "email_address": {"type": "string", "example": "ops@example.com"},
                "sms_enabled": {"type": "boolean"},
                "phone_number": {"type": "string", "example": "+15550001111"},
                "alert_for_fire": {"type": "boolean"},
                "alert_for_smoke": {"type": "boolean"},
                "min_confidence": {"type": "integer", "example": 50}
            }
        }
    },
    "securityDefinitions": {
        "BasicAuth": {"type": "basic"},
        "ApiKeyAuth": {"type": "apiKey", "name": "X-API-Key", "in": "header"}
    }
}`

// SwaggerInfo holds exported Swagger Info so clients can modify it
var SwaggerInfo = &swag.Spec{
	Version:          "1.0.0",
	Host:             "localhost:5000",
	BasePath:         "/",
	Schemes:          []string{"http", "https"},
	Title:            "Fire & Smoke Detection API",
	Description:      "Fire and smoke detection over images, image batches and video, with weather-aware confidence adjustment and multi-channel alerting",
	InfoInstanceName: "swagger",
	SwaggerTemplate:  docTemplate,
	LeftDelim:        "{{",
	RightDelim:       "}}",
}

func init() {
	swag.Register(SwaggerInfo.InstanceName(), SwaggerInfo)
}
