// Package docs registers the OpenAPI document served under /swagger.
// Regenerate with `go generate ./cmd/server` after changing handler annotations.
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
        "/health": {
            "get": {
                "description": "Returns ok while the HTTP server is running.",
                "produces": ["application/json"],
                "tags": ["health"],
                "summary": "Liveness check",
                "responses": {
                    "200": {
                        "description": "Service is alive",
                        "schema": {
                            "type": "object",
                            "additionalProperties": {"type": "string"}
                        }
                    }
                }
            }
        },
        "/health/ready": {
            "get": {
                "description": "Reports component health, shared connection bookkeeping and runtime stats. Unhealthy only when the synthesis manager is missing.",
                "produces": ["application/json"],
                "tags": ["health"],
                "summary": "Readiness check",
                "responses": {
                    "200": {
                        "description": "Healthy or degraded",
                        "schema": {"$ref": "#/definitions/health.HealthResponse"}
                    },
                    "503": {
                        "description": "Unhealthy",
                        "schema": {"$ref": "#/definitions/health.HealthResponse"}
                    }
                }
            }
        },
        "/v1/audio/speech": {
            "post": {
                "description": "Synthesizes the input text over the shared backend connection and returns the audio in the requested format (mp3, opus or wav). Defaults to mp3.",
                "consumes": ["application/json"],
                "produces": ["audio/mpeg", "audio/ogg", "audio/wav"],
                "tags": ["audio"],
                "summary": "Create speech",
                "parameters": [
                    {
                        "description": "Speech synthesis request",
                        "name": "request",
                        "in": "body",
                        "required": true,
                        "schema": {"$ref": "#/definitions/speech.SpeechRequest"}
                    }
                ],
                "responses": {
                    "200": {
                        "description": "Audio data in requested format",
                        "schema": {"type": "file"}
                    },
                    "400": {
                        "description": "Invalid request (missing input, input too long, unsupported format)",
                        "schema": {"$ref": "#/definitions/shared.APIError"}
                    },
                    "429": {
                        "description": "Rate limit exceeded",
                        "schema": {"$ref": "#/definitions/shared.APIError"}
                    },
                    "502": {
                        "description": "Backend unavailable or connection closed",
                        "schema": {"$ref": "#/definitions/shared.APIError"}
                    },
                    "504": {
                        "description": "Synthesis timed out",
                        "schema": {"$ref": "#/definitions/shared.APIError"}
                    }
                }
            }
        },
        "/v1/tts": {
            "get": {
                "description": "Accepts a base64 encoded JSON document {\"ttsdata\":[{\"text\",\"voiceFormat\",\"name\"}]} in the data query parameter and returns every item's audio as base64.",
                "produces": ["application/json"],
                "tags": ["audio"],
                "summary": "Batch speech (legacy)",
                "parameters": [
                    {
                        "type": "string",
                        "description": "Base64 encoded ttsdata document",
                        "name": "data",
                        "in": "query",
                        "required": true
                    }
                ],
                "responses": {
                    "200": {
                        "description": "Converted items in request order",
                        "schema": {
                            "type": "array",
                            "items": {"$ref": "#/definitions/speech.LegacyResult"}
                        }
                    },
                    "400": {
                        "description": "Invalid data, item text or format",
                        "schema": {"$ref": "#/definitions/shared.APIError"}
                    },
                    "429": {
                        "description": "Rate limit exceeded",
                        "schema": {"$ref": "#/definitions/shared.APIError"}
                    },
                    "502": {
                        "description": "Backend unavailable or connection closed",
                        "schema": {"$ref": "#/definitions/shared.APIError"}
                    },
                    "504": {
                        "description": "Synthesis timed out",
                        "schema": {"$ref": "#/definitions/shared.APIError"}
                    }
                }
            }
        },
        "/v1/usage": {
            "get": {
                "description": "Returns per-format hourly conversion counters for the last N hours along with their totals.",
                "produces": ["application/json"],
                "tags": ["usage"],
                "summary": "Get usage",
                "parameters": [
                    {
                        "type": "integer",
                        "default": 24,
                        "description": "Number of hours to report (1-168)",
                        "name": "hours",
                        "in": "query"
                    }
                ],
                "responses": {
                    "200": {
                        "description": "Hourly usage",
                        "schema": {"$ref": "#/definitions/speech.UsageResponse"}
                    },
                    "500": {
                        "description": "Failed to read usage",
                        "schema": {"$ref": "#/definitions/shared.APIError"}
                    },
                    "503": {
                        "description": "Usage tracking not configured",
                        "schema": {"$ref": "#/definitions/shared.APIError"}
                    }
                }
            }
        }
    },
    "definitions": {
        "health.ComponentStatus": {
            "type": "object",
            "properties": {
                "error": {"type": "string"},
                "latency_ms": {"type": "integer"},
                "status": {"$ref": "#/definitions/health.Status"}
            }
        },
        "health.HealthResponse": {
            "type": "object",
            "properties": {
                "components": {
                    "type": "object",
                    "additionalProperties": {"$ref": "#/definitions/health.ComponentStatus"}
                },
                "stats": {"$ref": "#/definitions/health.Stats"},
                "status": {"$ref": "#/definitions/health.Status"},
                "timestamp": {"type": "string"},
                "uptime_seconds": {"type": "integer"},
                "version": {"type": "string"}
            }
        },
        "health.RequestStats": {
            "type": "object",
            "properties": {
                "in_flight": {"type": "integer"},
                "total_requests": {"type": "integer"}
            }
        },
        "health.RuntimeStats": {
            "type": "object",
            "properties": {
                "goroutines": {"type": "integer"},
                "memory_alloc_mb": {"type": "integer"},
                "memory_sys_mb": {"type": "integer"},
                "memory_total_alloc_mb": {"type": "integer"},
                "num_gc": {"type": "integer"}
            }
        },
        "health.Stats": {
            "type": "object",
            "properties": {
                "requests": {"$ref": "#/definitions/health.RequestStats"},
                "runtime": {"$ref": "#/definitions/health.RuntimeStats"},
                "synthesis": {"$ref": "#/definitions/health.SynthesisStats"}
            }
        },
        "health.Status": {
            "type": "string",
            "enum": ["healthy", "degraded", "unhealthy"],
            "x-enum-varnames": ["StatusHealthy", "StatusDegraded", "StatusUnhealthy"]
        },
        "health.SynthesisStats": {
            "type": "object",
            "properties": {
                "buffers": {"type": "integer"},
                "connected": {"type": "boolean"},
                "connection_id": {"type": "string"},
                "pending": {"type": "integer"},
                "state": {"type": "string"}
            }
        },
        "shared.APIError": {
            "type": "object",
            "properties": {
                "code": {"type": "string", "example": "missing_input"},
                "details": {"type": "object"},
                "message": {"type": "string", "example": "Input text is required"}
            }
        },
        "speech.LegacyResult": {
            "type": "object",
            "properties": {
                "audioData": {"type": "string"},
                "contentType": {"type": "string"},
                "id": {"type": "integer"},
                "name": {"type": "string"}
            }
        },
        "speech.SpeechRequest": {
            "type": "object",
            "properties": {
                "input": {"type": "string"},
                "response_format": {"type": "string"}
            }
        },
        "speech.UsageResponse": {
            "type": "object",
            "properties": {
                "hours": {"type": "integer"},
                "totals": {"$ref": "#/definitions/usage.Totals"},
                "usage": {
                    "type": "array",
                    "items": {"$ref": "#/definitions/usage.Hourly"}
                }
            }
        },
        "usage.Hourly": {
            "type": "object",
            "properties": {
                "avg_latency_ms": {"type": "integer"},
                "bytes": {"type": "integer"},
                "date": {"type": "string"},
                "failures": {"type": "integer"},
                "format": {"type": "string"},
                "hour": {"type": "integer"},
                "requests": {"type": "integer"},
                "successes": {"type": "integer"}
            }
        },
        "usage.Totals": {
            "type": "object",
            "properties": {
                "bytes": {"type": "integer"},
                "failures": {"type": "integer"},
                "requests": {"type": "integer"},
                "successes": {"type": "integer"}
            }
        }
    }
}`

// SwaggerInfo holds the general API info from cmd/server/main.go.
var SwaggerInfo = &swag.Spec{
	Version:          "1.0.0",
	Host:             "localhost:8080",
	BasePath:         "/",
	Schemes:          []string{},
	Title:            "TTS Gateway API",
	Description:      "HTTP front end for a streaming text-to-speech backend reached over one shared websocket",
	InfoInstanceName: "swagger",
	SwaggerTemplate:  docTemplate,
	LeftDelim:        "{{",
	RightDelim:       "}}",
}

func init() {
	swag.Register(SwaggerInfo.InstanceName(), SwaggerInfo)
}
