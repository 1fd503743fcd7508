// Package swagger holds the hand-written OpenAPI document swag's
// code generator would otherwise produce from route annotations. The
// generator was not run against this tree, so the document below is
// maintained by hand and kept in sync with cmd/gateway's route
// annotations.
package swagger

import "github.com/swaggo/swag"

const docTemplate = `{
    "schemes": {{ marshal .Schemes }},
    "swagger": "2.0",
    "info": {
        "description": "{{escape .Description}}",
        "title": "{{.Title}}",
        "contact": {
            "name": "API Support",
            "email": "support@hastyconnect.com"
        },
        "license": {
            "name": "MIT",
            "url": "https://opensource.org/licenses/MIT"
        },
        "version": "{{.Version}}"
    },
    "host": "{{.Host}}",
    "basePath": "{{.BasePath}}",
    "paths": {
        "/api/item": {
            "post": {
                "description": "Creates a new item in the item bounded context.",
                "produces": ["application/json"],
                "tags": ["items"],
                "summary": "Create an item",
                "responses": {
                    "201": {"description": "Created"},
                    "400": {"description": "Bad Request"}
                }
            }
        },
        "/health": {
            "get": {
                "description": "Reports the process's database/redis/broker connectivity.",
                "produces": ["application/json"],
                "tags": ["ops"],
                "summary": "Health check",
                "responses": {
                    "200": {"description": "OK"},
                    "503": {"description": "Service Unavailable"}
                }
            }
        },
        "/ws": {
            "get": {
                "description": "Upgrades to a WebSocket connection and joins the broadcast hub.",
                "tags": ["ops"],
                "summary": "WebSocket relay"
            }
        }
    }
}`

// SwaggerInfo holds exported Swagger metadata, matching the shape
// swag's generator emits.
var SwaggerInfo = &swag.Spec{
	Version:          "1.0",
	Host:             "localhost:8080",
	BasePath:         "/",
	Schemes:          []string{"http", "https"},
	Title:            "relay API",
	Description:      "Modular service framework: item bounded context plus the kernel-based example services.",
	InfoInstanceName: "swagger",
	SwaggerTemplate:  docTemplate,
	LeftDelim:        "{{",
	RightDelim:       "}}",
}

func init() {
	swag.Register(SwaggerInfo.InstanceName(), SwaggerInfo)
}
