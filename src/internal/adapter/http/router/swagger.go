package router

import (
	"fmt"
	"net/http"
)

func registerSwaggerRoutes(mux *http.ServeMux) {
	mux.HandleFunc("/swagger", func(w http.ResponseWriter, r *http.Request) {
		http.Redirect(w, r, "/swagger/", http.StatusMovedPermanently)
	})

	mux.HandleFunc("/swagger/", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		w.WriteHeader(http.StatusOK)
		_, _ = fmt.Fprintf(w, swaggerHTML, "/swagger/openapi.json")
	})

	mux.HandleFunc("/swagger/openapi.json", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(openAPI))
	})
}

const swaggerHTML = `<!doctype html>
<html>
<head>
  <meta charset="utf-8" />
  <title>Anchor Clearing Engine API Docs</title>
  <link rel="stylesheet" href="https://unpkg.com/swagger-ui-dist@5/swagger-ui.css" />
</head>
<body>
  <div id="swagger-ui"></div>
  <script src="https://unpkg.com/swagger-ui-dist@5/swagger-ui-bundle.js"></script>
  <script>
    window.onload = function() {
      window.ui = SwaggerUIBundle({
        url: "%s",
        dom_id: "#swagger-ui"
      });
    };
  </script>
</body>
</html>`

const openAPI = `{
  "openapi": "3.0.3",
  "info": {
    "title": "Anchor Clearing Engine API",
    "version": "1.0.0"
  },
  "paths": {
    "/clear-obligation": {
      "post": {
        "summary": "Clear an obligation against an anchor",
        "security": [
          {
            "BasicAuth": []
          }
        ],
        "requestBody": {
          "required": true,
          "content": {
            "application/json": {
              "schema": {
                "type": "object",
                "required": ["intentId", "userId", "anchorType", "units", "amount"],
                "properties": {
                  "intentId": {"type": "string", "example": "intent-7f3a"},
                  "userId": {"type": "string", "example": "0xA1B2"},
                  "anchorType": {"type": "string", "example": "GROCERY"},
                  "units": {"type": "integer", "minimum": 1, "example": 25},
                  "amount": {"type": "string", "example": "25.00"}
                }
              }
            }
          }
        },
        "responses": {
          "200": {"description": "Clearing fulfilled or failed definitively"},
          "202": {"description": "Clearing pending reconciliation"},
          "400": {"description": "Validation error"},
          "401": {"description": "Unauthorized"},
          "409": {"description": "Intent id reused with a different payload"},
          "422": {"description": "Insufficient balance, daily cap or anchor unavailable"},
          "500": {"description": "Server error"}
        }
      }
    },
    "/anchor-obligations": {
      "get": {
        "summary": "Get obligation counters for one anchor type",
        "security": [
          {
            "BasicAuth": []
          }
        ],
        "parameters": [
          {
            "name": "anchorType",
            "in": "query",
            "required": true,
            "schema": {
              "type": "string",
              "pattern": "^[A-Z]{2,32}$"
            }
          }
        ],
        "responses": {
          "200": {"description": "Anchor obligation fetched"},
          "400": {"description": "Validation error"},
          "401": {"description": "Unauthorized"},
          "404": {"description": "Anchor obligation not found"},
          "500": {"description": "Server error"}
        }
      }
    }
  },
  "components": {
    "securitySchemes": {
      "BasicAuth": {
        "type": "http",
        "scheme": "basic"
      }
    }
  }
}`
