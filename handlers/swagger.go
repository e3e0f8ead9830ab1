package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// RegisterSwagger registers the Swagger UI and the OpenAPI document of the gateway.
// - GET /swagger/index.html  -> a small HTML page that loads the OpenAPI JSON
// - GET /swagger/doc.json    -> machine-readable OpenAPI JSON
func RegisterSwagger(rg *gin.Engine) {
	rg.GET("/swagger/index.html", func(c *gin.Context) {
		c.Header("Content-Type", "text/html; charset=utf-8")
		c.String(http.StatusOK, swaggerHTML)
	})

	rg.GET("/swagger/doc.json", func(c *gin.Context) {
		c.Data(http.StatusOK, "application/json; charset=utf-8", []byte(swaggerJSON))
	})
}

const swaggerHTML = `<!doctype html>
<html>
  <head>
    <meta charset="utf-8" />
    <title>docflow gateway - Swagger</title>
    <link rel="stylesheet" href="https://unpkg.com/swagger-ui-dist@4/swagger-ui.css" />
  </head>
  <body>
    <div id="swagger-ui"></div>
    <script src="https://unpkg.com/swagger-ui-dist@4/swagger-ui-bundle.js"></script>
    <script>
      window.ui = SwaggerUIBundle({
        url: '/swagger/doc.json',
        dom_id: '#swagger-ui',
      })
    </script>
  </body>
</html>`

const swaggerJSON = `{
  "openapi": "3.0.0",
  "info": { "title": "docflow-gateway", "version": "v0.1.0" },
  "paths": {
    "/api/session": {
      "post": {
        "summary": "Log in and open a session cookie",
        "requestBody": { "content": { "application/json": { "schema": {"type":"object","required":["username","password"],"properties":{"username":{"type":"string"},"password":{"type":"string"}}}}}},
        "responses": { "200": { "description": "session opened" }, "401": { "description": "bad credentials" } }
      },
      "get": { "summary": "Current user", "responses": { "200": { "description": "user" }, "401": { "description": "not logged in" } } },
      "delete": { "summary": "Log out", "responses": { "204": { "description": "session destroyed" } } }
    },
    "/api/documents": {
      "get": {
        "summary": "Documents of every realm the caller belongs to",
        "parameters": [
          {"name":"status","in":"query","schema":{"type":"string","enum":["draft","pending_review","rejected","published"]}},
          {"name":"creator","in":"query","schema":{"type":"string"}},
          {"name":"limit","in":"query","schema":{"type":"integer"}},
          {"name":"offset","in":"query","schema":{"type":"integer"}}
        ],
        "responses": { "200": { "description": "documents and failed realms" }, "401": { "description": "login required" } }
      }
    },
    "/api/realms/{realm}/documents": {
      "post": { "summary": "Create a document in a realm", "requestBody": { "content": { "application/json": { "schema": {"type":"object","properties":{"title":{"type":"string"},"description":{"type":"string"}}}}}}, "responses": { "201": { "description": "created" } } }
    },
    "/api/documents/{id}": {
      "get": { "summary": "Document detail", "responses": { "200": { "description": "document" }, "404": { "description": "not found" } } },
      "patch": { "summary": "Update title, description, status or current_reviewer_id", "responses": { "200": { "description": "updated" }, "400": { "description": "no updatable fields" } } },
      "put": { "summary": "Full update of the updatable fields", "responses": { "200": { "description": "updated" } } }
    },
    "/api/documents/{id}/content": { "get": { "summary": "Markdown body", "responses": { "200": { "description": "content" } } } },
    "/api/documents/{id}/submit": { "post": { "summary": "Submit for review", "requestBody": { "content": { "application/json": { "schema": {"type":"object","properties":{"reviewerId":{"type":"integer"}}}}}}, "responses": { "200": { "description": "pending review" } } } },
    "/api/documents/{id}/review": { "post": { "summary": "Approve or reject", "requestBody": { "content": { "application/json": { "schema": {"type":"object","properties":{"action":{"type":"string","enum":["approve","reject"]},"reason":{"type":"string"}}}}}}, "responses": { "200": { "description": "review recorded" } } } },
    "/api/documents/{id}/history": { "get": { "summary": "Review history", "responses": { "200": { "description": "records" } } } },
    "/api/notifications": { "get": { "summary": "Notifications of the caller", "responses": { "200": { "description": "notifications" } } } },
    "/api/notifications/{id}": { "patch": { "summary": "Set the read flag", "responses": { "200": { "description": "notification" } } } },
    "/api/groups": { "get": { "summary": "All realms (admin)", "responses": { "200": { "description": "groups" } } } },
    "/api/groups/names": { "get": { "summary": "Names of the caller's realms", "responses": { "200": { "description": "id to name" } } } },
    "/api/groups/{id}/reviewers": { "get": { "summary": "Reviewers of a realm", "responses": { "200": { "description": "reviewers" } } } },
    "/api/users/{id}/username": { "get": { "summary": "Username lookup", "responses": { "200": { "description": "username" } } } },
    "/api/uploads": { "post": { "summary": "Upload markdown or an image", "responses": { "201": { "description": "object url" }, "400": { "description": "unsupported file type" } } } },
    "/health": { "get": { "summary": "Liveness check", "responses": { "200": { "description": "healthy" } } } },
    "/ready": { "get": { "summary": "Readiness check", "responses": { "200": { "description": "ready" }, "503": { "description": "not ready" } } } },
    "/metrics": { "get": { "summary": "Prometheus metrics", "responses": { "200": { "description": "metrics" } } } }
  }
}`
