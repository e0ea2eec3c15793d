// Package handlers contains the HTTP handlers of the portal gateway.
package handlers

import (
	"net/http"

	"github.com/mygain/portal-gateway/utils"
)

// NotFound answers requests that match no route
func NotFound(w http.ResponseWriter, r *http.Request) {
	_ = utils.WriteNotFound(w, "Route not found")
}

// MethodNotAllowed answers requests whose path matches but whose method does not
func MethodNotAllowed(w http.ResponseWriter, r *http.Request) {
	_ = utils.WriteError(w, http.StatusMethodNotAllowed, "Method not allowed", nil)
}
