package http

import "net/http"

// NotFoundHandler answers routes no service owns with a JSON 404 naming the
// path, so misrouted inter-service calls are easy to spot in logs.
func NotFoundHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		writeError(w, http.StatusNotFound, codeNotFound, "no route for "+r.URL.Path)
	})
}
