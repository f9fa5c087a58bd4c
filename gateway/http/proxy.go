package http

import (
	"encoding/json"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/99designs/gqlgen/graphql/playground"

	"github.com/c360/osdugate/errors"
)

// presignExpiry is how long redirect links to the artifact store stay valid
const presignExpiry = 15 * time.Minute

// graphqlBody is the standard GraphQL POST body
type graphqlBody struct {
	Query         string         `json:"query"`
	OperationName string         `json:"operationName,omitempty"`
	Variables     map[string]any `json:"variables,omitempty"`
}

// handleGraphQL proxies a raw GraphQL document to one OSDU service. The
// SPA never holds upstream credentials; the gateway injects them.
func (s *Server) handleGraphQL(w http.ResponseWriter, r *http.Request) {
	service := r.PathValue("service")

	var body graphqlBody
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeError(w, http.StatusBadRequest, "invalid GraphQL request body")
		return
	}
	if body.Query == "" {
		writeError(w, http.StatusBadRequest, "query is required")
		return
	}

	data, err := s.osdu.Execute(r.Context(), service, partition(r), body.Query, body.Variables)
	if err != nil {
		// GraphQL clients expect an errors array in the envelope
		writeJSON(w, statusFor(err), map[string]any{
			"errors": []map[string]string{{"message": sanitize(err)}},
		})
		return
	}

	writeJSON(w, http.StatusOK, map[string]json.RawMessage{"data": data})
}

// handlePlayground serves the gqlgen playground pointed at the
// pass-through endpoint for the requested service
func (s *Server) handlePlayground(w http.ResponseWriter, r *http.Request) {
	service := r.PathValue("service")
	playground.Handler("OSDU Explorer", "/graphql/"+service).ServeHTTP(w, r)
}

// introspectionSummary is the SPA-facing view of a discovered schema
type introspectionSummary struct {
	Service        string    `json:"service"`
	QueryFields    []string  `json:"queryFields"`
	MutationFields []string  `json:"mutationFields,omitempty"`
	FetchedAt      time.Time `json:"fetchedAt"`
}

func (s *Server) handleIntrospection(w http.ResponseWriter, r *http.Request) {
	service := r.PathValue("service")

	schema, err := s.schemas.Schema(r.Context(), service, partition(r))
	if err != nil {
		s.writeUpstreamError(w, r, err)
		return
	}

	summary := introspectionSummary{
		Service:   schema.Service,
		FetchedAt: schema.FetchedAt,
	}
	for _, f := range schema.QueryFields {
		summary.QueryFields = append(summary.QueryFields, f.Name)
	}
	for _, f := range schema.MutationFields {
		summary.MutationFields = append(summary.MutationFields, f.Name)
	}
	writeJSON(w, http.StatusOK, summary)
}

// handleFile proxies artifact previews from the object store. Objects
// above the preview limit, or requests with ?presign=true, get a redirect
// to a time-limited direct URL instead.
func (s *Server) handleFile(w http.ResponseWriter, r *http.Request) {
	key := r.PathValue("key")
	if key == "" {
		writeError(w, http.StatusBadRequest, "file key is required")
		return
	}

	if r.URL.Query().Get("presign") == "true" {
		s.redirectPresigned(w, r, key)
		return
	}

	obj, err := s.files.Fetch(r.Context(), key)
	if err != nil {
		if errors.IsInvalid(err) && !errors.IsNotFound(err) {
			// Too large for inline preview
			s.redirectPresigned(w, r, key)
			return
		}
		s.writeUpstreamError(w, r, err)
		return
	}
	defer obj.Body.Close()

	w.Header().Set("Content-Type", obj.ContentType)
	if obj.Size > 0 {
		w.Header().Set("Content-Length", strconv.FormatInt(obj.Size, 10))
	}
	w.WriteHeader(http.StatusOK)

	if _, err := io.Copy(w, obj.Body); err != nil {
		s.logger.Warn("file stream interrupted", "key", key, "error", err)
	}
}

func (s *Server) redirectPresigned(w http.ResponseWriter, r *http.Request, key string) {
	u, err := s.files.PresignedURL(r.Context(), key, presignExpiry)
	if err != nil {
		s.writeUpstreamError(w, r, err)
		return
	}
	http.Redirect(w, r, u, http.StatusTemporaryRedirect)
}
