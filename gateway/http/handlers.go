package http

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/c360/osdugate/osdu"
)

// partition pulls the data partition from the request header. An empty
// value lets the OSDU client fall back to the configured default.
func partition(r *http.Request) string {
	return r.Header.Get(partitionHeader)
}

// searchBody is the SPA-facing search request
type searchBody struct {
	Kind          string          `json:"kind"`
	Query         string          `json:"query,omitempty"`
	Limit         int             `json:"limit,omitempty"`
	Cursor        string          `json:"cursor,omitempty"`
	SpatialFilter json.RawMessage `json:"spatialFilter,omitempty"`
}

func (s *Server) handleSearch(w http.ResponseWriter, r *http.Request) {
	var body searchBody
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeError(w, http.StatusBadRequest, "invalid search request body")
		return
	}
	if body.Kind == "" {
		writeError(w, http.StatusBadRequest, "kind is required")
		return
	}

	result, err := s.osdu.Search(r.Context(), partition(r), osdu.SearchRequest{
		Kind:          body.Kind,
		Query:         body.Query,
		Limit:         body.Limit,
		Cursor:        body.Cursor,
		SpatialFilter: body.SpatialFilter,
	})
	if err != nil {
		s.writeUpstreamError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

func (s *Server) handleListSchemas(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	filter := osdu.SchemaFilter{
		Authority:  q.Get("authority"),
		Source:     q.Get("source"),
		EntityType: q.Get("entityType"),
	}
	if limit := q.Get("limit"); limit != "" {
		n, err := parsePositiveInt(limit)
		if err != nil {
			writeError(w, http.StatusBadRequest, "limit must be a positive integer")
			return
		}
		filter.Limit = n
	}

	schemas, err := s.osdu.ListSchemas(r.Context(), partition(r), filter)
	if err != nil {
		s.writeUpstreamError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, schemas)
}

func (s *Server) handleGetSchema(w http.ResponseWriter, r *http.Request) {
	schema, err := s.osdu.GetSchema(r.Context(), partition(r), r.PathValue("id"))
	if err != nil {
		s.writeUpstreamError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, schema)
}

func (s *Server) handleListLegalTags(w http.ResponseWriter, r *http.Request) {
	validOnly := r.URL.Query().Get("valid") != "false"

	tags, err := s.osdu.ListLegalTags(r.Context(), partition(r), validOnly)
	if err != nil {
		s.writeUpstreamError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, tags)
}

func (s *Server) handleGetLegalTag(w http.ResponseWriter, r *http.Request) {
	tag, err := s.osdu.GetLegalTag(r.Context(), partition(r), r.PathValue("name"))
	if err != nil {
		s.writeUpstreamError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, tag)
}

func (s *Server) handleCreateLegalTag(w http.ResponseWriter, r *http.Request) {
	var tag osdu.LegalTag
	if err := json.NewDecoder(r.Body).Decode(&tag); err != nil {
		writeError(w, http.StatusBadRequest, "invalid legal tag body")
		return
	}
	if tag.Name == "" {
		writeError(w, http.StatusBadRequest, "name is required")
		return
	}

	created, err := s.osdu.CreateLegalTag(r.Context(), partition(r), tag)
	if err != nil {
		s.writeUpstreamError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, created)
}

func (s *Server) handleCountryCodes(w http.ResponseWriter, r *http.Request) {
	codes, err := s.osdu.ListCountryCodes(r.Context(), partition(r))
	if err != nil {
		s.writeUpstreamError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, codes)
}

func (s *Server) handleMyGroups(w http.ResponseWriter, r *http.Request) {
	groups, err := s.osdu.MyGroups(r.Context(), partition(r))
	if err != nil {
		s.writeUpstreamError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, groups)
}

func (s *Server) handleGroupMembers(w http.ResponseWriter, r *http.Request) {
	members, err := s.osdu.GroupMembers(r.Context(), partition(r), r.PathValue("group"))
	if err != nil {
		s.writeUpstreamError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, members)
}

func (s *Server) handleAddMember(w http.ResponseWriter, r *http.Request) {
	var body osdu.Member
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeError(w, http.StatusBadRequest, "invalid member body")
		return
	}
	if body.Email == "" {
		writeError(w, http.StatusBadRequest, "email is required")
		return
	}

	member, err := s.osdu.AddMember(r.Context(), partition(r), r.PathValue("group"), body.Email, body.Role)
	if err != nil {
		s.writeUpstreamError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, member)
}

func (s *Server) handleRemoveMember(w http.ResponseWriter, r *http.Request) {
	err := s.osdu.RemoveMember(r.Context(), partition(r), r.PathValue("group"), r.PathValue("member"))
	if err != nil {
		s.writeUpstreamError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleGetRecord(w http.ResponseWriter, r *http.Request) {
	record, err := s.osdu.GetRecord(r.Context(), partition(r), r.PathValue("id"))
	if err != nil {
		s.writeUpstreamError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, record)
}

// validateBody is the SPA-facing record validation request. Kind names the
// schema the data is checked against.
type validateBody struct {
	Kind string          `json:"kind"`
	Data json.RawMessage `json:"data"`
}

func (s *Server) handleValidateRecord(w http.ResponseWriter, r *http.Request) {
	var body validateBody
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeError(w, http.StatusBadRequest, "invalid validation request body")
		return
	}
	if body.Kind == "" {
		writeError(w, http.StatusBadRequest, "kind is required")
		return
	}

	result, err := s.validator.Validate(r.Context(), partition(r), body.Kind, body.Data)
	if err != nil {
		s.writeUpstreamError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

func (s *Server) handleRecordVersions(w http.ResponseWriter, r *http.Request) {
	versions, err := s.osdu.GetRecordVersions(r.Context(), partition(r), r.PathValue("id"))
	if err != nil {
		s.writeUpstreamError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, versions)
}

// healthResponse is the /health body
type healthResponse struct {
	Status     string          `json:"status"`
	Components []healthSummary `json:"components,omitempty"`
}

type healthSummary struct {
	Component string `json:"component"`
	Status    string `json:"status"`
	Message   string `json:"message,omitempty"`
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if s.monitor == nil {
		writeJSON(w, http.StatusOK, healthResponse{Status: "healthy"})
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	statuses := s.monitor.RunChecks(ctx)
	aggregate := s.monitor.AggregateHealth("osdugate")

	resp := healthResponse{Status: aggregate.Status}
	for _, st := range statuses {
		resp.Components = append(resp.Components, healthSummary{
			Component: st.Component,
			Status:    st.Status,
			Message:   st.Message,
		})
	}

	code := http.StatusOK
	if aggregate.IsUnhealthy() {
		code = http.StatusServiceUnavailable
	}
	writeJSON(w, code, resp)
}

func parsePositiveInt(s string) (int, error) {
	n, err := strconv.Atoi(s)
	if err != nil || n <= 0 {
		if err == nil {
			err = fmt.Errorf("value %d is not positive", n)
		}
		return 0, err
	}
	return n, nil
}
