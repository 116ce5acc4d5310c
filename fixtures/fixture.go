package fixtures

import (
	"io"
	"net/http"
	"sync"
)

const BaseURL = "http://localhost:8000/api/v1/"
const EnvironmentAPIKey = "test_key"
const Identifier = "test_identity"
const Feature1Value = "some_value"
const Feature1Name = "feature_1"
const Feature1ID = 1
const Feature2Name = "feature_2"
const TraitKey = "foo"
const TraitValue = "bar"

const FlagsJson = `
[{
	"id": 1,
	"feature": {
		"id": 1,
		"name": "feature_1",
		"created_date": "2019-08-27T14:53:45.698555Z",
		"initial_value": null,
		"description": null,
		"default_enabled": false,
		"type": "STANDARD",
		"project": 1
	},
	"feature_state_value": "some_value",
	"enabled": true,
	"environment": 1,
	"identity": null,
	"feature_segment": null
}, {
	"id": 2,
	"feature": {
		"id": 2,
		"name": "feature_2",
		"created_date": "2019-08-27T14:54:00.000000Z",
		"initial_value": "10",
		"description": "numeric remote config",
		"default_enabled": false,
		"type": "CONFIG",
		"project": 1
	},
	"feature_state_value": 10,
	"enabled": false,
	"environment": 1,
	"identity": null,
	"feature_segment": null
}]
`

const IdentityResponseJson = `
{
	"flags": [{
		"id": 1,
		"feature": {
			"id": 1,
			"name": "feature_1",
			"created_date": "2019-08-27T14:53:45.698555Z",
			"initial_value": null,
			"description": null,
			"default_enabled": false,
			"type": "STANDARD",
			"project": 1
		},
		"feature_state_value": "identity_value",
		"enabled": true,
		"environment": 1,
		"identity": null,
		"feature_segment": null
	}],
	"traits": [{
		"trait_key": "foo",
		"trait_value": "bar"
	}, {
		"trait_key": "age",
		"trait_value": 42
	}]
}
`

const TraitResponseJson = `
{
	"identity": {
		"identifier": "test_identity"
	},
	"trait_key": "foo",
	"trait_value": "bar"
}
`

// Server records the requests it receives and answers them with canned
// responses keyed by path.
type Server struct {
	mu       sync.Mutex
	Requests []*RecordedRequest

	// Status overrides the response status for every path when non-zero.
	Status int
	// Responses maps a request path to its response body.
	Responses map[string]string
}

type RecordedRequest struct {
	Method string
	Path   string
	Query  string
	Header http.Header
	Body   string
}

func NewServer() *Server {
	return &Server{
		Responses: map[string]string{
			"/api/v1/flags/":      FlagsJson,
			"/api/v1/identities/": IdentityResponseJson,
			"/api/v1/traits/":     TraitResponseJson,
		},
	}
}

func (s *Server) ServeHTTP(rw http.ResponseWriter, req *http.Request) {
	body, _ := io.ReadAll(req.Body)

	s.mu.Lock()
	s.Requests = append(s.Requests, &RecordedRequest{
		Method: req.Method,
		Path:   req.URL.Path,
		Query:  req.URL.RawQuery,
		Header: req.Header.Clone(),
		Body:   string(body),
	})
	status := s.Status
	response, ok := s.Responses[req.URL.Path]
	s.mu.Unlock()

	if !ok {
		http.NotFound(rw, req)
		return
	}
	if status == 0 {
		status = http.StatusOK
	}
	rw.Header().Set("Content-Type", "application/json")
	rw.WriteHeader(status)
	_, _ = io.WriteString(rw, response)
}

// LastRequest returns the most recent request, or nil.
func (s *Server) LastRequest() *RecordedRequest {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.Requests) == 0 {
		return nil
	}
	return s.Requests[len(s.Requests)-1]
}

func (s *Server) RequestCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.Requests)
}
