package domain

// Operation is a request kind a plugin may support.
type Operation string

const (
	OperationCreate Operation = "CREATE"
	OperationRead   Operation = "READ"
	OperationUpdate Operation = "UPDATE"
	OperationDelete Operation = "DELETE"
)

// QueryIDParameter is the request parameter naming the registered query.
const QueryIDParameter = "queryId"

// Request is implemented by every request the host can route to a plugin.
type Request interface {
	Operation() Operation
	ID() string
}

// ReadRequest asks for a single record identified by ObjectID.
// Parameters mirrors a multi-valued query string; only the first value is used.
type ReadRequest struct {
	RequestID  string              `json:"requestId"`
	ObjectID   string              `json:"objectId"`
	Parameters map[string][]string `json:"parameters,omitempty"`
}

func (r ReadRequest) Operation() Operation { return OperationRead }
func (r ReadRequest) ID() string           { return r.RequestID }

// Parameter returns the first value of the named parameter.
func (r ReadRequest) Parameter(name string) (string, bool) {
	vals, ok := r.Parameters[name]
	if !ok || len(vals) == 0 {
		return "", false
	}
	return vals[0], true
}

// NewReadRequest builds a ReadRequest for queryID and objectID.
func NewReadRequest(requestID, queryID, objectID string) ReadRequest {
	return ReadRequest{
		RequestID:  requestID,
		ObjectID:   objectID,
		Parameters: map[string][]string{QueryIDParameter: {queryID}},
	}
}

// CreateRequest asks for a new record. Never supported by the SQL plugin.
type CreateRequest struct {
	RequestID     string            `json:"requestId"`
	ObjectDetails map[string]string `json:"objectDetails,omitempty"`
}

func (r CreateRequest) Operation() Operation { return OperationCreate }
func (r CreateRequest) ID() string           { return r.RequestID }

// UpdateRequest asks for an existing record to change. Never supported by the SQL plugin.
type UpdateRequest struct {
	RequestID     string            `json:"requestId"`
	ObjectID      string            `json:"objectId"`
	ObjectDetails map[string]string `json:"objectDetails,omitempty"`
}

func (r UpdateRequest) Operation() Operation { return OperationUpdate }
func (r UpdateRequest) ID() string           { return r.RequestID }

// DeleteRequest asks for a record to be removed. Never supported by the SQL plugin.
type DeleteRequest struct {
	RequestID string `json:"requestId"`
	ObjectID  string `json:"objectId"`
}

func (r DeleteRequest) Operation() Operation { return OperationDelete }
func (r DeleteRequest) ID() string           { return r.RequestID }
