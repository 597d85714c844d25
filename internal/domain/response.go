package domain

// ResponseStatus is the terminal outcome of a lookup.
type ResponseStatus string

const (
	StatusSuccess         ResponseStatus = "SUCCESS"
	StatusRecordNotFound  ResponseStatus = "RECORD_NOT_FOUND"
	StatusMultipleRecords ResponseStatus = "MULTIPLE_RECORDS"
	StatusFailure         ResponseStatus = "FAILURE"
)

// LookupResult is what the executor produces for one keyed lookup.
// ObjectDetails is only populated on StatusSuccess.
type LookupResult struct {
	Status        ResponseStatus    `json:"status"`
	ErrorMessage  string            `json:"errorMessage,omitempty"`
	ObjectID      string            `json:"objectId,omitempty"`
	ObjectDetails map[string]string `json:"objectDetails,omitempty"`
}

// Failed builds a FAILURE result carrying message.
func Failed(message string) LookupResult {
	return LookupResult{Status: StatusFailure, ErrorMessage: message}
}

// ReadResponse is returned to the host for a ReadRequest.
type ReadResponse struct {
	RequestID string `json:"requestId"`
	LookupResult
}

// Response is the generic reply returned by Plugin.Dispatch.
type Response interface {
	ResponseStatus() ResponseStatus
}

func (r ReadResponse) ResponseStatus() ResponseStatus { return r.Status }
