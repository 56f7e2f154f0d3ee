package ai

import "fmt"

// Kind classifies interpreter failures. Rate limiting and upstream failures
// are transport-level; the rest mean the model violated the output contract
// and are domain failures.
type Kind int

const (
	KindUpstream Kind = iota
	KindRateLimited
	KindEmptyResponse
	KindInvalidJSON
	KindMalformedOutput
)

// Error is the single error type raised by the interpreter.
type Error struct {
	Kind              Kind
	Status            int
	RequestID         string
	RetryAfterSeconds *int
	Message           string
}

func (e *Error) Error() string {
	return e.Message
}

func rateLimited(requestID string, retryAfter *int) *Error {
	return &Error{
		Kind:              KindRateLimited,
		Status:            429,
		RequestID:         requestID,
		RetryAfterSeconds: retryAfter,
		Message:           "AI rate limit exceeded",
	}
}

func upstreamError(status int, requestID, message string) *Error {
	if message == "" {
		message = "AI request failed"
	}
	return &Error{Kind: KindUpstream, Status: status, RequestID: requestID, Message: message}
}

func emptyResponse() *Error {
	return &Error{Kind: KindEmptyResponse, Message: "invalid AI response: empty content"}
}

func invalidJSON() *Error {
	return &Error{Kind: KindInvalidJSON, Message: "invalid AI response: not valid JSON"}
}

func malformed(field string) *Error {
	return &Error{Kind: KindMalformedOutput, Message: fmt.Sprintf("invalid AI response: %s", field)}
}
