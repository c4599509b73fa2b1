package summarizer

import "fmt"

// ResponseShapeError indicates no textual output could be extracted from the
// summarisation response envelope.
type ResponseShapeError struct {
	Detail string
}

func (e *ResponseShapeError) Error() string {
	return fmt.Sprintf("no textual output found in response: %s", e.Detail)
}

// ResponseParseError indicates the extracted text was not valid JSON. Raw
// carries the offending text for diagnostics.
type ResponseParseError struct {
	Raw string
	Err error
}

func (e *ResponseParseError) Error() string {
	return fmt.Sprintf("response text is not valid JSON: %v (raw: %.200s)", e.Err, e.Raw)
}

func (e *ResponseParseError) Unwrap() error { return e.Err }

// SchemaViolationError indicates the parsed JSON does not match the expected
// card shape.
type SchemaViolationError struct {
	Detail string
}

func (e *SchemaViolationError) Error() string {
	return fmt.Sprintf("summary does not match expected schema: %s", e.Detail)
}
