package types

// OK builds a successful result.
func OK(data map[string]interface{}) *Result {
	return &Result{Success: true, Data: data}
}

// Failure builds a failed result with an error message.
func Failure(msg string) *Result {
	return &Result{Success: false, Error: &msg}
}
