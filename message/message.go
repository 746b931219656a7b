package message

import "time"

// Data is the opaque, JSON-shaped payload carried by a job. The core
// reserves exactly one key, thread_id, which is extracted (not copied)
// into a Runnable's invocation config before the remaining data is
// passed along.
type Data map[string]any

// Get retrieves a value associated with key and attempts to cast it to
// type T. If the key is absent or the stored value is not of type T,
// Get returns the zero value of T and false.
func Get[T any](d Data, key string) (T, bool) {
	raw, ok := d[key]
	if !ok {
		var zero T
		return zero, false
	}
	ret, ok := raw.(T)
	if !ok {
		var zero T
		return zero, false
	}
	return ret, true
}

// Pop behaves like Get but additionally removes the key from d, so the
// value is moved out rather than copied.
func Pop[T any](d Data, key string) (T, bool) {
	ret, ok := Get[T](d, key)
	if ok {
		delete(d, key)
	}
	return ret, ok
}

// Clone returns a shallow copy of d. A nil Data clones to an empty,
// non-nil Data.
func (d Data) Clone() Data {
	ret := make(Data, len(d))
	for k, v := range d {
		ret[k] = v
	}
	return ret
}

// DLQEnvelope is the structured payload enqueued onto a queue's
// configured dead-letter queue when a job exhausts its retries.
type DLQEnvelope struct {
	OriginalQueue string    `json:"original_queue"`
	OriginalJobID int64     `json:"original_job_id"`
	AttemptCount  int       `json:"attempt_count"`
	ErrorType     string    `json:"error_type"`
	ErrorMessage  string    `json:"error_message"`
	Timestamp     time.Time `json:"timestamp"`
	JobData       Data      `json:"job_data"`
}

// ToData renders the envelope as a Data map suitable for Send.
func (e DLQEnvelope) ToData() Data {
	return Data{
		"original_queue":  e.OriginalQueue,
		"original_job_id": e.OriginalJobID,
		"attempt_count":   e.AttemptCount,
		"error_type":      e.ErrorType,
		"error_message":   e.ErrorMessage,
		"timestamp":       e.Timestamp,
		"job_data":        e.JobData,
	}
}
