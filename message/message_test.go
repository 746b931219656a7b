package message

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestGetAndPop(t *testing.T) {
	d := Data{"thread_id": "abc", "n": 1}

	id, ok := Get[string](d, "thread_id")
	assert.True(t, ok)
	assert.Equal(t, "abc", id)
	_, stillPresent := d["thread_id"]
	assert.True(t, stillPresent, "Get must not remove the key")

	popped, ok := Pop[string](d, "thread_id")
	assert.True(t, ok)
	assert.Equal(t, "abc", popped)
	_, present := d["thread_id"]
	assert.False(t, present, "Pop must remove the key")
}

func TestGet_WrongTypeOrMissing(t *testing.T) {
	d := Data{"n": 1}

	_, ok := Get[string](d, "n")
	assert.False(t, ok, "a type mismatch must report ok=false, not panic")

	_, ok = Get[string](d, "missing")
	assert.False(t, ok)
}

func TestData_Clone(t *testing.T) {
	d := Data{"x": 1}
	c := d.Clone()
	c["x"] = 2
	assert.Equal(t, 1, d["x"], "mutating the clone must not affect the original")

	var nilData Data
	clonedNil := nilData.Clone()
	assert.NotNil(t, clonedNil)
	assert.Empty(t, clonedNil)
}

func TestDLQEnvelope_ToData(t *testing.T) {
	ts := time.Now()
	env := DLQEnvelope{
		OriginalQueue: "echo",
		OriginalJobID: 7,
		AttemptCount:  2,
		ErrorType:     "*errors.errorString",
		ErrorMessage:  "boom",
		Timestamp:     ts,
		JobData:       Data{"x": 1},
	}
	d := env.ToData()
	assert.Equal(t, "echo", d["original_queue"])
	assert.Equal(t, int64(7), d["original_job_id"])
	assert.Equal(t, 2, d["attempt_count"])
	assert.Equal(t, "boom", d["error_message"])
	assert.Equal(t, ts, d["timestamp"])
	assert.Equal(t, Data{"x": 1}, d["job_data"])
}
