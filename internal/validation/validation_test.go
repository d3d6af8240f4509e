package validation

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type sample struct {
	Email string `validate:"required,email"`
	Mode  string `validate:"oneof=file sqlite memory"`
	Count int    `validate:"min=1,max=5"`
}

func TestStruct_Valid(t *testing.T) {
	require.NoError(t, Struct(sample{Email: "a@b.com", Mode: "file", Count: 5}))
}

func TestStruct_CollectsMessages(t *testing.T) {
	err := Struct(sample{Email: "nope", Mode: "disk", Count: 6})
	require.ErrorIs(t, err, ErrInvalid)

	msg := err.Error()
	assert.Contains(t, msg, "email must be a valid email")
	assert.Contains(t, msg, "mode must be one of: file sqlite memory")
	assert.Contains(t, msg, "count must be at most 5")
}

func TestStruct_Required(t *testing.T) {
	err := Struct(sample{Mode: "memory", Count: 1})
	require.ErrorIs(t, err, ErrInvalid)
	assert.Contains(t, err.Error(), "email is required")
}
