package utils

import (
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestValidateAge(t *testing.T) {
	assert.NoError(t, ValidateAge(18))
	assert.NoError(t, ValidateAge(120))
	assert.Error(t, ValidateAge(17))
	assert.Error(t, ValidateAge(121))
}

func TestValidateName(t *testing.T) {
	assert.NoError(t, ValidateName("Ann"))
	assert.Error(t, ValidateName("   "))
	assert.Error(t, ValidateName(strings.Repeat("я", MaxNameLength+1)))
	assert.NoError(t, ValidateName(strings.Repeat("я", MaxNameLength)))
}

func TestValidateExternalID(t *testing.T) {
	assert.NoError(t, ValidateExternalID("123456789"))
	assert.Error(t, ValidateExternalID(""))
	assert.Error(t, ValidateExternalID(strings.Repeat("1", MaxExternalIDSize+1)))
}

func TestValidateMessage(t *testing.T) {
	assert.NoError(t, ValidateMessage("hi"))
	assert.Error(t, ValidateMessage(" \n\t"))
	assert.NoError(t, ValidateMessage(strings.Repeat("ü", MaxMessageLength)))
	assert.Error(t, ValidateMessage(strings.Repeat("ü", MaxMessageLength+1)))
}

func TestValidateList(t *testing.T) {
	assert.NoError(t, ValidateList("interested_in", nil))
	assert.NoError(t, ValidateList("interested_in", []string{"male", "female"}))

	err := ValidateList("interested_in", []string{"male", " "})
	var verr *ValidationError
	assert.True(t, errors.As(err, &verr))
	assert.Equal(t, "interested_in", verr.Field)
}

func TestFirstError(t *testing.T) {
	boom := errors.New("boom")
	assert.NoError(t, FirstError(nil, nil))
	assert.Equal(t, boom, FirstError(nil, boom, errors.New("later")))
	assert.Error(t, FirstError(ValidateRequired("gender", ""), nil))
}
