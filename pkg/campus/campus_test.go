package campus_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/clinichq/clinic-backend/pkg/campus"
)

func TestValid(t *testing.T) {
	tests := []struct {
		name  string
		valid bool
	}{
		{"Main Campus", true},
		{"THS", true},
		{"SHS", true},
		{"Laboratory", true},
		{"main campus", false},
		{"ths", false},
		{"", false},
		{"Annex", false},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.valid, campus.Valid(tt.name), "campus %q", tt.name)
	}
}

func TestAllReturnsCopy(t *testing.T) {
	first := campus.All()
	first[0] = "tampered"

	assert.Equal(t, "Main Campus", campus.All()[0])
	assert.Len(t, campus.All(), 4)
}
