package vectorstore_test

import (
	"strings"
	"testing"

	"github.com/fyrsmithlabs/ragd/internal/vectorstore"
	"github.com/stretchr/testify/assert"
)

func TestValidateCollectionName(t *testing.T) {
	tests := []struct {
		name      string
		input     string
		wantError bool
	}{
		{name: "simple", input: "documents", wantError: false},
		{name: "with underscore and digits", input: "org_memories_2", wantError: false},
		{name: "max length", input: strings.Repeat("a", 64), wantError: false},
		{name: "empty", input: "", wantError: true},
		{name: "uppercase", input: "Documents", wantError: true},
		{name: "spaces", input: "my docs", wantError: true},
		{name: "path traversal", input: "../etc/passwd", wantError: true},
		{name: "hyphen", input: "my-docs", wantError: true},
		{name: "too long", input: strings.Repeat("a", 65), wantError: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := vectorstore.ValidateCollectionName(tt.input)
			if tt.wantError {
				assert.ErrorIs(t, err, vectorstore.ErrInvalidCollectionName)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestCollectionSchema_ApplyDefaults(t *testing.T) {
	schema := vectorstore.CollectionSchema{Name: "documents", VectorSize: 384}
	schema.ApplyDefaults()

	assert.Equal(t, vectorstore.DistanceCosine, schema.Distance)
	assert.Equal(t, uint64(16), schema.IndexM)
	assert.Equal(t, uint64(128), schema.IndexEfConstruct)
}

func TestCollectionSchema_Validate(t *testing.T) {
	valid := vectorstore.CollectionSchema{
		Name:       "documents",
		VectorSize: 384,
		Distance:   vectorstore.DistanceCosine,
	}
	assert.NoError(t, valid.Validate())

	missing := vectorstore.CollectionSchema{Name: "documents", Distance: vectorstore.DistanceCosine}
	assert.ErrorIs(t, missing.Validate(), vectorstore.ErrInvalidConfig)

	badDistance := vectorstore.CollectionSchema{
		Name:       "documents",
		VectorSize: 384,
		Distance:   vectorstore.Distance("manhattan"),
	}
	assert.ErrorIs(t, badDistance.Validate(), vectorstore.ErrInvalidConfig)

	badName := vectorstore.CollectionSchema{
		Name:       "Bad Name",
		VectorSize: 384,
		Distance:   vectorstore.DistanceCosine,
	}
	assert.ErrorIs(t, badName.Validate(), vectorstore.ErrInvalidCollectionName)
}
