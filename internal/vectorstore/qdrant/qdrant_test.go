package qdrant

import (
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
)

func TestPointIDIsStableAndDistinct(t *testing.T) {
	a := PointID(3, "book:3")
	assert.Equal(t, a, PointID(3, "book:3"))
	assert.NotEqual(t, a, PointID(4, "book:3"))
	assert.NotEqual(t, a, PointID(3, "book:4"))

	_, err := uuid.Parse(a)
	assert.NoError(t, err)
}
