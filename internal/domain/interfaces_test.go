package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestAttributionDefaults(t *testing.T) {
	a := KnowledgeUnit{Content: "نص", Book: "الكتاب"}.Attribution()
	assert.Equal(t, Attribution{Author: MissingField, Book: "الكتاب", Part: DefaultPart, Page: MissingField}, a)
}

func TestMatchable(t *testing.T) {
	assert.True(t, KnowledgeUnit{Content: "نص"}.Matchable())
	assert.False(t, KnowledgeUnit{Content: " \n\t"}.Matchable())
	assert.False(t, KnowledgeUnit{}.Matchable())
}

func TestPageNumber(t *testing.T) {
	assert.Equal(t, 12, KnowledgeUnit{Page: " 12 "}.PageNumber())
	assert.Equal(t, 0, KnowledgeUnit{Page: MissingField}.PageNumber())
}
