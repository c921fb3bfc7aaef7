package prompt

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"

	"ragqa/internal/domain"
)

func sampleUnits() []domain.KnowledgeUnit {
	return []domain.KnowledgeUnit{
		{Content: "النص الأول", Author: "الحاج صالح", Book: "بحوث", Part: "2", Page: "15"},
		{Content: "1- بند"},
	}
}

func TestContextNumbersAndDefaults(t *testing.T) {
	got := Context(sampleUnits())
	assert.Contains(t, got, "--- [معرف المرجع: 1] ---\nالمؤلف: الحاج صالح | الكتاب: بحوث | ج: 2 | ص: 15\nالنص: النص الأول\n")
	assert.Contains(t, got, "--- [معرف المرجع: 2] ---\nالمؤلف: -- | الكتاب: -- | ج: 1 | ص: --\nالنص: 1- بند\n")
}

func TestBuildIncludesOpeningContextAndQuestion(t *testing.T) {
	p := NewBuilder("")
	got := p.Build("  ما النظرية الخليلية؟ ", sampleUnits())

	assert.True(t, strings.HasPrefix(got, DefaultOpening))
	assert.Contains(t, got, "ابدأ الإجابة حصراً بـ: \""+DefaultOpening+"\"")
	assert.Contains(t, got, "(المراجع:)")
	assert.Contains(t, got, "[معرف المرجع: 2]")
	assert.True(t, strings.HasSuffix(got, "سؤال الباحث:\nما النظرية الخليلية؟\n"))
}

func TestBuildCustomOpening(t *testing.T) {
	got := NewBuilder("افتتاحية مخصصة:").Build("سؤال", nil)
	assert.True(t, strings.HasPrefix(got, "افتتاحية مخصصة:"))
	assert.NotContains(t, got, DefaultOpening)
}

func TestReferences(t *testing.T) {
	assert.Equal(t, "المراجع:\n1- الحاج صالح، بحوث، 2، ص: 15\n2- --، --، 1، ص: --", References(sampleUnits()))
}

func TestCheckCitationsAcceptsContract(t *testing.T) {
	answer := "افتتاحية\n\"نص\" [1]\n\"نص آخر\" [2]\n\nالمراجع:\n1- أ، ب، 1، ص: 3\n2- أ، ب، 1، ص: 4"
	r := CheckCitations(answer)
	assert.True(t, r.OK(), r.Problems)
	assert.Equal(t, []int{1, 2}, r.Cited)
	assert.Equal(t, []int{1, 2}, r.Listed)
}

func TestCheckCitationsArabicDigits(t *testing.T) {
	r := CheckCitations("\"نص\" [١]\nالمراجع:\n١- أ، ب، ١، ص: ٣")
	assert.True(t, r.OK(), r.Problems)
}

func TestCheckCitationsViolations(t *testing.T) {
	cases := map[string]string{
		"starts at two":     "\"أ\" [2]\nالمراجع:\n2- x",
		"repeat":            "\"أ\" [1] \"ب\" [1]\nالمراجع:\n1- x",
		"gap":               "\"أ\" [1] \"ب\" [3]\nالمراجع:\n1- x\n3- y",
		"uncited listed":    "\"أ\" [1]\nالمراجع:\n1- x\n2- y",
		"missing reference": "\"أ\" [1] \"ب\" [2]\nالمراجع:\n1- x",
		"no bibliography":   "\"أ\" [1]",
	}
	for name, answer := range cases {
		t.Run(name, func(t *testing.T) {
			assert.False(t, CheckCitations(answer).OK())
		})
	}
}

func TestCheckCitationsNoCitations(t *testing.T) {
	assert.True(t, CheckCitations("عذراً، لم أجد هذه المعلومة في المكتبة.").OK())
}
