package lexical

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"ragqa/internal/textnorm"
)

// Synonyms maps a normalized keyword to its closed synonym set.
type Synonyms map[string][]string

var builtinSynonyms = map[string][]string{
	"اللغة":     {"اللسان"},
	"اللسان":    {"اللغة"},
	"اللسانيات": {"علم اللسان"},
	"النحو":     {"الإعراب"},
	"الإعراب":   {"النحو"},
	"الصوت":     {"الأصوات"},
	"الأصوات":   {"الصوتيات"},
	"المصطلح":   {"المصطلحات"},
	"المنهج":    {"المنهجية"},
	"القياس":    {"الاستدلال"},
	"السماع":    {"الرواية"},
	"التعليم":   {"التدريس"},
}

// DefaultSynonyms returns the built-in dictionary in normalized form.
func DefaultSynonyms() Synonyms {
	return normalizeSynonyms(builtinSynonyms)
}

// LoadSynonyms reads a YAML mapping of word to synonym list and merges it over base.
func LoadSynonyms(path string, base Synonyms) (Synonyms, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var raw map[string][]string
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("parse synonyms %s: %w", path, err)
	}
	merged := make(Synonyms, len(base)+len(raw))
	for k, v := range base {
		merged[k] = append([]string(nil), v...)
	}
	for k, v := range normalizeSynonyms(raw) {
		merged[k] = appendUnique(merged[k], v...)
	}
	return merged, nil
}

// Lookup returns the synonyms of a normalized keyword.
func (s Synonyms) Lookup(keyword string) []string {
	if s == nil {
		return nil
	}
	return s[keyword]
}

func normalizeSynonyms(in map[string][]string) Synonyms {
	out := make(Synonyms, len(in))
	for k, vs := range in {
		key := textnorm.Normalize(k)
		for _, v := range vs {
			out[key] = appendUnique(out[key], textnorm.Normalize(v))
		}
	}
	return out
}

func appendUnique(dst []string, vals ...string) []string {
	for _, v := range vals {
		if v == "" {
			continue
		}
		dup := false
		for _, d := range dst {
			if d == v {
				dup = true
				break
			}
		}
		if !dup {
			dst = append(dst, v)
		}
	}
	return dst
}
