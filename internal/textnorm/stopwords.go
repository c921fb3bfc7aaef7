package textnorm

// stopwordList holds high-frequency function and interrogative words. Entries are
// normalized at init so lookups compare against normalized tokens.
var stopwordList = []string{
	"ما", "هي", "هو", "أهم", "مفهوم", "في", "على", "من", "إلى", "عن", "الذي", "التي",
	"الذين", "ماذا", "لماذا", "كيف", "متى", "أين", "هل", "مع", "هذا", "هذه", "ذلك",
	"تلك", "كان", "كانت", "أو", "ثم", "بين", "عند", "لدى", "حول", "كل", "بعض", "أي",
	"اذكر", "اشرح", "عرف", "وضح", "تعريف", "معنى",
}

var stopwords = func() map[string]struct{} {
	m := make(map[string]struct{}, len(stopwordList))
	for _, w := range stopwordList {
		m[Normalize(w)] = struct{}{}
	}
	return m
}()

// IsStopword reports whether a normalized token is a stop-word.
func IsStopword(token string) bool {
	_, ok := stopwords[token]
	return ok
}
