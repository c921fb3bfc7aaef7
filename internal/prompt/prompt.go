// Package prompt assembles the grounded generation prompt and checks the answers
// written against it.
package prompt

import (
	"fmt"
	"strings"

	"ragqa/internal/domain"
)

// DefaultOpening is the fixed academic framing sentence every answer starts with.
const DefaultOpening = "بصفتي باحثاً أكاديمياً في فكر الأستاذ الدكتور عبد الرحمن الحاج صالح، واستناداً إلى المنهجية اللسانية الاستقرائية في تحليل المتون المرفقة، إليكم عرضاً موثقاً للأصول العلمية رداً على سؤالكم:"

// ReferencesLabel heads the bibliography section of an answer.
const ReferencesLabel = "المراجع:"

// Builder renders prompts with a configurable opening sentence.
type Builder struct {
	Opening string
}

func NewBuilder(opening string) *Builder {
	if strings.TrimSpace(opening) == "" {
		opening = DefaultOpening
	}
	return &Builder{Opening: opening}
}

// Context renders the numbered source block, one entry per unit, numbered from 1.
func Context(units []domain.KnowledgeUnit) string {
	var b strings.Builder
	for i, u := range units {
		a := u.Attribution()
		fmt.Fprintf(&b, "\n--- [معرف المرجع: %d] ---\n", i+1)
		fmt.Fprintf(&b, "المؤلف: %s | الكتاب: %s | ج: %s | ص: %s\n", a.Author, a.Book, a.Part, a.Page)
		fmt.Fprintf(&b, "النص: %s\n", u.Content)
	}
	return b.String()
}

// Build renders the full instruction prompt for question grounded on units.
func (p *Builder) Build(question string, units []domain.KnowledgeUnit) string {
	var b strings.Builder
	b.WriteString(p.Opening)
	b.WriteString("\n\nمهمتك صياغة إجابة 'شاملة'، 'موسعة'، و 'مرتبة' وفق الشروط الصارمة التالية:\n")
	fmt.Fprintf(&b, "1. العبارة الاستهلالية: ابدأ الإجابة حصراً بـ: \"%s\"\n", p.Opening)
	b.WriteString("2. الاستقصاء: ابحث عن كل النقاط والتفاصيل (1، 2، 3، 4...) الواردة في النصوص المرفقة ولا تكتفِ بالملخص. انقل كل مفهوم مع شرحه الحرفي كما ورد.\n")
	b.WriteString("3. النقل الحرفي: انقل الجمل حرفياً كما وردت في المرجع، وضع كل نص منقول بين علامتي تنصيص مزدوجة \"\" متبوعاً برقم مرجع متسلسل [1]، ثم [2]، وهكذا.\n")
	b.WriteString("4. الترقيم المتسلسل: يجب أن يكون ترقيم المراجع في المتن متسلسلاً تصاعدياً (1، 2، 3...) حسب ظهورها في إجابتك، ولا يتكرر رقم.\n")
	b.WriteString("5. هيكل الفقرات: ابدأ كل نقطة أو فكرة جديدة في سطر جديد تماماً. استخدم العناوين الفرعية إذا كانت موجودة في النص.\n")
	fmt.Fprintf(&b, "6. الحاشية: في نهاية الإجابة، اكتب عنواناً بارزاً (%s) ثم سرد المراجع المستشهد بها فقط بالصيغة: رقم المرجع- اسم المؤلف، اسم الكتاب، الجزء، ص: رقم الصفحة.\n", ReferencesLabel)
	b.WriteString("7. الصرامة: ممنوع تماماً إضافة أي معلومة خارجية.\n")
	b.WriteString("\nالمادة العلمية المتاحة:\n")
	b.WriteString(Context(units))
	b.WriteString("\nسؤال الباحث:\n")
	b.WriteString(strings.TrimSpace(question))
	b.WriteString("\n")
	return b.String()
}

// Reference renders one bibliography line for citation number n.
func Reference(n int, u domain.KnowledgeUnit) string {
	a := u.Attribution()
	return fmt.Sprintf("%d- %s، %s، %s، ص: %s", n, a.Author, a.Book, a.Part, a.Page)
}

// References renders the bibliography section citing units as 1..len(units).
func References(units []domain.KnowledgeUnit) string {
	var b strings.Builder
	b.WriteString(ReferencesLabel)
	for i, u := range units {
		b.WriteString("\n")
		b.WriteString(Reference(i+1, u))
	}
	return b.String()
}
