package retrieval

import (
	"fmt"
	"strings"
)

// Mode selects how seed candidates are found.
type Mode string

const (
	ModeLexical  Mode = "lexical"
	ModeSemantic Mode = "semantic"
	ModeHybrid   Mode = "hybrid"
)

func ParseMode(s string) (Mode, error) {
	switch m := Mode(strings.ToLower(strings.TrimSpace(s))); m {
	case "":
		return ModeLexical, nil
	case ModeLexical, ModeSemantic, ModeHybrid:
		return m, nil
	}
	return "", fmt.Errorf("unknown retrieval mode %q", s)
}

// NeedsIndex reports whether the mode queries the semantic index.
func (m Mode) NeedsIndex() bool { return m == ModeSemantic || m == ModeHybrid }
