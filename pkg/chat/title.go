package chat

import "github.com/papercomputeco/koinonia/pkg/utils"

// MaxTitleRunes bounds a derived conversation title.
const MaxTitleRunes = 50

// DeriveTitle turns the first user turn into a display title: whitespace is
// trimmed and collapsed, then the text is cut to MaxTitleRunes runes.
func DeriveTitle(text string) string {
	return utils.Truncate(utils.CollapseWhitespace(text), MaxTitleRunes)
}
