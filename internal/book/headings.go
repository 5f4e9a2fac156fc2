package book

import (
	"regexp"
	"strconv"
)

// maxHeadingLevel はHTMLの見出しレベルの上限です。h6を超える見出しはh6に飽和させます。
const maxHeadingLevel = 6

var headingTag = regexp.MustCompile(`(?i)<(/?)h([1-6])\b`)

// ShiftHeadings は断片中のすべての見出しタグのレベルを by だけ深くします。
// 章の入れ子1段ごとに1レベルずつ深くすることで、見出し階層を章構造に揃えます。
func ShiftHeadings(fragment string, by int) string {
	if by <= 0 {
		return fragment
	}
	return headingTag.ReplaceAllStringFunc(fragment, func(tag string) string {
		m := headingTag.FindStringSubmatch(tag)
		level, _ := strconv.Atoi(m[2])
		level += by
		if level > maxHeadingLevel {
			level = maxHeadingLevel
		}
		return "<" + m[1] + "h" + strconv.Itoa(level)
	})
}
