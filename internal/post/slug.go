package post

import (
	"regexp"
	"strings"
)

var (
	slugSpaces     = regexp.MustCompile(`\s+`)
	slugDisallowed = regexp.MustCompile(`[^\x{0621}-\x{064A}\x{0660}-\x{0669}a-z0-9-]`)
	slugDashes     = regexp.MustCompile(`-+`)
)

// GenerateSlug はタイトルからURL用のスラッグを生成する。
// アラビア文字・アラビア数字・ASCII英小文字・数字・ハイフンのみを残す。
func GenerateSlug(title string) string {
	s := strings.ToLower(title)
	s = slugSpaces.ReplaceAllString(s, "-")
	s = slugDisallowed.ReplaceAllString(s, "")
	s = slugDashes.ReplaceAllString(s, "-")
	return strings.Trim(s, "-")
}
