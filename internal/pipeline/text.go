package pipeline

import (
	"fmt"
	"unicode/utf8"

	"github.com/oggyb/heartline/internal/db"
)

// FallbackName stands in for an actor whose profile cannot be resolved.
const FallbackName = "Someone"

// PreviewLength is the number of characters of a message quoted in its
// notification.
const PreviewLength = 50

// Preview returns the first PreviewLength characters of content, followed
// by "..." when something was cut.
func Preview(content string) string {
	if utf8.RuneCountInString(content) <= PreviewLength {
		return content
	}
	n := 0
	for i := range content {
		if n == PreviewLength {
			return content[:i] + "..."
		}
		n++
	}
	return content
}

// LikeText returns the notification type, title and message for a like
// from name.
func LikeText(name string, super bool) (typ, title, message string) {
	if super {
		return db.NotificationSuperLike, "New Super Like", fmt.Sprintf("%s super liked you!", name)
	}
	return db.NotificationLike, "New Like", fmt.Sprintf("%s liked your profile", name)
}

// MatchText returns the title and message shown to a participant matched
// with name.
func MatchText(name string) (title, message string) {
	return "It's a Match!", fmt.Sprintf("You matched with %s!", name)
}

// MessageText returns the title and message for content sent by name.
func MessageText(name, content string) (title, message string) {
	return "New Message", fmt.Sprintf("%s: %s", name, Preview(content))
}
