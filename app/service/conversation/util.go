package conversation

import (
	"fmt"
	"weatherbot/app/client/telegram"
	"weatherbot/app/service/queue"
)

func displayName(user queue.User) string {
	switch {
	case user.FirstName != "":
		return user.FirstName
	case user.Username != "":
		return user.Username
	default:
		return "there"
	}
}

// mention links to a Telegram user in HTML parse mode. Without an id the
// plain escaped name is returned.
func mention(userID int64, name string) string {
	if userID == 0 {
		return telegram.Escape(name)
	}
	return fmt.Sprintf(`<a href="tg://user?id=%d">%s</a>`, userID, telegram.Escape(name))
}
