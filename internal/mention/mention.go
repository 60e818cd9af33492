// Package mention extracts user references embedded in free text as
// @@@__<user id>^^^<display name>@@@^^^.
package mention

import (
	"regexp"
	"strconv"
)

var pattern = regexp.MustCompile(`@@@__(\d+)\^\^\^`)

// Extract returns the mentioned user ids in order of appearance, duplicates
// included. Ids that overflow int64 are skipped.
func Extract(text string) []int64 {
	matches := pattern.FindAllStringSubmatch(text, -1)
	if len(matches) == 0 {
		return nil
	}
	ids := make([]int64, 0, len(matches))
	for _, m := range matches {
		id, err := strconv.ParseInt(m[1], 10, 64)
		if err != nil {
			continue
		}
		ids = append(ids, id)
	}
	return ids
}

// Token formats a mention of userID as the editor would embed it.
func Token(userID int64, displayName string) string {
	return "@@@__" + strconv.FormatInt(userID, 10) + "^^^" + displayName + "@@@^^^"
}
