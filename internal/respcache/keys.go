package respcache

import (
	"fmt"
	"strings"
)

// SearchKey is the key of a search result: "<ns>_v1_<lang>_<query>", with the
// query trimmed and lower-cased.
func SearchKey(ns, lang, query string) string {
	return SearchPrefix(ns, lang) + strings.ToLower(strings.TrimSpace(query))
}

// SearchPrefix is the common prefix of every [SearchKey] for ns and lang.
func SearchPrefix(ns, lang string) string {
	return fmt.Sprintf("%s_v1_%s_", ns, lang)
}

// QueryFromSearchKey recovers the normalised query from a [SearchKey].
func QueryFromSearchKey(ns, lang, key string) string {
	return strings.TrimPrefix(key, SearchPrefix(ns, lang))
}

// LectureKey is the key of a lecture script:
// "lec_<ns>_v1_<lang>_<minutes>_<title>", with whitespace runs in the title
// replaced by underscores.
func LectureKey(ns, lang string, minutes int, title string) string {
	return fmt.Sprintf("lec_%s_v1_%s_%d_%s", ns, lang, minutes, strings.Join(strings.Fields(title), "_"))
}

// ImageKey is the key of a generated image: "img_<ns>_v1_<topic prefix>",
// using the first 20 characters of topic.
func ImageKey(ns, topic string) string {
	r := []rune(topic)
	if len(r) > 20 {
		r = r[:20]
	}
	return fmt.Sprintf("img_%s_v1_%s", ns, string(r))
}

// LyricsKey is the key of song lyrics for a passage:
// "song_<ns>_v2_<lang>_<reference>", with whitespace runs in the reference
// replaced by underscores.
func LyricsKey(ns, lang, reference string) string {
	return fmt.Sprintf("song_%s_v2_%s_%s", ns, lang, strings.Join(strings.Fields(reference), "_"))
}
