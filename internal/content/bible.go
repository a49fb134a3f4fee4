package content

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/MrWong99/lectern/pkg/types"
)

// BibleBook is one book of the Protestant canon.
type BibleBook struct {
	English  string `json:"en"`
	Chinese  string `json:"zh"`
	Chapters int    `json:"chapters"`
}

// Name returns the book name used for queries in lang.
func (b BibleBook) Name(lang types.Language) string {
	if lang == types.LangChinese {
		return b.Chinese
	}
	return b.English
}

// BibleBooks lists the 66 books in canonical order. Chinese names follow the
// Chinese Union Version.
var BibleBooks = []BibleBook{
	{"Genesis", "創世記", 50},
	{"Exodus", "出埃及記", 40},
	{"Leviticus", "利未記", 27},
	{"Numbers", "民數記", 36},
	{"Deuteronomy", "申命記", 34},
	{"Joshua", "約書亞記", 24},
	{"Judges", "士師記", 21},
	{"Ruth", "路得記", 4},
	{"1 Samuel", "撒母耳記上", 31},
	{"2 Samuel", "撒母耳記下", 24},
	{"1 Kings", "列王紀上", 22},
	{"2 Kings", "列王紀下", 25},
	{"1 Chronicles", "歷代志上", 29},
	{"2 Chronicles", "歷代志下", 36},
	{"Ezra", "以斯拉記", 10},
	{"Nehemiah", "尼希米記", 13},
	{"Esther", "以斯帖記", 10},
	{"Job", "約伯記", 42},
	{"Psalms", "詩篇", 150},
	{"Proverbs", "箴言", 31},
	{"Ecclesiastes", "傳道書", 12},
	{"Song of Solomon", "雅歌", 8},
	{"Isaiah", "以賽亞書", 66},
	{"Jeremiah", "耶利米書", 52},
	{"Lamentations", "耶利米哀歌", 5},
	{"Ezekiel", "以西結書", 48},
	{"Daniel", "但以理書", 12},
	{"Hosea", "何西阿書", 14},
	{"Joel", "約珥書", 3},
	{"Amos", "阿摩司書", 9},
	{"Obadiah", "俄巴底亞書", 1},
	{"Jonah", "約拿書", 4},
	{"Micah", "彌迦書", 7},
	{"Nahum", "那鴻書", 3},
	{"Habakkuk", "哈巴谷書", 3},
	{"Zephaniah", "西番雅書", 3},
	{"Haggai", "哈該書", 2},
	{"Zechariah", "撒迦利亞書", 14},
	{"Malachi", "瑪拉基書", 4},
	{"Matthew", "馬太福音", 28},
	{"Mark", "馬可福音", 16},
	{"Luke", "路加福音", 24},
	{"John", "約翰福音", 21},
	{"Acts", "使徒行傳", 28},
	{"Romans", "羅馬書", 16},
	{"1 Corinthians", "哥林多前書", 16},
	{"2 Corinthians", "哥林多後書", 13},
	{"Galatians", "加拉太書", 6},
	{"Ephesians", "以弗所書", 6},
	{"Philippians", "腓立比書", 4},
	{"Colossians", "歌羅西書", 4},
	{"1 Thessalonians", "帖撒羅尼迦前書", 5},
	{"2 Thessalonians", "帖撒羅尼迦後書", 3},
	{"1 Timothy", "提摩太前書", 6},
	{"2 Timothy", "提摩太後書", 4},
	{"Titus", "提多書", 3},
	{"Philemon", "腓利門書", 1},
	{"Hebrews", "希伯來書", 13},
	{"James", "雅各書", 5},
	{"1 Peter", "彼得前書", 5},
	{"2 Peter", "彼得後書", 3},
	{"1 John", "約翰一書", 5},
	{"2 John", "約翰二書", 1},
	{"3 John", "約翰三書", 1},
	{"Jude", "猶大書", 1},
	{"Revelation", "啟示錄", 22},
}

var (
	verseSuffixRE = regexp.MustCompile(`[:：].*$`)
	chapterRefRE  = regexp.MustCompile(`^(.+?)\s*(\d+)$`)
)

// AdjacentChapter returns the query for the chapter after or before
// reference, named in lang. A verse part ("John 3:16") is ignored and book
// names match in either language, English case-insensitively. Moving past the
// last chapter of a book continues with the next book; moving before the
// first goes to the last chapter of the previous book. It reports false for
// an unrecognised reference and at either end of the canon.
func AdjacentChapter(reference string, dir Direction, lang types.Language) (string, bool) {
	ref := strings.TrimSpace(verseSuffixRE.ReplaceAllString(reference, ""))
	m := chapterRefRE.FindStringSubmatch(ref)
	if m == nil {
		return "", false
	}
	chapter, err := strconv.Atoi(m[2])
	if err != nil {
		return "", false
	}
	book := bookIndex(strings.TrimSpace(m[1]))
	if book < 0 {
		return "", false
	}

	switch dir {
	case Previous:
		chapter--
		if chapter < 1 {
			book--
			if book < 0 {
				return "", false
			}
			chapter = BibleBooks[book].Chapters
		}
	default:
		chapter++
		if chapter > BibleBooks[book].Chapters {
			book++
			chapter = 1
		}
	}
	if book >= len(BibleBooks) {
		return "", false
	}
	return fmt.Sprintf("%s %d", BibleBooks[book].Name(lang), chapter), true
}

func bookIndex(name string) int {
	for i, b := range BibleBooks {
		if strings.EqualFold(b.English, name) || b.Chinese == name {
			return i
		}
	}
	return -1
}
