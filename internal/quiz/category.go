// internal/quiz/category.go
package quiz

// Category selects the topic pool for generated questions.
type Category string

const (
	CategoryAll     Category = "ALL"
	CategoryHistory Category = "HISTORY"
	CategorySociety Category = "SOCIETY"
	CategoryScience Category = "SCIENCE"
	CategoryCulture Category = "CULTURE"
	CategorySports  Category = "SPORTS"
	CategoryNature  Category = "NATURE"
	CategoryMisc    Category = "MISC"
)

var categoryTopics = map[Category]string{
	CategoryAll:     "general knowledge across all topics",
	CategoryHistory: "world and national history",
	CategorySociety: "society, politics and economics",
	CategoryScience: "science and technology",
	CategoryCulture: "arts, literature and popular culture",
	CategorySports:  "sports and athletics",
	CategoryNature:  "nature, animals and the environment",
	CategoryMisc:    "miscellaneous trivia",
}

// Valid reports whether c names a known category.
func (c Category) Valid() bool {
	_, ok := categoryTopics[c]
	return ok
}

// Topic returns the prompt topic description for the category, falling back
// to the ALL pool for unknown values.
func (c Category) Topic() string {
	if t, ok := categoryTopics[c]; ok {
		return t
	}
	return categoryTopics[CategoryAll]
}
