package drift

import "errors"

var (
	// ErrConfiguration reports an invalid engine configuration or goal.
	ErrConfiguration = errors.New("drift: invalid configuration")
	// ErrNotInitialized is returned by turn and evaluation operations before SetGoal.
	ErrNotInitialized = errors.New("drift: north star not set")
	// ErrEmptyVocabulary is returned by the TF-IDF scorer when neither text
	// contains an indexable term. The engine degrades to LexicalOverlap.
	ErrEmptyVocabulary = errors.New("drift: empty vocabulary")
)
