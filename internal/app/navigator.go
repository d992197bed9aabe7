package app

import "quizbowl-practice/internal/domain"

// Navigator walks an ordered list of questions. The index never leaves
// [0, len-1] and does not wrap.
type Navigator struct {
	questions []domain.Question
	index     int
}

func NewNavigator(questions []domain.Question) *Navigator {
	return &Navigator{questions: questions}
}

func (n *Navigator) Len() int   { return len(n.questions) }
func (n *Navigator) Index() int { return n.index }

// Current returns the question under the cursor.
func (n *Navigator) Current() (domain.Question, bool) {
	if len(n.questions) == 0 {
		return domain.Question{}, false
	}
	return n.questions[n.index], true
}

// Next moves forward one question and reports whether the index changed.
func (n *Navigator) Next() bool {
	return n.Seek(n.index + 1)
}

// Previous moves back one question and reports whether the index changed.
func (n *Navigator) Previous() bool {
	return n.Seek(n.index - 1)
}

// Seek clamps i into range and moves there, reporting whether the index changed.
func (n *Navigator) Seek(i int) bool {
	if len(n.questions) == 0 {
		return false
	}
	if i < 0 {
		i = 0
	}
	if i > len(n.questions)-1 {
		i = len(n.questions) - 1
	}
	if i == n.index {
		return false
	}
	n.index = i
	return true
}
