package domain

import "errors"

var (
	// ErrSessionNotFound is returned when a user has no open practice session.
	ErrSessionNotFound = errors.New("practice session not found")
	// ErrSetNotFound indicates the question set could not be loaded.
	ErrSetNotFound = errors.New("question set not found")
	// ErrEmptySet is returned when a question set has no questions to read.
	ErrEmptySet = errors.New("question set is empty")
	// ErrAnswerOpen is returned when buzzing while an answer session is already open.
	ErrAnswerOpen = errors.New("answer session already open")
	// ErrNoAnswerOpen is returned when answering without buzzing first.
	ErrNoAnswerOpen = errors.New("no answer session open")
	// ErrVoiceNotFound indicates a requested voice is not in the voice list.
	ErrVoiceNotFound = errors.New("voice not found")
)
