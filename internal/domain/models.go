package domain

import "time"

// Question is a single tossup: the text that gets read and its canonical answer.
type Question struct {
	ID     string `json:"id" yaml:"id"`
	Text   string `json:"text" yaml:"text"`
	Answer string `json:"answer" yaml:"answer"`
}

// QuestionSet is an ordered packet of questions.
type QuestionSet struct {
	ID        string     `json:"id" yaml:"id"`
	Title     string     `json:"title" yaml:"title"`
	Questions []Question `json:"questions" yaml:"questions"`
}

// Gender mirrors the SSML gender reported by voice providers.
type Gender string

const (
	GenderMale        Gender = "MALE"
	GenderFemale      Gender = "FEMALE"
	GenderNeutral     Gender = "NEUTRAL"
	GenderUnspecified Gender = "SSML_VOICE_GENDER_UNSPECIFIED"
)

// Voice is a named, language-tagged synthetic speaker.
type Voice struct {
	Name          string   `json:"name" yaml:"name"`
	LanguageCodes []string `json:"languageCodes" yaml:"languageCodes"`
	Gender        Gender   `json:"ssmlGender" yaml:"gender"`
}

// PrimaryLanguage returns the first language code, or "" when none is set.
func (v Voice) PrimaryLanguage() string {
	if len(v.LanguageCodes) == 0 {
		return ""
	}
	return v.LanguageCodes[0]
}

// PlaybackState is the reading state of the current question.
type PlaybackState string

const (
	PlaybackIdle     PlaybackState = "idle"
	PlaybackSpeaking PlaybackState = "speaking"
	PlaybackPaused   PlaybackState = "paused"
)

// Outcome classifies how an answer session ended.
type Outcome string

const (
	OutcomeCorrect   Outcome = "correct"
	OutcomeIncorrect Outcome = "incorrect"
	OutcomeTimeout   Outcome = "timeout"
)

// Feedback is the transient verdict shown after a judgment.
type Feedback struct {
	Correct bool    `json:"correct"`
	Outcome Outcome `json:"outcome"`
	Message string  `json:"message"`
}

// AnswerSession is the buzz modal: what the user typed and how long they have left.
type AnswerSession struct {
	Open             bool   `json:"open"`
	TypedAnswer      string `json:"typedAnswer"`
	RemainingSeconds int    `json:"remainingSeconds"`
}

// Progress is a resume point saved when a user leaves a set.
type Progress struct {
	SetID string `json:"setId"`
	Index int    `json:"index"`
}

// Clip is one synthesized utterance handed to the client for playback.
// Encoding "device" means the client speaks Text itself.
type Clip struct {
	Seq         int     `json:"seq"`
	Encoding    string  `json:"encoding"`
	Content     string  `json:"content,omitempty"`
	Text        string  `json:"text"`
	StartOffset int     `json:"startOffset"`
	Voice       string  `json:"voice,omitempty"`
	Rate        float64 `json:"rate"`
}

// PlaybackView is the reading progress part of a snapshot.
type PlaybackView struct {
	State   PlaybackState `json:"state"`
	Loading bool          `json:"loading"`
	Offset  int           `json:"offset"`
	Spoken  string        `json:"spoken"`
}

// PracticeState is the full view state pushed to clients.
type PracticeState struct {
	UserID         string         `json:"userId"`
	SetID          string         `json:"setId"`
	Title          string         `json:"title"`
	Index          int            `json:"index"`
	Total          int            `json:"total"`
	QuestionID     string         `json:"questionId"`
	Playback       PlaybackView   `json:"playback"`
	Clip           *Clip          `json:"clip,omitempty"`
	Answer         *AnswerSession `json:"answer,omitempty"`
	Feedback       *Feedback      `json:"feedback,omitempty"`
	RevealedAnswer string         `json:"revealedAnswer,omitempty"`
	Voice          *Voice         `json:"voice,omitempty"`
	Rate           float64        `json:"rate"`
	SpeechError    string         `json:"speechError,omitempty"`
	VoiceError     string         `json:"voiceError,omitempty"`
	UpdatedAt      time.Time      `json:"updatedAt"`
}
