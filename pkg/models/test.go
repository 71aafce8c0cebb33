package models

import (
	"strings"
	"time"
)

// QuestionType discriminates the tagged-union Question variants. Each type
// carries its own answer shape and grading rule; there is no generic
// attribute bag probed at grading time.
type QuestionType string

const (
	QuestionMCQ                QuestionType = "mcq"
	QuestionEssay              QuestionType = "essay"
	QuestionMatching           QuestionType = "matching"
	QuestionMapLabeling        QuestionType = "map_labeling"
	QuestionCompletion         QuestionType = "completion"
	QuestionSentenceCompletion QuestionType = "sentence_completion"
	QuestionShortAnswer        QuestionType = "short_answer"
	QuestionListening          QuestionType = "listening"
)

// Question is one graded item of a test.
type Question struct {
	ID        string       `json:"id"`
	Index     int          `json:"index"`
	Type      QuestionType `json:"type"`
	Prompt    string       `json:"prompt"`
	MaxPoints float64      `json:"max_points"`

	// mcq
	Options        []string `json:"options,omitempty"`
	CorrectAnswers []string `json:"correct_answers,omitempty"`

	// matching
	LeftItems  map[string]string `json:"left_items,omitempty"`
	RightItems map[string]string `json:"right_items,omitempty"`
	CorrectPairs map[string]string `json:"correct_pairs,omitempty"` // left_key -> right_key

	// map_labeling
	LabelPositions map[string]string `json:"label_positions,omitempty"` // label_key -> option_key (correct)

	// completion / sentence_completion / short_answer
	AcceptedAnswers map[string][]string `json:"accepted_answers,omitempty"` // blank/sentence/sub_q key -> accepted values
	CaseSensitive   bool                `json:"case_sensitive,omitempty"`

	// listening
	Sections []Question `json:"sections,omitempty"`
}

// Validate checks that every reference in a question's answer key resolves
// within the question's own option/blank/label sets.
func (q *Question) Validate() error {
	switch q.Type {
	case QuestionMCQ:
		return q.validateMCQ()
	case QuestionMatching:
		return q.validateMatching()
	case QuestionMapLabeling:
		return q.validateMapLabeling()
	case QuestionCompletion, QuestionSentenceCompletion, QuestionShortAnswer:
		return q.validateKeyedAnswers()
	case QuestionListening:
		for i := range q.Sections {
			if err := q.Sections[i].Validate(); err != nil {
				return err
			}
		}
		return nil
	case QuestionEssay:
		return nil
	default:
		return &ValidationError{Field: "type", Message: "unknown question type"}
	}
}

func (q *Question) validateMCQ() error {
	optionSet := make(map[string]bool, len(q.Options))
	for _, o := range q.Options {
		optionSet[o] = true
	}
	for _, a := range q.CorrectAnswers {
		if !optionSet[a] {
			return &ValidationError{Field: "correct_answers", Message: "references an option key not present in options"}
		}
	}
	return nil
}

func (q *Question) validateMatching() error {
	for left, right := range q.CorrectPairs {
		if _, ok := q.LeftItems[left]; !ok {
			return &ValidationError{Field: "correct_pairs", Message: "left_key not present in left_items"}
		}
		if _, ok := q.RightItems[right]; !ok {
			return &ValidationError{Field: "correct_pairs", Message: "right_key not present in right_items"}
		}
	}
	return nil
}

func (q *Question) validateMapLabeling() error {
	if len(q.LabelPositions) == 0 {
		return &ValidationError{Field: "label_positions", Message: "at least one label is required"}
	}
	return nil
}

func (q *Question) validateKeyedAnswers() error {
	if len(q.AcceptedAnswers) == 0 {
		return &ValidationError{Field: "accepted_answers", Message: "at least one accepted-answer key is required"}
	}
	return nil
}

// Answer is the submitted response to one question, shaped per QuestionType.
type Answer struct {
	QuestionID string              `json:"question_id"`
	FreeText   string              `json:"free_text,omitempty"`   // essay
	Selected   []string            `json:"selected,omitempty"`    // mcq
	Pairs      map[string]string   `json:"pairs,omitempty"`       // matching, map_labeling
	Keyed      map[string]string   `json:"keyed,omitempty"`       // completion, sentence_completion, short_answer
	Sections   map[string]Answer   `json:"sections,omitempty"`    // listening
}

// Grade is a pure function: grade(question, answer) -> score in [0, max_points].
// Essay questions are not auto-graded and always return 0 here; callers route
// them to manual or AI evaluation separately.
func Grade(q *Question, a *Answer) float64 {
	switch q.Type {
	case QuestionMCQ:
		return gradeMCQ(q, a)
	case QuestionEssay:
		return 0
	case QuestionMatching:
		return gradeMatching(q, a)
	case QuestionMapLabeling:
		return gradeMapLabeling(q, a)
	case QuestionCompletion, QuestionSentenceCompletion, QuestionShortAnswer:
		return gradeKeyedAnswers(q, a)
	case QuestionListening:
		return gradeListening(q, a)
	default:
		return 0
	}
}

func gradeMCQ(q *Question, a *Answer) float64 {
	if len(a.Selected) != len(q.CorrectAnswers) {
		return 0
	}
	want := make(map[string]bool, len(q.CorrectAnswers))
	for _, k := range q.CorrectAnswers {
		want[k] = true
	}
	for _, k := range a.Selected {
		if !want[k] {
			return 0
		}
	}
	return q.MaxPoints
}

func gradeMatching(q *Question, a *Answer) float64 {
	if len(q.CorrectPairs) == 0 {
		return 0
	}
	correct := 0
	for left, right := range q.CorrectPairs {
		if a.Pairs[left] == right {
			correct++
		}
	}
	return float64(correct) / float64(len(q.CorrectPairs)) * q.MaxPoints
}

func gradeMapLabeling(q *Question, a *Answer) float64 {
	if len(q.LabelPositions) == 0 {
		return 0
	}
	correct := 0
	for label, want := range q.LabelPositions {
		if a.Pairs[label] == want {
			correct++
		}
	}
	return float64(correct) / float64(len(q.LabelPositions)) * q.MaxPoints
}

func gradeKeyedAnswers(q *Question, a *Answer) float64 {
	if len(q.AcceptedAnswers) == 0 {
		return 0
	}
	correct := 0
	for key, accepted := range q.AcceptedAnswers {
		given, ok := a.Keyed[key]
		if !ok {
			continue
		}
		if answerAccepted(given, accepted, q.CaseSensitive) {
			correct++
		}
	}
	return float64(correct) / float64(len(q.AcceptedAnswers)) * q.MaxPoints
}

func answerAccepted(given string, accepted []string, caseSensitive bool) bool {
	for _, want := range accepted {
		if caseSensitive {
			if given == want {
				return true
			}
		} else if strings.EqualFold(given, want) {
			return true
		}
	}
	return false
}

func gradeListening(q *Question, a *Answer) float64 {
	var total float64
	for i := range q.Sections {
		section := &q.Sections[i]
		sectionAnswer, ok := a.Sections[section.ID]
		if !ok {
			continue
		}
		total += Grade(section, &sectionAnswer)
	}
	return total
}

// MarketplaceConfig is a published test's listing metadata.
type MarketplaceConfig struct {
	PriceCents      int64    `json:"price_cents"`
	Category        string   `json:"category,omitempty"`
	Tags            []string `json:"tags,omitempty"`
	Language        string   `json:"language,omitempty"`
	Difficulty      string   `json:"difficulty,omitempty"`
	Slug            string   `json:"slug"`
	MetaDescription string   `json:"meta_description,omitempty"`
}

// Test is the kind-specific content of a test artifact.
type Test struct {
	ArtifactID        string             `json:"artifact_id"`
	Questions         []Question         `json:"questions"`
	MarketplaceConfig *MarketplaceConfig `json:"marketplace_config,omitempty"`
	Deadline          *time.Time         `json:"deadline,omitempty"`
	TimeLimitMinutes  int                `json:"time_limit_minutes,omitempty"`
	MaxRetries        int                `json:"max_retries,omitempty"`
	UpdatedAt         time.Time          `json:"updated_at"`
}

// CanonicalHash-comparable content identity is computed by callers; Test
// itself only carries the fields the hash is taken over.

// Submission is one taker's attempt at a test.
type Submission struct {
	ID          string             `json:"id"`
	TestID      string             `json:"test_id"`
	TakerUserID string             `json:"taker_user_id"`
	Answers     map[string]Answer  `json:"answers"` // question_id -> answer
	Score       float64            `json:"score"`
	MaxScore    float64            `json:"max_score"`
	SubmittedAt time.Time          `json:"submitted_at"`
	RetryCount  int                `json:"retry_count"`
}

// GradeSubmission grades every answered question and totals the score.
func GradeSubmission(test *Test, sub *Submission) float64 {
	var total, max float64
	for i := range test.Questions {
		q := &test.Questions[i]
		max += q.MaxPoints
		if ans, ok := sub.Answers[q.ID]; ok {
			total += Grade(q, &ans)
		}
	}
	sub.Score = total
	sub.MaxScore = max
	return total
}
