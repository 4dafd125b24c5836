package cli

import "live-quiz-service/internal/domain"

// sampleQuizzes is the catalog served when no database is configured, and what
// `migrate --seed` writes.
func sampleQuizzes() map[string]domain.Quiz {
	return map[string]domain.Quiz{
		"quiz-1": {
			ID:    "quiz-1",
			Title: "Warm-up",
			Questions: []domain.Question{
				{
					ID:   "q1",
					Text: "What is 2 + 2?",
					Choices: []domain.Choice{
						{ID: "o1", Text: "3"},
						{ID: "o2", Text: "4"},
						{ID: "o3", Text: "5"},
					},
					CorrectChoiceID: "o2",
					Points:          1,
				},
				{
					ID:   "q2",
					Text: "Which planet is known as the red planet?",
					Choices: []domain.Choice{
						{ID: "o1", Text: "Venus"},
						{ID: "o2", Text: "Mars"},
						{ID: "o3", Text: "Jupiter"},
						{ID: "o4", Text: "Mercury"},
					},
					CorrectChoiceID: "o2",
					Points:          2,
				},
				{
					ID:   "q3",
					Text: "How many minutes are in a day?",
					Choices: []domain.Choice{
						{ID: "o1", Text: "1440"},
						{ID: "o2", Text: "1200"},
						{ID: "o3", Text: "3600"},
					},
					CorrectChoiceID: "o1",
					Points:          3,
				},
			},
		},
	}
}
