package session

import "time"

var fixtureTime = time.Date(2026, 3, 14, 9, 30, 0, 0, time.UTC)

func resp(id, model string, cost float64) Response {
	return Response{
		ID:       id,
		ModelID:  model,
		Model:    model,
		Provider: "openai",
		Text:     "answer from " + model,
		Status:   StatusSuccess,
		Color:    "blue",
		Metrics: Metrics{
			Time:         1.5,
			Cost:         cost,
			Tokens:       150,
			InputTokens:  100,
			OutputTokens: 50,
		},
	}
}

// twoIterationSession has a completed first iteration and an active, locked second one.
func twoIterationSession(id string) *Session {
	return &Session{
		ID:             id,
		CreatedAt:      fixtureTime,
		UpdatedAt:      fixtureTime,
		PromptData:     PromptData{System: "sys", User: "Design a logo brief"},
		SelectedModels: []string{"model-a", "model-b"},
		ModelColors:    map[string]string{"model-a": "blue", "model-b": "emerald"},
		Iterations: []Iteration{
			{
				Number: 1,
				Status: IterationCompleted,
				Rounds: []Round{
					{Number: 1, Timestamp: fixtureTime, Type: RoundInitial, Prompt: "Design a logo brief",
						Responses: []Response{resp(id+"-r1", "model-a", 0.01), resp(id+"-r2", "model-b", 0.02)}},
				},
			},
			{
				Number:        2,
				Status:        IterationActive,
				LockedModelID: "model-a",
				LockInRound:   1,
				Rounds: []Round{
					{Number: 1, Timestamp: fixtureTime, Type: RoundDiscussion, Pivot: "shorter", Prompt: "p",
						Responses: []Response{resp(id+"-r3", "model-a", 0.03), resp(id+"-r4", "model-b", 0.04)}},
					{Number: 2, Timestamp: fixtureTime, Type: RoundDiscussion, Prompt: "p2",
						Responses: []Response{resp(id+"-r5", "model-a", 0.05)}},
				},
			},
		},
		CurrentIterationIndex: 1,
	}
}
