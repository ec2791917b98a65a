package services

import (
	"testing"

	"github.com/iiftl-portal/practice-test-service/internal/models"
)

func TestParseQuestionRow(t *testing.T) {
	tests := []struct {
		name    string
		row     []string
		want    models.Question
		wantErr bool
	}{
		{
			name: "full row",
			row:  []string{"What does FOB mean?", "Free on Board", "Freight on Bill", "Full Order Basis", "First of Batch", "A", "4", "1", "easy"},
			want: models.Question{
				Question:      "What does FOB mean?",
				Options:       []string{"Free on Board", "Freight on Bill", "Full Order Basis", "First of Batch"},
				CorrectAnswer: 0,
				Marks:         4,
				NegativeMarks: 1,
				Difficulty:    models.DifficultyEasy,
			},
		},
		{
			name: "lowercase answer letter and no negative marks",
			row:  []string{"Q", "a", "b", "c", "d", "d", "2", "", ""},
			want: models.Question{
				Question:      "Q",
				Options:       []string{"a", "b", "c", "d"},
				CorrectAnswer: 3,
				Marks:         2,
			},
		},
		{
			name:    "missing question text",
			row:     []string{"", "a", "b", "c", "d", "A", "4"},
			wantErr: true,
		},
		{
			name:    "missing option",
			row:     []string{"Q", "a", "", "c", "d", "A", "4"},
			wantErr: true,
		},
		{
			name:    "invalid answer letter",
			row:     []string{"Q", "a", "b", "c", "d", "E", "4"},
			wantErr: true,
		},
		{
			name:    "zero marks",
			row:     []string{"Q", "a", "b", "c", "d", "A", "0"},
			wantErr: true,
		},
		{
			name:    "negative marks exceed marks",
			row:     []string{"Q", "a", "b", "c", "d", "A", "2", "3"},
			wantErr: true,
		},
		{
			name:    "short row",
			row:     []string{"Q", "a"},
			wantErr: true,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := parseQuestionRow(tt.row)
			if (err != nil) != tt.wantErr {
				t.Fatalf("parseQuestionRow() error = %v, wantErr %v", err, tt.wantErr)
			}
			if tt.wantErr {
				return
			}
			if got.Question != tt.want.Question ||
				got.CorrectAnswer != tt.want.CorrectAnswer ||
				got.Marks != tt.want.Marks ||
				got.NegativeMarks != tt.want.NegativeMarks ||
				got.Difficulty != tt.want.Difficulty {
				t.Errorf("parseQuestionRow() = %+v, want %+v", got, tt.want)
			}
			for i := range tt.want.Options {
				if got.Options[i] != tt.want.Options[i] {
					t.Errorf("option %d = %q, want %q", i, got.Options[i], tt.want.Options[i])
				}
			}
		})
	}
}
