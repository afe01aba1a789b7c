package ai

import "strings"

// PromptInput carries the raw material for a scoring instruction.
type PromptInput struct {
	QuestionText      string
	Rubric            string
	ExtraInstructions string
	Answer            string
}

// BuildScoringPrompt assembles the evaluation instruction sent as the user
// message of a scoring request.
func BuildScoringPrompt(input PromptInput) (string, error) {
	question := strings.TrimSpace(input.QuestionText)
	rubric := strings.TrimSpace(input.Rubric)
	if question == "" || rubric == "" {
		return "", ErrIncompletePrompt
	}

	builder := strings.Builder{}
	builder.WriteString("Evaluate the following answer and assign a score between 0.0 and 1.0.\n\n")
	builder.WriteString("Question: \"")
	builder.WriteString(question)
	builder.WriteString("\"\n\nApplicant answer: \"")
	builder.WriteString(input.Answer)
	builder.WriteString("\"\n\nGrading criteria: \"")
	builder.WriteString(rubric)
	builder.WriteString("\"\n")
	if extra := strings.TrimSpace(input.ExtraInstructions); extra != "" {
		builder.WriteString("\nAdditional instructions: \"")
		builder.WriteString(extra)
		builder.WriteString("\"\n")
	}
	builder.WriteString("\nIMPORTANT:\n")
	builder.WriteString("- 0.0 is the worst possible answer\n")
	builder.WriteString("- 1.0 is a perfect answer\n")
	builder.WriteString("- Use decimals between 0.0 and 1.0 to reflect the quality of the answer\n")
	builder.WriteString("- Reply ONLY with the decimal number, without any other text")
	return builder.String(), nil
}

func scoringSystemPrompt() string {
	return "You are a scoring system that MUST follow these rules:\n" +
		"1. ONLY respond with a single decimal number between 0.0 and 1.0 (inclusive)\n" +
		"2. DO NOT include any other text, punctuation, or explanation\n" +
		"3. 0.0 represents the worst possible response\n" +
		"4. 1.0 represents a perfect response\n" +
		"5. Use the full range between 0.0 and 1.0 to reflect the quality of the response\n" +
		"6. Be consistent in scoring similar responses"
}
