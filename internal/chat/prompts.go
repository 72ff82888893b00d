package chat

import "fmt"

const askInstructions = `You are an expert analyst of the ENADE 2017 Computer Science exam.

AVAILABLE DOCUMENTS:
%s... [full context loaded]

INSTRUCTIONS:
- Answer based ONLY on the documents provided
- Be precise and educational
- Cite question numbers when relevant
- Use markdown formatting for readability
- If you do not know something, say so honestly`

const summaryInstructions = `You are an expert in the pedagogical analysis of the ENADE exam.
Based on the ENADE 2017 Computer Science exam documents, write a structured and detailed summary.

DOCUMENTS: %s`

const summaryRequest = `Write a complete analysis of the exam with:

## Overview
- Total number of questions and how they are distributed
- Question types (objective, discursive)

## Main Topics
- Knowledge areas covered most often
- Specific topics per question

## Pedagogical Analysis
- Overall difficulty level
- Competencies assessed
- Highlights

## Insights for Educators
- Areas that deserve more attention
- Suggestions for preparation

Use markdown and be detailed but objective.`

const (
	summaryTemperature = 0.1
	summaryMaxTokens   = 3000
)

var suggestions = []string{
	"How many questions does the exam have and how are they distributed?",
	"What are the main topics covered in the algorithms questions?",
	"Analyse the discursive questions and their expected answers",
	"What is the overall difficulty level of the exam?",
	"Compare the general education questions with the specific ones",
}

// Suggestions returns the suggested opening questions.
func Suggestions() []string {
	out := make([]string, len(suggestions))
	copy(out, suggestions)
	return out
}

func askSystemPrompt(context string) string {
	return fmt.Sprintf(askInstructions, context)
}

func askUserPrompt(question string) string {
	return "Question: " + question
}

func summarySystemPrompt(context string) string {
	return fmt.Sprintf(summaryInstructions, context)
}
