package main

import (
	"fmt"
	"io"

	"github.com/charmbracelet/lipgloss"

	"pdf-rag/internal/models"
)

var (
	titleStyle  = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("12"))
	scoreStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("8"))
	ruleStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("8"))
	answerStyle = lipgloss.NewStyle().Border(lipgloss.RoundedBorder()).Padding(0, 1)
)

func printResults(w io.Writer, results []models.Result) {
	if len(results) == 0 {
		fmt.Fprintln(w, "No matching chunks")
		return
	}
	for _, r := range results {
		fmt.Fprintln(w, titleStyle.Render(r.Title))
		fmt.Fprintln(w, r.Content)
		fmt.Fprintln(w, scoreStyle.Render(fmt.Sprintf("Relevance score: %v", r.Score)))
		fmt.Fprintln(w, ruleStyle.Render(models.ResultSeparator))
	}
}

func printAnswer(w io.Writer, answer string) {
	fmt.Fprintln(w, answerStyle.Render(answer))
}
