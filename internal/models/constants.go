package models

const (
	PageLabelFormat = "page_%d"
	ResultSeparator = "--------------------------------------------------"

	PromptTemplate = `Query: %s
Refer to the additional context only if the query is related to it.
Additional context: %s
If query is not related to context, use your own knowledge.`
)
