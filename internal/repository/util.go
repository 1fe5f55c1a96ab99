package repository

import "strings"

func joinUpdates(updates []string) string {
	return strings.Join(updates, ", ")
}

func joinClauses(clauses []string) string {
	return strings.Join(clauses, " AND ")
}
