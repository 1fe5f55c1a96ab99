package service

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDiffSnapshots(t *testing.T) {
	tests := []struct {
		name string
		old  string
		new  string
		want []FieldDelta
	}{
		{
			name: "value changed",
			old:  `{"Name":"Acme"}`,
			new:  `{"Name":"Acme Corp"}`,
			want: []FieldDelta{{Field: "Name", From: "Acme", To: "Acme Corp"}},
		},
		{
			name: "field added",
			old:  `{}`,
			new:  `{"Email":"x@acme.com"}`,
			want: []FieldDelta{{Field: "Email", From: "", To: "x@acme.com"}},
		},
		{
			name: "field removed",
			old:  `{"Phone":"123"}`,
			new:  `{}`,
			want: []FieldDelta{{Field: "Phone", From: "123", To: ""}},
		},
		{
			name: "unchanged values suppressed",
			old:  `{"Name":"Acme","Email":"x@acme.com"}`,
			new:  `{"Name":"Acme","Email":"y@acme.com"}`,
			want: []FieldDelta{{Field: "Email", From: "x@acme.com", To: "y@acme.com"}},
		},
		{
			name: "both empty is not a change",
			old:  `{"Notes":null}`,
			new:  `{"Notes":""}`,
			want: []FieldDelta{},
		},
		{
			name: "non-string values rendered as JSON literals",
			old:  `{"Budget":100}`,
			new:  `{"Budget":250}`,
			want: []FieldDelta{{Field: "Budget", From: "100", To: "250"}},
		},
		{
			name: "deltas sorted by field name",
			old:  `{"b":"1","a":"1"}`,
			new:  `{"b":"2","a":"2"}`,
			want: []FieldDelta{
				{Field: "a", From: "1", To: "2"},
				{Field: "b", From: "1", To: "2"},
			},
		},
		{
			name: "empty snapshots",
			old:  ``,
			new:  ``,
			want: []FieldDelta{},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := DiffSnapshots(json.RawMessage(tt.old), json.RawMessage(tt.new))
			assert.Equal(t, tt.want, got)
		})
	}
}
