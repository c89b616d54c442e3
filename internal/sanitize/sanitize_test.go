package sanitize

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestText(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{name: "empty", in: "", want: ""},
		{name: "plain", in: "  Timesheet week 42 ", want: "Timesheet week 42"},
		{name: "tags stripped", in: "<b>Timesheet</b> week <i>42</i>", want: "Timesheet week 42"},
		{name: "script removed", in: "Timesheet<script>alert(1)</script>", want: "Timesheet"},
		{name: "entities decoded", in: "Smith &amp; Sons", want: "Smith & Sons"},
		{name: "ampersand kept", in: "R&D timesheet", want: "R&D timesheet"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Text(tt.in))
		})
	}
}
