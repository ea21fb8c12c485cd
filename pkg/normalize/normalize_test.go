// Copyright (c) 2026 Yomira. All rights reserved.
// Author: tai.buivan.jp@gmail.com

package normalize_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/taibuivan/counsel/pkg/normalize"
)

func TestIdentifier(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  string
	}{
		{"already_canonical", "alice", "alice"},
		{"mixed_case_email", "Alice@X.com", "alice@x.com"},
		{"surrounding_space", "  Bob ", "bob"},
		{"decomposed_accent", "Jose\u0301", "jos\u00e9"},
		{"empty", "   ", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, normalize.Identifier(tt.input))
		})
	}
}

func TestIP(t *testing.T) {
	assert.Equal(t, "2001:db8::1", normalize.IP(" 2001:DB8::1 "))
	assert.Equal(t, "2001:db8::1", normalize.IP("2001:DB8:0::1"))
	assert.Equal(t, "10.0.0.1", normalize.IP("::ffff:10.0.0.1"))
	assert.Equal(t, "not-an-ip", normalize.IP(" Not-An-IP "))
}
