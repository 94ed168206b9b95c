package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValidateTenantID(t *testing.T) {
	tests := []struct {
		name     string
		tenantID string
		wantErr  bool
	}{
		{name: "simple", tenantID: "wiki-a", wantErr: false},
		{name: "underscores and digits", tenantID: "wiki_01", wantErr: false},
		{name: "max length", tenantID: string(make64('a')), wantErr: false},
		{name: "empty", tenantID: "", wantErr: true},
		{name: "too long", tenantID: string(make64('a')) + "a", wantErr: true},
		{name: "path traversal", tenantID: "..", wantErr: true},
		{name: "forward slash", tenantID: "a/b", wantErr: true},
		{name: "backslash", tenantID: `a\b`, wantErr: true},
		{name: "dot", tenantID: "wiki.a", wantErr: true},
		{name: "space", tenantID: "wiki a", wantErr: true},
		{name: "null byte", tenantID: "wiki\x00a", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateTenantID(tt.tenantID)
			if tt.wantErr {
				assert.ErrorIs(t, err, ErrInvalidTenantID)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func make64(c byte) []byte {
	b := make([]byte, 64)
	for i := range b {
		b[i] = c
	}
	return b
}

func TestIdentityHasScope(t *testing.T) {
	id := NewIdentity("wiki-a", 7, "Alice", []int{0, 14}, []string{ScopeSearch, ScopeChatCompletion})

	assert.True(t, id.HasScope(ScopeSearch))
	assert.True(t, id.HasScope(ScopeChatCompletion))
	assert.False(t, id.HasScope(ScopeEmbeddings))
	assert.False(t, id.HasScope(ScopeAdmin))
}

func TestIdentityCanReadNamespace(t *testing.T) {
	id := NewIdentity("wiki-a", 7, "Alice", []int{0, 14}, nil)

	assert.True(t, id.CanReadNamespace(0))
	assert.True(t, id.CanReadNamespace(14))
	assert.False(t, id.CanReadNamespace(102))
}

func TestIdentityCanReadNamespaceEmptyAllowListDeniesAll(t *testing.T) {
	id := NewIdentity("wiki-a", 7, "Alice", nil, nil)

	assert.False(t, id.CanReadNamespace(0))
	assert.False(t, id.CanReadNamespace(14))
}

func TestValidateIdentity(t *testing.T) {
	tests := []struct {
		name     string
		identity *Identity
		wantErr  bool
	}{
		{
			name:     "valid",
			identity: NewIdentity("wiki-a", 7, "Alice", []int{0}, nil),
			wantErr:  false,
		},
		{
			name:     "nil",
			identity: nil,
			wantErr:  true,
		},
		{
			name:     "bad tenant",
			identity: NewIdentity("../etc", 7, "Alice", nil, nil),
			wantErr:  true,
		},
		{
			name:     "missing user id",
			identity: NewIdentity("wiki-a", 0, "Alice", nil, nil),
			wantErr:  true,
		},
		{
			name:     "missing username",
			identity: NewIdentity("wiki-a", 7, "", nil, nil),
			wantErr:  true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateIdentity(tt.identity)
			if tt.wantErr {
				require.Error(t, err)
			} else {
				require.NoError(t, err)
			}
		})
	}
}
