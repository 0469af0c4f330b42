package bridge

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

func TestTokenListFromBSON(t *testing.T) {
	tests := []struct {
		name string
		in   interface{}
		want TokenList
	}{
		{"absent", nil, TokenList{Kind: TokenListAbsent}},
		{"scalar", "tok-1", TokenList{Kind: TokenListScalar, Scalar: "tok-1"}},
		{"bson array", primitive.A{"tok-1", "tok-2"}, TokenList{Kind: TokenListArray, Array: []string{"tok-1", "tok-2"}}},
		{"interface slice", []interface{}{"tok-1"}, TokenList{Kind: TokenListArray, Array: []string{"tok-1"}}},
		{"array with junk entries", primitive.A{"tok-1", 42}, TokenList{Kind: TokenListArray, Array: []string{"tok-1"}}},
		{"unrepresentable scalar", 42, TokenList{Kind: TokenListAbsent}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, TokenListFromBSON(tt.in))
		})
	}
}

func TestReconcile(t *testing.T) {
	tests := []struct {
		name string
		list TokenList
		tok  string
		want []string
	}{
		{"absent gains array", TokenList{Kind: TokenListAbsent}, "new", []string{"new"}},
		{"absent no token", TokenList{Kind: TokenListAbsent}, "", []string{}},
		{"scalar promoted", TokenList{Kind: TokenListScalar, Scalar: "old"}, "new", []string{"old", "new"}},
		{"scalar promoted without token", TokenList{Kind: TokenListScalar, Scalar: "old"}, "", []string{"old"}},
		{"array appends", TokenList{Kind: TokenListArray, Array: []string{"a"}}, "b", []string{"a", "b"}},
		{"array set semantics", TokenList{Kind: TokenListArray, Array: []string{"a", "b"}}, "b", []string{"a", "b"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.list.Reconcile(tt.tok))
		})
	}
}
