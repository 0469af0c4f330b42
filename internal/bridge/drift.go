package bridge

import "go.mongodb.org/mongo-driver/bson/primitive"

// TokenListKind tags the on-disk representation of the mirrored user's
// refreshToken field. The downstream schema's flexible typing lets the field
// exist as absent, a bare string, or an array, and all three occur in the
// wild.
type TokenListKind int

const (
	TokenListAbsent TokenListKind = iota
	TokenListScalar
	TokenListArray
)

// TokenList is the tagged variant for the refreshToken field. Reconciliation
// lives here so call sites never type-switch on raw BSON.
type TokenList struct {
	Kind   TokenListKind
	Scalar string
	Array  []string
}

// TokenListFromBSON classifies a decoded refreshToken field value.
func TokenListFromBSON(v interface{}) TokenList {
	switch val := v.(type) {
	case nil:
		return TokenList{Kind: TokenListAbsent}
	case string:
		return TokenList{Kind: TokenListScalar, Scalar: val}
	case []string:
		return TokenList{Kind: TokenListArray, Array: val}
	case primitive.A:
		return TokenList{Kind: TokenListArray, Array: stringify(val)}
	case []interface{}:
		return TokenList{Kind: TokenListArray, Array: stringify(val)}
	default:
		// Unknown scalar type: preserve nothing we can't represent, but keep
		// array semantics so the new token still lands.
		return TokenList{Kind: TokenListAbsent}
	}
}

// Reconcile produces the next array representation after adding tok:
// absent becomes a fresh array, a scalar is promoted to a single-element
// array first, and an existing array gains tok with set semantics. Existing
// tokens are never dropped. An empty tok only normalizes the representation.
func (l TokenList) Reconcile(tok string) []string {
	var next []string
	switch l.Kind {
	case TokenListAbsent:
		next = []string{}
	case TokenListScalar:
		next = []string{l.Scalar}
	case TokenListArray:
		next = append(next, l.Array...)
	}
	if tok == "" {
		return next
	}
	for _, existing := range next {
		if existing == tok {
			return next
		}
	}
	return append(next, tok)
}

func stringify(vals []interface{}) []string {
	out := make([]string, 0, len(vals))
	for _, v := range vals {
		if s, ok := v.(string); ok {
			out = append(out, s)
		}
	}
	return out
}
