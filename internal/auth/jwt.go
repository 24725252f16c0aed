package auth

import (
	"fmt"
	"sort"

	"github.com/golang-jwt/jwt/v5"

	"github.com/authz-engine/resolution/pkg/types"
)

// ClaimSetFromToken adapts an already-validated JWT into the engine's claim
// bag. Intended for callers that embed the engine in-process behind their
// own validation middleware; the token's signature is not re-checked here.
func ClaimSetFromToken(token *jwt.Token) (*types.ClaimSet, error) {
	if token == nil {
		return nil, fmt.Errorf("token is nil")
	}
	mapClaims, ok := token.Claims.(jwt.MapClaims)
	if !ok {
		return nil, fmt.Errorf("unsupported claims type %T", token.Claims)
	}
	return ClaimSetFromMapClaims(mapClaims, token.Valid), nil
}

// ClaimSetFromMapClaims flattens jwt.MapClaims into the ordered claim bag.
// Array-valued claims become repeated claims of the same type; claim types
// are emitted in sorted order so the result is deterministic.
func ClaimSetFromMapClaims(mapClaims jwt.MapClaims, authenticated bool) *types.ClaimSet {
	claimTypes := make([]string, 0, len(mapClaims))
	for claimType := range mapClaims {
		claimTypes = append(claimTypes, claimType)
	}
	sort.Strings(claimTypes)

	var claims []types.Claim
	for _, claimType := range claimTypes {
		switch v := mapClaims[claimType].(type) {
		case string:
			claims = append(claims, types.Claim{Type: claimType, Value: v})
		case []interface{}:
			for _, item := range v {
				claims = append(claims, types.Claim{Type: claimType, Value: fmt.Sprintf("%v", item)})
			}
		case []string:
			for _, item := range v {
				claims = append(claims, types.Claim{Type: claimType, Value: item})
			}
		case float64:
			// JSON numbers arrive as float64; emit integers without the
			// fractional part so "exp"-style claims stay readable.
			if v == float64(int64(v)) {
				claims = append(claims, types.Claim{Type: claimType, Value: fmt.Sprintf("%d", int64(v))})
			} else {
				claims = append(claims, types.Claim{Type: claimType, Value: fmt.Sprintf("%v", v)})
			}
		case bool:
			claims = append(claims, types.Claim{Type: claimType, Value: fmt.Sprintf("%t", v)})
		default:
			claims = append(claims, types.Claim{Type: claimType, Value: fmt.Sprintf("%v", v)})
		}
	}

	return types.NewClaimSet(claims, authenticated)
}
