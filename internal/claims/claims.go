// Package claims models the claim set assembled for authorization-ticket
// issuance, with an explicit token destination per claim.
package claims

// Destination is the set of tokens a claim is emitted into.
type Destination uint8

const (
	DestinationAccessToken Destination = 1 << iota
	DestinationIdentityToken

	DestinationBoth = DestinationAccessToken | DestinationIdentityToken
)

// InAccessToken reports whether the claim belongs in the access token.
func (d Destination) InAccessToken() bool { return d&DestinationAccessToken != 0 }

// InIdentityToken reports whether the claim belongs in the identity token.
func (d Destination) InIdentityToken() bool { return d&DestinationIdentityToken != 0 }

// Claim names used on authorization tickets.
const (
	NameSubject   = "sub"
	NameUserID    = "user_id"
	NameCompanyID = "company_id"
	NameClientID  = "client_id"
	NameUsername  = "username"
	NameName      = "name"
	NameProfile   = "profile"
	NameAudience  = "aud"
)

// Claim is a single name/value pair with its intended destinations.
type Claim struct {
	Name         string
	Value        string
	Destinations Destination
}

// Set is an ordered claim collection.
type Set []Claim

// Add appends a claim.
func (s *Set) Add(name, value string, dest Destination) {
	*s = append(*s, Claim{Name: name, Value: value, Destinations: dest})
}

// AccessTokenClaims projects the claims destined for the access token.
func (s Set) AccessTokenClaims() map[string]any {
	return s.project(Destination.InAccessToken)
}

// IdentityTokenClaims projects the claims destined for the identity token.
func (s Set) IdentityTokenClaims() map[string]any {
	return s.project(Destination.InIdentityToken)
}

func (s Set) project(include func(Destination) bool) map[string]any {
	out := make(map[string]any, len(s))
	for _, c := range s {
		if include(c.Destinations) {
			out[c.Name] = c.Value
		}
	}
	return out
}
