package domain

// ClientApp is a registered client application stored in the "clientApp"
// collection. Third-party clients require an explicit per-user grant;
// first-party clients are permitted by default.
type ClientApp struct {
	ID          string `bson:"_id,omitempty"`
	Name        string `bson:"name"`
	RedirectURI string `bson:"redirectUri"`
	ThirdParty  bool   `bson:"thirdParty"`
	Active      bool   `bson:"active"`
}
