package models

import "fmt"

// KeyPair is the output of the chain client key generator
type KeyPair struct {
	Address    string `json:"address"`
	PublicKey  string `json:"publicKey"`
	PrivateKey string `json:"privateKey"`
}

// Account is the chain identity of a chat user or of the bot itself.
// The key material never changes once generated.
type Account struct {
	Address    string `json:"address" bson:"address" redis:"address"`
	PublicKey  string `json:"publicKey" bson:"publicKey" redis:"publicKey"`
	PrivateKey string `json:"privateKey" bson:"privateKey" redis:"privateKey"`
	Username   string `json:"username" bson:"username" redis:"username"`
}

// NewAccount binds a freshly generated key pair to a username
func NewAccount(username string, keys KeyPair) Account {
	return Account{
		Address:    keys.Address,
		PublicKey:  keys.PublicKey,
		PrivateKey: keys.PrivateKey,
		Username:   username,
	}
}

// Mention formats the chat reference used in replies
func (a Account) Mention() string {
	return fmt.Sprintf("<@%s> %s", a.Username, a.PublicKey)
}

// Valid reports whether all fields are populated
func (a Account) Valid() bool {
	return a.Address != "" && a.PublicKey != "" && a.PrivateKey != "" && a.Username != ""
}
