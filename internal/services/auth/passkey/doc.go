// Package passkey implements the WebAuthn registration and authentication
// ceremonies.
//
// A ceremony is a begin/complete pair with no server-side state beyond a
// single-use challenge row; the challenge value the authenticator signs
// over is the only link between the two halves.
package passkey
