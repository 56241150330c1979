// Package main provides a one-shot utility for session key generation.
//
// It emits the Ed25519 signing key the auth service uses for session
// tokens, ready for MENAGERIE_SESSION_PRIVATE_KEY.
package main

import (
	"fmt"
	"log"

	"github.com/mossvale/menagerie/internal/services/auth/session"
)

func main() {
	key, err := session.GenerateSigningKey()
	if err != nil {
		log.Fatalf("generate session key: %v", err)
	}
	fmt.Printf("MENAGERIE_SESSION_PRIVATE_KEY=%s\n", key)
}
