// Command hashpassword prints a bcrypt hash for ADMIN_PASSWORD_HASH, or
// checks a password against an existing hash.
//
//	go run ./cmd/hashpassword 'secret'
//	go run ./cmd/hashpassword -check '$2a$12$...' 'secret'
package main

import (
	"bufio"
	"flag"
	"fmt"
	"os"
	"strings"

	"golang.org/x/crypto/bcrypt"
)

func main() {
	check := flag.String("check", "", "existing hash to compare the password with")
	cost := flag.Int("cost", 12, "bcrypt cost")
	flag.Parse()

	plain := flag.Arg(0)
	if plain == "" {
		fmt.Fprint(os.Stderr, "password: ")
		line, err := bufio.NewReader(os.Stdin).ReadString('\n')
		if err != nil && line == "" {
			fmt.Fprintln(os.Stderr, "FAIL:", err)
			os.Exit(1)
		}
		plain = strings.TrimRight(line, "\r\n")
	}

	if *check != "" {
		if err := bcrypt.CompareHashAndPassword([]byte(*check), []byte(plain)); err != nil {
			fmt.Println("FAIL:", err)
			os.Exit(1)
		}
		fmt.Println("SUCCESS")
		return
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(plain), *cost)
	if err != nil {
		fmt.Fprintln(os.Stderr, "FAIL:", err)
		os.Exit(1)
	}
	fmt.Println(string(hash))
}
