// Command pinhash prints a bcrypt hash of a PIN for the pin_hash account setting.
package main

import (
	"bufio"
	"flag"
	"fmt"
	"log"
	"os"
	"strings"

	"golang.org/x/crypto/bcrypt"

	"otp-gateway/internal/pin"
)

func main() {
	cost := flag.Int("cost", bcrypt.DefaultCost, "bcrypt cost")
	flag.Parse()

	value := flag.Arg(0)
	if value == "" {
		fmt.Fprint(os.Stderr, "PIN: ")
		line, err := bufio.NewReader(os.Stdin).ReadString('\n')
		if err != nil && line == "" {
			log.Fatalf("Unable to read PIN: %v", err)
		}
		value = strings.TrimSpace(line)
	}
	if value == "" {
		log.Fatal("PIN must not be empty")
	}

	hash, err := pin.Hash(value, *cost)
	if err != nil {
		log.Fatalf("Unable to hash PIN: %v", err)
	}
	fmt.Println(hash)
}
