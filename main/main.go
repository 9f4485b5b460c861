// Command mogimail runs the SMTP receiver as a standalone process,
// printing each delivered message to standard output (spec.md §6
// "Standalone surface").
package main

import (
	"fmt"
	"log"
	"os"

	"github.com/mogimail/mogimail"
)

func main() {
	addr := "127.0.0.1:2525"
	hostname := "localhost"
	switch len(os.Args) {
	case 1:
	case 2:
		addr = os.Args[1]
	default:
		addr = os.Args[1]
		hostname = os.Args[2]
	}

	sink := make(chan mogimail.Message, 16)
	server := mogimail.NewServer(hostname)

	go printDelivered(sink)

	if err := server.Start(addr, sink); err != nil {
		log.Fatalf("mogimail: %v", err)
	}
}

// printDelivered prints each delivered Message to standard output in
// arrival order, in a human-readable form containing sender, recipient
// list, and data (spec.md §6).
func printDelivered(sink <-chan mogimail.Message) {
	for msg := range sink {
		fmt.Printf("From: %s\nTo: %v\n%s\n---\n", msg.From, msg.To, msg.Data)
	}
}
