package main

import (
	"log"

	"quote-booking/cmd"
	_ "quote-booking/migrations"
)

func main() {
	if err := cmd.Start(); err != nil {
		log.Fatal(err)
	}
}
