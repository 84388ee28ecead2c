package main

import (
	"log"

	"github.com/zrdt80/beetrack/cmd/internal/app"
)

func main() {
	if err := app.Run(); err != nil {
		log.Fatal(err)
	}
}
