package main

import (
	"context"
	"log"
	"os"

	"quizbowl-practice/internal/cli"
)

func main() {
	log.SetFlags(log.LstdFlags | log.Lmicroseconds)
	if err := cli.Execute(context.Background()); err != nil {
		os.Exit(1)
	}
}
